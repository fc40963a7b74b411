// Config loads configuration from the environment and an optional settings
// file.
package config

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	yaml "gopkg.in/yaml.v3"
)

const Version = "0.4"

// Defaults for a CacheFS cluster running on the local machine.
const DefaultMasterURL = "http://localhost:29999"
const DefaultJobMasterURL = "http://localhost:20001"

// GetInt loads the environment variable varName, converts it to an integer,
// and returns that integer or an error.
func GetInt(varName string) (int, error) {
	envVar := os.Getenv(varName)
	return strconv.Atoi(envVar)
}

// GetURLOrBail loads the environment variable urlEnvVar and parses it as
// a URL, quitting the process if it is unset or invalid.
func GetURLOrBail(urlEnvVar string) *url.URL {
	rawurl := os.Getenv(urlEnvVar)
	if rawurl == "" {
		log.Fatal(fmt.Errorf("no URL configured. Please set %s", urlEnvVar))
	}
	parsedURL, err := url.Parse(rawurl)
	if err != nil {
		log.Fatalf("invalid url: %s. %s\n", rawurl, err.Error())
	}
	return parsedURL
}

// SetMaxIdleConnsPerHost sets the MaxIdleConnsPerHost value for the default
// HTTP transport. If you are using a custom transport, calling this function
// won't change anything.
func SetMaxIdleConnsPerHost(maxConns int) {
	http.DefaultTransport.(*http.Transport).MaxIdleConnsPerHost = maxConns
}

// Settings are the client settings for talking to a CacheFS cluster.
type Settings struct {
	MasterURL    string `yaml:"master_url"`
	JobMasterURL string `yaml:"job_master_url"`
	AuthToken    string `yaml:"auth_token"`
}

// settingsPath returns the file to load settings from: $LOADCTL_CONFIG if
// set, otherwise loadctl.yaml in the user config directory.
func settingsPath() (string, error) {
	if p := os.Getenv("LOADCTL_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "loadctl", "loadctl.yaml"), nil
}

// LoadSettings returns the client settings: built-in defaults, overridden by
// the settings file if one exists, overridden by the CACHEFS_* environment
// variables.
func LoadSettings() (*Settings, error) {
	s := &Settings{
		MasterURL:    DefaultMasterURL,
		JobMasterURL: DefaultJobMasterURL,
	}
	path, err := settingsPath()
	if err == nil {
		data, rerr := os.ReadFile(path)
		switch {
		case rerr == nil:
			if err := yaml.Unmarshal(data, s); err != nil {
				return nil, fmt.Errorf("config: parsing %s: %w", path, err)
			}
		case !os.IsNotExist(rerr):
			return nil, rerr
		}
	}
	if v := os.Getenv("CACHEFS_MASTER_URL"); v != "" {
		s.MasterURL = v
	}
	if v := os.Getenv("CACHEFS_JOB_MASTER_URL"); v != "" {
		s.JobMasterURL = v
	}
	if v := os.Getenv("CACHEFS_AUTH_TOKEN"); v != "" {
		s.AuthToken = v
	}
	return s, nil
}
