// Package metastore is an API client for the CacheFS master's metadata
// endpoints: the status of a single path, and directory listings.
package metastore

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/cachefs/loadctl/models"
	"github.com/cachefs/loadctl/rest"
)

const defaultHTTPTimeout = 6500 * time.Millisecond

var httpClient = &http.Client{Timeout: defaultHTTPTimeout}

// Client is an API client for the CacheFS master.
type Client struct {
	*rest.Client

	File *FileService
}

// NewClient creates a new Client that hits the master at base.
func NewClient(token, base string) *Client {
	c := &Client{Client: &rest.Client{
		ID:     "loadctl",
		Token:  token,
		Client: httpClient,
		Base:   base,
	}}
	c.File = &FileService{Client: c}
	return c
}

// FileService talks to the /v1/files endpoints.
type FileService struct {
	Client *Client
}

// Status fetches the metadata for a single path. A missing path comes back
// as a *rest.Error with the master's not-found body.
func (f *FileService) Status(ctx context.Context, path string) (*models.FileStatus, error) {
	req, err := f.Client.NewRequest(ctx, "GET", "/v1/files/status?path="+url.QueryEscape(path), nil)
	if err != nil {
		return nil, err
	}
	st := new(models.FileStatus)
	if err := f.Client.Do(req, st); err != nil {
		return nil, err
	}
	return st, nil
}

// List returns the immediate children of path, in the order the master
// returns them.
func (f *FileService) List(ctx context.Context, path string) ([]models.FileStatus, error) {
	req, err := f.Client.NewRequest(ctx, "GET", "/v1/files/list?path="+url.QueryEscape(path), nil)
	if err != nil {
		return nil, err
	}
	var sts []models.FileStatus
	if err := f.Client.Do(req, &sts); err != nil {
		return nil, err
	}
	return sts, nil
}
