// Package jobmaster is an API client for the CacheFS job master. Each
// Client owns one session on the job master; Close releases it. Callers
// that submit jobs through a Client must Close it exactly once, whatever
// the outcome of the jobs, or the master keeps the session's job history
// pinned.
package jobmaster

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	metrics "github.com/Shyp/go-simple-metrics"

	"github.com/cachefs/loadctl/models"
	"github.com/cachefs/loadctl/rest"
)

const defaultHTTPTimeout = 6500 * time.Millisecond

var httpClient = &http.Client{Timeout: defaultHTTPTimeout}

// Client is an API client for the job master, bound to a single session.
type Client struct {
	rc        *rest.Client
	sessionID string
}

// Dial opens a new session on the job master at base.
func Dial(token, base string) (*Client, error) {
	rc := &rest.Client{
		ID:     "loadctl",
		Token:  token,
		Client: httpClient,
		Base:   base,
	}
	req, err := rc.NewRequest(context.Background(), "POST", "/v1/sessions", nil)
	if err != nil {
		return nil, err
	}
	var body struct {
		ID string `json:"id"`
	}
	if err := rc.Do(req, &body); err != nil {
		return nil, err
	}
	return &Client{rc: rc, sessionID: body.ID}, nil
}

// Run submits a load job and returns the id the job master assigned to it.
func (c *Client) Run(ctx context.Context, job models.LoadJob) (string, error) {
	b := new(bytes.Buffer)
	if err := json.NewEncoder(b).Encode(job); err != nil {
		return "", err
	}
	req, err := c.rc.NewRequest(ctx, "POST", "/v1/jobs", b)
	if err != nil {
		return "", err
	}
	req.Header.Set("Session-Id", c.sessionID)
	start := time.Now()
	var info models.JobInfo
	err = c.rc.Do(req, &info)
	go metrics.Time("jobmaster.run.latency", time.Since(start))
	if err != nil {
		go metrics.Increment("jobmaster.run.error")
		return "", err
	}
	go metrics.Increment("jobmaster.run.accepted")
	return info.ID, nil
}

// Status queries the current status of a job. The status is returned as the
// master sent it; callers decide what to do with values outside the known
// set.
func (c *Client) Status(ctx context.Context, id string) (models.JobInfo, error) {
	req, err := c.rc.NewRequest(ctx, "GET", "/v1/jobs/"+id, nil)
	if err != nil {
		return models.JobInfo{}, err
	}
	req.Header.Set("Session-Id", c.sessionID)
	start := time.Now()
	var info models.JobInfo
	err = c.rc.Do(req, &info)
	go metrics.Time("jobmaster.status.latency", time.Since(start))
	if err != nil {
		go metrics.Increment("jobmaster.status.error")
		return models.JobInfo{}, err
	}
	return info, nil
}

// Close releases the session on the job master. The error is propagated to
// the caller rather than swallowed; a session that fails to close is a
// resource leak on the master.
func (c *Client) Close() error {
	req, err := c.rc.NewRequest(context.Background(), "DELETE", "/v1/sessions/"+c.sessionID, nil)
	if err != nil {
		return err
	}
	return c.rc.Do(req, nil)
}
