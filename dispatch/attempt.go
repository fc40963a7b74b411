package dispatch

import (
	"context"
	"log"
	"time"

	metrics "github.com/Shyp/go-simple-metrics"
	"github.com/grafana/dskit/backoff"

	"github.com/cachefs/loadctl/jobmaster"
	"github.com/cachefs/loadctl/models"
)

// submitRetries is how many times a single file's job may be submitted
// before the file is abandoned.
const submitRetries = 3

var submitBackoff = backoff.Config{
	MinBackoff: 10 * time.Millisecond,
	MaxBackoff: time.Second,
	MaxRetries: submitRetries,
}

// An Attempt drives one file's load job. It owns a dedicated job master
// session, the id of the most recent submission, and the remaining
// submission budget.
type Attempt struct {
	job    models.LoadJob
	client *jobmaster.Client
	retry  *backoff.Backoff

	// id of the most recent submission. Empty means there is no remote job
	// to poll: either nothing was submitted yet, or the last submission
	// failed before the master assigned an id.
	jobID string

	closed bool
}

func newAttempt(ctx context.Context, client *jobmaster.Client, job models.LoadJob) *Attempt {
	return &Attempt{
		job:    job,
		client: client,
		retry:  backoff.New(ctx, submitBackoff),
	}
}

// Submit sends the job to the job master, consuming one unit of the
// submission budget. It returns false, making no remote call, once the
// budget is spent. A transport failure leaves the attempt without a job id,
// which the next Check reports as FAILED; the budget unit is consumed
// either way.
func (a *Attempt) Submit(ctx context.Context) bool {
	if !a.retry.Ongoing() {
		log.Printf("failed to complete load of %s after %d submissions", a.job.Path, a.retry.NumRetries())
		go metrics.Increment("load.abandoned")
		return false
	}
	a.retry.Wait()
	a.jobID = ""
	id, err := a.client.Run(ctx, a.job)
	if err != nil {
		log.Printf("failed to submit load job for %s: %s", a.job.Path, err)
		return true
	}
	a.jobID = id
	return true
}

// Check reports the job's current status. An attempt holding no job id, or
// one whose status query fails, reports FAILED rather than blocking on an
// unreachable job master.
func (a *Attempt) Check(ctx context.Context) models.Status {
	if a.jobID == "" {
		return models.StatusFailed
	}
	info, err := a.client.Status(ctx, a.jobID)
	if err != nil {
		log.Printf("failed to get status for job %s (%s): %s", a.jobID, a.job.Path, err)
		return models.StatusFailed
	}
	return info.Status
}

// Close releases the attempt's job master session. Only the first call
// performs the release; every exit path for an attempt must end in a Close.
// The release error is returned so a leaked session is visible to the
// caller.
func (a *Attempt) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	return a.client.Close()
}
