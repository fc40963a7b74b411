package dispatch

import (
	"context"
	"fmt"
	"time"

	godebug "github.com/Shyp/go-debug"
	metrics "github.com/Shyp/go-simple-metrics"
	"github.com/grafana/dskit/backoff"

	"github.com/cachefs/loadctl/jobmaster"
	"github.com/cachefs/loadctl/models"
)

var debug = godebug.Debug("loadctl:dispatch")

// DefaultCapacity is the default ceiling on in-flight jobs.
const DefaultCapacity = 1000

// sweepBackoff paces the polling passes over the in-flight attempts.
// MaxRetries stays zero: a sweep polls until it frees a slot, however long
// that takes.
var sweepBackoff = backoff.Config{
	MinBackoff: 50 * time.Millisecond,
	MaxBackoff: 2 * time.Second,
}

// A Dialer opens a dedicated job master session for one attempt.
type Dialer func() (*jobmaster.Client, error)

// A Pool holds the set of in-flight attempts and keeps its size at or below
// a fixed capacity. The job master has no blocking submission primitive, so
// the pool is the admission control: Admit does not return while the pool
// is full, and Drain does not return while any job is outstanding.
//
// All methods must be called from a single goroutine. The concurrency this
// tool manages lives on the job master, not in this process.
type Pool struct {
	dial     Dialer
	capacity int
	inFlight []*Attempt
}

// NewPool creates a Pool that admits at most capacity concurrent jobs,
// opening a session per attempt with dial. A capacity below 1 falls back to
// DefaultCapacity.
func NewPool(capacity int, dial Dialer) *Pool {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Pool{dial: dial, capacity: capacity}
}

// Len returns the number of in-flight attempts.
func (p *Pool) Len() int {
	return len(p.inFlight)
}

// Admit submits a load job for one file, first sweeping until a slot frees
// if the pool is full. A failure to open the job master session is
// structural and aborts the dispatch.
func (p *Pool) Admit(ctx context.Context, job models.LoadJob) error {
	if len(p.inFlight) >= p.capacity {
		if err := p.waitOne(ctx); err != nil {
			return err
		}
	}
	client, err := p.dial()
	if err != nil {
		return err
	}
	att := newAttempt(ctx, client, job)
	att.Submit(ctx)
	p.inFlight = append(p.inFlight, att)
	go metrics.Increment("load.submitted")
	return nil
}

// waitOne polls every in-flight attempt until a full pass has removed at
// least one of them. Each pass partitions the attempts into the retained
// subset (still pending, or resubmitted after a failure) and the removed
// ones (finished, or out of submissions); passes that make no progress wait
// on a capped backoff before polling again. Completion order is unrelated
// to submission order, so every pass visits the whole set.
func (p *Pool) waitOne(ctx context.Context) error {
	wait := backoff.New(ctx, sweepBackoff)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		retained := p.inFlight[:0]
		removed := 0
		var sweepErr error
		for _, att := range p.inFlight {
			if sweepErr != nil {
				retained = append(retained, att)
				continue
			}
			switch st := att.Check(ctx); st {
			case models.StatusCreated, models.StatusRunning:
				retained = append(retained, att)
			case models.StatusCompleted, models.StatusCanceled:
				if err := att.Close(); err != nil {
					sweepErr = err
				}
				removed++
				go metrics.Increment("load.finished")
			case models.StatusFailed:
				if att.Submit(ctx) {
					retained = append(retained, att)
					go metrics.Increment("load.resubmitted")
				} else {
					if err := att.Close(); err != nil {
						sweepErr = err
					}
					removed++
				}
			default:
				retained = append(retained, att)
				sweepErr = fmt.Errorf("dispatch: unexpected job status %q", st)
			}
		}
		p.inFlight = retained
		if sweepErr != nil {
			return sweepErr
		}
		if removed > 0 {
			debug("sweep removed %d attempts, %d still in flight", removed, len(p.inFlight))
			return nil
		}
		wait.Wait()
	}
}

// Drain sweeps until no attempts remain in flight. A job the master reports
// RUNNING forever blocks Drain forever; there is deliberately no deadline
// here (see the package documentation).
func (p *Pool) Drain(ctx context.Context) error {
	for len(p.inFlight) > 0 {
		if err := p.waitOne(ctx); err != nil {
			return err
		}
	}
	return nil
}
