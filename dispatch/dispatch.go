// Package dispatch drives distributed load jobs against the CacheFS job
// master under a fixed concurrency ceiling.
//
// The job master only exposes pull-style submission and status queries, so
// the pool implements its own admission control: a full pool repeatedly
// sweeps the in-flight set, polling each job, until a slot frees. Jobs
// whose submission or execution fails transiently are resubmitted up to
// three times and then abandoned; abandoning one file does not fail the
// dispatch. Nothing is persisted: a crash loses the in-flight bookkeeping
// and the load has to be driven again from scratch.
package dispatch

import (
	"context"
	"io"

	"github.com/cachefs/loadctl/metastore"
)

// A Loader runs one whole distributed load.
type Loader struct {
	Walker *Walker
}

// NewLoader creates a Loader that resolves metadata through fs, bounds jobs
// with pool, and prints the per-file lines to out.
func NewLoader(fs *metastore.Client, pool *Pool, out io.Writer) *Loader {
	return &Loader{Walker: &Walker{FS: fs, Pool: pool, Out: out}}
}

// Load walks path, admitting one load job per not-fully-cached file, then
// waits for every admitted job to complete, be canceled, or run out of
// submissions. Per-file outcomes are not part of the result; the returned
// error covers structural failures only.
func (l *Loader) Load(ctx context.Context, path string, replication int) error {
	if err := l.Walker.Walk(ctx, path, replication); err != nil {
		return err
	}
	return l.Walker.Pool.Drain(ctx)
}
