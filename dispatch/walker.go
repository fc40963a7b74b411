package dispatch

import (
	"context"
	"fmt"
	"io"

	metrics "github.com/Shyp/go-simple-metrics"

	"github.com/cachefs/loadctl/metastore"
	"github.com/cachefs/loadctl/models"
)

// A Walker enumerates a CacheFS subtree and feeds every file that is not
// fully cached to the pool.
type Walker struct {
	FS   *metastore.Client
	Pool *Pool
	Out  io.Writer
}

// Walk traverses path depth-first in the master's listing order.
// Directories recurse; files already at 100% residency are reported and
// skipped; every other file is admitted to the pool, which blocks while it
// is at capacity. Metadata errors abort the walk.
func (w *Walker) Walk(ctx context.Context, path string, replication int) error {
	st, err := w.FS.File.Status(ctx, path)
	if err != nil {
		return err
	}
	if !st.Folder {
		return w.produce(ctx, *st, replication)
	}
	children, err := w.FS.File.List(ctx, path)
	if err != nil {
		return err
	}
	for _, child := range children {
		if child.Folder {
			if err := w.Walk(ctx, child.Path, replication); err != nil {
				return err
			}
			continue
		}
		if err := w.produce(ctx, child, replication); err != nil {
			return err
		}
	}
	return nil
}

func (w *Walker) produce(ctx context.Context, st models.FileStatus, replication int) error {
	if st.InMemoryPercentage == 100 {
		fmt.Fprintf(w.Out, "%s is already fully loaded\n", st.Path)
		go metrics.Increment("load.skipped")
		return nil
	}
	if err := w.Pool.Admit(ctx, models.LoadJob{Path: st.Path, Replication: replication}); err != nil {
		return err
	}
	fmt.Fprintf(w.Out, "%s loading\n", st.Path)
	return nil
}
