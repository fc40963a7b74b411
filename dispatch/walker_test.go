package dispatch

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cachefs/loadctl/metastore"
	"github.com/cachefs/loadctl/rest"
	"github.com/cachefs/loadctl/testserver"
)

func newTestWalker(s *testserver.Server, capacity int, out *bytes.Buffer) *Walker {
	return &Walker{
		FS:   metastore.NewClient("", s.URL),
		Pool: newServerPool(s, capacity),
		Out:  out,
	}
}

func TestWalkSkipsFullyLoadedFiles(t *testing.T) {
	t.Parallel()
	s := testserver.New()
	defer s.Close()
	s.AddDir("/data")
	s.AddFile("/data/a", 0)
	s.AddFile("/data/b", 30)
	s.AddFile("/data/c", 100)
	out := new(bytes.Buffer)
	w := newTestWalker(s, 10, out)
	require.NoError(t, w.Walk(context.Background(), "/data", 1))
	want := "/data/a loading\n/data/b loading\n/data/c is already fully loaded\n"
	require.Equal(t, want, out.String())
	subs := s.Submissions()
	require.Len(t, subs, 2)
	require.Equal(t, "/data/a", subs[0].Path)
	require.Equal(t, "/data/b", subs[1].Path)
}

func TestWalkSingleFileRoot(t *testing.T) {
	t.Parallel()
	s := testserver.New()
	defer s.Close()
	s.AddFile("/data/only", 0)
	out := new(bytes.Buffer)
	w := newTestWalker(s, 10, out)
	require.NoError(t, w.Walk(context.Background(), "/data/only", 3))
	require.Equal(t, "/data/only loading\n", out.String())
	subs := s.Submissions()
	require.Len(t, subs, 1)
	require.Equal(t, 3, subs[0].Replication)
}

func TestWalkNestedDirectoriesDepthFirst(t *testing.T) {
	t.Parallel()
	s := testserver.New()
	defer s.Close()
	s.AddDir("/data")
	s.AddFile("/data/a", 0)
	s.AddDir("/data/sub")
	s.AddFile("/data/sub/b", 0)
	s.AddFile("/data/z", 0)
	out := new(bytes.Buffer)
	w := newTestWalker(s, 10, out)
	require.NoError(t, w.Walk(context.Background(), "/data", 1))
	subs := s.Submissions()
	require.Len(t, subs, 3)
	require.Equal(t, "/data/a", subs[0].Path)
	require.Equal(t, "/data/sub/b", subs[1].Path)
	require.Equal(t, "/data/z", subs[2].Path)
}

func TestWalkRootNotFound(t *testing.T) {
	t.Parallel()
	s := testserver.New()
	defer s.Close()
	out := new(bytes.Buffer)
	w := newTestWalker(s, 10, out)
	err := w.Walk(context.Background(), "/missing", 1)
	require.Error(t, err)
	var rerr *rest.Error
	require.True(t, errors.As(err, &rerr))
	require.Equal(t, http.StatusNotFound, rerr.StatusCode)
	require.Empty(t, s.Submissions())
	require.Empty(t, out.String())
}
