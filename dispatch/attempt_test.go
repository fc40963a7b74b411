package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cachefs/loadctl/jobmaster"
	"github.com/cachefs/loadctl/models"
	"github.com/cachefs/loadctl/testserver"
)

func dialAttempt(t *testing.T, s *testserver.Server, path string) *Attempt {
	t.Helper()
	client, err := jobmaster.Dial("", s.URL)
	require.NoError(t, err)
	return newAttempt(context.Background(), client, models.LoadJob{Path: path, Replication: 1})
}

func TestAttemptGivesUpAfterThreeSubmissions(t *testing.T) {
	t.Parallel()
	s := testserver.New()
	defer s.Close()
	s.FailNextRuns(10)
	att := dialAttempt(t, s, "/data/a")
	ctx := context.Background()
	submits := 0
	for att.Submit(ctx) {
		submits++
	}
	require.Equal(t, 3, submits)
	require.Equal(t, 3, s.RunRequests())
	// the budget stays spent
	require.False(t, att.Submit(ctx))
	require.Equal(t, 3, s.RunRequests())
}

func TestAttemptFailedSubmissionReportsFailed(t *testing.T) {
	t.Parallel()
	s := testserver.New()
	defer s.Close()
	s.FailNextRuns(1)
	att := dialAttempt(t, s, "/data/a")
	ctx := context.Background()
	require.True(t, att.Submit(ctx))
	require.Equal(t, models.StatusFailed, att.Check(ctx))
}

func TestAttemptCheckWithoutJobID(t *testing.T) {
	t.Parallel()
	s := testserver.New()
	defer s.Close()
	att := dialAttempt(t, s, "/data/a")
	require.Equal(t, models.StatusFailed, att.Check(context.Background()))
}

func TestAttemptCheckTransportErrorReportsFailed(t *testing.T) {
	t.Parallel()
	s := testserver.New()
	defer s.Close()
	att := dialAttempt(t, s, "/data/a")
	att.jobID = "no-such-job"
	require.Equal(t, models.StatusFailed, att.Check(context.Background()))
}

func TestAttemptCloseOnce(t *testing.T) {
	t.Parallel()
	s := testserver.New()
	defer s.Close()
	att := dialAttempt(t, s, "/data/a")
	require.NoError(t, att.Close())
	require.NoError(t, att.Close())
	_, closed := s.Sessions()
	require.Equal(t, 1, closed)
}

func TestAttemptCloseErrorPropagates(t *testing.T) {
	t.Parallel()
	s := testserver.New()
	defer s.Close()
	att := dialAttempt(t, s, "/data/a")
	s.FailClose()
	require.Error(t, att.Close())
	// the release already happened; a retry must not hit the master again
	require.NoError(t, att.Close())
}
