package workers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/averyholt/descentbackend/fallback"
	"github.com/averyholt/descentbackend/parser"
	"github.com/averyholt/descentbackend/realtime"
)

// blockingResolver parks every fallback call until its context is cancelled,
// keeping a job deterministically in the running state for the test.
var blockingResolver = fallback.ResolverFunc(func(ctx context.Context, _ string, _ fallback.LineContext) ([]fallback.Candidate, error) {
	<-ctx.Done()
	return nil, ctx.Err()
})

func waitForStatus(t *testing.T, w *ParseWorker, jobID, want string) ParseJob {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-deadline:
			job, _ := w.GetJob(jobID)
			t.Fatalf("job %s never reached %s (last: %s)", jobID, want, job.Status)
			return ParseJob{}
		case <-time.After(10 * time.Millisecond):
			if job, ok := w.GetJob(jobID); ok && job.Status == want {
				return job
			}
		}
	}
}

func newTestWorker(t *testing.T, resolver fallback.LineResolver) *ParseWorker {
	t.Helper()
	log := zap.NewNop().Sugar()
	w := NewParseWorker(parser.NewMemoryStore(), resolver, realtime.NewHub(log), 4, 1, time.Hour, log)
	t.Cleanup(w.Stop)
	return w
}

// TestParseWorker_SerializesPerSource verifies a second parse of the same
// source is rejected while the first is still in flight, and that a different
// source is accepted.
func TestParseWorker_SerializesPerSource(t *testing.T) {
	w := newTestWorker(t, blockingResolver)

	// two unrecognized lines: the first parks in the resolver
	pages := []parser.PageInput{{Index: 0, Text: "??? garbled\n??? garbled again"}}

	job1, err := w.Enqueue(ParseRequest{SourceID: 1, Pages: pages, DryRun: true})
	require.NoError(t, err)
	waitForStatus(t, w, job1.ID, StatusRunning)

	_, err = w.Enqueue(ParseRequest{SourceID: 1, Pages: pages, DryRun: true})
	assert.ErrorIs(t, err, ErrSourceBusy)

	// a different source queues fine even while the worker is occupied
	job2, err := w.Enqueue(ParseRequest{SourceID: 2, Pages: []parser.PageInput{{Index: 0, Text: "1-- Adam Smith"}}, DryRun: true})
	require.NoError(t, err)

	// cancelling the running job releases its source
	require.True(t, w.Cancel(job1.ID))
	waitForStatus(t, w, job1.ID, StatusCancelled)

	done := waitForStatus(t, w, job2.ID, StatusCompleted)
	require.NotNil(t, done.Result)
	assert.Equal(t, 1, done.Result.Summary.PeopleCreated)

	_, err = w.Enqueue(ParseRequest{SourceID: 1, Pages: []parser.PageInput{{Index: 0, Text: "1-- Adam Smith"}}, DryRun: true})
	assert.NoError(t, err, "source is free again after cancellation")
}

// TestParseWorker_DryRunCarriesEntities verifies a dry run returns the parsed
// entity sets without touching the shared graph store.
func TestParseWorker_DryRunCarriesEntities(t *testing.T) {
	shared := parser.NewMemoryStore()
	log := zap.NewNop().Sugar()
	w := NewParseWorker(shared, nil, realtime.NewHub(log), 4, 1, time.Hour, log)
	t.Cleanup(w.Stop)

	job, err := w.Enqueue(ParseRequest{
		SourceID: 3,
		Pages:    []parser.PageInput{{Index: 0, Text: "1-- Adam Smith\nsp- Eve Jones\n2-- Ben Smith"}},
		DryRun:   true,
	})
	require.NoError(t, err)

	done := waitForStatus(t, w, job.ID, StatusCompleted)
	require.NotNil(t, done.Result)
	assert.Len(t, done.Result.Individuals, 3)
	assert.Len(t, done.Result.Unions, 1)
	assert.Len(t, done.Result.ChildLinks, 1)
	assert.Empty(t, shared.Individuals(), "dry run must not write the shared store")
}

// TestParseWorker_CancelQueuedJob verifies a job cancelled before a worker
// picks it up is skipped entirely.
func TestParseWorker_CancelQueuedJob(t *testing.T) {
	w := newTestWorker(t, blockingResolver)

	blocker, err := w.Enqueue(ParseRequest{SourceID: 10, Pages: []parser.PageInput{{Index: 0, Text: "???\n???"}}, DryRun: true})
	require.NoError(t, err)
	waitForStatus(t, w, blocker.ID, StatusRunning)

	queued, err := w.Enqueue(ParseRequest{SourceID: 11, Pages: []parser.PageInput{{Index: 0, Text: "1-- Adam Smith"}}, DryRun: true})
	require.NoError(t, err)

	require.True(t, w.Cancel(queued.ID))
	job, ok := w.GetJob(queued.ID)
	require.True(t, ok)
	assert.Equal(t, StatusCancelled, job.Status)

	require.True(t, w.Cancel(blocker.ID))
	waitForStatus(t, w, blocker.ID, StatusCancelled)
}

func TestParseWorker_UnknownJob(t *testing.T) {
	w := newTestWorker(t, nil)
	_, ok := w.GetJob("nope")
	assert.False(t, ok)
	assert.False(t, w.Cancel("nope"))
}
