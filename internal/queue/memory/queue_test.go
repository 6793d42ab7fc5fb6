package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/timeline-scraper/internal/timeline"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	result := make(chan timeline.Job, 1)
	errCh := make(chan error, 1)

	go func() {
		job, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- job
	}()

	require.NoError(t, q.Enqueue(context.Background(), timeline.Job{ID: "job-1", URL: "https://x.com/jack"}))
	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		require.Equal(t, "job-1", got.ID)
		require.Equal(t, "https://x.com/jack", got.URL)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return job")
	}
}

func TestQueueLen(t *testing.T) {
	t.Parallel()

	q := NewQueue(3)
	require.Zero(t, q.Len())
	require.NoError(t, q.Enqueue(context.Background(), timeline.Job{ID: "a"}))
	require.NoError(t, q.Enqueue(context.Background(), timeline.Job{ID: "b"}))
	require.Equal(t, 2, q.Len())

	_, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, q.Len())
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	qDequeue := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := qDequeue.Dequeue(ctx)
	require.EqualError(t, err, "dequeue canceled: context canceled")

	qEnqueue := NewQueue(1)
	require.NoError(t, qEnqueue.Enqueue(context.Background(), timeline.Job{ID: "primed"}))
	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err = qEnqueue.Enqueue(ctx, timeline.Job{ID: "overflow"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueClose(t *testing.T) {
	t.Parallel()

	q := NewQueue(2)
	require.NoError(t, q.Enqueue(context.Background(), timeline.Job{ID: "queued"}))
	q.Close()
	q.Close()

	require.ErrorIs(t, q.Enqueue(context.Background(), timeline.Job{}), timeline.ErrQueueClosed)

	job, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "queued", job.ID)

	_, err = q.Dequeue(context.Background())
	require.ErrorIs(t, err, timeline.ErrQueueClosed)
}

func TestQueueCloseReleasesBlockedEnqueue(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	require.NoError(t, q.Enqueue(context.Background(), timeline.Job{ID: "primed"}))

	errCh := make(chan error, 1)
	go func() {
		errCh <- q.Enqueue(context.Background(), timeline.Job{ID: "blocked"})
	}()
	// Give the second Enqueue time to block on the full channel.
	time.Sleep(20 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		q.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Close waited on a blocked Enqueue")
	}

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, timeline.ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("blocked Enqueue was not released by Close")
	}

	job, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "primed", job.ID)
	_, err = q.Dequeue(context.Background())
	require.ErrorIs(t, err, timeline.ErrQueueClosed)
}
