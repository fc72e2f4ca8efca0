package aggregate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvas-sync/internal/canvas"
	"canvas-sync/internal/concurrency"
	"canvas-sync/internal/domain"
)

var testCreds = canvas.Credentials{BaseURL: "https://canvas.example.edu", APIKey: "k"}

func courses(names ...string) []domain.Course {
	out := make([]domain.Course, len(names))
	for i, n := range names {
		out[i] = domain.Course{ID: int64(i + 1), Name: n, Code: n + "-CODE"}
	}
	return out
}

func TestAggregateIsolatesFailingCourse(t *testing.T) {
	agg := New(concurrency.DefaultOptions(), nil)
	query := func(ctx context.Context, _ canvas.Credentials, c domain.Course) ([]domain.Assignment, error) {
		if c.Name == "B" {
			return nil, errors.New("upstream 500")
		}
		return []domain.Assignment{{ID: c.ID * 10, Name: c.Name + " hw"}}, nil
	}

	results := Aggregate(context.Background(), agg, courses("A", "B", "C"), query, testCreds)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.Len(t, results[0].Items, 1)
	assert.EqualError(t, results[1].Err, "upstream 500")
	assert.NotNil(t, results[1].Items)
	assert.Empty(t, results[1].Items)
	assert.NoError(t, results[2].Err)
	assert.Len(t, results[2].Items, 1)

	merged := MergeAssignments(results)
	require.Len(t, merged, 2)
	assert.Equal(t, "A", merged[0].CourseName)
	assert.Equal(t, "C-CODE", merged[1].CourseCode)

	partial := Partial(results)
	require.NotNil(t, partial)
	assert.Equal(t, 3, partial.Total)
	require.Len(t, partial.Failures, 1)
	assert.Equal(t, int64(2), partial.Failures[0].CourseID)
	assert.Contains(t, partial.Error(), "1 of 3 courses failed: B")
}

func TestAggregateRecoversPanicsAndTimeouts(t *testing.T) {
	agg := New(concurrency.ParallelOptions{BranchTimeout: 50 * time.Millisecond}, nil)
	query := func(ctx context.Context, _ canvas.Credentials, c domain.Course) ([]domain.Announcement, error) {
		switch c.Name {
		case "panics":
			panic("boom")
		case "hangs":
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return []domain.Announcement{{ID: c.ID}}, nil
	}

	results := Aggregate(context.Background(), agg, courses("ok", "panics", "hangs"), query, testCreds)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)

	var perr *concurrency.PanicError
	assert.ErrorAs(t, results[1].Err, &perr)
	assert.ErrorIs(t, results[2].Err, concurrency.ErrBranchTimeout)
	assert.Nil(t, Partial(results[:1]))
}

func TestAggregateRunsBranchesConcurrently(t *testing.T) {
	agg := New(concurrency.ParallelOptions{}, nil)
	var inFlight, peak int32
	query := func(ctx context.Context, _ canvas.Credentials, c domain.Course) ([]int, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return []int{int(c.ID)}, nil
	}

	results := Aggregate(context.Background(), agg, courses("a", "b", "c", "d"), query, testCreds)
	assert.Len(t, results, 4)
	assert.Equal(t, int32(4), atomic.LoadInt32(&peak))
	for i, r := range results {
		assert.Equal(t, []int{i + 1}, r.Items)
	}
}

func TestAggregateNoCourses(t *testing.T) {
	results := Aggregate(context.Background(), New(concurrency.DefaultOptions(), nil), nil,
		func(context.Context, canvas.Credentials, domain.Course) ([]int, error) { return nil, nil }, testCreds)
	assert.Empty(t, results)
	assert.Empty(t, Failures(results))
	assert.NotNil(t, Failures(results))
}

func TestFailedResultsMarksEveryCourse(t *testing.T) {
	err := errors.New("fan-out cancelled")
	results := FailedResults[domain.Assignment](courses("CS", "HIS"), err)

	require.Len(t, results, 2)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, err)
		assert.NotNil(t, r.Items)
		assert.Empty(t, r.Items)
	}
	require.NotNil(t, Partial(results))
	assert.Len(t, Partial(results).Failures, 2)
}
