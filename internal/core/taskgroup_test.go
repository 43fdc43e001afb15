package core

import (
	"context"
	"slices"
	"testing"
	"time"
)

func TestAggregate(t *testing.T) {
	tests := []struct {
		codes []int
		want  int
	}{
		{nil, 0},
		{[]int{0, 0, 0}, 0},
		{[]int{0, 1, 0}, 1},
		{[]int{0, 2, 3}, 2},
	}
	for _, tt := range tests {
		if got := Aggregate(tt.codes...); got != tt.want {
			t.Errorf("Aggregate(%v) = %d, want %d", tt.codes, got, tt.want)
		}
	}
}

func TestTaskGroupResultsInStartOrder(t *testing.T) {
	g := NewTaskGroup(context.Background(), RunAll)
	// Later tasks finish first
	delays := []time.Duration{30 * time.Millisecond, 15 * time.Millisecond, 0}
	codes := []int{0, 2, 3}
	names := []string{"a", "b", "c"}
	for i := range names {
		g.Go(names[i], func(context.Context) int {
			time.Sleep(delays[i])
			return codes[i]
		})
	}

	results := g.Wait()
	want := Results{{"a", 0}, {"b", 2}, {"c", 3}}
	if !slices.Equal(results, want) {
		t.Fatalf("results = %v, want %v", results, want)
	}
	if results.Code() != 2 {
		t.Errorf("Code = %d, want 2", results.Code())
	}
	if failed := results.Failed(); !slices.Equal(failed, []string{"b", "c"}) {
		t.Errorf("Failed = %v", failed)
	}
}

func TestTaskGroupRunAllDoesNotCancel(t *testing.T) {
	g := NewTaskGroup(context.Background(), RunAll)
	g.Go("fail", func(context.Context) int { return 1 })
	g.Go("slow", func(ctx context.Context) int {
		time.Sleep(20 * time.Millisecond)
		if ctx.Err() != nil {
			return 9
		}
		return 0
	})

	results := g.Wait()
	if results[1].Code != 0 {
		t.Errorf("sibling saw a cancelled context under RunAll: %v", results)
	}
	if results.Code() != 1 {
		t.Errorf("Code = %d, want 1", results.Code())
	}
}

func TestTaskGroupCancelOnFailure(t *testing.T) {
	g := NewTaskGroup(context.Background(), CancelOnFailure)
	g.Go("blocked", func(ctx context.Context) int {
		select {
		case <-ctx.Done():
			return 7
		case <-time.After(5 * time.Second):
			return 0
		}
	})
	g.Go("fail", func(context.Context) int { return 1 })

	done := make(chan Results, 1)
	go func() { done <- g.Wait() }()

	select {
	case results := <-done:
		if results[0].Code != 7 {
			t.Errorf("blocked task was not cancelled: %v", results)
		}
		if results.Code() != 7 {
			t.Errorf("Code = %d, want first failure in start order (7)", results.Code())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("group did not cancel after the first failure")
	}
}

func TestTaskGroupEmpty(t *testing.T) {
	results := NewTaskGroup(context.Background(), RunAll).Wait()
	if len(results) != 0 || results.Code() != 0 {
		t.Errorf("empty group = %v", results)
	}
}
