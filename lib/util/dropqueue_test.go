package util

import (
	"reflect"
	"sync"
	"testing"
	"time"
)

// TestBasicOperations tests basic push and pop functionality
func TestBasicOperations(t *testing.T) {
	q := NewDropQueue[int](16)
	defer q.Close()

	// Push 10 items
	for i := 0; i < 10; i++ {
		ok, evicted := q.Push(i)
		if !ok {
			t.Fatalf("Failed to push item %d", i)
		}
		if evicted {
			t.Fatalf("Item evicted while pushing %d into a queue with free capacity", i)
		}
	}

	if q.Len() != 10 {
		t.Errorf("Expected length 10, got %d", q.Len())
	}

	// Pop 10 items
	for i := 0; i < 10; i++ {
		val, ok := q.TryPop()
		if !ok {
			t.Fatalf("Queue empty while popping item %d", i)
		}
		if val != i {
			t.Errorf("Expected %d, got %v", i, val)
		}
	}

	// Make sure queue is empty
	if val, ok := q.TryPop(); ok {
		t.Errorf("Queue should be empty, but got %v", val)
	}
}

// TestDropOldest verifies that a full queue keeps the most recent elements in order
func TestDropOldest(t *testing.T) {
	const capacity = 4
	q := NewDropQueue[int](capacity)

	evictions := 0
	for i := 0; i < 10; i++ {
		if _, evicted := q.Push(i); evicted {
			evictions++
		}
	}

	if evictions != 10-capacity {
		t.Errorf("Expected %d evictions, got %d", 10-capacity, evictions)
	}
	if q.Dropped() != uint64(10-capacity) {
		t.Errorf("Expected dropped counter %d, got %d", 10-capacity, q.Dropped())
	}

	expected := []int{6, 7, 8, 9}
	if got := q.Snapshot(); !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}

	// interleave pops and pushes across the ring boundary
	q.TryPop()
	q.Push(10)
	q.Push(11)
	expected = []int{8, 9, 10, 11}
	if got := q.Snapshot(); !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

// TestCapacityOne verifies the degenerate queue always holds the latest element
func TestCapacityOne(t *testing.T) {
	q := NewDropQueue[string](0) // clamped to 1

	if q.Cap() != 1 {
		t.Fatalf("Expected capacity 1, got %d", q.Cap())
	}

	q.Push("a")
	q.Push("b")
	q.Push("c")

	val, ok := q.TryPop()
	if !ok || val != "c" {
		t.Errorf("Expected 'c', got %q (ok=%v)", val, ok)
	}
}

// TestCloseQueue verifies closing behavior
func TestCloseQueue(t *testing.T) {
	q := NewDropQueue[int](8)

	// Push some items
	for i := 0; i < 5; i++ {
		q.Push(i)
	}

	// Close the queue
	q.Close()

	if !q.IsClosed() {
		t.Error("Queue should report closed")
	}

	// Verify we can't push after closing
	if ok, _ := q.Push(100); ok {
		t.Error("Should not be able to push after queue is closed")
	}

	// Verify we can still read existing items
	for i := 0; i < 5; i++ {
		val, ok := q.TryPop()
		if !ok {
			t.Fatalf("Missing item %d after close", i)
		}
		if val != i {
			t.Errorf("Expected %d, got %v", i, val)
		}
	}

	// Close must wake up a waiting consumer
	select {
	case <-q.Ready():
	case <-time.After(100 * time.Millisecond):
		t.Error("Ready was not signalled by Close")
	}
}

// TestDiscard verifies that discarding empties the queue
func TestDiscard(t *testing.T) {
	q := NewDropQueue[int](4)
	for i := 0; i < 6; i++ {
		q.Push(i)
	}

	if n := q.Discard(); n != 4 {
		t.Errorf("Expected 4 discarded items, got %d", n)
	}
	if q.Len() != 0 {
		t.Errorf("Expected empty queue, got length %d", q.Len())
	}

	q.Push(42)
	if val, ok := q.TryPop(); !ok || val != 42 {
		t.Errorf("Expected 42 after discard, got %v (ok=%v)", val, ok)
	}
}

// TestSelectStatement tests the ready channel in a select statement
func TestSelectStatement(t *testing.T) {
	q := NewDropQueue[string](4)
	defer q.Close()

	// Test select with empty queue should not block when other case is ready
	otherChan := make(chan int, 1)
	otherChan <- 42

	select {
	case <-q.Ready():
		t.Errorf("Should not be ready while empty")
	case <-otherChan:
		// Expected path
	default:
		t.Error("select defaulted, should have received from otherChan")
	}

	q.Push("test")

	select {
	case <-q.Ready():
		val, ok := q.TryPop()
		if !ok || val != "test" {
			t.Errorf("Expected 'test', got %v", val)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Timeout waiting for ready signal")
	}
}

// TestOrderingUnderLoad tests that a concurrent consumer sees strictly increasing
// values even when the producer is faster and elements are dropped
func TestOrderingUnderLoad(t *testing.T) {
	q := NewDropQueue[int](8)

	const itemCount = 100000

	var wg sync.WaitGroup
	wg.Add(1)

	received := 0
	prev := -1
	outOfOrderCount := 0

	go func() {
		defer wg.Done()
		for {
			val, ok := q.TryPop()
			if ok {
				if val <= prev {
					outOfOrderCount++
				}
				prev = val
				received++
				continue
			}
			if q.IsClosed() {
				// drain what was pushed right before Close
				if q.Len() == 0 {
					return
				}
				continue
			}
			select {
			case <-q.Ready():
			case <-time.After(time.Second):
				t.Errorf("Timeout waiting for items")
				return
			}
		}
	}()

	for i := 0; i < itemCount; i++ {
		q.Push(i)
	}
	q.Close()
	wg.Wait()

	if outOfOrderCount > 0 {
		t.Errorf("Found %d items out of order", outOfOrderCount)
	}
	if uint64(received)+q.Dropped() != itemCount {
		t.Errorf("Received %d + dropped %d != pushed %d", received, q.Dropped(), itemCount)
	}
	if prev != itemCount-1 {
		t.Errorf("Expected the newest item %d to be delivered, last was %d", itemCount-1, prev)
	}
}

// TestBackoff tests the capped exponential backoff helper
func TestBackoff(t *testing.T) {
	testCases := []struct {
		name     string
		initial  time.Duration
		max      time.Duration
		attempt  int
		jitter   float64
		expected time.Duration
	}{
		{"First attempt", 100 * time.Millisecond, time.Second, 1, 0, 100 * time.Millisecond},
		{"Doubling", 100 * time.Millisecond, time.Second, 3, 0, 400 * time.Millisecond},
		{"Capped", 100 * time.Millisecond, time.Second, 10, 0, time.Second},
		{"Constant without max", 100 * time.Millisecond, 0, 5, 0, 100 * time.Millisecond},
		{"Positive jitter", 100 * time.Millisecond, time.Second, 1, 1, 110 * time.Millisecond},
		{"Negative jitter", 100 * time.Millisecond, time.Second, 1, -1, 90 * time.Millisecond},
		{"Jitter clamped", 100 * time.Millisecond, time.Second, 1, 5, 110 * time.Millisecond},
		{"Zero initial", 0, time.Second, 3, 0, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Backoff(tc.initial, tc.max, tc.attempt, tc.jitter); got != tc.expected {
				t.Errorf("Expected %v, got %v", tc.expected, got)
			}
		})
	}
}

// BenchmarkPushPop benchmarks the queue with a single producer and consumer
func BenchmarkPushPop(b *testing.B) {
	q := NewDropQueue[int](64)
	defer q.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, ok := q.TryPop(); ok {
				continue
			}
			if q.IsClosed() {
				return
			}
			<-q.Ready()
		}
	}()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q.Push(i)
	}
	q.Close()
	<-done
}
