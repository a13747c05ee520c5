package workerpool

import (
	"errors"
	"sort"
	"sync"
	"testing"
)

func TestDispatchVisitsEveryIndexExactlyOnce(t *testing.T) {
	const n = 37
	var mu sync.Mutex
	seen := make(map[int]int)

	err := Dispatch(4, n, func(_ int, i int) error {
		mu.Lock()
		seen[i]++
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(seen) != n+1 {
		t.Fatalf("visited %d distinct indices, want %d", len(seen), n+1)
	}
	for i := 0; i <= n; i++ {
		if seen[i] != 1 {
			t.Errorf("index %d visited %d times, want 1", i, seen[i])
		}
	}
}

func TestDispatchSingleThreadIsInOrder(t *testing.T) {
	const n = 9
	var order []int
	err := Dispatch(1, n, func(_ int, i int) error {
		order = append(order, i)
		return nil
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !sort.IntsAreSorted(order) {
		t.Errorf("single-worker dispatch out of order: %v", order)
	}
	if len(order) != n+1 {
		t.Fatalf("got %d indices, want %d", len(order), n+1)
	}
}

func TestDispatchClampsThreadCount(t *testing.T) {
	err := Dispatch(0, 3, func(_ int, _ int) error { return nil })
	if err != nil {
		t.Fatalf("Dispatch with nThreads=0: %v", err)
	}
}

func TestDispatchPropagatesFirstError(t *testing.T) {
	sentinel := errors.New("boom")
	err := Dispatch(4, 20, func(_ int, i int) error {
		if i == 5 {
			return sentinel
		}
		return nil
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("Dispatch error = %v, want %v", err, sentinel)
	}
}

func TestNumWorkersClamps(t *testing.T) {
	cases := map[int]int{0: 1, -3: 1, 1: 1, 8: 8}
	for in, want := range cases {
		if got := NumWorkers(in); got != want {
			t.Errorf("NumWorkers(%d) = %d, want %d", in, got, want)
		}
	}
}
