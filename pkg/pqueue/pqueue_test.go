package pqueue_test

import (
	"math/rand/v2"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/thumbs/pkg/pqueue"
)

func Test_Dequeue_Returns_Highest_Priority_First_When_Single_Goroutine(t *testing.T) {
	t.Parallel()

	q := pqueue.New[int](4)

	for _, p := range []int{5, 1, 9, 3} {
		if !q.Enqueue(p, p) {
			t.Fatalf("Enqueue(%d) rejected", p)
		}
	}

	var got []int
	for range 4 {
		got = append(got, q.Dequeue())
	}

	if diff := cmp.Diff([]int{9, 5, 3, 1}, got); diff != "" {
		t.Fatalf("dequeue order mismatch (-want +got):\n%s", diff)
	}
}

func Test_Enqueue_Returns_False_When_Queue_Is_Full(t *testing.T) {
	t.Parallel()

	q := pqueue.New[string](2)

	if !q.Enqueue("a", 1) || !q.Enqueue("b", 2) {
		t.Fatal("first two enqueues must succeed")
	}

	if q.Enqueue("c", 3) {
		t.Fatal("third enqueue must be rejected")
	}

	if got, want := q.Len(), 2; got != want {
		t.Fatalf("Len()=%d, want=%d", got, want)
	}

	if got, want := q.Dequeue(), "b"; got != want {
		t.Fatalf("Dequeue()=%q, want=%q", got, want)
	}
}

func Test_Enqueue_Returns_False_When_Capacity_Is_Zero(t *testing.T) {
	t.Parallel()

	q := pqueue.New[int](0)

	if q.Enqueue(1, 1) {
		t.Fatal("enqueue into zero-capacity queue must fail")
	}

	if got, want := q.Cap(), 0; got != want {
		t.Fatalf("Cap()=%d, want=%d", got, want)
	}
}

func Test_New_Panics_When_Capacity_Is_Negative(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()

	pqueue.New[int](-1)
}

func Test_TryDequeue_Returns_False_When_Empty(t *testing.T) {
	t.Parallel()

	q := pqueue.New[int](1)

	if _, ok := q.TryDequeue(); ok {
		t.Fatal("TryDequeue on empty queue must report false")
	}

	q.Enqueue(7, 0)

	got, ok := q.TryDequeue()
	if !ok || got != 7 {
		t.Fatalf("TryDequeue()=(%d, %v), want=(7, true)", got, ok)
	}
}

func Test_Heap_Stays_Ordered_When_Operations_Are_Interleaved(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))
	q := pqueue.New[int](64)

	var model []int

	for range 2000 {
		if rng.IntN(3) > 0 && len(model) < 64 {
			p := rng.IntN(20)
			if !q.Enqueue(p, p) {
				t.Fatalf("enqueue rejected at len %d", len(model))
			}

			model = append(model, p)
		} else if len(model) > 0 {
			got := q.Dequeue()
			want := slices.Max(model)

			if got != want {
				t.Fatalf("Dequeue()=%d, want max=%d", got, want)
			}

			model = slices.Delete(model, slices.Index(model, want), slices.Index(model, want)+1)
		}

		if !pqueue.HeapOrderedForTesting(q) {
			t.Fatal("heap order violated")
		}

		if got, want := q.Len(), len(model); got != want {
			t.Fatalf("Len()=%d, want=%d", got, want)
		}
	}
}

func Test_Dequeue_Blocks_Until_Enqueue_When_Empty(t *testing.T) {
	t.Parallel()

	q := pqueue.New[int](1)
	got := make(chan int, 1)

	go func() {
		got <- q.Dequeue()
	}()

	select {
	case v := <-got:
		t.Fatalf("Dequeue returned %d from empty queue", v)
	case <-time.After(20 * time.Millisecond):
	}

	q.Enqueue(42, 0)

	select {
	case v := <-got:
		if v != 42 {
			t.Fatalf("Dequeue()=%d, want=42", v)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Dequeue did not wake up after Enqueue")
	}
}

func Test_Every_Item_Is_Delivered_Exactly_Once_When_Many_Producers_And_Consumers(t *testing.T) {
	t.Parallel()

	const (
		producers   = 8
		perProducer = 500
		perConsumer = 50
		consumers   = producers * perProducer / perConsumer
	)

	// Small capacity forces producers through the rejection path.
	q := pqueue.New[int](16)

	var wg sync.WaitGroup

	results := make(chan []int, consumers)

	for range consumers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			got := make([]int, 0, perConsumer)
			for range perConsumer {
				got = append(got, q.Dequeue())
			}

			results <- got
		}()
	}

	for p := range producers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range perProducer {
				item := p*perProducer + i
				for !q.Enqueue(item, item%7) {
					time.Sleep(time.Microsecond)
				}
			}
		}()
	}

	wg.Wait()
	close(results)

	seen := make(map[int]int, producers*perProducer)

	for batch := range results {
		for _, item := range batch {
			seen[item]++
		}
	}

	require.Len(t, seen, producers*perProducer, "items lost")

	for item, n := range seen {
		require.Equalf(t, 1, n, "item %d delivered %d times", item, n)
	}

	require.Equal(t, 0, q.Len())
}
