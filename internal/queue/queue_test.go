package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFIFOOrderPerProducer(t *testing.T) {
	q := New[int](0)
	for i := 0; i < 5; i++ {
		q.Push(i)
	}
	for i := 0; i < 5; i++ {
		require.Equal(t, i, q.Pop())
	}
}

func TestBlockingPopWaitsForPush(t *testing.T) {
	q := New[int](0)
	done := make(chan int, 1)
	go func() {
		done <- q.Pop()
	}()

	select {
	case <-done:
		t.Fatal("Pop returned before any Push")
	case <-time.After(50 * time.Millisecond):
	}

	q.Push(42)

	select {
	case v := <-done:
		require.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake after Push")
	}
}

func TestBoundedPushBlocksUntilSpaceFreed(t *testing.T) {
	q := New[int](1)
	q.Push(1) // fills capacity

	pushed := make(chan struct{})
	go func() {
		q.Push(2)
		close(pushed)
	}()

	select {
	case <-pushed:
		t.Fatal("Push succeeded while queue was at capacity")
	case <-time.After(50 * time.Millisecond):
	}

	require.Equal(t, 1, q.Pop()) // frees a slot

	select {
	case <-pushed:
	case <-time.After(time.Second):
		t.Fatal("Push did not unblock once space was freed")
	}
}

func TestConcurrentProducersConsumersConserveItems(t *testing.T) {
	q := New[int](8)
	const producers, perProducer = 6, 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(base*perProducer + i)
			}
		}(p)
	}

	total := producers * perProducer
	seen := make(chan int, total)
	var consumeWg sync.WaitGroup
	for c := 0; c < 3; c++ {
		consumeWg.Add(1)
		go func() {
			defer consumeWg.Done()
			for i := 0; i < total/3; i++ {
				seen <- q.Pop()
			}
		}()
	}

	wg.Wait()
	consumeWg.Wait()
	close(seen)

	count := 0
	for range seen {
		count++
	}
	require.Equal(t, total, count)
}

func TestSentinelPassesThroughUnchanged(t *testing.T) {
	q := New[int](0)
	q.Push(-1)
	require.Equal(t, -1, q.Pop())
}
