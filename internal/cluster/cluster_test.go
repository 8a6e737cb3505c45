package cluster

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lumenvid/batchscan/internal/queue"
)

// drain continuously pops ints from q into allocated (guarded by mu),
// simulating a loader that keeps consuming load_work so the node's
// backlog never permanently saturates. It exits when done is closed.
func drain(q *queue.Queue[int], mu *sync.Mutex, allocated *[]int, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}
		v := q.Pop()
		mu.Lock()
		*allocated = append(*allocated, v)
		mu.Unlock()
	}
}

func TestMasterWorkerAllocatesEveryItemExactlyOnce(t *testing.T) {
	// Spec §8 work-item uniqueness property, exercised over an inproc
	// ROUTER/DEALER pair standing in for two cluster nodes.
	const totalItems = 5
	const addr = "inproc://cluster-test-1"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var allocated []int
	done := make(chan struct{})

	masterLoadWork := queue.New[int](0)
	workerLoadWork := queue.New[int](0)

	go drain(masterLoadWork, &mu, &allocated, done)
	go drain(workerLoadWork, &mu, &allocated, done)

	masterCfg := MasterConfig{
		Addr:               addr,
		NumNodes:           2,
		TotalItems:         totalItems,
		GPUsPerNode:        1,
		TasksInQueuePerGPU: 1,
		LocalLoadWork:      masterLoadWork,
	}
	workerCfg := WorkerConfig{
		Addr:               addr,
		GPUsPerNode:        1,
		TasksInQueuePerGPU: 1,
		LocalLoadWork:      workerLoadWork,
	}

	var wg sync.WaitGroup
	wg.Add(2)
	var masterErr, workerErr error
	go func() {
		defer wg.Done()
		masterErr = RunMaster(ctx, masterCfg)
	}()
	// give the ROUTER a moment to bind before the DEALER dials.
	time.Sleep(20 * time.Millisecond)
	go func() {
		defer wg.Done()
		workerErr = RunWorker(ctx, workerCfg)
	}()

	waitCh := make(chan struct{})
	go func() { wg.Wait(); close(waitCh) }()

	select {
	case <-waitCh:
	case <-time.After(5 * time.Second):
		t.Fatal("master/worker allocation did not complete in time")
	}

	require.NoError(t, masterErr)
	require.NoError(t, workerErr)

	close(done)
	mu.Lock()
	defer mu.Unlock()
	sort.Ints(allocated)
	require.Equal(t, []int{0, 1, 2, 3, 4}, allocated)
}
