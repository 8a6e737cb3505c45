package cluster

import (
	"context"
	"fmt"
	"runtime"

	"github.com/go-zeromq/zmq4"
	"go.uber.org/zap"

	"github.com/lumenvid/batchscan/internal/queue"
	"github.com/lumenvid/batchscan/internal/workitem"
)

// WorkerConfig is a non-master rank's allocator client configuration (spec
// §4.6 worker loop).
type WorkerConfig struct {
	// Addr is the DEALER's connect endpoint, matching the master's Addr.
	Addr string

	GPUsPerNode        int
	TasksInQueuePerGPU int

	LocalLoadWork *queue.Queue[int]
	LocalEvalWork []*queue.Queue[workitem.EvalWorkEntry]

	Log *zap.SugaredLogger
}

// RunWorker requests work items from the master whenever local backlog
// drops below the threshold, pushing each received index into
// LocalLoadWork, until the master replies with workitem.Sentinel (spec
// §4.6 "if -1, stop requesting").
func RunWorker(ctx context.Context, cfg WorkerConfig) error {
	sock := zmq4.NewDealer(ctx)
	defer sock.Close()
	if err := sock.Dial(cfg.Addr); err != nil {
		return fmt.Errorf("cluster: worker dial %s: %w", cfg.Addr, err)
	}

	threshold := cfg.GPUsPerNode * cfg.TasksInQueuePerGPU

	for {
		if cfg.localBacklog() >= threshold {
			runtime.Gosched()
			continue
		}

		if err := sock.Send(zmq4.NewMsg(requestFrame)); err != nil {
			return fmt.Errorf("cluster: worker send: %w", err)
		}
		reply, err := sock.Recv()
		if err != nil {
			return fmt.Errorf("cluster: worker recv: %w", err)
		}
		idx := decodeIndex(reply.Frames[0])
		if idx == workitem.Sentinel {
			if cfg.Log != nil {
				cfg.Log.Debug("worker: master signaled no more work")
			}
			return nil
		}
		cfg.LocalLoadWork.Push(idx)
	}
}

func (cfg WorkerConfig) localBacklog() int {
	n := cfg.LocalLoadWork.Size()
	for _, q := range cfg.LocalEvalWork {
		n += q.Size()
	}
	return n
}
