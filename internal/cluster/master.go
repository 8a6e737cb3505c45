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

// MasterConfig is the rank-0 allocator's configuration (spec §4.6 master
// loop).
type MasterConfig struct {
	// Addr is the ROUTER bind endpoint, e.g. "tcp://0.0.0.0:5555".
	Addr string

	NumNodes           int
	TotalItems         int
	GPUsPerNode        int
	TasksInQueuePerGPU int

	// LocalLoadWork and LocalEvalWork feed the master's own backlog
	// check (spec §4.6 step 2: "own-backlog-first scheduling") and
	// receive LoadWorkEntry indices the master allocates to itself.
	LocalLoadWork *queue.Queue[int]
	LocalEvalWork []*queue.Queue[workitem.EvalWorkEntry]

	Log *zap.SugaredLogger
}

// RunMaster executes the master loop to completion (spec §4.6 steps 1-4):
// it alternates between filling its own backlog and answering requests
// from other ranks, until every item has been allocated and every worker
// has stopped requesting. It never sends itself a network request — the
// local-backlog branch is its own allocation path.
func RunMaster(ctx context.Context, cfg MasterConfig) error {
	sock := zmq4.NewRouter(ctx)
	defer sock.Close()
	if err := sock.Listen(cfg.Addr); err != nil {
		return fmt.Errorf("cluster: master listen on %s: %w", cfg.Addr, err)
	}

	type inbound struct {
		msg zmq4.Msg
		err error
	}
	reqCh := make(chan inbound)
	go func() {
		for {
			msg, err := sock.Recv()
			reqCh <- inbound{msg: msg, err: err}
			if err != nil {
				return
			}
		}
	}()

	next := 0
	workersDone := 1 // the master counts itself as already finished requesting

	for next < cfg.TotalItems || workersDone < cfg.NumNodes {
		if cfg.localBacklog() < cfg.GPUsPerNode*cfg.TasksInQueuePerGPU && next < cfg.TotalItems {
			cfg.LocalLoadWork.Push(next)
			next++
			if cfg.Log != nil {
				cfg.Log.Debugw("master: allocated locally", "work_item_index", next-1)
				cfg.logItemsLeft(next)
			}
			continue
		}

		select {
		case in := <-reqCh:
			if in.err != nil {
				return fmt.Errorf("cluster: master recv: %w", in.err)
			}
			reply := -1
			if next < cfg.TotalItems {
				reply = next
				next++
				if cfg.Log != nil {
					cfg.logItemsLeft(next)
				}
			} else {
				workersDone++
			}
			identity := in.msg.Frames[0]
			out := zmq4.NewMsgFrom(identity, encodeIndex(reply))
			if err := sock.Send(out); err != nil {
				return fmt.Errorf("cluster: master send: %w", err)
			}
		default:
			runtime.Gosched()
		}
	}
	return nil
}

// logItemsLeft emits the periodic "work items left" progress line every
// ten items allocated (spec §7), mirroring the source's
// printf("Work items left: %d\n", ...) cadence.
func (cfg MasterConfig) logItemsLeft(next int) {
	left := cfg.TotalItems - next
	if left%10 == 0 {
		cfg.Log.Infow("work items left", "count", left)
	}
}

func (cfg MasterConfig) localBacklog() int {
	n := cfg.LocalLoadWork.Size()
	for _, q := range cfg.LocalEvalWork {
		n += q.Size()
	}
	return n
}
