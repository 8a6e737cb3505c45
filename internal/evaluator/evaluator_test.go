package evaluator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumenvid/batchscan/internal/bufferpool"
	"github.com/lumenvid/batchscan/internal/loader"
	"github.com/lumenvid/batchscan/internal/netinfer"
	"github.com/lumenvid/batchscan/internal/queue"
	"github.com/lumenvid/batchscan/internal/videometa"
	"github.com/lumenvid/batchscan/internal/workitem"
)

func TestWorkerRoundTripFrameCountMatchesSpecFormula(t *testing.T) {
	// Spec §8 round-trip property: for F frames and GLOBAL_BATCH_SIZE,
	// forward is invoked once per full batch plus (if any) one epilogue
	// batch of the remainder, and every frame in range is counted exactly
	// once across those calls.
	const globalBatchSize = 64
	const frameCount = 300 // one 300-frame work item -> four full batches of
	// 64 plus an epilogue of 44

	meta := videometa.Metadata{Width: 8, Height: 8, FrameCount: frameCount, PixelFormat: videometa.PixelFormatRGB24}
	pool := bufferpool.New(1, 1, meta.FrameBytes()*frameCount)
	entry, buf := pool.Acquire()
	for i := range buf {
		buf[i] = byte(i)
	}

	loaderNet, err := netinfer.NewReferenceLoader(4)(netinfer.ReferenceModel, 0)
	require.NoError(t, err)

	evalWork := queue.New[workitem.EvalWorkEntry](0)
	w := &Worker{
		GPUDeviceID: 0,
		EvalWork:    evalWork,
		WorkItems: []workitem.WorkItem{
			{VideoIndex: 0, StartFrame: 0, EndFrame: frameCount},
		},
		Videos:          []loader.Video{{Metadata: meta}},
		Pool:            pool,
		GlobalBatchSize: globalBatchSize,
		NumCUDAStreams:  32,
		Net:             loaderNet,
	}

	evalWork.Push(workitem.EvalWorkEntry{WorkItemIndex: 0, BufferIndex: entry.BufferIndex})
	evalWork.Push(workitem.EvalWorkEntry{WorkItemIndex: workitem.Sentinel})
	w.Run()

	rn := loaderNet.(interface{ ForwardLog() []int })
	log := rn.ForwardLog()

	total := 0
	for _, bs := range log {
		total += bs
	}
	require.Equal(t, frameCount, total)
	require.Equal(t, []int{64, 64, 64, 64, 44}, log)

	// The buffer must be returned to the pool once the item is fully
	// processed (spec §4.5 "return the buffer to the pool").
	require.Equal(t, 1, pool.Empty.Size())
}

func TestWorkerExactMultipleHasNoEpilogue(t *testing.T) {
	const globalBatchSize = 64
	const frameCount = 256

	meta := videometa.Metadata{Width: 4, Height: 4, FrameCount: frameCount, PixelFormat: videometa.PixelFormatRGB24}
	pool := bufferpool.New(1, 1, meta.FrameBytes()*frameCount)
	entry, _ := pool.Acquire()

	loaderNet, err := netinfer.NewReferenceLoader(4)(netinfer.ReferenceModel, 0)
	require.NoError(t, err)

	evalWork := queue.New[workitem.EvalWorkEntry](0)
	w := &Worker{
		GPUDeviceID:     0,
		EvalWork:        evalWork,
		WorkItems:       []workitem.WorkItem{{VideoIndex: 0, StartFrame: 0, EndFrame: frameCount}},
		Videos:          []loader.Video{{Metadata: meta}},
		Pool:            pool,
		GlobalBatchSize: globalBatchSize,
		NumCUDAStreams:  32,
		Net:             loaderNet,
	}

	evalWork.Push(workitem.EvalWorkEntry{WorkItemIndex: 0, BufferIndex: entry.BufferIndex})
	evalWork.Push(workitem.EvalWorkEntry{WorkItemIndex: workitem.Sentinel})
	w.Run()

	rn := loaderNet.(interface{ ForwardLog() []int })
	require.Equal(t, []int{64, 64, 64, 64}, rn.ForwardLog())
}
