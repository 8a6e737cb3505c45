// Package evaluator implements the per-GPU evaluator worker (spec §4.5,
// C5): it pops filled buffers, runs the NV12 -> RGBA -> BGR (RGB24 frames:
// a direct channel swap to BGR) -> resize -> float -> mean-subtract
// pipeline per frame, submits
// GLOBAL_BATCH_SIZE-sized micro-batches (plus an epilogue for any leftover
// tail) to the network's forward pass, and returns the buffer to the pool
// on completion.
//
// NUM_CUDA_STREAMS only matters on real hardware, where per-frame
// preprocessing for different streams genuinely overlaps on-device. This
// port has no device stream analog, so the stream index is computed (spec
// §4.5 "select stream s = i mod NUM_CUDA_STREAMS") purely to preserve the
// contract's frame-to-stream assignment for any caller that inspects it,
// and each frame's transform still runs synchronously on the calling
// goroutine; the device-wide synchronize the source issues before forward
// is therefore a no-op here, not a barrier this package needs to implement.
package evaluator

import (
	"fmt"
	"time"

	"github.com/lumenvid/batchscan/internal/bufferpool"
	"github.com/lumenvid/batchscan/internal/errs"
	"github.com/lumenvid/batchscan/internal/imgproc"
	"github.com/lumenvid/batchscan/internal/loader"
	"github.com/lumenvid/batchscan/internal/netinfer"
	"github.com/lumenvid/batchscan/internal/queue"
	"github.com/lumenvid/batchscan/internal/stats"
	"github.com/lumenvid/batchscan/internal/videometa"
	"github.com/lumenvid/batchscan/internal/workitem"

	"go.uber.org/zap"
)

// Worker is one evaluator thread's state: pinned to GPUDeviceID for its
// whole lifetime, with its own Network instance (spec §5 "strictly
// thread-local to the owning evaluator").
type Worker struct {
	GPUDeviceID int

	EvalWork        *queue.Queue[workitem.EvalWorkEntry]
	WorkItems       []workitem.WorkItem
	Videos          []loader.Video
	Pool            *bufferpool.Pool
	GlobalBatchSize int
	NumCUDAStreams  int

	Net netinfer.Network

	Log *zap.SugaredLogger

	// Stats collects this thread's end-of-run telemetry (spec §7). Nil
	// disables recording.
	Stats *stats.Recorder

	currentBatchSize int
	mean             netinfer.MeanImage
	tensorBuf        []float32 // reused across micro-batches, grown as needed
}

// Run pops EvalWorkEntry values until the sentinel (spec §4.5 "on
// sentinel, flush and exit"); there is nothing to flush here since each
// work item is fully processed before the next pop, but the step is named
// to mirror the source's shutdown sequence.
func (w *Worker) Run() {
	w.currentBatchSize = -1
	w.mean = w.Net.MeanImage()

	for {
		idleStart := time.Now()
		entry := w.EvalWork.Pop()
		if w.Stats != nil {
			w.Stats.RecordIdle(time.Since(idleStart))
		}
		if entry.WorkItemIndex == workitem.Sentinel {
			if w.Log != nil {
				w.Log.Debugw("evaluator received sentinel, exiting", "gpu_device_id", w.GPUDeviceID)
			}
			return
		}
		taskStart := time.Now()
		w.processEntry(entry)
		if w.Stats != nil {
			w.Stats.RecordTask(time.Since(taskStart))
		}
	}
}

func (w *Worker) processEntry(entry workitem.EvalWorkEntry) {
	item := w.WorkItems[entry.WorkItemIndex]
	video := w.Videos[item.VideoIndex]
	buf := w.Pool.Buffer(workitem.LoadBufferEntry{GPUDeviceID: w.GPUDeviceID, BufferIndex: entry.BufferIndex})
	frameBytes := video.Metadata.FrameBytes()

	total := item.Len()
	netInputSize := w.Net.InputSize()

	for offset := 0; offset < total; offset += w.GlobalBatchSize {
		batchSize := w.GlobalBatchSize
		if offset+batchSize > total {
			batchSize = total - offset // epilogue batch
		}
		w.runMicroBatch(buf, video.Metadata, frameBytes, offset, batchSize, netInputSize)
	}

	w.Pool.Release(workitem.LoadBufferEntry{GPUDeviceID: w.GPUDeviceID, BufferIndex: entry.BufferIndex})
}

func (w *Worker) runMicroBatch(buf []byte, meta videometa.Metadata, frameBytes, frameOffset, batchSize, netInputSize int) {
	stride := netInputSize * netInputSize
	needed := batchSize * stride * 3
	if cap(w.tensorBuf) < needed {
		w.tensorBuf = make([]float32, needed)
	}
	tensor := &netinfer.InputTensor{Data: w.tensorBuf[:needed], BatchSize: batchSize, InputSize: netInputSize}

	var colorConvTime time.Duration
	for i := 0; i < batchSize; i++ {
		_ = i % maxInt(w.NumCUDAStreams, 1) // stream assignment, see package doc

		convStart := time.Now()
		off := frameBytes * (frameOffset + i)
		bgr := toBGR(buf[off:off+frameBytes], meta)
		resized := imgproc.ResizeLinearBGR(bgr, meta.Width, meta.Height, netInputSize)

		frameOut := tensor.Data[tensor.FrameOffset(i) : tensor.FrameOffset(i)+stride*3]
		imgproc.ToFloatChannelPlanar(resized, netInputSize, frameOut, 0)
		imgproc.SubtractMean(frameOut, w.mean.Data)
		colorConvTime += time.Since(convStart)
	}
	if w.Stats != nil {
		w.Stats.RecordPhase(stats.PhaseColorConversion, colorConvTime)
	}

	if w.currentBatchSize != batchSize {
		if err := w.Net.ReshapeInputBatch(batchSize); err != nil {
			errs.Fatal("evaluator %d: reshape to batch %d: %v", w.GPUDeviceID, batchSize, err)
			return
		}
		w.currentBatchSize = batchSize
	}
	if err := w.Net.Forward(tensor); err != nil {
		errs.Fatal("evaluator %d: forward pass: %v", w.GPUDeviceID, err)
	}
}

// toBGR converts one packed frame (as the loader laid it out) into an
// interleaved BGR image at the video's native resolution.
func toBGR(frame []byte, meta videometa.Metadata) []byte {
	switch meta.PixelFormat {
	case videometa.PixelFormatNV12:
		ySize := meta.Width * meta.Height
		rgba := imgproc.NV12ToRGBA(frame[:ySize], frame[ySize:], meta.Width, meta.Width, meta.Width, meta.Height)
		return imgproc.RGBAToBGR(rgba, meta.Width, meta.Height)
	case videometa.PixelFormatRGB24:
		bgr := make([]byte, len(frame))
		for i := 0; i < meta.Width*meta.Height; i++ {
			bgr[i*3], bgr[i*3+1], bgr[i*3+2] = frame[i*3+2], frame[i*3+1], frame[i*3]
		}
		return bgr
	default:
		panic(fmt.Sprintf("evaluator: unknown pixel format %v", meta.PixelFormat))
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
