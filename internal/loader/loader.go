// Package loader implements the loader worker (spec §4.4, C4): it pops
// work items, decodes their frame range into a pooled buffer, and hands
// the filled buffer to the owning GPU's evaluator. The per-item algorithm
// follows spec §4.4 exactly, including the "acquire buffer, then bind GPU"
// inversion that lets the buffer pool implicitly load-balance loaders
// across GPUs (spec §4.4 "Why it is this shape").
package loader

import (
	"fmt"
	"io"
	"time"

	"github.com/lumenvid/batchscan/internal/bufferpool"
	"github.com/lumenvid/batchscan/internal/decode"
	"github.com/lumenvid/batchscan/internal/errs"
	"github.com/lumenvid/batchscan/internal/queue"
	"github.com/lumenvid/batchscan/internal/stats"
	"github.com/lumenvid/batchscan/internal/storage"
	"github.com/lumenvid/batchscan/internal/videometa"
	"github.com/lumenvid/batchscan/internal/workitem"

	"go.uber.org/zap"
)

// Video bundles one input video's read-only identity: where to find its
// processed file and keyframe index, and its metadata (spec §3).
type Video struct {
	ProcessedPath string
	KeyframePath  string
	Metadata      videometa.Metadata
}

// OpenDecoder constructs a decoder bound to one opened video file. Separate
// from decode.Decoder's own constructors because the two variants
// (software, gstdecoder) take different arguments — software reads through
// a storage.RandomReadFile, gstdecoder opens the path itself via GStreamer
// elements (spec §9 "variant types dispatched once per open").
type OpenDecoder func(path string, file storage.RandomReadFile, meta videometa.Metadata, kf videometa.KeyframeIndex, framesPerKeyframe int) (decode.Decoder, error)

// SoftwareOpenDecoder adapts decode.NewSoftwareDecoder to the OpenDecoder
// shape.
func SoftwareOpenDecoder(path string, file storage.RandomReadFile, meta videometa.Metadata, kf videometa.KeyframeIndex, framesPerKeyframe int) (decode.Decoder, error) {
	return decode.NewSoftwareDecoder(file, meta, kf, framesPerKeyframe), nil
}

// Worker is one loader thread's state (spec §4.4 "long-running consumer").
type Worker struct {
	ID int

	LoadWork  *queue.Queue[int]
	WorkItems []workitem.WorkItem
	Videos    []Video

	FramesPerKeyframe int
	Storage           storage.Backend
	OpenDecoder       OpenDecoder
	Pool              *bufferpool.Pool
	EvalWork          []*queue.Queue[workitem.EvalWorkEntry] // indexed by gpu_device_id

	Log *zap.SugaredLogger

	// Stats collects this thread's end-of-run telemetry (spec §7). Nil is
	// valid and simply disables recording, for callers (tests) that don't
	// care about it.
	Stats *stats.Recorder
}

// Run pops from LoadWork until the sentinel, processing one work item per
// iteration (spec §4.4 contract). Any I/O or decode error is fatal per
// spec §4.4's failure policy: it calls errs.Fatal rather than returning,
// since the pipeline has no per-item recovery path.
func (w *Worker) Run() {
	for {
		idleStart := time.Now()
		idx := w.LoadWork.Pop()
		if w.Stats != nil {
			w.Stats.RecordIdle(time.Since(idleStart))
		}
		if idx == workitem.Sentinel {
			if w.Log != nil {
				w.Log.Debugw("loader received sentinel, exiting", "loader_id", w.ID)
			}
			return
		}
		taskStart := time.Now()
		err := w.processItem(idx)
		if w.Stats != nil {
			w.Stats.RecordTask(time.Since(taskStart))
		}
		if err != nil {
			errs.Fatal("loader %d: work item %d: %v", w.ID, idx, err)
			return // unreachable unless errs.Fatal is stubbed for tests
		}
	}
}

func (w *Worker) processItem(idx int) error {
	item := w.WorkItems[idx]
	video := w.Videos[item.VideoIndex]

	kfFile, err := w.Storage.Open(video.KeyframePath)
	if err != nil {
		return fmt.Errorf("open keyframe index: %w", err)
	}
	kf, err := videometa.ReadKeyframeIndex(io.NewSectionReader(kfFile, 0, kfFile.Size()))
	kfFile.Close()
	if err != nil {
		return fmt.Errorf("read keyframe index: %w", err)
	}

	videoFile, err := w.Storage.Open(video.ProcessedPath)
	if err != nil {
		return fmt.Errorf("open processed video: %w", err)
	}
	defer videoFile.Close()

	entry, buf := w.Pool.Acquire()

	dec, err := w.OpenDecoder(video.ProcessedPath, videoFile, video.Metadata, kf, w.FramesPerKeyframe)
	if err != nil {
		return fmt.Errorf("open decoder: %w", err)
	}
	defer dec.Close()

	if err := dec.Seek(item.StartFrame); err != nil {
		return fmt.Errorf("seek to frame %d: %w", item.StartFrame, err)
	}

	frameBytes := video.Metadata.FrameBytes()
	var memcpyTime time.Duration
	for i := item.StartFrame; i < item.EndFrame; i++ {
		frame, err := dec.Decode()
		if err != nil {
			return fmt.Errorf("decode frame %d: %w", i, err)
		}
		packStart := time.Now()
		err = packFrame(frame, buf, frameBytes*(i-item.StartFrame))
		memcpyTime += time.Since(packStart)
		if err != nil {
			return fmt.Errorf("pack frame %d: %w", i, err)
		}
	}
	if w.Stats != nil {
		w.Stats.RecordPhase(stats.PhaseIO, dec.IOTime())
		w.Stats.RecordPhase(stats.PhaseDecode, dec.DecodeTime())
		w.Stats.RecordPhase(stats.PhaseMemcpy, memcpyTime)
	}

	w.EvalWork[entry.GPUDeviceID].Push(workitem.EvalWorkEntry{WorkItemIndex: idx, BufferIndex: entry.BufferIndex})
	return nil
}

// packFrame writes one decoded frame into buf at offset, following spec
// §4.4 step 7: NV12 frames are packed at the canonical stride (pitch =
// width) as two planes; RGB24 frames from the software path are written
// directly since the software decoder already produced tightly-packed
// RGB24 (see internal/decode.SoftwareDecoder).
func packFrame(frame decode.Frame, buf []byte, offset int) error {
	switch frame.Format {
	case videometa.PixelFormatNV12:
		return packNV12(frame, buf, offset)
	case videometa.PixelFormatRGB24:
		return packRGB24(frame, buf, offset)
	default:
		return fmt.Errorf("loader: unknown pixel format %v", frame.Format)
	}
}

func packNV12(frame decode.Frame, buf []byte, offset int) error {
	ySize := frame.Width * frame.Height
	uvSize := frame.Width * frame.Height / 2
	if offset+ySize+uvSize > len(buf) {
		return fmt.Errorf("loader: buffer too small for NV12 frame at offset %d", offset)
	}
	dstY := buf[offset : offset+ySize]
	dstUV := buf[offset+ySize : offset+ySize+uvSize]

	// Two 2-D copies at canonical stride (pitch = width), per spec §4.4
	// step 7 — one Y plane copy, one interleaved UV plane copy.
	for row := 0; row < frame.Height; row++ {
		copy(dstY[row*frame.Width:(row+1)*frame.Width], frame.Y[row*frame.YStride:row*frame.YStride+frame.Width])
	}
	for row := 0; row < frame.Height/2; row++ {
		copy(dstUV[row*frame.Width:(row+1)*frame.Width], frame.UV[row*frame.UVStride:row*frame.UVStride+frame.Width])
	}
	return nil
}

func packRGB24(frame decode.Frame, buf []byte, offset int) error {
	size := frame.Width * frame.Height * 3
	if offset+size > len(buf) {
		return fmt.Errorf("loader: buffer too small for RGB24 frame at offset %d", offset)
	}
	dst := buf[offset : offset+size]
	for row := 0; row < frame.Height; row++ {
		rowBytes := frame.Width * 3
		copy(dst[row*rowBytes:(row+1)*rowBytes], frame.RGB[row*frame.RGBStride:row*frame.RGBStride+rowBytes])
	}
	return nil
}
