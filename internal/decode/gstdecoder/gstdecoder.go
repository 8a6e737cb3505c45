// Package gstdecoder implements decode.Decoder on top of GStreamer, for
// deployments with hardware H.264/H.265 decode available. It follows the
// same element-graph-plus-appsink-pull shape as the teacher's RTSP capture
// pipeline (filesrc replaces rtspsrc, a pull-based appsink.PullSample
// replaces the push-based OnNewSample callback since decode here is driven
// by the loader rather than by an upstream clock).
package gstdecoder

import (
	"fmt"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/lumenvid/batchscan/internal/decode"
	"github.com/lumenvid/batchscan/internal/videometa"
)

var _ decode.Decoder = (*Decoder)(nil)

// Config mirrors the teacher's PipelineConfig, trimmed to what a file-seek
// decode pipeline needs (no RTSP latency/jitter tuning, no hot-reload).
type Config struct {
	Path   string
	Width  int
	Height int
}

// Decoder drives a GStreamer pipeline reading from a local file, seeking by
// flushing seek events rather than re-reading a keyframe index file
// directly — GStreamer's own demuxer already tracks keyframes internally,
// so the core's keyframe index is used only to pick the seek target frame
// (spec §6: "seek(frame_index) — positions at or before the requested
// frame, using the keyframe index").
type Decoder struct {
	pipeline *gst.Pipeline
	appsink  *app.Sink
	kf       videometa.KeyframeIndex
	meta     videometa.Metadata
	fps      float64

	framesPerKeyframe int
	cur               int

	ioTime     time.Duration
	decodeTime time.Duration
}

// New builds and starts (StatePlaying) a decode pipeline for a single file.
// fps is required to convert frame indices to the nanosecond seek
// positions GStreamer's Seek expects.
func New(cfg Config, meta videometa.Metadata, kf videometa.KeyframeIndex, framesPerKeyframe int, fps float64) (*Decoder, error) {
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("gstdecoder: create pipeline: %w", err)
	}

	filesrc, err := gst.NewElement("filesrc")
	if err != nil {
		return nil, fmt.Errorf("gstdecoder: create filesrc: %w", err)
	}
	filesrc.SetProperty("location", cfg.Path)

	decodebin, err := gst.NewElement("decodebin")
	if err != nil {
		return nil, fmt.Errorf("gstdecoder: create decodebin: %w", err)
	}

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("gstdecoder: create videoconvert: %w", err)
	}

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("gstdecoder: create capsfilter: %w", err)
	}
	caps := gst.NewCapsFromString(fmt.Sprintf("video/x-raw,format=NV12,width=%d,height=%d", cfg.Width, cfg.Height))
	capsfilter.SetProperty("caps", caps)

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("gstdecoder: create appsink: %w", err)
	}
	appsink.SetProperty("sync", false)
	appsink.SetProperty("max-buffers", 2)
	appsink.SetProperty("drop", false)

	pipeline.AddMany(filesrc, decodebin, converter, capsfilter, appsink.Element)
	if err := filesrc.Link(decodebin); err != nil {
		return nil, fmt.Errorf("gstdecoder: link filesrc->decodebin: %w", err)
	}
	if err := gst.ElementLinkMany(converter, capsfilter, appsink.Element); err != nil {
		return nil, fmt.Errorf("gstdecoder: link convert->caps->sink: %w", err)
	}

	decodebin.Connect("pad-added", func(srcElement *gst.Element, srcPad *gst.Pad) {
		sinkPad := converter.GetStaticPad("sink")
		if sinkPad == nil || sinkPad.IsLinked() {
			return
		}
		srcPad.Link(sinkPad)
	})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return nil, fmt.Errorf("gstdecoder: start pipeline: %w", err)
	}

	return &Decoder{
		pipeline:          pipeline,
		appsink:           appsink,
		kf:                kf,
		meta:              meta,
		fps:               fps,
		framesPerKeyframe: framesPerKeyframe,
	}, nil
}

func (d *Decoder) Seek(frameIndex int) error {
	kfFrame := d.kf.Before(frameIndex, d.framesPerKeyframe) * d.framesPerKeyframe
	if kfFrame < 0 {
		kfFrame = 0
	}
	seekPos := time.Duration(float64(kfFrame) / d.fps * float64(time.Second))
	if !d.pipeline.SeekSimple(gst.FormatTime, gst.SeekFlagFlush|gst.SeekFlagKeyUnit, int64(seekPos)) {
		return fmt.Errorf("gstdecoder: seek to frame %d failed", kfFrame)
	}
	d.cur = kfFrame
	for d.cur < frameIndex {
		if _, err := d.Decode(); err != nil {
			return err
		}
	}
	return nil
}

func (d *Decoder) Decode() (decode.Frame, error) {
	ioStart := time.Now()
	sample := d.appsink.PullSample()
	d.ioTime += time.Since(ioStart)
	if sample == nil {
		return decode.Frame{}, decode.ErrEndOfVideo
	}

	decodeStart := time.Now()
	buffer := sample.GetBuffer()
	if buffer == nil {
		return decode.Frame{}, decode.ErrEndOfVideo
	}
	mapInfo := buffer.Map(gst.MapRead)
	defer buffer.Unmap()

	data := mapInfo.Bytes()
	ySize := d.meta.Width * d.meta.Height
	frame := decode.Frame{
		Format:   videometa.PixelFormatNV12,
		Width:    d.meta.Width,
		Height:   d.meta.Height,
		Y:        append([]byte(nil), data[:ySize]...),
		UV:       append([]byte(nil), data[ySize:]...),
		YStride:  d.meta.Width,
		UVStride: d.meta.Width,
		Device:   false, // mapped to host memory by videoconvert/capsfilter above
	}
	d.decodeTime += time.Since(decodeStart)

	d.cur++
	return frame, nil
}

func (d *Decoder) IOTime() time.Duration     { return d.ioTime }
func (d *Decoder) DecodeTime() time.Duration { return d.decodeTime }

func (d *Decoder) Close() error {
	return d.pipeline.SetState(gst.StateNull)
}
