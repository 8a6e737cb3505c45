package decode

import (
	"time"

	"github.com/lumenvid/batchscan/internal/storage"
	"github.com/lumenvid/batchscan/internal/videometa"
)

// SoftwareDecoder decodes the core's own raw frame format: the processed
// video file is a flat sequence of fixed-size frames in Metadata's
// PixelFormat, one after another with no container framing. This is the
// reference format the core's software path targets when no GStreamer
// runtime is available; it exists so the pipeline is exercisable without an
// external decoder dependency, not as a stand-in for any real codec.
//
// Seeking still goes through the keyframe index rather than a direct
// frame-index multiply, so the seek+decode-forward behavior a real codec
// requires (spec §6) is exercised the same way regardless of backend.
var _ Decoder = (*SoftwareDecoder)(nil)

type SoftwareDecoder struct {
	file storage.RandomReadFile
	meta videometa.Metadata
	kf   videometa.KeyframeIndex

	framesPerKeyframe int
	cur               int // next frame index Decode() will produce

	ioTime     time.Duration
	decodeTime time.Duration
}

// NewSoftwareDecoder binds a decoder to an already-open file, its metadata,
// and its keyframe index. framesPerKeyframe must match the interval the
// preprocessing step used to build kf.
func NewSoftwareDecoder(file storage.RandomReadFile, meta videometa.Metadata, kf videometa.KeyframeIndex, framesPerKeyframe int) *SoftwareDecoder {
	return &SoftwareDecoder{file: file, meta: meta, kf: kf, framesPerKeyframe: framesPerKeyframe}
}

func (d *SoftwareDecoder) Seek(frameIndex int) error {
	kfFrame := d.kf.Before(frameIndex, d.framesPerKeyframe) * d.framesPerKeyframe
	if kfFrame < 0 {
		kfFrame = 0
	}
	d.cur = kfFrame
	for d.cur < frameIndex {
		if _, err := d.Decode(); err != nil {
			return err
		}
	}
	return nil
}

func (d *SoftwareDecoder) Decode() (Frame, error) {
	if d.cur >= d.meta.FrameCount {
		return Frame{}, ErrEndOfVideo
	}

	frameBytes := d.meta.FrameBytes()
	buf := make([]byte, frameBytes)

	ioStart := time.Now()
	off := int64(d.cur) * int64(frameBytes)
	if _, err := d.file.ReadAt(buf, off); err != nil {
		return Frame{}, err
	}
	d.ioTime += time.Since(ioStart)

	decodeStart := time.Now()
	frame := planeSplit(buf, d.meta)
	d.decodeTime += time.Since(decodeStart)

	d.cur++
	return frame, nil
}

// planeSplit slices a flat raw frame buffer into the Frame representation
// matching its pixel format. The software path never touches the GPU, so
// Device is always false.
func planeSplit(buf []byte, meta videometa.Metadata) Frame {
	f := Frame{Format: meta.PixelFormat, Width: meta.Width, Height: meta.Height}
	switch meta.PixelFormat {
	case videometa.PixelFormatNV12:
		ySize := meta.Width * meta.Height
		f.Y = buf[:ySize]
		f.UV = buf[ySize:]
		f.YStride = meta.Width
		f.UVStride = meta.Width
	case videometa.PixelFormatRGB24:
		f.RGB = buf
		f.RGBStride = meta.Width * 3
	}
	return f
}

func (d *SoftwareDecoder) IOTime() time.Duration     { return d.ioTime }
func (d *SoftwareDecoder) DecodeTime() time.Duration { return d.decodeTime }

func (d *SoftwareDecoder) Close() error { return d.file.Close() }
