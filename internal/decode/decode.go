// Package decode defines the video decoder capability the core requires
// (spec §6) and the two variant implementations selected by
// --decoder-backend: a synthetic "software" decoder used by tests and
// deployments with no GStreamer runtime, and a GStreamer-backed decoder in
// the gstdecoder subpackage. The core depends only on the Decoder
// interface; dispatch happens once, at loader startup (spec §9
// "Polymorphism over capability, not inheritance").
package decode

import (
	"errors"
	"time"

	"github.com/lumenvid/batchscan/internal/videometa"
)

// ErrEndOfVideo is returned by Decode once every frame in the file has
// been produced.
var ErrEndOfVideo = errors.New("decode: end of video")

// Frame is one decoded picture, in either host or device memory. Layout is
// determined by Format: PixelFormatNV12 frames carry separate Y and UV
// planes (as produced by a hardware decoder writing into device memory),
// PixelFormatRGB24 frames carry a single interleaved plane (the software
// path's own conversion, spec §4.4 step 7).
type Frame struct {
	Format videometa.PixelFormat
	Width  int
	Height int

	// Y and UV are set for PixelFormatNV12; RGB is set for
	// PixelFormatRGB24. Strides are in bytes and may exceed the tight
	// Width-derived value — callers must respect them when copying.
	Y, UV, RGB       []byte
	YStride, UVStride, RGBStride int

	// Device is true when the planes above live in GPU memory and must be
	// moved with a device-to-device copy rather than a host memcpy (spec
	// §4.4 step 7).
	Device bool
}

// Decoder seeks to and decodes frames from a single opened video, using a
// keyframe index to avoid a full linear scan on every seek (spec §6).
// A Decoder is bound to exactly one (file, keyframe index) pair for its
// whole lifetime; callers construct a new one per loaded video.
type Decoder interface {
	// Seek positions the decoder at or before frameIndex, using the
	// keyframe index to find the nearest preceding keyframe.
	Seek(frameIndex int) error

	// Decode returns the next frame in presentation order, or
	// ErrEndOfVideo once the video is exhausted.
	Decode() (Frame, error)

	// IOTime and DecodeTime report cumulative time spent in each phase
	// since the decoder was constructed, for the loader's telemetry
	// (spec §6 "Telemetry: cumulative I/O time and decode time").
	IOTime() time.Duration
	DecodeTime() time.Duration

	// Close releases any resources (file handles, hardware contexts)
	// held by the decoder.
	Close() error
}

// Backend names the two decoder variants selectable via --decoder-backend.
type Backend string

const (
	BackendSoftware  Backend = "software"
	BackendGStreamer Backend = "gstreamer"
)
