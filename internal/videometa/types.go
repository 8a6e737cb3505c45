// Package videometa defines the read-only per-video data the pipeline core
// consumes: VideoMetadata and the keyframe index. Both are produced by the
// (out-of-scope) preprocessing step and are immutable once loaded.
package videometa

import (
	"encoding/binary"
	"fmt"
	"io"
)

// PixelFormat enumerates the frame layouts the core understands. The
// decoder interface (internal/decode) reports which one a given frame
// uses; the evaluator's image pipeline (internal/imgproc) branches on it.
type PixelFormat int

const (
	// PixelFormatNV12 is the layout hardware decoders emit directly into
	// device memory (spec §4.4 step 7).
	PixelFormatNV12 PixelFormat = iota
	// PixelFormatRGB24 is the layout a software decode path produces after
	// bicubic color conversion (spec §4.4 step 7, else-branch).
	PixelFormatRGB24
)

// Metadata is the read-only, shared VideoMetadata record (spec §3).
// One instance exists per input video and is never mutated after the
// pipeline loads it at startup.
type Metadata struct {
	Width       int
	Height      int
	FrameCount  int
	PixelFormat PixelFormat
}

// FrameBytes returns frame_bytes = image_size(width, height, pixel_format)
// for the uniform frame size of this video (spec §3).
func (m Metadata) FrameBytes() int {
	switch m.PixelFormat {
	case PixelFormatNV12:
		// Y plane (w*h) + interleaved UV plane (w*h/2), 8 bits/sample.
		return m.Width*m.Height + m.Width*m.Height/2
	case PixelFormatRGB24:
		return m.Width * m.Height * 3
	default:
		return m.Width * m.Height * 3
	}
}

// metadataMagic guards against reading a file that isn't one of ours; the
// on-disk format is otherwise opaque to the core per spec §6, so this is
// the core's own minimal framing, not a contract with the preprocessing
// stage's actual binary layout.
const metadataMagic uint32 = 0x4d455441 // "META"

// ReadMetadata decodes a Metadata record from the `<video>_metadata.bin`
// file (spec §6 naming convention).
func ReadMetadata(r io.Reader) (Metadata, error) {
	var hdr struct {
		Magic  uint32
		Width  int32
		Height int32
		Frames int32
		Format int32
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return Metadata{}, fmt.Errorf("videometa: read metadata: %w", err)
	}
	if hdr.Magic != metadataMagic {
		return Metadata{}, fmt.Errorf("videometa: bad magic %#x", hdr.Magic)
	}
	return Metadata{
		Width:       int(hdr.Width),
		Height:      int(hdr.Height),
		FrameCount:  int(hdr.Frames),
		PixelFormat: PixelFormat(hdr.Format),
	}, nil
}

// WriteMetadata encodes m in the format ReadMetadata expects. Exercised by
// tests and by any preprocessing stub; the real preprocessing step (out of
// scope per spec §1) is free to use a different, opaque format as long as
// it is paired with a matching reader.
func WriteMetadata(w io.Writer, m Metadata) error {
	hdr := struct {
		Magic  uint32
		Width  int32
		Height int32
		Frames int32
		Format int32
	}{
		Magic:  metadataMagic,
		Width:  int32(m.Width),
		Height: int32(m.Height),
		Frames: int32(m.FrameCount),
		Format: int32(m.PixelFormat),
	}
	return binary.Write(w, binary.LittleEndian, hdr)
}

// KeyframeIndex is the ordered sequence of (byte offset, timestamp) pairs
// used by the decoder to seek to the nearest keyframe before a target frame
// (spec §3).
type KeyframeIndex struct {
	Positions  []int64
	Timestamps []int64
}

// Before returns the index of the last keyframe at or before frameIndex's
// approximate position, using the convention that keyframe i covers frames
// until keyframe i+1. Decoders seek to this keyframe and then decode
// forward to reach the exact requested frame (spec §6 decoder interface).
func (k KeyframeIndex) Before(frameIndex, framesPerKeyframe int) int {
	if framesPerKeyframe <= 0 {
		return 0
	}
	idx := frameIndex / framesPerKeyframe
	if idx >= len(k.Positions) {
		idx = len(k.Positions) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

var keyframeMagic uint32 = 0x4b465258 // "KFRX"

// ReadKeyframeIndex decodes a KeyframeIndex from the `<video>_iframes.bin`
// file.
func ReadKeyframeIndex(r io.Reader) (KeyframeIndex, error) {
	var hdr struct {
		Magic uint32
		Count uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return KeyframeIndex{}, fmt.Errorf("videometa: read keyframe header: %w", err)
	}
	if hdr.Magic != keyframeMagic {
		return KeyframeIndex{}, fmt.Errorf("videometa: bad keyframe magic %#x", hdr.Magic)
	}
	idx := KeyframeIndex{
		Positions:  make([]int64, hdr.Count),
		Timestamps: make([]int64, hdr.Count),
	}
	if err := binary.Read(r, binary.LittleEndian, &idx.Positions); err != nil {
		return KeyframeIndex{}, fmt.Errorf("videometa: read keyframe positions: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &idx.Timestamps); err != nil {
		return KeyframeIndex{}, fmt.Errorf("videometa: read keyframe timestamps: %w", err)
	}
	return idx, nil
}

// WriteKeyframeIndex encodes idx in the format ReadKeyframeIndex expects.
func WriteKeyframeIndex(w io.Writer, idx KeyframeIndex) error {
	hdr := struct {
		Magic uint32
		Count uint32
	}{Magic: keyframeMagic, Count: uint32(len(idx.Positions))}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, idx.Positions); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, idx.Timestamps)
}
