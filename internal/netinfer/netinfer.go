// Package netinfer defines the neural-network runtime capability the core
// requires (spec §6) and a reference implementation used by tests and by
// deployments that only need the pipeline's scheduling behavior exercised,
// not a real model's numeric output. No inference framework appears
// anywhere in the example pack (DESIGN.md records this), so this package is
// necessarily standard-library only.
package netinfer

import (
	"fmt"
)

// InputTensor is the NCHW float32 input buffer the core fills per micro-
// batch (spec §6 "Input tensor layout: NCHW, float32, 3 channels").
type InputTensor struct {
	Data      []float32
	BatchSize int
	InputSize int
}

// ChannelStride is the number of float32 elements per channel plane.
func (t *InputTensor) ChannelStride() int { return t.InputSize * t.InputSize }

// FrameOffset returns the float32 offset at which frame i's data starts
// (spec §4.5 "async copy into the network input tensor at offset
// i × (net_input² × 3)").
func (t *InputTensor) FrameOffset(i int) int { return i * t.ChannelStride() * 3 }

// MeanImage is the per-channel mean subtracted during preprocessing,
// resized once to (W, H, 3) at evaluator startup (spec §4.5).
type MeanImage struct {
	Width, Height int
	Data          []float32 // W*H*3, channel-planar
}

// ModelKind names which trained model a Network should load; concrete
// meaning is left to the Network implementation, the same way the source
// leaves the model format opaque to the core.
type ModelKind string

// Network is the forward-pass engine the core requires (spec §6).
// A Network instance is bound to one device for its whole lifetime and is
// never shared across evaluators (spec §5 "thread-local to the owning
// evaluator").
type Network interface {
	// InputSize returns the square spatial dimension frames must be
	// resized to before being written into an InputTensor.
	InputSize() int

	// MeanImage returns the per-channel mean image to subtract during
	// preprocessing, already resized to InputSize.
	MeanImage() MeanImage

	// ReshapeInputBatch resizes the network's expected batch dimension;
	// called whenever the calling batch size differs from the currently
	// configured one (spec §4.5 "If the network's current batch
	// dimension does not match batch_size, reshape it first").
	ReshapeInputBatch(n int) error

	// Forward runs the model over the filled portion of input and blocks
	// until complete; synchronous with respect to the calling thread
	// (spec §6).
	Forward(input *InputTensor) error

	// Close releases any device-side resources the network holds.
	Close() error
}

// Loader constructs a Network bound to a single device, mirroring the
// source's load(model_kind, device_id) constructor (spec §6).
type Loader func(kind ModelKind, deviceID int) (Network, error)

// ErrUnknownModel is returned by a Loader when kind names no known model.
type ErrUnknownModel struct{ Kind ModelKind }

func (e *ErrUnknownModel) Error() string {
	return fmt.Sprintf("netinfer: unknown model kind %q", e.Kind)
}
