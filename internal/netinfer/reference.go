package netinfer

import "fmt"

// ReferenceModel is the "identity" model kind: it performs no real
// inference, only validates its input contract and records how many
// batches and frames it has seen. Used by tests and by synthetic
// end-to-end runs that exercise the pipeline's scheduling without a real
// trained model.
const ReferenceModel ModelKind = "reference"

var _ Network = (*referenceNetwork)(nil)

type referenceNetwork struct {
	deviceID   int
	inputSize  int
	mean       MeanImage
	batchSize  int
	forwardLog []int // batch size of each Forward call, in order
}

// NewReferenceLoader returns a Loader producing referenceNetwork instances
// sized inputSize x inputSize; any ModelKind other than ReferenceModel is
// rejected.
func NewReferenceLoader(inputSize int) Loader {
	return func(kind ModelKind, deviceID int) (Network, error) {
		if kind != ReferenceModel {
			return nil, &ErrUnknownModel{Kind: kind}
		}
		mean := MeanImage{Width: inputSize, Height: inputSize, Data: make([]float32, inputSize*inputSize*3)}
		return &referenceNetwork{deviceID: deviceID, inputSize: inputSize, mean: mean, batchSize: 1}, nil
	}
}

func (n *referenceNetwork) InputSize() int      { return n.inputSize }
func (n *referenceNetwork) MeanImage() MeanImage { return n.mean }

func (n *referenceNetwork) ReshapeInputBatch(batch int) error {
	n.batchSize = batch
	return nil
}

func (n *referenceNetwork) Forward(input *InputTensor) error {
	if input.BatchSize != n.batchSize {
		return fmt.Errorf("netinfer: forward called with batch %d but network is reshaped to %d", input.BatchSize, n.batchSize)
	}
	expected := input.BatchSize * input.ChannelStride() * 3
	if len(input.Data) < expected {
		return fmt.Errorf("netinfer: input tensor has %d elements, want at least %d", len(input.Data), expected)
	}
	n.forwardLog = append(n.forwardLog, input.BatchSize)
	return nil
}

func (n *referenceNetwork) Close() error { return nil }

// ForwardLog returns the batch size passed to every Forward call so far, in
// order. Exposed for tests asserting the round-trip property (spec §8).
func (n *referenceNetwork) ForwardLog() []int { return n.forwardLog }
