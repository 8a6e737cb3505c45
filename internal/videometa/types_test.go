package videometa

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetadataRoundTrip(t *testing.T) {
	m := Metadata{Width: 1280, Height: 720, FrameCount: 300, PixelFormat: PixelFormatNV12}

	var buf bytes.Buffer
	require.NoError(t, WriteMetadata(&buf, m))

	got, err := ReadMetadata(&buf)
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestFrameBytesNV12VsRGB24(t *testing.T) {
	nv12 := Metadata{Width: 2, Height: 2, PixelFormat: PixelFormatNV12}
	rgb := Metadata{Width: 2, Height: 2, PixelFormat: PixelFormatRGB24}

	require.Equal(t, 2*2+2*2/2, nv12.FrameBytes())
	require.Equal(t, 2*2*3, rgb.FrameBytes())
}

func TestKeyframeIndexRoundTrip(t *testing.T) {
	idx := KeyframeIndex{
		Positions:  []int64{0, 4096, 9000},
		Timestamps: []int64{0, 1000, 2500},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteKeyframeIndex(&buf, idx))

	got, err := ReadKeyframeIndex(&buf)
	require.NoError(t, err)
	require.Equal(t, idx, got)
}

func TestKeyframeIndexBefore(t *testing.T) {
	idx := KeyframeIndex{Positions: []int64{0, 1, 2}, Timestamps: []int64{0, 1, 2}}
	require.Equal(t, 0, idx.Before(0, 100))
	require.Equal(t, 1, idx.Before(150, 100))
	require.Equal(t, 2, idx.Before(10000, 100))
}

func TestReadMetadataRejectsBadMagic(t *testing.T) {
	_, err := ReadMetadata(bytes.NewReader(make([]byte, 20)))
	require.Error(t, err)
}
