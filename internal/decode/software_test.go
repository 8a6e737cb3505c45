package decode

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumenvid/batchscan/internal/storage"
	"github.com/lumenvid/batchscan/internal/videometa"
)

func writeRawVideo(t *testing.T, meta videometa.Metadata) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "video.raw")

	frameBytes := meta.FrameBytes()
	buf := make([]byte, frameBytes*meta.FrameCount)
	for i := 0; i < meta.FrameCount; i++ {
		for b := 0; b < frameBytes; b++ {
			buf[i*frameBytes+b] = byte(i)
		}
	}
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path
}

func openDecoder(t *testing.T, meta videometa.Metadata, kf videometa.KeyframeIndex, framesPerKeyframe int) *SoftwareDecoder {
	t.Helper()
	path := writeRawVideo(t, meta)
	backend := storage.NewDiskBackend("")
	f, err := backend.Open(path)
	require.NoError(t, err)
	return NewSoftwareDecoder(f, meta, kf, framesPerKeyframe)
}

func TestSoftwareDecoderSequentialDecodeRGB24(t *testing.T) {
	meta := videometa.Metadata{Width: 4, Height: 2, FrameCount: 10, PixelFormat: videometa.PixelFormatRGB24}
	kf := videometa.KeyframeIndex{Positions: []int64{0}, Timestamps: []int64{0}}
	d := openDecoder(t, meta, kf, 10)
	defer d.Close()

	for i := 0; i < 10; i++ {
		frame, err := d.Decode()
		require.NoError(t, err)
		require.Equal(t, videometa.PixelFormatRGB24, frame.Format)
		require.Equal(t, byte(i), frame.RGB[0])
		require.False(t, frame.Device)
	}

	_, err := d.Decode()
	require.ErrorIs(t, err, ErrEndOfVideo)
}

func TestSoftwareDecoderSeekUsesKeyframeThenAdvances(t *testing.T) {
	meta := videometa.Metadata{Width: 4, Height: 2, FrameCount: 20, PixelFormat: videometa.PixelFormatNV12}
	kf := videometa.KeyframeIndex{Positions: []int64{0, 8, 16}, Timestamps: []int64{0, 800, 1600}}
	d := openDecoder(t, meta, kf, 8)
	defer d.Close()

	require.NoError(t, d.Seek(11))
	frame, err := d.Decode()
	require.NoError(t, err)
	require.Equal(t, byte(11), frame.Y[0])
}

func TestSoftwareDecoderTelemetryAccumulates(t *testing.T) {
	meta := videometa.Metadata{Width: 4, Height: 2, FrameCount: 5, PixelFormat: videometa.PixelFormatRGB24}
	kf := videometa.KeyframeIndex{Positions: []int64{0}, Timestamps: []int64{0}}
	d := openDecoder(t, meta, kf, 5)
	defer d.Close()

	for i := 0; i < 5; i++ {
		_, err := d.Decode()
		require.NoError(t, err)
	}
	require.GreaterOrEqual(t, d.IOTime().Nanoseconds(), int64(0))
	require.GreaterOrEqual(t, d.DecodeTime().Nanoseconds(), int64(0))
}
