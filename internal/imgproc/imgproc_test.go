package imgproc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNV12ToRGBAGray(t *testing.T) {
	// A flat gray frame (Y=128, U=V=128) should convert to a gray RGBA.
	width, height := 4, 2
	y := make([]byte, width*height)
	for i := range y {
		y[i] = 128
	}
	uv := make([]byte, width*height/2)
	for i := range uv {
		uv[i] = 128
	}

	rgba := NV12ToRGBA(y, uv, width, width, width, height)
	require.Len(t, rgba, width*height*4)
	require.InDelta(t, 128, int(rgba[0]), 2)
	require.InDelta(t, 128, int(rgba[1]), 2)
	require.InDelta(t, 128, int(rgba[2]), 2)
	require.Equal(t, byte(255), rgba[3])
}

func TestRGBAToBGRDropsAlphaAndSwaps(t *testing.T) {
	rgba := []byte{10, 20, 30, 255}
	bgr := RGBAToBGR(rgba, 1, 1)
	require.Equal(t, []byte{30, 20, 10}, bgr)
}

func TestResizeLinearBGRIdentityWhenSameSize(t *testing.T) {
	src := []byte{
		10, 20, 30, 40, 50, 60,
		70, 80, 90, 100, 110, 120,
	}
	out := ResizeLinearBGR(src, 2, 2, 2)
	require.Equal(t, src, out)
}

func TestResizeLinearBGRProducesRequestedSize(t *testing.T) {
	src := make([]byte, 8*8*3)
	for i := range src {
		src[i] = byte(i % 256)
	}
	out := ResizeLinearBGR(src, 8, 8, 4)
	require.Len(t, out, 4*4*3)
}

func TestToFloatChannelPlanarLayout(t *testing.T) {
	size := 2
	bgr := []byte{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
		10, 11, 12,
	}
	dst := make([]float32, size*size*3)
	ToFloatChannelPlanar(bgr, size, dst, 0)

	require.Equal(t, []float32{1, 4, 7, 10}, dst[0:4])  // B plane
	require.Equal(t, []float32{2, 5, 8, 11}, dst[4:8])  // G plane
	require.Equal(t, []float32{3, 6, 9, 12}, dst[8:12]) // R plane
}

func TestSubtractMean(t *testing.T) {
	data := []float32{10, 20, 30}
	mean := []float32{1, 2, 3}
	SubtractMean(data, mean)
	require.Equal(t, []float32{9, 18, 27}, data)
}
