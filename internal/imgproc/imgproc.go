// Package imgproc implements the per-frame image transforms the evaluator
// pipes each decoded frame through (spec §4.5): NV12 -> RGBA, RGBA -> BGR,
// resize with linear interpolation, float conversion, and mean
// subtraction. No pure-Go image-processing library in the example pack
// covers YUV planar conversion or a mean-subtract step tailored to a
// network input tensor (DESIGN.md records this), so this package is
// standard-library only, built directly against byte slices rather than
// image.Image to avoid a conversion no caller needs.
package imgproc

// NV12ToRGBA converts one NV12 frame (separate Y and interleaved UV
// planes, strides given explicitly since decoder output strides are not
// guaranteed tight) into an RGBA byte slice of width*height*4, using the
// BT.601 full-range coefficients.
func NV12ToRGBA(y, uv []byte, yStride, uvStride, width, height int) []byte {
	out := make([]byte, width*height*4)
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			yy := int(y[row*yStride+col])
			uvRow := row / 2
			uvCol := (col / 2) * 2
			u := int(uv[uvRow*uvStride+uvCol]) - 128
			v := int(uv[uvRow*uvStride+uvCol+1]) - 128

			r := clamp8(yy + (91881*v)>>16)
			g := clamp8(yy - (22554*u+46802*v)>>16)
			b := clamp8(yy + (116130*u)>>16)

			o := (row*width + col) * 4
			out[o] = r
			out[o+1] = g
			out[o+2] = b
			out[o+3] = 255
		}
	}
	return out
}

// RGBAToBGR drops alpha and swaps channel order, producing width*height*3.
func RGBAToBGR(rgba []byte, width, height int) []byte {
	out := make([]byte, width*height*3)
	for i := 0; i < width*height; i++ {
		out[i*3] = rgba[i*4+2]
		out[i*3+1] = rgba[i*4+1]
		out[i*3+2] = rgba[i*4]
	}
	return out
}

// ResizeLinearBGR resizes a BGR image (width*height*3) to (dstSize,
// dstSize) using bilinear interpolation (spec §4.5 "resize to
// (net_input, net_input) with linear interpolation").
func ResizeLinearBGR(src []byte, srcW, srcH, dstSize int) []byte {
	out := make([]byte, dstSize*dstSize*3)
	if srcW <= 1 || srcH <= 1 {
		for i := range out {
			out[i] = src[i%len(src)]
		}
		return out
	}

	scaleX := float64(srcW-1) / float64(dstSize-1)
	scaleY := float64(srcH-1) / float64(dstSize-1)
	if dstSize == 1 {
		scaleX, scaleY = 0, 0
	}

	for dy := 0; dy < dstSize; dy++ {
		sy := float64(dy) * scaleY
		y0 := int(sy)
		y1 := minInt(y0+1, srcH-1)
		fy := sy - float64(y0)

		for dx := 0; dx < dstSize; dx++ {
			sx := float64(dx) * scaleX
			x0 := int(sx)
			x1 := minInt(x0+1, srcW-1)
			fx := sx - float64(x0)

			for c := 0; c < 3; c++ {
				p00 := float64(src[(y0*srcW+x0)*3+c])
				p01 := float64(src[(y0*srcW+x1)*3+c])
				p10 := float64(src[(y1*srcW+x0)*3+c])
				p11 := float64(src[(y1*srcW+x1)*3+c])

				top := p00*(1-fx) + p01*fx
				bottom := p10*(1-fx) + p11*fx
				val := top*(1-fy) + bottom*fy

				out[(dy*dstSize+dx)*3+c] = clamp8(int(val + 0.5))
			}
		}
	}
	return out
}

// ToFloatChannelPlanar converts an interleaved BGR byte image into
// channel-planar float32 (spec §4.5 "convert to 32-bit float per
// channel"), writing into dst at dst[dstOffset:].
func ToFloatChannelPlanar(bgr []byte, size int, dst []float32, dstOffset int) {
	stride := size * size
	for i := 0; i < stride; i++ {
		dst[dstOffset+i] = float32(bgr[i*3])
		dst[dstOffset+stride+i] = float32(bgr[i*3+1])
		dst[dstOffset+stride*2+i] = float32(bgr[i*3+2])
	}
}

// SubtractMean subtracts mean (channel-planar, same size) from data in
// place (spec §4.5 "subtract the per-channel mean image").
func SubtractMean(data []float32, mean []float32) {
	for i := range data {
		data[i] -= mean[i]
	}
}

func clamp8(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
