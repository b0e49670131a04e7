package img

import (
	"math"
)

func gaussian1d(sigma float64, size int) []float32 {
	kernel := make([]float32, 2*size+1)
	for x := -size; x <= size; x++ {
		d2 := float64(x * x)
		kernel[x+size] = float32(math.Exp(-d2/(2*sigma*sigma)) / (math.Sqrt(2*math.Pi) * sigma))
	}
	return kernel
}

// Convolution to apply kernel to image
type Convolution interface {
	Apply(in, out []float32)
}

// Convolution with a separable 1d kernel applied in each direction
type conv struct {
	w, h  int
	ksize int
	kdata []float32
}

func NewConv(kernel []float32, ksize, width, height int) Convolution {
	return &conv{w: width, h: height, ksize: ksize, kdata: kernel}
}

func (c *conv) Apply(in, out []float32) {
	temp := make([]float32, c.w*c.h)
	// horizontal pass
	for y := 0; y < c.h; y++ {
		for x := 0; x < c.w; x++ {
			var sum, weight float32
			for k := -c.ksize; k <= c.ksize; k++ {
				ix := x + k
				if ix < 0 || ix >= c.w {
					continue
				}
				kv := c.kdata[k+c.ksize]
				sum += kv * in[y*c.w+ix]
				weight += kv
			}
			temp[y*c.w+x] = sum / weight
		}
	}
	// vertical pass
	for y := 0; y < c.h; y++ {
		for x := 0; x < c.w; x++ {
			var sum, weight float32
			for k := -c.ksize; k <= c.ksize; k++ {
				iy := y + k
				if iy < 0 || iy >= c.h {
					continue
				}
				kv := c.kdata[k+c.ksize]
				sum += kv * temp[iy*c.w+x]
				weight += kv
			}
			out[y*c.w+x] = sum / weight
		}
	}
}

// Box blur convolution which approximates a gaussian with three passes
type convBox struct {
	w, h int
	size int
}

// NewConvBox returns a box blur covering the given sigma
func NewConvBox(sigma float64, width, height int) Convolution {
	size := int(math.Sqrt(sigma*sigma*12/3+1)) / 2
	if size < 1 {
		size = 1
	}
	return &convBox{w: width, h: height, size: size}
}

func (c *convBox) Apply(in, out []float32) {
	temp := make([]float32, c.w*c.h)
	copy(out, in)
	for pass := 0; pass < 3; pass++ {
		boxPass(out, temp, c.w, c.h, c.size)
		copy(out, temp)
	}
}

func boxPass(in, out []float32, w, h, size int) {
	norm := float32(1) / float32((2*size+1)*(2*size+1))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float32
			for ky := -size; ky <= size; ky++ {
				for kx := -size; kx <= size; kx++ {
					iy, ix := y+ky, x+kx
					if iy < 0 || iy >= h || ix < 0 || ix >= w {
						continue
					}
					sum += in[iy*w+ix]
				}
			}
			out[y*w+x] = sum * norm
		}
	}
}
