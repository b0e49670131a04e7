// Package vis renders network weights and layer activations as images and
// generates synthetic inputs which maximise the response of a feature map.
package vis

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand"

	"github.com/mgmoghadam/cic-ml-intermediate-workshop/nnet"
	"github.com/mgmoghadam/cic-ml-intermediate-workshop/num"
)

const (
	factorMinOutput = 20
	aspectOutput    = 0.2
	factorMinFilter = 20
	aspectFilter    = 0.75
	normEpsilon     = 1e-5
)

// blue - green - red colormap used to display signed values
var cmap = [][3]float32{{0, 0, .5}, {0, 0, 1}, {0, .5, 1}, {0, 1, 1}, {.5, 1, .5}, {1, 1, 0}, {1, .5, 0}, {1, 0, 0}, {.5, 0, 0}}

// OutputImage renders the current output of the given layer.
// 2 dimensional outputs give one pixel per unit, 4 dimensional outputs a
// bordered grid with one tile per feature map. Values are mapped to a
// colormap over the cmin to cmax range.
func OutputImage(layer nnet.Layer, cmin, cmax float32) *image.NRGBA {
	out := layer.Output()
	dims := out.Dims()
	data := out.Float()
	switch len(dims) {
	case 2:
		rows, cols := factorise(dims[1], factorMinOutput, aspectOutput)
		img := image.NewNRGBA(image.Rect(0, 0, cols, rows))
		for i, val := range data[:dims[1]] {
			img.Set(i%cols, i/cols, MapColor(val, cmin, cmax))
		}
		return img
	case 4:
		nfeat, h, w := dims[1], dims[2], dims[3]
		rows, cols := factorise(nfeat, factorMinOutput, aspectOutput)
		img := image.NewNRGBA(image.Rect(0, 0, (w+1)*cols, (h+1)*rows))
		for f := 0; f < nfeat; f++ {
			xb := (w + 1) * (f % cols)
			yb := (h + 1) * (f / cols)
			plane := data[f*h*w : (f+1)*h*w]
			for j, val := range plane {
				img.Set(xb+j%w+1, yb+j/w+1, MapColor(val, cmin, cmax))
			}
		}
		return img
	default:
		return nil
	}
}

// WeightImage renders the weights of a linear or convolutional layer as a
// bordered grid with one tile per output unit or feature. The border is
// coloured by the bias for that unit.
func WeightImage(layer nnet.ParamLayer) *image.NRGBA {
	W, B := layer.Params()
	wDims := W.Dims()
	wData, bData := W.Float(), B.Float()
	var ix, iy, ox, oy int
	var blocks [][]float32
	switch len(wDims) {
	case 2:
		// linear layer: weights are nin x nout, one column per output unit
		nin, nout := wDims[0], wDims[1]
		iy, ix = factorise(nin, 0, 1)
		oy, ox = factorise(nout, factorMinFilter, aspectFilter)
		blocks = make([][]float32, nout)
		for i := range blocks {
			col := make([]float32, nin)
			for j := 0; j < nin; j++ {
				col[j] = wData[j*nout+i]
			}
			blocks[i] = col
		}
	case 4:
		// conv layer: stack the kernel for each input channel vertically
		nfeat, nchan, size := wDims[0], wDims[1], wDims[2]
		ix, iy = size, size*nchan
		if nchan == 1 {
			oy, ox = factorise(nfeat, factorMinFilter, aspectFilter)
		} else {
			oy, ox = 1, nfeat
		}
		bsize := nchan * size * size
		blocks = make([][]float32, nfeat)
		for i := range blocks {
			blocks[i] = wData[i*bsize : (i+1)*bsize]
		}
	default:
		return nil
	}
	scale := 5 * float32(1/math.Sqrt(float64(ix*iy)))
	img := image.NewNRGBA(image.Rect(0, 0, (ix+1)*ox, (iy+1)*oy))
	for i, block := range blocks {
		xb := (ix + 1) * (i % ox)
		yb := (iy + 1) * (i / ox)
		biasCol := MapColor(bData[i], -scale, scale)
		for j := 0; j <= ix; j++ {
			img.Set(xb+j, yb, biasCol)
		}
		for j := 0; j <= iy; j++ {
			img.Set(xb, yb+j, biasCol)
		}
		for j, val := range block {
			img.Set(xb+j%ix+1, yb+j/ix+1, MapColor(val, -scale, scale))
		}
	}
	return img
}

// InputImage renders a single network input in the 0 to 1 range.
// Single channel inputs are drawn in greyscale, 3 channel inputs in colour.
func InputImage(x *num.Array) *image.NRGBA {
	dims := x.Dims()
	if len(dims) != 4 {
		return nil
	}
	nchan, h, w := dims[1], dims[2], dims[3]
	data := x.Float()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < h*w; i++ {
		var col color.NRGBA
		if nchan >= 3 {
			col = color.NRGBA{clamp8(data[i]), clamp8(data[h*w+i]), clamp8(data[2*h*w+i]), 255}
		} else {
			v := clamp8(data[i])
			col = color.NRGBA{v, v, v, 255}
		}
		img.Set(i%w, i/w, col)
	}
	return img
}

// Maximizer generates network inputs which maximise the mean activation of a
// chosen feature map by gradient ascent starting from random noise.
// The network must have been built with batch size 1.
type Maximizer struct {
	Steps    int
	StepSize float32
	net      *nnet.Network
	rng      *rand.Rand
}

// NewMaximizer creates a maximizer with default settings for the given net.
func NewMaximizer(net *nnet.Network, rng *rand.Rand) *Maximizer {
	if net.BatchSize() != 1 {
		panic("vis: Maximizer needs a network with batch size 1")
	}
	return &Maximizer{Steps: 30, StepSize: 1, net: net, rng: rng}
}

// Maximize runs gradient ascent on a noise image to maximise the mean
// activation of the given feature map, or unit for 2 dimensional layers.
// Returns the input image data clipped to the 0 to 1 range.
func (m *Maximizer) Maximize(layer, feature int) (*num.Array, error) {
	layers := m.net.Layers
	if layer < 0 || layer >= len(layers) {
		return nil, fmt.Errorf("vis: layer %d out of range", layer)
	}
	inShape := m.net.InShape()
	input := num.NewArray(num.Float32, inShape...)
	in := input.Float()
	for i := range in {
		in[i] = 0.45 + 0.1*m.rng.Float32()
	}
	for step := 0; step < m.Steps; step++ {
		out := input
		for i := 0; i <= layer; i++ {
			out = layers[i].Fprop(out, false)
		}
		grad, err := lossGrad(out, feature)
		if err != nil {
			return nil, err
		}
		for i := layer; i >= 0; i-- {
			grad = layers[i].Bprop(grad)
		}
		g := grad.Float()
		var sumsq float64
		for _, v := range g {
			sumsq += float64(v * v)
		}
		norm := float32(math.Sqrt(sumsq/float64(len(g)))) + normEpsilon
		for i, v := range g {
			in[i] += m.StepSize * v / norm
			if in[i] < 0 {
				in[i] = 0
			} else if in[i] > 1 {
				in[i] = 1
			}
		}
	}
	return input, nil
}

// MaximizeGrid runs Maximize for each of the given features and renders the
// results as a bordered grid of input images.
func (m *Maximizer) MaximizeGrid(layer int, features []int) (*image.NRGBA, error) {
	inShape := m.net.InShape()
	if len(inShape) != 4 {
		return nil, fmt.Errorf("vis: grid needs a 4 dimensional input, have %v", inShape)
	}
	h, w := inShape[2], inShape[3]
	rows, cols := factorise(len(features), factorMinOutput, aspectFilter)
	img := image.NewNRGBA(image.Rect(0, 0, (w+1)*cols, (h+1)*rows))
	for n, feat := range features {
		input, err := m.Maximize(layer, feat)
		if err != nil {
			return nil, err
		}
		tile := InputImage(input)
		xb := (w + 1) * (n % cols)
		yb := (h + 1) * (n / cols)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.Set(xb+x+1, yb+y+1, tile.At(x, y))
			}
		}
	}
	return img, nil
}

// gradient of the objective: mean activation over the chosen feature map
func lossGrad(out *num.Array, feature int) (*num.Array, error) {
	dims := out.Dims()
	grad := num.NewArray(num.Float32, dims...)
	g := grad.Float()
	switch len(dims) {
	case 2:
		if feature < 0 || feature >= dims[1] {
			return nil, fmt.Errorf("vis: unit %d out of range for output %v", feature, dims)
		}
		g[feature] = 1
	case 4:
		nfeat, h, w := dims[1], dims[2], dims[3]
		if feature < 0 || feature >= nfeat {
			return nil, fmt.Errorf("vis: feature %d out of range for output %v", feature, dims)
		}
		val := 1 / float32(h*w)
		for i := feature * h * w; i < (feature+1)*h*w; i++ {
			g[i] = val
		}
	default:
		return nil, fmt.Errorf("vis: output shape %v not supported", dims)
	}
	return grad, nil
}

// MapColor converts a value in the cmin to cmax range to an interpolated
// color from the colormap.
func MapColor(val, cmin, cmax float32) color.NRGBA {
	var col [3]float32
	ncol := len(cmap)
	switch {
	case val <= cmin:
		col = cmap[0]
	case val >= cmax:
		col = cmap[ncol-1]
	default:
		vsc := float32(ncol-1) * (val - cmin) / (cmax - cmin)
		ix := int(vsc)
		fx := vsc - float32(ix)
		for i := range col {
			col[i] = cmap[ix][i]*(1-fx) + cmap[ix+1][i]*fx
		}
	}
	return color.NRGBA{uint8(col[0] * 255), uint8(col[1] * 255), uint8(col[2] * 255), 255}
}

func clamp8(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v * 255)
}

// if n > nmin returns f1, f2 where f1*f2 = n and f1 <= aspect * f2 else 1, n
func factorise(n, nmin int, aspect float64) (f1, f2 int) {
	if n < 1 {
		panic("factorise: input must be >= 1")
	}
	if n > nmin {
		for f1 = int(math.Sqrt(float64(n) * aspect)); f1 > 1; f1-- {
			if n%f1 == 0 {
				return f1, n / f1
			}
		}
	}
	return 1, n
}
