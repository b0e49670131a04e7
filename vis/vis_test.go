package vis

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgmoghadam/cic-ml-intermediate-workshop/nnet"
	"github.com/mgmoghadam/cic-ml-intermediate-workshop/num"
)

func testNet(t *testing.T) *nnet.Network {
	t.Helper()
	conf := nnet.Config{RandSeed: 42}.AddLayers(
		nnet.Conv{Nfeats: 4, Size: 3, Pad: 1},
		nnet.Activation{Atype: "relu"},
		nnet.MaxPool{Size: 2},
		nnet.Flatten{},
		nnet.Linear{Nout: 10},
		nnet.LogRegression{},
	)
	net := nnet.New(conf, 1, []int{1, 8, 8}, nnet.SetSeed(conf.RandSeed))
	net.InitWeights()
	return net
}

func TestOutputImage(t *testing.T) {
	net := testNet(t)
	input := num.NewArray(num.Float32, 1, 1, 8, 8)
	for i := range input.Float() {
		input.Float()[i] = float32(i) / 64
	}
	net.Fprop(input, false)

	img := OutputImage(net.Layers[0], -1, 1)
	require.NotNil(t, img)
	// 4 feature maps of 8x8 with a 1 pixel border
	assert.Equal(t, 9*4, img.Bounds().Dx())
	assert.Equal(t, 9, img.Bounds().Dy())

	img = OutputImage(net.Layers[4], -1, 1)
	require.NotNil(t, img)
	assert.Equal(t, 10, img.Bounds().Dx()*img.Bounds().Dy())
}

func TestWeightImage(t *testing.T) {
	net := testNet(t)
	img := WeightImage(net.Layers[0].(nnet.ParamLayer))
	require.NotNil(t, img)
	// 4 kernels of 3x3 with border
	assert.Equal(t, 16, img.Bounds().Dx())
	assert.Equal(t, 4, img.Bounds().Dy())

	// 10 columns of 64 weights drawn as 8x8 blocks
	img = WeightImage(net.Layers[4].(nnet.ParamLayer))
	require.NotNil(t, img)
	assert.Equal(t, 90, img.Bounds().Dx())
	assert.Equal(t, 9, img.Bounds().Dy())
}

func TestInputImage(t *testing.T) {
	x := num.NewArray(num.Float32, 1, 1, 2, 2)
	copy(x.Float(), []float32{0, 0.5, 1, 2})
	img := InputImage(x)
	require.NotNil(t, img)
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, img.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{127, 127, 127, 255}, img.NRGBAAt(1, 0))
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, img.NRGBAAt(0, 1))
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, img.NRGBAAt(1, 1))
}

func meanActivation(net *nnet.Network, input *num.Array, layer, feature int) float32 {
	out := input
	for i := 0; i <= layer; i++ {
		out = net.Layers[i].Fprop(out, false)
	}
	dims := out.Dims()
	h, w := dims[2], dims[3]
	var sum float32
	for _, v := range out.Float()[feature*h*w : (feature+1)*h*w] {
		sum += v
	}
	return sum / float32(h*w)
}

func TestMaximize(t *testing.T) {
	net := testNet(t)
	m := NewMaximizer(net, nnet.SetSeed(42))
	m.Steps = 20

	input, err := m.Maximize(0, 2)
	require.NoError(t, err)
	for _, v := range input.Float() {
		assert.True(t, v >= 0 && v <= 1, "input pixels clipped to range")
	}

	// activation should be higher than from the starting noise image
	noise := num.NewArray(num.Float32, net.InShape()...)
	rng := nnet.SetSeed(42)
	for i := range noise.Float() {
		noise.Float()[i] = 0.45 + 0.1*rng.Float32()
	}
	before := meanActivation(net, noise, 0, 2)
	after := meanActivation(net, input, 0, 2)
	assert.Greater(t, after, before, "gradient ascent increases the response")
}

func TestMaximizeThroughDropout(t *testing.T) {
	conf := nnet.Config{RandSeed: 7}.AddLayers(
		nnet.Conv{Nfeats: 4, Size: 3, Pad: 1},
		nnet.Activation{Atype: "relu"},
		nnet.Flatten{},
		nnet.Dropout{Ratio: 0.5},
		nnet.Linear{Nout: 10},
		nnet.LogRegression{},
	)
	net := nnet.New(conf, 1, []int{1, 8, 8}, nnet.SetSeed(conf.RandSeed))
	net.InitWeights()

	m := NewMaximizer(net, nnet.SetSeed(7))
	m.Steps = 10
	input, err := m.Maximize(4, 0)
	require.NoError(t, err)

	// the dropout mask is not applied at predict time, so the gradient
	// must flow through it and move the image away from the noise start
	noise := num.NewArray(num.Float32, net.InShape()...)
	rng := nnet.SetSeed(7)
	for i := range noise.Float() {
		noise.Float()[i] = 0.45 + 0.1*rng.Float32()
	}
	assert.NotEqual(t, noise.Float(), input.Float())

	logit := func(x *num.Array) float32 {
		out := x
		for i := 0; i <= 4; i++ {
			out = net.Layers[i].Fprop(out, false)
		}
		return out.Float()[0]
	}
	assert.Greater(t, logit(input), logit(noise))
}

func TestMaximizeDeterministic(t *testing.T) {
	net := testNet(t)
	m1 := NewMaximizer(net, nnet.SetSeed(99))
	m1.Steps = 5
	x1, err := m1.Maximize(0, 1)
	require.NoError(t, err)

	m2 := NewMaximizer(net, nnet.SetSeed(99))
	m2.Steps = 5
	x2, err := m2.Maximize(0, 1)
	require.NoError(t, err)
	assert.Equal(t, x1.Float(), x2.Float())
}

func TestMaximizeErrors(t *testing.T) {
	net := testNet(t)
	m := NewMaximizer(net, nnet.SetSeed(1))
	_, err := m.Maximize(99, 0)
	assert.Error(t, err)
	_, err = m.Maximize(0, 99)
	assert.Error(t, err)
}

func TestMaximizeGrid(t *testing.T) {
	net := testNet(t)
	m := NewMaximizer(net, nnet.SetSeed(7))
	m.Steps = 3
	img, err := m.MaximizeGrid(0, []int{0, 1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 9*4, img.Bounds().Dx())
	assert.Equal(t, 9, img.Bounds().Dy())
}

func TestMapColor(t *testing.T) {
	assert.Equal(t, color.NRGBA{0, 0, 127, 255}, MapColor(-2, -1, 1))
	assert.Equal(t, color.NRGBA{127, 0, 0, 255}, MapColor(2, -1, 1))
	mid := MapColor(0, -1, 1)
	assert.Equal(t, uint8(255), mid.G)
}
