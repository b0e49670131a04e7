package nnet

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgmoghadam/cic-ml-intermediate-workshop/num"
)

const (
	batch = 5
	nIn   = 6
	nOut  = 4
)

func randArray(rng *rand.Rand, size int, min, max float32) []float32 {
	v := make([]float32, size)
	for i := range v {
		v[i] = min + rng.Float32()*(max-min)
	}
	return v
}

func TestLayerConfigRoundTrip(t *testing.T) {
	layers := []ConfigLayer{
		Conv{Nfeats: 20, Size: 5, Pad: 2},
		MaxPool{Size: 2},
		Linear{Nout: 100},
		Activation{Atype: "relu"},
		Dropout{Ratio: 0.5},
		Flatten{},
		LogRegression{},
	}
	for _, l := range layers {
		conf := l.Marshal()
		layer := conf.Unmarshal()
		assert.NotNil(t, layer, conf.Type)
	}
	assert.Panics(t, func() { LayerConfig{Type: "bogus"}.Unmarshal() })
}

func TestLinearFprop(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	l := Linear{Nout: nOut}.Marshal().Unmarshal().(ParamLayer)
	l.Init([]int{batch, nIn}, rng)
	W, B := l.Params()
	weights := randArray(rng, nIn*nOut, -0.5, 0.5)
	bias := randArray(rng, nOut, 0.1, 0.2)
	num.Write(W, weights)
	num.Write(B, bias)

	input := num.NewArrayFrom(randArray(rng, batch*nIn, 0, 1), batch, nIn)
	out := l.Fprop(input, false)
	require.Equal(t, []int{batch, nOut}, out.Dims())
	// check one element against a direct calculation
	want := bias[2]
	for k := 0; k < nIn; k++ {
		want += input.Float()[1*nIn+k] * weights[k*nOut+2]
	}
	assert.InDelta(t, float64(want), float64(out.Float()[1*nOut+2]), 1e-5)
}

// compare the linear layer gradients against finite differences
func TestLinearBprop(t *testing.T) {
	const eps = 1e-2
	rng := rand.New(rand.NewSource(42))
	l := Linear{Nout: nOut}.Marshal().Unmarshal().(ParamLayer)
	l.Init([]int{batch, nIn}, rng)
	l.InitParams(0.5, 0.1, false, rng)
	input := num.NewArrayFrom(randArray(rng, batch*nIn, 0, 1), batch, nIn)

	// loss = sum of outputs
	sumOut := func() float32 {
		return num.Sum(l.Fprop(input, true))
	}
	sumOut()
	grad := num.NewArray(num.Float32, batch, nOut)
	num.Fill(grad, 1)
	dsrc := l.Bprop(grad)
	dW, dB := l.ParamGrads()
	W, B := l.Params()

	check := func(name string, param *num.Array, analytic []float32) {
		data := param.Float()
		for i := range data {
			orig := data[i]
			data[i] = orig + eps
			fp := sumOut()
			data[i] = orig - eps
			fm := sumOut()
			data[i] = orig
			numeric := (fp - fm) / (2 * eps)
			require.InDelta(t, float64(numeric), float64(analytic[i]), 1e-2, "%s grad at %d", name, i)
		}
	}
	check("weight", W, dW.Float())
	check("bias", B, dB.Float())
	check("input", input, dsrc.Float())
}

func TestConvLayerShape(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	l := Conv{Nfeats: 8, Size: 5, Pad: 2}.Marshal().Unmarshal()
	inShape := []int{2, 1, 28, 28}
	l.Init(inShape, rng)
	assert.Equal(t, []int{2, 8, 28, 28}, l.OutShape(inShape))

	pool := MaxPool{Size: 2}.Marshal().Unmarshal()
	pool.Init([]int{2, 8, 28, 28}, rng)
	assert.Equal(t, []int{2, 8, 14, 14}, pool.OutShape([]int{2, 8, 28, 28}))
}

func TestDropout(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	l := Dropout{Ratio: 0.5}.Marshal().Unmarshal()
	l.Init([]int{1, 1000}, rng)
	input := num.NewArray(num.Float32, 1, 1000)
	num.Fill(input, 1)

	// at predict time the input passes through unchanged
	out := l.Fprop(input, false)
	assert.Equal(t, input.Float(), out.Float())

	// at train time roughly half the units are zero and the rest scaled by 2
	out = l.Fprop(input, true)
	zeros, scaled := 0, 0
	for _, v := range out.Float() {
		switch v {
		case 0:
			zeros++
		case 2:
			scaled++
		}
	}
	assert.Equal(t, 1000, zeros+scaled)
	assert.InDelta(t, 500, zeros, 100)

	// gradient is routed through the same mask
	grad := num.NewArray(num.Float32, 1, 1000)
	num.Fill(grad, 1)
	dsrc := l.Bprop(grad)
	for i, v := range out.Float() {
		assert.Equal(t, v, dsrc.Float()[i])
	}

	// after a predict mode fprop the mask no longer applies
	l.Fprop(input, false)
	dsrc = l.Bprop(grad)
	assert.Equal(t, grad.Float(), dsrc.Float())
}

func TestFlatten(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	l := Flatten{}.Marshal().Unmarshal()
	l.Init([]int{2, 3, 4, 4}, rng)
	assert.Equal(t, []int{2, 48}, l.OutShape([]int{2, 3, 4, 4}))

	input := num.NewArray(num.Float32, 2, 3, 4, 4)
	out := l.Fprop(input, true)
	assert.Equal(t, []int{2, 48}, out.Dims())

	grad := num.NewArray(num.Float32, 2, 48)
	dsrc := l.Bprop(grad)
	assert.Equal(t, []int{2, 3, 4, 4}, dsrc.Dims())
}

func TestLogRegression(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	l := LogRegression{}.Marshal().Unmarshal().(OutputLayer)
	l.Init([]int{2, 3}, rng)
	input := num.NewArrayFrom([]float32{1, 2, 3, 3, 2, 1}, 2, 3)
	out := l.Fprop(input, false)
	var sum float32
	for _, v := range out.Float()[:3] {
		sum += v
	}
	assert.InDelta(t, 1.0, float64(sum), 1e-6)

	y1H := num.NewArrayFrom([]float32{0, 0, 1, 1, 0, 0}, 2, 3)
	loss := l.Loss(y1H, out)
	assert.True(t, num.Sum(loss) > 0)
}

func TestFrozenLayer(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	l := Linear{Nout: nOut}.Marshal().Unmarshal().(ParamLayer)
	l.Init([]int{batch, nIn}, rng)
	l.InitParams(0.5, 0.1, false, rng)
	W, _ := l.Params()
	before := append([]float32{}, W.Float()...)

	input := num.NewArrayFrom(randArray(rng, batch*nIn, 0, 1), batch, nIn)
	grad := num.NewArray(num.Float32, batch, nOut)
	num.Fill(grad, 1)
	l.Fprop(input, true)
	l.Bprop(grad)

	l.SetFrozen(true)
	assert.True(t, l.Frozen())
	l.UpdateParams(0.1, 0)
	assert.Equal(t, before, W.Float(), "frozen layer weights should not change")

	l.SetFrozen(false)
	l.UpdateParams(0.1, 0)
	assert.NotEqual(t, before, W.Float())
}
