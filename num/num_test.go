package num

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReshape(t *testing.T) {
	a := NewArrayFrom([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b := a.Reshape(3, -1)
	assert.Equal(t, []int{3, 2}, b.Dims())
	b.Float()[0] = 9
	assert.Equal(t, float32(9), a.Float()[0], "reshaped array shares the buffer")
	assert.Panics(t, func() { a.Reshape(4, 2) })
}

func TestGemm(t *testing.T) {
	a := NewArrayFrom([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b := NewArrayFrom([]float32{7, 8, 9, 10, 11, 12}, 3, 2)
	c := NewArray(Float32, 2, 2)
	Gemm(1, 0, a, b, c, NoTrans, NoTrans)
	assert.Equal(t, []float32{58, 64, 139, 154}, c.Float())

	// c += a x b with a stored transposed
	at := NewArrayFrom([]float32{1, 4, 2, 5, 3, 6}, 3, 2)
	Gemm(1, 1, at, b, c, Trans, NoTrans)
	assert.Equal(t, []float32{116, 128, 278, 308}, c.Float())

	// b transposed
	bt := NewArrayFrom([]float32{7, 9, 11, 8, 10, 12}, 2, 3)
	c2 := NewArray(Float32, 2, 2)
	Gemm(1, 0, a, bt, c2, NoTrans, Trans)
	assert.Equal(t, []float32{58, 64, 139, 154}, c2.Float())
}

func TestTranspose(t *testing.T) {
	a := NewArrayFrom([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b := NewArray(Float32, 3, 2)
	Transpose(a, b)
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, b.Float())
}

func TestAxpySum(t *testing.T) {
	x := NewArrayFrom([]float32{1, 2, 3}, 3)
	y := NewArrayFrom([]float32{10, 20, 30}, 3)
	Axpy(2, x, y)
	assert.Equal(t, []float32{12, 24, 36}, y.Float())
	assert.Equal(t, float32(72), Sum(y))
}

func TestSumCols(t *testing.T) {
	a := NewArrayFrom([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	dst := NewArray(Float32, 3)
	SumCols(a, dst)
	assert.Equal(t, []float32{5, 7, 9}, dst.Float())
}

func TestOnehotUnhot(t *testing.T) {
	y := NewArray(Int32, 3)
	WriteInt(y, []int32{2, 0, 1})
	y1H := NewArray(Float32, 3, 3)
	Onehot(y, y1H, 3)
	assert.Equal(t, []float32{0, 0, 1, 1, 0, 0, 0, 1, 0}, y1H.Float())

	classes := NewArray(Int32, 3)
	Unhot(y1H, classes)
	assert.Equal(t, []int32{2, 0, 1}, classes.Int())
}

func TestUnhotBinary(t *testing.T) {
	pred := NewArrayFrom([]float32{0.2, 0.9, 0.5}, 3, 1)
	classes := NewArray(Int32, 3)
	Unhot(pred, classes)
	assert.Equal(t, []int32{0, 1, 0}, classes.Int())
}

func TestNeq(t *testing.T) {
	a, b, dst := NewArray(Int32, 4), NewArray(Int32, 4), NewArray(Int32, 4)
	WriteInt(a, []int32{1, 2, 3, 4})
	WriteInt(b, []int32{1, 0, 3, 0})
	Neq(a, b, dst)
	assert.Equal(t, []int32{0, 1, 0, 1}, dst.Int())
}

func TestSoftmax(t *testing.T) {
	x := NewArrayFrom([]float32{1, 2, 3, 1, 1, 1}, 2, 3)
	y := NewArray(Float32, 2, 3)
	Softmax(x, y)
	out := y.Float()
	for row := 0; row < 2; row++ {
		var sum float32
		for col := 0; col < 3; col++ {
			sum += out[row*3+col]
		}
		assert.InDelta(t, 1.0, sum, 1e-6)
	}
	assert.InDelta(t, 1.0/3.0, out[3], 1e-6)
	assert.True(t, out[2] > out[1] && out[1] > out[0])
}

func TestSoftmaxLoss(t *testing.T) {
	y1H := NewArrayFrom([]float32{0, 1}, 1, 2)
	yPred := NewArrayFrom([]float32{0.6, 0.4}, 1, 2)
	loss := NewArray(Float32, 1, 2)
	SoftmaxLoss(y1H, yPred, loss)
	assert.InDelta(t, -math.Log(0.4), float64(Sum(loss)), 1e-6)
}

func TestActivations(t *testing.T) {
	x := NewArrayFrom([]float32{-1, 0, 2}, 3)
	y := NewArray(Float32, 3)

	Relu(x, y)
	assert.Equal(t, []float32{0, 0, 2}, y.Float())

	Sigmoid(x, y)
	assert.InDelta(t, 0.5, float64(y.Float()[1]), 1e-6)

	Tanh(x, y)
	assert.InDelta(t, math.Tanh(2), float64(y.Float()[2]), 1e-6)

	grad := NewArrayFrom([]float32{1, 1, 1}, 3)
	dst := NewArray(Float32, 3)
	ReluD(x, grad, dst)
	assert.Equal(t, []float32{0, 0, 1}, dst.Float())
}

// check analytic derivatives against finite differences
func TestActivationDerivs(t *testing.T) {
	const eps = 1e-3
	funcs := []struct {
		name  string
		activ func(x, y *Array)
		deriv func(x, grad, dst *Array)
	}{
		{"sigmoid", Sigmoid, SigmoidD},
		{"tanh", Tanh, TanhD},
	}
	for _, fn := range funcs {
		x := NewArrayFrom([]float32{-0.5, 0.1, 0.9}, 3)
		grad := NewArrayFrom([]float32{1, 1, 1}, 3)
		dst := NewArray(Float32, 3)
		fn.deriv(x, grad, dst)
		for i := range x.Float() {
			xp, xm := NewArray(Float32, 3), NewArray(Float32, 3)
			Copy(xp, x)
			Copy(xm, x)
			xp.Float()[i] += eps
			xm.Float()[i] -= eps
			yp, ym := NewArray(Float32, 3), NewArray(Float32, 3)
			fn.activ(xp, yp)
			fn.activ(xm, ym)
			numeric := (yp.Float()[i] - ym.Float()[i]) / (2 * eps)
			assert.InDelta(t, float64(numeric), float64(dst.Float()[i]), 1e-3, "%s deriv at %d", fn.name, i)
		}
	}
}
