package num

import (
	"fmt"
	"math"
)

// Fill sets every element of the array to val.
func Fill(a *Array, val float32) {
	if a.dtype == Int32 {
		v := int32(val)
		for i := range a.idata {
			a.idata[i] = v
		}
		return
	}
	for i := range a.fdata {
		a.fdata[i] = val
	}
}

// Copy copies the contents of src to dst.
func Copy(dst, src *Array) {
	checkShape("Copy", dst, src)
	if src.dtype == Int32 {
		copy(dst.idata, src.idata)
	} else {
		copy(dst.fdata, src.fdata)
	}
}

// Write copies data from a slice into the array.
func Write(a *Array, data []float32) {
	if len(data) != a.Size() {
		panic(fmt.Sprintf("num: Write length %d does not match %v", len(data), a.dims))
	}
	copy(a.fdata, data)
}

// WriteInt copies int32 data from a slice into the array.
func WriteInt(a *Array, data []int32) {
	if len(data) != a.Size() {
		panic(fmt.Sprintf("num: WriteInt length %d does not match %v", len(data), a.dims))
	}
	copy(a.idata, data)
}

// Read copies data from the array into a slice.
func Read(a *Array, data []float32) {
	copy(data, a.fdata)
}

// ReadInt copies int32 data from the array into a slice.
func ReadInt(a *Array, data []int32) {
	copy(data, a.idata)
}

// Scale multiplies each element of the array by alpha.
func Scale(alpha float32, a *Array) {
	for i, v := range a.fdata {
		a.fdata[i] = alpha * v
	}
}

// Axpy calculates y += alpha * x
func Axpy(alpha float32, x, y *Array) {
	checkShape("Axpy", x, y)
	for i, v := range x.fdata {
		y.fdata[i] += alpha * v
	}
}

// Mul does elementwise multiplication: dst = a * b
func Mul(a, b, dst *Array) {
	checkShape("Mul", a, b)
	checkShape("Mul", a, dst)
	for i, v := range a.fdata {
		dst.fdata[i] = v * b.fdata[i]
	}
}

// Sum returns the sum over all elements.
func Sum(a *Array) float32 {
	var total float32
	for _, v := range a.fdata {
		total += v
	}
	return total
}

// SumCols sums a [rows, cols] matrix over rows into dst of size [cols].
func SumCols(a, dst *Array) {
	rows, cols := a.dims[0], a.Size()/a.dims[0]
	if dst.Size() != cols {
		panic(fmt.Sprintf("num: SumCols dst size %v does not match %v", dst.dims, a.dims))
	}
	for j := 0; j < cols; j++ {
		dst.fdata[j] = 0
	}
	for i := 0; i < rows; i++ {
		row := a.fdata[i*cols : (i+1)*cols]
		for j, v := range row {
			dst.fdata[j] += v
		}
	}
}

// BiasAdd adds the bias vector to each row of the [rows, cols] matrix.
func BiasAdd(bias, dst *Array) {
	rows, cols := dst.dims[0], dst.Size()/dst.dims[0]
	if bias.Size() != cols {
		panic(fmt.Sprintf("num: BiasAdd bias shape %v does not match %v", bias.dims, dst.dims))
	}
	for i := 0; i < rows; i++ {
		row := dst.fdata[i*cols : (i+1)*cols]
		for j := range row {
			row[j] += bias.fdata[j]
		}
	}
}

// Neq compares two int32 arrays elementwise: dst[i] = 1 if a[i] != b[i]
func Neq(a, b, dst *Array) {
	checkShape("Neq", a, b)
	for i, v := range a.idata {
		if v != b.idata[i] {
			dst.idata[i] = 1
		} else {
			dst.idata[i] = 0
		}
	}
}

// Onehot expands a vector of class labels to a [batch, classes] matrix.
func Onehot(y, dst *Array, classes int) {
	batch := y.Size()
	if dst.Size() != batch*classes {
		panic(fmt.Sprintf("num: Onehot dst shape %v does not match batch %d classes %d", dst.dims, batch, classes))
	}
	for i := range dst.fdata {
		dst.fdata[i] = 0
	}
	for i, label := range y.idata {
		dst.fdata[i*classes+int(label)] = 1
	}
}

// Unhot sets classes to the index of the maximum value in each row of yPred.
func Unhot(yPred, classes *Array) {
	batch := yPred.dims[0]
	n := yPred.Size() / batch
	for i := 0; i < batch; i++ {
		row := yPred.fdata[i*n : (i+1)*n]
		if n == 1 {
			// single output unit: threshold at 0.5
			if row[0] > 0.5 {
				classes.idata[i] = 1
			} else {
				classes.idata[i] = 0
			}
			continue
		}
		imax, vmax := 0, row[0]
		for j, v := range row[1:] {
			if v > vmax {
				imax, vmax = j+1, v
			}
		}
		classes.idata[i] = int32(imax)
	}
}

// Transpose sets dst to the transpose of the src matrix.
func Transpose(src, dst *Array) {
	rows, cols := src.dims[0], src.dims[1]
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			dst.fdata[j*rows+i] = src.fdata[i*cols+j]
		}
	}
}

// Gemm calculates c = alpha * a x b + beta * c with optional transposes.
func Gemm(alpha, beta float32, a, b, c *Array, aTrans, bTrans TransType) {
	am, ak := a.dims[0], a.dims[1]
	if aTrans == Trans {
		am, ak = ak, am
	}
	bk, bn := b.dims[0], b.dims[1]
	if bTrans == Trans {
		bk, bn = bn, bk
	}
	if ak != bk || c.dims[0] != am || c.dims[1] != bn {
		panic(fmt.Sprintf("num: Gemm shape mismatch %v %v => %v", a.dims, b.dims, c.dims))
	}
	if beta == 0 {
		for i := range c.fdata {
			c.fdata[i] = 0
		}
	} else if beta != 1 {
		Scale(beta, c)
	}
	aAt := func(i, k int) float32 {
		if aTrans == Trans {
			return a.fdata[k*a.dims[1]+i]
		}
		return a.fdata[i*a.dims[1]+k]
	}
	for i := 0; i < am; i++ {
		for k := 0; k < ak; k++ {
			av := alpha * aAt(i, k)
			if av == 0 {
				continue
			}
			if bTrans == Trans {
				for j := 0; j < bn; j++ {
					c.fdata[i*bn+j] += av * b.fdata[j*b.dims[1]+k]
				}
			} else {
				brow := b.fdata[k*bn : (k+1)*bn]
				crow := c.fdata[i*bn : (i+1)*bn]
				for j, bv := range brow {
					crow[j] += av * bv
				}
			}
		}
	}
}

// Sigmoid applies the logistic function elementwise: y = 1/(1+exp(-x))
func Sigmoid(x, y *Array) {
	checkShape("Sigmoid", x, y)
	for i, v := range x.fdata {
		y.fdata[i] = float32(1 / (1 + math.Exp(-float64(v))))
	}
}

// SigmoidD is the derivative: dst = sigmoid(x) * (1-sigmoid(x)) * grad
func SigmoidD(x, grad, dst *Array) {
	for i, v := range x.fdata {
		s := float32(1 / (1 + math.Exp(-float64(v))))
		dst.fdata[i] = s * (1 - s) * grad.fdata[i]
	}
}

// Tanh applies the hyperbolic tangent elementwise.
func Tanh(x, y *Array) {
	checkShape("Tanh", x, y)
	for i, v := range x.fdata {
		y.fdata[i] = float32(math.Tanh(float64(v)))
	}
}

// TanhD is the derivative: dst = (1 - tanh(x)^2) * grad
func TanhD(x, grad, dst *Array) {
	for i, v := range x.fdata {
		t := float32(math.Tanh(float64(v)))
		dst.fdata[i] = (1 - t*t) * grad.fdata[i]
	}
}

// Relu applies the rectifier elementwise: y = max(x, 0)
func Relu(x, y *Array) {
	checkShape("Relu", x, y)
	for i, v := range x.fdata {
		if v > 0 {
			y.fdata[i] = v
		} else {
			y.fdata[i] = 0
		}
	}
}

// ReluD is the derivative: dst = grad if x > 0 else 0
func ReluD(x, grad, dst *Array) {
	for i, v := range x.fdata {
		if v > 0 {
			dst.fdata[i] = grad.fdata[i]
		} else {
			dst.fdata[i] = 0
		}
	}
}

// Softmax applies a row-wise softmax to the [batch, classes] matrix.
func Softmax(x, y *Array) {
	batch := x.dims[0]
	n := x.Size() / batch
	for i := 0; i < batch; i++ {
		row := x.fdata[i*n : (i+1)*n]
		out := y.fdata[i*n : (i+1)*n]
		vmax := row[0]
		for _, v := range row[1:] {
			if v > vmax {
				vmax = v
			}
		}
		var sum float32
		for j, v := range row {
			out[j] = float32(math.Exp(float64(v - vmax)))
			sum += out[j]
		}
		for j := range out {
			out[j] /= sum
		}
	}
}

// SoftmaxLoss calculates the cross entropy loss per element.
func SoftmaxLoss(yOneHot, yPred, loss *Array) {
	for i, y := range yOneHot.fdata {
		if y != 0 {
			loss.fdata[i] = -y * float32(math.Log(float64(max32(yPred.fdata[i], 1e-10))))
		} else {
			loss.fdata[i] = 0
		}
	}
}

// QuadraticLoss calculates 0.5*(yPred - y)^2 per element.
func QuadraticLoss(yOneHot, yPred, loss *Array) {
	for i, y := range yOneHot.fdata {
		d := yPred.fdata[i] - y
		loss.fdata[i] = 0.5 * d * d
	}
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
