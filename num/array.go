// Package num contains numeric array processing routines such as matrix
// multiplication, activation functions and 2D convolution. All operations
// are implemented in pure Go on float32 or int32 buffers.
package num

import (
	"fmt"
	"strings"
)

// Data type of an element of the array
type DataType int

const (
	Int32 DataType = iota
	Float32
)

// TransType flag indicates if matrix is transposed
type TransType int

const (
	NoTrans TransType = iota
	Trans
)

// Array is an n dimensional array of float32 or int32 values stored in
// row major order. Arrays sharing a buffer may have different shapes.
type Array struct {
	dims  []int
	dtype DataType
	fdata []float32
	idata []int32
}

// NewArray creates a new zeroed array with the given dimensions.
func NewArray(dtype DataType, dims ...int) *Array {
	a := &Array{dims: append([]int{}, dims...), dtype: dtype}
	switch dtype {
	case Float32:
		a.fdata = make([]float32, Prod(dims))
	case Int32:
		a.idata = make([]int32, Prod(dims))
	default:
		panic(fmt.Sprintf("num: invalid data type %d", dtype))
	}
	return a
}

// NewArrayFrom creates a float32 array initialised with a copy of data.
func NewArrayFrom(data []float32, dims ...int) *Array {
	if len(data) != Prod(dims) {
		panic(fmt.Sprintf("num: data length %d does not match shape %v", len(data), dims))
	}
	a := NewArray(Float32, dims...)
	copy(a.fdata, data)
	return a
}

// Dtype returns the array element type.
func (a *Array) Dtype() DataType { return a.dtype }

// Dims returns the array shape.
func (a *Array) Dims() []int { return a.dims }

// Size returns the total number of elements.
func (a *Array) Size() int { return Prod(a.dims) }

// Float returns the underlying float32 buffer.
func (a *Array) Float() []float32 {
	if a.dtype != Float32 {
		panic("num: not a float32 array")
	}
	return a.fdata
}

// Int returns the underlying int32 buffer.
func (a *Array) Int() []int32 {
	if a.dtype != Int32 {
		panic("num: not an int32 array")
	}
	return a.idata
}

// Reshape returns a new array sharing the same buffer with updated
// dimensions. A single dimension may be -1 to infer its size.
func (a *Array) Reshape(dims ...int) *Array {
	shape := append([]int{}, dims...)
	unknown := -1
	known := 1
	for i, d := range shape {
		if d == -1 {
			if unknown >= 0 {
				panic("num: Reshape can infer at most one dimension")
			}
			unknown = i
		} else {
			known *= d
		}
	}
	if unknown >= 0 {
		shape[unknown] = a.Size() / known
	}
	if Prod(shape) != a.Size() {
		panic(fmt.Sprintf("num: cannot reshape %v to %v", a.dims, dims))
	}
	return &Array{dims: shape, dtype: a.dtype, fdata: a.fdata, idata: a.idata}
}

// String formats the array contents for debug output.
func (a *Array) String() string {
	var sb strings.Builder
	rows, cols := 1, a.Size()
	if len(a.dims) >= 2 {
		rows = a.dims[0]
		cols = a.Size() / rows
	}
	for row := 0; row < rows; row++ {
		sb.WriteByte('[')
		for col := 0; col < cols; col++ {
			if a.dtype == Float32 {
				fmt.Fprintf(&sb, "%7.4f", a.fdata[row*cols+col])
			} else {
				fmt.Fprintf(&sb, "%3d", a.idata[row*cols+col])
			}
			if col < cols-1 {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString("]\n")
	}
	return sb.String()
}

// Prod returns the product of the dimensions, or 1 for an empty slice.
func Prod(dims []int) int {
	p := 1
	for _, d := range dims {
		p *= d
	}
	return p
}

// SameShape tests if the two arrays have identical dimensions.
func SameShape(a, b *Array) bool {
	if len(a.dims) != len(b.dims) {
		return false
	}
	for i, d := range a.dims {
		if b.dims[i] != d {
			return false
		}
	}
	return true
}

func checkShape(op string, a, b *Array) {
	if a.Size() != b.Size() {
		panic(fmt.Sprintf("num: %s size mismatch %v %v", op, a.dims, b.dims))
	}
}
