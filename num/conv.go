package num

import "fmt"

// ConvOutSize returns the output size for a convolution or pooling op.
func ConvOutSize(in, size, stride, pad int) int {
	return (in+2*pad-size)/stride + 1
}

func convCheck(src, weight, dst *Array, stride, pad int) (n, c, h, w, nf, k, oh, ow int) {
	if len(src.dims) != 4 || len(dst.dims) != 4 || len(weight.dims) != 4 {
		panic(fmt.Sprintf("num: conv expects 4d arrays: src %v weight %v dst %v", src.dims, weight.dims, dst.dims))
	}
	n, c, h, w = src.dims[0], src.dims[1], src.dims[2], src.dims[3]
	nf, k = weight.dims[0], weight.dims[2]
	oh, ow = ConvOutSize(h, k, stride, pad), ConvOutSize(w, k, stride, pad)
	if weight.dims[1] != c || dst.dims[0] != n || dst.dims[1] != nf || dst.dims[2] != oh || dst.dims[3] != ow {
		panic(fmt.Sprintf("num: conv shape mismatch: src %v weight %v dst %v stride %d pad %d",
			src.dims, weight.dims, dst.dims, stride, pad))
	}
	return
}

// ConvFprop performs the 2D convolution forward pass.
// src is [batch, channels, h, w], weight is [nfeats, channels, size, size],
// bias is [nfeats] and dst is [batch, nfeats, outh, outw].
func ConvFprop(src, weight, bias, dst *Array, stride, pad int) {
	n, c, h, w, nf, k, oh, ow := convCheck(src, weight, dst, stride, pad)
	for in := 0; in < n; in++ {
		for f := 0; f < nf; f++ {
			b := bias.fdata[f]
			for oy := 0; oy < oh; oy++ {
				for ox := 0; ox < ow; ox++ {
					sum := b
					for ch := 0; ch < c; ch++ {
						sbase := ((in*c + ch) * h) * w
						wbase := ((f*c + ch) * k) * k
						for ky := 0; ky < k; ky++ {
							iy := oy*stride + ky - pad
							if iy < 0 || iy >= h {
								continue
							}
							for kx := 0; kx < k; kx++ {
								ix := ox*stride + kx - pad
								if ix < 0 || ix >= w {
									continue
								}
								sum += src.fdata[sbase+iy*w+ix] * weight.fdata[wbase+ky*k+kx]
							}
						}
					}
					dst.fdata[((in*nf+f)*oh+oy)*ow+ox] = sum
				}
			}
		}
	}
}

// ConvBpropData back propagates the gradient to the layer input.
// grad is [batch, nfeats, outh, outw] and dsrc is [batch, channels, h, w].
func ConvBpropData(grad, weight, dsrc *Array, stride, pad int) {
	n, c, h, w, nf, k, oh, ow := convCheck(dsrc, weight, grad, stride, pad)
	for i := range dsrc.fdata {
		dsrc.fdata[i] = 0
	}
	for in := 0; in < n; in++ {
		for f := 0; f < nf; f++ {
			for oy := 0; oy < oh; oy++ {
				for ox := 0; ox < ow; ox++ {
					g := grad.fdata[((in*nf+f)*oh+oy)*ow+ox]
					if g == 0 {
						continue
					}
					for ch := 0; ch < c; ch++ {
						sbase := ((in*c + ch) * h) * w
						wbase := ((f*c + ch) * k) * k
						for ky := 0; ky < k; ky++ {
							iy := oy*stride + ky - pad
							if iy < 0 || iy >= h {
								continue
							}
							for kx := 0; kx < k; kx++ {
								ix := ox*stride + kx - pad
								if ix < 0 || ix >= w {
									continue
								}
								dsrc.fdata[sbase+iy*w+ix] += g * weight.fdata[wbase+ky*k+kx]
							}
						}
					}
				}
			}
		}
	}
}

// ConvBpropFilter accumulates the filter and bias gradients.
func ConvBpropFilter(src, grad, dw, db *Array, stride, pad int) {
	n, c, h, w, nf, k, oh, ow := convCheck(src, dw, grad, stride, pad)
	for i := range dw.fdata {
		dw.fdata[i] = 0
	}
	for i := range db.fdata {
		db.fdata[i] = 0
	}
	for in := 0; in < n; in++ {
		for f := 0; f < nf; f++ {
			for oy := 0; oy < oh; oy++ {
				for ox := 0; ox < ow; ox++ {
					g := grad.fdata[((in*nf+f)*oh+oy)*ow+ox]
					if g == 0 {
						continue
					}
					db.fdata[f] += g
					for ch := 0; ch < c; ch++ {
						sbase := ((in*c + ch) * h) * w
						wbase := ((f*c + ch) * k) * k
						for ky := 0; ky < k; ky++ {
							iy := oy*stride + ky - pad
							if iy < 0 || iy >= h {
								continue
							}
							for kx := 0; kx < k; kx++ {
								ix := ox*stride + kx - pad
								if ix < 0 || ix >= w {
									continue
								}
								dw.fdata[wbase+ky*k+kx] += g * src.fdata[sbase+iy*w+ix]
							}
						}
					}
				}
			}
		}
	}
}

// MaxPoolFprop performs the max pooling forward pass. mask records the
// index into src of the maximum for each output element so the backward
// pass can route the gradient.
func MaxPoolFprop(src, dst *Array, mask []int, size, stride int) {
	n, c, h, w := src.dims[0], src.dims[1], src.dims[2], src.dims[3]
	oh, ow := ConvOutSize(h, size, stride, 0), ConvOutSize(w, size, stride, 0)
	if dst.dims[2] != oh || dst.dims[3] != ow || len(mask) != dst.Size() {
		panic(fmt.Sprintf("num: MaxPoolFprop shape mismatch: src %v dst %v size %d stride %d",
			src.dims, dst.dims, size, stride))
	}
	for in := 0; in < n; in++ {
		for ch := 0; ch < c; ch++ {
			sbase := ((in*c + ch) * h) * w
			for oy := 0; oy < oh; oy++ {
				for ox := 0; ox < ow; ox++ {
					imax := sbase + oy*stride*w + ox*stride
					vmax := src.fdata[imax]
					for ky := 0; ky < size; ky++ {
						iy := oy*stride + ky
						if iy >= h {
							break
						}
						for kx := 0; kx < size; kx++ {
							ix := ox*stride + kx
							if ix >= w {
								break
							}
							if v := src.fdata[sbase+iy*w+ix]; v > vmax {
								imax, vmax = sbase+iy*w+ix, v
							}
						}
					}
					di := ((in*c+ch)*oh+oy)*ow + ox
					dst.fdata[di] = vmax
					mask[di] = imax
				}
			}
		}
	}
}

// MaxPoolBprop routes the gradient back to the input elements which were
// selected by the forward pass.
func MaxPoolBprop(grad, dsrc *Array, mask []int) {
	for i := range dsrc.fdata {
		dsrc.fdata[i] = 0
	}
	for i, g := range grad.fdata {
		dsrc.fdata[mask[i]] += g
	}
}
