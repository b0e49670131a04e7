package nnet

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/mgmoghadam/cic-ml-intermediate-workshop/num"
)

// Layer interface type represents one layer of the neural net.
type Layer interface {
	Init(inShape []int, rng *rand.Rand) Layer
	OutShape(inShape []int) []int
	Fprop(in *num.Array, train bool) *num.Array
	Bprop(grad *num.Array) *num.Array
	Output() *num.Array
	ToString() string
}

// ParamLayer is a layer with weight and bias parameters
type ParamLayer interface {
	Layer
	InitParams(scale, bias float32, normal bool, rng *rand.Rand)
	Params() (W, B *num.Array)
	ParamGrads() (dW, dB *num.Array)
	SetParams(W, B *num.Array)
	UpdateParams(learningRate, weightDecay float32)
	Frozen() bool
	SetFrozen(frozen bool)
}

// OutputLayer is the final layer in the stack
type OutputLayer interface {
	Layer
	Loss(yOneHot, yPred *num.Array) *num.Array
}

// Layer configuration details
type LayerConfig struct {
	Type string
	Data json.RawMessage `json:",omitempty"`
}

type ConfigLayer interface {
	Marshal() LayerConfig
}

// Unmarshal JSON data and construct new layer
func (l LayerConfig) Unmarshal() Layer {
	switch l.Type {
	case "conv":
		cfg := new(Conv)
		return cfg.unmarshal(l.Data)
	case "maxPool":
		cfg := new(MaxPool)
		return cfg.unmarshal(l.Data)
	case "linear":
		cfg := new(Linear)
		return cfg.unmarshal(l.Data)
	case "activation":
		cfg := new(Activation)
		return cfg.unmarshal(l.Data)
	case "dropout":
		cfg := new(Dropout)
		return cfg.unmarshal(l.Data)
	case "logRegression":
		return &logRegression{}
	case "flatten":
		return &flatten{}
	default:
		panic("invalid layer type: " + l.Type)
	}
}

func (l LayerConfig) String() string {
	return l.Unmarshal().ToString()
}

// Convolutional layer, implements ParamLayer interface.
type Conv struct {
	Nfeats, Size, Stride, Pad int
}

func (c Conv) Marshal() LayerConfig {
	if c.Stride == 0 {
		c.Stride = 1
	}
	return LayerConfig{Type: "conv", Data: marshal(c)}
}

func (c Conv) ToString() string {
	return fmt.Sprintf("conv %+v", c)
}

func (c *Conv) unmarshal(data json.RawMessage) Layer {
	unmarshal(data, c)
	if c.Stride == 0 {
		c.Stride = 1
	}
	return &conv{Conv: *c}
}

// Max pooling layer, should follow conv layer.
type MaxPool struct {
	Size, Stride int
}

func (c MaxPool) Marshal() LayerConfig {
	if c.Stride == 0 {
		c.Stride = c.Size
	}
	return LayerConfig{Type: "maxPool", Data: marshal(c)}
}

func (c MaxPool) ToString() string {
	return fmt.Sprintf("maxPool %+v", c)
}

func (c *MaxPool) unmarshal(data json.RawMessage) Layer {
	unmarshal(data, c)
	if c.Stride == 0 {
		c.Stride = c.Size
	}
	return &maxPool{MaxPool: *c}
}

// Linear fully connected layer, implements ParamLayer interface.
type Linear struct {
	Nout int
}

func (c Linear) Marshal() LayerConfig {
	return LayerConfig{Type: "linear", Data: marshal(c)}
}

func (c Linear) ToString() string {
	return fmt.Sprintf("linear %+v", c)
}

func (c *Linear) unmarshal(data json.RawMessage) Layer {
	unmarshal(data, c)
	return &linear{Linear: *c}
}

// Sigmoid, tanh or relu activation layer.
type Activation struct {
	Atype string
}

func (c Activation) Marshal() LayerConfig {
	return LayerConfig{Type: "activation", Data: marshal(c)}
}

func (c Activation) ToString() string {
	return fmt.Sprintf("activation %+v", c)
}

func (c *Activation) unmarshal(data json.RawMessage) Layer {
	unmarshal(data, c)
	layer := &activation{Activation: *c}
	switch c.Atype {
	case "sigmoid":
		layer.activ = num.Sigmoid
		layer.deriv = num.SigmoidD
	case "tanh":
		layer.activ = num.Tanh
		layer.deriv = num.TanhD
	case "relu":
		layer.activ = num.Relu
		layer.deriv = num.ReluD
	default:
		panic(fmt.Sprintf("activation type %s invalid", c.Atype))
	}
	return layer
}

// Dropout layer randomly zeroes a fraction of the inputs during training.
type Dropout struct {
	Ratio float64
}

func (c Dropout) Marshal() LayerConfig {
	return LayerConfig{Type: "dropout", Data: marshal(c)}
}

func (c Dropout) ToString() string {
	return fmt.Sprintf("dropout %+v", c)
}

func (c *Dropout) unmarshal(data json.RawMessage) Layer {
	unmarshal(data, c)
	return &dropout{Dropout: *c}
}

// LogRegression output layer with soft max activation.
type LogRegression struct{}

func (c LogRegression) Marshal() LayerConfig {
	return LayerConfig{Type: "logRegression"}
}

func (c LogRegression) ToString() string { return "logRegression" }

// Flatten layer reshapes from 4 to 2 dimensions.
type Flatten struct{}

func (c Flatten) Marshal() LayerConfig {
	return LayerConfig{Type: "flatten"}
}

func (c Flatten) ToString() string { return "flatten" }

// linear layer implementation
type linear struct {
	Linear
	layerBase
	paramBase
}

func (l *linear) OutShape(inShape []int) []int {
	return []int{inShape[0], l.Nout}
}

func (l *linear) Init(inShape []int, rng *rand.Rand) Layer {
	if len(inShape) != 2 {
		panic("Linear: expect 2 dimensional input")
	}
	nBatch, nIn := inShape[0], inShape[1]
	l.layerBase = newLayerBase(inShape, l.OutShape(inShape))
	l.paramBase = newParams([]int{nIn, l.Nout}, []int{l.Nout}, nBatch)
	return l
}

func (l *linear) Fprop(in *num.Array, train bool) *num.Array {
	l.src = in
	num.Gemm(1, 0, l.src, l.w, l.dst, num.NoTrans, num.NoTrans)
	num.BiasAdd(l.b, l.dst)
	return l.dst
}

func (l *linear) Bprop(grad *num.Array) *num.Array {
	num.SumCols(grad, l.db)
	num.Gemm(1, 0, l.src, grad, l.dw, num.Trans, num.NoTrans)
	num.Gemm(1, 0, grad, l.w, l.dsrc, num.NoTrans, num.Trans)
	return l.dsrc
}

// convolutional layer implementation
type conv struct {
	Conv
	layerBase
	paramBase
}

func (l *conv) OutShape(inShape []int) []int {
	h := num.ConvOutSize(inShape[2], l.Size, l.Stride, l.Pad)
	w := num.ConvOutSize(inShape[3], l.Size, l.Stride, l.Pad)
	return []int{inShape[0], l.Nfeats, h, w}
}

func (l *conv) Init(inShape []int, rng *rand.Rand) Layer {
	if len(inShape) != 4 {
		panic("Conv: expect 4 dimensional input")
	}
	nBatch, nChans := inShape[0], inShape[1]
	l.layerBase = newLayerBase(inShape, l.OutShape(inShape))
	l.paramBase = newParams([]int{l.Nfeats, nChans, l.Size, l.Size}, []int{l.Nfeats}, nBatch)
	return l
}

func (l *conv) Fprop(in *num.Array, train bool) *num.Array {
	l.src = in
	num.ConvFprop(l.src, l.w, l.b, l.dst, l.Stride, l.Pad)
	return l.dst
}

func (l *conv) Bprop(grad *num.Array) *num.Array {
	num.ConvBpropFilter(l.src, grad, l.dw, l.db, l.Stride, l.Pad)
	num.ConvBpropData(grad, l.w, l.dsrc, l.Stride, l.Pad)
	return l.dsrc
}

// max pool layer implementation
type maxPool struct {
	MaxPool
	layerBase
	mask []int
}

func (l *maxPool) OutShape(inShape []int) []int {
	h := num.ConvOutSize(inShape[2], l.Size, l.Stride, 0)
	w := num.ConvOutSize(inShape[3], l.Size, l.Stride, 0)
	return []int{inShape[0], inShape[1], h, w}
}

func (l *maxPool) Init(inShape []int, rng *rand.Rand) Layer {
	if len(inShape) != 4 {
		panic("MaxPool: expect 4 dimensional input")
	}
	l.layerBase = newLayerBase(inShape, l.OutShape(inShape))
	l.mask = make([]int, l.dst.Size())
	return l
}

func (l *maxPool) Fprop(in *num.Array, train bool) *num.Array {
	l.src = in
	num.MaxPoolFprop(l.src, l.dst, l.mask, l.Size, l.Stride)
	return l.dst
}

func (l *maxPool) Bprop(grad *num.Array) *num.Array {
	num.MaxPoolBprop(grad, l.dsrc, l.mask)
	return l.dsrc
}

// activation layers
type activation struct {
	Activation
	layerBase
	activ func(x, y *num.Array)
	deriv func(x, grad, dst *num.Array)
	loss  *num.Array
}

func (l *activation) Init(inShape []int, rng *rand.Rand) Layer {
	l.layerBase = newLayerBase(inShape, inShape)
	l.loss = num.NewArray(num.Float32, inShape...)
	return l
}

func (l *activation) Fprop(in *num.Array, train bool) *num.Array {
	l.src = in
	l.activ(l.src, l.dst)
	return l.dst
}

func (l *activation) Bprop(grad *num.Array) *num.Array {
	l.deriv(l.src, grad, l.dsrc)
	return l.dsrc
}

func (l *activation) Loss(yOneHot, yPred *num.Array) *num.Array {
	num.QuadraticLoss(yOneHot, yPred, l.loss)
	return l.loss
}

// dropout layer using inverted dropout so no rescale is needed at predict time
type dropout struct {
	Dropout
	layerBase
	mask   *num.Array
	rng    *rand.Rand
	masked bool
}

func (l *dropout) Init(inShape []int, rng *rand.Rand) Layer {
	l.layerBase = newLayerBase(inShape, inShape)
	l.mask = num.NewArray(num.Float32, inShape...)
	l.rng = rng
	return l
}

func (l *dropout) Fprop(in *num.Array, train bool) *num.Array {
	l.src = in
	l.masked = train && l.Ratio > 0
	if !l.masked {
		num.Copy(l.dst, in)
		return l.dst
	}
	scale := float32(1 / (1 - l.Ratio))
	mask := l.mask.Float()
	for i := range mask {
		if l.rng.Float64() < l.Ratio {
			mask[i] = 0
		} else {
			mask[i] = scale
		}
	}
	num.Mul(in, l.mask, l.dst)
	return l.dst
}

func (l *dropout) Bprop(grad *num.Array) *num.Array {
	if !l.masked {
		num.Copy(l.dsrc, grad)
		return l.dsrc
	}
	num.Mul(grad, l.mask, l.dsrc)
	return l.dsrc
}

// log regression output layer
type logRegression struct {
	layerBase
	loss *num.Array
}

func (l *logRegression) ToString() string { return "logRegression" }

func (l *logRegression) Init(inShape []int, rng *rand.Rand) Layer {
	l.layerBase = newLayerBase(inShape, inShape)
	l.loss = num.NewArray(num.Float32, inShape...)
	return l
}

func (l *logRegression) Fprop(in *num.Array, train bool) *num.Array {
	l.src = in
	num.Softmax(l.src, l.dst)
	return l.dst
}

func (l *logRegression) Bprop(grad *num.Array) *num.Array {
	num.Copy(l.dsrc, grad)
	return l.dsrc
}

func (l *logRegression) Loss(yOneHot, yPred *num.Array) *num.Array {
	num.SoftmaxLoss(yOneHot, yPred, l.loss)
	return l.loss
}

type flatten struct {
	layerBase
}

func (l *flatten) ToString() string { return "flatten" }

func (l *flatten) OutShape(inShape []int) []int {
	return []int{inShape[0], num.Prod(inShape[1:])}
}

func (l *flatten) Init(inShape []int, rng *rand.Rand) Layer {
	return l
}

func (l *flatten) Fprop(in *num.Array, train bool) *num.Array {
	l.src = in
	l.dst = in.Reshape(in.Dims()[0], -1)
	return l.dst
}

func (l *flatten) Bprop(grad *num.Array) *num.Array {
	l.dsrc = grad.Reshape(l.src.Dims()...)
	return l.dsrc
}

// base layer with preallocated output and input gradient buffers
type layerBase struct {
	src  *num.Array
	dst  *num.Array
	dsrc *num.Array
}

func newLayerBase(inShape, outShape []int) layerBase {
	return layerBase{
		dst:  num.NewArray(num.Float32, outShape...),
		dsrc: num.NewArray(num.Float32, inShape...),
	}
}

func (l layerBase) OutShape(inShape []int) []int { return inShape }

func (l layerBase) Output() *num.Array { return l.dst }

// weight and bias parameters
type paramBase struct {
	w, b   *num.Array
	dw, db *num.Array
	nBatch float32
	frozen bool
}

func newParams(wShape, bShape []int, nBatch int) paramBase {
	return paramBase{
		w:      num.NewArray(num.Float32, wShape...),
		b:      num.NewArray(num.Float32, bShape...),
		dw:     num.NewArray(num.Float32, wShape...),
		db:     num.NewArray(num.Float32, bShape...),
		nBatch: float32(nBatch),
	}
}

func (p *paramBase) Params() (W, B *num.Array) {
	return p.w, p.b
}

func (p *paramBase) ParamGrads() (dW, dB *num.Array) {
	return p.dw, p.db
}

func (p *paramBase) Frozen() bool { return p.frozen }

func (p *paramBase) SetFrozen(frozen bool) { p.frozen = frozen }

func (p *paramBase) InitParams(scale, bias float32, normal bool, rng *rand.Rand) {
	weights := p.w.Float()
	for i := range weights {
		if normal {
			weights[i] = float32(rng.NormFloat64()) * scale
		} else {
			weights[i] = (2*rng.Float32() - 1) * scale
		}
	}
	num.Fill(p.b, bias)
}

func (p *paramBase) SetParams(W, B *num.Array) {
	num.Copy(p.w, W)
	num.Copy(p.b, B)
}

func (p *paramBase) UpdateParams(learningRate, weightDecay float32) {
	if p.frozen {
		return
	}
	if weightDecay != 0 {
		num.Axpy(weightDecay*p.nBatch, p.w, p.dw)
	}
	num.Axpy(-learningRate/p.nBatch, p.dw, p.w)
	num.Axpy(-learningRate/p.nBatch, p.db, p.b)
}

func marshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func unmarshal(data json.RawMessage, v interface{}) {
	err := json.Unmarshal(data, v)
	if err != nil {
		panic(err)
	}
}
