// Package nnet contains routines for constructing, training and testing neural networks.
package nnet

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/mgmoghadam/cic-ml-intermediate-workshop/num"
)

// Network type represents a multilayer neural network model.
type Network struct {
	Config
	Layers    []Layer
	classes   *num.Array
	diffs     *num.Array
	inputGrad *num.Array
	inShape   []int
	rng       *rand.Rand
}

// New function creates a new network with the given layers.
func New(conf Config, batchSize int, inShape []int, rng *rand.Rand) *Network {
	n := &Network{Config: conf, rng: rng}
	if conf.FlattenInput {
		n.inShape = []int{batchSize, num.Prod(inShape)}
	} else {
		n.inShape = append([]int{batchSize}, inShape...)
	}
	shape := n.inShape
	for _, l := range conf.Layers {
		layer := l.Unmarshal()
		layer.Init(shape, rng)
		n.Layers = append(n.Layers, layer)
		shape = layer.OutShape(shape)
	}
	for _, ix := range conf.Freeze {
		if ix < 0 || ix >= len(n.Layers) {
			panic(fmt.Sprintf("freeze index %d out of range", ix))
		}
		if l, ok := n.Layers[ix].(ParamLayer); ok {
			l.SetFrozen(true)
		}
	}
	return n
}

// BatchSize returns the batch dimension the network was built with.
func (n *Network) BatchSize() int {
	return n.inShape[0]
}

// InShape returns the input shape including the batch dimension.
func (n *Network) InShape() []int {
	return n.inShape
}

// Initialise network weights using a uniform or normal distribution.
// Weights for each layer are scaled by 1/sqrt(nin)
func (n *Network) InitWeights() {
	shape := n.inShape
	for _, layer := range n.Layers {
		if l, ok := layer.(ParamLayer); ok {
			nin := num.Prod(shape[1:])
			scale := float32(1 / math.Sqrt(float64(nin)))
			l.InitParams(scale, float32(n.Bias), n.NormalWeights, n.rng)
		}
		shape = layer.OutShape(shape)
	}
	if n.DebugLevel >= 2 {
		n.PrintWeights()
	}
}

// Copy weights and bias arrays to destination net
func (n *Network) CopyTo(net *Network) {
	for i, layer := range n.Layers {
		if l, ok := layer.(ParamLayer); ok {
			W, B := l.Params()
			net.Layers[i].(ParamLayer).SetParams(W, B)
		}
	}
}

// Accessor for output layer
func (n *Network) OutLayer() OutputLayer {
	return n.Layers[len(n.Layers)-1].(OutputLayer)
}

// Feed forward the input to get the predicted output
func (n *Network) Fprop(input *num.Array, train bool) *num.Array {
	pred := input
	for i, layer := range n.Layers {
		if n.DebugLevel >= 3 && pred != nil {
			fmt.Printf("layer %d input\n%s", i, pred)
		}
		pred = layer.Fprop(pred, train)
	}
	return pred
}

// Bprop back propagates the gradient at the output through all the layers
// and returns the gradient at the input.
func (n *Network) Bprop(grad *num.Array) *num.Array {
	for i := len(n.Layers) - 1; i >= 0; i-- {
		grad = n.Layers[i].Bprop(grad)
		if n.DebugLevel >= 3 && grad != nil {
			fmt.Printf("layer %d bprop output:\n%s", i, grad)
		}
	}
	return grad
}

// Predict output given input data
func (n *Network) Predict(input, classes *num.Array) *num.Array {
	yPred := n.Fprop(input, false)
	if n.DebugLevel >= 2 {
		fmt.Printf("yPred\n%s", yPred)
	}
	num.Unhot(yPred, classes)
	return yPred
}

// Calculate the error from the predicted versus actual values
// if pred slice is not nil then also return the predicted output classes.
func (n *Network) Error(dset *Dataset, pred []int32) float64 {
	n.allocArrays(dset.BatchSize)
	totalErr := 0
	dset.Rewind()
	for batch := 0; batch < dset.Batches; batch++ {
		x, y, _ := dset.NextBatch()
		n.Predict(x, n.classes)
		num.Neq(n.classes, y, n.diffs)
		for _, d := range n.diffs.Int() {
			totalErr += int(d)
		}
		if pred != nil {
			start := batch * dset.BatchSize
			end := start + y.Dims()[0]
			if end > len(pred) {
				end = len(pred)
			}
			num.ReadInt(n.classes, pred[start:end])
		}
		if n.DebugLevel >= 2 || (n.DebugLevel >= 1 && batch == 0) {
			fmt.Printf("batch %d errors = %d\n", batch, totalErr)
		}
	}
	return float64(totalErr) / float64(dset.Samples)
}

// Print network description
func (n *Network) String() string {
	s := make([]string, len(n.Layers))
	shape := n.inShape
	for i, layer := range n.Layers {
		s[i] = fmt.Sprintf("%2d: %-25s %v", i, layer.ToString(), shape)
		shape = layer.OutShape(shape)
	}
	return fmt.Sprintf("%s\n== Network ==\n%s", n.Config, strings.Join(s, "\n"))
}

// Print network weights
func (n *Network) PrintWeights() {
	for i, layer := range n.Layers {
		if l, ok := layer.(ParamLayer); ok {
			W, B := l.Params()
			fmt.Printf("== Layer %d weights ==\n%s %s\n", i, W, B)
		}
	}
}

func (n *Network) allocArrays(size int) {
	if n.classes == nil || n.classes.Dims()[0] != size {
		n.classes = num.NewArray(num.Int32, size)
		n.diffs = num.NewArray(num.Int32, size)
	}
}

// Set random number seed, returns the source so it can be reused.
// If seed <= 0 then a seed is generated from the current time.
func SetSeed(seed int64) *rand.Rand {
	if seed <= 0 {
		seed = time.Now().UTC().UnixNano()
	}
	fmt.Println("random seed =", seed)
	return rand.New(rand.NewSource(seed))
}

// Exit in case of error
func CheckErr(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
