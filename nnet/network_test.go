package nnet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgmoghadam/cic-ml-intermediate-workshop/num"
)

func xorData() Data {
	return NewData(2, []int{2},
		[]int32{0, 1, 1, 0},
		[]float32{0, 0, 0, 1, 1, 0, 1, 1},
	)
}

func xorConfig() Config {
	return Config{
		DataSet:      "xor",
		Eta:          0.5,
		MaxEpoch:     5000,
		TrainBatch:   4,
		TestBatch:    4,
		MinLoss:      0.05,
		LogEvery:     500,
		RandSeed:     42,
		FlattenInput: true,
	}.AddLayers(
		Linear{Nout: 16},
		Activation{Atype: "tanh"},
		Linear{Nout: 2},
		LogRegression{},
	)
}

func TestNetworkString(t *testing.T) {
	conf := xorConfig()
	rng := SetSeed(conf.RandSeed)
	net := New(conf, 4, []int{2}, rng)
	s := net.String()
	assert.Contains(t, s, "linear")
	assert.Contains(t, s, "logRegression")
}

func TestTrainXor(t *testing.T) {
	conf := xorConfig()
	rng := SetSeed(conf.RandSeed)
	data := xorData()
	dset := NewDataset(data, conf.TrainBatch, 0, conf.FlattenInput, rng)
	net := New(conf, dset.BatchSize, dset.Shape(), rng)
	net.InitWeights()

	tester := NewTestLogger(conf, map[string]Data{"train": data}, SetSeed(conf.RandSeed))
	Train(net, dset, tester)

	errVal := net.Error(dset, nil)
	assert.Equal(t, 0.0, errVal, "network should learn xor exactly")
}

func TestTrainEpochLoss(t *testing.T) {
	conf := xorConfig()
	rng := SetSeed(conf.RandSeed)
	dset := NewDataset(xorData(), conf.TrainBatch, 0, conf.FlattenInput, rng)
	net := New(conf, dset.BatchSize, dset.Shape(), rng)
	net.InitWeights()

	first := TrainEpoch(net, dset)
	var last float64
	for i := 0; i < 200; i++ {
		last = TrainEpoch(net, dset)
	}
	assert.Less(t, last, first, "loss should decrease with training")
}

func TestNetworkError(t *testing.T) {
	conf := xorConfig()
	rng := SetSeed(conf.RandSeed)
	dset := NewDataset(xorData(), conf.TrainBatch, 0, conf.FlattenInput, rng)
	net := New(conf, dset.BatchSize, dset.Shape(), rng)
	net.InitWeights()

	pred := make([]int32, dset.Samples)
	errVal := net.Error(dset, pred)
	assert.True(t, errVal >= 0 && errVal <= 1)
	assert.Len(t, pred, 4)
}

func TestCopyTo(t *testing.T) {
	conf := xorConfig()
	rng := SetSeed(conf.RandSeed)
	net := New(conf, 4, []int{2}, rng)
	net.InitWeights()
	net2 := New(conf, 4, []int{2}, SetSeed(1))
	net.CopyTo(net2)
	for i, layer := range net.Layers {
		if l, ok := layer.(ParamLayer); ok {
			W, _ := l.Params()
			W2, _ := net2.Layers[i].(ParamLayer).Params()
			assert.Equal(t, W.Float(), W2.Float(), "layer %d weights should match", i)
		}
	}
}

func TestFreezeConfig(t *testing.T) {
	conf := xorConfig()
	conf.Freeze = []int{0}
	rng := SetSeed(conf.RandSeed)
	net := New(conf, 4, []int{2}, rng)
	l := net.Layers[0].(ParamLayer)
	assert.True(t, l.Frozen())
	assert.False(t, net.Layers[2].(ParamLayer).Frozen())
}

func TestEMA(t *testing.T) {
	var e EMA
	v := e.Add(1)
	assert.Equal(t, 1.0, v)
	v = EMA(v).Add(2)
	assert.InDelta(t, 1.18, v, 1e-6)
}

func TestTesterEarlyStop(t *testing.T) {
	conf := xorConfig()
	conf.MaxEpoch = 5
	rng := SetSeed(conf.RandSeed)
	data := map[string]Data{"train": xorData()}
	tb := NewTestBase().Init(conf, data, rng)
	net := New(conf, 4, []int{2}, rng)
	net.InitWeights()

	start := time.Now()
	require.False(t, tb.Test(net, 1, 1.0, start))
	require.True(t, tb.Test(net, 5, 1.0, start), "should stop at max epoch")
	require.True(t, tb.Test(net, 3, 0.01, start), "should stop below min loss")
	assert.Len(t, tb.Stats, 3)
	assert.Equal(t, []string{"loss", "train error"}, tb.Headers)
}

func TestTesterValidOnly(t *testing.T) {
	conf := xorConfig()
	rng := SetSeed(conf.RandSeed)
	data := map[string]Data{"train": xorData(), "valid": xorData()}
	tb := NewTestBase().Init(conf, data, rng)
	net := New(conf, 4, []int{2}, rng)
	net.InitWeights()

	// without a test set the smoothed validation error sits at index 3
	assert.Equal(t, []string{"loss", "train error", "valid error", "valid avg"}, tb.Headers)
	start := time.Now()
	tb.Test(net, 1, 1.0, start)
	tb.Test(net, 2, 0.9, start)
	tb.Test(net, 3, 0.8, start)
	for _, s := range tb.Stats {
		require.Len(t, s.Values, 4)
		assert.InDelta(t, s.Values[2], s.Values[3], 0.5)
	}
}

func TestPredict(t *testing.T) {
	conf := xorConfig()
	rng := SetSeed(conf.RandSeed)
	net := New(conf, 4, []int{2}, rng)
	net.InitWeights()
	input := num.NewArrayFrom([]float32{0, 0, 0, 1, 1, 0, 1, 1}, 4, 2)
	classes := num.NewArray(num.Int32, 4)
	yPred := net.Predict(input, classes)
	assert.Equal(t, []int{4, 2}, yPred.Dims())
	for _, c := range classes.Int() {
		assert.True(t, c == 0 || c == 1)
	}
}
