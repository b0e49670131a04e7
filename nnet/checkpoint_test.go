package nnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func convConfig() Config {
	return Config{
		DataSet:    "images",
		Eta:        0.1,
		TrainBatch: 2,
		RandSeed:   42,
	}.AddLayers(
		Conv{Nfeats: 4, Size: 3, Pad: 1},
		Activation{Atype: "relu"},
		MaxPool{Size: 2},
		Flatten{},
		Linear{Nout: 10},
		LogRegression{},
	)
}

func TestExportImportParams(t *testing.T) {
	conf := convConfig()
	rng := SetSeed(conf.RandSeed)
	net := New(conf, 2, []int{1, 8, 8}, rng)
	net.InitWeights()

	params := net.ExportParams()
	require.Len(t, params, 2, "conv and linear layers have parameters")
	assert.Equal(t, 0, params[0].Layer)
	assert.Equal(t, 4, params[1].Layer)
	assert.Len(t, params[0].Weights, 4*1*3*3)
	assert.Len(t, params[0].Biases, 4)

	net2 := New(conf, 2, []int{1, 8, 8}, SetSeed(1))
	net2.InitWeights()
	require.NoError(t, net2.ImportParams(params, true))
	W, _ := net2.Layers[0].(ParamLayer).Params()
	W1, _ := net.Layers[0].(ParamLayer).Params()
	assert.Equal(t, W1.Float(), W.Float())
}

// loading a pretrained convolutional base into a net with a different
// classifier head should keep the base weights and skip the rest
func TestImportParamsTransfer(t *testing.T) {
	conf := convConfig()
	rng := SetSeed(conf.RandSeed)
	base := New(conf, 2, []int{1, 8, 8}, rng)
	base.InitWeights()
	params := base.ExportParams()

	headConf := Config{TrainBatch: 2}.AddLayers(
		Conv{Nfeats: 4, Size: 3, Pad: 1},
		Activation{Atype: "relu"},
		MaxPool{Size: 2},
		Flatten{},
		Linear{Nout: 32},
		Activation{Atype: "relu"},
		Linear{Nout: 10},
		LogRegression{},
	)
	net := New(headConf, 2, []int{1, 8, 8}, SetSeed(1))
	net.InitWeights()
	headW, _ := net.Layers[4].(ParamLayer).Params()
	headBefore := append([]float32{}, headW.Float()...)

	// strict mode fails on the shape mismatch at layer 4
	assert.Error(t, net.ImportParams(params, true))
	// relaxed mode loads the conv base and leaves the new head alone
	require.NoError(t, net.ImportParams(params, false))
	convW, _ := net.Layers[0].(ParamLayer).Params()
	baseW, _ := base.Layers[0].(ParamLayer).Params()
	assert.Equal(t, baseW.Float(), convW.Float())
	assert.Equal(t, headBefore, headW.Float())
}

func TestCheckpointSaveLoad(t *testing.T) {
	saved := DataDir
	DataDir = t.TempDir()
	defer func() { DataDir = saved }()

	conf := convConfig()
	rng := SetSeed(conf.RandSeed)
	net := New(conf, 2, []int{1, 8, 8}, rng)
	net.InitWeights()

	ckpt := &Checkpoint{
		Model:  "test_model",
		Conf:   conf,
		Epoch:  7,
		Stats:  []Stats{{Epoch: 7, Values: []float64{0.5, 0.1}}},
		Params: net.ExportParams(),
	}
	require.NoError(t, SaveCheckpoint(ckpt))

	loaded, err := LoadCheckpoint("test_model")
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Epoch)
	assert.Equal(t, ckpt.Params, loaded.Params)
	assert.Equal(t, ckpt.Stats[0].Values, loaded.Stats[0].Values)
	assert.Equal(t, conf.Layers[0].Type, loaded.Conf.Layers[0].Type)

	_, err = LoadCheckpoint("no_such_model")
	assert.Error(t, err)
}
