package nnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigSaveLoad(t *testing.T) {
	saved := DataDir
	DataDir = t.TempDir()
	defer func() { DataDir = saved }()

	conf := Config{
		DataSet:    "mnist",
		Eta:        0.1,
		Lambda:     3.0,
		MaxEpoch:   20,
		TrainBatch: 10,
		Freeze:     []int{0, 2},
	}.AddLayers(
		Linear{Nout: 100},
		Activation{Atype: "relu"},
		Linear{Nout: 10},
		LogRegression{},
	)
	require.NoError(t, conf.Save("mnist_mlp.conf"))

	loaded, err := LoadConfig("mnist_mlp.conf")
	require.NoError(t, err)
	assert.Equal(t, conf.Eta, loaded.Eta)
	assert.Equal(t, conf.Freeze, loaded.Freeze)
	assert.Len(t, loaded.Layers, 4)
	assert.Equal(t, "linear", loaded.Layers[0].Type)
}

func TestConfigSaveDefault(t *testing.T) {
	saved := DataDir
	DataDir = t.TempDir()
	defer func() { DataDir = saved }()

	conf := Config{Eta: 0.5}.AddLayers(Linear{Nout: 10}, LogRegression{})
	require.NoError(t, conf.SaveDefault("mnist_mlp"))

	edited, err := conf.SetString("Eta", "0.1")
	require.NoError(t, err)
	require.NoError(t, edited.Save("mnist_mlp.conf"))

	// the default copy keeps the original settings
	orig, err := LoadConfig("mnist_mlp.default")
	require.NoError(t, err)
	assert.Equal(t, 0.5, orig.Eta)

	cur, err := LoadConfig("mnist_mlp.conf")
	require.NoError(t, err)
	assert.Equal(t, 0.1, cur.Eta)
}

func TestConfigSetString(t *testing.T) {
	conf := Config{Eta: 0.1}

	c, err := conf.SetString("Eta", "0.5")
	require.NoError(t, err)
	assert.Equal(t, 0.5, c.Eta)

	c, err = conf.SetString("MaxEpoch", "25")
	require.NoError(t, err)
	assert.Equal(t, 25, c.MaxEpoch)

	c, err = conf.SetString("DataSet", "mnist")
	require.NoError(t, err)
	assert.Equal(t, "mnist", c.DataSet)

	c, err = conf.SetString("Freeze", "0, 2, 4")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 4}, c.Freeze)

	_, err = conf.SetString("Eta", "bogus")
	assert.Error(t, err)

	_, err = conf.SetString("NoSuchKey", "1")
	assert.Error(t, err)
}

func TestConfigSetBool(t *testing.T) {
	conf := Config{}
	c, err := conf.SetBool("Shuffle", true)
	require.NoError(t, err)
	assert.True(t, c.Shuffle)

	_, err = conf.SetBool("Eta", true)
	assert.Error(t, err)
}

func TestConfigFields(t *testing.T) {
	conf := Config{}
	fields := conf.Fields()
	assert.Equal(t, "DataSet", fields[0])
	assert.NotContains(t, fields, "Layers", "layer definitions are edited separately")
	for _, f := range fields {
		assert.NotNil(t, conf.Get(f))
	}
}

func TestConfigCopy(t *testing.T) {
	conf := Config{Freeze: []int{1}}.AddLayers(Linear{Nout: 10})
	dup := conf.Copy()
	dup.Freeze[0] = 9
	assert.Equal(t, 1, conf.Freeze[0], "copy should not share slices")
}
