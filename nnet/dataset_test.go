package nnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleData(n int) Data {
	labels := make([]int32, n)
	inputs := make([]float32, n*3)
	for i := 0; i < n; i++ {
		labels[i] = int32(i % 2)
		for j := 0; j < 3; j++ {
			inputs[i*3+j] = float32(i)
		}
	}
	return NewData(2, []int{3}, labels, inputs)
}

func TestDatasetBatches(t *testing.T) {
	rng := SetSeed(42)
	d := NewDataset(sampleData(10), 4, 0, true, rng)
	assert.Equal(t, 4, d.BatchSize)
	assert.Equal(t, 2, d.Batches)
	assert.Equal(t, 10, d.Samples)

	x, y, y1H := d.NextBatch()
	assert.Equal(t, []int{4, 3}, x.Dims())
	assert.Equal(t, []int32{0, 1, 0, 1}, y.Int())
	assert.Equal(t, []int{4, 2}, y1H.Dims())
	// first sample is all zeros, second all ones
	assert.Equal(t, float32(1), x.Float()[3])
	// one hot encoding matches the labels
	assert.Equal(t, []float32{1, 0, 0, 1, 1, 0, 0, 1}, y1H.Float())

	x2, _, _ := d.NextBatch()
	assert.Equal(t, float32(4), x2.Float()[0], "second batch starts at sample 4")
}

func TestDatasetRewind(t *testing.T) {
	rng := SetSeed(42)
	d := NewDataset(sampleData(8), 4, 0, true, rng)
	d.NextBatch()
	d.NextBatch()
	d.Rewind()
	x, _, _ := d.NextBatch()
	assert.Equal(t, float32(0), x.Float()[0])
}

func TestDatasetShuffle(t *testing.T) {
	rng := SetSeed(42)
	d := NewDataset(sampleData(64), 32, 0, true, rng)
	d.Shuffle()
	x, _, _ := d.NextBatch()
	first := make([]float32, 32)
	for i := range first {
		first[i] = x.Float()[i*3]
	}
	ordered := true
	for i := range first {
		if first[i] != float32(i) {
			ordered = false
		}
	}
	assert.False(t, ordered, "shuffled batch should not be in original order")
}

func TestDatasetMaxSamples(t *testing.T) {
	rng := SetSeed(42)
	d := NewDataset(sampleData(100), 10, 30, true, rng)
	assert.Equal(t, 30, d.Samples)
	assert.Equal(t, 3, d.Batches)

	// shuffling a capped dataset draws from the whole data, not just the
	// leading subset
	d.Shuffle()
	seen := map[float32]bool{}
	for i := 0; i < d.Batches; i++ {
		x, _, _ := d.NextBatch()
		for j := 0; j < d.BatchSize; j++ {
			seen[x.Float()[j*3]] = true
		}
	}
	beyondCap := false
	for v := range seen {
		if v >= 30 {
			beyondCap = true
		}
	}
	assert.True(t, beyondCap, "reshuffle should sample outside the first 30")
}

func TestDatasetFullBatch(t *testing.T) {
	rng := SetSeed(42)
	// batch size 0 means use the whole dataset as one batch
	d := NewDataset(sampleData(10), 0, 0, true, rng)
	assert.Equal(t, 10, d.BatchSize)
	assert.Equal(t, 1, d.Batches)
}

func TestDataFileRoundTrip(t *testing.T) {
	saved := DataDir
	DataDir = t.TempDir()
	defer func() { DataDir = saved }()

	data := sampleData(10)
	require.NoError(t, SaveDataFile(data, "sample_train"))
	assert.True(t, FileExists("sample_train.dat"))

	loaded, err := LoadDataFile("sample_train")
	require.NoError(t, err)
	assert.Equal(t, 10, loaded.Len())
	assert.Equal(t, []int{3}, loaded.Shape())
	assert.Equal(t, []string{"0", "1"}, loaded.Classes())

	sets, err := LoadData("sample")
	require.NoError(t, err)
	assert.Contains(t, sets, "train")
}
