package nnet

import (
	"encoding/gob"
	"fmt"
	"image"
	"math/rand"
	"os"
	"path"
	"strconv"
	"sync"

	"github.com/mgmoghadam/cic-ml-intermediate-workshop/num"
)

var DataTypes = []string{"train", "test", "valid"}

// DataDir is the directory holding datasets, configs and checkpoints.
// Defaults to ./data, override with the ML_WORKSHOP_DATA environment variable.
var DataDir = dataDir()

func dataDir() string {
	if dir := os.Getenv("ML_WORKSHOP_DATA"); dir != "" {
		return dir
	}
	return "data"
}

func init() {
	gob.Register(data{})
}

// Data interface type represents the raw data for a training or test set
type Data interface {
	Len() int
	Classes() []string
	Shape() []int
	Label(index []int, label []int32)
	Input(index []int, buf []float32)
	Image(i int) image.Image
}

// Dataset type encapsulates a set of training, test or validation data.
// Batches are assembled in a background goroutine and double buffered.
type Dataset struct {
	Data
	Samples   int
	BatchSize int
	Batches   int
	xBuffer   []float32
	yBuffer   []int32
	x, y, y1H [2]*num.Array
	indexes   []int
	buf       int
	batch     int
	rng       *rand.Rand
	sync.WaitGroup
}

// Create a new Dataset struct, allocate array buffers and set the batch size.
// If maxSamples is > 0 then only use that many samples from the data.
func NewDataset(data Data, batchSize, maxSamples int, flattenInput bool, rng *rand.Rand) *Dataset {
	d := &Dataset{Data: data, Samples: data.Len(), rng: rng}
	if maxSamples > 0 && d.Samples > maxSamples {
		d.Samples = maxSamples
	}
	if batchSize == 0 || batchSize > d.Samples {
		d.BatchSize = d.Samples
	} else {
		d.BatchSize = batchSize
	}
	d.Batches = d.Samples / d.BatchSize
	nfeat := num.Prod(data.Shape())
	d.xBuffer = make([]float32, nfeat*d.BatchSize)
	d.yBuffer = make([]int32, d.BatchSize)
	for i := range d.x {
		if flattenInput {
			d.x[i] = num.NewArray(num.Float32, d.BatchSize, nfeat)
		} else {
			d.x[i] = num.NewArray(num.Float32, append([]int{d.BatchSize}, data.Shape()...)...)
		}
		d.y[i] = num.NewArray(num.Int32, d.BatchSize)
		d.y1H[i] = num.NewArray(num.Float32, d.BatchSize, len(d.Classes()))
	}
	d.indexes = make([]int, d.Samples)
	for i := range d.indexes {
		d.indexes[i] = i
	}
	d.loadBatch()
	return d
}

// Shape returns the shape of one input sample.
func (d *Dataset) Shape() []int {
	return d.Data.Shape()
}

// kick off load of next batch of data in background
func (d *Dataset) loadBatch() {
	d.Add(1)
	go func() {
		start := d.batch * d.BatchSize
		end := start + d.BatchSize
		d.Input(d.indexes[start:end], d.xBuffer)
		d.Label(d.indexes[start:end], d.yBuffer)
		num.Write(d.x[d.buf], d.xBuffer)
		num.WriteInt(d.y[d.buf], d.yBuffer)
		num.Onehot(d.y[d.buf], d.y1H[d.buf], len(d.Classes()))
		d.Done()
	}()
}

// Get next batch of data
func (d *Dataset) NextBatch() (x, y, yOneHot *num.Array) {
	d.Wait()
	x, y, yOneHot = d.x[d.buf], d.y[d.buf], d.y1H[d.buf]
	d.batch = (d.batch + 1) % d.Batches
	d.buf = (d.buf + 1) % 2
	d.loadBatch()
	return
}

// Rewind to start of data
func (d *Dataset) Rewind() {
	d.Wait()
	d.batch = 0
	d.loadBatch()
}

// Shuffle the order the samples are returned in. When the dataset is capped
// with MaxSamples this also draws a fresh subset from the full data.
func (d *Dataset) Shuffle() {
	d.Wait()
	d.indexes = d.rng.Perm(d.Len())[:d.Samples]
	d.batch = 0
	d.loadBatch()
}

// Load data from disk given the model name.
func LoadData(model string) (d map[string]Data, err error) {
	var data Data
	d = make(map[string]Data)
	for _, key := range DataTypes {
		name := model + "_" + key
		if FileExists(name + ".dat") {
			if data, err = LoadDataFile(name); err != nil {
				return
			}
			d[key] = data
		}
	}
	if _, ok := d["train"]; !ok {
		return nil, fmt.Errorf("no training data found for dataset %s under %s", model, DataDir)
	}
	return d, nil
}

// Decode data from file in gob format under DataDir
func LoadDataFile(name string) (Data, error) {
	filePath := path.Join(DataDir, name+".dat")
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fmt.Printf("loading data from %s.dat:\t", name)
	var d Data
	if err = gob.NewDecoder(f).Decode(&d); err != nil {
		return nil, err
	}
	fmt.Println(append(d.Shape(), d.Len()))
	return d, nil
}

// Encode in gob format and save to file under DataDir
func SaveDataFile(d Data, name string) error {
	filePath := path.Join(DataDir, name+".dat")
	f, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer f.Close()
	fmt.Println("saving data to", name+".dat")
	return gob.NewEncoder(f).Encode(&d)
}

// Check if file exists under DataDir
func FileExists(name string) bool {
	filePath := path.Join(DataDir, name)
	_, err := os.Stat(filePath)
	return err == nil
}

type data struct {
	Class  []string
	Dims   []int
	Labels []int32
	Inputs []float32
}

// NewData function creates a new data set which implements the Data interface
func NewData(nclasses int, shape []int, labels []int32, inputs []float32) Data {
	classes := make([]string, nclasses)
	for i := range classes {
		classes[i] = strconv.Itoa(i)
	}
	return data{Class: classes, Dims: shape, Labels: labels, Inputs: inputs}
}

func (d data) Len() int { return len(d.Labels) }

func (d data) Classes() []string { return d.Class }

func (d data) Shape() []int { return d.Dims }

func (d data) Label(index []int, label []int32) {
	for i, ix := range index {
		label[i] = d.Labels[ix]
	}
}

func (d data) Input(index []int, buf []float32) {
	nfeat := num.Prod(d.Dims)
	for i, ix := range index {
		copy(buf[i*nfeat:], d.Inputs[ix*nfeat:(ix+1)*nfeat])
	}
}

func (d data) Image(i int) image.Image { return nil }
