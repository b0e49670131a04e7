package img

import (
	"encoding/gob"
	"fmt"
	"image"
	"math/rand"

	"github.com/mgmoghadam/cic-ml-intermediate-workshop/stats"
)

func init() {
	gob.Register(&Data{})
	gob.Register(&GrayImage{})
	gob.Register(&RGBImage{})
}

// Image data set which implements the nnet.Data interface
type Data struct {
	Class  []string
	Dims   []int
	Labels []int32
	Mean   []float32
	StdDev []float32
	Images []Image
	trans  *Transformer
}

// Create a new image set
func NewData(classes []string, labels []int32, images []Image) *Data {
	src := images[0]
	dims := []int{src.Channels(), src.Bounds().Dy(), src.Bounds().Dx()}
	return &Data{Class: classes, Dims: dims, Labels: labels, Images: images}
}

func (d *Data) Len() int { return len(d.Labels) }

func (d *Data) Classes() []string { return d.Class }

func (d *Data) Shape() []int { return d.Dims }

func (d *Data) Label(index []int, label []int32) {
	for i, ix := range index {
		label[i] = d.Labels[ix]
	}
}

// SetTransform enables augmentation and normalisation when reading input
// data. It should be called after loading since the transformer is not
// persisted with the data.
func (d *Data) SetTransform(normalise, distort bool, rng *rand.Rand) {
	trans := d.Images[0].TransformType(normalise, distort)
	if trans == NoTrans {
		d.trans = nil
		return
	}
	d.trans = NewTransformer(d, trans, ConvDefault, rng)
}

// Input returns scaled input data in buf array, applying any transforms
// which have been configured.
func (d *Data) Input(index []int, buf []float32) {
	nfeat := d.nfeat()
	if d.trans == nil {
		for i, ix := range index {
			copy(buf[i*nfeat:], d.Images[ix].Pixels(-1))
		}
		return
	}
	temp := d.trans.TransformBatch(index, nil)
	for i := range index {
		copy(buf[i*nfeat:], temp[i].Pixels(-1))
	}
}

// Image returns given image number
func (d *Data) Image(ix int) image.Image {
	return d.Images[ix]
}

// Distorted returns a copy of the given image with the distortions applied
// which would be used for training.
func (d *Data) Distorted(ix int) Image {
	if d.trans == nil {
		return d.Images[ix]
	}
	m, err := d.trans.Transform(d.Images[ix], 0)
	if err != nil {
		return d.Images[ix]
	}
	return m
}

// Slice returns images from start to end
func (d *Data) Slice(start, end int) *Data {
	data := *d
	data.Labels = append([]int32{}, d.Labels[start:end]...)
	data.Images = append([]Image{}, d.Images[start:end]...)
	return &data
}

func (d *Data) nfeat() int {
	n := 1
	for _, dim := range d.Dims {
		n *= dim
	}
	return n
}

// Calculate per channel mean and stddev from sets of images
func GetStats(imgList ...[]Image) (mean, std []float32) {
	channels := imgList[0][0].Channels()
	stat := make([]*stats.Average, channels)
	for i := range stat {
		stat[i] = new(stats.Average)
	}
	for _, images := range imgList {
		for _, img := range images {
			for ch, s := range stat {
				for _, val := range img.Pixels(ch) {
					s.Add(float64(val))
				}
			}
		}
	}
	mean = make([]float32, channels)
	std = make([]float32, channels)
	for i, s := range stat {
		mean[i] = float32(s.Mean)
		std[i] = float32(s.StdDev)
	}
	fmt.Printf("mean = %.2f stddev = %.2f\n", mean, std)
	return mean, std
}
