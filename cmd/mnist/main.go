// Command mnist downloads the MNIST digit data and converts it into gob
// encoded datasets with a train / validation / test split.
package main

import (
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"image/color"
	"io"
	"net/http"
	"os"
	"path"

	"github.com/mgmoghadam/cic-ml-intermediate-workshop/img"
	"github.com/mgmoghadam/cic-ml-intermediate-workshop/nnet"
)

const (
	baseURL    = "https://storage.googleapis.com/cvdf-datasets/mnist/"
	imageMagic = 2051
	labelMagic = 2049
	split      = 50000
)

var classes = []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}

type labelHeader struct{ Magic, Num uint32 }

type imageHeader struct{ Magic, Num, Height, Width uint32 }

func main() {
	// mnist dataset is 60000 train + 10000 test images
	train, err := loadData("train-images-idx3-ubyte", "train-labels-idx1-ubyte")
	nnet.CheckErr(err)
	test, err := loadData("t10k-images-idx3-ubyte", "t10k-labels-idx1-ubyte")
	nnet.CheckErr(err)

	mean, std := img.GetStats(train.Images, test.Images)
	train.Mean, train.StdDev = mean, std
	test.Mean, test.StdDev = mean, std

	valid := train.Slice(split, train.Len())
	train = train.Slice(0, split)

	err = nnet.SaveDataFile(train, "mnist_train")
	nnet.CheckErr(err)
	err = nnet.SaveDataFile(valid, "mnist_valid")
	nnet.CheckErr(err)
	err = nnet.SaveDataFile(test, "mnist_test")
	nnet.CheckErr(err)
}

func loadData(imageFile, labelFile string) (*img.Data, error) {
	labels, err := readLabels(labelFile)
	if err != nil {
		return nil, err
	}
	images, err := readImages(imageFile)
	if err != nil {
		return nil, err
	}
	if len(labels) != len(images) {
		return nil, fmt.Errorf("have %d labels for %d images", len(labels), len(images))
	}
	return img.NewData(classes, labels, images), nil
}

// open raw data file, fetching and unpacking it on first use
func open(name string) (*os.File, error) {
	dir := path.Join(nnet.DataDir, "mnist")
	pathName := path.Join(dir, name)
	if _, err := os.Stat(pathName); err == nil {
		return os.Open(pathName)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	url := baseURL + name + ".gz"
	fmt.Println("fetch", url)
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: %s", url, resp.Status)
	}
	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, err
	}
	f, err := os.Create(pathName)
	if err != nil {
		return nil, err
	}
	if _, err = io.Copy(f, gz); err != nil {
		f.Close()
		return nil, err
	}
	if _, err = f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func readImages(name string) ([]img.Image, error) {
	f, err := open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var head imageHeader
	if err = binary.Read(f, binary.BigEndian, &head); err != nil {
		return nil, err
	}
	if head.Magic != imageMagic {
		return nil, fmt.Errorf("%s: bad magic number %d", name, head.Magic)
	}
	n, h, w := int(head.Num), int(head.Height), int(head.Width)
	fmt.Printf("read %d %dx%d images from %s\n", n, h, w, name)
	images := make([]img.Image, n)
	pixels := make([]uint8, w*h)
	for i := range images {
		if _, err = io.ReadFull(f, pixels); err != nil {
			return nil, err
		}
		m := img.NewGray(w, h)
		for j, pix := range pixels {
			m.Set(j%w, j/w, color.Gray{Y: pix})
		}
		images[i] = m
	}
	return images, nil
}

func readLabels(name string) ([]int32, error) {
	f, err := open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var head labelHeader
	if err = binary.Read(f, binary.BigEndian, &head); err != nil {
		return nil, err
	}
	if head.Magic != labelMagic {
		return nil, fmt.Errorf("%s: bad magic number %d", name, head.Magic)
	}
	fmt.Printf("read %d labels from %s\n", head.Num, name)
	bytes := make([]byte, head.Num)
	if _, err = io.ReadFull(f, bytes); err != nil {
		return nil, err
	}
	labels := make([]int32, head.Num)
	for i, label := range bytes {
		labels[i] = int32(label)
	}
	return labels, nil
}
