// Command mnist_transfer writes the model config for the transfer learning
// exercise: the convolutional base from a trained mnist_cnn checkpoint is
// frozen and a new dense head is fine-tuned on top of it.
package main

import (
	"fmt"

	"github.com/mgmoghadam/cic-ml-intermediate-workshop/nnet"
)

func main() {
	conf := nnet.Config{
		DataSet:    "mnist",
		Eta:        0.05,
		Shuffle:    true,
		Normalise:  true,
		TrainBatch: 10,
		TestBatch:  100,
		MaxEpoch:   5,
		RandSeed:   42,
		Pretrained: "mnist_cnn",
		Freeze:     []int{0, 3},
	}.AddLayers(
		nnet.Conv{Nfeats: 20, Size: 5, Pad: 2},
		nnet.Activation{Atype: "relu"},
		nnet.MaxPool{Size: 2},
		nnet.Conv{Nfeats: 40, Size: 5, Pad: 2},
		nnet.Activation{Atype: "relu"},
		nnet.MaxPool{Size: 2},
		nnet.Flatten{},
		nnet.Linear{Nout: 64},
		nnet.Activation{Atype: "relu"},
		nnet.Linear{Nout: 10},
		nnet.LogRegression{},
	)
	fmt.Println(conf)
	err := conf.SaveDefault("mnist_transfer")
	nnet.CheckErr(err)
}
