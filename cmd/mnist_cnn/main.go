// Command mnist_cnn writes the model config for the convnet exercise:
// two conv / pool blocks followed by a dense classifier with dropout.
package main

import (
	"fmt"

	"github.com/mgmoghadam/cic-ml-intermediate-workshop/nnet"
)

func main() {
	conf := nnet.Config{
		DataSet:    "mnist",
		Eta:        0.1,
		Shuffle:    true,
		Normalise:  true,
		TrainBatch: 10,
		TestBatch:  100,
		MaxEpoch:   10,
		StopAfter:  2,
		RandSeed:   42,
	}.AddLayers(
		nnet.Conv{Nfeats: 20, Size: 5, Pad: 2},
		nnet.Activation{Atype: "relu"},
		nnet.MaxPool{Size: 2},
		nnet.Conv{Nfeats: 40, Size: 5, Pad: 2},
		nnet.Activation{Atype: "relu"},
		nnet.MaxPool{Size: 2},
		nnet.Flatten{},
		nnet.Linear{Nout: 100},
		nnet.Activation{Atype: "relu"},
		nnet.Dropout{Ratio: 0.5},
		nnet.Linear{Nout: 10},
		nnet.LogRegression{},
	)
	fmt.Println(conf)
	err := conf.SaveDefault("mnist_cnn")
	nnet.CheckErr(err)
}
