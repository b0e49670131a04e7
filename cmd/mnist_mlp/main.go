// Command mnist_mlp writes the model config for the digit classification
// exercise: a two layer fully connected network.
package main

import (
	"fmt"

	"github.com/mgmoghadam/cic-ml-intermediate-workshop/nnet"
)

func main() {
	conf := nnet.Config{
		DataSet:      "mnist",
		Eta:          0.1,
		Lambda:       3,
		FlattenInput: true,
		Shuffle:      true,
		Normalise:    true,
		TrainBatch:   10,
		TestBatch:    100,
		MaxEpoch:     20,
		RandSeed:     42,
	}.AddLayers(
		nnet.Linear{Nout: 100},
		nnet.Activation{Atype: "relu"},
		nnet.Linear{Nout: 10},
		nnet.LogRegression{},
	)
	fmt.Println(conf)
	err := conf.SaveDefault("mnist_mlp")
	nnet.CheckErr(err)
}
