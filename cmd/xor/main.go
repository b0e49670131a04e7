// Command xor writes the dataset and model config for the xor hello world
// exercise.
package main

import (
	"fmt"

	"github.com/mgmoghadam/cic-ml-intermediate-workshop/nnet"
)

func main() {
	data := nnet.NewData(2, []int{2}, []int32{0, 1, 1, 0}, []float32{0, 0, 0, 1, 1, 0, 1, 1})
	err := nnet.SaveDataFile(data, "xor_train")
	nnet.CheckErr(err)

	conf := nnet.Config{
		DataSet:      "xor",
		Eta:          1,
		MaxEpoch:     5000,
		LogEvery:     100,
		MinLoss:      0.05,
		FlattenInput: true,
		RandSeed:     42,
	}.AddLayers(
		nnet.Linear{Nout: 2},
		nnet.Activation{Atype: "tanh"},
		nnet.Linear{Nout: 2},
		nnet.LogRegression{},
	)
	fmt.Println(conf)

	err = conf.SaveDefault("xor")
	nnet.CheckErr(err)
}
