// Command visualize loads a trained checkpoint and writes the filter
// weights, the layer activations for a sample input and the inputs which
// maximise each feature map as png images.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"os"
	"path"

	"github.com/mgmoghadam/cic-ml-intermediate-workshop/nnet"
	"github.com/mgmoghadam/cic-ml-intermediate-workshop/num"
	"github.com/mgmoghadam/cic-ml-intermediate-workshop/vis"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: visualize [opts] <model>")
		os.Exit(1)
	}
	model := os.Args[len(os.Args)-1]
	outDir := flag.String("out", "out", "output directory for png files")
	index := flag.Int("index", 0, "sample index for the activation images")
	steps := flag.Int("steps", 30, "gradient ascent steps")
	stepSize := flag.Float64("step", 1, "gradient ascent step size")
	flag.Parse()

	ckpt, err := nnet.LoadCheckpoint(model)
	nnet.CheckErr(err)
	conf := ckpt.Conf
	fmt.Printf("loaded checkpoint %s: epoch=%d\n", model, ckpt.Epoch)

	data, err := nnet.LoadData(conf.DataSet)
	nnet.CheckErr(err)
	dset := data["train"]
	if d, ok := data["test"]; ok {
		dset = d
	}

	rng := nnet.SetSeed(conf.RandSeed)
	net := nnet.New(conf, 1, dset.Shape(), rng)
	net.InitWeights()
	err = net.ImportParams(ckpt.Params, true)
	nnet.CheckErr(err)

	err = os.MkdirAll(*outDir, 0755)
	nnet.CheckErr(err)

	// forward pass on the selected sample
	input := num.NewArray(num.Float32, net.InShape()...)
	buf := make([]float32, input.Size())
	dset.Input([]int{*index}, buf)
	num.Write(input, buf)
	net.Fprop(input, false)

	for i, layer := range net.Layers {
		if img := vis.OutputImage(layer, -1, 1); img != nil {
			save(*outDir, fmt.Sprintf("%s_act_%02d.png", model, i), img)
		}
		p, ok := layer.(nnet.ParamLayer)
		if !ok {
			continue
		}
		if img := vis.WeightImage(p); img != nil {
			save(*outDir, fmt.Sprintf("%s_filters_%02d.png", model, i), img)
		}
	}

	// gradient ascent on each feature map
	m := vis.NewMaximizer(net, rng)
	m.Steps = *steps
	m.StepSize = float32(*stepSize)
	for i, layer := range net.Layers {
		p, ok := layer.(nnet.ParamLayer)
		if !ok {
			continue
		}
		W, _ := p.Params()
		nfeat := W.Dims()[0]
		if len(W.Dims()) == 2 {
			nfeat = W.Dims()[1]
		}
		grid, err := m.MaximizeGrid(i, seq(nfeat))
		if err != nil {
			fmt.Printf("layer %d: %s\n", i, err)
			continue
		}
		save(*outDir, fmt.Sprintf("%s_max_%02d.png", model, i), grid)
	}
}

func save(dir, name string, m image.Image) {
	f, err := os.Create(path.Join(dir, name))
	nnet.CheckErr(err)
	defer f.Close()
	err = png.Encode(f, m)
	nnet.CheckErr(err)
	fmt.Println("saved", name)
}

func seq(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = i
	}
	return s
}
