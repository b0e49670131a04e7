// Command train trains the named model and saves a checkpoint with the
// final weights and the per epoch stats.
package main

import (
	"flag"
	"fmt"
	"os"
	"path"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/mgmoghadam/cic-ml-intermediate-workshop/img"
	"github.com/mgmoghadam/cic-ml-intermediate-workshop/nnet"
	"github.com/mgmoghadam/cic-ml-intermediate-workshop/num"
)

func predict(net *nnet.Network, dset *nnet.Dataset) {
	dset.Rewind()
	x, y, _ := dset.NextBatch()
	classes := num.NewArray(num.Int32, y.Size())
	yPred := net.Predict(x, classes)
	fmt.Print("predict:", yPred)
	fmt.Println("classes:", classes)
	fmt.Println("labels: ", y)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: train [opts] <model>")
		os.Exit(1)
	}
	model := os.Args[len(os.Args)-1]
	fmt.Println("load model:", model)
	conf, err := nnet.LoadConfig(model + ".conf")
	nnet.CheckErr(err)

	// override config settings from command line
	flag.Float64Var(&conf.Eta, "eta", conf.Eta, "learning rate")
	flag.Float64Var(&conf.Lambda, "lambda", conf.Lambda, "weight decay parameter")
	flag.Int64Var(&conf.RandSeed, "seed", conf.RandSeed, "random number seed")
	flag.IntVar(&conf.MaxEpoch, "epochs", conf.MaxEpoch, "max epochs")
	flag.IntVar(&conf.MaxSamples, "samples", conf.MaxSamples, "max samples")
	flag.IntVar(&conf.TrainBatch, "batch", conf.TrainBatch, "train batch size")
	flag.IntVar(&conf.TestBatch, "testbatch", conf.TestBatch, "test batch size")
	flag.IntVar(&conf.DebugLevel, "debug", conf.DebugLevel, "debug logging level")
	plotFile := flag.String("plot", "", "write svg loss and error curves to this file")
	flag.Parse()

	// load training and test data
	data, err := nnet.LoadData(conf.DataSet)
	nnet.CheckErr(err)
	rng := nnet.SetSeed(conf.RandSeed)
	for key, d := range data {
		if imgData, ok := d.(*img.Data); ok {
			imgData.SetTransform(conf.Normalise, conf.Distort && key == "train", rng)
		}
	}
	trainData := nnet.NewDataset(data["train"], conf.TrainBatch, conf.MaxSamples, conf.FlattenInput, rng)

	// initialise weights
	net := nnet.New(conf, trainData.BatchSize, trainData.Shape(), rng)
	fmt.Println(net)
	net.InitWeights()
	if conf.Pretrained != "" {
		ckpt, err := nnet.LoadCheckpoint(conf.Pretrained)
		nnet.CheckErr(err)
		fmt.Printf("import pretrained base: %s epoch=%d\n", conf.Pretrained, ckpt.Epoch)
		err = net.ImportParams(ckpt.Params, false)
		nnet.CheckErr(err)
	}
	if conf.DebugLevel >= 1 {
		fmt.Println("== before ==")
		predict(net, trainData)
	}

	// train the network
	tester := nnet.NewTestLogger(conf, data, nnet.SetSeed(conf.RandSeed))
	nnet.Train(net, trainData, tester)

	if conf.DebugLevel >= 1 {
		fmt.Println("== after ==")
		predict(net, trainData)
	}

	err = nnet.SaveCheckpoint(&nnet.Checkpoint{
		Model:  model,
		Conf:   conf,
		Epoch:  len(tester.Stats),
		Stats:  tester.Stats,
		Params: net.ExportParams(),
	})
	nnet.CheckErr(err)

	if *plotFile != "" {
		err = writePlot(*plotFile, tester.TestBase)
		nnet.CheckErr(err)
		fmt.Println("saved plot to", *plotFile)
	}
}

// write loss and error curves in svg format
func writePlot(name string, t *nnet.TestBase) error {
	p := plot.New()
	p.X.Label.Text = "epoch"
	p.Legend.Top = true
	p.Add(plotter.NewGrid())
	for ix, label := range t.Headers {
		pts := make(plotter.XYs, 0, len(t.Stats))
		for _, s := range t.Stats {
			if ix < len(s.Values) {
				pts = append(pts, plotter.XY{X: float64(s.Epoch), Y: s.Values[ix]})
			}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Width = 2
		line.Color = plotutil.Color(ix)
		p.Add(line)
		p.Legend.Add(label+" ", line)
	}
	if path.Ext(name) == "" {
		name += ".svg"
	}
	return p.Save(8*vg.Inch, 5*vg.Inch, name)
}
