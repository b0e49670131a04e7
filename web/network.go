// Package web has a web based interface for network training and visualisation.
package web

import (
	"encoding/gob"
	"fmt"
	"html/template"
	"image"
	"log"
	"math/rand"
	"os"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mgmoghadam/cic-ml-intermediate-workshop/img"
	"github.com/mgmoghadam/cic-ml-intermediate-workshop/nnet"
	"github.com/mgmoghadam/cic-ml-intermediate-workshop/num"
	"github.com/mgmoghadam/cic-ml-intermediate-workshop/vis"
)

// Network and associated training / test data and configuration
type Network struct {
	*nnet.Network
	Model     string
	Conf      nnet.Config
	Epoch     int
	Data      map[string]nnet.Data
	Labels    map[string][]int32
	Pred      map[string][]int32
	History   []HistoryData
	test      *nnet.TestBase
	trans     *img.Transformer
	conn      *websocket.Conn
	trainData *nnet.Dataset
	rng       *rand.Rand
	testRng   *rand.Rand
	view      *viewData
	updated   bool
	running   bool
	stop      bool
	sync.Mutex
}

// HistoryData records the result of a completed training run.
type HistoryData struct {
	Stats nnet.Stats
	Conf  nnet.Config
}

// Create a new network for the given model, loading the config and any
// saved checkpoint from under nnet.DataDir.
func NewNetwork(model string) (*Network, error) {
	n := &Network{Model: model, test: nnet.NewTestBase()}
	log.Println("load model:", model)
	conf, err := nnet.LoadConfig(model + ".conf")
	if err != nil {
		return nil, err
	}
	ckpt, ckptErr := nnet.LoadCheckpoint(model)
	if ckptErr == nil {
		conf = ckpt.Conf
	}
	if err := n.Init(conf); err != nil {
		return nil, err
	}
	if ckptErr == nil {
		log.Printf("restore checkpoint: epoch=%d\n", ckpt.Epoch)
		n.Epoch = ckpt.Epoch
		n.test.Stats = ckpt.Stats
		if err := n.Network.ImportParams(ckpt.Params, true); err != nil {
			return nil, err
		}
	} else {
		n.InitWeights()
	}
	n.view.loadWeights(n.Network)
	n.loadHistory()
	return n, nil
}

// Initialise the network and data sets from the given config.
func (n *Network) Init(conf nnet.Config) error {
	log.Printf("init network: dataSet=%s\n", conf.DataSet)
	var err error
	if n.Data, err = nnet.LoadData(conf.DataSet); err != nil {
		return err
	}
	n.rng = nnet.SetSeed(conf.RandSeed)
	n.testRng = nnet.SetSeed(conf.RandSeed)
	for key, d := range n.Data {
		if data, ok := d.(*img.Data); ok {
			data.SetTransform(conf.Normalise, conf.Distort && key == "train", n.rng)
		}
	}
	n.trans = nil
	if d, ok := n.Data["train"].(*img.Data); ok {
		n.trans = img.NewTransformer(d, d.Images[0].TransformType(false, true), img.ConvDefault, n.testRng)
	}
	n.trainData = nnet.NewDataset(n.Data["train"], conf.TrainBatch, conf.MaxSamples, conf.FlattenInput, n.rng)
	n.Network = nnet.New(conf, n.trainData.BatchSize, n.trainData.Shape(), n.rng)
	n.Conf = conf
	if n.DebugLevel >= 1 {
		fmt.Println(n.Network)
	}
	n.test.Init(conf, n.Data, n.testRng).Predict()
	n.Pred = map[string][]int32{}
	n.Labels = map[string][]int32{}
	for key, dset := range n.test.Data {
		n.Labels[key] = make([]int32, dset.Samples)
		dset.Label(seq(dset.Samples), n.Labels[key])
	}
	n.view = newViewData(n.Data, conf, n.testRng)
	return nil
}

// Initialise for new training run
func (n *Network) Start(conf nnet.Config, lock bool) error {
	if lock {
		n.Lock()
		defer n.Unlock()
	}
	if err := n.Init(conf); err != nil {
		return err
	}
	n.test.Reset()
	log.Println("init weights")
	n.InitWeights()
	if conf.Pretrained != "" {
		ckpt, err := nnet.LoadCheckpoint(conf.Pretrained)
		if err != nil {
			return err
		}
		log.Printf("import pretrained base: %s epoch=%d\n", conf.Pretrained, ckpt.Epoch)
		if err := n.Network.ImportParams(ckpt.Params, false); err != nil {
			return err
		}
	}
	n.view.loadWeights(n.Network)
	n.Epoch = 0
	n.updated = false
	return nil
}

// Perform training run in the background
func (n *Network) Train(restart bool) error {
	log.Printf("train %s: restart=%v\n", n.Model, restart)
	if restart {
		if n.Epoch != 0 || n.updated {
			if err := n.Start(n.Conf, false); err != nil {
				return err
			}
		}
		n.Epoch = 1
	} else if n.Epoch > 0 {
		n.Epoch++
	}
	if n.Epoch == 0 || n.Epoch > n.MaxEpoch {
		return nil
	}
	n.running = true
	n.stop = false
	go func() {
		epoch := n.Epoch
		done := false
		quit := false
		start := time.Now()
		for !done && !quit {
			loss := nnet.TrainEpoch(n.Network, n.trainData)
			done = n.test.Test(n.Network, epoch, loss, start)
			epoch, quit = n.nextEpoch(epoch, done)
		}
		n.Lock()
		n.running = false
		n.stop = false
		if done && len(n.test.Stats) > 0 {
			n.History = append(n.History, HistoryData{
				Stats: n.test.Stats[len(n.test.Stats)-1].Copy(),
				Conf:  n.Conf.Copy(),
			})
			if err := n.saveHistory(); err != nil {
				log.Println("train: error saving history:", err)
			}
		}
		n.Unlock()
		log.Println("train: end - quit =", quit)
	}()
	return nil
}

func (n *Network) nextEpoch(epoch int, done bool) (int, bool) {
	quit := false
	n.Lock()
	n.Epoch = epoch
	// check for interrupt
	if n.stop {
		n.stop = false
		n.running = false
		quit = true
	}
	// update predictions for each image
	for key, pred := range n.test.Pred {
		if arr, ok := n.Pred[key]; !ok || len(arr) != len(pred) {
			n.Pred[key] = make([]int32, len(pred))
		}
		copy(n.Pred[key], pred)
	}
	// update visualisation
	n.view.loadWeights(n.Network)
	n.Unlock()
	// notify via websocket
	if n.conn != nil {
		msg := []byte(strconv.Itoa(epoch))
		if err := n.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Println("nextEpoch: error writing to websocket", err)
		}
	}
	// save checkpoint to disk
	n.Lock()
	err := nnet.SaveCheckpoint(&nnet.Checkpoint{
		Model:  n.Model,
		Conf:   n.Conf,
		Epoch:  epoch,
		Stats:  n.test.Stats,
		Params: n.Network.ExportParams(),
	})
	n.Unlock()
	if err != nil {
		log.Println("nextEpoch: error saving checkpoint:", err)
	}
	return epoch + 1, quit
}

func (n *Network) heading() template.HTML {
	s := fmt.Sprintf(`%s: epoch <span id="epoch">%d</span> of %d`, n.Model, n.Epoch, n.MaxEpoch)
	return template.HTML(s)
}

func (n *Network) historyFile() string {
	return path.Join(nnet.DataDir, n.Model+".hist")
}

func (n *Network) saveHistory() error {
	f, err := os.Create(n.historyFile())
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(n.History)
}

func (n *Network) loadHistory() {
	f, err := os.Open(n.historyFile())
	if err != nil {
		return
	}
	defer f.Close()
	if err := gob.NewDecoder(f).Decode(&n.History); err != nil {
		log.Println("error loading history:", err)
	}
}

// Data used for network visualisation of weights, outputs and the inputs
// which maximise the response of each feature map.
type viewData struct {
	dset   string
	data   nnet.Data
	net    *nnet.Network
	input  *num.Array
	inBuf  []float32
	layers []viewLayer
	max    *vis.Maximizer
	maxImg map[int]*image.NRGBA
}

type viewLayer struct {
	ltype    string
	outShape []int
	outImage *image.NRGBA
	wImage   *image.NRGBA
	nfeat    int
}

// create a network with batch size 1 to display the layer data
func newViewData(data map[string]nnet.Data, conf nnet.Config, rng *rand.Rand) *viewData {
	v := &viewData{dset: "train", maxImg: map[int]*image.NRGBA{}}
	if d, ok := data["test"]; ok {
		v.dset = "test"
		v.data = d
	} else {
		v.data = data["train"]
	}
	v.net = nnet.New(conf, 1, v.data.Shape(), rng)
	v.net.InitWeights()
	v.input = num.NewArray(num.Float32, v.net.InShape()...)
	v.inBuf = make([]float32, v.input.Size())
	v.max = vis.NewMaximizer(v.net, rng)
	return v
}

// loadWeights copies the parameters from the training net and invalidates
// the cached maximization images.
func (v *viewData) loadWeights(net *nnet.Network) {
	net.CopyTo(v.net)
	v.maxImg = map[int]*image.NRGBA{}
}

// update the rendered output and weight images for one input sample
func (v *viewData) update(index int) {
	v.data.Input([]int{index}, v.inBuf)
	num.Write(v.input, v.inBuf)
	v.net.Fprop(v.input, false)
	v.layers = v.layers[:0]
	for _, layer := range v.net.Layers {
		l := viewLayer{ltype: layer.ToString()}
		if out := layer.Output(); out != nil {
			l.outShape = out.Dims()
			l.outImage = vis.OutputImage(layer, -1, 1)
		}
		if p, ok := layer.(nnet.ParamLayer); ok {
			l.wImage = vis.WeightImage(p)
			W, _ := p.Params()
			wDims := W.Dims()
			if len(wDims) == 4 {
				l.nfeat = wDims[0]
			} else {
				l.nfeat = wDims[1]
			}
		}
		v.layers = append(v.layers, l)
	}
}

// maximize returns the cached grid of inputs maximising each feature of the
// given layer, generating it on first access.
func (v *viewData) maximize(layer int) *image.NRGBA {
	if m, ok := v.maxImg[layer]; ok {
		return m
	}
	if layer < 0 || layer >= len(v.net.Layers) {
		return nil
	}
	l, ok := v.net.Layers[layer].(nnet.ParamLayer)
	if !ok {
		return nil
	}
	W, _ := l.Params()
	wDims := W.Dims()
	nfeat := wDims[0]
	if len(wDims) == 2 {
		nfeat = wDims[1]
	}
	m, err := v.max.MaximizeGrid(layer, seq(nfeat))
	if err != nil {
		log.Println("maximize:", err)
		return nil
	}
	v.maxImg[layer] = m
	return m
}

// output data from the final layer after the last update
func (v *viewData) outValues() []float32 {
	if len(v.net.Layers) == 0 {
		return nil
	}
	out := v.net.Layers[len(v.net.Layers)-1].Output()
	if out == nil {
		return nil
	}
	return out.Float()
}

func seq(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = i
	}
	return s
}

func mod(i, min, max int) int {
	if i < min {
		i = max
	}
	if i > max {
		i = min
	}
	return i
}
