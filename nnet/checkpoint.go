package nnet

import (
	"encoding/gob"
	"fmt"
	"os"
	"path"

	"github.com/mgmoghadam/cic-ml-intermediate-workshop/num"
)

// LayerData holds the weights for one layer of the network.
type LayerData struct {
	Layer   int
	Weights []float32
	Biases  []float32
}

// Checkpoint is a snapshot of a training run: the config, the per epoch
// training stats and the weights for each layer with parameters.
type Checkpoint struct {
	Model  string
	Conf   Config
	Epoch  int
	Stats  []Stats
	Params []LayerData
}

// ExportParams copies the weights out of each parameter layer.
func (n *Network) ExportParams() []LayerData {
	params := []LayerData{}
	for i, layer := range n.Layers {
		if l, ok := layer.(ParamLayer); ok {
			W, B := l.Params()
			d := LayerData{
				Layer:   i,
				Weights: make([]float32, W.Size()),
				Biases:  make([]float32, B.Size()),
			}
			num.Read(W, d.Weights)
			num.Read(B, d.Biases)
			params = append(params, d)
		}
	}
	return params
}

// ImportParams loads saved weights into the network. If strict is set then
// any layer mismatch is an error, else layers which are missing or whose
// shape differs are skipped. The relaxed mode is used for transfer learning
// where a pretrained convolutional base is loaded into a network with a
// new classifier head.
func (n *Network) ImportParams(params []LayerData, strict bool) error {
	nlayers := len(n.Layers)
	for _, p := range params {
		if p.Layer >= nlayers {
			if strict {
				return fmt.Errorf("layer %d import error: network has %d layers total", p.Layer, nlayers)
			}
			fmt.Printf("skip layer %d: network has %d layers\n", p.Layer, nlayers)
			continue
		}
		layer, ok := n.Layers[p.Layer].(ParamLayer)
		if !ok {
			if strict {
				return fmt.Errorf("layer %d import error: not a ParamLayer", p.Layer)
			}
			fmt.Printf("skip layer %d: no parameters\n", p.Layer)
			continue
		}
		W, B := layer.Params()
		if W.Size() != len(p.Weights) || B.Size() != len(p.Biases) {
			if strict {
				return fmt.Errorf("layer %d import error: size mismatch - have %d %d - expect %d %d",
					p.Layer, len(p.Weights), len(p.Biases), W.Size(), B.Size())
			}
			fmt.Printf("skip layer %d: shape mismatch\n", p.Layer)
			continue
		}
		num.Write(W, p.Weights)
		num.Write(B, p.Biases)
	}
	return nil
}

// SaveCheckpoint encodes the checkpoint in gob format under DataDir.
func SaveCheckpoint(c *Checkpoint) error {
	filePath := path.Join(DataDir, c.Model+".net")
	f, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer f.Close()
	fmt.Println("saving checkpoint to", c.Model+".net")
	return gob.NewEncoder(f).Encode(c)
}

// LoadCheckpoint reads back a gob encoded checkpoint file.
func LoadCheckpoint(model string) (*Checkpoint, error) {
	filePath := path.Join(DataDir, model+".net")
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	c := &Checkpoint{}
	if err = gob.NewDecoder(f).Decode(c); err != nil {
		return nil, err
	}
	fmt.Printf("loaded checkpoint %s.net: epoch %d\n", model, c.Epoch)
	return c, nil
}
