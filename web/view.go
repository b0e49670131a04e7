package web

import (
	"fmt"
	"html/template"
	"image"
	"image/png"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
)

const scaleWidth = 20

type ViewPage struct {
	*Templates
	Page  string
	Index int
	net   *Network
	info  []LayerInfo
}

type LayerInfo struct {
	Desc     string
	Image    string
	Values   []template.HTML
	Width    int
	PadWidth int
}

// Base data for handler functions to view network activations, weights and
// the inputs which maximise each feature map.
func NewViewPage(t *Templates, net *Network) *ViewPage {
	p := &ViewPage{net: net, Templates: t, Index: 1}
	p.AddOption(Link{Name: "prev", Url: "./prev"})
	p.AddOption(Link{Name: "next", Url: "./next"})
	return p
}

// Handler function for the main view page
func (p *ViewPage) Base() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.net.Lock()
		defer p.net.Unlock()
		vars := mux.Vars(r)
		p.Page = vars["page"]
		p.Select("/view/" + p.Page + "/")
		p.Heading = p.net.heading()
		p.Exec(w, "view", p)
	}
}

// Set option from top menu
func (p *ViewPage) Setopt() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.net.Lock()
		defer p.net.Unlock()
		vars := mux.Vars(r)
		switch vars["opt"] {
		case "prev":
			p.Index = mod(p.Index-1, 1, p.net.view.data.Len())
		case "next":
			p.Index = mod(p.Index+1, 1, p.net.view.data.Len())
		}
		http.Redirect(w, r, "/view/"+vars["page"]+"/", http.StatusFound)
	}
}

// Handler function for the frame with the visualisation panels
func (p *ViewPage) Network() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.net.Lock()
		defer p.net.Unlock()
		vars := mux.Vars(r)
		p.Page = vars["page"]
		p.net.view.update(p.Index - 1)
		p.Exec(w, "net", p)
	}
}

// Used in template to display the layer data
func (p *ViewPage) Layers() []LayerInfo {
	p.info = []LayerInfo{}
	ts := time.Now().Unix()
	v := p.net.view
	switch p.Page {
	case "outputs":
		// display input and outputs at each layer
		label := p.net.Labels[v.dset][p.Index-1]
		p.addImage(
			fmt.Sprintf("input %d %v => %d", p.Index, v.net.InShape(), label),
			fmt.Sprintf("/img/%s/%d", v.dset, p.Index),
			nil, 5,
		)
		for i, l := range v.layers {
			if l.outImage != nil {
				p.addImage(
					fmt.Sprintf("%d: %s %v", i, l.ltype, l.outShape),
					fmt.Sprintf("/net/outputs/%d?ts=%d", i, ts),
					l.outImage, 100,
				)
			}
		}
		out := len(p.info) - 1
		if out >= 0 {
			for i, val := range v.outValues() {
				c := int(255 * (1 - val))
				tag := fmt.Sprintf(`<span style="color:#%02x%02x%02x;">%d</span>`, c, c, c, i)
				p.info[out].Values = append(p.info[out].Values, template.HTML(tag))
			}
		}
	case "weights":
		// display weights and biases
		for i, l := range v.layers {
			if l.wImage != nil {
				p.addImage(
					fmt.Sprintf("%d: %s", i, l.ltype),
					fmt.Sprintf("/net/weights/%d?ts=%d", i, ts),
					l.wImage, 100,
				)
			}
		}
	case "maximize":
		// display inputs which maximise the response of each feature
		for i, l := range v.layers {
			if l.wImage == nil {
				continue
			}
			if m := v.maximize(i); m != nil {
				p.addImage(
					fmt.Sprintf("%d: %s - %d features", i, l.ltype, l.nfeat),
					fmt.Sprintf("/net/maximize/%d?ts=%d", i, ts),
					m, 100,
				)
			}
		}
	}
	return p.info
}

func (p *ViewPage) addImage(desc, url string, img *image.NRGBA, width int) {
	info := LayerInfo{Desc: desc, Width: width, Image: url}
	if img != nil && img.Bounds().Dx() <= scaleWidth {
		info.Width /= 2
	}
	info.PadWidth = 100 - info.Width
	p.info = append(p.info, info)
}

// Handler function to generate the png image for each visualisation panel
func (p *ViewPage) Image() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.net.Lock()
		defer p.net.Unlock()
		vars := mux.Vars(r)
		page := vars["page"]
		layer, _ := strconv.Atoi(vars["layer"])
		v := p.net.view
		var img *image.NRGBA
		if layer < len(v.layers) {
			switch page {
			case "outputs":
				img = v.layers[layer].outImage
			case "weights":
				img = v.layers[layer].wImage
			case "maximize":
				img = v.maximize(layer)
			}
		}
		if img == nil {
			log.Printf("viewImage: not found page=%s layer=%d\n", page, layer)
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-type", "image/png")
		png.Encode(w, img)
	}
}
