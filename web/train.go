package web

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/vgimg"
	_ "gonum.org/v1/plot/vg/vgsvg"

	"github.com/mgmoghadam/cic-ml-intermediate-workshop/nnet"
	"github.com/mgmoghadam/cic-ml-intermediate-workshop/stats"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type TrainPage struct {
	*Templates
	net *Network
}

// Base data for handler functions to perform network training and display the stats
func NewTrainPage(t *Templates, net *Network) *TrainPage {
	p := &TrainPage{net: net}
	p.Templates = t.Select("/train")
	p.AddOption(Link{Name: "start", Url: "/train/start"})
	p.AddOption(Link{Name: "stop", Url: "/train/stop"})
	p.AddOption(Link{Name: "continue", Url: "/train/continue"})
	return p
}

// Handler function for the train template
func (p *TrainPage) Base() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		cmd := mux.Vars(r)["cmd"]
		p.net.Lock()
		defer p.net.Unlock()
		switch cmd {
		case "start", "continue":
			if p.net.running {
				log.Println("skip start - already running")
			} else if err := p.net.Train(cmd == "start"); err != nil {
				logError(w, err)
				return
			}
			http.Redirect(w, r, "/train/stats", http.StatusFound)
		case "stop":
			p.net.stop = true
			http.Redirect(w, r, "/train/stats", http.StatusFound)
		default:
			p.Heading = p.net.heading()
			p.Exec(w, "train", p)
		}
	}
}

// Handler function for the stats frame
func (p *TrainPage) Stats() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.net.Lock()
		defer p.net.Unlock()
		p.Exec(w, "stats", p)
	}
}

// Handler function for the history page with the results of completed runs
func (p *TrainPage) History() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.net.Lock()
		defer p.net.Unlock()
		p.Select("/history")
		p.Heading = p.net.heading()
		p.Exec(w, "history", p)
	}
}

// Handler function for websocket connection
func (p *TrainPage) Websocket() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		p.net.conn, err = upgrader.Upgrade(w, r, nil)
		if err != nil {
			logError(w, err)
		}
	}
}

func (p *TrainPage) Headers() []string {
	return nnet.StatsHeaders(p.net.Data)
}

func (p *TrainPage) LatestStats(n int) []nnet.Stats {
	last := len(p.net.test.Stats) - 1
	res := []nnet.Stats{}
	for i := last; i >= 0 && i > last-n; i-- {
		res = append(res, p.net.test.Stats[i])
	}
	return res
}

func (p *TrainPage) RunTime() string {
	if len(p.net.test.Stats) == 0 {
		return ""
	}
	elapsed := p.net.test.Stats[len(p.net.test.Stats)-1].Elapsed
	return fmt.Sprintf("run time: %s", elapsed.Round(10*time.Millisecond))
}

// EpochTime returns the mean and spread of the per epoch time in seconds.
func (p *TrainPage) EpochTime() template.HTML {
	if len(p.net.test.Stats) == 0 {
		return ""
	}
	var av stats.Average
	var prev time.Duration
	for _, s := range p.net.test.Stats {
		av.Add((s.Elapsed - prev).Seconds())
		prev = s.Elapsed
	}
	return "epoch time: " + av.HTML()
}

func (p *TrainPage) HistoryRows() []HistoryRow {
	rows := make([]HistoryRow, len(p.net.History))
	for i, h := range p.net.History {
		rows[i] = HistoryRow{
			Run:     i + 1,
			Stats:   h.Stats.Format(),
			Epochs:  h.Stats.Epoch,
			Elapsed: h.Stats.Elapsed.Round(10 * time.Millisecond).String(),
			Params: template.HTML(fmt.Sprintf("&eta;=%v &lambda;=%v batch=%v",
				h.Conf.Get("Eta"), h.Conf.Get("Lambda"), h.Conf.Get("TrainBatch"))),
		}
	}
	return rows
}

type HistoryRow struct {
	Run     int
	Epochs  int
	Elapsed string
	Stats   []string
	Params  template.HTML
}

func (p *TrainPage) LossPlot(width, height int) template.HTML {
	plt := newPlot()
	line := newLinePlot(p.net.test.Stats, 0, 1)
	plt.Add(line)
	plt.Legend.Add("training loss ", line)
	return writePlot(plt, width, height)
}

func (p *TrainPage) ErrorPlot(width, height int) template.HTML {
	plt := newPlot()
	for i, name := range p.Headers()[1:] {
		line := newLinePlot(p.net.test.Stats, i+1, 100)
		plt.Add(line)
		plt.Legend.Add(name+" % ", line)
	}
	return writePlot(plt, width, height)
}

func newPlot() *plot.Plot {
	p := plot.New()
	p.X.Padding, p.Y.Padding = 0, 0
	p.X.Tick.Label.Font.Size = 10
	p.Y.Tick.Label.Font.Size = 10
	p.Legend.Top = true
	p.Legend.TextStyle.Font.Size = 12
	p.Add(plotter.NewGrid())
	return p
}

func writePlot(p *plot.Plot, w, h int) template.HTML {
	var buf bytes.Buffer
	writer, err := p.WriterTo(vg.Inch*vg.Length(w)/vgimg.DefaultDPI, vg.Inch*vg.Length(h)/vgimg.DefaultDPI, "svg")
	if err != nil {
		log.Println("error writing plot:", err)
		return ""
	}
	writer.WriteTo(&buf)
	return template.HTML(buf.String())
}

func newLinePlot(stats []nnet.Stats, ix int, scale float64) linePlot {
	var pt struct{ X, Y float64 }
	var pts plotter.XYs
	xmax, ymax := 1.0, 0.0
	for _, s := range stats {
		if ix >= len(s.Values) {
			continue
		}
		pt.X, pt.Y = float64(s.Epoch), s.Values[ix]*scale
		pts = append(pts, pt)
		if pt.X > xmax {
			xmax = pt.X
		}
		if pt.Y > ymax {
			ymax = pt.Y
		}
	}
	l, _ := plotter.NewLine(pts)
	l.Width = 2
	l.Color = plotutil.Color(ix)
	return linePlot{Line: l, xmin: 1, xmax: xmax, ymin: 0, ymax: ymax}
}

// modified plotter.Line with a fixed scale
type linePlot struct {
	*plotter.Line
	xmin, xmax, ymin, ymax float64
}

func (l linePlot) DataRange() (xmin, xmax, ymin, ymax float64) {
	return l.xmin, l.xmax, l.ymin, l.ymax
}
