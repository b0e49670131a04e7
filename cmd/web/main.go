// Command web serves the training dashboard for the given model.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mgmoghadam/cic-ml-intermediate-workshop/nnet"
	"github.com/mgmoghadam/cic-ml-intermediate-workshop/web"
)

const (
	scale = 3
	rows  = 8
	cols  = 10
)

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		fmt.Println("usage: web [opts] <model>")
		os.Exit(1)
	}
	model := os.Args[len(os.Args)-1]
	addr := flag.String("addr", ":8080", "listen address")
	auth := flag.String("auth", os.Getenv("ML_WORKSHOP_AUTH"), "user:password for basic auth, blank to disable")
	flag.Parse()

	net, err := web.NewNetwork(model)
	nnet.CheckErr(err)

	t, err := web.NewTemplates()
	nnet.CheckErr(err)
	t.AddMenuItem(web.Link{Url: "/train", Name: "train"})
	t.AddMenuItem(web.Link{Url: "/images/test/", Name: "images"})
	t.AddMenuItem(web.Link{Url: "/view/outputs/", Name: "outputs"})
	t.AddMenuItem(web.Link{Url: "/view/weights/", Name: "weights"})
	t.AddMenuItem(web.Link{Url: "/view/maximize/", Name: "maximize"})
	t.AddMenuItem(web.Link{Url: "/history", Name: "history"})
	t.AddMenuItem(web.Link{Url: "/config", Name: "config"})

	trainPage := web.NewTrainPage(t.Clone(), net)
	viewPage := web.NewViewPage(t.Clone(), net)
	imagePage := web.NewImagePage(t.Clone(), net, scale, rows, cols)
	configPage := web.NewConfigPage(t.Clone(), net)

	r := mux.NewRouter()
	r.Handle("/", http.RedirectHandler("/train", http.StatusFound))
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/",
		http.FileServer(http.Dir(web.AssetDir+"/static"))))

	r.HandleFunc("/train", trainPage.Base())
	r.HandleFunc("/train/{cmd:(?:stats|start|stop|continue)}", trainPage.Base())
	r.HandleFunc("/stats", trainPage.Stats())
	r.HandleFunc("/history", trainPage.History())
	r.HandleFunc("/ws", trainPage.Websocket())

	r.HandleFunc("/view/{page:(?:outputs|weights|maximize)}/", viewPage.Base())
	r.HandleFunc("/view/{page}/{opt:(?:prev|next)}", viewPage.Setopt())
	r.HandleFunc("/net/{page}", viewPage.Network())
	r.HandleFunc("/net/{page}/{layer:[0-9]+}", viewPage.Image())

	r.HandleFunc("/images/{dset}/", imagePage.Base())
	r.HandleFunc("/images/{dset}/{class:[0-9]+}", imagePage.Base())
	r.HandleFunc("/images/{dset}/{opt:(?:all|errors|prev|next|distort)}", imagePage.Setopt())
	r.HandleFunc("/grid/{dset}", imagePage.Grid())
	r.HandleFunc("/img/{dset}/{id:[0-9]+}", imagePage.Image())

	r.HandleFunc("/config", configPage.Base())
	r.HandleFunc("/config/save", configPage.Save()).Methods("POST")
	r.HandleFunc("/config/reset", configPage.Reset())

	user, password := splitAuth(*auth)
	mw := web.NewAuthMiddleware(user, password)

	fmt.Printf("serving dashboard at http://localhost%s\n", *addr)
	err = http.ListenAndServe(*addr, mw.Middleware(r))
	nnet.CheckErr(err)
}

func splitAuth(s string) (user, password string) {
	if ix := strings.IndexByte(s, ':'); ix >= 0 {
		return s[:ix], s[ix+1:]
	}
	return s, ""
}
