// Package api implements the RESTful API and the websocket push channel of the service.
//
// REST replies are JSON objects {"body": ..., "error": "..."}. Websocket clients send
// {"event":"subscribe","data":{"address":...,"chainId":...,"blockNumber":...}} to receive an init message with the
// current state of the address followed by change messages, and {"event":"unsubscribe","data":{"address":...}} to
// stop them.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/tarancss/addrprof/address"
	"github.com/tarancss/addrprof/lib/log"
	"github.com/tarancss/addrprof/lib/msg"
	"github.com/tarancss/addrprof/lib/store"
)

const timeout = 15

// Options holds the dependencies of the API. DB and Broker are optional.
type Options struct {
	Service  *address.Service
	DB       store.DB
	Broker   msg.MsgBroker
	Interval time.Duration // poll interval of the subscriptions
}

// API serves the address service over http and websocket.
type API struct {
	svc *address.Service
	db  store.DB
	mb  msg.MsgBroker
	hub *Hub

	s  *http.Server  // http server
	ss *http.Server  // https server
	sc chan struct{} // closed once the servers are shut down
}

// New returns the API of svc.
func New(o Options) *API {
	a := &API{
		svc: o.Service,
		db:  o.DB,
		mb:  o.Broker,
		sc:  make(chan struct{}),
	}
	a.hub = NewHub(a, o.Interval)

	return a
}

// Router returns the routes of the API.
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", a.homeHandler)
	r.HandleFunc("/tokens", a.tokensHandler).Methods("GET")
	r.HandleFunc("/address/{address}/tokens", a.addrTokensHandler).Methods("GET")
	r.HandleFunc("/address/{address}/events", a.addrEventsHandler).Methods("GET")
	r.HandleFunc("/address/{address}/transactions", a.addrTxsHandler).Methods("GET")
	r.HandleFunc("/address/{address}/nfts/{nft}", a.addrNftHandler).Methods("GET")
	r.HandleFunc("/address/{address}/eventsByTopic0", a.addrLogsHandler).Methods("GET")
	r.HandleFunc("/address/{address}/holders", a.tokenHoldersHandler).Methods("GET")
	r.HandleFunc("/address/{address}", a.addrDetailsHandler).Methods("GET")
	r.HandleFunc("/nfts/{address}", a.nftHandler).Methods("GET")
	r.HandleFunc("/nfts/{address}/holders", a.nftHoldersHandler).Methods("GET")
	r.HandleFunc("/price", a.priceHandler).Methods("GET")
	r.HandleFunc("/latestPrices", a.latestPricesHandler).Methods("GET")
	r.HandleFunc("/tracked", a.trackedHandler).Methods("GET")
	r.HandleFunc("/ws", a.hub.Serve)

	return r
}

// Init starts the http server, and the https (TLS) one when sslPort, sslCert and sslKey are informed, and waits until
// Stop is called.
func (a *API) Init(endpoint, port, sslPort, sslCert, sslKey string) string {
	var err, errTLS error

	r := a.Router()

	if port != "" {
		a.s = &http.Server{
			Handler:      r,
			Addr:         endpoint + ":" + port,
			WriteTimeout: timeout * time.Second,
			ReadTimeout:  timeout * time.Second,
		}

		go func() {
			err = a.s.ListenAndServe()
		}()

		log.Info("listening to API http requests", zap.String("endpoint", endpoint), zap.String("port", port))
	}

	if sslPort != "" && sslCert != "" && sslKey != "" {
		a.ss = &http.Server{
			Handler:      r,
			Addr:         endpoint + ":" + sslPort,
			WriteTimeout: timeout * time.Second,
			ReadTimeout:  timeout * time.Second,
		}

		go func() {
			errTLS = a.ss.ListenAndServeTLS(sslCert, sslKey)
		}()

		log.Info("listening to API https requests", zap.String("endpoint", endpoint), zap.String("port", sslPort))
	}

	<-a.sc

	return fmt.Sprintf("shutdown http server:%v, https server:%v", err, errTLS)
}

// Stop closes every websocket session and shuts down the servers.
func (a *API) Stop() {
	a.hub.Close()

	for _, s := range []*http.Server{a.s, a.ss} {
		if s == nil {
			continue
		}

		if err := s.Shutdown(context.Background()); err != nil {
			log.Errore("server shutdown", err)
		}
	}

	close(a.sc)
}
