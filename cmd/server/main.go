// Package main: address profiler service.
//
// The service serves the RESTful API and the websocket push channel of package api. The database, used to keep the
// addresses subscribed to, the message broker, where every change pushed to clients is published, and the redis
// cache of explorer responses are optional: leave their connection strings empty to run without them.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tarancss/addrprof/address"
	"github.com/tarancss/addrprof/api"
	"github.com/tarancss/addrprof/lib/block"
	"github.com/tarancss/addrprof/lib/cache"
	"github.com/tarancss/addrprof/lib/config"
	"github.com/tarancss/addrprof/lib/log"
	"github.com/tarancss/addrprof/lib/msg"
	"github.com/tarancss/addrprof/lib/msg/amqp"
	"github.com/tarancss/addrprof/lib/price"
	"github.com/tarancss/addrprof/lib/price/coinmarketcap"
	"github.com/tarancss/addrprof/lib/source"
	"github.com/tarancss/addrprof/lib/source/blockscout"
	"github.com/tarancss/addrprof/lib/store"
	"github.com/tarancss/addrprof/lib/store/db"
)

func main() {
	// get command line flags
	confPath := flag.String("c", "", "flag to get configuration from json or yaml file")
	monitor := flag.Bool("m", false, "flag to monitor the server with Prometheus at http://localhost:9100/metrics")
	flag.Parse()

	// extract configuration
	conf, err := config.ExtractConfiguration(*confPath)
	if err != nil {
		panic(err)
	}

	if err = log.Bootstrap(conf.Log); err != nil {
		panic(err)
	}
	defer log.Sync()

	log.Info("configuration loaded", zap.Int("chains", len(conf.Chains)), zap.String("port", conf.Port))

	// connect to database
	var dbConn store.DB

	if conf.DBConn != "" {
		if dbConn, err = db.New(conf.DBType, conf.DBConn); err != nil {
			panic(errors.Wrap(err, "cannot connect to database"))
		}

		log.Info("connected to database", zap.String("type", conf.DBType))

		defer func() {
			log.Info("disconnecting database", zap.Error(db.Close(conf.DBType, dbConn)))
		}()
	}

	// load message broker
	mb := loadBroker(conf)
	if mb != nil {
		defer func() {
			log.Info("closing message broker", zap.Error(mb.Close()))
		}()
	}

	// response cache
	var rc cache.Cache

	if conf.Redis != "" {
		r, err := cache.NewRedis(conf.Redis, "addrprof:")
		if err != nil {
			panic(errors.Wrap(err, "bad redis url"))
		}

		if err = r.Ping(context.Background()); err != nil {
			log.Warn("redis not available, explorer responses will not be cached", zap.Error(err))
		}

		rc = r

		defer r.Close()
	}

	// load the node of every chain
	nodes, err := block.Init(conf.Chains)
	if err != nil {
		panic(errors.Wrap(err, "cannot load nodes"))
	}
	defer block.End(nodes)

	sources := make(map[string]source.DataSource, len(conf.Chains))
	symbols := make(map[string]string, len(conf.Chains))

	for _, c := range conf.Chains {
		symbols[c.ChainID] = c.NativeSymbol

		if c.Explorer == "" {
			log.Warn("explorer url not defined for chain. Ignoring...", zap.String("chainId", c.ChainID))

			continue
		}

		sources[c.ChainID] = blockscout.New(blockscout.Config{
			URL:          c.Explorer,
			ChainID:      c.ChainID,
			NativeSymbol: c.NativeSymbol,
			TTL:          time.Duration(conf.CacheTTL) * time.Second,
			Cache:        rc,
		})
	}

	// price cycle
	prices := price.NewStore(price.DefaultCurrency)

	if refresher := loadPrices(conf, prices); refresher != nil {
		defer refresher.Stop()
	}

	// load Prometheus monitor
	if *monitor {
		go func() {
			log.Info("serving metrics API")

			h := http.NewServeMux()
			h.Handle("/metrics", promhttp.Handler())

			if err := http.ListenAndServe(":9100", h); err != nil { //nolint:gosec // internal endpoint
				log.Errore("metrics server", err)
			}
		}()
	}

	svc := address.New(address.Options{
		Sources: sources,
		Nodes:   nodes,
		Prices:  prices,
		Symbols: symbols,
	})

	a := api.New(api.Options{
		Service:  svc,
		DB:       dbConn,
		Broker:   mb,
		Interval: time.Duration(conf.PollInterval) * time.Second,
	})

	// capture CTRL+C or docker's SIGTERM for gracious exit
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, os.Interrupt, syscall.SIGTERM)
		<-sigchan
		log.Info("program killed")
		a.Stop()
	}()

	// init API, wait for its return and log response
	log.Info("address profiler stopped", zap.String("servers",
		a.Init(conf.RestfulEndpoint, conf.Port, conf.SSLPort, conf.SSLCert, conf.SSLKey)))
}

// loadBroker connects to the message broker, nil when none is configured.
func loadBroker(conf config.ServiceConfig) msg.MsgBroker {
	switch conf.MbType {
	case "amqp":
		mb, err := amqp.New(conf.MbConn)
		if err != nil {
			time.Sleep(10 * time.Second) // wait 10s for AMQP to be ready and try to reconnect

			if mb, err = amqp.New(conf.MbConn); err != nil {
				panic(errors.Wrap(err, "cannot connect to message broker"))
			}
		}

		if err = mb.Setup(nil); err != nil {
			panic(errors.Wrap(err, "cannot set up message broker"))
		}

		return mb
	case "":
		log.Info("no message broker configured, changes will not be published")
	default:
		log.Warn("unknown message broker type", zap.String("type", conf.MbType))
	}

	return nil
}

// loadPrices starts the price refresh cycle. Without a CoinMarketCap key the store stays empty.
func loadPrices(conf config.ServiceConfig, prices *price.Store) *price.Refresher {
	if conf.Price.Key == "" {
		log.Warn("no CoinMarketCap key configured, prices will not be refreshed")

		return nil
	}

	cmc, err := coinmarketcap.New(conf.Price)
	if err != nil {
		log.Warn("cannot load price fetcher", zap.Error(err))

		return nil
	}

	r := price.NewRefresher(prices, cmc, conf.Price.Currencies)
	if err = r.Start(conf.Price.Schedule); err != nil {
		panic(errors.Wrap(err, "bad price schedule"))
	}

	return r
}
