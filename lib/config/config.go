// Package config provides helper functionality to read the service configuration from JSON or YAML config files
// and OS ENV variables. The default configuration can be overridden first by:
//
// - a valid JSON config file (see cmd/conf.json for a sample), or a YAML file when its extension is .yaml or .yml,
// and then by
//
// - OS ENV variables: prefixed with ADDRPROF_ (ie. ADDRPROF_PORT, ADDRPROF_DBCONN, ...). All OS ENV variables should
// be valid strings, except for ADDRPROF_CHAINS which should be a string with a valid JSON format. For example:
// # export ADDRPROF_CHAINS='[{"chainId":"31","name":"rsk-testnet","explorer":"https://rootstock-testnet.blockscout.com/api","node":"https://public-node.testnet.rsk.co"}]'
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default configuration variables
var (
	RestfulEPDefault     = ""
	PortDefault          = "3000"
	DBTypeDefault        = ""
	MbTypeDefault        = ""
	PollIntervalDefault  = 10
	PriceScheduleDefault = "@every 60s"
	CurrencyDefault      = "USD"
	CMCURLDefault        = "https://pro-api.coinmarketcap.com"
	CMCVersionDefault    = "v1"
	CacheTTLDefault      = 60
	ChainsDefault        = []ChainConfig{
		{
			ChainID:      "31",
			Name:         "rsk-testnet",
			Explorer:     "https://rootstock-testnet.blockscout.com/api",
			Node:         "https://public-node.testnet.rsk.co",
			NativeSymbol: "RBTC",
		},
		{
			ChainID:      "30",
			Name:         "rsk-mainnet",
			Explorer:     "https://rootstock.blockscout.com/api",
			Node:         "https://public-node.rsk.co",
			NativeSymbol: "RBTC",
		},
	}
)

// ChainConfig defines the required fields for one chain. Explorer is the base url of the Blockscout API used as data
// source, Node contains the url of a JSON-RPC node (ie. https://localhost:4444) and Secret is an optional field when
// Basic Authentication is required by the node.
type ChainConfig struct {
	ChainID      string `json:"chainId" yaml:"chainId"`
	Name         string `json:"name" yaml:"name"`
	Explorer     string `json:"explorer" yaml:"explorer"`
	Node         string `json:"node" yaml:"node"`
	Secret       string `json:"secret" yaml:"secret"`
	NativeSymbol string `json:"nativeSymbol" yaml:"nativeSymbol"`
}

// PriceConfig configures the price refresh cycle and the CoinMarketCap fetcher. IDs maps token contract addresses to
// CoinMarketCap ids.
type PriceConfig struct {
	Schedule   string            `json:"schedule" yaml:"schedule"`
	Currencies []string          `json:"currencies" yaml:"currencies"`
	URL        string            `json:"url" yaml:"url"`
	Version    string            `json:"version" yaml:"version"`
	Key        string            `json:"key" yaml:"key"`
	IDs        map[string]string `json:"ids" yaml:"ids"`
}

// LoggerConfig configures the zap logger.
type LoggerConfig struct {
	Level string `json:"level" yaml:"level"`
	File  string `json:"file" yaml:"file"`
	Debug bool   `json:"debug" yaml:"debug"`
}

// ServiceConfig contains the required fields for the service: API endpoint, ports, SSL cert and key, database,
// message broker, redis cache, polling interval (seconds), chains, price cycle and logger.
type ServiceConfig struct {
	RestfulEndpoint string        `json:"endpoint" yaml:"endpoint"`
	Port            string        `json:"port" yaml:"port"`
	SSLPort         string        `json:"sslport" yaml:"sslport"`
	SSLCert         string        `json:"sslcert" yaml:"sslcert"`
	SSLKey          string        `json:"sslkey" yaml:"sslkey"`
	DBType          string        `json:"dbtype" yaml:"dbtype"`
	DBConn          string        `json:"dbconn" yaml:"dbconn"`
	MbType          string        `json:"mbtype" yaml:"mbtype"`
	MbConn          string        `json:"mbconn" yaml:"mbconn"`
	Redis           string        `json:"redis" yaml:"redis"`
	CacheTTL        int           `json:"cacheTTL" yaml:"cacheTTL"`
	PollInterval    int           `json:"pollInterval" yaml:"pollInterval"`
	Chains          []ChainConfig `json:"chains" yaml:"chains"`
	Price           PriceConfig   `json:"price" yaml:"price"`
	Log             LoggerConfig  `json:"log" yaml:"log"`
}

// Default returns the default configuration.
func Default() ServiceConfig {
	chains := make([]ChainConfig, len(ChainsDefault))
	copy(chains, ChainsDefault)

	return ServiceConfig{
		RestfulEndpoint: RestfulEPDefault,
		Port:            PortDefault,
		DBType:          DBTypeDefault,
		MbType:          MbTypeDefault,
		CacheTTL:        CacheTTLDefault,
		PollInterval:    PollIntervalDefault,
		Chains:          chains,
		Price: PriceConfig{
			Schedule:   PriceScheduleDefault,
			Currencies: []string{CurrencyDefault},
			URL:        CMCURLDefault,
			Version:    CMCVersionDefault,
			IDs:        map[string]string{},
		},
		Log: LoggerConfig{Level: "info"},
	}
}

// ExtractConfiguration reads from the given filename and returns the ServiceConfig or an error otherwise.
func ExtractConfiguration(filename string) (ServiceConfig, error) {
	conf := Default()
	// read from config file first
	if filename != "" {
		file, err := os.Open(filename)
		if err != nil {
			return conf, fmt.Errorf("configuration file not found: %w", err)
		}
		defer file.Close()

		switch strings.ToLower(filepath.Ext(filename)) {
		case ".yaml", ".yml":
			err = yaml.NewDecoder(file).Decode(&conf)
		default:
			err = json.NewDecoder(file).Decode(&conf)
		}

		if err != nil {
			return conf, fmt.Errorf("cannot decode configuration file %s: %w", filename, err)
		}
	}
	// then override config values with OS ENV variables
	if err := override(&conf); err != nil {
		return conf, err
	}

	for i := range conf.Chains {
		if conf.Chains[i].NativeSymbol == "" {
			conf.Chains[i].NativeSymbol = "RBTC"
		}
	}

	return conf, nil
}

func override(conf *ServiceConfig) error {
	strs := []struct {
		env string
		dst *string
	}{
		{"ADDRPROF_ENDPOINT", &conf.RestfulEndpoint},
		{"ADDRPROF_PORT", &conf.Port},
		{"ADDRPROF_SSLPORT", &conf.SSLPort},
		{"ADDRPROF_SSLCERT", &conf.SSLCert},
		{"ADDRPROF_SSLKEY", &conf.SSLKey},
		{"ADDRPROF_DBTYPE", &conf.DBType},
		{"ADDRPROF_DBCONN", &conf.DBConn},
		{"ADDRPROF_MBTYPE", &conf.MbType},
		{"ADDRPROF_MBCONN", &conf.MbConn},
		{"ADDRPROF_REDIS", &conf.Redis},
		{"ADDRPROF_PRICE_SCHEDULE", &conf.Price.Schedule},
		{"ADDRPROF_CMC_URL", &conf.Price.URL},
		{"ADDRPROF_CMC_VERSION", &conf.Price.Version},
		{"ADDRPROF_CMC_KEY", &conf.Price.Key},
		{"ADDRPROF_LOGLEVEL", &conf.Log.Level},
		{"ADDRPROF_LOGFILE", &conf.Log.File},
	}
	for _, s := range strs {
		if tmp := os.Getenv(s.env); tmp != "" {
			*s.dst = tmp
		}
	}

	ints := []struct {
		env string
		dst *int
	}{
		{"ADDRPROF_POLL_INTERVAL", &conf.PollInterval},
		{"ADDRPROF_CACHE_TTL", &conf.CacheTTL},
	}
	for _, i := range ints {
		if tmp := os.Getenv(i.env); tmp != "" {
			v, err := strconv.Atoi(tmp)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", i.env, tmp, err)
			}

			*i.dst = v
		}
	}

	if tmp := os.Getenv("ADDRPROF_CURRENCIES"); tmp != "" {
		conf.Price.Currencies = strings.Split(strings.ToUpper(tmp), ",")
	}

	if tmp := os.Getenv("ADDRPROF_CHAINS"); tmp != "" {
		var chains []ChainConfig
		if err := json.Unmarshal([]byte(tmp), &chains); err != nil {
			return fmt.Errorf("error reading chains from OS ENV ADDRPROF_CHAINS: %w", err)
		}

		conf.Chains = chains
	}

	if tmp := os.Getenv("ADDRPROF_CMC_IDS"); tmp != "" {
		ids := map[string]string{}
		if err := json.Unmarshal([]byte(tmp), &ids); err != nil {
			return fmt.Errorf("error reading ids from OS ENV ADDRPROF_CMC_IDS: %w", err)
		}

		conf.Price.IDs = ids
	}

	return nil
}
