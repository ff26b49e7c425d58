// Package addrprof and its sub-packages implement a service that follows the activity of blockchain addresses and
// pushes their changes to subscribed clients.
/*
addrprof provides you with one service (cmd/server) that exposes:

1) a RESTful API (package api) to read the tokens, balances, transactions, NFTs, event logs and holders of an address,
 and the token prices in several fiat currencies.

2) a websocket push channel (package api) where clients subscribe to addresses. A subscription first receives the
 current state of the address and then a change event every time its token balances, native balance, transactions
 or the token prices change.

Architecture

Every subscription is served by a profiler (package profiler). A profiler polls the data sources of the address at a
fixed interval and compares every value read with the last one it emitted: only differences are pushed. A failed
read is logged and the next tick tries again.

The transaction list of an address (package address) merges the transactions listed by the explorer with those found
through its token transfers and internal transactions, deduplicated and filtered by block number.

Explorers are reached through a data source layer (package lib/source) with a Blockscout implementation whose responses
can be cached in redis (package lib/cache). Native balances are read from the JSON-RPC node of each chain (package
lib/block). Prices are refreshed on a cron schedule from CoinMarketCap (package lib/price).

Changes pushed to clients are also published to a message broker (package lib/msg) so other services can follow the
subscribed addresses, and the subscribed addresses are kept in a database (package lib/store). Both layers are product
agnostic and configured via a JSON or YAML config file at startup.

The service can be monitored via a Prometheus API by setting the flag "-m" at startup.
*/
package addrprof
