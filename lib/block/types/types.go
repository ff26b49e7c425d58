// Package types common blockchain types. Every data source normalizes its upstream records into these shapes.
package types

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ZeroAddress is the contract address used for the native coin of a chain.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// Token is a blockchain asset.
type Token struct {
	Name            string `json:"name"`
	Logo            string `json:"logo"`
	Symbol          string `json:"symbol"`
	ContractAddress string `json:"contractAddress"`
	Decimals        int    `json:"decimals"`
}

// TokenBalance is a token together with the balance an address holds.
type TokenBalance struct {
	Token
	Balance string `json:"balance"`
}

// NativeBalance returns the native coin balance record for bal, hex encoded.
func NativeBalance(symbol string, bal *big.Int) TokenBalance {
	if bal == nil {
		bal = new(big.Int)
	}

	return TokenBalance{
		Token: Token{
			Name:            symbol,
			Symbol:          symbol,
			ContractAddress: ZeroAddress,
			Decimals:        18, //nolint:gomnd // native coin decimals
		},
		Balance: hexutil.EncodeBig(bal),
	}
}

// Transaction contains the fields of a transaction served to clients.
type Transaction struct {
	Hash        string `json:"hash"`
	BlockNumber uint64 `json:"blockNumber"`
	BlockHash   string `json:"blockHash,omitempty"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	Gas         string `json:"gas,omitempty"`
	GasPrice    string `json:"gasPrice,omitempty"`
	GasUsed     string `json:"gasUsed,omitempty"`
	Nonce       uint64 `json:"nonce"`
	Input       string `json:"input,omitempty"`
	Timestamp   int64  `json:"timestamp"`
	Status      string `json:"status,omitempty"`
}

// TransactionPage is one page of transactions with its opaque cursors.
type TransactionPage struct {
	Data []Transaction `json:"data"`
	Prev string        `json:"prev,omitempty"`
	Next string        `json:"next,omitempty"`
}

// TxRef is the common shape token-transfer events and internal transactions are reduced to before they are merged
// with the transaction list of an address.
type TxRef struct {
	TransactionHash string
	BlockNumber     uint64
	From            string
	To              string
}

// Event is a token transfer event.
type Event struct {
	BlockNumber     uint64   `json:"blockNumber"`
	Event           string   `json:"event"`
	Timestamp       int64    `json:"timestamp"`
	Topics          []string `json:"topics"`
	Args            []string `json:"args"`
	TransactionHash string   `json:"transactionHash"`
	TxStatus        string   `json:"txStatus"`
	From            string   `json:"from"`
	To              string   `json:"to"`
	ContractAddress string   `json:"contractAddress"`
	Value           string   `json:"value"`
}

// Ref reduces the event to a TxRef.
func (e Event) Ref() TxRef {
	return TxRef{TransactionHash: e.TransactionHash, BlockNumber: e.BlockNumber, From: e.From, To: e.To}
}

// InternalTransaction is a value transfer produced by a contract call.
type InternalTransaction struct {
	BlockNumber     uint64 `json:"blockNumber"`
	TransactionHash string `json:"transactionHash"`
	From            string `json:"from"`
	To              string `json:"to"`
	Value           string `json:"value"`
	Type            string `json:"type"`
	Index           int    `json:"index"`
	Success         bool   `json:"success"`
	Timestamp       string `json:"timestamp"`
}

// Ref reduces the internal transaction to a TxRef.
func (i InternalTransaction) Ref() TxRef {
	return TxRef{TransactionHash: i.TransactionHash, BlockNumber: i.BlockNumber, From: i.From, To: i.To}
}

// PageParams is the opaque cursor an upstream returns to fetch its next page. It must be passed back verbatim; nil
// means there are no more pages.
type PageParams map[string]interface{}

// Nft describes an NFT collection.
type Nft struct {
	Name            string `json:"name"`
	Symbol          string `json:"symbol"`
	ContractAddress string `json:"contractAddress"`
	Type            string `json:"type"`
	Holders         string `json:"holders"`
	TotalSupply     string `json:"totalSupply"`
	Logo            string `json:"logo"`
}

// NftInstance is one token of an NFT collection.
type NftInstance struct {
	ID             string                 `json:"id"`
	Owner          string                 `json:"owner"`
	ImageURL       string                 `json:"imageUrl"`
	AnimationURL   string                 `json:"animationUrl"`
	ExternalAppURL string                 `json:"externalAppUrl"`
	IsUnique       bool                   `json:"isUnique"`
	Metadata       map[string]interface{} `json:"metadata"`
	Token          Nft                    `json:"token"`
}

// NftInstancePage is one page of NFT instances.
type NftInstancePage struct {
	Items          []NftInstance `json:"items"`
	NextPageParams PageParams    `json:"next_page_params"`
}

// TokenHolder is one holder of a token.
type TokenHolder struct {
	Address string `json:"address"`
	Value   string `json:"value"`
	TokenID string `json:"tokenId,omitempty"`
}

// TokenHolderPage is one page of token holders.
type TokenHolderPage struct {
	Items          []TokenHolder `json:"items"`
	NextPageParams PageParams    `json:"next_page_params"`
}

// EventLog is a raw log entry returned by a getLogs query.
type EventLog struct {
	Address         string   `json:"address"`
	BlockNumber     string   `json:"blockNumber"`
	Data            string   `json:"data"`
	GasPrice        string   `json:"gasPrice"`
	GasUsed         string   `json:"gasUsed"`
	LogIndex        string   `json:"logIndex"`
	TimeStamp       string   `json:"timeStamp"`
	Topics          []string `json:"topics"`
	TransactionHash string   `json:"transactionHash"`
	TxIndex         string   `json:"transactionIndex"`
}

// LogQuery selects the logs emitted by an address. FromBlock is optional, when empty the block of the first
// transaction of the address is used.
type LogQuery struct {
	Address    string
	Topic0     string
	Topic1     string
	Topic01Opr string
	FromBlock  string
	ToBlock    string
}

// Error codes.
var (
	ErrEmptyAddress   = errors.New("address is empty")
	ErrNoDataSource   = errors.New("no data source available for chain")
	ErrNoNodeProvider = errors.New("no node provider available for chain")
	ErrUpstream       = errors.New("upstream request failed")
	ErrNoTrx          = errors.New("transaction not found")
	ErrBadBalance     = errors.New("upstream returned a malformed balance")
)
