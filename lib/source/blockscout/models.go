package blockscout

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tarancss/addrprof/lib/block/types"
)

// IPFSGateway serves the NFT media hosted on IPFS.
const IPFSGateway = "https://gateway.pinata.cloud/ipfs"

var gatewayHost = regexp.MustCompile(`^https?://[^/]+`)

// changeURLGateway rewrites NFT media urls to the dedicated IPFS gateway.
func changeURLGateway(u string) string {
	switch {
	case u == "":
		return ""
	case strings.HasPrefix(u, "ipfs://"):
		return IPFSGateway + "/" + strings.TrimPrefix(u, "ipfs://")
	case strings.Contains(u, "/ipfs/"):
		return gatewayHost.ReplaceAllString(u, IPFSGateway)
	default:
		return u
	}
}

type account struct {
	Hash string `json:"hash"`
}

func (a *account) hash() string {
	if a == nil {
		return ""
	}

	return a.Hash
}

type token struct {
	Address     string  `json:"address"`
	Decimals    *string `json:"decimals"`
	Name        *string `json:"name"`
	Symbol      *string `json:"symbol"`
	IconURL     *string `json:"icon_url"`
	Type        string  `json:"type"`
	Holders     *string `json:"holders"`
	TotalSupply *string `json:"total_supply"`
}

func str(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

func (t token) token() types.Token {
	dec, _ := strconv.Atoi(str(t.Decimals))

	return types.Token{
		Name:            str(t.Name),
		Logo:            str(t.IconURL),
		Symbol:          str(t.Symbol),
		ContractAddress: t.Address,
		Decimals:        dec,
	}
}

func (t token) nft() types.Nft {
	return types.Nft{
		Name:            str(t.Name),
		Symbol:          str(t.Symbol),
		ContractAddress: t.Address,
		Type:            t.Type,
		Holders:         str(t.Holders),
		TotalSupply:     str(t.TotalSupply),
		Logo:            str(t.IconURL),
	}
}

type tokensResponse struct {
	Items          []token          `json:"items"`
	NextPageParams types.PageParams `json:"next_page_params"`
}

type tokenBalance struct {
	Token   token   `json:"token"`
	TokenID *string `json:"token_id"`
	Value   string  `json:"value"`
}

type addressResponse struct {
	Hash        string  `json:"hash"`
	CoinBalance *string `json:"coin_balance"`
}

// tokenTransfer is an entry of the tokentx action.
type tokenTransfer struct {
	Value           string `json:"value"`
	BlockHash       string `json:"blockHash"`
	BlockNumber     string `json:"blockNumber"`
	ContractAddress string `json:"contractAddress"`
	From            string `json:"from"`
	To              string `json:"to"`
	Hash            string `json:"hash"`
	LogIndex        string `json:"logIndex"`
	TimeStamp       string `json:"timeStamp"`
	TokenSymbol     string `json:"tokenSymbol"`
}

func (t tokenTransfer) event() types.Event {
	return types.Event{
		BlockNumber:     atou(t.BlockNumber),
		Event:           "Transfer",
		Timestamp:       atoi(t.TimeStamp),
		Topics:          []string{},
		Args:            []string{t.From, t.To, t.Value},
		TransactionHash: t.Hash,
		TxStatus:        "0x1",
		From:            t.From,
		To:              t.To,
		ContractAddress: t.ContractAddress,
		Value:           t.Value,
	}
}

type transaction struct {
	Hash            string   `json:"hash"`
	Block           uint64   `json:"block"`
	BlockNumber     uint64   `json:"block_number"`
	Timestamp       string   `json:"timestamp"`
	From            *account `json:"from"`
	To              *account `json:"to"`
	CreatedContract *account `json:"created_contract"`
	Value           string   `json:"value"`
	GasLimit        string   `json:"gas_limit"`
	GasPrice        string   `json:"gas_price"`
	GasUsed         string   `json:"gas_used"`
	Nonce           uint64   `json:"nonce"`
	RawInput        string   `json:"raw_input"`
	Status          *string  `json:"status"`
}

func (t transaction) transaction() types.Transaction {
	block := t.Block
	if block == 0 {
		block = t.BlockNumber
	}

	to := t.To.hash()
	if to == "" {
		to = t.CreatedContract.hash()
	}

	return types.Transaction{
		Hash:        t.Hash,
		BlockNumber: block,
		From:        t.From.hash(),
		To:          to,
		Value:       t.Value,
		Gas:         t.GasLimit,
		GasPrice:    t.GasPrice,
		GasUsed:     t.GasUsed,
		Nonce:       t.Nonce,
		Input:       t.RawInput,
		Timestamp:   unix(t.Timestamp),
		Status:      str(t.Status),
	}
}

// unix converts an RFC3339 timestamp to unix seconds, 0 if it cannot be parsed.
func unix(s string) int64 {
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0
	}

	return ts.Unix()
}

type transactionsResponse struct {
	Items          []transaction    `json:"items"`
	NextPageParams types.PageParams `json:"next_page_params"`
}

type internalTransaction struct {
	Block           uint64   `json:"block"`
	BlockNumber     uint64   `json:"block_number"`
	TransactionHash string   `json:"transaction_hash"`
	From            *account `json:"from"`
	To              *account `json:"to"`
	Value           string   `json:"value"`
	Type            string   `json:"type"`
	Index           int      `json:"index"`
	Success         bool     `json:"success"`
	Timestamp       string   `json:"timestamp"`
}

func (i internalTransaction) internal() types.InternalTransaction {
	block := i.Block
	if block == 0 {
		block = i.BlockNumber
	}

	return types.InternalTransaction{
		BlockNumber:     block,
		TransactionHash: i.TransactionHash,
		From:            i.From.hash(),
		To:              i.To.hash(),
		Value:           i.Value,
		Type:            i.Type,
		Index:           i.Index,
		Success:         i.Success,
		Timestamp:       i.Timestamp,
	}
}

type internalTransactionsResponse struct {
	Items          []internalTransaction `json:"items"`
	NextPageParams types.PageParams      `json:"next_page_params"`
}

type instance struct {
	ID             string                 `json:"id"`
	IsUnique       bool                   `json:"is_unique"`
	ImageURL       *string                `json:"image_url"`
	AnimationURL   *string                `json:"animation_url"`
	ExternalAppURL *string                `json:"external_app_url"`
	Metadata       map[string]interface{} `json:"metadata"`
	Owner          *account               `json:"owner"`
	Token          token                  `json:"token"`
}

func (i instance) instance() types.NftInstance {
	return types.NftInstance{
		ID:             i.ID,
		Owner:          i.Owner.hash(),
		ImageURL:       changeURLGateway(str(i.ImageURL)),
		AnimationURL:   changeURLGateway(str(i.AnimationURL)),
		ExternalAppURL: str(i.ExternalAppURL),
		IsUnique:       i.IsUnique,
		Metadata:       i.Metadata,
		Token:          i.Token.nft(),
	}
}

type instancesResponse struct {
	Items          []instance       `json:"items"`
	NextPageParams types.PageParams `json:"next_page_params"`
}

type holder struct {
	Address account `json:"address"`
	Value   string  `json:"value"`
	TokenID string  `json:"token_id"`
}

type holdersResponse struct {
	Items          []holder         `json:"items"`
	NextPageParams types.PageParams `json:"next_page_params"`
}

// moduleResponse is the envelope of the etherscan-like API.
type moduleResponse[T any] struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Result  []T    `json:"result"`
}

type txListItem struct {
	BlockNumber string `json:"blockNumber"`
	Hash        string `json:"hash"`
}
