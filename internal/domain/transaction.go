package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrMalformedTransaction marks a ledger record that cannot be processed.
var ErrMalformedTransaction = errors.New("malformed transaction")

// TxType is the raw transaction type as recorded by exchanges and wallets.
type TxType string

const (
	TxBuy         TxType = "buy"
	TxSell        TxType = "sell"
	TxTransferIn  TxType = "transfer_in"
	TxTransferOut TxType = "transfer_out"
	TxReward      TxType = "reward"
	TxAirdrop     TxType = "airdrop"
	TxSwap        TxType = "swap"
)

// KnownTxTypes lists every raw type the classifier understands.
var KnownTxTypes = []TxType{TxBuy, TxSell, TxTransferIn, TxTransferOut, TxReward, TxAirdrop, TxSwap}

// Category is the cost-basis effect of a transaction.
type Category int

const (
	// CategoryAcquire adds a lot at the resolved unit price.
	CategoryAcquire Category = iota + 1
	// CategoryDispose realizes a gain or loss and depletes lots.
	CategoryDispose
	// CategoryDisposeNonTaxable depletes lots without realizing anything.
	CategoryDisposeNonTaxable
	// CategoryPassthrough covers swaps and unrecognized types.
	CategoryPassthrough
)

func (c Category) String() string {
	switch c {
	case CategoryAcquire:
		return "ACQUIRE"
	case CategoryDispose:
		return "DISPOSE"
	case CategoryDisposeNonTaxable:
		return "DISPOSE_NONTAXABLE"
	case CategoryPassthrough:
		return "PASSTHROUGH"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

var classification = map[TxType]Category{
	TxBuy:         CategoryAcquire,
	TxTransferIn:  CategoryAcquire,
	TxReward:      CategoryAcquire,
	TxAirdrop:     CategoryAcquire,
	TxSell:        CategoryDispose,
	TxTransferOut: CategoryDisposeNonTaxable,
	TxSwap:        CategoryPassthrough,
}

// typeLabels are the localized labels used in exported reports.
var typeLabels = map[TxType]string{
	TxBuy:         "매수",
	TxSell:        "매도",
	TxTransferIn:  "입금",
	TxTransferOut: "출금",
	TxReward:      "보상",
	TxAirdrop:     "에어드랍",
	TxSwap:        "스왑",
}

// NormalizeType lowercases and trims a raw type string.
func NormalizeType(raw string) TxType {
	return TxType(strings.ToLower(strings.TrimSpace(raw)))
}

// Classify maps a raw type string to its category, case-insensitively.
// Unknown strings fall back to CategoryPassthrough with known == false so callers
// can surface them instead of silently accepting them.
func Classify(raw string) (c Category, known bool) {
	c, known = classification[NormalizeType(raw)]
	if !known {
		return CategoryPassthrough, false
	}
	return c, true
}

// Label returns the localized report label, or the raw type when none exists.
func (t TxType) Label() string {
	if l, ok := typeLabels[NormalizeType(string(t))]; ok {
		return l
	}
	return string(t)
}

// CheckClassification verifies that every known raw type has a category and a label.
// It is run at startup so a newly added type cannot slip through unclassified.
func CheckClassification() error {
	var missing []string
	for _, t := range KnownTxTypes {
		if _, ok := classification[t]; !ok {
			missing = append(missing, string(t)+" (category)")
		}
		if _, ok := typeLabels[t]; !ok {
			missing = append(missing, string(t)+" (label)")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("incomplete transaction classification: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Transaction is an immutable ledger record.
type Transaction struct {
	ID                string           `json:"id"`
	Timestamp         time.Time        `json:"timestamp"`
	Type              TxType           `json:"type"`
	Asset             string           `json:"asset"`
	Amount            decimal.Decimal  `json:"amount"`
	PriceReporting    *decimal.Decimal `json:"priceReporting,omitempty"`
	PriceSecondary    *decimal.Decimal `json:"priceSecondary,omitempty"`
	SecondaryCurrency string           `json:"secondaryCurrency,omitempty"`
	Fee               decimal.Decimal  `json:"fee"`
	FeeAsset          string           `json:"feeAsset,omitempty"`
	ExchangeID        string           `json:"exchangeId,omitempty"`
	WalletAddress     string           `json:"walletAddress,omitempty"`
}

// Source identifies where the transaction happened: the exchange, else the wallet.
func (tx Transaction) Source() string {
	if tx.ExchangeID != "" {
		return tx.ExchangeID
	}
	return tx.WalletAddress
}

// AssetSymbol returns the upper-cased, trimmed asset symbol.
func (tx Transaction) AssetSymbol() string {
	return strings.ToUpper(strings.TrimSpace(tx.Asset))
}

// Validate reports why a record cannot be processed, wrapping ErrMalformedTransaction.
func (tx Transaction) Validate() error {
	switch {
	case tx.AssetSymbol() == "":
		return fmt.Errorf("%w: missing asset", ErrMalformedTransaction)
	case strings.TrimSpace(string(tx.Type)) == "":
		return fmt.Errorf("%w: missing type", ErrMalformedTransaction)
	case tx.Timestamp.IsZero():
		return fmt.Errorf("%w: missing timestamp", ErrMalformedTransaction)
	case !tx.Amount.IsPositive():
		return fmt.Errorf("%w: non-positive amount %s", ErrMalformedTransaction, tx.Amount)
	case tx.Fee.IsNegative():
		return fmt.Errorf("%w: negative fee %s", ErrMalformedTransaction, tx.Fee)
	case tx.PriceReporting != nil && tx.PriceReporting.IsNegative():
		return fmt.Errorf("%w: negative price %s", ErrMalformedTransaction, tx.PriceReporting)
	case tx.PriceSecondary != nil && tx.PriceSecondary.IsNegative():
		return fmt.Errorf("%w: negative secondary price %s", ErrMalformedTransaction, tx.PriceSecondary)
	}
	return nil
}
