package domain

import (
	"encoding/json"

	"fx-blockstream/internal/core/merge"

	"github.com/shopspring/decimal"
)

// Wallet holds a customer's balance in one currency.
// Customer is a snapshot taken at write time; nothing keeps it in sync with
// the customer collection.
type Wallet struct {
	ID           string           `json:"id"`
	Version      int64            `json:"version,omitempty"`
	CurrencyCode *string          `json:"currencyCode"`
	Amount       *decimal.Decimal `json:"amount"`
	Customer     *Customer        `json:"customer"`
}

type walletDocument struct {
	CurrencyCode *string           `json:"currency_code,omitempty"`
	Amount       *decimal.Decimal  `json:"amount,omitempty"`
	Customer     *customerSnapshot `json:"customer,omitempty"`
}

// WalletSchema describes the wallet collection. The embedded customer is
// only replaced by a full update.
var WalletSchema = Schema[*Wallet]{
	Name:       "wallet",
	Collection: "wallet",
	Path:       "wallets",
	New:        func() *Wallet { return &Wallet{} },
	Clone:      (*Wallet).Clone,
	MergeFields: merge.Fields[*Wallet]{
		merge.Ptr("currencyCode", func(w *Wallet) **string { return &w.CurrencyCode }),
		merge.Ptr("amount", func(w *Wallet) **decimal.Decimal { return &w.Amount }),
	},
}

func (w *Wallet) GetID() string {
	if w == nil {
		return ""
	}
	return w.ID
}

func (w *Wallet) SetID(id string) { w.ID = id }
func (w *Wallet) GetVersion() int64 { return w.Version }
func (w *Wallet) SetVersion(v int64) { w.Version = v }

// Clone returns a deep copy.
func (w *Wallet) Clone() *Wallet {
	out := *w
	out.CurrencyCode = clonePtr(w.CurrencyCode)
	out.Amount = clonePtr(w.Amount)
	if w.Customer != nil {
		out.Customer = w.Customer.Clone()
	}
	return &out
}

func (w *Wallet) MarshalDocument() ([]byte, error) {
	return json.Marshal(walletDocument{
		CurrencyCode: w.CurrencyCode,
		Amount:       w.Amount,
		Customer:     snapshotOf(w.Customer),
	})
}

func (w *Wallet) UnmarshalDocument(data []byte) error {
	var doc walletDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	w.CurrencyCode = doc.CurrencyCode
	w.Amount = doc.Amount
	w.Customer = doc.Customer.customer()
	return nil
}
