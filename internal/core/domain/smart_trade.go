package domain

import (
	"encoding/json"

	"fx-blockstream/internal/core/merge"

	"github.com/shopspring/decimal"
)

// SmartTrade is an FX trade between two currencies.
// Amount and ContraAmount are exact decimals; Rate is a float.
type SmartTrade struct {
	ID            string           `json:"id"`
	Version       int64            `json:"version,omitempty"`
	CounterParty  *string          `json:"counterParty"`
	CurrencyBuy   *string          `json:"currencyBuy"`
	CurrencySell  *string          `json:"currencySell"`
	Rate          *float64         `json:"rate"`
	Amount        *decimal.Decimal `json:"amount"`
	ContraAmount  *decimal.Decimal `json:"contraAmount"`
	ValueDate     *Date            `json:"valueDate"`
	TransactionID *string          `json:"transactionId"`
	Direction     *string          `json:"direction"`
}

type smartTradeDocument struct {
	CounterParty  *string          `json:"counter_party,omitempty"`
	CurrencyBuy   *string          `json:"currency_buy,omitempty"`
	CurrencySell  *string          `json:"currency_sell,omitempty"`
	Rate          *float64         `json:"rate,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	ContraAmount  *decimal.Decimal `json:"contra_amount,omitempty"`
	ValueDate     *Date            `json:"value_date,omitempty"`
	TransactionID *string          `json:"transaction_id,omitempty"`
	Direction     *string          `json:"direction,omitempty"`
}

// SmartTradeSchema describes the smart_trade collection.
var SmartTradeSchema = Schema[*SmartTrade]{
	Name:       "smartTrade",
	Collection: "smart_trade",
	Path:       "smart-trades",
	New:        func() *SmartTrade { return &SmartTrade{} },
	Clone:      (*SmartTrade).Clone,
	MergeFields: merge.Fields[*SmartTrade]{
		merge.Ptr("counterParty", func(t *SmartTrade) **string { return &t.CounterParty }),
		merge.Ptr("currencyBuy", func(t *SmartTrade) **string { return &t.CurrencyBuy }),
		merge.Ptr("currencySell", func(t *SmartTrade) **string { return &t.CurrencySell }),
		merge.Ptr("rate", func(t *SmartTrade) **float64 { return &t.Rate }),
		merge.Ptr("amount", func(t *SmartTrade) **decimal.Decimal { return &t.Amount }),
		merge.Ptr("contraAmount", func(t *SmartTrade) **decimal.Decimal { return &t.ContraAmount }),
		merge.Ptr("valueDate", func(t *SmartTrade) **Date { return &t.ValueDate }),
		merge.Ptr("transactionId", func(t *SmartTrade) **string { return &t.TransactionID }),
		merge.Ptr("direction", func(t *SmartTrade) **string { return &t.Direction }),
	},
}

func (t *SmartTrade) GetID() string {
	if t == nil {
		return ""
	}
	return t.ID
}

func (t *SmartTrade) SetID(id string) { t.ID = id }
func (t *SmartTrade) GetVersion() int64 { return t.Version }
func (t *SmartTrade) SetVersion(v int64) { t.Version = v }

// Clone returns a deep copy.
func (t *SmartTrade) Clone() *SmartTrade {
	out := *t
	out.CounterParty = clonePtr(t.CounterParty)
	out.CurrencyBuy = clonePtr(t.CurrencyBuy)
	out.CurrencySell = clonePtr(t.CurrencySell)
	out.Rate = clonePtr(t.Rate)
	out.Amount = clonePtr(t.Amount)
	out.ContraAmount = clonePtr(t.ContraAmount)
	out.ValueDate = clonePtr(t.ValueDate)
	out.TransactionID = clonePtr(t.TransactionID)
	out.Direction = clonePtr(t.Direction)
	return &out
}

func (t *SmartTrade) MarshalDocument() ([]byte, error) {
	return json.Marshal(smartTradeDocument{
		CounterParty:  t.CounterParty,
		CurrencyBuy:   t.CurrencyBuy,
		CurrencySell:  t.CurrencySell,
		Rate:          t.Rate,
		Amount:        t.Amount,
		ContraAmount:  t.ContraAmount,
		ValueDate:     t.ValueDate,
		TransactionID: t.TransactionID,
		Direction:     t.Direction,
	})
}

func (t *SmartTrade) UnmarshalDocument(data []byte) error {
	var doc smartTradeDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	t.CounterParty = doc.CounterParty
	t.CurrencyBuy = doc.CurrencyBuy
	t.CurrencySell = doc.CurrencySell
	t.Rate = doc.Rate
	t.Amount = doc.Amount
	t.ContraAmount = doc.ContraAmount
	t.ValueDate = doc.ValueDate
	t.TransactionID = doc.TransactionID
	t.Direction = doc.Direction
	return nil
}
