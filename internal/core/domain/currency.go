package domain

import (
	"encoding/json"

	"fx-blockstream/internal/core/merge"
)

// Currency is a currency definition.
type Currency struct {
	ID           string  `json:"id"`
	Version      int64   `json:"version,omitempty"`
	CurrencyName *string `json:"currencyName"`
	CurrencyCode *string `json:"currencyCode"`
}

type currencyDocument struct {
	CurrencyName *string `json:"currency_name,omitempty"`
	CurrencyCode *string `json:"currency_code,omitempty"`
}

// CurrencySchema describes the currencies collection.
var CurrencySchema = Schema[*Currency]{
	Name:       "currencies",
	Collection: "currencies",
	Path:       "currencies",
	New:        func() *Currency { return &Currency{} },
	Clone:      (*Currency).Clone,
	MergeFields: merge.Fields[*Currency]{
		merge.Ptr("currencyName", func(c *Currency) **string { return &c.CurrencyName }),
		merge.Ptr("currencyCode", func(c *Currency) **string { return &c.CurrencyCode }),
	},
}

func (c *Currency) GetID() string {
	if c == nil {
		return ""
	}
	return c.ID
}

func (c *Currency) SetID(id string) { c.ID = id }
func (c *Currency) GetVersion() int64 { return c.Version }
func (c *Currency) SetVersion(v int64) { c.Version = v }

// Clone returns a deep copy.
func (c *Currency) Clone() *Currency {
	out := *c
	out.CurrencyName = clonePtr(c.CurrencyName)
	out.CurrencyCode = clonePtr(c.CurrencyCode)
	return &out
}

func (c *Currency) MarshalDocument() ([]byte, error) {
	return json.Marshal(currencyDocument{
		CurrencyName: c.CurrencyName,
		CurrencyCode: c.CurrencyCode,
	})
}

func (c *Currency) UnmarshalDocument(data []byte) error {
	var doc currencyDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	c.CurrencyName = doc.CurrencyName
	c.CurrencyCode = doc.CurrencyCode
	return nil
}
