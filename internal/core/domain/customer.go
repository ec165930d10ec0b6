package domain

import (
	"encoding/json"

	"fx-blockstream/internal/core/merge"
)

// Customer is a customer record.
//
// CustomerPassword is write-only: it is accepted on input, stored hashed and
// never rendered back to clients.
type Customer struct {
	ID                  string  `json:"id"`
	Version             int64   `json:"version,omitempty"`
	CustomerLegalEntity *string `json:"customerLegalEntity"`
	CustomerPassword    *string `json:"customerPassword,omitempty"`
	CustomerHashCode    *string `json:"customerHashCode"`
}

type customerDocument struct {
	CustomerLegalEntity *string `json:"customer_legal_entity,omitempty"`
	CustomerPassword    *string `json:"customer_password,omitempty"`
	CustomerHashCode    *string `json:"customer_hash_code,omitempty"`
}

// CustomerSchema describes the customer collection.
var CustomerSchema = Schema[*Customer]{
	Name:       "customer",
	Collection: "customer",
	Path:       "customers",
	New:        func() *Customer { return &Customer{} },
	Clone:      (*Customer).Clone,
	MergeFields: merge.Fields[*Customer]{
		merge.Ptr("customerLegalEntity", func(c *Customer) **string { return &c.CustomerLegalEntity }),
		merge.Ptr("customerPassword", func(c *Customer) **string { return &c.CustomerPassword }),
		merge.Ptr("customerHashCode", func(c *Customer) **string { return &c.CustomerHashCode }),
	},
	WriteOnly: merge.Fields[*Customer]{
		merge.Ptr("customerPassword", func(c *Customer) **string { return &c.CustomerPassword }),
	},
}

func (c *Customer) GetID() string {
	if c == nil {
		return ""
	}
	return c.ID
}

func (c *Customer) SetID(id string) { c.ID = id }
func (c *Customer) GetVersion() int64 { return c.Version }
func (c *Customer) SetVersion(v int64) { c.Version = v }

// Clone returns a deep copy.
func (c *Customer) Clone() *Customer {
	out := *c
	out.CustomerLegalEntity = clonePtr(c.CustomerLegalEntity)
	out.CustomerPassword = clonePtr(c.CustomerPassword)
	out.CustomerHashCode = clonePtr(c.CustomerHashCode)
	return &out
}

// MarshalJSON renders the customer without its password.
func (c Customer) MarshalJSON() ([]byte, error) {
	type view Customer
	v := view(c)
	v.CustomerPassword = nil
	return json.Marshal(v)
}

func (c *Customer) MarshalDocument() ([]byte, error) {
	return json.Marshal(customerDocument{
		CustomerLegalEntity: c.CustomerLegalEntity,
		CustomerPassword:    c.CustomerPassword,
		CustomerHashCode:    c.CustomerHashCode,
	})
}

func (c *Customer) UnmarshalDocument(data []byte) error {
	var doc customerDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	c.CustomerLegalEntity = doc.CustomerLegalEntity
	c.CustomerPassword = doc.CustomerPassword
	c.CustomerHashCode = doc.CustomerHashCode
	return nil
}

// customerSnapshot is the customer sub-document embedded in other documents.
// It never carries the password.
type customerSnapshot struct {
	ID                  string  `json:"id,omitempty"`
	CustomerLegalEntity *string `json:"customer_legal_entity,omitempty"`
	CustomerHashCode    *string `json:"customer_hash_code,omitempty"`
}

func snapshotOf(c *Customer) *customerSnapshot {
	if c == nil {
		return nil
	}
	return &customerSnapshot{
		ID:                  c.ID,
		CustomerLegalEntity: c.CustomerLegalEntity,
		CustomerHashCode:    c.CustomerHashCode,
	}
}

func (s *customerSnapshot) customer() *Customer {
	if s == nil {
		return nil
	}
	return &Customer{
		ID:                  s.ID,
		CustomerLegalEntity: s.CustomerLegalEntity,
		CustomerHashCode:    s.CustomerHashCode,
	}
}
