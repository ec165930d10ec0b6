package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestSameIdentity(t *testing.T) {
	tests := []struct {
		name string
		a, b *Currency
		want bool
	}{
		{"same id", &Currency{ID: "c1"}, &Currency{ID: "c1"}, true},
		{"different id", &Currency{ID: "c1"}, &Currency{ID: "c2"}, false},
		{"one unset", &Currency{}, &Currency{ID: "c1"}, false},
		{"both unset", &Currency{}, &Currency{}, false},
		{"same id different attributes", &Currency{ID: "c1", CurrencyCode: strPtr("USD")}, &Currency{ID: "c1", CurrencyCode: strPtr("EUR")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SameIdentity(tt.a, tt.b))
		})
	}
}

func TestSameIdentity_UnsetNeverEqualsItself(t *testing.T) {
	c := &Currency{}
	assert.False(t, SameIdentity(c, c))
}

func TestCurrency_DocumentUsesSnakeCase(t *testing.T) {
	c := &Currency{ID: "c1", Version: 3, CurrencyName: strPtr("US Dollar"), CurrencyCode: strPtr("USD")}

	data, err := c.MarshalDocument()
	require.NoError(t, err)
	assert.JSONEq(t, `{"currency_name":"US Dollar","currency_code":"USD"}`, string(data))

	var back Currency
	require.NoError(t, back.UnmarshalDocument(data))
	assert.Equal(t, "US Dollar", *back.CurrencyName)
	assert.Equal(t, "USD", *back.CurrencyCode)
	assert.Empty(t, back.ID)
}

func TestCustomer_PasswordNeverRendered(t *testing.T) {
	c := &Customer{ID: "u1", CustomerLegalEntity: strPtr("ACME"), CustomerPassword: strPtr("secret")}

	body, err := json.Marshal(c)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "customerPassword")
	assert.NotContains(t, string(body), "secret")
	assert.Equal(t, "secret", *c.CustomerPassword)

	var in Customer
	require.NoError(t, json.Unmarshal([]byte(`{"customerPassword":"pw"}`), &in))
	require.NotNil(t, in.CustomerPassword)
	assert.Equal(t, "pw", *in.CustomerPassword)
}

func TestSmartTrade_DecimalsRoundTripNumerically(t *testing.T) {
	in := `{"amount":"100.50","contraAmount":"1.2E+2","rate":1.0825,"valueDate":"2024-03-01"}`

	var trade SmartTrade
	require.NoError(t, json.Unmarshal([]byte(in), &trade))

	data, err := trade.MarshalDocument()
	require.NoError(t, err)

	var back SmartTrade
	require.NoError(t, back.UnmarshalDocument(data))
	assert.True(t, back.Amount.Equal(decimal.RequireFromString("100.5")))
	assert.True(t, back.ContraAmount.Equal(decimal.NewFromInt(120)))
	assert.InDelta(t, 1.0825, *back.Rate, 1e-12)
	assert.Equal(t, NewDate(2024, time.March, 1), *back.ValueDate)
}

func TestSmartTrade_AmountsRenderAsNumbers(t *testing.T) {
	trade := SmartTrade{
		ID:           "t1",
		Amount:       decPtr("250000.50"),
		ContraAmount: decPtr("271050"),
	}

	data, err := json.Marshal(trade)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"amount":250000.5`)
	assert.Contains(t, string(data), `"contraAmount":271050`)

	var back SmartTrade
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Amount.Equal(decimal.RequireFromString("250000.5")))
}

func TestWallet_CustomerSnapshotDropsPassword(t *testing.T) {
	w := &Wallet{
		CurrencyCode: strPtr("EUR"),
		Amount:       decPtr("10.00"),
		Customer:     &Customer{ID: "u1", CustomerLegalEntity: strPtr("ACME"), CustomerPassword: strPtr("hash")},
	}

	data, err := w.MarshalDocument()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "password")

	var back Wallet
	require.NoError(t, back.UnmarshalDocument(data))
	require.NotNil(t, back.Customer)
	assert.Equal(t, "u1", back.Customer.ID)
	assert.Equal(t, "ACME", *back.Customer.CustomerLegalEntity)
	assert.Nil(t, back.Customer.CustomerPassword)
	assert.True(t, back.Amount.Equal(decimal.NewFromInt(10)))
}

func TestWallet_CloneIsDeep(t *testing.T) {
	w := &Wallet{ID: "w1", Amount: decPtr("1"), Customer: &Customer{ID: "u1", CustomerHashCode: strPtr("h")}}
	c := w.Clone()

	*c.Customer.CustomerHashCode = "changed"
	*c.Amount = decimal.NewFromInt(2)

	assert.Equal(t, "h", *w.Customer.CustomerHashCode)
	assert.True(t, w.Amount.Equal(decimal.NewFromInt(1)))
}

func TestDate_JSON(t *testing.T) {
	d := NewDate(2024, time.February, 30)
	assert.Equal(t, "2024-03-01", d.String())

	body, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-01"`, string(body))

	var back Date
	require.NoError(t, json.Unmarshal([]byte(`"1999-12-31"`), &back))
	assert.Equal(t, Date{Year: 1999, Month: time.December, Day: 31}, back)

	assert.Error(t, json.Unmarshal([]byte(`"31/12/1999"`), &back))
	assert.Error(t, json.Unmarshal([]byte(`19991231`), &back))
}

func TestPageRequest(t *testing.T) {
	tests := []struct {
		name     string
		page     PageRequest
		total    int64
		paged    bool
		offset   int64
		lastPage int
	}{
		{"unbounded", PageRequest{}, 50, false, 0, 0},
		{"first page", PageRequest{Page: 0, Size: 20}, 50, true, 0, 2},
		{"third page", PageRequest{Page: 2, Size: 20}, 50, true, 40, 2},
		{"exact fit", PageRequest{Page: 1, Size: 25}, 50, true, 25, 1},
		{"empty", PageRequest{Size: 10}, 0, true, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.paged, tt.page.Paged())
			assert.Equal(t, tt.offset, tt.page.Offset())
			assert.Equal(t, tt.lastPage, tt.page.LastPage(tt.total))
		})
	}
}

func TestAuditActionForMethod(t *testing.T) {
	tests := []struct {
		method string
		want   AuditAction
		ok     bool
	}{
		{"POST", AuditActionCreate, true},
		{"PUT", AuditActionUpdate, true},
		{"PATCH", AuditActionPatch, true},
		{"DELETE", AuditActionDelete, true},
		{"GET", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			got, ok := AuditActionForMethod(tt.method)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildIdempotencyKey(t *testing.T) {
	assert.Equal(t, "currencies:abc-123", BuildIdempotencyKey("currencies", "abc-123"))
}
