package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fx-blockstream/config"
	"fx-blockstream/internal/adapter/http/handler"
	redisStore "fx-blockstream/internal/adapter/storage/redis"
	"fx-blockstream/internal/core/domain"
	"fx-blockstream/internal/service"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	router    http.Handler
	client    *goredis.Client
	customers *redisStore.Repository[*domain.Customer]
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Mode: "test", AppName: "fxBlockstreamApp", BodyLimit: 1 << 20},
		Store:  config.StoreConfig{Driver: config.DriverRedis, StreamBatch: 2},
		CORS:   config.CORSConfig{AllowedOrigins: []string{"*"}, MaxAge: time.Hour},
		RateLimit: config.RateLimitConfig{
			Enabled: true, Read: 1000, Write: 1000, Window: time.Minute,
		},
		Idempotency: config.IdempotencyConfig{TTL: time.Hour},
	}
}

func setupAPI(t *testing.T, cfg *config.Config) apiFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	log := zerolog.Nop()
	batch := cfg.Store.StreamBatch
	customers := redisStore.NewRepository(client, domain.CustomerSchema, batch)
	hasher := service.NewArgon2HashService(service.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1})

	router := handler.SetupRouter(handler.RouterDeps{
		Config: cfg,
		Services: handler.Services{
			Currency:   service.NewResourceService(domain.CurrencySchema, redisStore.NewRepository(client, domain.CurrencySchema, batch), log),
			Customer:   service.NewCustomerService(customers, hasher, log),
			SmartTrade: service.NewResourceService(domain.SmartTradeSchema, redisStore.NewRepository(client, domain.SmartTradeSchema, batch), log),
			Wallet:     service.NewResourceService(domain.WalletSchema, redisStore.NewRepository(client, domain.WalletSchema, batch), log),
		},
		Idempotency:    redisStore.NewIdempotencyCache(client),
		RateLimiter:    redisStore.NewRateLimitStore(client),
		AuditSvc:       service.NewAuditService(redisStore.NewAuditRepo(client, "audit", 1000), log),
		HealthCheckers: nil,
		Logger:         log,
	})
	return apiFixture{router: router, client: client, customers: customers}
}

func (f apiFixture) do(t *testing.T, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestAPI_CurrencyLifecycle(t *testing.T) {
	f := setupAPI(t, testConfig())

	// create USD
	w := f.do(t, http.MethodPost, "/api/currencies", `{"currencyName":"US Dollar","currencyCode":"USD"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[domain.Currency](t, w)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "/api/currencies/"+created.ID, w.Header().Get("Location"))

	// merge EUR; the name survives
	w = f.do(t, http.MethodPatch, "/api/currencies/"+created.ID,
		`{"id":"`+created.ID+`","currencyCode":"EUR"}`, "Content-Type", "application/merge-patch+json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	merged := decode[domain.Currency](t, w)
	assert.Equal(t, "US Dollar", *merged.CurrencyName)
	assert.Equal(t, "EUR", *merged.CurrencyCode)

	// read back
	w = f.do(t, http.MethodGet, "/api/currencies/"+created.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[domain.Currency](t, w)
	assert.Equal(t, "EUR", *got.CurrencyCode)
	assert.Equal(t, `"2"`, w.Header().Get("ETag"))

	// delete, then it is gone; a second delete is still 204
	w = f.do(t, http.MethodDelete, "/api/currencies/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodGet, "/api/currencies/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, w.Body.String())

	w = f.do(t, http.MethodDelete, "/api/currencies/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestAPI_IdentityRules(t *testing.T) {
	f := setupAPI(t, testConfig())

	w := f.do(t, http.MethodPost, "/api/currencies", `{"id":"preset","currencyCode":"USD"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "idexists", decode[map[string]any](t, w)["error_key"])

	w = f.do(t, http.MethodPost, "/api/currencies", `{"currencyCode":"USD"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[domain.Currency](t, w).ID

	w = f.do(t, http.MethodPut, "/api/currencies/"+id, `{"currencyCode":"EUR"}`)
	assert.Equal(t, "idnull", decode[map[string]any](t, w)["error_key"])

	w = f.do(t, http.MethodPut, "/api/currencies/"+id, `{"id":"other","currencyCode":"EUR"}`)
	assert.Equal(t, "idinvalid", decode[map[string]any](t, w)["error_key"])

	w = f.do(t, http.MethodPut, "/api/currencies/ghost", `{"id":"ghost","currencyCode":"EUR"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "idnotfound", decode[map[string]any](t, w)["error_key"])

	w = f.do(t, http.MethodPatch, "/api/currencies/ghost", `{"id":"ghost"}`)
	assert.Equal(t, "idnotfound", decode[map[string]any](t, w)["error_key"])

	// full replace drops attributes the body omits
	w = f.do(t, http.MethodPut, "/api/currencies/"+id, `{"id":"`+id+`","currencyName":"Euro"}`)
	require.Equal(t, http.StatusOK, w.Code)
	replaced := decode[domain.Currency](t, w)
	assert.Nil(t, replaced.CurrencyCode)
	assert.Equal(t, "Euro", *replaced.CurrencyName)
}

func TestAPI_CollectionMethodNotAllowed(t *testing.T) {
	f := setupAPI(t, testConfig())

	w := f.do(t, http.MethodPut, "/api/wallets", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestAPI_OptimisticConcurrency(t *testing.T) {
	f := setupAPI(t, testConfig())

	w := f.do(t, http.MethodPost, "/api/currencies", `{"currencyCode":"USD"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[domain.Currency](t, w).ID

	w = f.do(t, http.MethodPut, "/api/currencies/"+id, `{"id":"`+id+`","currencyCode":"GBP"}`, "If-Match", `"1"`)
	require.Equal(t, http.StatusOK, w.Code)

	// second writer still holds version 1
	w = f.do(t, http.MethodPatch, "/api/currencies/"+id, `{"id":"`+id+`","version":1,"currencyCode":"JPY"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "versionmismatch", decode[map[string]any](t, w)["error_key"])

	// no version: last write wins
	w = f.do(t, http.MethodPatch, "/api/currencies/"+id, `{"id":"`+id+`","currencyCode":"CHF"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "CHF", *decode[domain.Currency](t, w).CurrencyCode)
}

// TestAPI_ConcurrentConditionalWrites fires many writers holding the same
// version at one document; exactly one of them may win.
func TestAPI_ConcurrentConditionalWrites(t *testing.T) {
	f := setupAPI(t, testConfig())

	w := f.do(t, http.MethodPost, "/api/wallets", `{"currencyCode":"EUR","amount":"100"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[domain.Wallet](t, w).ID

	const writers = 20
	var ok, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body := fmt.Sprintf(`{"id":"%s","amount":"%d"}`, id, i)
			w := f.do(t, http.MethodPatch, "/api/wallets/"+id, body, "If-Match", `"1"`)
			switch w.Code {
			case http.StatusOK:
				ok.Add(1)
			case http.StatusConflict:
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(writers-1), conflicts.Load())

	w = f.do(t, http.MethodGet, "/api/wallets/"+id, "")
	assert.Equal(t, `"2"`, w.Header().Get("ETag"))
}

func TestAPI_ListAndStreamAgree(t *testing.T) {
	f := setupAPI(t, testConfig())

	for _, code := range []string{"USD", "EUR", "GBP", "JPY", "CHF"} {
		w := f.do(t, http.MethodPost, "/api/currencies", `{"currencyCode":"`+code+`"}`)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := f.do(t, http.MethodGet, "/api/currencies", "")
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode[[]domain.Currency](t, w)
	require.Len(t, listed, 5)

	w = f.do(t, http.MethodGet, "/api/currencies", "", "Accept", handler.MIMENDJSON)
	require.Equal(t, http.StatusOK, w.Code)
	var streamed []string
	for _, line := range strings.Split(strings.TrimSpace(w.Body.String()), "\n") {
		var c domain.Currency
		require.NoError(t, json.Unmarshal([]byte(line), &c))
		streamed = append(streamed, c.ID)
	}

	var ids []string
	for _, c := range listed {
		ids = append(ids, c.ID)
	}
	sort.Strings(ids)
	assert.Equal(t, ids, streamed)

	// paging
	w = f.do(t, http.MethodGet, "/api/currencies?page=2&size=2&sort=id,asc", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "5", w.Header().Get("X-Total-Count"))
	last := decode[[]domain.Currency](t, w)
	require.Len(t, last, 1)
	assert.Equal(t, ids[4], last[0].ID)
}

func TestAPI_CustomerPasswordIsWriteOnly(t *testing.T) {
	f := setupAPI(t, testConfig())

	w := f.do(t, http.MethodPost, "/api/customers", `{"customerLegalEntity":"ACME","customerPassword":"s3cret","customerHashCode":"h0"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "customerPassword")
	assert.NotContains(t, w.Body.String(), "s3cret")
	id := decode[domain.Customer](t, w).ID

	stored, ok, err := f.customers.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(*stored.CustomerPassword, "$argon2id$"))

	// a replace without password keeps the stored hash
	w = f.do(t, http.MethodPut, "/api/customers/"+id, `{"id":"`+id+`","customerLegalEntity":"ACME Ltd"}`)
	require.Equal(t, http.StatusOK, w.Code)
	after, _, err := f.customers.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, *stored.CustomerPassword, *after.CustomerPassword)
	assert.Equal(t, "ACME Ltd", *after.CustomerLegalEntity)
}

func TestAPI_WalletAndSmartTradeDecimals(t *testing.T) {
	f := setupAPI(t, testConfig())

	w := f.do(t, http.MethodPost, "/api/wallets",
		`{"currencyCode":"EUR","amount":1000.10,"customer":{"id":"u1","customerLegalEntity":"ACME","customerPassword":"x"}}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "customerPassword")
	assert.Contains(t, w.Body.String(), `"amount":1000.1`)
	wallet := decode[domain.Wallet](t, w)

	w = f.do(t, http.MethodGet, "/api/wallets/"+wallet.ID, "")
	got := decode[domain.Wallet](t, w)
	assert.True(t, decimal.RequireFromString("1000.1").Equal(*got.Amount))
	assert.Equal(t, "u1", got.Customer.ID)

	// merge cannot touch the embedded customer
	w = f.do(t, http.MethodPatch, "/api/wallets/"+wallet.ID, `{"id":"`+wallet.ID+`","amount":"5","customer":{"id":"u2"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	patched := decode[domain.Wallet](t, w)
	assert.Equal(t, "u1", patched.Customer.ID)
	assert.True(t, decimal.NewFromInt(5).Equal(*patched.Amount))

	w = f.do(t, http.MethodPost, "/api/smart-trades",
		`{"counterParty":"BANK-A","currencyBuy":"EUR","currencySell":"USD","rate":1.0842,"amount":"250000.00","contraAmount":"271050.00","valueDate":"2026-10-21","direction":"BUY"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	trade := decode[domain.SmartTrade](t, w)
	assert.Equal(t, "2026-10-21", trade.ValueDate.String())
	assert.True(t, decimal.RequireFromString("271050").Equal(*trade.ContraAmount))
	assert.Equal(t, "fxBlockstreamApp.smartTrade.created", w.Header().Get("X-fxBlockstreamApp-alert"))
}

func TestAPI_IdempotentCreate(t *testing.T) {
	f := setupAPI(t, testConfig())

	first := f.do(t, http.MethodPost, "/api/currencies", `{"currencyCode":"USD"}`, handler.HeaderIdempotencyKey, "order-1")
	require.Equal(t, http.StatusCreated, first.Code)
	second := f.do(t, http.MethodPost, "/api/currencies", `{"currencyCode":"USD"}`, handler.HeaderIdempotencyKey, "order-1")
	require.Equal(t, http.StatusCreated, second.Code)

	assert.Equal(t, first.Header().Get("Location"), second.Header().Get("Location"))
	assert.Equal(t, "true", second.Header().Get(handler.HeaderReplayed))

	w := f.do(t, http.MethodGet, "/api/currencies", "")
	assert.Len(t, decode[[]domain.Currency](t, w), 1)
}

func TestAPI_ConcurrentIdempotentCreates(t *testing.T) {
	f := setupAPI(t, testConfig())

	const clients = 20
	var mu sync.Mutex
	var inFlight int
	locations := map[string]int{}
	var wg sync.WaitGroup
	for range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := f.do(t, http.MethodPost, "/api/currencies", `{"currencyCode":"USD"}`, handler.HeaderIdempotencyKey, "order-2")
			mu.Lock()
			defer mu.Unlock()
			switch w.Code {
			case http.StatusCreated:
				locations[w.Header().Get("Location")]++
			case http.StatusConflict:
				inFlight++
			}
		}()
	}
	wg.Wait()

	assert.Len(t, locations, 1, "every successful response names the same entity")
	created := 0
	for _, n := range locations {
		created += n
	}
	assert.Equal(t, clients, created+inFlight)

	w := f.do(t, http.MethodGet, "/api/currencies", "")
	assert.Len(t, decode[[]domain.Currency](t, w), 1)
}

func TestAPI_WriteRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Write = 1
	f := setupAPI(t, cfg)

	w := f.do(t, http.MethodPost, "/api/currencies", `{"currencyCode":"USD"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	w = f.do(t, http.MethodPost, "/api/currencies", `{"currencyCode":"EUR"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// reads have their own budget
	w = f.do(t, http.MethodGet, "/api/currencies", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPI_WritesAreAudited(t *testing.T) {
	f := setupAPI(t, testConfig())

	w := f.do(t, http.MethodPost, "/api/currencies", `{"currencyCode":"USD"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	f.do(t, http.MethodGet, "/api/currencies", "")

	assert.Eventually(t, func() bool {
		n, err := f.client.XLen(context.Background(), "audit").Result()
		return err == nil && n == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestAPI_CORSPreflight(t *testing.T) {
	f := setupAPI(t, testConfig())

	req := httptest.NewRequest(http.MethodOptions, "/api/currencies", nil)
	req.Header.Set("Origin", "https://ui.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
