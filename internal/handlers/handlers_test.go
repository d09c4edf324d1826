package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"guia_service/internal/clients"
	"guia_service/internal/ledger"
	"guia_service/internal/payments"
	"guia_service/internal/readings"
	"guia_service/internal/store"
	"guia_service/internal/utils"
)

var testJWTKey = []byte("test-key")

type fakeVerifier struct{}

func (fakeVerifier) VerifyIDToken(_ context.Context, idToken string) (*clients.VerifiedUser, error) {
	if idToken != "good-id-token" {
		return nil, errors.New("bad token")
	}
	return &clients.VerifiedUser{UID: "u1", Email: "u1@example.com", DisplayName: "Luz"}, nil
}

type fakeGenerator struct {
	response string
	err      error
}

func (f *fakeGenerator) Generate(context.Context, string) (string, error) {
	return f.response, f.err
}

type fakeProvider struct{}

func (fakeProvider) CreateCheckout(_ context.Context, req payments.CheckoutRequest) (*payments.Checkout, error) {
	return &payments.Checkout{URL: "https://pay.example/" + req.OrderID}, nil
}

type fakeWebhook struct {
	conf *payments.Confirmation
	err  error
}

func (f *fakeWebhook) ParseWebhook([]byte, string) (*payments.Confirmation, error) {
	return f.conf, f.err
}

type recordingDispatcher struct {
	got []payments.Confirmation
	err error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, c payments.Confirmation) error {
	d.got = append(d.got, c)
	return d.err
}

type testEnv struct {
	router *gin.Engine
	store  *store.MemoryStore
	gen    *fakeGenerator
	pix    *fakeWebhook
	pay    *payments.Service
}

func newTestEnv(t *testing.T, opts ...func(*Dependencies)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()

	s := store.NewMemoryStore()
	l := ledger.NewService(s, ledger.Rules{
		OnboardingBonus:    100,
		DailyBase:          10,
		DailyStreakStep:    5,
		DailyStreakMaxDays: 7,
		Location:           time.UTC,
	}, log)
	gen := &fakeGenerator{response: `{"summary":"ok"}`}
	r := readings.NewService(s, l, gen, log)
	p := payments.NewService(s, l, []payments.Package{{ID: "basico", Name: "Básico", Points: 100, PriceCents: 990}}, log)
	p.RegisterProvider(payments.MethodCard, fakeProvider{})
	pix := &fakeWebhook{}

	deps := Dependencies{
		JWTKey:         testJWTKey,
		TokenTTL:       time.Hour,
		AllowedOrigins: []string{"https://app.example"},
		Verifier:       fakeVerifier{},
		Store:          s,
		Ledger:         l,
		Readings:       r,
		Payments:       p,
		Dispatcher:     p,
		PixWebhook:     pix,
		Log:            log,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	router := NewRouter(deps)
	return &testEnv{router: router, store: s, gen: gen, pix: pix, pay: p}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func login(t *testing.T, e *testEnv) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/token", gin.H{"idToken": "good-id-token"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	return decode(t, w)["jwtToken"].(string)
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTokenExchange(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/token", gin.H{"idToken": "forged"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodPost, "/token", gin.H{}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	token := login(t, e)
	data, err := utils.GetDataFromToken(token, testJWTKey)
	require.NoError(t, err)
	assert.Equal(t, "u1", data.UID)

	u, err := e.store.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1@example.com", u.Email)
	assert.Equal(t, int64(0), u.Points)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodGet, "/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodGet, "/me", nil, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOnboardingAndDailyBonus(t *testing.T) {
	e := newTestEnv(t)
	token := login(t, e)

	w := e.do(t, http.MethodPost, "/me/onboarding", gin.H{"displayName": "Luz", "birthDate": "1990-07-15"}, token)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(100), body["points"])
	assert.Equal(t, "cancer", body["zodiacSign"])

	w = e.do(t, http.MethodPost, "/me/onboarding", gin.H{}, token)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.do(t, http.MethodPost, "/me/daily-bonus", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(110), decode(t, w)["balance"])

	w = e.do(t, http.MethodPost, "/me/daily-bonus", nil, token)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.do(t, http.MethodGet, "/me/transactions?limit=1", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["transactions"], 1)
}

func TestOnboardingRejectsBadBirthDate(t *testing.T) {
	e := newTestEnv(t)
	token := login(t, e)

	w := e.do(t, http.MethodPost, "/me/onboarding", gin.H{"birthDate": "15/07/1990"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReadings(t *testing.T) {
	e := newTestEnv(t)
	token := login(t, e)

	reading := gin.H{"tool": "dream", "input": gin.H{"description": "voava sobre o mar"}}
	w := e.do(t, http.MethodPost, "/readings", reading, token)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Contains(t, decode(t, w)["error"], "insufficient")

	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/me/onboarding", gin.H{}, token).Code)

	w = e.do(t, http.MethodPost, "/readings", reading, token)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(85), body["balance"])
	id := body["reading"].(map[string]interface{})["id"].(string)

	w = e.do(t, http.MethodGet, "/readings/"+id, nil, token)
	assert.Equal(t, http.StatusOK, w.Code)
	w = e.do(t, http.MethodGet, "/readings/missing", nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodPost, "/readings", gin.H{"tool": "runas"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	e.gen.err = errors.New("quota")
	w = e.do(t, http.MethodPost, "/readings", reading, token)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = e.do(t, http.MethodGet, "/me", nil, token)
	assert.Equal(t, float64(85), decode(t, w)["points"])

	w = e.do(t, http.MethodGet, "/readings", nil, token)
	assert.Len(t, decode(t, w)["readings"], 1)
}

func TestTools(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodGet, "/tools", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["tools"], 5)
}

func TestJournal(t *testing.T) {
	e := newTestEnv(t)
	token := login(t, e)

	w := e.do(t, http.MethodPost, "/journal", gin.H{}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/journal", gin.H{"title": "Lua cheia", "content": "Senti paz.", "tags": []string{"lua"}}, token)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["id"].(string)

	w = e.do(t, http.MethodPut, "/journal/"+id, gin.H{"title": "Lua cheia", "content": "Senti muita paz.", "mood": "calma"}, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "calma", decode(t, w)["mood"])

	w = e.do(t, http.MethodGet, "/journal", nil, token)
	assert.Len(t, decode(t, w)["entries"], 1)

	w = e.do(t, http.MethodDelete, "/journal/"+id, nil, token)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = e.do(t, http.MethodGet, "/journal/"+id, nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRituals(t *testing.T) {
	e := newTestEnv(t)
	token := login(t, e)

	w := e.do(t, http.MethodPost, "/rituals", gin.H{"name": " "}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/rituals", gin.H{"name": "Banho de ervas", "intention": "limpeza"}, token)
	require.Equal(t, http.StatusCreated, w.Code)

	w = e.do(t, http.MethodGet, "/rituals", nil, token)
	assert.Len(t, decode(t, w)["rituals"], 1)
}

func TestCheckoutAndPixWebhook(t *testing.T) {
	e := newTestEnv(t)
	token := login(t, e)

	w := e.do(t, http.MethodGet, "/payments/packages", nil, "")
	assert.Len(t, decode(t, w)["packages"], 1)

	w = e.do(t, http.MethodPost, "/payments/checkout", gin.H{"packageId": "nope"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = e.do(t, http.MethodPost, "/payments/checkout", gin.H{"packageId": "basico", "method": "pix"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/payments/checkout", gin.H{"packageId": "basico"}, token)
	require.Equal(t, http.StatusOK, w.Code)
	orderID := decode(t, w)["orderId"].(string)

	e.pix.err = payments.ErrInvalidSignature
	w = e.do(t, http.MethodPost, "/webhooks/pix", gin.H{}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	e.pix.err = nil
	e.pix.conf = &payments.Confirmation{OrderID: orderID, Provider: "pix", ExternalID: "tx-1", AmountCents: 990}
	for i := 0; i < 2; i++ {
		w = e.do(t, http.MethodPost, "/webhooks/pix", gin.H{}, "")
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w = e.do(t, http.MethodGet, "/me", nil, token)
	assert.Equal(t, float64(100), decode(t, w)["points"])

	e.pix.conf = &payments.Confirmation{OrderID: "ghost", AmountCents: 990}
	w = e.do(t, http.MethodPost, "/webhooks/pix", gin.H{}, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPost, "/webhooks/stripe", gin.H{}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORS(t *testing.T) {
	e := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/readings", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
	assert.Equal(t, http.StatusNotFound, statusFor(store.ErrNotFound))
	assert.Equal(t, http.StatusConflict, statusFor(ledger.ErrDailyBonusClaimed))
}

const stripeSecret = "whsec_test"

func signedStripeRequest(t *testing.T, payload []byte, secret string) *http.Request {
	t.Helper()
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil))))
	return req
}

func TestStripeWebhookDispatchesConfirmation(t *testing.T) {
	d := &recordingDispatcher{}
	e := newTestEnv(t, func(deps *Dependencies) {
		deps.StripeWebhook = clients.NewStripeClient(clients.StripeConfig{WebhookSecret: stripeSecret})
		deps.Dispatcher = d
	})

	payload, err := json.Marshal(gin.H{
		"id":     "evt_1",
		"object": "event",
		"type":   "checkout.session.completed",
		"data": gin.H{"object": gin.H{
			"id":                  "cs_1",
			"object":              "checkout.session",
			"client_reference_id": "order-1",
			"payment_status":      "paid",
			"amount_total":        990,
		}},
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, signedStripeRequest(t, payload, stripeSecret))
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, d.got, 1)
	assert.Equal(t, payments.Confirmation{
		OrderID:     "order-1",
		Provider:    "stripe",
		ExternalID:  "cs_1",
		AmountCents: 990,
	}, d.got[0])

	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, signedStripeRequest(t, payload, "whsec_other"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, d.got, 1)

	d.err = errors.New("broker unreachable")
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, signedStripeRequest(t, payload, stripeSecret))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	d.err = fmt.Errorf("order-1: %w", payments.ErrAmountMismatch)
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, signedStripeRequest(t, payload, stripeSecret))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhookRejectsOversizedBody(t *testing.T) {
	e := newTestEnv(t)
	e.pix.conf = &payments.Confirmation{OrderID: "order-1"}

	req := httptest.NewRequest(http.MethodPost, "/webhooks/pix", bytes.NewReader(bytes.Repeat([]byte("a"), maxWebhookBody+1)))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestJournalContentLimitCountsCharacters(t *testing.T) {
	e := newTestEnv(t)
	token := login(t, e)

	w := e.do(t, http.MethodPost, "/journal", gin.H{"title": "Sonho", "content": strings.Repeat("ç", maxJournalContent)}, token)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = e.do(t, http.MethodPost, "/journal", gin.H{"title": "Sonho", "content": strings.Repeat("ç", maxJournalContent+1)}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
