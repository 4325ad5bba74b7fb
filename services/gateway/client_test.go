package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"nextt-backend/pkg/errutil"
)

const testSecret = "JBSWY3DPEHPK3PXP"

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:     baseURL,
		APIKey:      "test-api-key",
		Email:       "payments@example.com",
		Password:    "secret",
		TwoFASecret: testSecret,
		FrontendURL: "https://app.example.com",
		BackendURL:  "https://api.example.com",
		Timeout:     5 * time.Second,
	}
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	c, err := New(testConfig(baseURL))
	require.NoError(t, err)
	return c
}

func errStatus(t *testing.T, err error) errutil.CoreStatus {
	t.Helper()

	var be errutil.BaseError
	require.True(t, errors.As(err, &be), "expected BaseError, got %v", err)
	return be.Code
}

func TestNewRequiresCredentials(t *testing.T) {
	cfg := testConfig("http://localhost")
	cfg.APIKey = ""

	_, err := New(cfg)
	require.Error(t, err)

	cfg = testConfig("http://localhost")
	cfg.TwoFASecret = ""

	_, err = New(cfg)
	require.Error(t, err)
}

func TestTokenCachedUntilExpiry(t *testing.T) {
	var authCalls int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth" {
			atomic.AddInt64(&authCalls, 1)
			json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	now := time.Now()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Ping(context.Background()))
	require.NoError(t, c.Ping(context.Background()))
	require.EqualValues(t, 1, atomic.LoadInt64(&authCalls))

	// Advance past the 300s lifetime; the next call must re-authenticate.
	now = now.Add(301 * time.Second)
	require.NoError(t, c.Ping(context.Background()))
	require.EqualValues(t, 2, atomic.LoadInt64(&authCalls))
}

func TestTokenRefreshSingleFlight(t *testing.T) {
	var authCalls int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth" {
			atomic.AddInt64(&authCalls, 1)
			time.Sleep(50 * time.Millisecond)
			json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, c.Ping(context.Background()))
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt64(&authCalls))
}

func TestAuthRejectedCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	err := c.Ping(context.Background())
	require.Error(t, err)
	require.Equal(t, errutil.StatusGatewayAuth, errStatus(t, err))
}

func TestCreateInvoice(t *testing.T) {
	var captured invoiceRequest
	var idempotencyKey string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/invoice", r.URL.Path)
		require.Equal(t, "test-api-key", r.Header.Get("x-api-key"))
		idempotencyKey = r.Header.Get("X-Idempotency-Key")

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		json.NewEncoder(w).Encode(map[string]string{
			"order_id":     captured.OrderID,
			"price_amount": "150",
			"invoice_url":  "https://gateway.example.com/invoice/abc",
			"created_at":   "2026-08-28T10:00:00Z",
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	inv, err := c.CreateInvoice(context.Background(), decimal.NewFromInt(150), "Deposit for user 42")
	require.NoError(t, err)
	require.Equal(t, "https://gateway.example.com/invoice/abc", inv.InvoiceURL)

	require.NotEmpty(t, idempotencyKey)
	require.Equal(t, "usd", captured.PriceCurrency)
	require.True(t, strings.HasPrefix(captured.OrderID, "NEXTT-"))
	require.Len(t, captured.OrderID, len("NEXTT-")+5)
	require.Equal(t, "https://api.example.com/api/payments/callback", captured.IPNCallbackURL)
	require.Equal(t, "https://app.example.com/payment/success", captured.SuccessURL)
	require.Equal(t, "https://app.example.com/payment/cancel", captured.CancelURL)
}

func TestCreateInvoiceGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	_, err := c.CreateInvoice(context.Background(), decimal.NewFromInt(10), "deposit")
	require.Error(t, err)
	require.Equal(t, errutil.StatusBadGateway, errStatus(t, err))
}

func TestCreateWithdrawal(t *testing.T) {
	var verifyCode string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/auth":
			json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})

		case r.URL.Path == "/payout":
			require.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			require.Equal(t, "test-api-key", r.Header.Get("x-api-key"))
			require.NotEmpty(t, r.Header.Get("X-Idempotency-Key"))

			var req payoutRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Len(t, req.Withdrawals, 1)
			require.Equal(t, "0xabc", req.Withdrawals[0].Address)

			json.NewEncoder(w).Encode(BatchWithdrawal{
				ID: "batch-7",
				Withdrawals: []BatchWithdrawalItem{{
					ID:                "w-1",
					Address:           "0xabc",
					BatchWithdrawalID: "batch-7",
					Status:            "WAITING",
				}},
			})

		case strings.HasSuffix(r.URL.Path, "/verify"):
			require.Equal(t, "/payout/batch-7/verify", r.URL.Path)

			var req verifyRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			verifyCode = req.VerificationCode
			w.WriteHeader(http.StatusOK)

		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	batch, err := c.CreateWithdrawal(context.Background(), WithdrawalRequest{
		Address:   "0xabc",
		Currency:  "usdttrc20",
		Amount:    decimal.NewFromInt(50),
		Reference: "tx-123",
	})
	require.NoError(t, err)
	require.Equal(t, "batch-7", batch.ID)

	ok := totp.Validate(verifyCode, testSecret)
	require.True(t, ok, "verification code must be a valid one-time code")
}

func TestCreateWithdrawalVerifyFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/auth":
			json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})
		case r.URL.Path == "/payout":
			json.NewEncoder(w).Encode(BatchWithdrawal{ID: "batch-9"})
		default:
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	_, err := c.CreateWithdrawal(context.Background(), WithdrawalRequest{
		Address:  "0xabc",
		Currency: "usdttrc20",
		Amount:   decimal.NewFromInt(50),
	})
	require.Error(t, err)
	require.Equal(t, errutil.StatusReconciliationRequired, errStatus(t, err))
}

func TestCreateWithdrawalTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth" {
			json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})
			return
		}
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond

	c, err := New(cfg)
	require.NoError(t, err)

	_, err = c.CreateWithdrawal(context.Background(), WithdrawalRequest{
		Address:  "0xabc",
		Currency: "usdttrc20",
		Amount:   decimal.NewFromInt(50),
	})
	require.Error(t, err)
	require.Equal(t, errutil.StatusReconciliationRequired, errStatus(t, err))
}

func TestCreateWithdrawalRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth" {
			json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})
			return
		}
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	_, err := c.CreateWithdrawal(context.Background(), WithdrawalRequest{
		Address:  "0xabc",
		Currency: "usdttrc20",
		Amount:   decimal.NewFromInt(50),
	})
	require.Error(t, err)
	require.Equal(t, errutil.StatusBadGateway, errStatus(t, err))
}
