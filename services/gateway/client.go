package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"nextt-backend/pkg/errutil"
)

// tokenTTL is imposed by the payment processor: bearer tokens expire 300
// seconds after issuance.
const tokenTTL = 300 * time.Second

const orderIDPrefix = "NEXTT"

// Config carries everything the client needs to talk to the processor.
// Credentials are required; construction fails without them.
type Config struct {
	BaseURL     string
	APIKey      string
	Email       string
	Password    string
	TwoFASecret string
	FrontendURL string
	BackendURL  string
	Timeout     time.Duration
}

// Client is an explicitly constructed gateway client owning the cached
// bearer token. Concurrent callers observing an expired token trigger a
// single authentication via singleflight.
type Client struct {
	cfg  Config
	http *http.Client
	now  func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
	sf          singleflight.Group
}

func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" || cfg.Email == "" || cfg.Password == "" {
		return nil, fmt.Errorf("gateway credentials not configured")
	}
	if cfg.TwoFASecret == "" {
		return nil, fmt.Errorf("gateway 2FA secret not configured")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		now:  time.Now,
	}, nil
}

type authResponse struct {
	Token string `json:"token"`
}

type invoiceRequest struct {
	PriceAmount      decimal.Decimal `json:"price_amount"`
	PriceCurrency    string          `json:"price_currency"`
	OrderID          string          `json:"order_id"`
	OrderDescription string          `json:"order_description"`
	IPNCallbackURL   string          `json:"ipn_callback_url"`
	SuccessURL       string          `json:"success_url"`
	CancelURL        string          `json:"cancel_url"`
}

type invoiceResponse struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	PriceAmount string `json:"price_amount"`
	InvoiceURL  string `json:"invoice_url"`
	CreatedAt   string `json:"created_at"`
}

// Invoice is the subset of the processor's invoice response the ledger needs.
type Invoice struct {
	InvoiceURL  string
	OrderID     string
	PriceAmount string
	CreatedAt   string
}

// WithdrawalRequest describes a single withdrawal item.
type WithdrawalRequest struct {
	Address   string
	Currency  string
	Amount    decimal.Decimal
	Reference string
}

type withdrawalItem struct {
	Address        string          `json:"address"`
	Currency       string          `json:"currency"`
	Amount         decimal.Decimal `json:"amount"`
	ExtraID        string          `json:"extra_id,omitempty"`
	IPNCallbackURL string          `json:"ipn_callback_url"`
}

type payoutRequest struct {
	IPNCallbackURL string           `json:"ipn_callback_url"`
	Withdrawals    []withdrawalItem `json:"withdrawals"`
}

// BatchWithdrawal is the processor's batch response for a payout request.
type BatchWithdrawal struct {
	ID          string                `json:"id"`
	Withdrawals []BatchWithdrawalItem `json:"withdrawals"`
}

type BatchWithdrawalItem struct {
	ID                string `json:"id"`
	Address           string `json:"address"`
	Currency          string `json:"currency"`
	Amount            string `json:"amount"`
	BatchWithdrawalID string `json:"batch_withdrawal_id"`
	Status            string `json:"status"`
	Error             string `json:"error"`
}

type verifyRequest struct {
	VerificationCode string `json:"verification_code"`
}

// getValidToken returns the cached bearer token while it is still valid and
// re-authenticates otherwise. The refresh is singleflighted so a thundering
// herd of expired callers produces exactly one auth call.
func (c *Client) getValidToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && c.now().Before(c.tokenExpiry) {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	v, err, _ := c.sf.Do("auth", func() (interface{}, error) {
		c.mu.Lock()
		if c.token != "" && c.now().Before(c.tokenExpiry) {
			token := c.token
			c.mu.Unlock()
			return token, nil
		}
		c.mu.Unlock()
		return c.authenticate(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) authenticate(ctx context.Context) (string, error) {
	body := map[string]string{
		"email":    c.cfg.Email,
		"password": c.cfg.Password,
	}

	var resp authResponse
	status, err := c.doJSON(ctx, http.MethodPost, c.cfg.BaseURL+"/auth", nil, body, &resp)
	if err != nil {
		return "", errutil.GatewayAuth("failed to authenticate with payment gateway", err)
	}
	if status < 200 || status >= 300 || resp.Token == "" {
		return "", errutil.GatewayAuth("payment gateway rejected credentials", nil)
	}

	c.mu.Lock()
	c.token = resp.Token
	c.tokenExpiry = c.now().Add(tokenTTL)
	c.mu.Unlock()

	return resp.Token, nil
}

// CreateInvoice submits a gateway-hosted payment request. The generated order
// id is a fixed prefix plus a 5-digit random suffix; it is not globally
// unique, so callers must tolerate the rare collision by retrying.
func (c *Client) CreateInvoice(ctx context.Context, amount decimal.Decimal, description string) (*Invoice, error) {
	orderID := generateOrderID()

	req := invoiceRequest{
		PriceAmount:      amount,
		PriceCurrency:    "usd",
		OrderID:          orderID,
		OrderDescription: description,
		IPNCallbackURL:   c.cfg.BackendURL + "/api/payments/callback",
		SuccessURL:       c.cfg.FrontendURL + "/payment/success",
		CancelURL:        c.cfg.FrontendURL + "/payment/cancel",
	}

	headers := map[string]string{
		"x-api-key":         c.cfg.APIKey,
		"X-Idempotency-Key": uuid.NewString(),
	}

	var resp invoiceResponse
	status, err := c.doJSON(ctx, http.MethodPost, c.cfg.BaseURL+"/invoice", headers, req, &resp)
	if err != nil {
		return nil, errutil.BadGateway("failed to create payment invoice", err)
	}
	if status < 200 || status >= 300 {
		return nil, errutil.BadGateway(fmt.Sprintf("payment gateway returned status %d for invoice", status), nil)
	}

	return &Invoice{
		InvoiceURL:  resp.InvoiceURL,
		OrderID:     resp.OrderID,
		PriceAmount: resp.PriceAmount,
		CreatedAt:   resp.CreatedAt,
	}, nil
}

// CreateWithdrawal submits a single-item batch withdrawal and immediately
// verifies it with a time-based one-time code. Once the payout request has
// been accepted it cannot be un-submitted: verification failure and request
// timeout both surface as RECONCILIATION_REQUIRED rather than a plain
// failure, so an operator checks the gateway's record before deciding the
// true outcome. Retrying the creation call would double-spend.
func (c *Client) CreateWithdrawal(ctx context.Context, req WithdrawalRequest) (*BatchWithdrawal, error) {
	token, err := c.getValidToken(ctx)
	if err != nil {
		return nil, err
	}

	callbackURL := c.cfg.BackendURL + "/api/payments/withdrawal-callback"
	payload := payoutRequest{
		IPNCallbackURL: callbackURL,
		Withdrawals: []withdrawalItem{{
			Address:        req.Address,
			Currency:       req.Currency,
			Amount:         req.Amount,
			ExtraID:        req.Reference,
			IPNCallbackURL: callbackURL,
		}},
	}

	headers := map[string]string{
		"Authorization":     "Bearer " + token,
		"x-api-key":         c.cfg.APIKey,
		"X-Idempotency-Key": uuid.NewString(),
	}

	var resp BatchWithdrawal
	status, err := c.doJSON(ctx, http.MethodPost, c.cfg.BaseURL+"/payout", headers, payload, &resp)
	if err != nil {
		if isTimeout(err) {
			// The gateway may have accepted the payout; unknown outcome.
			return nil, errutil.ReconciliationRequired("withdrawal submission timed out with unknown outcome", err)
		}
		return nil, errutil.BadGateway("failed to create withdrawal", err)
	}
	if status < 200 || status >= 300 {
		return nil, errutil.BadGateway(fmt.Sprintf("payment gateway returned status %d for withdrawal", status), nil)
	}

	if err := c.verifyWithdrawal(ctx, resp.ID); err != nil {
		zap.L().Error("withdrawal created but verification failed",
			zap.String("batch_withdrawal_id", resp.ID),
			zap.Error(err),
		)
		return nil, errutil.ReconciliationRequired(
			fmt.Sprintf("withdrawal batch %s submitted but verification failed", resp.ID), err)
	}

	return &resp, nil
}

func (c *Client) verifyWithdrawal(ctx context.Context, batchID string) error {
	token, err := c.getValidToken(ctx)
	if err != nil {
		return err
	}

	code, err := totp.GenerateCode(c.cfg.TwoFASecret, c.now())
	if err != nil {
		return fmt.Errorf("generate 2fa code: %w", err)
	}

	headers := map[string]string{
		"Authorization": "Bearer " + token,
		"x-api-key":     c.cfg.APIKey,
	}

	status, err := c.doJSON(ctx, http.MethodPost,
		fmt.Sprintf("%s/payout/%s/verify", c.cfg.BaseURL, batchID),
		headers, verifyRequest{VerificationCode: code}, nil)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("verification returned status %d", status)
	}
	return nil
}

// Ping checks that the configured credentials can obtain a token.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.getValidToken(ctx)
	return err
}

func (c *Client) doJSON(ctx context.Context, method, url string, headers map[string]string, in, out interface{}) (int, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}

	return resp.StatusCode, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func generateOrderID() string {
	return fmt.Sprintf("%s-%d", orderIDPrefix, 10000+rand.Intn(90000))
}
