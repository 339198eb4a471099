package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Xebarter/Tina-s-Bakery-sub000/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultPesapalBaseURL = "https://pay.pesapal.com/v3"
	defaultTokenLifetime  = 5 * time.Minute
	redacted              = "[REDACTED]"
)

// TokenState is where the client is in the access token lifecycle.
type TokenState int

const (
	TokenStateNone TokenState = iota
	TokenStateRequesting
	TokenStateValid
	TokenStateExpired
)

func (s TokenState) String() string {
	switch s {
	case TokenStateRequesting:
		return "requesting"
	case TokenStateValid:
		return "valid"
	case TokenStateExpired:
		return "expired"
	default:
		return "none"
	}
}

// PesapalConfig configures a PesapalClient.
type PesapalConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Timeout        time.Duration
	// ExpirySkew treats a token as expired this long before its real expiry.
	ExpirySkew time.Duration
}

// PesapalOption customises a PesapalClient.
type PesapalOption func(*PesapalClient)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) PesapalOption {
	return func(p *PesapalClient) { p.httpClient = c }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) PesapalOption {
	return func(p *PesapalClient) { p.now = now }
}

// PesapalClient implements PaymentGateway against the PesaPal v3 API.
type PesapalClient struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	signer         *Signer
	httpClient     *http.Client
	logger         *zap.Logger
	now            func() time.Time
	skew           time.Duration

	// refreshMu serialises token requests so concurrent callers share one.
	refreshMu sync.Mutex

	mu        sync.RWMutex
	state     TokenState
	token     string
	expiresAt time.Time
}

// NewPesapalClient creates a new PesapalClient.
func NewPesapalClient(cfg PesapalConfig, logger *zap.Logger, opts ...PesapalOption) *PesapalClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultPesapalBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &PesapalClient{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
		signer:         NewSigner(cfg.ConsumerKey, cfg.ConsumerSecret),
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		logger:         logger,
		now:            time.Now,
		skew:           cfg.ExpirySkew,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ---- PesaPal API request/response structs ----

type pesapalError struct {
	ErrorType string `json:"error_type"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

type pesapalTokenRequest struct {
	ConsumerKey    string `json:"consumer_key"`
	ConsumerSecret string `json:"consumer_secret"`
}

type pesapalTokenResponse struct {
	Token      string        `json:"token"`
	ExpiryDate string        `json:"expiryDate"`
	Error      *pesapalError `json:"error"`
	Message    string        `json:"message"`
}

type pesapalBillingAddress struct {
	EmailAddress string `json:"email_address,omitempty"`
	PhoneNumber  string `json:"phone_number,omitempty"`
	CountryCode  string `json:"country_code,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	MiddleName   string `json:"middle_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Line1        string `json:"line_1,omitempty"`
	City         string `json:"city,omitempty"`
}

type pesapalSubmitOrderRequest struct {
	ID             string                `json:"id"`
	Currency       string                `json:"currency"`
	Amount         json.Number           `json:"amount"`
	Description    string                `json:"description"`
	CallbackURL    string                `json:"callback_url"`
	NotificationID string                `json:"notification_id"`
	BillingAddress pesapalBillingAddress `json:"billing_address"`
}

type pesapalSubmitOrderResponse struct {
	OrderTrackingID   string        `json:"order_tracking_id"`
	MerchantReference string        `json:"merchant_reference"`
	RedirectURL       string        `json:"redirect_url"`
	Error             *pesapalError `json:"error"`
}

type pesapalTransactionStatus struct {
	PaymentMethod            string          `json:"payment_method"`
	Amount                   decimal.Decimal `json:"amount"`
	CreatedDate              string          `json:"created_date"`
	ConfirmationCode         string          `json:"confirmation_code"`
	PaymentStatusDescription string          `json:"payment_status_description"`
	Description              string          `json:"description"`
	Message                  string          `json:"message"`
	PaymentAccount           string          `json:"payment_account"`
	StatusCode               int             `json:"status_code"`
	MerchantReference        string          `json:"merchant_reference"`
	Currency                 string          `json:"currency"`
	Error                    *pesapalError   `json:"error"`
}

type pesapalRegisterIPNRequest struct {
	URL                 string `json:"url"`
	IPNNotificationType string `json:"ipn_notification_type"`
}

type pesapalRegisterIPNResponse struct {
	IPNID string        `json:"ipn_id"`
	URL   string        `json:"url"`
	Error *pesapalError `json:"error"`
}

// ---- PaymentGateway implementation ----

// SubmitOrder submits a payment order and returns the hosted checkout URL.
func (p *PesapalClient) SubmitOrder(ctx context.Context, req models.PaymentOrderRequest) (models.PaymentOrderResponse, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		return models.PaymentOrderResponse{}, err
	}

	body := pesapalSubmitOrderRequest{
		ID:             req.MerchantReference,
		Currency:       req.Currency,
		Amount:         json.Number(req.Amount.StringFixed(2)),
		Description:    req.Description,
		CallbackURL:    req.CallbackURL,
		NotificationID: req.NotificationID,
		BillingAddress: pesapalBillingAddress{
			EmailAddress: req.Billing.EmailAddress,
			PhoneNumber:  req.Billing.PhoneNumber,
			CountryCode:  req.Billing.CountryCode,
			FirstName:    req.Billing.FirstName,
			MiddleName:   req.Billing.MiddleName,
			LastName:     req.Billing.LastName,
			Line1:        req.Billing.Line1,
			City:         req.Billing.City,
		},
	}

	var resp pesapalSubmitOrderResponse
	status, err := p.doRequest(ctx, http.MethodPost, "/api/Transactions/SubmitOrderRequest", "Bearer "+token, body, &resp)
	if err != nil {
		return models.PaymentOrderResponse{}, err
	}
	if gwErr := asGatewayError(status, resp.Error); gwErr != nil {
		return models.PaymentOrderResponse{}, gwErr
	}
	if resp.OrderTrackingID == "" || resp.RedirectURL == "" {
		return models.PaymentOrderResponse{}, &GatewayError{HTTPStatus: status, Code: "incomplete_response", Message: "missing order_tracking_id or redirect_url"}
	}

	merchantRef := resp.MerchantReference
	if merchantRef == "" {
		merchantRef = req.MerchantReference
	}
	return models.PaymentOrderResponse{
		OrderTrackingID:   resp.OrderTrackingID,
		MerchantReference: merchantRef,
		RedirectURL:       resp.RedirectURL,
	}, nil
}

// GetTransactionStatus fetches the payment status for a tracking id.
func (p *PesapalClient) GetTransactionStatus(ctx context.Context, orderTrackingID string) (models.TransactionStatus, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		return models.TransactionStatus{}, err
	}

	path := "/api/Transactions/GetTransactionStatus?orderTrackingId=" + url.QueryEscape(orderTrackingID)

	var resp pesapalTransactionStatus
	status, err := p.doRequest(ctx, http.MethodGet, path, "Bearer "+token, nil, &resp)
	if err != nil {
		return models.TransactionStatus{}, err
	}
	if gwErr := asGatewayError(status, resp.Error); gwErr != nil {
		return models.TransactionStatus{}, gwErr
	}

	return models.TransactionStatus{
		Status:            normalizeStatus(resp.PaymentStatusDescription, resp.StatusCode),
		StatusCode:        resp.StatusCode,
		ConfirmationCode:  resp.ConfirmationCode,
		PaymentMethod:     resp.PaymentMethod,
		PaymentAccount:    resp.PaymentAccount,
		Amount:            resp.Amount,
		Currency:          resp.Currency,
		MerchantReference: resp.MerchantReference,
		Description:       resp.Description,
		Message:           resp.Message,
		CreatedDate:       resp.CreatedDate,
	}, nil
}

// RegisterIPN registers a notification URL and returns the id to send with orders.
func (p *PesapalClient) RegisterIPN(ctx context.Context, ipnURL string) (string, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		return "", err
	}

	var resp pesapalRegisterIPNResponse
	status, err := p.doRequest(ctx, http.MethodPost, "/api/URLSetup/RegisterIPN", "Bearer "+token,
		pesapalRegisterIPNRequest{URL: ipnURL, IPNNotificationType: "GET"}, &resp)
	if err != nil {
		return "", err
	}
	if gwErr := asGatewayError(status, resp.Error); gwErr != nil {
		return "", gwErr
	}
	if resp.IPNID == "" {
		return "", &GatewayError{HTTPStatus: status, Code: "incomplete_response", Message: "missing ipn_id"}
	}
	return resp.IPNID, nil
}

// TokenState reports the token lifecycle state at this instant.
func (p *PesapalClient) TokenState() TokenState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.state == TokenStateValid && !p.now().Before(p.expiresAt.Add(-p.skew)) {
		return TokenStateExpired
	}
	return p.state
}

// ---- token lifecycle ----

func (p *PesapalClient) accessToken(ctx context.Context) (string, error) {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	if token, ok := p.cachedToken(); ok {
		return token, nil
	}

	p.setState(TokenStateRequesting)
	token, expiresAt, err := p.requestToken(ctx)
	if err != nil {
		p.mu.Lock()
		p.state, p.token, p.expiresAt = TokenStateNone, "", time.Time{}
		p.mu.Unlock()
		return "", err
	}

	p.mu.Lock()
	p.state, p.token, p.expiresAt = TokenStateValid, token, expiresAt
	p.mu.Unlock()

	p.logger.Debug("Pesapal token acquired", zap.Time("expires_at", expiresAt))
	return token, nil
}

func (p *PesapalClient) cachedToken() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token == "" {
		return "", false
	}
	if p.now().Before(p.expiresAt.Add(-p.skew)) {
		return p.token, true
	}
	p.state = TokenStateExpired
	return "", false
}

func (p *PesapalClient) setState(s TokenState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *PesapalClient) requestToken(ctx context.Context) (string, time.Time, error) {
	const path = "/api/Auth/RequestToken"

	auth, err := p.signer.AuthorizationHeader(http.MethodPost, p.baseURL+path, strings.ReplaceAll(uuid.NewString(), "-", ""), p.now().Unix())
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token request: %w", err)
	}

	var resp pesapalTokenResponse
	status, err := p.doRequest(ctx, http.MethodPost, path, auth,
		pesapalTokenRequest{ConsumerKey: p.consumerKey, ConsumerSecret: p.consumerSecret}, &resp)
	if err != nil {
		return "", time.Time{}, err
	}
	if gwErr := asGatewayError(status, resp.Error); gwErr != nil {
		return "", time.Time{}, gwErr
	}
	if resp.Token == "" {
		msg := resp.Message
		if msg == "" {
			msg = "token missing from response"
		}
		return "", time.Time{}, &GatewayError{HTTPStatus: status, Code: "no_token", Message: msg}
	}

	return resp.Token, p.parseExpiry(resp.ExpiryDate), nil
}

func (p *PesapalClient) parseExpiry(s string) time.Time {
	if s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
		if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
			return t.UTC()
		}
		p.logger.Warn("Unparseable token expiry, using default lifetime", zap.String("expiry", s))
	}
	return p.now().Add(defaultTokenLifetime)
}

// ---- HTTP helper ----

// doRequest sends a JSON request and decodes the JSON reply into out. It returns
// the HTTP status so callers can attach it to gateway errors found in the body.
func (p *PesapalClient) doRequest(ctx context.Context, method, path, authorization string, body interface{}, out interface{}) (int, error) {
	var reqBody io.Reader
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		payload = b
		reqBody = bytes.NewReader(b)
	}

	endpoint := p.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", authorization)

	p.logger.Info("Pesapal request",
		zap.String("method", method),
		zap.String("url", endpoint),
		zap.String("body", redactBody(payload)),
	)

	start := p.now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Error("Pesapal request failed", zap.String("url", endpoint), zap.Error(err))
		return 0, &NetworkError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, &NetworkError{Op: "read response", Err: err}
	}

	p.logger.Info("Pesapal response",
		zap.String("url", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", p.now().Sub(start)),
		zap.String("body", redactBody(respBytes)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope struct {
			Error *pesapalError `json:"error"`
		}
		if json.Unmarshal(respBytes, &envelope) == nil {
			if gwErr := asGatewayError(resp.StatusCode, envelope.Error); gwErr != nil {
				return resp.StatusCode, gwErr
			}
		}
		return resp.StatusCode, &GatewayError{
			HTTPStatus: resp.StatusCode,
			Code:       "http_error",
			Message:    strings.TrimSpace(string(respBytes)),
		}
	}

	if out != nil {
		if err := json.Unmarshal(respBytes, out); err != nil {
			return resp.StatusCode, &GatewayError{HTTPStatus: resp.StatusCode, Code: "invalid_response", Message: err.Error()}
		}
	}
	return resp.StatusCode, nil
}

// ---- helpers ----

func asGatewayError(status int, e *pesapalError) *GatewayError {
	if e == nil || (e.Code == "" && e.Message == "") {
		return nil
	}
	return &GatewayError{HTTPStatus: status, Type: e.ErrorType, Code: e.Code, Message: e.Message}
}

// normalizeStatus maps the gateway reply to its upper-case status word.
func normalizeStatus(description string, code int) string {
	if s := strings.ToUpper(strings.TrimSpace(description)); s != "" {
		return s
	}
	switch code {
	case 1:
		return "COMPLETED"
	case 2:
		return "FAILED"
	case 3:
		return "REVERSED"
	default:
		return "PENDING"
	}
}

var sensitiveKeys = map[string]bool{
	"consumer_secret": true,
	"token":           true,
	"access_token":    true,
}

func redactBody(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return string(b)
	}
	for k := range m {
		if sensitiveKeys[strings.ToLower(k)] {
			m[k] = redacted
		}
	}
	out, err := json.Marshal(m)
	if err != nil {
		return redacted
	}
	return string(out)
}
