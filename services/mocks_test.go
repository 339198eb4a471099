package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Xebarter/Tina-s-Bakery-sub000/models"
	"github.com/Xebarter/Tina-s-Bakery-sub000/services"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ---- mock customer repository ----

type memCustomerRepo struct {
	mu             sync.Mutex
	byID           map[uuid.UUID]*models.Customer
	createCalls    int
	incrementCalls int
	createErr      error
	findErr        error
	// raceWinner is inserted by Create, which then fails the way a unique
	// index does when another checkout got there first.
	raceWinner *models.Customer
}

func newMemCustomerRepo() *memCustomerRepo {
	return &memCustomerRepo{byID: map[uuid.UUID]*models.Customer{}}
}

func (m *memCustomerRepo) Create(_ context.Context, c *models.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.raceWinner != nil {
		m.byID[m.raceWinner.ID] = m.raceWinner
		m.raceWinner = nil
		return gorm.ErrDuplicatedKey
	}
	if m.createErr != nil {
		return m.createErr
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	cp := *c
	m.byID[c.ID] = &cp
	return nil
}

func (m *memCustomerRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	c, ok := m.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCustomerRepo) FindByPhone(_ context.Context, phone string) (*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, c := range m.byID {
		if c.Phone == phone {
			cp := *c
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memCustomerRepo) IncrementTotals(_ context.Context, id uuid.UUID, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incrementCalls++
	c, ok := m.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.TotalOrders++
	c.TotalSpent = c.TotalSpent.Add(amount)
	return nil
}

// ---- mock order repository ----

type memOrderRepo struct {
	mu          sync.Mutex
	byID        map[uuid.UUID]*models.Order
	createCalls int
	updateCalls int
	createErr   error
	updateErr   error
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{byID: map[uuid.UUID]*models.Order{}}
}

func (m *memOrderRepo) Create(_ context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.byID {
		if existing.MerchantReference == o.MerchantReference {
			return gorm.ErrDuplicatedKey
		}
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
	}
	m.byID[o.ID] = copyOrder(o)
	return nil
}

func (m *memOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return copyOrder(o), nil
}

func (m *memOrderRepo) FindByMerchantReference(_ context.Context, ref string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.byID {
		if o.MerchantReference == ref {
			return copyOrder(o), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memOrderRepo) Update(_ context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if m.updateErr != nil {
		return m.updateErr
	}
	m.byID[o.ID] = copyOrder(o)
	return nil
}

func (m *memOrderRepo) ConfirmPayment(_ context.Context, o *models.Order) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if m.updateErr != nil {
		return false, m.updateErr
	}
	current, ok := m.byID[o.ID]
	if !ok || current.PaymentStatus == models.PaymentStatusCompleted {
		return false, nil
	}
	updated := copyOrder(current)
	updated.Status = o.Status
	updated.PaymentStatus = o.PaymentStatus
	updated.PaymentMethod = o.PaymentMethod
	updated.PaymentReference = o.PaymentReference
	updated.OrderTrackingID = o.OrderTrackingID
	m.byID[o.ID] = updated
	return true, nil
}

func (m *memOrderRepo) only() *models.Order {
	for _, o := range m.byID {
		return o
	}
	return nil
}

func copyOrder(o *models.Order) *models.Order {
	cp := *o
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	return &cp
}

// ---- mock product repository ----

type memProductRepo struct {
	products map[uuid.UUID]*models.Product
	err      error
}

func (m *memProductRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

// ---- mock cart repository ----

type memCartRepo struct {
	mu        sync.Mutex
	carts     map[string]*models.Cart
	saveCalls int
	getErr    error
}

func newMemCartRepo() *memCartRepo {
	return &memCartRepo{carts: map[string]*models.Cart{}}
}

func (m *memCartRepo) GetCart(_ context.Context, sessionID string) (*models.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, ok := m.carts[sessionID]
	if !ok {
		return nil, nil
	}
	cp := *c
	cp.Lines = append([]models.CartLine(nil), c.Lines...)
	return &cp, nil
}

func (m *memCartRepo) SaveCart(_ context.Context, c *models.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++
	m.carts[c.SessionID] = c
	return nil
}

func (m *memCartRepo) DeleteCart(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, sessionID)
	return nil
}

// ---- mock pending payment repository ----

type memPendingRepo struct {
	mu        sync.Mutex
	records   map[string]*models.PendingPayment
	saveErr   error
	getErr    error
	saveCalls int
}

func newMemPendingRepo() *memPendingRepo {
	return &memPendingRepo{records: map[string]*models.PendingPayment{}}
}

func (m *memPendingRepo) Get(_ context.Context, sessionID string) (*models.PendingPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.records[sessionID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memPendingRepo) Save(_ context.Context, p *models.PendingPayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++
	if m.saveErr != nil {
		return m.saveErr
	}
	cp := *p
	m.records[p.SessionID] = &cp
	return nil
}

func (m *memPendingRepo) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, sessionID)
	return nil
}

// ---- mock gateway ----

type fakeGateway struct {
	mu          sync.Mutex
	submitErr   error
	submitCalls int
	lastRequest models.PaymentOrderRequest

	// statuses are returned in order; the last one repeats.
	statuses    []models.TransactionStatus
	statusErr   error
	statusCalls int
	// beforeStatus, when set, runs at the start of every status call outside the lock.
	beforeStatus func()
}

func (g *fakeGateway) SubmitOrder(_ context.Context, req models.PaymentOrderRequest) (models.PaymentOrderResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submitCalls++
	g.lastRequest = req
	if g.submitErr != nil {
		return models.PaymentOrderResponse{}, g.submitErr
	}
	return models.PaymentOrderResponse{
		OrderTrackingID:   "track-" + req.MerchantReference,
		MerchantReference: req.MerchantReference,
		RedirectURL:       "https://pay.example.test/iframe?ref=" + req.MerchantReference,
	}, nil
}

func (g *fakeGateway) GetTransactionStatus(_ context.Context, _ string) (models.TransactionStatus, error) {
	if g.beforeStatus != nil {
		g.beforeStatus()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls++
	if g.statusErr != nil {
		return models.TransactionStatus{}, g.statusErr
	}
	if len(g.statuses) == 0 {
		return models.TransactionStatus{Status: "PENDING"}, nil
	}
	i := g.statusCalls - 1
	if i >= len(g.statuses) {
		i = len(g.statuses) - 1
	}
	return g.statuses[i], nil
}

// ---- mock SNS publisher ----

type mockSNS struct {
	mu         sync.Mutex
	publishErr error
	messages   [][]byte
}

func (m *mockSNS) Publish(_ context.Context, _ string, msg []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return m.publishErr
}

// ---- mock metrics ----

type mockMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *mockMetrics) RecordCount(_ context.Context, name string, _ map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	m.counts[name]++
	return nil
}

// ---- helper ----

const testSession = "session-1"

type harness struct {
	customers     *memCustomerRepo
	orders        *memOrderRepo
	products      *memProductRepo
	cartRepo      *memCartRepo
	pending       *memPendingRepo
	gateway       *fakeGateway
	sns           *mockSNS
	metrics       *mockMetrics
	carts         services.CartService
	checkout      services.CheckoutService
	transitionsMu sync.Mutex
	transitions   []models.Resolution
	resolverCfg   services.ResolverConfig
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		customers: newMemCustomerRepo(),
		orders:    newMemOrderRepo(),
		products:  &memProductRepo{products: map[uuid.UUID]*models.Product{}},
		cartRepo:  newMemCartRepo(),
		pending:   newMemPendingRepo(),
		gateway:   &fakeGateway{},
		sns:       &mockSNS{},
		metrics:   &mockMetrics{},
	}
	logger := zap.NewNop()
	events := services.NewEventPublisher(h.sns, "arn:aws:sns:us-east-1:000000000000:checkout", logger)
	h.carts = services.NewCartService(h.cartRepo, h.products, decimal.RequireFromString("0.18"), "UGX", logger)
	h.checkout = services.NewCheckoutService(h.customers, h.orders, h.carts, h.pending, h.gateway, events, h.metrics,
		services.CheckoutConfig{
			Currency:           "UGX",
			CallbackURL:        "https://bakery.example.test/payments/callback",
			NotificationID:     "ipn-123",
			DefaultCountryCode: "256",
			CountryISO:         "UG",
			StoreName:          "Tina's Bakery",
		}, logger)
	h.resolverCfg = services.ResolverConfig{
		PollInterval:    time.Millisecond,
		MaxPollAttempts: 5,
		OnTransition: func(_ string, r models.Resolution) {
			h.transitionsMu.Lock()
			h.transitions = append(h.transitions, r)
			h.transitionsMu.Unlock()
		},
	}
	return h
}

func (h *harness) resolver() services.PaymentResolver {
	logger := zap.NewNop()
	events := services.NewEventPublisher(h.sns, "arn:aws:sns:us-east-1:000000000000:checkout", logger)
	return services.NewPaymentResolver(h.customers, h.orders, h.carts, h.pending, h.gateway, events, h.metrics, h.resolverCfg, logger)
}

// seedCart puts 2 x 6500 and 1 x 45000 in the session cart.
func (h *harness) seedCart(sessionID string) {
	h.cartRepo.carts[sessionID] = &models.Cart{
		SessionID: sessionID,
		Lines: []models.CartLine{
			{ID: "bread", Product: &models.ProductSnapshot{Name: "Bread", UnitPrice: decimal.NewFromInt(6500)}, Quantity: 2},
			{ID: "cake", Product: &models.ProductSnapshot{Name: "Cake", UnitPrice: decimal.NewFromInt(45000)}, Quantity: 1},
		},
	}
}

func validBilling() models.BillingInfo {
	return models.BillingInfo{
		FullName: "Tina  Nakato Mukasa",
		Phone:    "0772 123 456",
		Email:    "tina@example.com",
		Address:  "Plot 4 Kampala Road",
		City:     "Kampala",
	}
}

func serviceError(t *testing.T, err error) *services.ServiceError {
	t.Helper()
	var se *services.ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("expected *services.ServiceError, got %T: %v", err, err)
	}
	return se
}
