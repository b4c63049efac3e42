package services

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"gorm.io/gorm"

	"payflow_backend/internal/config"
	"payflow_backend/internal/gateways"
	"payflow_backend/internal/models"
	"payflow_backend/internal/repositories"
)

// In-memory doubles for the persistence layer. The db argument is ignored:
// the fake tx manager runs the callback directly, so everything operates on
// plain maps and slices.

type fakeTxManager struct {
	keys []string
}

func (f *fakeTxManager) WithLock(db *gorm.DB, key string, fn func(tx *gorm.DB) error) error {
	f.keys = append(f.keys, key)
	return fn(db)
}

func (f *fakeTxManager) Lock(tx *gorm.DB, key string) error {
	f.keys = append(f.keys, key)
	return nil
}

func (f *fakeTxManager) Transaction(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return fn(db)
}

type fakePaymentRepo struct {
	payments    map[string]*models.Payment
	failedCount int64
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: make(map[string]*models.Payment)}
}

func (f *fakePaymentRepo) Create(db *gorm.DB, p *models.Payment) error {
	cp := *p
	f.payments[p.ID] = &cp
	return nil
}

func (f *fakePaymentRepo) FindByID(db *gorm.DB, id string) (*models.Payment, error) {
	p, ok := f.payments[id]
	if !ok {
		return nil, repositories.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePaymentRepo) FindByIDWithTransactions(db *gorm.DB, id string) (*models.Payment, error) {
	return f.FindByID(db, id)
}

func (f *fakePaymentRepo) FindByIdempotencyKey(db *gorm.DB, key string) (*models.Payment, error) {
	for _, p := range f.payments {
		if p.IdempotencyKey == key {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repositories.ErrPaymentNotFound
}

func (f *fakePaymentRepo) FindActiveByOrderRef(db *gorm.DB, orderRef string) (*models.Payment, error) {
	for _, p := range f.payments {
		if p.OrderRef == orderRef &&
			(p.Status == models.PaymentStatusPending || p.Status == models.PaymentStatusProcessing) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repositories.ErrPaymentNotFound
}

func (f *fakePaymentRepo) FindByGatewayRef(db *gorm.DB, gateway models.GatewayName, ref string) (*models.Payment, error) {
	for _, p := range f.payments {
		if p.Gateway == gateway && p.GatewayRef != nil && *p.GatewayRef == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repositories.ErrPaymentNotFound
}

func (f *fakePaymentRepo) UpdateStatus(db *gorm.DB, id string, from, to models.PaymentStatus) (bool, error) {
	p, ok := f.payments[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	return true, nil
}

func (f *fakePaymentRepo) MarkFailed(db *gorm.DB, id string, reason string) error {
	p, ok := f.payments[id]
	if !ok {
		return repositories.ErrPaymentNotFound
	}
	p.Status = models.PaymentStatusFailed
	p.FailureReason = reason
	return nil
}

func (f *fakePaymentRepo) SetGatewayRef(db *gorm.DB, id string, ref string) error {
	p, ok := f.payments[id]
	if !ok {
		return repositories.ErrPaymentNotFound
	}
	p.GatewayRef = &ref
	return nil
}

func (f *fakePaymentRepo) CountRecentFailed(db *gorm.DB, customerRef string, since time.Time) (int64, error) {
	return f.failedCount, nil
}

func (f *fakePaymentRepo) FindPendingForVerification(db *gorm.DB, limit int) ([]models.Payment, error) {
	var out []models.Payment
	for _, p := range f.payments {
		if p.Status == models.PaymentStatusPending && p.GatewayRef != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePaymentRepo) ExpirePendingOlderThan(db *gorm.DB, cutoff time.Time, reason string) (int64, error) {
	var n int64
	for _, p := range f.payments {
		if p.Status == models.PaymentStatusPending && p.CreatedAt.Before(cutoff) {
			p.Status = models.PaymentStatusFailed
			p.FailureReason = reason
			n++
		}
	}
	return n, nil
}

func (f *fakePaymentRepo) List(db *gorm.DB, status models.PaymentStatus, flaggedOnly bool, offset, limit int) ([]models.Payment, int64, error) {
	var out []models.Payment
	for _, p := range f.payments {
		if status != "" && p.Status != status {
			continue
		}
		if flaggedOnly && !p.FraudFlagged {
			continue
		}
		out = append(out, *p)
	}
	return out, int64(len(out)), nil
}

type fakeTransactionRepo struct {
	transactions []models.Transaction
	seq          int64
}

func (f *fakeTransactionRepo) Create(db *gorm.DB, tr *models.Transaction) error {
	f.seq++
	cp := *tr
	cp.Seq = f.seq
	f.transactions = append(f.transactions, cp)
	return nil
}

func (f *fakeTransactionRepo) ListByPayment(db *gorm.DB, paymentID string) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, tr := range f.transactions {
		if tr.PaymentID == paymentID {
			out = append(out, tr)
		}
	}
	return out, nil
}

func (f *fakeTransactionRepo) SumRefunded(db *gorm.DB, paymentID string) (int64, error) {
	var total int64
	for _, tr := range f.transactions {
		if tr.PaymentID == paymentID &&
			tr.Type == models.TransactionTypeRefundAttempt &&
			tr.Status == string(models.PaymentStatusSucceeded) {
			total += tr.Amount
		}
	}
	return total, nil
}

func (f *fakeTransactionRepo) countByType(paymentID string, txType models.TransactionType) int {
	n := 0
	for _, tr := range f.transactions {
		if tr.PaymentID == paymentID && tr.Type == txType {
			n++
		}
	}
	return n
}

type fakeWebhookRepo struct {
	events map[string]*models.WebhookEvent
}

func newFakeWebhookRepo() *fakeWebhookRepo {
	return &fakeWebhookRepo{events: make(map[string]*models.WebhookEvent)}
}

func (f *fakeWebhookRepo) key(gateway models.GatewayName, eventID string) string {
	return string(gateway) + ":" + eventID
}

func (f *fakeWebhookRepo) Create(db *gorm.DB, e *models.WebhookEvent) error {
	cp := *e
	f.events[f.key(e.Gateway, e.GatewayEventID)] = &cp
	return nil
}

func (f *fakeWebhookRepo) FindByGatewayEvent(db *gorm.DB, gateway models.GatewayName, eventID string) (*models.WebhookEvent, error) {
	e, ok := f.events[f.key(gateway, eventID)]
	if !ok {
		return nil, repositories.ErrWebhookEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeWebhookRepo) MarkProcessed(db *gorm.DB, id string) error {
	for _, e := range f.events {
		if e.ID == id {
			e.Processed = true
			return nil
		}
	}
	return repositories.ErrWebhookEventNotFound
}

// fakeGateway is a scriptable adapter.
type fakeGateway struct {
	name       models.GatewayName
	currencies []string

	initResult *gateways.InitializeResult
	initErr    error

	verifyResult *gateways.VerifyResult
	verifyErr    error
	onVerify     func() // runs during Verify, before the result is returned

	refundResult *gateways.RefundResult
	refundErr    error

	signatureOK bool
	parsedEvent *gateways.WebhookEvent
	parseErr    error

	initCalls   int
	refundCalls int
}

func (g *fakeGateway) Name() models.GatewayName      { return g.name }
func (g *fakeGateway) SupportedCurrencies() []string { return g.currencies }

func (g *fakeGateway) Initialize(ctx context.Context, req gateways.InitializeRequest) (*gateways.InitializeResult, error) {
	g.initCalls++
	return g.initResult, g.initErr
}

func (g *fakeGateway) Verify(ctx context.Context, ref string) (*gateways.VerifyResult, error) {
	if g.onVerify != nil {
		g.onVerify()
	}
	return g.verifyResult, g.verifyErr
}

func (g *fakeGateway) Refund(ctx context.Context, ref string, amount int64) (*gateways.RefundResult, error) {
	g.refundCalls++
	return g.refundResult, g.refundErr
}

func (g *fakeGateway) VerifyWebhookSignature(body []byte, header http.Header) bool {
	return g.signatureOK
}

func (g *fakeGateway) ParseWebhookEvent(body []byte) (*gateways.WebhookEvent, error) {
	if g.parseErr != nil {
		return nil, g.parseErr
	}
	if g.parsedEvent != nil {
		return g.parsedEvent, nil
	}
	var ev gateways.WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, gateways.ErrMalformedPayload
	}
	return &ev, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Fraud.BlockScore = 70
	cfg.Fraud.ReviewScore = 40
	cfg.Fraud.MaxFailedAttempts = 3
	cfg.Fraud.WindowMinutes = 60
	cfg.Fraud.MaxAmountUSD = 1_000_000
	cfg.Currency.Settlement = "USD"
	cfg.Currency.Rates = map[string]string{
		"USD": "1.0",
		"EUR": "0.85",
		"NGN": "1600.0",
	}
	return cfg
}
