package shop

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/orimhanre/distrinaranjos-sub001/internal/store"
)

// Order statuses follow the payment lifecycle.
const (
	StatusPending = "pending"
	StatusPaid    = "paid"
	StatusFailed  = "failed"
	StatusVoided  = "voided"
)

var (
	ErrOrderNotFound = errors.New("shop: order not found")
	ErrBadTenant     = errors.New("shop: unknown tenant")
)

// OrderItem is one line of an order.
type OrderItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// Order is a placed order for one tenant.
type Order struct {
	ID            string      `json:"id"`
	Tenant        string      `json:"tenant"`
	InvoiceNumber int64       `json:"invoice_number"`
	CustomerName  string      `json:"customer_name"`
	CustomerEmail string      `json:"customer_email"`
	Items         []OrderItem `json:"items"`
	Total         float64     `json:"total"`
	Status        string      `json:"status"`
	PaymentRef    string      `json:"payment_ref,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Service is the shop backend. With no database it runs in memory mode, which
// is how tests and local development operate.
type Service struct {
	cfg    Config
	db     *sql.DB
	sheets *store.Store
	mailer Mailer
	perms  *PermCache
	logger *slog.Logger

	mu          sync.Mutex
	memOrders   map[string]*Order
	memCounters map[string]int64
}

// NewService wires the backend. db and mailer may be nil.
func NewService(cfg Config, db *sql.DB, sheets *store.Store, mailer Mailer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if mailer == nil {
		mailer = &LogMailer{Logger: logger}
	}
	return &Service{
		cfg:         cfg,
		db:          db,
		sheets:      sheets,
		mailer:      mailer,
		perms:       NewPermCache(cfg.PermTTL, time.Now),
		logger:      logger,
		memOrders:   make(map[string]*Order),
		memCounters: make(map[string]int64),
	}
}

// ConnectDB opens the Postgres pool, or returns nil for memory mode.
func ConnectDB(cfg Config, logger *slog.Logger) *sql.DB {
	if cfg.DatabaseURL == "" {
		return nil
	}
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Warn("database unavailable, running in memory mode", "err", err)
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		logger.Warn("database unreachable, running in memory mode", "err", err)
		db.Close()
		return nil
	}
	return db
}

// EnsureSchema creates the order tables. A no-op in memory mode.
func (s *Service) EnsureSchema(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id             TEXT PRIMARY KEY,
			tenant         TEXT NOT NULL,
			invoice_number BIGINT NOT NULL,
			customer_name  TEXT NOT NULL DEFAULT '',
			customer_email TEXT NOT NULL DEFAULT '',
			items_json     TEXT NOT NULL DEFAULT '[]',
			total          DOUBLE PRECISION NOT NULL DEFAULT 0,
			status         TEXT NOT NULL DEFAULT 'pending',
			payment_ref    TEXT NOT NULL DEFAULT '',
			created_at     TIMESTAMPTZ NOT NULL,
			updated_at     TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS orders_tenant_idx ON orders (tenant, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS invoice_counters (
			tenant TEXT PRIMARY KEY,
			value  BIGINT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func validTenant(tenant string) bool {
	for _, t := range Tenants {
		if t == tenant {
			return true
		}
	}
	return false
}

// NextInvoiceNumber issues the next sequential number for a tenant in a
// single statement, so two concurrent orders never share a number.
func (s *Service) NextInvoiceNumber(ctx context.Context, tenant string) (int64, error) {
	if !validTenant(tenant) {
		return 0, ErrBadTenant
	}
	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.memCounters[tenant]++
		return s.memCounters[tenant], nil
	}
	var n int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO invoice_counters (tenant, value) VALUES ($1, 1)
		 ON CONFLICT (tenant) DO UPDATE SET value = invoice_counters.value + 1
		 RETURNING value`, tenant).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("next invoice for %s: %w", tenant, err)
	}
	return n, nil
}

// CreateOrder totals the items, assigns an invoice number, stores the order
// pending, and notifies by mail (best effort).
func (s *Service) CreateOrder(ctx context.Context, tenant, name, email string, items []OrderItem) (*Order, error) {
	if !validTenant(tenant) {
		return nil, ErrBadTenant
	}
	invoice, err := s.NextInvoiceNumber(ctx, tenant)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	o := &Order{
		ID:            uuid.NewString(),
		Tenant:        tenant,
		InvoiceNumber: invoice,
		CustomerName:  name,
		CustomerEmail: email,
		Items:         items,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, item := range items {
		o.Total += float64(item.Quantity) * item.UnitPrice
	}
	if err := s.insertOrder(ctx, o); err != nil {
		return nil, err
	}

	s.notify(ctx, o, "Pedido recibido",
		fmt.Sprintf("Recibimos tu pedido #%d por un total de $%.0f.", o.InvoiceNumber, o.Total))
	return o, nil
}

func (s *Service) insertOrder(ctx context.Context, o *Order) error {
	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.memOrders[o.ID] = o
		return nil
	}
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO orders (id, tenant, invoice_number, customer_name, customer_email,
			items_json, total, status, payment_ref, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		o.ID, o.Tenant, o.InvoiceNumber, o.CustomerName, o.CustomerEmail,
		string(items), o.Total, o.Status, o.PaymentRef, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order %s: %w", o.ID, err)
	}
	return nil
}

// GetOrder fetches one order by id.
func (s *Service) GetOrder(ctx context.Context, id string) (*Order, error) {
	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		o, ok := s.memOrders[id]
		if !ok {
			return nil, ErrOrderNotFound
		}
		cp := *o
		return &cp, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant, invoice_number, customer_name, customer_email,
			items_json, total, status, payment_ref, created_at, updated_at
		 FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// ListOrders returns a tenant's orders, newest first.
func (s *Service) ListOrders(ctx context.Context, tenant string, limit int) ([]*Order, error) {
	if !validTenant(tenant) {
		return nil, ErrBadTenant
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		var out []*Order
		for _, o := range s.memOrders {
			if o.Tenant == tenant {
				cp := *o
				out = append(out, &cp)
			}
		}
		sortOrdersNewestFirst(out)
		if len(out) > limit {
			out = out[:limit]
		}
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant, invoice_number, customer_name, customer_email,
			items_json, total, status, payment_ref, created_at, updated_at
		 FROM orders WHERE tenant = $1 ORDER BY created_at DESC LIMIT $2`, tenant, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdateOrderStatus moves an order through its lifecycle and records the
// payment reference if one is known.
func (s *Service) UpdateOrderStatus(ctx context.Context, id, status, paymentRef string) (*Order, error) {
	if s.db == nil {
		s.mu.Lock()
		o, ok := s.memOrders[id]
		if !ok {
			s.mu.Unlock()
			return nil, ErrOrderNotFound
		}
		o.Status = status
		if paymentRef != "" {
			o.PaymentRef = paymentRef
		}
		o.UpdatedAt = time.Now()
		cp := *o
		s.mu.Unlock()
		return &cp, nil
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = $2,
			payment_ref = CASE WHEN $3 = '' THEN payment_ref ELSE $3 END,
			updated_at = $4
		 WHERE id = $1`, id, status, paymentRef, time.Now())
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrOrderNotFound
	}
	return s.GetOrder(ctx, id)
}

// findOrderByReference resolves a payment provider's order reference, which
// is the order id for this system.
func (s *Service) findOrderByReference(ctx context.Context, ref string) (*Order, error) {
	return s.GetOrder(ctx, ref)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(r rowScanner) (*Order, error) {
	var o Order
	var items string
	err := r.Scan(&o.ID, &o.Tenant, &o.InvoiceNumber, &o.CustomerName, &o.CustomerEmail,
		&items, &o.Total, &o.Status, &o.PaymentRef, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(items), &o.Items); err != nil {
		return nil, fmt.Errorf("order %s items: %w", o.ID, err)
	}
	return &o, nil
}

func sortOrdersNewestFirst(orders []*Order) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

func (s *Service) notify(ctx context.Context, o *Order, subject, body string) {
	if o.CustomerEmail == "" {
		return
	}
	mail := Mail{
		To:      []string{o.CustomerEmail},
		Subject: fmt.Sprintf("%s - pedido #%d", subject, o.InvoiceNumber),
		Text:    body,
	}
	if err := s.mailer.Send(ctx, mail); err != nil {
		s.logger.Warn("mail notification failed", "order", o.ID, "err", err)
	}
}
