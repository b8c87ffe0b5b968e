// Package reconcile moves orders, sales and stock levels between a store
// connection and Prokip.
package reconcile

import (
	"context"
	"strings"
	"time"

	"prokipsync/internal/config"
	"prokipsync/internal/connectors/prokip"
	"prokipsync/internal/connectors/shopify"
	"prokipsync/internal/connectors/woocommerce"
	"prokipsync/internal/logger"
	"prokipsync/internal/metrics"
	"prokipsync/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var (
	ErrConnectionNotFound  = errors.New("connection not found")
	ErrSyncDisabled        = errors.New("sync is disabled for this connection")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrProkipNotConfigured = errors.New("prokip is not configured for this user")
)

// Operation names, used for SyncError rows and metrics.
const (
	OpStoreOrders    = "store_orders"
	OpStoreOrder     = "store_order"
	OpProkipSales    = "prokip_sales"
	OpInventory      = "inventory"
	OpImportProducts = "import_products"
)

// Store is the part of a store platform client the sync needs.
type Store interface {
	ListOrders(ctx context.Context, since time.Time, page int) ([]models.StoreOrder, bool, error)
	GetOrder(ctx context.Context, orderID string) (*models.StoreOrder, error)
	FindProductBySKU(ctx context.Context, sku string) (*models.StoreProduct, error)
	SetStock(ctx context.Context, ref models.ProductRef, quantity int) error
	Ping(ctx context.Context) error
}

// Prokip is the part of the Prokip client the sync needs.
type Prokip interface {
	ListProducts(ctx context.Context, page int) ([]prokip.Product, bool, error)
	GetProduct(ctx context.Context, productID int) (*prokip.Product, error)
	FindProductBySKU(ctx context.Context, sku string) (*prokip.Item, error)
	StockReport(ctx context.Context, locationID int) ([]prokip.StockRow, error)
	CreateSale(ctx context.Context, sale prokip.Sale) (int, error)
	ListSales(ctx context.Context, q prokip.SalesQuery) ([]prokip.Sell, bool, error)
	ListLocations(ctx context.Context) ([]prokip.Location, error)
}

type StoreFactory func(conn *models.Connection) (Store, error)

type ProkipFactory func(cfg *models.ProkipConfig) Prokip

// Options tune how sales are written to Prokip and how far back a first run looks.
type Options struct {
	Lookback        time.Duration
	PaymentMethod   string
	WalkInContactID int
	ProkipBaseURL   string
	// RequestTimeout bounds every store and Prokip API call.
	RequestTimeout time.Duration
}

// OptionsFromConfig reads the sync and Prokip sections of the app config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Lookback:        cfg.Sync.Lookback,
		PaymentMethod:   cfg.Prokip.PaymentMethod,
		WalkInContactID: cfg.Prokip.WalkInCustomer,
		ProkipBaseURL:   cfg.Prokip.BaseURL,
		RequestTimeout:  cfg.Sync.RequestTimeout,
	}
}

type Service struct {
	db        *gorm.DB
	logger    *logger.Logger
	opts      Options
	metrics   *metrics.SyncMetrics
	newStore  StoreFactory
	newProkip ProkipFactory
	now       func() time.Time
}

func NewService(db *gorm.DB, opts Options, logger *logger.Logger) *Service {
	if opts.Lookback <= 0 {
		opts.Lookback = 24 * time.Hour
	}
	if opts.PaymentMethod == "" {
		opts.PaymentMethod = "cash"
	}
	if opts.WalkInContactID <= 0 {
		opts.WalkInContactID = 1
	}

	s := &Service{
		db:     db,
		logger: logger,
		opts:   opts,
		now:    time.Now,
	}
	s.newStore = s.defaultStore
	s.newProkip = s.defaultProkip
	return s
}

// WithStoreFactory replaces how store clients are built, mainly for tests.
func (s *Service) WithStoreFactory(f StoreFactory) *Service {
	s.newStore = f
	return s
}

func (s *Service) WithProkipFactory(f ProkipFactory) *Service {
	s.newProkip = f
	return s
}

func (s *Service) WithMetrics(m *metrics.SyncMetrics) *Service {
	s.metrics = m
	return s
}

func (s *Service) defaultStore(conn *models.Connection) (Store, error) {
	switch conn.Platform {
	case models.PlatformWooCommerce:
		return woocommerce.New(conn, s.opts.RequestTimeout, s.logger), nil
	case models.PlatformShopify:
		return shopify.New(conn, s.opts.RequestTimeout, s.logger), nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedPlatform, "platform %q", conn.Platform)
	}
}

func (s *Service) defaultProkip(cfg *models.ProkipConfig) Prokip {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = s.opts.ProkipBaseURL
	}
	return prokip.NewClient(baseURL, cfg.Token, s.logger).WithTimeout(s.opts.RequestTimeout)
}

// NewStore builds the store client for a connection.
func (s *Service) NewStore(conn *models.Connection) (Store, error) {
	return s.newStore(conn)
}

// NewProkip builds a Prokip client for a user's config.
func (s *Service) NewProkip(cfg *models.ProkipConfig) Prokip {
	return s.newProkip(cfg)
}

// Status summarizes a run the same way for every operation.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusPartial Status = "PARTIAL"
	StatusFailed  Status = "FAILED"
)

// Result counts what a run did with each order, sale or SKU it looked at.
type Result struct {
	ConnectionID string    `json:"connection_id"`
	Operation    string    `json:"operation"`
	Total        int       `json:"total"`
	Success      int       `json:"success"`
	Failed       int       `json:"failed"`
	Skipped      int       `json:"skipped"`
	FailedRefs   []string  `json:"failed_refs,omitempty"`
	Status       Status    `json:"status"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at"`
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeSkipped
	outcomeFailed
)

func (r *Result) record(o outcome, ref string) {
	r.Total++
	switch o {
	case outcomeSuccess:
		r.Success++
	case outcomeSkipped:
		r.Skipped++
	case outcomeFailed:
		r.Failed++
		r.FailedRefs = append(r.FailedRefs, ref)
	}
}

func (r *Result) complete(now time.Time) {
	r.CompletedAt = now
	if r.Failed == 0 {
		r.Status = StatusSuccess
	} else if r.Success > 0 {
		r.Status = StatusPartial
	} else {
		r.Status = StatusFailed
	}
}

// run carries everything one sync invocation works with.
type run struct {
	conn   *models.Connection
	cfg    *models.ProkipConfig
	store  Store
	prokip Prokip
	result *Result
	log    *logger.Logger
}

type direction int

const (
	directionOrders direction = iota
	directionInventory
	directionAny
)

// begin loads the connection and its Prokip config and builds both clients.
func (s *Service) begin(ctx context.Context, connectionID, op string, dir direction) (*run, error) {
	var conn models.Connection
	if err := s.db.WithContext(ctx).First(&conn, "id = ?", connectionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrConnectionNotFound, "connection %s", connectionID)
		}
		return nil, errors.Wrap(err, "failed to load connection")
	}

	if !conn.SyncEnabled || conn.Status == models.ConnectionStatusInactive {
		return nil, errors.Wrapf(ErrSyncDisabled, "connection %s", connectionID)
	}
	switch dir {
	case directionOrders:
		if !conn.SyncOrders {
			return nil, errors.Wrapf(ErrSyncDisabled, "order sync on connection %s", connectionID)
		}
	case directionInventory:
		if !conn.SyncInventory {
			return nil, errors.Wrapf(ErrSyncDisabled, "inventory sync on connection %s", connectionID)
		}
	}

	cfg, err := s.prokipConfig(ctx, conn.UserID)
	if err != nil {
		return nil, err
	}

	store, err := s.newStore(&conn)
	if err != nil {
		return nil, err
	}

	return &run{
		conn:   &conn,
		cfg:    cfg,
		store:  store,
		prokip: s.newProkip(cfg),
		result: &Result{
			ConnectionID: conn.ID,
			Operation:    op,
			StartedAt:    s.now(),
		},
		log: s.logger.With("connection_id", conn.ID, "operation", op),
	}, nil
}

func (s *Service) prokipConfig(ctx context.Context, userID string) (*models.ProkipConfig, error) {
	var cfg models.ProkipConfig
	if err := s.db.WithContext(ctx).First(&cfg, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrProkipNotConfigured, "user %s", userID)
		}
		return nil, errors.Wrap(err, "failed to load prokip config")
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.Wrapf(ErrProkipNotConfigured, "user %s has no token", userID)
	}
	return &cfg, nil
}

func (s *Service) setStatus(ctx context.Context, connectionID string, status models.ConnectionStatus, extra map[string]interface{}) {
	updates := map[string]interface{}{"status": status}
	for k, v := range extra {
		updates[k] = v
	}
	err := s.db.WithContext(ctx).Model(&models.Connection{}).Where("id = ?", connectionID).Updates(updates).Error
	if err != nil {
		s.logger.Error("Failed to set connection %s status to %s: %v", connectionID, status, err)
	}
}

// finish completes the result, records metrics and moves the connection out
// of SYNCING. runErr is a failure of the run as a whole.
func (s *Service) finish(ctx context.Context, r *run, runErr error, extra map[string]interface{}) (*Result, error) {
	r.result.complete(s.now())

	s.metrics.AddItems(r.result.Operation, "success", r.result.Success)
	s.metrics.AddItems(r.result.Operation, "failed", r.result.Failed)
	s.metrics.AddItems(r.result.Operation, "skipped", r.result.Skipped)

	if runErr != nil {
		r.result.Status = StatusFailed
		s.recordError(ctx, r.conn.ID, r.result.Operation, "", runErr)
		s.setStatus(ctx, r.conn.ID, models.ConnectionStatusError, nil)
		r.log.Error("Sync run failed: %v", runErr)
		return r.result, errors.Wrapf(runErr, "%s sync for connection %s", r.result.Operation, r.conn.ID)
	}

	s.setStatus(ctx, r.conn.ID, models.ConnectionStatusActive, extra)
	r.log.Info("Sync run finished: %s (total=%d success=%d failed=%d skipped=%d)",
		r.result.Status, r.result.Total, r.result.Success, r.result.Failed, r.result.Skipped)
	return r.result, nil
}

// recordError stores a SyncError row. Failures to store it are only logged.
func (s *Service) recordError(ctx context.Context, connectionID, op, ref string, cause error) {
	row := &models.SyncError{
		ConnectionID: connectionID,
		Operation:    op,
		Reference:    ref,
		Message:      cause.Error(),
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		s.logger.Error("Failed to record sync error for %s/%s: %v", op, ref, err)
	}
}

func (s *Service) since(last *time.Time, start time.Time) time.Time {
	if last != nil && !last.IsZero() {
		return *last
	}
	return start.Add(-s.opts.Lookback)
}
