// Package service is the name request engine. It applies state changes and
// edits to the request aggregate, dispatches the patch actions with their
// side effects, and coordinates refunds.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	idmodels "namex/internal/identity/models"
	"namex/internal/namerequest/metrics"
	"namex/internal/namerequest/models"
	"namex/internal/namerequest/ports"
	"namex/internal/platform/lock"
	"namex/pkg/domain"
	dErrors "namex/pkg/domain-errors"
	"namex/pkg/platform/sentinel"
)

// Store persists the request aggregate and the payments linked to it.
// Implementations return sentinel.ErrNotFound for unknown requests.
type Store interface {
	GetByID(ctx context.Context, id domain.RequestID) (*models.NameRequest, error)
	GetByNR(ctx context.Context, nrNum domain.NRNumber) (*models.NameRequest, error)
	FindInProgressForUser(ctx context.Context, userID domain.UserID) (*models.NameRequest, error)
	Save(ctx context.Context, nr *models.NameRequest) error
	DeleteName(ctx context.Context, id domain.RequestID, choice int) error
	ListPayments(ctx context.Context, id domain.RequestID) ([]*models.Payment, error)
	SavePayment(ctx context.Context, payment *models.Payment) error
	// CompareAndSetCheckout replaces the checkout token only if the stored
	// token still equals expected, returning sentinel.ErrConflict otherwise.
	CompareAndSetCheckout(ctx context.Context, id domain.RequestID, expected, token *string, at *time.Time) error
}

// Locker serializes actions on the same request.
type Locker interface {
	Acquire(ctx context.Context, key string) (lock.Unlock, error)
}

// ExpiryPolicy computes the expiration date stamped on a first decision.
type ExpiryPolicy struct {
	Location        *time.Location
	Days            int
	RestorationDays int
}

// Config carries the settings the engine cannot run without.
type Config struct {
	// ServiceAccount owns requests while they are checked out.
	ServiceAccount *idmodels.User
	// SolrCore is the possible-conflicts core cancelled requests are removed from.
	SolrCore string
	Expiry   ExpiryPolicy
}

type actionHandler func(ctx context.Context, actor *idmodels.User, nr *models.NameRequest, p *patchInput) (*Result, error)

// Service orchestrates name request operations.
type Service struct {
	store    Store
	tx       StoreTx
	events   ports.EventRecorder
	search   ports.SearchIndex
	payments ports.PaymentGateway
	notifier ports.NotificationPublisher
	locker   Locker
	cfg      Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	dispatch map[models.PatchAction]actionHandler
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithSearchIndex(search ports.SearchIndex) Option {
	return func(s *Service) {
		s.search = search
	}
}

func WithPaymentGateway(payments ports.PaymentGateway) Option {
	return func(s *Service) {
		s.payments = payments
	}
}

func WithNotifier(notifier ports.NotificationPublisher) Option {
	return func(s *Service) {
		s.notifier = notifier
	}
}

// WithLocker replaces the in-process lock, e.g. with a Redis lock shared by
// every instance.
func WithLocker(locker Locker) Option {
	return func(s *Service) {
		s.locker = locker
	}
}

// WithTx replaces the in-process transaction boundary.
func WithTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

// New constructs a Service. Every patch action must have a handler or
// construction fails.
func New(store Store, recorder ports.EventRecorder, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("name request store is required")
	}
	if recorder == nil {
		return nil, errors.New("event recorder is required")
	}
	if cfg.ServiceAccount == nil {
		return nil, errors.New("service account is required")
	}
	if cfg.Expiry.Location == nil {
		cfg.Expiry.Location = time.UTC
	}
	if cfg.Expiry.Days <= 0 {
		cfg.Expiry.Days = defaultExpiryDays
	}
	if cfg.Expiry.RestorationDays <= 0 {
		cfg.Expiry.RestorationDays = defaultRestorationExpiryDays
	}
	if cfg.SolrCore == "" {
		cfg.SolrCore = defaultSolrCore
	}

	s := &Service{
		store:  store,
		events: recorder,
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = NewShardedTx(store)
	}
	if s.locker == nil {
		s.locker = lock.NewMemory(0, 0)
	}

	s.dispatch = map[models.PatchAction]actionHandler{
		models.PatchCheckout:      s.checkout,
		models.PatchCheckin:       s.checkin,
		models.PatchEdit:          s.edit,
		models.PatchCancel:        s.cancel,
		models.PatchResend:        s.resend,
		models.PatchRequestRefund: s.requestRefund,
	}
	for _, a := range models.PatchActions {
		if _, ok := s.dispatch[a]; !ok {
			return nil, fmt.Errorf("no handler for patch action %s", a)
		}
	}
	return s, nil
}

const (
	defaultExpiryDays            = 56
	defaultRestorationExpiryDays = 421
	defaultSolrCore              = "possible.conflicts"
)

// Get fetches a request with the actions valid for its state.
func (s *Service) Get(ctx context.Context, id domain.RequestID) (*Result, error) {
	nr, err := s.load(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	nr.FillEntityAndAction()
	return s.result(ctx, nr), nil
}

// GetByNR fetches a request by its NR number.
func (s *Service) GetByNR(ctx context.Context, nrNum domain.NRNumber) (*Result, error) {
	nr, err := s.loadByNR(ctx, s.store, nrNum)
	if err != nil {
		return nil, err
	}
	nr.FillEntityAndAction()
	return s.result(ctx, nr), nil
}

func (s *Service) load(ctx context.Context, store Store, id domain.RequestID) (*models.NameRequest, error) {
	nr, err := store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "name request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load name request")
	}
	return nr, nil
}

func (s *Service) loadByNR(ctx context.Context, store Store, nrNum domain.NRNumber) (*models.NameRequest, error) {
	nr, err := store.GetByNR(ctx, nrNum)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("%s not found", nrNum))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load name request")
	}
	return nr, nil
}

// withLock runs fn while holding the per-request lock.
func (s *Service) withLock(ctx context.Context, id domain.RequestID, fn func(ctx context.Context) error) error {
	key := "nr:" + id.String()
	unlock, err := s.locker.Acquire(ctx, key)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			s.metrics.IncrementLockConflict()
			return dErrors.New(dErrors.CodeLocked, "The request is currently being processed.")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock name request")
	}
	defer unlock()
	return fn(withTxKey(ctx, key))
}

// observe records metrics for a finished operation.
func (s *Service) observe(action string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = string(dErrors.CodeOf(err))
	}
	s.metrics.IncrementAction(action, outcome)
	s.metrics.ObserveActionLatency(action, time.Since(start))
}
