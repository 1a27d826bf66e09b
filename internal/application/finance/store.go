// Package finance caches the finance collections shown to the user.
//
// Requests are neither cancelled nor de-duplicated: when two fetches of the
// same collection overlap, whichever response arrives last wins. Responses
// arriving after the session changed are dropped.
package finance

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/campusfin/client/internal/domain/finance"
	"github.com/campusfin/client/internal/domain/shared"
	"github.com/campusfin/client/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

// API is the finance part of the backend
type API interface {
	ListSemesters(ctx context.Context) ([]finance.Semester, error)
	ListStudentFees(ctx context.Context, f finance.StudentFeeFilter) ([]finance.StudentFee, error)
	CreateStudentFee(ctx context.Context, cmd finance.CreateStudentFeeCommand) (*finance.StudentFee, error)
	ListStandardFees(ctx context.Context, f finance.StandardFeeFilter) ([]finance.StandardFee, error)
	CreateStandardFee(ctx context.Context, cmd finance.StandardFeeCommand) (*finance.StandardFee, error)
	UpdateStandardFee(ctx context.Context, id int64, cmd finance.StandardFeeCommand) (*finance.StandardFee, error)
	DeleteStandardFee(ctx context.Context, id int64) error
	ListPayments(ctx context.Context, f finance.PaymentFilter) ([]finance.Payment, error)
	CreatePayment(ctx context.Context, cmd finance.CreatePaymentCommand) (*finance.Payment, error)
	Summary(ctx context.Context, f finance.SummaryFilter) (*finance.Summary, error)
}

// GenerationSource reports the current session generation
type GenerationSource interface {
	Generation() uint64
}

// ErrMissingReceipt is returned when a payment was created without a receipt
var ErrMissingReceipt = errors.New("payment was created without a receipt")

// State is a snapshot of the cache
type State struct {
	Semesters    []finance.Semester
	StudentFees  []finance.StudentFee
	StandardFees []finance.StandardFee
	Payments     []finance.Payment
	Summary      *finance.Summary
	// Loading is true while any request is in flight
	Loading bool
	// Error is the message of the most recent failure, cleared by the next request
	Error string
}

// Store holds the cached collections
type Store struct {
	mu       sync.Mutex
	state    State
	inflight int

	api     API
	session GenerationSource
	metrics *metrics.Recorder
	logger  *zap.Logger
}

// Option configures a Store
type Option func(*Store)

// WithMetrics counts dropped stale responses
func WithMetrics(r *metrics.Recorder) Option {
	return func(s *Store) { s.metrics = r }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore creates an empty store. session may be nil, in which case no
// response is ever considered stale.
func NewStore(api API, session GenerationSource, opts ...Option) *Store {
	s := &Store{api: api, session: session, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a copy of the cache
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Semesters = slices.Clone(st.Semesters)
	st.StudentFees = slices.Clone(st.StudentFees)
	st.StandardFees = slices.Clone(st.StandardFees)
	st.Payments = slices.Clone(st.Payments)
	if st.Summary != nil {
		sum := *st.Summary
		st.Summary = &sum
	}
	return st
}

// ClearError clears the error message
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Error = ""
}

// Reset empties the cache, e.g. when the session ends
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{Loading: s.inflight > 0}
}

// FetchSemesters replaces the cached semesters
func (s *Store) FetchSemesters(ctx context.Context) ([]finance.Semester, error) {
	return run(ctx, s, "fetch_semesters", "Failed to fetch semesters",
		s.api.ListSemesters,
		func(st *State, v []finance.Semester) { st.Semesters = v })
}

// FetchStudentFees replaces the cached student fees
func (s *Store) FetchStudentFees(ctx context.Context, f finance.StudentFeeFilter) ([]finance.StudentFee, error) {
	return run(ctx, s, "fetch_student_fees", "Failed to fetch student fees",
		func(ctx context.Context) ([]finance.StudentFee, error) { return s.api.ListStudentFees(ctx, f) },
		func(st *State, v []finance.StudentFee) { st.StudentFees = v })
}

// FetchPayments replaces the cached payments
func (s *Store) FetchPayments(ctx context.Context, f finance.PaymentFilter) ([]finance.Payment, error) {
	return run(ctx, s, "fetch_payments", "Failed to fetch payments",
		func(ctx context.Context) ([]finance.Payment, error) { return s.api.ListPayments(ctx, f) },
		func(st *State, v []finance.Payment) { st.Payments = v })
}

// FetchSummary replaces the cached summary
func (s *Store) FetchSummary(ctx context.Context, f finance.SummaryFilter) (*finance.Summary, error) {
	return run(ctx, s, "fetch_summary", "Failed to fetch finance summary",
		func(ctx context.Context) (*finance.Summary, error) { return s.api.Summary(ctx, f) },
		func(st *State, v *finance.Summary) { st.Summary = v })
}

// CreatePayment records a payment and puts it at the front of the cached
// payments. The returned payment always carries its receipt.
func (s *Store) CreatePayment(ctx context.Context, cmd finance.CreatePaymentCommand) (*finance.Payment, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return run(ctx, s, "create_payment", "Failed to create payment",
		func(ctx context.Context) (*finance.Payment, error) {
			p, err := s.api.CreatePayment(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if !p.HasReceipt() {
				s.logger.Error("payment created without receipt", zap.Int64("payment_id", p.ID))
				return nil, ErrMissingReceipt
			}
			return p, nil
		},
		func(st *State, v *finance.Payment) {
			st.Payments = append([]finance.Payment{*v}, st.Payments...)
		})
}

// CreateStudentFee creates a fee obligation. Exactly one of an explicit
// amount and the standard-fee intent must be given.
func (s *Store) CreateStudentFee(ctx context.Context, cmd finance.CreateStudentFeeCommand) (*finance.StudentFee, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return run(ctx, s, "create_student_fee", "Failed to create student fee",
		func(ctx context.Context) (*finance.StudentFee, error) { return s.api.CreateStudentFee(ctx, cmd) },
		func(st *State, v *finance.StudentFee) { st.StudentFees = append(st.StudentFees, *v) })
}

// FetchStandardFees replaces the cached standard fees
func (s *Store) FetchStandardFees(ctx context.Context, f finance.StandardFeeFilter) ([]finance.StandardFee, error) {
	return run(ctx, s, "fetch_standard_fees", "Failed to fetch standard fees",
		func(ctx context.Context) ([]finance.StandardFee, error) { return s.api.ListStandardFees(ctx, f) },
		func(st *State, v []finance.StandardFee) { st.StandardFees = v })
}

// CreateStandardFee adds a standard fee to the cache
func (s *Store) CreateStandardFee(ctx context.Context, cmd finance.StandardFeeCommand) (*finance.StandardFee, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return run(ctx, s, "create_standard_fee", "Failed to save standard fee",
		func(ctx context.Context) (*finance.StandardFee, error) { return s.api.CreateStandardFee(ctx, cmd) },
		func(st *State, v *finance.StandardFee) { st.StandardFees = append(st.StandardFees, *v) })
}

// UpdateStandardFee replaces the cached entry with the backend's answer
func (s *Store) UpdateStandardFee(ctx context.Context, id int64, cmd finance.StandardFeeCommand) (*finance.StandardFee, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return run(ctx, s, "update_standard_fee", "Failed to save standard fee",
		func(ctx context.Context) (*finance.StandardFee, error) { return s.api.UpdateStandardFee(ctx, id, cmd) },
		func(st *State, v *finance.StandardFee) {
			i := slices.IndexFunc(st.StandardFees, func(f finance.StandardFee) bool { return f.ID == id })
			if i < 0 {
				st.StandardFees = append(st.StandardFees, *v)
				return
			}
			st.StandardFees = slices.Clone(st.StandardFees)
			st.StandardFees[i] = *v
		})
}

// DeleteStandardFee removes a standard fee from the backend and the cache
func (s *Store) DeleteStandardFee(ctx context.Context, id int64) error {
	_, err := run(ctx, s, "delete_standard_fee", "Failed to delete standard fee",
		func(ctx context.Context) (struct{}, error) { return struct{}{}, s.api.DeleteStandardFee(ctx, id) },
		func(st *State, _ struct{}) {
			st.StandardFees = slices.DeleteFunc(slices.Clone(st.StandardFees),
				func(f finance.StandardFee) bool { return f.ID == id })
		})
	return err
}

// run issues one request and applies its result to the cache, unless the
// session generation moved on while it was in flight.
func run[T any](ctx context.Context, s *Store, op, fallback string,
	call func(context.Context) (T, error), apply func(*State, T)) (T, error) {
	gen := s.begin()

	v, err := call(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	s.state.Loading = s.inflight > 0

	if s.generation() != gen {
		s.metrics.StaleResponseDropped(op)
		s.logger.Debug("dropping response from previous session", zap.String("operation", op))
		return v, err
	}
	if err != nil {
		s.state.Error = errorMessage(err, fallback)
		s.logger.Warn("finance request failed", zap.String("operation", op), zap.Error(err))
		return v, err
	}
	apply(&s.state, v)
	return v, nil
}

func (s *Store) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight++
	s.state.Loading = true
	s.state.Error = ""
	return s.generation()
}

func (s *Store) generation() uint64 {
	if s.session == nil {
		return 0
	}
	return s.session.Generation()
}

func errorMessage(err error, fallback string) string {
	var netErr *shared.NetworkError
	if errors.As(err, &netErr) {
		return netErr.UserMessage(fallback)
	}
	return fallback
}
