package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/idsync/pkg/contextkeys"
	"github.com/platinummonkey/idsync/pkg/identity"
	"github.com/platinummonkey/idsync/pkg/notify"
	"github.com/platinummonkey/idsync/pkg/observability"
	"github.com/platinummonkey/idsync/pkg/users"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var reconcileTracer = otel.Tracer("idsync/reconcile")

// Toast text shown to the user when a sync fails
const (
	FailureTitle   = "Sync Error"
	FailureMessage = "Failed to sync user data. Some features may not work correctly."
)

// Failure reasons used as the metrics label
const (
	ReasonStoreError     = "store_error"
	ReasonPanic          = "panic"
	ReasonMissingSubject = "missing_subject"
	ReasonTimeout        = "timeout"
	ReasonBackpressure   = "backpressure"
)

// notifyTimeout bounds delivery of a failure notice once the sync itself
// has given up
const notifyTimeout = 5 * time.Second

// errPanic marks a failure caused by a panicking store
var errPanic = errors.New("store panicked")

// SyncFailure describes one failed upsert. It is reported, never returned.
type SyncFailure struct {
	SubjectID string
	Reason    string
	Err       error
}

func (f *SyncFailure) Error() string {
	return fmt.Sprintf("failed to sync user %q: %v", f.SubjectID, f.Err)
}

func (f *SyncFailure) Unwrap() error {
	return f.Err
}

// Reconciler mirrors claims snapshots into the user store
type Reconciler struct {
	store    users.Store
	notifier notify.Notifier
	log      *logrus.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithNotifier sets the sink failures are reported to
func WithNotifier(n notify.Notifier) Option {
	return func(r *Reconciler) {
		r.notifier = n
	}
}

// WithLogger sets the operator logger
func WithLogger(log *logrus.Logger) Option {
	return func(r *Reconciler) {
		r.log = log
	}
}

// WithMetrics records sync outcomes on m
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

// WithClock overrides the wall clock used for updated_at
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

// New creates a Reconciler over store
func New(store users.Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:    store,
		notifier: notify.Discard,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logrus.New()
	}
	if r.notifier == nil {
		r.notifier = notify.Discard
	}
	return r
}

// Sync upserts the user record for claims. Every field is replaced and
// updated_at is set to the current time. Failures are logged and reported
// to the notifier once; Sync never panics, returns an error or retries.
func (r *Reconciler) Sync(ctx context.Context, claims identity.Claims) {
	ctx, span := reconcileTracer.Start(ctx, "reconcile.Sync",
		trace.WithAttributes(attribute.String("subject_id", claims.SubjectID)),
	)
	defer span.End()

	began := time.Now()
	record := users.RecordFromClaims(claims, r.now())

	err := r.upsert(ctx, record)
	if err == nil {
		r.metrics.RecordSync(time.Since(began), "")
		r.log.WithContext(ctx).WithField("subject_id", claims.SubjectID).Debug("user record synced")
		return
	}

	failure := &SyncFailure{SubjectID: claims.SubjectID, Reason: classify(err), Err: err}
	span.RecordError(failure)
	span.SetStatus(codes.Error, "failed to sync user record")
	r.metrics.RecordSync(time.Since(began), failure.Reason)
	r.report(ctx, failure)
}

// reject reports a sync that never reached the store
func (r *Reconciler) reject(ctx context.Context, claims identity.Claims, reason string, err error) {
	failure := &SyncFailure{SubjectID: claims.SubjectID, Reason: reason, Err: err}
	r.metrics.RecordSync(0, reason)
	r.report(ctx, failure)
}

func (r *Reconciler) upsert(ctx context.Context, record *users.Record) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", errPanic, observability.MustRecover(rec))
		}
	}()
	return r.store.Upsert(ctx, record)
}

// report logs the failure and hands it to the notifier exactly once
func (r *Reconciler) report(ctx context.Context, failure *SyncFailure) {
	requestID := contextkeys.GetRequestID(ctx)

	r.log.WithContext(ctx).WithError(failure.Err).WithFields(logrus.Fields{
		"subject_id": failure.SubjectID,
		"reason":     failure.Reason,
		"request_id": requestID,
	}).Error("failed to sync user record")

	// the sync context may already be past its deadline
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithField("panic", rec).Error("notifier panicked while reporting sync failure")
		}
	}()
	r.notifier.Notify(notifyCtx, notify.Notice{
		Level:     notify.LevelError,
		Title:     FailureTitle,
		Message:   FailureMessage,
		SubjectID: failure.SubjectID,
		RequestID: requestID,
		Time:      r.now(),
		Err:       failure,
	})
}

func classify(err error) string {
	switch {
	case errors.Is(err, errPanic):
		return ReasonPanic
	case errors.Is(err, users.ErrMissingSubject):
		return ReasonMissingSubject
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ReasonTimeout
	default:
		return ReasonStoreError
	}
}
