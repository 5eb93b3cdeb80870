package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/rto-lookup/config"
	"github.com/yeremiapane/rto-lookup/models"
	"github.com/yeremiapane/rto-lookup/utils"
)

const (
	DefaultPollInterval    = 3 * time.Second
	DefaultPollMaxAttempts = 20
)

// StatusChecker performs a single status round trip for an order.
type StatusChecker interface {
	CheckOrderStatus(ctx context.Context, orderID string) (models.PaymentStatus, error)
}

// PaymentMetrics keeps reconciliation counters.
type PaymentMetrics struct {
	TotalChecks        int64 `json:"totalChecks"`
	SuccessfulPayments int64 `json:"successfulPayments"`
	FailedPayments     int64 `json:"failedPayments"`
	PendingPayments    int64 `json:"pendingPayments"`
	Timeouts           int64 `json:"timeouts"`
	GatewayErrors      int64 `json:"gatewayErrors"`
	AvgResponseTime    int64 `json:"avgResponseTimeMs"` // in milliseconds
}

// WaitFunc pauses between two polls. It must return early with ctx.Err()
// when ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

// MonitorOption configures a PaymentMonitor.
type MonitorOption func(*PaymentMonitor)

func WithWait(wait WaitFunc) MonitorOption {
	return func(pm *PaymentMonitor) { pm.wait = wait }
}

func WithPolling(interval time.Duration, maxAttempts int) MonitorOption {
	return func(pm *PaymentMonitor) {
		if interval > 0 {
			pm.interval = interval
		}
		if maxAttempts > 0 {
			pm.maxAttempts = maxAttempts
		}
	}
}

func WithLedger(ledger *OrderLedger) MonitorOption {
	return func(pm *PaymentMonitor) { pm.ledger = ledger }
}

// PaymentMonitor polls the gateway for an order until it reaches a terminal
// classification or the attempt budget runs out.
type PaymentMonitor struct {
	checker     StatusChecker
	ledger      *OrderLedger
	interval    time.Duration
	maxAttempts int
	wait        WaitFunc
	now         func() time.Time

	metrics       PaymentMetrics
	totalDuration time.Duration
	mutex         sync.Mutex
}

func NewPaymentMonitor(checker StatusChecker, opts ...MonitorOption) *PaymentMonitor {
	pm := &PaymentMonitor{
		checker:     checker,
		interval:    DefaultPollInterval,
		maxAttempts: DefaultPollMaxAttempts,
		wait:        sleepContext,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(pm)
	}
	if pm.ledger == nil {
		pm.ledger = NewOrderLedger(0)
	}
	return pm
}

// NewPaymentMonitorFromConfig wires polling limits from the process configuration.
func NewPaymentMonitorFromConfig(checker StatusChecker, cfg *config.Config, ledger *OrderLedger) *PaymentMonitor {
	return NewPaymentMonitor(checker,
		WithPolling(cfg.PollInterval, cfg.PollMaxAttempts),
		WithLedger(ledger),
	)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (pm *PaymentMonitor) MaxAttempts() int { return pm.maxAttempts }

// PollUntilTerminal reconciles an order. emit, when not nil, receives every
// status in order, the final one included.
//
// The returned status is always terminal unless err is non-nil. Failed
// outcomes, including an exhausted attempt budget, are statuses rather than
// errors: FailureKind says which. err is only returned for an unusable order
// id or when ctx is cancelled, in which case nothing further is emitted.
func (pm *PaymentMonitor) PollUntilTerminal(ctx context.Context, orderID string, emit func(models.PaymentStatus)) (models.PaymentStatus, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return models.PaymentStatus{}, invalidInput(CauseEmptyOrderID, "order id is required")
	}
	if emit == nil {
		emit = func(models.PaymentStatus) {}
	}

	if status, ok := pm.ledger.Lookup(orderID); ok {
		emit(status)
		return status, nil
	}

	log := utils.Info(logrus.Fields{"order_id": orderID, "max_attempts": pm.maxAttempts})
	log.Info("payment reconciliation started")

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			log.WithField("attempt", attempt).Info("payment reconciliation cancelled")
			return models.PaymentStatus{}, err
		}

		status, err := pm.check(ctx, orderID, attempt)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				log.WithField("attempt", attempt).Info("payment reconciliation cancelled")
				return models.PaymentStatus{}, ctxErr
			}
			if !retryable(err) {
				status = pm.failedFromError(orderID, attempt, err)
				emit(status)
				return status, nil
			}
			status = pm.pendingFromError(orderID, attempt, err)
		}

		if status.Classification.IsTerminal() {
			emit(status)
			return status, nil
		}

		if attempt >= pm.maxAttempts {
			status = pm.timedOut(orderID, attempt)
			emit(status)
			return status, nil
		}

		emit(status)
		if err := pm.wait(ctx, pm.interval); err != nil {
			log.WithField("attempt", attempt).Info("payment reconciliation cancelled")
			return models.PaymentStatus{}, err
		}
	}
}

// CheckOnce performs one reconciliation step without waiting. Gateway errors
// are returned as they are so the caller can report them.
func (pm *PaymentMonitor) CheckOnce(ctx context.Context, orderID string) (models.PaymentStatus, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return models.PaymentStatus{}, invalidInput(CauseEmptyOrderID, "order id is required")
	}
	if status, ok := pm.ledger.Lookup(orderID); ok {
		return status, nil
	}
	return pm.check(ctx, orderID, 0)
}

func (pm *PaymentMonitor) check(ctx context.Context, orderID string, attempt int) (models.PaymentStatus, error) {
	start := pm.now()
	status, err := pm.checker.CheckOrderStatus(ctx, orderID)
	elapsed := pm.now().Sub(start)

	if err != nil {
		pm.updateMetrics("", elapsed, err)
		return models.PaymentStatus{}, err
	}

	status.OrderID = orderID
	status.Attempt = attempt
	if attempt > 0 {
		status.MaxAttempts = pm.maxAttempts
	}
	status.Message = describeStatus(status)
	pm.updateMetrics(status.Classification, elapsed, nil)

	if pm.ledger.Record(status) {
		utils.Info(logrus.Fields{
			"order_id":       orderID,
			"classification": status.Classification,
			"attempt":        attempt,
		}).Info("payment reached terminal state")
	}
	return status, nil
}

func (pm *PaymentMonitor) pendingFromError(orderID string, attempt int, err error) models.PaymentStatus {
	utils.Error(logrus.Fields{"order_id": orderID, "attempt": attempt}).
		Warnf("payment gateway unavailable, will retry: %v", err)

	status := models.PaymentStatus{
		OrderID:        orderID,
		Classification: models.ClassificationPending,
		Reason:         reasonOf(err),
		Attempt:        attempt,
		MaxAttempts:    pm.maxAttempts,
		CheckedAt:      pm.now(),
	}
	status.Message = describeStatus(status)
	return status
}

func (pm *PaymentMonitor) failedFromError(orderID string, attempt int, err error) models.PaymentStatus {
	kind := KindOf(err)
	if kind == "" {
		kind = KindGatewayProtocolError
	}
	utils.Error(logrus.Fields{"order_id": orderID, "attempt": attempt, "kind": kind}).
		Errorf("payment reconciliation stopped: %v", err)

	status := models.PaymentStatus{
		OrderID:        orderID,
		Classification: models.ClassificationFailed,
		FailureKind:    string(kind),
		Reason:         reasonOf(err),
		Attempt:        attempt,
		MaxAttempts:    pm.maxAttempts,
		CheckedAt:      pm.now(),
	}
	status.Message = describeStatus(status)
	return status
}

func (pm *PaymentMonitor) timedOut(orderID string, attempt int) models.PaymentStatus {
	pm.mutex.Lock()
	pm.metrics.Timeouts++
	pm.mutex.Unlock()

	utils.Error(logrus.Fields{"order_id": orderID, "attempt": attempt}).
		Warn("payment still pending after the last attempt")

	status := models.PaymentStatus{
		OrderID:        orderID,
		Classification: models.ClassificationFailed,
		FailureKind:    string(KindTimeout),
		Reason:         fmt.Sprintf("payment still pending after %d checks", attempt),
		Attempt:        attempt,
		MaxAttempts:    pm.maxAttempts,
		CheckedAt:      pm.now(),
	}
	status.Message = describeStatus(status)
	return status
}

func reasonOf(err error) string {
	var pe *PaymentError
	if errors.As(err, &pe) && pe.Reason != "" {
		return pe.Reason
	}
	return err.Error()
}

// describeStatus is the user-facing line for a status. Every terminal outcome
// reads differently.
func describeStatus(s models.PaymentStatus) string {
	switch s.Classification {
	case models.ClassificationSuccessful:
		return fmt.Sprintf("Payment of %s confirmed (UTR %s)", utils.FormatINR(models.LookupFeeMinorUnits), s.UTR)
	case models.ClassificationPending:
		if s.MaxAttempts > 0 {
			return fmt.Sprintf("Waiting for payment confirmation (attempt %d of %d)", s.Attempt, s.MaxAttempts)
		}
		return "Waiting for payment confirmation"
	}

	switch s.FailureKind {
	case string(KindTimeout):
		return "We could not confirm your payment in time. If money was deducted, check your UPI app before trying again."
	case FailureVendorDeclined:
		return "Payment failed. You can start a new payment to try again."
	default:
		return "Payment failed: we could not read the payment status. If money was deducted, check your UPI app before trying again."
	}
}

// updateMetrics records one gateway round trip.
func (pm *PaymentMonitor) updateMetrics(class models.Classification, elapsed time.Duration, err error) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	pm.metrics.TotalChecks++
	pm.totalDuration += elapsed
	pm.metrics.AvgResponseTime = pm.totalDuration.Milliseconds() / pm.metrics.TotalChecks

	if err != nil {
		pm.metrics.GatewayErrors++
		return
	}
	switch class {
	case models.ClassificationSuccessful:
		pm.metrics.SuccessfulPayments++
	case models.ClassificationFailed:
		pm.metrics.FailedPayments++
	case models.ClassificationPending:
		pm.metrics.PendingPayments++
	}
}

// GetMetrics returns a snapshot of the counters.
func (pm *PaymentMonitor) GetMetrics() PaymentMetrics {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	return pm.metrics
}
