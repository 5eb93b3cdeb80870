package services

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/rto-lookup/models"
	"github.com/yeremiapane/rto-lookup/utils"
)

type ledgerEntry struct {
	status    models.PaymentStatus
	expiresAt time.Time
}

// OrderLedger remembers the terminal status of recently reconciled orders so
// a settled order is never polled again and never changes its answer.
type OrderLedger struct {
	entries  map[string]ledgerEntry
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
	mutex    sync.RWMutex
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewOrderLedger(ttl time.Duration) *OrderLedger {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &OrderLedger{
		entries:  make(map[string]ledgerEntry),
		ttl:      ttl,
		interval: time.Hour,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Record stores a terminal status reported by the gateway. Pending statuses
// and failures the reconciler synthesised itself are ignored, so a later
// check can still observe what the gateway settles on.
func (l *OrderLedger) Record(status models.PaymentStatus) bool {
	if !status.Classification.IsTerminal() || status.OrderID == "" {
		return false
	}
	if status.Classification == models.ClassificationFailed && status.FailureKind != FailureVendorDeclined {
		return false
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	if existing, ok := l.entries[status.OrderID]; ok && l.now().Before(existing.expiresAt) {
		return false
	}
	l.entries[status.OrderID] = ledgerEntry{status: status, expiresAt: l.now().Add(l.ttl)}
	return true
}

// Lookup returns the recorded terminal status of an order, if still held.
func (l *OrderLedger) Lookup(orderID string) (models.PaymentStatus, bool) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	entry, ok := l.entries[orderID]
	if !ok || !l.now().Before(entry.expiresAt) {
		return models.PaymentStatus{}, false
	}
	return entry.status, true
}

func (l *OrderLedger) Len() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return len(l.entries)
}

// Sweep drops expired entries and returns how many were removed.
func (l *OrderLedger) Sweep() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := l.now()
	removed := 0
	for id, entry := range l.entries {
		if !now.Before(entry.expiresAt) {
			delete(l.entries, id)
			removed++
		}
	}
	return removed
}

// Start runs the sweeper until Stop is called.
func (l *OrderLedger) Start() {
	go func() {
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if removed := l.Sweep(); removed > 0 {
					utils.Info(logrus.Fields{"removed": removed}).Info("order ledger swept")
				}
			case <-l.stopChan:
				return
			}
		}
	}()
}

func (l *OrderLedger) Stop() {
	l.stopOnce.Do(func() { close(l.stopChan) })
}
