package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/rto-lookup/models"
	"github.com/yeremiapane/rto-lookup/utils"
)

// OrderCreator creates gateway payment orders. redirectBase is the public
// base URL the payer is sent back to.
type OrderCreator interface {
	CreateOrder(ctx context.Context, vehicleNumber, mobile, redirectBase string) (*models.Order, error)
}

// Reconciler drives an order to a terminal payment state.
type Reconciler interface {
	PollUntilTerminal(ctx context.Context, orderID string, emit func(models.PaymentStatus)) (models.PaymentStatus, error)
	CheckOnce(ctx context.Context, orderID string) (models.PaymentStatus, error)
}

// VehicleLookup fetches registry records.
type VehicleLookup interface {
	Lookup(ctx context.Context, vehicleNumber string) (*models.VehicleLookupResult, error)
}

// TokenIssuer signs unlock tokens for paid lookups.
type TokenIssuer interface {
	Generate(orderID, vehicleNumber, utr string) (string, error)
}

// LookupOutcome is the result of a lookup session.
type LookupOutcome struct {
	Payment     models.PaymentStatus        `json:"payment"`
	UnlockToken string                      `json:"unlockToken,omitempty"`
	Vehicle     *models.VehicleLookupResult `json:"vehicle,omitempty"`
}

type sessionEntry struct {
	vehicleNumber string
	createdAt     time.Time
}

// LookupService runs a lookup session: one order, one reconciliation, and
// at most one paid registry call.
type LookupService struct {
	orders     OrderCreator
	reconciler Reconciler
	vehicles   VehicleLookup
	tokens     TokenIssuer

	sessionTTL time.Duration
	sessions   map[string]sessionEntry
	mutex      sync.Mutex
	now        func() time.Time
}

func NewLookupService(orders OrderCreator, reconciler Reconciler, vehicles VehicleLookup, tokens TokenIssuer, sessionTTL time.Duration) *LookupService {
	if sessionTTL <= 0 {
		sessionTTL = 2 * time.Hour
	}
	return &LookupService{
		orders:     orders,
		reconciler: reconciler,
		vehicles:   vehicles,
		tokens:     tokens,
		sessionTTL: sessionTTL,
		sessions:   make(map[string]sessionEntry),
		now:        time.Now,
	}
}

// StartLookup creates the payment order for a vehicle lookup.
func (s *LookupService) StartLookup(ctx context.Context, vehicleNumber, mobile, redirectBase string) (*models.Order, error) {
	vehicleNumber = NormalizeVehicleNumber(vehicleNumber)
	if vehicleNumber == "" {
		return nil, invalidInput(CauseEmptyVehicle, "vehicle number is required")
	}

	order, err := s.orders.CreateOrder(ctx, vehicleNumber, mobile, redirectBase)
	if err != nil {
		return nil, err
	}

	s.remember(order.OrderID, order.VehicleNumber)
	return order, nil
}

func (s *LookupService) remember(orderID, vehicleNumber string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	for id, entry := range s.sessions {
		if now.Sub(entry.createdAt) > s.sessionTTL {
			delete(s.sessions, id)
		}
	}
	s.sessions[orderID] = sessionEntry{vehicleNumber: vehicleNumber, createdAt: now}
}

// vehicleFor returns the vehicle number the order was created for. The
// client-supplied number is never trusted: an order this process did not
// start, or whose session expired, unlocks nothing.
func (s *LookupService) vehicleFor(orderID, claimed string) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, ok := s.sessions[orderID]
	if !ok || s.now().Sub(entry.createdAt) > s.sessionTTL {
		utils.Error(logrus.Fields{
			"order_id": orderID,
			"claimed":  NormalizeVehicleNumber(claimed),
		}).Warn("paid order has no lookup session, refusing unlock")
		return "", ErrVehicleLookupBlocked
	}
	if claimed != "" && NormalizeVehicleNumber(claimed) != entry.vehicleNumber {
		utils.Error(logrus.Fields{
			"order_id": orderID,
			"claimed":  NormalizeVehicleNumber(claimed),
			"ordered":  entry.vehicleNumber,
		}).Warn("vehicle number does not match the paid order")
	}
	return entry.vehicleNumber, nil
}

// CheckStatus is a single reconciliation step. A Successful status comes
// with an unlock token for the paid lookup.
func (s *LookupService) CheckStatus(ctx context.Context, orderID, vehicleNumber string) (*LookupOutcome, error) {
	status, err := s.reconciler.CheckOnce(ctx, orderID)
	if err != nil {
		return nil, err
	}
	outcome := &LookupOutcome{Payment: status}
	if status.Successful() {
		vehicle, err := s.vehicleFor(status.OrderID, vehicleNumber)
		if err != nil {
			return nil, err
		}
		if outcome.UnlockToken, err = s.issueToken(status, vehicle); err != nil {
			return nil, err
		}
	}
	return outcome, nil
}

// CompleteLookup reconciles the order and, once the payment is Successful,
// calls the registry exactly once. Any other terminal outcome returns the
// payment status without a registry call.
//
// A registry failure after a confirmed payment is returned alongside the
// outcome, whose UnlockToken lets the caller retry the lookup alone. An order
// without a lookup session returns the outcome with no token and
// ErrVehicleLookupBlocked.
func (s *LookupService) CompleteLookup(ctx context.Context, orderID, vehicleNumber string, emit func(models.PaymentStatus)) (*LookupOutcome, error) {
	status, err := s.reconciler.PollUntilTerminal(ctx, orderID, emit)
	if err != nil {
		return nil, err
	}

	outcome := &LookupOutcome{Payment: status}
	if !status.Successful() {
		return outcome, nil
	}

	vehicle, err := s.vehicleFor(status.OrderID, vehicleNumber)
	if err != nil {
		return outcome, err
	}
	if outcome.UnlockToken, err = s.issueToken(status, vehicle); err != nil {
		return nil, err
	}

	outcome.Vehicle, err = s.vehicles.Lookup(ctx, vehicle)
	if err != nil {
		utils.Error(logrus.Fields{"order_id": status.OrderID, "vehicle_number": vehicle}).
			Warnf("paid vehicle lookup failed: %v", err)
		return outcome, err
	}
	return outcome, nil
}

// LookupPaid runs the registry lookup an unlock token was issued for.
func (s *LookupService) LookupPaid(ctx context.Context, claims *utils.UnlockClaims) (*models.VehicleLookupResult, error) {
	if claims == nil || claims.OrderID == "" {
		return nil, ErrVehicleLookupBlocked
	}
	return s.vehicles.Lookup(ctx, claims.VehicleNumber)
}

func (s *LookupService) issueToken(status models.PaymentStatus, vehicleNumber string) (string, error) {
	if vehicleNumber == "" {
		return "", invalidInput(CauseEmptyVehicle, "vehicle number is required")
	}
	token, err := s.tokens.Generate(status.OrderID, vehicleNumber, status.UTR)
	if err != nil {
		return "", errors.Join(ErrVehicleLookupBlocked, err)
	}
	return token, nil
}
