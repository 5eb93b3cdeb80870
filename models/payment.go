package models

import "time"

// Classification is the only payment state the rest of the system acts on.
type Classification string

const (
	ClassificationPending    Classification = "pending"
	ClassificationSuccessful Classification = "successful"
	ClassificationFailed     Classification = "failed"
)

// Raw txnStatus values reported by the gateway.
const (
	TxnStatusSuccess   = "SUCCESS"
	TxnStatusPending   = "PENDING"
	TxnStatusFailed    = "FAILED"
	TxnStatusCancelled = "CANCELLED"
)

// IsTerminal reports whether no further polling may change the classification.
func (c Classification) IsTerminal() bool {
	return c == ClassificationSuccessful || c == ClassificationFailed
}

// PaymentStatus is the reconciled state of an order, recomputed from the
// latest gateway response on every poll.
type PaymentStatus struct {
	OrderID        string         `json:"orderId"`
	RawTxnStatus   string         `json:"txnStatus,omitempty"`
	UTR            string         `json:"utr,omitempty"`
	Amount         string         `json:"amount,omitempty"`
	Date           string         `json:"date,omitempty"`
	Classification Classification `json:"classification"`

	// FailureKind is set on Failed statuses: "vendor_declined" for a status
	// reported by the gateway, otherwise the error kind that ended polling
	// (timeout, gateway_protocol_error, status_check_failed).
	FailureKind string `json:"failureKind,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Message     string `json:"message,omitempty"`

	Attempt     int       `json:"attempt"`
	MaxAttempts int       `json:"maxAttempts,omitempty"`
	CheckedAt   time.Time `json:"checkedAt"`
}

// Successful reports whether the payment unlocks the paid lookup.
func (s PaymentStatus) Successful() bool {
	return s.Classification == ClassificationSuccessful
}
