package domain

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentApproved  PaymentStatus = "APPROVED"
	PaymentRejected  PaymentStatus = "REJECTED"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

// PaymentStatusFromGateway maps the gateway's status vocabulary onto the
// local one. Anything the gateway reports that we do not recognize stays
// PENDING (in_process, authorized, pending, ...).
func PaymentStatusFromGateway(s string) PaymentStatus {
	switch s {
	case "approved":
		return PaymentApproved
	case "cancelled":
		return PaymentCancelled
	case "rejected":
		return PaymentRejected
	default:
		return PaymentPending
	}
}

// Terminal reports whether the status is final. A terminal payment is never
// re-submitted to the gateway and never overwritten by a stale notification.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentApproved || s == PaymentRejected || s == PaymentCancelled
}
