package enums

import "fmt"

// PurchaseStatus tracks the lifecycle of an agent-assisted purchase.
type PurchaseStatus string

const (
	PurchaseStatusDraft                PurchaseStatus = "draft"
	PurchaseStatusAwaitingRetailer     PurchaseStatus = "awaiting_retailer_confirm"
	PurchaseStatusPendingAdminApproval PurchaseStatus = "pending_admin_approval"
	PurchaseStatusFundDisbursed        PurchaseStatus = "fund_disbursed"
	PurchaseStatusDelivered            PurchaseStatus = "delivered"
	PurchaseStatusReceived             PurchaseStatus = "received"
	PurchaseStatusCompleted            PurchaseStatus = "completed"
	PurchaseStatusDeclined             PurchaseStatus = "declined"
	PurchaseStatusExpired              PurchaseStatus = "expired"
)

var validPurchaseStatuses = []PurchaseStatus{
	PurchaseStatusDraft,
	PurchaseStatusAwaitingRetailer,
	PurchaseStatusPendingAdminApproval,
	PurchaseStatusFundDisbursed,
	PurchaseStatusDelivered,
	PurchaseStatusReceived,
	PurchaseStatusCompleted,
	PurchaseStatusDeclined,
	PurchaseStatusExpired,
}

// String implements fmt.Stringer.
func (p PurchaseStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PurchaseStatus.
func (p PurchaseStatus) IsValid() bool {
	for _, candidate := range validPurchaseStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePurchaseStatus converts raw input into a PurchaseStatus.
func ParsePurchaseStatus(value string) (PurchaseStatus, error) {
	for _, candidate := range validPurchaseStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid purchase status %q", value)
}
