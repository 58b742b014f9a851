package enums

import "fmt"

// OrderStatus tracks the lifecycle of a marketplace credit order.
type OrderStatus string

const (
	OrderStatusPendingVendor  OrderStatus = "pending_vendor"
	OrderStatusReadyForPickup OrderStatus = "ready_for_pickup"
	OrderStatusVendorSettled  OrderStatus = "vendor_settled"
	OrderStatusGoodsReceived  OrderStatus = "goods_received"
	OrderStatusCompleted      OrderStatus = "completed"
	OrderStatusRepaid         OrderStatus = "repaid"
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusDefaulted      OrderStatus = "defaulted"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPendingVendor,
	OrderStatusReadyForPickup,
	OrderStatusVendorSettled,
	OrderStatusGoodsReceived,
	OrderStatusCompleted,
	OrderStatusRepaid,
	OrderStatusCancelled,
	OrderStatusDefaulted,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
