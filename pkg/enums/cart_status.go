package enums

import "slices"

// CartStatus is the lifecycle of a cart row. Only CART accepts mutations;
// PLACED and MERGED never change again.
type CartStatus string

const (
	CartStatusCart   CartStatus = "CART"
	CartStatusPlaced CartStatus = "PLACED"
	CartStatusMerged CartStatus = "MERGED"
)

var cartStatuses = []CartStatus{CartStatusCart, CartStatusPlaced, CartStatusMerged}

func (c CartStatus) String() string { return string(c) }

func (c CartStatus) IsValid() bool { return slices.Contains(cartStatuses, c) }

func (c CartStatus) IsTerminal() bool {
	return c == CartStatusPlaced || c == CartStatusMerged
}

// ParseCartStatus is case sensitive; stored values are upper case.
func ParseCartStatus(value string) (CartStatus, error) {
	return parse("cart status", cartStatuses, value)
}
