// Package reference encodes and decodes the merchant-assigned payment
// reference that ties a provider transaction back to an order.
package reference

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Prefix identifies references issued by this integration.
const Prefix = "KLP"

var ErrMalformedReference = errors.New("malformed payment reference")

// Issue builds a reference of the form KLP_<orderID>_<unixTimestamp>.
// Uniqueness beyond second granularity is not guaranteed; references are
// only ever compared for equality.
func Issue(orderID int64, now time.Time) string {
	return fmt.Sprintf("%s_%d_%d", Prefix, orderID, now.Unix())
}

// ParseOrderID extracts the order id from a reference.
func ParseOrderID(ref string) (int64, error) {
	parts := strings.Split(ref, "_")
	if len(parts) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedReference, ref)
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedReference, ref)
	}
	return id, nil
}

// Matches reports whether the reference reported by the provider is the one
// this order issued. This is the sole anti-spoofing gate on the redirect
// path; the webhook path relies on signature verification instead.
func Matches(issued, reported string) bool {
	return issued != "" && issued == reported
}
