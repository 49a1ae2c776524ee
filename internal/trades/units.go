package trades

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// openSeaDateLayouts are the created_date shapes seen from the API. OpenSea
// omits the zone, the timestamps are UTC.
var openSeaDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseEventDate parses an event's created_date as UTC
func ParseEventDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range openSeaDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized event date %q", s)
}

// ToCurrency converts an integer amount in the token's smallest unit to a
// decimal currency value, i.e. divides by 10^decimals.
func ToCurrency(amount string, decimals int) (decimal.Decimal, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if !d.Equal(d.Truncate(0)) {
		return decimal.Zero, fmt.Errorf("amount %q is not an integer", amount)
	}
	return d.Shift(-int32(decimals)), nil
}
