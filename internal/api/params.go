package api

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// decimalParam parses an optional decimal query parameter.
func decimalParam(raw, name string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid parameter %s", name)
	}
	return &d, nil
}

// intParam parses an optional integer query parameter.
func intParam(raw, name string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid parameter %s", name)
	}
	return &n, nil
}

// dateParam parses an optional YYYY-MM-DD or RFC3339 query parameter.
func dateParam(raw, name string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid parameter %s", name)
}
