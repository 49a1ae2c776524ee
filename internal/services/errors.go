package services

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrUpstreamUnavailable matches every failure to get data out of OpenSea:
	// transport errors, non-200 statuses and throttle/error-shaped bodies.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrInvalidAddress is returned for anything that is not a 0x-prefixed 20-byte hex address
	ErrInvalidAddress = errors.New("invalid wallet address")

	// ErrInvalidSlug is returned for empty or malformed collection slugs
	ErrInvalidSlug = errors.New("invalid collection slug")

	errNotFound = errors.New("not found")
)

// UpstreamError describes a failed OpenSea call
type UpstreamError struct {
	Endpoint   string
	StatusCode int    // 0 for transport failures and error bodies on 200
	Detail     string // OpenSea "detail" message or a body excerpt
	Err        error
}

func (e *UpstreamError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "opensea %s", e.Endpoint)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrUpstreamUnavailable) true for every UpstreamError
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

// Throttled reports whether OpenSea rejected the call for rate limiting
func (e *UpstreamError) Throttled() bool {
	return e.StatusCode == 429 || strings.Contains(strings.ToLower(e.Detail), "throttled")
}

var (
	addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	slugPattern    = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,127}$`)
)

// NormalizeAddress validates an Ethereum address and lowercases it
func NormalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if !addressPattern.MatchString(address) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return strings.ToLower(address), nil
}

// NormalizeSlug validates a collection slug
func NormalizeSlug(slug string) (string, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if !slugPattern.MatchString(slug) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSlug, slug)
	}
	return slug, nil
}

// ErrCollectionNotFound is returned when OpenSea has no collection for a slug
var ErrCollectionNotFound = errors.New("collection not found")

// ErrWalletNotTracked is returned when removing a wallet that is not tracked
var ErrWalletNotTracked = errors.New("wallet not tracked")
