package id

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// New returns a fresh random identifier.
func New() string {
	return uuid.NewString()
}

// FormatVoucherNo returns a voucher number like "JV-2025-0001".
func FormatVoucherNo(prefix string, year, seq int) string {
	return fmt.Sprintf("%s-%04d-%04d", prefix, year, seq)
}

// ParseVoucherNo parses "JV-2025-0001" into prefix, year, seq.
func ParseVoucherNo(no string) (prefix string, year, seq int, err error) {
	parts := strings.Split(no, "-")
	if len(parts) != 3 || parts[0] == "" {
		return "", 0, 0, fmt.Errorf("invalid voucher number format: %q", no)
	}

	year, err = strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid year in voucher number %q: %w", no, err)
	}

	seq, err = strconv.Atoi(parts[2])
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid sequence in voucher number %q: %w", no, err)
	}
	if seq < 1 {
		return "", 0, 0, fmt.Errorf("invalid sequence in voucher number %q: must be positive", no)
	}

	return parts[0], year, seq, nil
}
