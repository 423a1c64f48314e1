package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

const paymentIDRandomBytes = 4

// BillingPeriod returns the YYYYMM key bill numbers are sequenced under.
func BillingPeriod(now time.Time) string {
	return now.UTC().Format("200601")
}

// FormatBillNumber renders {PREFIX}{YYYY}{MM}{SEQ:04d}. Sequences beyond
// 9999 keep all their digits.
func FormatBillNumber(kind BillKind, now time.Time, seq int64) string {
	return fmt.Sprintf("%s%s%04d", kind.NumberPrefix(), BillingPeriod(now), seq)
}

// NewPaymentID returns PAY{epochMillis}{8 lowercase hex chars}.
func NewPaymentID(now time.Time) (string, error) {
	return newPaymentID(now, rand.Reader)
}

func newPaymentID(now time.Time, r io.Reader) (string, error) {
	buf := make([]byte, paymentIDRandomBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read payment id entropy: %w", err)
	}
	return fmt.Sprintf("PAY%d%s", now.UnixMilli(), hex.EncodeToString(buf)), nil
}
