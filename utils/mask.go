package utils

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// MaskMobile keeps the first two and last two digits of a mobile number.
func MaskMobile(mobile string) string {
	if len(mobile) <= 4 {
		return strings.Repeat("*", len(mobile))
	}
	return mobile[:2] + strings.Repeat("*", len(mobile)-4) + mobile[len(mobile)-2:]
}

// MobileFingerprint is a stable, non-reversible id for correlating log lines
// of the same payer without logging the number itself.
func MobileFingerprint(mobile string) string {
	sum := blake2b.Sum256([]byte(mobile))
	return hex.EncodeToString(sum[:6])
}
