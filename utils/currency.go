package utils

import (
	"fmt"
	"strings"
)

// FormatINR formats an amount in paise using Indian digit grouping.
// Example: 12345650 -> "₹1,23,456.50", 5000 -> "₹50"
func FormatINR(paise int64) string {
	sign := ""
	if paise < 0 {
		sign = "-"
		paise = -paise
	}
	rupees := paise / 100
	fraction := paise % 100

	digits := fmt.Sprintf("%d", rupees)

	// Last three digits form one group, the rest are grouped in twos
	var groups []string
	if len(digits) > 3 {
		head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
		for len(head) > 2 {
			groups = append([]string{head[len(head)-2:]}, groups...)
			head = head[:len(head)-2]
		}
		groups = append([]string{head}, groups...)
		groups = append(groups, tail)
	} else {
		groups = []string{digits}
	}

	out := sign + "₹" + strings.Join(groups, ",")
	if fraction > 0 {
		out += fmt.Sprintf(".%02d", fraction)
	}
	return out
}
