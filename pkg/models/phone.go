package models

import (
	"regexp"
	"strings"
)

// Kyrgyzstan mobile number: +996 or a leading 0, then nine digits.
var phonePattern = regexp.MustCompile(`^(\+996|0)\d{9}$`)

// NormalizePhone strips whitespace, validates the number and rewrites the
// local 0-prefix form to the international one. The second return is false
// when the input does not look like a Kyrgyz mobile number.
func NormalizePhone(raw string) (string, bool) {
	phone := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	if !phonePattern.MatchString(phone) {
		return "", false
	}
	if strings.HasPrefix(phone, "0") {
		phone = "+996" + phone[1:]
	}
	return phone, true
}
