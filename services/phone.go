package services

import (
	"errors"
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// ErrInvalidPhone is returned when a number cannot be put in E.164 form.
var ErrInvalidPhone = errors.New("invalid phone number")

// NormalizePhone converts a phone number to E.164. Numbers written nationally
// are read in the region that owns countryCode (calling code without "+").
// The function is idempotent on its own output.
func NormalizePhone(raw, countryCode string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidPhone
	}

	num, err := phonenumbers.Parse(raw, regionForCallingCode(countryCode))
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalidPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func regionForCallingCode(countryCode string) string {
	code, err := strconv.Atoi(strings.TrimPrefix(countryCode, "+"))
	if err != nil {
		return phonenumbers.UNKNOWN_REGION
	}
	return phonenumbers.GetRegionCodeForCountryCode(code)
}
