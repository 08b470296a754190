package action

import (
	"encoding/hex"
	"regexp"
	"strconv"
)

var peerAddrRE = regexp.MustCompile(`^(\d{1,3})\.(\d{1,3})\.(\d{1,3})\.(\d{1,3}):(\d{4})$`)

// ValidatePeerAddress accepts A.B.C.D:PPPP with every octet in 0..255 and a
// port of exactly four digits.
func ValidatePeerAddress(addr string) error {
	m := peerAddrRE.FindStringSubmatch(addr)
	if m == nil {
		return &ValidationError{Field: "peer address", Value: addr, Reason: "expected A.B.C.D:PPPP"}
	}
	for _, octet := range m[1:5] {
		if v, _ := strconv.Atoi(octet); v > 255 {
			return &ValidationError{Field: "peer address", Value: addr, Reason: "octet " + octet + " out of range"}
		}
	}
	return nil
}

func validateHash(hash string) error {
	if hash == "" {
		return &ValidationError{Field: "hash", Value: hash, Reason: "required"}
	}
	if _, err := hex.DecodeString(hash); err != nil {
		return &ValidationError{Field: "hash", Value: hash, Reason: "not hexadecimal"}
	}
	return nil
}
