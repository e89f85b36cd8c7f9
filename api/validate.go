package api

import (
	"bytes"
	"encoding/json"
	"strings"
)

const (
	// AddressPrefix is the first character of every account address.
	AddressPrefix = "G"

	// AddressLength is the exact length of an account address.
	AddressLength = 56
)

// validAddress checks address shape only. The checksum is not verified;
// the contract rejects addresses that do not decode.
func validAddress(addr string) bool {
	return strings.HasPrefix(addr, AddressPrefix) && len(addr) == AddressLength
}

// amountText returns a JSON string or number as text. Absent, null and
// empty-string values return "".
func amountText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return string(raw)
		}
		return strings.TrimSpace(s)
	}
	return string(raw)
}

// echo returns the value a client sent so it can be returned unchanged.
func echo(raw json.RawMessage) json.RawMessage {
	return json.RawMessage(bytes.TrimSpace(raw))
}
