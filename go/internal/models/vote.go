package models

import (
	"encoding/json"
	"strconv"
)

// Vote is a canonical estimate value. Numeric votes hold their decimal string
// form ("5", "13"); sentinels hold their symbol.
type Vote string

const (
	VoteUnknown  Vote = "?"
	VoteInfinity Vote = "∞"
)

// Numeric reports the integer value of the vote, if it has one.
func (v Vote) Numeric() (int, bool) {
	n, err := strconv.Atoi(string(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

// MarshalJSON writes numeric votes as JSON numbers and sentinels as strings.
func (v Vote) MarshalJSON() ([]byte, error) {
	if n, ok := v.Numeric(); ok {
		return []byte(strconv.Itoa(n)), nil
	}
	return json.Marshal(string(v))
}
