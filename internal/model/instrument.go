package model

import "strconv"

// InstrumentKey identifies one chart pipeline instance. Every assembler,
// indicator engine and renderer series belongs to exactly one key; state
// must never leak between keys.
type InstrumentKey struct {
	Market    string `json:"market"`
	Symbol    string `json:"symbol"`
	TFSeconds int64  `json:"tf"` // timeframe in seconds (60 = 1 minute)
}

// String returns "market:symbol:tf" for map keys and log lines.
func (k InstrumentKey) String() string {
	return k.Market + ":" + k.Symbol + ":" + strconv.FormatInt(k.TFSeconds, 10)
}
