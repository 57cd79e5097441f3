package store

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"time"
)

// SkipReason explains why a log line did not produce an Alert.
type SkipReason string

const (
	SkipEmpty        SkipReason = "empty"
	SkipMalformed    SkipReason = "malformed"
	SkipMissingField SkipReason = "missing_field"
	SkipInvalidValue SkipReason = "invalid_value"
)

// ParseResult is the outcome of parsing one log line: either OK with an
// Alert, or a skip Reason (and the offending Field, when there is one).
type ParseResult struct {
	OK     bool
	Alert  Alert
	Reason SkipReason
	Field  string
}

// rawAlert mirrors the log line with pointers so absent fields are detectable.
type rawAlert struct {
	Platform       *string         `json:"platform"`
	AlertType      *string         `json:"alert_type"`
	Action         *string         `json:"action"`
	Value          *float64        `json:"value"`
	PricePercent   *float64        `json:"price_percent"`
	Price          *float64        `json:"price"`
	Size           *float64        `json:"size"`
	MarketTitle    *string         `json:"market_title"`
	Outcome        *string         `json:"outcome"`
	Timestamp      *string         `json:"timestamp"`
	WalletID       *string         `json:"wallet_id"`
	WalletActivity json.RawMessage `json:"wallet_activity"`
}

// ParseLine turns one JSON-Lines record into an Alert. It never panics and
// never returns an error: bad lines come back with OK false.
func ParseLine(line []byte) ParseResult {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return skip(SkipEmpty, "")
	}
	if line[0] != '{' {
		return skip(SkipMalformed, "")
	}

	var raw rawAlert
	if err := json.Unmarshal(line, &raw); err != nil {
		return skip(SkipMalformed, "")
	}

	switch {
	case isBlank(raw.Platform):
		return skip(SkipMissingField, "platform")
	case isBlank(raw.AlertType):
		return skip(SkipMissingField, "alert_type")
	case isBlank(raw.Timestamp):
		return skip(SkipMissingField, "timestamp")
	case raw.Value == nil:
		return skip(SkipMissingField, "value")
	}

	if *raw.Value < 0 || math.IsNaN(*raw.Value) || math.IsInf(*raw.Value, 0) {
		return skip(SkipInvalidValue, "value")
	}

	alert := Alert{
		Platform:    *raw.Platform,
		AlertType:   *raw.AlertType,
		Action:      deref(raw.Action),
		Value:       *raw.Value,
		Price:       raw.Price,
		Size:        raw.Size,
		MarketTitle: deref(raw.MarketTitle),
		Outcome:     deref(raw.Outcome),
		Timestamp:   *raw.Timestamp,
		WalletID:    deref(raw.WalletID),
	}
	if raw.PricePercent != nil {
		alert.PricePercent = *raw.PricePercent
	}
	if len(raw.WalletActivity) > 0 && !bytes.Equal(raw.WalletActivity, []byte("null")) {
		alert.WalletActivity = raw.WalletActivity
	}

	return ParseResult{OK: true, Alert: alert}
}

func skip(reason SkipReason, field string) ParseResult {
	return ParseResult{Reason: reason, Field: field}
}

func isBlank(s *string) bool {
	return s == nil || *s == ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// stamp is a timestamp parsed once for ordering.
type stamp struct {
	raw string
	t   time.Time
	ok  bool
}

func parseStamp(s string) stamp {
	t, err := time.Parse(time.RFC3339Nano, s)
	return stamp{raw: s, t: t, ok: err == nil}
}

// compare is a total order over stamps: parsed stamps chronologically, every
// parsed stamp after every unparsed one, and unparsed stamps by string.
func (a stamp) compare(b stamp) int {
	switch {
	case a.ok && b.ok:
		return a.t.Compare(b.t)
	case a.ok:
		return 1
	case b.ok:
		return -1
	}
	return strings.Compare(a.raw, b.raw)
}

// notBefore reports whether a is at or after bound. Two parsed stamps compare
// chronologically, anything else by string, so a date-only bound like
// "2024-01-02" still filters RFC 3339 stamps.
func (a stamp) notBefore(bound stamp) bool {
	if a.ok && bound.ok {
		return !a.t.Before(bound.t)
	}
	return a.raw >= bound.raw
}
