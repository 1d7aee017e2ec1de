// Package signal validates and normalizes inbound webhook payloads into
// strongly-typed trade signals. It never touches the terminal: everything
// here is pure and synchronous.
package signal

import (
	"fmt"
	"strconv"
	"strings"

	"mtbridge/internal/domain"
)

// Payload is the raw inbound signal as delivered by the webhook listener.
// All values are untrusted; numbers may arrive as JSON numbers or strings.
type Payload struct {
	Symbol     string `json:"symbol"`
	Action     string `json:"action"`
	Volume     any    `json:"volume,omitempty"`
	StopLoss   any    `json:"stop_loss,omitempty"`
	TakeProfit any    `json:"take_profit,omitempty"`
	Ticket     any    `json:"ticket,omitempty"`
}

// Defaults holds the configured fallback values applied during
// normalization.
type Defaults struct {
	Volume         float64
	StopLossPips   float64
	TakeProfitPips float64
}

// ValidationKind classifies why a payload was rejected.
type ValidationKind string

const (
	KindMissingField         ValidationKind = "missing_field"
	KindUnknownAction        ValidationKind = "unknown_action"
	KindInvalidVolume        ValidationKind = "invalid_volume"
	KindInvalidRiskParameter ValidationKind = "invalid_risk_parameter"
	KindInvalidTicket        ValidationKind = "invalid_ticket"
)

// ValidationError reports a malformed or incomplete inbound signal.
type ValidationError struct {
	Kind  ValidationKind
	Field string
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case KindMissingField:
		return fmt.Sprintf("missing required field %q", e.Field)
	case KindUnknownAction:
		return fmt.Sprintf("unknown action %q", e.Field)
	case KindInvalidVolume:
		return "volume is not a positive number"
	case KindInvalidRiskParameter:
		return fmt.Sprintf("field %q is not numeric", e.Field)
	case KindInvalidTicket:
		return "ticket is not an integer"
	}
	return "invalid signal"
}

// Normalize parses the raw payload into a TradeSignal, applying defaults for
// absent or non-positive volume and for unset stop-loss/take-profit
// distances. Validation rules are applied in order: required fields, action,
// volume, risk parameters.
func Normalize(p Payload, d Defaults) (domain.TradeSignal, error) {
	var sig domain.TradeSignal

	sym := strings.TrimSpace(p.Symbol)
	if sym == "" {
		return sig, &ValidationError{Kind: KindMissingField, Field: "symbol"}
	}
	if strings.TrimSpace(p.Action) == "" {
		return sig, &ValidationError{Kind: KindMissingField, Field: "action"}
	}

	action, ok := domain.ParseAction(p.Action)
	if !ok {
		return sig, &ValidationError{Kind: KindUnknownAction, Field: p.Action}
	}

	volume, present, err := parseNumber(p.Volume)
	if err != nil {
		return sig, &ValidationError{Kind: KindInvalidVolume, Field: "volume"}
	}
	if !present || volume <= 0 {
		volume = d.Volume
	}

	stopLoss, present, err := parseNumber(p.StopLoss)
	if err != nil {
		return sig, &ValidationError{Kind: KindInvalidRiskParameter, Field: "stop_loss"}
	}
	if !present {
		stopLoss = d.StopLossPips
	}

	takeProfit, present, err := parseNumber(p.TakeProfit)
	if err != nil {
		return sig, &ValidationError{Kind: KindInvalidRiskParameter, Field: "take_profit"}
	}
	if !present {
		takeProfit = d.TakeProfitPips
	}

	ticket, present, err := parseNumber(p.Ticket)
	if err != nil || (present && ticket != float64(int64(ticket))) {
		return sig, &ValidationError{Kind: KindInvalidTicket, Field: "ticket"}
	}

	sig = domain.TradeSignal{
		Symbol:         sym,
		Action:         action,
		Volume:         volume,
		StopLossPips:   stopLoss,
		TakeProfitPips: takeProfit,
		Ticket:         int64(ticket),
	}
	return sig, nil
}

// parseNumber coerces a JSON value that may be a number or a numeric string.
// Returns present=false for nil and empty strings; err for values that are
// present but not numeric.
func parseNumber(v any) (value float64, present bool, err error) {
	switch n := v.(type) {
	case nil:
		return 0, false, nil
	case float64:
		return n, true, nil
	case int:
		return float64(n), true, nil
	case int64:
		return float64(n), true, nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false, nil
		}
		f, perr := strconv.ParseFloat(s, 64)
		if perr != nil {
			return 0, true, perr
		}
		return f, true, nil
	default:
		return 0, true, fmt.Errorf("unsupported value type %T", v)
	}
}
