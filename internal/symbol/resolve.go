// Package symbol maps generic tickers to broker-tradable symbol names.
//
// Brokers commonly list instruments under a suffixed name (EURUSD.pro,
// EURUSDm); the suffix is account-specific configuration. Resolution is a
// pure string operation applied exactly once per signal; whether the
// resolved name actually trades is the terminal's SymbolInfo call to answer.
package symbol

// Resolve appends the configured suffix to a raw ticker. An empty suffix
// returns the ticker unchanged.
func Resolve(raw, suffix string) string {
	if suffix == "" {
		return raw
	}
	return raw + suffix
}
