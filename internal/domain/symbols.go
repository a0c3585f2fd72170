package domain

import "strings"

// SymbolTable maps canonical asset symbols to venue-local tickers.
type SymbolTable map[Venue]map[string]string

// Local returns the venue ticker for a canonical symbol. Unmapped symbols pass through.
func (t SymbolTable) Local(venue Venue, symbol string) string {
	if local, ok := t[venue][strings.ToUpper(symbol)]; ok {
		return local
	}
	return symbol
}

// LocalPair translates both legs of a pair for venue.
func (t SymbolTable) LocalPair(venue Venue, pair Pair) Pair {
	return Pair{From: t.Local(venue, pair.From), To: t.Local(venue, pair.To)}
}

// Set registers a translation.
func (t SymbolTable) Set(venue Venue, canonical, local string) {
	if t[venue] == nil {
		t[venue] = make(map[string]string)
	}
	t[venue][strings.ToUpper(canonical)] = local
}
