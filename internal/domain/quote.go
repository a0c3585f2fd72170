package domain

import "github.com/shopspring/decimal"

// Quote last traded price of a pair on a venue.
type Quote struct {
	Venue Venue
	Price decimal.Decimal
}

// FeeQuote trading fees of a venue, in percent (0.1 means 0.1%).
type FeeQuote struct {
	Venue        Venue
	MakerPercent decimal.Decimal
	TakerPercent decimal.Decimal
}

// VenueQuote price and fee snapshot of one venue within a tick.
type VenueQuote struct {
	Quote
	Fee FeeQuote
}

// RankedPair two venues ordered by price: Sell holds the higher price, Buy the lower.
type RankedPair struct {
	Sell VenueQuote
	Buy  VenueQuote
}

// Spread returns sell price minus buy price.
func (r RankedPair) Spread() decimal.Decimal {
	return r.Sell.Price.Sub(r.Buy.Price)
}

// Balance account balance of one asset.
type Balance struct {
	Asset  string
	Free   decimal.Decimal
	Locked decimal.Decimal
}
