package domain

// Side is the direction of a spot market order.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

// String returns the string representation of the side
func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}
