package domain

// Venue identifies one exchange account (trading and wallet service).
type Venue string

// String returns the string representation.
func (v Venue) String() string {
	return string(v)
}
