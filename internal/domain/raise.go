package domain

import "time"

// Raise is one funding-round record parsed from an external feed into
// canonical shape. It is read-only input, not a stored entity.
type Raise struct {
	ProjectName string
	Round       string
	AmountUSD   *float64
	AnnouncedOn *time.Time
	Investors   []string
	SourceURL   string
	Category    string
	Sector      string
	Chains      []string
	Valuation   *float64
}
