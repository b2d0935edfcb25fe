package calculator

import "fmt"

// InsufficientDataError is returned when a series is shorter than a computation requires.
type InsufficientDataError struct {
	Symbol string
	Need   int
	Have   int
}

func (e *InsufficientDataError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("insufficient data: need %d records, have %d", e.Need, e.Have)
	}
	return fmt.Sprintf("insufficient data for %s: need %d records, have %d", e.Symbol, e.Need, e.Have)
}
