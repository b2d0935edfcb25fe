package model

import (
	"math"

	"github.com/guregu/null/v6"
)

// Severity is the band a discrepancy falls into.
type Severity string

const (
	SeverityGreen  Severity = "green"
	SeverityYellow Severity = "yellow"
	SeverityRed    Severity = "red"
)

// DiffKind selects how two values are compared.
type DiffKind int

const (
	// Absolute is |our - external|.
	Absolute DiffKind = iota
	// RelativeToMax is |our - external| / max(|our|, |external|).
	RelativeToMax
	// RelativeToMean is |our - external| / mean(|our|, |external|).
	RelativeToMean
)

// Rule holds the comparison policy and severity bands of one reconciled metric.
type Rule struct {
	Metric string
	Kind   DiffKind
	Green  float64 // upper bound, inclusive
	Yellow float64 // upper bound, inclusive
	// Notes explain a yellow or red discrepancy to the reader.
	YellowNote string
	RedNote    string
}

// Difference compares our value with the external one according to the rule.
// Two zeros compare as equal under the relative kinds.
func (r Rule) Difference(our, external float64) float64 {
	diff := math.Abs(our - external)
	var ref float64
	switch r.Kind {
	case RelativeToMax:
		ref = math.Max(math.Abs(our), math.Abs(external))
	case RelativeToMean:
		ref = (math.Abs(our) + math.Abs(external)) / 2
	default:
		return diff
	}
	if ref == 0 {
		return 0
	}
	return diff / ref
}

// Classify maps a difference to its severity band.
func (r Rule) Classify(diff float64) Severity {
	switch {
	case diff <= r.Green:
		return SeverityGreen
	case diff <= r.Yellow:
		return SeverityYellow
	default:
		return SeverityRed
	}
}

// ValidationRecord compares one metric between our computation and an external source.
// Difference is invalid when either side is missing.
type ValidationRecord struct {
	Metric     string     `json:"metric"`
	Our        null.Float `json:"our_value"`
	External   null.Float `json:"external_value"`
	Difference null.Float `json:"difference"`
	Source     string     `json:"source,omitempty"`
	Rule       Rule       `json:"-"`
}

// Severity classifies the record. ok is false when there is nothing to classify.
func (v ValidationRecord) Severity() (sev Severity, ok bool) {
	if !v.Difference.Valid {
		return "", false
	}
	return v.Rule.Classify(v.Difference.Float64), true
}

// Note returns the explanatory note for yellow and red records.
func (v ValidationRecord) Note() string {
	sev, ok := v.Severity()
	if !ok {
		return ""
	}
	switch sev {
	case SeverityYellow:
		return v.Rule.YellowNote
	case SeverityRed:
		return v.Rule.RedNote
	}
	return ""
}
