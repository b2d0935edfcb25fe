package model

import "github.com/guregu/null/v6"

// BasicInfo is the reference data of a fund as reported by the market-data provider.
// ExpenseRatio and TotalAssets are invalid when the provider did not report them,
// which is not the same as a reported zero.
type BasicInfo struct {
	Symbol       string     `json:"symbol"`
	Name         string     `json:"name"`
	Category     string     `json:"category"`
	ExpenseRatio null.Float `json:"expense_ratio"`
	TotalAssets  null.Float `json:"total_assets"`
}

// ReferenceData is what an external source reports for a fund. Every field is best effort.
type ReferenceData struct {
	ExpenseRatio null.Float `json:"expense_ratio"`
	AUM          null.Float `json:"aum"`
	AvgVolume    null.Float `json:"avg_volume"`
	Spread       null.Float `json:"spread"`
	Volatility   null.Float `json:"volatility"`
}

// Empty reports whether the source yielded nothing usable.
func (r *ReferenceData) Empty() bool {
	return r == nil || !(r.ExpenseRatio.Valid || r.AUM.Valid || r.AvgVolume.Valid || r.Spread.Valid || r.Volatility.Valid)
}
