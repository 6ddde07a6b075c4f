package models

// SizeStats summarizes the known rent figures of one bedroom size within a
// group. Areas whose figure is unknown are excluded from every field except
// the group's area count.
type SizeStats struct {
	Known int     `json:"known"`
	Avg   float64 `json:"avg"`
	Min   int     `json:"min"`
	Max   int     `json:"max"`
}

// AggregateRow is one pivot result row. StateCode and Kind are set only when
// the row was grouped by them. A nil stats block means no area in the group
// has a known figure for that size.
type AggregateRow struct {
	StateCode string   `json:"state_code,omitempty"`
	Kind      AreaKind `json:"kind,omitempty"`
	AreaCount int      `json:"area_count"`

	Studio       *SizeStats `json:"studio"`
	OneBedroom   *SizeStats `json:"one_bedroom"`
	TwoBedroom   *SizeStats `json:"two_bedroom"`
	ThreeBedroom *SizeStats `json:"three_bedroom"`
	FourBedroom  *SizeStats `json:"four_bedroom"`
}

// TwoBedroomStats is the spread of known two bedroom rents. Pointer valued so
// an empty dataset stays distinguishable from all zeros.
type TwoBedroomStats struct {
	Min    *int     `json:"min"`
	Max    *int     `json:"max"`
	Avg    *float64 `json:"avg"`
	Median *float64 `json:"median"`
}

// RentExtreme names the area holding one end of the two bedroom range.
type RentExtreme struct {
	Name       string `json:"name"`
	StateCode  string `json:"state_code"`
	TwoBedroom int    `json:"two_bedroom_rent"`
}

// OverallStats describes the whole dataset. The kind breakdown is exposed
// as by_type on the wire; the extremes are nil while no two bedroom figure
// is known.
type OverallStats struct {
	TotalAreas     int64              `json:"total_areas"`
	TwoBedroom     TwoBedroomStats    `json:"two_bedroom"`
	MostExpensive  *RentExtreme       `json:"most_expensive"`
	LeastExpensive *RentExtreme       `json:"least_expensive"`
	ByKind         map[AreaKind]int64 `json:"by_type"`
	ByState        map[string]int64   `json:"by_state"`
}
