package models

// RawRecord is one area record as supplied by the rent data source. Rent
// figures are decoded as loose JSON values so a single malformed figure
// rejects that record instead of failing the whole file.
type RawRecord struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	StateCode string `json:"state_code"`
	StateName string `json:"state_name"`

	StudioRent       any `json:"studio_rent"`
	OneBedroomRent   any `json:"one_bedroom_rent"`
	TwoBedroomRent   any `json:"two_bedroom_rent"`
	ThreeBedroomRent any `json:"three_bedroom_rent"`
	FourBedroomRent  any `json:"four_bedroom_rent"`
}
