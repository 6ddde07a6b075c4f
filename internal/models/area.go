package models

import (
	"strings"
	"time"
)

// AreaKind classifies a geographic area as a metropolitan area or a county.
type AreaKind string

const (
	KindMetro  AreaKind = "metro"
	KindCounty AreaKind = "county"
)

// ParseAreaKind canonicalizes a kind value from the source data. The second
// return is false when the value is not a supported kind.
func ParseAreaKind(value string) (AreaKind, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(KindMetro):
		return KindMetro, true
	case string(KindCounty):
		return KindCounty, true
	}
	return "", false
}

// Area is one geographic area carrying fair market rents. Areas are
// identified by the (name, state code, kind) tuple; the surrogate ID is
// assigned by the store and stays stable across reloads.
type Area struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null;uniqueIndex:idx_areas_identity,priority:1" json:"name"`
	StateCode string    `gorm:"not null;size:2;index;uniqueIndex:idx_areas_identity,priority:2" json:"state_code"`
	Kind      AreaKind  `gorm:"not null;index;uniqueIndex:idx_areas_identity,priority:3" json:"kind"`
	StateName string    `json:"state_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Rent *Rent `gorm:"foreignKey:AreaID;constraint:OnDelete:CASCADE" json:"rents,omitempty"`
}

// Rent holds the monthly fair market rents of one area by bedroom count.
// A nil figure means the value is unknown for this vintage; unknown is never
// stored as zero.
type Rent struct {
	ID               int64     `gorm:"primaryKey" json:"-"`
	AreaID           int64     `gorm:"not null;uniqueIndex" json:"-"`
	StudioRent       *int      `json:"studio_rent"`
	OneBedroomRent   *int      `json:"one_bedroom_rent"`
	TwoBedroomRent   *int      `gorm:"index" json:"two_bedroom_rent"`
	ThreeBedroomRent *int      `json:"three_bedroom_rent"`
	FourBedroomRent  *int      `json:"four_bedroom_rent"`
	CreatedAt        time.Time `json:"-"`
}

// AreaRent is one normalized area together with its rent row, ready for
// loading. The pair is written atomically.
type AreaRent struct {
	Area Area
	Rent Rent
}

// Key returns the identity tuple the store upserts on.
func (p AreaRent) Key() string {
	return AreaKey(p.Area.Name, p.Area.StateCode, p.Area.Kind)
}

// AreaKey builds the in-memory lookup key for an identity tuple.
func AreaKey(name, stateCode string, kind AreaKind) string {
	return strings.Join([]string{name, stateCode, string(kind)}, "|")
}

// Filter narrows area selections. The zero value matches everything.
type Filter struct {
	// StateCode matches exactly against the canonical uppercase code.
	StateCode string
	// Kind matches exactly.
	Kind AreaKind
	// NameContains matches case-insensitively anywhere in the area name.
	NameContains string
}
