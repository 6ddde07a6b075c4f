package store

import (
	"database/sql"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/nicolovejoy/housing-data-v1/internal/models"
)

// rentColumns are the per size rent columns of the rents table, in bedroom
// order.
var rentColumns = []string{
	"studio_rent",
	"one_bedroom_rent",
	"two_bedroom_rent",
	"three_bedroom_rent",
	"four_bedroom_rent",
}

// groupColumns maps public grouping fields to their SQL columns.
var groupColumns = map[string]string{
	"state_code": "areas.state_code",
	"kind":       "areas.kind",
}

// filterScope applies f to a query over areas.
func filterScope(f models.Filter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.StateCode != "" {
			db = db.Where("areas.state_code = ?", f.StateCode)
		}
		if f.Kind != "" {
			db = db.Where("areas.kind = ?", f.Kind)
		}
		if f.NameContains != "" {
			needle := escapeLike(strings.ToLower(f.NameContains))
			db = db.Where(`LOWER(areas.name) LIKE ? ESCAPE '\'`, "%"+needle+"%")
		}
		return db
	}
}

// escapeLike neutralizes LIKE wildcards so the name filter matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// GetAreas returns areas with their rents attached, ordered by name, state
// code and kind, with offset and limit applied after filtering.
func (s *Store) GetAreas(f models.Filter, offset, limit int) ([]models.Area, error) {
	var areas []models.Area
	err := s.db.
		Scopes(filterScope(f)).
		Preload("Rent").
		Order("name, state_code, kind").
		Offset(offset).
		Limit(limit).
		Find(&areas).Error
	if err != nil {
		return nil, wrap("get areas", err)
	}
	return areas, nil
}

// CountAreas returns how many areas match f.
func (s *Store) CountAreas(f models.Filter) (int64, error) {
	var count int64
	err := s.db.Model(&models.Area{}).Scopes(filterScope(f)).Count(&count).Error
	if err != nil {
		return 0, wrap("count areas", err)
	}
	return count, nil
}

// GetAggregates computes one row per distinct combination of the groupBy
// fields present in the filtered data, aggregating known rent figures only.
// An empty groupBy produces a single overall row.
func (s *Store) GetAggregates(groupBy []string, f models.Filter) ([]models.AggregateRow, error) {
	selects := []string{"COUNT(*) AS area_count"}
	var groups []string
	for _, field := range groupBy {
		column, ok := groupColumns[field]
		if !ok {
			return nil, wrap("aggregate", fmt.Errorf("unsupported grouping field %q", field))
		}
		selects = append(selects, fmt.Sprintf("%s AS %s", column, field))
		groups = append(groups, column)
	}
	for _, column := range rentColumns {
		selects = append(selects,
			fmt.Sprintf("COUNT(rents.%s) AS %s_known", column, column),
			fmt.Sprintf("AVG(rents.%s) AS %s_avg", column, column),
			fmt.Sprintf("MIN(rents.%s) AS %s_min", column, column),
			fmt.Sprintf("MAX(rents.%s) AS %s_max", column, column),
		)
	}

	query := s.db.Table("areas").
		Select(strings.Join(selects, ", ")).
		Joins("LEFT JOIN rents ON rents.area_id = areas.id").
		Scopes(filterScope(f))
	if len(groups) > 0 {
		query = query.Group(strings.Join(groups, ", ")).Order(strings.Join(groups, ", "))
	}

	var rows []aggregateScan
	if err := query.Scan(&rows).Error; err != nil {
		return nil, wrap("aggregate", err)
	}

	out := make([]models.AggregateRow, len(rows))
	for i, row := range rows {
		out[i] = row.toRow()
	}
	return out, nil
}

// aggregateScan receives the raw aggregate columns. Aggregates over an all
// NULL column come back NULL, hence the sql.Null wrappers.
type aggregateScan struct {
	StateCode string
	Kind      string
	AreaCount int

	StudioRentKnown int
	StudioRentAvg   sql.NullFloat64
	StudioRentMin   sql.NullInt64
	StudioRentMax   sql.NullInt64

	OneBedroomRentKnown int
	OneBedroomRentAvg   sql.NullFloat64
	OneBedroomRentMin   sql.NullInt64
	OneBedroomRentMax   sql.NullInt64

	TwoBedroomRentKnown int
	TwoBedroomRentAvg   sql.NullFloat64
	TwoBedroomRentMin   sql.NullInt64
	TwoBedroomRentMax   sql.NullInt64

	ThreeBedroomRentKnown int
	ThreeBedroomRentAvg   sql.NullFloat64
	ThreeBedroomRentMin   sql.NullInt64
	ThreeBedroomRentMax   sql.NullInt64

	FourBedroomRentKnown int
	FourBedroomRentAvg   sql.NullFloat64
	FourBedroomRentMin   sql.NullInt64
	FourBedroomRentMax   sql.NullInt64
}

func (r aggregateScan) toRow() models.AggregateRow {
	return models.AggregateRow{
		StateCode:    r.StateCode,
		Kind:         models.AreaKind(r.Kind),
		AreaCount:    r.AreaCount,
		Studio:       sizeStats(r.StudioRentKnown, r.StudioRentAvg, r.StudioRentMin, r.StudioRentMax),
		OneBedroom:   sizeStats(r.OneBedroomRentKnown, r.OneBedroomRentAvg, r.OneBedroomRentMin, r.OneBedroomRentMax),
		TwoBedroom:   sizeStats(r.TwoBedroomRentKnown, r.TwoBedroomRentAvg, r.TwoBedroomRentMin, r.TwoBedroomRentMax),
		ThreeBedroom: sizeStats(r.ThreeBedroomRentKnown, r.ThreeBedroomRentAvg, r.ThreeBedroomRentMin, r.ThreeBedroomRentMax),
		FourBedroom:  sizeStats(r.FourBedroomRentKnown, r.FourBedroomRentAvg, r.FourBedroomRentMin, r.FourBedroomRentMax),
	}
}

func sizeStats(known int, avg sql.NullFloat64, low, high sql.NullInt64) *models.SizeStats {
	if known == 0 || !avg.Valid || !low.Valid || !high.Valid {
		return nil
	}
	return &models.SizeStats{
		Known: known,
		Avg:   avg.Float64,
		Min:   int(low.Int64),
		Max:   int(high.Int64),
	}
}

// GetTwoBedroomRents returns every known two bedroom figure in ascending
// order, one per area.
func (s *Store) GetTwoBedroomRents() ([]int, error) {
	var rents []int
	err := s.db.Model(&models.Rent{}).
		Where("two_bedroom_rent IS NOT NULL").
		Order("two_bedroom_rent").
		Pluck("two_bedroom_rent", &rents).Error
	if err != nil {
		return nil, wrap("get two bedroom rents", err)
	}
	return rents, nil
}

// GetTwoBedroomExtremes returns the areas with the highest and the lowest
// known two bedroom rent. Both are nil while no figure is known; ties are
// broken by area name so the answer is stable across reloads.
func (s *Store) GetTwoBedroomExtremes() (highest, lowest *models.RentExtreme, err error) {
	if highest, err = s.twoBedroomExtreme("DESC"); err != nil {
		return nil, nil, err
	}
	if lowest, err = s.twoBedroomExtreme("ASC"); err != nil {
		return nil, nil, err
	}
	return highest, lowest, nil
}

func (s *Store) twoBedroomExtreme(direction string) (*models.RentExtreme, error) {
	var rows []models.RentExtreme
	err := s.db.Table("areas").
		Select("areas.name, areas.state_code, rents.two_bedroom_rent AS two_bedroom").
		Joins("JOIN rents ON rents.area_id = areas.id").
		Where("rents.two_bedroom_rent IS NOT NULL").
		Order("rents.two_bedroom_rent " + direction + ", areas.name").
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, wrap("two bedroom extreme", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// CountByKind returns how many areas each kind has.
func (s *Store) CountByKind() (map[models.AreaKind]int64, error) {
	var rows []struct {
		Kind  models.AreaKind
		Count int64
	}
	err := s.db.Model(&models.Area{}).
		Select("kind, COUNT(*) AS count").
		Group("kind").
		Scan(&rows).Error
	if err != nil {
		return nil, wrap("count by kind", err)
	}
	counts := make(map[models.AreaKind]int64, len(rows))
	for _, row := range rows {
		counts[row.Kind] = row.Count
	}
	return counts, nil
}

// CountByState returns how many areas each state has.
func (s *Store) CountByState() (map[string]int64, error) {
	var rows []struct {
		StateCode string
		Count     int64
	}
	err := s.db.Model(&models.Area{}).
		Select("state_code, COUNT(*) AS count").
		Group("state_code").
		Scan(&rows).Error
	if err != nil {
		return nil, wrap("count by state", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.StateCode] = row.Count
	}
	return counts, nil
}

// GetFingerprint summarizes what the store holds so a finished load can be
// cross-checked against its source.
func (s *Store) GetFingerprint() (models.Fingerprint, error) {
	var fp models.Fingerprint
	if err := s.db.Model(&models.Area{}).Count(&fp.TotalAreas).Error; err != nil {
		return fp, wrap("fingerprint", err)
	}
	var bounds struct {
		MinRent sql.NullInt64
		MaxRent sql.NullInt64
	}
	err := s.db.Model(&models.Rent{}).
		Select("MIN(two_bedroom_rent) AS min_rent, MAX(two_bedroom_rent) AS max_rent").
		Scan(&bounds).Error
	if err != nil {
		return fp, wrap("fingerprint", err)
	}
	if bounds.MinRent.Valid {
		v := int(bounds.MinRent.Int64)
		fp.MinTwoBedroom = &v
	}
	if bounds.MaxRent.Valid {
		v := int(bounds.MaxRent.Int64)
		fp.MaxTwoBedroom = &v
	}
	return fp, nil
}
