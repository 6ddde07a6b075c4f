package query

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/nicolovejoy/housing-data-v1/config"
	"github.com/nicolovejoy/housing-data-v1/internal/models"
)

// Error describes a query the engine refuses to run. Handlers map it to a
// client error instead of a server failure.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return "invalid_query: " + e.Reason
}

// Storage is the read side the engine aggregates over.
type Storage interface {
	GetAggregates(groupBy []string, f models.Filter) ([]models.AggregateRow, error)
	GetAreas(f models.Filter, offset, limit int) ([]models.Area, error)
	CountAreas(f models.Filter) (int64, error)
	GetTwoBedroomRents() ([]int, error)
	GetTwoBedroomExtremes() (highest, lowest *models.RentExtreme, err error)
	CountByKind() (map[models.AreaKind]int64, error)
	CountByState() (map[string]int64, error)
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Options tune paging bounds and caching.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
	CacheEnabled    bool
}

// Engine answers pivot, drill-down and stats queries over the store. Queries
// never write; identical requests give identical answers until the next load
// commits.
type Engine struct {
	store  Storage
	opts   Options
	cache  *pivotCache
	logger *logrus.Logger
}

func NewEngine(store Storage, opts Options, logger *logrus.Logger) *Engine {
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = DefaultPageSize
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = MaxPageSize
	}
	if logger == nil {
		logger = logrus.New()
	}
	e := &Engine{
		store:  store,
		opts:   opts,
		logger: logger,
	}
	if opts.CacheEnabled {
		e.cache = newPivotCache()
	}
	return e
}

// groupableFields are the only fields Pivot accepts in its group by list.
var groupableFields = []string{"state_code", "kind"}

// PivotParams select the grouping and filtering of a pivot request.
type PivotParams struct {
	GroupBy []string
	Filter  models.Filter
}

// PivotResult carries one aggregate row per group, ordered by the grouping
// key.
type PivotResult struct {
	GroupBy []string              `json:"group_by"`
	Rows    []models.AggregateRow `json:"rows"`
	Count   int                   `json:"count"`
}

// Pivot groups the filtered areas and aggregates the known rent figures of
// each group. Grouping fields are canonicalized to a fixed order, so
// equivalent requests share cache entries and row order stays deterministic.
func (e *Engine) Pivot(p PivotParams) (*PivotResult, error) {
	groupBy, err := canonicalGroupBy(p.GroupBy)
	if err != nil {
		return nil, err
	}
	filter, err := normalizeFilter(p.Filter)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if rows, ok := e.cache.get(groupBy, filter); ok {
			return &PivotResult{GroupBy: groupBy, Rows: rows, Count: len(rows)}, nil
		}
	}

	rows, err := e.store.GetAggregates(groupBy, filter)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.AggregateRow{}
	}
	if e.cache != nil {
		e.cache.put(groupBy, filter, rows)
	}
	return &PivotResult{GroupBy: groupBy, Rows: rows, Count: len(rows)}, nil
}

// DrilldownParams select and page a drill-down listing.
type DrilldownParams struct {
	Filter models.Filter
	Offset int
	Limit  int
}

// DrilldownResult is one page of areas with their rents. Count is the total
// number of matches, not the page length.
type DrilldownResult struct {
	Rows   []models.Area `json:"rows"`
	Count  int64         `json:"count"`
	Offset int           `json:"offset"`
	Limit  int           `json:"limit"`
}

// Drilldown lists matching areas ordered by name, then state code, then
// kind. Offsets below zero start at the beginning; limits beyond the
// configured maximum are clamped, never rejected.
func (e *Engine) Drilldown(p DrilldownParams) (*DrilldownResult, error) {
	filter, err := normalizeFilter(p.Filter)
	if err != nil {
		return nil, err
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = e.opts.DefaultPageSize
	}
	if p.Limit > e.opts.MaxPageSize {
		p.Limit = e.opts.MaxPageSize
	}

	total, err := e.store.CountAreas(filter)
	if err != nil {
		return nil, err
	}
	rows, err := e.store.GetAreas(filter, p.Offset, p.Limit)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.Area{}
	}
	return &DrilldownResult{
		Rows:   rows,
		Count:  total,
		Offset: p.Offset,
		Limit:  p.Limit,
	}, nil
}

// Stats computes the overall dataset statistics, including the exact median
// of the known two bedroom rents and the areas at both ends of the range.
func (e *Engine) Stats() (*models.OverallStats, error) {
	total, err := e.store.CountAreas(models.Filter{})
	if err != nil {
		return nil, err
	}
	byKind, err := e.store.CountByKind()
	if err != nil {
		return nil, err
	}
	byState, err := e.store.CountByState()
	if err != nil {
		return nil, err
	}
	rents, err := e.store.GetTwoBedroomRents()
	if err != nil {
		return nil, err
	}
	highest, lowest, err := e.store.GetTwoBedroomExtremes()
	if err != nil {
		return nil, err
	}

	stats := &models.OverallStats{
		TotalAreas:     total,
		MostExpensive:  highest,
		LeastExpensive: lowest,
		ByKind:         byKind,
		ByState:        byState,
	}
	if len(rents) > 0 {
		minRent := rents[0]
		maxRent := rents[len(rents)-1]
		avg := float64(lo.Sum(rents)) / float64(len(rents))
		med := median(rents)
		stats.TwoBedroom = models.TwoBedroomStats{
			Min:    &minRent,
			Max:    &maxRent,
			Avg:    &avg,
			Median: &med,
		}
	}
	return stats, nil
}

// Invalidate drops every cached pivot result. The ingest manager calls this
// after each successful load commit.
func (e *Engine) Invalidate() {
	if e.cache != nil {
		e.cache.flush()
	}
}

// canonicalGroupBy validates the grouping fields and fixes their order.
func canonicalGroupBy(fields []string) ([]string, error) {
	seen := make(map[string]bool, len(fields))
	for _, field := range fields {
		field = strings.ToLower(strings.TrimSpace(field))
		if field == "" {
			continue
		}
		if !lo.Contains(groupableFields, field) {
			return nil, &Error{Reason: fmt.Sprintf("cannot group by %q", field)}
		}
		seen[field] = true
	}
	out := make([]string, 0, len(seen))
	for _, field := range groupableFields {
		if seen[field] {
			out = append(out, field)
		}
	}
	return out, nil
}

// normalizeFilter canonicalizes the state code and validates the kind. An
// unknown state code is kept as given and simply matches nothing.
func normalizeFilter(f models.Filter) (models.Filter, error) {
	if f.Kind != "" {
		kind, ok := models.ParseAreaKind(string(f.Kind))
		if !ok {
			return f, &Error{Reason: fmt.Sprintf("unknown area kind %q", f.Kind)}
		}
		f.Kind = kind
	}
	if f.StateCode != "" {
		if code := config.NormalizeState(f.StateCode); code != "" {
			f.StateCode = code
		} else {
			f.StateCode = strings.ToUpper(strings.TrimSpace(f.StateCode))
		}
	}
	f.NameContains = strings.TrimSpace(f.NameContains)
	return f, nil
}

// median expects values sorted ascending. An even count averages the two
// central values.
func median(values []int) float64 {
	n := len(values)
	if n%2 == 1 {
		return float64(values[n/2])
	}
	return float64(values[n/2-1]+values[n/2]) / 2
}
