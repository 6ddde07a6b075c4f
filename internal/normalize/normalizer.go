package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nicolovejoy/housing-data-v1/config"
	"github.com/nicolovejoy/housing-data-v1/internal/models"
)

// Rejection records why one raw record was refused. It satisfies error so the
// loader can thread it through its normal error paths while still counting
// rejections per reason.
type Rejection struct {
	Reason models.RejectReason
	Field  string
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", r.Reason, r.Field, r.Detail)
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Field)
}

func reject(reason models.RejectReason, field, detail string) error {
	return &Rejection{Reason: reason, Field: field, Detail: detail}
}

// Normalize validates one raw record and converts it into a canonical
// area/rent pair. It performs no I/O and never mutates its input; a non-nil
// error is always a *Rejection.
//
// Required fields are checked before enum and state validity, so a record
// that is both missing a field and carries a bad kind is counted once, as
// missing_required_field.
func Normalize(raw models.RawRecord) (models.AreaRent, error) {
	var pair models.AreaRent

	name := strings.TrimSpace(raw.Name)
	if name == "" {
		return pair, reject(models.ReasonMissingField, "name", "")
	}
	kindValue := strings.TrimSpace(raw.Kind)
	if kindValue == "" {
		return pair, reject(models.ReasonMissingField, "kind", "")
	}
	stateValue := strings.TrimSpace(raw.StateCode)
	if stateValue == "" {
		return pair, reject(models.ReasonMissingField, "state_code", "")
	}

	kind, ok := models.ParseAreaKind(kindValue)
	if !ok {
		return pair, reject(models.ReasonInvalidEnum, "kind", kindValue)
	}
	stateCode := config.NormalizeState(stateValue)
	if stateCode == "" {
		return pair, reject(models.ReasonInvalidState, "state_code", stateValue)
	}

	rents := [...]struct {
		field string
		value any
	}{
		{"studio_rent", raw.StudioRent},
		{"one_bedroom_rent", raw.OneBedroomRent},
		{"two_bedroom_rent", raw.TwoBedroomRent},
		{"three_bedroom_rent", raw.ThreeBedroomRent},
		{"four_bedroom_rent", raw.FourBedroomRent},
	}
	var parsed [len(rents)]*int
	for i, r := range rents {
		v, ok := rentValue(r.value)
		if !ok {
			return pair, reject(models.ReasonInvalidNumeric, r.field, fmt.Sprintf("%v", r.value))
		}
		parsed[i] = v
	}

	pair.Area = models.Area{
		Name:      name,
		StateCode: stateCode,
		Kind:      kind,
		StateName: strings.TrimSpace(raw.StateName),
	}
	pair.Rent = models.Rent{
		StudioRent:       parsed[0],
		OneBedroomRent:   parsed[1],
		TwoBedroomRent:   parsed[2],
		ThreeBedroomRent: parsed[3],
		FourBedroomRent:  parsed[4],
	}
	return pair, nil
}

// rentValue coerces one raw rent figure. Absent values stay unknown (nil);
// numbers must be non-negative integers; strings may carry dollar signs and
// thousands separators. The second return is false when the value is present
// but unusable.
func rentValue(value any) (*int, bool) {
	switch v := value.(type) {
	case nil:
		return nil, true
	case float64:
		// encoding/json decodes every number to float64.
		if v < 0 || v != math.Trunc(v) || v > math.MaxInt32 {
			return nil, false
		}
		return intPtr(int(v)), true
	case int:
		if v < 0 || v > math.MaxInt32 {
			return nil, false
		}
		return intPtr(v), true
	case int64:
		if v < 0 || v > math.MaxInt32 {
			return nil, false
		}
		return intPtr(int(v)), true
	case json.Number:
		return parseRentString(v.String())
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil, true
		}
		s = strings.NewReplacer("$", "", ",", "").Replace(s)
		return parseRentString(s)
	default:
		return nil, false
	}
}

// parseRentString applies the same range rules as the numeric cases, so a
// figure is accepted or rejected regardless of how the source rendered it.
func parseRentString(s string) (*int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 || n > math.MaxInt32 {
		return nil, false
	}
	return intPtr(n), true
}

func intPtr(v int) *int {
	return &v
}
