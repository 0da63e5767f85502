package listing

import (
	"strconv"
	"strings"
)

// Record is an open mapping from field name to scalar or nested value.
// Field absence means "unknown", never a default.
type Record map[string]any

// Well-known field names. Enrichment stages may add fields beyond these.
const (
	FieldURL            = "url"
	FieldPrice          = "price"
	FieldBuildingName   = "building_name"
	FieldLayout         = "layout"
	FieldFloorArea      = "floor_area"
	FieldAddress        = "address"
	FieldBuildYear      = "build_year"
	FieldStation        = "station"
	FieldWalkMinutes    = "walk_minutes"
	FieldUnitCount      = "unit_count"
	FieldTotalFloors    = "total_floors"
	FieldOwnership      = "ownership"
	FieldDuplicateCount = "duplicate_count"
	FieldPriceHistory   = "price_history"
)

// StringField returns the named field as a trimmed string, tolerating numeric
// values. Missing or non-scalar fields yield "".
func (r Record) StringField(key string) string {
	value, ok := r[key]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// IntField returns the named field as an int64. JSON decoding produces
// float64, so numeric strings and floats are both accepted.
func (r Record) IntField(key string) (int64, bool) {
	value, ok := r[key]
	if !ok || value == nil {
		return 0, false
	}
	switch v := value.(type) {
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// FloatField returns the named field as a float64.
func (r Record) FloatField(key string) (float64, bool) {
	value, ok := r[key]
	if !ok || value == nil {
		return 0, false
	}
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for key, value := range r {
		out[key] = cloneValue(value)
	}
	return out
}

func cloneValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, nested := range v {
			out[key] = cloneValue(nested)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, nested := range v {
			out[i] = cloneValue(nested)
		}
		return out
	default:
		return v
	}
}
