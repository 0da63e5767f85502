package diff

import (
	"sort"

	"sumika/internal/listing"
)

// PricePoint is one observed price for a listing on a given date.
type PricePoint struct {
	Date  string `json:"date"`
	Price int64  `json:"price"`
}

// Result partitions identity keys between two runs and carries the annotated
// current records.
type Result struct {
	New       []string
	Removed   []string
	Updated   []string
	Unchanged []string

	// Records is the current dataset with price history maintained.
	Records []listing.Record
}

// Counts is the projection of Result consumed by reporting and notification.
type Counts struct {
	New       int `json:"new"`
	Removed   int `json:"removed"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

// Counts projects the result's key sets into plain counts.
func (r Result) Counts() Counts {
	return Counts{
		New:       len(r.New),
		Removed:   len(r.Removed),
		Updated:   len(r.Updated),
		Unchanged: len(r.Unchanged),
	}
}

// HasChanges reports whether anything differs from the previous run.
func (c Counts) HasChanges() bool {
	return c.New > 0 || c.Removed > 0 || c.Updated > 0
}

// Diff classifies current against previous by identity key. A nil previous
// dataset is the first run: everything is new with an empty initialized
// history. Updated records append one {date, price} point to the history
// carried forward from the previous record; history is never rebuilt.
func Diff(current, previous []listing.Record, date string) Result {
	prevByKey := make(map[string]listing.Record, len(previous))
	for _, record := range previous {
		key := listing.IdentityKey(record)
		if _, ok := prevByKey[key]; !ok {
			prevByKey[key] = record
		}
	}

	result := Result{Records: make([]listing.Record, 0, len(current))}
	seen := make(map[string]bool, len(current))
	for _, record := range current {
		record = record.Clone()
		key := listing.IdentityKey(record)
		if seen[key] {
			// Identity collision inside one run; keep the record but
			// classify the key only once.
			result.Records = append(result.Records, record)
			continue
		}
		seen[key] = true

		prev, existed := prevByKey[key]
		price, _ := record.IntField(listing.FieldPrice)
		prevPrice, _ := prev.IntField(listing.FieldPrice)
		switch {
		case !existed:
			result.New = append(result.New, key)
			record[listing.FieldPriceHistory] = []PricePoint{}
		case price == prevPrice:
			result.Unchanged = append(result.Unchanged, key)
			record[listing.FieldPriceHistory] = HistoryOf(prev)
		default:
			result.Updated = append(result.Updated, key)
			history := HistoryOf(prev)
			record[listing.FieldPriceHistory] = append(history, PricePoint{
				Date:  date,
				Price: price,
			})
		}
		result.Records = append(result.Records, record)
	}

	for key := range prevByKey {
		if !seen[key] {
			result.Removed = append(result.Removed, key)
		}
	}

	sort.Strings(result.New)
	sort.Strings(result.Removed)
	sort.Strings(result.Updated)
	sort.Strings(result.Unchanged)
	return result
}

// HistoryOf extracts a record's price history, tolerating the loosely typed
// values JSON decoding produces.
func HistoryOf(record listing.Record) []PricePoint {
	raw, ok := record[listing.FieldPriceHistory]
	if !ok || raw == nil {
		return []PricePoint{}
	}
	switch typed := raw.(type) {
	case []PricePoint:
		out := make([]PricePoint, len(typed))
		copy(out, typed)
		return out
	case []any:
		out := make([]PricePoint, 0, len(typed))
		for _, item := range typed {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			point := PricePoint{}
			if date, ok := entry["date"].(string); ok {
				point.Date = date
			}
			switch price := entry["price"].(type) {
			case float64:
				point.Price = int64(price)
			case int64:
				point.Price = price
			case int:
				point.Price = int64(price)
			}
			out = append(out, point)
		}
		return out
	default:
		return []PricePoint{}
	}
}
