package listing

// Dedupe folds exact duplicates (identical listing key) from one acquisition
// into a single representative record. The first-seen record in a group is
// retained and carries the group size in its duplicate_count field; later
// group members are dropped. Input order is preserved for representatives.
//
// Dedupe is idempotent: folding an already-folded slice changes nothing,
// because duplicate_count does not participate in the listing key.
func Dedupe(records []Record) []Record {
	if len(records) == 0 {
		return records
	}

	out := make([]Record, 0, len(records))
	index := make(map[string]int, len(records))
	counts := make(map[string]int, len(records))

	for _, record := range records {
		key := ListingKey(record)
		counts[key]++
		if _, seen := index[key]; seen {
			continue
		}
		index[key] = len(out)
		out = append(out, record)
	}

	for key, position := range index {
		representative := out[position]
		if _, ok := representative.IntField(FieldDuplicateCount); ok && counts[key] == 1 {
			// Already-folded input keeps its recorded count.
			continue
		}
		representative[FieldDuplicateCount] = counts[key]
	}

	return out
}
