package listing

import "strings"

// IdentityKey computes the price-excluding identity key for a record.
//
// Components: normalized building name, layout, floor area, normalized
// address, build year, and the extracted nearest-station name. Price,
// walk-minutes, and unit-count are deliberately excluded: they can change
// between scrapes of the same physical unit (representative-record
// substitution inside a duplicate group) without the unit becoming a
// different listing. Missing fields degrade key precision but never fail
// the computation.
func IdentityKey(r Record) string {
	parts := []string{
		NormalizeText(r.StringField(FieldBuildingName)),
		NormalizeText(r.StringField(FieldLayout)),
		r.StringField(FieldFloorArea),
		NormalizeText(r.StringField(FieldAddress)),
		r.StringField(FieldBuildYear),
		NearestStationName(r.StringField(FieldStation)),
	}
	return strings.Join(parts, "|")
}

// ListingKey computes the exact-duplicate key: the identity key plus price.
// Used only to fold exact duplicates from a single acquisition.
func ListingKey(r Record) string {
	return IdentityKey(r) + "|" + r.StringField(FieldPrice)
}

// BuildingKey computes a coarser building-level grouping key used for
// display aggregation only. It excludes walk-minutes, unit-count, and
// build-year, which are empirically noisy across source pages for the
// same building.
func BuildingKey(r Record) string {
	parts := []string{
		NormalizeText(r.StringField(FieldBuildingName)),
		NormalizeAddressForBuilding(r.StringField(FieldAddress)),
		r.StringField(FieldTotalFloors),
		NormalizeText(r.StringField(FieldOwnership)),
	}
	return strings.Join(parts, "|")
}
