package listing

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var (
	spaceRun    = regexp.MustCompile(`\s+`)
	stationName = regexp.MustCompile(`「([^」]+)」`)
	// Applied after NormalizeText, so digits and "F" are already folded
	// to ASCII lowercase.
	floorSuffix = regexp.MustCompile(`[0-9]+(階|f)(部分)?$`)
)

// NormalizeText folds full-width/half-width variants, applies NFKC
// normalization, lowercases, and collapses whitespace. Source pages mix
// full-width and half-width text for the same building, so every key
// component passes through here first.
func NormalizeText(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	value = width.Fold.String(value)
	value = norm.NFKC.String(value)
	value = strings.ToLower(value)
	value = spaceRun.ReplaceAllString(value, "")
	return value
}

// NearestStationName extracts the station name from a free-form station
// field such as "ＪＲ山手線「恵比寿」徒歩5分". When no bracketed name is
// present the whole normalized field is used, with any trailing
// walk-minutes fragment removed.
func NearestStationName(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if match := stationName.FindStringSubmatch(value); match != nil {
		return NormalizeText(match[1])
	}
	normalized := NormalizeText(value)
	if idx := strings.Index(normalized, "徒歩"); idx >= 0 {
		normalized = normalized[:idx]
	}
	return normalized
}

// NormalizeAddressForBuilding strips trailing floor designators so that
// different floors of one building share a building-level address.
func NormalizeAddressForBuilding(value string) string {
	normalized := NormalizeText(value)
	return floorSuffix.ReplaceAllString(normalized, "")
}
