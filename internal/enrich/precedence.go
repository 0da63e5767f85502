package enrich

// Stage names. The order of precedenceOrder is the fixed total order used to
// resolve merge conflicts between parallel stages; earlier wins.
const (
	StageAcquire   = "acquire"
	StageGeocode   = "geocode"
	StageUnitCount = "unitcount"
	StageValuation = "valuation"
	StageHazard    = "hazard"
	StageCommute   = "commute"
)

var precedenceOrder = []string{
	StageAcquire,
	StageGeocode,
	StageUnitCount,
	StageValuation,
	StageHazard,
	StageCommute,
}

// Rank returns a stage's position in the precedence order. Unknown stages
// rank below every known stage.
func Rank(stage string) int {
	for i, name := range precedenceOrder {
		if name == stage {
			return i
		}
	}
	return len(precedenceOrder)
}

// Stages returns every known stage name in precedence order.
func Stages() []string {
	out := make([]string, len(precedenceOrder))
	copy(out, precedenceOrder)
	return out
}
