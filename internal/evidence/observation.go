package evidence

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/MrWong99/speechcoach/pkg/types"
)

// ObservationSource is the only accepted source tag in observation_data.
const ObservationSource = "visualObservations"

// observationTolerance is the relative tolerance for numeric values.
const observationTolerance = 0.01

var observationPattern = regexp.MustCompile(
	`^\s*metric\s*=\s*([A-Za-z0-9_.]+)\s*;\s*value\s*=\s*([^;]*?)\s*;\s*source\s*=\s*([A-Za-z0-9_]+)\s*$`)

// ObservationClaim is the parsed form of an observation_data string.
type ObservationClaim struct {
	Metric string
	Value  string
	Source string
}

// ParseObservationData parses "metric=<path>; value=<v>; source=<tag>".
func ParseObservationData(s string) (ObservationClaim, bool) {
	m := observationPattern.FindStringSubmatch(s)
	if m == nil {
		return ObservationClaim{}, false
	}
	return ObservationClaim{Metric: m[1], Value: m[2], Source: m[3]}, true
}

// ValidateObservationData reports whether item's observation_data cites a
// real aggregate value: the source tag must be visualObservations, the dotted
// metric path must resolve, and the cited value must be within 1% of the
// actual value (exact when the actual value is 0). Enum and boolean metrics
// must match exactly.
func ValidateObservationData(item types.VisualFeedbackItem, obs *types.VisualObservations) bool {
	if obs == nil {
		return false
	}
	claim, ok := ParseObservationData(item.ObservationData)
	if !ok || claim.Source != ObservationSource {
		return false
	}
	actual, ok := LookupObservation(obs, claim.Metric)
	if !ok {
		return false
	}

	switch v := actual.(type) {
	case float64:
		cited, err := strconv.ParseFloat(strings.TrimSuffix(claim.Value, "%"), 64)
		if err != nil {
			return false
		}
		if v == 0 {
			return cited == 0
		}
		return math.Abs(cited-v) <= observationTolerance*math.Abs(v)
	case string:
		return claim.Value == v
	case bool:
		cited, err := strconv.ParseBool(claim.Value)
		return err == nil && cited == v
	default:
		return false
	}
}

// LookupObservation resolves a dotted path (e.g. "gazeBreakdown.audienceFacing")
// against the JSON form of obs. Only scalar leaves are returned; objects and
// null values report ok=false.
func LookupObservation(obs *types.VisualObservations, path string) (any, bool) {
	raw, err := json.Marshal(obs)
	if err != nil {
		return nil, false
	}
	var node any
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, false
	}
	for _, key := range strings.Split(path, ".") {
		obj, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		if node, ok = obj[key]; !ok {
			return nil, false
		}
	}
	switch node.(type) {
	case float64, string, bool:
		return node, true
	default:
		return nil, false
	}
}
