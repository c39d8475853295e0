package resolver

import "regexp"

// Knowledge-graph anchors for the target city: New York City and its five boroughs.
var nycAnchors = idSet(
	"Q60",    // New York City
	"Q11299", // Manhattan
	"Q18419", // Brooklyn
	"Q18424", // Queens
	"Q18426", // The Bronx
	"Q18432", // Staten Island
)

// Instance-of targets that make an entity count as an event.
var eventTypes = idSet(
	"Q1656682",  // event
	"Q1190554",  // occurrence
	"Q132241",   // festival
	"Q15275719", // recurring event
	"Q1692075",
	"Q13418847", // historical event
)

const humanType = "Q5"

// City id used by the constrained searches and the event query.
const cityID = "Q60"

// Bounding box approximating the five boroughs. Bounds are exclusive.
const (
	minLat = 40.40
	maxLat = 41.05
	minLon = -74.30
	maxLon = -73.60
)

const (
	scoreMissing        = -999
	scoreDisambiguation = -100

	weightBBox      = 3
	weightCategory  = 4
	weightLocatedIn = 6
	weightHeldAt    = 4
	weightEvent     = 4
	penaltyNotEvent = -3
	bonusGraphEvent = 3
)

const (
	fastEarlyExit = 7
	fastAccept    = 6
	deepEarlyExit = 6
	minAccept     = 4
)

// MinQueryRunes is the shortest query worth resolving.
const MinQueryRunes = 2

// Suggestions are offered with a no-match result.
var Suggestions = []string{"met", "moma", "brooklyn bridge", "stonewall riots", "central park"}

var disambiguationPattern = regexp.MustCompile(`(?i)desambiguaci[oó]n|disambiguation`)

func idSet(ids ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

// IsAnchor reports whether id is the city or one of its boroughs.
func IsAnchor(id string) bool {
	_, ok := nycAnchors[id]
	return ok
}
