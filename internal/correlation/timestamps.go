package correlation

import (
	"time"

	"github.com/vilaca/alm-eventlog/internal/domain"
)

// TimestampIndex maps an entity's local identifier to its creation timestamp.
// It is consulted only for tie-breaking, never for ordering output.
type TimestampIndex map[string]string

// NoCandidate is returned by PickLatest when there is nothing to pick from.
const NoCandidate = ""

// baseline seeds the comparison; missing or unparseable timestamps rank here.
var baseline = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

func (idx TimestampIndex) instant(id string) time.Time {
	ts, ok := idx[id]
	if !ok {
		return baseline
	}
	t, err := domain.ParseTime(ts)
	if err != nil || t.Before(baseline) {
		return baseline
	}
	return t
}

// PickLatest returns the id whose indexed timestamp is the latest. Equal
// instants resolve to the lexicographically greatest id, so the result does
// not depend on the order of ids. An empty ids yields NoCandidate.
func PickLatest(ids []string, index TimestampIndex) string {
	chosen := NoCandidate
	latest := baseline
	for _, id := range ids {
		t := index.instant(id)
		switch {
		case chosen == NoCandidate:
			chosen, latest = id, t
		case t.After(latest):
			chosen, latest = id, t
		case t.Equal(latest) && id > chosen:
			chosen = id
		}
	}
	return chosen
}
