package catalog

import (
	"sort"
	"strings"
)

// Series labels.
const (
	SeriesRZ    = "RZ Series"
	SeriesRZM   = "RZM Series"
	SeriesRZMW  = "RZMW Series"
	SeriesOther = "Other Series"
)

var seriesPrefixes = []struct{ prefix, label string }{
	{"RZ-", SeriesRZ},
	{"RZM-", SeriesRZM},
	{"RZMW-", SeriesRZMW},
}

// GroupSystems partitions ids into product series by prefix. Empty series
// are omitted and members are sorted.
func GroupSystems(ids []string) map[string][]string {
	groups := make(map[string][]string)
	for _, id := range ids {
		groups[seriesOf(id)] = append(groups[seriesOf(id)], id)
	}
	for _, members := range groups {
		sort.Strings(members)
	}
	return groups
}

func seriesOf(id string) string {
	for _, s := range seriesPrefixes {
		if strings.HasPrefix(id, s.prefix) {
			return s.label
		}
	}
	return SeriesOther
}
