package topic

import "strings"

const (
	// Wildcard matches exactly one level, as in "opsdeck/v1/control/+".
	Wildcard = "+"

	// MultiWildcard matches the remaining levels and must come last.
	MultiWildcard = "#"

	sharePrefix = "$share/"
)

// Match reports whether name matches filter. Filters may use Wildcard for
// one level and MultiWildcard for the remaining levels. A $share/{group}/
// prefix on filter is ignored.
func Match(filter, name string) bool {
	filter = Unshare(filter)
	if filter == name {
		return true
	}
	if !strings.ContainsAny(filter, Wildcard+MultiWildcard) {
		return false
	}

	want := strings.Split(filter, "/")
	got := strings.Split(name, "/")
	for i, level := range want {
		switch {
		case level == MultiWildcard:
			return true
		case i >= len(got):
			return false
		case level != Wildcard && level != got[i]:
			return false
		}
	}
	return len(want) == len(got)
}

// Unshare strips a $share/{group}/ prefix from filter.
func Unshare(filter string) string {
	rest, ok := strings.CutPrefix(filter, sharePrefix)
	if !ok {
		return filter
	}
	if _, topic, found := strings.Cut(rest, "/"); found {
		return topic
	}
	return filter
}
