package broker

import "strings"

// wildcardSuffix is the only supported wildcard form: a filter ending in
// "/#" matches any topic sharing the prefix before it.
const wildcardSuffix = "/#"

// Filter is a parsed subscription topic filter. Two forms exist: an exact
// topic, or a prefix wildcard: "sensors/#" matches any topic starting with
// "sensors" (everything before the "/#"). No other wildcard forms are
// supported.
type Filter struct {
	raw      string
	prefix   string
	wildcard bool
}

// ParseFilter parses a subscription filter string.
func ParseFilter(raw string) Filter {
	if strings.HasSuffix(raw, wildcardSuffix) {
		return Filter{
			raw:      raw,
			prefix:   strings.TrimSuffix(raw, wildcardSuffix),
			wildcard: true,
		}
	}
	return Filter{raw: raw}
}

// Matches reports whether the filter matches a concrete topic.
func (f Filter) Matches(topic string) bool {
	if f.wildcard {
		return strings.HasPrefix(topic, f.prefix)
	}
	return f.raw == topic
}

// String returns the original filter text.
func (f Filter) String() string { return f.raw }

// MatchTopic is a convenience for one-shot filter matching.
func MatchTopic(filter, topic string) bool {
	return ParseFilter(filter).Matches(topic)
}
