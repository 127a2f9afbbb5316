package metrics

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// TagCount is one row of the failure breakdown.
type TagCount struct {
	Tag   string
	Count int64
}

// FlattenTags converts a tag->count map into rows sorted by descending count,
// then by tag for stability.
func FlattenTags(tags map[string]int64) []TagCount {
	if len(tags) == 0 {
		return nil
	}
	rows := make([]TagCount, 0, len(tags))
	for tag, count := range tags {
		rows = append(rows, TagCount{Tag: tag, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Tag < rows[j].Tag
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}

var friendlyTags = map[string]string{
	TagTransportTimeout: "Request timeout",
	TagTransportRefused: "Connection refused",
	TagTransportDNS:     "DNS lookup failed",
	TagTransportError:   "Transport error",
	TagScenarioError:    "Scenario error",
}

// FriendlyTag returns a human-readable description of a failure tag.
func FriendlyTag(tag string) string {
	if friendly, ok := friendlyTags[tag]; ok {
		return friendly
	}
	if code, ok := strings.CutPrefix(tag, "status-"); ok {
		n, err := strconv.Atoi(code)
		if err == nil {
			if text := http.StatusText(n); text != "" {
				return "HTTP " + code + " " + text
			}
		}
		return "HTTP " + code
	}
	if name, ok := strings.CutPrefix(tag, "check:"); ok {
		return "Check failed: " + name
	}
	return tag
}
