package catalog

import "strings"

// MaxTags is the catalog API's per-product tag limit.
const MaxTags = 250

// SplitTags splits a comma separated tag list, dropping blanks.
func SplitTags(raw string) []string {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// CapTags keeps the first MaxTags entries.
func CapTags(tags []string) []string {
	if len(tags) <= MaxTags {
		return tags
	}
	return tags[:MaxTags]
}
