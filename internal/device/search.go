package device

import "strings"

// SearchQuery holds the optional search predicates. Blank predicates
// match everything for their dimension; non-blank predicates are ANDed.
type SearchQuery struct {
	// Keyword matches case-insensitively as a substring against
	// DeviceName, DeviceID, Location and Branch (OR across the four).
	Keyword string

	// DeviceType matches case-insensitively and exactly.
	DeviceType string

	// Branch matches case-insensitively as a substring.
	Branch string
}

// SearchResult is the filtered device set plus the search parameters that
// were actually applied, echoed for observability.
type SearchResult struct {
	Devices []Device          `json:"devices"`
	Total   int               `json:"total"`
	Params  map[string]string `json:"params"`
}

// Search filters an already-fetched device set by the given query.
//
// It is a pure function: the same inputs always yield the same output,
// and matches keep the relative order of the input set. The candidate
// slice is not modified.
func Search(devices []Device, q SearchQuery) SearchResult {
	keyword := strings.ToLower(strings.TrimSpace(q.Keyword))
	deviceType := strings.TrimSpace(q.DeviceType)
	branch := strings.ToLower(strings.TrimSpace(q.Branch))

	matched := make([]Device, 0, len(devices))
	for _, d := range devices {
		if keyword != "" && !matchesKeyword(&d, keyword) {
			continue
		}
		if deviceType != "" && !strings.EqualFold(deviceType, d.DeviceType) {
			continue
		}
		if branch != "" && !strings.Contains(strings.ToLower(d.Branch), branch) {
			continue
		}
		matched = append(matched, d)
	}

	params := make(map[string]string)
	if keyword != "" {
		params["keyword"] = strings.TrimSpace(q.Keyword)
	}
	if deviceType != "" {
		params["device_type"] = deviceType
	}
	if branch != "" {
		params["branch"] = strings.TrimSpace(q.Branch)
	}

	return SearchResult{
		Devices: matched,
		Total:   len(matched),
		Params:  params,
	}
}

// matchesKeyword reports whether the lower-cased keyword appears in any
// of the device's searchable fields.
func matchesKeyword(d *Device, keyword string) bool {
	return strings.Contains(strings.ToLower(d.DeviceName), keyword) ||
		strings.Contains(strings.ToLower(d.DeviceID), keyword) ||
		strings.Contains(strings.ToLower(d.Location), keyword) ||
		strings.Contains(strings.ToLower(d.Branch), keyword)
}
