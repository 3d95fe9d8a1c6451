package registry

import (
	"regexp"
	"strings"
)

// Platform handles are 5-32 characters, letters first, then letters, digits
// and underscores. The leading guard keeps email addresses from matching.
var handleRE = regexp.MustCompile(`(?:^|[^A-Za-z0-9_@])@([A-Za-z][A-Za-z0-9_]{4,31})`)

// ExtractHandles returns the distinct @handle references found in a message
// text, lowercased, in order of first appearance. These are discovery
// candidates: channels mentioned by the ones we already monitor.
func ExtractHandles(text string) []string {
	matches := handleRE.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	var handles []string
	for _, m := range matches {
		handle := strings.ToLower(m[1])
		if seen[handle] {
			continue
		}
		seen[handle] = true
		handles = append(handles, handle)
	}
	return handles
}
