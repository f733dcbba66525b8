package extract

import (
	"regexp"
	"strings"
)

// openingFence matches a leading code fence with an optional language tag.
var openingFence = regexp.MustCompile("^```[A-Za-z0-9_+-]*")

const closingFence = "```"

// Normalize strips presentational wrapping that scoring services put around
// JSON: surrounding whitespace, a leading ``` or ```json fence and a
// trailing ``` fence. It does not validate what remains.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	s = openingFence.ReplaceAllLiteralString(s, "")
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, closingFence)
	return strings.TrimSpace(s)
}
