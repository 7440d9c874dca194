package core

import "strings"

// CleanString trims leading and trailing whitespace and collapses inner runs of it to one space.
func CleanString(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
