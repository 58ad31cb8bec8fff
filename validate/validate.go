// Package validate provides the pure predicates used to vet usernames and
// room names before they reach the registry.
package validate

import "regexp"

// alphanumeric matches letters, digits and underscore, same class the wire
// protocol has always accepted.
var alphanumeric = regexp.MustCompile(`^\w+$`)

// Alphanumeric reports whether s consists solely of [A-Za-z0-9_] characters.
// The empty string is not alphanumeric.
func Alphanumeric(s string) bool {
	return alphanumeric.MatchString(s)
}

// LengthWithin reports whether min <= len(s) < max. The upper bound is
// exclusive; username validation depends on this exact asymmetry.
func LengthWithin(s string, min, max int) bool {
	return len(s) >= min && len(s) < max
}

// LengthBetween reports whether min <= len(s) <= max, both bounds inclusive.
// Room names use this variant.
func LengthBetween(s string, min, max int) bool {
	return len(s) >= min && len(s) <= max
}

// NonEmpty reports whether s contains at least one character.
func NonEmpty(s string) bool {
	return len(s) > 0
}
