package kg

import (
	"regexp"
	"strings"
)

// RelationTypeFallback is used whenever an extracted relation label is
// not part of the closed relation type set. The raw label survives as
// the edge's TypeLabel property.
const RelationTypeFallback = "RELATED"

// relationTypes is the closed set of relation types that may appear as
// Cypher relationship types. Everything else maps to RELATED. Keeping
// the set closed means extractor output never reaches a query as a
// type token.
var relationTypes = map[string]struct{}{
	"DEFINES":         {},
	"IS_A":            {},
	"PART_OF":         {},
	"PREREQUISITE_OF": {},
	"CAUSES":          {},
	"USES":            {},
	"EXAMPLE_OF":      {},
	"CONTRASTS_WITH":  {},
	"APPLIES_TO":      {},
	"RELATED":         {},
}

var (
	reRelInvalid  = regexp.MustCompile(`[^A-Z0-9_]`)
	reRelCollapse = regexp.MustCompile(`_+`)
	reRelValid    = regexp.MustCompile(`^[A-Z_][A-Z0-9_]*$`)
)

// RelationTypes returns the members of the closed relation type set in
// no particular order.
func RelationTypes() []string {
	types := make([]string, 0, len(relationTypes))
	for t := range relationTypes {
		types = append(types, t)
	}
	return types
}

// IsRelationType reports whether t is a member of the closed relation
// type set.
func IsRelationType(t string) bool {
	_, ok := relationTypes[t]
	return ok
}

// SanitizeRelationType converts an arbitrary label into a syntactically
// valid Cypher relationship type token: uppercased, restricted to
// [A-Z0-9_], underscore runs collapsed. Labels that start with a digit
// get a REL_ prefix; empty input becomes RELATED.
func SanitizeRelationType(raw string) string {
	name := strings.ToUpper(raw)
	name = reRelInvalid.ReplaceAllString(name, "_")
	name = reRelCollapse.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if name == "" {
		return RelationTypeFallback
	}
	if !reRelValid.MatchString(name) {
		name = "REL_" + name
	}
	return name
}

// ResolveRelationType maps an extracted relation label onto the closed
// type set. It returns the member type plus the raw label to preserve
// when the fallback was taken; the label is empty when the sanitized
// input was already a member.
func ResolveRelationType(raw string) (relType, typeLabel string) {
	sanitized := SanitizeRelationType(raw)
	if IsRelationType(sanitized) {
		return sanitized, ""
	}
	return RelationTypeFallback, strings.TrimSpace(raw)
}
