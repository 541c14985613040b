// Package mediatype turns vendor media types into the ordered list of schema
// keys that may describe them.
package mediatype

import (
	"iter"
	"regexp"
	"slices"
	"strings"
)

// Root is the canonical URI prefix of every bundled schema.
const Root = "https://formats.openag.io"

var vendorPattern = regexp.MustCompile(`(?i)^application/vnd\.([^.]+)\.(.*)\+json$`)

// Candidates yields the schema keys that may describe mediaType, highest
// priority first. Media types that are not of the form
// application/vnd.<domain>.<type-path>+json yield nothing.
//
// For application/vnd.oada.bookmarks.1+json the sequence is
//
//	https://formats.openag.io/oada/bookmarks/v1.schema.json
//	https://formats.openag.io/oada/bookmarks.schema.json#/$defs/v1
//	https://formats.openag.io/oada/bookmarks.schema.json#/definitions/v1
//
// When the last segment is not a non-zero integer, the key built from the whole
// type path comes first: application/vnd.oada.link.links+json starts with
// https://formats.openag.io/oada/link/links.schema.json.
func Candidates(mediaType string) iter.Seq[string] {
	return func(yield func(string) bool) {
		m := vendorPattern.FindStringSubmatch(mediaType)
		if m == nil {
			return
		}
		domain := m[1]
		segments := strings.Split(m[2], ".")

		base := Root + "/" + domain + "/"
		version := segments[len(segments)-1]
		path := strings.Join(segments[:len(segments)-1], "/")

		// TODO: require the version segment to be numeric once the corpus has
		// been audited for type paths ending in "0" or a word.
		if !versionTruthy(version) {
			if !yield(base + strings.Join(segments, "/") + ".schema.json") {
				return
			}
		}
		keys := [...]string{
			base + path + "/v" + version + ".schema.json",
			base + path + ".schema.json#/$defs/v" + version,
			base + path + ".schema.json#/definitions/v" + version,
		}
		for _, k := range keys {
			if !yield(k) {
				return
			}
		}
	}
}

// CandidateKeys collects Candidates into a slice.
func CandidateKeys(mediaType string) []string {
	return slices.Collect(Candidates(mediaType))
}

// Matches reports whether mediaType has the vendor form understood by Candidates.
func Matches(mediaType string) bool {
	return vendorPattern.MatchString(mediaType)
}

// versionTruthy reads token the way a leading-integer parse would (optional
// whitespace and sign, then digits) and reports whether the result is a
// non-zero number.
func versionTruthy(token string) bool {
	s := strings.TrimLeft(token, " \t\n\r\v\f")
	if s != "" && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	digits := 0
	nonZero := false
	for digits < len(s) && s[digits] >= '0' && s[digits] <= '9' {
		if s[digits] != '0' {
			nonZero = true
		}
		digits++
	}
	return digits > 0 && nonZero
}
