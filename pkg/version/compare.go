// Package version carries the build version and compares version strings.
package version

import (
	"strconv"
	"strings"
)

type semver struct {
	core [3]int
	pre  string // empty for releases
}

// parse accepts "v1.2.3", "1.2", "v1" and an optional "-label" suffix.
func parse(v string) (semver, bool) {
	var s semver
	v = strings.TrimPrefix(v, "v")
	if core, pre, found := strings.Cut(v, "-"); found {
		v, s.pre = core, pre
		if pre == "" {
			return s, false
		}
	}
	parts := strings.Split(v, ".")
	if len(parts) > 3 {
		return s, false
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return s, false
		}
		s.core[i] = n
	}
	return s, true
}

// Compare returns 1 if a is newer than b, -1 if older and 0 if equal.
// Prereleases sort below their release. Strings that do not parse are
// compared lexically without the leading "v".
func Compare(a, b string) int {
	pa, okA := parse(a)
	pb, okB := parse(b)
	if !okA || !okB {
		return strings.Compare(strings.TrimPrefix(a, "v"), strings.TrimPrefix(b, "v"))
	}
	for i := range pa.core {
		if pa.core[i] != pb.core[i] {
			if pa.core[i] > pb.core[i] {
				return 1
			}
			return -1
		}
	}
	switch {
	case pa.pre == pb.pre:
		return 0
	case pa.pre == "":
		return 1
	case pb.pre == "":
		return -1
	default:
		return strings.Compare(pa.pre, pb.pre)
	}
}

// Newer reports whether v was produced by a later release than this binary.
func Newer(v string) bool {
	return v != "" && Compare(v, Version) > 0
}
