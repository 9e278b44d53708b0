package loopback

import "strings"

// validKeyExpr applies the canonical key expression rules: non-empty chunks
// separated by '/', no '#' or '?', and '*' only as a whole "*" or "**"
// chunk, with no "**" directly followed by another "**".
func validKeyExpr(s string) bool {
	if s == "" || strings.ContainsAny(s, "#?") {
		return false
	}
	prevDouble := false
	for _, c := range strings.Split(s, "/") {
		if c == "" {
			return false
		}
		if strings.Contains(c, "*") && c != "*" && c != "**" {
			return false
		}
		if c == "**" && prevDouble {
			return false
		}
		prevDouble = c == "**"
	}
	return true
}

// intersects reports whether some key matches both a and b.
func intersects(a, b string) bool {
	return chunksIntersect(strings.Split(a, "/"), strings.Split(b, "/"))
}

func chunksIntersect(a, b []string) bool {
	switch {
	case len(a) == 0 && len(b) == 0:
		return true
	case len(a) == 0:
		return onlyDoubleStars(b)
	case len(b) == 0:
		return onlyDoubleStars(a)
	case a[0] == "**":
		return chunksIntersect(a[1:], b) || chunksIntersect(a, b[1:])
	case b[0] == "**":
		return chunksIntersect(a, b[1:]) || chunksIntersect(a[1:], b)
	case a[0] == "*" || b[0] == "*" || a[0] == b[0]:
		return chunksIntersect(a[1:], b[1:])
	default:
		return false
	}
}

func onlyDoubleStars(cs []string) bool {
	for _, c := range cs {
		if c != "**" {
			return false
		}
	}
	return true
}
