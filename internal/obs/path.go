package obs

import "strings"

// CanonicalPath collapses identifiers in BFF routes so metric label cardinality stays bounded.
func CanonicalPath(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" {
		return "/"
	}
	parts := strings.Split(strings.Trim(raw, "/"), "/")
	// /v1/admin/{students,courses}/<id>
	if len(parts) == 4 && parts[0] == "v1" && parts[1] == "admin" &&
		(parts[2] == "students" || parts[2] == "courses") {
		return "/v1/admin/" + parts[2] + "/:id"
	}
	return raw
}
