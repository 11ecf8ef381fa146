package audit

import (
	"net/http"
	"regexp"
	"strings"
)

// ActionResource holds action and resource derived from an HTTP request.
type ActionResource struct {
	Action   string
	Resource string
}

var versionSegment = regexp.MustCompile(`^v\d+$`)

// ParseRequest returns the audit action and resource for a mutating HTTP request, e.g.
// POST /api/v1/users -> {"User.created", "User"} and DELETE /api/v1/files/42 -> {"File.deleted", "File"}.
// The resource is the first path segment after the "api" and version segments, capitalized and singularized
// by dropping a trailing "s". ok is false for non-mutating methods.
func ParseRequest(method, path string) (ar ActionResource, ok bool) {
	verb, ok := methodToVerb(method)
	if !ok {
		return ActionResource{}, false
	}
	resource := pathToResource(path)
	return ActionResource{Action: resource + "." + verb, Resource: resource}, true
}

func methodToVerb(method string) (string, bool) {
	switch strings.ToUpper(method) {
	case http.MethodPost:
		return "created", true
	case http.MethodPut, http.MethodPatch:
		return "updated", true
	case http.MethodDelete:
		return "deleted", true
	default:
		return "", false
	}
}

func pathToResource(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || seg == "api" || versionSegment.MatchString(seg) {
			continue
		}
		seg = strings.TrimSuffix(seg, "s")
		if seg == "" {
			break
		}
		return strings.ToUpper(seg[:1]) + seg[1:]
	}
	return "Unknown"
}
