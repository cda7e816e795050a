package gate

import (
	"net/http"
	"strings"

	"git.sr.ht/~jakintosh/warrant/internal/rbac"
)

// Class decides how much a route demands of a request.
type Class int

const (
	// ClassIdentity is the zero value so an unclassified route is gated.
	ClassIdentity Class = iota
	ClassPublic
	ClassRole
	ClassPage
)

func (c Class) String() string {
	switch c {
	case ClassPublic:
		return "public"
	case ClassIdentity:
		return "identity"
	case ClassRole:
		return "role"
	case ClassPage:
		return "page"
	}
	return "unknown"
}

// Rule classifies requests whose path matches Path. Path is a prefix that
// matches on segment boundaries unless Exact is set. An empty Method
// matches any method. Action applies to ClassRole and, optionally, to
// ClassPage.
type Rule struct {
	Method string
	Path   string
	Exact  bool
	Class  Class
	Action rbac.Action
}

func (r Rule) matches(method, path string) (int, bool) {
	if r.Method != "" && r.Method != method {
		return 0, false
	}
	if r.Exact {
		if path != r.Path {
			return 0, false
		}
		// exact rules outrank any prefix of the same length
		return 2*len(r.Path) + 1, true
	}
	prefix := strings.TrimSuffix(r.Path, "/")
	if path != prefix && !strings.HasPrefix(path, prefix+"/") {
		return 0, false
	}
	score := 2 * len(prefix)
	if r.Method != "" {
		score++
	}
	return score, true
}

// classify returns the most specific matching rule. A request no rule
// matches is treated as identity-required.
func classify(rules []Rule, r *http.Request) Rule {
	best := Rule{Class: ClassIdentity}
	bestScore := -1
	for _, rule := range rules {
		score, ok := rule.matches(r.Method, r.URL.Path)
		if ok && score > bestScore {
			best, bestScore = rule, score
		}
	}
	return best
}
