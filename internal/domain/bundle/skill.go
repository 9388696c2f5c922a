package bundle

import (
	"regexp"
	"strings"

	"github.com/GriffinCanCode/BundleOS/backend/internal/shared/types"
)

// SkillURI is one URI pattern a skill advertises. At most one of Path,
// PathStartWith, and PathRegex is meaningful per entry.
type SkillURI struct {
	Scheme        string `json:"scheme,omitempty"`
	Host          string `json:"host,omitempty"`
	Port          string `json:"port,omitempty"`
	Path          string `json:"path,omitempty"`
	PathStartWith string `json:"pathStartWith,omitempty"`
	PathRegex     string `json:"pathRegex,omitempty"`
	Type          string `json:"type,omitempty"`
}

// Skill is the set of actions, entities, and URI patterns one component
// advertises for request matching.
type Skill struct {
	Actions  []string   `json:"actions,omitempty"`
	Entities []string   `json:"entities,omitempty"`
	URIs     []SkillURI `json:"uris,omitempty"`
}

// Match reports whether this skill satisfies a query. An empty query
// action matches any skill that declares at least one action.
func (s Skill) Match(want types.Want) bool {
	return s.matchAction(want.Action) &&
		s.matchEntities(want.Entities) &&
		s.matchURIAndType(want.URI, want.Type)
}

func (s Skill) matchAction(action string) bool {
	if action == "" {
		return len(s.Actions) > 0
	}
	for _, a := range s.Actions {
		if a == action {
			return true
		}
	}
	return false
}

func (s Skill) matchEntities(entities []string) bool {
	for _, want := range entities {
		found := false
		for _, have := range s.Entities {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// matchURIAndType implements the four-case rule: an empty query matches
// only skills without URI declarations (or with an untyped, schemeless
// entry); a URI-only query needs a matching untyped entry; a type-only
// query needs a matching schemeless entry; a full query needs both
// halves to hold on the same entry.
func (s Skill) matchURIAndType(uri, mimeType string) bool {
	if uri == "" && mimeType == "" {
		if len(s.URIs) == 0 {
			return true
		}
		for _, u := range s.URIs {
			if u.Scheme == "" && u.Type == "" {
				return true
			}
		}
		return false
	}

	for _, u := range s.URIs {
		switch {
		case mimeType == "":
			if matchURI(uri, u) && u.Type == "" {
				return true
			}
		case uri == "":
			if u.Scheme == "" && matchType(mimeType, u.Type) {
				return true
			}
		default:
			if matchURI(uri, u) && matchType(mimeType, u.Type) {
				return true
			}
		}
	}
	return false
}

func matchURI(uri string, u SkillURI) bool {
	if u.Scheme == "" {
		return uri == ""
	}
	if u.Host == "" {
		// Scheme-only pattern matches "scheme" and any "scheme://..." uri.
		return uri == u.Scheme || strings.HasPrefix(uri, u.Scheme+"://")
	}

	prefix := u.Scheme + "://" + u.Host
	if u.Port != "" {
		prefix += ":" + u.Port
	}

	switch {
	case u.PathStartWith != "":
		return strings.HasPrefix(uri, prefix+"/"+u.PathStartWith)
	case u.PathRegex != "":
		re, err := regexp.Compile("^" + u.PathRegex + "$")
		if err != nil {
			return false
		}
		if !strings.HasPrefix(uri, prefix+"/") {
			return false
		}
		return re.MatchString(strings.TrimPrefix(uri, prefix+"/"))
	case u.Path != "":
		return uri == prefix+"/"+u.Path
	default:
		return uri == prefix || uri == prefix+"/"
	}
}

// matchType compares MIME types. A literal */* on either side matches
// anything; a skill type with a trailing * matches by prefix.
func matchType(want, have string) bool {
	if want == "" && have == "" {
		return true
	}
	if want == "" || have == "" {
		return false
	}
	if want == "*/*" || have == "*/*" {
		return true
	}
	if strings.HasSuffix(have, "*") {
		return strings.HasPrefix(want, strings.TrimSuffix(have, "*"))
	}
	return want == have
}
