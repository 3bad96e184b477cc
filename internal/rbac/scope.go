package rbac

import (
	"encoding/json"
	"strconv"
	"strings"
)

// NormalizeID canonicalizes an identifier that may arrive as a number or a
// string depending on which client produced it ("5", 5 and 5.0 are the same
// id). Numeric values become their decimal representation; other strings are
// trimmed and lower-cased (community ids are UUIDs). The second return value
// is false for values that cannot identify anything.
func NormalizeID(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return "", false
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return strconv.FormatInt(n, 10), true
		}
		return strings.ToLower(s), true
	case int:
		return strconv.FormatInt(int64(t), 10), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case float64:
		// JSON numbers decode as float64; ids are always integral.
		return strconv.FormatInt(int64(t), 10), true
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return strconv.FormatInt(n, 10), true
		}
		return "", false
	default:
		return "", false
	}
}

// sameID compares two possibly mixed-type identifiers after normalization.
func sameID(a, b any) bool {
	na, ok := NormalizeID(a)
	if !ok {
		return false
	}
	nb, ok := NormalizeID(b)
	if !ok {
		return false
	}
	return na == nb
}

// Matches reports whether an assignment scope covers the resource scope.
// A global assignment covers everything of its role; otherwise the populated
// field of the resource scope must match the assignment's after id
// normalization.
func (s Scope) Matches(resource Scope) bool {
	switch resource.Kind() {
	case ScopeGlobal:
		return s.Kind() == ScopeGlobal
	case ScopeSchool:
		return s.SchoolID != nil && sameID(*s.SchoolID, *resource.SchoolID)
	case ScopeGeneration:
		return s.GenerationID != nil && sameID(*s.GenerationID, *resource.GenerationID)
	case ScopeCommunity:
		return s.CommunityID != nil && sameID(*s.CommunityID, *resource.CommunityID)
	default:
		return false
	}
}

// SchoolScope builds a school-owned scope.
func SchoolScope(schoolID int64) Scope {
	return Scope{SchoolID: &schoolID}
}

// GenerationScope builds a generation-owned scope.
func GenerationScope(generationID int64) Scope {
	return Scope{GenerationID: &generationID}
}

// CommunityScope builds a community-owned scope.
func CommunityScope(communityID string) Scope {
	communityID = strings.TrimSpace(communityID)
	if communityID == "" {
		return Scope{}
	}
	return Scope{CommunityID: &communityID}
}
