package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

const (
	// GroupsHeader carries the caller's identity-provider groups, comma
	// separated, as set by the upstream authorizer.
	GroupsHeader = "X-User-Groups"
	AdminGroup   = "ADMINS"
)

func IsAdmin(r *http.Request) bool {
	for _, group := range strings.Split(r.Header.Get(GroupsHeader), ",") {
		if strings.TrimSpace(group) == AdminGroup {
			return true
		}
	}
	return false
}

// RequireAdmin rejects callers outside the admin group with 403.
func RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(r) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "admin access required"})
			return
		}
		next(w, r)
	}
}
