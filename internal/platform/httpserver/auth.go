package httpserver

import (
	"net/http"
	"strings"
)

// Authentication happens at the gateway; it forwards the bearer token and
// the resolved identity headers.

func requireActor(w http.ResponseWriter, r *http.Request) (string, bool) {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		writeError(w, http.StatusUnauthorized, "unauthorized", "bearer token is required")
		return "", false
	}
	actorID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if actorID == "" {
		writeError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return "", false
	}
	return actorID, true
}

func requireAdmin(w http.ResponseWriter, r *http.Request) (string, bool) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return "", false
	}
	if !isAdmin(r) {
		writeError(w, http.StatusForbidden, "forbidden", "admin role is required")
		return "", false
	}
	return actorID, true
}

func isAdmin(r *http.Request) bool {
	return strings.EqualFold(strings.TrimSpace(r.Header.Get("X-User-Role")), "admin")
}

func canRead(r *http.Request, actorID string, subjectID string) bool {
	return actorID == strings.TrimSpace(subjectID) || isAdmin(r)
}
