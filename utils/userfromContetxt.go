package utils

import (
	"net/http"

	"atelier/globals"
)

func GetUserIDFromRequest(r *http.Request) string {
	requestingUserID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || requestingUserID == "" {
		return ""
	}
	return requestingUserID
}

func GetUsernameFromRequest(r *http.Request) string {
	name, _ := r.Context().Value(globals.UsernameKey).(string)
	return name
}

// HasRole reports whether the authenticated caller carries role.
func HasRole(r *http.Request, role string) bool {
	roles, _ := r.Context().Value(globals.RoleKey).([]string)
	return Contains(roles, role)
}
