package core

import "time"

// UserInfo is the reserved `user` key exposed in every execution context
// (§4.1 context layout). It is supplied by the caller (the out-of-scope
// user/auth collaborator) — this engine never looks it up itself.
type UserInfo struct {
	ID       ID     `json:"id"`
	Email    string `json:"email"`
	Timezone string `json:"timezone"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

// AsMap renders UserInfo into the plain map form the template context uses.
func (u UserInfo) AsMap() map[string]any {
	return map[string]any{
		"id":       u.ID.String(),
		"email":    u.Email,
		"timezone": u.Timezone,
		"name":     u.Name,
		"phone":    u.Phone,
	}
}

// Location resolves the user's IANA timezone, falling back to UTC when
// unset or invalid — per §4.1's "falling back to UTC when unset" rule for
// built-in date/time variables.
func (u UserInfo) Location() *time.Location {
	if u.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
