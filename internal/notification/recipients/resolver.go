// Package recipients expands alert targeting into the concrete set of users
// to notify.
package recipients

import (
	"strings"

	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/errors"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/models"
)

// Resolve returns the users selected by targeting: everyone when All is set,
// plus users whose role matches one of Roles (case-insensitive), plus the
// users listed in UserIDs. Each user appears once, in the order of users.
//
// An empty result is valid. Targeting with no criterion fails with
// INVALID_TARGETING and explicit IDs absent from users fail with
// USER_NOT_FOUND.
func Resolve(targeting models.Targeting, users []models.Recipient) ([]models.Recipient, error) {
	if targeting.Empty() {
		return nil, errors.NewInvalidTargetingError("targeting must set all, roles or userIds")
	}

	wanted := make(map[string]bool, len(targeting.UserIDs))
	for _, id := range targeting.UserIDs {
		if id = strings.TrimSpace(id); id != "" {
			wanted[id] = true
		}
	}

	known := make(map[string]bool, len(users))
	for _, u := range users {
		known[u.ID] = true
	}
	if unknown := missing(targeting.UserIDs, known); len(unknown) > 0 {
		return nil, errors.NewUserNotFoundError(unknown...)
	}

	roles := make([]string, 0, len(targeting.Roles))
	for _, r := range targeting.Roles {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}

	seen := make(map[string]bool, len(users))
	out := make([]models.Recipient, 0)
	for _, u := range users {
		if seen[u.ID] {
			continue
		}
		if targeting.All || wanted[u.ID] || hasRole(roles, u.Role) {
			seen[u.ID] = true
			out = append(out, u)
		}
	}
	return out, nil
}

func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// missing lists ids not in known, without duplicates, in request order.
func missing(ids []string, known map[string]bool) []string {
	var out []string
	reported := make(map[string]bool)
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || known[id] || reported[id] {
			continue
		}
		reported[id] = true
		out = append(out, id)
	}
	return out
}
