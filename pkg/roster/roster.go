// pkg/roster/roster.go
package roster

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/validation"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/models"
)

// Roster is a file-backed list of users used to seed the users table.
type Roster struct {
	Version     string             `json:"version"`
	LastUpdated string             `json:"lastUpdated"`
	Users       []models.Recipient `json:"users"`
}

func Load(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Roster
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	return &r, nil
}

// Save writes the roster, creating parent directories as needed.
func Save(r *Roster, path string) error {
	r.LastUpdated = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal roster: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create roster directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write roster: %w", err)
	}
	return nil
}

// Add appends u after validating it. IDs must be unique.
func (r *Roster) Add(u models.Recipient) error {
	for _, existing := range r.Users {
		if existing.ID == u.ID {
			return fmt.Errorf("user with ID %s already exists", u.ID)
		}
	}
	if err := Normalize(&u); err != nil {
		return err
	}
	r.Users = append(r.Users, u)
	return nil
}

// Validate normalizes every user in place and reports the first problem.
func (r *Roster) Validate() error {
	if len(r.Users) == 0 {
		return fmt.Errorf("roster contains no users")
	}
	ids := make(map[string]bool, len(r.Users))
	for i := range r.Users {
		if err := Normalize(&r.Users[i]); err != nil {
			return err
		}
		id := r.Users[i].ID
		if ids[id] {
			return fmt.Errorf("duplicate user ID: %s", id)
		}
		ids[id] = true
	}
	return nil
}

// Normalize trims u, lowercases its role and classifies its push token.
// Enabled channels need a valid address.
func Normalize(u *models.Recipient) error {
	u.ID = strings.TrimSpace(u.ID)
	u.Role = strings.ToLower(strings.TrimSpace(u.Role))
	u.Email = strings.TrimSpace(u.Email)
	u.Phone = strings.TrimSpace(u.Phone)

	if u.ID == "" {
		return fmt.Errorf("user missing required field: id")
	}
	if u.Role == "" {
		return fmt.Errorf("user %s missing required field: role", u.ID)
	}
	if u.Email != "" && !validation.ValidateEmail(u.Email) {
		return fmt.Errorf("user %s: invalid email %q", u.ID, u.Email)
	}
	if u.Phone != "" && !validation.ValidatePhone(u.Phone) {
		return fmt.Errorf("user %s: phone %q is not E.164", u.ID, u.Phone)
	}
	if u.PushToken.Value != "" {
		token, err := models.ParsePushToken(u.PushToken.Value)
		if err != nil {
			return fmt.Errorf("user %s: %w", u.ID, err)
		}
		u.PushToken = token
	}

	if u.Channels.Email && u.Email == "" {
		return fmt.Errorf("user %s: email enabled without an address", u.ID)
	}
	if u.Channels.SMS && u.Phone == "" {
		return fmt.Errorf("user %s: sms enabled without a phone", u.ID)
	}
	if u.Channels.Push && u.PushToken.IsZero() {
		return fmt.Errorf("user %s: push enabled without a token", u.ID)
	}
	return nil
}
