package models

import (
	"fmt"
	"regexp"
	"strings"
)

// ChannelPreferences records which channels a user accepts.
type ChannelPreferences struct {
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
	Push  bool `json:"push"`
}

func (p ChannelPreferences) Enabled(c Channel) bool {
	switch c {
	case ChannelEmail:
		return p.Email
	case ChannelSMS:
		return p.SMS
	case ChannelPush:
		return p.Push
	}
	return false
}

// PushTokenKind is decided once, when a token is registered.
type PushTokenKind string

const (
	PushTokenNone  PushTokenKind = ""
	PushTokenExpo  PushTokenKind = "expo"
	PushTokenOther PushTokenKind = "other"
)

// PushToken is a device token tagged with the gateway family it belongs to.
type PushToken struct {
	Kind  PushTokenKind `json:"kind,omitempty"`
	Value string        `json:"value,omitempty"`
}

func (t PushToken) IsZero() bool { return t.Value == "" }

const (
	minOtherTokenLen = 16
	maxOtherTokenLen = 4096
)

var (
	expoTokenPattern  = regexp.MustCompile(`^Expo(nent)?PushToken\[[A-Za-z0-9_\-]+\]$`)
	otherTokenPattern = regexp.MustCompile(`^[A-Za-z0-9:_\-.]+$`)
)

// ParsePushToken classifies a raw token. Expo tokens look like
// ExponentPushToken[xxx]; any other opaque token of at least 16 safe
// characters is accepted as PushTokenOther.
func ParsePushToken(raw string) (PushToken, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return PushToken{}, fmt.Errorf("push token is empty")
	case expoTokenPattern.MatchString(raw):
		return PushToken{Kind: PushTokenExpo, Value: raw}, nil
	case strings.HasPrefix(raw, "Expo"):
		return PushToken{}, fmt.Errorf("malformed Expo push token")
	case len(raw) < minOtherTokenLen || len(raw) > maxOtherTokenLen:
		return PushToken{}, fmt.Errorf("push token must be %d to %d characters", minOtherTokenLen, maxOtherTokenLen)
	case otherTokenPattern.MatchString(raw):
		return PushToken{Kind: PushTokenOther, Value: raw}, nil
	default:
		return PushToken{}, fmt.Errorf("unrecognized push token format")
	}
}

// Recipient is the projection of a user that dispatch needs.
type Recipient struct {
	ID        string             `json:"id"`
	Name      string             `json:"name,omitempty"`
	Role      string             `json:"role"`
	Channels  ChannelPreferences `json:"channels"`
	Email     string             `json:"email,omitempty"`
	Phone     string             `json:"phone,omitempty"`
	PushToken PushToken          `json:"pushToken"`
}

// Address is where a single channel delivers to a recipient.
type Address struct {
	Value    string
	PushKind PushTokenKind
}

func (a Address) Empty() bool { return strings.TrimSpace(a.Value) == "" }

// AddressFor returns the recipient's address for c.
func (r Recipient) AddressFor(c Channel) Address {
	switch c {
	case ChannelEmail:
		return Address{Value: r.Email}
	case ChannelSMS:
		return Address{Value: r.Phone}
	case ChannelPush:
		return Address{Value: r.PushToken.Value, PushKind: r.PushToken.Kind}
	}
	return Address{}
}

// Eligible reports whether c should be attempted for r: the user enabled it
// and has an address for it.
func (r Recipient) Eligible(c Channel) bool {
	return r.Channels.Enabled(c) && !r.AddressFor(c).Empty()
}
