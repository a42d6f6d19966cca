package models

import "fmt"

// Channel is a delivery medium for an alert.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

// AllChannels lists the supported channels in dispatch order.
var AllChannels = []Channel{ChannelEmail, ChannelSMS, ChannelPush}

func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush:
		return true
	}
	return false
}

// NormalizeChannels validates the requested channels and drops duplicates,
// keeping first-occurrence order.
func NormalizeChannels(in []Channel) ([]Channel, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("at least one channel is required")
	}
	seen := make(map[Channel]bool, len(in))
	out := make([]Channel, 0, len(in))
	for _, c := range in {
		if !c.Valid() {
			return nil, fmt.Errorf("unsupported channel %q", c)
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out, nil
}
