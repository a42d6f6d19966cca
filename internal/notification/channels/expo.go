package channels

import (
	"context"
	"fmt"
	"time"

	commonhttp "github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/http"
)

// ExpoMessage is one entry of an Expo push send request.
type ExpoMessage struct {
	To       string            `json:"to"`
	Title    string            `json:"title,omitempty"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Sound    string            `json:"sound,omitempty"`
	Priority string            `json:"priority,omitempty"`
	TTL      int               `json:"ttl,omitempty"`
}

// ExpoTicket is Expo's per-message receipt.
type ExpoTicket struct {
	Status  string                 `json:"status"`
	ID      string                 `json:"id,omitempty"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

type expoResponse struct {
	Data   []ExpoTicket `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

// ExpoPusher sends push messages through the Expo push service.
type ExpoPusher interface {
	Push(ctx context.Context, msg ExpoMessage) (ExpoTicket, error)
}

type ExpoClient struct {
	url         string
	accessToken string
	http        *commonhttp.Client
}

func NewExpoClient(url, accessToken string, timeout time.Duration) *ExpoClient {
	return &ExpoClient{
		url:         url,
		accessToken: accessToken,
		http:        commonhttp.NewClient(timeout),
	}
}

// Push sends a single message and returns its ticket. A ticket with
// status "error" is returned as an error.
func (c *ExpoClient) Push(ctx context.Context, msg ExpoMessage) (ExpoTicket, error) {
	headers := map[string]string{}
	if c.accessToken != "" {
		headers["Authorization"] = "Bearer " + c.accessToken
	}

	var resp expoResponse
	if err := c.http.PostJSON(ctx, c.url, headers, []ExpoMessage{msg}, &resp); err != nil {
		if len(resp.Errors) > 0 {
			return ExpoTicket{}, fmt.Errorf("expo push: %s: %s: %w", resp.Errors[0].Code, resp.Errors[0].Message, err)
		}
		return ExpoTicket{}, fmt.Errorf("expo push: %w", err)
	}

	if len(resp.Data) == 0 {
		return ExpoTicket{}, fmt.Errorf("expo push: empty ticket list")
	}
	ticket := resp.Data[0]
	if ticket.Status != "ok" {
		return ticket, fmt.Errorf("expo push ticket %s: %s", ticket.Status, ticket.Message)
	}
	return ticket, nil
}
