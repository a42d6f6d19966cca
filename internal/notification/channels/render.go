package channels

import (
	"fmt"
	"html"
	"strings"
)

const maxSMSLength = 1400

func severityTag(msg Message) string {
	if msg.Severity == "" {
		return "ALERT"
	}
	return strings.ToUpper(string(msg.Severity))
}

func emailSubject(msg Message) string {
	return fmt.Sprintf("[%s] %s", severityTag(msg), msg.Title)
}

func emailText(msg Message) string {
	return fmt.Sprintf("%s\n\n%s\n\nSeverity: %s", msg.Title, msg.Body, severityTag(msg))
}

func emailHTML(msg Message) string {
	return fmt.Sprintf(
		`<html><body><h2>%s</h2><p>%s</p><p><strong>Severity:</strong> %s</p></body></html>`,
		html.EscapeString(msg.Title),
		strings.ReplaceAll(html.EscapeString(msg.Body), "\n", "<br>"),
		severityTag(msg),
	)
}

// smsText renders the SMS body, truncated on a rune boundary.
func smsText(msg Message) string {
	text := fmt.Sprintf("EMERGENCY ALERT [%s] %s: %s", severityTag(msg), msg.Title, msg.Body)
	runes := []rune(text)
	if len(runes) <= maxSMSLength {
		return text
	}
	return string(runes[:maxSMSLength-3]) + "..."
}
