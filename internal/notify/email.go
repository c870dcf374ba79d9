package notify

import (
	"fmt"
	"html"
	"strings"

	"github.com/statuswatch/statuswatch/internal/status"
)

// Email is rendered notification content ready for the mailer.
type Email struct {
	Subject  string
	TextBody string
	HTMLBody string
}

var statusLabels = map[status.Status]string{
	status.Operational:      "Operational",
	status.RecentlyResolved: "Recently resolved",
	status.Maintenance:      "Maintenance",
	status.Degraded:         "Degraded",
	status.Incident:         "Incident",
	status.Unknown:          "Unknown",
}

func label(s status.Status) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// BuildEmail renders the notification for one decision.
func BuildEmail(decision Decision, siteName string, prev, curr status.Status, summary, statusPage string) Email {
	var subject, headline string
	switch decision.Kind {
	case KindRecovery:
		subject = fmt.Sprintf("[statuswatch] %s recovered", siteName)
		headline = fmt.Sprintf("%s is back to %s.", siteName, strings.ToLower(label(curr)))
	default:
		subject = fmt.Sprintf("[statuswatch] %s: %s", siteName, label(curr))
		headline = fmt.Sprintf("%s changed from %s to %s.", siteName, label(prev), label(curr))
	}

	var text strings.Builder
	text.WriteString(headline + "\n\n")
	if summary != "" {
		text.WriteString("Current summary: " + summary + "\n\n")
	}
	if statusPage != "" {
		text.WriteString("Status page: " + statusPage + "\n")
	}

	var htmlBody strings.Builder
	htmlBody.WriteString("<h2>" + html.EscapeString(headline) + "</h2>")
	if summary != "" {
		htmlBody.WriteString("<p>" + html.EscapeString(summary) + "</p>")
	}
	if statusPage != "" {
		htmlBody.WriteString(fmt.Sprintf(`<p><a href="%s">Status page</a></p>`, html.EscapeString(statusPage)))
	}

	return Email{Subject: subject, TextBody: text.String(), HTMLBody: htmlBody.String()}
}
