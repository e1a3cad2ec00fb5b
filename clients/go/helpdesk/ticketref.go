package helpdesk

import (
	"regexp"
	"strings"
)

// Legacy notifications embedded the ticket reference in the message
// text, usually but not always separated by " - ". New notifications
// carry the ticket in its own field; this parser exists for rows
// written before that change.
var ticketRefPattern = regexp.MustCompile(`(?:\s*-)?\s*(#\d+/\d+)\s*$`)

// ParseTicketRef splits a legacy notification text into its human part
// and the trailing ticket reference. When no reference is present the
// text is returned unchanged with an empty ticket.
func ParseTicketRef(s string) (text, ticket string) {
	loc := ticketRefPattern.FindStringSubmatchIndex(s)
	if loc == nil {
		return strings.TrimSpace(s), ""
	}
	return strings.TrimSpace(s[:loc[0]]), s[loc[2]:loc[3]]
}
