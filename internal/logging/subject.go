package logging

import "strings"

const shortIDLength = 8

// FormatSubject builds the "req <id> (stage)" prefix used in console output.
// Request IDs are shortened to keep lines readable.
func FormatSubject(requestID, stage string) string {
	requestID = strings.TrimSpace(requestID)
	stage = strings.TrimSpace(stage)
	if len(requestID) > shortIDLength {
		requestID = requestID[:shortIDLength]
	}
	switch {
	case requestID != "" && stage != "":
		return "req " + requestID + " (" + stage + ")"
	case requestID != "":
		return "req " + requestID
	case stage != "":
		return "(" + stage + ")"
	default:
		return ""
	}
}
