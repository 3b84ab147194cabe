// backend/src/validation/content_scanner.go
package validation

import (
	"fmt"
	"regexp"

	"github.com/username/vtbparse/backend/src/logger"
)

var ErrValidationFailed = fmt.Errorf("validation failed")

var (
	// DTDs enable external entity resolution and entity expansion attacks.
	// Legitimate broker exports never declare them.
	doctypeRegex = regexp.MustCompile(`(?i)<!DOCTYPE`)
	entityRegex  = regexp.MustCompile(`(?i)<!ENTITY`)
	// Processing instructions other than the XML declaration, such as
	// xml-stylesheet, have no business in a statement upload.
	piRegex = regexp.MustCompile(`(?i)<\?(?:xml-stylesheet|php)`)
)

func truncateForLog(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

// CheckXMLThreats scans uploaded statement bytes for constructs the
// parser must never see. It runs on the raw bytes before any decoding so
// a rejected document is never tokenized at all.
func CheckXMLThreats(data []byte) error {
	for _, probe := range []struct {
		re   *regexp.Regexp
		what string
	}{
		{doctypeRegex, "DOCTYPE declaration"},
		{entityRegex, "ENTITY declaration"},
		{piRegex, "processing instruction"},
	} {
		if loc := probe.re.FindIndex(data); loc != nil {
			logger.L.Warn("XML upload rejected by content scan",
				"reason", probe.what,
				"contentPreview", truncateForLog(string(data[loc[0]:min(loc[1]+40, len(data))]), 50))
			return fmt.Errorf("%w: disallowed %s in XML upload", ErrValidationFailed, probe.what)
		}
	}
	return nil
}
