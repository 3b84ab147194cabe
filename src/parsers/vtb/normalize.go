// backend/src/parsers/vtb/normalize.go
package vtb

import (
	"encoding/xml"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Pure text/attribute normalizers. The report schema is not contractually
// stable: namespaces vary between vintages, attribute names have historical
// aliases, and dates/amounts arrive in Russian locale conventions. Every
// helper here is total: bad input yields a zero value, never an error.

var (
	reISIN         = regexp.MustCompile(`(?i)[A-Z]{2}[A-Z0-9]{9}[0-9]`)
	reTicker       = regexp.MustCompile(`^[A-Za-z0-9.\-]{1,8}$`)
	reDateTimeSec  = regexp.MustCompile(`\d{2}\.\d{2}\.\d{4}\s+\d{2}:\d{2}:\d{2}`)
	reDateTimeMin  = regexp.MustCompile(`\d{2}\.\d{2}\.\d{4}\s+\d{2}:\d{2}`)
	reDateOnly     = regexp.MustCompile(`\d{2}\.\d{2}\.\d{4}`)
	reOperationID  = regexp.MustCompile(`\d{5,}`)
	reRegNumber    = regexp.MustCompile(`\d[0-9A-Za-zА-Яа-я]{0,7}[-/][0-9A-Za-zА-Яа-я/\-]*\d[0-9A-Za-zА-Яа-я/\-]*`)
	nbspReplacer   = strings.NewReplacer(" ", "", " ", "", ",", ".")
)

// lowerAttrs flattens a start element's attributes into a map keyed by the
// lowercased local attribute name. Attribute names are not namespaced in
// these reports, but their casing drifts between revisions.
func lowerAttrs(attrs []xml.Attr) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[strings.ToLower(a.Name.Local)] = a.Value
	}
	return m
}

// firstAttr resolves a logical field against an ordered list of historical
// attribute-name aliases, returning the first non-empty value.
func firstAttr(attrs map[string]string, keys []string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(attrs[k]); v != "" {
			return v
		}
	}
	return ""
}

// toFloat parses a Russian-locale number: non-breaking and thousands
// spaces removed, decimal comma converted to a dot. Empty, dash or
// unparsable input yields 0.
func toFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" || s == "--" {
		return 0
	}
	s = nbspReplacer.Replace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// toInt is toFloat rounded to the nearest integer.
func toInt(s string) int {
	return int(math.Round(toFloat(s)))
}

// parseDecimal parses the same formats as toFloat but keeps exact decimal
// precision for the running totals.
func parseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" || s == "--" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(nbspReplacer.Replace(s))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// parseDateTime resolves a timestamp from loosely formatted text: ISO-8601
// first (with and without time), then day.month.year patterns found
// anywhere in the string, longest form first. The second return is false
// when nothing parses; callers treat that as an unusable row, never as a
// fatal condition.
func parseDateTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if m := reDateTimeSec.FindString(s); m != "" {
		if t, err := time.Parse("02.01.2006 15:04:05", squashSpaces(m)); err == nil {
			return t, true
		}
	}
	if m := reDateTimeMin.FindString(s); m != "" {
		if t, err := time.Parse("02.01.2006 15:04", squashSpaces(m)); err == nil {
			return t, true
		}
	}
	if m := reDateOnly.FindString(s); m != "" {
		if t, err := time.Parse("02.01.2006", m); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseSettlement combines the transfer sub-report's settlement_date and
// settlement_time attribute pair: full timestamp first, then date-only,
// else unusable.
func parseSettlement(dateStr, timeStr string) (time.Time, bool) {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return time.Time{}, false
	}
	datePart := dateStr
	if i := strings.IndexByte(dateStr, 'T'); i >= 0 {
		datePart = dateStr[:i]
	}
	if ts := strings.TrimSpace(timeStr); ts != "" {
		ts = strings.SplitN(ts, ".", 2)[0] // drop fractional seconds
		if t, err := time.Parse("2006-01-02 15:04:05", datePart+" "+ts); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse("2006-01-02T15:04:05", dateStr); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", datePart); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// extractISIN finds a 12-character ISIN-shaped token anywhere in s and
// returns it uppercased. When nothing matches, the trimmed original string
// is returned verbatim so partial instrument identity survives for audit.
func extractISIN(s string) string {
	if m := reISIN.FindString(s); m != "" {
		return strings.ToUpper(m)
	}
	return strings.TrimSpace(s)
}

// findISIN is the strict variant used on free-text comments: it returns
// the matched ISIN or an empty string, never the input text.
func findISIN(s string) string {
	if m := reISIN.FindString(s); m != "" {
		return strings.ToUpper(m)
	}
	return ""
}

// extractTicker takes the first whitespace-delimited token of an
// instrument display name, accepted only when it looks like a short
// exchange symbol. Multi-word names yield an empty ticker rather than a
// false positive.
func extractTicker(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	if reTicker.MatchString(fields[0]) {
		return fields[0]
	}
	return ""
}

// extractRegNumber finds a regulatory/bond registration code such as
// "4B02-01-00965-B-001P": a leading digit, up to 7 alphanumerics (Latin or
// Cyrillic), a hyphen or slash, then more code text containing at least
// one digit.
func extractRegNumber(s string) string {
	return reRegNumber.FindString(s)
}

// firstNumericID returns the first run of 5 or more digits found across
// the given strings, in order. Used for external operation identifiers
// embedded in labels and comments.
func firstNumericID(ss ...string) string {
	for _, s := range ss {
		if m := reOperationID.FindString(s); m != "" {
			return m
		}
	}
	return ""
}

// firstToken keeps only the first whitespace-delimited token. Trade number
// attributes may list several numbers for multi-leg trades; only the first
// identifies the operation.
func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func squashSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
