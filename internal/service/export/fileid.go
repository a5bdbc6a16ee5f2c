package export

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// GenerateFileID builds the CSV file name
// csv-[incomplete_results-]<name>-<YYYY-MM-DD-HH-mm-ss-SSSS>.csv where the
// last group is the time in units of 100µs.
func GenerateFileID(name string, truncated bool, t time.Time) string {
	var b strings.Builder
	b.WriteString("csv-")
	if truncated {
		b.WriteString("incomplete_results-")
	}
	if s := sanitizeName(name); s != "" {
		b.WriteString(s)
		b.WriteString("-")
	}
	fmt.Fprintf(&b, "%s-%04d.csv", t.Format("2006-01-02-15-04-05"), t.Nanosecond()/100_000)
	return b.String()
}

// sanitizeName lower-cases name and collapses runs of other characters into
// a single underscore.
func sanitizeName(name string) string {
	s := nonAlphanumeric.ReplaceAllString(strings.ToLower(name), "_")
	return strings.Trim(s, "_")
}

// IsTruncated reports whether an export of rows x columns exceeds the cell
// budget. One row width is held back so an export that lands right at the
// limit is still flagged.
func IsTruncated(rows, columns, cellsLimit int) bool {
	return rows*columns > cellsLimit-columns
}

var fileIDRe = regexp.MustCompile(`^csv-[a-z0-9_-]+\.csv$`)

// ValidFileID reports whether id has the shape GenerateFileID produces.
func ValidFileID(id string) bool {
	return fileIDRe.MatchString(id) && !strings.Contains(id, "..")
}
