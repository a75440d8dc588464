// Package dates converts free-text date expressions from event listings
// ("Jan 14", "Thu, Jan 19 – Thu, Jan 26") into absolute timestamps.
package dates

import (
	"regexp"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// FallbackDelay is how far into the future unparseable dates land. Strictly
// greater than zero so a defaulted record is never immediately reclassified
// as past under races with the expiry step.
const FallbackDelay = 24 * time.Hour

// Leading weekday name ("Thu, " / "Thursday, "). Stripped before layout
// parsing because year-less layouts cannot verify the weekday.
var weekdayPrefix = regexp.MustCompile(`^[A-Za-z]{3,9},\s*`)

var rangeSeparators = []string{"–", "—", " - ", " to "}

// Layouts carrying an explicit year resolve directly.
var yearLayouts = []string{"Jan 2, 2006", "January 2, 2006", "2006-01-02", "Jan 2 2006"}

// Year-less layouts resolve against the current year, rolling forward when
// the date has already passed.
var yearlessLayouts = []string{"Jan 2", "January 2"}

// Resolver parses listing date text. It is safe for concurrent use; all
// methods are pure functions of their arguments.
type Resolver struct {
	parser *when.Parser
}

func New() *Resolver {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &Resolver{parser: w}
}

// Resolve converts raw into an absolute instant relative to now. When the
// text is absent or unparseable it returns now + FallbackDelay, never now
// itself, so the caller's future-event filter keeps the record.
func (r *Resolver) Resolve(raw string, now time.Time) time.Time {
	text := firstRangeSegment(strings.TrimSpace(raw))
	if text == "" {
		return now.Add(FallbackDelay)
	}
	text = weekdayPrefix.ReplaceAllString(text, "")

	for _, layout := range yearLayouts {
		if t, err := time.ParseInLocation(layout, text, now.Location()); err == nil {
			return t
		}
	}

	for _, layout := range yearlessLayouts {
		t, err := time.ParseInLocation(layout, text, now.Location())
		if err != nil {
			continue
		}
		resolved := time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location())
		if resolved.Before(startOfDay(now)) {
			// "Jan 14" seen in December means next January.
			resolved = resolved.AddDate(1, 0, 0)
		}
		return resolved
	}

	if res, err := r.parser.Parse(text, now); err == nil && res != nil {
		return res.Time
	}

	return now.Add(FallbackDelay)
}

// firstRangeSegment reduces "Thu, Jan 19 – Thu, Jan 26" to its opening
// expression; an event's start date is what the pipeline filters on.
func firstRangeSegment(text string) string {
	for _, sep := range rangeSeparators {
		if idx := strings.Index(text, sep); idx > 0 {
			return strings.TrimSpace(text[:idx])
		}
	}
	return text
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
