package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/iammorganparry/clive/apps/understanding/internal/clock"
	"github.com/iammorganparry/clive/apps/understanding/internal/models"
)

// DefaultBlockMinutes is the length of a scheduled block without an
// explicit duration or end.
const DefaultBlockMinutes = 60

// Slot families decide which keys a resolved date lands in.
const (
	FamilySchedule = "schedule"
	FamilyGoal     = "goal"
	FamilyJournal  = "journal"
)

var (
	weekdayRe    = regexp.MustCompile(`(?i)\b(next|this)?\s*(sunday|monday|tuesday|wednesday|thursday|friday|saturday)\b`)
	dayAfterRe   = regexp.MustCompile(`(?i)\bday after tomorrow\b`)
	tomorrowRe   = regexp.MustCompile(`(?i)\btomorrow\b`)
	todayRe      = regexp.MustCompile(`(?i)\btoday\b`)
	tonightRe    = regexp.MustCompile(`(?i)\btonight\b`)
	isoDateRe    = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	slashDateRe  = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
	monthDateRe  = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\s+(\d{1,2})(?:,?\s*(\d{4}))?\b`)
	meridiemRe   = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s?(am|pm)\b`)
	clockRe      = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	atHourRe     = regexp.MustCompile(`(?i)(?:\bat|@)\s*(\d{1,2})\b`)
	durationRe   = regexp.MustCompile(`(?i)for\s+(\d{1,2})\s*(minutes?|hours?)`)
	goalTitleRe  = regexp.MustCompile(`(?i)(?:goal|aim|plan)\s+(?:to|is to)?\s*(.+)$`)
	entryTitleRe = regexp.MustCompile(`(?i)(?:about|on)\s+([^.!?]+)`)
)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
}

// SlotOptions controls one Fill call.
type SlotOptions struct {
	// TimeZone resolves relative dates and clock times; unknown zones fall
	// back to UTC.
	TimeZone string
	// Now overrides the filler's clock.
	Now time.Time
}

// SlotFiller extracts dates, times, durations and titles from text.
type SlotFiller struct {
	clock clock.Clock
}

func NewSlotFiller(c clock.Clock) *SlotFiller {
	return &SlotFiller{clock: clock.OrReal(c)}
}

// Fill returns a copy of in with slots derived from text merged over its
// existing slots. Resolved instants are RFC 3339 in UTC.
func (f *SlotFiller) Fill(text string, in models.RoutedIntent, opts SlotOptions) models.RoutedIntent {
	loc := time.UTC
	if opts.TimeZone != "" {
		if l, err := time.LoadLocation(opts.TimeZone); err == nil {
			loc = l
		}
	}
	now := opts.Now
	if now.IsZero() {
		now = f.clock.Now()
	}
	now = now.In(loc)

	slots := make(map[string]string, len(in.Slots)+3)
	for k, v := range in.Slots {
		slots[k] = v
	}
	family := SlotFamily(in)

	duration := 0
	if m := durationRe.FindStringSubmatch(text); m != nil {
		qty, _ := strconv.Atoi(m[1])
		duration = qty
		if strings.HasPrefix(strings.ToLower(m[2]), "hour") {
			duration = qty * 60
		}
		slots["duration_minutes"] = strconv.Itoa(duration)
	}

	date, ok := resolveDate(text, now)
	if !ok && tonightRe.MatchString(text) {
		date, ok = atClock(now, 20, 0), true
	}
	base := now
	if ok {
		base = date
	}
	if h, m, found := clockTimeOf(text); found {
		date, ok = atClock(base, h, m), true
	}

	if ok {
		switch family {
		case FamilySchedule:
			if date.Before(now) {
				date = date.AddDate(0, 0, 7)
			}
			slots["start"] = isoUTC(date)
			if _, exists := slots["end"]; !exists {
				minutes := duration
				if minutes <= 0 {
					minutes = DefaultBlockMinutes
				}
				slots["end"] = isoUTC(date.Add(time.Duration(minutes) * time.Minute))
			}
		case FamilyGoal:
			slots["due"] = date.Format(time.DateOnly)
		case FamilyJournal:
			slots["ts"] = isoUTC(date)
		}
	}

	if _, exists := slots["title"]; !exists {
		switch family {
		case FamilyGoal:
			if m := goalTitleRe.FindStringSubmatch(text); m != nil && strings.TrimSpace(m[1]) != "" {
				slots["title"] = ToTitleCase(strings.TrimSpace(m[1]))
			}
		case FamilyJournal:
			if m := entryTitleRe.FindStringSubmatch(text); m != nil && strings.TrimSpace(m[1]) != "" {
				slots["title"] = ToTitleCase(strings.TrimSpace(m[1]))
			}
		}
	}

	return in.WithSlots(slots)
}

// SlotFamily names the slot keys an intent uses: the family found in its
// label, else the entry type of its definition.
func SlotFamily(in models.RoutedIntent) string {
	label := in.RawLabel
	if label == "" {
		label = in.Label
	}
	lower := strings.ToLower(label)
	for _, fam := range []string{FamilySchedule, FamilyGoal, FamilyJournal} {
		if strings.Contains(lower, fam) {
			return fam
		}
	}
	if def, ok := Lookup(label); ok {
		return def.EntryType
	}
	return ""
}

// resolveDate finds a calendar day in text. Explicit dates beat relative
// days, which beat weekdays. Relative days keep the time of now; the
// others start at midnight.
func resolveDate(text string, now time.Time) (time.Time, bool) {
	if d, ok := explicitDate(text, now); ok {
		return d, true
	}
	switch {
	case dayAfterRe.MatchString(text):
		return now.AddDate(0, 0, 2), true
	case tomorrowRe.MatchString(text):
		return now.AddDate(0, 0, 1), true
	case todayRe.MatchString(text):
		return now, true
	}
	return weekdayDate(text, now)
}

func explicitDate(text string, now time.Time) (time.Time, bool) {
	if m := isoDateRe.FindStringSubmatch(text); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		if t, ok := calendarDate(y, mo, d, now.Location()); ok {
			return t, true
		}
	}
	if m := slashDateRe.FindStringSubmatch(text); m != nil {
		mo, _ := strconv.Atoi(m[1])
		d, _ := strconv.Atoi(m[2])
		y := now.Year()
		switch len(m[3]) {
		case 0:
		case 2:
			y, _ = strconv.Atoi("20" + m[3])
		default:
			y, _ = strconv.Atoi(m[3])
		}
		if t, ok := calendarDate(y, mo, d, now.Location()); ok {
			return t, true
		}
	}
	if m := monthDateRe.FindStringSubmatch(text); m != nil {
		mo := monthIndex(m[1])
		d, _ := strconv.Atoi(m[2])
		y := now.Year()
		if m[3] != "" {
			y, _ = strconv.Atoi(m[3])
		}
		if t, ok := calendarDate(y, mo, d, now.Location()); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// weekdayDate resolves "friday", "this friday" and "next friday". A bare or
// "next" weekday naming today means a week from today.
func weekdayDate(text string, now time.Time) (time.Time, bool) {
	m := weekdayRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	target := weekdays[strings.ToLower(m[2])]
	days := (int(target) - int(now.Weekday()) + 7) % 7
	if days == 0 && !strings.EqualFold(m[1], "this") {
		days = 7
	}
	d := now.AddDate(0, 0, days)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, now.Location()), true
}

// clockTimeOf finds "3pm", "15:30" or "at 9", in that order of preference.
func clockTimeOf(text string) (hour, minute int, ok bool) {
	if m := meridiemRe.FindStringSubmatch(text); m != nil {
		hour, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		hour, minute = min(hour, 23), min(minute, 59)
		switch strings.ToLower(m[3]) {
		case "pm":
			if hour < 12 {
				hour += 12
			}
		case "am":
			if hour == 12 {
				hour = 0
			}
		}
		return hour, minute, true
	}
	if m := clockRe.FindStringSubmatch(text); m != nil {
		hour, _ = strconv.Atoi(m[1])
		minute, _ = strconv.Atoi(m[2])
		return min(hour, 23), min(minute, 59), true
	}
	if m := atHourRe.FindStringSubmatch(text); m != nil {
		hour, _ = strconv.Atoi(m[1])
		return min(hour, 23), 0, true
	}
	return 0, 0, false
}

func monthIndex(name string) int {
	prefix := strings.ToLower(name)[:3]
	for i, m := range []string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"} {
		if m == prefix {
			return i + 1
		}
	}
	return 0
}

// calendarDate rejects out-of-range days instead of normalising them.
func calendarDate(y, m, d int, loc *time.Location) (time.Time, bool) {
	if m < 1 || m > 12 || d < 1 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, loc)
	if t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

func atClock(t time.Time, hour, minute int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, t.Location())
}

func isoUTC(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
