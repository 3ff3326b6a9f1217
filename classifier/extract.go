package classifier

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultLocation   = "NIT Rourkela Campus"
	DefaultTime       = "17:00"
	DefaultDepartment = "General"
	DefaultItemName   = "Item"
	DefaultTitle      = "New Post"
)

// Departments is the campus department list, matched in this order.
var Departments = []string{
	"Computer Science", "CSE", "Mechanical", "Electrical", "Civil", "Chemical",
	"Metallurgy", "Mining", "Biotechnology", "Physics", "Chemistry", "Mathematics",
	"Humanities", "Management",
}

var (
	locationKeywords = map[string]bool{"at": true, "in": true, "near": true, "location": true, "place": true}
	itemNouns        = []string{"wallet", "phone", "keys", "book", "laptop", "bag", "watch"}
	months           = []string{
		"january", "february", "march", "april", "may", "june",
		"july", "august", "september", "october", "november", "december",
	}

	dayMonthRe = regexp.MustCompile(`(?i)(\d{1,2})(?:st|nd|rd|th)?\s+(` + strings.Join(months, "|") + `)`)
	clockRe    = regexp.MustCompile(`(?i)(\d{1,2}):?(\d{2})?\s*(am|pm)`)
)

// Extractor pulls structured fields out of free text. Every method returns a
// usable default when nothing matches. The zero value is ready to use.
type Extractor struct {
	// Now supplies "today" for relative dates. Defaults to time.Now.
	Now func() time.Time
	// Fallback is returned when no location phrase is found.
	Fallback string
}

func (e *Extractor) now() time.Time {
	if e == nil || e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *Extractor) defaultLocation() string {
	if e == nil || e.Fallback == "" {
		return DefaultLocation
	}
	return e.Fallback
}

// Title returns the first sentence of text.
func (e *Extractor) Title(text string) string {
	if title := strings.TrimSpace(firstSentence(text)); title != "" {
		return title
	}
	return DefaultTitle
}

// Location returns the phrase following the first at/in/near/location/place keyword.
func (e *Extractor) Location(text string) string {
	words := strings.Fields(text)
	for i := 0; i < len(words)-1; i++ {
		if !locationKeywords[strings.ToLower(words[i])] {
			continue
		}
		rest := strings.Join(words[i+1:], " ")
		if loc := strings.TrimSpace(firstSentence(rest)); loc != "" {
			return loc
		}
		break
	}
	return e.defaultLocation()
}

// Date returns an ISO date: tomorrow, today, an explicit "<day> <month>" in
// the current year, or tomorrow when nothing matches.
func (e *Extractor) Date(text string) string {
	now := e.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "tomorrow"):
		return today.AddDate(0, 0, 1).Format(time.DateOnly)
	case strings.Contains(lower, "today"):
		return today.Format(time.DateOnly)
	}
	if m := dayMonthRe.FindStringSubmatch(text); m != nil {
		day, _ := strconv.Atoi(m[1])
		month := monthIndex(strings.ToLower(m[2]))
		return time.Date(now.Year(), time.Month(month), day, 0, 0, 0, 0, now.Location()).Format(time.DateOnly)
	}
	return today.AddDate(0, 0, 1).Format(time.DateOnly)
}

// Time returns a 24-hour HH:MM from the first "H[:MM] am|pm" in text.
func (e *Extractor) Time(text string) string {
	m := clockRe.FindStringSubmatch(text)
	if m == nil {
		return DefaultTime
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if hour < 1 || hour > 12 || minute > 59 {
		return DefaultTime
	}
	switch strings.ToLower(m[3]) {
	case "pm":
		if hour != 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	return twoDigits(hour) + ":" + twoDigits(minute)
}

// Department returns the first department from Departments mentioned in text.
func (e *Extractor) Department(text string) string {
	lower := strings.ToLower(text)
	for _, dept := range Departments {
		if strings.Contains(lower, strings.ToLower(dept)) {
			return dept
		}
	}
	return DefaultDepartment
}

// ItemName returns the first known item noun mentioned in text, capitalised.
func (e *Extractor) ItemName(text string) string {
	lower := strings.ToLower(text)
	for _, item := range itemNouns {
		if strings.Contains(lower, item) {
			return strings.ToUpper(item[:1]) + item[1:]
		}
	}
	return DefaultItemName
}

func firstSentence(s string) string {
	if i := strings.IndexAny(s, ".!?"); i >= 0 {
		return s[:i]
	}
	return s
}

func monthIndex(name string) int {
	for i, m := range months {
		if m == name {
			return i + 1
		}
	}
	return 1
}

func twoDigits(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
