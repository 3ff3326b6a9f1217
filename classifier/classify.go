// Package classifier turns free text into a typed post preview: keyword
// extraction, rule-based classification, title/description enhancement and an
// optional LLM-backed classifier that falls back to the local rules.
package classifier

import (
	"strings"

	"github.com/campusfeed/campusfeed/feed"
)

// Confidence values reported by the keyword rules.
const (
	ConfidenceLostFound    = 0.95
	ConfidenceEvent        = 0.92
	ConfidenceAnnouncement = 0.88
	ConfidenceFallback     = 0.6
)

// Result is the outcome of classifying a piece of text.
type Result struct {
	Type          feed.PostType    `json:"type"`
	Confidence    float64          `json:"confidence"`
	ExtractedData feed.PostPreview `json:"extractedData"`
}

type rule struct {
	postType   feed.PostType
	confidence float64
	keywords   []string
	extract    func(e *Extractor, text, lower string, pv *feed.PostPreview)
}

func (r rule) matches(lower string) bool {
	for _, kw := range r.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// rules are evaluated top-down; the first match wins.
var rules = []rule{
	{
		postType:   feed.TypeLostFound,
		confidence: ConfidenceLostFound,
		keywords:   []string{"lost", "found", "wallet", "phone", "keys", "book"},
		extract: func(e *Extractor, text, lower string, pv *feed.PostPreview) {
			pv.ItemType = feed.ItemLost
			if strings.Contains(lower, "found") {
				pv.ItemType = feed.ItemFound
			}
			pv.ItemName = e.ItemName(text)
			pv.Location = e.Location(text)
		},
	},
	{
		postType:   feed.TypeEvent,
		confidence: ConfidenceEvent,
		keywords:   []string{"workshop", "event", "meeting", "seminar", "tomorrow", "today", "pm", "am"},
		extract: func(e *Extractor, text, _ string, pv *feed.PostPreview) {
			pv.Location = e.Location(text)
			pv.Date = e.Date(text)
			pv.Time = e.Time(text)
			pv.Department = e.Department(text)
		},
	},
	{
		postType:   feed.TypeAnnouncement,
		confidence: ConfidenceAnnouncement,
		keywords:   []string{"announcement", "notice", "department", "official", "timetable", "schedule"},
		extract: func(e *Extractor, text, _ string, pv *feed.PostPreview) {
			pv.Department = e.Department(text)
		},
	},
}

// Classifier is the local keyword classifier. It never fails.
type Classifier struct {
	Extractor *Extractor
}

// New returns a Classifier using e for field extraction. A nil e uses defaults.
func New(e *Extractor) *Classifier {
	if e == nil {
		e = &Extractor{}
	}
	return &Classifier{Extractor: e}
}

// Classify picks a post type for text and pre-fills the matching fields.
// Text matching no rule is reported as a low-confidence event with only a
// type, title and description.
func (c *Classifier) Classify(text string) Result {
	e := c.Extractor
	lower := strings.ToLower(text)
	pv := feed.PostPreview{
		Title:       e.Title(text),
		Description: text,
	}
	for _, r := range rules {
		if !r.matches(lower) {
			continue
		}
		pv.Type = r.postType
		r.extract(e, text, lower, &pv)
		return Result{Type: r.postType, Confidence: r.confidence, ExtractedData: pv}
	}
	pv.Type = feed.TypeEvent
	return Result{Type: feed.TypeEvent, Confidence: ConfidenceFallback, ExtractedData: pv}
}
