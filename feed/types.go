// Package feed holds the campus feed domain model: posts, comments, reactions,
// RSVPs, the pure reducer that mutates them and an in-memory store.
package feed

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownPostType is returned when a type tag is not one of the three post kinds.
	ErrUnknownPostType = errors.New("unknown post type")
	// ErrUnknownReaction is returned for emojis outside the fixed reaction set.
	ErrUnknownReaction = errors.New("unknown reaction type")
	// ErrUnknownResponse is returned for RSVP values other than going, interested or not_going.
	ErrUnknownResponse = errors.New("unknown event response")
	// ErrMissingField is returned when a post lacks a field its variant requires.
	ErrMissingField = errors.New("missing required field")
)

// PostType discriminates the three post variants.
type PostType string

const (
	TypeEvent        PostType = "event"
	TypeLostFound    PostType = "lost_found"
	TypeAnnouncement PostType = "announcement"
)

// PostTypes lists every post type in display order.
var PostTypes = []PostType{TypeEvent, TypeLostFound, TypeAnnouncement}

// ParsePostType normalises a type tag coming from outside the process.
func ParsePostType(s string) (PostType, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	switch PostType(norm) {
	case TypeEvent, TypeLostFound, TypeAnnouncement:
		return PostType(norm), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPostType, s)
}

// ReactionType is one of the six fixed emoji reactions.
type ReactionType string

const (
	ReactionThumbsUp ReactionType = "👍"
	ReactionHeart    ReactionType = "❤️"
	ReactionFire     ReactionType = "🔥"
	ReactionWow      ReactionType = "😮"
	ReactionThinking ReactionType = "🤔"
	ReactionSad      ReactionType = "😢"
)

// ReactionTypes is the full reaction set in display order.
var ReactionTypes = []ReactionType{
	ReactionThumbsUp, ReactionHeart, ReactionFire, ReactionWow, ReactionThinking, ReactionSad,
}

var reactionSlugs = map[ReactionType]string{
	ReactionThumbsUp: "thumbs_up",
	ReactionHeart:    "heart",
	ReactionFire:     "fire",
	ReactionWow:      "wow",
	ReactionThinking: "thinking",
	ReactionSad:      "sad",
}

// ParseReactionType accepts a member of ReactionTypes or its slug.
func ParseReactionType(s string) (ReactionType, error) {
	s = strings.TrimSpace(s)
	if r := ReactionType(s); r.Valid() {
		return r, nil
	}
	for r, slug := range reactionSlugs {
		if strings.EqualFold(slug, s) {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownReaction, s)
}

// Slug is the ASCII name of r used for storage.
func (r ReactionType) Slug() string {
	return reactionSlugs[r]
}

// Valid reports whether r belongs to the fixed reaction set.
func (r ReactionType) Valid() bool {
	for _, rt := range ReactionTypes {
		if rt == r {
			return true
		}
	}
	return false
}

// Reactions maps every reaction type to a non-negative count.
type Reactions map[ReactionType]int

// NewReactions returns a zeroed map holding the full key set.
func NewReactions() Reactions {
	r := make(Reactions, len(ReactionTypes))
	for _, rt := range ReactionTypes {
		r[rt] = 0
	}
	return r
}

// Clone copies r, filling missing keys with zero and dropping unknown ones.
func (r Reactions) Clone() Reactions {
	out := NewReactions()
	for _, rt := range ReactionTypes {
		if n := r[rt]; n > 0 {
			out[rt] = n
		}
	}
	return out
}

// Total sums all counts.
func (r Reactions) Total() int {
	total := 0
	for _, n := range r {
		total += n
	}
	return total
}

// Response is a user's RSVP to an event.
type Response string

const (
	ResponseGoing      Response = "going"
	ResponseInterested Response = "interested"
	ResponseNotGoing   Response = "not_going"
)

// ResponseTypes lists the RSVP options in display order.
var ResponseTypes = []Response{ResponseGoing, ResponseInterested, ResponseNotGoing}

// ParseResponse normalises an RSVP value.
func ParseResponse(s string) (Response, error) {
	norm := Response(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !norm.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownResponse, s)
	}
	return norm, nil
}

// Valid reports whether resp is one of the three RSVP options.
func (resp Response) Valid() bool {
	switch resp {
	case ResponseGoing, ResponseInterested, ResponseNotGoing:
		return true
	}
	return false
}

// Responses maps every RSVP option to a non-negative count.
type Responses map[Response]int

// NewResponses returns a zeroed map holding all three keys.
func NewResponses() Responses {
	return Responses{ResponseGoing: 0, ResponseInterested: 0, ResponseNotGoing: 0}
}

// Clone copies r, filling missing keys with zero.
func (r Responses) Clone() Responses {
	out := NewResponses()
	for _, resp := range ResponseTypes {
		if n := r[resp]; n > 0 {
			out[resp] = n
		}
	}
	return out
}

// ItemType tells whether a lost & found post reports a lost or a found item.
type ItemType string

const (
	ItemLost  ItemType = "lost"
	ItemFound ItemType = "found"
)

// Author identifies the user creating a post or comment.
type Author struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Comment is a top-level comment or a reply. Replies of replies are never created.
type Comment struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Timestamp  string    `json:"timestamp"`
	Reactions  Reactions `json:"reactions"`
	Replies    []Comment `json:"replies"`
	ParentID   string    `json:"parentId,omitempty"`
}

// Clone deep-copies c.
func (c Comment) Clone() Comment {
	out := c
	out.Reactions = c.Reactions.Clone()
	out.Replies = cloneComments(c.Replies)
	return out
}

func cloneComments(in []Comment) []Comment {
	out := make([]Comment, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}

// EventDetails carries the fields specific to event posts.
type EventDetails struct {
	Location   string
	Date       string
	Time       string
	Department string
	Responses  Responses
}

// LostFoundDetails carries the fields specific to lost & found posts.
type LostFoundDetails struct {
	ItemType ItemType
	ItemName string
	Location string
}

// AnnouncementDetails carries the fields specific to announcements.
type AnnouncementDetails struct {
	Department    string
	AttachmentURL string
}

// PostPreview is the editable draft produced by classification. Empty strings mean absent.
type PostPreview struct {
	Type          PostType `json:"type"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Location      string   `json:"location,omitempty"`
	Date          string   `json:"date,omitempty"`
	Time          string   `json:"time,omitempty"`
	Department    string   `json:"department,omitempty"`
	ItemType      ItemType `json:"itemType,omitempty"`
	ItemName      string   `json:"itemName,omitempty"`
	ImageURL      string   `json:"imageUrl,omitempty"`
	AttachmentURL string   `json:"attachmentUrl,omitempty"`
}
