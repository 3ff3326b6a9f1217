package feed

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimestampLayout is the ISO-8601 form used for post and comment timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Post is a published feed entry. Exactly one of Event, LostFound or
// Announcement is set, matching Type.
type Post struct {
	ID          string
	Type        PostType
	Title       string
	Description string
	AuthorID    string
	AuthorName  string
	Timestamp   string
	Reactions   Reactions
	Comments    []Comment
	ImageURL    string

	Event        *EventDetails
	LostFound    *LostFoundDetails
	Announcement *AnnouncementDetails
}

// NewPost builds a fresh post from a confirmed preview with zeroed counters.
func NewPost(pv PostPreview, author Author, now time.Time) (Post, error) {
	p := Post{
		ID:          NewID("post"),
		Type:        pv.Type,
		Title:       pv.Title,
		Description: pv.Description,
		AuthorID:    author.ID,
		AuthorName:  author.Name,
		Timestamp:   FormatTimestamp(now),
		Reactions:   NewReactions(),
		Comments:    []Comment{},
		ImageURL:    pv.ImageURL,
	}
	if err := p.setDetails(pv); err != nil {
		return Post{}, err
	}
	if err := p.Validate(); err != nil {
		return Post{}, err
	}
	return p, nil
}

func (p *Post) setDetails(pv PostPreview) error {
	p.Event, p.LostFound, p.Announcement = nil, nil, nil
	switch pv.Type {
	case TypeEvent:
		p.Event = &EventDetails{
			Location:   pv.Location,
			Date:       pv.Date,
			Time:       pv.Time,
			Department: pv.Department,
			Responses:  NewResponses(),
		}
	case TypeLostFound:
		p.LostFound = &LostFoundDetails{
			ItemType: pv.ItemType,
			ItemName: pv.ItemName,
			Location: pv.Location,
		}
	case TypeAnnouncement:
		p.Announcement = &AnnouncementDetails{
			Department:    pv.Department,
			AttachmentURL: pv.AttachmentURL,
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPostType, pv.Type)
	}
	return nil
}

// Validate checks that the variant payload matches Type and carries its required fields.
func (p Post) Validate() error {
	missing := func(field string) error {
		return fmt.Errorf("%w: %s post needs %s", ErrMissingField, p.Type, field)
	}
	switch p.Type {
	case TypeEvent:
		if p.Event == nil || p.LostFound != nil || p.Announcement != nil {
			return fmt.Errorf("event post %s has mismatched details", p.ID)
		}
		switch {
		case p.Event.Location == "":
			return missing("location")
		case p.Event.Date == "":
			return missing("date")
		case p.Event.Time == "":
			return missing("time")
		}
	case TypeLostFound:
		if p.LostFound == nil || p.Event != nil || p.Announcement != nil {
			return fmt.Errorf("lost_found post %s has mismatched details", p.ID)
		}
		switch {
		case p.LostFound.ItemType != ItemLost && p.LostFound.ItemType != ItemFound:
			return missing("itemType")
		case p.LostFound.ItemName == "":
			return missing("itemName")
		case p.LostFound.Location == "":
			return missing("location")
		}
	case TypeAnnouncement:
		if p.Announcement == nil || p.Event != nil || p.LostFound != nil {
			return fmt.Errorf("announcement post %s has mismatched details", p.ID)
		}
		if p.Announcement.Department == "" {
			return missing("department")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPostType, p.Type)
	}
	return nil
}

// Preview flattens p back into an editable draft.
func (p Post) Preview() PostPreview {
	pv := PostPreview{
		Type:        p.Type,
		Title:       p.Title,
		Description: p.Description,
		ImageURL:    p.ImageURL,
	}
	switch {
	case p.Event != nil:
		pv.Location = p.Event.Location
		pv.Date = p.Event.Date
		pv.Time = p.Event.Time
		pv.Department = p.Event.Department
	case p.LostFound != nil:
		pv.ItemType = p.LostFound.ItemType
		pv.ItemName = p.LostFound.ItemName
		pv.Location = p.LostFound.Location
	case p.Announcement != nil:
		pv.Department = p.Announcement.Department
		pv.AttachmentURL = p.Announcement.AttachmentURL
	}
	return pv
}

// Clone deep-copies p so that callers never share maps or slices with a store.
func (p Post) Clone() Post {
	out := p
	out.Reactions = p.Reactions.Clone()
	out.Comments = cloneComments(p.Comments)
	if p.Event != nil {
		ev := *p.Event
		ev.Responses = p.Event.Responses.Clone()
		out.Event = &ev
	}
	if p.LostFound != nil {
		lf := *p.LostFound
		out.LostFound = &lf
	}
	if p.Announcement != nil {
		an := *p.Announcement
		out.Announcement = &an
	}
	return out
}

type wirePost struct {
	ID            string    `json:"id"`
	Type          PostType  `json:"type"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	AuthorID      string    `json:"authorId"`
	AuthorName    string    `json:"authorName"`
	Timestamp     string    `json:"timestamp"`
	Reactions     Reactions `json:"reactions"`
	Comments      []Comment `json:"comments"`
	ImageURL      string    `json:"imageUrl,omitempty"`
	Location      string    `json:"location,omitempty"`
	Date          string    `json:"date,omitempty"`
	Time          string    `json:"time,omitempty"`
	Department    string    `json:"department,omitempty"`
	Responses     Responses `json:"responses,omitempty"`
	ItemType      ItemType  `json:"itemType,omitempty"`
	ItemName      string    `json:"itemName,omitempty"`
	AttachmentURL string    `json:"attachmentUrl,omitempty"`
}

// MarshalJSON writes the variant fields flat on the post object.
func (p Post) MarshalJSON() ([]byte, error) {
	w := wirePost{
		ID:          p.ID,
		Type:        p.Type,
		Title:       p.Title,
		Description: p.Description,
		AuthorID:    p.AuthorID,
		AuthorName:  p.AuthorName,
		Timestamp:   p.Timestamp,
		Reactions:   p.Reactions.Clone(),
		Comments:    p.Comments,
		ImageURL:    p.ImageURL,
	}
	if w.Comments == nil {
		w.Comments = []Comment{}
	}
	pv := p.Preview()
	w.Location, w.Date, w.Time, w.Department = pv.Location, pv.Date, pv.Time, pv.Department
	w.ItemType, w.ItemName, w.AttachmentURL = pv.ItemType, pv.ItemName, pv.AttachmentURL
	if p.Event != nil {
		w.Responses = p.Event.Responses.Clone()
	}
	return json.Marshal(w)
}

// UnmarshalJSON rebuilds the variant from the flat wire form and validates it.
func (p *Post) UnmarshalJSON(b []byte) error {
	var w wirePost
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	t, err := ParsePostType(string(w.Type))
	if err != nil {
		return err
	}
	out := Post{
		ID:          w.ID,
		Type:        t,
		Title:       w.Title,
		Description: w.Description,
		AuthorID:    w.AuthorID,
		AuthorName:  w.AuthorName,
		Timestamp:   w.Timestamp,
		Reactions:   w.Reactions.Clone(),
		Comments:    w.Comments,
		ImageURL:    w.ImageURL,
	}
	if out.Comments == nil {
		out.Comments = []Comment{}
	}
	for i := range out.Comments {
		normalizeComment(&out.Comments[i])
	}
	err = out.setDetails(PostPreview{
		Type:          t,
		Location:      w.Location,
		Date:          w.Date,
		Time:          w.Time,
		Department:    w.Department,
		ItemType:      w.ItemType,
		ItemName:      w.ItemName,
		AttachmentURL: w.AttachmentURL,
	})
	if err != nil {
		return err
	}
	if out.Event != nil {
		out.Event.Responses = w.Responses.Clone()
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*p = out
	return nil
}

func normalizeComment(c *Comment) {
	c.Reactions = c.Reactions.Clone()
	if c.Replies == nil {
		c.Replies = []Comment{}
	}
	for i := range c.Replies {
		normalizeComment(&c.Replies[i])
	}
}
