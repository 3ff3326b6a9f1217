// Package repositories maps the feed domain onto gorm models.
package repositories

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/campusfeed/campusfeed/feed"
	"github.com/campusfeed/campusfeed/models"
)

// ErrNotFound is returned when a post or comment does not exist.
var ErrNotFound = errors.New("record not found")

// UserKey renders a database user id the way feed authors and ledgers key users.
func UserKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseUserKey is the inverse of UserKey.
func ParseUserKey(s string) (uint, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user id %q: %w", s, err)
	}
	return uint(n), nil
}

// postRow flattens a feed post into its table row.
func postRow(p feed.Post) (models.Post, error) {
	userID, err := ParseUserKey(p.AuthorID)
	if err != nil {
		return models.Post{}, err
	}
	created, err := time.Parse(feed.TimestampLayout, p.Timestamp)
	if err != nil {
		created = time.Now()
	}
	pv := p.Preview()
	return models.Post{
		ID:            p.ID,
		Type:          string(p.Type),
		UserID:        userID,
		Title:         pv.Title,
		Description:   pv.Description,
		ImageURL:      pv.ImageURL,
		Location:      pv.Location,
		EventDate:     pv.Date,
		EventTime:     pv.Time,
		Department:    pv.Department,
		ItemType:      string(pv.ItemType),
		ItemName:      pv.ItemName,
		AttachmentURL: pv.AttachmentURL,
		CreatedAt:     created.UTC(),
	}, nil
}

func rowPreview(m models.Post) feed.PostPreview {
	return feed.PostPreview{
		Type:          feed.PostType(m.Type),
		Title:         m.Title,
		Description:   m.Description,
		Location:      m.Location,
		Date:          m.EventDate,
		Time:          m.EventTime,
		Department:    m.Department,
		ItemType:      feed.ItemType(m.ItemType),
		ItemName:      m.ItemName,
		ImageURL:      m.ImageURL,
		AttachmentURL: m.AttachmentURL,
	}
}

// counts holds aggregated reaction and response tallies for a batch of posts.
type counts struct {
	reactions map[string]feed.Reactions // by target id
	responses map[string]feed.Responses // by post id
}

func (c counts) reactionsFor(targetID string) feed.Reactions {
	if r, ok := c.reactions[targetID]; ok {
		return r.Clone()
	}
	return feed.NewReactions()
}

// toFeedPost assembles a domain post from its row, its comment rows in
// creation order and the aggregated counts.
func toFeedPost(m models.Post, comments []models.Comment, c counts) feed.Post {
	p := feed.Post{
		ID:          m.ID,
		Type:        feed.PostType(m.Type),
		Title:       m.Title,
		Description: m.Description,
		AuthorID:    UserKey(m.UserID),
		AuthorName:  m.User.Name,
		Timestamp:   feed.FormatTimestamp(m.CreatedAt),
		Reactions:   c.reactionsFor(m.ID),
		Comments:    commentTree(comments, c),
		ImageURL:    m.ImageURL,
	}
	pv := rowPreview(m)
	switch p.Type {
	case feed.TypeEvent:
		resp := feed.NewResponses()
		if r, ok := c.responses[m.ID]; ok {
			resp = r.Clone()
		}
		p.Event = &feed.EventDetails{Location: pv.Location, Date: pv.Date, Time: pv.Time, Department: pv.Department, Responses: resp}
	case feed.TypeLostFound:
		p.LostFound = &feed.LostFoundDetails{ItemType: pv.ItemType, ItemName: pv.ItemName, Location: pv.Location}
	case feed.TypeAnnouncement:
		p.Announcement = &feed.AnnouncementDetails{Department: pv.Department, AttachmentURL: pv.AttachmentURL}
	}
	return p
}

func toFeedComment(m models.Comment, c counts) feed.Comment {
	out := feed.Comment{
		ID:         m.ID,
		Content:    m.Content,
		AuthorID:   UserKey(m.UserID),
		AuthorName: m.User.Name,
		Timestamp:  feed.FormatTimestamp(m.CreatedAt),
		Reactions:  c.reactionsFor(m.ID),
		Replies:    []feed.Comment{},
	}
	if m.ParentID != nil {
		out.ParentID = *m.ParentID
	}
	return out
}

// commentTree nests replies under their top-level parent. Rows must be in
// creation order; replies whose parent is gone are dropped.
func commentTree(rows []models.Comment, c counts) []feed.Comment {
	out := []feed.Comment{}
	index := map[string]int{}
	for _, row := range rows {
		if row.ParentID == nil {
			index[row.ID] = len(out)
			out = append(out, toFeedComment(row, c))
		}
	}
	for _, row := range rows {
		if row.ParentID == nil {
			continue
		}
		if i, ok := index[*row.ParentID]; ok {
			out[i].Replies = append(out[i].Replies, toFeedComment(row, c))
		}
	}
	return out
}
