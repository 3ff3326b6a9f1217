package feed

import (
	"fmt"
	"time"
)

// NewComment builds a top-level comment with a fresh id and zeroed reactions.
func NewComment(content string, author Author, now time.Time) Comment {
	return newComment("comment", content, author, now)
}

// NewReply builds a reply; AddReply links it to its parent.
func NewReply(content string, author Author, now time.Time) Comment {
	return newComment("reply", content, author, now)
}

func newComment(prefix, content string, author Author, now time.Time) Comment {
	return Comment{
		ID:         NewID(prefix),
		Content:    content,
		AuthorID:   author.ID,
		AuthorName: author.Name,
		Timestamp:  FormatTimestamp(now),
		Reactions:  NewReactions(),
		Replies:    []Comment{},
	}
}

// AddComment appends c to the post's top-level comments.
func AddComment(p Post, c Comment) Post {
	out := p.Clone()
	c = c.Clone()
	c.ParentID = ""
	out.Comments = append(out.Comments, c)
	return out
}

// AddReply appends reply to the top-level comment parentID. Only top-level
// comments are searched, so the tree stays two levels deep.
func AddReply(p Post, parentID string, reply Comment) (Post, bool) {
	out := p.Clone()
	for i := range out.Comments {
		if out.Comments[i].ID != parentID {
			continue
		}
		reply = reply.Clone()
		reply.ParentID = parentID
		reply.Replies = []Comment{}
		out.Comments[i].Replies = append(out.Comments[i].Replies, reply)
		return out, true
	}
	return p, false
}

// ToggleReaction flips userID's reaction r on the post itself.
func ToggleReaction(p Post, userID string, r ReactionType, l Ledger) Post {
	if !r.Valid() {
		return p
	}
	out := p.Clone()
	toggleReaction(out.Reactions, l, userID, out.ID, r)
	return out
}

// ToggleCommentReaction flips userID's reaction r on a comment or reply of p.
func ToggleCommentReaction(p Post, commentID, userID string, r ReactionType, l Ledger) (Post, bool) {
	if !r.Valid() {
		return p, false
	}
	out := p.Clone()
	c := findComment(out.Comments, commentID)
	if c == nil {
		return p, false
	}
	toggleReaction(c.Reactions, l, userID, c.ID, r)
	return out, true
}

func toggleReaction(counts Reactions, l Ledger, userID, targetID string, r ReactionType) {
	if l.HasReacted(userID, targetID, r) {
		counts[r] = decrement(counts[r])
		l.SetReacted(userID, targetID, r, false)
		return
	}
	counts[r]++
	l.SetReacted(userID, targetID, r, true)
}

// ToggleRSVP records userID's response to an event. Repeating the current
// response withdraws it; a different response moves the user's count.
// Non-event posts are returned unchanged.
func ToggleRSVP(p Post, userID string, resp Response, l Ledger) Post {
	if p.Event == nil || !resp.Valid() {
		return p
	}
	out := p.Clone()
	counts := out.Event.Responses
	current, has := l.Response(userID, out.ID)
	if has {
		withdrawResponse(counts, l, userID, out.ID, current)
		if current == resp {
			return out
		}
	}
	counts[resp]++
	l.SetResponse(userID, out.ID, resp)
	return out
}

func withdrawResponse(counts Responses, l Ledger, userID, postID string, resp Response) {
	counts[resp] = decrement(counts[resp])
	l.ClearResponse(userID, postID)
}

func decrement(n int) int {
	if n <= 0 {
		return 0
	}
	return n - 1
}

// DeleteComment removes commentID from the top level or from its parent's replies.
func DeleteComment(p Post, commentID string) (Post, bool) {
	out := p.Clone()
	comments, ok := removeComment(out.Comments, commentID)
	if !ok {
		return p, false
	}
	out.Comments = comments
	return out, true
}

func removeComment(in []Comment, id string) ([]Comment, bool) {
	for i := range in {
		if in[i].ID == id {
			out := make([]Comment, 0, len(in)-1)
			out = append(out, in[:i]...)
			return append(out, in[i+1:]...), true
		}
	}
	for i := range in {
		if replies, ok := removeComment(in[i].Replies, id); ok {
			in[i].Replies = replies
			return in, true
		}
	}
	return in, false
}

// DeletePost returns posts without the entry whose id matches.
func DeletePost(posts []Post, id string) []Post {
	out := make([]Post, 0, len(posts))
	for _, p := range posts {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}

// EditPost applies the editable fields of pv to p. The post type cannot change.
func EditPost(p Post, pv PostPreview) (Post, error) {
	if pv.Type != "" && pv.Type != p.Type {
		return p, fmt.Errorf("post type is immutable: %s -> %s", p.Type, pv.Type)
	}
	out := p.Clone()
	out.Title = pv.Title
	out.Description = pv.Description
	out.ImageURL = pv.ImageURL
	switch {
	case out.Event != nil:
		out.Event.Location = pv.Location
		out.Event.Date = pv.Date
		out.Event.Time = pv.Time
		out.Event.Department = pv.Department
	case out.LostFound != nil:
		out.LostFound.ItemType = pv.ItemType
		out.LostFound.ItemName = pv.ItemName
		out.LostFound.Location = pv.Location
	case out.Announcement != nil:
		out.Announcement.Department = pv.Department
		out.Announcement.AttachmentURL = pv.AttachmentURL
	}
	if err := out.Validate(); err != nil {
		return p, err
	}
	return out, nil
}

// FindComment looks up a comment or reply by id.
func FindComment(p Post, id string) (Comment, bool) {
	c := findComment(p.Comments, id)
	if c == nil {
		return Comment{}, false
	}
	return c.Clone(), true
}

func findComment(in []Comment, id string) *Comment {
	for i := range in {
		if in[i].ID == id {
			return &in[i]
		}
		if c := findComment(in[i].Replies, id); c != nil {
			return c
		}
	}
	return nil
}

// CountComments counts comments and replies.
func CountComments(p Post) int {
	return CountTree(p.Comments)
}

// CountTree counts the comments of a tree at every depth.
func CountTree(in []Comment) int {
	n := len(in)
	for _, c := range in {
		n += CountTree(c.Replies)
	}
	return n
}
