package client

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/campusfeed/campusfeed/classifier"
	"github.com/campusfeed/campusfeed/feed"
)

// ErrEmptyComment is returned for comments with no visible content.
var ErrEmptyComment = errors.New("comment content is empty")

// Notice is a transient, user-facing message about a recovered failure.
type Notice struct {
	Message string
	At      time.Time
}

// Session is one user's view of the feed. It keeps the feed in a local store
// and mirrors writes to the server when one is configured. Server failures
// never surface as errors: the local state is updated anyway and a notice is
// queued.
type Session struct {
	client *Client
	store  *feed.Store
	svc    *classifier.Service
	author feed.Author
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	notices []Notice
}

// NewSession creates a session for author. c may be nil or offline, in which
// case the session works purely locally.
func NewSession(c *Client, author feed.Author, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if c == nil {
		c = &Client{}
	}
	var remote classifier.Remote
	if !c.Offline() {
		remote = c
	}
	return &Session{
		client: c,
		store:  feed.NewStore(feed.NewMemoryLedger()),
		svc:    classifier.NewService(classifier.New(nil), remote, logger),
		author: author,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Session) Author() feed.Author { return s.author }

// Store exposes the underlying feed store.
func (s *Session) Store() *feed.Store { return s.store }

// notice logs err and queues msg for the user. ErrOffline is expected in
// local-only sessions and only logged at debug level.
func (s *Session) notice(msg string, err error) {
	if errors.Is(err, ErrOffline) {
		s.logger.Debug(msg, zap.Error(err))
		return
	}
	s.logger.Warn(msg, zap.Error(err))
	s.mu.Lock()
	s.notices = append(s.notices, Notice{Message: msg, At: s.now()})
	s.mu.Unlock()
}

// Notices returns the queued notices and clears them.
func (s *Session) Notices() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	return out
}

// Load replaces the local feed with the server's. A failed fetch leaves an
// empty feed.
func (s *Session) Load(ctx context.Context) []feed.Post {
	posts, err := s.client.FetchPosts(ctx, ListOptions{})
	if err != nil {
		s.notice("could not load posts", err)
		posts = nil
	}
	s.store.Replace(posts)
	s.logger.Debug("feed loaded", zap.Int("posts", s.store.Len()))
	return s.store.Posts()
}

// Classify labels text, using the server when reachable and the local rules otherwise.
func (s *Session) Classify(ctx context.Context, text string) classifier.Result {
	res, _ := s.svc.Classify(ctx, text)
	return res
}

// Preview classifies text and returns the editable draft.
func (s *Session) Preview(ctx context.Context, text string) (classifier.Result, feed.PostPreview) {
	res, pv, _ := s.svc.Preview(ctx, text)
	return res, pv
}

// Publish turns a confirmed draft into a post at the head of the feed. When
// the server rejects or cannot be reached the post is inserted locally.
func (s *Session) Publish(ctx context.Context, pv feed.PostPreview) (feed.Post, error) {
	pv = s.svc.Local.Complete(classifier.Enhance(pv))
	post, err := feed.NewPost(pv, s.author, s.now())
	if err != nil {
		return feed.Post{}, err
	}
	created, err := s.client.CreatePost(ctx, pv)
	if err != nil {
		s.notice("post saved locally only", err)
		created = post
	}
	s.store.Prepend(created)
	return created, nil
}

// React toggles the session user's reaction on a post. When the server
// answers, its counts replace the local ones.
func (s *Session) React(ctx context.Context, postID string, r feed.ReactionType) (feed.Post, bool) {
	post, ok := s.store.ToggleReaction(postID, s.author.ID, r)
	if !ok {
		return post, false
	}
	res, err := s.client.ToggleReaction(ctx, TargetPost, postID, r)
	if err != nil {
		s.notice("reaction not synced", err)
		return post, true
	}
	return s.applyReaction(post, postID, r, res), true
}

// ReactComment toggles the session user's reaction on a comment or reply.
func (s *Session) ReactComment(ctx context.Context, postID, commentID string, r feed.ReactionType) (feed.Post, bool) {
	post, ok := s.store.ToggleCommentReaction(postID, commentID, s.author.ID, r)
	if !ok {
		return post, false
	}
	res, err := s.client.ToggleReaction(ctx, TargetComment, commentID, r)
	if err != nil {
		s.notice("reaction not synced", err)
		return post, true
	}
	return s.applyReaction(post, commentID, r, res), true
}

func (s *Session) applyReaction(post feed.Post, targetID string, r feed.ReactionType, res ReactionResult) feed.Post {
	s.store.Ledger().SetReacted(s.author.ID, targetID, r, res.Toggled)
	if res.Reactions == nil {
		return post
	}
	next, _ := s.store.Update(post.ID, func(p feed.Post) (feed.Post, bool) {
		p = p.Clone()
		if targetID == p.ID {
			p.Reactions = res.Reactions.Clone()
			return p, true
		}
		return p, setCommentReactions(p.Comments, targetID, res.Reactions)
	})
	return next
}

func setCommentReactions(comments []feed.Comment, id string, counts feed.Reactions) bool {
	for i := range comments {
		if comments[i].ID == id {
			comments[i].Reactions = counts.Clone()
			return true
		}
		if setCommentReactions(comments[i].Replies, id, counts) {
			return true
		}
	}
	return false
}

// RSVP selects resp on an event; selecting the current response withdraws it.
// The server's response and counts win over the local ones.
func (s *Session) RSVP(ctx context.Context, postID string, resp feed.Response) (feed.Post, bool) {
	post, ok := s.store.ToggleRSVP(postID, s.author.ID, resp)
	if !ok {
		return post, false
	}
	res, err := s.client.RSVP(ctx, postID, resp)
	if err != nil {
		s.notice("rsvp not synced", err)
		return post, true
	}
	l := s.store.Ledger()
	if res.Response.Valid() {
		l.SetResponse(s.author.ID, postID, res.Response)
	} else {
		l.ClearResponse(s.author.ID, postID)
	}
	if res.Responses == nil {
		return post, true
	}
	next, _ := s.store.Update(postID, func(p feed.Post) (feed.Post, bool) {
		p = p.Clone()
		if p.Event == nil {
			return p, false
		}
		p.Event.Responses = res.Responses.Clone()
		return p, true
	})
	return next, true
}

// PostState is what the session user has done on one post. Reactions are
// keyed by the post, comment or reply id they target.
type PostState struct {
	Reactions map[string][]feed.ReactionType
	Response  feed.Response
}

// State reports the session user's reactions and RSVP on a post.
func (s *Session) State(postID string) (PostState, bool) {
	post, ok := s.store.Get(postID)
	if !ok {
		return PostState{}, false
	}
	l := s.store.Ledger()
	st := PostState{Reactions: map[string][]feed.ReactionType{}}
	add := func(id string) {
		if rs := feed.UserReactions(l, s.author.ID, id); len(rs) > 0 {
			st.Reactions[id] = rs
		}
	}
	add(post.ID)
	for _, c := range post.Comments {
		add(c.ID)
		for _, r := range c.Replies {
			add(r.ID)
		}
	}
	if resp, ok := l.Response(s.author.ID, post.ID); ok {
		st.Response = resp
	}
	return st, true
}

// Comment adds a top-level comment to a post.
func (s *Session) Comment(ctx context.Context, postID, content string) (feed.Comment, error) {
	return s.addComment(ctx, postID, "", content)
}

// Reply answers a top-level comment.
func (s *Session) Reply(ctx context.Context, postID, parentID, content string) (feed.Comment, error) {
	return s.addComment(ctx, postID, parentID, content)
}

func (s *Session) addComment(ctx context.Context, postID, parentID, content string) (feed.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return feed.Comment{}, ErrEmptyComment
	}
	post, ok := s.store.Get(postID)
	if !ok {
		return feed.Comment{}, ErrNotFound
	}
	if parentID != "" {
		if _, ok := topLevel(post, parentID); !ok {
			return feed.Comment{}, ErrNotFound
		}
	}

	c, err := s.client.AddComment(ctx, postID, parentID, content)
	if err != nil {
		s.notice("comment saved locally only", err)
		if parentID == "" {
			c = feed.NewComment(content, s.author, s.now())
		} else {
			c = feed.NewReply(content, s.author, s.now())
		}
	}
	if parentID == "" {
		s.store.AddComment(postID, c)
		return c, nil
	}
	c.ParentID = parentID
	if _, ok := s.store.AddReply(postID, parentID, c); !ok {
		return feed.Comment{}, ErrNotFound
	}
	return c, nil
}

func topLevel(p feed.Post, id string) (feed.Comment, bool) {
	for _, c := range p.Comments {
		if c.ID == id {
			return c, true
		}
	}
	return feed.Comment{}, false
}

// DeleteComment removes one of the session user's comments or replies.
func (s *Session) DeleteComment(ctx context.Context, postID, commentID string) error {
	post, ok := s.store.Get(postID)
	if !ok {
		return ErrNotFound
	}
	c, ok := feed.FindComment(post, commentID)
	if !ok {
		return ErrNotFound
	}
	if c.AuthorID != s.author.ID {
		return ErrNotAuthor
	}
	if err := s.client.DeleteComment(ctx, commentID); err != nil {
		s.notice("comment deletion not synced", err)
	}
	s.store.DeleteComment(postID, commentID)
	return nil
}

// DeletePost removes one of the session user's posts.
func (s *Session) DeletePost(ctx context.Context, postID string) error {
	post, ok := s.store.Get(postID)
	if !ok {
		return ErrNotFound
	}
	if post.AuthorID != s.author.ID {
		return ErrNotAuthor
	}
	if err := s.client.DeletePost(ctx, postID); err != nil {
		s.notice("post deletion not synced", err)
	}
	s.store.Delete(postID)
	return nil
}

// Feed returns the posts of type t, or every post when t is empty.
func (s *Session) Feed(t feed.PostType) []feed.Post {
	return s.store.Filter(t)
}
