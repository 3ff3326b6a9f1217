package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"github.com/campusfeed/campusfeed/feed"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func writeEnvelope(w http.ResponseWriter, status, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	msg := "success"
	if code != 0 {
		msg = "failed"
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"code": code, "message": msg, "data": data})
}

// fakeServer mimics the feed endpoints the client uses.
type fakeServer struct {
	mu       sync.Mutex
	posts    []feed.Post
	requests []string
	auth     []string
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/posts", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.mu.Lock()
		defer f.mu.Unlock()
		writeEnvelope(w, http.StatusOK, 0, map[string]interface{}{"items": f.posts})
	})
	mux.HandleFunc("POST /api/v1/posts", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		var pv feed.PostPreview
		if err := json.NewDecoder(r.Body).Decode(&pv); err != nil {
			writeEnvelope(w, http.StatusBadRequest, 40020, nil)
			return
		}
		p, err := feed.NewPost(pv, feed.Author{ID: "7", Name: "Asha"}, testNow)
		if err != nil {
			writeEnvelope(w, http.StatusBadRequest, 40021, nil)
			return
		}
		p.ID = "post_server"
		f.mu.Lock()
		f.posts = append([]feed.Post{p}, f.posts...)
		f.mu.Unlock()
		writeEnvelope(w, http.StatusCreated, 0, map[string]interface{}{"post": p})
	})
	mux.HandleFunc("POST /api/v1/posts/{id}/comments", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		var body struct {
			Content  string `json:"content"`
			ParentID string `json:"parent_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		c := feed.NewComment(body.Content, feed.Author{ID: "7", Name: "Asha"}, testNow)
		c.ID = "comment_server"
		c.ParentID = body.ParentID
		writeEnvelope(w, http.StatusCreated, 0, map[string]interface{}{"comment": c})
	})
	mux.HandleFunc("POST /api/v1/reactions", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeEnvelope(w, http.StatusOK, 0, map[string]interface{}{"toggled": true, "reactions": map[string]int{"👍": 1}})
	})
	mux.HandleFunc("POST /api/v1/events/{id}/rsvp", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeEnvelope(w, http.StatusOK, 0, map[string]interface{}{"response": "going", "responses": map[string]int{"going": 1}})
	})
	mux.HandleFunc("DELETE /api/v1/posts/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeEnvelope(w, http.StatusNotFound, 40404, nil)
	})
	mux.HandleFunc("POST /api/v1/classify", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeEnvelope(w, http.StatusOK, 0, map[string]interface{}{
			"type": "announcement", "confidence": 0.9,
			"extractedData": map[string]string{"title": "Exams postponed", "description": "Exams postponed"},
		})
	})
	return mux
}

func (f *fakeServer) record(r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	f.mu.Unlock()
}

func newFake(t *testing.T) (*fakeServer, *Client) {
	t.Helper()
	f := &fakeServer{}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	c := New(srv.URL + "/")
	c.Token = "tok"
	return f, c
}

func TestClient_Offline(t *testing.T) {
	ctx := context.Background()
	var c Client
	calls := map[string]func() error{
		"FetchPosts": func() error { _, err := c.FetchPosts(ctx, ListOptions{}); return err },
		"CreatePost": func() error { _, err := c.CreatePost(ctx, feed.PostPreview{}); return err },
		"DeletePost": func() error { return c.DeletePost(ctx, "p") },
		"AddComment": func() error { _, err := c.AddComment(ctx, "p", "", "hi"); return err },
		"DeleteComment": func() error { return c.DeleteComment(ctx, "c") },
		"ToggleReaction": func() error {
			_, err := c.ToggleReaction(ctx, TargetPost, "p", feed.ReactionHeart)
			return err
		},
		"RSVP":     func() error { _, err := c.RSVP(ctx, "p", feed.ResponseGoing); return err },
		"Classify": func() error { _, err := c.Classify(ctx, "hello"); return err },
	}
	for name, call := range calls {
		if err := call(); !errors.Is(err, ErrOffline) {
			t.Errorf("%s: err = %v, want ErrOffline", name, err)
		}
	}
}

func TestClient_RoundTrip(t *testing.T) {
	f, c := newFake(t)
	ctx := context.Background()

	created, err := c.CreatePost(ctx, feed.PostPreview{
		Type: feed.TypeAnnouncement, Title: "Library hours", Description: "Open till midnight", Department: "General",
	})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if created.ID != "post_server" || created.Announcement == nil || created.Announcement.Department != "General" {
		t.Errorf("unexpected post: %+v", created)
	}

	posts, err := c.FetchPosts(ctx, ListOptions{Type: feed.TypeAnnouncement, Page: 1})
	if err != nil {
		t.Fatalf("FetchPosts: %v", err)
	}
	if diff := cmp.Diff([]feed.Post{created}, posts); diff != "" {
		t.Errorf("FetchPosts mismatch (-want +got):\n%s", diff)
	}

	res, err := c.ToggleReaction(ctx, TargetPost, created.ID, feed.ReactionThumbsUp)
	if err != nil || !res.Toggled || res.Reactions[feed.ReactionThumbsUp] != 1 {
		t.Errorf("ToggleReaction = %+v, %v", res, err)
	}
	rsvp, err := c.RSVP(ctx, created.ID, feed.ResponseGoing)
	if err != nil || rsvp.Response != feed.ResponseGoing || rsvp.Responses[feed.ResponseGoing] != 1 {
		t.Errorf("RSVP = %+v, %v", rsvp, err)
	}

	var apiErr *APIError
	if err := c.DeletePost(ctx, "missing"); !errors.As(err, &apiErr) || apiErr.Code != 40404 || apiErr.Status != http.StatusNotFound {
		t.Errorf("DeletePost err = %v, want APIError 40404", err)
	}

	want := []string{
		"POST /api/v1/posts",
		"GET /api/v1/posts",
		"POST /api/v1/reactions",
		"POST /api/v1/events/post_server/rsvp",
		"DELETE /api/v1/posts/missing",
	}
	if diff := cmp.Diff(want, f.requests); diff != "" {
		t.Errorf("requests (-want +got):\n%s", diff)
	}
	for _, h := range f.auth {
		if h != "Bearer tok" {
			t.Errorf("Authorization = %q", h)
		}
	}
}

func TestListOptions_Query(t *testing.T) {
	tests := []struct {
		opts ListOptions
		want string
	}{
		{ListOptions{}, ""},
		{ListOptions{Type: feed.TypeEvent, Sort: "popular"}, "?sort=popular&type=event"},
		{ListOptions{Search: "lost keys", Page: 2, PageSize: 5}, "?page=2&page_size=5&search=lost+keys"},
	}
	for _, tt := range tests {
		if got := tt.opts.query(); got != tt.want {
			t.Errorf("query(%+v) = %q, want %q", tt.opts, got, tt.want)
		}
	}
}

func TestSession_Offline(t *testing.T) {
	ctx := context.Background()
	me := feed.Author{ID: "user_1", Name: "Asha"}
	s := NewSession(nil, me, zaptest.NewLogger(t))
	s.now = func() time.Time { return testNow }

	if got := s.Load(ctx); len(got) != 0 {
		t.Fatalf("Load = %d posts, want empty feed", len(got))
	}
	if res := s.Classify(ctx, "Lost my wallet near the library"); res.Type != feed.TypeLostFound {
		t.Errorf("Classify type = %s", res.Type)
	}

	post, err := s.Publish(ctx, feed.PostPreview{
		Type: feed.TypeEvent, Title: "Hackathon", Description: "48 hours of code",
		Location: "LA-1", Date: "2025-03-15", Time: "10:00", Department: "CSE",
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if post.AuthorID != me.ID || post.Event == nil {
		t.Fatalf("unexpected post %+v", post)
	}

	got, ok := s.React(ctx, post.ID, feed.ReactionFire)
	if !ok || got.Reactions[feed.ReactionFire] != 1 {
		t.Errorf("first toggle: %v %v", ok, got.Reactions)
	}
	got, _ = s.React(ctx, post.ID, feed.ReactionFire)
	if got.Reactions[feed.ReactionFire] != 0 {
		t.Errorf("second toggle: %v", got.Reactions)
	}

	got, _ = s.RSVP(ctx, post.ID, feed.ResponseGoing)
	got, _ = s.RSVP(ctx, post.ID, feed.ResponseInterested)
	want := feed.Responses{feed.ResponseGoing: 0, feed.ResponseInterested: 1, feed.ResponseNotGoing: 0}
	if diff := cmp.Diff(want, got.Event.Responses); diff != "" {
		t.Errorf("responses (-want +got):\n%s", diff)
	}

	c, err := s.Comment(ctx, post.ID, "  count me in ")
	if err != nil || c.Content != "count me in" {
		t.Fatalf("Comment = %+v, %v", c, err)
	}
	r, err := s.Reply(ctx, post.ID, c.ID, "same")
	if err != nil || r.ParentID != c.ID {
		t.Fatalf("Reply = %+v, %v", r, err)
	}
	if _, err := s.Reply(ctx, post.ID, r.ID, "nested"); !errors.Is(err, ErrNotFound) {
		t.Errorf("reply to reply err = %v, want ErrNotFound", err)
	}
	if _, err := s.Comment(ctx, post.ID, "   "); !errors.Is(err, ErrEmptyComment) {
		t.Errorf("empty comment err = %v", err)
	}
	if got, _ := s.ReactComment(ctx, post.ID, r.ID, feed.ReactionHeart); got.Comments[0].Replies[0].Reactions[feed.ReactionHeart] != 1 {
		t.Errorf("reply reaction not applied: %+v", got.Comments[0].Replies[0].Reactions)
	}

	if err := s.DeleteComment(ctx, post.ID, r.ID); err != nil {
		t.Fatalf("DeleteComment: %v", err)
	}
	p, _ := s.store.Get(post.ID)
	if n := feed.CountComments(p); n != 1 {
		t.Errorf("comments after delete = %d, want 1", n)
	}

	if len(s.Feed(feed.TypeLostFound)) != 0 || len(s.Feed("")) != 1 {
		t.Errorf("Feed filter wrong")
	}
	if err := s.DeletePost(ctx, post.ID); err != nil {
		t.Fatalf("DeletePost: %v", err)
	}
	if len(s.Feed("")) != 0 {
		t.Error("post not deleted")
	}
	if n := s.Notices(); len(n) != 0 {
		t.Errorf("offline session queued notices: %+v", n)
	}
}

func TestSession_NotAuthor(t *testing.T) {
	ctx := context.Background()
	owner := NewSession(nil, feed.Author{ID: "owner", Name: "Owner"}, nil)
	post, err := owner.Publish(ctx, feed.PostPreview{Type: feed.TypeAnnouncement, Title: "Notice", Description: "Fees due"})
	if err != nil {
		t.Fatal(err)
	}
	c, err := owner.Comment(ctx, post.ID, "read it")
	if err != nil {
		t.Fatal(err)
	}

	other := NewSession(nil, feed.Author{ID: "other", Name: "Other"}, nil)
	other.store.Replace(owner.Feed(""))
	if err := other.DeletePost(ctx, post.ID); !errors.Is(err, ErrNotAuthor) {
		t.Errorf("DeletePost err = %v, want ErrNotAuthor", err)
	}
	if err := other.DeleteComment(ctx, post.ID, c.ID); !errors.Is(err, ErrNotAuthor) {
		t.Errorf("DeleteComment err = %v, want ErrNotAuthor", err)
	}
	if err := other.DeletePost(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing post err = %v, want ErrNotFound", err)
	}
}

func TestSession_ServerUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusInternalServerError, 50020, nil)
	}))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	s := NewSession(New(srv.URL), feed.Author{ID: "u1", Name: "Ravi"}, zaptest.NewLogger(t))
	if got := s.Load(ctx); len(got) != 0 {
		t.Errorf("Load = %v, want empty", got)
	}
	post, err := s.Publish(ctx, feed.PostPreview{Type: feed.TypeLostFound, ItemType: feed.ItemLost, ItemName: "Keys"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if post.Title != "Lost: Keys" || len(s.Feed("")) != 1 {
		t.Errorf("optimistic insert missing: %+v", post)
	}
	if res := s.Classify(ctx, "Found a phone at the seminar hall"); res.Type != feed.TypeLostFound {
		t.Errorf("Classify fallback type = %s", res.Type)
	}

	var msgs []string
	for _, n := range s.Notices() {
		msgs = append(msgs, n.Message)
	}
	if diff := cmp.Diff([]string{"could not load posts", "post saved locally only"}, msgs); diff != "" {
		t.Errorf("notices (-want +got):\n%s", diff)
	}
	if len(s.Notices()) != 0 {
		t.Error("notices not cleared")
	}
}

func TestSession_Online(t *testing.T) {
	f, c := newFake(t)
	ctx := context.Background()
	s := NewSession(c, feed.Author{ID: "7", Name: "Asha"}, zaptest.NewLogger(t))

	post, err := s.Publish(ctx, feed.PostPreview{Type: feed.TypeAnnouncement, Title: "Exams postponed", Description: "By a week"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if post.ID != "post_server" {
		t.Errorf("server id not used: %s", post.ID)
	}
	if got := s.Load(ctx); len(got) != 1 || got[0].ID != "post_server" {
		t.Errorf("Load = %+v", got)
	}
	cm, err := s.Comment(ctx, post.ID, "noted")
	if err != nil || cm.ID != "comment_server" {
		t.Errorf("Comment = %+v, %v", cm, err)
	}
	if res := s.Classify(ctx, "Exams postponed"); res.Type != feed.TypeAnnouncement {
		t.Errorf("remote classification ignored: %+v", res)
	}
	// server refuses the delete; the local feed still drops the post
	if err := s.DeletePost(ctx, post.ID); err != nil {
		t.Fatalf("DeletePost: %v", err)
	}
	if len(s.Feed("")) != 0 || len(s.Notices()) != 1 {
		t.Error("expected local delete with one notice")
	}
	if len(f.requests) < 5 {
		t.Errorf("requests = %v", f.requests)
	}
}

func TestSession_ServerCountsWin(t *testing.T) {
	_, c := newFake(t)
	ctx := context.Background()
	s := NewSession(c, feed.Author{ID: "7", Name: "Asha"}, zaptest.NewLogger(t))

	post, err := s.Publish(ctx, feed.PostPreview{
		Type: feed.TypeEvent, Title: "Robotics demo", Description: "Bring a friend",
		Location: "Main Hall", Date: "2025-03-15", Time: "16:00", Department: "EE",
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	// the fake server always reports one 👍 that is toggled on
	s.React(ctx, post.ID, feed.ReactionThumbsUp)
	got, ok := s.React(ctx, post.ID, feed.ReactionThumbsUp)
	if !ok || got.Reactions[feed.ReactionThumbsUp] != 1 {
		t.Errorf("reactions = %v, want server count 1", got.Reactions)
	}

	got, _ = s.RSVP(ctx, post.ID, feed.ResponseInterested)
	want := feed.Responses{feed.ResponseGoing: 1, feed.ResponseInterested: 0, feed.ResponseNotGoing: 0}
	if diff := cmp.Diff(want, got.Event.Responses); diff != "" {
		t.Errorf("responses (-want +got):\n%s", diff)
	}
	if stored, _ := s.Store().Get(post.ID); stored.Event.Responses[feed.ResponseGoing] != 1 {
		t.Errorf("store not updated: %v", stored.Event.Responses)
	}

	st, ok := s.State(post.ID)
	if !ok {
		t.Fatal("State: post missing")
	}
	wantState := PostState{
		Reactions: map[string][]feed.ReactionType{post.ID: {feed.ReactionThumbsUp}},
		Response:  feed.ResponseGoing,
	}
	if diff := cmp.Diff(wantState, st); diff != "" {
		t.Errorf("state (-want +got):\n%s", diff)
	}
	if len(s.Notices()) != 0 {
		t.Error("successful syncs queued notices")
	}
}

func TestSession_StateOffline(t *testing.T) {
	ctx := context.Background()
	s := NewSession(nil, feed.Author{ID: "u1", Name: "Ravi"}, nil)
	post, err := s.Publish(ctx, feed.PostPreview{Type: feed.TypeAnnouncement, Title: "Notice", Description: "Fees due"})
	if err != nil {
		t.Fatal(err)
	}
	c, err := s.Comment(ctx, post.ID, "thanks")
	if err != nil {
		t.Fatal(err)
	}
	s.React(ctx, post.ID, feed.ReactionHeart)
	s.ReactComment(ctx, post.ID, c.ID, feed.ReactionFire)
	s.ReactComment(ctx, post.ID, c.ID, feed.ReactionSad)

	st, _ := s.State(post.ID)
	want := PostState{Reactions: map[string][]feed.ReactionType{
		post.ID: {feed.ReactionHeart},
		c.ID:    {feed.ReactionFire, feed.ReactionSad},
	}}
	if diff := cmp.Diff(want, st); diff != "" {
		t.Errorf("state (-want +got):\n%s", diff)
	}
	if _, ok := s.State("missing"); ok {
		t.Error("State found a missing post")
	}
}
