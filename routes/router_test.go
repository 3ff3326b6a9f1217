package routes

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"gorm.io/gorm"

	"github.com/campusfeed/campusfeed/config"
	"github.com/campusfeed/campusfeed/feed"
	"github.com/campusfeed/campusfeed/models"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func setup(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	dir := t.TempDir()
	config.Set(config.AppConfig{
		JWTSecret:           "test-secret",
		TokenTTLHours:       1,
		GinMode:             "test",
		RateLimitPerMinute:  1000,
		AllowedEmailDomains: []string{"nitrkl.ac.in"},
		AdminEmails:         []string{"dean@nitrkl.ac.in"},
		DefaultLocation:     "NIT Rourkela Campus",
		CacheTTLSec:         60,
		UploadDir:           filepath.Join(dir, "uploads"),
		UploadMaxMB:         1,
		UploadOrphanMinutes: 60,
		LogLevel:            "error",
	})
	db, err := config.OpenDatabase("sqlite", filepath.Join(dir, "feed.db"), "silent")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return SetupRouter(db, nil), db
}

func call(t *testing.T, r http.Handler, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: undecodable body %q", method, path, w.Body.String())
	}
	return w.Code, env
}

func decode(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode %s: %v", env.Data, err)
	}
}

// signup registers, verifies and returns a session token.
func signup(t *testing.T, r http.Handler, email, name string) string {
	t.Helper()
	status, env := call(t, r, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email": email, "password": "campus123", "name": name,
	})
	if status != http.StatusCreated {
		t.Fatalf("signup %s: %d %+v", email, status, env)
	}
	var out struct {
		Token string `json:"verification_token"`
	}
	decode(t, env, &out)
	status, env = call(t, r, http.MethodGet, "/api/v1/auth/verify?token="+out.Token, "", nil)
	if status != http.StatusOK {
		t.Fatalf("verify %s: %d %+v", email, status, env)
	}
	var session struct {
		Token string `json:"token"`
	}
	decode(t, env, &session)
	return session.Token
}

func TestAuthFlow(t *testing.T) {
	r, _ := setup(t)

	status, env := call(t, r, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email": "someone@gmail.com", "password": "campus123", "name": "Outsider",
	})
	if status != http.StatusForbidden || env.Code != 40310 {
		t.Errorf("foreign domain: %d %d", status, env.Code)
	}
	status, env = call(t, r, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email": "weak@nitrkl.ac.in", "password": "short", "name": "Weak",
	})
	if status != http.StatusBadRequest || env.Code != 40002 {
		t.Errorf("weak password: %d %d", status, env.Code)
	}

	status, _ = call(t, r, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email": "Asha@NITRKL.ac.in", "password": "campus123", "name": "Asha",
	})
	if status != http.StatusCreated {
		t.Fatalf("signup: %d", status)
	}
	status, env = call(t, r, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "asha@nitrkl.ac.in", "password": "campus123",
	})
	if status != http.StatusForbidden || env.Code != 40311 {
		t.Errorf("unverified login: %d %d", status, env.Code)
	}
	status, env = call(t, r, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email": "asha@nitrkl.ac.in", "password": "campus123", "name": "Asha again",
	})
	if status != http.StatusConflict || env.Code != 40901 {
		t.Errorf("duplicate: %d %d", status, env.Code)
	}

	token := signup(t, r, "ravi@nitrkl.ac.in", "Ravi")
	status, env = call(t, r, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "ravi@nitrkl.ac.in", "password": "wrong-pass1",
	})
	if status != http.StatusUnauthorized || env.Code != 40106 {
		t.Errorf("wrong password: %d %d", status, env.Code)
	}

	status, env = call(t, r, http.MethodPatch, "/api/v1/auth/profile", token, map[string]interface{}{
		"branch": "CSE", "year": 3, "bio": "<b>robotics</b> club",
	})
	if status != http.StatusOK {
		t.Fatalf("profile: %d %+v", status, env)
	}
	var me struct {
		Email   string `json:"email"`
		Branch  string `json:"branch"`
		Year    int    `json:"year"`
		Bio     string `json:"bio"`
		IsAdmin bool   `json:"is_admin"`
	}
	_, env = call(t, r, http.MethodGet, "/api/v1/auth/me", token, nil)
	decode(t, env, &me)
	want := struct {
		Email   string `json:"email"`
		Branch  string `json:"branch"`
		Year    int    `json:"year"`
		Bio     string `json:"bio"`
		IsAdmin bool   `json:"is_admin"`
	}{Email: "ravi@nitrkl.ac.in", Branch: "CSE", Year: 3, Bio: "robotics club"}
	if diff := cmp.Diff(want, me); diff != "" {
		t.Errorf("me (-want +got):\n%s", diff)
	}

	if status, _ := call(t, r, http.MethodPost, "/api/v1/auth/logout", token, nil); status != http.StatusOK {
		t.Fatalf("logout: %d", status)
	}
	status, env = call(t, r, http.MethodGet, "/api/v1/auth/me", token, nil)
	if status != http.StatusUnauthorized || env.Code != 40104 {
		t.Errorf("revoked token: %d %d", status, env.Code)
	}
}

func TestFeedFlow(t *testing.T) {
	r, _ := setup(t)
	asha := signup(t, r, "asha@nitrkl.ac.in", "Asha")
	ravi := signup(t, r, "ravi@nitrkl.ac.in", "Ravi")

	status, env := call(t, r, http.MethodPost, "/api/v1/posts", asha, map[string]string{
		"type": "event", "title": "AI Workshop", "description": "Hands-on ML",
		"location": "LA-1", "date": "2025-03-15", "time": "17:00", "department": "CSE",
	})
	if status != http.StatusCreated {
		t.Fatalf("create event: %d %+v", status, env)
	}
	var created struct {
		Post feed.Post `json:"post"`
	}
	decode(t, env, &created)
	event := created.Post
	if event.Event == nil || event.Event.Location != "LA-1" || event.AuthorName != "Asha" {
		t.Fatalf("unexpected event %+v", event)
	}

	status, env = call(t, r, http.MethodPost, "/api/v1/posts", ravi, map[string]string{
		"type": "lost_found", "itemType": "lost", "itemName": "Wallet", "description": "Brown leather",
	})
	if status != http.StatusCreated {
		t.Fatalf("create lost item: %d %+v", status, env)
	}
	decode(t, env, &created)
	lost := created.Post
	if lost.Title != "Lost: Wallet" || lost.LostFound.Location != "NIT Rourkela Campus" {
		t.Errorf("lost item not completed: %+v %+v", lost, lost.LostFound)
	}

	if status, env := call(t, r, http.MethodPost, "/api/v1/posts", asha, map[string]string{"type": "poll"}); status != http.StatusBadRequest {
		t.Errorf("unknown type accepted: %d %+v", status, env)
	}
	if status, _ := call(t, r, http.MethodPost, "/api/v1/posts", "", map[string]string{"type": "event"}); status != http.StatusUnauthorized {
		t.Errorf("anonymous create: %d", status)
	}

	var page struct {
		Items []feed.Post `json:"items"`
	}
	_, env = call(t, r, http.MethodGet, "/api/v1/posts?type=event", "", nil)
	decode(t, env, &page)
	if len(page.Items) != 1 || page.Items[0].ID != event.ID {
		t.Errorf("event filter: %+v", page.Items)
	}
	_, env = call(t, r, http.MethodGet, "/api/v1/posts?search=wallet", "", nil)
	decode(t, env, &page)
	if len(page.Items) != 1 || page.Items[0].ID != lost.ID {
		t.Errorf("search: %+v", page.Items)
	}

	// comments and replies
	var cm struct {
		Comment feed.Comment `json:"comment"`
	}
	status, env = call(t, r, http.MethodPost, "/api/v1/posts/"+event.ID+"/comments", ravi, map[string]string{"content": "Count me in"})
	if status != http.StatusCreated {
		t.Fatalf("comment: %d %+v", status, env)
	}
	decode(t, env, &cm)
	top := cm.Comment
	status, env = call(t, r, http.MethodPost, "/api/v1/posts/"+event.ID+"/comments", asha, map[string]string{"content": "See you", "parent_id": top.ID})
	if status != http.StatusCreated {
		t.Fatalf("reply: %d %+v", status, env)
	}
	decode(t, env, &cm)
	reply := cm.Comment
	status, env = call(t, r, http.MethodPost, "/api/v1/posts/"+event.ID+"/comments", ravi, map[string]string{"content": "nested", "parent_id": reply.ID})
	if status != http.StatusBadRequest || env.Code != 40032 {
		t.Errorf("reply to reply: %d %d", status, env.Code)
	}

	// reactions toggle on and off
	var reacted struct {
		Toggled   bool           `json:"toggled"`
		Reactions feed.Reactions `json:"reactions"`
	}
	for i, want := range []int{1, 0} {
		status, env = call(t, r, http.MethodPost, "/api/v1/reactions", ravi, map[string]string{
			"target_type": "post", "target_id": event.ID, "type": "heart",
		})
		if status != http.StatusOK {
			t.Fatalf("react %d: %d %+v", i, status, env)
		}
		decode(t, env, &reacted)
		if reacted.Reactions[feed.ReactionHeart] != want || reacted.Toggled != (want == 1) {
			t.Errorf("toggle %d: %+v", i, reacted)
		}
	}
	status, _ = call(t, r, http.MethodPost, "/api/v1/reactions", asha, map[string]string{
		"target_type": "comment", "target_id": top.ID, "type": "👍",
	})
	if status != http.StatusOK {
		t.Errorf("comment reaction: %d", status)
	}

	// RSVP switch then withdraw
	var rsvp struct {
		Response  feed.Response  `json:"response"`
		Responses feed.Responses `json:"responses"`
	}
	steps := []struct {
		send string
		want feed.Response
		resp feed.Responses
	}{
		{"going", feed.ResponseGoing, feed.Responses{feed.ResponseGoing: 1, feed.ResponseInterested: 0, feed.ResponseNotGoing: 0}},
		{"interested", feed.ResponseInterested, feed.Responses{feed.ResponseGoing: 0, feed.ResponseInterested: 1, feed.ResponseNotGoing: 0}},
		{"interested", "", feed.Responses{feed.ResponseGoing: 0, feed.ResponseInterested: 0, feed.ResponseNotGoing: 0}},
	}
	for i, st := range steps {
		status, env = call(t, r, http.MethodPost, "/api/v1/events/"+event.ID+"/rsvp", ravi, map[string]string{"response": st.send})
		if status != http.StatusOK {
			t.Fatalf("rsvp %d: %d %+v", i, status, env)
		}
		rsvp.Response = ""
		decode(t, env, &rsvp)
		if rsvp.Response != st.want {
			t.Errorf("rsvp %d response = %q, want %q", i, rsvp.Response, st.want)
		}
		if diff := cmp.Diff(st.resp, rsvp.Responses); diff != "" {
			t.Errorf("rsvp %d (-want +got):\n%s", i, diff)
		}
	}
	status, env = call(t, r, http.MethodPost, "/api/v1/events/"+lost.ID+"/rsvp", ravi, map[string]string{"response": "going"})
	if status != http.StatusBadRequest || env.Code != 40061 {
		t.Errorf("rsvp on lost item: %d %d", status, env.Code)
	}

	// detail carries the tree and counts a view
	status, env = call(t, r, http.MethodGet, "/api/v1/posts/"+event.ID, "", nil)
	if status != http.StatusOK {
		t.Fatalf("detail: %d", status)
	}
	var detail struct {
		Post feed.Post `json:"post"`
	}
	decode(t, env, &detail)
	if len(detail.Post.Comments) != 1 || len(detail.Post.Comments[0].Replies) != 1 ||
		detail.Post.Comments[0].Reactions[feed.ReactionThumbsUp] != 1 {
		t.Errorf("detail comments: %+v", detail.Post.Comments)
	}
	var tree struct {
		Items []feed.Comment `json:"items"`
		Total int            `json:"total"`
	}
	_, env = call(t, r, http.MethodGet, "/api/v1/posts/"+event.ID+"/comments", "", nil)
	decode(t, env, &tree)
	if len(tree.Items) != 1 || tree.Total != 2 {
		t.Errorf("comment tree: %d top-level, total %d", len(tree.Items), tree.Total)
	}
	var stats struct {
		Views    int64 `json:"views"`
		Comments int   `json:"comments"`
	}
	_, env = call(t, r, http.MethodGet, "/api/v1/posts/"+event.ID+"/stats", "", nil)
	decode(t, env, &stats)
	if stats.Views != 1 || stats.Comments != 2 {
		t.Errorf("stats = %+v", stats)
	}

	// Asha hears about Ravi's comment and heart
	var notes struct {
		Items []models.Notification `json:"items"`
	}
	_, env = call(t, r, http.MethodGet, "/api/v1/notifications", asha, nil)
	decode(t, env, &notes)
	var kinds []string
	for _, n := range notes.Items {
		kinds = append(kinds, n.Type)
	}
	if diff := cmp.Diff([]string{models.NotifyPostReaction, models.NotifyPostComment}, kinds); diff != "" {
		t.Errorf("asha notifications (-want +got):\n%s", diff)
	}
	var unread struct {
		Unread int64 `json:"unread"`
	}
	_, env = call(t, r, http.MethodGet, "/api/v1/notifications/unread-count", ravi, nil)
	decode(t, env, &unread)
	if unread.Unread != 2 {
		t.Errorf("ravi unread = %d, want 2 (reply and thumbs up)", unread.Unread)
	}
	call(t, r, http.MethodPost, "/api/v1/notifications/read-all", ravi, nil)
	_, env = call(t, r, http.MethodGet, "/api/v1/notifications/unread-count", ravi, nil)
	decode(t, env, &unread)
	if unread.Unread != 0 {
		t.Errorf("unread after read-all = %d", unread.Unread)
	}

	// deletion rules
	status, env = call(t, r, http.MethodDelete, "/api/v1/comments/"+top.ID, asha, nil)
	if status != http.StatusForbidden {
		t.Errorf("foreign comment delete: %d %+v", status, env)
	}
	if status, _ := call(t, r, http.MethodDelete, "/api/v1/comments/"+top.ID, ravi, nil); status != http.StatusOK {
		t.Errorf("own comment delete: %d", status)
	}
	if status, _ := call(t, r, http.MethodDelete, "/api/v1/posts/"+event.ID, ravi, nil); status != http.StatusForbidden {
		t.Errorf("foreign post delete: %d", status)
	}
	if status, _ := call(t, r, http.MethodDelete, "/api/v1/posts/"+event.ID, asha, nil); status != http.StatusOK {
		t.Errorf("own post delete: %d", status)
	}
	if status, _ := call(t, r, http.MethodGet, "/api/v1/posts/"+event.ID, "", nil); status != http.StatusNotFound {
		t.Errorf("deleted post still served: %d", status)
	}
}

func TestUploadAttachesToPost(t *testing.T) {
	r, db := setup(t)
	token := signup(t, r, "asha@nitrkl.ac.in", "Asha")

	png := append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "poster.png")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(png)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", w.Code, w.Body.String())
	}
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	var up struct {
		URL  string `json:"url"`
		Kind string `json:"kind"`
	}
	decode(t, env, &up)
	if up.Kind != "image" {
		t.Errorf("kind = %q", up.Kind)
	}

	status, env := call(t, r, http.MethodPost, "/api/v1/posts", token, map[string]string{
		"type": "announcement", "title": "Fest poster", "description": "Out now", "department": "Humanities", "imageUrl": up.URL,
	})
	if status != http.StatusCreated {
		t.Fatalf("create: %d %+v", status, env)
	}
	var created struct {
		Post feed.Post `json:"post"`
	}
	decode(t, env, &created)

	var file models.UploadedFile
	if err := db.Where("url = ?", up.URL).First(&file).Error; err != nil {
		t.Fatal(err)
	}
	if file.PostID == nil || *file.PostID != created.Post.ID || file.ExpireAt != nil {
		t.Errorf("upload not attached: %+v", file)
	}

	var site struct {
		PostCount   int64            `json:"post_count"`
		PostsByType map[string]int64 `json:"posts_by_type"`
	}
	_, env = call(t, r, http.MethodGet, "/api/v1/stats", "", nil)
	decode(t, env, &site)
	wantByType := map[string]int64{"event": 0, "lost_found": 0, "announcement": 1}
	if diff := cmp.Diff(wantByType, site.PostsByType); diff != "" || site.PostCount != 1 {
		t.Errorf("site stats post_count=%d (-want +got):\n%s", site.PostCount, diff)
	}

	req = httptest.NewRequest(http.MethodGet, up.URL, nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !bytes.Equal(w.Body.Bytes(), png) {
		t.Errorf("static upload: %d", w.Code)
	}

	// text files are refused
	buf.Reset()
	mw = multipart.NewWriter(&buf)
	fw, _ = mw.CreateFormFile("file", "notes.txt")
	fw.Write([]byte("just text"))
	mw.Close()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("text upload: %d", w.Code)
	}
}

func TestHealthAndMeta(t *testing.T) {
	r, _ := setup(t)
	status, env := call(t, r, http.MethodGet, "/health", "", nil)
	if status != http.StatusOK {
		t.Errorf("health: %d %+v", status, env)
	}
	var meta struct {
		PostTypes       []string `json:"post_types"`
		DefaultLocation string   `json:"default_location"`
	}
	_, env = call(t, r, http.MethodGet, "/api/v1/meta", "", nil)
	decode(t, env, &meta)
	if diff := cmp.Diff([]string{"event", "lost_found", "announcement"}, meta.PostTypes); diff != "" {
		t.Errorf("post types (-want +got):\n%s", diff)
	}
	status, env = call(t, r, http.MethodPost, "/api/v1/classify", "", map[string]string{"text": "Found a phone at the seminar hall"})
	if status != http.StatusOK {
		t.Fatalf("classify: %d", status)
	}
	var res struct {
		Type string `json:"type"`
	}
	decode(t, env, &res)
	if res.Type != "lost_found" {
		t.Errorf("classify type = %q", res.Type)
	}
	if status, env := call(t, r, http.MethodGet, "/api/v1/nope", "", nil); status != http.StatusNotFound || env.Code != 40400 {
		t.Errorf("no route: %d %d", status, env.Code)
	}
}

func TestSignupCaptcha(t *testing.T) {
	r, _ := setup(t)
	cfg := config.Get()
	cfg.RegisterCaptchaEnabled = true
	config.Set(cfg)

	status, env := call(t, r, http.MethodGet, "/api/v1/auth/captcha", "", nil)
	if status != http.StatusOK {
		t.Fatalf("captcha: %d", status)
	}
	var cp struct {
		ID    string `json:"captcha_id"`
		Image string `json:"image"`
	}
	decode(t, env, &cp)
	if cp.ID == "" || cp.Image == "" {
		t.Fatalf("empty captcha %+v", cp)
	}
	status, env = call(t, r, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email": "asha@nitrkl.ac.in", "password": "campus123", "name": "Asha",
		"captcha_id": cp.ID, "captcha_answer": "not-digits",
	})
	if status != http.StatusBadRequest || env.Code != 40012 {
		t.Errorf("wrong captcha: %d %d", status, env.Code)
	}
}
