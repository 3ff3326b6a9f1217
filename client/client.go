// Package client talks to the campusfeed REST API and keeps a local feed
// session that keeps working when the server is unreachable.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/campusfeed/campusfeed/classifier"
	"github.com/campusfeed/campusfeed/feed"
)

// DefaultTimeout bounds every API call.
const DefaultTimeout = 10 * time.Second

var (
	// ErrOffline is returned by every call of a Client without a base URL.
	ErrOffline = errors.New("client is offline")
	// ErrNotAuthor is returned when deleting content owned by someone else.
	ErrNotAuthor = errors.New("only the author can delete this")
	// ErrNotFound is returned when a post or comment is not in the local feed.
	ErrNotFound = errors.New("not found")
)

// APIError is a non-success envelope returned by the server.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (http %d): %s", e.Code, e.Status, e.Message)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client calls the /api/v1 endpoints. The zero value is offline.
type Client struct {
	BaseURL string
	// Token is sent as a bearer token when set.
	Token string
	HTTP  *http.Client
}

// New returns a client for baseURL, e.g. "http://localhost:8080". An empty
// baseURL yields an offline client.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: DefaultTimeout},
	}
}

// Offline reports whether the client has no server to talk to.
func (c *Client) Offline() bool {
	return c == nil || c.BaseURL == ""
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if c.Offline() {
		return ErrOffline
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "campusfeed-client/1.0")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	hc := c.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("undecodable response: %v", err)}
	}
	if resp.StatusCode >= http.StatusBadRequest || env.Code != 0 {
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// ListOptions narrows FetchPosts. Zero values use the server defaults.
type ListOptions struct {
	Type     feed.PostType
	Search   string
	Sort     string
	Page     int
	PageSize int
}

func (o ListOptions) query() string {
	q := url.Values{}
	if o.Type != "" {
		q.Set("type", string(o.Type))
	}
	if o.Search != "" {
		q.Set("search", o.Search)
	}
	if o.Sort != "" {
		q.Set("sort", o.Sort)
	}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(o.PageSize))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// FetchPosts returns one page of the feed.
func (c *Client) FetchPosts(ctx context.Context, opts ListOptions) ([]feed.Post, error) {
	var out struct {
		Items []feed.Post `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/posts"+opts.query(), nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// CreatePost publishes a confirmed preview and returns the stored post.
func (c *Client) CreatePost(ctx context.Context, pv feed.PostPreview) (feed.Post, error) {
	var out struct {
		Post feed.Post `json:"post"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/posts", pv, &out)
	return out.Post, err
}

func (c *Client) DeletePost(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/posts/"+url.PathEscape(id), nil, nil)
}

// AddComment posts a comment, or a reply when parentID is not empty.
func (c *Client) AddComment(ctx context.Context, postID, parentID, content string) (feed.Comment, error) {
	body := map[string]string{"content": content}
	if parentID != "" {
		body["parent_id"] = parentID
	}
	var out struct {
		Comment feed.Comment `json:"comment"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/posts/"+url.PathEscape(postID)+"/comments", body, &out)
	return out.Comment, err
}

func (c *Client) DeleteComment(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/comments/"+url.PathEscape(id), nil, nil)
}

// ReactionTarget names what a reaction applies to.
type ReactionTarget string

const (
	TargetPost    ReactionTarget = "post"
	TargetComment ReactionTarget = "comment"
)

// ReactionResult is the server's view after a toggle.
type ReactionResult struct {
	Toggled   bool           `json:"toggled"`
	Reactions feed.Reactions `json:"reactions"`
}

func (c *Client) ToggleReaction(ctx context.Context, target ReactionTarget, targetID string, r feed.ReactionType) (ReactionResult, error) {
	body := map[string]string{"target_type": string(target), "target_id": targetID, "type": r.Slug()}
	var out ReactionResult
	err := c.do(ctx, http.MethodPost, "/api/v1/reactions", body, &out)
	return out, err
}

// RSVPResult is the caller's current response and the event's counts.
type RSVPResult struct {
	Response  feed.Response  `json:"response"`
	Responses feed.Responses `json:"responses"`
}

// RSVP toggles resp on an event; an empty resp withdraws the current one.
func (c *Client) RSVP(ctx context.Context, postID string, resp feed.Response) (RSVPResult, error) {
	var out RSVPResult
	err := c.do(ctx, http.MethodPost, "/api/v1/events/"+url.PathEscape(postID)+"/rsvp",
		map[string]string{"response": string(resp)}, &out)
	return out, err
}

// Classify asks the server to classify text. It satisfies classifier.Remote.
func (c *Client) Classify(ctx context.Context, text string) (classifier.Result, error) {
	var out classifier.Result
	err := c.do(ctx, http.MethodPost, "/api/v1/classify", map[string]string{"text": text}, &out)
	return out, err
}

var _ classifier.Remote = (*Client)(nil)
