package feed

import "sync"

// Store holds the current feed snapshot. Every mutation replaces the affected
// post with the reducer's result; every read hands out copies.
type Store struct {
	mu     sync.RWMutex
	posts  []Post
	ledger Ledger
}

// NewStore returns an empty store recording per-user state in l.
func NewStore(l Ledger) *Store {
	if l == nil {
		l = NewMemoryLedger()
	}
	return &Store{ledger: l}
}

// Ledger returns the ledger the store toggles against.
func (s *Store) Ledger() Ledger {
	return s.ledger
}

// Replace swaps the whole snapshot, e.g. after a fetch.
func (s *Store) Replace(posts []Post) {
	next := make([]Post, len(posts))
	for i, p := range posts {
		next[i] = p.Clone()
	}
	s.mu.Lock()
	s.posts = next
	s.mu.Unlock()
}

// Prepend inserts p at the head of the feed, replacing any post with the same id.
func (s *Store) Prepend(p Post) {
	p = p.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append([]Post{p}, DeletePost(s.posts, p.ID)...)
}

// Posts returns the full feed, newest first.
func (s *Store) Posts() []Post {
	return s.Filter("")
}

// Filter returns posts of type t; an empty type selects everything.
func (s *Store) Filter(t PostType) []Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Post, 0, len(s.posts))
	for _, p := range s.posts {
		if t == "" || p.Type == t {
			out = append(out, p.Clone())
		}
	}
	return out
}

// Len reports how many posts the store holds.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.posts)
}

// Get returns the post with the given id.
func (s *Store) Get(id string) (Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.posts[i].Clone(), true
	}
	return Post{}, false
}

// Update applies fn to the post with the given id. fn reports whether it changed anything.
func (s *Store) Update(id string, fn func(Post) (Post, bool)) (Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return Post{}, false
	}
	next, ok := fn(s.posts[i])
	if !ok {
		return s.posts[i].Clone(), false
	}
	s.posts[i] = next
	return next.Clone(), true
}

// Delete removes the post with the given id.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(id) < 0 {
		return false
	}
	s.posts = DeletePost(s.posts, id)
	return true
}

func (s *Store) AddComment(postID string, c Comment) (Post, bool) {
	return s.Update(postID, func(p Post) (Post, bool) {
		return AddComment(p, c), true
	})
}

func (s *Store) AddReply(postID, parentID string, reply Comment) (Post, bool) {
	return s.Update(postID, func(p Post) (Post, bool) {
		return AddReply(p, parentID, reply)
	})
}

func (s *Store) DeleteComment(postID, commentID string) (Post, bool) {
	return s.Update(postID, func(p Post) (Post, bool) {
		return DeleteComment(p, commentID)
	})
}

func (s *Store) ToggleReaction(postID, userID string, r ReactionType) (Post, bool) {
	return s.Update(postID, func(p Post) (Post, bool) {
		return ToggleReaction(p, userID, r, s.ledger), r.Valid()
	})
}

func (s *Store) ToggleCommentReaction(postID, commentID, userID string, r ReactionType) (Post, bool) {
	return s.Update(postID, func(p Post) (Post, bool) {
		return ToggleCommentReaction(p, commentID, userID, r, s.ledger)
	})
}

func (s *Store) ToggleRSVP(postID, userID string, resp Response) (Post, bool) {
	return s.Update(postID, func(p Post) (Post, bool) {
		return ToggleRSVP(p, userID, resp, s.ledger), p.Event != nil && resp.Valid()
	})
}

func (s *Store) indexLocked(id string) int {
	for i := range s.posts {
		if s.posts[i].ID == id {
			return i
		}
	}
	return -1
}
