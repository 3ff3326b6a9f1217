package feed

import "sync"

// Ledger remembers what each user has done so that reactions and RSVPs toggle.
// Keys always include the user id; a post's ledger entries and any comment's
// entries share the same keyspace because ids are globally unique.
type Ledger interface {
	HasReacted(userID, targetID string, r ReactionType) bool
	SetReacted(userID, targetID string, r ReactionType, reacted bool)
	Response(userID, postID string) (Response, bool)
	SetResponse(userID, postID string, resp Response)
	ClearResponse(userID, postID string)
}

type reactionKey struct {
	user, target string
	reaction     ReactionType
}

type responseKey struct {
	user, post string
}

// MemoryLedger is a process-local Ledger.
type MemoryLedger struct {
	mu        sync.RWMutex
	reactions map[reactionKey]struct{}
	responses map[responseKey]Response
}

// NewMemoryLedger returns an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		reactions: map[reactionKey]struct{}{},
		responses: map[responseKey]Response{},
	}
}

func (l *MemoryLedger) HasReacted(userID, targetID string, r ReactionType) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.reactions[reactionKey{userID, targetID, r}]
	return ok
}

func (l *MemoryLedger) SetReacted(userID, targetID string, r ReactionType, reacted bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := reactionKey{userID, targetID, r}
	if reacted {
		l.reactions[key] = struct{}{}
		return
	}
	delete(l.reactions, key)
}

func (l *MemoryLedger) Response(userID, postID string) (Response, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	resp, ok := l.responses[responseKey{userID, postID}]
	return resp, ok
}

func (l *MemoryLedger) SetResponse(userID, postID string, resp Response) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.responses[responseKey{userID, postID}] = resp
}

func (l *MemoryLedger) ClearResponse(userID, postID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.responses, responseKey{userID, postID})
}

// UserReactions lists the reactions userID has placed on targetID.
func UserReactions(l Ledger, userID, targetID string) []ReactionType {
	var out []ReactionType
	for _, r := range ReactionTypes {
		if l.HasReacted(userID, targetID, r) {
			out = append(out, r)
		}
	}
	return out
}
