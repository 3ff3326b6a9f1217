package repositories

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/campusfeed/campusfeed/feed"
	"github.com/campusfeed/campusfeed/models"
)

// Ledger is a feed.Ledger persisted in the reactions and event_responses
// tables. It is bound to one post, usually inside a transaction. The
// feed.Ledger interface has no error returns, so the first failure is kept
// and every later call becomes a no-op; check Err before committing.
type Ledger struct {
	db     *gorm.DB
	postID string
	err    error
}

// NewLedger binds a ledger to postID on db.
func NewLedger(db *gorm.DB, postID string) *Ledger {
	return &Ledger{db: db, postID: postID}
}

// Err returns the first database error seen by the ledger.
func (l *Ledger) Err() error {
	return l.err
}

func (l *Ledger) user(userID string) (uint, bool) {
	if l.err != nil {
		return 0, false
	}
	id, err := ParseUserKey(userID)
	if err != nil {
		l.err = err
		return 0, false
	}
	return id, true
}

func (l *Ledger) HasReacted(userID, targetID string, r feed.ReactionType) bool {
	uid, ok := l.user(userID)
	if !ok {
		return false
	}
	var n int64
	l.err = l.db.Model(&models.Reaction{}).
		Where("target_id = ? AND user_id = ? AND kind = ?", targetID, uid, r.Slug()).
		Count(&n).Error
	return n > 0
}

func (l *Ledger) SetReacted(userID, targetID string, r feed.ReactionType, reacted bool) {
	uid, ok := l.user(userID)
	if !ok {
		return
	}
	if reacted {
		l.err = l.db.Create(&models.Reaction{PostID: l.postID, TargetID: targetID, UserID: uid, Kind: r.Slug()}).Error
		return
	}
	l.err = l.db.Where("target_id = ? AND user_id = ? AND kind = ?", targetID, uid, r.Slug()).
		Delete(&models.Reaction{}).Error
}

func (l *Ledger) Response(userID, postID string) (feed.Response, bool) {
	uid, ok := l.user(userID)
	if !ok {
		return "", false
	}
	var row models.EventResponse
	err := l.db.Where("post_id = ? AND user_id = ?", postID, uid).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false
	}
	if err != nil {
		l.err = err
		return "", false
	}
	resp := feed.Response(row.Response)
	return resp, resp.Valid()
}

func (l *Ledger) SetResponse(userID, postID string, resp feed.Response) {
	uid, ok := l.user(userID)
	if !ok {
		return
	}
	row := models.EventResponse{PostID: postID, UserID: uid, Response: string(resp)}
	l.err = l.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"response", "updated_at"}),
	}).Create(&row).Error
}

func (l *Ledger) ClearResponse(userID, postID string) {
	uid, ok := l.user(userID)
	if !ok {
		return
	}
	l.err = l.db.Where("post_id = ? AND user_id = ?", postID, uid).Delete(&models.EventResponse{}).Error
}
