package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/campusfeed/campusfeed/feed"
	"github.com/campusfeed/campusfeed/models"
)

const (
	SortNewest  = "newest"
	SortPopular = "popular"
)

// ListQuery filters and pages the feed. Zero values mean no filter.
type ListQuery struct {
	Type     feed.PostType
	Search   string
	Sort     string
	UserID   uint
	Page     int
	PageSize int
}

// PostRepository loads and stores posts with their comments, reactions and RSVPs.
type PostRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) *PostRepository {
	return &PostRepository{db: db}
}

// List returns one page of hydrated posts and the total number of matches.
func (r *PostRepository) List(ctx context.Context, q ListQuery) ([]feed.Post, int64, error) {
	filtered := func() *gorm.DB {
		query := r.db.WithContext(ctx).Model(&models.Post{})
		if q.Type != "" {
			query = query.Where("type = ?", string(q.Type))
		}
		if q.UserID != 0 {
			query = query.Where("user_id = ?", q.UserID)
		}
		if s := strings.TrimSpace(q.Search); s != "" {
			like := "%" + strings.ToLower(s) + "%"
			query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
		}
		return query
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	query := filtered()
	if q.Sort == SortPopular {
		query = query.Order("(SELECT COUNT(*) FROM reactions WHERE reactions.post_id = posts.id) + " +
			"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) DESC")
	}
	query = query.Order("created_at DESC").Order("id DESC")
	if q.PageSize > 0 {
		page := q.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * q.PageSize).Limit(q.PageSize)
	}

	var rows []models.Post
	if err := query.Preload("User").Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	posts, err := r.hydrate(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// Get loads one hydrated post.
func (r *PostRepository) Get(ctx context.Context, id string) (feed.Post, error) {
	row, err := r.Row(ctx, id)
	if err != nil {
		return feed.Post{}, err
	}
	posts, err := r.hydrate(ctx, []models.Post{row})
	if err != nil {
		return feed.Post{}, err
	}
	return posts[0], nil
}

// Row loads the bare post row with its author.
func (r *PostRepository) Row(ctx context.Context, id string) (models.Post, error) {
	var row models.Post
	err := r.db.WithContext(ctx).Preload("User").Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Post{}, ErrNotFound
	}
	return row, err
}

func (r *PostRepository) hydrate(ctx context.Context, rows []models.Post) ([]feed.Post, error) {
	out := make([]feed.Post, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	db := r.db.WithContext(ctx)

	var comments []models.Comment
	if err := db.Preload("User").Where("post_id IN ?", ids).
		Order("created_at ASC").Order("id ASC").Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("load comments: %w", err)
	}
	byPost := map[string][]models.Comment{}
	for _, c := range comments {
		byPost[c.PostID] = append(byPost[c.PostID], c)
	}

	c, err := loadCounts(db, ids)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out = append(out, toFeedPost(row, byPost[row.ID], c))
	}
	return out, nil
}

func loadCounts(db *gorm.DB, postIDs []string) (counts, error) {
	c := counts{reactions: map[string]feed.Reactions{}, responses: map[string]feed.Responses{}}

	var reactionRows []struct {
		TargetID string
		Kind     string
		N        int
	}
	if err := db.Model(&models.Reaction{}).
		Select("target_id, kind, COUNT(*) AS n").
		Where("post_id IN ?", postIDs).
		Group("target_id, kind").Scan(&reactionRows).Error; err != nil {
		return c, fmt.Errorf("count reactions: %w", err)
	}
	for _, row := range reactionRows {
		rt, err := feed.ParseReactionType(row.Kind)
		if err != nil {
			continue
		}
		if _, ok := c.reactions[row.TargetID]; !ok {
			c.reactions[row.TargetID] = feed.NewReactions()
		}
		c.reactions[row.TargetID][rt] = row.N
	}

	var responseRows []struct {
		PostID   string
		Response string
		N        int
	}
	if err := db.Model(&models.EventResponse{}).
		Select("post_id, response, COUNT(*) AS n").
		Where("post_id IN ?", postIDs).
		Group("post_id, response").Scan(&responseRows).Error; err != nil {
		return c, fmt.Errorf("count responses: %w", err)
	}
	for _, row := range responseRows {
		resp := feed.Response(row.Response)
		if !resp.Valid() {
			continue
		}
		if _, ok := c.responses[row.PostID]; !ok {
			c.responses[row.PostID] = feed.NewResponses()
		}
		c.responses[row.PostID][resp] = row.N
	}
	return c, nil
}

// Create inserts a new post. Counters and comments are not stored on the row.
func (r *PostRepository) Create(ctx context.Context, p feed.Post) error {
	if err := p.Validate(); err != nil {
		return err
	}
	row, err := postRow(p)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(&row).Error
}

// Update writes the editable fields of p.
func (r *PostRepository) Update(ctx context.Context, p feed.Post) error {
	if err := p.Validate(); err != nil {
		return err
	}
	row, err := postRow(p)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
		"title":          row.Title,
		"description":    row.Description,
		"image_url":      row.ImageURL,
		"location":       row.Location,
		"event_date":     row.EventDate,
		"event_time":     row.EventTime,
		"department":     row.Department,
		"item_type":      row.ItemType,
		"item_name":      row.ItemName,
		"attachment_url": row.AttachmentURL,
		"updated_at":     time.Now(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a post with its comments, reactions, RSVPs and notifications.
// Uploads attached to it become orphans for the upload cleaner.
func (r *PostRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&models.Post{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		for _, m := range []interface{}{&models.Reaction{}, &models.EventResponse{}, &models.Comment{}, &models.Notification{}} {
			if err := tx.Where("post_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Model(&models.UploadedFile{}).Where("post_id = ?", id).
			Updates(map[string]interface{}{"post_id": nil, "expire_at": time.Now()}).Error
	})
}

// AttachUploads marks the caller's uploads referenced by urls as belonging to postID.
func (r *PostRepository) AttachUploads(ctx context.Context, postID string, userID uint, urls ...string) error {
	var keep []string
	for _, u := range urls {
		if u != "" {
			keep = append(keep, u)
		}
	}
	if len(keep) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.UploadedFile{}).
		Where("user_id = ? AND url IN ?", userID, keep).
		Updates(map[string]interface{}{"post_id": postID, "expire_at": nil}).Error
}

// CreateComment stores a comment, or a reply when parentID is set.
func (r *PostRepository) CreateComment(ctx context.Context, postID, parentID string, c feed.Comment) error {
	userID, err := ParseUserKey(c.AuthorID)
	if err != nil {
		return err
	}
	created, err := time.Parse(feed.TimestampLayout, c.Timestamp)
	if err != nil {
		created = time.Now()
	}
	row := models.Comment{ID: c.ID, PostID: postID, UserID: userID, Content: c.Content, CreatedAt: created.UTC()}
	if parentID != "" {
		row.ParentID = &parentID
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(&row).Error
}

// Comment loads one comment row with its author.
func (r *PostRepository) Comment(ctx context.Context, id string) (models.Comment, error) {
	var row models.Comment
	err := r.db.WithContext(ctx).Preload("User").Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Comment{}, ErrNotFound
	}
	return row, err
}

// Comments returns the comment tree of a post.
func (r *PostRepository) Comments(ctx context.Context, postID string) ([]feed.Comment, error) {
	p, err := r.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	return p.Comments, nil
}

// DeleteComment removes a comment, its replies and every reaction on them.
// It returns the ids that were removed.
func (r *PostRepository) DeleteComment(ctx context.Context, id string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Comment{}).Where("parent_id = ?", id).Pluck("id", &ids).Error; err != nil {
			return err
		}
		ids = append([]string{id}, ids...)
		res := tx.Where("id IN ?", ids).Delete(&models.Comment{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("target_id IN ?", ids).Delete(&models.Reaction{}).Error
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ReactionTarget names the post, or one of its comments, a reaction applies to.
type ReactionTarget struct {
	PostID    string
	CommentID string
}

// ToggleReaction flips userID's reaction on target and returns whether it is
// now set together with the target's updated counts.
func (r *PostRepository) ToggleReaction(ctx context.Context, target ReactionTarget, userID uint, rt feed.ReactionType) (bool, feed.Reactions, error) {
	var (
		toggled bool
		result  feed.Reactions
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := &PostRepository{db: tx}
		p, err := repo.Get(ctx, target.PostID)
		if err != nil {
			return err
		}
		ledger := NewLedger(tx, p.ID)
		user := UserKey(userID)
		targetID := p.ID
		if target.CommentID != "" {
			targetID = target.CommentID
		}
		toggled = !ledger.HasReacted(user, targetID, rt)

		if target.CommentID == "" {
			p = feed.ToggleReaction(p, user, rt, ledger)
			result = p.Reactions
		} else {
			var ok bool
			p, ok = feed.ToggleCommentReaction(p, target.CommentID, user, rt, ledger)
			if !ok {
				return ErrNotFound
			}
			c, _ := feed.FindComment(p, target.CommentID)
			result = c.Reactions
		}
		return ledger.Err()
	})
	if err != nil {
		return false, nil, err
	}
	return toggled, result, nil
}

// ToggleRSVP applies resp for userID on an event post. An empty resp clears
// the caller's response. It returns the caller's response afterwards and the
// event's counts.
func (r *PostRepository) ToggleRSVP(ctx context.Context, postID string, userID uint, resp feed.Response) (feed.Response, feed.Responses, error) {
	var (
		current feed.Response
		result  feed.Responses
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := &PostRepository{db: tx}
		p, err := repo.Get(ctx, postID)
		if err != nil {
			return err
		}
		if p.Event == nil {
			return ErrNotEvent
		}
		ledger := NewLedger(tx, p.ID)
		user := UserKey(userID)
		if resp == "" {
			// repeating the current response withdraws it
			if cur, ok := ledger.Response(user, p.ID); ok {
				resp = cur
			}
		}
		if resp != "" {
			p = feed.ToggleRSVP(p, user, resp, ledger)
		}
		current, _ = ledger.Response(user, p.ID)
		result = p.Event.Responses
		return ledger.Err()
	})
	if err != nil {
		return "", nil, err
	}
	return current, result, nil
}

// ErrNotEvent is returned when an RSVP targets a post that is not an event.
var ErrNotEvent = errors.New("post is not an event")

// UserState is what one user has done on a post.
type UserState struct {
	Reactions map[string][]feed.ReactionType `json:"reactions"`
	Response  feed.Response                  `json:"response,omitempty"`
}

// State returns userID's reactions on the post and its comments, and the RSVP.
func (r *PostRepository) State(ctx context.Context, postID string, userID uint) (UserState, error) {
	st := UserState{Reactions: map[string][]feed.ReactionType{}}
	db := r.db.WithContext(ctx)
	var rows []models.Reaction
	if err := db.Where("post_id = ? AND user_id = ?", postID, userID).Order("id ASC").Find(&rows).Error; err != nil {
		return st, err
	}
	for _, row := range rows {
		if rt, err := feed.ParseReactionType(row.Kind); err == nil {
			st.Reactions[row.TargetID] = append(st.Reactions[row.TargetID], rt)
		}
	}
	var resp models.EventResponse
	err := db.Where("post_id = ? AND user_id = ?", postID, userID).First(&resp).Error
	switch {
	case err == nil:
		st.Response = feed.Response(resp.Response)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return st, err
	}
	return st, nil
}

// PostStats summarises engagement on a post.
type PostStats struct {
	Views     int64          `json:"views"`
	Comments  int            `json:"comments"`
	Reactions int            `json:"reactions"`
	Responses feed.Responses `json:"responses,omitempty"`
}

// Stats aggregates page views and counters for one post.
func (r *PostRepository) Stats(ctx context.Context, postID string) (PostStats, error) {
	p, err := r.Get(ctx, postID)
	if err != nil {
		return PostStats{}, err
	}
	st := PostStats{Comments: feed.CountComments(p), Reactions: p.Reactions.Total()}
	if p.Event != nil {
		st.Responses = p.Event.Responses
	}
	if err := r.db.WithContext(ctx).Model(&models.PageView{}).Where("post_id = ?", postID).
		Select("COALESCE(SUM(count), 0)").Scan(&st.Views).Error; err != nil {
		return st, err
	}
	return st, nil
}
