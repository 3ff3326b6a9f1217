package controllers

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/campusfeed/campusfeed/config"
	"github.com/campusfeed/campusfeed/models"
	"github.com/campusfeed/campusfeed/utils"
)

// UploadURLPrefix is where stored uploads are served from.
const UploadURLPrefix = "/uploads"

// allowedUploads maps accepted content types to their upload kind.
var allowedUploads = map[string]string{
	"image/png":       "image",
	"image/jpeg":      "image",
	"image/webp":      "image",
	"image/gif":       "image",
	"application/pdf": "pdf",
}

// UploadController stores post images and announcement attachments.
type UploadController struct {
	db  *gorm.DB
	now func() time.Time
}

func NewUploadController(db *gorm.DB) *UploadController {
	return &UploadController{db: db, now: time.Now}
}

func detectUpload(head []byte) (*mimetype.MIME, string, bool) {
	mt := mimetype.Detect(head)
	for m := mt; m != nil; m = m.Parent() {
		if kind, ok := allowedUploads[m.String()]; ok {
			return mt, kind, true
		}
	}
	return mt, "", false
}

// Upload sniffs the file content, stores it under the upload dir and records
// it so the cleaner can drop it if no post ever references it.
func (u *UploadController) Upload(ctx *gin.Context) {
	uid, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40150, "unauthorized")
		return
	}
	file, header, err := ctx.Request.FormFile("file")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40090, "no file uploaded")
		return
	}
	defer file.Close()

	cfg := config.Get()
	maxSize := int64(cfg.UploadMaxMB) << 20
	if header.Size > maxSize {
		utils.Error(ctx, http.StatusRequestEntityTooLarge, 41301, "file exceeds "+strconv.Itoa(cfg.UploadMaxMB)+"MB")
		return
	}

	head := make([]byte, 3072)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		utils.Error(ctx, http.StatusBadRequest, 40091, "failed to read file")
		return
	}
	head = head[:n]
	mt, kind, ok := detectUpload(head)
	if !ok {
		utils.Error(ctx, http.StatusUnsupportedMediaType, 41501, "only png, jpeg, webp, gif images and pdf files are accepted")
		return
	}

	now := u.now()
	rel := path.Join(now.Format("2006"), now.Format("01"), now.Format("02"), uuid.NewString()+mt.Extension())
	dst := filepath.Join(cfg.UploadDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		utils.Logger.Error("create upload dir", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50090, "failed to create upload directory")
		return
	}
	out, err := os.Create(dst)
	if err != nil {
		utils.Logger.Error("create upload file", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50091, "failed to save file")
		return
	}
	written, err := io.Copy(out, io.LimitReader(io.MultiReader(bytes.NewReader(head), file), maxSize+1))
	closeErr := out.Close()
	if err != nil || closeErr != nil {
		_ = os.Remove(dst)
		utils.Error(ctx, http.StatusInternalServerError, 50092, "failed to write file")
		return
	}
	if written > maxSize {
		_ = os.Remove(dst)
		utils.Error(ctx, http.StatusRequestEntityTooLarge, 41301, "file exceeds "+strconv.Itoa(cfg.UploadMaxMB)+"MB")
		return
	}

	url := UploadURLPrefix + "/" + rel
	expireAt := now.Add(time.Duration(cfg.UploadOrphanMinutes) * time.Minute)
	record := models.UploadedFile{
		UserID: uid, FilePath: dst, URL: url, Kind: kind,
		Mime: mt.String(), SizeBytes: written, ExpireAt: &expireAt,
	}
	if err := u.db.WithContext(ctx.Request.Context()).Create(&record).Error; err != nil {
		_ = os.Remove(dst)
		utils.Logger.Error("record upload", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50093, "failed to record upload")
		return
	}
	utils.Created(ctx, gin.H{"url": url, "kind": kind, "mime": mt.String(), "size": written})
}
