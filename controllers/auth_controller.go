package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/campusfeed/campusfeed/config"
	"github.com/campusfeed/campusfeed/middleware"
	"github.com/campusfeed/campusfeed/models"
	"github.com/campusfeed/campusfeed/utils"
)

// AuthController handles sign-up, email verification, sessions and profiles.
type AuthController struct {
	db *gorm.DB
	// googleUserInfo is replaced in tests.
	googleUserInfo func(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token) (*oauthUser, error)
}

// NewAuthController creates an AuthController.
func NewAuthController(db *gorm.DB) *AuthController {
	return &AuthController{db: db, googleUserInfo: fetchGoogleUser}
}

func sessionTTL() time.Duration {
	return time.Duration(config.Get().TokenTTLHours) * time.Hour
}

func userResponse(user models.User) gin.H {
	return gin.H{
		"id":         user.ID,
		"email":      user.Email,
		"name":       user.Name,
		"branch":     user.Branch,
		"year":       user.Year,
		"bio":        user.Bio,
		"avatar_url": user.AvatarURL,
		"verified":   user.Verified,
		"provider":   user.Provider,
		"created_at": user.CreatedAt,
		"is_admin":   config.Get().IsAdminEmail(user.Email),
	}
}

func (a *AuthController) issueSession(ctx *gin.Context, user models.User) {
	token, err := utils.GenerateToken(user.ID, user.Email, user.Name, sessionTTL())
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}
	utils.Success(ctx, gin.H{"token": token, "user": userResponse(user)})
}

// Signup registers a campus account and mails a verification link.
func (a *AuthController) Signup(ctx *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email,max=255"`
		Password string `json:"password" binding:"required"`
		Name     string `json:"name" binding:"required,min=2,max=120"`
		Branch   string `json:"branch" binding:"max=120"`
		Year     int    `json:"year" binding:"omitempty,min=1,max=6"`

		CaptchaID     string `json:"captcha_id"`
		CaptchaAnswer string `json:"captcha_answer"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ValidationError(ctx, 40001, err)
		return
	}
	cfg := config.Get()
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !cfg.EmailDomainAllowed(email) {
		utils.Error(ctx, http.StatusForbidden, 40310, "sign-up is limited to campus email addresses")
		return
	}
	if !utils.ValidPassword(req.Password) {
		utils.Error(ctx, http.StatusBadRequest, 40002, fmt.Sprintf("password needs at least %d characters with a letter and a digit", utils.MinPasswordLength))
		return
	}
	name := utils.SanitizeText(req.Name)
	if name == "" {
		utils.Error(ctx, http.StatusBadRequest, 40003, "name cannot be empty")
		return
	}

	if cfg.RegisterCaptchaEnabled &&
		!utils.VerifyCaptcha(strings.TrimSpace(req.CaptchaID), strings.TrimSpace(req.CaptchaAnswer)) {
		utils.Error(ctx, http.StatusBadRequest, 40012, "invalid captcha")
		return
	}

	ip := ctx.ClientIP()
	if !utils.SignupCooldownTry(ip) {
		utils.Error(ctx, http.StatusTooManyRequests, 42910, "too many attempts, try again shortly")
		return
	}
	if !utils.SignupDailyLimitCheck(ip) {
		utils.Error(ctx, http.StatusTooManyRequests, 42921, "daily sign-up limit reached")
		return
	}

	var existing int64
	if err := a.db.Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to check email")
		return
	}
	if existing > 0 {
		utils.Error(ctx, http.StatusConflict, 40901, "email already registered")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to hash password")
		return
	}
	user := models.User{
		Email:        email,
		Name:         name,
		Branch:       utils.SanitizeText(req.Branch),
		Year:         req.Year,
		PasswordHash: hash,
		Provider:     "password",
		RegisterIP:   ip,
	}
	if err := a.db.Create(&user).Error; err != nil {
		utils.Logger.Error("create user", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to create user")
		return
	}
	utils.SignupDailyIncrement(ip)

	payload := gin.H{"user": userResponse(user), "verification_sent": false}
	token, err := utils.GenerateVerifyToken(user.ID, user.Email)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}
	if err := utils.SendVerificationMail(user.Email, user.Name, token); err != nil {
		utils.Logger.Warn("verification mail not sent", zap.String("email", user.Email), zap.Error(err))
	} else {
		payload["verification_sent"] = true
	}
	// outside release mode the token is returned so local setups work without SMTP
	if gin.Mode() != gin.ReleaseMode {
		payload["verification_token"] = token
	}
	utils.Created(ctx, payload)
}

// Captcha returns a fresh captcha id and base64 image (data URI) for sign-up.
func (a *AuthController) Captcha(ctx *gin.Context) {
	id, b64, err := utils.GenerateCaptcha()
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50007, "failed to generate captcha")
		return
	}
	utils.Success(ctx, gin.H{"captcha_id": id, "image": b64, "enabled": config.Get().RegisterCaptchaEnabled})
}

// Verify confirms an email address from a mailed token and starts a session.
func (a *AuthController) Verify(ctx *gin.Context) {
	claims, err := utils.ParseVerifyToken(ctx.Query("token"))
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40011, "invalid or expired verification token")
		return
	}
	var user models.User
	if err := a.db.Where("id = ? AND email = ?", claims.UserID, claims.Email).First(&user).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		return
	}
	if !user.Verified {
		if err := a.db.Model(&user).Update("verified", true).Error; err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50005, "failed to verify user")
			return
		}
		user.Verified = true
	}
	a.issueSession(ctx, user)
}

// Login verifies user credentials and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ValidationError(ctx, 40004, err)
		return
	}

	var user models.User
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := a.db.Where("email = ?", email).First(&user).Error; err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid email or password")
		return
	}
	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid email or password")
		return
	}
	if !user.Verified {
		utils.Error(ctx, http.StatusForbidden, 40311, "email not verified")
		return
	}
	a.issueSession(ctx, user)
}

// Logout invalidates the token by blacklisting it until expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	token := ctx.GetString(middleware.ContextTokenKey)
	claims, err := utils.ParseToken(token)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
		return
	}
	expiresAt := time.Now().Add(sessionTTL())
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	utils.BlacklistToken(token, expiresAt)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the current authenticated user's information.
func (a *AuthController) Me(ctx *gin.Context) {
	uid, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}
	var user models.User
	if err := a.db.First(&user, uid).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		return
	}
	utils.Success(ctx, userResponse(user))
}

// UpdateProfile changes the profile fields present in the request.
func (a *AuthController) UpdateProfile(ctx *gin.Context) {
	uid, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}
	var req struct {
		Name      *string `json:"name" binding:"omitempty,min=2,max=120"`
		Branch    *string `json:"branch" binding:"omitempty,max=120"`
		Year      *int    `json:"year" binding:"omitempty,min=0,max=6"`
		Bio       *string `json:"bio" binding:"omitempty,max=500"`
		AvatarURL *string `json:"avatar_url" binding:"omitempty,max=512"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ValidationError(ctx, 40040, err)
		return
	}

	var user models.User
	if err := a.db.First(&user, uid).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		return
	}
	updates := map[string]interface{}{}
	if req.Name != nil {
		if name := utils.SanitizeText(*req.Name); name != "" {
			updates["name"] = name
		}
	}
	if req.Branch != nil {
		updates["branch"] = utils.SanitizeText(*req.Branch)
	}
	if req.Year != nil {
		updates["year"] = *req.Year
	}
	if req.Bio != nil {
		updates["bio"] = utils.SanitizeText(*req.Bio)
	}
	if req.AvatarURL != nil {
		updates["avatar_url"] = utils.SanitizeText(*req.AvatarURL)
	}
	if len(updates) > 0 {
		if err := a.db.Model(&user).Updates(updates).Error; err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to update profile")
			return
		}
		if err := a.db.First(&user, uid).Error; err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to update profile")
			return
		}
	}
	invalidateUserCaches(user.ID)
	// lists embed author names
	utils.InvalidateByPrefix(utils.CachePostList)
	utils.Success(ctx, userResponse(user))
}

func googleConfig() (*oauth2.Config, error) {
	cfg := config.Get()
	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		return nil, errors.New("google oauth not configured")
	}
	return &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.OAuthRedirectBase + "/api/v1/auth/oauth/google/callback",
		Scopes:       []string{"openid", "profile", "email"},
		Endpoint:     google.Endpoint,
	}, nil
}

// GoogleLogin returns the Google authorization URL.
func (a *AuthController) GoogleLogin(ctx *gin.Context) {
	cfg, err := googleConfig()
	if err != nil {
		utils.Error(ctx, http.StatusServiceUnavailable, 50310, err.Error())
		return
	}
	state := uuid.NewString()
	utils.SaveState(state, 10*time.Minute)
	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOnline}
	if domains := config.Get().AllowedEmailDomains; len(domains) == 1 {
		opts = append(opts, oauth2.SetAuthURLParam("hd", domains[0]))
	}
	utils.Success(ctx, gin.H{"authorization_url": cfg.AuthCodeURL(state, opts...), "state": state})
}

// GoogleCallback exchanges the code and signs in a campus Google account.
func (a *AuthController) GoogleCallback(ctx *gin.Context) {
	code, state := ctx.Query("code"), ctx.Query("state")
	if code == "" || state == "" {
		utils.Error(ctx, http.StatusBadRequest, 40005, "missing code or state")
		return
	}
	if !utils.ConsumeState(state) {
		utils.Error(ctx, http.StatusBadRequest, 40006, "invalid or expired state")
		return
	}
	cfg, err := googleConfig()
	if err != nil {
		utils.Error(ctx, http.StatusServiceUnavailable, 50310, err.Error())
		return
	}

	rctx, cancel := context.WithTimeout(ctx.Request.Context(), 10*time.Second)
	defer cancel()
	token, err := cfg.Exchange(rctx, code)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40007, "failed to exchange code")
		return
	}
	info, err := a.googleUserInfo(rctx, cfg, token)
	if err != nil {
		utils.Logger.Warn("google userinfo", zap.Error(err))
		utils.Error(ctx, http.StatusBadGateway, 50205, "failed to fetch google profile")
		return
	}
	if !info.Verified || !config.Get().EmailDomainAllowed(info.Email) {
		utils.Error(ctx, http.StatusForbidden, 40310, "sign-in is limited to verified campus email addresses")
		return
	}

	user, err := a.findOrCreateOAuthUser("google", info)
	if err != nil {
		utils.Logger.Error("persist oauth user", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50006, "failed to persist user")
		return
	}
	a.issueSession(ctx, *user)
}

type oauthUser struct {
	ID        string
	Name      string
	Email     string
	AvatarURL string
	Verified  bool
}

// findOrCreateOAuthUser links by provider id first and by email second, so a
// password account and a Google sign-in share one user.
func (a *AuthController) findOrCreateOAuthUser(provider string, data *oauthUser) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(data.Email))
	var user models.User
	err := a.db.Where("provider = ? AND provider_id = ?", provider, data.ID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = a.db.Where("email = ?", email).First(&user).Error
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{
			Email:      email,
			Name:       fallback(data.Name, strings.Split(email, "@")[0]),
			AvatarURL:  data.AvatarURL,
			Verified:   true,
			Provider:   provider,
			ProviderID: data.ID,
			RegisterIP: "oauth",
		}
		if err := a.db.Create(&user).Error; err != nil {
			return nil, err
		}
		return &user, nil
	case err != nil:
		return nil, err
	}

	updates := map[string]interface{}{"verified": true, "provider_id": data.ID}
	if user.AvatarURL == "" && data.AvatarURL != "" {
		updates["avatar_url"] = data.AvatarURL
	}
	if err := a.db.Model(&user).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func fetchGoogleUser(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token) (*oauthUser, error) {
	resp, err := cfg.Client(ctx, token).Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google user info request failed: %s", resp.Status)
	}

	var payload struct {
		ID            string `json:"id"`
		Email         string `json:"email"`
		VerifiedEmail bool   `json:"verified_email"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return &oauthUser{
		ID:        payload.ID,
		Name:      payload.Name,
		Email:     payload.Email,
		AvatarURL: payload.Picture,
		Verified:  payload.VerifiedEmail,
	}, nil
}

func fallback(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
