package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/campusfeed/campusfeed/config"
)

// PurposeVerifyEmail marks tokens mailed out for email verification.
const PurposeVerifyEmail = "verify-email"

// ErrTokenPurpose is returned when a token is presented for the wrong use.
var ErrTokenPurpose = errors.New("token purpose mismatch")

// Claims defines JWT claims used in the application.
type Claims struct {
	UserID  uint   `json:"user_id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Purpose string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken issues a session JWT for the specified user identity.
func GenerateToken(userID uint, email, name string, duration time.Duration) (string, error) {
	return signClaims(Claims{UserID: userID, Email: email, Name: name}, duration)
}

// GenerateVerifyToken issues a short-lived token proving control of email.
func GenerateVerifyToken(userID uint, email string) (string, error) {
	return signClaims(Claims{UserID: userID, Email: email, Purpose: PurposeVerifyEmail}, 24*time.Hour)
}

func signClaims(claims Claims, duration time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.Get().JWTSecret))
}

// ParseToken validates a session JWT and returns its claims.
func ParseToken(tokenStr string) (*Claims, error) {
	claims, err := parseClaims(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != "" {
		return nil, ErrTokenPurpose
	}
	return claims, nil
}

// ParseVerifyToken validates an email verification token.
func ParseVerifyToken(tokenStr string) (*Claims, error) {
	claims, err := parseClaims(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != PurposeVerifyEmail {
		return nil, ErrTokenPurpose
	}
	return claims, nil
}

func parseClaims(tokenStr string) (*Claims, error) {
	secret := config.Get().JWTSecret
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
