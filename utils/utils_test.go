package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/campusfeed/campusfeed/config"
)

func useConfig(t *testing.T) {
	t.Helper()
	config.Set(config.AppConfig{JWTSecret: "utils-test-secret", CacheTTLSec: 60})
}

func TestValidPassword(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"campus123", true},
		{"short1", false},
		{"lettersonly", false},
		{"12345678", false},
		{"pässwort9", true},
	}
	for _, tt := range tests {
		if got := ValidPassword(tt.in); got != tt.want {
			t.Errorf("ValidPassword(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("campus123")
	if err != nil {
		t.Fatal(err)
	}
	if !CheckPassword(hash, "campus123") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "campus124") || CheckPassword("", "campus123") {
		t.Error("wrong password accepted")
	}
}

func TestTokens(t *testing.T) {
	useConfig(t)

	session, err := GenerateToken(7, "asha@nitrkl.ac.in", "Asha", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := ParseToken(session)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != 7 || claims.Name != "Asha" {
		t.Errorf("claims = %+v", claims)
	}
	if _, err := ParseVerifyToken(session); !errors.Is(err, ErrTokenPurpose) {
		t.Errorf("session token accepted for verification: %v", err)
	}

	verify, err := GenerateVerifyToken(7, "asha@nitrkl.ac.in")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseToken(verify); !errors.Is(err, ErrTokenPurpose) {
		t.Errorf("verification token accepted as session: %v", err)
	}
	if c, err := ParseVerifyToken(verify); err != nil || c.Email != "asha@nitrkl.ac.in" {
		t.Errorf("ParseVerifyToken = %+v, %v", c, err)
	}

	expired, err := GenerateToken(7, "asha@nitrkl.ac.in", "Asha", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseToken(expired); err == nil {
		t.Error("expired token accepted")
	}
}

func TestSanitizeText(t *testing.T) {
	tests := map[string]string{
		"<b>robotics</b> club":           "robotics club",
		"  plain  ":                      "plain",
		"<script>alert(1)</script>hello": "hello",
		"Tom &amp; Jerry":                "Tom & Jerry",
	}
	for in, want := range tests {
		if got := SanitizeText(in); got != want {
			t.Errorf("SanitizeText(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUnique(t *testing.T) {
	got := Unique([]string{"b", "a", "b", "c", "a"})
	if diff := cmp.Diff([]string{"b", "a", "c"}, got); diff != "" {
		t.Errorf("Unique (-want +got):\n%s", diff)
	}
}

func TestTTLSet(t *testing.T) {
	s := newTTLSet()
	s.add("live", time.Now().Add(time.Minute))
	s.add("gone", time.Now().Add(-time.Second))

	if !s.has("live") || s.has("gone") {
		t.Error("expiry not honoured")
	}
	if !s.take("live") {
		t.Error("take missed a live key")
	}
	if s.take("live") {
		t.Error("key taken twice")
	}
}

func TestBlacklistAndStateWithoutRedis(t *testing.T) {
	useConfig(t)

	BlacklistToken("tok-a", time.Now().Add(time.Minute))
	BlacklistToken("tok-b", time.Now().Add(-time.Minute))
	if !IsTokenBlacklisted("tok-a") || IsTokenBlacklisted("tok-b") {
		t.Error("blacklist state wrong")
	}

	SaveState("state-1", time.Minute)
	if !ConsumeState("state-1") {
		t.Error("saved state not accepted")
	}
	if ConsumeState("state-1") || ConsumeState("") {
		t.Error("state accepted twice")
	}
}

func TestCacheWithoutRedis(t *testing.T) {
	useConfig(t)
	CacheSetJSON(CacheSiteStats, map[string]int{"posts": 1}, time.Minute)
	var got map[string]int
	if CacheGetJSON(CacheSiteStats, &got) {
		t.Errorf("cache hit without redis: %v", got)
	}
}

func TestCacheKey(t *testing.T) {
	if got := CacheKey(CacheUserPrefix, "5", ""); got != "cache:user:5:" {
		t.Errorf("CacheKey = %q", got)
	}
}
