package utils

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campusfeed/campusfeed/config"
)

// Sign-up abuse checks keyed by client IP. Without Redis every check passes.

func signupKey(kind, ip string) string {
	return "signup:" + kind + ":" + ip
}

// SignupCooldownTry enforces a short cooldown between sign-up attempts per IP.
func SignupCooldownTry(ip string) bool {
	sec := config.Get().RegisterAttemptCooldownSec
	rc := GetRedis()
	if sec <= 0 || rc == nil {
		return true
	}
	ctx, cancel := redisCtx()
	defer cancel()
	ok, err := rc.SetNX(ctx, signupKey("cooldown", ip), "1", time.Duration(sec)*time.Second).Result()
	if err != nil {
		return true // fail-open
	}
	return ok
}

func signupDayKey(ip string) string {
	return signupKey("day", ip) + ":" + time.Now().UTC().Format("20060102")
}

// SignupDailyLimitCheck allows up to RegisterMaxPerIPPerDay accounts per IP per day.
func SignupDailyLimitCheck(ip string) bool {
	limit := config.Get().RegisterMaxPerIPPerDay
	rc := GetRedis()
	if limit <= 0 || rc == nil {
		return true
	}
	ctx, cancel := redisCtx()
	defer cancel()
	n, err := rc.Get(ctx, signupDayKey(ip)).Int()
	if errors.Is(err, redis.Nil) {
		return true
	}
	if err != nil {
		return true
	}
	return n < limit
}

// SignupDailyIncrement counts a successful sign-up for today.
func SignupDailyIncrement(ip string) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := redisCtx()
	defer cancel()
	key := signupDayKey(ip)
	if err := rc.Incr(ctx, key).Err(); err == nil {
		_ = rc.Expire(ctx, key, 24*time.Hour).Err()
	}
}
