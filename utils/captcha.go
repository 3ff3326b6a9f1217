package utils

import (
	"sync"
	"time"

	"github.com/mojocn/base64Captcha"
)

const captchaTTL = 10 * time.Minute

var (
	captchaOnce  sync.Once
	captchaStore base64Captcha.Store
)

// activeCaptchaStore keeps answers in Redis when configured so any instance
// can verify them, and in process memory otherwise.
func activeCaptchaStore() base64Captcha.Store {
	captchaOnce.Do(func() {
		if GetRedis() != nil {
			captchaStore = redisCaptchaStore{}
			return
		}
		captchaStore = base64Captcha.NewMemoryStore(base64Captcha.GCLimitNumber, captchaTTL)
	})
	return captchaStore
}

// GenerateCaptcha creates a digit captcha and returns its id and a data URI image.
func GenerateCaptcha() (string, string, error) {
	driver := base64Captcha.NewDriverDigit(40, 120, 5, 0.7, 80)
	c := base64Captcha.NewCaptcha(driver, activeCaptchaStore())
	id, b64, _, err := c.Generate()
	return id, b64, err
}

// VerifyCaptcha checks the answer and consumes the captcha either way.
func VerifyCaptcha(id, answer string) bool {
	if id == "" || answer == "" {
		return false
	}
	return activeCaptchaStore().Verify(id, answer, true)
}

type redisCaptchaStore struct{}

func (redisCaptchaStore) key(id string) string {
	return "signup:captcha:" + id
}

func (s redisCaptchaStore) Set(id string, value string) error {
	ctx, cancel := redisCtx()
	defer cancel()
	return GetRedis().Set(ctx, s.key(id), value, captchaTTL).Err()
}

func (s redisCaptchaStore) Get(id string, clear bool) string {
	ctx, cancel := redisCtx()
	defer cancel()
	var (
		v   string
		err error
	)
	if clear {
		v, err = GetRedis().GetDel(ctx, s.key(id)).Result()
	} else {
		v, err = GetRedis().Get(ctx, s.key(id)).Result()
	}
	if err != nil {
		return ""
	}
	return v
}

func (s redisCaptchaStore) Verify(id, answer string, clear bool) bool {
	v := s.Get(id, clear)
	return v != "" && v == answer
}
