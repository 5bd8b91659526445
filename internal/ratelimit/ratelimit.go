package ratelimit

import (
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Limiter is a fixed-window per-IP rate limiter on Redis INCR. When Redis is
// unreachable it fails open: the role views keep polling through an outage.
type Limiter struct {
	rdb    *redis.Client
	logger *logrus.Logger
}

func New(rdb *redis.Client, logger *logrus.Logger) *Limiter {
	return &Limiter{rdb: rdb, logger: logger}
}

// Allow reports whether the client identified by ip may perform the named
// action again within the current minute window.
func (l *Limiter) Allow(r *http.Request, name string, perMinute int) bool {
	if l == nil || l.rdb == nil {
		return true
	}

	window := time.Now().Unix() / 60
	key := "rl:" + name + ":" + clientIP(r) + ":" + time.Unix(window*60, 0).Format("1504")

	count, err := l.rdb.Incr(r.Context(), key).Result()
	if err != nil {
		l.logger.WithError(err).Warn("Rate limiter unavailable, allowing request")
		return true
	}
	if count == 1 {
		l.rdb.Expire(r.Context(), key, time.Minute)
	}
	return count <= int64(perMinute)
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
