package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	apierrors "github.com/bigkaa/flashshare/internal/api/errors"
)

// staleAfter — через сколько неактивный клиент удаляется из таблицы.
const staleAfter = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter — token bucket на каждый IP-адрес клиента.
type IPRateLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

// NewIPRateLimiter создаёт ограничитель: perSecond запросов в секунду
// с запасом burst. perSecond <= 0 отключает ограничение.
func NewIPRateLimiter(perSecond float64, burst int) *IPRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &IPRateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
}

// Allow сообщает, можно ли обработать запрос с адреса ip.
func (l *IPRateLimiter) Allow(ip string) bool {
	if l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > staleAfter {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > staleAfter {
				delete(l.visitors, k)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Middleware отклоняет запросы сверх лимита ответом 429.
func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			apierrors.RateLimited(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP — адрес клиента без порта. X-Forwarded-For учитывается
// через chi middleware.RealIP, который переписывает RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
