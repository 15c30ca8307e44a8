// Package auth validates API keys against the api_keys table and enforces
// per-key rate limits.
//
// Keys have the form "<prefix>.<secret>". Only a bcrypt hash of the full key
// is stored; the prefix is the lookup handle and appears in logs.
package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/agrotrace/agrocheck/internal/db"
	"github.com/agrotrace/agrocheck/internal/model"
)

// Key is a validated API key.
type Key struct {
	Prefix      string
	Permissions []string
	RateLimit   int // requests per minute
}

// Can reports whether the key grants the given permission. The "admin"
// permission implies everything.
func (k *Key) Can(perm string) bool {
	for _, p := range k.Permissions {
		if p == perm || p == "admin" {
			return true
		}
	}
	return false
}

// Authenticator validates keys and tracks per-key token buckets.
type Authenticator struct {
	pool db.Pool

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates an Authenticator backed by the shared pool.
func New(pool db.Pool) *Authenticator {
	return &Authenticator{
		pool:     pool,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Authenticate validates a raw API key and charges one token from its rate
// bucket. Returns model sentinel errors for the HTTP layer to map.
func (a *Authenticator) Authenticate(ctx context.Context, rawKey string) (*Key, error) {
	rawKey = strings.TrimSpace(rawKey)
	if rawKey == "" {
		return nil, model.ErrMissingAPIKey
	}

	prefix, _, ok := strings.Cut(rawKey, ".")
	if !ok || prefix == "" {
		return nil, model.ErrInvalidAPIKey
	}

	var (
		hash        string
		permissions []string
		rateLimit   int
		active      bool
	)
	row := a.pool.QueryRow(ctx, `
		SELECT key_hash, permissions, rate_limit, active
		FROM api_keys
		WHERE prefix = $1`,
		prefix,
	)
	if err := row.Scan(&hash, &permissions, &rateLimit, &active); err != nil {
		// Unknown prefix and database failure both read as an invalid key;
		// the distinction only matters in logs.
		zap.L().Debug("api key lookup failed",
			zap.String("prefix", prefix),
			zap.Error(err),
		)
		return nil, model.ErrInvalidAPIKey
	}
	if !active {
		return nil, model.ErrInvalidAPIKey
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(rawKey)); err != nil {
		return nil, model.ErrInvalidAPIKey
	}

	if !a.allow(prefix, rateLimit) {
		return nil, model.ErrRateLimited
	}

	return &Key{
		Prefix:      prefix,
		Permissions: permissions,
		RateLimit:   rateLimit,
	}, nil
}

// allow charges one token from the key's bucket, creating it on first use.
// Buckets refill at rate_limit requests per minute with a burst of the same
// size.
func (a *Authenticator) allow(prefix string, perMinute int) bool {
	if perMinute <= 0 {
		return true
	}

	a.mu.Lock()
	lim, ok := a.limiters[prefix]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)
		a.limiters[prefix] = lim
	}
	a.mu.Unlock()

	return lim.Allow()
}

// HashKey returns the bcrypt hash for a raw key, used when provisioning keys.
func HashKey(rawKey string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.DefaultCost)
	if err != nil {
		return "", eris.Wrap(err, "auth: hash key")
	}
	return string(hash), nil
}
