// Package signer issues and verifies time-limited photo URLs.
package signer

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/shashin/internal/objectid"
)

// Query parameters of a signed URL.
const (
	ParamExpires   = "expires"
	ParamSignature = "signature"
)

var (
	ErrExpired          = errors.New("signed url expired")
	ErrInvalidSignature = errors.New("invalid url signature")
)

// URLSigner produces a time-limited URL for an object.
type URLSigner interface {
	SignURL(ctx context.Context, container, key string, expiry time.Duration) (string, error)
}

// HMACSigner signs photo URLs with HMAC-SHA256.
type HMACSigner struct {
	baseURL string
	secret  []byte
	now     func() time.Time
}

// Option configures an HMACSigner.
type Option func(*HMACSigner)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *HMACSigner) {
		s.now = now
	}
}

// NewHMACSigner returns a signer for URLs under baseURL. An empty secret
// gets a random one, so URLs do not survive a restart.
func NewHMACSigner(baseURL string, secret []byte, opts ...Option) (*HMACSigner, error) {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate signing secret: %w", err)
		}
	}
	s := &HMACSigner{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SignURL returns <base>/photos/<container>/<key>?expires=<unix>&signature=<hex>.
func (s *HMACSigner) SignURL(ctx context.Context, container, key string, expiry time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := objectid.Validate(container, key); err != nil {
		return "", err
	}
	if expiry <= 0 {
		return "", fmt.Errorf("expiry must be positive, got %s", expiry)
	}
	expires := s.now().Add(expiry).Unix()
	q := url.Values{}
	q.Set(ParamExpires, strconv.FormatInt(expires, 10))
	q.Set(ParamSignature, s.sign(container, key, expires))
	return s.baseURL + "/photos/" + url.PathEscape(container) + "/" + escapeKey(key) + "?" + q.Encode(), nil
}

// Verify checks the expires and signature parameters for container/key.
func (s *HMACSigner) Verify(container, key, expires, signature string) error {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}
	want, _ := hex.DecodeString(s.sign(container, key, exp))
	if !hmac.Equal(got, want) {
		return ErrInvalidSignature
	}
	if s.now().Unix() > exp {
		return ErrExpired
	}
	return nil
}

func (s *HMACSigner) sign(container, key string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(container + "/" + key + "\n" + strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// escapeKey escapes each path segment and keeps the separators.
func escapeKey(key string) string {
	segs := strings.Split(key, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return strings.Join(segs, "/")
}
