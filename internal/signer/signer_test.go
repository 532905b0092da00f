package signer

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/shashin/internal/models"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSignURL_Format(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s, err := NewHMACSigner("http://localhost:8080/", []byte("secret"), WithClock(fixedClock(now)))
	if err != nil {
		t.Fatal(err)
	}
	raw, err := s.SignURL(context.Background(), "photos", "2023/my dog.jpg", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if u.Host != "localhost:8080" {
		t.Errorf("host = %s", u.Host)
	}
	if u.Path != "/photos/photos/2023/my dog.jpg" {
		t.Errorf("path = %q", u.Path)
	}
	if !strings.Contains(raw, "my%20dog.jpg") {
		t.Errorf("key should be escaped: %s", raw)
	}
	if got := u.Query().Get(ParamExpires); got != "1700003600" {
		t.Errorf("expires = %s, want 1700003600", got)
	}
	if len(u.Query().Get(ParamSignature)) != 64 {
		t.Errorf("signature should be hex sha256: %s", u.Query().Get(ParamSignature))
	}
}

func TestVerify(t *testing.T) {
	now := time.Unix(1700000000, 0)
	clock := now
	s, _ := NewHMACSigner("http://x", []byte("secret"), WithClock(func() time.Time { return clock }))
	raw, err := s.SignURL(context.Background(), "photos", "dog.jpg", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	u, _ := url.Parse(raw)
	exp, sig := u.Query().Get(ParamExpires), u.Query().Get(ParamSignature)

	if err := s.Verify("photos", "dog.jpg", exp, sig); err != nil {
		t.Errorf("fresh url: %v", err)
	}
	if err := s.Verify("photos", "cat.jpg", exp, sig); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("other key: %v", err)
	}
	if err := s.Verify("photos", "dog.jpg", "1800000000", sig); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("extended expiry: %v", err)
	}
	if err := s.Verify("photos", "dog.jpg", exp, "zz"); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("garbage signature: %v", err)
	}

	other, _ := NewHMACSigner("http://x", []byte("other"), WithClock(fixedClock(now)))
	if err := other.Verify("photos", "dog.jpg", exp, sig); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("other secret: %v", err)
	}

	clock = now.Add(2 * time.Hour)
	if err := s.Verify("photos", "dog.jpg", exp, sig); !errors.Is(err, ErrExpired) {
		t.Errorf("expired url: %v", err)
	}
}

func TestSignURL_Errors(t *testing.T) {
	s, err := NewHMACSigner("http://x", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.SignURL(context.Background(), "photos", "../a.jpg", time.Hour); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("bad key: %v", err)
	}
	if _, err := s.SignURL(context.Background(), "photos", "a.jpg", 0); err == nil {
		t.Error("zero expiry should fail")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.SignURL(ctx, "photos", "a.jpg", time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled context: %v", err)
	}
}

func TestNewHMACSigner_RandomSecret(t *testing.T) {
	a, _ := NewHMACSigner("http://x", nil)
	b, _ := NewHMACSigner("http://x", nil)
	if a.sign("c", "k", 1) == b.sign("c", "k", 1) {
		t.Error("random secrets should differ")
	}
}
