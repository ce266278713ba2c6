package util

import (
	"errors"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer([]byte("secret"), time.Hour)

	token, err := issuer.Issue(42, "alice")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	claims, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if claims.UserID != 42 || claims.Username != "alice" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestTokenIssuer_Rejects(t *testing.T) {
	issuer := NewTokenIssuer([]byte("secret"), time.Hour)
	token, _ := issuer.Issue(42, "alice")

	other := NewTokenIssuer([]byte("other"), time.Hour)
	if _, err := other.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}

	expired := NewTokenIssuer([]byte("secret"), time.Hour)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := expired.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}

	if _, err := issuer.Parse("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}

	if _, err := NewTokenIssuer(nil, time.Hour).Issue(1, "x"); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
}

func TestReverser_URL(t *testing.T) {
	r := NewReverser("http://example.com/")
	r.Name("image-link", "/api/images/link/:alias/")

	got, err := r.URL("image-link", map[string]string{"alias": "0b6f"})
	if err != nil {
		t.Fatalf("URL error: %v", err)
	}
	if got != "http://example.com/api/images/link/0b6f/" {
		t.Fatalf("unexpected url %s", got)
	}

	if _, err := r.URL("image-link", nil); err == nil {
		t.Fatal("expected missing parameter error")
	}
	if _, err := r.URL("nope", nil); !errors.Is(err, ErrUnknownRoute) {
		t.Fatalf("expected ErrUnknownRoute, got %v", err)
	}
}

func TestReverser_BindUsesRegisteredPath(t *testing.T) {
	app := fiber.New()
	api := app.Group("/api/images")
	api.Get("/link/:alias/", func(c *fiber.Ctx) error { return nil }).Name("image-link")

	r := NewReverser("http://example.com")
	if err := r.Bind(app, "image-link"); err != nil {
		t.Fatalf("Bind error: %v", err)
	}
	got, err := r.URL("image-link", map[string]string{"alias": "abc"})
	if err != nil {
		t.Fatalf("URL error: %v", err)
	}
	if got != "http://example.com/api/images/link/abc/" {
		t.Fatalf("unexpected url %s", got)
	}

	if err := r.Bind(app, "missing"); !errors.Is(err, ErrUnknownRoute) {
		t.Fatalf("expected ErrUnknownRoute, got %v", err)
	}
}
