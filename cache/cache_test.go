package cache

import (
	"testing"
	"time"

	"github.com/use-agent/leadscout/models"
)

func TestKey(t *testing.T) {
	tests := []struct{ in, want string }{
		{"HTTPS://Acme.IO/About/#team", "https://acme.io/About"},
		{"https://acme.io/", "https://acme.io"},
		{"https://acme.io/a?b=1", "https://acme.io/a?b=1"},
	}
	for _, tt := range tests {
		if got := Key(tt.in); got != tt.want {
			t.Errorf("Key(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCache_GetSetExpiry(t *testing.T) {
	c := New(10, time.Hour)
	defer c.Stop()
	now := time.Unix(0, 0)
	c.now = func() time.Time { return now }

	c.Set("https://acme.io/", &models.PageRecord{URL: "https://acme.io/", Title: "Acme"})

	got, ok := c.Get("https://ACME.io")
	if !ok || got.Title != "Acme" {
		t.Fatalf("Get = %+v, %v", got, ok)
	}
	got.Title = "mutated"
	if again, _ := c.Get("https://acme.io"); again.Title != "Acme" {
		t.Error("Get must return a copy")
	}

	now = now.Add(2 * time.Hour)
	if _, ok := c.Get("https://acme.io"); ok {
		t.Error("expired entry returned")
	}
	c.evictExpired()
	if c.Len() != 0 {
		t.Errorf("Len after eviction = %d", c.Len())
	}
}

func TestCache_Capacity(t *testing.T) {
	c := New(2, time.Hour)
	defer c.Stop()
	for _, u := range []string{"https://a.io", "https://b.io", "https://c.io"} {
		c.Set(u, &models.PageRecord{URL: u})
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestCache_NilIsNoop(t *testing.T) {
	var c *Cache
	c.Set("https://a.io", &models.PageRecord{})
	if _, ok := c.Get("https://a.io"); ok {
		t.Error("nil cache returned a hit")
	}
	if New(0, time.Hour) != nil {
		t.Error("New(0) should disable the cache")
	}
}

func TestCache_CopiesShareNoSlices(t *testing.T) {
	c := New(10, time.Hour)
	defer c.Stop()

	links := make([]string, 1, 4)
	links[0] = "https://x.com/acme"
	orig := &models.PageRecord{
		URL:            "https://acme.io",
		SocialLinks:    links,
		PlatformFields: map[string]string{"companyName": "Acme"},
	}
	c.Set(orig.URL, orig)
	orig.PlatformFields["companyName"] = "changed"
	_ = append(orig.SocialLinks, "https://stored.example")

	a, _ := c.Get(orig.URL)
	b, _ := c.Get(orig.URL)
	a.SocialLinks = append(a.SocialLinks, "https://a.example")
	b.SocialLinks = append(b.SocialLinks, "https://b.example")
	a.PlatformFields["companyName"] = "a"

	if a.SocialLinks[1] != "https://a.example" || b.SocialLinks[1] != "https://b.example" {
		t.Errorf("copies share backing arrays: a=%v b=%v", a.SocialLinks, b.SocialLinks)
	}
	again, _ := c.Get(orig.URL)
	if len(again.SocialLinks) != 1 || again.PlatformFields["companyName"] != "Acme" {
		t.Errorf("stored record changed: %+v", again)
	}
}
