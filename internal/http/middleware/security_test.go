package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func serveSecured(opt SecurityOptions, prep func(*http.Request), pre gin.HandlerFunc) http.Header {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if pre != nil {
		r.Use(pre)
	}
	r.Use(SecurityHeaders(opt))
	r.GET("/users/:username", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"success": true}) })

	req := httptest.NewRequest(http.MethodGet, "/users/ana_luanda", nil)
	if prep != nil {
		prep(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Header()
}

func TestSecurityHeaders_PublicProfileDefaults(t *testing.T) {
	h := serveSecured(SecurityOptions{}, nil, nil)

	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
	}
	for k, v := range want {
		if h.Get(k) != v {
			t.Fatalf("%s = %q; want %q", k, h.Get(k), v)
		}
	}
	for _, k := range []string{
		"Permissions-Policy", "X-Permitted-Cross-Domain-Policies",
		"Cache-Control", "Strict-Transport-Security", "Access-Control-Expose-Headers",
	} {
		if h.Get(k) != "" {
			t.Fatalf("%s should be unset, got %q", k, h.Get(k))
		}
	}
}

func TestSecurityHeaders_RequestIDExposure(t *testing.T) {
	cases := []struct {
		name     string
		existing string
		want     string
	}{
		{"fresh", "", "X-Request-ID"},
		{"appended", "ETag", "ETag, X-Request-ID"},
		{"already listed", "x-request-id, ETag", "x-request-id, ETag"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pre := func(c *gin.Context) {
				c.Header("X-Request-ID", "rid-kala")
				if tc.existing != "" {
					c.Header("Access-Control-Expose-Headers", tc.existing)
				}
				c.Next()
			}
			h := serveSecured(SecurityOptions{}, nil, pre)
			if got := h.Get("Access-Control-Expose-Headers"); got != tc.want {
				t.Fatalf("expose = %q; want %q", got, tc.want)
			}
		})
	}
}

func TestSecurityHeaders_StrictMode(t *testing.T) {
	opt := SecurityOptions{
		EnableHSTS:   true,
		HSTSMaxAge:   48 * time.Hour,
		NoStore:      true,
		EnablePolicy: true,
	}
	h := serveSecured(opt, func(r *http.Request) { r.TLS = &tls.ConnectionState{} }, nil)

	if h.Get("Permissions-Policy") == "" || h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("policy headers missing: %#v", h)
	}
	if h.Get("Cache-Control") != "no-store" || h.Get("Expires") != "0" {
		t.Fatalf("cache headers missing: %#v", h)
	}
	if got := h.Get("Strict-Transport-Security"); got != "max-age=172800; includeSubDomains; preload" {
		t.Fatalf("hsts = %q", got)
	}
}

func TestSecurityHeaders_HSTSOnlyOverHTTPS(t *testing.T) {
	opt := SecurityOptions{EnableHSTS: true}

	if got := serveSecured(opt, nil, nil).Get("Strict-Transport-Security"); got != "" {
		t.Fatalf("plain http got hsts %q", got)
	}
	proxied := serveSecured(opt, func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "HTTPS") }, nil)
	if got := proxied.Get("Strict-Transport-Security"); got != "max-age=15552000; includeSubDomains; preload" {
		t.Fatalf("default max-age hsts = %q", got)
	}
}

func TestNoStore_And_ExposeHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Header("X-Request-ID", "rid-1")
		c.Next()
	})
	r.Use(SecurityHeaders(SecurityOptions{ExposeHeaders: []string{"Idempotency-Replayed", "Retry-After"}}))
	private := r.Group("/messages", NoStore())
	private.GET("/unread/count", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/messages/unread/count", nil))
	if w.Header().Get("Cache-Control") != "no-store" || w.Header().Get("Pragma") != "no-cache" {
		t.Fatalf("private route must be no-store: %#v", w.Header())
	}
	if got := w.Header().Get("Access-Control-Expose-Headers"); got != "X-Request-ID, Idempotency-Replayed, Retry-After" {
		t.Fatalf("expose header = %q", got)
	}

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w2.Header().Get("Cache-Control") != "" {
		t.Fatalf("public route must stay cacheable: %#v", w2.Header())
	}
}

func TestAppendExposed_CaseInsensitiveDedup(t *testing.T) {
	h := http.Header{}
	appendExposed(h, "X-Request-ID")
	appendExposed(h, "x-request-id")
	appendExposed(h, "Retry-After")
	if got := h.Get("Access-Control-Expose-Headers"); got != "X-Request-ID, Retry-After" {
		t.Fatalf("got %q", got)
	}
}
