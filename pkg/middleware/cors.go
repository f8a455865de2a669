package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// SessionHeader identifies the browser session whose cart and wishlist a
// request operates on. The session cookie is the fallback.
const SessionHeader = "X-Session-ID"

var (
	defaultCORSMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	defaultCORSHeaders = []string{"Accept", "Content-Type", CorrelationHeader, SessionHeader}
	defaultCORSExposed = []string{CorrelationHeader, SessionHeader, "Link", "Retry-After"}
)

// CORSConfig holds configuration for the CORS middleware.
type CORSConfig struct {
	// AllowedOrigins lists storefront origins. An entry may wildcard one
	// leading subdomain label ("https://*.loladrip.com") to admit preview
	// deploys. "*" alone allows any origin.
	AllowedOrigins []string

	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string

	// MaxAge is the preflight cache lifetime in seconds. Defaults to 3600.
	MaxAge int

	// AllowCredentials lets the browser send the session cookie cross-origin.
	AllowCredentials bool
}

// DefaultCORSConfig returns the development configuration.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: defaultCORSMethods,
		AllowedHeaders: defaultCORSHeaders,
		ExposedHeaders: defaultCORSExposed,
		MaxAge:         3600,
	}
}

// CORS returns middleware that handles Cross-Origin Resource Sharing headers
// and answers preflight requests.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	if len(cfg.AllowedMethods) == 0 {
		cfg.AllowedMethods = defaultCORSMethods
	}
	if len(cfg.AllowedHeaders) == 0 {
		cfg.AllowedHeaders = defaultCORSHeaders
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 3600
	}

	if len(cfg.ExposedHeaders) == 0 {
		cfg.ExposedHeaders = defaultCORSExposed
	}

	wildcard := false
	var allowed originSet
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			wildcard = true
			continue
		}
		allowed.add(o)
	}
	// Browsers reject credentialed responses with a wildcard origin, so echo
	// the origin back instead.
	echoAny := wildcard && cfg.AllowCredentials

	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	exposed := strings.Join(cfg.ExposedHeaders, ", ")
	maxAge := strconv.Itoa(cfg.MaxAge)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()

			switch {
			case echoAny && origin != "":
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			case wildcard:
				h.Set("Access-Control-Allow-Origin", "*")
			case origin != "":
				if allowed.match(origin) {
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}

			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			if exposed != "" {
				h.Set("Access-Control-Expose-Headers", exposed)
			}
			h.Set("Access-Control-Max-Age", maxAge)
			if cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// originSet matches Origin headers against exact origins and
// "scheme://*.domain" patterns.
type originSet struct {
	exact    map[string]struct{}
	suffixes []originSuffix
}

type originSuffix struct {
	scheme string // "https://"
	domain string // ".loladrip.com"
}

func (s *originSet) add(origin string) {
	origin = strings.ToLower(strings.TrimRight(origin, "/"))
	if scheme, rest, ok := strings.Cut(origin, "://*."); ok {
		s.suffixes = append(s.suffixes, originSuffix{scheme: scheme + "://", domain: "." + rest})
		return
	}
	if s.exact == nil {
		s.exact = make(map[string]struct{})
	}
	s.exact[origin] = struct{}{}
}

func (s *originSet) match(origin string) bool {
	origin = strings.ToLower(origin)
	if _, ok := s.exact[origin]; ok {
		return true
	}
	for _, suf := range s.suffixes {
		host, ok := strings.CutPrefix(origin, suf.scheme)
		if !ok || !strings.HasSuffix(host, suf.domain) {
			continue
		}
		label := strings.TrimSuffix(host, suf.domain)
		if label != "" && !strings.ContainsAny(label, "./:") {
			return true
		}
	}
	return false
}
