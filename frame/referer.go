package frame

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-embed-auth/internal/cachemeta"
)

// CacheContextReferer is the cache-variance axis keyed on the referer host.
const CacheContextReferer = "referer"

// RefererHost returns the lower-cased host of the Referer header without its
// port, or "" when the header is absent or has no host.
func RefererHost(r *http.Request) string {
	ref := r.Header.Get("Referer")
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// RegisterCacheContext adds the referer context to reg.
func RegisterCacheContext(reg *cachemeta.Registry) {
	reg.Register(CacheContextReferer, RefererHost)
}
