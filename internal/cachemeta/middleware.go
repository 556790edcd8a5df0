package cachemeta

import (
	"net/http"
	"strings"
)

// Writer is a ResponseWriter carrying cache metadata.
type Writer struct {
	http.ResponseWriter
	meta        *Metadata
	reg         *Registry
	req         *http.Request
	expose      bool
	wroteHeader bool
}

var _ Cacheable = (*Writer)(nil)

func NewWriter(w http.ResponseWriter, r *http.Request, reg *Registry, expose bool) *Writer {
	return &Writer{
		ResponseWriter: w,
		meta:           NewMetadata(),
		reg:            reg,
		req:            r,
		expose:         expose,
	}
}

func (w *Writer) CacheMetadata() *Metadata {
	return w.meta
}

func (w *Writer) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *Writer) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true

	if w.expose {
		h := w.Header()
		contexts := w.meta.Contexts()
		if len(contexts) > 0 {
			h.Set(HeaderContexts, strings.Join(contexts, " "))
			h.Set(HeaderKey, w.reg.Key(w.req, contexts))
		}
		if tags := w.meta.Tags(); len(tags) > 0 {
			h.Set(HeaderTags, strings.Join(tags, " "))
		}
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *Writer) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Middleware gives every response a metadata-carrying writer. When expose
// is set the collected metadata is emitted as response headers.
func Middleware(reg *Registry, expose bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(NewWriter(w, r, reg, expose), r)
		})
	}
}
