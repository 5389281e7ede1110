package core

import (
	nethttp "net/http"
	"path"
	"strings"

	"github.com/searchktools/hive/core/router"
)

// directoryHandler serves one mount in one of three modes: an index file
// for directory requests, a generated listing, or plain files only.
type directoryHandler struct {
	mount   router.Directory
	fs      nethttp.FileSystem
	listing nethttp.Handler
}

func newDirectoryHandler(d router.Directory) *directoryHandler {
	fs := nethttp.Dir(d.Root)
	return &directoryHandler{
		mount:   d,
		fs:      fs,
		listing: nethttp.StripPrefix(strings.TrimSuffix(d.Route, "/"), nethttp.FileServer(fs)),
	}
}

// match reports whether urlPath falls under the mount and returns the path
// relative to its root
func (h *directoryHandler) match(urlPath string) (string, bool) {
	prefix := strings.TrimSuffix(h.mount.Route, "/")
	if urlPath != prefix && !strings.HasPrefix(urlPath, prefix+"/") {
		return "", false
	}
	return path.Clean("/" + strings.TrimPrefix(urlPath, prefix)), true
}

func (h *directoryHandler) ServeHTTP(w nethttp.ResponseWriter, r *nethttp.Request) {
	rel, _ := h.match(r.URL.Path)

	f, err := h.fs.Open(rel)
	if err != nil {
		nethttp.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		nethttp.NotFound(w, r)
		return
	}

	if !info.IsDir() {
		nethttp.ServeContent(w, r, info.Name(), info.ModTime(), f)
		return
	}

	switch {
	case h.mount.IndexFile != "":
		index, err := h.fs.Open(path.Join(rel, h.mount.IndexFile))
		if err != nil {
			nethttp.NotFound(w, r)
			return
		}
		defer index.Close()
		stat, err := index.Stat()
		if err != nil || stat.IsDir() {
			nethttp.NotFound(w, r)
			return
		}
		nethttp.ServeContent(w, r, stat.Name(), stat.ModTime(), index)
	case h.mount.ShowListing:
		h.listing.ServeHTTP(w, r)
	default:
		nethttp.NotFound(w, r)
	}
}

// serveDirectory serves r from the first matching mount
func (e *Engine) serveDirectory(w nethttp.ResponseWriter, r *nethttp.Request) bool {
	if r.Method != nethttp.MethodGet && r.Method != nethttp.MethodHead {
		return false
	}

	for _, h := range e.dirs {
		if _, ok := h.match(r.URL.Path); ok {
			e.headerMu.RLock()
			for k, v := range e.responseHeaders {
				w.Header().Set(k, v)
			}
			e.headerMu.RUnlock()
			h.ServeHTTP(w, r)
			return true
		}
	}
	return false
}
