package source

import (
	"context"
	"strings"
	"sync"
	"time"
)

const (
	DefaultHTTPTimeout = 60 * time.Second
	DefaultHTTPMaxSize = 100 << 20 // 100 MB
)

// Reads input tables from below a base URL, optionally caching
// responses in memory.
type HTTP struct {
	BaseURL string
	Headers map[string]string
	Options GetOptions

	TimeNow func() time.Time

	mutex sync.Mutex
	cache map[string]httpCacheEntry
}

type httpCacheEntry struct {
	data       []byte
	expiration time.Time
}

func NewHTTP(baseURL string) *HTTP {
	return &HTTP{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Headers: map[string]string{},
		Options: GetOptions{
			Timeout:  DefaultHTTPTimeout,
			MaxSize:  DefaultHTTPMaxSize,
			Cache:    true,
			CacheTTL: time.Hour,
		},
		TimeNow: time.Now,
		cache:   map[string]httpCacheEntry{},
	}
}

func (h *HTTP) Get(ctx context.Context, name string) ([]byte, error) {
	url := h.BaseURL + "/" + strings.TrimPrefix(name, "/")

	if h.Options.Cache {
		h.mutex.Lock()
		defer h.mutex.Unlock()

		if entry, ok := h.cache[url]; ok {
			if entry.expiration.After(h.TimeNow()) {
				return entry.data, nil
			}
		}
	}

	body, err := HTTPGet(ctx, url, h.Headers, h.Options)
	if err != nil {
		return nil, err
	}

	if h.Options.Cache {
		h.cache[url] = httpCacheEntry{
			data:       body,
			expiration: h.TimeNow().Add(h.Options.CacheTTL),
		}
	}

	return body, nil
}
