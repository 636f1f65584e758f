package rcache

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"
)

const defaultDebugKeyLimit = 1000

// DebugResponse represents the JSON response structure for debug endpoints
type DebugResponse struct {
	Stats *DebugStats `json:"stats"`
	Keys  []DebugKey  `json:"keys,omitempty"`
}

// DebugStats represents cache statistics in the debug response
type DebugStats struct {
	Hits          int64        `json:"hits"`
	Misses        int64        `json:"misses"`
	Writes        int64        `json:"writes"`
	Invalidations int64        `json:"invalidations"`
	Errors        int64        `json:"errors"`
	InFlight      int64        `json:"inFlight"`
	HitRate       float64      `json:"hitRate"`
	Total         int64        `json:"total"`
	Config        *DebugConfig `json:"config"`
}

// DebugConfig represents cache configuration in the debug response
type DebugConfig struct {
	Store            string `json:"store"`
	Serializer       string `json:"serializer"`
	KeyHashing       string `json:"keyHashing"`
	DefaultTTL       string `json:"defaultTTL"`
	OperationTimeout string `json:"operationTimeout"`
}

// DebugKey represents a stored key with its remaining lifetime
type DebugKey struct {
	Key string `json:"key"`
	TTL string `json:"ttl,omitempty"`
}

type ttlReporter interface {
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// DebugHandler returns an HTTP handler that provides cache debug information
// The handler supports the following endpoints:
//   - GET /stats - Returns only cache statistics (no keys)
//   - GET /keys?match=<glob>&limit=<n> - Returns statistics and matching keys
//   - GET / - Same as /keys
//
// Listing keys requires a store that implements Scanner.
func (c *Cache) DebugHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var response DebugResponse
		response.Stats = c.debugStats()

		if r.URL.Path == "/" || r.URL.Path == "/keys" {
			keys, status, err := c.debugKeys(r)
			if err != nil {
				http.Error(w, err.Error(), status)
				return
			}
			response.Keys = keys
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, "Failed to encode JSON response", http.StatusInternalServerError)
		}
	})
}

func (c *Cache) debugStats() *DebugStats {
	return &DebugStats{
		Hits:          c.stats.Hits(),
		Misses:        c.stats.Misses(),
		Writes:        c.stats.Writes(),
		Invalidations: c.stats.Invalidations(),
		Errors:        c.stats.Errors(),
		InFlight:      c.stats.InFlight(),
		HitRate:       c.stats.HitRate(),
		Total:         c.stats.Total(),
		Config: &DebugConfig{
			Store:            storeName(c.store),
			Serializer:       c.serializer.Name(),
			KeyHashing:       c.config.KeyHashing.String(),
			DefaultTTL:       c.config.DefaultTTL.String(),
			OperationTimeout: c.config.OperationTimeout.String(),
		},
	}
}

func (c *Cache) debugKeys(r *http.Request) ([]DebugKey, int, error) {
	scanner, ok := c.store.(Scanner)
	if !ok {
		return nil, http.StatusNotImplemented, errNoScanner
	}

	limit := defaultDebugKeyLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, http.StatusBadRequest, errBadLimit
		}
		limit = n
	}

	ctx := r.Context()
	keys, err := scanner.Keys(ctx, r.URL.Query().Get("match"))
	if err != nil {
		return nil, http.StatusBadGateway, err
	}
	sort.Strings(keys)
	if len(keys) > limit {
		keys = keys[:limit]
	}

	ttls, _ := c.store.(ttlReporter)
	out := make([]DebugKey, 0, len(keys))
	for _, key := range keys {
		dk := DebugKey{Key: key}
		if ttls != nil {
			if ttl, err := ttls.TTL(ctx, key); err == nil && ttl > 0 {
				dk.TTL = formatDuration(ttl)
			}
		}
		out = append(out, dk)
	}

	return out, http.StatusOK, nil
}

// NewDebugServer creates a new HTTP server with cache debug endpoints
// The server serves on the following routes:
//   - GET /stats - Cache statistics only
//   - GET /keys - Cache statistics and keys
//   - GET / - Cache statistics and keys (default)
func (c *Cache) NewDebugServer(addr string) *http.Server {
	mux := http.NewServeMux()
	handler := c.DebugHandler()

	mux.Handle("/stats", handler)
	mux.Handle("/keys", handler)
	mux.Handle("/", handler)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

type debugError string

func (e debugError) Error() string { return string(e) }

const (
	errNoScanner debugError = "store cannot list keys"
	errBadLimit  debugError = "limit must be a positive integer"
)

func storeName(s Store) string {
	return fmt.Sprintf("%T", s)
}

// formatDuration formats a duration in a human-readable format
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Truncate(time.Millisecond).String()
	}
	if d < time.Minute {
		return d.Truncate(time.Second).String()
	}
	if d < time.Hour {
		return d.Truncate(time.Minute).String()
	}
	return d.Truncate(time.Hour).String()
}
