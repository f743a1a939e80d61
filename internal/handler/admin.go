package handler

import (
	"context"
	"log"
	"net/http"
	"runtime"
	"time"

	"productcatalog-api/pkg/apierror"
	"productcatalog-api/pkg/response"
)

// CacheAdmin exposes list cache maintenance and store statistics.
type CacheAdmin interface {
	InvalidateCache(ctx context.Context) (string, error)
	ResetCache(ctx context.Context) error
	Stats(ctx context.Context) (map[string]interface{}, error)
}

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	admin     CacheAdmin
	dbType    string // sqlite, postgres, mysql or mongodb
	cacheType string // redis or memory
	startTime time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(admin CacheAdmin, dbType, cacheType string) *AdminHandler {
	return &AdminHandler{
		admin:     admin,
		dbType:    dbType,
		cacheType: cacheType,
		startTime: time.Now(),
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]interface{})

	// System info
	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["db_type"] = h.dbType
	stats["cache_type"] = h.cacheType

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	catalog, err := h.admin.Stats(r.Context())
	if err == nil {
		catalog["status"] = "connected"
		stats["catalog"] = catalog
	} else {
		stats["catalog"] = map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
	}

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

// InvalidateCache handles POST /api/v1/admin/cache/invalidate
func (h *AdminHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	version, err := h.admin.InvalidateCache(r.Context())
	if err != nil {
		log.Printf("[AdminHandler] Cache invalidation failed: %v", err)
		response.Error(w, apierror.ServiceUnavailable("cache store unavailable"))
		return
	}

	response.OK(w, map[string]string{
		"status":  "invalidated",
		"version": version,
	})
}

// ResetCache handles DELETE /api/v1/admin/cache/version
func (h *AdminHandler) ResetCache(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.ResetCache(r.Context()); err != nil {
		log.Printf("[AdminHandler] Cache reset failed: %v", err)
		response.Error(w, apierror.ServiceUnavailable("cache store unavailable"))
		return
	}

	response.NoContent(w)
}
