package api

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/alaska-icy-giant/simbridge/internal/api/apiutil"
)

// ServiceHealth is the health status of one dependency checked by the deep
// health endpoint.
type ServiceHealth struct {
	Status  string      `json:"status"`
	Latency string      `json:"latency,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// DeepHealthResponse is the response body for GET /health/deep.
type DeepHealthResponse struct {
	Status    string                   `json:"status"`
	Version   string                   `json:"version"`
	Timestamp string                   `json:"timestamp"`
	Services  map[string]ServiceHealth `json:"services"`
	System    SystemInfo               `json:"system"`
}

// SystemInfo is runtime diagnostic information reported with a deep health
// check.
type SystemInfo struct {
	GoVersion    string  `json:"go_version"`
	NumGoroutine int     `json:"num_goroutine"`
	NumCPU       int     `json:"num_cpu"`
	MemAllocMB   float64 `json:"mem_alloc_mb"`
	MemSysMB     float64 `json:"mem_sys_mb"`
	MemGCCycles  uint32  `json:"mem_gc_cycles"`
}

// handleHealth handles GET /health: a cheap liveness probe with no
// dependency checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	apiutil.WriteJSONRaw(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

// handleHealthDeep handles GET /health/deep: checks the database connection
// and reports connection pool stats alongside runtime stats. The session
// registry and the rate limiter's cache are not reported.
func (s *Server) handleHealthDeep(w http.ResponseWriter, r *http.Request) {
	services := make(map[string]ServiceHealth)
	overallStatus := "ok"

	const checkTimeout = 5 * time.Second

	dbHealth := s.checkServiceHealth("database", checkTimeout, func(ctx context.Context) error {
		return s.Store.HealthCheck(ctx)
	})
	services["database"] = dbHealth
	if dbHealth.Status == "unhealthy" {
		overallStatus = "unhealthy"
	}

	if stat := s.Store.Pool().Stat(); stat != nil {
		dbSvc := services["database"]
		dbSvc.Details = map[string]interface{}{
			"total_conns":    stat.TotalConns(),
			"idle_conns":     stat.IdleConns(),
			"acquired_conns": stat.AcquiredConns(),
			"max_conns":      stat.MaxConns(),
		}
		services["database"] = dbSvc
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	response := DeepHealthResponse{
		Status:    overallStatus,
		Version:   s.Version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
		System: SystemInfo{
			GoVersion:    runtime.Version(),
			NumGoroutine: runtime.NumGoroutine(),
			NumCPU:       runtime.NumCPU(),
			MemAllocMB:   float64(memStats.Alloc) / 1024 / 1024,
			MemSysMB:     float64(memStats.Sys) / 1024 / 1024,
			MemGCCycles:  memStats.NumGC,
		},
	}

	httpStatus := http.StatusOK
	if overallStatus != "ok" {
		httpStatus = http.StatusServiceUnavailable
	}

	apiutil.WriteJSONRaw(w, httpStatus, response)
}

// checkServiceHealth runs check with a timeout and reports its outcome and
// latency.
func (s *Server) checkServiceHealth(name string, timeout time.Duration, check func(context.Context) error) ServiceHealth {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	err := check(ctx)
	latency := time.Since(start)

	if err != nil {
		return ServiceHealth{
			Status:  "unhealthy",
			Latency: latency.String(),
			Error:   fmt.Sprintf("%s health check failed: %v", name, err),
		}
	}
	return ServiceHealth{Status: "healthy", Latency: latency.String()}
}
