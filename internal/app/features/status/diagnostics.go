// internal/app/features/status/diagnostics.go
package status

import (
	"context"
	"net/http"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/dalemusser/fleetdesk/internal/app/system/respond"
	"github.com/dalemusser/fleetdesk/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

type databaseInfo struct {
	Name          string           `json:"name"`
	Connected     bool             `json:"connected"`
	PingMS        float64          `json:"pingMs"`
	ServerVersion string           `json:"serverVersion,omitempty"`
	Collections   int64            `json:"collections"`
	Objects       int64            `json:"objects"`
	DataSize      int64            `json:"dataSize"`
	Counts        map[string]int64 `json:"counts"`
	Error         string           `json:"error,omitempty"`
}

type dispatchInfo struct {
	OrdersByStatus   map[string]int64 `json:"ordersByStatus"`
	ActiveBroadcasts int64            `json:"activeBroadcasts"`
	OnlineDrivers    int64            `json:"onlineDrivers"`
	Notifier         string           `json:"notifier"`
}

type runtimeInfo struct {
	GoVersion     string  `json:"goVersion"`
	AppVersion    string  `json:"appVersion"`
	Goroutines    int     `json:"goroutines"`
	HeapAllocMB   float64 `json:"heapAllocMb"`
	SysMB         float64 `json:"sysMb"`
	NumGC         uint32  `json:"numGc"`
	UptimeSeconds int64   `json:"uptimeSeconds"`
	Uptime        string  `json:"uptime"`
}

type timeoutInfo struct {
	Ping   string `json:"ping"`
	Short  string `json:"short"`
	Medium string `json:"medium"`
	Long   string `json:"long"`
}

type report struct {
	Status    string       `json:"status"`
	CheckedAt time.Time    `json:"checkedAt"`
	Database  databaseInfo `json:"database"`
	Dispatch  dispatchInfo `json:"dispatch"`
	Runtime   runtimeInfo  `json:"runtime"`
	Timeouts  timeoutInfo  `json:"timeouts"`
}

// Serve handles GET /system/diagnostics. A failed probe degrades the
// report rather than failing the request; status is "degraded" when the
// database cannot be reached.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	rep := report{
		Status:    "ok",
		CheckedAt: time.Now().UTC(),
		Database:  h.database(r.Context()),
		Runtime:   h.runtime(),
		Timeouts:  currentTimeouts(),
	}
	if !rep.Database.Connected {
		rep.Status = "degraded"
		rep.Dispatch = dispatchInfo{Notifier: h.Cfg.NotifierKind}
	} else {
		rep.Dispatch = h.dispatch(r.Context())
	}
	respond.OK(w, rep)
}

func (h *Handler) database(parent context.Context) databaseInfo {
	info := databaseInfo{Name: h.Cfg.MongoDatabase, Counts: map[string]int64{}}

	ctx, cancel := context.WithTimeout(parent, timeouts.Ping())
	start := time.Now()
	err := h.Client.Ping(ctx, readpref.Primary())
	cancel()
	if err != nil {
		h.Log.Warn("diagnostics: mongo ping failed", zap.Error(err))
		info.Error = "ping failed: " + err.Error()
		return info
	}
	info.Connected = true
	info.PingMS = float64(time.Since(start).Microseconds()) / 1000

	ctx, cancel = context.WithTimeout(parent, timeouts.Medium())
	defer cancel()

	var build bson.M
	if err := h.Client.Database("admin").RunCommand(ctx, bson.D{{Key: "buildInfo", Value: 1}}).Decode(&build); err != nil {
		h.Log.Warn("diagnostics: buildInfo failed", zap.Error(err))
	} else if v, ok := build["version"].(string); ok {
		info.ServerVersion = v
	}

	var stats bson.M
	if err := h.DB.RunCommand(ctx, bson.D{{Key: "dbStats", Value: 1}}).Decode(&stats); err != nil {
		h.Log.Warn("diagnostics: dbStats failed", zap.Error(err))
	} else {
		info.Collections = asInt64(stats["collections"])
		info.Objects = asInt64(stats["objects"])
		info.DataSize = asInt64(stats["dataSize"])
	}

	for _, name := range countedCollections {
		n, err := h.DB.Collection(name).EstimatedDocumentCount(ctx)
		if err != nil {
			h.Log.Warn("diagnostics: count failed", zap.String("collection", name), zap.Error(err))
			n = -1
		}
		info.Counts[name] = n
	}
	return info
}

func (h *Handler) dispatch(parent context.Context) dispatchInfo {
	ctx, cancel := context.WithTimeout(parent, timeouts.Medium())
	defer cancel()

	info := dispatchInfo{Notifier: h.Cfg.NotifierKind}
	if st, err := h.Orders.Stats(ctx); err != nil {
		h.Log.Warn("diagnostics: order stats failed", zap.Error(err))
	} else {
		info.OrdersByStatus = st.ByStatus
	}
	if n, err := h.Assignments.CountActive(ctx); err != nil {
		h.Log.Warn("diagnostics: active broadcasts failed", zap.Error(err))
	} else {
		info.ActiveBroadcasts = n
	}
	if n, err := h.Users.CountOnlineDrivers(ctx); err != nil {
		h.Log.Warn("diagnostics: online drivers failed", zap.Error(err))
	} else {
		info.OnlineDrivers = n
	}
	return info
}

func (h *Handler) runtime() runtimeInfo {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	up := time.Since(h.started).Truncate(time.Second)
	return runtimeInfo{
		GoVersion:     runtime.Version(),
		AppVersion:    appVersion(h.Cfg.Version),
		Goroutines:    runtime.NumGoroutine(),
		HeapAllocMB:   float64(ms.HeapAlloc) / (1 << 20),
		SysMB:         float64(ms.Sys) / (1 << 20),
		NumGC:         ms.NumGC,
		UptimeSeconds: int64(up.Seconds()),
		Uptime:        up.String(),
	}
}

func currentTimeouts() timeoutInfo {
	c := timeouts.Current()
	return timeoutInfo{Ping: c.Ping.String(), Short: c.Short.String(), Medium: c.Medium.String(), Long: c.Long.String()}
}

// appVersion prefers the configured version, then the module version
// stamped into the binary.
func appVersion(configured string) string {
	if configured != "" {
		return configured
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" {
		return bi.Main.Version
	}
	return "dev"
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}
