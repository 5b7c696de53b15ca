package monitoring

import (
	"context"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Database states reported by a snapshot.
const (
	DatabaseOK          = "ok"
	DatabaseUnavailable = "unavailable"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// SystemStats is a point-in-time view of the host and process.
type SystemStats struct {
	UptimeSeconds     uint64  `json:"uptimeSeconds"`
	MemoryUsedPercent float64 `json:"memoryUsedPercent"`
	Goroutines        int     `json:"goroutines"`
	Database          string  `json:"database"`
}

// SystemMonitor collects SystemStats.
type SystemMonitor struct {
	db Pinger
}

// NewSystemMonitor creates a SystemMonitor that checks db on every snapshot.
func NewSystemMonitor(db Pinger) *SystemMonitor {
	return &SystemMonitor{db: db}
}

// Snapshot gathers current stats. Host metrics that cannot be read are left zero.
func (m *SystemMonitor) Snapshot(ctx context.Context) SystemStats {
	stats := SystemStats{
		Goroutines: runtime.NumGoroutine(),
		Database:   DatabaseOK,
	}

	if uptime, err := host.UptimeWithContext(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to read host uptime")
	} else {
		stats.UptimeSeconds = uptime
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to read memory usage")
	} else {
		stats.MemoryUsedPercent = vm.UsedPercent
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := m.db.PingContext(pingCtx); err != nil {
		log.Error().Err(err).Msg("Database ping failed")
		stats.Database = DatabaseUnavailable
	}

	return stats
}
