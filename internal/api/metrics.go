package api

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// ServerStats собирает сведения о процессе для /api/server
type ServerStats struct {
	startTime time.Time
	now       func() time.Time
}

// ServerInfo: ответ /api/server
type ServerInfo struct {
	Name           string  `json:"name"`
	Status         string  `json:"status"`
	Uptime         string  `json:"uptime"`
	UptimeSeconds  int64   `json:"uptime_seconds"`
	MemoryMB       float64 `json:"memory_mb"`
	CPUPercent     float64 `json:"cpu_percent"`
	Goroutines     int     `json:"goroutines"`
	NumGC          uint32  `json:"num_gc"`
	ActiveSessions int     `json:"active_sessions"`
}

// NewServerStats создаёт сборщик, отсчитывающий uptime от текущего момента
func NewServerStats() *ServerStats {
	return &ServerStats{startTime: time.Now(), now: time.Now}
}

// Uptime возвращает время работы сервера в читаемом виде
func (ss *ServerStats) Uptime() string {
	return formatUptime(ss.now().Sub(ss.startTime))
}

func formatUptime(uptime time.Duration) string {
	days := int(uptime.Hours()) / 24
	hours := int(uptime.Hours()) % 24
	minutes := int(uptime.Minutes()) % 60
	seconds := int(uptime.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dд %dч %dм %dс", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dч %dм %dс", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dм %dс", minutes, seconds)
	default:
		return fmt.Sprintf("%dс", seconds)
	}
}

// CPUUsage возвращает использование CPU процессом в процентах
func (ss *ServerStats) CPUUsage() (float64, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		// Если не удалось получить метрику процесса, попробуем системную
		cpuPercents, err := cpu.Percent(100*time.Millisecond, false)
		if err != nil || len(cpuPercents) == 0 {
			return 0, err
		}
		return cpuPercents[0], nil
	}
	return cpuPercent, nil
}

// Collect собирает снимок состояния процесса
func (ss *ServerStats) Collect(activeSessions int) ServerInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	cpuPercent, _ := ss.CPUUsage()
	return ServerInfo{
		Name:           "DeepMine Server",
		Status:         "running",
		Uptime:         ss.Uptime(),
		UptimeSeconds:  int64(ss.now().Sub(ss.startTime).Seconds()),
		MemoryMB:       float64(m.Alloc) / 1024 / 1024,
		CPUPercent:     cpuPercent,
		Goroutines:     runtime.NumGoroutine(),
		NumGC:          m.NumGC,
		ActiveSessions: activeSessions,
	}
}
