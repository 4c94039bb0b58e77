package api

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/annel0/scc-replay/internal/playback"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// ServerMetrics метрики процесса хоста для /api/server
type ServerMetrics struct {
	StartTime time.Time

	once sync.Once
	proc *process.Process
	err  error
}

// NewServerMetrics создает новый экземпляр метрик
func NewServerMetrics() *ServerMetrics {
	return &ServerMetrics{StartTime: time.Now()}
}

func (sm *ServerMetrics) process() (*process.Process, error) {
	sm.once.Do(func() {
		sm.proc, sm.err = process.NewProcess(int32(os.Getpid()))
	})
	return sm.proc, sm.err
}

// GetUptime время работы в формате HH:MM:SS
func (sm *ServerMetrics) GetUptime() string {
	return playback.FormatTime(time.Since(sm.StartTime).Seconds())
}

// GetMemoryUsage резидентная память процесса в MB
func (sm *ServerMetrics) GetMemoryUsage() (float64, error) {
	proc, err := sm.process()
	if err != nil {
		return 0, err
	}
	info, err := proc.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return float64(info.RSS) / 1024 / 1024, nil
}

// GetCPUUsage использование CPU процессом в процентах; при ошибке берется
// системное значение
func (sm *ServerMetrics) GetCPUUsage() (float64, error) {
	proc, err := sm.process()
	if err == nil {
		var percent float64
		if percent, err = proc.CPUPercent(); err == nil {
			return percent, nil
		}
	}

	percents, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(percents) == 0 {
		return 0, err
	}
	return percents[0], nil
}

// GetDetailedMemoryStats куча Go и память хоста
func (sm *ServerMetrics) GetDetailedMemoryStats() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := map[string]interface{}{
		"heap_alloc_mb": float64(m.HeapAlloc) / 1024 / 1024,
		"heap_sys_mb":   float64(m.HeapSys) / 1024 / 1024,
		"num_gc":        m.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		stats["host_total_mb"] = float64(vm.Total) / 1024 / 1024
		stats["host_used_percent"] = vm.UsedPercent
	}
	return stats
}
