package compare

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceMonitor 系统资源监控器
// 每个比对单元会启动两个浏览器进程,按可用内存和CPU负载限制单元数量
type ResourceMonitor struct {
	config ResourceConfig

	// 采样数据
	availableMemory uint64
	totalMemory     uint64
	cpuUsage        float64
	mu              sync.RWMutex

	// 内存查询,测试时可替换
	virtualMemory func() (*mem.VirtualMemoryStat, error)
	cpuPercent    func(time.Duration, bool) ([]float64, error)

	cancelFunc context.CancelFunc
	isRunning  bool
}

// ResourceConfig 资源限制配置
type ResourceConfig struct {
	SafetyReserveMemory int64 // 为系统保留的内存(字节)
	UnitMemoryUsage     int64 // 单个比对单元(两个浏览器)的平均内存消耗(字节)
	CPULoadThreshold    int   // CPU负载阈值(%),>=200视为禁用
	MaxUnitsLimit       int   // 绝对最大单元数,0表示不限制
}

// DefaultResourceConfig 默认资源配置
func DefaultResourceConfig() ResourceConfig {
	return ResourceConfig{
		SafetyReserveMemory: 512 * 1024 * 1024,
		UnitMemoryUsage:     600 * 1024 * 1024,
		CPULoadThreshold:    90,
		MaxUnitsLimit:       0,
	}
}

// MemoryStatus 内存状态信息
type MemoryStatus struct {
	TotalMemory     uint64 // 系统总内存(字节)
	AvailableMemory uint64 // 系统可用内存(字节)
	SafetyReserve   int64  // 安全保留内存(字节)
	MemoryPressure  string // 内存压力等级
}

// NewResourceMonitor 创建资源监控器并立即采样一次
func NewResourceMonitor(config ResourceConfig) *ResourceMonitor {
	if config.UnitMemoryUsage <= 0 {
		config.UnitMemoryUsage = DefaultResourceConfig().UnitMemoryUsage
	}

	rm := &ResourceMonitor{
		config:        config,
		virtualMemory: mem.VirtualMemory,
		cpuPercent:    cpu.Percent,
	}
	rm.sampleMemory()

	log.Info().Msgf("系统总内存: %.2f GB, 可用: %.2f GB",
		float64(rm.totalMemory)/(1024*1024*1024),
		float64(rm.availableMemory)/(1024*1024*1024))
	return rm
}

// sampleMemory 读取系统内存
func (rm *ResourceMonitor) sampleMemory() {
	vmStat, err := rm.virtualMemory()
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if err != nil {
		log.Warn().Err(err).Msg("获取系统内存失败,使用默认值")
		rm.totalMemory = 4 * 1024 * 1024 * 1024
		rm.availableMemory = 2 * 1024 * 1024 * 1024
		return
	}
	rm.totalMemory = vmStat.Total
	rm.availableMemory = vmStat.Available
}

// sampleCPU 读取CPU使用率
func (rm *ResourceMonitor) sampleCPU() {
	percentages, err := rm.cpuPercent(100*time.Millisecond, false)
	if err != nil || len(percentages) == 0 {
		log.Warn().Err(err).Msg("获取CPU使用率失败")
		return
	}
	rm.mu.Lock()
	rm.cpuUsage = percentages[0]
	rm.mu.Unlock()
}

// StartMonitoring 启动后台周期采样 (幂等)
func (rm *ResourceMonitor) StartMonitoring(interval time.Duration) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.isRunning {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rm.cancelFunc = cancel
	rm.isRunning = true

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rm.sampleMemory()
				rm.sampleCPU()
			}
		}
	}()
}

// StopMonitoring 停止后台采样
func (rm *ResourceMonitor) StopMonitoring() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.isRunning && rm.cancelFunc != nil {
		rm.cancelFunc()
		rm.isRunning = false
		rm.cancelFunc = nil
	}
}

// CalculateMaxUnits 按当前资源计算允许的最大并发单元数 (至少为1)
func (rm *ResourceMonitor) CalculateMaxUnits() int {
	rm.mu.RLock()
	available := int64(rm.availableMemory)
	rm.mu.RUnlock()

	byMemory := 1
	if surplus := available - rm.config.SafetyReserveMemory; surplus > rm.config.UnitMemoryUsage {
		byMemory = int(surplus / rm.config.UnitMemoryUsage)
	}

	result := byMemory
	if byCPU := runtime.NumCPU(); byCPU < result {
		result = byCPU
	}
	if rm.config.MaxUnitsLimit > 0 && rm.config.MaxUnitsLimit < result {
		result = rm.config.MaxUnitsLimit
	}
	if result < 1 {
		result = 1
	}
	return result
}

// Cap 将请求的并发数限制在资源允许范围内
func (rm *ResourceMonitor) Cap(requested int) int {
	limit := rm.CalculateMaxUnits()
	if requested > limit {
		log.Warn().Int("requested", requested).Int("limit", limit).Msg("系统资源不足,降低并发单元数")
		return limit
	}
	return requested
}

// CheckResourceAvailability 检查当前资源是否允许启动新单元
func (rm *ResourceMonitor) CheckResourceAvailability() (bool, string) {
	rm.mu.RLock()
	available := int64(rm.availableMemory)
	cpuUsage := rm.cpuUsage
	rm.mu.RUnlock()

	if available-rm.config.SafetyReserveMemory < rm.config.UnitMemoryUsage {
		return false, fmt.Sprintf("内存不足(当前可用%dMB)", available/(1024*1024))
	}
	if rm.config.CPULoadThreshold < 200 && cpuUsage > float64(rm.config.CPULoadThreshold) {
		return false, fmt.Sprintf("CPU负载过高(当前%.1f%%)", cpuUsage)
	}
	return true, ""
}

// GetMemoryStatus 获取当前内存状态
func (rm *ResourceMonitor) GetMemoryStatus() MemoryStatus {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	availableMB := rm.availableMemory / (1024 * 1024)
	var pressure string
	switch {
	case availableMB < 500:
		pressure = "critical"
	case availableMB < 1024:
		pressure = "warning"
	default:
		pressure = "normal"
	}

	return MemoryStatus{
		TotalMemory:     rm.totalMemory,
		AvailableMemory: rm.availableMemory,
		SafetyReserve:   rm.config.SafetyReserveMemory,
		MemoryPressure:  pressure,
	}
}
