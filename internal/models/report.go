package models

import (
	"encoding/json"
	"time"
)

// RunReport 一次完整运行的报告
type RunReport struct {
	// 任务信息
	RunID       string `json:"run_id"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Device      string `json:"device"`
	Browser     string `json:"browser"`

	// 时间信息
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration"` // 秒

	// 运行参数
	Concurrency int     `json:"concurrency"`
	Tolerance   float64 `json:"tolerance"`
	DiffEngine  string  `json:"diff_engine"`
	FromCache   bool    `json:"from_cache"`

	// 统计信息
	TotalPages int              `json:"total_pages"`
	Result     ComparisonResult `json:"result"`
	UnitErrors []string         `json:"unit_errors,omitempty"`

	// 输出路径
	DiffDir string `json:"diff_dir"`
}

// NewRunReport 创建运行报告
func NewRunReport(site SiteConfig) *RunReport {
	return &RunReport{
		RunID:       generateID(),
		Origin:      site.Origin,
		Destination: site.Destination,
		StartTime:   time.Now(),
	}
}

// Finish 填充结束时间与耗时
func (r *RunReport) Finish() {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime).Seconds()
}

// ToJSON 序列化为JSON
func (r *RunReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// FromJSON 从JSON反序列化
func (r *RunReport) FromJSON(data []byte) error {
	return json.Unmarshal(data, r)
}
