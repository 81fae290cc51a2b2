package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/RecoveryAshes/SiteDiff/internal/models"
	"github.com/schollz/progressbar/v3"
)

const (
	// RunReportFile 运行报告文件名
	RunReportFile = "run_report.json"
)

// Reporter 报告生成器
type Reporter struct {
	reportsDir string
}

// NewReporter 创建报告生成器
func NewReporter(reportsDir string) *Reporter {
	return &Reporter{reportsDir: reportsDir}
}

// GenerateReport 写入运行报告,返回报告路径
func (r *Reporter) GenerateReport(report *models.RunReport) (string, error) {
	if err := os.MkdirAll(r.reportsDir, 0755); err != nil {
		return "", fmt.Errorf("创建报告目录失败: %w", err)
	}

	data, err := report.ToJSON()
	if err != nil {
		return "", fmt.Errorf("序列化JSON失败: %w", err)
	}

	path := filepath.Join(r.reportsDir, RunReportFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("写入报告文件失败: %w", err)
	}

	Debugf("保存报告: %s", path)
	return path, nil
}

// PrintSummary 输出差异数与失败URL,无论结果如何都会输出
func PrintSummary(w io.Writer, report *models.RunReport) {
	res := report.Result
	var b strings.Builder

	b.WriteString("\n========== 对比结果 ==========\n")
	fmt.Fprintf(&b, "基准站点: %s\n", report.Origin)
	fmt.Fprintf(&b, "对比站点: %s\n", report.Destination)
	fmt.Fprintf(&b, "页面总数: %d, 已处理: %d\n", report.TotalPages, res.Compared)
	fmt.Fprintf(&b, "差异页面数: %d\n", res.DiffCount)
	for _, u := range res.DiffURLs {
		fmt.Fprintf(&b, "  [差异] %s\n", u)
	}
	fmt.Fprintf(&b, "失败页面数: %d\n", len(res.ErrorURLs))
	for _, u := range res.ErrorURLs {
		fmt.Fprintf(&b, "  [失败] %s\n", u)
	}
	for _, e := range report.UnitErrors {
		fmt.Fprintf(&b, "  [单元错误] %s\n", e)
	}
	if report.DiffDir != "" && res.DiffCount > 0 {
		fmt.Fprintf(&b, "差异图目录: %s\n", report.DiffDir)
	}
	fmt.Fprintf(&b, "耗时: %.1f 秒\n", report.Duration)
	b.WriteString("==============================\n")

	io.WriteString(w, b.String())
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
