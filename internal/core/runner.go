package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/RecoveryAshes/SiteDiff/internal/browser"
	"github.com/RecoveryAshes/SiteDiff/internal/compare"
	"github.com/RecoveryAshes/SiteDiff/internal/crawler"
	"github.com/RecoveryAshes/SiteDiff/internal/diff"
	"github.com/RecoveryAshes/SiteDiff/internal/models"
	"github.com/RecoveryAshes/SiteDiff/internal/utils"
)

// crawlRetryDelay 链接提取重试间隔
const crawlRetryDelay = 500 * time.Millisecond

// LinkFactory 创建爬取会话
type LinkFactory func(ctx context.Context) (browser.LinkSession, error)

// RunnerOptions 运行器参数
type RunnerOptions struct {
	Config *Config
	Site   *models.SiteConfig

	// LinkFactory 为空时按crawl_mode选择浏览器或HTTP会话
	LinkFactory LinkFactory

	// SessionFactory 为空时按配置启动浏览器
	SessionFactory browser.Factory

	// Output 结果摘要输出,默认stdout
	Output io.Writer

	// ShowProgress 是否显示进度条
	ShowProgress bool
}

// Runner 协调一次完整运行: 目录准备、爬取或读取缓存、并发比对、生成报告
type Runner struct {
	config   *Config
	site     models.SiteConfig
	viewport models.Viewport
	browser  models.BrowserKind

	linkFactory    LinkFactory
	sessionFactory browser.Factory

	output       io.Writer
	showProgress bool
}

// NewRunner 创建运行器
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Config == nil || opts.Site == nil {
		return nil, fmt.Errorf("运行配置与站点配置不能为空")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("运行配置无效: %w", err)
	}
	if err := opts.Site.Validate(); err != nil {
		return nil, fmt.Errorf("站点配置无效: %w", err)
	}

	viewport, _ := models.ViewportFor(opts.Config.Run.Viewport)
	kind, _ := models.ParseBrowserKind(opts.Config.Run.Browser)

	r := &Runner{
		config:         opts.Config,
		site:           opts.Site.Clone(),
		viewport:       viewport,
		browser:        kind,
		linkFactory:    opts.LinkFactory,
		sessionFactory: opts.SessionFactory,
		output:         opts.Output,
		showProgress:   opts.ShowProgress,
	}
	if r.output == nil {
		r.output = os.Stdout
	}

	sessionOpts := r.sessionOptions()
	if r.sessionFactory == nil {
		r.sessionFactory = browser.RodFactory(sessionOpts)
	}
	if r.linkFactory == nil {
		mode, _ := models.ParseCrawlMode(r.config.Run.CrawlMode)
		if mode == models.ModeStatic {
			r.linkFactory = LinkFactory(browser.StaticFactory(sessionOpts))
		} else {
			rod := browser.RodFactory(sessionOpts)
			r.linkFactory = func(ctx context.Context) (browser.LinkSession, error) {
				return rod(ctx)
			}
		}
	}

	return r, nil
}

// sessionOptions 由配置生成会话参数
func (r *Runner) sessionOptions() browser.Options {
	return browser.Options{
		Kind:              r.browser,
		Headless:          r.config.Run.Headless,
		BrowserBin:        r.config.Run.BrowserBin,
		Viewport:          r.viewport,
		NavigationTimeout: r.config.Run.NavigationTimeout,
		Cookies:           r.site.Cookies,
	}
}

// Bootstrap 创建输出目录
func (r *Runner) Bootstrap() error {
	images := r.config.Output.ImagesPath()
	return utils.EnsureDirs(
		filepath.Join(images, "origin"),
		filepath.Join(images, "destination"),
		r.config.Output.DiffPath(),
		r.config.Output.CachePath(),
		r.config.Output.ReportsPath(),
	)
}

// CachePath 页面列表缓存文件路径
func (r *Runner) CachePath() string {
	return filepath.Join(r.config.Output.CachePath(), models.PageListFilename(r.site.OriginHost()))
}

// Crawl 爬取基准站点并写入缓存
func (r *Runner) Crawl(ctx context.Context) (models.PageList, error) {
	blacklist, err := crawler.NewBlacklist(r.site.Origin, r.site.BlacklistSinglePaths, r.site.BlacklistChildrenPaths)
	if err != nil {
		return nil, fmt.Errorf("解析黑名单失败: %w", err)
	}

	session, err := r.linkFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("启动爬取会话失败: %w", err)
	}

	cfg := crawler.Config{
		StartURL:   r.site.Origin,
		Blacklist:  blacklist,
		MaxPages:   r.config.Run.MaxPages,
		RetryDelay: crawlRetryDelay,
	}
	if r.showProgress {
		bar := utils.NewProgressBar(-1, "爬取页面")
		defer bar.Finish()
		cfg.Progress = func(recorded, pending int) {
			bar.Describe(fmt.Sprintf("爬取页面 (待访问 %d)", pending))
			_ = bar.Set(recorded)
		}
	}

	c, err := crawler.New(session, cfg)
	if err != nil {
		session.Close()
		return nil, err
	}

	utils.Infof("🔍 开始爬取: %s (模式: %s)", r.site.Origin, r.config.Run.CrawlMode)
	pages, err := c.Crawl(ctx)
	if err != nil {
		return pages, err
	}

	stats := c.Stats()
	utils.Infof("✅ 爬取完成: 记录 %d, 跳过 %d, 失败 %d", stats.Recorded, stats.Skipped, stats.Failed)

	if err := pages.SaveToFile(r.CachePath()); err != nil {
		utils.Warnf("写入页面缓存失败: %v", err)
	} else {
		utils.Infof("页面列表已缓存: %s", r.CachePath())
	}

	return pages, nil
}

// LoadPages 有缓存时读取缓存,否则爬取
func (r *Runner) LoadPages(ctx context.Context) (pages models.PageList, fromCache bool, err error) {
	if r.config.Run.UseCache {
		pages, err := models.LoadPageListFromFile(r.CachePath())
		switch {
		case err == nil:
			utils.Infof("使用页面缓存: %s (%d 个页面)", r.CachePath(), len(pages))
			return pages, true, nil
		case !errors.Is(err, os.ErrNotExist):
			utils.Warnf("读取页面缓存失败,重新爬取: %v", err)
		}
	}

	pages, err = r.Crawl(ctx)
	return pages, false, err
}

// Compare 并发比对pages
func (r *Runner) Compare(ctx context.Context, pages []string) (*compare.Outcome, error) {
	engine, err := diff.NewEngine(r.config.Diff.Engine)
	if err != nil {
		return nil, err
	}

	auditor := diff.NewAuditor(engine, diff.AuditConfig{
		Tolerance:  r.config.Diff.Tolerance,
		DiffDir:    r.config.Output.DiffPath(),
		SaveImages: r.config.Diff.SaveImages,
	})

	opts := compare.Options{
		Factory:   r.sessionFactory,
		Auditor:   auditor,
		Unit:      compare.UnitConfig{Site: r.site, Viewport: r.viewport},
		ImagesDir: r.config.Output.ImagesPath(),
	}

	if r.config.Resource.Enabled {
		monitor := compare.NewResourceMonitor(compare.ResourceConfig{
			SafetyReserveMemory: int64(r.config.Resource.SafetyReserveMB) * 1024 * 1024,
			UnitMemoryUsage:     int64(r.config.Resource.UnitMemoryMB) * 1024 * 1024,
			CPULoadThreshold:    r.config.Resource.CPUThreshold,
			MaxUnitsLimit:       r.config.Resource.MaxUnits,
		})
		if ok, reason := monitor.CheckResourceAvailability(); !ok {
			utils.Warnf("系统资源紧张: %s", reason)
		}
		monitor.StartMonitoring(5 * time.Second)
		defer monitor.StopMonitoring()
		opts.Monitor = monitor
	}

	if r.showProgress {
		bar := utils.NewProgressBar(len(pages), "比对页面")
		defer bar.Finish()
		opts.Progress = func() { _ = bar.Add(1) }
	}

	orchestrator, err := compare.NewOrchestrator(opts)
	if err != nil {
		return nil, err
	}
	return orchestrator.Run(ctx, pages, r.config.Run.Concurrency)
}

// Run 完整运行,返回的报告在出错时也尽量填充
func (r *Runner) Run(ctx context.Context) (*models.RunReport, error) {
	report := models.NewRunReport(r.site)
	report.Device = r.viewport.Name
	report.Browser = string(r.browser)
	report.Concurrency = r.config.Run.Concurrency
	report.Tolerance = r.config.Diff.Tolerance
	report.DiffEngine = r.config.Diff.Engine
	report.DiffDir = r.config.Output.DiffPath()
	report.Result = *models.NewComparisonResult()

	utils.Infof("🚀 开始对比任务 [%s]", report.RunID)
	utils.Infof("基准站点: %s", r.site.Origin)
	utils.Infof("对比站点: %s", r.site.Destination)
	utils.Infof("设备: %s (%dx%d), 浏览器: %s, 并发单元: %d",
		r.viewport.Name, r.viewport.Width, r.viewport.Height, r.browser, r.config.Run.Concurrency)

	if err := r.Bootstrap(); err != nil {
		return report, err
	}

	pages, fromCache, err := r.LoadPages(ctx)
	report.FromCache = fromCache
	report.TotalPages = len(pages)
	if err != nil {
		report.Finish()
		return report, err
	}
	if len(pages) == 0 {
		utils.Warnf("没有可比对的页面")
	}

	outcome, runErr := r.Compare(ctx, pages)
	if outcome != nil {
		report.Result = *outcome.Result
		for _, ue := range outcome.UnitErrors {
			report.UnitErrors = append(report.UnitErrors, ue.Error())
		}
	}
	report.Finish()

	if path, err := utils.NewReporter(r.config.Output.ReportsPath()).GenerateReport(report); err != nil {
		utils.Warnf("生成报告失败: %v", err)
	} else {
		utils.Infof("✅ 报告已生成: %s", path)
	}

	return report, runErr
}

// PrintSummary 输出结果摘要
func (r *Runner) PrintSummary(report *models.RunReport) {
	utils.PrintSummary(r.output, report)
}
