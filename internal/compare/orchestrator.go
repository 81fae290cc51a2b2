package compare

import (
	"context"
	"errors"
	"fmt"

	"github.com/RecoveryAshes/SiteDiff/internal/browser"
	"github.com/RecoveryAshes/SiteDiff/internal/diff"
	"github.com/RecoveryAshes/SiteDiff/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ErrNoSessionFactory 未提供会话工厂
var ErrNoSessionFactory = errors.New("未提供浏览器会话工厂")

// UnitConfig 单元启动时复制的配置快照,单元之间不共享可变状态
type UnitConfig struct {
	Site     models.SiteConfig
	Viewport models.Viewport
}

// UnitError 单元级错误 (会话启动失败或panic)
type UnitError struct {
	Unit int
	URLs int // 受影响的页面数
	Err  error
}

// Error 实现error接口
func (e *UnitError) Error() string {
	return fmt.Sprintf("比对单元%d失败 (影响%d个页面): %v", e.Unit, e.URLs, e.Err)
}

// Unwrap 支持errors.Unwrap
func (e *UnitError) Unwrap() error {
	return e.Err
}

// Outcome 编排结果
type Outcome struct {
	Result     *models.ComparisonResult
	UnitErrors []*UnitError
	Units      int // 实际启动的单元数
}

// Options 编排器配置
type Options struct {
	Factory   browser.Factory
	Auditor   *diff.Auditor
	Unit      UnitConfig
	ImagesDir string // 临时截图根目录,为空时不落盘

	// Monitor 非空时按系统资源限制并发单元数
	Monitor *ResourceMonitor

	// Progress 每处理完一个页面回调一次,需并发安全
	Progress func()
}

// Orchestrator 将页面列表分片给多个并发单元,全部完成后按分片顺序合并结果
type Orchestrator struct {
	opts Options
}

// NewOrchestrator 创建编排器
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.Factory == nil {
		return nil, ErrNoSessionFactory
	}
	if opts.Auditor == nil {
		opts.Auditor = diff.NewAuditor(nil, diff.AuditConfig{Tolerance: diff.DefaultTolerance})
	}
	return &Orchestrator{opts: opts}, nil
}

// Run 以concurrency个单元并发比对pages
// 单元失败只影响其分片;返回的error仅表示ctx被取消
func (o *Orchestrator) Run(ctx context.Context, pages []string, concurrency int) (*Outcome, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	if o.opts.Monitor != nil {
		concurrency = o.opts.Monitor.Cap(concurrency)
	}

	chunks := Partition(pages, concurrency)
	results := make([]*models.ComparisonResult, len(chunks))
	unitErrors := make([]*UnitError, len(chunks))

	log.Info().Int("pages", len(pages)).Int("units", len(chunks)).Msg("开始并发比对")

	var g errgroup.Group
	units := 0
	for i, chunk := range chunks {
		if len(chunk) == 0 {
			continue
		}
		units++
		index, assigned := i, chunk
		snapshot := UnitConfig{Site: o.opts.Unit.Site.Clone(), Viewport: o.opts.Unit.Viewport}
		g.Go(func() error {
			results[index], unitErrors[index] = o.runUnit(ctx, index, assigned, snapshot)
			return nil
		})
	}
	_ = g.Wait()

	outcome := &Outcome{Result: models.NewComparisonResult(), Units: units}
	for i := range chunks {
		outcome.Result.Merge(results[i])
		if unitErrors[i] != nil {
			outcome.UnitErrors = append(outcome.UnitErrors, unitErrors[i])
		}
	}

	log.Info().
		Int("compared", outcome.Result.Compared).
		Int("diff_count", outcome.Result.DiffCount).
		Int("errors", len(outcome.Result.ErrorURLs)).
		Msg("并发比对完成")

	if err := ctx.Err(); err != nil {
		return outcome, fmt.Errorf("比对被中断: %w", err)
	}
	return outcome, nil
}

// runUnit 单元主循环: 启动两侧会话后顺序比对分片内的页面
func (o *Orchestrator) runUnit(ctx context.Context, index int, chunk []string, cfg UnitConfig) (res *models.ComparisonResult, unitErr *UnitError) {
	res = models.NewComparisonResult()
	done := 0

	failRemaining := func(err error) {
		remaining := chunk[done:]
		for _, u := range remaining {
			res.Record(failedOutcome(cfg.Site, u, err))
			o.tick()
		}
		done = len(chunk)
		unitErr = &UnitError{Unit: index, URLs: len(remaining), Err: err}
		log.Error().Err(err).Int("unit", index).Msg("比对单元失败")
	}

	defer func() {
		if r := recover(); r != nil {
			failRemaining(fmt.Errorf("panic: %v", r))
		}
	}()

	origin, err := o.openSession(ctx, cfg)
	if err != nil {
		failRemaining(fmt.Errorf("启动基准站点会话失败: %w", err))
		return res, unitErr
	}
	defer origin.Close()

	destination, err := o.openSession(ctx, cfg)
	if err != nil {
		failRemaining(fmt.Errorf("启动对比站点会话失败: %w", err))
		return res, unitErr
	}
	defer destination.Close()

	comparator := NewComparator(origin, destination, cfg.Site, o.opts.Auditor, o.opts.ImagesDir)
	log.Debug().Int("unit", index).Int("pages", len(chunk)).Msg("比对单元已启动")

	for _, u := range chunk {
		if err := ctx.Err(); err != nil {
			res.Record(failedOutcome(cfg.Site, u, err))
		} else {
			res.Record(comparator.Compare(ctx, u))
		}
		done++
		o.tick()
	}

	return res, unitErr
}

func failedOutcome(site models.SiteConfig, u string, err error) models.PageOutcome {
	destinationURL, _ := site.DestinationURL(u)
	return models.PageOutcome{
		URL:            u,
		DestinationURL: destinationURL,
		Status:         models.PageFailed,
		Reason:         err.Error(),
	}
}

// openSession 创建会话并应用单元快照中的视口与Cookie
func (o *Orchestrator) openSession(ctx context.Context, cfg UnitConfig) (browser.Session, error) {
	session, err := o.opts.Factory(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Viewport.Width > 0 {
		if err := session.SetViewport(cfg.Viewport); err != nil {
			session.Close()
			return nil, err
		}
	}
	if err := session.SetCookies(cfg.Site.Cookies); err != nil {
		session.Close()
		return nil, err
	}
	return session, nil
}

func (o *Orchestrator) tick() {
	if o.opts.Progress != nil {
		o.opts.Progress()
	}
}
