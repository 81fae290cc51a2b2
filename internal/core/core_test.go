package core

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RecoveryAshes/SiteDiff/internal/browser"
	"github.com/RecoveryAshes/SiteDiff/internal/models"
)

// fakeSite 内存站点: 链接关系与两侧截图
type fakeSite struct {
	links    map[string][]string
	diffURLs map[string]bool // 对比站点上渲染不同的页面

	mu       sync.Mutex
	sessions int
}

func (s *fakeSite) newSession(ctx context.Context) (browser.Session, error) {
	s.mu.Lock()
	s.sessions++
	s.mu.Unlock()
	return &fakeSession{site: s}, nil
}

func (s *fakeSite) linkFactory(ctx context.Context) (browser.LinkSession, error) {
	return s.newSession(ctx)
}

type fakeSession struct {
	site    *fakeSite
	current string
	cookies []models.Cookie
}

func (f *fakeSession) Navigate(ctx context.Context, target string) (string, error) {
	f.current = target
	return target, nil
}

func (f *fakeSession) ExtractLinks(ctx context.Context) ([]string, error) {
	return f.site.links[f.current], nil
}

func (f *fakeSession) SetCookies(cookies []models.Cookie) error {
	f.cookies = cookies
	return nil
}

func (f *fakeSession) SetViewport(models.Viewport) error { return nil }

func (f *fakeSession) Screenshot(ctx context.Context) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.White)
		}
	}
	if f.site.diffURLs[f.current] {
		for y := 5; y < 15; y++ {
			for x := 5; x < 15; x++ {
				img.Set(x, y, color.RGBA{R: 255, A: 255})
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (f *fakeSession) Close() error { return nil }

func testConfig(dir string) *Config {
	return &Config{
		Run: RunConfig{
			Concurrency:       2,
			Viewport:          "desktop",
			Browser:           "chrome",
			Headless:          true,
			CrawlMode:         "dynamic",
			NavigationTimeout: 5 * time.Second,
			UseCache:          true,
		},
		Diff: DiffConfig{
			Engine:     "pixelmatch",
			Tolerance:  0.1,
			SaveImages: true,
		},
		Output: OutputConfig{
			BaseDir:    dir,
			CacheDir:   "cache",
			ImagesDir:  "images",
			ReportsDir: "reports",
		},
	}
}

func testSite() *models.SiteConfig {
	return &models.SiteConfig{
		Origin:               "https://prod.test",
		Destination:          "https://stage.test",
		BlacklistSinglePaths: []string{"/logout"},
	}
}

func newTestSite() *fakeSite {
	return &fakeSite{
		links: map[string][]string{
			"https://prod.test":   {"https://prod.test/a", "https://prod.test/b", "https://prod.test/logout", "https://other.test/"},
			"https://prod.test/a": {"https://prod.test", "https://prod.test/b?x=1"},
		},
		diffURLs: map[string]bool{"https://stage.test/b": true},
	}
}

func TestRunnerRun(t *testing.T) {
	dir := t.TempDir()
	site := newTestSite()
	var out bytes.Buffer

	r, err := NewRunner(RunnerOptions{
		Config:         testConfig(dir),
		Site:           testSite(),
		LinkFactory:    site.linkFactory,
		SessionFactory: site.newSession,
		Output:         &out,
	})
	if err != nil {
		t.Fatalf("NewRunner失败: %v", err)
	}

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run失败: %v", err)
	}

	if report.TotalPages != 3 {
		t.Errorf("页面总数 = %d, 期望 3", report.TotalPages)
	}
	if report.FromCache {
		t.Errorf("首次运行不应使用缓存")
	}
	if report.Result.DiffCount != 1 || len(report.Result.DiffURLs) != 1 || report.Result.DiffURLs[0] != "https://prod.test/b" {
		t.Errorf("差异结果不正确: %+v", report.Result)
	}
	if len(report.Result.ErrorURLs) != 0 {
		t.Errorf("不应有失败页面: %v", report.Result.ErrorURLs)
	}

	// 缓存、报告、差异图
	if _, err := os.Stat(filepath.Join(dir, "cache", "prod.test_crawled.json")); err != nil {
		t.Errorf("缓存文件未生成: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "reports", "run_report.json")); err != nil {
		t.Errorf("报告未生成: %v", err)
	}
	diffs, _ := filepath.Glob(filepath.Join(dir, "images", "diff", "*_diff.jpg"))
	if len(diffs) != 1 {
		t.Errorf("差异图数量 = %d, 期望 1", len(diffs))
	}

	// 临时截图全部清理
	for _, side := range []string{"origin", "destination"} {
		left, _ := filepath.Glob(filepath.Join(dir, "images", side, "*.png"))
		if len(left) != 0 {
			t.Errorf("%s 临时截图未清理: %v", side, left)
		}
	}

	r.PrintSummary(report)
	if !strings.Contains(out.String(), "差异页面数: 1") {
		t.Errorf("摘要输出不正确:\n%s", out.String())
	}
}

func TestRunnerUsesCache(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	site := newTestSite()

	cachePath := filepath.Join(dir, "cache", models.PageListFilename("prod.test"))
	cached := models.PageList{"https://prod.test", "https://prod.test/b"}
	if err := cached.SaveToFile(cachePath); err != nil {
		t.Fatalf("写入缓存失败: %v", err)
	}

	failing := func(ctx context.Context) (browser.LinkSession, error) {
		return nil, errors.New("不应爬取")
	}

	r, err := NewRunner(RunnerOptions{
		Config:         cfg,
		Site:           testSite(),
		LinkFactory:    failing,
		SessionFactory: site.newSession,
		Output:         &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("NewRunner失败: %v", err)
	}

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run失败: %v", err)
	}
	if !report.FromCache || report.TotalPages != 2 {
		t.Errorf("应使用缓存: from_cache=%v total=%d", report.FromCache, report.TotalPages)
	}

	// 禁用缓存后必须爬取
	cfg.MergeCLIFlags(CLIOverrides{NoCache: true})
	r, err = NewRunner(RunnerOptions{
		Config:         cfg,
		Site:           testSite(),
		LinkFactory:    failing,
		SessionFactory: site.newSession,
		Output:         &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("NewRunner失败: %v", err)
	}
	if _, err := r.Run(context.Background()); err == nil {
		t.Errorf("禁用缓存且爬取失败时应返回错误")
	}
}

func TestRunnerSessionFailureIsReported(t *testing.T) {
	dir := t.TempDir()
	site := newTestSite()

	broken := func(ctx context.Context) (browser.Session, error) {
		return nil, browser.ErrUnsupportedBrowser
	}

	r, err := NewRunner(RunnerOptions{
		Config:         testConfig(dir),
		Site:           testSite(),
		LinkFactory:    site.linkFactory,
		SessionFactory: broken,
		Output:         &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("NewRunner失败: %v", err)
	}

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("单元失败不应成为进程级错误: %v", err)
	}
	if len(report.Result.ErrorURLs) != 3 {
		t.Errorf("所有页面应记为失败: %v", report.Result.ErrorURLs)
	}
	if len(report.UnitErrors) == 0 {
		t.Errorf("应记录单元错误")
	}
}

func TestNewRunnerValidation(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name   string
		mutate func(*Config, *models.SiteConfig)
	}{
		{"并发为0", func(c *Config, s *models.SiteConfig) { c.Run.Concurrency = 0 }},
		{"未知设备", func(c *Config, s *models.SiteConfig) { c.Run.Viewport = "watch" }},
		{"未知浏览器", func(c *Config, s *models.SiteConfig) { c.Run.Browser = "safari" }},
		{"未知模式", func(c *Config, s *models.SiteConfig) { c.Run.CrawlMode = "fast" }},
		{"未知引擎", func(c *Config, s *models.SiteConfig) { c.Diff.Engine = "ssim" }},
		{"容差越界", func(c *Config, s *models.SiteConfig) { c.Diff.Tolerance = 1.5 }},
		{"origin无效", func(c *Config, s *models.SiteConfig) { s.Origin = "prod.test" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, site := testConfig(dir), testSite()
			tt.mutate(cfg, site)
			if _, err := NewRunner(RunnerOptions{Config: cfg, Site: site}); err == nil {
				t.Errorf("期望返回错误")
			}
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("run:\n  concurrency: 3\n  viewport: mobile\ndiff:\n  engine: channel\n"), 0644); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig失败: %v", err)
	}

	if cfg.Run.Concurrency != 3 || cfg.Run.Viewport != "mobile" || cfg.Diff.Engine != "channel" {
		t.Errorf("配置文件值未生效: %+v", cfg.Run)
	}
	if cfg.Run.NavigationTimeout != 30*time.Second {
		t.Errorf("默认导航超时 = %v", cfg.Run.NavigationTimeout)
	}
	if cfg.Diff.Tolerance != 0.95 {
		t.Errorf("默认容差 = %v", cfg.Diff.Tolerance)
	}
	if cfg.Run.Browser != "chrome" || !cfg.Run.UseCache {
		t.Errorf("默认值不正确: %+v", cfg.Run)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("配置应合法: %v", err)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("CORES", "4")
	t.Setenv("DEVICE", "tablet")
	t.Setenv("BROWSER", "edge")
	t.Setenv("SITEDIFF_DIFF_TOLERANCE", "0.2")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("run:\n  concurrency: 2\n"), 0644); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig失败: %v", err)
	}
	if cfg.Run.Concurrency != 4 {
		t.Errorf("CORES未生效: %d", cfg.Run.Concurrency)
	}
	if cfg.Run.Viewport != "tablet" {
		t.Errorf("DEVICE未生效: %s", cfg.Run.Viewport)
	}
	if cfg.Run.Browser != "edge" {
		t.Errorf("BROWSER未生效: %s", cfg.Run.Browser)
	}
	if cfg.Diff.Tolerance != 0.2 {
		t.Errorf("SITEDIFF_DIFF_TOLERANCE未生效: %v", cfg.Diff.Tolerance)
	}
}

func TestMergeCLIFlags(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.MergeCLIFlags(CLIOverrides{
		SiteFile:    "other.yml",
		LogLevel:    "debug",
		Concurrency: 8,
		Device:      "mobile",
		Browser:     "edge",
		Mode:        "static",
	})

	if cfg.Run.SiteFile != "other.yml" || cfg.Logging.Level != "debug" || cfg.Run.Concurrency != 8 {
		t.Errorf("命令行参数未生效: %+v", cfg)
	}
	if cfg.Run.Viewport != "mobile" || cfg.Run.Browser != "edge" || cfg.Run.CrawlMode != "static" {
		t.Errorf("命令行参数未生效: %+v", cfg.Run)
	}
	if !cfg.Run.UseCache {
		t.Errorf("未指定--no-cache时不应关闭缓存")
	}

	// 零值不覆盖
	cfg.MergeCLIFlags(CLIOverrides{})
	if cfg.Run.Concurrency != 8 {
		t.Errorf("零值不应覆盖配置: %d", cfg.Run.Concurrency)
	}
}

func TestOutputPaths(t *testing.T) {
	o := OutputConfig{BaseDir: "out", CacheDir: "cache", ImagesDir: "images", ReportsDir: "/abs/reports"}
	if got := o.DiffPath(); got != filepath.Join("out", "images", "diff") {
		t.Errorf("DiffPath = %s", got)
	}
	if got := o.ReportsPath(); got != "/abs/reports" {
		t.Errorf("绝对路径不应拼接base_dir: %s", got)
	}
}

func TestCookieManager(t *testing.T) {
	configCookies := []models.Cookie{
		{Name: "session", Value: "from-config"},
		{Name: "lang", Value: "en"},
	}

	t.Run("命令行覆盖配置", func(t *testing.T) {
		cm, err := NewCookieManager(configCookies, []string{"session=from-cli", "debug=1"})
		if err != nil {
			t.Fatalf("创建CookieManager失败: %v", err)
		}
		got, err := cm.GetCookies()
		if err != nil {
			t.Fatalf("GetCookies失败: %v", err)
		}
		want := []models.Cookie{
			{Name: "session", Value: "from-cli"},
			{Name: "lang", Value: "en"},
			{Name: "debug", Value: "1"},
		}
		if len(got) != len(want) {
			t.Fatalf("Cookie数量 = %d, 期望 %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("第%d个Cookie = %+v, 期望 %+v", i, got[i], want[i])
			}
		}
	})

	t.Run("命令行格式错误", func(t *testing.T) {
		if _, err := NewCookieManager(nil, []string{"novalue"}); err == nil {
			t.Errorf("期望解析错误")
		}
	})

	t.Run("非法Cookie", func(t *testing.T) {
		cm, err := NewCookieManager([]models.Cookie{{Name: "bad name", Value: "x"}}, nil)
		if err != nil {
			t.Fatalf("创建CookieManager失败: %v", err)
		}
		_, err = cm.GetCookies()
		var ve *models.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("期望ValidationError,实际为 %v", err)
		}
	})

	t.Run("日志输出脱敏", func(t *testing.T) {
		cm, _ := NewCookieManager(configCookies, nil)
		safe := cm.GetSafeCookies()
		if strings.Contains(safe, "from-config") {
			t.Errorf("脱敏输出包含明文: %s", safe)
		}
	})

	var _ models.CookieProvider = (*CookieManager)(nil)
}
