package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/RecoveryAshes/SiteDiff/internal/config"
	"github.com/RecoveryAshes/SiteDiff/internal/core"
	"github.com/RecoveryAshes/SiteDiff/internal/models"
	"github.com/RecoveryAshes/SiteDiff/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile     string
	siteFile       string
	logLevel       string
	cookies        []string
	validateConfig bool

	// 运行参数
	concurrency int
	device      string
	browserName string
	mode        string
	noCache     bool
	failOnDiff  bool
	noProgress  bool
)

// appConfig 由PersistentPreRunE加载
var appConfig *core.Config

var rootCmd = &cobra.Command{
	Use:   "sitediff",
	Short: "站点视觉回归对比工具",
	Long: `SiteDiff - 站点视觉回归对比工具

爬取基准站点(origin)的所有页面,在待对比站点(destination)上打开相同路径,
整页截图后逐像素比对,输出存在差异的页面和差异图。

站点配置示例 (config.yml):
  origin: "https://www.example.com"
  destination: "https://staging.example.com"

示例:
  # 完整对比 (默认动作)
  sitediff --site config.yml -n 4 --device mobile

  # 仅重建页面缓存
  sitediff crawl --no-cache

  # 注入Cookie
  sitediff --cookie "session=abc" --cookie "lang=zh"

  # 查看生效的站点配置
  sitediff --validate-config

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		cfg.MergeCLIFlags(core.CLIOverrides{
			SiteFile:    siteFile,
			LogLevel:    logLevel,
			Concurrency: concurrency,
			Device:      device,
			Browser:     browserName,
			Mode:        mode,
			NoCache:     noCache,
		})

		logConfig := utils.LogConfig{
			Level:    cfg.Logging.Level,
			Dir:      cfg.Logging.LogDir,
			Rotation: utils.Rotation(cfg.Logging.Rotation),
			NoColor:  os.Getenv("NO_COLOR") != "",
		}
		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		appConfig = cfg
		return nil
	},
	RunE: runCompare,
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "爬取(或读取缓存)并对比两个站点",
	RunE:  runCompare,
}

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "仅爬取基准站点并写入页面缓存",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		runner, err := newRunner()
		if err != nil {
			return err
		}
		if err := runner.Bootstrap(); err != nil {
			return err
		}

		pages, err := runner.Crawl(ctx)
		if err != nil {
			return fmt.Errorf("爬取失败: %w", err)
		}

		fmt.Printf("\n共发现 %d 个页面,缓存文件: %s\n", len(pages), runner.CachePath())
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("SiteDiff %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

// runCompare 完整对比流程
func runCompare(cmd *cobra.Command, args []string) error {
	if validateConfig {
		return printSiteConfig()
	}

	ctx, stop := signalContext()
	defer stop()

	runner, err := newRunner()
	if err != nil {
		return err
	}

	report, runErr := runner.Run(ctx)
	if report != nil {
		runner.PrintSummary(report)
	}
	if runErr != nil {
		return runErr
	}

	if failOnDiff && report.Result.HasDiff() {
		return fmt.Errorf("发现 %d 个差异页面", report.Result.DiffCount)
	}
	return nil
}

// loadSite 加载站点配置并合并命令行Cookie
func loadSite() (*models.SiteConfig, error) {
	if err := ValidateFlags(concurrency, device, browserName, mode); err != nil {
		return nil, err
	}

	site, err := config.NewSiteConfigLoader(appConfig.Run.SiteFile).LoadConfig()
	if err != nil {
		return nil, err
	}

	cookieManager, err := core.NewCookieManager(site.Cookies, cookies)
	if err != nil {
		return nil, fmt.Errorf("解析Cookie失败: %w", err)
	}
	merged, err := cookieManager.GetCookies()
	if err != nil {
		return nil, err
	}
	site.Cookies = merged

	return site, nil
}

func newRunner() (*core.Runner, error) {
	site, err := loadSite()
	if err != nil {
		return nil, err
	}
	return core.NewRunner(core.RunnerOptions{
		Config:       appConfig,
		Site:         site,
		Output:       os.Stdout,
		ShowProgress: !noProgress,
	})
}

// printSiteConfig 输出生效的站点配置 (Cookie已脱敏)
func printSiteConfig() error {
	utils.Info("🔍 验证站点配置...")
	site, err := loadSite()
	if err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}
	utils.Info("✅ 配置验证通过!")
	return config.DumpYAML(os.Stdout, site)
}

// signalContext 收到Ctrl+C或SIGTERM时取消,进行中的比对会尽快结束并输出已有结果
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			utils.Warnf("收到中断信号: %v, 正在停止...", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "应用配置文件路径")
	rootCmd.PersistentFlags().StringVarP(&siteFile, "site", "s", "", "站点配置文件路径 (默认 config.yml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().StringArrayVar(&cookies, "cookie", []string{}, "注入Cookie,格式: 'name=value',可多次指定,覆盖站点配置")
	rootCmd.PersistentFlags().BoolVar(&validateConfig, "validate-config", false, "验证并输出生效的站点配置")

	// 运行参数
	rootCmd.PersistentFlags().IntVarP(&concurrency, "concurrency", "n", 0, "并发比对单元数 (环境变量 CORES)")
	rootCmd.PersistentFlags().StringVarP(&device, "device", "d", "", "设备类型 (desktop|tablet|mobile,环境变量 DEVICE)")
	rootCmd.PersistentFlags().StringVarP(&browserName, "browser", "b", "", "浏览器 (chrome|firefox|edge,环境变量 BROWSER)")
	rootCmd.PersistentFlags().StringVarP(&mode, "mode", "m", "", "爬取模式 (dynamic|static)")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "忽略页面缓存,重新爬取")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "不显示进度条")
	rootCmd.Flags().BoolVar(&failOnDiff, "fail-on-diff", false, "存在差异页面时以非零状态码退出")
	compareCmd.Flags().BoolVar(&failOnDiff, "fail-on-diff", false, "存在差异页面时以非零状态码退出")

	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
