package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RecoveryAshes/SiteDiff/internal/diff"
	"github.com/RecoveryAshes/SiteDiff/internal/models"
	"github.com/spf13/viper"
)

// Config 应用程序配置
type Config struct {
	Run      RunConfig      `mapstructure:"run"`
	Diff     DiffConfig     `mapstructure:"diff"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Output   OutputConfig   `mapstructure:"output"`
	Resource ResourceConfig `mapstructure:"resource"`
}

// RunConfig 运行配置
type RunConfig struct {
	SiteFile          string        `mapstructure:"site_file"`
	Concurrency       int           `mapstructure:"concurrency"`
	Viewport          string        `mapstructure:"viewport"`
	Browser           string        `mapstructure:"browser"`
	BrowserBin        string        `mapstructure:"browser_bin"`
	Headless          bool          `mapstructure:"headless"`
	CrawlMode         string        `mapstructure:"crawl_mode"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	MaxPages          int           `mapstructure:"max_pages"`
	UseCache          bool          `mapstructure:"use_cache"`
}

// DiffConfig 比对配置
type DiffConfig struct {
	Engine     string  `mapstructure:"engine"`
	Tolerance  float64 `mapstructure:"tolerance"`
	SaveImages bool    `mapstructure:"save_images"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	BaseDir    string `mapstructure:"base_dir"`
	CacheDir   string `mapstructure:"cache_dir"`
	ImagesDir  string `mapstructure:"images_dir"`
	ReportsDir string `mapstructure:"reports_dir"`
}

// ResourceConfig 资源限制配置
type ResourceConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	SafetyReserveMB int  `mapstructure:"safety_reserve_mb"`
	UnitMemoryMB    int  `mapstructure:"unit_memory_mb"`
	CPUThreshold    int  `mapstructure:"cpu_threshold"`
	MaxUnits        int  `mapstructure:"max_units"`
}

// LoadConfig 加载配置文件
// 优先级: 默认值 < 配置文件 < 环境变量
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		v.AddConfigPath("./configs")
		v.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".sitediff"))
		}
	}

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		// 配置文件不存在时使用默认值
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	v.SetDefault("run.site_file", "config.yml")
	v.SetDefault("run.concurrency", 1)
	v.SetDefault("run.viewport", "desktop")
	v.SetDefault("run.browser", string(models.BrowserChrome))
	v.SetDefault("run.browser_bin", "")
	v.SetDefault("run.headless", true)
	v.SetDefault("run.crawl_mode", string(models.ModeDynamic))
	v.SetDefault("run.navigation_timeout", "30s")
	v.SetDefault("run.max_pages", 0)
	v.SetDefault("run.use_cache", true)

	v.SetDefault("diff.engine", "pixelmatch")
	v.SetDefault("diff.tolerance", 0.95)
	v.SetDefault("diff.save_images", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	v.SetDefault("output.base_dir", ".")
	v.SetDefault("output.cache_dir", "cache")
	v.SetDefault("output.images_dir", "images")
	v.SetDefault("output.reports_dir", "reports")

	v.SetDefault("resource.enabled", true)
	v.SetDefault("resource.safety_reserve_mb", 512)
	v.SetDefault("resource.unit_memory_mb", 600)
	v.SetDefault("resource.cpu_threshold", 90)
	v.SetDefault("resource.max_units", 0)
}

// bindEnv 绑定环境变量: SITEDIFF_RUN_CONCURRENCY 等,另外兼容 CORES/DEVICE/BROWSER
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("SITEDIFF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("run.concurrency", "SITEDIFF_RUN_CONCURRENCY", "CORES")
	_ = v.BindEnv("run.viewport", "SITEDIFF_RUN_VIEWPORT", "DEVICE")
	_ = v.BindEnv("run.browser", "SITEDIFF_RUN_BROWSER", "BROWSER")
}

// CLIOverrides 命令行参数,零值表示未指定
type CLIOverrides struct {
	SiteFile    string
	LogLevel    string
	Concurrency int
	Device      string
	Browser     string
	Mode        string
	NoCache     bool
}

// MergeCLIFlags 合并命令行参数到配置,命令行优先于配置文件
func (c *Config) MergeCLIFlags(o CLIOverrides) {
	if o.SiteFile != "" {
		c.Run.SiteFile = o.SiteFile
	}
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
	if o.Concurrency > 0 {
		c.Run.Concurrency = o.Concurrency
	}
	if o.Device != "" {
		c.Run.Viewport = o.Device
	}
	if o.Browser != "" {
		c.Run.Browser = o.Browser
	}
	if o.Mode != "" {
		c.Run.CrawlMode = o.Mode
	}
	if o.NoCache {
		c.Run.UseCache = false
	}
}

// Validate 校验枚举和数值配置
func (c *Config) Validate() error {
	if c.Run.Concurrency < 1 {
		return fmt.Errorf("并发单元数必须大于0: %d", c.Run.Concurrency)
	}
	if _, err := models.ViewportFor(c.Run.Viewport); err != nil {
		return err
	}
	if _, err := models.ParseBrowserKind(c.Run.Browser); err != nil {
		return err
	}
	if _, err := models.ParseCrawlMode(c.Run.CrawlMode); err != nil {
		return err
	}
	if _, err := diff.NewEngine(c.Diff.Engine); err != nil {
		return err
	}
	if c.Diff.Tolerance < 0 || c.Diff.Tolerance > 1 {
		return fmt.Errorf("容差必须在0到1之间: %v", c.Diff.Tolerance)
	}
	if c.Run.NavigationTimeout <= 0 {
		return fmt.Errorf("导航超时必须大于0: %v", c.Run.NavigationTimeout)
	}
	return nil
}

// path 将输出子目录拼接到base_dir下
func (o OutputConfig) path(sub string) string {
	if filepath.IsAbs(sub) {
		return sub
	}
	return filepath.Join(o.BaseDir, sub)
}

// CachePath 缓存目录
func (o OutputConfig) CachePath() string { return o.path(o.CacheDir) }

// ImagesPath 截图根目录
func (o OutputConfig) ImagesPath() string { return o.path(o.ImagesDir) }

// DiffPath 差异图目录
func (o OutputConfig) DiffPath() string { return filepath.Join(o.ImagesPath(), "diff") }

// ReportsPath 报告目录
func (o OutputConfig) ReportsPath() string { return o.path(o.ReportsDir) }
