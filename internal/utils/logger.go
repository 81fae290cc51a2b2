package utils

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	MainLogFile  = "sitediff.log"
	ErrorLogFile = "sitediff_error.log"
)

// Logger 全局日志器,InitLogger之前只输出到stderr
var Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

// Rotation 日志文件轮转策略 (大小单位MB,保留时间单位天)
type Rotation struct {
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// LogConfig 日志配置
type LogConfig struct {
	Level    string
	Dir      string
	Rotation Rotation
	NoColor  bool

	// Console 控制台输出,为nil时使用stdout (进度条占用stderr)
	Console io.Writer
}

// DefaultLogConfig 默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level: "info",
		Dir:   "logs",
		Rotation: Rotation{
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		},
	}
}

// ParseLevel 解析日志级别,空值或非法值回退为info
func ParseLevel(s string) zerolog.Level {
	if s == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func rotatingFile(dir, name string, r Rotation) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, name),
		MaxSize:    r.MaxSize,
		MaxBackups: r.MaxBackups,
		MaxAge:     r.MaxAge,
		Compress:   r.Compress,
	}
}

// InitLogger 初始化全局日志
// 控制台与sitediff.log接收全部级别,sitediff_error.log只接收error及以上
func InitLogger(config LogConfig) error {
	if err := os.MkdirAll(config.Dir, 0755); err != nil {
		return err
	}

	level := ParseLevel(config.Level)
	zerolog.SetGlobalLevel(level)

	console := config.Console
	if console == nil {
		console = os.Stdout
	}

	writer := zerolog.MultiLevelWriter(
		zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339, NoColor: config.NoColor},
		rotatingFile(config.Dir, MainLogFile, config.Rotation),
		&LevelFilter{Writer: rotatingFile(config.Dir, ErrorLogFile, config.Rotation), MinLevel: zerolog.ErrorLevel},
	)

	Logger = zerolog.New(writer).With().Timestamp().Caller().Logger()
	log.Logger = Logger

	Logger.Debug().
		Str("level", level.String()).
		Str("dir", config.Dir).
		Msg("日志已初始化")
	return nil
}

// LevelFilter 只转发不低于MinLevel的记录
// zerolog.MultiLevelWriter对LevelWriter调用WriteLevel,不带级别的Write一律丢弃
type LevelFilter struct {
	Writer   io.Writer
	MinLevel zerolog.Level
}

func (f *LevelFilter) Write(p []byte) (int, error) {
	return len(p), nil
}

func (f *LevelFilter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < f.MinLevel {
		return len(p), nil
	}
	return f.Writer.Write(p)
}

func Info(msg string) { Logger.Info().Msg(msg) }

func Warn(msg string) { Logger.Warn().Msg(msg) }

func Infof(format string, args ...interface{}) { Logger.Info().Msgf(format, args...) }

func Warnf(format string, args ...interface{}) { Logger.Warn().Msgf(format, args...) }

func Errorf(format string, args ...interface{}) { Logger.Error().Msgf(format, args...) }

func Debugf(format string, args ...interface{}) { Logger.Debug().Msgf(format, args...) }
