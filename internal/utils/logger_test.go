package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func initTestLogger(t *testing.T, level string) (string, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	console := &bytes.Buffer{}

	config := DefaultLogConfig()
	config.Dir = dir
	config.Level = level
	config.Rotation.Compress = false
	config.NoColor = true
	config.Console = console

	if err := InitLogger(config); err != nil {
		t.Fatalf("InitLogger() error = %v", err)
	}
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })
	return dir, console
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取日志失败: %v", err)
	}
	return string(data)
}

func TestInitLogger_Routing(t *testing.T) {
	dir, console := initTestLogger(t, "debug")

	Infof("开始对比: %s", "https://prod.example.com")
	Debugf("页面一致: %s", "/a")
	Errorf("页面比对失败: %s", "/b")

	mainLog := readLog(t, filepath.Join(dir, MainLogFile))
	for _, want := range []string{"开始对比", "页面一致", "页面比对失败"} {
		if !strings.Contains(mainLog, want) {
			t.Errorf("主日志缺少 %q", want)
		}
	}

	errorLog := readLog(t, filepath.Join(dir, ErrorLogFile))
	if !strings.Contains(errorLog, "页面比对失败") {
		t.Errorf("错误日志缺少error记录: %s", errorLog)
	}
	if strings.Contains(errorLog, "开始对比") || strings.Contains(errorLog, "页面一致") {
		t.Errorf("错误日志不应包含低级别记录: %s", errorLog)
	}

	if !strings.Contains(console.String(), "开始对比") {
		t.Errorf("控制台缺少输出: %s", console.String())
	}
}

func TestInitLogger_LevelGate(t *testing.T) {
	dir, console := initTestLogger(t, "warn")

	Info("不应输出")
	Warn("资源紧张")

	mainLog := readLog(t, filepath.Join(dir, MainLogFile))
	if strings.Contains(mainLog, "不应输出") || strings.Contains(console.String(), "不应输出") {
		t.Error("低于全局级别的记录不应输出")
	}
	if !strings.Contains(mainLog, "资源紧张") {
		t.Errorf("主日志缺少warn记录: %s", mainLog)
	}
}

func TestLevelFilter(t *testing.T) {
	tests := []struct {
		name  string
		level zerolog.Level
		want  bool
	}{
		{"调试级别被过滤", zerolog.DebugLevel, false},
		{"警告级别被过滤", zerolog.WarnLevel, false},
		{"错误级别写入", zerolog.ErrorLevel, true},
		{"致命级别写入", zerolog.FatalLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			f := &LevelFilter{Writer: &buf, MinLevel: zerolog.ErrorLevel}
			n, err := f.WriteLevel(tt.level, []byte("line\n"))
			if err != nil || n != 5 {
				t.Fatalf("WriteLevel() = %d, %v", n, err)
			}
			if got := buf.Len() > 0; got != tt.want {
				t.Errorf("是否写入 = %v, want %v", got, tt.want)
			}
		})
	}

	var buf bytes.Buffer
	f := &LevelFilter{Writer: &buf, MinLevel: zerolog.ErrorLevel}
	if n, _ := f.Write([]byte("no level\n")); n != 9 || buf.Len() != 0 {
		t.Errorf("不带级别的写入应被丢弃: n=%d buf=%q", n, buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"trace", zerolog.TraceLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run("级别_"+tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDefaultLogConfig(t *testing.T) {
	config := DefaultLogConfig()
	if config.Level != "info" || config.Dir != "logs" {
		t.Errorf("默认配置 = %+v", config)
	}
	if config.Rotation.MaxSize != 10 || config.Rotation.MaxBackups != 3 || config.Rotation.MaxAge != 28 {
		t.Errorf("默认轮转配置 = %+v", config.Rotation)
	}
}
