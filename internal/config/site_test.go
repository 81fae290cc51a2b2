package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RecoveryAshes/SiteDiff/internal/models"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("写入测试文件失败: %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	writeFile(t, path, `
origin: "https://prod.example.com"
destination: "https://staging.example.com"
cookies:
  - name: "session"
    value: "abc"
blacklistSinglePaths:
  - "/logout"
blacklistChildrenPaths:
  - "/admin"
  - "https://prod.example.com/blog"
`)

	site, err := NewSiteConfigLoader(path).LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig失败: %v", err)
	}

	if site.Origin != "https://prod.example.com" || site.Destination != "https://staging.example.com" {
		t.Errorf("站点地址不正确: %+v", site)
	}
	if len(site.Cookies) != 1 || site.Cookies[0].Name != "session" || site.Cookies[0].Value != "abc" {
		t.Errorf("Cookie解析不正确: %+v", site.Cookies)
	}
	if len(site.BlacklistSinglePaths) != 1 || site.BlacklistSinglePaths[0] != "/logout" {
		t.Errorf("单页黑名单解析不正确: %v", site.BlacklistSinglePaths)
	}
	if len(site.BlacklistChildrenPaths) != 2 {
		t.Errorf("目录黑名单解析不正确: %v", site.BlacklistChildrenPaths)
	}
}

func TestLoadConfigGeneratesTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yml")

	_, err := NewSiteConfigLoader(path).LoadConfig()
	if !errors.Is(err, ErrTemplateGenerated) {
		t.Fatalf("期望ErrTemplateGenerated,实际为 %v", err)
	}

	content, readErr := os.ReadFile(path)
	if readErr != nil {
		t.Fatalf("模板未生成: %v", readErr)
	}
	if !strings.Contains(string(content), "blacklistChildrenPaths") {
		t.Errorf("模板内容不完整")
	}

	// 模板本身可以被解析
	site, err := NewSiteConfigLoader(path).LoadConfig()
	if err != nil {
		t.Fatalf("解析模板失败: %v", err)
	}
	if site.Origin == "" {
		t.Errorf("模板应包含origin示例")
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"origin缺失", "destination: \"https://b.example.com\"\n"},
		{"destination协议错误", "origin: \"https://a.example.com\"\ndestination: \"ftp://b.example.com\"\n"},
		{"YAML语法错误", "origin: [unclosed\n"},
		{"Cookie名称为空", "origin: \"https://a.com\"\ndestination: \"https://b.com\"\ncookies:\n  - value: \"x\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yml")
			writeFile(t, path, tt.content)

			_, err := NewSiteConfigLoader(path).LoadConfig()
			var ce *models.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("期望ConfigError,实际为 %v", err)
			}
			if ce.FilePath != path {
				t.Errorf("FilePath = %s, 期望 %s", ce.FilePath, path)
			}
		})
	}
}

func TestValidateFileSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	writeFile(t, path, "# "+strings.Repeat("x", MaxConfigFileSize)+"\n")

	err := NewSiteConfigLoader(path).ValidateFileSize()
	var ce *models.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("超大配置文件应被拒绝,实际为 %v", err)
	}
}

func TestDefaultConfigPath(t *testing.T) {
	if got := NewSiteConfigLoader("").Path(); got != DefaultConfigFile {
		t.Errorf("默认路径 = %s, 期望 %s", got, DefaultConfigFile)
	}
}

func TestDumpYAMLRedactsCookies(t *testing.T) {
	site := &models.SiteConfig{
		Origin:      "https://a.example.com",
		Destination: "https://b.example.com",
		Cookies:     []models.Cookie{{Name: "session", Value: "top-secret"}},
	}

	var buf bytes.Buffer
	if err := DumpYAML(&buf, site); err != nil {
		t.Fatalf("DumpYAML失败: %v", err)
	}
	out := buf.String()

	if strings.Contains(out, "top-secret") {
		t.Errorf("输出不应包含Cookie明文:\n%s", out)
	}
	if !strings.Contains(out, "origin: https://a.example.com") {
		t.Errorf("输出缺少origin:\n%s", out)
	}
	if !strings.Contains(out, "blacklistSinglePaths") {
		t.Errorf("输出应使用配置文件中的键名:\n%s", out)
	}
	if site.Cookies[0].Value != "top-secret" {
		t.Errorf("DumpYAML不应修改入参")
	}
}
