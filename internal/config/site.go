// Package config 加载站点配置文件 (config.yml)
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/RecoveryAshes/SiteDiff/internal/models"
	"github.com/RecoveryAshes/SiteDiff/internal/utils"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFile 默认站点配置文件路径
	DefaultConfigFile = "config.yml"

	// MaxConfigFileSize 配置文件最大大小 (1MB)
	MaxConfigFileSize = 1 * 1024 * 1024
)

// ErrTemplateGenerated 配置文件不存在,已生成模板,需要用户填写后重新运行
var ErrTemplateGenerated = errors.New("已生成站点配置模板,请填写origin与destination后重新运行")

//go:embed config_template.yaml
var defaultSiteTemplate string

// SiteConfigLoader 站点配置加载器
// 负责加载、验证和解析站点配置文件
type SiteConfigLoader struct {
	configPath string
}

// NewSiteConfigLoader 创建站点配置加载器
func NewSiteConfigLoader(configPath string) *SiteConfigLoader {
	if configPath == "" {
		configPath = DefaultConfigFile
	}
	return &SiteConfigLoader{
		configPath: configPath,
	}
}

// Path 返回配置文件路径
func (l *SiteConfigLoader) Path() string {
	return l.configPath
}

// EnsureConfigExists 确保配置文件存在,不存在时写入模板
// 返回值created表示本次生成了模板
func (l *SiteConfigLoader) EnsureConfigExists() (created bool, err error) {
	if _, statErr := os.Stat(l.configPath); !os.IsNotExist(statErr) {
		return false, nil
	}

	if dir := filepath.Dir(l.configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return false, fmt.Errorf("无法创建配置目录 [%s]: %w", dir, err)
		}
	}

	if err := os.WriteFile(l.configPath, []byte(defaultSiteTemplate), 0644); err != nil {
		return false, fmt.Errorf("无法生成配置文件 [%s]: %w", l.configPath, err)
	}
	utils.Warnf("站点配置文件不存在,已生成模板: %s", l.configPath)
	return true, nil
}

// ValidateFileSize 验证配置文件大小是否在限制内
func (l *SiteConfigLoader) ValidateFileSize() error {
	info, err := os.Stat(l.configPath)
	if err != nil {
		return fmt.Errorf("无法读取配置文件信息 [%s]: %w", l.configPath, err)
	}

	if info.Size() > MaxConfigFileSize {
		return &models.ConfigError{
			FilePath: l.configPath,
			Cause: fmt.Errorf("配置文件过大: %d 字节 (最大 %d 字节)",
				info.Size(), MaxConfigFileSize),
		}
	}

	return nil
}

// LoadConfig 加载站点配置
// 执行流程:
//  1. 确保配置文件存在 (不存在则生成模板并返回ErrTemplateGenerated)
//  2. 验证文件大小
//  3. 使用Viper解析YAML并绑定到SiteConfig
//  4. 验证origin与destination
func (l *SiteConfigLoader) LoadConfig() (*models.SiteConfig, error) {
	created, err := l.EnsureConfigExists()
	if err != nil {
		return nil, err
	}
	if created {
		return nil, &models.ConfigError{FilePath: l.configPath, Cause: ErrTemplateGenerated}
	}

	if err := l.ValidateFileSize(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(l.configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, &models.ConfigError{
				FilePath: l.configPath,
				Cause:    fmt.Errorf("配置文件被锁定: %w", err),
			}
		}
		return nil, &models.ConfigError{
			FilePath: l.configPath,
			Cause:    err,
		}
	}

	var site models.SiteConfig
	if err := v.Unmarshal(&site); err != nil {
		return nil, &models.ConfigError{
			FilePath: l.configPath,
			Cause:    fmt.Errorf("配置绑定失败: %w", err),
		}
	}

	if err := site.Validate(); err != nil {
		return nil, &models.ConfigError{
			FilePath: l.configPath,
			Cause:    err,
		}
	}

	utils.Debugf("站点配置已加载: %s -> %s (Cookie %d 个, 单页黑名单 %d 条, 目录黑名单 %d 条)",
		site.Origin, site.Destination, len(site.Cookies),
		len(site.BlacklistSinglePaths), len(site.BlacklistChildrenPaths))

	return &site, nil
}

// DumpYAML 以YAML输出站点配置,Cookie值先脱敏
func DumpYAML(w io.Writer, site *models.SiteConfig) error {
	safe := site.Clone()
	safe.Cookies = utils.NewCookieRedactor().Redact(site.Cookies)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&safe); err != nil {
		return fmt.Errorf("序列化站点配置失败: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("序列化站点配置失败: %w", err)
	}

	_, err := w.Write(buf.Bytes())
	return err
}
