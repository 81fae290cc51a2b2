package models

import (
	"fmt"
	"strings"
)

// CliCookies 表示命令行传递的Cookie列表
// 每个字符串格式为 "name=value"
type CliCookies []string

// Parse 将字符串列表解析为Cookie
// 同名Cookie以后出现的为准
func (cc CliCookies) Parse() ([]Cookie, error) {
	result := make([]Cookie, 0, len(cc))
	index := make(map[string]int)
	for i, s := range cc {
		cookie, err := parseCookieString(s)
		if err != nil {
			return nil, fmt.Errorf("参数 --cookie 第%d项格式错误: %w", i+1, err)
		}
		if pos, ok := index[cookie.Name]; ok {
			result[pos] = cookie
			continue
		}
		index[cookie.Name] = len(result)
		result = append(result, cookie)
	}
	return result, nil
}

// parseCookieString 解析单个Cookie字符串 "name=value"
func parseCookieString(s string) (Cookie, error) {
	parts := strings.SplitN(s, "=", 2)
	if len(parts) != 2 {
		return Cookie{}, fmt.Errorf("格式错误: 缺少等号分隔符,应为 'name=value'")
	}

	name := strings.TrimSpace(parts[0])
	if name == "" {
		return Cookie{}, fmt.Errorf("Cookie名称不能为空")
	}

	return Cookie{Name: name, Value: strings.TrimSpace(parts[1])}, nil
}

// CookieProvider 定义Cookie提供者接口
type CookieProvider interface {
	// GetCookies 返回按优先级合并后的Cookie (配置 < 命令行)
	GetCookies() ([]Cookie, error)
}

// ValidationError Cookie验证错误
type ValidationError struct {
	// Field 出错的字段 ("name" 或 "value")
	Field string

	// CookieName Cookie名称
	CookieName string

	// Reason 错误原因
	Reason string

	// Suggestion 修复建议 (可选)
	Suggestion string
}

// Error 实现error接口
func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("Cookie验证失败 [%s]: %s", e.CookieName, e.Reason)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (建议: %s)", e.Suggestion)
	}
	return msg
}

// ConfigError 配置文件错误
type ConfigError struct {
	// FilePath 配置文件路径
	FilePath string

	// Cause 底层错误
	Cause error
}

// Error 实现error接口
func (e *ConfigError) Error() string {
	return fmt.Sprintf("配置文件错误 [%s]: %v", e.FilePath, e.Cause)
}

// Unwrap 支持errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Cause
}
