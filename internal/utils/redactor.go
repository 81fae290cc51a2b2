package utils

import (
	"strings"

	"github.com/RecoveryAshes/SiteDiff/internal/models"
)

var (
	// SensitiveKeywords 敏感Cookie名称关键字,命中时值完全隐藏
	SensitiveKeywords = []string{
		"session",
		"token",
		"auth",
		"secret",
		"password",
		"jwt",
		"sid",
	}
)

// CookieRedactor Cookie脱敏器
// 日志和配置导出只输出脱敏后的值
type CookieRedactor struct {
	sensitiveKeywords []string
}

// NewCookieRedactor 创建Cookie脱敏器
func NewCookieRedactor() *CookieRedactor {
	return &CookieRedactor{
		sensitiveKeywords: SensitiveKeywords,
	}
}

// IsSensitiveCookie 按名称关键字判断Cookie是否敏感
func (cr *CookieRedactor) IsSensitiveCookie(name string) bool {
	nameLower := strings.ToLower(name)
	for _, keyword := range cr.sensitiveKeywords {
		if strings.Contains(nameLower, keyword) {
			return true
		}
	}
	return false
}

// RedactValue 脱敏单个Cookie值
func (cr *CookieRedactor) RedactValue(name, value string) string {
	if value == "" {
		return value
	}

	// 敏感Cookie: 完全隐藏
	if cr.IsSensitiveCookie(name) {
		return "***"
	}

	// 其余长值: 显示前4位+后4位
	if len(value) > 12 {
		return value[:4] + "***" + value[len(value)-4:]
	}
	return value
}

// Redact 返回脱敏后的Cookie副本,不修改入参
func (cr *CookieRedactor) Redact(cookies []models.Cookie) []models.Cookie {
	result := make([]models.Cookie, 0, len(cookies))
	for _, c := range cookies {
		result = append(result, models.Cookie{Name: c.Name, Value: cr.RedactValue(c.Name, c.Value)})
	}
	return result
}

// RedactToString 格式化为 "a=1; b=***" (用于日志输出)
func (cr *CookieRedactor) RedactToString(cookies []models.Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cr.Redact(cookies) {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}
