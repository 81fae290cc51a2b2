package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/RecoveryAshes/SiteDiff/internal/models"
)

const (
	// MaxCookieValueLength Cookie值最大长度 (4KB)
	MaxCookieValueLength = 4096
)

var (
	// ReservedCookiePrefixes 浏览器对这些前缀有额外约束,不允许通过配置注入
	ReservedCookiePrefixes = []string{
		"__Host-",
		"__Secure-",
	}
)

// CookieValidator 验证Cookie是否符合RFC 6265
type CookieValidator struct {
	// nameRegex 名称必须是token (不含分隔符和控制字符)
	nameRegex *regexp.Regexp

	// valueRegex 值为cookie-octet,可选双引号包裹
	valueRegex *regexp.Regexp

	maxValueLength int
}

// NewCookieValidator 创建验证器
func NewCookieValidator() *CookieValidator {
	return &CookieValidator{
		nameRegex:      regexp.MustCompile(`^[!#$%&'*+\-.^_` + "`" + `|~0-9A-Za-z]+$`),
		valueRegex:     regexp.MustCompile(`^"?[\x21\x23-\x2B\x2D-\x3A\x3C-\x5B\x5D-\x7E]*"?$`),
		maxValueLength: MaxCookieValueLength,
	}
}

// ValidateName 验证Cookie名称
func (cv *CookieValidator) ValidateName(name string) error {
	if name == "" {
		return &models.ValidationError{
			Field:      "name",
			CookieName: name,
			Reason:     "Cookie名称不能为空",
		}
	}

	if !cv.nameRegex.MatchString(name) {
		return &models.ValidationError{
			Field:      "name",
			CookieName: name,
			Reason:     "Cookie名称包含非法字符",
			Suggestion: "仅使用字母、数字和 !#$%&'*+-.^_`|~",
		}
	}

	for _, prefix := range ReservedCookiePrefixes {
		if strings.HasPrefix(name, prefix) {
			return &models.ValidationError{
				Field:      "name",
				CookieName: name,
				Reason:     fmt.Sprintf("不支持注入带 %s 前缀的Cookie", prefix),
				Suggestion: "去掉前缀后重试",
			}
		}
	}

	return nil
}

// ValidateValue 验证Cookie值
func (cv *CookieValidator) ValidateValue(name, value string) error {
	if len(value) > cv.maxValueLength {
		return &models.ValidationError{
			Field:      "value",
			CookieName: name,
			Reason:     fmt.Sprintf("Cookie值过长: %d 字节 (最大 %d)", len(value), cv.maxValueLength),
			Suggestion: fmt.Sprintf("将值缩短至 %d 字节以内", cv.maxValueLength),
		}
	}

	if !cv.valueRegex.MatchString(value) {
		return &models.ValidationError{
			Field:      "value",
			CookieName: name,
			Reason:     "Cookie值包含非法字符 (空格、逗号、分号、反斜杠或非ASCII)",
			Suggestion: "对值进行URL编码",
		}
	}

	return nil
}

// ValidateCookie 验证名称+值
func (cv *CookieValidator) ValidateCookie(c models.Cookie) error {
	if err := cv.ValidateName(c.Name); err != nil {
		return err
	}
	return cv.ValidateValue(c.Name, c.Value)
}

// Validate 验证全部Cookie,返回第一个ValidationError
func (cv *CookieValidator) Validate(cookies []models.Cookie) error {
	for _, c := range cookies {
		if err := cv.ValidateCookie(c); err != nil {
			return err
		}
	}
	return nil
}
