package models

import (
	"fmt"
	"net/url"

	"github.com/google/uuid"
)

// ValidateURL 验证站点地址: 必须是带主机名的http/https绝对地址
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("URL不能为空")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("URL格式无效: %w", err)
	}
	switch {
	case parsed.Scheme == "":
		return fmt.Errorf("URL缺少协议(http/https): %s", rawURL)
	case parsed.Scheme != "http" && parsed.Scheme != "https":
		return fmt.Errorf("URL协议必须是http或https: %s", rawURL)
	case parsed.Host == "":
		return fmt.Errorf("URL缺少主机名: %s", rawURL)
	}
	return nil
}

// generateID 生成运行ID
func generateID() string {
	return uuid.New().String()
}
