package main

import (
	"fmt"

	"github.com/RecoveryAshes/SiteDiff/internal/models"
)

// MaxConcurrency 并发单元数上限,每个单元会启动两个浏览器
const MaxConcurrency = 64

// ValidateFlags 验证命令行标志,零值表示未指定
func ValidateFlags(concurrency int, device, browserName, mode string) error {
	if concurrency < 0 || concurrency > MaxConcurrency {
		return fmt.Errorf("并发单元数必须在1-%d之间,当前值: %d", MaxConcurrency, concurrency)
	}

	if device != "" {
		if _, err := models.ViewportFor(device); err != nil {
			return err
		}
	}

	if browserName != "" {
		if _, err := models.ParseBrowserKind(browserName); err != nil {
			return err
		}
	}

	if mode != "" {
		if _, err := models.ParseCrawlMode(mode); err != nil {
			return err
		}
	}

	return nil
}
