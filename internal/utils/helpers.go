package utils

import (
	"fmt"
	"os"
)

// EnsureDirs 创建运行所需的目录,已存在时忽略
func EnsureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建目录失败 %s: %w", dir, err)
		}
	}
	return nil
}

// FormatBytes 以MB/GB显示字节数
func FormatBytes(n uint64) string {
	const gb = 1024 * 1024 * 1024
	if n >= gb {
		return fmt.Sprintf("%.2f GB", float64(n)/gb)
	}
	return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
}
