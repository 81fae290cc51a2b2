package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/RecoveryAshes/SiteDiff/internal/browser"
	"github.com/RecoveryAshes/SiteDiff/internal/config"
	"github.com/RecoveryAshes/SiteDiff/internal/models"
	"github.com/RecoveryAshes/SiteDiff/internal/utils"
	"github.com/shirou/gopsutil/v3/mem"
)

func main() {
	fmt.Println("==============================================")
	fmt.Println("  SiteDiff 环境验证")
	fmt.Println("==============================================")
	fmt.Println()

	allOK := true

	goVersion := runtime.Version()
	fmt.Printf("✅ Go版本: %s\n", goVersion)
	if strings.HasPrefix(goVersion, "go1.1") || strings.HasPrefix(goVersion, "go1.20") ||
		strings.HasPrefix(goVersion, "go1.21") || strings.HasPrefix(goVersion, "go1.22") {
		fmt.Println("⚠️  警告: 建议使用Go 1.23+版本")
	}

	fmt.Printf("✅ 操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	// 浏览器
	if path, err := browser.LookupBrowser(models.BrowserChrome, ""); err == nil && path != "" {
		fmt.Printf("✅ Chrome/Chromium: %s\n", path)
	} else {
		fmt.Println("⚠️  未找到Chrome/Chromium - 首次运行时将自动下载")
	}
	if path, err := browser.LookupBrowser(models.BrowserEdge, ""); err == nil {
		fmt.Printf("✅ Microsoft Edge: %s\n", path)
	} else {
		fmt.Println("⚠️  未找到Microsoft Edge - 仅影响 --browser edge")
	}

	// 内存: 每个并发单元运行两个浏览器
	if vm, err := mem.VirtualMemory(); err == nil {
		fmt.Printf("✅ 可用内存: %s / %s\n", utils.FormatBytes(vm.Available), utils.FormatBytes(vm.Total))
		if vm.Available < 1024*1024*1024 {
			fmt.Println("⚠️  可用内存不足1GB,建议并发单元数设为1")
		}
	} else {
		fmt.Printf("⚠️  无法读取内存信息: %v\n", err)
	}

	// 站点配置
	fmt.Println()
	fmt.Println("检查站点配置...")
	if _, err := os.Stat(config.DefaultConfigFile); err == nil {
		if site, err := config.NewSiteConfigLoader(config.DefaultConfigFile).LoadConfig(); err != nil {
			fmt.Printf("❌ %s 无效: %v\n", config.DefaultConfigFile, err)
			allOK = false
		} else {
			fmt.Printf("✅ %s: %s -> %s\n", config.DefaultConfigFile, site.Origin, site.Destination)
		}
	} else {
		fmt.Printf("⚠️  %s 不存在 - 首次运行时将生成模板\n", config.DefaultConfigFile)
	}

	// 项目结构
	fmt.Println()
	fmt.Println("检查项目结构...")
	requiredDirs := []string{
		"cmd/sitediff",
		"internal/browser",
		"internal/compare",
		"internal/crawler",
		"internal/diff",
		"internal/models",
		"internal/utils",
	}
	for _, dir := range requiredDirs {
		if _, err := os.Stat(dir); err == nil {
			fmt.Printf("✅ %s/\n", dir)
		} else {
			fmt.Printf("❌ %s/ 不存在\n", dir)
			allOK = false
		}
	}

	fmt.Println()
	fmt.Println("==============================================")
	if allOK {
		fmt.Println("✅ 环境验证通过!")
		fmt.Println()
		fmt.Println("下一步:")
		fmt.Println("  1. 编辑 config.yml 填写 origin 与 destination")
		fmt.Println("  2. 运行 'sitediff --validate-config' 检查配置")
		fmt.Println("  3. 运行 'sitediff' 开始对比")
		os.Exit(0)
	}
	fmt.Println("❌ 环境验证失败,请解决上述问题。")
	os.Exit(1)
}
