package models

import (
	"fmt"
	"strings"
)

// Viewport 视口尺寸
type Viewport struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Mobile bool   `json:"mobile"`
}

// DefaultViewportHeight 初始视口高度,截图时按整页内容高度扩展
const DefaultViewportHeight = 1080

// 预置设备
var viewportProfiles = map[string]Viewport{
	"desktop": {Name: "desktop", Width: 1920, Height: DefaultViewportHeight},
	"tablet":  {Name: "tablet", Width: 768, Height: DefaultViewportHeight},
	"mobile":  {Name: "mobile", Width: 375, Height: DefaultViewportHeight, Mobile: true},
}

// ViewportFor 根据设备名返回视口配置
func ViewportFor(device string) (Viewport, error) {
	vp, ok := viewportProfiles[strings.ToLower(strings.TrimSpace(device))]
	if !ok {
		return Viewport{}, fmt.Errorf("未知的设备类型: %s (有效值: desktop, tablet, mobile)", device)
	}
	return vp, nil
}

// BrowserKind 浏览器类型
type BrowserKind string

const (
	BrowserChrome  BrowserKind = "chrome"
	BrowserFirefox BrowserKind = "firefox"
	BrowserEdge    BrowserKind = "edge"
)

// ParseBrowserKind 解析浏览器类型
func ParseBrowserKind(s string) (BrowserKind, error) {
	switch kind := BrowserKind(strings.ToLower(strings.TrimSpace(s))); kind {
	case BrowserChrome, BrowserFirefox, BrowserEdge:
		return kind, nil
	default:
		return "", fmt.Errorf("未知的浏览器类型: %s (有效值: chrome, firefox, edge)", s)
	}
}

// CrawlMode 爬取模式
type CrawlMode string

const (
	ModeDynamic CrawlMode = "dynamic" // 浏览器渲染后提取链接
	ModeStatic  CrawlMode = "static"  // 仅HTTP请求解析HTML
)

// ParseCrawlMode 解析爬取模式
func ParseCrawlMode(s string) (CrawlMode, error) {
	switch mode := CrawlMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case ModeDynamic, ModeStatic:
		return mode, nil
	default:
		return "", fmt.Errorf("无效的爬取模式: %s (有效值: dynamic, static)", s)
	}
}
