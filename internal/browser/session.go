// Package browser 提供浏览器会话能力: 导航、链接提取、Cookie注入、视口设置与整页截图
//
// 动态会话基于go-rod驱动Chromium内核浏览器,静态会话基于Colly仅做HTTP抓取与HTML解析,
// 后者只能用于爬取阶段。
package browser

import (
	"context"
	"errors"
	"time"

	"github.com/RecoveryAshes/SiteDiff/internal/models"
)

var (
	// ErrUnsupportedBrowser 当前驱动无法启动该浏览器
	ErrUnsupportedBrowser = errors.New("不支持的浏览器类型")

	// ErrSessionClosed 会话已关闭
	ErrSessionClosed = errors.New("浏览器会话已关闭")

	// ErrNoPage 尚未导航到任何页面
	ErrNoPage = errors.New("尚未打开页面")
)

// LinkSession 爬取阶段所需的最小会话能力
type LinkSession interface {
	// Navigate 导航到url并等待加载完成,返回重定向后的最终URL
	Navigate(ctx context.Context, url string) (string, error)

	// ExtractLinks 返回当前页面所有锚点的绝对地址
	ExtractLinks(ctx context.Context) ([]string, error)

	// Close 释放会话资源,可重复调用
	Close() error
}

// Session 完整的浏览器会话
type Session interface {
	LinkSession

	// SetCookies 设置后续导航时注入的Cookie
	SetCookies(cookies []models.Cookie) error

	// SetViewport 设置视口尺寸
	SetViewport(vp models.Viewport) error

	// Screenshot 对当前页面整页截图,返回PNG数据
	Screenshot(ctx context.Context) ([]byte, error)
}

// Factory 会话工厂,每次调用返回一个独立会话
type Factory func(ctx context.Context) (Session, error)

// Options 会话启动参数
type Options struct {
	Kind              models.BrowserKind
	Headless          bool
	BrowserBin        string // 浏览器可执行文件路径,为空时自动查找
	Viewport          models.Viewport
	NavigationTimeout time.Duration // 单次导航超时
	Cookies           []models.Cookie
	UserAgent         string
}

// DefaultNavigationTimeout 默认导航超时
const DefaultNavigationTimeout = 30 * time.Second

func (o Options) navigationTimeout() time.Duration {
	if o.NavigationTimeout <= 0 {
		return DefaultNavigationTimeout
	}
	return o.NavigationTimeout
}
