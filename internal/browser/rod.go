package browser

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/RecoveryAshes/SiteDiff/internal/models"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

// extractLinksJS 收集页面中所有http/https锚点并去重
const extractLinksJS = `() => {
	var elements = document.querySelectorAll('a[href]');
	var links = [];
	var seen = {};
	for (var i = 0; i < elements.length; i++) {
		var href = elements[i].href;
		if (href && (href.indexOf('http://') === 0 || href.indexOf('https://') === 0) && !seen[href]) {
			seen[href] = true;
			links.push(href);
		}
	}
	return links;
}`

// RodSession 基于go-rod的浏览器会话,独占一个浏览器进程和一个标签页
type RodSession struct {
	opts     Options
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page

	// cookies 在首次访问某个主机前注入
	cookies     []models.Cookie
	cookieHosts map[string]bool

	mu     sync.Mutex
	closed bool
}

// NewRodSession 启动浏览器并打开空白标签页
func NewRodSession(ctx context.Context, opts Options) (*RodSession, error) {
	l, controlURL, err := launchBrowser(ctx, opts)
	if err != nil {
		return nil, err
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("连接浏览器失败: %w", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = b.Close()
		l.Kill()
		return nil, fmt.Errorf("创建页面失败: %w", err)
	}

	s := &RodSession{
		opts:        opts,
		launcher:    l,
		browser:     b,
		page:        page,
		cookieHosts: make(map[string]bool),
	}

	if opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}); err != nil {
			s.Close()
			return nil, fmt.Errorf("设置User-Agent失败: %w", err)
		}
	}
	if opts.Viewport.Width > 0 {
		if err := s.SetViewport(opts.Viewport); err != nil {
			s.Close()
			return nil, err
		}
	}
	if err := s.SetCookies(opts.Cookies); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// RodFactory 返回按opts创建RodSession的工厂
func RodFactory(opts Options) Factory {
	return func(ctx context.Context) (Session, error) {
		return NewRodSession(ctx, opts)
	}
}

// SetCookies 实现Session接口
func (s *RodSession) SetCookies(cookies []models.Cookie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookies = append([]models.Cookie(nil), cookies...)
	s.cookieHosts = make(map[string]bool)
	return nil
}

// applyCookies 首次访问主机前写入Cookie
func (s *RodSession) applyCookies(target string) error {
	if len(s.cookies) == 0 {
		return nil
	}
	parsed, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("解析URL失败: %w", err)
	}
	if s.cookieHosts[parsed.Host] {
		return nil
	}

	origin := parsed.Scheme + "://" + parsed.Host + "/"
	params := make([]*proto.NetworkCookieParam, 0, len(s.cookies))
	for _, c := range s.cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:  c.Name,
			Value: c.Value,
			URL:   origin,
		})
	}
	if err := s.page.SetCookies(params); err != nil {
		return fmt.Errorf("设置Cookie失败 [%s]: %w", parsed.Host, err)
	}

	s.cookieHosts[parsed.Host] = true
	log.Debug().Str("host", parsed.Host).Int("count", len(params)).Msg("已注入Cookie")
	return nil
}

// SetViewport 实现Session接口
func (s *RodSession) SetViewport(vp models.Viewport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	err := s.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             vp.Width,
		Height:            vp.Height,
		DeviceScaleFactor: 1,
		Mobile:            vp.Mobile,
	})
	if err != nil {
		return fmt.Errorf("设置视口失败: %w", err)
	}
	s.opts.Viewport = vp
	return nil
}

// Navigate 实现Session接口
// 等待load事件后返回最终URL,整个过程受导航超时约束
func (s *RodSession) Navigate(ctx context.Context, target string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrSessionClosed
	}

	if err := s.applyCookies(target); err != nil {
		return "", err
	}

	navCtx, cancel := context.WithTimeout(ctx, s.opts.navigationTimeout())
	defer cancel()
	page := s.page.Context(navCtx)

	if err := page.Navigate(target); err != nil {
		return "", fmt.Errorf("导航失败 [%s]: %w", target, err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("等待页面加载失败 [%s]: %w", target, err)
	}

	info, err := page.Info()
	if err != nil {
		return "", fmt.Errorf("获取页面信息失败 [%s]: %w", target, err)
	}
	return info.URL, nil
}

// ExtractLinks 实现Session接口
func (s *RodSession) ExtractLinks(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}

	evalCtx, cancel := context.WithTimeout(ctx, s.opts.navigationTimeout())
	defer cancel()

	result, err := s.page.Context(evalCtx).Evaluate(&rod.EvalOptions{JS: extractLinksJS})
	if err != nil {
		return nil, fmt.Errorf("执行JavaScript提取链接失败: %w", err)
	}

	links := []string{}
	for _, item := range result.Value.Arr() {
		if href := item.Str(); href != "" {
			links = append(links, href)
		}
	}
	return links, nil
}

// Screenshot 实现Session接口
// 整页截图: rod会临时把视口扩展到文档完整高度
func (s *RodSession) Screenshot(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}

	shotCtx, cancel := context.WithTimeout(ctx, s.opts.navigationTimeout())
	defer cancel()

	data, err := s.page.Context(shotCtx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("截图失败: %w", err)
	}
	return data, nil
}

// Close 实现Session接口
func (s *RodSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var closeErr error
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			closeErr = fmt.Errorf("关闭浏览器失败: %w", err)
		}
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
	}
	log.Debug().Msg("浏览器已关闭")
	return closeErr
}
