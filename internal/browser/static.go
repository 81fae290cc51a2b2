package browser

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/RecoveryAshes/SiteDiff/internal/models"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog/log"
)

// DefaultUserAgent 默认User-Agent
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/120.0.0.0 Safari/537.36"

// StaticSession 基于Colly的HTTP会话
// 不执行JavaScript,只解析服务端返回的HTML,仅实现LinkSession
type StaticSession struct {
	collector *colly.Collector
	opts      Options

	cookieHosts map[string]bool

	// 最近一次响应
	currentURL string
	body       []byte
	closed     bool
}

// NewStaticSession 创建静态会话
func NewStaticSession(opts Options) *StaticSession {
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.UserAgent(ua),
	)
	c.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true, // 预发环境常用自签名证书
		},
	})
	c.SetRequestTimeout(opts.navigationTimeout())

	s := &StaticSession{
		collector:   c,
		opts:        opts,
		cookieHosts: make(map[string]bool),
	}

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Encoding", "gzip, deflate, br")
	})

	c.OnResponse(func(r *colly.Response) {
		s.currentURL = r.Request.URL.String()
		body := r.Body

		// gzip已由Colly解压
		encoding := strings.ToLower(r.Headers.Get("Content-Encoding"))
		if encoding != "" && encoding != "gzip" {
			decompressed, err := decompressBody(encoding, body)
			if err != nil {
				log.Warn().Err(err).Str("url", s.currentURL).Str("encoding", encoding).Msg("解压响应失败,使用原始内容")
			} else {
				body = decompressed
			}
		}
		s.body = body
	})

	return s
}

// StaticFactory 返回创建StaticSession的工厂 (仅用于爬取)
func StaticFactory(opts Options) func(ctx context.Context) (LinkSession, error) {
	return func(ctx context.Context) (LinkSession, error) {
		return NewStaticSession(opts), nil
	}
}

// Navigate 实现LinkSession接口
func (s *StaticSession) Navigate(ctx context.Context, target string) (string, error) {
	if s.closed {
		return "", ErrSessionClosed
	}

	if err := s.applyCookies(target); err != nil {
		return "", err
	}

	navCtx, cancel := context.WithTimeout(ctx, s.opts.navigationTimeout())
	defer cancel()
	s.collector.Context = navCtx

	s.currentURL = ""
	s.body = nil
	if err := s.collector.Visit(target); err != nil {
		return "", fmt.Errorf("请求失败 [%s]: %w", target, err)
	}
	if s.currentURL == "" {
		return "", fmt.Errorf("请求失败 [%s]: 未收到响应", target)
	}
	return s.currentURL, nil
}

// applyCookies 首次访问主机前写入Cookie
func (s *StaticSession) applyCookies(target string) error {
	if len(s.opts.Cookies) == 0 {
		return nil
	}
	parsed, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("解析URL失败: %w", err)
	}
	if s.cookieHosts[parsed.Host] {
		return nil
	}

	cookies := make([]*http.Cookie, 0, len(s.opts.Cookies))
	for _, c := range s.opts.Cookies {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	if err := s.collector.SetCookies(parsed.Scheme+"://"+parsed.Host+"/", cookies); err != nil {
		return fmt.Errorf("设置Cookie失败 [%s]: %w", parsed.Host, err)
	}
	s.cookieHosts[parsed.Host] = true
	return nil
}

// ExtractLinks 实现LinkSession接口
func (s *StaticSession) ExtractLinks(ctx context.Context) ([]string, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.currentURL == "" {
		return nil, ErrNoPage
	}
	return ExtractLinksFromHTML(s.body, s.currentURL)
}

// SetCookies 替换后续请求使用的Cookie
func (s *StaticSession) SetCookies(cookies []models.Cookie) error {
	s.opts.Cookies = append([]models.Cookie(nil), cookies...)
	s.cookieHosts = make(map[string]bool)
	return nil
}

// Close 实现LinkSession接口
func (s *StaticSession) Close() error {
	s.closed = true
	s.body = nil
	return nil
}
