// Package crawler 实现基于广度优先的站内页面发现
package crawler

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/RecoveryAshes/SiteDiff/internal/browser"
	"github.com/RecoveryAshes/SiteDiff/internal/models"
	"github.com/rs/zerolog/log"
)

// DefaultExtractAttempts 链接提取最大尝试次数
const DefaultExtractAttempts = 5

// Config 爬取配置
type Config struct {
	// StartURL 起始页面,同时决定允许的主机名
	StartURL string

	// Blacklist 黑名单,可为nil
	Blacklist *Blacklist

	// MaxPages 最多记录的页面数,0表示不限制
	MaxPages int

	// ExtractAttempts 链接提取尝试次数,<=0时使用默认值
	ExtractAttempts int

	// RetryDelay 提取失败后的重试间隔
	RetryDelay time.Duration

	// Progress 每记录一个页面回调一次
	Progress func(recorded, pending int)
}

// Stats 爬取统计
type Stats struct {
	Recorded int `json:"recorded"` // 记录的页面
	Skipped  int `json:"skipped"`  // 重定向到已访问页面而跳过
	Failed   int `json:"failed"`   // 导航失败
	Filtered int `json:"filtered"` // 被过滤的链接
}

// Crawler 单线程BFS爬取器
type Crawler struct {
	session  browser.LinkSession
	config   Config
	filter   *LinkFilter
	siteHost string
	stats    Stats
}

// New 创建爬取器
func New(session browser.LinkSession, config Config) (*Crawler, error) {
	if session == nil {
		return nil, fmt.Errorf("爬取会话不能为空")
	}

	parsed, err := url.Parse(config.StartURL)
	if err != nil {
		return nil, fmt.Errorf("解析起始URL失败: %w", err)
	}
	if parsed.Hostname() == "" {
		return nil, fmt.Errorf("无法从URL中提取主机名: %s", config.StartURL)
	}

	if config.ExtractAttempts <= 0 {
		config.ExtractAttempts = DefaultExtractAttempts
	}

	return &Crawler{
		session:  session,
		config:   config,
		filter:   NewLinkFilter(config.Blacklist, parsed.Hostname()),
		siteHost: parsed.Hostname(),
	}, nil
}

// Crawl 从起始页面开始广度优先遍历,返回按记录顺序排列的页面列表
// 结束时关闭会话。ctx取消时返回已记录的页面和ctx错误。
func (c *Crawler) Crawl(ctx context.Context) (models.PageList, error) {
	defer func() {
		if err := c.session.Close(); err != nil {
			log.Warn().Err(err).Msg("关闭爬取会话失败")
		}
	}()

	start, err := Canonicalize(c.config.StartURL)
	if err != nil {
		return nil, err
	}

	state := NewState(start)
	pages := models.PageList{}

	log.Info().Str("start", start).Str("host", c.siteHost).Msg("开始爬取站点")

	for {
		if err := ctx.Err(); err != nil {
			return pages, fmt.Errorf("爬取被中断: %w", err)
		}

		if c.config.MaxPages > 0 && len(pages) >= c.config.MaxPages {
			log.Info().Int("max_pages", c.config.MaxPages).Msg("已达到页面数上限,停止爬取")
			break
		}

		current, ok := state.Pop()
		if !ok {
			break
		}

		// 入队后可能已被其他页面的重定向访问过
		if state.IsVisited(current) {
			c.stats.Skipped++
			continue
		}

		final, err := c.session.Navigate(ctx, current)
		if err != nil {
			if ctx.Err() != nil {
				return pages, fmt.Errorf("爬取被中断: %w", ctx.Err())
			}
			log.Warn().Err(err).Str("url", current).Msg("页面导航失败")
			state.MarkVisited(current)
			c.stats.Failed++
			continue
		}

		finalCanonical, err := Canonicalize(final)
		if err != nil || final == "" {
			finalCanonical = current
		}

		if state.IsVisited(finalCanonical) {
			state.MarkVisited(current)
			log.Debug().Str("url", current).Str("final", finalCanonical).Msg("重定向到已访问页面,跳过")
			c.stats.Skipped++
			continue
		}

		state.MarkVisited(current)
		state.MarkVisited(finalCanonical)

		if !c.sameHost(finalCanonical) {
			log.Warn().Str("url", current).Str("final", finalCanonical).Msg("重定向到站外页面,跳过")
			c.stats.Skipped++
			continue
		}

		pages = append(pages, finalCanonical)
		c.stats.Recorded++

		links := c.extractLinks(ctx, finalCanonical)
		for _, link := range links {
			follow, reason := c.filter.ShouldFollow(link, state)
			if !follow {
				c.stats.Filtered++
				log.Trace().Str("link", link).Str("reason", reason).Msg("链接已过滤")
				continue
			}
			canonical, _ := Canonicalize(link)
			state.Enqueue(canonical)
		}

		log.Debug().
			Str("url", finalCanonical).
			Int("links", len(links)).
			Int("pending", state.Pending()).
			Msg("页面已记录")

		if c.config.Progress != nil {
			c.config.Progress(len(pages), state.Pending())
		}
	}

	log.Info().
		Int("recorded", c.stats.Recorded).
		Int("skipped", c.stats.Skipped).
		Int("failed", c.stats.Failed).
		Msg("站点爬取完成")

	return pages, nil
}

// extractLinks 提取当前页面链接,失败时重试,耗尽次数后视为无链接
func (c *Crawler) extractLinks(ctx context.Context, pageURL string) []string {
	for attempt := 1; attempt <= c.config.ExtractAttempts; attempt++ {
		links, err := c.session.ExtractLinks(ctx)
		if err == nil {
			return links
		}

		log.Warn().
			Err(err).
			Str("url", pageURL).
			Int("attempt", attempt).
			Int("max_attempts", c.config.ExtractAttempts).
			Msg("提取链接失败")

		if attempt == c.config.ExtractAttempts {
			break
		}

		if c.config.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.config.RetryDelay):
			}
		}
	}

	log.Error().Str("url", pageURL).Msg("多次提取链接失败,按无链接处理")
	return nil
}

func (c *Crawler) sameHost(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return parsed.Hostname() == c.siteHost
}

// Stats 返回爬取统计
func (c *Crawler) Stats() Stats {
	return c.stats
}
