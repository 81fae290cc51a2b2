package models

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Cookie 注入到两侧站点的Cookie
type Cookie struct {
	Name  string `mapstructure:"name" yaml:"name" json:"name"`
	Value string `mapstructure:"value" yaml:"value" json:"value"`
}

// SiteConfig 表示站点配置文件 (config.yml) 的结构
// 描述一次对比任务的两侧站点、Cookie与黑名单
type SiteConfig struct {
	// Origin 基准站点根地址 (爬取起点)
	Origin string `mapstructure:"origin" yaml:"origin" json:"origin"`

	// Destination 待对比站点根地址
	Destination string `mapstructure:"destination" yaml:"destination" json:"destination"`

	// Cookies 两侧会话都会注入的Cookie
	Cookies []Cookie `mapstructure:"cookies" yaml:"cookies" json:"cookies"`

	// BlacklistSinglePaths 精确匹配的黑名单页面
	BlacklistSinglePaths []string `mapstructure:"blacklistSinglePaths" yaml:"blacklistSinglePaths" json:"blacklist_single_paths"`

	// BlacklistChildrenPaths 前缀匹配的黑名单目录 (包含自身及所有子路径)
	BlacklistChildrenPaths []string `mapstructure:"blacklistChildrenPaths" yaml:"blacklistChildrenPaths" json:"blacklist_children_paths"`
}

// ErrUnmappedURL 页面URL无法映射为对比站点URL
var ErrUnmappedURL = errors.New("无法映射到对比站点")

// Validate 验证站点配置,并去掉origin/destination末尾的斜杠
func (c *SiteConfig) Validate() error {
	c.Origin = strings.TrimRight(strings.TrimSpace(c.Origin), "/")
	c.Destination = strings.TrimRight(strings.TrimSpace(c.Destination), "/")

	if err := ValidateURL(c.Origin); err != nil {
		return fmt.Errorf("origin配置无效: %w", err)
	}
	if err := ValidateURL(c.Destination); err != nil {
		return fmt.Errorf("destination配置无效: %w", err)
	}
	if c.Origin == c.Destination {
		return fmt.Errorf("origin与destination相同: %s", c.Origin)
	}
	for i, cookie := range c.Cookies {
		if strings.TrimSpace(cookie.Name) == "" {
			return fmt.Errorf("第%d个Cookie名称不能为空", i+1)
		}
	}
	return nil
}

// OriginHost 返回基准站点的主机名 (不含端口)
func (c *SiteConfig) OriginHost() string {
	parsed, err := url.Parse(c.Origin)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}

// DestinationURL 将基准站点URL的origin前缀替换为destination
// URL不以origin开头 (如重定向改变了协议) 或替换后不变时返回ErrUnmappedURL
func (c *SiteConfig) DestinationURL(originURL string) (string, error) {
	origin := strings.TrimRight(c.Origin, "/")
	destination := strings.TrimRight(c.Destination, "/")

	if origin == "" || !strings.HasPrefix(originURL, origin) {
		return "", fmt.Errorf("%w: %s 不在 %s 之下", ErrUnmappedURL, originURL, origin)
	}
	rest := originURL[len(origin):]
	if rest != "" && !strings.ContainsAny(rest[:1], "/?#") {
		return "", fmt.Errorf("%w: %s 不在 %s 之下", ErrUnmappedURL, originURL, origin)
	}

	mapped := destination + rest
	if mapped == originURL {
		return "", fmt.Errorf("%w: 替换后URL未变化 %s", ErrUnmappedURL, originURL)
	}
	return mapped, nil
}

// Clone 返回深拷贝,供并发单元持有不可变快照
func (c SiteConfig) Clone() SiteConfig {
	out := c
	out.Cookies = append([]Cookie(nil), c.Cookies...)
	out.BlacklistSinglePaths = append([]string(nil), c.BlacklistSinglePaths...)
	out.BlacklistChildrenPaths = append([]string(nil), c.BlacklistChildrenPaths...)
	return out
}
