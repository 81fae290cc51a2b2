package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// Canonicalize 去除URL的查询串与片段,得到规范化URL
// 两个URL规范化后字符串相等即视为同一页面
func Canonicalize(raw string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("URL格式无效: %w", err)
	}
	parsed.RawQuery = ""
	parsed.ForceQuery = false
	parsed.Fragment = ""
	parsed.RawFragment = ""
	return parsed.String(), nil
}

// normalizePath 保证路径以斜杠结尾,空路径视为根路径
func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasSuffix(p, "/") {
		return p + "/"
	}
	return p
}

// Blacklist 黑名单
// singlePaths 精确匹配规范化URL; childrenPaths 匹配路径前缀 (自身及所有子路径)
type Blacklist struct {
	singlePaths   map[string]struct{}
	childrenPaths []string
}

// NewBlacklist 构建黑名单
// 条目可以是绝对URL,也可以是相对站点根的路径 (如 "/admin"),相对条目基于base解析
func NewBlacklist(base string, singlePaths, childrenPaths []string) (*Blacklist, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("解析站点根地址失败: %w", err)
	}

	bl := &Blacklist{
		singlePaths:   make(map[string]struct{}, len(singlePaths)),
		childrenPaths: make([]string, 0, len(childrenPaths)),
	}

	for _, entry := range singlePaths {
		resolved, err := resolveEntry(baseURL, entry)
		if err != nil {
			return nil, fmt.Errorf("黑名单页面无效 [%s]: %w", entry, err)
		}
		canonical, err := Canonicalize(resolved.String())
		if err != nil {
			return nil, err
		}
		bl.singlePaths[canonical] = struct{}{}
	}

	for _, entry := range childrenPaths {
		resolved, err := resolveEntry(baseURL, entry)
		if err != nil {
			return nil, fmt.Errorf("黑名单目录无效 [%s]: %w", entry, err)
		}
		bl.childrenPaths = append(bl.childrenPaths, normalizePath(resolved.Path))
	}

	return bl, nil
}

func resolveEntry(base *url.URL, entry string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimSpace(entry))
	if err != nil {
		return nil, err
	}
	return base.ResolveReference(ref), nil
}

// MatchSingle 是否精确命中单页黑名单
func (b *Blacklist) MatchSingle(canonical string) bool {
	if b == nil {
		return false
	}
	_, ok := b.singlePaths[canonical]
	return ok
}

// MatchChildren 路径是否落在某个黑名单目录之下
func (b *Blacklist) MatchChildren(path string) bool {
	if b == nil {
		return false
	}
	normalized := normalizePath(path)
	for _, prefix := range b.childrenPaths {
		if strings.HasPrefix(normalized, prefix) {
			return true
		}
	}
	return false
}

// LinkFilter 链接过滤器
type LinkFilter struct {
	blacklist *Blacklist
	siteHost  string
}

// NewLinkFilter 创建链接过滤器
func NewLinkFilter(blacklist *Blacklist, siteHost string) *LinkFilter {
	return &LinkFilter{blacklist: blacklist, siteHost: siteHost}
}

// ShouldFollow 判断候选链接是否应加入队列
// 按顺序检查: 已访问、已在队列、单页黑名单、目录黑名单、主机名,第一个不通过的规则生效
func (f *LinkFilter) ShouldFollow(candidate string, state *State) (bool, string) {
	parsed, err := url.Parse(strings.TrimSpace(candidate))
	if err != nil {
		return false, "URL格式无效"
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false, "不支持的协议"
	}

	canonical, err := Canonicalize(candidate)
	if err != nil {
		return false, "URL格式无效"
	}

	if state.IsVisited(canonical) {
		return false, "URL已访问"
	}
	if state.InQueue(canonical) {
		return false, "URL已在队列中"
	}
	if f.blacklist.MatchSingle(canonical) {
		return false, "命中单页黑名单"
	}
	if f.blacklist.MatchChildren(parsed.Path) {
		return false, "命中目录黑名单"
	}
	if parsed.Hostname() != f.siteHost {
		return false, "跨域链接已过滤"
	}

	return true, ""
}

// IsEligible 判断候选链接是否可入队
func IsEligible(candidate string, state *State, blacklist *Blacklist, siteHost string) bool {
	ok, _ := NewLinkFilter(blacklist, siteHost).ShouldFollow(candidate, state)
	return ok
}
