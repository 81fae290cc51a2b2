package crawler

import "testing"

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"无变化", "https://example.com/a", "https://example.com/a"},
		{"去除查询串", "https://example.com/a?x=1&y=2", "https://example.com/a"},
		{"去除片段", "https://example.com/a#section", "https://example.com/a"},
		{"同时去除", "https://example.com/a?x=1#s", "https://example.com/a"},
		{"空查询串", "https://example.com/a?", "https://example.com/a"},
		{"保留尾部斜杠", "https://example.com/a/", "https://example.com/a/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize(tt.in)
			if err != nil {
				t.Fatalf("Canonicalize() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Canonicalize() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBlacklist_ChildrenPaths(t *testing.T) {
	bl, err := NewBlacklist("https://example.com", nil, []string{"https://example.com/blog"})
	if err != nil {
		t.Fatalf("NewBlacklist() error = %v", err)
	}

	tests := []struct {
		path string
		want bool
	}{
		{"/blog", true},
		{"/blog/", true},
		{"/blog/post-1", true},
		{"/blog/2024/01/post", true},
		{"/blogger", false},
		{"/", false},
		{"/about/blog", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := bl.MatchChildren(tt.path); got != tt.want {
				t.Errorf("MatchChildren(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestBlacklist_SinglePaths(t *testing.T) {
	bl, err := NewBlacklist("https://example.com", []string{"/contact", "https://example.com/legal?v=2"}, nil)
	if err != nil {
		t.Fatalf("NewBlacklist() error = %v", err)
	}

	if !bl.MatchSingle("https://example.com/contact") {
		t.Error("相对路径条目应基于站点根解析")
	}
	if !bl.MatchSingle("https://example.com/legal") {
		t.Error("条目应被规范化")
	}
	if bl.MatchSingle("https://example.com/contact/team") {
		t.Error("单页黑名单不应匹配子路径")
	}

	var nilList *Blacklist
	if nilList.MatchSingle("https://example.com/") || nilList.MatchChildren("/") {
		t.Error("nil黑名单不应命中任何URL")
	}
}

func TestLinkFilter_RuleOrder(t *testing.T) {
	bl, _ := NewBlacklist("https://example.com", []string{"/single"}, []string{"/dir"})
	filter := NewLinkFilter(bl, "example.com")

	state := NewState("https://example.com/queued")
	state.MarkVisited("https://example.com/seen")

	tests := []struct {
		name       string
		candidate  string
		want       bool
		wantReason string
	}{
		{"已访问", "https://example.com/seen?ref=1", false, "URL已访问"},
		{"已在队列", "https://example.com/queued#x", false, "URL已在队列中"},
		{"单页黑名单", "https://example.com/single", false, "命中单页黑名单"},
		{"目录黑名单", "https://example.com/dir/page", false, "命中目录黑名单"},
		{"跨域", "https://cdn.example.org/page", false, "跨域链接已过滤"},
		{"非HTTP协议", "javascript:void(0)", false, "不支持的协议"},
		{"允许", "https://example.com/fresh", true, ""},
		{"允许带端口", "https://example.com:8443/fresh", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := filter.ShouldFollow(tt.candidate, state)
			if got != tt.want || reason != tt.wantReason {
				t.Errorf("ShouldFollow() = (%v, %q), want (%v, %q)", got, reason, tt.want, tt.wantReason)
			}
		})
	}

	if !IsEligible("https://example.com/fresh", state, bl, "example.com") {
		t.Error("IsEligible() 应返回true")
	}
}

func TestState_QueueInvariant(t *testing.T) {
	s := NewState("a", "a", "b")
	if s.Pending() != 2 {
		t.Fatalf("重复入队应被拒绝, Pending = %d", s.Pending())
	}

	s.MarkVisited("c")
	if s.Enqueue("c") {
		t.Error("已访问的URL不应再次入队")
	}

	first, _ := s.Pop()
	if first != "a" {
		t.Errorf("Pop() = %v, want a", first)
	}
	if s.InQueue("a") {
		t.Error("出队后不应仍在队列中")
	}

	s.Pop()
	if _, ok := s.Pop(); ok {
		t.Error("空队列Pop应返回false")
	}
}
