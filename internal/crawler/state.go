package crawler

// State 爬取状态
// queue 为先进先出的有序集合,同一URL在队列中至多出现一次;visited 只增不减。
// 仅由单个Crawl调用持有,不做并发保护。
type State struct {
	queue   []string
	queued  map[string]struct{}
	visited map[string]struct{}
}

// NewState 创建爬取状态
func NewState(initial ...string) *State {
	s := &State{
		queue:   make([]string, 0, len(initial)),
		queued:  make(map[string]struct{}),
		visited: make(map[string]struct{}),
	}
	for _, u := range initial {
		s.Enqueue(u)
	}
	return s
}

// Enqueue 入队,已在队列或已访问时返回false
func (s *State) Enqueue(u string) bool {
	if s.InQueue(u) || s.IsVisited(u) {
		return false
	}
	s.queue = append(s.queue, u)
	s.queued[u] = struct{}{}
	return true
}

// Pop 取出队首
func (s *State) Pop() (string, bool) {
	if len(s.queue) == 0 {
		return "", false
	}
	u := s.queue[0]
	s.queue[0] = ""
	s.queue = s.queue[1:]
	delete(s.queued, u)
	return u, true
}

// InQueue 是否在队列中
func (s *State) InQueue(u string) bool {
	_, ok := s.queued[u]
	return ok
}

// MarkVisited 标记为已访问
func (s *State) MarkVisited(u string) {
	s.visited[u] = struct{}{}
}

// IsVisited 是否已访问
func (s *State) IsVisited(u string) bool {
	_, ok := s.visited[u]
	return ok
}

// Pending 队列长度
func (s *State) Pending() int {
	return len(s.queue)
}

// VisitedCount 已访问数量
func (s *State) VisitedCount() int {
	return len(s.visited)
}
