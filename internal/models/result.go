package models

// PageStatus 单个页面的对比结论
type PageStatus string

const (
	PageIdentical PageStatus = "identical"
	PageDiffers   PageStatus = "differs"
	PageFailed    PageStatus = "failed"
)

// PageOutcome 单个页面的对比明细
type PageOutcome struct {
	URL            string     `json:"url"`
	DestinationURL string     `json:"destination_url"`
	Status         PageStatus `json:"status"`
	DiffPixels     int        `json:"diff_pixels"`
	DiffImage      string     `json:"diff_image,omitempty"`
	Reason         string     `json:"reason,omitempty"`
}

// ComparisonResult 对比结果累加器
// 每个并发单元持有独立实例,全部完成后按分片顺序合并
type ComparisonResult struct {
	// DiffCount 存在差异的页面数
	DiffCount int `json:"diff_count"`

	// ErrorURLs 导航、截图或比对失败的页面
	ErrorURLs []string `json:"error_urls"`

	// DiffURLs 存在差异的页面
	DiffURLs []string `json:"diff_urls"`

	// Compared 已处理的页面数 (含失败)
	Compared int `json:"compared"`

	// Pages 逐页明细
	Pages []PageOutcome `json:"pages"`
}

// NewComparisonResult 创建空结果
func NewComparisonResult() *ComparisonResult {
	return &ComparisonResult{
		ErrorURLs: []string{},
		DiffURLs:  []string{},
		Pages:     []PageOutcome{},
	}
}

// Record 记录一个页面的对比结论
func (r *ComparisonResult) Record(outcome PageOutcome) {
	r.Compared++
	switch outcome.Status {
	case PageDiffers:
		r.DiffCount++
		r.DiffURLs = append(r.DiffURLs, outcome.URL)
	case PageFailed:
		r.ErrorURLs = append(r.ErrorURLs, outcome.URL)
	}
	r.Pages = append(r.Pages, outcome)
}

// Merge 合并另一个结果: 计数相加,列表按顺序拼接
func (r *ComparisonResult) Merge(other *ComparisonResult) {
	if other == nil {
		return
	}
	r.DiffCount += other.DiffCount
	r.Compared += other.Compared
	r.ErrorURLs = append(r.ErrorURLs, other.ErrorURLs...)
	r.DiffURLs = append(r.DiffURLs, other.DiffURLs...)
	r.Pages = append(r.Pages, other.Pages...)
}

// HasDiff 是否存在差异页面
func (r *ComparisonResult) HasDiff() bool {
	return r.DiffCount > 0
}
