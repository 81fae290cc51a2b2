package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// PageList 爬取结果: 按发现顺序排列的规范化URL
// 序列化为纯字符串数组,与历史缓存文件兼容
type PageList []string

// PageListFilename 生成缓存文件名
func PageListFilename(host string) string {
	return fmt.Sprintf("%s_crawled.json", host)
}

// ToJSON 序列化为JSON
func (p PageList) ToJSON() ([]byte, error) {
	if p == nil {
		p = PageList{}
	}
	return json.MarshalIndent(p, "", "  ")
}

// FromJSON 从JSON反序列化
func (p *PageList) FromJSON(data []byte) error {
	return json.Unmarshal(data, p)
}

// SaveToFile 保存到文件
func (p PageList) SaveToFile(path string) error {
	data, err := p.ToJSON()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadPageListFromFile 从文件加载
func LoadPageListFromFile(path string) (PageList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var pages PageList
	if err := pages.FromJSON(data); err != nil {
		return nil, err
	}

	return pages, nil
}
