package browser

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html"
)

// ExtractLinksFromHTML 解析HTML中的锚点并转换为绝对URL
// 支持<base href>;仅保留http/https链接,按出现顺序去重
func ExtractLinksFromHTML(body []byte, pageURL string) ([]string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("解析HTML失败: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("解析页面URL失败: %w", err)
	}

	links := []string{}
	seen := make(map[string]bool)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "base":
				if href := attr(n, "href"); href != "" {
					if ref, err := url.Parse(href); err == nil {
						base = base.ResolveReference(ref)
					}
				}
			case "a":
				if href := attr(n, "href"); href != "" {
					if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
						abs := base.ResolveReference(ref)
						if (abs.Scheme == "http" || abs.Scheme == "https") && !seen[abs.String()] {
							seen[abs.String()] = true
							links = append(links, abs.String())
						}
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return links, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// decompressBody 根据Content-Encoding解压响应体
// Colly只自动处理gzip,deflate与br需要手动解压
func decompressBody(contentEncoding string, body []byte) ([]byte, error) {
	var reader io.Reader
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "", "identity":
		return body, nil
	case "gzip":
		gz, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fl := flate.NewReader(bytes.NewReader(body))
		defer fl.Close()
		reader = fl
	case "br":
		reader = brotli.NewReader(bytes.NewReader(body))
	default:
		return nil, fmt.Errorf("不支持的压缩格式: %s", contentEncoding)
	}

	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%s读取失败: %w", contentEncoding, err)
	}
	return decompressed, nil
}
