package compare

// Partition 将页面列表切分为n个连续分片,每片ceil(len/n)个,最后一片取余数
// 总是返回n个分片 (可能为空),拼接后与输入顺序一致
func Partition(pages []string, n int) [][]string {
	if n < 1 {
		n = 1
	}

	size := (len(pages) + n - 1) / n
	chunks := make([][]string, n)
	for i := 0; i < n; i++ {
		start := i * size
		end := start + size
		if start > len(pages) {
			start = len(pages)
		}
		if end > len(pages) {
			end = len(pages)
		}
		chunks[i] = pages[start:end:end]
	}
	return chunks
}
