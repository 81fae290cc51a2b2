package diff

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultTolerance 默认容差,与pixelmatch的threshold含义一致
	DefaultTolerance = 0.95

	// DiffJPEGQuality 差异图JPEG质量
	DiffJPEGQuality = 80
)

// AuditConfig 比对配置
type AuditConfig struct {
	Tolerance  float64
	DiffDir    string // 差异图输出目录
	SaveImages bool   // 是否输出差异图
}

// AuditResult 单页比对结果
type AuditResult struct {
	DiffPixels int
	Width      int
	Height     int
	DiffImage  string // 差异图路径,未输出时为空
}

// Differs 是否存在差异
func (r AuditResult) Differs() bool {
	return r.DiffPixels > 0
}

// Auditor 截图比对器: 解码、裁剪、比对、输出差异图
type Auditor struct {
	engine Engine
	config AuditConfig
}

// NewAuditor 创建比对器
func NewAuditor(engine Engine, config AuditConfig) *Auditor {
	if engine == nil {
		engine = &PixelmatchEngine{}
	}
	return &Auditor{engine: engine, config: config}
}

// Compare 比对两张PNG截图,name用于生成差异图文件名
func (a *Auditor) Compare(originPNG, destinationPNG []byte, name string) (AuditResult, error) {
	imgA, err := png.Decode(bytes.NewReader(originPNG))
	if err != nil {
		return AuditResult{}, fmt.Errorf("解码基准截图失败: %w", err)
	}
	imgB, err := png.Decode(bytes.NewReader(destinationPNG))
	if err != nil {
		return AuditResult{}, fmt.Errorf("解码对比截图失败: %w", err)
	}
	return a.CompareImages(imgA, imgB, name)
}

// CompareFiles 读取磁盘上的两张PNG截图并比对
func (a *Auditor) CompareFiles(originPath, destinationPath, name string) (AuditResult, error) {
	originPNG, err := os.ReadFile(originPath)
	if err != nil {
		return AuditResult{}, fmt.Errorf("读取基准截图失败: %w", err)
	}
	destinationPNG, err := os.ReadFile(destinationPath)
	if err != nil {
		return AuditResult{}, fmt.Errorf("读取对比截图失败: %w", err)
	}
	return a.Compare(originPNG, destinationPNG, name)
}

// CompareImages 比对两张已解码图像
func (a *Auditor) CompareImages(imgA, imgB image.Image, name string) (AuditResult, error) {
	if imgA.Bounds().Dy() != imgB.Bounds().Dy() || imgA.Bounds().Dx() != imgB.Bounds().Dx() {
		log.Debug().
			Str("page", name).
			Str("origin", imgA.Bounds().Size().String()).
			Str("destination", imgB.Bounds().Size().String()).
			Msg("截图尺寸不一致,裁剪到公共区域")
	}

	croppedA, croppedB := CropToCommon(imgA, imgB)
	result := AuditResult{
		Width:  croppedA.Bounds().Dx(),
		Height: croppedA.Bounds().Dy(),
	}

	count, diffImage, err := a.engine.Diff(croppedA, croppedB, a.config.Tolerance)
	if err != nil {
		return result, fmt.Errorf("像素比对失败: %w", err)
	}
	result.DiffPixels = count

	if count > 0 && a.config.SaveImages && diffImage != nil {
		path, err := a.writeDiffImage(diffImage, name)
		if err != nil {
			log.Warn().Err(err).Str("page", name).Msg("保存差异图失败")
		} else {
			result.DiffImage = path
		}
	}

	return result, nil
}

// writeDiffImage 输出JPEG差异图
func (a *Auditor) writeDiffImage(img image.Image, name string) (string, error) {
	if err := os.MkdirAll(a.config.DiffDir, 0755); err != nil {
		return "", fmt.Errorf("创建差异图目录失败: %w", err)
	}

	filename := fmt.Sprintf("%s_%s_diff.jpg", Slug(name), uuid.New().String()[:8])
	path := filepath.Join(a.config.DiffDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("创建差异图文件失败: %w", err)
	}
	defer file.Close()

	if err := jpeg.Encode(file, img, &jpeg.Options{Quality: DiffJPEGQuality}); err != nil {
		return "", fmt.Errorf("编码差异图失败: %w", err)
	}

	return path, nil
}

var slugPattern = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Slug 将页面URL转换为可用作文件名的片段
func Slug(pageURL string) string {
	name := pageURL
	if parsed, err := url.Parse(pageURL); err == nil && parsed.Host != "" {
		name = parsed.Path
	}
	name = strings.Trim(slugPattern.ReplaceAllString(name, "_"), "_")
	if name == "" {
		return "index"
	}
	if len(name) > 80 {
		name = name[:80]
	}
	return name
}
