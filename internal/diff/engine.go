// Package diff 提供截图像素级比对
package diff

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/orisano/pixelmatch"
)

var (
	// ErrEmptyImage 图像尺寸为0
	ErrEmptyImage = errors.New("图像为空")

	// ErrSizeMismatch 两张图像尺寸不一致
	ErrSizeMismatch = errors.New("图像尺寸不一致")
)

// Engine 像素比对引擎
// 输入两张同尺寸图像与容差,返回差异像素数和差异图 (可为nil)
type Engine interface {
	Diff(a, b image.Image, tolerance float64) (int, image.Image, error)
}

// 引擎名称
const (
	EnginePixelmatch = "pixelmatch"
	EngineChannel    = "channel"
)

// NewEngine 根据名称创建引擎
func NewEngine(name string) (Engine, error) {
	switch name {
	case EnginePixelmatch, "":
		return &PixelmatchEngine{}, nil
	case EngineChannel:
		return &ChannelEngine{}, nil
	default:
		return nil, fmt.Errorf("未知的比对引擎: %s (有效值: pixelmatch, channel)", name)
	}
}

func checkBounds(a, b image.Image) error {
	if a.Bounds().Empty() || b.Bounds().Empty() {
		return ErrEmptyImage
	}
	if a.Bounds().Dx() != b.Bounds().Dx() || a.Bounds().Dy() != b.Bounds().Dy() {
		return fmt.Errorf("%w: %v vs %v", ErrSizeMismatch, a.Bounds().Size(), b.Bounds().Size())
	}
	return nil
}

// PixelmatchEngine 基于YIQ色差与抗锯齿检测的比对
// tolerance 对应pixelmatch的threshold (0-1,越大越宽松)
type PixelmatchEngine struct {
	// IncludeAntiAlias 抗锯齿像素也计入差异
	IncludeAntiAlias bool
}

// Diff 实现Engine接口
func (e *PixelmatchEngine) Diff(a, b image.Image, tolerance float64) (int, image.Image, error) {
	if err := checkBounds(a, b); err != nil {
		return 0, nil, err
	}

	rgbaA := toRGBA(a)
	rgbaB := toRGBA(b)
	if bytes.Equal(rgbaA.Pix, rgbaB.Pix) {
		return 0, nil, nil
	}

	// pixelmatch对同类型图像的快速路径只比较每行前Dx()字节,
	// 第二张图转为NRGBA以跳过该路径
	nrgbaB := image.NewNRGBA(rgbaB.Bounds())
	draw.Draw(nrgbaB, nrgbaB.Bounds(), rgbaB, image.Point{}, draw.Src)

	var out image.Image
	opts := []pixelmatch.MatchOption{
		pixelmatch.Threshold(tolerance),
		pixelmatch.WriteTo(&out),
	}
	if e.IncludeAntiAlias {
		opts = append(opts, pixelmatch.IncludeAntiAlias)
	}

	count, err := pixelmatch.MatchPixel(rgbaA, nrgbaB, opts...)
	if err != nil {
		return 0, nil, fmt.Errorf("pixelmatch比对失败: %w", err)
	}
	return count, out, nil
}

// ChannelEngine 逐通道比较,任一通道差值超过 tolerance*255 即计为差异像素
type ChannelEngine struct{}

// Diff 实现Engine接口
func (e *ChannelEngine) Diff(a, b image.Image, tolerance float64) (int, image.Image, error) {
	if err := checkBounds(a, b); err != nil {
		return 0, nil, err
	}

	rgbaA := toRGBA(a)
	rgbaB := toRGBA(b)
	limit := int(tolerance * 255)
	if limit < 0 {
		limit = 0
	}

	bounds := rgbaA.Bounds()
	out := image.NewRGBA(bounds)
	count := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i := rgbaA.PixOffset(x, y)
			pa := rgbaA.Pix[i : i+4 : i+4]
			pb := rgbaB.Pix[i : i+4 : i+4]
			if channelDelta(pa, pb) > limit {
				count++
				out.SetRGBA(x, y, color.RGBA{R: 255, A: 255})
				continue
			}
			// 相同像素以淡灰度显示
			lum := (int(pa[0]) + int(pa[1]) + int(pa[2])) / 3
			gray := uint8(255 - (255-lum)/10)
			out.SetRGBA(x, y, color.RGBA{R: gray, G: gray, B: gray, A: 255})
		}
	}
	return count, out, nil
}

func channelDelta(a, b []uint8) int {
	peak := 0
	for c := 0; c < 4; c++ {
		d := int(a[c]) - int(b[c])
		if d < 0 {
			d = -d
		}
		if d > peak {
			peak = d
		}
	}
	return peak
}

// toRGBA 转换为原点在(0,0)且紧凑存储的RGBA图像
func toRGBA(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && bounds.Min == (image.Point{}) && rgba.Stride == 4*bounds.Dx() && len(rgba.Pix) == 4*bounds.Dx()*bounds.Dy() {
		return rgba
	}
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), img, bounds.Min, draw.Src)
	return out
}
