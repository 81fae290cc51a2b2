package diff

import (
	"image"
	"image/draw"
)

// CropToCommon 将两张图像从左上角裁剪到公共尺寸 (宽高各取较小值)
// 页面高度不一致时只比较两者共有的上半部分
func CropToCommon(a, b image.Image) (*image.RGBA, *image.RGBA) {
	width := minInt(a.Bounds().Dx(), b.Bounds().Dx())
	height := minInt(a.Bounds().Dy(), b.Bounds().Dy())
	return cropTopLeft(a, width, height), cropTopLeft(b, width, height)
}

func cropTopLeft(img image.Image, width, height int) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
