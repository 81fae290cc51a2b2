// Package compare 驱动两侧站点的成对访问、截图与比对,并在多个并发单元间分配页面
package compare

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/SiteDiff/internal/browser"
	"github.com/RecoveryAshes/SiteDiff/internal/diff"
	"github.com/RecoveryAshes/SiteDiff/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Comparator 对单个URL执行: 两侧导航、整页截图、像素比对
type Comparator struct {
	origin      browser.Session
	destination browser.Session
	site        models.SiteConfig
	auditor     *diff.Auditor

	// 临时截图目录,为空时不落盘
	originDir      string
	destinationDir string
}

// NewComparator 创建比对器
func NewComparator(origin, destination browser.Session, site models.SiteConfig, auditor *diff.Auditor, imagesDir string) *Comparator {
	c := &Comparator{
		origin:      origin,
		destination: destination,
		site:        site,
		auditor:     auditor,
	}
	if imagesDir != "" {
		c.originDir = filepath.Join(imagesDir, "origin")
		c.destinationDir = filepath.Join(imagesDir, "destination")
	}
	return c
}

// Compare 比对一个页面,任何一步失败都记为失败结论而不是返回错误
func (c *Comparator) Compare(ctx context.Context, pageURL string) models.PageOutcome {
	outcome := models.PageOutcome{URL: pageURL}

	fail := func(err error) models.PageOutcome {
		outcome.Status = models.PageFailed
		outcome.Reason = err.Error()
		log.Warn().Err(err).Str("url", pageURL).Msg("页面比对失败")
		return outcome
	}

	destinationURL, err := c.site.DestinationURL(pageURL)
	if err != nil {
		return fail(err)
	}
	outcome.DestinationURL = destinationURL

	if _, err := c.origin.Navigate(ctx, pageURL); err != nil {
		return fail(fmt.Errorf("基准站点导航失败: %w", err))
	}
	if _, err := c.destination.Navigate(ctx, destinationURL); err != nil {
		return fail(fmt.Errorf("对比站点导航失败: %w", err))
	}

	originShot, err := c.origin.Screenshot(ctx)
	if err != nil {
		return fail(fmt.Errorf("基准站点截图失败: %w", err))
	}
	destinationShot, err := c.destination.Screenshot(ctx)
	if err != nil {
		return fail(fmt.Errorf("对比站点截图失败: %w", err))
	}

	var result diff.AuditResult
	if c.originDir == "" {
		result, err = c.auditor.Compare(originShot, destinationShot, pageURL)
	} else {
		originPath, destinationPath, cleanup, perr := c.persist(originShot, destinationShot)
		defer cleanup()
		if perr != nil {
			return fail(perr)
		}
		result, err = c.auditor.CompareFiles(originPath, destinationPath, pageURL)
	}
	if err != nil {
		return fail(err)
	}

	outcome.DiffPixels = result.DiffPixels
	outcome.DiffImage = result.DiffImage
	if result.Differs() {
		outcome.Status = models.PageDiffers
		log.Info().Str("url", pageURL).Int("diff_pixels", result.DiffPixels).Msg("发现视觉差异")
	} else {
		outcome.Status = models.PageIdentical
		log.Debug().Str("url", pageURL).Msg("页面一致")
	}
	return outcome
}

// persist 将两张截图写入临时目录,返回的清理函数总会删除已写入的文件
func (c *Comparator) persist(originShot, destinationShot []byte) (string, string, func(), error) {
	var written []string
	cleanup := func() {
		for _, path := range written {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				log.Warn().Err(err).Str("path", path).Msg("删除临时截图失败")
			}
		}
	}

	name := uuid.New().String() + ".png"
	originPath := filepath.Join(c.originDir, name)
	destinationPath := filepath.Join(c.destinationDir, name)

	if err := os.WriteFile(originPath, originShot, 0644); err != nil {
		return "", "", cleanup, fmt.Errorf("写入基准截图失败: %w", err)
	}
	written = append(written, originPath)

	if err := os.WriteFile(destinationPath, destinationShot, 0644); err != nil {
		return "", "", cleanup, fmt.Errorf("写入对比截图失败: %w", err)
	}
	written = append(written, destinationPath)

	return originPath, destinationPath, cleanup, nil
}
