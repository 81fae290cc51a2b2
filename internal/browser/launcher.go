package browser

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/RecoveryAshes/SiteDiff/internal/models"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/rs/zerolog/log"
)

// edgeCandidates 各平台Edge的常见安装位置
var edgeCandidates = map[string][]string{
	"darwin": {
		"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
	},
	"linux": {
		"microsoft-edge",
		"microsoft-edge-stable",
		"/opt/microsoft/msedge/msedge",
	},
	"windows": {
		`C:\Program Files (x86)\Microsoft\Edge\Application\msedge.exe`,
		`C:\Program Files\Microsoft\Edge\Application\msedge.exe`,
	},
}

// LookupBrowser 查找浏览器可执行文件
// explicit非空时直接使用;chrome未找到时返回空串,由rod自动下载
func LookupBrowser(kind models.BrowserKind, explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("浏览器路径不存在 [%s]: %w", explicit, err)
		}
		return explicit, nil
	}

	switch kind {
	case models.BrowserChrome, "":
		if path, ok := launcher.LookPath(); ok {
			return path, nil
		}
		return "", nil
	case models.BrowserEdge:
		for _, candidate := range edgeCandidates[runtime.GOOS] {
			if path, err := exec.LookPath(candidate); err == nil {
				return path, nil
			}
		}
		return "", fmt.Errorf("%w: 未找到Microsoft Edge,请通过 browser_bin 指定路径", ErrUnsupportedBrowser)
	default:
		// rod 基于CDP,只能驱动Chromium内核浏览器
		return "", fmt.Errorf("%w: %s", ErrUnsupportedBrowser, kind)
	}
}

// launchBrowser 启动浏览器进程,返回launcher与调试地址
func launchBrowser(ctx context.Context, opts Options) (*launcher.Launcher, string, error) {
	bin, err := LookupBrowser(opts.Kind, opts.BrowserBin)
	if err != nil {
		return nil, "", err
	}

	l := launcher.New().Context(ctx).Headless(opts.Headless)
	if bin != "" {
		l = l.Bin(bin)
	}

	// 容器内以root运行时需要关闭沙箱
	if os.Geteuid() == 0 {
		l = l.NoSandbox(true)
	}

	// 允许访问自签名证书的预发环境
	l = l.Set("ignore-certificate-errors")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, "", fmt.Errorf("启动浏览器失败: %w", err)
	}

	log.Debug().Str("browser", string(opts.Kind)).Str("bin", bin).Str("control_url", controlURL).Msg("浏览器已启动")
	return l, controlURL, nil
}
