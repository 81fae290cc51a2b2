package core

import (
	"github.com/RecoveryAshes/SiteDiff/internal/models"
	"github.com/RecoveryAshes/SiteDiff/internal/utils"
)

// CookieManager 合并站点配置与命令行中的Cookie
// 实现 CookieProvider 接口
type CookieManager struct {
	// config 站点配置文件中的Cookie
	config []models.Cookie

	// cli 命令行 --cookie 参数
	cli []models.Cookie

	validator *utils.CookieValidator
	redactor  *utils.CookieRedactor
}

// NewCookieManager 创建Cookie管理器
// 参数:
//   - configCookies: 站点配置中的Cookie
//   - cliCookies: 命令行传递的 "name=value" 列表
func NewCookieManager(configCookies []models.Cookie, cliCookies []string) (*CookieManager, error) {
	cm := &CookieManager{
		config:    append([]models.Cookie(nil), configCookies...),
		validator: utils.NewCookieValidator(),
		redactor:  utils.NewCookieRedactor(),
	}

	if len(cliCookies) > 0 {
		parsed, err := models.CliCookies(cliCookies).Parse()
		if err != nil {
			return nil, err
		}
		cm.cli = parsed
	}

	return cm, nil
}

// Validate 验证所有Cookie的合法性
// 验证顺序: 配置 → 命令行
func (cm *CookieManager) Validate() error {
	if err := cm.validator.Validate(cm.config); err != nil {
		utils.Errorf("站点配置Cookie验证失败: %v", err)
		return err
	}

	if err := cm.validator.Validate(cm.cli); err != nil {
		utils.Errorf("命令行Cookie验证失败: %v", err)
		return err
	}

	return nil
}

// GetMergedCookies 按优先级合并 (config < cli)
// 同名Cookie保留首次出现的位置,值取优先级高的一方
func (cm *CookieManager) GetMergedCookies() []models.Cookie {
	result := make([]models.Cookie, 0, len(cm.config)+len(cm.cli))
	index := make(map[string]int)

	for _, source := range [][]models.Cookie{cm.config, cm.cli} {
		for _, c := range source {
			if pos, ok := index[c.Name]; ok {
				result[pos] = c
				continue
			}
			index[c.Name] = len(result)
			result = append(result, c)
		}
	}

	return result
}

// GetSafeCookies 返回脱敏后的合并结果 (用于日志)
func (cm *CookieManager) GetSafeCookies() string {
	return cm.redactor.RedactToString(cm.GetMergedCookies())
}

// GetCookies 实现 CookieProvider 接口
func (cm *CookieManager) GetCookies() ([]models.Cookie, error) {
	if err := cm.Validate(); err != nil {
		return nil, err
	}

	merged := cm.GetMergedCookies()
	if len(merged) > 0 {
		utils.Debugf("生效的Cookie: %s", cm.GetSafeCookies())
	}
	return merged, nil
}
