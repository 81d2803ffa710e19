package config

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const EnvPrefix = "SMARTBILLS"

// ParseConfig 解析内嵌的默认配置,cfgFile 不为空时覆盖合并,环境变量 SMARTBILLS_<SECTION>_<KEY> 优先级最高
func ParseConfig(byteConfig []byte, cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(byteConfig)); err != nil {
		return nil, fmt.Errorf("读取内嵌配置失败: %w", err)
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("合并配置文件失败 %s: %w", cfgFile, err)
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	for _, dir := range []*string{&cfg.Chromedp.UserDataDir, &cfg.Rod.UserDataDir, &cfg.Store.Dir, &cfg.Export.OutputDir} {
		if *dir == "" {
			continue
		}
		absPath, err := filepath.Abs(*dir)
		if err != nil {
			return nil, err
		}
		*dir = absPath
	}
	return &cfg, nil
}
