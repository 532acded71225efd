package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/Zacy-Sokach/PolyChat/internal/utils"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	DefaultEndpoint       = "http://127.0.0.1:5000/chat"
	DefaultRequestTimeout = 60 * time.Second
	DefaultCooldown       = time.Hour
	DefaultWordWrap       = 80
	DefaultRenderStyle    = "auto"
	DefaultLogLevel       = "info"
)

type Config struct {
	Endpoint       string        `yaml:"endpoint" env:"POLYCHAT_ENDPOINT"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"POLYCHAT_REQUEST_TIMEOUT"`
	Cooldown       time.Duration `yaml:"cooldown" env:"POLYCHAT_COOLDOWN"`
	Render         RenderConfig  `yaml:"render"`
	Log            LogConfig     `yaml:"log"`
	Export         ExportConfig  `yaml:"export"`
}

type RenderConfig struct {
	WordWrap int    `yaml:"word_wrap" env:"POLYCHAT_RENDER_WORD_WRAP"`
	Style    string `yaml:"style" env:"POLYCHAT_RENDER_STYLE"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"POLYCHAT_LOG_LEVEL"`
	File  string `yaml:"file" env:"POLYCHAT_LOG_FILE"`
}

type ExportConfig struct {
	Dir string `yaml:"dir" env:"POLYCHAT_EXPORT_DIR"`
}

// Default 返回所有字段都已填充默认值的配置
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig 从默认路径加载配置
func LoadConfig() (*Config, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadConfigFrom(configPath)
}

// LoadConfigFrom 从指定路径加载配置，文件不存在时使用默认值
// 环境变量优先于文件中的值
func LoadConfigFrom(configPath string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("解析环境变量失败: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.Cooldown == 0 {
		c.Cooldown = DefaultCooldown
	}
	if c.Render.WordWrap == 0 {
		c.Render.WordWrap = DefaultWordWrap
	}
	if c.Render.Style == "" {
		c.Render.Style = DefaultRenderStyle
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.File == "" {
		if dir, err := utils.GetConfigDir(); err == nil {
			c.Log.File = filepath.Join(dir, "polychat.log")
		}
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "."
	}
}

// Validate 检查配置是否可用
func (c *Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("endpoint 无效: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint 必须是 http(s) 地址: %q", c.Endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint 缺少主机名: %q", c.Endpoint)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout 必须为正数: %s", c.RequestTimeout)
	}
	if c.Cooldown <= 0 {
		return fmt.Errorf("cooldown 必须为正数: %s", c.Cooldown)
	}
	if c.Render.WordWrap < 0 {
		return fmt.Errorf("render.word_wrap 不能为负数: %d", c.Render.WordWrap)
	}
	return nil
}

// SaveConfig 将配置写入默认路径
func SaveConfig(config *Config) error {
	configPath, err := getConfigPath()
	if err != nil {
		return err
	}
	return SaveConfigTo(configPath, config)
}

func SaveConfigTo(configPath string, config *Config) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}

	return nil
}

// Path 返回默认配置文件路径
func Path() (string, error) {
	return getConfigPath()
}

func getConfigPath() (string, error) {
	configDir, err := utils.GetConfigDir()
	if err != nil {
		return "", fmt.Errorf("获取配置目录失败: %w", err)
	}
	return filepath.Join(configDir, "config.yaml"), nil
}
