// Package config loads slidethumb settings from a YAML file and command-line flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Bounds 是容器允许的最大缩略图尺寸（像素）。
type Bounds struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Store 选择内容来源。Kind 为 dir 或 sqlite。
type Store struct {
	Kind   string `yaml:"kind"`
	Dir    string `yaml:"dir"`
	SQLite string `yaml:"sqlite"`
	Cache  bool   `yaml:"cache"`
}

// Assets 配置图片与字体资源。
type Assets struct {
	BaseDir  string            `yaml:"baseDir"`
	MaxBytes int64             `yaml:"maxBytes"`
	Images   map[string]string `yaml:"images"` // built-in:<name> -> 文件路径
	Fonts    map[string]string `yaml:"fonts"`  // 字体族名 -> 文件路径
}

// Server 配置 HTTP 服务。
type Server struct {
	Addr string `yaml:"addr"`
}

// Info 写入导出的 PDF。
type Info struct {
	Title   string `yaml:"title"`
	Author  string `yaml:"author"`
	Creator string `yaml:"creator"`
}

// Config is the full configuration.
type Config struct {
	Store   Store             `yaml:"store"`
	Assets  Assets            `yaml:"assets"`
	Server  Server            `yaml:"server"`
	Presets map[string]Bounds `yaml:"presets"`
	// Template 是模板示例数据，用于替换文本中的 ${path} 占位符。
	Template map[string]any `yaml:"template"`
	Info     Info           `yaml:"info"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Store:  Store{Kind: "dir", Dir: "presentations", Cache: true},
		Assets: Assets{MaxBytes: 32 << 20},
		Server: Server{Addr: ":8080"},
		Presets: map[string]Bounds{
			"list":    {Width: 384, Height: 280},
			"gallery": {Width: 256, Height: 256},
			"chat":    {Width: 640, Height: 360},
		},
		Info: Info{Creator: "slidethumb"},
	}
}

// Load 读取 YAML 文件并覆盖缺省值。path 为空时直接返回缺省配置。
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("读取配置 %s 失败: %w", path, err)
	}
	if err := cfg.decode(data); err != nil {
		return cfg, fmt.Errorf("解析配置 %s 失败: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// LoadFile 读取 YAML 文件覆盖当前配置，命令行上显式给出的参数优先于文件。
func (c *Config) LoadFile(path string, flags *pflag.FlagSet) error {
	overrides := map[string]string{}
	if flags != nil {
		flags.Visit(func(f *pflag.Flag) { overrides[f.Name] = f.Value.String() })
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取配置 %s 失败: %w", path, err)
	}
	if err := c.decode(data); err != nil {
		return fmt.Errorf("解析配置 %s 失败: %w", path, err)
	}
	for name, value := range overrides {
		if err := flags.Set(name, value); err != nil {
			return fmt.Errorf("应用参数 --%s 失败: %w", name, err)
		}
	}
	return c.Validate()
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate 检查配置的一致性。
func (c Config) Validate() error {
	switch c.Store.Kind {
	case "dir":
		if c.Store.Dir == "" {
			return fmt.Errorf("store.dir 不能为空")
		}
	case "sqlite":
		if c.Store.SQLite == "" {
			return fmt.Errorf("store.sqlite 不能为空")
		}
	default:
		return fmt.Errorf("未知的 store.kind %q（可选 dir、sqlite）", c.Store.Kind)
	}
	for name, b := range c.Presets {
		if b.Width <= 0 || b.Height <= 0 {
			return fmt.Errorf("预设 %s 的尺寸必须为正数", name)
		}
	}
	return nil
}

// BindFlags 把可在命令行覆盖的字段绑定到 flags。
func (c *Config) BindFlags(flags *pflag.FlagSet) {
	flags.StringVar(&c.Store.Kind, "store", c.Store.Kind, "Content store kind: dir or sqlite")
	flags.StringVar(&c.Store.Dir, "store-dir", c.Store.Dir, "Root directory holding v<N>/ version folders")
	flags.StringVar(&c.Store.SQLite, "store-sqlite", c.Store.SQLite, "Path to the SQLite content database")
	flags.BoolVar(&c.Store.Cache, "store-cache", c.Store.Cache, "Cache version contents in memory")
	flags.StringVar(&c.Assets.BaseDir, "assets", c.Assets.BaseDir, "Base directory for relative image paths")
	flags.Int64Var(&c.Assets.MaxBytes, "max-image-bytes", c.Assets.MaxBytes, "Maximum size of a fetched image")
	flags.StringVar(&c.Server.Addr, "addr", c.Server.Addr, "HTTP listen address")
}
