package renderer

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ByLCY/slidethumb/layout"
	"github.com/ByLCY/slidethumb/scene"
)

// Renderer 管理挂载点上的缩略图表面：Mount 创建并异步填充表面，Unmount 释放表面，
// Loaded 是宿主用来隐藏加载占位的信号。任何情况下都不会向调用方返回错误。
type Renderer interface {
	Mount(ctx context.Context, id string, doc *scene.SlideDocument, thumb layout.Thumbnail)
	Unmount(id string)
	Loaded(id string) bool
}

// Exporter 将已加载的表面编码为文件格式。
type Exporter interface {
	Export(id string, format Format, w io.Writer) error
}

// Format 是导出格式。
type Format string

const (
	FormatPNG Format = "png"
	FormatPDF Format = "pdf"
	FormatSVG Format = "svg"
)

// ContentType 返回格式对应的 MIME 类型。
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatSVG:
		return "image/svg+xml"
	default:
		return "image/png"
	}
}

// ParseFormat 解析格式名，大小写不敏感，可带前导点。
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".")); f {
	case FormatPNG, FormatPDF, FormatSVG:
		return f, nil
	case "":
		return FormatPNG, nil
	default:
		return "", fmt.Errorf("不支持的导出格式 %q", s)
	}
}
