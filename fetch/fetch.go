package fetch

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrNotFound 表示引用的资源不存在。
var ErrNotFound = errors.New("资源不存在")

// Fetcher loads the image referenced by an image object's src.
// Implementations must be safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, src string) (image.Image, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, src string) (image.Image, error)

// Fetch calls f(ctx, src).
func (f FetcherFunc) Fetch(ctx context.Context, src string) (image.Image, error) { return f(ctx, src) }

// Resource can be provided either by Bytes or by Path.
type Resource struct {
	Bytes []byte
	Path  string
}

// Options configures the default loader.
type Options struct {
	BaseDir  string              // 相对路径的解析目录；为空时只允许绝对路径
	Images   map[string]Resource // built-in:<name> 可引用的内置图片
	Client   *http.Client
	MaxBytes int64 // 单个资源的最大字节数，<=0 表示 32MiB
}

// Loader 支持 http(s)、data: URI、built-in:<name> 以及文件路径。
type Loader struct {
	baseDir    string
	imageBlobs map[string][]byte
	client     *http.Client
	maxBytes   int64
}

var _ Fetcher = (*Loader)(nil)

const defaultMaxBytes = 32 << 20

// New creates a loader with injected resources.
func New(opts Options) *Loader {
	l := &Loader{
		baseDir:    opts.BaseDir,
		imageBlobs: map[string][]byte{},
		client:     opts.Client,
		maxBytes:   opts.MaxBytes,
	}
	if l.client == nil {
		l.client = http.DefaultClient
	}
	if l.maxBytes <= 0 {
		l.maxBytes = defaultMaxBytes
	}
	for name, res := range opts.Images {
		if name == "" {
			continue
		}
		if len(res.Bytes) > 0 {
			l.imageBlobs[name] = res.Bytes
			continue
		}
		if res.Path != "" {
			data, _ := os.ReadFile(res.Path) // 读取失败时在引用处报告不存在
			if len(data) > 0 {
				l.imageBlobs[name] = data
			}
		}
	}
	return l
}

// Fetch 读取并解码 src 指向的图片。
func (l *Loader) Fetch(ctx context.Context, src string) (image.Image, error) {
	data, contentType, err := l.Read(ctx, src)
	if err != nil {
		return nil, err
	}
	img, err := Decode(data, contentType)
	if err != nil {
		return nil, fmt.Errorf("解码图片 %s 失败: %w", abbreviate(src), err)
	}
	return img, nil
}

// Read 返回 src 指向的原始字节以及已知的内容类型（可能为空）。
func (l *Loader) Read(ctx context.Context, src string) ([]byte, string, error) {
	src = strings.TrimSpace(src)
	switch {
	case src == "":
		return nil, "", fmt.Errorf("图片地址为空")
	case strings.HasPrefix(src, "built-in:") || strings.HasPrefix(src, "builtin:"):
		name := strings.TrimPrefix(strings.TrimPrefix(src, "built-in:"), "builtin:")
		blob, ok := l.imageBlobs[name]
		if !ok {
			return nil, "", fmt.Errorf("找不到内置图片资源 built-in:%s: %w", name, ErrNotFound)
		}
		return blob, "", nil
	case strings.HasPrefix(src, "data:"):
		return decodeDataURI(src)
	case isURL(src):
		return l.download(ctx, src)
	default:
		return l.readFile(src)
	}
}

func (l *Loader) download(ctx context.Context, src string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, "", fmt.Errorf("构造请求 %s 失败: %w", src, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("下载图片 %s 失败: %w", src, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, "", fmt.Errorf("下载图片 %s 失败: %w", src, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("下载图片 %s 失败: HTTP %d", src, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("读取图片 %s 失败: %w", src, err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, "", fmt.Errorf("图片 %s 超过 %d 字节上限", src, l.maxBytes)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (l *Loader) readFile(src string) ([]byte, string, error) {
	path := strings.TrimPrefix(src, "file://")
	if l.baseDir == "" && !filepath.IsAbs(path) {
		return nil, "", fmt.Errorf("未指定资源目录时不允许直接使用路径：%s（请改用 built-in: 或 data:）", src)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.baseDir, path)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", fmt.Errorf("读取图片 %s 失败: %w", src, ErrNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("读取图片 %s 失败: %w", src, err)
	}
	return data, "", nil
}

// decodeDataURI 解析 data:[<mediatype>][;base64],<data>。
func decodeDataURI(src string) ([]byte, string, error) {
	comma := strings.IndexByte(src, ',')
	if comma < 0 {
		return nil, "", fmt.Errorf("data URI 缺少逗号分隔符")
	}
	meta, payload := src[len("data:"):comma], src[comma+1:]
	contentType, isBase64 := meta, false
	if strings.HasSuffix(meta, ";base64") {
		contentType, isBase64 = strings.TrimSuffix(meta, ";base64"), true
	}
	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			if data, err = base64.RawStdEncoding.DecodeString(payload); err != nil {
				return nil, "", fmt.Errorf("data URI base64 解码失败: %w", err)
			}
		}
		return data, contentType, nil
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return nil, "", fmt.Errorf("data URI 解码失败: %w", err)
	}
	return []byte(text), contentType, nil
}

// Decode 解码位图或 SVG。
func Decode(data []byte, contentType string) (image.Image, error) {
	if isSVG(data, contentType) {
		return rasterizeSVG(data)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return img, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func isSVG(data []byte, contentType string) bool {
	if strings.Contains(contentType, "svg") {
		return true
	}
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.Contains(head, []byte("<svg"))
}

func abbreviate(src string) string {
	if len(src) > 64 {
		return src[:61] + "..."
	}
	return src
}
