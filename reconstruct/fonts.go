package reconstruct

import (
	"fmt"
	"image/color"
	"os"
	"strings"
	"sync"

	"github.com/tdewolff/canvas"

	"github.com/ByLCY/slidethumb/fetch"
	"github.com/ByLCY/slidethumb/fonts"
)

// FontCache 按 "字体族|字形" 缓存 canvas 字体族。
// 显式注册的字体优先，其余字体族名回退到内置 Go 字体。
type FontCache struct {
	mu       sync.Mutex
	blobs    map[string][]byte // 小写字体族名 -> 字体文件
	families map[string]*fontFamilyEntry
}

type fontFamilyEntry struct {
	family *canvas.FontFamily
	style  canvas.FontStyle
}

// NewFontCache 读取注册字体。路径读取失败的字体会被忽略，使用时回退到内置字体。
func NewFontCache(resources map[string]fetch.Resource) *FontCache {
	fc := &FontCache{
		blobs:    map[string][]byte{},
		families: map[string]*fontFamilyEntry{},
	}
	for name, res := range resources {
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if len(res.Bytes) > 0 {
			fc.blobs[key] = res.Bytes
			continue
		}
		if res.Path != "" {
			data, _ := os.ReadFile(res.Path)
			if len(data) > 0 {
				fc.blobs[key] = data
			}
		}
	}
	return fc
}

// face 返回指定字体族、字形和字号（pt）的字体面。调用方需持有 fc.mu。
func (fc *FontCache) face(familyName string, style canvas.FontStyle, sizePt float64, col color.Color) (*canvas.FontFace, error) {
	family, resolved, err := fc.ensureFamily(familyName, style)
	if err != nil {
		return nil, err
	}
	return family.Face(sizePt, col, resolved, canvas.FontNormal), nil
}

func (fc *FontCache) ensureFamily(familyName string, style canvas.FontStyle) (*canvas.FontFamily, canvas.FontStyle, error) {
	key := fmt.Sprintf("%s|%d", strings.ToLower(familyName), style)
	if entry, ok := fc.families[key]; ok {
		return entry.family, entry.style, nil
	}

	if data, ok := fc.blobs[strings.ToLower(familyName)]; ok {
		family := canvas.NewFontFamily(familyName)
		if err := family.LoadFont(data, 0, style); err == nil {
			fc.families[key] = &fontFamilyEntry{family: family, style: style}
			return family, style, nil
		} else {
			log.Warnf("加载字体 %s 失败，使用内置字体: %v", familyName, err)
		}
	}

	name := fonts.Fallback(familyName, builtinStyle(style))
	data, err := fonts.Load(name)
	if err != nil {
		return nil, canvas.FontRegular, err
	}
	family := canvas.NewFontFamily(name)
	if err := family.LoadFont(data, 0, style); err != nil {
		return nil, canvas.FontRegular, fmt.Errorf("加载内置字体 %s 失败: %w", name, err)
	}
	fc.families[key] = &fontFamilyEntry{family: family, style: style}
	return family, style, nil
}

func builtinStyle(style canvas.FontStyle) fonts.Style {
	weight := style &^ canvas.FontItalic
	bold := weight == canvas.FontSemiBold || weight == canvas.FontBold || weight == canvas.FontExtraBold || weight == canvas.FontBlack
	italic := style&canvas.FontItalic != 0
	switch {
	case bold && italic:
		return fonts.BoldItalic
	case bold:
		return fonts.Bold
	case italic:
		return fonts.Italic
	default:
		return fonts.Regular
	}
}

// fontStyle 将 fontWeight/fontStyle 字段映射为 canvas 字形。
func fontStyle(bold bool, style string) canvas.FontStyle {
	result := canvas.FontRegular
	if bold {
		result = canvas.FontBold
	}
	s := strings.ToLower(style)
	if strings.Contains(s, "italic") || strings.Contains(s, "oblique") {
		result |= canvas.FontItalic
	}
	return result
}
