package fonts

import (
	"fmt"
	"strings"

	"github.com/go-fonts/latin-modern/lmroman10bold"
	"github.com/go-fonts/latin-modern/lmroman10bolditalic"
	"github.com/go-fonts/latin-modern/lmroman10italic"
	"github.com/go-fonts/latin-modern/lmroman10regular"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
)

// Style 是内置字体的字重/字形组合。
type Style int

const (
	Regular Style = iota
	Bold
	Italic
	BoldItalic
)

var builtin = map[string][]byte{
	"Go-Regular":    goregular.TTF,
	"Go-Bold":       gobold.TTF,
	"Go-Italic":     goitalic.TTF,
	"Go-BoldItalic": gobolditalic.TTF,
	"Go-Mono":       gomono.TTF,
	"Go-Mono-Bold":  gomonobold.TTF,

	// Latin Modern Roman 是 OTF（CFF 轮廓），canvas 同样能加载
	"LM-Roman":            lmroman10regular.TTF,
	"LM-Roman-Bold":       lmroman10bold.TTF,
	"LM-Roman-Italic":     lmroman10italic.TTF,
	"LM-Roman-BoldItalic": lmroman10bolditalic.TTF,
}

// Load 返回内置字体的字节数据，name 可写为 "embed:Go-Regular" 或直接 "Go-Regular"。
func Load(name string) ([]byte, error) {
	name = strings.TrimPrefix(name, "embed:")
	name = strings.TrimSuffix(strings.TrimSuffix(name, ".ttf"), ".otf")
	data, ok := builtin[name]
	if !ok {
		return nil, fmt.Errorf("读取内置字体 %s 失败: 不存在", name)
	}
	return data, nil
}

// Fallback 为字体族名选择一个内置字体：等宽族名映射到 Go Mono，衬线族名映射到
// Latin Modern Roman，其余映射到 Go 比例字体。
func Fallback(family string, style Style) string {
	if isMonospace(family) {
		if style == Bold || style == BoldItalic {
			return "Go-Mono-Bold"
		}
		return "Go-Mono"
	}
	if isSerif(family) {
		switch style {
		case Bold:
			return "LM-Roman-Bold"
		case Italic:
			return "LM-Roman-Italic"
		case BoldItalic:
			return "LM-Roman-BoldItalic"
		default:
			return "LM-Roman"
		}
	}
	switch style {
	case Bold:
		return "Go-Bold"
	case Italic:
		return "Go-Italic"
	case BoldItalic:
		return "Go-BoldItalic"
	default:
		return "Go-Regular"
	}
}

func isMonospace(family string) bool {
	f := strings.ToLower(family)
	for _, hint := range []string{"mono", "courier", "consol", "menlo", "code"} {
		if strings.Contains(f, hint) {
			return true
		}
	}
	return false
}

func isSerif(family string) bool {
	f := strings.ToLower(family)
	if strings.Contains(f, "sans") {
		return false
	}
	for _, hint := range []string{"serif", "times", "roman", "georgia", "garamond", "palatino", "cambria", "baskerville", "song", "mincho"} {
		if strings.Contains(f, hint) {
			return true
		}
	}
	return false
}
