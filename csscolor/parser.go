package csscolor

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	colorLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
		{Name: "Hex", Pattern: `#[0-9A-Fa-f]+`},
		{Name: "Number", Pattern: `[-+]?(?:\d*\.\d+|\d+)(?:%|deg)?`},
		{Name: "Ident", Pattern: `[A-Za-z][A-Za-z0-9-]*`},
		{Name: "Punct", Pattern: `[(),/]`},
	})

	exprParser = participle.MustBuild[Expr](
		participle.Lexer(colorLexer),
		participle.Elide("Whitespace"),
		participle.UseLookahead(2),
	)
)

// Expr is the root AST node of a CSS color value.
type Expr struct {
	Func *FuncCall `parser:"  @@"`
	Hex  *string   `parser:"| @Hex"`
	Name *string   `parser:"| @Ident"`
}

// FuncCall captures rgb()/rgba()/hsl()/hsla() notation; comma, space and slash separators are all accepted.
type FuncCall struct {
	Name string   `parser:"@Ident '('"`
	Args []string `parser:"( @Number ( ( ',' | '/' )? @Number )* )? ')'"`
}

// ParseExpr parses a color value into its AST without evaluating it.
func ParseExpr(input string) (*Expr, error) {
	return exprParser.ParseString("", strings.TrimSpace(input))
}

// Parse 将 CSS 颜色字符串解析为非预乘 RGBA。
func Parse(input string) (color.NRGBA, error) {
	if strings.TrimSpace(input) == "" {
		return color.NRGBA{}, fmt.Errorf("颜色值为空")
	}
	expr, err := ParseExpr(input)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("颜色值 %q 无法解析: %w", input, err)
	}
	return expr.Eval()
}

// ParseOr 在解析失败时返回 fallback。
func ParseOr(input string, fallback color.NRGBA) color.NRGBA {
	c, err := Parse(input)
	if err != nil {
		return fallback
	}
	return c
}

// Eval 计算表达式对应的颜色。
func (e *Expr) Eval() (color.NRGBA, error) {
	switch {
	case e == nil:
		return color.NRGBA{}, fmt.Errorf("颜色表达式为空")
	case e.Hex != nil:
		return parseHex(*e.Hex)
	case e.Func != nil:
		return e.Func.eval()
	case e.Name != nil:
		name := strings.ToLower(*e.Name)
		if c, ok := namedColors[name]; ok {
			return c, nil
		}
		return color.NRGBA{}, fmt.Errorf("未知颜色名 %s", *e.Name)
	default:
		return color.NRGBA{}, fmt.Errorf("颜色表达式为空")
	}
}

func (f *FuncCall) eval() (color.NRGBA, error) {
	name := strings.ToLower(f.Name)
	switch name {
	case "rgb", "rgba":
		if len(f.Args) != 3 && len(f.Args) != 4 {
			return color.NRGBA{}, fmt.Errorf("%s() 需要 3 或 4 个参数，实际 %d", name, len(f.Args))
		}
		var ch [3]uint8
		for i := 0; i < 3; i++ {
			v, err := channel(f.Args[i])
			if err != nil {
				return color.NRGBA{}, err
			}
			ch[i] = v
		}
		a := uint8(255)
		if len(f.Args) == 4 {
			v, err := alpha(f.Args[3])
			if err != nil {
				return color.NRGBA{}, err
			}
			a = v
		}
		return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: a}, nil
	case "hsl", "hsla":
		if len(f.Args) != 3 && len(f.Args) != 4 {
			return color.NRGBA{}, fmt.Errorf("%s() 需要 3 或 4 个参数，实际 %d", name, len(f.Args))
		}
		h, err := strconv.ParseFloat(strings.TrimSuffix(f.Args[0], "deg"), 64)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("色相 %s 无法解析: %w", f.Args[0], err)
		}
		s, err := percent(f.Args[1])
		if err != nil {
			return color.NRGBA{}, err
		}
		l, err := percent(f.Args[2])
		if err != nil {
			return color.NRGBA{}, err
		}
		a := uint8(255)
		if len(f.Args) == 4 {
			if a, err = alpha(f.Args[3]); err != nil {
				return color.NRGBA{}, err
			}
		}
		r, g, b := hslToRGB(h, s, l)
		return color.NRGBA{R: r, G: g, B: b, A: a}, nil
	default:
		return color.NRGBA{}, fmt.Errorf("不支持的颜色函数 %s()", f.Name)
	}
}

func parseHex(value string) (color.NRGBA, error) {
	value = strings.TrimPrefix(value, "#")
	expand := func(s string) string {
		var b strings.Builder
		for _, r := range s {
			b.WriteRune(r)
			b.WriteRune(r)
		}
		return b.String()
	}
	switch len(value) {
	case 3, 4:
		value = expand(value)
	case 6, 8:
	default:
		return color.NRGBA{}, fmt.Errorf("颜色值 #%s 长度不合法", value)
	}
	c := color.NRGBA{R: hexByte(value[0:2]), G: hexByte(value[2:4]), B: hexByte(value[4:6]), A: 255}
	if len(value) == 8 {
		c.A = hexByte(value[6:8])
	}
	return c, nil
}

func hexByte(s string) uint8 {
	v, _ := strconv.ParseUint(s, 16, 8)
	return uint8(v)
}

// channel 解析 0-255 或百分比形式的颜色分量。
func channel(s string) (uint8, error) {
	if strings.HasSuffix(s, "%") {
		p, err := percent(s)
		if err != nil {
			return 0, err
		}
		return clampByte(p * 255), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("颜色分量 %s 无法解析: %w", s, err)
	}
	return clampByte(v), nil
}

// alpha 解析 0-1 或百分比形式的透明度。
func alpha(s string) (uint8, error) {
	if strings.HasSuffix(s, "%") {
		p, err := percent(s)
		if err != nil {
			return 0, err
		}
		return clampByte(p * 255), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("透明度 %s 无法解析: %w", s, err)
	}
	return clampByte(v * 255), nil
}

// percent 返回 0-1 之间的比例；不带 % 的数值同样按百分比处理。
func percent(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return 0, fmt.Errorf("百分比 %s 无法解析: %w", s, err)
	}
	return math.Max(0, math.Min(v/100, 1)), nil
}

func clampByte(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(v, 255))))
}

func hslToRGB(h, s, l float64) (uint8, uint8, uint8) {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	h /= 360
	if s == 0 {
		v := clampByte(l * 255)
		return v, v, v
	}
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	hue := func(t float64) float64 {
		if t < 0 {
			t++
		}
		if t > 1 {
			t--
		}
		switch {
		case t < 1.0/6:
			return p + (q-p)*6*t
		case t < 1.0/2:
			return q
		case t < 2.0/3:
			return p + (q-p)*(2.0/3-t)*6
		default:
			return p
		}
	}
	return clampByte(hue(h+1.0/3) * 255), clampByte(hue(h) * 255), clampByte(hue(h-1.0/3) * 255)
}
