package scene

import (
	"bytes"
	"encoding/json"
	"image/color"
	"sort"
	"strconv"
	"strings"

	"github.com/ByLCY/slidethumb/csscolor"
)

// Paint 是 fill/stroke 字段的值。Set 区分"字段缺失"（使用缺省值）与"显式置空"（不绘制）。
// 渐变填充退化为其第一个色标的颜色。
type Paint struct {
	Set      bool
	Value    string
	Gradient bool
}

// UnmarshalJSON 接受字符串、null 或带 colorStops 的渐变对象。
func (p *Paint) UnmarshalJSON(data []byte) error {
	p.Set = true
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	switch data[0] {
	case '"':
		return json.Unmarshal(data, &p.Value)
	case '{':
		var gradient struct {
			ColorStops []struct {
				Offset float64 `json:"offset"`
				Color  string  `json:"color"`
			} `json:"colorStops"`
		}
		if err := json.Unmarshal(data, &gradient); err != nil {
			return nil
		}
		stops := gradient.ColorStops
		sort.SliceStable(stops, func(i, j int) bool { return stops[i].Offset < stops[j].Offset })
		if len(stops) > 0 {
			p.Value = stops[0].Color
			p.Gradient = true
		}
		return nil
	default:
		return nil
	}
}

// MarshalJSON 输出原始颜色字符串，便于调试 JSON。
func (p Paint) MarshalJSON() ([]byte, error) {
	if !p.Set || p.Value == "" {
		return []byte("null"), nil
	}
	return json.Marshal(p.Value)
}

// Resolve 返回应使用的颜色；ok 为 false 表示不绘制。
// 字段缺失时使用 def（def 为空表示缺省即不绘制）。
func (p Paint) Resolve(def string) (c color.NRGBA, ok bool) {
	value := p.Value
	if !p.Set {
		value = def
	}
	if strings.TrimSpace(value) == "" {
		return color.NRGBA{}, false
	}
	c, err := csscolor.Parse(value)
	if err != nil {
		if def == "" {
			return color.NRGBA{}, false
		}
		c = csscolor.ParseOr(def, color.NRGBA{A: 255})
	}
	if c.A == 0 {
		return c, false
	}
	return c, true
}

// Color 与 Resolve 相同，但总是返回一个颜色（不绘制时为透明）。
func (p Paint) Color(def string) color.Color {
	c, ok := p.Resolve(def)
	if !ok {
		return color.Transparent
	}
	return c
}

// Weight 兼容 "bold" 与 700 两种写法。
type Weight string

// UnmarshalJSON 接受字符串或数字。
func (w *Weight) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*w = Weight(s)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*w = Weight(strconv.FormatFloat(n, 'f', -1, 64))
	return nil
}

// IsBold 对 bold/bolder 以及 ≥600 的数值返回 true。
func (w Weight) IsBold() bool {
	s := strings.ToLower(strings.TrimSpace(string(w)))
	switch s {
	case "bold", "bolder":
		return true
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n >= 600
	}
	return false
}
