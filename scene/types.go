package scene

// 该文件定义幻灯片场景文档的数据模型：背景 + 无序的图元描述集合。

import (
	"bytes"
	"encoding/json"
	"image/color"
)

// Kind 是图元的类型标签。
type Kind string

const (
	KindText     Kind = "text"
	KindRect     Kind = "rect"
	KindCircle   Kind = "circle"
	KindTriangle Kind = "triangle"
	KindLine     Kind = "line"
	KindGroup    Kind = "group"
	KindImage    Kind = "image"
	KindUnknown  Kind = "unknown"
)

// 缺省值，与编辑器序列化时省略字段的语义保持一致。
const (
	DefaultFill        = "#000000"
	DefaultBackground  = "#ffffff"
	DefaultFontSize    = 40.0
	DefaultStrokeWidth = 0.0
	DefaultLineHeight  = 1.16
	DefaultFontFamily  = "Times New Roman"
	DefaultTextAlign   = "left"
)

// SlideDocument describes exactly one slide. It is never mutated after decoding.
type SlideDocument struct {
	Background Paint    `json:"background"`
	Objects    []Object `json:"-"`
}

// BackgroundColor 返回背景色，缺失或无法解析时为白色。
func (d *SlideDocument) BackgroundColor() color.Color {
	if d == nil {
		return color.White
	}
	return d.Background.Color(DefaultBackground)
}

// Object is a closed sum type: one of the seven known variants or *Unknown.
type Object interface {
	Kind() Kind
	Common() *Base
	sealed()
}

// Base 保存所有图元共有的可选字段。
type Base struct {
	Type    string   `json:"type"`
	Left    *float64 `json:"left,omitempty"`
	Top     *float64 `json:"top,omitempty"`
	Angle   *float64 `json:"angle,omitempty"`
	ScaleX  *float64 `json:"scaleX,omitempty"`
	ScaleY  *float64 `json:"scaleY,omitempty"`
	ZIndex  *float64 `json:"zIndex,omitempty"`
	OriginX string   `json:"originX,omitempty"`
	OriginY string   `json:"originY,omitempty"`
	Opacity *float64 `json:"opacity,omitempty"`
	FlipX   bool     `json:"flipX,omitempty"`
	FlipY   bool     `json:"flipY,omitempty"`
	Visible *bool    `json:"visible,omitempty"`
}

func (b *Base) Common() *Base { return b }
func (b *Base) sealed()       {}

// Z 返回绘制顺序键，缺省为 0。
func (b *Base) Z() float64 { return valueOr(b.ZIndex, 0) }

// IsVisible 缺省为 true。
func (b *Base) IsVisible() bool { return b.Visible == nil || *b.Visible }

// Placement 返回已填充缺省值的位置与变换参数。
func (b *Base) Placement() Placement {
	return Placement{
		Left:    valueOr(b.Left, 0),
		Top:     valueOr(b.Top, 0),
		Angle:   valueOr(b.Angle, 0),
		ScaleX:  valueOr(b.ScaleX, 1),
		ScaleY:  valueOr(b.ScaleY, 1),
		OriginX: originOr(b.OriginX, "left"),
		OriginY: originOr(b.OriginY, "top"),
		Opacity: clamp01(valueOr(b.Opacity, 1)),
		FlipX:   b.FlipX,
		FlipY:   b.FlipY,
	}
}

// Placement 是解析后的变换参数，坐标均为文档原始坐标系（未缩放）。
type Placement struct {
	Left, Top      float64
	Angle          float64 // 顺时针，单位度
	ScaleX, ScaleY float64
	OriginX        string // left/center/right
	OriginY        string // top/center/bottom
	Opacity        float64
	FlipX, FlipY   bool
}

// Text 对应 text/textbox/i-text。Width 存在时为自动换行文本框，否则为自适应宽度的单行文本。
type Text struct {
	Base
	Text        string   `json:"text"`
	Width       *float64 `json:"width,omitempty"`
	FontSize    *float64 `json:"fontSize,omitempty"`
	Fill        Paint    `json:"fill"`
	FontFamily  string   `json:"fontFamily,omitempty"`
	FontWeight  Weight   `json:"fontWeight,omitempty"`
	FontStyle   string   `json:"fontStyle,omitempty"`
	TextAlign   string   `json:"textAlign,omitempty"`
	LineHeight  *float64 `json:"lineHeight,omitempty"`
	Underline   bool     `json:"underline,omitempty"`
	Linethrough bool     `json:"linethrough,omitempty"`

	// SplitByGrapheme 允许文本框在任意字符之间折行（无空格的文字）。
	SplitByGrapheme bool `json:"splitByGrapheme,omitempty"`
}

// Rect 矩形，可带圆角。
type Rect struct {
	Base
	Width       *float64 `json:"width,omitempty"`
	Height      *float64 `json:"height,omitempty"`
	Fill        Paint    `json:"fill"`
	Stroke      Paint    `json:"stroke"`
	StrokeWidth *float64 `json:"strokeWidth,omitempty"`
	Rx          *float64 `json:"rx,omitempty"`
	Ry          *float64 `json:"ry,omitempty"`
}

// Circle 圆形，包围盒为 2r × 2r。
type Circle struct {
	Base
	Radius      *float64 `json:"radius,omitempty"`
	Fill        Paint    `json:"fill"`
	Stroke      Paint    `json:"stroke"`
	StrokeWidth *float64 `json:"strokeWidth,omitempty"`
}

// Triangle 等腰三角形，顶点位于包围盒上边中点。
type Triangle struct {
	Base
	Width       *float64 `json:"width,omitempty"`
	Height      *float64 `json:"height,omitempty"`
	Fill        Paint    `json:"fill"`
	Stroke      Paint    `json:"stroke"`
	StrokeWidth *float64 `json:"strokeWidth,omitempty"`
}

// Line 保留完整的原始描述，由重建器按原样恢复。
type Line struct {
	Base
	Raw json.RawMessage `json:"-"`
}

// Group 保留完整的原始描述（含子图元），由重建器按原样恢复。
type Group struct {
	Base
	Raw json.RawMessage `json:"-"`
}

// Image 图片图元。ClipPath 只作为开关使用：存在且非 false/null 时与 BorderRadius 共同生成圆角裁剪。
type Image struct {
	Base
	Src          string          `json:"src"`
	CropX        *float64        `json:"cropX,omitempty"`
	CropY        *float64        `json:"cropY,omitempty"`
	Width        *float64        `json:"width,omitempty"`
	Height       *float64        `json:"height,omitempty"`
	ClipPath     json.RawMessage `json:"clipPath,omitempty"`
	BorderRadius *float64        `json:"borderRadius,omitempty"`
}

// HasClip 判断 clipPath 开关是否打开。
func (i *Image) HasClip() bool {
	switch string(bytes.TrimSpace(i.ClipPath)) {
	case "", "null", "false", "0", `""`:
		return false
	default:
		return true
	}
}

// Unknown 是无法识别或无法解码的图元，总是可以安全丢弃。
type Unknown struct {
	Base
	Raw json.RawMessage `json:"-"`
	Err error           `json:"-"`
}

func (*Text) Kind() Kind     { return KindText }
func (*Rect) Kind() Kind     { return KindRect }
func (*Circle) Kind() Kind   { return KindCircle }
func (*Triangle) Kind() Kind { return KindTriangle }
func (*Line) Kind() Kind     { return KindLine }
func (*Group) Kind() Kind    { return KindGroup }
func (*Image) Kind() Kind    { return KindImage }
func (*Unknown) Kind() Kind  { return KindUnknown }

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// ValueOr 返回指针指向的值，nil 时返回 def。
func ValueOr(v *float64, def float64) float64 { return valueOr(v, def) }

func originOr(v, def string) string {
	switch v {
	case "left", "center", "right", "top", "bottom":
		return v
	default:
		return def
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
