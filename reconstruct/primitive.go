package reconstruct

import (
	"image/color"
	"math"

	"github.com/tdewolff/canvas"

	"github.com/ByLCY/slidethumb/scene"
)

// Interactivity 描述图元是否可被选择或响应事件。缩略图中的图元总是惰性的。
type Interactivity struct {
	Selectable bool
	Evented    bool
}

// Inert 是所有重建图元共享的交互属性。
var Inert = Interactivity{Selectable: false, Evented: false}

// Primitive is a drawable reconstructed from one scene object.
// Draw paints it onto ctx in document coordinates; the caller sets up the viewport scale.
type Primitive interface {
	Kind() scene.Kind
	Source() scene.Object
	Interactivity() Interactivity
	// Size 返回未变换的局部包围盒尺寸。
	Size() (width, height float64)
	Draw(ctx *canvas.Context)

	paint(ctx *canvas.Context, alpha float64)
}

// node 保存图元的公共部分：来源描述、局部包围盒与变换参数。
type node struct {
	source scene.Object
	place  scene.Placement
	width  float64
	height float64
}

func newNode(obj scene.Object, width, height float64) node {
	return node{
		source: obj,
		place:  obj.Common().Placement(),
		width:  math.Max(width, 0),
		height: math.Max(height, 0),
	}
}

func (n *node) Kind() scene.Kind             { return n.source.Kind() }
func (n *node) Source() scene.Object         { return n.source }
func (n *node) Interactivity() Interactivity { return Inert }
func (n *node) Size() (float64, float64)     { return n.width, n.height }
func (n *node) alpha(parent float64) float64 { return parent * n.place.Opacity }

// transform 将局部坐标（左上角为原点，未缩放）映射到父坐标：
// translate(left, top) → rotate(angle) → scale → origin 偏移 → 绕中心翻转。
func (n *node) transform() canvas.Matrix {
	p := n.place
	m := canvas.Identity.
		Translate(p.Left, p.Top).
		Rotate(p.Angle).
		Scale(p.ScaleX, p.ScaleY).
		Translate(-originOffset(p.OriginX, n.width), -originOffset(p.OriginY, n.height))
	if p.FlipX || p.FlipY {
		fx, fy := 1.0, 1.0
		if p.FlipX {
			fx = -1
		}
		if p.FlipY {
			fy = -1
		}
		m = m.Translate(n.width/2, n.height/2).Scale(fx, fy).Translate(-n.width/2, -n.height/2)
	}
	return m
}

// enter 压栈并应用图元变换；与 ctx.Pop 成对使用。
func (n *node) enter(ctx *canvas.Context) {
	ctx.Push()
	ctx.ComposeView(n.transform())
}

func originOffset(origin string, extent float64) float64 {
	switch origin {
	case "center":
		return extent / 2
	case "right", "bottom":
		return extent
	default:
		return 0
	}
}

var noPaint = color.RGBA{0, 0, 0, 0}

// fade 按不透明度缩放颜色的 alpha。
func fade(c color.NRGBA, alpha float64) color.NRGBA {
	c.A = uint8(math.Round(float64(c.A) * clamp(alpha, 0, 1)))
	return c
}

// stroke 是解析后的描边参数，Width 为 0 时不描边。
type stroke struct {
	Color color.NRGBA
	Width float64
}

func resolveStroke(p scene.Paint, width *float64) stroke {
	w := scene.ValueOr(width, scene.DefaultStrokeWidth)
	c, ok := p.Resolve("")
	if !ok || w <= 0 {
		return stroke{}
	}
	return stroke{Color: c, Width: w}
}

// fillOrNone 解析填充色，缺失时为黑色，显式置空时不填充。
func fillOrNone(p scene.Paint) (color.NRGBA, bool) {
	return p.Resolve(scene.DefaultFill)
}

func applyStyle(ctx *canvas.Context, fill color.NRGBA, filled bool, st stroke, alpha float64) {
	if filled {
		ctx.SetFillColor(fade(fill, alpha))
	} else {
		ctx.SetFillColor(noPaint)
	}
	if st.Width > 0 {
		ctx.SetStrokeColor(fade(st.Color, alpha))
		ctx.SetStrokeWidth(st.Width)
	} else {
		ctx.SetStrokeColor(noPaint)
		ctx.SetStrokeWidth(0)
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
