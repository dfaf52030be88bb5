package reconstruct

import (
	"encoding/json"
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/tdewolff/canvas"

	"github.com/ByLCY/slidethumb/scene"
)

// Rect 矩形图元，rx/ry 非零时绘制圆角。
type Rect struct {
	node
	fill   color.NRGBA
	filled bool
	stroke stroke
	radius float64
}

func newRect(obj *scene.Rect) *Rect {
	r := &Rect{node: newNode(obj, scene.ValueOr(obj.Width, 0), scene.ValueOr(obj.Height, 0))}
	r.fill, r.filled = fillOrNone(obj.Fill)
	r.stroke = resolveStroke(obj.Stroke, obj.StrokeWidth)
	r.radius = math.Max(scene.ValueOr(obj.Rx, 0), scene.ValueOr(obj.Ry, 0))
	r.radius = math.Min(r.radius, math.Min(r.width, r.height)/2)
	return r
}

func (r *Rect) Draw(ctx *canvas.Context) { r.paint(ctx, 1) }

func (r *Rect) paint(ctx *canvas.Context, alpha float64) {
	r.enter(ctx)
	defer ctx.Pop()
	applyStyle(ctx, r.fill, r.filled, r.stroke, r.alpha(alpha))
	if r.radius > 0 {
		ctx.DrawPath(0, 0, canvas.RoundedRectangle(r.width, r.height, r.radius))
		return
	}
	ctx.DrawPath(0, 0, canvas.Rectangle(r.width, r.height))
}

// Circle 圆形图元，局部包围盒为 2r × 2r。
type Circle struct {
	node
	fill   color.NRGBA
	filled bool
	stroke stroke
	radius float64
}

func newCircle(obj *scene.Circle) *Circle {
	radius := math.Max(scene.ValueOr(obj.Radius, 0), 0)
	c := &Circle{node: newNode(obj, 2*radius, 2*radius), radius: radius}
	c.fill, c.filled = fillOrNone(obj.Fill)
	c.stroke = resolveStroke(obj.Stroke, obj.StrokeWidth)
	return c
}

func (c *Circle) Draw(ctx *canvas.Context) { c.paint(ctx, 1) }

func (c *Circle) paint(ctx *canvas.Context, alpha float64) {
	c.enter(ctx)
	defer ctx.Pop()
	applyStyle(ctx, c.fill, c.filled, c.stroke, c.alpha(alpha))
	// canvas.Circle 以原点为圆心
	ctx.DrawPath(c.radius, c.radius, canvas.Circle(c.radius))
}

// Triangle 等腰三角形，顶点位于包围盒上边中点。
type Triangle struct {
	node
	fill   color.NRGBA
	filled bool
	stroke stroke
}

func newTriangle(obj *scene.Triangle) *Triangle {
	t := &Triangle{node: newNode(obj, scene.ValueOr(obj.Width, 0), scene.ValueOr(obj.Height, 0))}
	t.fill, t.filled = fillOrNone(obj.Fill)
	t.stroke = resolveStroke(obj.Stroke, obj.StrokeWidth)
	return t
}

func (t *Triangle) Draw(ctx *canvas.Context) { t.paint(ctx, 1) }

func (t *Triangle) paint(ctx *canvas.Context, alpha float64) {
	t.enter(ctx)
	defer ctx.Pop()
	applyStyle(ctx, t.fill, t.filled, t.stroke, t.alpha(alpha))
	p := &canvas.Path{}
	p.MoveTo(0, t.height)
	p.LineTo(t.width/2, 0)
	p.LineTo(t.width, t.height)
	p.Close()
	ctx.DrawPath(0, 0, p)
}

// lineState 是直线的完整存储描述。
type lineState struct {
	X1              float64     `json:"x1"`
	Y1              float64     `json:"y1"`
	X2              float64     `json:"x2"`
	Y2              float64     `json:"y2"`
	Stroke          scene.Paint `json:"stroke"`
	StrokeWidth     *float64    `json:"strokeWidth,omitempty"`
	StrokeLineCap   string      `json:"strokeLineCap,omitempty"`
	StrokeDashArray []float64   `json:"strokeDashArray,omitempty"`
}

// 直线没有填充，缺省描边沿用编辑器的 1px 黑线。
const defaultLineStrokeWidth = 1.0

// Line 直线图元。端点可以相对中心存储，也可以是绝对坐标，均按包围盒归一化。
type Line struct {
	node
	from, to [2]float64
	stroke   stroke
	capper   canvas.Capper
	dashes   []float64
}

func newLine(obj *scene.Line) (*Line, error) {
	var st lineState
	if err := json.Unmarshal(obj.Raw, &st); err != nil {
		return nil, fmt.Errorf("恢复直线描述失败: %w", err)
	}
	minX, minY := math.Min(st.X1, st.X2), math.Min(st.Y1, st.Y2)
	l := &Line{
		node:   newNode(obj, math.Abs(st.X2-st.X1), math.Abs(st.Y2-st.Y1)),
		from:   [2]float64{st.X1 - minX, st.Y1 - minY},
		to:     [2]float64{st.X2 - minX, st.Y2 - minY},
		capper: lineCap(st.StrokeLineCap),
	}
	c, ok := st.Stroke.Resolve(scene.DefaultFill)
	width := scene.ValueOr(st.StrokeWidth, defaultLineStrokeWidth)
	if ok && width > 0 {
		l.stroke = stroke{Color: c, Width: width}
	}
	for _, d := range st.StrokeDashArray {
		if d < 0 {
			l.dashes = nil
			break
		}
		l.dashes = append(l.dashes, d)
	}
	return l, nil
}

func lineCap(name string) canvas.Capper {
	switch strings.ToLower(name) {
	case "round":
		return canvas.RoundCap
	case "square":
		return canvas.SquareCap
	default:
		return canvas.ButtCap
	}
}

func (l *Line) Draw(ctx *canvas.Context) { l.paint(ctx, 1) }

func (l *Line) paint(ctx *canvas.Context, alpha float64) {
	if l.stroke.Width <= 0 {
		return
	}
	l.enter(ctx)
	defer ctx.Pop()
	applyStyle(ctx, color.NRGBA{}, false, l.stroke, l.alpha(alpha))
	ctx.SetStrokeCapper(l.capper)
	if len(l.dashes) > 0 {
		ctx.SetDashes(0, l.dashes...)
	}
	p := &canvas.Path{}
	p.MoveTo(l.from[0], l.from[1])
	p.LineTo(l.to[0], l.to[1])
	ctx.DrawPath(0, 0, p)
}

// groupState 是组合的完整存储描述，子图元坐标相对于组合中心。
type groupState struct {
	Width   *float64          `json:"width,omitempty"`
	Height  *float64          `json:"height,omitempty"`
	Objects []json.RawMessage `json:"objects"`
}

// Group 组合图元，按存储顺序绘制子图元。
type Group struct {
	node
	children []Primitive
}

// Children 返回成功重建的子图元。
func (g *Group) Children() []Primitive { return g.children }

func (g *Group) Draw(ctx *canvas.Context) { g.paint(ctx, 1) }

func (g *Group) paint(ctx *canvas.Context, alpha float64) {
	g.enter(ctx)
	defer ctx.Pop()
	ctx.ComposeView(canvas.Identity.Translate(g.width/2, g.height/2))
	a := g.alpha(alpha)
	for _, child := range g.children {
		child.paint(ctx, a)
	}
}
