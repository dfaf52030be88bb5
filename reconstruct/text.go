package reconstruct

import (
	"image/color"
	"math"
	"strings"

	"github.com/tdewolff/canvas"

	"github.com/ByLCY/slidethumb/layout"
	"github.com/ByLCY/slidethumb/scene"
)

// Text 文本图元。有宽度时为自动换行的文本框，否则为按显式换行分行、宽度自适应的文本。
type Text struct {
	node
	fonts      *FontCache
	family     string
	style      canvas.FontStyle
	fontSize   float64
	fill       color.NRGBA
	filled     bool
	align      string
	lines      []textLine
	ascent     float64
	advance    float64
	underline  bool
	strikeline bool
}

// Lines 返回换行后的各行内容。
func (t *Text) Lines() []string {
	out := make([]string, len(t.lines))
	for i, ln := range t.lines {
		out[i] = ln.Content
	}
	return out
}

func newText(obj *scene.Text, content string, fc *FontCache) (*Text, error) {
	fontSize := scene.ValueOr(obj.FontSize, scene.DefaultFontSize)
	if fontSize <= 0 {
		fontSize = scene.DefaultFontSize
	}
	lineHeight := scene.ValueOr(obj.LineHeight, scene.DefaultLineHeight)
	family := obj.FontFamily
	if family == "" {
		family = scene.DefaultFontFamily
	}
	t := &Text{
		fonts:      fc,
		family:     family,
		style:      fontStyle(obj.FontWeight.IsBold(), obj.FontStyle),
		fontSize:   fontSize,
		align:      strings.ToLower(obj.TextAlign),
		advance:    fontSize * lineHeight,
		underline:  obj.Underline,
		strikeline: obj.Linethrough,
	}
	t.fill, t.filled = fillOrNone(obj.Fill)

	boxWidth := scene.ValueOr(obj.Width, 0)
	fc.mu.Lock()
	face, err := fc.face(family, t.style, layout.FontSizePt(fontSize), color.Black)
	if err != nil {
		fc.mu.Unlock()
		return nil, err
	}
	mode := wrapWords
	if obj.SplitByGrapheme {
		mode = wrapGraphemes
	}
	t.lines = greedyWrap(content, boxWidth, face, mode)
	t.ascent = face.Metrics().Ascent
	fc.mu.Unlock()

	width := boxWidth
	if width <= 0 {
		for _, ln := range t.lines {
			width = math.Max(width, ln.Width)
		}
	}
	t.node = newNode(obj, width, float64(len(t.lines))*t.advance)
	return t, nil
}

func (t *Text) Draw(ctx *canvas.Context) { t.paint(ctx, 1) }

func (t *Text) paint(ctx *canvas.Context, alpha float64) {
	a := t.alpha(alpha)
	if !t.filled || a <= 0 || len(t.lines) == 0 {
		return
	}
	col := fade(t.fill, a)

	var textAlign canvas.TextAlign
	var anchorX float64
	switch t.align {
	case "center":
		textAlign = canvas.Center
		anchorX = t.width / 2
	case "right", "end":
		textAlign = canvas.Right
		anchorX = t.width
	default:
		textAlign = canvas.Left
	}

	t.fonts.mu.Lock()
	face, err := t.fonts.face(t.family, t.style, layout.FontSizePt(t.fontSize), col)
	if err != nil {
		t.fonts.mu.Unlock()
		log.Warnf("绘制文本失败: %v", err)
		return
	}
	runs := make([]*canvas.Text, len(t.lines))
	for i, ln := range t.lines {
		runs[i] = canvas.NewTextLine(face, ln.Content, textAlign)
	}
	t.fonts.mu.Unlock()

	t.enter(ctx)
	defer ctx.Pop()
	// 行内容在行高内垂直居中，基线 = 行顶 + 半行距 + 上升部
	halfLeading := math.Max(t.advance-t.fontSize, 0) / 2
	thickness := math.Max(t.fontSize/15, 1)
	for i, ln := range t.lines {
		top := float64(i) * t.advance
		baseline := top + halfLeading + t.ascent
		ctx.DrawText(anchorX, baseline, runs[i])

		if (!t.underline && !t.strikeline) || ln.Width <= 0 {
			continue
		}
		x := anchorX
		switch textAlign {
		case canvas.Center:
			x -= ln.Width / 2
		case canvas.Right:
			x -= ln.Width
		}
		ctx.SetFillColor(col)
		ctx.SetStrokeColor(noPaint)
		if t.underline {
			ctx.DrawPath(x, baseline+t.fontSize*0.1, canvas.Rectangle(ln.Width, thickness))
		}
		if t.strikeline {
			ctx.DrawPath(x, baseline-t.fontSize*0.3, canvas.Rectangle(ln.Width, thickness))
		}
	}
}
