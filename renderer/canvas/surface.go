package canvasrenderer

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"

	"github.com/ByLCY/slidethumb/layout"
	"github.com/ByLCY/slidethumb/reconstruct"
	"github.com/ByLCY/slidethumb/renderer"
)

// Surface 是一个挂载点上的绘制表面，尺寸为缩略图盒，视口统一缩放 scale 倍，
// 图元因此使用文档原始坐标。
type Surface struct {
	Width      int
	Height     int
	Scale      float64
	Background color.Color
	// Placeholder 为 true 表示没有可渲染的幻灯片，只绘制背景。
	Placeholder bool

	primitives []reconstruct.Primitive
	canvas     *canvas.Canvas
}

func newSurface(thumb layout.Thumbnail, background color.Color, placeholder bool) *Surface {
	s := &Surface{
		Width:       max(thumb.Width, 1),
		Height:      max(thumb.Height, 1),
		Scale:       thumb.Scale,
		Background:  background,
		Placeholder: placeholder,
	}
	if s.Scale <= 0 {
		s.Scale = 1
	}
	return s
}

// Primitives 返回按绘制顺序插入的图元。
func (s *Surface) Primitives() []reconstruct.Primitive { return s.primitives }

// Painted 表示表面已完成绘制且尚未释放。
func (s *Surface) Painted() bool { return s.canvas != nil }

// paint 重新生成画布：背景铺满缩略图盒，随后在缩放视口中依次绘制图元。
func (s *Surface) paint() {
	w, h := float64(s.Width), float64(s.Height)
	c := canvas.New(w, h)
	ctx := canvas.NewContext(c)
	ctx.SetCoordSystem(canvas.CartesianIV) // 左上角为原点，y 轴向下

	ctx.SetFillColor(s.Background)
	ctx.SetStrokeColor(color.RGBA{0, 0, 0, 0})
	ctx.DrawPath(0, 0, canvas.Rectangle(w, h))

	ctx.ComposeView(canvas.Identity.Scale(s.Scale, s.Scale))
	for _, p := range s.primitives {
		p.Draw(ctx)
	}
	s.canvas = c
}

func (s *Surface) release() {
	s.canvas = nil
	s.primitives = nil
}

// Rasterize 以 1 像素/单位栅格化表面。
func (s *Surface) Rasterize() (*image.RGBA, error) {
	if s.canvas == nil {
		return nil, fmt.Errorf("表面尚未绘制或已释放")
	}
	return rasterizer.Draw(s.canvas, canvas.DPMM(1), canvas.DefaultColorSpace), nil
}

// Encode 以指定格式写出表面。
func (s *Surface) Encode(w io.Writer, format renderer.Format, info DocumentInfo) error {
	if s.canvas == nil {
		return fmt.Errorf("表面尚未绘制或已释放")
	}
	switch format {
	case renderer.FormatPDF:
		writer := pdf.New(w, s.canvas.W, s.canvas.H, nil)
		writer.SetInfo(info.Title, info.Subject, info.Keywords, info.Author, info.Creator)
		s.canvas.RenderTo(writer)
		if err := writer.Close(); err != nil {
			return fmt.Errorf("写入 PDF 失败: %w", err)
		}
		return nil
	case renderer.FormatSVG:
		writer := svg.New(w, s.canvas.W, s.canvas.H, nil)
		s.canvas.RenderTo(writer)
		if err := writer.Close(); err != nil {
			return fmt.Errorf("写入 SVG 失败: %w", err)
		}
		return nil
	default:
		img, err := s.Rasterize()
		if err != nil {
			return err
		}
		if err := png.Encode(w, img); err != nil {
			return fmt.Errorf("写入 PNG 失败: %w", err)
		}
		return nil
	}
}

// DocumentInfo 是写入 PDF 的文档信息。
type DocumentInfo struct {
	Title    string
	Subject  string
	Keywords string
	Author   string
	Creator  string
}
