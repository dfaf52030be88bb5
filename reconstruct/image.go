package reconstruct

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/tdewolff/canvas"

	"github.com/ByLCY/slidethumb/fetch"
	"github.com/ByLCY/slidethumb/scene"
)

// Image 图片图元。裁剪、圆角与不透明度在构建时已作用到像素上。
type Image struct {
	node
	img image.Image
	// ClipRadius 是局部坐标下的圆角半径（borderRadius / scaleX），0 表示不裁剪。
	ClipRadius float64
}

// Bitmap 返回处理后的位图。
func (i *Image) Bitmap() image.Image { return i.img }

func newImage(ctx context.Context, obj *scene.Image, fetcher fetch.Fetcher) (*Image, error) {
	if obj.Src == "" {
		return nil, fmt.Errorf("图片缺少 src")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("未配置图片加载器")
	}
	src, err := fetcher.Fetch(ctx, obj.Src)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("图片 %s 为空", obj.Src)
	}

	cropped := crop(src, obj)
	b := cropped.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("图片 %s 裁剪后为空", obj.Src)
	}
	width := scene.ValueOr(obj.Width, float64(b.Dx()))
	height := scene.ValueOr(obj.Height, float64(b.Dy()))

	img := &Image{node: newNode(obj, width, height), img: cropped}
	if obj.HasClip() {
		if radius := scene.ValueOr(obj.BorderRadius, 0); radius > 0 && img.place.ScaleX != 0 {
			img.ClipRadius = radius / math.Abs(img.place.ScaleX)
			img.img = roundCorners(cropped, img.ClipRadius*float64(b.Dx())/math.Max(width, 1))
		}
	}
	return img, nil
}

// crop 按 cropX/cropY 与 width/height 截取源图，越界部分被丢弃。
func crop(src image.Image, obj *scene.Image) image.Image {
	b := src.Bounds()
	x0 := b.Min.X + int(math.Round(scene.ValueOr(obj.CropX, 0)))
	y0 := b.Min.Y + int(math.Round(scene.ValueOr(obj.CropY, 0)))
	x1, y1 := b.Max.X, b.Max.Y
	if obj.Width != nil {
		x1 = x0 + int(math.Round(*obj.Width))
	}
	if obj.Height != nil {
		y1 = y0 + int(math.Round(*obj.Height))
	}
	rect := image.Rect(x0, y0, x1, y1).Intersect(b)
	if rect == b {
		return src
	}
	dst := image.NewNRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), src, rect.Min, draw.Src)
	return dst
}

// roundedMask 是圆角矩形的 alpha 遮罩，角上按覆盖率做简单抗锯齿。
type roundedMask struct {
	w, h int
	r    float64
}

func (m roundedMask) ColorModel() color.Model { return color.AlphaModel }
func (m roundedMask) Bounds() image.Rectangle { return image.Rect(0, 0, m.w, m.h) }

func (m roundedMask) At(x, y int) color.Color {
	px, py := float64(x)+0.5, float64(y)+0.5
	cx := clamp(px, m.r, float64(m.w)-m.r)
	cy := clamp(py, m.r, float64(m.h)-m.r)
	d := math.Hypot(px-cx, py-cy)
	cover := clamp(m.r-d+0.5, 0, 1)
	return color.Alpha{A: uint8(math.Round(cover * 255))}
}

func roundCorners(src image.Image, radius float64) image.Image {
	b := src.Bounds()
	radius = math.Min(radius, math.Min(float64(b.Dx()), float64(b.Dy()))/2)
	if radius <= 0 {
		return src
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.DrawMask(dst, dst.Bounds(), src, b.Min, roundedMask{w: b.Dx(), h: b.Dy(), r: radius}, image.Point{}, draw.Over)
	return dst
}

// withOpacity 返回按 alpha 淡化的位图副本。
func withOpacity(src image.Image, alpha float64) image.Image {
	if alpha >= 1 {
		return src
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	mask := image.NewUniform(color.Alpha{A: uint8(math.Round(clamp(alpha, 0, 1) * 255))})
	draw.DrawMask(dst, dst.Bounds(), src, b.Min, mask, image.Point{}, draw.Over)
	return dst
}

func (i *Image) Draw(ctx *canvas.Context) { i.paint(ctx, 1) }

func (i *Image) paint(ctx *canvas.Context, alpha float64) {
	a := i.alpha(alpha)
	if a <= 0 || i.width <= 0 || i.height <= 0 {
		return
	}
	i.enter(ctx)
	defer ctx.Pop()
	b := i.img.Bounds()
	// 位图按局部包围盒拉伸：先缩放到 width × height，再以 1 像素/单位绘制
	ctx.ComposeView(canvas.Identity.Scale(i.width/float64(b.Dx()), i.height/float64(b.Dy())))
	ctx.DrawImage(0, 0, withOpacity(i.img, a), canvas.DPMM(1))
}
