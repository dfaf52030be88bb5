package reconstruct

import (
	"context"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"

	"github.com/ByLCY/slidethumb/fetch"
	"github.com/ByLCY/slidethumb/scene"
)

func decode(t *testing.T, raw string) scene.Object {
	t.Helper()
	obj := scene.DecodeObject([]byte(raw))
	require.NotNil(t, obj)
	return obj
}

func solid(w, h int, c color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func staticFetcher(img image.Image) fetch.Fetcher {
	return fetch.FetcherFunc(func(ctx context.Context, src string) (image.Image, error) {
		if src == "missing.png" {
			return nil, fetch.ErrNotFound
		}
		return img, nil
	})
}

func TestReconstructDispatchesByKind(t *testing.T) {
	r := New(Options{Fetcher: staticFetcher(solid(40, 30, color.White))})
	cases := []struct {
		raw  string
		kind scene.Kind
	}{
		{`{"type":"text","text":"hello"}`, scene.KindText},
		{`{"type":"textbox","text":"boxed","width":200}`, scene.KindText},
		{`{"type":"rect","width":10,"height":20}`, scene.KindRect},
		{`{"type":"circle","radius":5}`, scene.KindCircle},
		{`{"type":"triangle","width":10,"height":10}`, scene.KindTriangle},
		{`{"type":"line","x1":0,"y1":0,"x2":10,"y2":0,"stroke":"#333"}`, scene.KindLine},
		{`{"type":"group","width":10,"height":10,"objects":[]}`, scene.KindGroup},
		{`{"type":"image","src":"a.png"}`, scene.KindImage},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			p := r.Reconstruct(context.Background(), decode(t, tc.raw))
			require.NotNil(t, p)
			assert.Equal(t, tc.kind, p.Kind())
			assert.Equal(t, Inert, p.Interactivity())
			assert.False(t, p.Interactivity().Selectable)
			assert.False(t, p.Interactivity().Evented)
		})
	}
}

func TestReconstructDropsUndrawableObjects(t *testing.T) {
	r := New(Options{Fetcher: staticFetcher(solid(4, 4, color.White))})
	ctx := context.Background()

	assert.Nil(t, r.Reconstruct(ctx, nil))
	assert.Nil(t, r.Reconstruct(ctx, decode(t, `{"type":"star","points":5}`)))
	assert.Nil(t, r.Reconstruct(ctx, decode(t, `{"type":"rect","width":"wide"}`)))
	assert.Nil(t, r.Reconstruct(ctx, decode(t, `{"type":"rect","width":10,"height":10,"visible":false}`)))
	assert.Nil(t, r.Reconstruct(ctx, decode(t, `{"type":"image","src":"missing.png"}`)))
	assert.Nil(t, r.Reconstruct(ctx, decode(t, `{"type":"image","src":""}`)))
}

func TestReconstructImageWithoutFetcher(t *testing.T) {
	r := New(Options{})
	assert.Nil(t, r.Reconstruct(context.Background(), decode(t, `{"type":"image","src":"a.png"}`)))
}

func TestReconstructRecoversFromPanickingFetcher(t *testing.T) {
	r := New(Options{Fetcher: fetch.FetcherFunc(func(context.Context, string) (image.Image, error) {
		panic("boom")
	})})
	assert.Nil(t, r.Reconstruct(context.Background(), decode(t, `{"type":"image","src":"a.png"}`)))
}

func TestReconstructImageCropAndClip(t *testing.T) {
	r := New(Options{Fetcher: staticFetcher(solid(100, 80, color.NRGBA{R: 255, A: 255}))})
	p := r.Reconstruct(context.Background(), decode(t,
		`{"type":"image","src":"a.png","cropX":10,"cropY":20,"width":50,"height":40,"scaleX":0.5,"scaleY":0.5,"clipPath":{"type":"rect"},"borderRadius":8}`))
	require.NotNil(t, p)
	img, ok := p.(*Image)
	require.True(t, ok)

	w, h := img.Size()
	assert.Equal(t, 50.0, w)
	assert.Equal(t, 40.0, h)
	assert.Equal(t, image.Rect(0, 0, 50, 40), img.Bitmap().Bounds())
	assert.InDelta(t, 16.0, img.ClipRadius, 1e-9)

	// 圆角之外的像素是透明的
	_, _, _, a := img.Bitmap().At(0, 0).RGBA()
	assert.Zero(t, a)
	_, _, _, a = img.Bitmap().At(25, 20).RGBA()
	assert.Equal(t, uint32(0xffff), a)
}

func TestReconstructImageCropClampedToSource(t *testing.T) {
	r := New(Options{Fetcher: staticFetcher(solid(30, 30, color.White))})
	p := r.Reconstruct(context.Background(), decode(t, `{"type":"image","src":"a.png","cropX":20,"width":50}`))
	require.NotNil(t, p)
	assert.Equal(t, image.Rect(0, 0, 10, 30), p.(*Image).Bitmap().Bounds())

	assert.Nil(t, r.Reconstruct(context.Background(), decode(t, `{"type":"image","src":"a.png","cropX":40}`)))
}

func TestReconstructImageWithoutClipKeepsCorners(t *testing.T) {
	r := New(Options{Fetcher: staticFetcher(solid(20, 20, color.White))})
	p := r.Reconstruct(context.Background(), decode(t, `{"type":"image","src":"a.png","borderRadius":8}`))
	require.NotNil(t, p)
	img := p.(*Image)
	assert.Zero(t, img.ClipRadius)
	_, _, _, a := img.Bitmap().At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), a)
}

func TestReconstructGroupRestoresChildren(t *testing.T) {
	r := New(Options{})
	p := r.Reconstruct(context.Background(), decode(t, `{
		"type":"group","left":100,"top":50,"width":40,"height":20,
		"objects":[
			{"type":"rect","left":-20,"top":-10,"width":20,"height":20,"fill":"red"},
			{"type":"blob"},
			{"type":"group","width":10,"height":10,"objects":[{"type":"circle","radius":5}]}
		]}`))
	require.NotNil(t, p)
	g, ok := p.(*Group)
	require.True(t, ok)
	require.Len(t, g.Children(), 2)
	assert.Equal(t, scene.KindRect, g.Children()[0].Kind())
	nested, ok := g.Children()[1].(*Group)
	require.True(t, ok)
	require.Len(t, nested.Children(), 1)
	assert.Equal(t, scene.KindCircle, nested.Children()[0].Kind())
}

func TestReconstructLineRestoresDescriptor(t *testing.T) {
	r := New(Options{})
	p := r.Reconstruct(context.Background(), decode(t,
		`{"type":"line","left":10,"top":10,"x1":-50,"y1":-5,"x2":50,"y2":5,"stroke":"#ff0000","strokeWidth":3,"strokeLineCap":"round","strokeDashArray":[4,2]}`))
	require.NotNil(t, p)
	l := p.(*Line)
	w, h := l.Size()
	assert.Equal(t, 100.0, w)
	assert.Equal(t, 10.0, h)
	assert.Equal(t, [2]float64{0, 0}, l.from)
	assert.Equal(t, [2]float64{100, 10}, l.to)
	assert.Equal(t, 3.0, l.stroke.Width)
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, l.stroke.Color)
	assert.Equal(t, canvas.RoundCap, l.capper)
	assert.Equal(t, []float64{4, 2}, l.dashes)
}

func TestReconstructTextInterpolatesTemplateData(t *testing.T) {
	r := New(Options{Data: map[string]any{"brand": map[string]any{"name": "Acme"}}})
	p := r.Reconstruct(context.Background(), decode(t, `{"type":"text","text":"Hello ${brand.name}\n${missing|there}"}`))
	require.NotNil(t, p)
	assert.Equal(t, []string{"Hello Acme", "there"}, p.(*Text).Lines())
}

func TestReconstructTextboxWraps(t *testing.T) {
	r := New(Options{})
	p := r.Reconstruct(context.Background(), decode(t,
		`{"type":"textbox","text":"hello world again and again","width":120,"fontSize":40}`))
	require.NotNil(t, p)
	text := p.(*Text)
	assert.Greater(t, len(text.Lines()), 1)
	w, h := text.Size()
	assert.Equal(t, 120.0, w)
	assert.InDelta(t, float64(len(text.Lines()))*40*scene.DefaultLineHeight, h, 1e-9)
}

func TestReconstructTextboxSplitByGrapheme(t *testing.T) {
	r := New(Options{})
	words := r.Reconstruct(context.Background(), decode(t,
		`{"type":"textbox","text":"wrap these words","width":150,"fontSize":40}`))
	graphemes := r.Reconstruct(context.Background(), decode(t,
		`{"type":"textbox","text":"wrap these words","width":150,"fontSize":40,"splitByGrapheme":true}`))
	require.NotNil(t, words)
	require.NotNil(t, graphemes)

	assert.Equal(t, "wrap ", words.(*Text).Lines()[0])
	first := graphemes.(*Text).Lines()[0]
	assert.True(t, strings.HasPrefix(first, "wrap t"), first)
}

func TestTransformAppliesPlacement(t *testing.T) {
	rect := newRect(decode(t, `{"type":"rect","left":10,"top":20,"scaleX":2,"scaleY":3,"width":10,"height":10}`).(*scene.Rect))
	pt := rect.transform().Dot(canvas.Point{X: 1, Y: 1})
	assert.InDelta(t, 12, pt.X, 1e-9)
	assert.InDelta(t, 23, pt.Y, 1e-9)

	centered := newRect(decode(t, `{"type":"rect","left":50,"top":50,"originX":"center","originY":"center","width":20,"height":10}`).(*scene.Rect))
	pt = centered.transform().Dot(canvas.Point{X: 0, Y: 0})
	assert.InDelta(t, 40, pt.X, 1e-9)
	assert.InDelta(t, 45, pt.Y, 1e-9)

	flipped := newRect(decode(t, `{"type":"rect","width":20,"height":10,"flipX":true}`).(*scene.Rect))
	pt = flipped.transform().Dot(canvas.Point{X: 0, Y: 0})
	assert.InDelta(t, 20, pt.X, 1e-9)
	assert.InDelta(t, 0, pt.Y, 1e-9)
}

func TestRectDrawsInDocumentCoordinates(t *testing.T) {
	c := canvas.New(60, 60)
	ctx := canvas.NewContext(c)
	ctx.SetCoordSystem(canvas.CartesianIV)
	newRect(decode(t, `{"type":"rect","left":10,"top":10,"width":20,"height":20,"fill":"#ff0000"}`).(*scene.Rect)).Draw(ctx)

	img := rasterizer.Draw(c, canvas.DPMM(1), canvas.DefaultColorSpace)
	r, _, _, a := img.At(20, 20).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(0xffff), a)
	_, _, _, a = img.At(45, 45).RGBA()
	assert.Zero(t, a)
}

func TestExplicitNullFillIsNotPainted(t *testing.T) {
	rect := newRect(decode(t, `{"type":"rect","width":10,"height":10,"fill":null}`).(*scene.Rect))
	assert.False(t, rect.filled)
	rect = newRect(decode(t, `{"type":"rect","width":10,"height":10}`).(*scene.Rect))
	assert.True(t, rect.filled)
	assert.Equal(t, color.NRGBA{A: 255}, rect.fill)
}

func TestFetchErrorsAreNotReturned(t *testing.T) {
	failing := fetch.FetcherFunc(func(context.Context, string) (image.Image, error) {
		return nil, errors.New("connection refused")
	})
	r := New(Options{Fetcher: failing})
	assert.Nil(t, r.Reconstruct(context.Background(), decode(t, `{"type":"image","src":"https://example.invalid/a.png"}`)))
}
