package canvasrenderer

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/slidethumb/fetch"
	"github.com/ByLCY/slidethumb/layout"
	"github.com/ByLCY/slidethumb/reconstruct"
	"github.com/ByLCY/slidethumb/renderer"
	"github.com/ByLCY/slidethumb/resolver"
	"github.com/ByLCY/slidethumb/scene"
)

var listCard = layout.Fit(1920, 1080, 16.0/9.0, 384, 280)

func parse(t *testing.T, content string) *scene.SlideDocument {
	t.Helper()
	doc, err := scene.ParseDocument(content)
	require.NoError(t, err)
	return doc
}

func waitLoaded(t *testing.T, r *Renderer, id string) *Surface {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, r.Wait(ctx, id))
	s, ok := r.Surface(id)
	require.True(t, ok)
	return s
}

// gatedFetcher 阻塞所有图片请求，直到 release 被调用。
type gatedFetcher struct {
	started chan struct{}
	gate    chan struct{}
	once    sync.Once
	calls   atomic.Int32
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{started: make(chan struct{}), gate: make(chan struct{})}
}

func (g *gatedFetcher) Fetch(ctx context.Context, src string) (image.Image, error) {
	if g.calls.Add(1) == 1 {
		close(g.started)
	}
	<-g.gate
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	return img, nil
}

func (g *gatedFetcher) release() { g.once.Do(func() { close(g.gate) }) }

func newRenderer(f fetch.Fetcher) *Renderer {
	return New(Options{Reconstructor: reconstruct.New(reconstruct.Options{Fetcher: f})})
}

const fiveObjects = `{
	"background": "#ffffff",
	"objects": [
		{"type":"rect","left":40,"width":10,"height":10,"zIndex":3},
		{"type":"image","src":"broken.png","zIndex":1},
		{"type":"circle","left":10,"radius":5,"zIndex":1},
		{"type":"triangle","left":30,"width":10,"height":10,"zIndex":2},
		{"type":"rect","left":20,"width":10,"height":10,"zIndex":1}
	]
}`

func TestPaintOrderSkipsFailedImage(t *testing.T) {
	failing := fetch.FetcherFunc(func(context.Context, string) (image.Image, error) {
		return nil, errors.New("404")
	})
	r := newRenderer(failing)
	r.Mount(context.Background(), "card", parse(t, fiveObjects), listCard)
	s := waitLoaded(t, r, "card")

	prims := s.Primitives()
	require.Len(t, prims, 4)
	var lefts []float64
	for _, p := range prims {
		lefts = append(lefts, p.Source().Common().Placement().Left)
	}
	// zIndex 1 的 circle 与 rect 保持输入顺序，随后是 zIndex 2、3
	assert.Equal(t, []float64{10, 20, 30, 40}, lefts)
	assert.Equal(t, 1, r.Paints("card"))
	assert.Equal(t, Loaded, r.State("card"))
}

func TestUnknownObjectsDoNotDisturbOrder(t *testing.T) {
	r := newRenderer(nil)
	doc := parse(t, `{"objects":[
		{"type":"rect","left":1,"width":1,"height":1,"zIndex":5},
		{"type":"sparkle"},
		{"type":"rect","left":2,"width":1,"height":1,"zIndex":-1},
		{"type":"rect","left":3,"width":"bad"}
	]}`)
	r.Mount(context.Background(), "x", doc, listCard)
	s := waitLoaded(t, r, "x")
	require.Len(t, s.Primitives(), 2)
	assert.Equal(t, 2.0, s.Primitives()[0].Source().Common().Placement().Left)
	assert.Equal(t, 1.0, s.Primitives()[1].Source().Common().Placement().Left)
}

func TestZeroObjectsPaintsBackgroundOnly(t *testing.T) {
	r := newRenderer(nil)
	r.Mount(context.Background(), "empty", parse(t, `{"background":"#ff0000","objects":[]}`), listCard)
	s := waitLoaded(t, r, "empty")

	assert.True(t, r.Loaded("empty"))
	assert.False(t, s.Placeholder)
	assert.Empty(t, s.Primitives())
	assert.Equal(t, 1, r.Paints("empty"))

	img, err := s.Rasterize()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 384, 216), img.Bounds())
	assert.Equal(t, color.RGBA{R: 255, A: 255}, img.RGBAAt(100, 100))

	snap, err := r.Snapshot("empty")
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), snap.Bounds())
	_, err = r.Snapshot("missing")
	assert.ErrorIs(t, err, ErrNotMounted)
}

func TestNoSlidesReachesPlaceholder(t *testing.T) {
	res := resolver.Resolve(map[string]string{"assets/logo.png": "…"})
	require.Nil(t, res.Document)

	thumb := layout.FitDimensions(res.Dimensions, 256, 256)
	r := newRenderer(nil)
	r.Mount(context.Background(), "gallery", res.Document, thumb)
	s := waitLoaded(t, r, "gallery")

	assert.True(t, s.Placeholder)
	assert.True(t, r.Loaded("gallery"))
	img, err := s.Rasterize()
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, img.RGBAAt(1, 1))
}

func TestViewportScalesDocumentCoordinates(t *testing.T) {
	r := newRenderer(nil)
	doc := parse(t, `{"background":"#ffffff","objects":[
		{"type":"rect","left":960,"top":0,"width":960,"height":1080,"fill":"#0000ff"}
	]}`)
	r.Mount(context.Background(), "half", doc, listCard)
	s := waitLoaded(t, r, "half")
	img, err := s.Rasterize()
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{B: 255, A: 255}, img.RGBAAt(300, 100))
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, img.RGBAAt(50, 100))
}

func TestCreateThenDisposeNeverPaints(t *testing.T) {
	docs := []string{
		`{"objects":[{"type":"image","src":"a.png"}]}`,
		`{"objects":[{"type":"rect","width":1,"height":1},{"type":"image","src":"b.png"}]}`,
		`{"background":"#123456","objects":[{"type":"image","src":"c.png","zIndex":2},{"type":"text","text":"x"}]}`,
	}
	g := newGatedFetcher()
	r := newRenderer(g)
	for i, content := range docs {
		id := string(rune('a' + i))
		r.Mount(context.Background(), id, parse(t, content), listCard)
		r.Unmount(id)
		assert.Equal(t, Uninitialized, r.State(id))
		assert.False(t, r.Loaded(id))
	}
	g.release()

	require.Eventually(t, func() bool {
		_, discarded := r.Stats()
		return discarded == len(docs)
	}, 5*time.Second, 10*time.Millisecond)
	paints, _ := r.Stats()
	assert.Zero(t, paints)
}

func TestDisposeDuringInFlightFetchDiscardsBatch(t *testing.T) {
	g := newGatedFetcher()
	var loaded atomic.Int32
	r := New(Options{
		Reconstructor: reconstruct.New(reconstruct.Options{Fetcher: g}),
		OnLoaded:      func(string, *Surface) { loaded.Add(1) },
	})
	r.Mount(context.Background(), "chat", parse(t, `{"objects":[{"type":"rect","width":5,"height":5},{"type":"image","src":"slow.png"}]}`), listCard)

	select {
	case <-g.started:
	case <-time.After(5 * time.Second):
		t.Fatal("fetch never started")
	}
	assert.Equal(t, SurfaceCreated, r.State("chat"))

	slot, ok := r.slot("chat")
	require.True(t, ok)
	r.Unmount("chat")
	<-slot.done
	assert.Equal(t, Disposed, slot.state)
	assert.ErrorIs(t, r.Wait(context.Background(), "chat"), ErrNotMounted)
	g.release()

	require.Eventually(t, func() bool {
		_, discarded := r.Stats()
		return discarded == 1
	}, 5*time.Second, 10*time.Millisecond)
	paints, _ := r.Stats()
	assert.Zero(t, paints)
	assert.Zero(t, loaded.Load())
	_, ok = r.Surface("chat")
	assert.False(t, ok)
	slot.mu.Lock()
	assert.False(t, slot.surface.Painted())
	assert.Zero(t, slot.paints)
	slot.mu.Unlock()
}

func TestRemountDisposesPreviousSurface(t *testing.T) {
	g := newGatedFetcher()
	r := newRenderer(g)
	r.Mount(context.Background(), "card", parse(t, `{"objects":[{"type":"image","src":"slow.png"}]}`), listCard)
	<-g.started

	// 文档身份变化：旧表面先释放，再创建新表面
	r.Mount(context.Background(), "card", parse(t, `{"background":"#00ff00","objects":[]}`), listCard)
	s := waitLoaded(t, r, "card")
	assert.Equal(t, 1, r.Paints("card"))

	g.release()
	require.Eventually(t, func() bool {
		_, discarded := r.Stats()
		return discarded == 1
	}, 5*time.Second, 10*time.Millisecond)

	current, ok := r.Surface("card")
	require.True(t, ok)
	assert.Same(t, s, current)
	assert.Equal(t, 1, r.Paints("card"))
}

func TestReleaseIgnoresSupersededHandle(t *testing.T) {
	r := newRenderer(nil)
	old := r.Attach(context.Background(), "card", parse(t, `{"objects":[]}`), listCard)
	waitLoaded(t, r, "card")
	cur := r.Attach(context.Background(), "card", nil, listCard)
	assert.NotEqual(t, old.Generation, cur.Generation)

	select {
	case <-old.Released():
	default:
		t.Fatal("superseded handle should be released")
	}
	_, ok := old.Surface()
	assert.False(t, ok)

	assert.False(t, r.Release(old))
	s := waitLoaded(t, r, "card")
	assert.True(t, s.Placeholder)

	assert.True(t, r.Release(cur))
	assert.Equal(t, Uninitialized, r.State("card"))
	<-cur.Released()
	assert.False(t, r.Release(cur))
}

func TestWaitUnknownMount(t *testing.T) {
	r := newRenderer(nil)
	assert.ErrorIs(t, r.Wait(context.Background(), "nope"), ErrNotMounted)
	assert.ErrorIs(t, r.Export("nope", renderer.FormatPNG, &bytes.Buffer{}), ErrNotMounted)
	r.Unmount("nope")
}

func TestExportFormats(t *testing.T) {
	r := New(Options{Info: DocumentInfo{Title: "deck", Creator: "slidethumb"}})
	doc := parse(t, `{"background":"#fafafa","objects":[
		{"type":"rect","left":100,"top":100,"width":400,"height":300,"fill":"#336699","rx":20,"ry":20},
		{"type":"text","left":100,"top":500,"text":"Quarterly review","fontSize":64}
	]}`)
	s, err := r.Render(context.Background(), "export", doc, listCard)
	require.NoError(t, err)
	require.True(t, s.Painted())

	var pngBuf bytes.Buffer
	require.NoError(t, r.Export("export", renderer.FormatPNG, &pngBuf))
	img, err := png.Decode(&pngBuf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 384, 216), img.Bounds())

	var pdfBuf bytes.Buffer
	require.NoError(t, r.Export("export", renderer.FormatPDF, &pdfBuf))
	assert.True(t, bytes.HasPrefix(pdfBuf.Bytes(), []byte("%PDF")))

	var svgBuf bytes.Buffer
	require.NoError(t, r.Export("export", renderer.FormatSVG, &svgBuf))
	assert.Contains(t, svgBuf.String(), "<svg")

	r.Unmount("export")
	assert.False(t, s.Painted())
	_, err = s.Rasterize()
	assert.Error(t, err)
}

func TestOnLoadedCalledOncePerSurface(t *testing.T) {
	var mu sync.Mutex
	var ids []string
	r := New(Options{OnLoaded: func(id string, s *Surface) {
		mu.Lock()
		defer mu.Unlock()
		ids = append(ids, id)
	}})
	r.Mount(context.Background(), "one", parse(t, `{"objects":[{"type":"circle","radius":3}]}`), listCard)
	r.Mount(context.Background(), "two", nil, listCard)
	waitLoaded(t, r, "one")
	waitLoaded(t, r, "two")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ids) == 2
	}, 5*time.Second, 10*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"one", "two"}, ids)
}
