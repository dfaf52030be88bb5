// Package canvasrenderer composites reconstructed slide objects onto tdewolff/canvas surfaces.
//
// Each mount id owns one arena slot holding at most one live surface. Populating a surface
// fans reconstruction out to one goroutine per object, joins the whole batch, and paints
// exactly once. A generation token captured when the batch starts is checked before the
// results are applied, so a batch that finishes after its surface was disposed is dropped.
package canvasrenderer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/flanksource/commons/logger"
	"github.com/samber/lo"

	"github.com/ByLCY/slidethumb/layout"
	"github.com/ByLCY/slidethumb/reconstruct"
	"github.com/ByLCY/slidethumb/renderer"
	"github.com/ByLCY/slidethumb/scene"
)

var log = logger.GetLogger("composite")

var (
	// ErrDisposed 表示挂载点在加载完成前已被释放。
	ErrDisposed = errors.New("挂载点已释放")
	// ErrNotMounted 表示挂载点不存在。
	ErrNotMounted = errors.New("挂载点不存在")
)

// State 是挂载槽位的生命周期状态。
type State int

const (
	Uninitialized State = iota
	SurfaceCreated
	Populated
	Loaded
	Disposed
)

func (s State) String() string {
	switch s {
	case SurfaceCreated:
		return "surface-created"
	case Populated:
		return "populated"
	case Loaded:
		return "loaded"
	case Disposed:
		return "disposed"
	default:
		return "uninitialized"
	}
}

// Options configures the renderer.
type Options struct {
	Reconstructor *reconstruct.Reconstructor
	// OnLoaded 在表面完成唯一一次绘制后调用（不持有任何锁）。
	OnLoaded func(id string, s *Surface)
	// Info 写入导出的 PDF。
	Info DocumentInfo
}

// Renderer is the arena of mount slots.
type Renderer struct {
	rec      *reconstruct.Reconstructor
	onLoaded func(id string, s *Surface)
	info     DocumentInfo

	mu         sync.Mutex
	slots      map[string]*slot
	generation uint64

	statsMu   sync.Mutex
	paints    int
	discarded int
}

var (
	_ renderer.Renderer = (*Renderer)(nil)
	_ renderer.Exporter = (*Renderer)(nil)
)

// slot 持有一个挂载点当前的表面。gen 在释放时递增，使进行中的批次失效。
type slot struct {
	mu       sync.Mutex
	gen      uint64
	state    State
	surface  *Surface
	paints   int
	done     chan struct{} // 进入 Loaded 或 Disposed 时关闭
	released chan struct{} // 进入 Disposed 时关闭
}

// Handle 指向某一次挂载创建的表面。同一 id 被重新挂载后，旧 Handle 只能观察到自己的
// 表面被释放，不会影响新表面。
type Handle struct {
	ID         string
	Generation uint64
	s          *slot
}

// Done 在表面加载完成或被释放时关闭。
func (h Handle) Done() <-chan struct{} { return h.s.done }

// Released 在表面被释放（卸载或被同 id 的新挂载取代）时关闭。
func (h Handle) Released() <-chan struct{} { return h.s.released }

// Surface 返回这次挂载已加载的表面。
func (h Handle) Surface() (*Surface, bool) {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	if h.s.state != Loaded {
		return nil, false
	}
	return h.s.surface, true
}

func (s *slot) finish() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// dispose 释放表面并使当前批次失效。
func (s *slot) dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Disposed {
		return
	}
	s.gen++
	s.state = Disposed
	if s.surface != nil {
		s.surface.release()
	}
	s.finish()
	close(s.released)
}

// New creates a renderer. A nil Reconstructor gets a default one without an image fetcher.
func New(opts Options) *Renderer {
	rec := opts.Reconstructor
	if rec == nil {
		rec = reconstruct.New(reconstruct.Options{})
	}
	return &Renderer{
		rec:      rec,
		onLoaded: opts.OnLoaded,
		info:     opts.Info,
		slots:    map[string]*slot{},
	}
}

// Mount disposes any previous surface for id, creates a new one sized to thumb and populates
// it in the background. A nil doc yields a background-only placeholder surface.
func (r *Renderer) Mount(ctx context.Context, id string, doc *scene.SlideDocument, thumb layout.Thumbnail) {
	r.Attach(ctx, id, doc, thumb)
}

// Attach 与 Mount 相同，并返回这次挂载的 Handle，供 Release 按代次卸载。
func (r *Renderer) Attach(ctx context.Context, id string, doc *scene.SlideDocument, thumb layout.Thumbnail) Handle {
	r.mu.Lock()
	if old, ok := r.slots[id]; ok {
		old.dispose()
	}
	r.generation++
	s := &slot{
		gen:      r.generation,
		state:    SurfaceCreated,
		surface:  newSurface(thumb, doc.BackgroundColor(), doc == nil),
		done:     make(chan struct{}),
		released: make(chan struct{}),
	}
	r.slots[id] = s
	token := s.gen
	r.mu.Unlock()

	log.Debugf("挂载 %s：%d×%d scale=%.4f", id, s.surface.Width, s.surface.Height, s.surface.Scale)
	go r.populate(ctx, id, s, token, doc)
	return Handle{ID: id, Generation: token, s: s}
}

// Render mounts doc and waits until it is loaded.
func (r *Renderer) Render(ctx context.Context, id string, doc *scene.SlideDocument, thumb layout.Thumbnail) (*Surface, error) {
	r.Mount(ctx, id, doc, thumb)
	if err := r.Wait(ctx, id); err != nil {
		return nil, err
	}
	s, ok := r.Surface(id)
	if !ok {
		return nil, ErrDisposed
	}
	return s, nil
}

func (r *Renderer) populate(ctx context.Context, id string, s *slot, token uint64, doc *scene.SlideDocument) {
	var prims []reconstruct.Primitive
	if doc != nil && len(doc.Objects) > 0 {
		ordered := scene.PaintOrder(doc.Objects)
		results := make([]reconstruct.Primitive, len(ordered))
		var wg sync.WaitGroup
		for i, obj := range ordered {
			wg.Add(1)
			go func(i int, obj scene.Object) {
				defer wg.Done()
				results[i] = r.rec.Reconstruct(ctx, obj)
			}(i, obj)
		}
		wg.Wait()
		prims = lo.Filter(results, func(p reconstruct.Primitive, _ int) bool { return p != nil })
		if dropped := len(results) - len(prims); dropped > 0 {
			log.Infof("%s：%d 个图元未能重建，已丢弃", id, dropped)
		}
	}
	r.apply(id, s, token, prims)
}

// apply 校验代次后插入图元并执行唯一一次绘制。
func (r *Renderer) apply(id string, s *slot, token uint64, prims []reconstruct.Primitive) {
	s.mu.Lock()
	if s.gen != token || s.state == Disposed {
		s.mu.Unlock()
		r.statsMu.Lock()
		r.discarded++
		r.statsMu.Unlock()
		log.Debugf("%s：丢弃过期批次（代次 %d）", id, token)
		return
	}
	s.surface.primitives = prims
	s.state = Populated
	s.surface.paint()
	s.paints++
	s.state = Loaded
	surface := s.surface
	s.finish()
	s.mu.Unlock()

	r.statsMu.Lock()
	r.paints++
	r.statsMu.Unlock()

	if r.onLoaded != nil {
		r.onLoaded(id, surface)
	}
}

// Unmount disposes the surface for id. In-flight fetches are not aborted; their results are discarded.
func (r *Renderer) Unmount(id string) {
	r.mu.Lock()
	s, ok := r.slots[id]
	delete(r.slots, id)
	r.mu.Unlock()
	if ok {
		s.dispose()
		log.Debugf("卸载 %s", id)
	}
}

// Release 卸载 h 对应的表面。id 已被重新挂载时不做任何事并返回 false。
func (r *Renderer) Release(h Handle) bool {
	r.mu.Lock()
	cur, ok := r.slots[h.ID]
	if !ok || cur != h.s {
		r.mu.Unlock()
		return false
	}
	delete(r.slots, h.ID)
	r.mu.Unlock()
	cur.dispose()
	log.Debugf("卸载 %s（代次 %d）", h.ID, h.Generation)
	return true
}

func (r *Renderer) slot(id string) (*slot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	return s, ok
}

// State 返回挂载点的状态，不存在时为 Uninitialized。
func (r *Renderer) State(id string) State {
	s, ok := r.slot(id)
	if !ok {
		return Uninitialized
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Loaded reports whether the surface for id has been painted.
func (r *Renderer) Loaded(id string) bool { return r.State(id) == Loaded }

// Wait blocks until the surface for id is loaded, disposed, or ctx is done.
func (r *Renderer) Wait(ctx context.Context, id string) error {
	s, ok := r.slot(id)
	if !ok {
		return ErrNotMounted
	}
	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Loaded {
		return ErrDisposed
	}
	return nil
}

// Surface 返回已加载的表面。
func (r *Renderer) Surface(id string) (*Surface, bool) {
	s, ok := r.slot(id)
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Loaded {
		return nil, false
	}
	return s.surface, true
}

// Snapshot 栅格化已加载的表面。
func (r *Renderer) Snapshot(id string) (*image.RGBA, error) {
	s, ok := r.slot(id)
	if !ok {
		return nil, ErrNotMounted
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Loaded {
		return nil, fmt.Errorf("栅格化 %s 失败: 状态为 %s", id, s.state)
	}
	return s.surface.Rasterize()
}

// Paints 返回挂载点当前表面的绘制次数。
func (r *Renderer) Paints(id string) int {
	s, ok := r.slot(id)
	if !ok {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paints
}

// Stats 返回整个 arena 累计的绘制次数与被丢弃的过期批次数。
func (r *Renderer) Stats() (paints, discarded int) {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	return r.paints, r.discarded
}

// Export 以指定格式写出已加载的表面。
func (r *Renderer) Export(id string, format renderer.Format, w io.Writer) error {
	s, ok := r.slot(id)
	if !ok {
		return ErrNotMounted
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Loaded {
		return fmt.Errorf("导出 %s 失败: 状态为 %s", id, s.state)
	}
	return s.surface.Encode(w, format, r.info)
}
