// Package reconstruct turns decoded scene objects into drawable primitives.
//
// Reconstruction of a single object never fails loudly: unknown types, invisible objects,
// unreachable images and malformed stored descriptors all yield a nil Primitive and a log
// line, so one bad object never prevents the rest of a slide from rendering.
package reconstruct

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flanksource/commons/logger"

	"github.com/ByLCY/slidethumb/binding"
	"github.com/ByLCY/slidethumb/fetch"
	"github.com/ByLCY/slidethumb/scene"
)

var log = logger.GetLogger("reconstruct")

// Options configures a Reconstructor.
type Options struct {
	// Fetcher 加载图片图元引用的资源，为空时图片图元全部丢弃。
	Fetcher fetch.Fetcher
	// Fonts 按字体族名注册字体文件，未注册的字体族回退到内置字体。
	Fonts map[string]fetch.Resource
	// Data 是模板示例数据，用于替换文本中的 ${path} 占位符。
	Data any
}

// Reconstructor is safe for concurrent use; the composite renderer calls it from one
// goroutine per object.
type Reconstructor struct {
	fetcher fetch.Fetcher
	fonts   *FontCache
	data    any
}

// New creates a Reconstructor.
func New(opts Options) *Reconstructor {
	return &Reconstructor{
		fetcher: opts.Fetcher,
		fonts:   NewFontCache(opts.Fonts),
		data:    opts.Data,
	}
}

// Reconstruct builds the primitive for obj, or returns nil when the object cannot or
// should not be drawn.
func (r *Reconstructor) Reconstruct(ctx context.Context, obj scene.Object) (prim Primitive) {
	if obj == nil {
		return nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			log.Warnf("重建 %s 图元时发生 panic: %v", obj.Kind(), rec)
			prim = nil
		}
	}()
	if !obj.Common().IsVisible() {
		log.Debugf("跳过不可见的 %s 图元", obj.Kind())
		return nil
	}
	p, err := r.build(ctx, obj)
	if err != nil {
		log.Warnf("丢弃 %s 图元: %v", obj.Kind(), err)
		return nil
	}
	return p
}

func (r *Reconstructor) build(ctx context.Context, obj scene.Object) (Primitive, error) {
	switch o := obj.(type) {
	case *scene.Text:
		return newText(o, binding.Interpolate(o.Text, r.data), r.fonts)
	case *scene.Rect:
		return newRect(o), nil
	case *scene.Circle:
		return newCircle(o), nil
	case *scene.Triangle:
		return newTriangle(o), nil
	case *scene.Line:
		return newLine(o)
	case *scene.Group:
		return r.newGroup(ctx, o)
	case *scene.Image:
		return newImage(ctx, o, r.fetcher)
	case *scene.Unknown:
		if o.Err != nil {
			return nil, fmt.Errorf("无法解码: %w", o.Err)
		}
		return nil, fmt.Errorf("未知类型 %q", o.Type)
	default:
		return nil, fmt.Errorf("未知类型 %T", obj)
	}
}

// newGroup 按原样恢复组合的存储描述，并依次重建子图元；失败的子图元被丢弃。
func (r *Reconstructor) newGroup(ctx context.Context, obj *scene.Group) (*Group, error) {
	var st groupState
	if err := json.Unmarshal(obj.Raw, &st); err != nil {
		return nil, fmt.Errorf("恢复组合描述失败: %w", err)
	}
	g := &Group{node: newNode(obj, scene.ValueOr(st.Width, 0), scene.ValueOr(st.Height, 0))}
	for _, raw := range st.Objects {
		child := scene.DecodeObject(raw)
		if p := r.Reconstruct(ctx, child); p != nil {
			g.children = append(g.children, p)
		}
	}
	return g, nil
}
