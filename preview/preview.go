// Package preview is the one rendering pipeline behind every thumbnail call site:
// version → content map → resolved document → fitted thumbnail box → mounted surface.
// The list card, gallery card and chat preview differ only in their container bounds.
package preview

import (
	"context"
	"fmt"
	"maps"

	"github.com/flanksource/commons/logger"

	"github.com/ByLCY/slidethumb/layout"
	canvasrenderer "github.com/ByLCY/slidethumb/renderer/canvas"
	"github.com/ByLCY/slidethumb/resolver"
	"github.com/ByLCY/slidethumb/store"
)

var log = logger.GetLogger("preview")

// Bounds 是容器允许的最大缩略图尺寸（像素）。
type Bounds struct {
	MaxWidth  int
	MaxHeight int
}

// Preset 是调用点名称。
type Preset string

const (
	ListCard    Preset = "list"
	GalleryCard Preset = "gallery"
	ChatPreview Preset = "chat"
)

// DefaultPresets 是三个调用点的容器尺寸。
var DefaultPresets = map[Preset]Bounds{
	ListCard:    {MaxWidth: 384, MaxHeight: 280},
	GalleryCard: {MaxWidth: 256, MaxHeight: 256},
	ChatPreview: {MaxWidth: 640, MaxHeight: 360},
}

// Mounted 描述一次挂载的输入。
type Mounted struct {
	ID        string
	Version   int
	Resolved  resolver.Result
	Thumbnail layout.Thumbnail
	Handle    canvasrenderer.Handle
}

// Pipeline connects a content source to the composite renderer.
type Pipeline struct {
	source   store.Source
	renderer *canvasrenderer.Renderer
	presets  map[Preset]Bounds
}

// New creates a pipeline. presets overrides or extends DefaultPresets.
func New(source store.Source, r *canvasrenderer.Renderer, presets map[Preset]Bounds) *Pipeline {
	merged := maps.Clone(DefaultPresets)
	maps.Copy(merged, presets)
	return &Pipeline{source: source, renderer: r, presets: merged}
}

// Renderer 返回底层渲染器。
func (p *Pipeline) Renderer() *canvasrenderer.Renderer { return p.renderer }

// Bounds 返回预设的容器尺寸。
func (p *Pipeline) Bounds(preset Preset) (Bounds, bool) {
	b, ok := p.presets[preset]
	return b, ok
}

// Resolve 读取版本内容并定位第一页幻灯片。
func (p *Pipeline) Resolve(ctx context.Context, version int) (resolver.Result, error) {
	files, err := p.source.Files(ctx, version)
	if err != nil {
		return resolver.Result{}, fmt.Errorf("读取版本 v%d 失败: %w", version, err)
	}
	return resolver.Resolve(files), nil
}

// Mount 为 id 挂载版本的缩略图，容器尺寸为 bounds。只有内容读取失败会返回错误，
// 此时不会挂载任何表面。
func (p *Pipeline) Mount(ctx context.Context, id string, version int, bounds Bounds) (Mounted, error) {
	res, err := p.Resolve(ctx, version)
	if err != nil {
		return Mounted{}, err
	}
	thumb := layout.FitDimensions(res.Dimensions, bounds.MaxWidth, bounds.MaxHeight)
	if res.Document == nil {
		log.Infof("v%d 没有可渲染的幻灯片，挂载占位表面", version)
	}
	h := p.renderer.Attach(ctx, id, res.Document, thumb)
	return Mounted{ID: id, Version: version, Resolved: res, Thumbnail: thumb, Handle: h}, nil
}

// MountPreset 按预设名挂载。
func (p *Pipeline) MountPreset(ctx context.Context, id string, version int, preset Preset) (Mounted, error) {
	bounds, ok := p.presets[preset]
	if !ok {
		return Mounted{}, fmt.Errorf("未知的预设 %q", preset)
	}
	return p.Mount(ctx, id, version, bounds)
}

// ListCard 挂载列表卡片缩略图。
func (p *Pipeline) ListCard(ctx context.Context, id string, version int) (Mounted, error) {
	return p.MountPreset(ctx, id, version, ListCard)
}

// GalleryCard 挂载模板库卡片缩略图。
func (p *Pipeline) GalleryCard(ctx context.Context, id string, version int) (Mounted, error) {
	return p.MountPreset(ctx, id, version, GalleryCard)
}

// ChatPreview 挂载聊天消息中的预览。
func (p *Pipeline) ChatPreview(ctx context.Context, id string, version int) (Mounted, error) {
	return p.MountPreset(ctx, id, version, ChatPreview)
}

// Unmount 释放 id 的表面。
func (p *Pipeline) Unmount(id string) { p.renderer.Unmount(id) }

// Release 只在 m 仍是 id 当前的挂载时释放它，id 已被重新挂载时返回 false。
func (p *Pipeline) Release(m Mounted) bool { return p.renderer.Release(m.Handle) }
