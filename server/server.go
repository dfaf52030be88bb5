// Package server exposes thumbnails over HTTP and mount lifecycles over WebSocket.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/flanksource/commons/logger"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/ByLCY/slidethumb/preview"
	"github.com/ByLCY/slidethumb/renderer"
	canvasrenderer "github.com/ByLCY/slidethumb/renderer/canvas"
	"github.com/ByLCY/slidethumb/resolver"
	"github.com/ByLCY/slidethumb/store"
)

var log = logger.GetLogger("server")

// Server serves thumbnails rendered by a preview pipeline.
type Server struct {
	pipeline *preview.Pipeline
	upgrader websocket.Upgrader
	seq      atomic.Uint64
}

// New creates a server.
func New(p *preview.Pipeline) *Server {
	return &Server{
		pipeline: p,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Router 注册全部路由。
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/versions/{version:[0-9]+}/thumbnail.{format:png|pdf|svg}", s.Thumbnail).Methods(http.MethodGet)
	r.HandleFunc("/versions/{version:[0-9]+}/resolve", s.Resolve).Methods(http.MethodGet)
	r.HandleFunc("/ws/mounts/{id}", s.Mount).Methods(http.MethodGet)
	return r
}

// Thumbnail renders the first slide of a version.
// GET /versions/{version}/thumbnail.{png|pdf|svg}?preset=list|gallery|chat&w=&h=
func (s *Server) Thumbnail(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	version, _ := strconv.Atoi(vars["version"])
	format, err := renderer.ParseFormat(vars["format"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	bounds, err := s.bounds(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := fmt.Sprintf("http-%d", s.seq.Add(1))
	m, err := s.pipeline.Mount(r.Context(), id, version, bounds)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	defer s.pipeline.Release(m)

	rd := s.pipeline.Renderer()
	if err := rd.Wait(r.Context(), id); err != nil {
		log.Warnf("等待 %s 加载失败: %v", id, err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	if err := rd.Export(id, format, w); err != nil {
		log.Errorf("导出 %s 失败: %v", id, err)
	}
}

// Resolve reports which slide and aspect ratio a version resolves to.
// GET /versions/{version}/resolve
func (s *Server) Resolve(w http.ResponseWriter, r *http.Request) {
	version, _ := strconv.Atoi(mux.Vars(r)["version"])
	res, err := s.pipeline.Resolve(r.Context(), version)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	objects := 0
	if res.Document != nil {
		objects = len(res.Document.Objects)
	}
	w.Header().Set("Content-Type", "application/json")
	err = json.NewEncoder(w).Encode(ResolveResponse{
		Result:      res,
		Version:     version,
		HasDocument: res.Document != nil,
		ObjectCount: objects,
	})
	if err != nil {
		log.Errorf("写出 v%d 的解析结果失败: %v", version, err)
	}
}

// ResolveResponse 是 /resolve 的响应体。
type ResolveResponse struct {
	resolver.Result
	Version     int  `json:"version"`
	HasDocument bool `json:"hasDocument"`
	ObjectCount int  `json:"objectCount"`
}

// Event 是推送给宿主的挂载状态。
type Event struct {
	ID          string `json:"id"`
	State       string `json:"state"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	Placeholder bool   `json:"placeholder,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Mount ties a surface to a WebSocket connection: the surface is mounted when the
// connection opens, a "loaded" event is pushed once it is painted, and the surface is
// disposed when the connection closes. A connection whose surface is replaced by a newer
// mount of the same id receives a "disposed" event and is closed; it never unmounts the
// newer surface.
// GET /ws/mounts/{id}?version=N&preset=list
func (s *Server) Mount(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	version, err := strconv.Atoi(r.URL.Query().Get("version"))
	if err != nil {
		http.Error(w, "version 参数无效", http.StatusBadRequest)
		return
	}
	bounds, err := s.bounds(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("升级 WebSocket 失败: %v", err)
		return
	}
	defer conn.Close()

	m, err := s.pipeline.Mount(r.Context(), id, version, bounds)
	if err != nil {
		send(conn, Event{ID: id, State: "error", Error: err.Error()})
		return
	}
	defer s.pipeline.Release(m)

	// 读循环：连接关闭即卸载
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h := m.Handle
	select {
	case <-closed:
		log.Debugf("%s 在加载完成前断开", id)
		return
	case <-h.Done():
	}
	surface, ok := h.Surface()
	if !ok {
		send(conn, Event{ID: id, State: canvasrenderer.Disposed.String()})
		return
	}
	if !send(conn, Event{
		ID:          id,
		State:       canvasrenderer.Loaded.String(),
		Width:       m.Thumbnail.Width,
		Height:      m.Thumbnail.Height,
		Placeholder: surface.Placeholder,
	}) {
		return
	}

	select {
	case <-closed:
	case <-h.Released():
		log.Debugf("%s（代次 %d）已被新的挂载取代", id, h.Generation)
		send(conn, Event{ID: id, State: canvasrenderer.Disposed.String()})
	}
}

// send 写出一个事件，失败时记录日志并返回 false。
func send(conn *websocket.Conn, ev Event) bool {
	if err := conn.WriteJSON(ev); err != nil {
		log.Warnf("推送 %s 的 %s 事件失败: %v", ev.ID, ev.State, err)
		return false
	}
	return true
}

func (s *Server) bounds(r *http.Request) (preview.Bounds, error) {
	q := r.URL.Query()
	preset := preview.Preset(q.Get("preset"))
	if preset == "" {
		preset = preview.ListCard
	}
	bounds, ok := s.pipeline.Bounds(preset)
	if !ok {
		return preview.Bounds{}, fmt.Errorf("未知的预设 %q", preset)
	}
	for key, dst := range map[string]*int{"w": &bounds.MaxWidth, "h": &bounds.MaxHeight} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > 4096 {
			return preview.Bounds{}, fmt.Errorf("参数 %s 无效: %q", key, raw)
		}
		*dst = v
	}
	return bounds, nil
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrVersionNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
