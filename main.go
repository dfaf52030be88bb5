package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/flanksource/commons/logger"
	"github.com/spf13/cobra"

	"github.com/ByLCY/slidethumb/config"
	"github.com/ByLCY/slidethumb/fetch"
	"github.com/ByLCY/slidethumb/preview"
	"github.com/ByLCY/slidethumb/reconstruct"
	"github.com/ByLCY/slidethumb/renderer"
	canvasrenderer "github.com/ByLCY/slidethumb/renderer/canvas"
	"github.com/ByLCY/slidethumb/server"
	"github.com/ByLCY/slidethumb/store"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app 持有命令共享的配置。
type app struct {
	cfg        config.Config
	configPath string
	logFlags   logger.Flags
}

func newRootCommand() *cobra.Command {
	a := &app{
		cfg: config.Default(),
		logFlags: logger.Flags{
			Level:       "info",
			LogToStderr: true,
		},
	}

	root := &cobra.Command{
		Use:           "slidethumb",
		Short:         "Render thumbnails of the first slide of a presentation version",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.Configure(a.logFlags)
			if a.configPath != "" {
				return a.cfg.LoadFile(a.configPath, cmd.Flags())
			}
			return a.cfg.Validate()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "YAML configuration file")
	flags.CountVarP(&a.logFlags.LevelCount, "loglevel", "v", "Increase logging level")
	flags.StringVar(&a.logFlags.Level, "log-level", a.logFlags.Level, "Set the default log level")
	flags.BoolVar(&a.logFlags.JsonLogs, "json-logs", false, "Print logs in json format to stderr")
	a.cfg.BindFlags(flags)

	root.AddCommand(
		a.newRenderCommand(),
		a.newResolveCommand(),
		a.newServeCommand(),
		a.newImportCommand(),
		a.newVersionsCommand(),
	)
	return root
}

func (a *app) newRenderCommand() *cobra.Command {
	var (
		version  int
		preset   string
		width    int
		height   int
		format   string
		output   string
		filesDir string
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one thumbnail to a file",
		Example: `  slidethumb render --version 3 --preset gallery --out thumb.png
  slidethumb render --files ./deck --format pdf --out deck.pdf`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := renderer.ParseFormat(format)
			if err != nil {
				return err
			}
			src, closeSrc, err := a.source(filesDir)
			if err != nil {
				return err
			}
			defer closeSrc()

			p := a.pipeline(src)
			bounds, ok := p.Bounds(preview.Preset(preset))
			if !ok {
				return fmt.Errorf("未知的预设 %q", preset)
			}
			if width > 0 {
				bounds.MaxWidth = width
			}
			if height > 0 {
				bounds.MaxHeight = height
			}
			return render(cmd.Context(), p, version, bounds, f, output)
		},
	}
	cmd.Flags().IntVar(&version, "version", 1, "Presentation version")
	cmd.Flags().StringVar(&preset, "preset", string(preview.ListCard), "Container preset: list, gallery, chat or a configured one")
	cmd.Flags().IntVar(&width, "width", 0, "Override the container max width")
	cmd.Flags().IntVar(&height, "height", 0, "Override the container max height")
	cmd.Flags().StringVar(&format, "format", "", "Output format: png, pdf or svg (default: from --out extension)")
	cmd.Flags().StringVarP(&output, "out", "o", "thumbnail.png", "Output path, - for stdout")
	cmd.Flags().StringVar(&filesDir, "files", "", "Render a presentation directory directly instead of a stored version")
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		if format == "" {
			format = strings.TrimPrefix(filepath.Ext(output), ".")
		}
	}
	return cmd
}

// render 串联挂载、等待与导出。
func render(ctx context.Context, p *preview.Pipeline, version int, bounds preview.Bounds, format renderer.Format, output string) error {
	const id = "cli"
	m, err := p.Mount(ctx, id, version, bounds)
	if err != nil {
		return err
	}
	defer p.Unmount(id)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	if err := p.Renderer().Wait(ctx, id); err != nil {
		return fmt.Errorf("等待渲染完成失败: %w", err)
	}

	var w io.Writer = os.Stdout
	if output != "-" {
		if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
			return fmt.Errorf("创建输出目录失败: %w", err)
		}
		file, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("创建输出文件失败: %w", err)
		}
		defer file.Close()
		w = file
	}
	if err := p.Renderer().Export(id, format, w); err != nil {
		return fmt.Errorf("导出缩略图失败: %w", err)
	}
	logger.Infof("已生成 %s 缩略图 %dx%d：%s（%s）", format, m.Thumbnail.Width, m.Thumbnail.Height, output, m.Resolved.SlidePath)
	return nil
}

func (a *app) newResolveCommand() *cobra.Command {
	var (
		version  int
		filesDir string
	)
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the resolved slide and aspect ratio of a version as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			src, closeSrc, err := a.source(filesDir)
			if err != nil {
				return err
			}
			defer closeSrc()

			res, err := a.pipeline(src).Resolve(cmd.Context(), version)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().IntVar(&version, "version", 1, "Presentation version")
	cmd.Flags().StringVar(&filesDir, "files", "", "Resolve a presentation directory directly instead of a stored version")
	return cmd
}

func (a *app) newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve thumbnails over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			src, closeSrc, err := a.source("")
			if err != nil {
				return err
			}
			defer closeSrc()

			srv := &http.Server{
				Addr:              a.cfg.Server.Addr,
				Handler:           server.New(a.pipeline(src)).Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdown)
			}()

			logger.Infof("监听 %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
}

func (a *app) newImportCommand() *cobra.Command {
	var version int
	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Store a presentation directory as a version in the SQLite store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openSQLite()
			if err != nil {
				return err
			}
			defer db.Close()

			files, err := store.ReadTree(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("读取 %s 失败: %w", args[0], err)
			}
			if err := db.Put(cmd.Context(), version, files); err != nil {
				return err
			}
			logger.Infof("已导入 v%d（%d 个文件）", version, len(files))
			return nil
		},
	}
	cmd.Flags().IntVar(&version, "version", 1, "Version number to store the directory as")
	return cmd
}

func (a *app) newVersionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "versions",
		Short: "List versions in the SQLite store",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openSQLite()
			if err != nil {
				return err
			}
			defer db.Close()

			versions, err := db.Versions(cmd.Context())
			if err != nil {
				return err
			}
			for _, v := range versions {
				fmt.Fprintln(cmd.OutOrStdout(), v)
			}
			return nil
		},
	}
}

func (a *app) openSQLite() (*store.SQLite, error) {
	if a.cfg.Store.SQLite == "" {
		return nil, fmt.Errorf("需要 --store-sqlite 或配置 store.sqlite")
	}
	return store.OpenSQLite(a.cfg.Store.SQLite)
}

// source 按配置构造内容来源；filesDir 非空时任何版本号都读取该目录。
func (a *app) source(filesDir string) (store.Source, func(), error) {
	noop := func() {}
	if filesDir != "" {
		return treeSource(filesDir), noop, nil
	}

	var (
		src     store.Source
		closeFn = noop
	)
	switch a.cfg.Store.Kind {
	case "sqlite":
		db, err := store.OpenSQLite(a.cfg.Store.SQLite)
		if err != nil {
			return nil, nil, err
		}
		src, closeFn = db, func() { db.Close() }
	default:
		src = store.NewDir(a.cfg.Store.Dir)
	}
	if a.cfg.Store.Cache {
		src = store.NewCached(src)
	}
	return src, closeFn, nil
}

type treeSource string

func (t treeSource) Files(ctx context.Context, _ int) (map[string]string, error) {
	info, err := os.Stat(string(t))
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", store.ErrVersionNotFound, string(t))
	}
	return store.ReadTree(ctx, string(t))
}

// pipeline 按配置组装 fetch → reconstruct → renderer → preview。
func (a *app) pipeline(src store.Source) *preview.Pipeline {
	images := map[string]fetch.Resource{}
	for name, path := range a.cfg.Assets.Images {
		images[name] = fetch.Resource{Path: a.assetPath(path)}
	}
	fontFiles := map[string]fetch.Resource{}
	for family, path := range a.cfg.Assets.Fonts {
		fontFiles[family] = fetch.Resource{Path: a.assetPath(path)}
	}

	var data any
	if len(a.cfg.Template) > 0 {
		data = a.cfg.Template
	}
	rec := reconstruct.New(reconstruct.Options{
		Fetcher: fetch.New(fetch.Options{
			BaseDir:  a.cfg.Assets.BaseDir,
			Images:   images,
			MaxBytes: a.cfg.Assets.MaxBytes,
		}),
		Fonts: fontFiles,
		Data:  data,
	})
	r := canvasrenderer.New(canvasrenderer.Options{
		Reconstructor: rec,
		Info: canvasrenderer.DocumentInfo{
			Title:   a.cfg.Info.Title,
			Author:  a.cfg.Info.Author,
			Creator: a.cfg.Info.Creator,
		},
		OnLoaded: func(id string, s *canvasrenderer.Surface) {
			logger.Debugf("%s 已加载：%d 个图元", id, len(s.Primitives()))
		},
	})

	presets := map[preview.Preset]preview.Bounds{}
	for name, b := range a.cfg.Presets {
		presets[preview.Preset(name)] = preview.Bounds{MaxWidth: b.Width, MaxHeight: b.Height}
	}
	return preview.New(src, r, presets)
}

func (a *app) assetPath(path string) string {
	if filepath.IsAbs(path) || a.cfg.Assets.BaseDir == "" {
		return path
	}
	return filepath.Join(a.cfg.Assets.BaseDir, path)
}
