package resolver

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/flanksource/commons/logger"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/ByLCY/slidethumb/layout"
	"github.com/ByLCY/slidethumb/scene"
)

// ConfigPath 是携带 aspectRatio 的配置文件路径。
const ConfigPath = "presentation.json"

// slidePattern 匹配 slides/slide-<N>.json（也接受 slide_<N> 与 slide<N>，以及可选的前导 /）。
// 索引基数不做归一化：0 与 1 都合法，取数值最小者。
var slidePattern = regexp.MustCompile(`^/?slides/slide[-_]?(\d+)\.json$`)

var log = logger.GetLogger("resolver")

// Result 是解析一个版本内容后的结果。Document 为 nil 表示没有可渲染的幻灯片（占位状态）。
type Result struct {
	Document    *scene.SlideDocument `json:"-"`
	AspectRatio layout.AspectRatio   `json:"aspectRatio"`
	Dimensions  layout.Dimensions    `json:"dimensions"`
	SlidePath   string               `json:"slidePath,omitempty"`
	SlideCount  int                  `json:"slideCount"`
}

// SlidePath 是一个匹配命名约定的路径及其提取出的数字索引。
type SlidePath struct {
	Path  string
	Index string // 十进制数字串，可能带前导零，可能超出 int 范围
}

// Resolve 定位第一页幻灯片并读取宽高比配置。纯函数，不返回错误：
// 解析失败视为没有文档，配置缺失或非法时使用缺省宽高比。
func Resolve(files map[string]string) Result {
	ratio := AspectRatio(files)
	res := Result{
		AspectRatio: ratio,
		Dimensions:  layout.DimensionsFor(ratio),
	}

	slides := SlidePaths(files)
	res.SlideCount = len(slides)
	if len(slides) == 0 {
		return res
	}

	first := slides[0]
	res.SlidePath = first.Path
	doc, err := scene.ParseDocument(files[first.Path])
	if err != nil {
		log.Warnf("幻灯片 %s 无法解析，按无文档处理: %v", first.Path, err)
		return res
	}
	res.Document = doc
	return res
}

// SlidePaths 过滤出匹配命名约定的路径，并按数字索引升序排列。
// 数值相同（如 slide-01 与 slide-1）时按路径字典序决定。
func SlidePaths(files map[string]string) []SlidePath {
	slides := lo.FilterMap(lo.Keys(files), func(path string, _ int) (SlidePath, bool) {
		index, ok := SlideIndex(path)
		return SlidePath{Path: path, Index: index}, ok
	})
	sort.Slice(slides, func(i, j int) bool {
		if c := compareIndex(slides[i].Index, slides[j].Index); c != 0 {
			return c < 0
		}
		return slides[i].Path < slides[j].Path
	})
	return slides
}

// SlideIndex 提取路径中的数字索引。
func SlideIndex(path string) (string, bool) {
	m := slidePattern.FindStringSubmatch(path)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// AspectRatio 从配置路径读取宽高比；缺失、无法解析或不在枚举内时返回缺省值。
func AspectRatio(files map[string]string) layout.AspectRatio {
	content, ok := files[ConfigPath]
	if !ok {
		return layout.DefaultAspectRatio
	}
	var cfg struct {
		AspectRatio string `json:"aspectRatio" yaml:"aspectRatio"`
	}
	// 先按 JSON 解析；非 JSON 内容（手写的 YAML 风格配置）再交给 yaml.v3
	if err := json.Unmarshal([]byte(content), &cfg); err != nil {
		if yerr := yaml.Unmarshal([]byte(content), &cfg); yerr != nil {
			log.Debugf("配置 %s 无法解析，使用缺省宽高比: %v", ConfigPath, err)
			return layout.DefaultAspectRatio
		}
	}
	ratio, ok := layout.ParseAspectRatio(cfg.AspectRatio)
	if !ok {
		if cfg.AspectRatio != "" {
			log.Debugf("不支持的宽高比 %q，使用缺省值 %s", cfg.AspectRatio, layout.DefaultAspectRatio)
		}
		return layout.DefaultAspectRatio
	}
	return ratio
}

// compareIndex 按数值比较两个十进制数字串，不受 int 溢出影响。
func compareIndex(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
