package layout

import (
	"math"
	"strings"
)

// AspectRatio 是演示文稿配置中允许的宽高比枚举值。
type AspectRatio string

const (
	Ratio16x9 AspectRatio = "16:9"
	Ratio4x3  AspectRatio = "4:3"
	Ratio1x1  AspectRatio = "1:1"
	Ratio9x16 AspectRatio = "9:16"
	Ratio4x5  AspectRatio = "4:5"

	DefaultAspectRatio = Ratio16x9
)

// Dimensions 是某个宽高比对应的设计尺寸（像素）。
type Dimensions struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Ratio  float64 `json:"ratio"`
}

var ratioTable = map[AspectRatio]Dimensions{
	Ratio16x9: {Width: 1920, Height: 1080, Ratio: 16.0 / 9.0},
	Ratio4x3:  {Width: 1024, Height: 768, Ratio: 4.0 / 3.0},
	Ratio1x1:  {Width: 1080, Height: 1080, Ratio: 1},
	Ratio9x16: {Width: 1080, Height: 1920, Ratio: 9.0 / 16.0},
	Ratio4x5:  {Width: 1080, Height: 1350, Ratio: 4.0 / 5.0},
}

// AspectRatios 返回全部合法取值，顺序固定。
func AspectRatios() []AspectRatio {
	return []AspectRatio{Ratio16x9, Ratio4x3, Ratio1x1, Ratio9x16, Ratio4x5}
}

// ParseAspectRatio 仅接受枚举中的取值（允许首尾空白）。
func ParseAspectRatio(value string) (AspectRatio, bool) {
	r := AspectRatio(strings.TrimSpace(value))
	if _, ok := ratioTable[r]; ok {
		return r, true
	}
	return "", false
}

// DimensionsFor 查表返回设计尺寸；未知取值按缺省宽高比处理。
func DimensionsFor(r AspectRatio) Dimensions {
	if d, ok := ratioTable[r]; ok {
		return d
	}
	return ratioTable[DefaultAspectRatio]
}

// Thumbnail 是缩略图的整数像素尺寸以及统一缩放系数。
type Thumbnail struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Scale  float64 `json:"scale"`
}

// IsZero 表示无法放入任何像素。
func (t Thumbnail) IsZero() bool { return t.Width <= 0 || t.Height <= 0 }

// Fit 在 maxWidth × maxHeight 的容器内计算保持宽高比的缩略图尺寸。
// 竖版（ratio < 1）先按高度夹紧；横版与方形先按宽度夹紧，高度溢出时改按高度重新夹紧。
// scale = 缩略图宽度 / 设计宽度，同时作用于两个轴。
func Fit(sourceWidth, sourceHeight, ratio float64, maxWidth, maxHeight int) Thumbnail {
	if ratio <= 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) || maxWidth <= 0 || maxHeight <= 0 || sourceWidth <= 0 {
		return Thumbnail{}
	}
	var w, h int
	if ratio < 1 {
		h = maxHeight
		w = roundPx(float64(h) * ratio)
		if w > maxWidth {
			w = maxWidth
			h = min(roundPx(float64(w)/ratio), maxHeight)
		}
	} else {
		w = maxWidth
		h = roundPx(float64(w) / ratio)
		if h > maxHeight {
			h = maxHeight
			w = min(roundPx(float64(h)*ratio), maxWidth)
		}
	}
	return Thumbnail{
		Width:  w,
		Height: h,
		Scale:  float64(w) / sourceWidth,
	}
}

// FitDimensions 是 Fit 针对设计尺寸表的便捷封装。
func FitDimensions(d Dimensions, maxWidth, maxHeight int) Thumbnail {
	return Fit(float64(d.Width), float64(d.Height), d.Ratio, maxWidth, maxHeight)
}

func roundPx(v float64) int {
	r := int(math.Round(v))
	if r < 1 {
		return 1
	}
	return r
}
