package fetch

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// defaultSVGSize 用于没有 viewBox 的 SVG。
const defaultSVGSize = 512

// maxSVGSide 限制栅格化尺寸，避免超大 viewBox 占用过多内存。
const maxSVGSide = 4096

// rasterizeSVG 按 viewBox 的原始尺寸栅格化 SVG，缩放交给绘制阶段处理。
func rasterizeSVG(data []byte) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.WarnErrorMode)
	if err != nil {
		return nil, fmt.Errorf("解析 SVG 失败: %w", err)
	}
	w, h := icon.ViewBox.W, icon.ViewBox.H
	if w <= 0 || h <= 0 {
		w, h = defaultSVGSize, defaultSVGSize
	}
	if side := math.Max(w, h); side > maxSVGSide {
		w, h = w*maxSVGSide/side, h*maxSVGSide/side
	}
	width, height := int(math.Ceil(w)), int(math.Ceil(h))

	icon.SetTarget(0, 0, float64(width), float64(height))
	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	scanner := rasterx.NewScannerGV(width, height, rgba, rgba.Bounds())
	raster := rasterx.NewDasher(width, height, scanner)
	icon.Draw(raster, 1.0)
	return rgba, nil
}
