package layout

import (
	"math"
	"testing"
)

// TestPtMmRoundTrip 验证 pt↔mm 换算的往返精度（允许极小的浮点误差）。
func TestPtMmRoundTrip(t *testing.T) {
	samples := []float64{0, 0.001, 1, 12, 14.4, 40, 72, 96, 144, 1000}
	for _, pt := range samples {
		mm := pt * PtToMm
		back := mm * MmToPt
		if diff := math.Abs(back - pt); diff > 1e-9 {
			t.Fatalf("pt→mm→pt 往返误差过大: in=%gpt mm=%g back=%g diff=%g", pt, mm, back, diff)
		}
	}
}

// TestFontSizePt 验证字号换算后，字体在画布上的 em 大小与文档坐标一致。
func TestFontSizePt(t *testing.T) {
	for _, px := range []float64{1, 12, 40, 96} {
		pt := FontSizePt(px)
		if diff := math.Abs(pt*PtToMm - px); diff > 1e-9 {
			t.Fatalf("字号换算错误: px=%g pt=%g diff=%g", px, pt, diff)
		}
	}
	if got := (Length{Value: 72, Unit: UnitPT}).To(UnitPX); math.Abs(got-72*PtToMm) > 1e-9 {
		t.Fatalf("72pt 转画布单位错误: %g", got)
	}
	if UnitToString(UnitPX) != "px" || UnitToString(UnitPT) != "pt" || UnitToString(UnitMM) != "mm" {
		t.Fatalf("单位名称不匹配")
	}
}
