package layout

// 绘制表面以 1 单位 = 1 像素工作；tdewolff/canvas 把坐标单位当作毫米、把字号当作 pt，
// 因此字号在交给字体系统前需要做一次 mm→pt 换算。

// Conversion constants between pt and mm.
const (
	PtToMm = 0.352777
	MmToPt = 1.0 / PtToMm
)

// Unit 表示长度单位。
type Unit int

const (
	UnitPX Unit = iota // 文档坐标（与画布单位一致）
	UnitPT
	UnitMM
)

// UnitToString returns a short string for a Unit value.
func UnitToString(u Unit) string {
	switch u {
	case UnitPX:
		return "px"
	case UnitPT:
		return "pt"
	case UnitMM:
		return "mm"
	default:
		return ""
	}
}

// Length preserves a numeric value with its unit.
type Length struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

// To converts this length to target unit. Canvas units (px) are interchangeable with mm.
func (l Length) To(target Unit) float64 {
	mm := l.Value
	if l.Unit == UnitPT {
		mm = l.Value * PtToMm
	}
	if target == UnitPT {
		return mm * MmToPt
	}
	return mm
}

// FontSizePt 将文档坐标中的字号换算为字体系统使用的 pt。
func FontSizePt(px float64) float64 { return Length{Value: px, Unit: UnitPX}.To(UnitPT) }
