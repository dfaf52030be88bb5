package reconstruct

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// measurer 返回一段文字在当前字体面下的宽度（文档单位）。*canvas.FontFace 满足该接口。
type measurer interface {
	TextWidth(s string) float64
}

// textLine 是换行后的一行文字。
type textLine struct {
	Content string
	Width   float64
}

// wrapMode 决定软换行可以落在哪里。
type wrapMode int

const (
	wrapWords      wrapMode = iota // 在空白处断行，放不下的单词按字符拆分
	wrapGraphemes                  // 任意两个字符之间都可断行（splitByGrapheme）
)

// lineBreaker 累积当前行，放不下下一个片段时折行。
type lineBreaker struct {
	face  measurer
	limit float64
	lines []textLine
	cur   strings.Builder
	width float64
	soft  bool // 当前行由软换行开始，行首空白丢弃
}

// greedyWrap 按 mode 折行，显式换行总是生效。width <= 0 表示不限宽。
func greedyWrap(content string, width float64, face measurer, mode wrapMode) []textLine {
	b := &lineBreaker{face: face, limit: width}
	if b.limit <= 0 {
		b.limit = math.Inf(1)
	}
	for _, para := range strings.Split(strings.ReplaceAll(content, "\r", ""), "\n") {
		b.soft = false
		if mode == wrapGraphemes {
			for _, r := range para {
				piece := string(r)
				b.add(piece, face.TextWidth(piece))
			}
		} else {
			for _, seg := range segments(para) {
				w := face.TextWidth(seg)
				if w <= b.limit || isBlank(seg) {
					b.add(seg, w)
					continue
				}
				for _, part := range b.split(seg) {
					b.add(part, face.TextWidth(part))
				}
			}
		}
		// 段落末尾恰好软换行时不补空行；空段落保留为空行
		if b.cur.Len() > 0 || !b.soft {
			b.flush()
		}
	}
	return b.lines
}

func (b *lineBreaker) add(piece string, w float64) {
	if b.cur.Len() > 0 && b.width+w > b.limit {
		b.flush()
		b.soft = true
	}
	if b.cur.Len() == 0 && b.soft && isBlank(piece) {
		return
	}
	b.cur.WriteString(piece)
	b.width += w
}

func (b *lineBreaker) flush() {
	b.lines = append(b.lines, textLine{Content: b.cur.String(), Width: b.width})
	b.cur.Reset()
	b.width = 0
}

// split 把超宽单词切成每段都不超过 limit 的片段（单个字符超宽时独占一段）。
func (b *lineBreaker) split(word string) []string {
	var parts []string
	start := 0
	for i, r := range word {
		end := i + utf8.RuneLen(r)
		if i > start && b.face.TextWidth(word[start:end]) > b.limit {
			parts = append(parts, word[start:i])
			start = i
		}
	}
	return append(parts, word[start:])
}

// segments 把一段文字切成交替的空白串与非空白串。
func segments(s string) []string {
	var out []string
	start := 0
	prevSpace := false
	for i, r := range s {
		space := unicode.IsSpace(r)
		if i > start && space != prevSpace {
			out = append(out, s[start:i])
			start = i
		}
		prevSpace = space
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
