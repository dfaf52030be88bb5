package scene

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// ParseDocument 解析一页幻灯片的 JSON 内容。
// 单个图元解码失败不会导致整页失败，该图元会变成 *Unknown。
func ParseDocument(content string) (*SlideDocument, error) {
	var doc SlideDocument
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil, fmt.Errorf("解析幻灯片文档失败: %w", err)
	}
	return &doc, nil
}

// UnmarshalJSON 逐个解码 objects 数组中的元素。
func (d *SlideDocument) UnmarshalJSON(data []byte) error {
	var wire struct {
		Background Paint             `json:"background"`
		Objects    []json.RawMessage `json:"objects"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	d.Background = wire.Background
	d.Objects = make([]Object, 0, len(wire.Objects))
	for _, raw := range wire.Objects {
		d.Objects = append(d.Objects, DecodeObject(raw))
	}
	return nil
}

// NormalizeKind 将类型标签（大小写不敏感）映射到已知的 Kind。
func NormalizeKind(tag string) Kind {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "text", "textbox", "i-text", "itext":
		return KindText
	case "rect", "rectangle":
		return KindRect
	case "circle":
		return KindCircle
	case "triangle":
		return KindTriangle
	case "line":
		return KindLine
	case "group":
		return KindGroup
	case "image":
		return KindImage
	default:
		return KindUnknown
	}
}

// DecodeObject 根据 type 标签解码一个图元。不会返回 nil：失败时返回携带错误的 *Unknown。
func DecodeObject(raw json.RawMessage) Object {
	var head Base
	if err := json.Unmarshal(raw, &head); err != nil {
		return &Unknown{Raw: raw, Err: fmt.Errorf("图元描述无法解析: %w", err)}
	}
	var obj Object
	switch NormalizeKind(head.Type) {
	case KindText:
		obj = &Text{}
	case KindRect:
		obj = &Rect{}
	case KindCircle:
		obj = &Circle{}
	case KindTriangle:
		obj = &Triangle{}
	case KindImage:
		obj = &Image{}
	case KindLine:
		return &Line{Base: head, Raw: slices.Clone(raw)}
	case KindGroup:
		return &Group{Base: head, Raw: slices.Clone(raw)}
	default:
		return &Unknown{Base: head, Raw: raw, Err: fmt.Errorf("未知图元类型 %q", head.Type)}
	}
	if err := json.Unmarshal(raw, obj); err != nil {
		return &Unknown{Base: head, Raw: raw, Err: fmt.Errorf("%s 图元字段无法解析: %w", head.Type, err)}
	}
	return obj
}

// PaintOrder 返回按 zIndex 升序排列的副本；zIndex 相同的图元保持原有相对顺序。
func PaintOrder(objects []Object) []Object {
	sorted := slices.Clone(objects)
	slices.SortStableFunc(sorted, func(a, b Object) int {
		za, zb := a.Common().Z(), b.Common().Z()
		switch {
		case za < zb:
			return -1
		case za > zb:
			return 1
		default:
			return 0
		}
	})
	return sorted
}
