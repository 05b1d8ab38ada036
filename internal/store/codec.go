package store

import (
	"encoding/json"
	"fmt"

	"github.com/automerge/automerge-go"

	"github.com/orimhanre/distrinaranjos-sub001/internal/sheet"
)

// encodeDoc builds an automerge document holding the whole sheet under the
// "sheet" root key. The JSON codec is the source of truth for the shape;
// automerge is the storage medium.
func encodeDoc(s *sheet.Sheet) (*automerge.Doc, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode sheet %s: %w", s.ID, err)
	}
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("encode sheet %s: %w", s.ID, err)
	}
	doc := automerge.New()
	if err := doc.RootMap().Set("sheet", m); err != nil {
		return nil, fmt.Errorf("write doc for sheet %s: %w", s.ID, err)
	}
	return doc, nil
}

func decodeDoc(doc *automerge.Doc) (*sheet.Sheet, error) {
	v, err := doc.Path("sheet").Get()
	if err != nil {
		return nil, fmt.Errorf("doc has no sheet: %w", err)
	}
	if v.Kind() != automerge.KindMap {
		return nil, fmt.Errorf("sheet root is %s, expected map", v.Kind())
	}
	payload, err := json.Marshal(valueToAny(v))
	if err != nil {
		return nil, err
	}
	var s sheet.Sheet
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("decode sheet: %w", err)
	}
	s.Normalize()
	return &s, nil
}

// valueToAny converts an automerge value tree into plain Go values.
func valueToAny(v *automerge.Value) any {
	switch v.Kind() {
	case automerge.KindMap:
		m := v.Map()
		keys, err := m.Keys()
		if err != nil {
			return map[string]any{}
		}
		out := make(map[string]any, len(keys))
		for _, k := range keys {
			item, err := m.Get(k)
			if err != nil {
				continue
			}
			out[k] = valueToAny(item)
		}
		return out
	case automerge.KindList:
		l := v.List()
		out := make([]any, 0, l.Len())
		for i := 0; i < l.Len(); i++ {
			item, err := l.Get(i)
			if err != nil {
				continue
			}
			out = append(out, valueToAny(item))
		}
		return out
	case automerge.KindStr:
		return v.Str()
	case automerge.KindText:
		s, _ := v.Text().Get()
		return s
	case automerge.KindFloat64:
		return v.Float64()
	case automerge.KindInt64:
		return v.Int64()
	case automerge.KindUint64:
		return v.Uint64()
	case automerge.KindBool:
		return v.Bool()
	case automerge.KindNull, automerge.KindVoid:
		return nil
	default:
		return v.Interface()
	}
}
