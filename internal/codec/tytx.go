// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package codec

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/genropy/genro-bag-sub000/internal/store"
)

const (
	dateLayout      = "2006-01-02"
	timeOfDayLayout = "15:04:05.000000"
	timestampLayout = "2006-01-02T15:04:05.000000"
)

// WireRow is one row of a TYTX document, spec.md §4.4 C7.
type WireRow struct {
	Parent any            `json:"parent" msgpack:"parent"`
	Label  string         `json:"label" msgpack:"label"`
	Tag    any            `json:"tag,omitempty" msgpack:"tag,omitempty"`
	Value  any            `json:"value" msgpack:"value"`
	Attrs  map[string]any `json:"attrs,omitempty" msgpack:"attrs,omitempty"`
}

// Document is the top-level TYTX envelope: `{"rows": [...]}`, plus a
// `paths` code->path registry when encoded in compact mode.
type Document struct {
	Rows  []WireRow         `json:"rows" msgpack:"rows"`
	Paths map[string]string `json:"paths,omitempty" msgpack:"paths,omitempty"`
}

// EncodeJSON renders root as a TYTX JSON document (`.bag.json`).
func EncodeJSON(root *store.Container, compact bool) ([]byte, error) {
	doc, err := buildDocument(root, compact)
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// EncodeMsgpack renders root as a TYTX MessagePack document (`.bag.mp`).
func EncodeMsgpack(root *store.Container, compact bool) ([]byte, error) {
	doc, err := buildDocument(root, compact)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(doc)
}

// DecodeJSON reconstructs a container from a TYTX JSON document.
func DecodeJSON(data []byte) (*store.Container, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, ErrMalformed.wrap("json", err)
	}
	return rebuild(doc)
}

// DecodeMsgpack reconstructs a container from a TYTX MessagePack document.
func DecodeMsgpack(data []byte) (*store.Container, error) {
	var doc Document
	if err := msgpack.Unmarshal(data, &doc); err != nil {
		return nil, ErrMalformed.wrap("msgpack", err)
	}
	return rebuild(doc)
}

func buildDocument(root *store.Container, compact bool) (Document, error) {
	var doc Document
	pathCodes := map[string]int{"": 0}
	order := []string{""}

	codeFor := func(path string) any {
		if !compact {
			return path
		}
		if c, ok := pathCodes[path]; ok {
			return c
		}
		c := len(order)
		pathCodes[path] = c
		order = append(order, path)
		return c
	}

	var encErr error
	Flatten(root, func(r Row) bool {
		wr := WireRow{
			Parent: codeFor(r.Parent),
			Label:  r.Label,
		}
		if r.Tag != "" {
			wr.Tag = r.Tag
		}
		if len(r.Attrs) > 0 {
			wr.Attrs = make(map[string]any, len(r.Attrs))
			for k, v := range r.Attrs {
				if k == "_resolver" {
					wr.Attrs[k] = v
					continue
				}
				ev, err := encodeValue(v)
				if err != nil {
					encErr = err
					return false
				}
				wr.Attrs[k] = ev
			}
		}
		if s, ok := r.Value.(string); ok && s == ContainerSentinel {
			wr.Value = ContainerSentinel
		} else {
			ev, err := encodeValue(r.Value)
			if err != nil {
				encErr = err
				return false
			}
			wr.Value = ev
		}
		doc.Rows = append(doc.Rows, wr)
		return true
	})
	if encErr != nil {
		return Document{}, encErr
	}

	if compact {
		doc.Paths = make(map[string]string, len(order))
		for path, code := range pathCodes {
			doc.Paths[strconv.Itoa(code)] = path
		}
	}
	return doc, nil
}

func rebuild(doc Document) (*store.Container, error) {
	root := store.NewContainer()
	root.SetBackref()
	registry := map[string]*store.Container{"": root}

	lookupCode := func(code string) (string, error) {
		p, ok := doc.Paths[code]
		if !ok {
			return "", ErrMalformed.with("reason", "undeclared parent code", "code", code)
		}
		return p, nil
	}

	resolveParentPath := func(parent any) (string, error) {
		switch p := parent.(type) {
		case string:
			return p, nil
		case float64: // JSON numbers decode as float64
			return lookupCode(strconv.Itoa(int(p)))
		case int:
			return lookupCode(strconv.Itoa(p))
		case int8:
			return lookupCode(strconv.Itoa(int(p)))
		case int64:
			return lookupCode(strconv.FormatInt(p, 10))
		case uint64:
			return lookupCode(strconv.FormatUint(p, 10))
		default:
			return "", ErrMalformed.with("reason", "unrecognised parent reference", "value", fmt.Sprintf("%v", parent))
		}
	}

	for _, row := range doc.Rows {
		parentPath, err := resolveParentPath(row.Parent)
		if err != nil {
			return nil, err
		}
		parent, ok := registry[parentPath]
		if !ok {
			return nil, ErrMalformed.with("reason", "row parented at unknown path", "parent", parentPath)
		}
		childPath := row.Label
		if parentPath != "" {
			childPath = parentPath + "." + row.Label
		}

		tag := ""
		if row.Tag != nil {
			if s, ok := row.Tag.(string); ok {
				tag = s
			}
		}

		var resolverDesc *store.ResolverDescriptor
		attrs := map[string]store.Value{}
		for k, v := range row.Attrs {
			if k == "_resolver" {
				d, err := decodeResolverDescriptor(v)
				if err != nil {
					return nil, err
				}
				resolverDesc = d
				continue
			}
			dv, err := decodeValue(v)
			if err != nil {
				return nil, err
			}
			attrs[k] = dv
		}

		if s, ok := row.Value.(string); ok && s == ContainerSentinel {
			child := store.NewContainer()
			child.SetBackref()
			if _, err := parent.SetItem(row.Label, child, attrs, tag, nil, store.PositionEnd, "decode", true); err != nil {
				return nil, ErrMalformed.wrap(childPath, err)
			}
			registry[childPath] = child
			continue
		}

		if resolverDesc != nil {
			r := NewDescriptorResolver(*resolverDesc)
			if _, err := parent.SetItem(row.Label, nil, attrs, tag, r, store.PositionEnd, "decode", true); err != nil {
				return nil, ErrMalformed.wrap(childPath, err)
			}
			continue
		}

		v, err := decodeValue(row.Value)
		if err != nil {
			return nil, err
		}
		if _, err := parent.SetItem(row.Label, v, attrs, tag, nil, store.PositionEnd, "decode", true); err != nil {
			return nil, ErrMalformed.wrap(childPath, err)
		}
	}
	return root, nil
}

func decodeResolverDescriptor(v any) (*store.ResolverDescriptor, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return nil, ErrMalformed.wrap("_resolver", err)
	}
	var d store.ResolverDescriptor
	if err := json.Unmarshal(buf, &d); err != nil {
		return nil, ErrMalformed.wrap("_resolver", err)
	}
	return &d, nil
}

// DescriptorResolver is what the codec reconstructs an unresolved
// resolver node into: it carries the serialised (class, args, kwargs)
// recipe but cannot actually load, since the codec package has no
// registry of concrete resolver classes (internal/resolvers). A host
// program that needs live resolvers back after decode re-attaches its
// own instances keyed by Fingerprint().
type DescriptorResolver struct {
	store.BaseResolver
	desc store.ResolverDescriptor
}

func NewDescriptorResolver(desc store.ResolverDescriptor) *DescriptorResolver {
	return &DescriptorResolver{
		BaseResolver: store.NewBaseResolver(desc.Class, desc.Args, nil, desc.Kwargs, true, -1),
		desc:         desc,
	}
}

func (d *DescriptorResolver) Load(ctx context.Context, kwargs map[string]store.Value) (store.Value, error) {
	return nil, fmt.Errorf("codec: resolver class %q was deserialised but not registered for reconstruction", d.desc.Class)
}

func encodeValue(v store.Value) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return t, nil
	case bool:
		return fmt.Sprintf("%t::B", t), nil
	case int64:
		return fmt.Sprintf("%d::L", t), nil
	case int:
		return fmt.Sprintf("%d::L", int64(t)), nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64) + "::R", nil
	case decimal.Decimal:
		return t.String() + "::N", nil
	case store.Date:
		return t.String() + "::D", nil
	case store.TimeOfDay:
		return t.String() + "::H", nil
	case store.Timestamp:
		s := t.Time.Format(timestampLayout)
		if t.HasOffset {
			return s + "::DHZ", nil
		}
		return s + "::DH", nil
	case []byte:
		return base64.StdEncoding.EncodeToString(t) + "::BY", nil
	default:
		return nil, ErrMalformed.with("reason", "unencodable value type", "type", fmt.Sprintf("%T", v))
	}
}

func decodeValue(raw any) (store.Value, error) {
	s, ok := raw.(string)
	if !ok {
		if raw == nil {
			return nil, nil
		}
		return nil, ErrMalformed.with("reason", "non-string wire value", "value", fmt.Sprintf("%v", raw))
	}
	idx := strings.LastIndex(s, "::")
	if idx < 0 {
		return s, nil
	}
	body, suffix := s[:idx], s[idx+2:]
	switch suffix {
	case "L":
		n, err := strconv.ParseInt(body, 10, 64)
		if err != nil {
			return nil, ErrMalformed.wrap(s, err)
		}
		return n, nil
	case "R":
		f, err := strconv.ParseFloat(body, 64)
		if err != nil {
			return nil, ErrMalformed.wrap(s, err)
		}
		return f, nil
	case "N":
		d, err := decimal.NewFromString(body)
		if err != nil {
			return nil, ErrMalformed.wrap(s, err)
		}
		return d, nil
	case "B":
		return body == "true", nil
	case "D":
		t, err := time.Parse(dateLayout, body)
		if err != nil {
			return nil, ErrMalformed.wrap(s, err)
		}
		return store.NewDate(t.Year(), t.Month(), t.Day()), nil
	case "DH", "DHZ":
		t, err := time.Parse(timestampLayout, body)
		if err != nil {
			return nil, ErrMalformed.wrap(s, err)
		}
		return store.NewTimestamp(t, suffix == "DHZ"), nil
	case "H":
		t, err := time.Parse(timeOfDayLayout, body)
		if err != nil {
			return nil, ErrMalformed.wrap(s, err)
		}
		return store.TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second(), Micro: t.Nanosecond() / 1000}, nil
	case "BY":
		b, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return nil, ErrMalformed.wrap(s, err)
		}
		return b, nil
	default:
		return nil, ErrMalformed.with("reason", "unrecognised type suffix", "value", s)
	}
}
