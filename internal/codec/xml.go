// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package codec

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/genropy/genro-bag-sub000/internal/store"
)

// ReadLegacyXML parses the typed-XML dialect of spec.md §4.4/§6: a
// `GenRoBag` (or any) root wraps a typed tree whose primitives carry
// either a per-element `_T`/`T` attribute or a `::TYPE` text suffix.
// Only reading is supported; TYTX (tytx.go) is the canonical modern
// format for writing. Built on stdlib encoding/xml: no third-party XML
// library appears anywhere in the example pack, so the stdlib decoder
// is the idiomatic choice here (see DESIGN.md).
func ReadLegacyXML(r io.Reader) (*store.Container, error) {
	dec := xml.NewDecoder(r)

	var root xml.StartElement
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, ErrMalformed.wrap("xml", err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			root = se
			break
		}
	}

	return parseXMLChildren(dec, root)
}

func parseXMLChildren(dec *xml.Decoder, parent xml.StartElement) (*store.Container, error) {
	c := store.NewContainer()
	c.SetBackref()
	used := map[string]int{}

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, ErrMalformed.wrap("xml", err)
		}
		switch t := tok.(type) {
		case xml.EndElement:
			if t.Name.Local == parent.Name.Local {
				return c, nil
			}
		case xml.StartElement:
			label, value, attrs, err := parseXMLElement(dec, t)
			if err != nil {
				return nil, err
			}
			label = dedupeLabel(used, label)
			tag := ""
			if label != t.Name.Local {
				tag = t.Name.Local
			}
			if _, err := c.SetItem(label, value, attrs, tag, nil, store.PositionEnd, "xml-decode", true); err != nil {
				return nil, ErrMalformed.wrap(label, err)
			}
		}
	}
}

func dedupeLabel(used map[string]int, label string) string {
	n, seen := used[label]
	used[label] = n + 1
	if !seen {
		return label
	}
	return fmt.Sprintf("%s_%d", label, n)
}

// parseXMLElement consumes one element (through its matching end
// tag) and returns the label to install it under, its decoded value,
// and its surviving attribute map.
func parseXMLElement(dec *xml.Decoder, start xml.StartElement) (string, store.Value, map[string]store.Value, error) {
	attrs := map[string]store.Value{}
	typeCode := ""
	label := sanitizeTag(start.Name.Local)

	for _, a := range start.Attr {
		switch a.Name.Local {
		case "_T", "T":
			typeCode = a.Value
		case "_tag":
			label = a.Value
		default:
			attrs[a.Name.Local] = a.Value
		}
	}

	if typeCode == "BAG" {
		child, err := parseXMLChildren(dec, start)
		if err != nil {
			return "", nil, nil, err
		}
		return label, child, attrs, nil
	}

	var textBuf strings.Builder
	hasChild := false
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", nil, nil, ErrMalformed.wrap("xml", err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			textBuf.Write(t)
		case xml.StartElement:
			// Nested elements with no _T="BAG" hint still indicate a
			// container: rewind by treating this element as the first
			// child of an implicit nested container.
			hasChild = true
			child, err := parseXMLChildrenFrom(dec, start, t)
			if err != nil {
				return "", nil, nil, err
			}
			return label, child, attrs, nil
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				if hasChild {
					return label, nil, attrs, nil
				}
				v, err := decodeLegacyValue(textBuf.String(), typeCode)
				if err != nil {
					return "", nil, nil, err
				}
				return label, v, attrs, nil
			}
		}
	}
}

// parseXMLChildrenFrom handles the case where an element's first
// token turns out to be a child StartElement rather than text: `first`
// has already been consumed from dec and must be processed before the
// remainder of start's children.
func parseXMLChildrenFrom(dec *xml.Decoder, start, first xml.StartElement) (*store.Container, error) {
	c := store.NewContainer()
	c.SetBackref()
	used := map[string]int{}

	processOne := func(se xml.StartElement) error {
		childLabel, value, childAttrs, err := parseXMLElement(dec, se)
		if err != nil {
			return err
		}
		childLabel = dedupeLabel(used, childLabel)
		tag := ""
		if childLabel != se.Name.Local {
			tag = se.Name.Local
		}
		_, err = c.SetItem(childLabel, value, childAttrs, tag, nil, store.PositionEnd, "xml-decode", true)
		return err
	}

	if err := processOne(first); err != nil {
		return nil, err
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, ErrMalformed.wrap("xml", err)
		}
		switch t := tok.(type) {
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				return c, nil
			}
		case xml.StartElement:
			if err := processOne(t); err != nil {
				return nil, err
			}
		}
	}
}

// sanitizeTag mirrors the writer-side convention spec.md §4.4
// describes (characters invalid in XML tag names replaced by `_`);
// encoding/xml will not hand us an invalid Name.Local in the first
// place, so this only defends against the empty-label edge case.
func sanitizeTag(name string) string {
	if name == "" {
		return "_"
	}
	return name
}

func decodeLegacyValue(text, typeCode string) (store.Value, error) {
	if typeCode == "" {
		return decodeLegacySuffixed(text)
	}
	switch typeCode {
	case "NN":
		return nil, nil
	case "L":
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return nil, ErrMalformed.wrap(text, err)
		}
		return n, nil
	case "R":
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, ErrMalformed.wrap(text, err)
		}
		return f, nil
	case "N":
		d, err := decimal.NewFromString(strings.TrimSpace(text))
		if err != nil {
			return nil, ErrMalformed.wrap(text, err)
		}
		return d, nil
	case "B":
		return strings.TrimSpace(text) == "true" || strings.TrimSpace(text) == "1", nil
	case "D":
		t, err := time.Parse(dateLayout, strings.TrimSpace(text))
		if err != nil {
			return nil, ErrMalformed.wrap(text, err)
		}
		return store.NewDate(t.Year(), t.Month(), t.Day()), nil
	case "DH":
		t, err := time.Parse(timestampLayout, strings.TrimSpace(text))
		if err != nil {
			return nil, ErrMalformed.wrap(text, err)
		}
		return store.NewTimestamp(t, false), nil
	case "H":
		t, err := time.Parse(timeOfDayLayout, strings.TrimSpace(text))
		if err != nil {
			return nil, ErrMalformed.wrap(text, err)
		}
		return store.TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second(), Micro: t.Nanosecond() / 1000}, nil
	case "BY":
		b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
		if err != nil {
			return nil, ErrMalformed.wrap(text, err)
		}
		return b, nil
	default:
		return text, nil
	}
}

// decodeLegacySuffixed falls back to the `::TYPE` text-suffix
// convention when no `_T`/`T` attribute is present on the element.
func decodeLegacySuffixed(text string) (store.Value, error) {
	idx := strings.LastIndex(text, "::")
	if idx < 0 {
		if text == "" {
			return "", nil
		}
		return text, nil
	}
	return decodeLegacyValue(text[:idx], text[idx+2:])
}
