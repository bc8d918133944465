// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resolvers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/genropy/genro-bag-sub000/internal/codec"
	"github.com/genropy/genro-bag-sub000/internal/store"
)

// URLResolver performs an HTTP request on load, optionally converting
// a JSON or XML response body into a Container (spec.md §4.5 "A URL
// resolver").
type URLResolver struct {
	store.BaseResolver

	client      *http.Client
	method      string
	url         string
	body        []byte
	asContainer bool
}

// NewURLResolver builds a URLResolver. timeout <= 0 means the
// resolver's http.Client keeps net/http's zero-value (no timeout).
func NewURLResolver(method, url string, body []byte, asContainer bool, timeout time.Duration, callKwargs map[string]store.Value, readOnly bool, cacheTimeSeconds int64) *URLResolver {
	classKwargs := map[string]store.Value{"method": method, "url": url}
	client := &http.Client{}
	if timeout > 0 {
		client.Timeout = timeout
	}
	return &URLResolver{
		BaseResolver: store.NewBaseResolver("url", nil, classKwargs, callKwargs, readOnly, cacheTimeSeconds),
		client:       client,
		method:       method,
		url:          url,
		body:         body,
		asContainer:  asContainer,
	}
}

func (r *URLResolver) Load(ctx context.Context, kwargs map[string]store.Value) (store.Value, error) {
	url := r.url
	if q, ok := kwargs["query"]; ok {
		if qs, ok := q.(string); ok && qs != "" {
			sep := "?"
			if strings.Contains(url, "?") {
				sep = "&"
			}
			url += sep + qs
		}
	}

	var bodyReader io.Reader
	if len(r.body) > 0 {
		bodyReader = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("url resolver: build request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("url resolver: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("url resolver: read body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("url resolver: %s returned status %d", url, resp.StatusCode)
	}

	if !r.asContainer {
		return data, nil
	}

	contentType := resp.Header.Get("Content-Type")
	switch {
	case strings.Contains(contentType, "xml"):
		return codec.ReadLegacyXML(bytes.NewReader(data))
	default:
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("url resolver: decode json: %w", err)
		}
		return jsonToContainer(v), nil
	}
}

// jsonToContainer converts an arbitrary decoded JSON value into the
// Store's Value universe: objects become containers keyed by their
// field names, arrays become containers keyed by stringified index,
// scalars pass through unchanged.
func jsonToContainer(v any) store.Value {
	switch t := v.(type) {
	case map[string]any:
		c := store.NewContainer()
		c.SetBackref()
		for k, vv := range t {
			c.SetItem(k, jsonToContainer(vv), nil, "", nil, store.PositionEnd, "url-resolver", true)
		}
		return c
	case []any:
		c := store.NewContainer()
		c.SetBackref()
		for i, vv := range t {
			c.SetItem(strconv.Itoa(i), jsonToContainer(vv), nil, "", nil, store.PositionEnd, "url-resolver", true)
		}
		return c
	default:
		return t
	}
}
