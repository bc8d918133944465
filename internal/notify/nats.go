// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package notify is the external event gateway spec.md §1 mentions in
// passing ("an external gateway may translate local events to a wire
// protocol; that gateway is not specified here"). Sink gives that
// gateway one concrete shape: NATS + InfluxDB line protocol,
// grounded on the teacher's pkg/nats client and line-protocol decoder
// (inverted here into an encoder).
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	influx "github.com/influxdata/line-protocol/v2/lineprotocol"
	"github.com/nats-io/nats.go"

	"github.com/genropy/genro-bag-sub000/internal/store"
	"github.com/genropy/genro-bag-sub000/pkg/log"
)

// Sink publishes a Container's mutation events to NATS, both as a
// JSON envelope and, for numeric-valued nodes, as an InfluxDB
// line-protocol point.
type Sink struct {
	conn    *nats.Conn
	subject string
}

// NewSink connects to addr and returns a Sink publishing under subject
// (JSON events go to subject, line-protocol points to subject+".lp").
func NewSink(addr, subject string) (*Sink, error) {
	conn, err := nats.Connect(addr)
	if err != nil {
		return nil, fmt.Errorf("notify: connect to %s: %w", addr, err)
	}
	return &Sink{conn: conn, subject: subject}, nil
}

// Close closes the underlying NATS connection.
func (s *Sink) Close() {
	if s.conn != nil {
		s.conn.Close()
	}
}

// Attach subscribes the sink to every event on c under subscription id.
func (s *Sink) Attach(c *store.Container, id string) {
	c.Subscribe(id, store.Callbacks{OnAny: s.publish})
}

type jsonEvent struct {
	Kind   string `json:"kind"`
	Path   string `json:"path,omitempty"`
	Label  string `json:"label"`
	Reason string `json:"reason,omitempty"`
	Level  int    `json:"level"`
}

func (s *Sink) publish(ev store.Event) {
	label := ""
	if ev.Node != nil {
		label = ev.Node.Label()
	}
	je := jsonEvent{Kind: string(ev.Kind), Label: label, Reason: ev.Reason, Level: ev.Level}
	data, err := json.Marshal(je)
	if err != nil {
		log.Warnf("notify: marshal event: %v", err)
		return
	}
	if err := s.conn.Publish(s.subject, data); err != nil {
		log.Warnf("notify: publish event: %v", err)
	}

	if ev.Node == nil {
		return
	}
	if f, ok := numericValue(ev.Node.RawValue()); ok {
		s.publishPoint(label, f)
	}
}

func numericValue(v store.Value) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func (s *Sink) publishPoint(measurement string, value float64) {
	var enc influx.Encoder
	enc.SetPrecision(influx.Nanosecond)
	enc.StartLine(measurement)
	enc.AddField("value", influx.MustNewValue(value))
	enc.EndLine(time.Now())
	if err := enc.Err(); err != nil {
		log.Warnf("notify: encode line-protocol point: %v", err)
		return
	}
	if err := s.conn.Publish(s.subject+".lp", enc.Bytes()); err != nil {
		log.Warnf("notify: publish line-protocol point: %v", err)
	}
}
