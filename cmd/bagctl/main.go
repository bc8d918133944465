// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command bagctl is a thin CLI wrapper around a Store: load a TYTX
// snapshot, dump one, or serve a Container over HTTP. Same flag idiom
// as the teacher's cmd/cc-backend (-config, -gops).
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gops/agent"

	"github.com/genropy/genro-bag-sub000/internal/codec"
	"github.com/genropy/genro-bag-sub000/internal/config"
	"github.com/genropy/genro-bag-sub000/internal/gateway"
	"github.com/genropy/genro-bag-sub000/internal/housekeep"
	"github.com/genropy/genro-bag-sub000/internal/notify"
	"github.com/genropy/genro-bag-sub000/internal/snapshot"
	"github.com/genropy/genro-bag-sub000/internal/store"
	"github.com/genropy/genro-bag-sub000/pkg/log"
)

func main() {
	var flagConfigFile, flagLoad, flagDump, flagServe string
	var flagGops bool
	flag.StringVar(&flagConfigFile, "config", "./config.json", "Overwrite the global config options by those specified in `config.json` (or .yaml)")
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.StringVar(&flagLoad, "load", "", "Load a TYTX snapshot by `name` from the configured snapshot backend before serving")
	flag.StringVar(&flagDump, "dump", "", "Dump the root Container as a TYTX snapshot under `name` to the configured snapshot backend, then exit")
	flag.StringVar(&flagServe, "serve", "", "Serve the root Container over HTTP at `addr` (overrides gateway.addr from config)")
	flag.Parse()

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	if err := config.Init(flagConfigFile); err != nil {
		log.Fatalf("config: %s", err.Error())
	}

	ctx := context.Background()
	backend, err := buildSnapshotBackend(ctx)
	if err != nil {
		log.Fatalf("snapshot backend: %s", err.Error())
	}

	root := store.NewContainer()

	if flagLoad != "" {
		data, err := backend.Load(ctx, flagLoad)
		if err != nil {
			log.Fatalf("load %q: %s", flagLoad, err.Error())
		}
		loaded, err := codec.DecodeJSON(data)
		if err != nil {
			log.Fatalf("decode %q: %s", flagLoad, err.Error())
		}
		root = loaded
	}

	if flagDump != "" {
		data, err := codec.EncodeJSON(root, true)
		if err != nil {
			log.Fatalf("encode: %s", err.Error())
		}
		if err := backend.Save(ctx, flagDump, data); err != nil {
			log.Fatalf("dump %q: %s", flagDump, err.Error())
		}
		log.Infof("bagctl: dumped snapshot %q", flagDump)
		return
	}

	if config.Keys.Notify.Addr != "" {
		sink, err := notify.NewSink(config.Keys.Notify.Addr, config.Keys.Notify.Subject)
		if err != nil {
			log.Warnf("notify: %s", err.Error())
		} else {
			defer sink.Close()
			sink.Attach(root, "bagctl")
		}
	}

	interval, grace := parseDurations(config.Keys.Housekeeping.Interval, config.Keys.Housekeeping.Grace)
	sweeper, err := housekeep.New(root, interval, grace)
	if err != nil {
		log.Fatalf("housekeep: %s", err.Error())
	}
	if err := sweeper.Start(); err != nil {
		log.Fatalf("housekeep: %s", err.Error())
	}
	defer sweeper.Shutdown()

	addr := config.Keys.Gateway.Addr
	if flagServe != "" {
		addr = flagServe
	}
	if addr == "" {
		return
	}

	srv := gateway.NewServer(root, []byte("bagctl-session-key"), func(r *http.Request) bool {
		return config.Keys.Gateway.DisableAuthentication
	})

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("bagctl: gateway listening at %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Info("bagctl: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

func buildSnapshotBackend(ctx context.Context) (snapshot.Backend, error) {
	var inner snapshot.Backend
	var err error
	switch config.Keys.Snapshot.Backend {
	case "s3":
		inner, err = snapshot.NewS3Backend(ctx, config.Keys.Snapshot.S3Bucket, config.Keys.Snapshot.S3Region)
	default:
		inner, err = snapshot.NewSQLiteBackend(config.Keys.Snapshot.SQLitePath)
	}
	if err != nil {
		return nil, err
	}

	ttl, terr := time.ParseDuration(config.Keys.Snapshot.CacheTTL)
	if terr != nil {
		ttl = 30 * time.Second
	}
	maxMemory := config.Keys.Snapshot.CacheMaxMemory
	if maxMemory <= 0 {
		maxMemory = 64 << 20
	}
	return snapshot.NewCachedBackend(inner, maxMemory, ttl), nil
}

func parseDurations(interval, grace string) (time.Duration, time.Duration) {
	i, err := time.ParseDuration(interval)
	if err != nil {
		i = 5 * time.Minute
	}
	g, err := time.ParseDuration(grace)
	if err != nil {
		g = time.Minute
	}
	return i, g
}
