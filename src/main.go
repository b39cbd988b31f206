// MIT License
//
// Copyright (c) 2025 agrismart-core
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// go/src/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/agrismart-core/go/src/common"
	"github.com/agrismart-core/go/src/core"
	types "github.com/agrismart-core/go/src/core/record"
	httpapi "github.com/agrismart-core/go/src/http"
	logger "github.com/agrismart-core/go/src/log"
	"github.com/agrismart-core/go/src/query"
	"github.com/agrismart-core/go/src/state"
)

func main() {
	httpAddr := flag.String("httpAddr", "127.0.0.1:8080", "HTTP API listen address")
	dbPath := flag.String("dbPath", "", "LevelDB directory; defaults under the data dir")
	mongoURI := flag.String("mongoUri", "", "MongoDB connection URI; when set, replaces LevelDB")
	mongoDB := flag.String("mongoDb", "agrismart", "MongoDB database name")
	logLevel := flag.String("logLevel", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	logger.SetLevel(logger.ParseLevel(*logLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, *mongoURI, *mongoDB, *dbPath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	blockFeed := make(chan *types.Block, 16)
	engine := core.NewLedgerEngine(store, blockFeed)
	queries := query.NewService(engine, store)

	hub := httpapi.NewBlockHub(blockFeed)
	go hub.Run(ctx)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	server := httpapi.NewServer(engine, queries, hub, reg)
	if err := server.Run(ctx, *httpAddr); err != nil {
		log.Fatalf("HTTP server failed: %v", err)
	}
	logger.Infof("Shutdown complete")
}

// openStore picks the persistence backend: MongoDB when a URI is given,
// otherwise LevelDB under the local data dir.
func openStore(ctx context.Context, mongoURI, mongoDB, dbPath string) (state.Store, error) {
	if mongoURI != "" {
		zlog, err := zap.NewProduction()
		if err != nil {
			return nil, err
		}
		return state.NewMongoStore(ctx, mongoURI, mongoDB, zlog)
	}
	if dbPath == "" {
		dbPath = common.GetLevelDBPath("ledger")
	}
	return state.NewLevelStore(dbPath)
}
