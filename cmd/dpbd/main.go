// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command dpbd is the data-plane broker's composition root: it loads a
// topology, recovers persisted service state, and serves the REST,
// management-socket, and metrics surfaces of spec.md §6.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"github.com/dpbroker/dpb/internal/config"
	"github.com/dpbroker/dpb/internal/logging"
	"github.com/dpbroker/dpb/internal/metrics"
	"github.com/dpbroker/dpb/internal/mgmtsocket"
	"github.com/dpbroker/dpb/internal/persistence"
	"github.com/dpbroker/dpb/internal/restapi"
)

func main() {
	configPath := flag.String("config", "", "path to the topology HCL file (network.config.server)")
	dbPath := flag.String("db", "dpb.sqlite", "path to the persisted-state sqlite database")
	mgmtAddr := flag.String("mgmt.bindaddr", "127.0.0.1:8731", "management socket bind address")
	restAddr := flag.String("rest.addr", "0.0.0.0:4753", "REST API bind address (rest.host/rest.port)")
	metricsAddr := flag.String("metrics.addr", "0.0.0.0:9753", "Prometheus metrics bind address")
	flag.Parse()

	args := flag.Args()
	subcmd := ""
	if len(args) > 0 {
		subcmd = args[0]
	}

	switch subcmd {
	case "", "server":
		runServer(*configPath, *dbPath, *mgmtAddr, *restAddr, *metricsAddr)
	case "version":
		fmt.Println("dpbd (data-plane broker)")
	default:
		log.Fatalf("dpbd: unknown command %q", subcmd)
	}
}

func runServer(configPath, dbPath, mgmtAddr, restAddr, metricsAddr string) {
	if configPath == "" {
		log.Fatal("dpbd: -config is required")
	}

	logger := logging.New(logging.DefaultConfig())
	logging.SetDefault(logger)

	topology, err := config.LoadFile(configPath)
	if err != nil {
		log.Fatalf("dpbd: failed to load %s: %v", configPath, err)
	}

	built, err := topology.Build(logger)
	if err != nil {
		log.Fatalf("dpbd: failed to build topology: %v", err)
	}

	store, err := persistence.Open(dbPath)
	if err != nil {
		log.Fatalf("dpbd: failed to open persistence store %s: %v", dbPath, err)
	}
	defer store.Close()

	recorder := metrics.New()

	for name, agg := range built.Aggregators {
		agg.SetMetrics(recorder)
		if err := persistence.Recover(store, agg); err != nil {
			log.Fatalf("dpbd: failed to recover aggregator %q: %v", name, err)
		}
	}

	router := mux.NewRouter()
	for _, agg := range built.Aggregators {
		restapi.NewHandlers(agg).RegisterRoutes(router)
	}

	go func() {
		logger.Info("rest api listening", "addr", restAddr)
		if err := http.ListenAndServe(restAddr, router); err != nil {
			log.Fatalf("dpbd: rest api server failed: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics listening", "addr", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, recorder.Handler()); err != nil {
			log.Fatalf("dpbd: metrics server failed: %v", err)
		}
	}()

	mgmtSrv := mgmtsocket.NewServer(built.Aggregators, logger)
	logger.Info("management socket listening", "addr", mgmtAddr)
	if err := mgmtSrv.ListenAndServe("tcp", mgmtAddr); err != nil {
		log.Fatalf("dpbd: management socket server failed: %v", err)
	}

	os.Exit(0)
}
