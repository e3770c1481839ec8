package main

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/Ko-stant/tilewall/internal/broker"
	"github.com/Ko-stant/tilewall/internal/errlog"
	"github.com/Ko-stant/tilewall/internal/monitor"
	"github.com/Ko-stant/tilewall/internal/protocol"
	"github.com/Ko-stant/tilewall/internal/registry"
	"github.com/Ko-stant/tilewall/internal/wall"
	"github.com/Ko-stant/tilewall/internal/web"
)

func main() {
	cfg, err := GetServerConfigFromEnv()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	StartProfiling(GetProfilingConfigFromEnv())

	walls := wall.NewStore()
	poly, err := wall.Load(cfg.WallConfig)
	if err != nil {
		log.Fatalf("Failed to load wall %s: %v", cfg.WallConfig, err)
	}
	walls.UseGeo(poly)
	walls.SetScale(cfg.XScale, cfg.YScale)
	geo := walls.Snapshot()
	log.Printf("Wall %s at scale %gx%g is %s", cfg.WallConfig, geo.XScale, geo.YScale, geo.Derived.Extents)
	log.Printf("Wall has %d screens in %d regions", len(geo.Grid.Screens()), geo.Grid.RegionsCount)

	errs := errlog.NewRecorder(errlog.DefaultCapacity)
	reg := registry.New(walls, errs, registry.Options{HandshakeTimeout: cfg.HandshakeTimeout})

	mon := monitor.New(reg)
	if cfg.EnableMonitoring {
		mon.Enable()
	}
	metrics := NewWallMetrics()
	reg.Subscribe(metrics.Observe)
	StartMetricsReporting(metrics, cfg.MetricsInterval, mon)

	for _, id := range cfg.Modules {
		openModule(reg, registry.ModuleID(id))
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", reg)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/module") {
			reg.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
	mux.Handle("/peerjs", broker.NewServer(cfg.MaxPeers, errs))
	mux.HandleFunc("/status", web.StatusHandler(reg))
	mux.HandleFunc("/errors", web.ErrorsHandler(reg))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	log.Printf("listening on :%s", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, mux))
}

// openModule opens the channel for id and fans every client message out
// to all of the channel's clients.
func openModule(reg *registry.Registry, id registry.ModuleID) {
	ch, err := reg.ForModule(id).Open()
	if err != nil {
		log.Printf("Module %s not opened: %v", id, err)
		return
	}
	ch.OnConnect(func(c *registry.ClientInfo) {
		log.Printf("Module %s: client %s joined at %s", id, c.ID, c.Rect)
	})
	ch.OnMessage(func(c *registry.ClientInfo, env protocol.Envelope) {
		ch.Broadcast(context.Background(), env.Type, env.Payload)
	})
}
