package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/coder/websocket"

	"github.com/Ko-stant/tilewall/internal/broker"
	"github.com/Ko-stant/tilewall/internal/clocksync"
	"github.com/Ko-stant/tilewall/internal/geometry"
	"github.com/Ko-stant/tilewall/internal/peer"
	"github.com/Ko-stant/tilewall/internal/protocol"
	"github.com/Ko-stant/tilewall/internal/registry"
	"github.com/Ko-stant/tilewall/internal/wall"
	"github.com/Ko-stant/tilewall/internal/ws"
)

const heartbeatInterval = 5 * time.Second

// TileConfig is read from the environment at startup.
type TileConfig struct {
	Server   string
	X, Y     int
	Rect     geometry.Rectangle
	ModuleID string
}

// GetTileConfigFromEnv reads the tile configuration. Without TILE_RECT the
// tile covers one default-sized screen at its grid position.
func GetTileConfigFromEnv() (TileConfig, error) {
	cfg := TileConfig{
		Server:   os.Getenv("WALL_SERVER"),
		ModuleID: os.Getenv("MODULE_ID"),
	}
	if cfg.Server == "" {
		cfg.Server = "ws://localhost:8080"
	}
	if cfg.ModuleID == "" {
		cfg.ModuleID = "1"
	}
	if err := peer.ValidateModuleID(cfg.ModuleID); err != nil {
		return cfg, protocol.NewError(protocol.KindConfig, "MODULE_ID", err)
	}

	var err error
	if cfg.X, err = envInt("TILE_X"); err != nil {
		return cfg, err
	}
	if cfg.Y, err = envInt("TILE_Y"); err != nil {
		return cfg, err
	}

	if v := os.Getenv("TILE_RECT"); v != "" {
		if cfg.Rect, err = geometry.ParseRectangle(v); err != nil {
			return cfg, protocol.NewError(protocol.KindConfig, "TILE_RECT="+v, err)
		}
	} else {
		cfg.Rect = geometry.NewRectangle(
			float64(cfg.X)*wall.DefaultXScale, float64(cfg.Y)*wall.DefaultYScale,
			wall.DefaultXScale, wall.DefaultYScale)
	}
	return cfg, nil
}

func envInt(key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, protocol.NewError(protocol.KindConfig, key+"="+v, err)
	}
	return n, nil
}

func main() {
	cfg, err := GetTileConfigFromEnv()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	display, err := dialSession(ctx, cfg.Server+"/ws")
	if err != nil {
		log.Fatalf("Failed to reach wall server: %v", err)
	}
	defer display.Close(websocket.StatusNormalClosure, "")

	clock := clocksync.NewClock(display)
	go runDisplay(ctx, display, cfg, clock)
	clock.Start(ctx)
	defer clock.Stop()

	module, err := dialModule(ctx, cfg)
	if err != nil {
		log.Printf("Module channel unavailable: %v", err)
	} else {
		defer module.Close(websocket.StatusNormalClosure, "")
		go logModule(ctx, module)
	}

	for ctx.Err() == nil {
		runMesh(ctx, cfg, clock)
		select {
		case <-ctx.Done():
		case <-time.After(peer.InitialDelay):
		}
	}
	log.Printf("Tile %d,%d shutting down", cfg.X, cfg.Y)
}

func dialSession(ctx context.Context, rawURL string) (*ws.Session, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, rawURL, nil)
	if err != nil {
		return nil, protocol.NewError(protocol.KindConnection, "dial "+rawURL, err)
	}
	return ws.NewSession(conn), nil
}

// runDisplay answers the config handshake and feeds time replies to the
// clock.
func runDisplay(ctx context.Context, s *ws.Session, cfg TileConfig, clock *clocksync.Clock) {
	for {
		env, err := s.Read(ctx)
		if err != nil {
			if protocol.IsKind(err, protocol.KindProtocol) {
				log.Printf("Ignoring frame: %v", err)
				continue
			}
			log.Printf("Display connection ended: %v", err)
			return
		}

		switch env.Type {
		case protocol.EventConfig:
			var wc protocol.WallConfig
			if err := env.DecodePayload(&wc); err != nil {
				log.Printf("Bad wall config: %v", err)
				continue
			}
			log.Printf("Wall is %s, rendering %s", wc.Extents, cfg.Rect)
			if err := s.Send(ctx, protocol.EventConfigResponse, cfg.Rect.Serialize()); err != nil {
				log.Printf("Failed to answer config: %v", err)
			}
		case protocol.EventTime:
			var serverMillis int64
			if err := env.DecodePayload(&serverMillis); err != nil {
				log.Printf("Bad time reply: %v", err)
				continue
			}
			clock.HandleReply(serverMillis)
		case protocol.EventMonitor:
			log.Printf("Monitor: %s", env.Payload)
		}
	}
}

func dialModule(ctx context.Context, cfg TileConfig) (*ws.Session, error) {
	q := url.Values{}
	q.Set("id", cfg.ModuleID)
	q.Set("rect", cfg.Rect.Serialize())
	return dialSession(ctx, cfg.Server+registry.Namespace(registry.ModuleID(cfg.ModuleID))+"?"+q.Encode())
}

func logModule(ctx context.Context, s *ws.Session) {
	for {
		env, err := s.Read(ctx)
		if err != nil {
			if protocol.IsKind(err, protocol.KindProtocol) {
				continue
			}
			log.Printf("Module channel ended: %v", err)
			return
		}
		log.Printf("Module event %s: %s", env.Type, env.Payload)
	}
}

// runMesh links this tile to its neighbours until ctx ends or the broker
// connection is lost.
func runMesh(ctx context.Context, cfg TileConfig, clock *clocksync.Clock) {
	name := peer.MakeName(cfg.ModuleID, cfg.X, cfg.Y)
	transport, err := broker.Connect(ctx, cfg.Server+"/peerjs", name)
	if err != nil {
		log.Printf("Broker registration as %s failed: %v", name, err)
		return
	}
	mesh, err := peer.NewMesh(transport, cfg.ModuleID, cfg.X, cfg.Y)
	if err != nil {
		_ = transport.Close()
		log.Printf("Mesh not started: %v", err)
		return
	}
	defer mesh.Close()

	mesh.ConnectToNeighbors(func(conn peer.Conn, data []byte) {
		log.Printf("From %s: %s", conn.Remote(), data)
	})

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-transport.Done():
			log.Printf("Lost broker connection, re-registering")
			return
		case <-ticker.C:
			msg := []byte(fmt.Sprintf("%s at %s", name, clock.Now().Format(time.RFC3339Nano)))
			for _, n := range mesh.Neighbors() {
				if err := n.Conn.Send(ctx, msg); err != nil {
					log.Printf("Heartbeat to %d,%d failed: %v", n.X, n.Y, err)
				}
			}
		}
	}
}
