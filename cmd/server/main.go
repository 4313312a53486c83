package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"civicgrid/internal/persistence/indexdb"
	persistlog "civicgrid/internal/persistence/log"
	"civicgrid/internal/persistence/snapshot"
	"civicgrid/internal/sim/catalog"
	"civicgrid/internal/sim/multiroom"
	"civicgrid/internal/sim/room"
	"civicgrid/internal/sim/tuning"
	"civicgrid/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable sqlite indexing (tick/audit/snapshot metadata)")
		maxPlayers = flag.Int("max_players", 8, "max players per room")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load into the first room (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalog.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalog: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", tp)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	// Optional read-model index; does not affect sim determinism.
	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index db: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index db: upsert catalogs: %v", err)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	snapCh := make(chan snapshot.RoomV1, 4)

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(filepath.Join(*dataDir, "rooms", "room_1"))
	}
	firstRoom := true

	var closers []interface{ Close() error }
	mgr := multiroom.NewManager(tune, cats, func(r *room.Room) {
		roomDir := filepath.Join(*dataDir, "rooms", r.ID())
		_ = os.MkdirAll(roomDir, 0o755)

		tickLog := persistlog.NewTickLogger(roomDir)
		auditLog := persistlog.NewAuditLogger(roomDir)
		closers = append(closers, tickLog, auditLog)

		if idx != nil {
			r.SetTickLogger(multiTickLogger{a: tickLog, b: idx.RoomTickLogger(r.ID())})
			r.SetAuditLogger(multiAuditLogger{a: auditLog, b: idx.RoomAuditLogger(r.ID())})
		} else {
			r.SetTickLogger(tickLog)
			r.SetAuditLogger(auditLog)
		}
		r.SetSnapshotSink(snapCh)

		if firstRoom {
			firstRoom = false
			if snapshotToLoad != "" {
				snap, err := snapshot.ReadSnapshot(snapshotToLoad)
				if err != nil {
					logger.Fatalf("read snapshot: %v", err)
				}
				r.ImportSnapshot(snap)
				logger.Printf("room %s resumed from %s (day %d)", r.ID(), filepath.Base(snapshotToLoad), snap.Day)
			}
		}
	})
	mgr.SetMaxPlayersPerRoom(*maxPlayers)
	if err := mgr.Start(ctx); err != nil {
		logger.Fatalf("start rooms: %v", err)
	}
	defer mgr.StopAll()
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	// Snapshot writer.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				path := filepath.Join(*dataDir, "rooms", snap.Header.RoomID, "snapshots",
					fmt.Sprintf("%d.snap.zst", snap.Day))
				if err := snapshot.WriteSnapshot(path, snap); err != nil {
					logger.Printf("snapshot write: %v", err)
					continue
				}
				if idx != nil {
					idx.RecordSnapshot(path, snap)
				}
			}
		}
	}()

	wsServer := ws.NewServer(mgr, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP civicgrid_rooms Current number of live rooms.\n")
		fmt.Fprintf(rw, "# TYPE civicgrid_rooms gauge\n")
		fmt.Fprintf(rw, "civicgrid_rooms %d\n", len(mgr.RoomIDs()))
	})
	mux.HandleFunc("/v1/ws", wsServer.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		_ = srv.Shutdown(shutCtx)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func latestSnapshot(roomDir string) string {
	dir := filepath.Join(roomDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestDay int64 = -1
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		day, err := strconv.ParseInt(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if day > bestDay {
			bestDay = day
			best = filepath.Join(dir, name)
		}
	}
	return best
}

type multiTickLogger struct {
	a room.TickLogger
	b room.TickLogger
}

func (m multiTickLogger) WriteTick(entry room.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

type multiAuditLogger struct {
	a room.AuditLogger
	b room.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry room.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}
