package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"civicgrid/internal/persistence/snapshot"
	"civicgrid/internal/sim/catalog"
	"civicgrid/internal/sim/room"
	"civicgrid/internal/sim/tuning"
)

// SQLiteIndex is a queryable secondary index over the JSONL logs and
// snapshot files. Writes go through a single writer goroutine; the JSONL
// logs remain the source of truth, so a saturated queue drops entries
// instead of stalling the simulation.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqAudit
	reqSnapshot
)

type req struct {
	kind   reqKind
	roomID string

	tick     room.TickLogEntry
	audit    room.AuditEntry
	snapshot snapshotRow
}

type snapshotRow struct {
	Day        int
	Path       string
	Players    int
	Buildings  int
	Population int
	Treasury   float64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// High buffer: absorb bursty transaction days without stalling rooms.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			room_id TEXT NOT NULL,
			day INTEGER NOT NULL,
			date TEXT NOT NULL,
			digest TEXT NOT NULL,
			tx_count INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (room_id, day)
		);`,
		`CREATE TABLE IF NOT EXISTS txs (
			room_id TEXT NOT NULL,
			day INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			tx_id TEXT NOT NULL,
			player_id TEXT NOT NULL,
			type TEXT NOT NULL,
			success INTEGER NOT NULL,
			code TEXT,
			PRIMARY KEY (room_id, day, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_txs_player_day ON txs(player_id, day);`,
		`CREATE TABLE IF NOT EXISTS audits (
			room_id TEXT NOT NULL,
			day INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (room_id, day, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_actor_day ON audits(actor, day);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			room_id TEXT NOT NULL,
			day INTEGER NOT NULL,
			path TEXT NOT NULL,
			players INTEGER NOT NULL,
			buildings INTEGER NOT NULL,
			population INTEGER NOT NULL,
			treasury REAL NOT NULL,
			PRIMARY KEY (room_id, day)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RoomTickLogger adapts the index to one room's tick log interface.
func (s *SQLiteIndex) RoomTickLogger(roomID string) TickSink {
	return TickSink{s: s, roomID: roomID}
}

// RoomAuditLogger adapts the index to one room's audit log interface.
func (s *SQLiteIndex) RoomAuditLogger(roomID string) AuditSink {
	return AuditSink{s: s, roomID: roomID}
}

type TickSink struct {
	s      *SQLiteIndex
	roomID string
}

func (l TickSink) WriteTick(entry room.TickLogEntry) error {
	return l.s.writeTick(l.roomID, entry)
}

type AuditSink struct {
	s      *SQLiteIndex
	roomID string
}

func (l AuditSink) WriteAudit(entry room.AuditEntry) error {
	return l.s.writeAudit(l.roomID, entry)
}

func (s *SQLiteIndex) writeTick(roomID string, entry room.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, roomID: roomID, tick: entry}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
	}
	return nil
}

func (s *SQLiteIndex) writeAudit(roomID string, entry room.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAudit, roomID: roomID, audit: entry}:
	default:
	}
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.RoomV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		Day:        snap.Day,
		Path:       path,
		Players:    len(snap.Players),
		Buildings:  len(snap.Buildings),
		Population: snap.Population,
		Treasury:   snap.Treasury,
	}
	select {
	case s.ch <- req{kind: reqSnapshot, roomID: snap.Header.RoomID, snapshot: r}:
	default:
	}
}

// UpsertCatalogs records the exact catalog and tuning the server is
// running, keyed by digest, so replays can verify inputs.
func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalog.Catalog, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv

	if configDir != "" {
		if b, err := os.ReadFile(filepath.Join(configDir, "buildings.json")); err == nil && len(b) > 0 {
			rows = append(rows, kv{name: "buildings", digest: cats.Digest, json: b})
		}
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(room_id,day,date,digest,tx_count,raw_json) VALUES(?,?,?,?,?,?)`)
	insertTx, _ := s.db.Prepare(`INSERT OR REPLACE INTO txs(room_id,day,seq,tx_id,player_id,type,success,code) VALUES(?,?,?,?,?,?,?,?)`)
	insertAudit, _ := s.db.Prepare(`INSERT OR REPLACE INTO audits(room_id,day,seq,actor,action,raw_json) VALUES(?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(room_id,day,path,players,buildings,population,treasury) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertTx, insertAudit, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastAuditDay int = -1
		auditSeq     int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			b, _ := json.Marshal(r.tick)
			if insertTick != nil {
				if _, err := tx.Stmt(insertTick).Exec(
					r.roomID,
					r.tick.Day,
					r.tick.Date,
					r.tick.Digest,
					len(r.tick.Txs),
					string(b),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			for i, t := range r.tick.Txs {
				if insertTx == nil {
					break
				}
				if _, err := tx.Stmt(insertTx).Exec(
					r.roomID, r.tick.Day, i,
					t.ID, t.PlayerID, t.Type, boolToInt(t.Success), t.Code,
				); err != nil {
					rollback()
					break
				}
				opCount++
			}

		case reqAudit:
			a := r.audit
			if a.Day != lastAuditDay {
				lastAuditDay = a.Day
				auditSeq = 0
			}
			seq := auditSeq
			auditSeq++
			raw, _ := json.Marshal(a)
			if insertAudit != nil {
				if _, err := tx.Stmt(insertAudit).Exec(
					r.roomID, a.Day, seq, a.Actor, a.Action, string(raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqSnapshot:
			sr := r.snapshot
			if insertSnapshot != nil {
				if _, err := tx.Stmt(insertSnapshot).Exec(
					r.roomID, sr.Day, sr.Path,
					sr.Players, sr.Buildings, sr.Population, sr.Treasury,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}

		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}
	commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
