package room

import (
	"context"
	"fmt"
	"time"

	"civicgrid/internal/persistence/snapshot"
	"civicgrid/internal/protocol"
	"civicgrid/internal/sim/cache"
	"civicgrid/internal/sim/catalog"
	"civicgrid/internal/sim/tuning"
)

type Config struct {
	ID          string
	GridSize    int
	DayLengthMs int
	GameDays    int
	StartDate   time.Time

	StartingBalance      float64
	StartingActions      int
	ActionAllowanceStart int
	ActionAllowanceFloor int

	LVTRate                  float64
	ParcelBasePrice          float64
	NeighborPriceBump        float64
	ConstructionSubsidyShare float64
	DemolitionSubsidyShare   float64

	CacheTTL        time.Duration
	InfluenceRadius int

	PopulationStart    int
	CarensGatePop      int
	AttractThresholdLo float64
	AttractThresholdHi float64
	EmigrationDays     int

	ListingDays       int
	CancelFeeMultiple float64
	MaxOpenOffers     int

	VictoryScore  float64
	VictoryMinPop int
	CivicScoreCap float64

	TxDedupCapacity   int
	TxArchiveCap      int
	SnapshotEveryDays int

	BudgetCategories []string
}

// ConfigFromTuning maps tuning knobs onto a room config.
func ConfigFromTuning(id string, t tuning.Tuning) (Config, error) {
	start, err := time.Parse("2006-01-02", t.StartDate)
	if err != nil {
		return Config{}, fmt.Errorf("start_date: %w", err)
	}
	return Config{
		ID:          id,
		GridSize:    t.GridSize,
		DayLengthMs: t.DayLengthMs,
		GameDays:    t.GameDays,
		StartDate:   start,

		StartingBalance:      t.StartingBalance,
		StartingActions:      t.StartingActions,
		ActionAllowanceStart: t.ActionAllowanceStart,
		ActionAllowanceFloor: t.ActionAllowanceFloor,

		LVTRate:                  t.LVTRate,
		ParcelBasePrice:          t.ParcelBasePrice,
		NeighborPriceBump:        t.NeighborPriceBump,
		ConstructionSubsidyShare: t.ConstructionSubsidyShare,
		DemolitionSubsidyShare:   t.DemolitionSubsidyShare,

		CacheTTL:        time.Duration(t.CacheTTLMs) * time.Millisecond,
		InfluenceRadius: t.InfluenceRadius,

		PopulationStart:    t.PopulationStart,
		CarensGatePop:      t.CarensGatePop,
		AttractThresholdLo: t.AttractThresholdLo,
		AttractThresholdHi: t.AttractThresholdHi,
		EmigrationDays:     t.EmigrationDays,

		ListingDays:       t.ListingDays,
		CancelFeeMultiple: t.CancelFeeMultiple,
		MaxOpenOffers:     t.MaxOpenOffers,

		VictoryScore:  t.VictoryScore,
		VictoryMinPop: t.VictoryMinPop,
		CivicScoreCap: t.CivicScoreCap,

		TxDedupCapacity:   t.TxDedupCapacity,
		TxArchiveCap:      t.TxArchiveCap,
		SnapshotEveryDays: t.SnapshotEveryDays,

		BudgetCategories: t.BudgetCategories,
	}, nil
}

type TxEnvelope struct {
	PlayerID string
	Msg      protocol.TxMsg
}

type JoinRequest struct {
	Name        string
	ResumeToken string
	Out         chan []byte
	Resp        chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
	Catalog protocol.CatalogMsg
	State   protocol.StateMsg
}

type clientState struct {
	Out chan []byte
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogEntry struct {
	Day    int          `json:"day"`
	Date   string       `json:"date"`
	Txs    []ArchivedTx `json:"txs,omitempty"`
	Digest string       `json:"digest"`
}

type AuditEntry struct {
	Day     int            `json:"day"`
	Actor   string         `json:"actor"`
	Action  string         `json:"action"`
	Details map[string]any `json:"details,omitempty"`
}

// ArchivedTx is one applied (or rejected) transaction in the append-only,
// capped history.
type ArchivedTx struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
	Day      int    `json:"day"`
	Success  bool   `json:"success"`
	Code     string `json:"code,omitempty"`
}

// Room is a single-threaded authoritative simulation of one shared city.
// All state must be accessed only from the room loop goroutine.
type Room struct {
	cfg     Config
	catalog *catalog.Catalog
	cache   *cache.Store

	day           int
	ended         bool
	winnerID      string
	victoryReason string

	grid      [][]Parcel
	buildings map[string]*Building
	players   map[string]*Player
	balances  map[string]float64 // the only authoritative cash table

	treasury       float64
	budgets        map[string]float64
	lvtRate        float64
	lvtCollected   float64
	publicSpending float64

	population     int
	lowAttractDays int

	listings map[string]*Listing
	offers   map[string]*Offer

	dedup   *dedupSet
	archive []ArchivedTx
	txDay   []ArchivedTx // applied since last tick, for the tick log

	clients map[string]*clientState
	inbox   chan TxEnvelope
	join    chan JoinRequest
	leave   chan string
	stop    chan struct{}

	nextPlayerNum   int
	nextBuildingNum int
	nextListingNum  int
	nextOfferNum    int

	dirtyBuildings  map[string]struct{}
	dirtyPlayers    map[string]struct{}
	dirtyAggregates bool

	tickLogger   TickLogger
	auditLogger  AuditLogger
	snapshotSink chan<- snapshot.RoomV1
}

func New(cfg Config, cats *catalog.Catalog) *Room {
	r := &Room{
		cfg:       cfg,
		catalog:   cats,
		cache:     cache.New(cfg.GridSize, cfg.InfluenceRadius, cfg.CacheTTL),
		buildings: map[string]*Building{},
		players:   map[string]*Player{},
		balances:  map[string]float64{},
		budgets:   map[string]float64{},
		lvtRate:   cfg.LVTRate,
		listings:  map[string]*Listing{},
		offers:    map[string]*Offer{},
		dedup:     newDedupSet(cfg.TxDedupCapacity),
		clients:   map[string]*clientState{},
		inbox:     make(chan TxEnvelope, 256),
		join:      make(chan JoinRequest, 16),
		leave:     make(chan string, 16),
		stop:      make(chan struct{}),

		population: cfg.PopulationStart,

		dirtyBuildings: map[string]struct{}{},
		dirtyPlayers:   map[string]struct{}{},
	}
	for _, cat := range cfg.BudgetCategories {
		r.budgets[cat] = 0
	}
	r.initGrid()
	return r
}

func (r *Room) SetTickLogger(l TickLogger)                 { r.tickLogger = l }
func (r *Room) SetAuditLogger(l AuditLogger)               { r.auditLogger = l }
func (r *Room) SetSnapshotSink(ch chan<- snapshot.RoomV1)  { r.snapshotSink = ch }

func (r *Room) Inbox() chan<- TxEnvelope { return r.inbox }
func (r *Room) Join() chan<- JoinRequest { return r.join }
func (r *Room) Leave() chan<- string     { return r.leave }

func (r *Room) ID() string { return r.cfg.ID }

// Date returns the virtual calendar date for a game day.
func (r *Room) Date(day int) time.Time {
	return r.cfg.StartDate.AddDate(0, 0, day)
}

// Run owns all room state. Timers feed the same serialized path as player
// transactions, so no two mutations ever interleave.
func (r *Room) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Duration(r.cfg.DayLengthMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.stop:
			return nil
		case req := <-r.join:
			r.handleJoin(req)
		case id := <-r.leave:
			delete(r.clients, id)
		case env := <-r.inbox:
			res := r.applyTx(env)
			r.sendResult(env.PlayerID, res)
			r.broadcastDelta()
		case <-ticker.C:
			if !r.ended {
				r.dailyTick()
				r.broadcastDelta()
			}
		}
	}
}

func (r *Room) Stop() { close(r.stop) }

func (r *Room) handleJoin(req JoinRequest) {
	var p *Player
	if req.ResumeToken != "" {
		for _, cand := range r.players {
			if cand.ResumeToken == req.ResumeToken {
				p = cand
				break
			}
		}
	}
	if p == nil {
		p = r.getOrCreatePlayer(r.newPlayerID(), req.Name)
	}
	p.ResumeToken = fmt.Sprintf("resume_%s_%s_%d", r.cfg.ID, p.ID, time.Now().UnixNano())

	if req.Out != nil {
		r.clients[p.ID] = &clientState{Out: req.Out}
	}

	resp := JoinResponse{
		Welcome: protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			PlayerID:        p.ID,
			ResumeToken:     p.ResumeToken,
			RoomID:          r.cfg.ID,
			RoomParams: protocol.RoomParams{
				GridSize:    r.cfg.GridSize,
				DayLengthMs: r.cfg.DayLengthMs,
				GameDays:    r.cfg.GameDays,
				StartDate:   r.cfg.StartDate.Format("2006-01-02"),
				LVTRate:     r.lvtRate,
			},
			Catalog: protocol.DigestRef{
				Digest: r.catalog.Digest,
				Count:  len(r.catalog.IDs),
			},
		},
		Catalog: protocol.CatalogMsg{
			Type:            protocol.TypeCatalog,
			ProtocolVersion: protocol.Version,
			Digest:          r.catalog.Digest,
			Data:            r.catalog.ByID,
		},
		State: r.buildState(),
	}
	if req.Resp != nil {
		req.Resp <- resp
	}
}

// sendLatest drops the oldest pending message rather than blocking the
// room loop on a slow client.
func sendLatest(out chan []byte, b []byte) {
	for {
		select {
		case out <- b:
			return
		default:
			select {
			case <-out:
			default:
			}
		}
	}
}

func (r *Room) audit(actor, action string, details map[string]any) {
	if r.auditLogger == nil {
		return
	}
	_ = r.auditLogger.WriteAudit(AuditEntry{
		Day:     r.day,
		Actor:   actor,
		Action:  action,
		Details: details,
	})
}

func (r *Room) markBuildingDirty(id string) { r.dirtyBuildings[id] = struct{}{} }
func (r *Room) markPlayerDirty(id string)   { r.dirtyPlayers[id] = struct{}{} }

// onBuildingChanged routes a spatial mutation through the cache contract
// and flags the aggregates for the next delta.
func (r *Room) onBuildingChanged(loc Coord) {
	r.cache.Invalidate(cache.Change{Kind: cache.BuildingChanged, Row: loc.Row, Col: loc.Col})
	r.dirtyAggregates = true
}

func (r *Room) onPopulationChanged() {
	r.cache.Invalidate(cache.Change{Kind: cache.PopulationChanged})
	r.dirtyAggregates = true
}
