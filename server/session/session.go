// Package session holds one connected wallet's character state and runs
// attacks and purchases against the asset store.
package session

import (
	"context"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fantasyrpg/server/apperr"
	"fantasyrpg/server/asset"
	"fantasyrpg/server/combat"
	"fantasyrpg/server/history"
	"fantasyrpg/server/metrics"
	"fantasyrpg/server/progression"
	"fantasyrpg/server/shop"
	"fantasyrpg/server/telemetry"
	"fantasyrpg/shared/game/types"
	"fantasyrpg/shared/protocol"
)

type State int

const (
	Disconnected State = iota
	Resolving
	NeedsCreation
	Loaded
	Pending
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Resolving:
		return "Resolving"
	case NeedsCreation:
		return "NeedsCreation"
	case Loaded:
		return "Loaded"
	case Pending:
		return "Pending"
	}
	return "Unknown"
}

const (
	LowHPMessage = "Please use potions and have more than 10 HP."
	TableWarning = "Experience table unavailable, levels may be wrong."
)

var errDiscarded = apperr.New(apperr.CodeWalletNotConnected, "Session was disconnected")

// Deps are the collaborators a session needs. Pacer may be nil.
type Deps struct {
	Store   asset.Store
	History *history.Store
	Table   progression.Source
	Rand    combat.Roller
	Pacer   Pacer
	ExpMode combat.ExpMode
}

// Session is safe for concurrent use. At most one attack or purchase runs
// at a time; a second one fails with apperr.ErrBusy.
type Session struct {
	deps   Deps
	tracer trace.Tracer

	busy chan struct{}

	mu      sync.Mutex
	state   State
	gen     uint64
	ctx     context.Context
	cancel  context.CancelFunc
	owner   string
	assetID string
	player  *types.PlayerData
	logs    []types.BattleLog
	table   progression.ExperienceTable
	warning string
}

func New(deps Deps) *Session {
	if deps.ExpMode == "" {
		deps.ExpMode = combat.ExpReplace
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		deps:   deps,
		tracer: telemetry.Tracer(),
		busy:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
	}
}

// AttackResult is what one successful attack produced.
type AttackResult struct {
	Log    types.BattleLog
	Player types.PlayerData

	// LowHP is set when the attack started below the warning threshold.
	LowHP bool
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Owner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

// resetLocked clears everything and bumps the generation so in-flight
// operations drop their results.
func (s *Session) resetLocked() {
	s.cancel()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.gen++
	s.state = Disconnected
	s.owner = ""
	s.assetID = ""
	s.player = nil
	s.logs = nil
	s.table = nil
	s.warning = ""
}

func (s *Session) tryLock() bool {
	select {
	case s.busy <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Session) unlock() { <-s.busy }

// Connect resolves owner's character. Any previous connection is dropped.
func (s *Session) Connect(ctx context.Context, owner string) (err error) {
	ctx, span := s.tracer.Start(ctx, "session.Connect")
	defer func() { endSpan(span, err) }()

	if owner == "" {
		return apperr.ErrWalletNotConnected
	}

	s.mu.Lock()
	s.resetLocked()
	s.state = Resolving
	s.owner = owner
	gen := s.gen
	s.mu.Unlock()

	table, warning := s.loadTable()

	assetID, found, err := s.deps.Store.FindCharacter(ctx, owner)
	if err != nil {
		metrics.StoreFailure(ctx, "find")
		s.abortConnect(gen)
		log.Printf("[session] find character for %s: %v", owner, err)
		return asLoadError(err)
	}

	if !found {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen != gen {
			return errDiscarded
		}
		s.state = NeedsCreation
		s.table = table
		s.warning = warning
		return nil
	}

	p, err := s.deps.Store.LoadCharacter(ctx, assetID)
	if err != nil {
		metrics.StoreFailure(ctx, "load")
		s.abortConnect(gen)
		log.Printf("[session] load character %s: %v", assetID, err)
		return asLoadError(err)
	}

	logs, err := s.deps.History.Load(assetID)
	if err != nil {
		log.Printf("[session] %v", err)
		logs = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return errDiscarded
	}
	s.state = Loaded
	s.assetID = assetID
	s.player = &p
	s.logs = logs
	s.table = table
	s.warning = warning
	span.SetAttributes(attribute.String("asset.id", assetID))
	return nil
}

func (s *Session) loadTable() (progression.ExperienceTable, string) {
	if s.deps.Table == nil {
		return progression.ExperienceTable{}, TableWarning
	}
	t, err := s.deps.Table.Load()
	if err != nil {
		log.Printf("[session] experience table: %v", err)
		return progression.ExperienceTable{}, TableWarning
	}
	return t, ""
}

func (s *Session) abortConnect(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.resetLocked()
	}
}

func asLoadError(err error) error {
	if apperr.CodeOf(err) == apperr.CodeLoadError {
		return err
	}
	return apperr.Wrap(apperr.CodeLoadError, "Failed to load character", err)
}

// CreateCharacter mints the owner's first character of the named class.
func (s *Session) CreateCharacter(ctx context.Context, className string) (p types.PlayerData, err error) {
	ctx, span := s.tracer.Start(ctx, "session.CreateCharacter")
	defer func() { endSpan(span, err) }()

	class, ok := types.ParseClass(className)
	if !ok {
		return types.PlayerData{}, apperr.New(apperr.CodeInvalidOperation, "Unknown class: "+className)
	}

	s.mu.Lock()
	switch s.state {
	case Disconnected:
		s.mu.Unlock()
		return types.PlayerData{}, apperr.ErrWalletNotConnected
	case NeedsCreation:
	case Loaded, Pending:
		s.mu.Unlock()
		return types.PlayerData{}, apperr.New(apperr.CodeInvalidOperation, "Character already exists")
	default:
		s.mu.Unlock()
		return types.PlayerData{}, apperr.ErrNotInitialized
	}
	if !s.tryLock() {
		s.mu.Unlock()
		return types.PlayerData{}, apperr.ErrBusy
	}
	defer s.unlock()
	gen, owner := s.gen, s.owner
	s.mu.Unlock()

	initial := types.NewPlayer(class, owner)
	assetID, err := s.deps.Store.CreateCharacter(ctx, initial)
	if err != nil {
		metrics.StoreFailure(ctx, "create")
		log.Printf("[session] create character for %s: %v", owner, err)
		return types.PlayerData{}, asWriteError(err)
	}
	initial.Mint = assetID
	if err := s.deps.History.Clear(assetID); err != nil {
		log.Printf("[session] clear history %s: %v", assetID, err)
	}
	metrics.CharacterCreated(ctx, string(class))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return types.PlayerData{}, errDiscarded
	}
	s.state = Loaded
	s.assetID = assetID
	cp := initial.Clone()
	s.player = &cp
	s.logs = nil
	return initial.Clone(), nil
}

type pending struct {
	gen     uint64
	ctx     context.Context
	assetID string
	player  types.PlayerData
}

// begin moves Loaded to Pending and takes the busy lock. The caller must
// call s.unlock when done.
func (s *Session) begin() (pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Disconnected:
		return pending{}, apperr.ErrWalletNotConnected
	case Loaded, Pending:
	default:
		return pending{}, apperr.ErrNotInitialized
	}
	if !s.tryLock() {
		return pending{}, apperr.ErrBusy
	}
	s.state = Pending
	return pending{gen: s.gen, ctx: s.ctx, assetID: s.assetID, player: s.player.Clone()}, nil
}

// rollback returns to Loaded without touching the snapshot.
func (s *Session) rollback(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen && s.state == Pending {
		s.state = Loaded
	}
}

// Attack fights one monster. onProgress, if set, receives pacing updates.
func (s *Session) Attack(ctx context.Context, onProgress func(percent int)) (res AttackResult, err error) {
	ctx, span := s.tracer.Start(ctx, "session.Attack")
	defer func() { endSpan(span, err) }()

	op, err := s.begin()
	if err != nil {
		return AttackResult{}, err
	}
	defer s.unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(op.ctx, cancel)
	defer stop()

	lowHP := combat.LowHP(op.player)
	out := combat.Resolve(op.player, s.deps.Rand, s.deps.ExpMode)

	if s.deps.Pacer != nil {
		if err := s.deps.Pacer.Wait(ctx, onProgress); err != nil {
			s.rollback(op.gen)
			if op.ctx.Err() != nil {
				return AttackResult{}, errDiscarded
			}
			return AttackResult{}, err
		}
	}

	tx, err := s.deps.Store.SaveCharacter(ctx, op.assetID, out.Player)
	if err != nil {
		metrics.StoreFailure(ctx, "save")
		s.rollback(op.gen)
		log.Printf("[session] save after attack %s: %v", op.assetID, err)
		return AttackResult{}, asWriteError(err)
	}

	entry := types.BattleLog{
		ID:          protocol.NewID(),
		Monster:     out.Monster,
		GoldEarned:  out.GoldEarned,
		ExpEarned:   out.ExpEarned,
		LostHP:      out.LostHP,
		Timestamp:   time.Now().UnixMilli(),
		TxSignature: tx,
	}

	s.mu.Lock()
	if s.gen != op.gen {
		s.mu.Unlock()
		return AttackResult{}, errDiscarded
	}
	p := out.Player.Clone()
	s.player = &p
	s.logs = history.Prepend(s.logs, entry)
	s.state = Loaded
	logs := append([]types.BattleLog(nil), s.logs...)
	s.mu.Unlock()

	if err := s.deps.History.Save(op.assetID, logs); err != nil {
		log.Printf("[session] %v", err)
	}
	metrics.Attack(ctx, string(out.Monster))
	span.SetAttributes(attribute.String("monster", string(out.Monster)))

	return AttackResult{Log: entry, Player: out.Player.Clone(), LowHP: lowHP}, nil
}

// BuyPotion spends gold to heal and persists the result.
func (s *Session) BuyPotion(ctx context.Context) (p types.PlayerData, err error) {
	ctx, span := s.tracer.Start(ctx, "session.BuyPotion")
	defer func() { endSpan(span, err) }()

	op, err := s.begin()
	if err != nil {
		return types.PlayerData{}, err
	}
	defer s.unlock()

	next, err := shop.BuyPotion(op.player)
	if err != nil {
		s.rollback(op.gen)
		metrics.Potion(ctx, false)
		return types.PlayerData{}, err
	}

	if _, err := s.deps.Store.SaveCharacter(ctx, op.assetID, next); err != nil {
		metrics.StoreFailure(ctx, "save")
		s.rollback(op.gen)
		log.Printf("[session] save after potion %s: %v", op.assetID, err)
		return types.PlayerData{}, asWriteError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != op.gen {
		return types.PlayerData{}, errDiscarded
	}
	cp := next.Clone()
	s.player = &cp
	s.state = Loaded
	metrics.Potion(ctx, true)
	return next.Clone(), nil
}

func asWriteError(err error) error {
	if apperr.CodeOf(err) == apperr.CodeWriteError {
		return err
	}
	return apperr.Wrap(apperr.CodeWriteError, "Failed to save character", err)
}

// Disconnect drops all state and cancels pending work.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// Snapshot returns a copy of the session view.
func (s *Session) Snapshot() protocol.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := protocol.State{
		State:   s.state.String(),
		Owner:   s.owner,
		AssetID: s.assetID,
		Logs:    append([]types.BattleLog{}, s.logs...),
		Warning: s.warning,
		Level:   1,
	}
	if s.state == NeedsCreation {
		for _, c := range types.ListClasses() {
			st.Classes = append(st.Classes, string(c.ID))
		}
	}
	if s.player == nil {
		return st
	}
	p := s.player.Clone()
	st.Player = &p
	st.Level = progression.LevelFromExp(p.Exp, s.table)
	st.Progress = progression.Progress(p.Exp, s.table)
	if stats, err := progression.ComputeStats(p.Class, st.Level); err == nil {
		st.Stats = &stats
	}
	return st
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperr.Message(err))
	}
	span.End()
}
