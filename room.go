package main

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	CountdownDuration = 5 * time.Second
	InputStaleAfter   = time.Second
	PresenceWindow    = 30 * time.Second
	RoomIdleTimeout   = 30 * time.Minute

	ChatMaxMessages = 120
	ChatMaxChars    = 240
)

// RoomState is the lifecycle state of a match.
type RoomState string

const (
	StateLobby     RoomState = "lobby"
	StateCountdown RoomState = "countdown"
	StateRunning   RoomState = "running"
	StateFinished  RoomState = "finished"
)

// Room owns one match: two player slots, the pieces and pellets on the field,
// the chat log, and the lifecycle state. All access goes through its mutex so
// a snapshot never observes a half-advanced tick.
type Room struct {
	mu sync.Mutex

	ID           string
	Mode         string // "single" or "network"
	AIDifficulty string
	PieceCount   int
	PiecesNeeded int

	State           RoomState
	Winner          int // -1 until decided
	WarmupAI        bool
	ResultAnnounced bool

	CreatedAt    time.Time
	UpdatedAt    time.Time
	StartedAt    time.Time // countdown anchor
	RunStartedAt time.Time
	LastTickAt   time.Time

	Players     [2]*Player
	Pieces      []*Piece
	Projectiles []*Projectile
	Chat        []ChatEntry

	controllers [2]PlayerController
}

// NewRoom creates a room with the host occupying side 0. Single-player rooms
// seat the AI on side 1 immediately, permanently ready.
func NewRoom(mode string, pieceCount int, difficulty string, now time.Time) *Room {
	if mode != "single" {
		mode = "network"
	}
	if !ValidDifficulty(difficulty) {
		difficulty = "medium"
	}

	r := &Room{
		ID:           GenerateUUID(),
		Mode:         mode,
		AIDifficulty: difficulty,
		PieceCount:   pieceCount,
		PiecesNeeded: pieceCount/2 + 1,
		State:        StateLobby,
		Winner:       -1,
		CreatedAt:    now,
		UpdatedAt:    now,
		StartedAt:    now,
		LastTickAt:   now,
		Pieces:       NewPieces(pieceCount),
	}

	for side := range r.Players {
		p := NewPlayer(side)
		p.Token = GenerateID(12)
		r.Players[side] = p
	}
	r.Players[0].MarkSeen(now)
	r.controllers[0] = intentController{}
	r.controllers[1] = intentController{}

	if mode == "single" {
		ai := r.Players[1]
		ai.IsAI = true
		ai.Ready = true
		ai.MarkSeen(now)
		r.controllers[1] = newAIController(difficulty)
		r.addMessage("System", "Single-player room created.", now)
	} else {
		r.addMessage("System", "Multiplayer room created. Press Practice to warm up vs AI while waiting for Player 2.", now)
	}
	return r
}

// verify resolves a token to the player slot it authorizes, or nil.
func (r *Room) verify(token string) *Player {
	if token == "" {
		return nil
	}
	for _, p := range r.Players {
		if p.Token == token {
			return p
		}
	}
	return nil
}

// addMessage appends a trimmed, whitespace-collapsed, length-capped entry to
// the bounded chat ring. Callers hold the room lock.
func (r *Room) addMessage(sender, text string, now time.Time) {
	clean := strings.Join(strings.Fields(text), " ")
	if clean == "" {
		return
	}
	if len(clean) > ChatMaxChars {
		clean = clean[:ChatMaxChars]
	}
	r.Chat = append(r.Chat, ChatEntry{
		ID:     GenerateID(3),
		Sender: sender,
		Text:   clean,
		TS:     now.UnixMilli(),
	})
	if len(r.Chat) > ChatMaxMessages {
		r.Chat = r.Chat[len(r.Chat)-ChatMaxMessages:]
	}
}

// resetMatch restores pieces, pellets, scores and player match state. The
// room lands in the lobby or straight in a countdown.
func (r *Room) resetMatch(toLobby bool, now time.Time) {
	r.Projectiles = nil
	r.Pieces = NewPieces(r.PieceCount)
	r.Winner = -1
	for _, p := range r.Players {
		p.ResetForMatch()
	}
	r.WarmupAI = false
	r.StartedAt = now
	r.RunStartedAt = time.Time{}
	r.LastTickAt = now
	r.ResultAnnounced = false
	if toLobby {
		r.State = StateLobby
	} else {
		r.State = StateCountdown
	}
	r.addMessage("System", "Match reset.", now)
}

// startWarmup puts the room straight into a running practice round against
// the AI stand-in on side 1. Warmup rounds are consequence-free.
func (r *Room) startWarmup(announce bool, now time.Time) {
	r.Projectiles = nil
	r.Pieces = NewPieces(r.PieceCount)
	r.Winner = -1
	for _, p := range r.Players {
		p.ResetForMatch()
	}
	ai := r.Players[1]
	ai.IsAI = true
	ai.Connected = false
	ai.LastSeenAt = time.Time{}
	ai.LastInputAt = time.Time{}
	r.controllers[1] = newAIController(r.AIDifficulty)
	r.WarmupAI = true
	r.StartedAt = now
	r.RunStartedAt = now
	r.LastTickAt = now
	r.State = StateRunning
	r.ResultAnnounced = false
	if announce {
		r.addMessage("System", "Warmup vs AI started while waiting for Player 2.", now)
	}
}

// Join seats a second human on side 1 of a network room.
func (r *Room) Join(now time.Time) (*JoinedResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Mode != "network" {
		return nil, preconditionError("room is single-player")
	}
	joiner := r.Players[1]
	if joiner.Connected {
		return nil, preconditionError("room already full")
	}

	joiner.IsAI = false
	joiner.Ready = false
	joiner.MarkSeen(now)
	joiner.LastInputAt = now
	r.controllers[1] = intentController{}

	if r.WarmupAI {
		r.resetMatch(true, now)
		r.addMessage("System", "Warmup ended. Lobby ready for multiplayer start.", now)
	}
	r.UpdatedAt = now
	r.addMessage("System", "Player 2 joined the room.", now)

	return &JoinedResponse{
		RoomID:       r.ID,
		Token:        joiner.Token,
		Side:         1,
		PieceCount:   r.PieceCount,
		PiecesNeeded: r.PiecesNeeded,
	}, nil
}

// ApplyInput validates and stores a player's pending intent and refreshes
// presence. Non-finite numbers are treated as absent.
func (r *Room) ApplyInput(token string, in InputBody, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.verify(token)
	if p == nil {
		return errInvalidToken
	}

	p.Intent.AimDir = Clamp(finiteOr(in.AimDir, 0), -1, 1)
	p.Intent.Shooting = in.Shooting
	p.Intent.ReloadWanted = in.ReloadPressed
	if in.DesiredAngle != nil && isFinite(*in.DesiredAngle) {
		p.Intent.DesiredAngle = *in.DesiredAngle
		p.Intent.HasDesired = true
	} else {
		p.Intent.HasDesired = false
	}

	p.LastInputAt = now
	p.MarkSeen(now)
	r.UpdatedAt = now
	return nil
}

// SetReady flips the joiner's ready flag while a network room is in lobby.
func (r *Room) SetReady(token string, ready bool, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.verify(token)
	if p == nil {
		return false, errInvalidToken
	}
	if r.Mode != "network" {
		return false, preconditionError("ready is for multiplayer only")
	}
	if r.State != StateLobby {
		return false, preconditionError("can only change ready state in lobby")
	}
	if p.Side != 1 {
		return false, preconditionError("only joining player can toggle ready")
	}

	p.Ready = ready
	p.MarkSeen(now)
	r.UpdatedAt = now
	return p.Ready, nil
}

// Start begins the match. A lone host in a network room silently enters a
// warmup practice round instead of blocking on an opponent.
func (r *Room) Start(token string, now time.Time) (practice bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.verify(token)
	if p == nil {
		return false, errInvalidToken
	}
	p.MarkSeen(now)
	if p.Side != 0 {
		return false, preconditionError("only host can start")
	}
	if r.State != StateLobby {
		return false, preconditionError("match is already in progress")
	}
	if r.Mode == "network" && !r.Players[1].Connected {
		r.startWarmup(true, now)
		r.UpdatedAt = now
		return true, nil
	}
	if r.Mode == "network" && !r.Players[1].Ready {
		return false, preconditionError("waiting for opponent to ready up")
	}

	r.State = StateCountdown
	r.Players[0].Ready = false
	r.Players[1].Ready = false
	r.StartedAt = now
	r.RunStartedAt = time.Time{}
	r.LastTickAt = now
	r.UpdatedAt = now
	return false, nil
}

// Rematch resets a finished room back to the lobby.
func (r *Room) Rematch(token string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.verify(token)
	if p == nil {
		return errInvalidToken
	}
	p.MarkSeen(now)
	if p.Side != 0 {
		return preconditionError("only host can rematch")
	}
	if r.State != StateFinished {
		return preconditionError("match is not finished")
	}

	r.resetMatch(true, now)
	r.UpdatedAt = now
	return nil
}

// Resign ends an active match in favor of the other side. Resigning a warmup
// round just resets the room, and a joiner resigning outside an active match
// behaves like leaving.
func (r *Room) Resign(token string, now time.Time) (*OKResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.verify(token)
	if p == nil {
		return nil, errInvalidToken
	}
	p.MarkSeen(now)

	if r.WarmupAI {
		r.resetMatch(true, now)
		r.addMessage("System", "Practice round resigned. Back to lobby.", now)
		r.UpdatedAt = now
		return &OKResponse{OK: true}, nil
	}

	active := r.State == StateRunning || r.State == StateCountdown
	if !active {
		if r.Mode == "network" && p.Side == 1 {
			p.Connected = false
			p.Ready = false
			p.ClearIntent()
			if r.Players[0].Connected {
				r.startWarmup(true, now)
			}
			r.UpdatedAt = now
			r.addMessage("System", "Player 2 resigned and left the room.", now)
			return &OKResponse{OK: true, Left: true}, nil
		}
		return nil, preconditionError("can only resign during an active match")
	}

	winner := 1 - p.Side
	r.State = StateFinished
	r.Winner = winner
	r.WarmupAI = false
	r.ResultAnnounced = true
	for _, pl := range r.Players {
		pl.Ready = false
		pl.Intent.Shooting = false
	}
	r.addMessage("System", fmt.Sprintf(
		"Player %d resigned. Final score: P1 %d - P2 %d. Player %d wins.",
		p.Side+1, r.Players[0].Score, r.Players[1].Score, winner+1), now)
	r.UpdatedAt = now
	return &OKResponse{OK: true, Winner: &winner}, nil
}

// Leave clears the caller's slot. A host leaving reports hostLeft so the
// registry can destroy the room; a joiner leaving re-enters warmup practice
// if the host is still around.
func (r *Room) Leave(token string, now time.Time) (hostLeft bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.verify(token)
	if p == nil {
		return false, errInvalidToken
	}
	p.LastSeenAt = now

	if p.Side == 0 {
		return true, nil
	}

	p.Connected = false
	p.Ready = false
	p.ClearIntent()
	if r.Mode == "network" && r.Players[0].Connected {
		r.startWarmup(true, now)
	}
	r.UpdatedAt = now
	r.addMessage("System", "Player 2 left the room.", now)
	return false, nil
}

// AddChat appends a player's message to the room log.
func (r *Room) AddChat(token, text string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.verify(token)
	if p == nil {
		return errInvalidToken
	}
	if strings.TrimSpace(text) == "" {
		return validationError("message is empty")
	}

	sender := fmt.Sprintf("P%d", p.Side+1)
	if p.IsAI {
		sender = "AI"
	}
	r.addMessage(sender, text, now)
	r.UpdatedAt = now
	return nil
}

// fire spawns a pellet along the player's current gun angle if the fire gates
// allow it. Magazine ammo relocates into flight; nothing is created.
func (r *Room) fire(p *Player, now time.Time) {
	if !p.CanFire(now) {
		return
	}
	r.Projectiles = append(r.Projectiles, NewProjectile(p.Side, p.GunAngle))
	p.Mag--
	p.LastShotAt = now
}

// Tick advances the room by the real time elapsed since its previous tick.
// The in-tick order is load-bearing: presence and reload deadlines resolve
// before intent, intent before integration, integration before collisions,
// collisions before scoring and ammo collection, and the win check runs last.
func (r *Room) Tick(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.Players {
		if p.IsAI {
			continue
		}
		if p.Connected && now.Sub(p.LastSeenAt) > PresenceWindow {
			p.Connected = false
			p.Ready = false
			p.ClearIntent()
		}
	}

	dt := now.Sub(r.LastTickAt).Seconds()
	if dt > MaxTickDelta {
		dt = MaxTickDelta
	}
	r.LastTickAt = now

	switch r.State {
	case StateFinished, StateLobby:
		return
	case StateCountdown:
		if now.Sub(r.StartedAt) >= CountdownDuration {
			r.State = StateRunning
			r.RunStartedAt = now
		}
		return
	}

	for i, p := range r.Players {
		if p.Reloading && !now.Before(p.ReloadUntil) {
			p.FinishReload()
		}
		if !p.IsAI && now.Sub(p.LastInputAt) > InputStaleAfter {
			p.ClearIntent()
		}
		r.controllers[i].Act(r, p, dt, now)
	}

	for _, piece := range r.Pieces {
		if !piece.Live() {
			continue
		}
		IntegratePiece(piece, dt)
		CollidePieceBounds(piece)
		if side := GoalSide(piece); side >= 0 {
			piece.ScoredBy = side
			r.Players[side].Score++
		}
	}

	for i := 0; i < len(r.Pieces); i++ {
		if !r.Pieces[i].Live() {
			continue
		}
		for j := i + 1; j < len(r.Pieces); j++ {
			if !r.Pieces[j].Live() {
				continue
			}
			ResolvePiecePiece(r.Pieces[i], r.Pieces[j])
		}
	}

	kept := r.Projectiles[:0]
	for _, shot := range r.Projectiles {
		prevX := shot.X
		IntegrateShot(shot, dt)
		CollideShotBounds(shot)

		// At most one live piece absorbs a pellet's impulse per tick.
		for _, piece := range r.Pieces {
			if !piece.Live() {
				continue
			}
			if ShotHitsPiece(shot, piece) {
				break
			}
		}

		consumed := false
		if side := CollectSide(prevX, shot.X); side >= 0 {
			r.Players[side].Bin++
			consumed = true
		}
		if !consumed && shot.TTL <= 0 {
			// Return stale pellets to the nearest side's bin so total
			// ammo stays conserved.
			r.Players[ReturnSide(shot.X)].Bin++
			consumed = true
		}
		if !consumed {
			kept = append(kept, shot)
		}
	}
	r.Projectiles = kept

	for side := 0; side <= 1; side++ {
		if r.Players[side].Score < r.PiecesNeeded {
			continue
		}
		if r.WarmupAI {
			r.resetMatch(true, now)
			r.addMessage("System", "Practice round ended. Press Practice to start another.", now)
			r.UpdatedAt = now
			return
		}
		r.State = StateFinished
		r.Winner = side
	}

	if r.State == StateFinished && !r.ResultAnnounced {
		winnerLabel := "Player 1"
		if r.Winner == 1 {
			winnerLabel = "Player 2"
		}
		r.addMessage("System", fmt.Sprintf("Final score: P1 %d - P2 %d. %s wins.",
			r.Players[0].Score, r.Players[1].Score, winnerLabel), now)
		r.ResultAnnounced = true
	}

	r.UpdatedAt = now
}

// Snapshot projects current room state for the requesting player. Fetching a
// snapshot also counts as presence.
func (r *Room) Snapshot(token string, now time.Time) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.verify(token)
	if p == nil {
		return nil, errInvalidToken
	}
	p.MarkSeen(now)
	r.UpdatedAt = now

	bothConnected := r.Players[0].Connected && r.Players[1].Connected
	joinerConnected := r.Mode == "network" && r.Players[1].Connected

	var countdownMs int64
	if r.State == StateCountdown {
		if left := CountdownDuration - now.Sub(r.StartedAt); left > 0 {
			countdownMs = left.Milliseconds()
		}
	}
	var runElapsedMs int64
	if r.State == StateRunning && !r.RunStartedAt.IsZero() {
		if el := now.Sub(r.RunStartedAt); el > 0 {
			runElapsedMs = el.Milliseconds()
		}
	}

	var winner *int
	if r.Winner >= 0 {
		w := r.Winner
		winner = &w
	}

	snap := &Snapshot{
		RoomID:       r.ID,
		Board:        boardState(),
		Mode:         r.Mode,
		State:        r.State,
		Winner:       winner,
		PieceCount:   r.PieceCount,
		PiecesNeeded: r.PiecesNeeded,
		CountdownMs:  countdownMs,
		RunElapsedMs: runElapsedMs,
		HostCanStart: p.Side == 0 && r.State == StateLobby &&
			(r.Mode == "single" || !joinerConnected || (bothConnected && r.Players[1].Ready)),
		HostCanRematch: p.Side == 0 && r.State == StateFinished,
		JoinerCanReady: r.Mode == "network" && p.Side == 1 && r.State == StateLobby && r.Players[1].Connected,
		WarmupAI:       r.WarmupAI,
		Me:             p.Side,
		Players:        make([]PlayerState, 0, 2),
		Projectiles:    make([]ProjectileState, 0, len(r.Projectiles)),
		Pieces:         make([]PieceState, 0, len(r.Pieces)),
		Chat:           append([]ChatEntry(nil), r.Chat...),
	}
	for _, pl := range r.Players {
		snap.Players = append(snap.Players, pl.ToState(now))
	}
	for _, shot := range r.Projectiles {
		snap.Projectiles = append(snap.Projectiles, shot.ToState())
	}
	for _, piece := range r.Pieces {
		snap.Pieces = append(snap.Pieces, piece.ToState())
	}
	return snap, nil
}

// JoinableInfo reports whether the room belongs in the public list, and its
// listing if so. A network room is joinable in lobby with a vacant or absent
// joiner, or while the host practices in warmup.
func (r *Room) JoinableInfo(now time.Time) (RoomListing, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Mode != "network" {
		return RoomListing{}, false
	}
	if !r.WarmupAI {
		if r.State != StateLobby {
			return RoomListing{}, false
		}
		joiner := r.Players[1]
		if joiner.Connected && now.Sub(joiner.LastSeenAt) <= PresenceWindow {
			return RoomListing{}, false
		}
	}
	return RoomListing{
		RoomID:     r.ID,
		PieceCount: r.PieceCount,
		CreatedAt:  millis(r.CreatedAt),
	}, true
}

// ActiveHumans counts humans in this room heard from within the presence
// window.
func (r *Room) ActiveHumans(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, p := range r.Players {
		if p.IsAI {
			continue
		}
		if p.Connected && now.Sub(p.LastSeenAt) <= PresenceWindow {
			n++
		}
	}
	return n
}

// Expired reports whether the registry should tear the room down: idle past
// the timeout, or a network room whose host is gone.
func (r *Room) Expired(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Mode == "network" && !r.Players[0].Connected {
		return true
	}
	return now.Sub(r.UpdatedAt) > RoomIdleTimeout
}

// HostToken returns the host's token, used by create responses.
func (r *Room) HostToken() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Players[0].Token
}
