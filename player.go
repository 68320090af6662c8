package main

import "time"

const (
	MagCapacity  = 20
	TotalAmmo    = 50
	StartMag     = 20
	StartBinEach = (TotalAmmo - StartMag*2) / 2

	ReloadDuration = 700 * time.Millisecond
	ShotInterval   = 120 * time.Millisecond

	AimTurnSpeed  = 3.6 // rad/s when steering with a direction input
	AimTrackSpeed = 3.8 // rad/s when tracking a desired absolute angle
)

// Intent is a player's pending control state, replayed by the tick loop until
// fresh input arrives or it goes stale.
type Intent struct {
	AimDir       float64 // -1..1 turn direction
	Shooting     bool
	ReloadWanted bool
	DesiredAngle float64
	HasDesired   bool
}

// Player is one of the two gun slots in a room. Its ammo lives in three
// places only: magazine, reserve bin, and in-flight pellets it has fired.
type Player struct {
	Side        int
	GunAngle    float64
	Mag         int
	Bin         int
	Reloading   bool
	ReloadUntil time.Time
	Intent      Intent
	LastShotAt  time.Time
	Token       string
	Connected   bool
	LastSeenAt  time.Time
	LastInputAt time.Time
	IsAI        bool
	Score       int
	Ready       bool
}

// NewPlayer creates an unconnected player for a side with a full magazine and
// its share of the reserve pool.
func NewPlayer(side int) *Player {
	return &Player{
		Side:     side,
		GunAngle: RestAngle(side),
		Mag:      StartMag,
		Bin:      StartBinEach,
	}
}

// ResetForMatch restores ammo, aim, score and intent to match-start values.
// Connectivity and AI flags are left alone.
func (p *Player) ResetForMatch() {
	p.GunAngle = RestAngle(p.Side)
	p.Mag = StartMag
	p.Bin = StartBinEach
	p.Reloading = false
	p.ReloadUntil = time.Time{}
	p.Intent = Intent{}
	p.Score = 0
	p.LastShotAt = time.Time{}
	p.Ready = false
}

// RequestReload starts a reload unless one is running, the magazine is full,
// or the bin is empty. The actual ammo move happens on completion.
func (p *Player) RequestReload(now time.Time) {
	if p.Reloading || p.Mag >= MagCapacity || p.Bin <= 0 {
		return
	}
	p.Reloading = true
	p.ReloadUntil = now.Add(ReloadDuration)
}

// FinishReload moves ammo from the bin into the magazine, capped by both the
// capacity shortfall and the bin contents.
func (p *Player) FinishReload() {
	if !p.Reloading {
		return
	}
	p.Reloading = false
	needed := MagCapacity - p.Mag
	if needed <= 0 {
		return
	}
	moved := needed
	if p.Bin < moved {
		moved = p.Bin
	}
	p.Bin -= moved
	p.Mag += moved
}

// CanFire gates the fire action: loaded, not reloading, and past the minimum
// inter-shot interval.
func (p *Player) CanFire(now time.Time) bool {
	if p.Mag <= 0 || p.Reloading {
		return false
	}
	return now.Sub(p.LastShotAt) >= ShotInterval
}

// ReloadRemaining returns how long until the running reload completes.
func (p *Player) ReloadRemaining(now time.Time) time.Duration {
	if !p.Reloading {
		return 0
	}
	if d := p.ReloadUntil.Sub(now); d > 0 {
		return d
	}
	return 0
}

// ClearIntent drops all pending controls, used on disconnect and stale input.
func (p *Player) ClearIntent() {
	p.Intent = Intent{}
}

// MarkSeen refreshes presence tracking.
func (p *Player) MarkSeen(now time.Time) {
	p.Connected = true
	p.LastSeenAt = now
}

// ToState converts to protocol state
func (p *Player) ToState(now time.Time) PlayerState {
	return PlayerState{
		Side:      p.Side,
		Mag:       p.Mag,
		Bin:       p.Bin,
		Reloading: p.Reloading,
		ReloadMs:  p.ReloadRemaining(now).Milliseconds(),
		GunAngle:  p.GunAngle,
		Score:     p.Score,
		Connected: p.Connected,
		IsAI:      p.IsAI,
		Ready:     p.Ready,
	}
}
