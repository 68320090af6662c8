package main

import (
	"math"
	"math/rand"
	"time"
)

const targetCenterBias = 0.8 // weight of vertical-center distance in targeting

// AIConfig holds the per-difficulty tuning for the built-in opponent.
type AIConfig struct {
	AimSpeed   float64       // rad/s the gun turns toward the target
	ShootDelay time.Duration // minimum interval between AI shots
	Jitter     float64       // radians of random aim error
	ReloadAt   int           // magazine level that triggers a reload
	FireGate   float64       // radians of alignment required to fire
}

var aiConfigs = map[string]AIConfig{
	"easy":   {AimSpeed: 1.8, ShootDelay: 360 * time.Millisecond, Jitter: 0.12, ReloadAt: 4, FireGate: 0.18},
	"medium": {AimSpeed: 3.2, ShootDelay: 220 * time.Millisecond, Jitter: 0.07, ReloadAt: 6, FireGate: 0.12},
	"hard":   {AimSpeed: 4.8, ShootDelay: 140 * time.Millisecond, Jitter: 0.03, ReloadAt: 9, FireGate: 0.08},
}

// ValidDifficulty reports whether name is a known AI tier.
func ValidDifficulty(name string) bool {
	_, ok := aiConfigs[name]
	return ok
}

// aiController drives a player slot with the targeting heuristic instead of
// replayed intent. It uses exactly the fire/reload primitives a human does.
type aiController struct {
	cfg AIConfig
}

func newAIController(difficulty string) aiController {
	cfg, ok := aiConfigs[difficulty]
	if !ok {
		cfg = aiConfigs["medium"]
	}
	return aiController{cfg: cfg}
}

func (c aiController) Act(room *Room, p *Player, dt float64, now time.Time) {
	target := c.pickTarget(room.Pieces, p.Side)
	if target == nil {
		return
	}

	gx, gy := GunPosition(p.Side)
	desired := math.Atan2(target.Y-gy, target.X-gx) + (rand.Float64()-0.5)*c.cfg.Jitter
	boundsMin, boundsMax := AimBounds(p.Side)
	desired = Clamp(NormalizeAimAngle(p.Side, desired), boundsMin, boundsMax)

	delta := AngleWrap(desired - p.GunAngle)
	p.GunAngle += Clamp(delta, -c.cfg.AimSpeed*dt, c.cfg.AimSpeed*dt)

	if p.Mag <= c.cfg.ReloadAt && p.Bin > 0 {
		p.RequestReload(now)
	}
	if p.Reloading || p.Mag <= 0 {
		return
	}

	alignment := math.Abs(AngleWrap(desired - p.GunAngle))
	if alignment < c.cfg.FireGate && now.Sub(p.LastShotAt) > c.cfg.ShootDelay {
		room.fire(p, now)
	}
}

// pickTarget prefers live pieces already close to the opponent's goal and
// near the field's vertical centerline.
func (c aiController) pickTarget(pieces []*Piece, side int) *Piece {
	var target *Piece
	best := math.MaxFloat64
	for _, piece := range pieces {
		if !piece.Live() {
			continue
		}
		var scoreBias float64
		if side == 0 {
			scoreBias = GoalRightX - piece.X
		} else {
			scoreBias = piece.X - GoalLeftX
		}
		dy := math.Abs(piece.Y - BoardHeight/2)
		v := scoreBias + dy*targetCenterBias
		if v < best {
			best = v
			target = piece
		}
	}
	return target
}
