package main

import "time"

// PlayerController produces one tick's worth of aim, fire and reload
// decisions for a player slot. Humans and the AI drive the same primitives;
// the tick loop never inspects who is behind a slot.
type PlayerController interface {
	Act(room *Room, p *Player, dt float64, now time.Time)
}

// intentController replays the pending intent a human submitted through the
// input operation.
type intentController struct{}

func (intentController) Act(room *Room, p *Player, dt float64, now time.Time) {
	boundsMin, boundsMax := AimBounds(p.Side)

	if p.Intent.HasDesired {
		desired := Clamp(NormalizeAimAngle(p.Side, p.Intent.DesiredAngle), boundsMin, boundsMax)
		delta := AngleWrap(desired - p.GunAngle)
		p.GunAngle += Clamp(delta, -AimTrackSpeed*dt, AimTrackSpeed*dt)
	} else {
		p.GunAngle += p.Intent.AimDir * AimTurnSpeed * dt
	}
	p.GunAngle = Clamp(p.GunAngle, boundsMin, boundsMax)

	if p.Intent.ReloadWanted {
		p.RequestReload(now)
		p.Intent.ReloadWanted = false
	}

	if p.Intent.Shooting {
		room.fire(p, now)
	}
}
