package main

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Tuning constants for the collision model. The damping factors bring the
// system to rest without explicit drag; the wall restitutions keep pieces
// sluggish and pellets lively.
const (
	MaxTickDelta = 0.05 // seconds; clamp after a scheduler stall

	PieceDamping     = 0.987
	PieceSpinDamping = 0.982
	AmmoDamping      = 0.999

	PieceWallRestitution = 0.5
	AmmoWallRestitution  = 0.85

	PieceRestitution = 0.35   // piece-piece impulse restitution
	SpinTransfer     = 0.0006 // impulse tangential moment to spin

	HitBounce        = 0.35 // pellet reflection damping off a piece
	HitDragAlong     = 0.05 // fraction of piece velocity a pellet absorbs
	HitLinearFloor   = 0.15 // momentum transfer for a fully glancing hit
	HitLinearCenter  = 0.95 // extra transfer for a dead-center hit
	HitSpinTransfer  = 0.05 // off-center energy converted to spin
	HitSeparation    = 2.0  // pellet pushback along the contact normal
)

// IntegratePiece advances a live piece by dt seconds and damps its motion.
func IntegratePiece(p *Piece, dt float64) {
	p.X += p.VX * dt
	p.Y += p.VY * dt
	p.Angle += p.Spin * dt
	p.VX *= PieceDamping
	p.VY *= PieceDamping
	p.Spin *= PieceSpinDamping
}

// IntegrateShot advances a pellet by dt seconds, damping slightly and burning
// its time-to-live.
func IntegrateShot(s *Projectile, dt float64) {
	s.X += s.VX * dt
	s.Y += s.VY * dt
	s.TTL -= dt
	s.VX *= AmmoDamping
	s.VY *= AmmoDamping
}

// CollidePieceBounds reflects a piece off the playable band and the side
// walls, clamping its position in-bounds.
func CollidePieceBounds(p *Piece) {
	p.Y, p.VY = collideBand(p.Y, p.VY, p.Radius, PieceWallRestitution)
	p.X, p.VX = collideWalls(p.X, p.VX, p.Radius, PieceWallRestitution)
}

// CollideShotBounds does the same for a pellet with its livelier restitution.
func CollideShotBounds(s *Projectile) {
	s.Y, s.VY = collideBand(s.Y, s.VY, s.Radius, AmmoWallRestitution)
	s.X, s.VX = collideWalls(s.X, s.VX, s.Radius, AmmoWallRestitution)
}

func collideBand(y, vy, radius, restitution float64) (float64, float64) {
	if y-radius < BoardTop {
		y = BoardTop + radius
		vy = math.Abs(vy) * restitution
	}
	if y+radius > BoardBottom {
		y = BoardBottom - radius
		vy = -math.Abs(vy) * restitution
	}
	return y, vy
}

func collideWalls(x, vx, radius, restitution float64) (float64, float64) {
	if x-radius < 0 {
		x = radius
		vx = math.Abs(vx) * restitution
	} else if x+radius > BoardWidth {
		x = BoardWidth - radius
		vx = -math.Abs(vx) * restitution
	}
	return x, vx
}

// ResolvePiecePiece separates two overlapping pieces and applies a
// mass-weighted impulse along the contact normal, with a secondary spin
// transfer from the impulse's tangential moment.
func ResolvePiecePiece(a, b *Piece) {
	delta := mgl64.Vec2{b.X - a.X, b.Y - a.Y}
	distSq := delta.LenSqr()
	minDist := a.Radius + b.Radius
	if distSq == 0 || distSq > minDist*minDist {
		return
	}

	dist := math.Sqrt(distSq)
	n := delta.Mul(1 / dist)
	overlap := minDist - dist

	// Equal-split positional separation.
	a.X -= n.X() * overlap / 2
	a.Y -= n.Y() * overlap / 2
	b.X += n.X() * overlap / 2
	b.Y += n.Y() * overlap / 2

	rel := mgl64.Vec2{b.VX - a.VX, b.VY - a.VY}
	velAlongNormal := rel.Dot(n)
	if velAlongNormal > 0 {
		return
	}

	impulse := -(1 + PieceRestitution) * velAlongNormal / (1/a.Mass + 1/b.Mass)
	imp := n.Mul(impulse)

	a.VX -= imp.X() / a.Mass
	a.VY -= imp.Y() / a.Mass
	b.VX += imp.X() / b.Mass
	b.VY += imp.Y() / b.Mass

	moment := n.Y()*imp.X() - n.X()*imp.Y()
	a.Spin += moment * SpinTransfer
	b.Spin -= moment * SpinTransfer
}

// ShotHitsPiece resolves a pellet striking a live piece. How centrally the
// pellet hit scales linear momentum transfer, while off-center energy becomes
// spin. The pellet reflects off the contact normal and keeps circulating; it
// is never destroyed here. Returns whether a contact was resolved.
func ShotHitsPiece(s *Projectile, p *Piece) bool {
	delta := mgl64.Vec2{p.X - s.X, p.Y - s.Y}
	distSq := delta.LenSqr()
	minDist := p.Radius + s.Radius
	if distSq > minDist*minDist || distSq == 0 {
		return false
	}

	n := delta.Mul(1 / math.Sqrt(distSq))
	vel := mgl64.Vec2{s.VX, s.VY}
	relVel := vel.Dot(n)
	if relVel <= 0 {
		return false
	}

	// Off-center measure: project the piece center onto the line
	// perpendicular to the pellet's travel direction.
	speed := vel.Len()
	if speed == 0 {
		speed = 1
	}
	dir := vel.Mul(1 / speed)
	lineNormal := mgl64.Vec2{-dir.Y(), dir.X()}
	hitOffset := math.Abs(delta.Dot(lineNormal))
	centerFactor := Clamp(1-hitOffset/p.Radius, 0, 1)

	// Heavy pieces mostly respond to center-mass shots.
	linearTransfer := HitLinearFloor + centerFactor*centerFactor*HitLinearCenter
	impulse := relVel * linearTransfer

	p.VX += n.X() * impulse / p.Mass
	p.VY += n.Y() * impulse / p.Mass

	tangent := mgl64.Vec2{-n.Y(), n.X()}
	tangential := vel.Dot(tangent)
	p.Spin += (tangential / p.Mass) * (1 - centerFactor) * HitSpinTransfer

	// Reflect and damp the pellet so ammo keeps circulating.
	vn := n.Mul(relVel)
	s.VX = (s.VX-2*vn.X())*HitBounce + p.VX*HitDragAlong
	s.VY = (s.VY-2*vn.Y())*HitBounce + p.VY*HitDragAlong

	s.X -= n.X() * HitSeparation
	s.Y -= n.Y() * HitSeparation
	return true
}

// GoalSide reports which side a piece just scored for, or -1. A piece scores
// for the opponent of the goal it crossed: the left goal line is side 1's
// target, the right line side 0's.
func GoalSide(p *Piece) int {
	if p.X-p.Radius <= GoalLeftX {
		return 1
	}
	if p.X+p.Radius >= GoalRightX {
		return 0
	}
	return -1
}

// CollectSide reports which side's endzone a pellet just entered, or -1.
// Crossing is detected against the previous position so a fast pellet cannot
// tunnel through a goal line within one tick.
func CollectSide(prevX, x float64) int {
	if prevX > GoalLeftX && x <= GoalLeftX {
		return 0
	}
	if prevX < GoalRightX && x >= GoalRightX {
		return 1
	}
	return -1
}

// ReturnSide picks the side whose bin receives an expired pellet: whichever
// half of the field it currently occupies. This keeps total ammo conserved.
func ReturnSide(x float64) int {
	if x < BoardWidth/2 {
		return 0
	}
	return 1
}
