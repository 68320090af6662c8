package main

import "math"

const (
	AmmoSpeed    = 760.0 // pixels/s
	AmmoRadius   = 4.0
	AmmoLifetime = 10.0 // seconds before an uncollected pellet is returned
)

// Projectile is one ammo pellet in flight. Pellets are consumed by endzone
// collection or TTL expiry, never by hitting a piece.
type Projectile struct {
	ID     string
	Owner  int // firing side
	X, Y   float64
	VX, VY float64
	Radius float64
	TTL    float64 // seconds remaining
}

// NewProjectile spawns a pellet just in front of the side's gun, aimed along
// the given angle.
func NewProjectile(side int, angle float64) *Projectile {
	gx, gy := GunPosition(side)
	dirX := math.Cos(angle)
	dirY := math.Sin(angle)
	return &Projectile{
		ID:     GenerateID(3),
		Owner:  side,
		X:      gx + dirX*MuzzleOffset,
		Y:      gy + dirY*MuzzleOffset,
		VX:     dirX * AmmoSpeed,
		VY:     dirY * AmmoSpeed,
		Radius: AmmoRadius,
		TTL:    AmmoLifetime,
	}
}

// ToState converts to protocol state
func (s *Projectile) ToState() ProjectileState {
	return ProjectileState{
		X:     round1(s.X),
		Y:     round1(s.Y),
		R:     s.Radius,
		Owner: s.Owner,
		VX:    round1(s.VX),
		VY:    round1(s.VY),
	}
}
