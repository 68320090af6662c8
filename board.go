package main

import "math"

// Board geometry, shared by every room. The goal lines sit inside the board
// so pieces and pellets have an endzone to cross into.
const (
	BoardWidth  = 1200.0
	BoardHeight = 700.0
	GoalLeftX   = 130.0
	GoalRightX  = 1070.0
	BoardTop    = 60.0
	BoardBottom = 640.0
)

const (
	GunInset     = 60.0 // gun mount distance from the side wall
	MuzzleOffset = 26.0 // pellet spawn distance from the gun mount
	AimArcHalf   = 1.2  // legal aiming arc, radians either side of rest
)

// GunPosition returns the fixed gun mount for a side.
func GunPosition(side int) (x, y float64) {
	if side == 0 {
		return GunInset, BoardHeight / 2
	}
	return BoardWidth - GunInset, BoardHeight / 2
}

// RestAngle is the gun's neutral direction: side 0 fires right, side 1 left.
func RestAngle(side int) float64 {
	if side == 0 {
		return 0
	}
	return math.Pi
}

// AimBounds returns the legal aiming arc for a side.
func AimBounds(side int) (min, max float64) {
	rest := RestAngle(side)
	return rest - AimArcHalf, rest + AimArcHalf
}

// NormalizeAimAngle maps an angle onto the 2π branch nearest the side's rest
// angle. Side 1 aims around ±π, so clamping a raw angle against its arc would
// otherwise misbehave at the seam.
func NormalizeAimAngle(side int, angle float64) float64 {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return angle
	}
	anchor := RestAngle(side)
	best := angle
	bestDist := math.Abs(angle - anchor)
	for _, c := range []float64{angle + 2*math.Pi, angle - 2*math.Pi} {
		if d := math.Abs(c - anchor); d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best
}
