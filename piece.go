package main

const (
	PieceBaseRadius = 24.0
	PieceLaneInset  = 70.0 // lane margin inside the playable band
)

// PieceShapes cycles through the fixed shape set as pieces are laid out.
var PieceShapes = []string{"circle", "triangle", "square", "hex", "star6", "star8"}

// PieceCountOptions are the legal piece counts. All odd, so a strict majority
// of pieces is always decisive.
var PieceCountOptions = []int{3, 5, 7}

// Piece is a scoreable token pushed around the field by pellet impacts and
// piece-piece collisions. Once scored it is frozen for the rest of the match.
type Piece struct {
	ID       string
	Shape    string
	X, Y     float64
	VX, VY   float64
	Angle    float64
	Spin     float64
	Radius   float64
	Mass     float64
	ScoredBy int // -1 while live, else the scoring side
}

// Live reports whether the piece still participates in physics and scoring.
func (p *Piece) Live() bool {
	return p.ScoredBy < 0
}

// NewPieces lays out count pieces in a vertical lane at midfield. Radius and
// mass alternate slightly so pieces respond differently to the same hit.
func NewPieces(count int) []*Piece {
	laneTop := BoardTop + PieceLaneInset
	laneBottom := BoardBottom - PieceLaneInset
	pieces := make([]*Piece, count)
	for i := range pieces {
		t := 0.5
		if count > 1 {
			t = float64(i) / float64(count-1)
		}
		radius := PieceBaseRadius
		if i%2 == 1 {
			radius += 4
		}
		pieces[i] = &Piece{
			ID:       GenerateID(3),
			Shape:    PieceShapes[i%len(PieceShapes)],
			X:        BoardWidth / 2,
			Y:        laneTop + (laneBottom-laneTop)*t,
			Radius:   radius,
			Mass:     float64(8 + i%3),
			ScoredBy: -1,
		}
	}
	return pieces
}

// ValidPieceCount reports whether n is one of the playable piece counts.
func ValidPieceCount(n int) bool {
	for _, opt := range PieceCountOptions {
		if n == opt {
			return true
		}
	}
	return false
}

// ToState converts to protocol state
func (p *Piece) ToState() PieceState {
	var scored *int
	if p.ScoredBy >= 0 {
		s := p.ScoredBy
		scored = &s
	}
	return PieceState{
		ID:       p.ID,
		X:        round1(p.X),
		Y:        round1(p.Y),
		R:        p.Radius,
		Angle:    round1(p.Angle),
		Shape:    p.Shape,
		ScoredBy: scored,
	}
}
