package main

import (
	"encoding/json"
	"time"
)

// ---- requests ----

// CreateRequest starts a new room. PieceSetting accepts a number or the
// string "random", so it stays raw until parsed.
type CreateRequest struct {
	Mode         string          `json:"mode"`
	PieceSetting json.RawMessage `json:"pieceSetting"`
	AIDifficulty string          `json:"aiDifficulty"`
}

// RoomRequest carries the (room id, token) pair every per-room operation needs.
type RoomRequest struct {
	RoomID string `json:"roomId"`
	Token  string `json:"token"`
}

// JoinRequest claims the second player slot.
type JoinRequest struct {
	RoomID string `json:"roomId"`
}

// InputBody is a player's control state, replayed until it goes stale.
type InputBody struct {
	AimDir        float64  `json:"aimDir"`
	Shooting      bool     `json:"shooting"`
	ReloadPressed bool     `json:"reloadPressed"`
	DesiredAngle  *float64 `json:"desiredAngle"`
}

// InputRequest submits intent for one player.
type InputRequest struct {
	RoomRequest
	Input InputBody `json:"input"`
}

// ReadyRequest sets the joiner's ready flag.
type ReadyRequest struct {
	RoomRequest
	Ready bool `json:"ready"`
}

// ChatRequest appends a chat message.
type ChatRequest struct {
	RoomRequest
	Message string `json:"message"`
}

// ---- responses ----

// JoinedResponse is returned from create and join.
type JoinedResponse struct {
	RoomID       string `json:"roomId"`
	Token        string `json:"token"`
	Side         int    `json:"side"`
	PieceCount   int    `json:"pieceCount"`
	PiecesNeeded int    `json:"piecesNeeded"`
}

// OKResponse acknowledges a mutation.
type OKResponse struct {
	OK      bool `json:"ok"`
	Deleted bool `json:"deleted,omitempty"`
	Ready   bool `json:"ready,omitempty"`
	Left    bool `json:"left,omitempty"`
	Winner  *int `json:"winner,omitempty"`
}

// ErrorResponse reports a rejection.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RoomListing is one joinable room in the public list.
type RoomListing struct {
	RoomID     string `json:"roomId"`
	PieceCount int    `json:"pieceCount"`
	CreatedAt  int64  `json:"createdAt"`
}

// RoomListResponse is the public matchmaking list.
type RoomListResponse struct {
	Rooms         []RoomListing `json:"rooms"`
	OnlinePlayers int           `json:"onlinePlayers"`
}

// ---- snapshot ----

// BoardState echoes the board geometry so clients never hardcode it.
type BoardState struct {
	Width      float64 `json:"width" msgpack:"width"`
	Height     float64 `json:"height" msgpack:"height"`
	GoalLeftX  float64 `json:"goalLeftX" msgpack:"goalLeftX"`
	GoalRightX float64 `json:"goalRightX" msgpack:"goalRightX"`
	Top        float64 `json:"top" msgpack:"top"`
	Bottom     float64 `json:"bottom" msgpack:"bottom"`
}

// PlayerState is a player's public stats in a snapshot.
type PlayerState struct {
	Side      int     `json:"side" msgpack:"side"`
	Mag       int     `json:"mag" msgpack:"mag"`
	Bin       int     `json:"bin" msgpack:"bin"`
	Reloading bool    `json:"reloading" msgpack:"reloading"`
	ReloadMs  int64   `json:"reloadMs" msgpack:"reloadMs"`
	GunAngle  float64 `json:"gunAngle" msgpack:"gunAngle"`
	Score     int     `json:"score" msgpack:"score"`
	Connected bool    `json:"connected" msgpack:"connected"`
	IsAI      bool    `json:"isAI" msgpack:"isAI"`
	Ready     bool    `json:"ready" msgpack:"ready"`
}

// ProjectileState is one pellet in a snapshot.
type ProjectileState struct {
	X     float64 `json:"x" msgpack:"x"`
	Y     float64 `json:"y" msgpack:"y"`
	R     float64 `json:"r" msgpack:"r"`
	Owner int     `json:"owner" msgpack:"owner"`
	VX    float64 `json:"vx" msgpack:"vx"`
	VY    float64 `json:"vy" msgpack:"vy"`
}

// PieceState is one piece in a snapshot, scored or live.
type PieceState struct {
	ID       string  `json:"id" msgpack:"id"`
	X        float64 `json:"x" msgpack:"x"`
	Y        float64 `json:"y" msgpack:"y"`
	R        float64 `json:"r" msgpack:"r"`
	Angle    float64 `json:"angle" msgpack:"angle"`
	Shape    string  `json:"shape" msgpack:"shape"`
	ScoredBy *int    `json:"scoredBy" msgpack:"scoredBy"`
}

// ChatEntry is one message in the bounded room log.
type ChatEntry struct {
	ID     string `json:"id" msgpack:"id"`
	Sender string `json:"sender" msgpack:"sender"`
	Text   string `json:"text" msgpack:"text"`
	TS     int64  `json:"ts" msgpack:"ts"`
}

// Snapshot is the read-only, player-specific projection of a room.
type Snapshot struct {
	RoomID         string            `json:"roomId" msgpack:"roomId"`
	Board          BoardState        `json:"board" msgpack:"board"`
	Mode           string            `json:"mode" msgpack:"mode"`
	State          RoomState         `json:"state" msgpack:"state"`
	Winner         *int              `json:"winner" msgpack:"winner"`
	PieceCount     int               `json:"pieceCount" msgpack:"pieceCount"`
	PiecesNeeded   int               `json:"piecesNeeded" msgpack:"piecesNeeded"`
	CountdownMs    int64             `json:"countdownMs" msgpack:"countdownMs"`
	RunElapsedMs   int64             `json:"runElapsedMs" msgpack:"runElapsedMs"`
	HostCanStart   bool              `json:"hostCanStart" msgpack:"hostCanStart"`
	HostCanRematch bool              `json:"hostCanRematch" msgpack:"hostCanRematch"`
	JoinerCanReady bool              `json:"joinerCanReady" msgpack:"joinerCanReady"`
	WarmupAI       bool              `json:"warmupAi" msgpack:"warmupAi"`
	Me             int               `json:"me" msgpack:"me"`
	Players        []PlayerState     `json:"players" msgpack:"players"`
	Projectiles    []ProjectileState `json:"projectiles" msgpack:"projectiles"`
	Pieces         []PieceState      `json:"pieces" msgpack:"pieces"`
	Chat           []ChatEntry       `json:"chat" msgpack:"chat"`
}

// ---- websocket framing ----

// WS message types
const (
	WSInput = "input"
	WSChat  = "chat"
	WSError = "error"
)

// WSEnvelope frames incoming websocket messages. The payload stays raw so
// only the matching handler unmarshals it.
type WSEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// boardState returns the fixed geometry constants as wire state.
func boardState() BoardState {
	return BoardState{
		Width:      BoardWidth,
		Height:     BoardHeight,
		GoalLeftX:  GoalLeftX,
		GoalRightX: GoalRightX,
		Top:        BoardTop,
		Bottom:     BoardBottom,
	}
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
