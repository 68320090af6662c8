package main

import (
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	maxBodyBytes  = 1 << 20
	maxConnsPerIP = 5
	maxTotalConns = 500
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

// connLimiter caps websocket connections per IP and in total.
type connLimiter struct {
	mu      sync.Mutex
	ipConns map[string]int
	total   int
}

func newConnLimiter() *connLimiter {
	return &connLimiter{ipConns: make(map[string]int)}
}

func (l *connLimiter) CanAccept(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total < maxTotalConns && l.ipConns[ip] < maxConnsPerIP
}

func (l *connLimiter) TrackConnect(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ipConns[ip]++
	l.total++
}

func (l *connLimiter) TrackDisconnect(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ipConns[ip]--
	if l.ipConns[ip] <= 0 {
		delete(l.ipConns, ip)
	}
	l.total--
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func setSecurityHeaders(h http.Header) {
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("Referrer-Policy", "no-referrer")
	h.Set("Cache-Control", "no-store")
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	setSecurityHeaders(w.Header())
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		writeJSON(w, apiErr.Status(), ErrorResponse{Error: apiErr.Msg})
		return
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return validationError("invalid JSON body")
	}
	return nil
}

// parsePieceSetting accepts a number or the string "random". Absent input
// defaults to 5 pieces; anything else is a validation error.
func parsePieceSetting(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 5, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "random" {
			return PieceCountOptions[rand.Intn(len(PieceCountOptions))], nil
		}
		if n, err := strconv.Atoi(s); err == nil && ValidPieceCount(n) {
			return n, nil
		}
		return 0, validationError("piece count must be 3, 5, 7 or random")
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		if ValidPieceCount(n) {
			return n, nil
		}
	}
	return 0, validationError("piece count must be 3, 5, 7 or random")
}

// Server wires the registry and auth into the HTTP surface.
type Server struct {
	reg     *Registry
	auth    *Auth
	limiter *connLimiter
	baseURL string
}

// SetupRoutes configures HTTP routes
func SetupRoutes(reg *Registry, auth *Auth, publicDir, baseURL string) *http.ServeMux {
	s := &Server{reg: reg, auth: auth, limiter: newConnLimiter(), baseURL: strings.TrimRight(baseURL, "/")}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/rooms", s.handleRooms)
	mux.HandleFunc("POST /api/create", s.handleCreate)
	mux.HandleFunc("POST /api/join", s.handleJoin)
	mux.HandleFunc("POST /api/input", s.handleInput)
	mux.HandleFunc("POST /api/ready", s.handleReady)
	mux.HandleFunc("POST /api/start", s.handleStart)
	mux.HandleFunc("POST /api/rematch", s.handleRematch)
	mux.HandleFunc("POST /api/resign", s.handleResign)
	mux.HandleFunc("POST /api/leave", s.handleLeave)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/state", s.handleState)
	mux.HandleFunc("GET /api/qr", s.handleQR)
	mux.HandleFunc("GET /ws", s.handleWS)

	if publicDir != "" {
		fs := http.FileServer(http.Dir(publicDir))
		mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			setSecurityHeaders(w.Header())
			fs.ServeHTTP(w, r)
		}))
	}
	return mux
}

// room resolves a room id and verifies the token's signature before any room
// state is touched. The room itself still matches the token to a player slot.
func (s *Server) room(roomID, token string) (*Room, error) {
	room := s.reg.Get(strings.TrimSpace(roomID))
	if room == nil {
		return nil, errRoomNotFound
	}
	if token != "" && s.auth != nil {
		if _, err := s.auth.VerifyToken(room.ID, token); err != nil {
			return nil, errInvalidToken
		}
	}
	return room, nil
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	listings, online := s.reg.OpenRooms(time.Now())
	writeJSON(w, http.StatusOK, RoomListResponse{Rooms: listings, OnlinePlayers: online})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	pieceCount, err := parsePieceSetting(req.PieceSetting)
	if err != nil {
		writeError(w, err)
		return
	}

	room := s.reg.CreateRoom(req.Mode, pieceCount, req.AIDifficulty, time.Now())
	if room == nil {
		writeError(w, preconditionError("server is at room capacity"))
		return
	}
	writeJSON(w, http.StatusOK, JoinedResponse{
		RoomID:       room.ID,
		Token:        room.HostToken(),
		Side:         0,
		PieceCount:   room.PieceCount,
		PiecesNeeded: room.PiecesNeeded,
	})
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	room, err := s.room(req.RoomID, "")
	if err != nil {
		writeError(w, err)
		return
	}
	resp, err := room.Join(time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	var req InputRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	room, err := s.room(req.RoomID, req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := room.ApplyInput(req.Token, req.Input, time.Now()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	var req ReadyRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	room, err := s.room(req.RoomID, req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	ready, err := room.SetReady(req.Token, req.Ready, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true, Ready: ready})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req RoomRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	room, err := s.room(req.RoomID, req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := room.Start(req.Token, time.Now()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

func (s *Server) handleRematch(w http.ResponseWriter, r *http.Request) {
	var req RoomRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	room, err := s.room(req.RoomID, req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := room.Rematch(req.Token, time.Now()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

func (s *Server) handleResign(w http.ResponseWriter, r *http.Request) {
	var req RoomRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	room, err := s.room(req.RoomID, req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	resp, err := room.Resign(req.Token, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	var req RoomRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	room, err := s.room(req.RoomID, req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	hostLeft, err := room.Leave(req.Token, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	if hostLeft {
		s.reg.Remove(room.ID)
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true, Deleted: hostLeft})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	room, err := s.room(req.RoomID, req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := room.AddChat(req.Token, req.Message, time.Now()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	var req RoomRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	room, err := s.room(req.RoomID, req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	snap, err := room.Snapshot(strings.TrimSpace(req.Token), time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleQR renders the join link for a room as a PNG so a host can hand the
// room to an opponent on another device.
func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	roomID := strings.TrimSpace(r.URL.Query().Get("roomId"))
	room, err := s.room(roomID, "")
	if err != nil {
		writeError(w, err)
		return
	}

	joinURL := s.baseURL + "/?join=" + url.QueryEscape(room.ID)
	png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
	if err != nil {
		writeError(w, validationError("could not encode QR"))
		return
	}
	setSecurityHeaders(w.Header())
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	roomID := strings.TrimSpace(r.URL.Query().Get("roomId"))
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	room, err := s.room(roomID, token)
	if err != nil {
		writeError(w, err)
		return
	}
	// Validate the token against a player slot before upgrading.
	if _, err := room.Snapshot(token, time.Now()); err != nil {
		writeError(w, err)
		return
	}

	ip := extractIP(r)
	if !s.limiter.CanAccept(ip) {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade error: %v", err)
		return
	}
	s.limiter.TrackConnect(ip)

	client := NewWSClient(s.reg, s.limiter, conn, room.ID, token, ip)
	go client.WritePump()
	go client.ReadPump()
}
