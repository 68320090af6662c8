package main

import (
	"math"
	"strings"
	"testing"
	"time"
)

// advance ticks the room through simulated time at the world rate.
func advance(r *Room, from time.Time, d time.Duration) time.Time {
	end := from.Add(d)
	for now := from.Add(TickDuration); !now.After(end); now = now.Add(TickDuration) {
		r.Tick(now)
	}
	return end
}

// ammoTotal sums every place ammo can live.
func ammoTotal(r *Room) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := len(r.Projectiles)
	for _, p := range r.Players {
		total += p.Mag + p.Bin
	}
	return total
}

func TestSinglePlayerStartCountdownRunning(t *testing.T) {
	now := time.Now()
	r := NewRoom("single", 5, "medium", now)

	if r.PiecesNeeded != 3 {
		t.Errorf("5 pieces should need 3 to win, got %d", r.PiecesNeeded)
	}

	practice, err := r.Start(r.Players[0].Token, now)
	if err != nil {
		t.Fatalf("single-player start should not need a second human: %v", err)
	}
	if practice {
		t.Error("single-player start is a real match, not practice")
	}
	if r.State != StateCountdown {
		t.Fatalf("expected countdown, got %s", r.State)
	}

	r.Tick(now.Add(time.Second))
	if r.State != StateCountdown {
		t.Error("countdown should hold before the deadline")
	}

	r.Tick(now.Add(CountdownDuration))
	if r.State != StateRunning {
		t.Fatalf("expected running after countdown, got %s", r.State)
	}
	if r.RunStartedAt.IsZero() {
		t.Error("run start timestamp should be recorded")
	}
}

func TestMagazineExhaustion(t *testing.T) {
	now := time.Now()
	r := NewRoom("single", 5, "medium", now)
	// Quiet the AI so only the host's twenty shots move ammo out of side 0.
	r.Players[1].Mag = 0
	r.Players[1].Bin = 0

	r.Start(r.Players[0].Token, now)
	now = now.Add(CountdownDuration)
	r.Tick(now)

	host := r.Players[0]
	token := host.Token
	for i := 0; i < 300; i++ {
		now = now.Add(TickDuration)
		r.ApplyInput(token, InputBody{Shooting: true}, now)
		r.Tick(now)
	}

	if host.Mag != 0 {
		t.Errorf("continuous fire with no reload should exhaust the magazine, got %d", host.Mag)
	}

	// Further fire requests spawn nothing.
	live := len(r.Projectiles)
	binSum := r.Players[0].Bin + r.Players[1].Bin
	now = now.Add(TickDuration)
	r.ApplyInput(token, InputBody{Shooting: true}, now)
	r.Tick(now)
	if len(r.Projectiles)+r.Players[0].Bin+r.Players[1].Bin > live+binSum {
		t.Error("empty magazine must not spawn projectiles")
	}
}

func TestAmmoConservation(t *testing.T) {
	now := time.Now()
	r := NewRoom("single", 5, "hard", now)
	r.Start(r.Players[0].Token, now)
	now = now.Add(CountdownDuration)
	r.Tick(now)

	token := r.Players[0].Token
	for i := 0; i < 900; i++ { // 15 simulated seconds, past pellet TTL
		now = now.Add(TickDuration)
		if i%30 == 0 {
			r.ApplyInput(token, InputBody{Shooting: true, ReloadPressed: i%120 == 0}, now)
		}
		r.Tick(now)
		if got := ammoTotal(r); got != TotalAmmo {
			t.Fatalf("tick %d: ammo total %d, want %d", i, got, TotalAmmo)
		}
	}
}

func TestReloadCompletesBeforeFireInSameTick(t *testing.T) {
	now := time.Now()
	r := NewRoom("single", 5, "medium", now)
	r.Players[1].Mag = 0
	r.Players[1].Bin = 0
	r.Start(r.Players[0].Token, now)
	now = now.Add(CountdownDuration)
	r.Tick(now)

	host := r.Players[0]
	host.Mag = 0
	host.Bin = 5
	host.Reloading = true
	host.ReloadUntil = now.Add(10 * time.Millisecond)

	now = now.Add(20 * time.Millisecond)
	r.ApplyInput(host.Token, InputBody{Shooting: true}, now)
	r.Tick(now)

	if host.Reloading {
		t.Fatal("expired reload should complete at tick start")
	}
	if host.Mag != 4 {
		t.Errorf("fire should follow reload completion in the same tick, mag=%d", host.Mag)
	}
	if len(r.Projectiles) != 1 {
		t.Errorf("expected 1 projectile, got %d", len(r.Projectiles))
	}
}

func TestScoringFreezesPieceOnce(t *testing.T) {
	now := time.Now()
	r := NewRoom("single", 5, "medium", now)
	r.Start(r.Players[0].Token, now)
	now = now.Add(CountdownDuration)
	r.Tick(now)

	piece := r.Pieces[0]
	piece.X = GoalRightX - piece.Radius + 1
	piece.VX = 10

	now = now.Add(TickDuration)
	r.Tick(now)

	if piece.ScoredBy != 0 {
		t.Fatalf("piece over the right line should score for side 0, got %d", piece.ScoredBy)
	}
	if r.Players[0].Score != 1 {
		t.Fatalf("expected score 1, got %d", r.Players[0].Score)
	}

	// A frozen piece never scores or moves again.
	x, y := piece.X, piece.Y
	now = advance(r, now, time.Second)
	if r.Players[0].Score != 1 {
		t.Error("frozen piece must not score twice")
	}
	if piece.X != x || piece.Y != y {
		t.Error("frozen piece must not move")
	}
}

func TestScoreMonotonicAndTermination(t *testing.T) {
	now := time.Now()
	r := NewRoom("single", 3, "medium", now)
	r.Start(r.Players[0].Token, now)
	now = now.Add(CountdownDuration)
	r.Tick(now)

	// Push every piece across the right goal line over a few ticks.
	prev := 0
	for i, piece := range r.Pieces {
		piece.X = GoalRightX - piece.Radius + 1
		now = now.Add(TickDuration)
		r.Tick(now)
		if r.Players[0].Score < prev {
			t.Fatal("score must be non-decreasing")
		}
		prev = r.Players[0].Score
		if i < r.PiecesNeeded-1 && r.State != StateRunning {
			t.Fatalf("match ended before the majority threshold at piece %d", i)
		}
	}

	if r.State != StateFinished {
		t.Fatalf("expected finished, got %s", r.State)
	}
	if r.Winner != 0 {
		t.Errorf("expected winner 0, got %d", r.Winner)
	}

	// The result is announced exactly once.
	count := 0
	for _, msg := range r.Chat {
		if strings.Contains(msg.Text, "wins.") {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one result announcement, got %d", count)
	}
	now = advance(r, now, time.Second)
	_ = now
	count = 0
	for _, msg := range r.Chat {
		if strings.Contains(msg.Text, "wins.") {
			count++
		}
	}
	if count != 1 {
		t.Errorf("ticking a finished room must not re-announce, got %d", count)
	}
}

func TestOppositePelletsCollectOwnBins(t *testing.T) {
	r := warmupRoom(t, "medium")
	now := time.Now()
	r.Tick(now)

	r.mu.Lock()
	r.Projectiles = append(r.Projectiles,
		&Projectile{ID: "l", Owner: 0, X: GoalLeftX + 5, Y: 300, VX: -AmmoSpeed, Radius: AmmoRadius, TTL: 5},
		&Projectile{ID: "r", Owner: 1, X: GoalRightX - 5, Y: 300, VX: AmmoSpeed, Radius: AmmoRadius, TTL: 5},
	)
	bin0 := r.Players[0].Bin
	bin1 := r.Players[1].Bin
	r.mu.Unlock()

	r.Tick(now.Add(TickDuration))

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Players[0].Bin != bin0+1 {
		t.Errorf("left crossing should credit side 0 only, bin %d -> %d", bin0, r.Players[0].Bin)
	}
	if r.Players[1].Bin != bin1+1 {
		t.Errorf("right crossing should credit side 1 only, bin %d -> %d", bin1, r.Players[1].Bin)
	}
	for _, shot := range r.Projectiles {
		if shot.ID == "l" || shot.ID == "r" {
			t.Error("collected pellets should be consumed")
		}
	}
}

func TestExpiredPelletReturnsToNearestSide(t *testing.T) {
	r := warmupRoom(t, "medium")
	now := time.Now()
	r.Tick(now)

	r.mu.Lock()
	r.Projectiles = append(r.Projectiles,
		&Projectile{ID: "x", Owner: 1, X: 300, Y: 300, Radius: AmmoRadius, TTL: 0.001})
	bin0 := r.Players[0].Bin
	r.mu.Unlock()

	r.Tick(now.Add(TickDuration))

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Players[0].Bin != bin0+1 {
		t.Error("expired pellet in the left half should return to side 0's bin")
	}
}

func TestNetworkReadyGate(t *testing.T) {
	now := time.Now()
	r := NewRoom("network", 5, "medium", now)

	joined, err := r.Join(now)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if joined.Side != 1 {
		t.Errorf("joiner should get side 1, got %d", joined.Side)
	}
	if _, err := r.Join(now); err == nil {
		t.Error("second join should be rejected")
	}

	if _, err := r.Start(r.Players[0].Token, now); err == nil {
		t.Error("start should wait for the joiner to ready up")
	}

	if _, err := r.SetReady(r.Players[0].Token, true, now); err == nil {
		t.Error("host must not toggle ready")
	}
	ready, err := r.SetReady(joined.Token, true, now)
	if err != nil || !ready {
		t.Fatalf("joiner ready failed: %v", err)
	}

	if _, err := r.Start(r.Players[0].Token, now); err != nil {
		t.Fatalf("start with ready joiner: %v", err)
	}
	if r.State != StateCountdown {
		t.Errorf("expected countdown, got %s", r.State)
	}
	if _, err := r.Start(r.Players[0].Token, now); err == nil {
		t.Error("starting outside lobby should be rejected")
	}
}

func TestReadyRejectedInSingleMode(t *testing.T) {
	now := time.Now()
	r := NewRoom("single", 5, "medium", now)
	if _, err := r.SetReady(r.Players[0].Token, true, now); err == nil {
		t.Error("ready should be multiplayer-only")
	}
}

func TestJoinerLeaveEntersWarmup(t *testing.T) {
	now := time.Now()
	r := NewRoom("network", 5, "medium", now)
	joined, _ := r.Join(now)

	hostLeft, err := r.Leave(joined.Token, now)
	if err != nil || hostLeft {
		t.Fatalf("joiner leave: hostLeft=%v err=%v", hostLeft, err)
	}

	if r.State != StateRunning || !r.WarmupAI {
		t.Errorf("room should auto-enter warmup, state=%s warmup=%v", r.State, r.WarmupAI)
	}
	if !r.Players[1].IsAI {
		t.Error("side 1 should be the AI stand-in")
	}

	// Warmup reaching the piece target returns to lobby, never finished.
	r.Players[0].Score = r.PiecesNeeded
	r.Tick(now.Add(TickDuration))
	if r.State != StateLobby {
		t.Errorf("warmup win should reset to lobby, got %s", r.State)
	}
	if r.Winner != -1 {
		t.Error("warmup rounds are consequence-free")
	}
}

func TestJoinDuringWarmupResetsToLobby(t *testing.T) {
	r := warmupRoom(t, "medium")
	now := time.Now()

	if _, err := r.Join(now); err != nil {
		t.Fatalf("join during warmup: %v", err)
	}
	if r.State != StateLobby || r.WarmupAI {
		t.Errorf("join should end warmup into lobby, state=%s warmup=%v", r.State, r.WarmupAI)
	}
	if r.Players[1].IsAI {
		t.Error("joiner should replace the AI stand-in")
	}
}

func TestResignDuringActiveMatch(t *testing.T) {
	now := time.Now()
	r := NewRoom("single", 5, "medium", now)
	r.Start(r.Players[0].Token, now)

	resp, err := r.Resign(r.Players[0].Token, now)
	if err != nil {
		t.Fatalf("resign during countdown: %v", err)
	}
	if resp.Winner == nil || *resp.Winner != 1 {
		t.Error("resigning host should hand the win to side 1")
	}
	if r.State != StateFinished || r.Winner != 1 {
		t.Errorf("expected finished with winner 1, got %s/%d", r.State, r.Winner)
	}
}

func TestResignOutsideActiveMatch(t *testing.T) {
	now := time.Now()
	r := NewRoom("single", 5, "medium", now)
	if _, err := r.Resign(r.Players[0].Token, now); err == nil {
		t.Error("host resign in lobby should be rejected")
	}

	// A joiner resigning in lobby behaves like leaving.
	r2 := NewRoom("network", 5, "medium", now)
	joined, _ := r2.Join(now)
	resp, err := r2.Resign(joined.Token, now)
	if err != nil {
		t.Fatalf("joiner resign in lobby: %v", err)
	}
	if !resp.Left {
		t.Error("joiner resign outside a match should report leaving")
	}
	if !r2.WarmupAI {
		t.Error("host left alone should re-enter warmup")
	}
}

func TestRematchResetsRoom(t *testing.T) {
	now := time.Now()
	r := NewRoom("single", 5, "medium", now)
	r.Start(r.Players[0].Token, now)
	r.Resign(r.Players[0].Token, now)

	if err := r.Rematch(r.Players[0].Token, now); err != nil {
		t.Fatalf("rematch: %v", err)
	}
	if r.State != StateLobby {
		t.Errorf("rematch should return to lobby, got %s", r.State)
	}
	if r.Players[0].Score != 0 || r.Players[1].Score != 0 {
		t.Error("rematch should reset scores")
	}
	if r.Winner != -1 {
		t.Error("rematch should clear the winner")
	}
	if got := ammoTotal(r); got != TotalAmmo {
		t.Errorf("rematch should restore the full ammo pool, got %d", got)
	}

	if err := r.Rematch(r.Players[0].Token, now); err == nil {
		t.Error("rematch outside finished should be rejected")
	}
}

func TestChatSanitized(t *testing.T) {
	now := time.Now()
	r := NewRoom("single", 5, "medium", now)
	token := r.Players[0].Token

	if err := r.AddChat(token, "   \n\t ", now); err == nil {
		t.Error("blank chat should be rejected")
	}

	if err := r.AddChat(token, "  hello   there \n world  ", now); err != nil {
		t.Fatalf("chat: %v", err)
	}
	last := r.Chat[len(r.Chat)-1]
	if last.Text != "hello there world" {
		t.Errorf("whitespace should collapse, got %q", last.Text)
	}
	if last.Sender != "P1" {
		t.Errorf("expected sender P1, got %q", last.Sender)
	}

	long := strings.Repeat("a", ChatMaxChars+50)
	r.AddChat(token, long, now)
	last = r.Chat[len(r.Chat)-1]
	if len(last.Text) != ChatMaxChars {
		t.Errorf("chat should cap at %d chars, got %d", ChatMaxChars, len(last.Text))
	}

	for i := 0; i < ChatMaxMessages+20; i++ {
		r.AddChat(token, "spam", now)
	}
	if len(r.Chat) != ChatMaxMessages {
		t.Errorf("chat ring should cap at %d, got %d", ChatMaxMessages, len(r.Chat))
	}
}

func TestStaleIntentExpires(t *testing.T) {
	now := time.Now()
	r := NewRoom("single", 5, "medium", now)
	r.Players[1].Mag = 0
	r.Players[1].Bin = 0
	r.Start(r.Players[0].Token, now)
	now = now.Add(CountdownDuration)
	r.Tick(now)

	host := r.Players[0]
	r.ApplyInput(host.Token, InputBody{AimDir: 1, Shooting: true}, now)

	// Within the stale window the intent is live.
	r.Tick(now.Add(TickDuration))
	if host.Mag != StartMag-1 {
		t.Fatal("fresh intent should fire")
	}

	// Past the stale window, replay stops.
	now = now.Add(InputStaleAfter + 100*time.Millisecond)
	r.Tick(now)
	if host.Intent.Shooting || host.Intent.AimDir != 0 {
		t.Error("stale intent should be cleared")
	}
	angle := host.GunAngle
	r.Tick(now.Add(TickDuration))
	if host.GunAngle != angle {
		t.Error("a cleared intent must not keep turning the gun")
	}
}

func TestPresenceTimeout(t *testing.T) {
	now := time.Now()
	r := NewRoom("network", 5, "medium", now)
	joined, _ := r.Join(now)
	r.SetReady(joined.Token, true, now)

	r.Tick(now.Add(PresenceWindow + time.Second))

	if r.Players[1].Connected {
		t.Error("silent joiner should be marked disconnected")
	}
	if r.Players[1].Ready {
		t.Error("disconnect should reset ready")
	}
}

func TestNonFiniteInputTreatedAsAbsent(t *testing.T) {
	now := time.Now()
	r := NewRoom("single", 5, "medium", now)
	token := r.Players[0].Token

	bad := math.Inf(1)
	if err := r.ApplyInput(token, InputBody{AimDir: math.NaN(), DesiredAngle: &bad}, now); err != nil {
		t.Fatalf("input: %v", err)
	}
	host := r.Players[0]
	if host.Intent.AimDir != 0 {
		t.Error("NaN aim direction should clamp to zero")
	}
	if host.Intent.HasDesired {
		t.Error("non-finite desired angle should be treated as absent")
	}
}

func TestHumanAngleBounds(t *testing.T) {
	now := time.Now()
	r := NewRoom("single", 5, "medium", now)
	r.Start(r.Players[0].Token, now)
	now = now.Add(CountdownDuration)
	r.Tick(now)

	host := r.Players[0]
	for i := 0; i < 300; i++ {
		now = now.Add(TickDuration)
		r.ApplyInput(host.Token, InputBody{AimDir: 1}, now)
		r.Tick(now)
	}
	boundsMin, boundsMax := AimBounds(0)
	if host.GunAngle < boundsMin || host.GunAngle > boundsMax {
		t.Errorf("gun angle %f escaped the legal arc", host.GunAngle)
	}
	if host.GunAngle != boundsMax {
		t.Errorf("sustained turning should pin the arc edge, got %f", host.GunAngle)
	}

	huge := 100.0
	r.ApplyInput(host.Token, InputBody{DesiredAngle: &huge}, now)
	for i := 0; i < 120; i++ {
		now = now.Add(TickDuration)
		r.ApplyInput(host.Token, InputBody{DesiredAngle: &huge}, now)
		r.Tick(now)
	}
	if host.GunAngle < boundsMin || host.GunAngle > boundsMax {
		t.Errorf("absurd desired angle must stay clamped, got %f", host.GunAngle)
	}
}

func TestSnapshotProjection(t *testing.T) {
	now := time.Now()
	r := NewRoom("network", 5, "medium", now)

	if _, err := r.Snapshot("bogus", now); err == nil {
		t.Error("snapshot with a bad token should fail")
	}

	snap, err := r.Snapshot(r.Players[0].Token, now)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Me != 0 || snap.State != StateLobby {
		t.Error("snapshot basics wrong")
	}
	if !snap.HostCanStart {
		t.Error("lone host in lobby can start (practice)")
	}
	if snap.Board.Width != BoardWidth || snap.Board.GoalLeftX != GoalLeftX {
		t.Error("snapshot should echo board geometry")
	}
	if len(snap.Pieces) != 5 || len(snap.Players) != 2 {
		t.Error("snapshot should include pieces and both players")
	}

	joined, _ := r.Join(now)
	snap, _ = r.Snapshot(r.Players[0].Token, now)
	if snap.HostCanStart {
		t.Error("host cannot start with an unready joiner present")
	}
	jsnap, _ := r.Snapshot(joined.Token, now)
	if !jsnap.JoinerCanReady {
		t.Error("joiner in lobby should be offered ready")
	}
	r.SetReady(joined.Token, true, now)
	snap, _ = r.Snapshot(r.Players[0].Token, now)
	if !snap.HostCanStart {
		t.Error("host can start once the joiner is ready")
	}

	r.Start(r.Players[0].Token, now)
	snap, _ = r.Snapshot(r.Players[0].Token, now.Add(time.Second))
	if snap.CountdownMs <= 0 || snap.CountdownMs > 4000 {
		t.Errorf("countdown remaining should be ~4000ms, got %d", snap.CountdownMs)
	}
}
