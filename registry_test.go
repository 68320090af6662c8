package main

import (
	"testing"
	"time"
)

func TestRegistryCreateGetRemove(t *testing.T) {
	reg := NewRegistry(NewAuth())
	now := time.Now()

	room := reg.CreateRoom("single", 5, "easy", now)
	if room == nil {
		t.Fatal("create returned nil")
	}
	if reg.Get(room.ID) != room {
		t.Error("get should return the created room")
	}
	if reg.Get("nope") != nil {
		t.Error("get with an unknown id should return nil")
	}
	if reg.RoomCount() != 1 {
		t.Errorf("expected 1 room, got %d", reg.RoomCount())
	}

	reg.Remove(room.ID)
	if reg.Get(room.ID) != nil {
		t.Error("removed room should be gone")
	}
}

func TestRegistryMintsVerifiableTokens(t *testing.T) {
	auth := NewAuth()
	reg := NewRegistry(auth)
	now := time.Now()

	room := reg.CreateRoom("network", 5, "medium", now)
	for side, p := range room.Players {
		got, err := auth.VerifyToken(room.ID, p.Token)
		if err != nil {
			t.Fatalf("side %d token should verify: %v", side, err)
		}
		if got != side {
			t.Errorf("token for side %d verified as side %d", side, got)
		}
	}
}

func TestRegistryRoomCap(t *testing.T) {
	reg := NewRegistry(nil)
	now := time.Now()

	for i := 0; i < maxRooms; i++ {
		if reg.CreateRoom("single", 3, "easy", now) == nil {
			t.Fatalf("create %d failed below the cap", i)
		}
	}
	if reg.CreateRoom("single", 3, "easy", now) != nil {
		t.Error("create past the cap should fail")
	}
}

func TestSweepExpiresIdleRooms(t *testing.T) {
	reg := NewRegistry(nil)
	now := time.Now()

	room := reg.CreateRoom("single", 5, "medium", now)
	reg.Sweep(now.Add(time.Minute))
	if reg.Get(room.ID) == nil {
		t.Fatal("active room should survive a sweep")
	}

	reg.Sweep(now.Add(RoomIdleTimeout + 2*time.Minute))
	if reg.Get(room.ID) != nil {
		t.Error("idle room should be swept")
	}
}

func TestSweepExpiresHostlessNetworkRooms(t *testing.T) {
	reg := NewRegistry(nil)
	now := time.Now()

	room := reg.CreateRoom("network", 5, "medium", now)
	// Host falls silent past the presence window.
	later := now.Add(PresenceWindow + 2*time.Second)
	reg.Sweep(later)
	if reg.Get(room.ID) != nil {
		t.Error("network room with a vanished host should be swept")
	}
}

func TestSweepAdvancesRooms(t *testing.T) {
	reg := NewRegistry(nil)
	now := time.Now()

	room := reg.CreateRoom("single", 5, "medium", now)
	room.Start(room.HostToken(), now)
	reg.Sweep(now.Add(CountdownDuration))
	if room.State != StateRunning {
		t.Errorf("sweep should tick rooms through the countdown, got %s", room.State)
	}
}

func TestOpenRoomsListing(t *testing.T) {
	reg := NewRegistry(nil)
	now := time.Now()

	single := reg.CreateRoom("single", 5, "medium", now)
	oldRoom := reg.CreateRoom("network", 3, "medium", now)
	newRoom := reg.CreateRoom("network", 7, "medium", now.Add(time.Second))

	listings, online := reg.OpenRooms(now.Add(2 * time.Second))
	if len(listings) != 2 {
		t.Fatalf("expected 2 open rooms, got %d", len(listings))
	}
	if listings[0].RoomID != newRoom.ID || listings[1].RoomID != oldRoom.ID {
		t.Error("listings should be newest-first")
	}
	for _, l := range listings {
		if l.RoomID == single.ID {
			t.Error("single-player rooms never appear in the list")
		}
	}
	if online != 3 {
		t.Errorf("expected 3 active humans, got %d", online)
	}

	// A full network room drops off the list.
	if _, err := oldRoom.Join(now.Add(2 * time.Second)); err != nil {
		t.Fatalf("join: %v", err)
	}
	listings, online = reg.OpenRooms(now.Add(3 * time.Second))
	if len(listings) != 1 || listings[0].RoomID != newRoom.ID {
		t.Error("full room should drop off the list")
	}
	if online != 4 {
		t.Errorf("expected 4 active humans after join, got %d", online)
	}
}

func TestOpenRoomsIncludesWarmupHosts(t *testing.T) {
	reg := NewRegistry(nil)
	now := time.Now()

	room := reg.CreateRoom("network", 5, "medium", now)
	practice, err := room.Start(room.HostToken(), now)
	if err != nil || !practice {
		t.Fatalf("lone host start: practice=%v err=%v", practice, err)
	}

	listings, _ := reg.OpenRooms(now)
	if len(listings) != 1 || listings[0].RoomID != room.ID {
		t.Error("a host practicing in warmup is still joinable")
	}
}

func TestOpenRoomsCap(t *testing.T) {
	reg := NewRegistry(nil)
	now := time.Now()

	for i := 0; i < openRoomsCap+10; i++ {
		reg.CreateRoom("network", 5, "medium", now.Add(time.Duration(i)*time.Millisecond))
	}
	listings, _ := reg.OpenRooms(now.Add(time.Second))
	if len(listings) != openRoomsCap {
		t.Errorf("expected listing cap %d, got %d", openRoomsCap, len(listings))
	}
}

func TestRegistryStopIdempotent(t *testing.T) {
	reg := NewRegistry(nil)
	go reg.Run()
	reg.Stop()
	reg.Stop()
}
