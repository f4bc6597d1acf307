// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

package track

import (
	"testing"

	"github.com/itinera/itinera/internal/models"
)

func TestRebuild_Empty(t *testing.T) {
	tracks := Rebuild(nil)
	if tracks == nil {
		t.Fatal("Rebuild(nil) returned nil, want empty slice")
	}
	if len(tracks) != 0 {
		t.Errorf("Rebuild(nil) has %d tracks, want 0", len(tracks))
	}
}

func TestRebuild_SingleUser(t *testing.T) {
	users := []models.TrackedUser{{
		ID:   "u1",
		Name: "Ada",
		Location: []models.Position{
			{Lat: 52.1, Long: 4.3, Timestamp: 1000},
			{Lat: 52.2, Long: 4.4, Timestamp: 2000},
		},
	}}

	tracks := Rebuild(users)
	if len(tracks) != 1 {
		t.Fatalf("got %d tracks, want 1", len(tracks))
	}
	tr := tracks[0]
	if tr.ID != "u1" || tr.Name != "Ada" {
		t.Errorf("identity = %s/%s, want u1/Ada", tr.ID, tr.Name)
	}
	if tr.Color != "yellow" {
		t.Errorf("first track color = %q, want yellow", tr.Color)
	}
	wantPath := []models.LatLong{{Lat: 52.1, Long: 4.3}, {Lat: 52.2, Long: 4.4}}
	if len(tr.Path) != len(wantPath) {
		t.Fatalf("path length = %d, want %d", len(tr.Path), len(wantPath))
	}
	for i, p := range wantPath {
		if tr.Path[i] != p {
			t.Errorf("path[%d] = %+v, want %+v", i, tr.Path[i], p)
		}
	}
	if tr.LastPosition == nil {
		t.Fatal("LastPosition is nil")
	}
	if tr.LastPosition.Lat != 52.2 || tr.LastPosition.Long != 4.4 || tr.LastPosition.Timestamp != 2000 {
		t.Errorf("LastPosition = %+v, want final fix", *tr.LastPosition)
	}
}

func TestRebuild_UserWithoutPositions(t *testing.T) {
	tracks := Rebuild([]models.TrackedUser{{ID: "u1", Name: "Idle"}})
	if len(tracks) != 1 {
		t.Fatalf("got %d tracks, want 1", len(tracks))
	}
	if len(tracks[0].Path) != 0 {
		t.Errorf("path = %v, want empty", tracks[0].Path)
	}
	if tracks[0].LastPosition != nil {
		t.Errorf("LastPosition = %+v, want nil", tracks[0].LastPosition)
	}
}

func TestRebuild_ColorsCycleByPosition(t *testing.T) {
	users := make([]models.TrackedUser, 7)
	for i := range users {
		users[i] = models.TrackedUser{ID: string(rune('a' + i))}
	}

	tracks := Rebuild(users)
	want := []string{"yellow", "blue", "green", "purple", "orange", "yellow", "blue"}
	for i, tr := range tracks {
		if tr.Color != want[i] {
			t.Errorf("track %d color = %q, want %q", i, tr.Color, want[i])
		}
	}
}

func TestRebuild_PreservesInputOrder(t *testing.T) {
	users := []models.TrackedUser{{ID: "b"}, {ID: "a"}, {ID: "c"}}
	tracks := Rebuild(users)
	for i, user := range users {
		if tracks[i].ID != user.ID {
			t.Errorf("track %d id = %q, want %q", i, tracks[i].ID, user.ID)
		}
	}
}

func TestRebuild_IsTotalReplacement(t *testing.T) {
	first := Rebuild([]models.TrackedUser{{ID: "u1"}, {ID: "u2"}})
	if len(first) != 2 {
		t.Fatalf("got %d tracks, want 2", len(first))
	}

	// A shrunken snapshot yields a shrunken result; nothing carries over.
	second := Rebuild([]models.TrackedUser{{ID: "u2"}})
	if len(second) != 1 || second[0].ID != "u2" {
		t.Fatalf("rebuild after shrink = %+v, want only u2", second)
	}
	if second[0].Color != "yellow" {
		t.Errorf("u2 color after shrink = %q, want yellow (colors follow position)", second[0].Color)
	}
}

func TestRebuild_DoesNotAliasInput(t *testing.T) {
	users := []models.TrackedUser{{
		ID:       "u1",
		Location: []models.Position{{Lat: 1, Long: 2, Timestamp: 1}},
	}}
	tracks := Rebuild(users)

	users[0].Location[0].Lat = 99
	if tracks[0].LastPosition.Lat != 1 {
		t.Error("LastPosition aliases the input slice")
	}
}
