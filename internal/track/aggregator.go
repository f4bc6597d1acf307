// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

package track

import (
	"github.com/itinera/itinera/internal/models"
)

// palette assigns track colors by user position in the collection. Colors
// repeat once the palette is exhausted, so a user's color is stable only
// while the set of users ahead of it is.
var palette = []string{"yellow", "blue", "green", "purple", "orange"}

// Rebuild derives the full set of renderable tracks from a collection
// snapshot. It is a pure function of its input: every snapshot produces a
// complete replacement, never an incremental patch. Input order is
// preserved. Users without positions still appear, with an empty path and
// no last position.
func Rebuild(users []models.TrackedUser) []models.UserTrack {
	tracks := make([]models.UserTrack, 0, len(users))
	for i, user := range users {
		path := make([]models.LatLong, 0, len(user.Location))
		for _, pos := range user.Location {
			path = append(path, models.LatLong{Lat: pos.Lat, Long: pos.Long})
		}

		var last *models.Position
		if n := len(user.Location); n > 0 {
			p := user.Location[n-1]
			last = &p
		}

		tracks = append(tracks, models.UserTrack{
			ID:           user.ID,
			Name:         user.Name,
			Path:         path,
			LastPosition: last,
			Color:        palette[i%len(palette)],
		})
	}
	return tracks
}
