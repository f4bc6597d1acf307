// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/itinera/itinera/internal/channel"
	"github.com/itinera/itinera/internal/logging"
	"github.com/itinera/itinera/internal/metrics"
	"github.com/itinera/itinera/internal/models"
)

// ConfigSource supplies the last absorbed remote configuration. The engine
// implements it lock-free so the ingest path never touches the engine loop.
type ConfigSource interface {
	CurrentConfig() (models.ConfigDocument, bool)
}

// Recorder applies the recording policy to each report and appends accepted
// fixes to the owning tracked-user document.
type Recorder struct {
	ch  channel.Channel
	cfg ConfigSource
	now func() time.Time

	mu       sync.Mutex
	limiters map[string]*userLimiter
}

type userLimiter struct {
	lim      *rate.Limiter
	interval time.Duration
}

// NewRecorder creates a recorder writing through ch under the policy from
// cfg. The clock is split out for tests.
func NewRecorder(ch channel.Channel, cfg ConfigSource, now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{
		ch:       ch,
		cfg:      cfg,
		now:      now,
		limiters: make(map[string]*userLimiter),
	}
}

// Handle processes one report message. It returns nil both for recorded
// reports and for reports dropped by policy; only transport failures and
// permanently bad payloads return an error.
func (r *Recorder) Handle(msg *message.Message) error {
	var report Report
	if err := json.Unmarshal(msg.Payload, &report); err != nil {
		metrics.IngestReports.WithLabelValues("invalid").Inc()
		return fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	if err := report.Validate(); err != nil {
		metrics.IngestReports.WithLabelValues("invalid").Inc()
		return err
	}

	cfg, ok := r.cfg.CurrentConfig()
	if !ok || !cfg.IsRecording {
		metrics.IngestReports.WithLabelValues("off").Inc()
		return nil
	}
	if !r.inWindow(cfg) {
		metrics.IngestReports.WithLabelValues("outside_window").Inc()
		return nil
	}
	res, ok := r.reserve(report.UserID, cfg.Interval)
	if !ok {
		metrics.IngestReports.WithLabelValues("throttled").Inc()
		return nil
	}

	if err := r.append(msg.Context(), report); err != nil {
		// Return the interval slot so the retried delivery is not
		// throttled away.
		if res != nil {
			res.CancelAt(r.now())
		}
		return err
	}
	metrics.IngestReports.WithLabelValues("accepted").Inc()
	return nil
}

// inWindow reports whether the current time of day falls inside the
// configured recording window. A window that does not parse never blocks
// recording; only the commit path validates it.
func (r *Recorder) inWindow(cfg models.ConfigDocument) bool {
	start, err := models.ParseTimeOfDay(cfg.TimeStart)
	if err != nil {
		return true
	}
	end, err := models.ParseTimeOfDay(cfg.TimeEnd)
	if err != nil {
		return true
	}
	now := r.now().UTC()
	minute := now.Hour()*60 + now.Minute()
	return minute >= start && minute <= end
}

// reserve claims the user's next sampling slot. The second return is false
// when the report arrives inside the sampling interval. The interval is a
// decimal number of minutes, so fractional values like "2.5" throttle too; a
// non-numeric or non-positive interval disables throttling, returning a nil
// reservation.
func (r *Recorder) reserve(userID, interval string) (*rate.Reservation, bool) {
	minutes, err := strconv.ParseFloat(interval, 64)
	if err != nil || minutes <= 0 {
		return nil, true
	}
	spacing := time.Duration(minutes * float64(time.Minute))

	r.mu.Lock()
	ul, ok := r.limiters[userID]
	if !ok || ul.interval != spacing {
		ul = &userLimiter{
			lim:      rate.NewLimiter(rate.Every(spacing), 1),
			interval: spacing,
		}
		r.limiters[userID] = ul
	}
	r.mu.Unlock()

	now := r.now()
	res := ul.lim.ReserveN(now, 1)
	if !res.OK() || res.DelayFrom(now) > 0 {
		res.CancelAt(now)
		return nil, false
	}
	return res, true
}

// append folds the fix into the user's document, creating the document on
// first sight of the user.
func (r *Recorder) append(ctx context.Context, report Report) error {
	path := channel.UsersPath + "/" + report.UserID

	var user models.TrackedUser
	snap, exists, err := r.ch.ReadDocument(ctx, path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if exists {
		if err := snap.Decode(&user); err != nil {
			return fmt.Errorf("%w: corrupt document at %s: %v", ErrInvalidReport, path, err)
		}
	} else {
		user = models.TrackedUser{ID: report.UserID}
	}
	if report.Name != "" {
		user.Name = report.Name
	}
	user.Location = append(user.Location, models.Position{
		Lat:       report.Lat,
		Long:      report.Long,
		Timestamp: report.Timestamp,
	})

	if err := r.ch.WriteDocument(ctx, path, user); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	logging.Debug().
		Str("user", report.UserID).
		Int("positions", len(user.Location)).
		Msg("recorded position fix")
	return nil
}

// IsPermanent reports whether err can never succeed on retry.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrInvalidReport)
}
