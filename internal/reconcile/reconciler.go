// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/itinera/itinera/internal/channel"
	"github.com/itinera/itinera/internal/logging"
	"github.com/itinera/itinera/internal/models"
)

// Sentinel errors for the commit path. ErrMissingField, ErrInvalidRange,
// and ErrInvalidValue reject the edit before anything is written;
// ErrWriteFailed means the edit was valid but the channel write did not go
// through.
var (
	ErrMissingField = errors.New("required field is empty")
	ErrInvalidRange = errors.New("invalid recording window")
	ErrInvalidValue = errors.New("invalid field value")
	ErrWriteFailed  = errors.New("configuration write failed")
	ErrNoBaseline   = errors.New("no remote configuration absorbed yet")
)

// Field names the editable recording settings.
type Field string

const (
	FieldTimeStart   Field = "timeStart"
	FieldTimeEnd     Field = "timeEnd"
	FieldInterval    Field = "interval"
	FieldIsRecording Field = "isRecording"
)

// editableFields fixes the iteration order for deterministic validation.
var editableFields = []Field{FieldTimeStart, FieldTimeEnd, FieldInterval, FieldIsRecording}

// FormState is the operator-visible view of the edit buffer. IsRecording is
// carried as the operator's raw input; it only has to parse as a boolean at
// commit time.
type FormState struct {
	TimeStart   string `json:"timeStart"`
	TimeEnd     string `json:"timeEnd"`
	Interval    string `json:"interval"`
	IsRecording string `json:"isRecording"`
	Dirty       bool   `json:"dirty"`
}

// Reconciler owns the edit buffer and baseline for the shared configuration
// document. It is not safe for concurrent use; the engine loop is its sole
// caller.
type Reconciler struct {
	ch  channel.Channel
	now func() time.Time

	baseline    models.ConfigDocument
	hasBaseline bool
	buffer      map[Field]string
}

// New creates a reconciler that commits through ch. The clock is split out
// so tests can pin UpdatedAt.
func New(ch channel.Channel, now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		ch:     ch,
		now:    now,
		buffer: make(map[Field]string),
	}
}

// AbsorbRemoteSnapshot folds a remote configuration snapshot into the
// reconciler. Per field: a buffer value still equal to the old baseline is
// adopted from the remote; a diverged buffer value is kept. A pending edit
// that matches the incoming remote value therefore reads as clean again.
// The same rule means an edit typed back to the baseline value is
// indistinguishable from no edit and will be overwritten by the next remote
// change; operators see the field as unmodified, which matches what they
// typed.
func (r *Reconciler) AbsorbRemoteSnapshot(doc models.ConfigDocument) {
	if !r.hasBaseline {
		r.baseline = doc
		r.hasBaseline = true
		for _, f := range editableFields {
			r.buffer[f] = fieldOf(doc, f)
		}
		return
	}

	for _, f := range editableFields {
		if r.buffer[f] == fieldOf(r.baseline, f) {
			r.buffer[f] = fieldOf(doc, f)
		} else {
			logging.Debug().
				Str("field", string(f)).
				Msg("keeping pending edit over remote change")
		}
	}
	r.baseline = doc
}

// SetField stages a local edit.
func (r *Reconciler) SetField(f Field, value string) error {
	switch f {
	case FieldTimeStart, FieldTimeEnd, FieldInterval, FieldIsRecording:
		r.buffer[f] = value
		return nil
	default:
		return fmt.Errorf("unknown field %q", f)
	}
}

// FieldDirty reports whether f has a pending edit diverging from the
// baseline.
func (r *Reconciler) FieldDirty(f Field) bool {
	if !r.hasBaseline {
		return false
	}
	return r.buffer[f] != fieldOf(r.baseline, f)
}

// IsDirty reports whether any field has a pending edit.
func (r *Reconciler) IsDirty() bool {
	for _, f := range editableFields {
		if r.FieldDirty(f) {
			return true
		}
	}
	return false
}

// Form returns the current edit buffer.
func (r *Reconciler) Form() FormState {
	return FormState{
		TimeStart:   r.buffer[FieldTimeStart],
		TimeEnd:     r.buffer[FieldTimeEnd],
		Interval:    r.buffer[FieldInterval],
		IsRecording: r.buffer[FieldIsRecording],
		Dirty:       r.IsDirty(),
	}
}

// Baseline returns the last absorbed remote document and whether one has
// been absorbed at all.
func (r *Reconciler) Baseline() (models.ConfigDocument, bool) {
	return r.baseline, r.hasBaseline
}

// Commit validates the edit buffer and writes the merged document through
// the channel. Validation runs in field order: presence first, then the
// recording window, then the recording flag. The interval value is only
// checked for presence, not parsed. On any failure the buffer is left
// untouched; the baseline is never advanced here, only by the remote
// snapshot echoing back.
func (r *Reconciler) Commit(ctx context.Context) (models.ConfigDocument, error) {
	if !r.hasBaseline {
		return models.ConfigDocument{}, ErrNoBaseline
	}

	for _, f := range editableFields {
		if r.buffer[f] == "" {
			return models.ConfigDocument{}, fmt.Errorf("%w: %s", ErrMissingField, f)
		}
	}

	start, err := models.ParseTimeOfDay(r.buffer[FieldTimeStart])
	if err != nil {
		return models.ConfigDocument{}, fmt.Errorf("%w: timeStart: %v", ErrInvalidRange, err)
	}
	end, err := models.ParseTimeOfDay(r.buffer[FieldTimeEnd])
	if err != nil {
		return models.ConfigDocument{}, fmt.Errorf("%w: timeEnd: %v", ErrInvalidRange, err)
	}
	if start >= end {
		return models.ConfigDocument{}, fmt.Errorf("%w: start %q is not before end %q",
			ErrInvalidRange, r.buffer[FieldTimeStart], r.buffer[FieldTimeEnd])
	}

	recording, err := strconv.ParseBool(r.buffer[FieldIsRecording])
	if err != nil {
		return models.ConfigDocument{}, fmt.Errorf("%w: isRecording %q is not a boolean",
			ErrInvalidValue, r.buffer[FieldIsRecording])
	}

	doc := r.baseline
	doc.TimeStart = r.buffer[FieldTimeStart]
	doc.TimeEnd = r.buffer[FieldTimeEnd]
	doc.Interval = r.buffer[FieldInterval]
	doc.IsRecording = recording
	doc.Touch(r.now())

	if err := r.ch.WriteDocument(ctx, channel.ConfigPath, doc); err != nil {
		logging.Error().Err(err).Msg("configuration commit failed")
		return models.ConfigDocument{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	logging.Info().
		Str("timeStart", doc.TimeStart).
		Str("timeEnd", doc.TimeEnd).
		Str("interval", doc.Interval).
		Bool("isRecording", doc.IsRecording).
		Msg("configuration committed")
	return doc, nil
}

func fieldOf(doc models.ConfigDocument, f Field) string {
	switch f {
	case FieldTimeStart:
		return doc.TimeStart
	case FieldTimeEnd:
		return doc.TimeEnd
	case FieldIsRecording:
		return strconv.FormatBool(doc.IsRecording)
	default:
		return doc.Interval
	}
}
