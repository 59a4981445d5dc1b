package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/kolabhq/kolab-discovery/internal/apperr"
	"github.com/kolabhq/kolab-discovery/internal/core/model"
)

const eventsTable = "events"

// InsertEvent writes a new event row and returns the server-side
// representation (id and timestamps assigned).
func (b *Backend) InsertEvent(ctx context.Context, token string, row map[string]any) (model.EventRecord, error) {
	raw, err := b.Insert(ctx, token, eventsTable, row)
	if err != nil {
		return model.EventRecord{}, err
	}
	return decodeOne(raw)
}

// UpdateEvent patches an event scoped to the owning organizer. A predicate
// that matches nothing (wrong id or not the caller's record) comes back as
// an empty representation and is reported as forbidden, never a silent
// no-op.
func (b *Backend) UpdateEvent(ctx context.Context, token, id, organizerID string, patch map[string]any) (model.EventRecord, error) {
	match := url.Values{}
	match.Set("id", "eq."+id)
	match.Set("organizer_id", "eq."+organizerID)

	raw, err := b.Update(ctx, token, eventsTable, match, patch)
	if err != nil {
		return model.EventRecord{}, err
	}

	var rows []model.EventRecord
	if err := json.Unmarshal(raw, &rows); err != nil {
		return model.EventRecord{}, fmt.Errorf("decode updated event: %w", err)
	}
	if len(rows) == 0 {
		return model.EventRecord{}, apperr.Newf(apperr.KindForbidden, "event %s not found or not owned by caller", id)
	}
	return rows[0], nil
}

func decodeOne(raw []byte) (model.EventRecord, error) {
	var rows []model.EventRecord
	if err := json.Unmarshal(raw, &rows); err == nil && len(rows) > 0 {
		return rows[0], nil
	}
	// some backends return a bare object for single-row inserts
	var one model.EventRecord
	if err := json.Unmarshal(raw, &one); err != nil {
		return model.EventRecord{}, fmt.Errorf("decode created event: %w", err)
	}
	return one, nil
}
