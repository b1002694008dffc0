package pgshipping

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BearBump/ShipBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// TrackingUpdate is one poll result for an order shipment.
type TrackingUpdate struct {
	OrderID string

	CheckedAt time.Time

	Status            models.TrackingStatus
	StatusRaw         string
	StatusAt          *time.Time
	EstimatedDelivery *time.Time

	NextCheckAt time.Time

	Events []*models.ShipmentEvent

	Error *string
}

func (s *Storage) ListShipmentEvents(ctx context.Context, orderID string, limit, offset int) ([]*models.ShipmentEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
SELECT
  id, order_id, status, status_raw,
  event_time, location, message, payload, created_at
FROM shipment_events
WHERE order_id = $1
ORDER BY event_time DESC, id DESC
LIMIT $2 OFFSET $3
`, orderID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select events")
	}
	defer rows.Close()

	var out []*models.ShipmentEvent
	for rows.Next() {
		var e models.ShipmentEvent
		var status string
		var location, message string
		var payload []byte
		if err := rows.Scan(
			&e.ID, &e.OrderID, &status, &e.StatusRaw,
			&e.EventTime, &location, &message, &payload, &e.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}

		e.Status = models.ParseTrackingStatus(status)
		if location != "" {
			e.Location = &location
		}
		if message != "" {
			e.Message = &message
		}
		if len(payload) > 0 {
			p := string(payload)
			e.PayloadJSON = &p
		}

		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) ApplyTrackingUpdate(ctx context.Context, upd TrackingUpdate) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if upd.Error != nil && *upd.Error != "" {
		_, err := tx.Exec(ctx, `
UPDATE order_shipments
SET
  last_checked_at = $2,
  check_fail_count = check_fail_count + 1,
  last_error = $3,
  next_check_at = $4,
  updated_at = now()
WHERE order_id = $1
`, upd.OrderID, upd.CheckedAt.UTC(), *upd.Error, upd.NextCheckAt.UTC())
		if err != nil {
			return errors.Wrap(err, "update shipment (error)")
		}
	} else {
		_, err := tx.Exec(ctx, `
UPDATE order_shipments
SET
  status = $3,
  status_raw = $4,
  status_at = $5,
  estimated_delivery = COALESCE($7, estimated_delivery),
  last_checked_at = $2,
  check_fail_count = 0,
  last_error = NULL,
  next_check_at = $6,
  updated_at = now()
WHERE order_id = $1
`, upd.OrderID, upd.CheckedAt.UTC(), string(upd.Status), upd.StatusRaw, upd.StatusAt, upd.NextCheckAt.UTC(), upd.EstimatedDelivery)
		if err != nil {
			return errors.Wrap(err, "update shipment (ok)")
		}

		for _, e := range upd.Events {
			var payload []byte
			if e.PayloadJSON != nil && json.Valid([]byte(*e.PayloadJSON)) {
				payload = []byte(*e.PayloadJSON)
			}

			loc := ""
			if e.Location != nil {
				loc = *e.Location
			}
			msgText := ""
			if e.Message != nil {
				msgText = *e.Message
			}

			_, err := tx.Exec(ctx, `
INSERT INTO shipment_events (
  order_id, status, status_raw, event_time, location, message, payload, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7, now())
ON CONFLICT (order_id, status_raw, event_time, location, message) DO NOTHING
`, upd.OrderID, string(e.Status), e.StatusRaw, e.EventTime.UTC(), loc, msgText, payload)
			if err != nil {
				return errors.Wrap(err, "insert shipment event")
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}
