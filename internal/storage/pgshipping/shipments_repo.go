package pgshipping

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BearBump/ShipBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const shipmentColumns = `
  order_id, state, provider, service_type,
  shipment_id, tracking_number, label_url, total_amount, currency,
  provider_metadata, request,
  status, status_raw, status_at, estimated_delivery,
  last_checked_at, next_check_at, check_fail_count, last_error,
  created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanShipment(row scanner) (*models.OrderShipment, error) {
	var (
		sh          models.OrderShipment
		serviceType string
		status      string
		metadata    []byte
		request     []byte
	)
	if err := row.Scan(
		&sh.OrderID, &sh.State, &sh.Provider, &serviceType,
		&sh.ShipmentID, &sh.TrackingNumber, &sh.LabelURL, &sh.TotalAmount, &sh.Currency,
		&metadata, &request,
		&status, &sh.StatusRaw, &sh.StatusAt, &sh.EstimatedDelivery,
		&sh.LastCheckedAt, &sh.NextCheckAt, &sh.CheckFailCount, &sh.LastError,
		&sh.CreatedAt, &sh.UpdatedAt,
	); err != nil {
		return nil, err
	}
	sh.ServiceType = models.ServiceType(serviceType)
	if status != "" {
		sh.Status = models.ParseTrackingStatus(status)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &sh.ProviderMetadata); err != nil {
			return nil, errors.Wrap(err, "decode provider metadata")
		}
	}
	if len(request) > 0 {
		var req models.ShipmentRequest
		if err := json.Unmarshal(request, &req); err != nil {
			return nil, errors.Wrap(err, "decode shipment request")
		}
		sh.Request = &req
	}
	return &sh, nil
}

// GetOrderShipping returns nil without error when the order has no shipping record yet.
func (s *Storage) GetOrderShipping(ctx context.Context, orderID string) (*models.OrderShipment, error) {
	sh, err := scanShipment(s.db.QueryRow(ctx, `SELECT`+shipmentColumns+` FROM order_shipments WHERE order_id = $1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select order shipment")
	}
	return sh, nil
}

func jsonOrNil(v any, present bool) ([]byte, error) {
	if !present {
		return nil, nil
	}
	return json.Marshal(v)
}

// UpdateOrderShippingInfo is a partial upsert: empty fields in info keep what is stored.
// The first time a tracking number lands the record becomes due for polling.
func (s *Storage) UpdateOrderShippingInfo(ctx context.Context, orderID string, info models.ShippingInfo) error {
	metadata, err := jsonOrNil(info.ProviderMetadata, info.ProviderMetadata != nil)
	if err != nil {
		return errors.Wrap(err, "encode provider metadata")
	}
	request, err := jsonOrNil(info.Request, info.Request != nil)
	if err != nil {
		return errors.Wrap(err, "encode shipment request")
	}

	initialStatus := ""
	if info.TrackingNumber != "" {
		initialStatus = string(models.TrackingStatusCreated)
	}
	state := info.State
	if state == "" {
		state = models.ShipmentStatePending
	}
	now := time.Now().UTC()

	_, err = s.db.Exec(ctx, `
INSERT INTO order_shipments (
  order_id, state, provider, service_type,
  shipment_id, tracking_number, label_url, total_amount, currency,
  provider_metadata, request, last_error,
  status, status_raw, next_check_at, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13,$14,$14,$14)
ON CONFLICT (order_id) DO UPDATE SET
  state = CASE WHEN $15 = '' THEN order_shipments.state ELSE EXCLUDED.state END,
  provider = COALESCE(NULLIF(EXCLUDED.provider, ''), order_shipments.provider),
  service_type = COALESCE(NULLIF(EXCLUDED.service_type, ''), order_shipments.service_type),
  shipment_id = COALESCE(NULLIF(EXCLUDED.shipment_id, ''), order_shipments.shipment_id),
  tracking_number = COALESCE(NULLIF(EXCLUDED.tracking_number, ''), order_shipments.tracking_number),
  label_url = COALESCE(NULLIF(EXCLUDED.label_url, ''), order_shipments.label_url),
  total_amount = CASE WHEN EXCLUDED.total_amount <> 0 THEN EXCLUDED.total_amount ELSE order_shipments.total_amount END,
  currency = COALESCE(NULLIF(EXCLUDED.currency, ''), order_shipments.currency),
  provider_metadata = COALESCE(EXCLUDED.provider_metadata, order_shipments.provider_metadata),
  request = COALESCE(EXCLUDED.request, order_shipments.request),
  last_error = CASE WHEN EXCLUDED.state = 'CREATED' THEN NULL ELSE COALESCE(EXCLUDED.last_error, order_shipments.last_error) END,
  status = CASE WHEN order_shipments.tracking_number = '' AND EXCLUDED.tracking_number <> '' THEN EXCLUDED.status ELSE order_shipments.status END,
  status_raw = CASE WHEN order_shipments.tracking_number = '' AND EXCLUDED.tracking_number <> '' THEN EXCLUDED.status_raw ELSE order_shipments.status_raw END,
  next_check_at = CASE WHEN order_shipments.tracking_number = '' AND EXCLUDED.tracking_number <> '' THEN EXCLUDED.next_check_at ELSE order_shipments.next_check_at END,
  updated_at = EXCLUDED.updated_at
`,
		orderID, state, info.Provider, string(info.ServiceType),
		info.ShipmentID, info.TrackingNumber, info.LabelURL, info.TotalAmount, info.Currency,
		metadata, request, info.LastError,
		initialStatus, now, info.State,
	)
	return errors.Wrap(err, "upsert order shipment")
}

func (s *Storage) ListOrderShipments(ctx context.Context, limit, offset int) ([]*models.OrderShipment, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `SELECT`+shipmentColumns+`
FROM order_shipments
ORDER BY updated_at DESC, order_id
LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select order shipments")
	}
	defer rows.Close()

	var out []*models.OrderShipment
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan order shipment")
		}
		out = append(out, sh)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// ClaimDueShipments выбирает пачку отгрузок с трек-номером, готовых к проверке, и "бронирует" их,
// чтобы они не попадали в повторную выборку, пока воркер их обрабатывает.
// Использует SELECT ... FOR UPDATE SKIP LOCKED.
func (s *Storage) ClaimDueShipments(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.OrderShipment, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `SELECT`+shipmentColumns+`
FROM order_shipments
WHERE next_check_at <= $1
  AND tracking_number <> ''
  AND status <> $2
ORDER BY next_check_at ASC
LIMIT $3
FOR UPDATE SKIP LOCKED
`, now.UTC(), string(models.TrackingStatusDelivered), limit)
	if err != nil {
		return nil, errors.Wrap(err, "select due shipments")
	}

	var picked []*models.OrderShipment
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan due shipment")
		}
		picked = append(picked, sh)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}

	leaseUntil := now.UTC().Add(lease)
	for _, sh := range picked {
		_, err := tx.Exec(ctx, `UPDATE order_shipments SET next_check_at = $2, updated_at = now() WHERE order_id = $1`, sh.OrderID, leaseUntil)
		if err != nil {
			return nil, errors.Wrap(err, "lease shipment")
		}
		sh.NextCheckAt = leaseUntil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return picked, nil
}
