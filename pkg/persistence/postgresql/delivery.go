package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/persistence"
	"github.com/goccy/go-json"
)

// DeliveryRepository handles engagement delivery database operations.
type DeliveryRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const deliveryColumns = `
			id
		  , user_id
		  , rule_id
		  , template_id
		  , channel
		  , delivery_context
		  , rendered_content
		  , delivery_status
		  , created_at
		  , updated_at`

// Create inserts a new delivery and returns it with its generated ID.
func (r *DeliveryRepository) Create(ctx context.Context, delivery *models.EngagementDelivery) (*models.EngagementDelivery, error) {
	created := *delivery
	if created.ID == "" {
		created.ID = newID()
	}

	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now

	if created.DeliveryContext == nil {
		created.DeliveryContext = map[string]any{}
	}

	if created.RenderedContent == nil {
		created.RenderedContent = map[string]any{}
	}

	deliveryContext, err := jsonb(created.DeliveryContext)
	if err != nil {
		return nil, persistence.NewTaskError("Create", created.ID, err)
	}

	rendered, err := jsonb(created.RenderedContent)
	if err != nil {
		return nil, persistence.NewTaskError("Create", created.ID, err)
	}

	query := `
		INSERT INTO engagement_deliveries (id, user_id, rule_id, template_id, channel, delivery_context, rendered_content, delivery_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		created.ID,
		created.UserID,
		created.RuleID,
		created.TemplateID,
		created.Channel,
		deliveryContext,
		rendered,
		created.DeliveryStatus,
		created.CreatedAt,
		created.UpdatedAt,
	)
	if err != nil {
		return nil, persistence.NewTaskError("Create", created.ID, err)
	}

	return &created, nil
}

// Update sets the status and merges the context patch into the stored delivery
// context. The row is locked for the read-merge-write.
func (r *DeliveryRepository) Update(ctx context.Context, id string, patch models.DeliveryPatch) error {
	transaction, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewTaskError("Update", id, fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		if err := transaction.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.logger.ErrorContext(ctx, "failed to rollback transaction", "error", err)
		}
	}()

	query := `SELECT` + deliveryColumns + `
		FROM engagement_deliveries
		WHERE id = $1
		FOR UPDATE
	`

	delivery, err := scanDelivery(transaction.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.NewTaskError("Update", id, persistence.ErrDeliveryNotFound)
		}

		return persistence.NewTaskError("Update", id, err)
	}

	if err := patch.Apply(delivery, time.Now().UTC()); err != nil {
		return persistence.NewTaskError("Update", id, err)
	}

	deliveryContext, err := jsonb(delivery.DeliveryContext)
	if err != nil {
		return persistence.NewTaskError("Update", id, err)
	}

	_, err = transaction.ExecContext(ctx, `
		UPDATE engagement_deliveries
		SET delivery_status = $2
		  , delivery_context = $3
		  , updated_at = $4
		WHERE id = $1
	`, id, delivery.DeliveryStatus, deliveryContext, delivery.UpdatedAt)
	if err != nil {
		return persistence.NewTaskError("Update", id, err)
	}

	if err := transaction.Commit(); err != nil {
		return persistence.NewTaskError("Update", id, fmt.Errorf("failed to commit transaction: %w", err))
	}

	return nil
}

// ByID returns the delivery or ErrDeliveryNotFound.
func (r *DeliveryRepository) ByID(ctx context.Context, id string) (*models.EngagementDelivery, error) {
	query := `SELECT` + deliveryColumns + `
		FROM engagement_deliveries
		WHERE id = $1
	`

	delivery, err := scanDelivery(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewTaskError("ByID", id, persistence.ErrDeliveryNotFound)
		}

		return nil, persistence.NewTaskError("ByID", id, err)
	}

	return delivery, nil
}

// ByUser returns the deliveries of a user, newest first.
func (r *DeliveryRepository) ByUser(ctx context.Context, userID string) ([]*models.EngagementDelivery, error) {
	query := `SELECT` + deliveryColumns + `
		FROM engagement_deliveries
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query deliveries of user %s: %w", userID, err)
	}
	defer closeRows(ctx, r.logger, rows)

	deliveries := make([]*models.EngagementDelivery, 0)

	for rows.Next() {
		delivery, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}

		deliveries = append(deliveries, delivery)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deliveries: %w", err)
	}

	return deliveries, nil
}

func scanDelivery(row scanner) (*models.EngagementDelivery, error) {
	var (
		delivery                  models.EngagementDelivery
		deliveryContext, rendered []byte
	)

	err := row.Scan(
		&delivery.ID,
		&delivery.UserID,
		&delivery.RuleID,
		&delivery.TemplateID,
		&delivery.Channel,
		&deliveryContext,
		&rendered,
		&delivery.DeliveryStatus,
		&delivery.CreatedAt,
		&delivery.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(deliveryContext, &delivery.DeliveryContext); err != nil {
		return nil, fmt.Errorf("failed to unmarshal delivery context: %w", err)
	}

	if err := json.Unmarshal(rendered, &delivery.RenderedContent); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rendered content: %w", err)
	}

	return &delivery, nil
}
