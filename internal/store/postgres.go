// Package store persists intent documents and serves the two read-side
// accelerators: the route-classification cache and the training-phrase index.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	stderrors "finchat-engine/internal/common/errors"
	"finchat-engine/internal/common/logger"
	"finchat-engine/internal/models"
)

// RecordStore is the persistence surface for intent documents.
type RecordStore interface {
	GetIntent(ctx context.Context, id string) (*models.Intent, error)
	ListIntents(ctx context.Context, moduleID string) ([]models.Intent, error)
	CreateIntent(ctx context.Context, intent *models.Intent) error
	UpdateIntent(ctx context.Context, intent *models.Intent) error
	DeleteIntent(ctx context.Context, id string) error
	SetResolutionFlow(ctx context.Context, intentID string, flow *models.ResolutionFlow, generatedBy models.GeneratedBy, confidence float64) error
}

// PostgresStore implements RecordStore over a single intents table.
// Structured columns (entities, resolution_flow) are JSONB; training
// phrases are a text array.
type PostgresStore struct {
	db     *sql.DB
	logger logger.Logger
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB, log logger.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: log}
}

const intentColumns = `id, name, module_id, sub_module_id, description, is_active,
	training_phrases, entities, resolution_flow, generated_by, ai_confidence,
	created_at, updated_at`

// GetIntent fetches one intent by id.
func (s *PostgresStore) GetIntent(ctx context.Context, id string) (*models.Intent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+intentColumns+` FROM intents WHERE id = $1`, id)
	intent, err := scanIntent(row)
	if err == sql.ErrNoRows {
		return nil, stderrors.NewRecordNotFoundError("intent", id)
	}
	if err != nil {
		return nil, stderrors.NewQueryExecutionError("get_intent", err)
	}
	return intent, nil
}

// ListIntents returns the intents of a module ordered by name. An empty
// moduleID lists every intent.
func (s *PostgresStore) ListIntents(ctx context.Context, moduleID string) ([]models.Intent, error) {
	query := `SELECT ` + intentColumns + ` FROM intents ORDER BY name`
	args := []interface{}{}
	if moduleID != "" {
		query = `SELECT ` + intentColumns + ` FROM intents WHERE module_id = $1 ORDER BY name`
		args = append(args, moduleID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, stderrors.NewQueryExecutionError("list_intents", err)
	}
	defer rows.Close()

	var intents []models.Intent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, stderrors.NewQueryExecutionError("list_intents", err)
		}
		intents = append(intents, *intent)
	}
	if err := rows.Err(); err != nil {
		return nil, stderrors.NewQueryExecutionError("list_intents", err)
	}
	return intents, nil
}

// CreateIntent inserts a new intent document.
func (s *PostgresStore) CreateIntent(ctx context.Context, intent *models.Intent) error {
	entities, flow, err := marshalJSONColumns(intent)
	if err != nil {
		return stderrors.NewQueryExecutionError("create_intent", err)
	}

	now := time.Now().UTC()
	intent.CreatedAt = now
	intent.UpdatedAt = now
	if intent.GeneratedBy == "" {
		intent.GeneratedBy = models.GeneratedByPending
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO intents (id, name, module_id, sub_module_id, description, is_active,
			training_phrases, entities, resolution_flow, generated_by, ai_confidence,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		intent.ID, intent.Name, intent.ModuleID, intent.SubModuleID,
		intent.Description, intent.IsActive, pq.Array(intent.TrainingPhrases),
		entities, flow, string(intent.GeneratedBy), intent.AIConfidence,
		intent.CreatedAt, intent.UpdatedAt)
	if err != nil {
		return stderrors.NewQueryExecutionError("create_intent", err)
	}

	s.logger.Info("intent created", map[string]interface{}{
		"intentId": intent.ID,
		"name":     intent.Name,
	})
	return nil
}

// UpdateIntent replaces the mutable fields of an existing intent.
func (s *PostgresStore) UpdateIntent(ctx context.Context, intent *models.Intent) error {
	entities, flow, err := marshalJSONColumns(intent)
	if err != nil {
		return stderrors.NewQueryExecutionError("update_intent", err)
	}

	intent.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE intents
		SET name = $2, description = $3, is_active = $4, training_phrases = $5,
			entities = $6, resolution_flow = $7, generated_by = $8,
			ai_confidence = $9, updated_at = $10
		WHERE id = $1`,
		intent.ID, intent.Name, intent.Description, intent.IsActive,
		pq.Array(intent.TrainingPhrases), entities, flow,
		string(intent.GeneratedBy), intent.AIConfidence, intent.UpdatedAt)
	if err != nil {
		return stderrors.NewQueryExecutionError("update_intent", err)
	}
	return requireRow(res, "intent", intent.ID)
}

// DeleteIntent removes an intent document.
func (s *PostgresStore) DeleteIntent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM intents WHERE id = $1`, id)
	if err != nil {
		return stderrors.NewQueryExecutionError("delete_intent", err)
	}
	return requireRow(res, "intent", id)
}

// SetResolutionFlow attaches a generated or authored flow to an intent
// without touching the rest of the document.
func (s *PostgresStore) SetResolutionFlow(ctx context.Context, intentID string, flow *models.ResolutionFlow, generatedBy models.GeneratedBy, confidence float64) error {
	payload, err := json.Marshal(flow)
	if err != nil {
		return stderrors.NewQueryExecutionError("set_resolution_flow", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE intents
		SET resolution_flow = $2, generated_by = $3, ai_confidence = $4, updated_at = $5
		WHERE id = $1`,
		intentID, payload, string(generatedBy), confidence, time.Now().UTC())
	if err != nil {
		return stderrors.NewQueryExecutionError("set_resolution_flow", err)
	}
	return requireRow(res, "intent", intentID)
}

func requireRow(res sql.Result, kind, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return stderrors.NewQueryExecutionError("rows_affected", err)
	}
	if affected == 0 {
		return stderrors.NewRecordNotFoundError(kind, id)
	}
	return nil
}

func marshalJSONColumns(intent *models.Intent) ([]byte, interface{}, error) {
	entities, err := json.Marshal(intent.Entities)
	if err != nil {
		return nil, nil, err
	}
	// A nil flow stores SQL NULL, not the JSON literal null.
	var flow interface{}
	if intent.ResolutionFlow != nil {
		payload, err := json.Marshal(intent.ResolutionFlow)
		if err != nil {
			return nil, nil, err
		}
		flow = payload
	}
	return entities, flow, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIntent(row rowScanner) (*models.Intent, error) {
	var (
		intent      models.Intent
		phrases     pq.StringArray
		entities    []byte
		flow        []byte
		generatedBy string
	)
	err := row.Scan(&intent.ID, &intent.Name, &intent.ModuleID, &intent.SubModuleID,
		&intent.Description, &intent.IsActive, &phrases, &entities, &flow,
		&generatedBy, &intent.AIConfidence, &intent.CreatedAt, &intent.UpdatedAt)
	if err != nil {
		return nil, err
	}

	intent.TrainingPhrases = []string(phrases)
	intent.GeneratedBy = models.GeneratedBy(generatedBy)
	if len(entities) > 0 {
		if err := json.Unmarshal(entities, &intent.Entities); err != nil {
			return nil, err
		}
	}
	if len(flow) > 0 {
		intent.ResolutionFlow = &models.ResolutionFlow{}
		if err := json.Unmarshal(flow, intent.ResolutionFlow); err != nil {
			return nil, err
		}
	}
	return &intent, nil
}
