// Package places persists map features that carry a stable place id.
package places

import (
	"context"
	"database/sql"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	"query-orchestrator/internal/common/errors"
	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/models"
)

var ErrNotFound = stdErrors.New("place not found")

const schema = `CREATE TABLE IF NOT EXISTS places (
	place_id   TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	category   TEXT NOT NULL DEFAULT '',
	lat        DOUBLE PRECISION NOT NULL,
	lon        DOUBLE PRECISION NOT NULL,
	raw        JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const upsertPlace = `INSERT INTO places (place_id, name, category, lat, lon, raw, updated_at)
VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)
ON CONFLICT (place_id) DO UPDATE SET
	name = EXCLUDED.name,
	category = EXCLUDED.category,
	lat = EXCLUDED.lat,
	lon = EXCLUDED.lon,
	raw = EXCLUDED.raw,
	updated_at = EXCLUDED.updated_at`

const selectPlace = `SELECT place_id, name, category, lat, lon, raw, updated_at FROM places WHERE place_id = $1`

type Place struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Lat       float64         `json:"lat"`
	Lon       float64         `json:"lon"`
	Raw       json.RawMessage `json:"raw"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type Store struct {
	db     *sql.DB
	now    func() time.Time
	logger logger.Logger
}

func NewStore(db *sql.DB, log logger.Logger) *Store {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Store{db: db, now: time.Now, logger: log}
}

// EnsureSchema creates the places table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.NewPlaceStoreError(fmt.Errorf("create schema: %w", err))
	}
	return nil
}

// UpsertFeatures writes one row per Point feature with a non-empty id
// property, in a single transaction. Later features with the same id win.
// It returns the number of features written.
func (s *Store) UpsertFeatures(ctx context.Context, features []models.Feature) (int, error) {
	places := make([]Place, 0, len(features))
	for _, f := range features {
		if p, ok := placeFromFeature(f); ok {
			places = append(places, p)
		}
	}
	if len(places) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.NewPlaceStoreError(fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertPlace)
	if err != nil {
		return 0, errors.NewPlaceStoreError(fmt.Errorf("prepare upsert: %w", err))
	}
	defer stmt.Close()

	now := s.now().UTC()
	for _, p := range places {
		if _, err := stmt.ExecContext(ctx, p.ID, p.Name, p.Category, p.Lat, p.Lon, string(p.Raw), now); err != nil {
			return 0, errors.NewPlaceStoreError(fmt.Errorf("upsert %s: %w", p.ID, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.NewPlaceStoreError(fmt.Errorf("commit: %w", err))
	}

	s.logger.Debug("places upserted", map[string]interface{}{"count": len(places)})
	return len(places), nil
}

func (s *Store) Get(ctx context.Context, id string) (*Place, error) {
	var (
		p   Place
		raw []byte
	)
	err := s.db.QueryRowContext(ctx, selectPlace, id).
		Scan(&p.ID, &p.Name, &p.Category, &p.Lat, &p.Lon, &raw, &p.UpdatedAt)
	if stdErrors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.NewPlaceStoreError(fmt.Errorf("get %s: %w", id, err))
	}
	p.Raw = json.RawMessage(raw)
	return &p, nil
}

func placeFromFeature(f models.Feature) (Place, bool) {
	id := strings.TrimSpace(propString(f.Properties, "id"))
	if id == "" {
		return Place{}, false
	}
	lat, lon, ok := f.Point()
	if !ok {
		return Place{}, false
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return Place{}, false
	}
	return Place{
		ID:       id,
		Name:     propString(f.Properties, "name"),
		Category: propString(f.Properties, "category"),
		Lat:      lat,
		Lon:      lon,
		Raw:      raw,
	}, true
}

func propString(props map[string]interface{}, key string) string {
	switch v := props[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%g", v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
