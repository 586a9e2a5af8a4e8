package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/OCAP2/trackplay/pkg/core"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PositionRecord is a stored position row. Payload keeps the sample as it was
// received; the typed columns, when set, take precedence over it.
type PositionRecord struct {
	ID         uint           `json:"id" gorm:"primarykey;autoIncrement"`
	EntityID   string         `json:"entityId" gorm:"size:64;not null;index:idx_position_entity_time,priority:1"`
	RecordedAt time.Time      `json:"recordedAt" gorm:"not null;index:idx_position_entity_time,priority:2"`
	Latitude   *float64       `json:"latitude"`
	Longitude  *float64       `json:"longitude"`
	Heading    *float64       `json:"heading"`
	Speed      *float64       `json:"speed"`
	SpeedUnit  string         `json:"speedUnit" gorm:"size:16"`
	Payload    datatypes.JSON `json:"payload"`
}

// TableName overrides the default table name.
func (*PositionRecord) TableName() string {
	return "positions"
}

// Sample converts the row into a replay sample.
func (r PositionRecord) Sample() (core.Sample, error) {
	var s core.Sample
	if len(r.Payload) > 0 && string(r.Payload) != "null" {
		if err := json.Unmarshal(r.Payload, &s); err != nil {
			return core.Sample{}, fmt.Errorf("decoding payload of position %d: %w", r.ID, err)
		}
	}

	if r.Latitude != nil && r.Longitude != nil {
		s.Latitude = *r.Latitude
		s.Longitude = *r.Longitude
	}
	if r.Heading != nil {
		s.Heading = *r.Heading
	}
	if r.Speed != nil {
		s.Speed = *r.Speed
		s.SpeedUnit = r.SpeedUnit
	}
	s.RecordedAt = r.RecordedAt.UTC()
	return s, nil
}

// GormSource reads positions from a gorm database.
type GormSource struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewGormSource wraps an open database.
func NewGormSource(db *gorm.DB, logger zerolog.Logger) *GormSource {
	return &GormSource{
		db:     db,
		logger: logger.With().Str("module", "history").Logger(),
	}
}

// Load implements Source. Rows are ordered by recorded time, then id.
func (g *GormSource) Load(ctx context.Context, q Query) ([]core.Sample, error) {
	tx := g.db.WithContext(ctx).Where("entity_id = ?", q.EntityID)
	if !q.From.IsZero() {
		tx = tx.Where("recorded_at >= ?", q.From)
	}
	if !q.To.IsZero() {
		tx = tx.Where("recorded_at <= ?", q.To)
	}

	var rows []PositionRecord
	if err := tx.Order("recorded_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying positions of %s: %w", q.EntityID, err)
	}
	if len(rows) == 0 {
		return nil, ErrNoPositions
	}

	samples := make([]core.Sample, 0, len(rows))
	for _, r := range rows {
		s, err := r.Sample()
		if err != nil {
			g.logger.Warn().Err(err).Uint("id", r.ID).Msg("skipping unreadable position")
			continue
		}
		samples = append(samples, s)
	}
	g.logger.Debug().Str("entity", q.EntityID).Int("positions", len(samples)).Msg("loaded history")
	return samples, nil
}
