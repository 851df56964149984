package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TrendSnapshot caches a connector response so repeated identical requests
// within the cache TTL skip the upstream platform.
type TrendSnapshot struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Provider   string         `gorm:"type:varchar(30);not null;index:idx_trend_snapshots_lookup"`
	RequestKey string         `gorm:"type:varchar(500);not null;index:idx_trend_snapshots_lookup"`
	Payload    datatypes.JSON `gorm:"not null"`
	FetchedAt  time.Time      `gorm:"not null;index"`
}
