package repository

import (
	"context"
	"time"

	"github.com/zeitwerk/zeitwerk-backend/pkg/database"
)

// Holiday represents a public holiday. The table is maintained externally;
// this service only reads it.
type Holiday struct {
	ID          string    `db:"id" json:"id"`
	HolidayDate time.Time `db:"holiday_date" json:"holiday_date"`
	Name        string    `db:"name" json:"name"`
	Scope       string    `db:"scope" json:"scope"` // federal or regional
	Region      *string   `db:"region" json:"region,omitempty"`
}

// HolidayRepository provides read access to public holidays
type HolidayRepository struct {
	db *database.DB
}

// NewHolidayRepository creates a new holiday repository
func NewHolidayRepository(db *database.DB) *HolidayRepository {
	return &HolidayRepository{db: db}
}

// ListBetween returns all holidays applicable to a region in [from, to].
// Federal holidays apply everywhere; regional ones only to their region.
func (r *HolidayRepository) ListBetween(ctx context.Context, region string, from, to time.Time) ([]*Holiday, error) {
	var holidays []*Holiday

	query := `
		SELECT id, holiday_date, name, scope, region
		FROM holidays
		WHERE holiday_date BETWEEN $1 AND $2
		  AND (scope = 'federal' OR region = $3)
		ORDER BY holiday_date
	`
	if err := r.db.SelectContext(ctx, &holidays, query, Midnight(from), Midnight(to), region); err != nil {
		return nil, err
	}

	return holidays, nil
}

// HolidaySet returns the holiday dates for a region in [from, to] keyed by
// YYYY-MM-DD, for constant-time lookup during target resolution.
func (r *HolidayRepository) HolidaySet(ctx context.Context, region string, from, to time.Time) (map[string]bool, error) {
	holidays, err := r.ListBetween(ctx, region, from, to)
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool, len(holidays))
	for _, h := range holidays {
		set[h.HolidayDate.Format("2006-01-02")] = true
	}

	return set, nil
}
