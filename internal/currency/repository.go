package currency

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/fincore/internal/platform/db"
	"github.com/odyssey-erp/fincore/internal/shared"
)

// PGRepository reads countries from PostgreSQL.
type PGRepository struct {
	db db.DBTX
}

// NewPGRepository constructs the repository.
func NewPGRepository(conn db.DBTX) *PGRepository {
	return &PGRepository{db: conn}
}

// GetCountry loads a country by id.
func (r *PGRepository) GetCountry(ctx context.Context, countryID int64) (Country, error) {
	var c Country
	err := r.db.QueryRow(ctx, `SELECT id, code, currency_code, COALESCE(currency_symbol, ''), exchange_rate, is_active
FROM countries WHERE id=$1`, countryID).Scan(&c.ID, &c.Code, &c.CurrencyCode, &c.CurrencySymbol, &c.ExchangeRate, &c.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Country{}, shared.NotFoundf("country %d not found", countryID)
		}
		return Country{}, fmt.Errorf("currency: load country: %w", err)
	}
	return c, nil
}
