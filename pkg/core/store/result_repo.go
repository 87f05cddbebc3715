package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"peer_valuation/pkg/models"
)

// ResultRepo stores valuation runs as JSONB documents.
type ResultRepo struct {
	pool *pgxpool.Pool
}

// NewResultRepo creates a repository on pool. A nil pool uses the shared pool from InitDB.
func NewResultRepo(p *pgxpool.Pool) *ResultRepo {
	if p == nil {
		p = GetPool()
	}
	return &ResultRepo{pool: p}
}

// Save persists a valuation result, keyed by its run id.
func (r *ResultRepo) Save(ctx context.Context, result *models.ValuationResult) error {
	if r.pool == nil {
		return fmt.Errorf("database pool not initialized")
	}

	jsonData, err := json.Marshal(withoutVectors(result))
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	query := `
		INSERT INTO valuation_results (run_id, company_name, result_json, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (run_id)
		DO UPDATE SET
			company_name = EXCLUDED.company_name,
			result_json = EXCLUDED.result_json,
			created_at = EXCLUDED.created_at;
	`
	_, err = r.pool.Exec(ctx, query, result.RunID, models.NormalizeName(result.CompanyName), jsonData, result.GeneratedAt)
	if err != nil {
		return fmt.Errorf("failed to save valuation result: %w", err)
	}
	return nil
}

// Latest retrieves the most recent valuation for a company.
func (r *ResultRepo) Latest(ctx context.Context, companyName string) (*models.ValuationResult, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}

	query := `
		SELECT result_json FROM valuation_results
		WHERE company_name = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	var jsonData []byte
	err := r.pool.QueryRow(ctx, query, models.NormalizeName(companyName)).Scan(&jsonData)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("no valuation stored for %s: %w", companyName, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load valuation: %w", err)
	}

	var result models.ValuationResult
	if err := json.Unmarshal(jsonData, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal valuation: %w", err)
	}
	return &result, nil
}

// withoutVectors returns a shallow copy of result whose peers carry no
// embedding vectors; those belong in the vector cache.
func withoutVectors(result *models.ValuationResult) *models.ValuationResult {
	out := *result
	out.TopPeers = make([]models.SimilarityMatch, len(result.TopPeers))
	for i, m := range result.TopPeers {
		out.TopPeers[i] = m
		if m.Company != nil {
			c := *m.Company
			c.EmbeddingVector = nil
			out.TopPeers[i].Company = &c
		}
	}
	return &out
}
