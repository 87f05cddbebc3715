package store

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peer_valuation/pkg/models"
)

func testResult() *models.ValuationResult {
	return &models.ValuationResult{
		RunID:       "run-1",
		CompanyName: "Acme Corp",
		TopPeers: []models.SimilarityMatch{
			{Company: &models.Company{Name: "Beta", EVEBITDA: models.Float(11), EmbeddingVector: []float64{0.1, 0.2}}, Similarity: 0.9},
			{Company: nil, Similarity: 0.5},
		},
		GeneratedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestWithoutVectors(t *testing.T) {
	result := testResult()
	stored := withoutVectors(result)

	data, err := json.Marshal(stored)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "embedding_vector")
	assert.Contains(t, string(data), `"name":"Beta"`)

	// The caller's result keeps its vectors
	assert.Equal(t, []float64{0.1, 0.2}, result.TopPeers[0].Company.EmbeddingVector)
	assert.Nil(t, stored.TopPeers[1].Company)
}

func TestResultRepo_NoPool(t *testing.T) {
	r := &ResultRepo{}
	assert.Error(t, r.Save(context.Background(), testResult()))
	_, err := r.Latest(context.Background(), "Acme Corp")
	assert.Error(t, err)
}

// Runs only against a real database.
func TestResultRepo_Postgres(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	p, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer p.Close()
	_, err = p.Exec(ctx, Schema)
	require.NoError(t, err)

	repo := NewResultRepo(p)
	require.NoError(t, repo.Save(ctx, testResult()))

	got, err := repo.Latest(ctx, "ACME CORP")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	require.NotNil(t, got.TopPeers[0].Company)
	assert.Nil(t, got.TopPeers[0].Company.EmbeddingVector)

	_, err = repo.Latest(ctx, "nobody")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
