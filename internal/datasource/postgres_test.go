//go:build integration

package datasource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/compliance-dashboard/internal/testutil"
)

// The seeded rows must match the in-memory sample set exactly.
func TestPostgresSource_MatchesSample(t *testing.T) {
	db := testutil.PGTest(t)
	pg := NewPostgresSource(db)
	mem := SampleSource()
	ctx := context.Background()

	require.NoError(t, pg.Ping(ctx))

	gotW, err := pg.FetchWallets(ctx)
	require.NoError(t, err)
	wantW, _ := mem.FetchWallets(ctx)
	assert.Equal(t, wantW, gotW)

	gotT, err := pg.FetchTransactions(ctx)
	require.NoError(t, err)
	wantT, _ := mem.FetchTransactions(ctx)
	require.Len(t, gotT, len(wantT))
	for i := range wantT {
		assert.Equal(t, wantT[i].Wallet, gotT[i].Wallet)
		assert.True(t, wantT[i].Amount.Equal(gotT[i].Amount), "amount %d", i)
		assert.Equal(t, wantT[i].RiskScore, gotT[i].RiskScore)
	}

	gotV, err := pg.FetchVerifications(ctx)
	require.NoError(t, err)
	wantV, _ := mem.FetchVerifications(ctx)
	assert.Equal(t, wantV, gotV)

	gotR, err := pg.FetchRegulations(ctx)
	require.NoError(t, err)
	wantR, _ := mem.FetchRegulations(ctx)
	require.Len(t, gotR, len(wantR))
	for i := range wantR {
		assert.Equal(t, wantR[i].Name, gotR[i].Name)
		assert.Equal(t, wantR[i].Status, gotR[i].Status)
		assert.Equal(t, wantR[i].EffectiveDate.String(), gotR[i].EffectiveDate.String())
	}

	gotE, err := pg.FetchEdges(ctx)
	require.NoError(t, err)
	wantE, _ := mem.FetchEdges(ctx)
	assert.Equal(t, wantE, gotE)

	h, err := pg.FetchContractHealth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), h.GasUsage)
	assert.Equal(t, 85.0, h.SecurityScore)
	assert.Equal(t, 3, h.Complexity)
}

func TestPostgresSource_EmptyContractHealth(t *testing.T) {
	db := testutil.PGTest(t)
	_, err := db.Exec(`DELETE FROM contract_health`)
	require.NoError(t, err)

	_, err = NewPostgresSource(db).FetchContractHealth(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresSource_ClampsStoredScores(t *testing.T) {
	db := testutil.PGTest(t)
	_, err := db.Exec(`UPDATE wallets SET risk_score = 140 WHERE id = '0x123'`)
	require.NoError(t, err)

	wallets, err := NewPostgresSource(db).FetchWallets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100.0, wallets[0].RiskScore)
}
