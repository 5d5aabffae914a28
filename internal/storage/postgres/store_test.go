package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/memearena/internal/domain"
)

// openTestDB connects to MEMEARENA_TEST_DSN with the schema already migrated.
// The tests are skipped when the variable is unset.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("MEMEARENA_TEST_DSN")
	if dsn == "" {
		t.Skip("MEMEARENA_TEST_DSN not set")
	}
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`TRUNCATE contest_results, memes, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return db
}

func TestUsersAndMemesRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	store := New(db)
	now := time.Now().UTC().Truncate(time.Millisecond)

	u, err := store.Users().Touch(ctx, domain.Profile{ID: 7, Username: "Trinity"}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)

	found, err := store.Users().FindByUsername(ctx, "@trinity")
	require.NoError(t, err)
	assert.Equal(t, int64(7), found.ID)

	a := domain.Artifact{Ref: "r1", URL: "/r1.png", OwnerID: 7, Kind: domain.KindAI, CreatedAt: now}
	require.NoError(t, store.Memes().Create(ctx, &a))
	assert.NotZero(t, a.ID)

	n, err := store.Memes().CountByOwnerKindSince(ctx, 7, domain.KindAI, domain.StartOfDayUTC(now))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.Memes().Publish(ctx, "r1", 8, now)
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)
	pub, err := store.Memes().Publish(ctx, "r1", 7, now)
	require.NoError(t, err)
	assert.True(t, pub.PublishedToFeed)

	assert.ErrorIs(t, store.Users().SetAdmin(ctx, 99, true), domain.ErrUserNotFound)
}

func TestLedgerSerializesConcurrentEnds(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	store := New(db)
	now := time.Now().UTC()

	_, err := store.Users().Touch(ctx, domain.Profile{ID: 1}, now)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		a := domain.Artifact{Ref: fmt.Sprintf("c%d", i), URL: "/x", OwnerID: 1, Kind: domain.KindAI, CreatedAt: now}
		require.NoError(t, store.Memes().Create(ctx, &a))
		require.NoError(t, store.Ledger().Enter(ctx, a.Ref, 1, now.Add(time.Duration(i)*time.Second)))
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		ended int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Ledger().Atomically(ctx, func(ctx context.Context, tx domain.ContestTx) error {
				entries, err := tx.Entries(ctx)
				if err != nil || len(entries) < 5 {
					return err
				}
				ids := make([]int64, len(entries))
				for i, e := range entries {
					ids[i] = e.ID
				}
				if _, err := tx.GrantPremium(ctx, entries[0].OwnerID, now); err != nil {
					return err
				}
				if err := tx.Clear(ctx, ids); err != nil {
					return err
				}
				mu.Lock()
				ended++
				mu.Unlock()
				return tx.Record(ctx, &domain.ContestResult{
					WinnerMemeID: entries[0].ID, WinnerUserID: 1, Participants: len(entries), Reason: "test", EndedAt: now,
				})
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ended)
	n, err := store.Ledger().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
