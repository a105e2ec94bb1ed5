package db_test

import (
	"context"
	"testing"
	"time"

	"tenderfinder/db"
	"tenderfinder/internal/apperror"
	"tenderfinder/models"

	"github.com/stretchr/testify/require"
)

func TestCreateUserDuplicate(t *testing.T) {
	users := db.NewUsers(newTestConn(t))
	ctx := context.Background()
	createUser(t, users, "alice")

	err := users.CreateUser(ctx, &models.User{Username: "alice", Email: "other@example.com", PasswordHash: "x"})
	require.Equal(t, apperror.KindAlreadyExists, apperror.KindOf(err))

	err = users.CreateUser(ctx, &models.User{Username: "other", Email: "alice@example.com", PasswordHash: "x"})
	require.Equal(t, apperror.KindAlreadyExists, apperror.KindOf(err))

	exists, err := users.ExistsByUsernameOrEmail(ctx, "nobody", "alice@example.com")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestSeedAdminOnce(t *testing.T) {
	users := db.NewUsers(newTestConn(t))
	ctx := context.Background()

	created, err := users.SeedAdmin(ctx, "admin", "admin@example.com", "hash")
	require.NoError(t, err)
	require.True(t, created)

	created, err = users.SeedAdmin(ctx, "admin", "admin@example.com", "hash")
	require.NoError(t, err)
	require.False(t, created)

	list, err := users.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.True(t, list[0].IsAdmin)
}

func TestToggleAdmin(t *testing.T) {
	users := db.NewUsers(newTestConn(t))
	ctx := context.Background()
	user := createUser(t, users, "bob")

	isAdmin, err := users.ToggleAdmin(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, isAdmin)

	got, err := users.GetUserByUsername(ctx, "bob")
	require.NoError(t, err)
	require.True(t, got.IsAdmin)

	_, err = users.ToggleAdmin(ctx, 999)
	require.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestDeleteUserCascades(t *testing.T) {
	conn := newTestConn(t)
	users := db.NewUsers(conn)
	ledger := db.NewLedger(conn)
	ctx := context.Background()
	now := time.Now().UTC()
	user := createUser(t, users, "carol")

	require.NoError(t, ledger.AddFavorite(ctx, user.ID, 1, now))
	require.NoError(t, ledger.RecordView(ctx, user.ID, 1, now))
	require.NoError(t, ledger.UpsertNote(ctx, user.ID, 1, "note", now))
	require.NoError(t, ledger.CreateWon(ctx, &models.WonTender{UserID: user.ID, LotID: 1, WonAt: now}))

	require.NoError(t, users.DeleteUser(ctx, user.ID))

	favorites, err := ledger.ListFavorites(ctx, user.ID)
	require.NoError(t, err)
	require.Empty(t, favorites)

	counters, err := ledger.Counters(ctx, user.ID)
	require.NoError(t, err)
	require.Zero(t, counters.ViewedCount)
	require.Zero(t, counters.FavoritesCount)
	require.Zero(t, counters.NotesCount)
	require.Zero(t, counters.WonCount)
	require.True(t, counters.TotalActualProfit.IsZero())

	_, err = users.GetUserByID(ctx, user.ID)
	require.Equal(t, apperror.KindNotFound, apperror.KindOf(err))

	err = users.DeleteUser(ctx, user.ID)
	require.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}
