package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/smarthome/internal/apperrors"
	"github.com/nkiryanov/smarthome/internal/models"
	"github.com/nkiryanov/smarthome/internal/repository"
	"github.com/nkiryanov/smarthome/internal/testutil"
)

func Test_UserRepo(t *testing.T) {
	t.Parallel() // It's ok to run in parallel with other tests, but not with subtests

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	params := repository.CreateUserParams{
		Username:     "alice",
		PasswordHash: "hashedpassword123",
		Role:         models.RoleUser,
	}

	t.Run("create user ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			user, err := r.CreateUser(t.Context(), params)

			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, user.ID)
			assert.Equal(t, "alice", user.Username)
			assert.Equal(t, "hashedpassword123", user.HashedPassword)
			assert.Equal(t, models.RoleUser, user.Role.Name)
			assert.Nil(t, user.ContactID, "contact is not set for new user")
			assert.WithinDuration(t, time.Now(), user.CreatedAt, time.Second, "CreatedAt should be recent")
		})
	})

	t.Run("create user loads role permissions", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			user, err := r.CreateUser(t.Context(), params)
			require.NoError(t, err)
			admin, err := r.CreateUser(t.Context(), repository.CreateUserParams{Username: "root", PasswordHash: "hash", Role: models.RoleAdmin})
			require.NoError(t, err)

			assert.ElementsMatch(t, []string{"DEVICE:READ", "ROOM:READ", "MODE:READ"}, user.Role.Authorities())
			assert.Len(t, admin.Role.Permissions, 12, "admin has every operation on every resource")
			assert.Contains(t, admin.Role.Authorities(), "DEVICE:DELETE")
		})
	})

	t.Run("create user twice", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			_, err := r.CreateUser(t.Context(), params)
			require.NoError(t, err)

			_, err = r.CreateUser(t.Context(), params)

			require.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
		})
	})

	t.Run("create user with unknown role", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			_, err := r.CreateUser(t.Context(), repository.CreateUserParams{Username: "bob", PasswordHash: "hash", Role: "GUEST"})

			require.ErrorIs(t, err, apperrors.ErrRoleNotFound)
		})
	})

	t.Run("get user by id ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), params)
			require.NoError(t, err)

			got, err := r.GetUserByID(t.Context(), created.ID)

			require.NoError(t, err)
			assert.Equal(t, created, got)
		})
	})

	t.Run("get user by id not found", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			_, err := r.GetUserByID(t.Context(), uuid.New())

			assert.ErrorIs(t, err, apperrors.ErrUserNotFound, "should return well known error")
		})
	})

	t.Run("get user by username ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), params)
			require.NoError(t, err)

			got, err := r.GetUserByUsername(t.Context(), "alice")

			require.NoError(t, err)
			assert.Equal(t, created, got)
		})
	})

	t.Run("get user by username not found", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			_, err := r.GetUserByUsername(t.Context(), "nonexistentuser")

			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})

	t.Run("update password", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), params)
			require.NoError(t, err)

			err = r.UpdatePassword(t.Context(), created.ID, "newhash")

			require.NoError(t, err)
			got, err := r.GetUserByID(t.Context(), created.ID)
			require.NoError(t, err)
			assert.Equal(t, "newhash", got.HashedPassword)
		})
	})

	t.Run("update contact", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), params)
			require.NoError(t, err)
			contactID := int64(424242)

			err = r.UpdateContact(t.Context(), created.ID, &contactID)

			require.NoError(t, err)
			got, err := r.GetUserByID(t.Context(), created.ID)
			require.NoError(t, err)
			require.NotNil(t, got.ContactID)
			assert.Equal(t, contactID, *got.ContactID)
		})
	})

	t.Run("update not existed user", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			err := r.UpdatePassword(t.Context(), uuid.New(), "newhash")

			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})
}
