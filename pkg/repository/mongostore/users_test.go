package mongostore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-todo/pkg/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func userDoc(id uuid.UUID, email string) bson.D {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return bson.D{
		{Key: "_id", Value: id.String()},
		{Key: "email", Value: email},
		{Key: "username", Value: "alice"},
		{Key: "password_hash", Value: "hash"},
		{Key: "first_name", Value: "A"},
		{Key: "last_name", Value: "B"},
		{Key: "email_verified", Value: true},
		{Key: "verification_code", Value: "042917"},
		{Key: "failed_login_attempts", Value: int32(3)},
		{Key: "created_at", Value: now},
		{Key: "updated_at", Value: now},
	}
}

func TestUsers(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	mt.Run("create duplicate email", func(mt *mtest.T) {
		store := NewUsers(mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: todo.users index: users_email_key dup key",
		}))

		err := store.Create(context.Background(), &domain.User{ID: uuid.New(), Email: "a@x.com"})
		assert.ErrorIs(mt, err, domain.ErrUserAlreadyExists)
	})

	mt.Run("create duplicate username", func(mt *mtest.T) {
		store := NewUsers(mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: todo.users index: users_username_key dup key",
		}))

		err := store.Create(context.Background(), &domain.User{ID: uuid.New(), Username: "alice"})
		assert.ErrorIs(mt, err, domain.ErrUsernameAlreadyExists)
	})

	mt.Run("get by email", func(mt *mtest.T) {
		store := NewUsers(mt.Coll)
		id := uuid.New()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "todo.users", mtest.FirstBatch, userDoc(id, "a@x.com")))

		got, err := store.GetByEmail(context.Background(), "a@x.com")
		require.NoError(mt, err)
		assert.Equal(mt, id, got.ID)
		assert.Equal(mt, "alice", got.Username)
		assert.True(mt, got.EmailVerified)
		assert.Equal(mt, 3, got.FailedLoginAttempts)
		require.NotNil(mt, got.VerificationCode)
		assert.Equal(mt, "042917", *got.VerificationCode)
		assert.Nil(mt, got.ResetCode)
		assert.Nil(mt, got.LockedUntil)
	})

	mt.Run("get by code not found", func(mt *mtest.T) {
		store := NewUsers(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "todo.users", mtest.FirstBatch))

		_, err := store.GetByResetCode(context.Background(), "000000")
		assert.ErrorIs(mt, err, domain.ErrUserNotFound)
	})

	mt.Run("update lockout compare and swap", func(mt *mtest.T) {
		store := NewUsers(mt.Coll)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
		)

		until := time.Now().Add(30 * time.Minute)
		state := domain.LockoutState{FailedLoginAttempts: 5, LockedUntil: &until}

		ok, err := store.UpdateLockout(context.Background(), uuid.New(), 4, state)
		require.NoError(mt, err)
		assert.True(mt, ok)

		ok, err = store.UpdateLockout(context.Background(), uuid.New(), 4, state)
		require.NoError(mt, err)
		assert.False(mt, ok)
	})

	mt.Run("rotate refresh token", func(mt *mtest.T) {
		store := NewUsers(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		ok, err := store.RotateRefreshToken(context.Background(), uuid.New(), "stale", nil, nil)
		require.NoError(mt, err)
		assert.False(mt, ok)
	})

	mt.Run("delete missing user", func(mt *mtest.T) {
		store := NewUsers(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		err := store.Delete(context.Background(), uuid.New())
		assert.ErrorIs(mt, err, domain.ErrUserNotFound)
	})

	mt.Run("set reset code writes only its own fields", func(mt *mtest.T) {
		store := NewUsers(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))

		now := time.Now()
		require.NoError(mt, store.SetResetCode(context.Background(), uuid.New(), "123456", now.Add(time.Hour), now))

		set := mt.GetStartedEvent().Command.Lookup("updates", "0", "u", "$set").Document()
		assert.Equal(mt, "123456", set.Lookup("reset_code").StringValue())
		for _, key := range []string{"refresh_token_hash", "failed_login_attempts", "locked_until", "password_hash"} {
			_, err := set.LookupErr(key)
			assert.Error(mt, err, key)
		}
	})

	mt.Run("set reset code missing user", func(mt *mtest.T) {
		store := NewUsers(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		now := time.Now()
		err := store.SetResetCode(context.Background(), uuid.New(), "123456", now.Add(time.Hour), now)
		assert.ErrorIs(mt, err, domain.ErrUserNotFound)
	})

	mt.Run("mark verified with a consumed code", func(mt *mtest.T) {
		store := NewUsers(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		ok, err := store.MarkVerified(context.Background(), uuid.New(), "042917", time.Now())
		require.NoError(mt, err)
		assert.False(mt, ok)

		filter := mt.GetStartedEvent().Command.Lookup("updates", "0", "q").Document()
		assert.Equal(mt, "042917", filter.Lookup("verification_code").StringValue())
	})

	mt.Run("record login after a concurrent failure", func(mt *mtest.T) {
		store := NewUsers(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		now := time.Now()
		ok, err := store.RecordLogin(context.Background(), uuid.New(), 4, "refresh", now.Add(time.Hour), now)
		require.NoError(mt, err)
		assert.False(mt, ok)
	})

	mt.Run("consume reset code", func(mt *mtest.T) {
		store := NewUsers(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))

		ok, err := store.ConsumeResetCode(context.Background(), uuid.New(), "123456", "new-hash", time.Now())
		require.NoError(mt, err)
		assert.True(mt, ok)
	})

	mt.Run("update profile missing user", func(mt *mtest.T) {
		store := NewUsers(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		err := store.UpdateProfile(context.Background(), uuid.New(), domain.Profile{Username: "bob"}, time.Now())
		assert.ErrorIs(mt, err, domain.ErrUserNotFound)
	})

	mt.Run("update profile username taken", func(mt *mtest.T) {
		store := NewUsers(mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: todo.users index: users_username_key dup key",
		}))

		err := store.UpdateProfile(context.Background(), uuid.New(), domain.Profile{Username: "bob"}, time.Now())
		assert.ErrorIs(mt, err, domain.ErrUsernameAlreadyExists)
	})
}
