package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/avcrm/identity/internal/core/domain"
)

func TestLoginEventRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	accountID := uuid.New()
	at := time.Date(2024, 10, 22, 14, 0, 0, 0, time.UTC)

	mt.Run("insert", func(mt *mtest.T) {
		repo := NewLoginEventRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := repo.Insert(context.Background(), &domain.LoginEvent{
			AccountID: accountID,
			Username:  "alice",
			IPAddress: "10.0.0.1",
			UserAgent: "curl/8.0",
			At:        at,
		})
		require.NoError(mt, err)
	})

	mt.Run("insert write error", func(mt *mtest.T) {
		repo := NewLoginEventRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		err := repo.Insert(context.Background(), &domain.LoginEvent{AccountID: accountID, At: at})
		assert.ErrorContains(mt, err, "insert login event")
	})

	mt.Run("list by account", func(mt *mtest.T) {
		repo := NewLoginEventRepository(mt.DB)
		ns := mt.DB.Name() + "." + loginEventsCollection

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{
				{Key: "account_id", Value: accountID.String()},
				{Key: "username", Value: "alice"},
				{Key: "agent_data", Value: bson.D{
					{Key: "ip_address", Value: "10.0.0.2"},
					{Key: "user_agent", Value: "firefox"},
				}},
				{Key: "created_at", Value: at.Add(time.Hour)},
			},
			bson.D{
				{Key: "account_id", Value: accountID.String()},
				{Key: "username", Value: "alice"},
				{Key: "agent_data", Value: bson.D{{Key: "ip_address", Value: "10.0.0.1"}}},
				{Key: "created_at", Value: at},
			},
		))

		events, err := repo.ListByAccount(context.Background(), accountID, 10)
		require.NoError(mt, err)
		require.Len(mt, events, 2)
		assert.Equal(mt, accountID, events[0].AccountID)
		assert.Equal(mt, "firefox", events[0].UserAgent)
		assert.True(mt, events[0].At.Equal(at.Add(time.Hour)))
		assert.Equal(mt, "10.0.0.1", events[1].IPAddress)
	})

	mt.Run("list empty", func(mt *mtest.T) {
		repo := NewLoginEventRepository(mt.DB)
		ns := mt.DB.Name() + "." + loginEventsCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		events, err := repo.ListByAccount(context.Background(), accountID, 0)
		require.NoError(mt, err)
		assert.Empty(mt, events)
	})

	mt.Run("list command error", func(mt *mtest.T) {
		repo := NewLoginEventRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Name:    "BadValue",
			Message: "bad query",
		}))

		_, err := repo.ListByAccount(context.Background(), accountID, 10)
		assert.ErrorContains(mt, err, "find login events")
	})

	mt.Run("list corrupt account id", func(mt *mtest.T) {
		repo := NewLoginEventRepository(mt.DB)
		ns := mt.DB.Name() + "." + loginEventsCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "account_id", Value: "not-a-uuid"}, {Key: "created_at", Value: at}},
		))

		_, err := repo.ListByAccount(context.Background(), accountID, 10)
		assert.ErrorContains(mt, err, "decode login event")
	})

	mt.Run("ensure indexes", func(mt *mtest.T) {
		repo := NewLoginEventRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		assert.NoError(mt, repo.EnsureIndexes(context.Background()))
	})
}
