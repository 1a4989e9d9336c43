package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/avcrm/identity/internal/core/domain"
)

const (
	loginEventsCollection = "login_events"
	defaultListLimit      = 50
	maxListLimit          = 500
)

// LoginEventRepository stores the successful-login audit trail.
type LoginEventRepository struct {
	coll *mongo.Collection
}

func NewLoginEventRepository(db *mongo.Database) *LoginEventRepository {
	return &LoginEventRepository{coll: db.Collection(loginEventsCollection)}
}

type agentData struct {
	IPAddress string `bson:"ip_address,omitempty"`
	UserAgent string `bson:"user_agent,omitempty"`
	RequestID string `bson:"request_id,omitempty"`
}

type loginEventDoc struct {
	AccountID string    `bson:"account_id"`
	Username  string    `bson:"username"`
	Agent     agentData `bson:"agent_data"`
	CreatedAt time.Time `bson:"created_at"`
}

// EnsureIndexes creates the index backing ListByAccount.
func (r *LoginEventRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create login_events index: %w", err)
	}
	return nil
}

func (r *LoginEventRepository) Insert(ctx context.Context, event *domain.LoginEvent) error {
	doc := loginEventDoc{
		AccountID: event.AccountID.String(),
		Username:  event.Username,
		Agent: agentData{
			IPAddress: event.IPAddress,
			UserAgent: event.UserAgent,
			RequestID: event.RequestID,
		},
		CreatedAt: event.At.UTC(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert login event: %w", err)
	}
	return nil
}

// ListByAccount returns the newest events first. limit is clamped to
// [1, 500] and defaults to 50.
func (r *LoginEventRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.LoginEvent, error) {
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := r.coll.Find(ctx, bson.M{"account_id": accountID.String()}, opts)
	if err != nil {
		return nil, fmt.Errorf("find login events: %w", err)
	}
	defer cur.Close(ctx)

	events := make([]domain.LoginEvent, 0, limit)
	for cur.Next(ctx) {
		var doc loginEventDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode login event: %w", err)
		}
		id, err := uuid.Parse(doc.AccountID)
		if err != nil {
			return nil, fmt.Errorf("decode login event: %w", err)
		}
		events = append(events, domain.LoginEvent{
			AccountID: id,
			Username:  doc.Username,
			IPAddress: doc.Agent.IPAddress,
			UserAgent: doc.Agent.UserAgent,
			RequestID: doc.Agent.RequestID,
			At:        doc.CreatedAt.UTC(),
		})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate login events: %w", err)
	}
	return events, nil
}
