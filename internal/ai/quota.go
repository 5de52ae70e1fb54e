package ai

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrQuotaExceeded is returned when a user has burned through their daily
// token allowance.
var ErrQuotaExceeded = errors.New("daily quota exceeded")

// UserQuota tracks per-user daily LLM token usage.
type UserQuota struct {
	UserID          string    `bson:"user_id"`
	DailyTokenLimit int       `bson:"daily_token_limit"`
	TokensUsedToday int       `bson:"tokens_used_today"`
	RequestsToday   int       `bson:"requests_today"`
	LastResetDate   time.Time `bson:"last_reset_date"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

// CheckUserQuota verifies the user can spend estimatedTokens today and
// records the spend. A missing quota document is created with the default
// limit.
func CheckUserQuota(ctx context.Context, userID string, estimatedTokens int, db *mongo.Database) error {
	col := db.Collection("llm_quotas")

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	// Reset counters if the last reset was before today
	_, err := col.UpdateOne(ctx, bson.M{
		"user_id":         userID,
		"last_reset_date": bson.M{"$lt": today},
	}, bson.M{
		"$set": bson.M{
			"tokens_used_today": 0,
			"requests_today":    0,
			"last_reset_date":   today,
			"updated_at":        now,
		},
	})
	if err != nil {
		return err
	}

	var quota UserQuota
	err = col.FindOne(ctx, bson.M{"user_id": userID}).Decode(&quota)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			quota = UserQuota{
				UserID:          userID,
				DailyTokenLimit: 100000,
				LastResetDate:   today,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if _, err := col.InsertOne(ctx, quota); err != nil {
				return err
			}
		} else {
			return err
		}
	}

	if quota.TokensUsedToday+estimatedTokens > quota.DailyTokenLimit {
		return ErrQuotaExceeded
	}

	_, err = col.UpdateOne(
		ctx,
		bson.M{"user_id": userID},
		bson.M{
			"$inc": bson.M{
				"tokens_used_today": estimatedTokens,
				"requests_today":    1,
			},
			"$set": bson.M{
				"updated_at": now,
			},
		},
	)
	return err
}

// GetUserQuotaStatus returns the current quota document for a user.
func GetUserQuotaStatus(ctx context.Context, userID string, db *mongo.Database) (*UserQuota, error) {
	col := db.Collection("llm_quotas")

	var quota UserQuota
	if err := col.FindOne(ctx, bson.M{"user_id": userID}).Decode(&quota); err != nil {
		return nil, err
	}
	return &quota, nil
}

// SetUserQuotaLimit sets the daily token limit for a user, creating the
// quota document if needed.
func SetUserQuotaLimit(ctx context.Context, userID string, dailyLimit int, db *mongo.Database) error {
	col := db.Collection("llm_quotas")

	_, err := col.UpdateOne(
		ctx,
		bson.M{"user_id": userID},
		bson.M{
			"$set": bson.M{
				"daily_token_limit": dailyLimit,
				"updated_at":        time.Now(),
			},
		},
		options.Update().SetUpsert(true),
	)
	return err
}
