package grade

import (
	"context"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"schoolapi/backend/internal/shared"
)

// TestMongoRepository_Integration runs the bulk upsert against a real
// MongoDB when MONGO_URI is available.
func TestMongoRepository_Integration(t *testing.T) {
	_ = godotenv.Load("../../../.env")
	uri := shared.GetEnv("MONGO_URI", "")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}

	cfg := shared.DefaultMongoConfig(uri, "school_grade_test")
	cfg.ConnectTimeout = 10 * time.Second
	client, db, err := shared.ConnectMongoDB(cfg)
	require.NoError(t, err, "Failed to connect to MongoDB")
	defer shared.DisconnectMongoDB(client)

	ctx := context.Background()
	db.Drop(ctx)
	defer db.Drop(ctx)

	repo := NewMongoRepository(db)
	key := Key{StudentID: "s1", ClassID: "class-1", SubjectID: "math"}

	t.Run("Resubmission keeps one record and the later values", func(t *testing.T) {
		require.NoError(t, repo.UpsertMany(ctx, []Upsert{{Key: key, Scores: Scores{CW1: f(5), Midterm: f(20)}}}))
		require.NoError(t, repo.UpsertMany(ctx, []Upsert{{Key: key, Scores: Scores{CW1: f(7), Final: f(45)}}}))

		grades, err := repo.Find(ctx, Filter{StudentID: "s1"})
		require.NoError(t, err)
		require.Len(t, grades, 1)

		g := grades[0]
		assert.Equal(t, 7.0, *g.CW1)
		assert.Equal(t, 20.0, *g.Midterm)
		assert.Equal(t, 45.0, *g.Final)
		assert.Nil(t, g.CW2)
		assert.Equal(t, 72.0, g.Total)
		assert.False(t, g.CreatedAt.IsZero())
	})

	t.Run("Record id is a string", func(t *testing.T) {
		grades, err := repo.Find(ctx, Filter{StudentID: "s1"})
		require.NoError(t, err)
		require.Len(t, grades, 1)

		n, err := db.Collection(shared.CollGrades).CountDocuments(ctx, bson.M{"_id": grades[0].ID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("Save replaces every component", func(t *testing.T) {
		other := Key{StudentID: "s2", ClassID: "class-1", SubjectID: "math"}
		require.NoError(t, repo.Save(ctx, other, Scores{CW1: f(9), Final: f(52)}))
		require.NoError(t, repo.Save(ctx, other, Scores{Midterm: f(28), Final: f(52)}))

		grades, err := repo.Find(ctx, Filter{StudentID: "s2"})
		require.NoError(t, err)
		require.Len(t, grades, 1)
		assert.Nil(t, grades[0].CW1)
		assert.Equal(t, 80.0, grades[0].Total)

		n, err := db.Collection(shared.CollGrades).CountDocuments(ctx, bson.M{"_id": grades[0].ID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}
