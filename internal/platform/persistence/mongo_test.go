package persistence

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/lma-docpulse/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestMongoDB_DatabaseAndCollection(t *testing.T) {
	// mongo.Connect does not dial until first use
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI("mongodb://localhost:27017"))
	require.NoError(t, err)
	db := client.Database("docpulse")

	mdb := &MongoDB{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		client:   client,
		database: db,
	}
	assert.Equal(t, db, mdb.Database())
	assert.Equal(t, "alerts", mdb.Collection("alerts").Name())
	assert.Equal(t, "docpulse", mdb.Collection("alerts").Database().Name())
}

func TestNewMongoDB_InvalidURI(t *testing.T) {
	_, err := NewMongoDB(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)), &config.MongoDBConfig{
		URI:      "not-a-mongo-uri",
		Database: "docpulse",
		Timeout:  100 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to MongoDB")
}
