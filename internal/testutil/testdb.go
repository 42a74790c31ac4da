package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"creatorhub/database"
	"creatorhub/internal/config"
	"creatorhub/internal/models"
	chatmodels "creatorhub/internal/models/chat"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

// NewDB opens a migrated in-memory sqlite store private to the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:chat_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", DSN: dsn}, "test")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// CreateUser inserts a user with the given name.
func CreateUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()

	user := &models.User{Name: name}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateRoom inserts a public topic room owned by creator.
func CreateRoom(t *testing.T, db *gorm.DB, creator *models.User, name string, maxUsers int) *chatmodels.Room {
	t.Helper()

	room := &chatmodels.Room{
		Name:      name,
		Kind:      models.RoomKindTopic,
		Category:  "general",
		MaxUsers:  maxUsers,
		CreatorID: creator.ID,
	}
	require.NoError(t, db.Create(room).Error)
	return room
}
