// Package storetest opens throwaway in-memory databases for tests.
package storetest

import (
	"fmt"
	"testing"
	"time"

	"offertpilot/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory SQLite database private to the test.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, models.Migrate(db))
	return db
}

// SeedWorkspace creates a workspace receiving mail at inbound, with a default
// sequence made of steps.
func SeedWorkspace(t testing.TB, db *gorm.DB, inbound string, steps ...models.SequenceStep) *models.Workspace {
	t.Helper()

	signature := "Mvh, Städbolaget"
	workspace := &models.Workspace{
		Slug:                uuid.NewString(),
		CompanyName:         "Städbolaget AB",
		SenderName:          "Städbolaget",
		SenderEmail:         "hej@stadbolaget.se",
		Signature:           &signature,
		InboundEmailAddress: &inbound,
	}
	require.NoError(t, db.Create(workspace).Error)

	sequence := &models.Sequence{
		WorkspaceID: workspace.ID,
		Name:        models.DefaultSequenceName,
		IsDefault:   true,
		IsActive:    true,
		Steps:       steps,
	}
	require.NoError(t, db.Create(sequence).Error)
	return workspace
}

// Step builds a sequence step.
func Step(number, delayDays int, subject, body string) models.SequenceStep {
	return models.SequenceStep{
		StepNumber:      number,
		DelayDays:       delayDays,
		SubjectTemplate: subject,
		BodyTemplate:    body,
	}
}
