package testutil

import (
	"fmt"
	"log/slog"
	"os"

	employeeDatamodel "github.com/frahmantamala/securemind/internal/core/datamodel/employee"
	factDatamodel "github.com/frahmantamala/securemind/internal/core/datamodel/fact"
	identityDatamodel "github.com/frahmantamala/securemind/internal/core/datamodel/identity"
	notificationDatamodel "github.com/frahmantamala/securemind/internal/core/datamodel/notification"
	preapprovalDatamodel "github.com/frahmantamala/securemind/internal/core/datamodel/preapproval"
	userDatamodel "github.com/frahmantamala/securemind/internal/core/datamodel/user"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory sqlite database with every table migrated.
// A single connection keeps the memory database alive for the test's lifetime.
func NewDB() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&identityDatamodel.Account{},
		&userDatamodel.User{},
		&employeeDatamodel.Employee{},
		&preapprovalDatamodel.Preapproval{},
		&notificationDatamodel.Notification{},
		&factDatamodel.Fact{},
	)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}
