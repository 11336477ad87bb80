package db

import (
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/lectigo/lectigo/internal/dialogue"
	"github.com/lectigo/lectigo/internal/models"
)

// Connect opens the configured database. driver is "mysql" or "sqlite";
// sqlite is the zero-config option for local development and tests.
func Connect(driver, dsn string) *gorm.DB {
	var (
		gdb *gorm.DB
		err error
	)
	switch driver {
	case "sqlite":
		gdb, err = gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	default:
		gdb, err = gorm.Open(mysql.Open(dsn), &gorm.Config{})
	}
	if err != nil {
		logrus.WithError(err).WithField("driver", driver).Fatal("db connect failed")
	}
	return gdb
}

func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.User{},
		&models.EmotionalEntry{},
		&dialogue.Session{},
		&dialogue.Message{},
		&dialogue.ParamSnapshot{},
		&dialogue.ProgressEntry{},
		&dialogue.SummaryJob{},
	)
}
