package db

import (
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/niblr/concierge/internal/catalog"
	"github.com/niblr/concierge/internal/chat"
	"github.com/niblr/concierge/internal/models"
)

func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	if err := gdb.AutoMigrate(
		&models.User{},
		&chat.Session{},
		&chat.Job{},
		&catalog.Item{},
	); err != nil {
		log.Fatalf("db automigrate: %v", err)
	}
	return gdb
}
