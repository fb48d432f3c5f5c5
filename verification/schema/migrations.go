package schema

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func Migrations(db *gorm.DB) *gormigrate.Gormigrate {
	return gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "0_initial_schema",
			Migrate: func(txn *gorm.DB) error {
				return txn.AutoMigrate(
					&VerificationApplication{}, &CatalogEntry{}, &CatalogImage{},
					&UserProfile{}, &GuildConfig{},
				)
			},
			Rollback: func(txn *gorm.DB) error {
				return txn.Migrator().DropTable(
					&VerificationApplication{}, &CatalogEntry{}, &CatalogImage{},
					&UserProfile{}, &GuildConfig{},
				)
			},
		},
	})
}
