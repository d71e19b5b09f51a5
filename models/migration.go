package models

import (
	"log"

	"github.com/kaspidesk/stocks_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&User{},
		&Company{},
		&Store{},
		&Offer{},
		&OfferImportJob{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
