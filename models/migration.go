package models

import (
	"github.com/mmdatafocus/beergame_backend/config"
	"github.com/mmdatafocus/beergame_backend/utils"
)

func MigrateTable() {
	db := config.GetDB()
	err := db.AutoMigrate(
		&Game{},
		&Player{},
		&ShipmentOrder{},
		&GameWeek{},
		&GameEventRecord{},
	)
	utils.ErrorPanic(err)
}
