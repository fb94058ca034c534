package db

import "polyresearch/internal/models"

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil {
		return nil
	}
	return db.Gorm.AutoMigrate(
		&models.Market{},
		&models.ResearchTask{},
		&models.ResearchSource{},
		&models.Evaluation{},
		&models.TaskEvent{},
	)
}
