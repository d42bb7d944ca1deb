package models

import (
	"log"

	"gorm.io/gorm"
)

// AutoMigrate создает таблицы MRP в БД
func AutoMigrate(db *gorm.DB) error {
	tables := []interface{}{
		&ProductConfig{},
		&BOMEntry{},
		&OrderItem{},
		&FinishedGood{},
		&RawMaterial{},
		&ManufacturingOrder{},
		&StepInstance{},
		&StepInstanceCounter{},
		&ManufacturingStep{},
	}

	for _, table := range tables {
		if err := db.AutoMigrate(table); err != nil {
			log.Printf("❌ AutoMigrate для %T failed: %v", table, err)
			return err
		}
	}
	log.Printf("✅ MRP tables migrated successfully (%d)", len(tables))

	// RPC для определения мерчанта по пользователю, если его еще не создала основная ERP
	if err := db.Exec(`
		CREATE OR REPLACE FUNCTION get_user_merchant_id(p_user_id uuid) RETURNS uuid AS $$
			SELECT merchant_id FROM profiles WHERE id = p_user_id
		$$ LANGUAGE sql STABLE
	`).Error; err != nil {
		log.Printf("⚠️ Не удалось создать функцию get_user_merchant_id: %v", err)
	}

	return nil
}
