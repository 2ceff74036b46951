package migrations

import (
	"github.com/Jelikton/iptv-checker/internal/models"
	"gorm.io/gorm"
)

// AllMigrations returns every migration in version order.
func AllMigrations() []Migration {
	return []Migration{
		migration001ProbeHistory(),
		migration002OutcomeLookup(),
	}
}

func migration001ProbeHistory() Migration {
	return Migration{
		Version:     "001",
		Description: "Create probe_rounds and probe_outcomes",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.ProbeRound{}, &models.ProbeOutcome{})
		},
		Down: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&models.ProbeOutcome{}, &models.ProbeRound{})
		},
	}
}

const outcomeLookupIndex = "idx_probe_outcomes_round_number"

// Outcomes are read per round in channel order.
func migration002OutcomeLookup() Migration {
	return Migration{
		Version:     "002",
		Description: "Index probe_outcomes by round and channel number",
		Up: func(tx *gorm.DB) error {
			if tx.Migrator().HasIndex(&models.ProbeOutcome{}, outcomeLookupIndex) {
				return nil
			}
			return tx.Exec("CREATE INDEX " + outcomeLookupIndex +
				" ON probe_outcomes (round_id, number)").Error
		},
		Down: func(tx *gorm.DB) error {
			if !tx.Migrator().HasIndex(&models.ProbeOutcome{}, outcomeLookupIndex) {
				return nil
			}
			return tx.Migrator().DropIndex(&models.ProbeOutcome{}, outcomeLookupIndex)
		},
	}
}
