package database

import (
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/CUknot/realty_crm/config"
	"github.com/CUknot/realty_crm/models"
	"github.com/CUknot/realty_crm/services"
)

// activeClaimIndex keeps a user to one non-rejected claim per referral.
// Concurrent claim transactions that both pass the application check are
// resolved here.
const activeClaimIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_claims_active
ON claims (referral_id, claimant_id) WHERE status <> 'rejected'`

// Connect establishes a connection to the database
func Connect(cfg config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	log.Println("Database connection established")
	return db, nil
}

// Migrate automatically migrates the database schema
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Referral{},
		&models.Claim{},
		&models.ReferralMessage{},
		&models.Thread{},
		&models.ThreadParticipant{},
		&models.Message{},
		&models.Contact{},
		&models.Interaction{},
		&models.Deal{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec(activeClaimIndex).Error; err != nil {
		return fmt.Errorf("create active claim index: %w", err)
	}

	log.Println("Database migration completed")
	return nil
}

// translateError maps driver errors onto the sentinels the services layer
// understands.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return services.ErrRecordNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", services.ErrDuplicate, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", services.ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

var (
	_ services.ReferralStore = (*ReferralStore)(nil)
	_ services.InboxStore    = (*InboxStore)(nil)
	_ services.ContactStore  = (*ContactStore)(nil)
	_ services.UserStore     = (*UserStore)(nil)
)
