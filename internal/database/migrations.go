package database

import (
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// normalizeWalletAddresses lowercases stored addresses. Mixed-case rows that
// collide with an existing lowercase row are dropped first.
func normalizeWalletAddresses(db *gorm.DB) error {
	if db.Migrator().HasTable("tracked_wallets") {
		result := db.Exec(`
			DELETE FROM tracked_wallets
			WHERE address != LOWER(address)
			AND LOWER(address) IN (SELECT address FROM tracked_wallets WHERE address = LOWER(address))
		`)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			log.Infof("Removed %d mixed-case duplicate tracked wallets", result.RowsAffected)
		}

		result = db.Exec(`UPDATE tracked_wallets SET address = LOWER(address) WHERE address != LOWER(address)`)
		if result.Error != nil {
			return result.Error
		}
	}

	if db.Migrator().HasTable("portfolio_snapshots") {
		result := db.Exec(`UPDATE portfolio_snapshots SET wallet_address = LOWER(wallet_address) WHERE wallet_address != LOWER(wallet_address)`)
		if result.Error != nil {
			log.Warnf("Failed to normalize snapshot wallet addresses: %v", result.Error)
		}
	}

	return nil
}

// cleanupDuplicateSnapshots keeps the newest snapshot per wallet and day so the
// unique (wallet_address, snapshot_date) index can be created
func cleanupDuplicateSnapshots(db *gorm.DB) error {
	if !db.Migrator().HasTable("portfolio_snapshots") {
		return nil
	}

	result := db.Exec(`
		DELETE FROM portfolio_snapshots
		WHERE id NOT IN (
			SELECT MAX(id)
			FROM portfolio_snapshots
			GROUP BY wallet_address, snapshot_date
		)
	`)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected > 0 {
		log.Infof("Cleaned up %d duplicate portfolio snapshots", result.RowsAffected)
	}
	return nil
}

// RunMigrations runs any custom data migrations after schema changes
func RunMigrations(db *gorm.DB) error {
	return backfillSnapshotRunIDs(db)
}

// backfillSnapshotRunIDs tags snapshots written before runs were recorded
func backfillSnapshotRunIDs(db *gorm.DB) error {
	result := db.Exec(`UPDATE portfolio_snapshots SET run_id = 'legacy' WHERE run_id IS NULL OR run_id = ''`)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		log.Infof("Backfilled run id on %d portfolio snapshots", result.RowsAffected)
	}
	return nil
}
