package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireGameSettlementLock serializes settlement per game across instances
// using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB that will do the settlement transaction.
func AcquireGameSettlementLock(tx *gorm.DB, gameId string) error {
	lockName := fmt.Sprintf("settlement:%s", gameId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire settlement lock for game_id=%s", gameId)
	}
	return nil
}

func ReleaseGameSettlementLock(tx *gorm.DB, gameId string) {
	lockName := fmt.Sprintf("settlement:%s", gameId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
