package repositories

import (
	"gorm.io/gorm"
)

// TxManager runs a function inside a database transaction, optionally
// serialized on a string key via a Postgres advisory lock. Concurrent
// callers with the same key queue behind each other; the lock releases
// automatically at commit or rollback.
type TxManager interface {
	WithLock(db *gorm.DB, key string, fn func(tx *gorm.DB) error) error
	// Lock takes an additional advisory lock inside an already-open
	// transaction, for flows that discover a second key mid-transaction.
	Lock(tx *gorm.DB, key string) error
	Transaction(db *gorm.DB, fn func(tx *gorm.DB) error) error
}

type TxManagerImpl struct{}

func NewTxManager() TxManager {
	return &TxManagerImpl{}
}

func (m *TxManagerImpl) WithLock(db *gorm.DB, key string, fn func(tx *gorm.DB) error) error {
	return db.Transaction(func(tx *gorm.DB) error {
		// hashtext folds the key into the bigint space advisory locks use.
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", key).Error; err != nil {
			return err
		}
		return fn(tx)
	})
}

func (m *TxManagerImpl) Lock(tx *gorm.DB, key string) error {
	return tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", key).Error
}

func (m *TxManagerImpl) Transaction(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.Transaction(fn)
}
