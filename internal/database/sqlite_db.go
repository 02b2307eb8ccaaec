package bridgedb

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Maphikza/ln-settlement-bridge/internal/logger"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// sqlLogOutput receives gorm's SQL error traces.
var sqlLogOutput io.Writer = os.Stderr

// Store wraps the SQLite database holding wallets, payments and extension
// records.
type Store struct {
	db *gorm.DB
}

// InitSQLiteDB opens (and migrates) the SQLite database at dbPath
func InitSQLiteDB(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %v", err)
		}
	}

	// Lookups of absent rows are normal (they answer 404), not errors.
	config := &gorm.Config{
		Logger: gormlogger.New(log.New(sqlLogOutput, "\r\n", log.LstdFlags), gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Error,
			IgnoreRecordNotFoundError: true,
		}),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_busy_timeout=5000"), config)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	// SQLite serializes writers anyway; one connection avoids lock errors.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&SQLiteWallet{},
		&SQLitePayment{},
		&SQLitePaywall{},
		&SQLiteWithdrawTarget{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %v", err)
	}

	logger.Info("SQLite database initialized", "path", dbPath)
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// NewID returns a random 32 character hex identifier.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// CreateWallet creates a wallet with fresh admin and invoice keys. An empty
// userID starts a new user.
func (s *Store) CreateWallet(userID, name string) (*Wallet, error) {
	if userID == "" {
		userID = NewID()
	}

	row := SQLiteWallet{
		WalletID:   NewID(),
		Name:       name,
		UserID:     userID,
		AdminKey:   NewID(),
		InvoiceKey: NewID(),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to create wallet: %v", err)
	}

	return walletFromRow(row), nil
}

// GetWallet returns nil, nil when the wallet does not exist.
func (s *Store) GetWallet(walletID string) (*Wallet, error) {
	var row SQLiteWallet
	err := s.db.Where("wallet_id = ?", walletID).First(&row).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return walletFromRow(row), nil
}

// GetWalletForKey resolves an API key. keyType limits the lookup to admin
// keys when KeyTypeAdmin; KeyTypeInvoice accepts either key.
func (s *Store) GetWalletForKey(key string, keyType KeyType) (*Wallet, KeyType, error) {
	if key == "" {
		return nil, "", nil
	}

	var row SQLiteWallet
	err := s.db.Where("admin_key = ?", key).First(&row).Error
	if err == nil {
		return walletFromRow(row), KeyTypeAdmin, nil
	}
	if !isNotFound(err) {
		return nil, "", err
	}

	if keyType == KeyTypeAdmin {
		return nil, "", nil
	}

	err = s.db.Where("invoice_key = ?", key).First(&row).Error
	if err != nil {
		if isNotFound(err) {
			return nil, "", nil
		}
		return nil, "", err
	}
	return walletFromRow(row), KeyTypeInvoice, nil
}

// WalletIDsForUser lists every wallet id owned by userID.
func (s *Store) WalletIDsForUser(userID string) ([]string, error) {
	var ids []string
	err := s.db.Model(&SQLiteWallet{}).Where("user_id = ?", userID).Order("id").Pluck("wallet_id", &ids).Error
	return ids, err
}

func walletFromRow(row SQLiteWallet) *Wallet {
	return &Wallet{
		ID:         row.WalletID,
		Name:       row.Name,
		User:       row.UserID,
		AdminKey:   row.AdminKey,
		InvoiceKey: row.InvoiceKey,
	}
}

// CreatePayment records a new payment
func (s *Store) CreatePayment(p Payment) error {
	row := SQLitePayment{
		WalletID:    p.WalletID,
		PaymentHash: p.PaymentHash,
		AmountMsat:  p.AmountMsat,
		FeeMsat:     p.FeeMsat,
		Memo:        p.Memo,
		Bolt11:      p.Bolt11,
		Preimage:    p.Preimage,
		Pending:     p.Pending,
	}
	return s.db.Create(&row).Error
}

// GetPayment returns nil, nil when the wallet has no payment with that hash.
func (s *Store) GetPayment(walletID, paymentHash string) (*Payment, error) {
	var row SQLitePayment
	err := s.db.Where("wallet_id = ? AND payment_hash = ?", walletID, paymentHash).First(&row).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	p := paymentFromRow(row)
	return &p, nil
}

// GetIncomingPayment finds the invoice with paymentHash in any wallet.
func (s *Store) GetIncomingPayment(paymentHash string) (*Payment, error) {
	var row SQLitePayment
	err := s.db.Where("payment_hash = ? AND amount_msat > 0", paymentHash).First(&row).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	p := paymentFromRow(row)
	return &p, nil
}

// MarkPaymentSettled flips a pending payment to settled. It reports false
// when the payment was already settled or does not exist, so concurrent
// callers see exactly one transition.
func (s *Store) MarkPaymentSettled(walletID, paymentHash string) (bool, error) {
	res := s.db.Model(&SQLitePayment{}).
		Where("wallet_id = ? AND payment_hash = ? AND pending = ?", walletID, paymentHash, true).
		Update("pending", false)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CompleteOutgoingPayment settles an outgoing payment with its final fee
// and preimage.
func (s *Store) CompleteOutgoingPayment(walletID, paymentHash, preimage string, feeMsat int64) error {
	res := s.db.Model(&SQLitePayment{}).
		Where("wallet_id = ? AND payment_hash = ? AND pending = ?", walletID, paymentHash, true).
		Updates(map[string]interface{}{
			"pending":  false,
			"preimage": preimage,
			"fee_msat": feeMsat,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("payment not found")
	}
	return nil
}

// DeletePayment removes a payment for good, used when an outgoing payment
// fails before settling.
func (s *Store) DeletePayment(walletID, paymentHash string) error {
	return s.db.Unscoped().
		Where("wallet_id = ? AND payment_hash = ?", walletID, paymentHash).
		Delete(&SQLitePayment{}).Error
}

// ListPayments returns the wallet's payments matching filter, newest first.
func (s *Store) ListPayments(walletID string, filter PaymentFilter) ([]Payment, error) {
	if !(filter.Pending || filter.Complete) || !(filter.Incoming || filter.Outgoing) {
		return []Payment{}, nil
	}

	q := s.db.Where("wallet_id = ?", walletID)

	if filter.Pending && !filter.Complete {
		q = q.Where("pending = ?", true)
	} else if filter.Complete && !filter.Pending {
		q = q.Where("pending = ?", false)
	}

	if filter.Outgoing && !filter.Incoming {
		q = q.Where("amount_msat < 0")
	} else if filter.Incoming && !filter.Outgoing {
		q = q.Where("amount_msat > 0")
	}

	var rows []SQLitePayment
	if err := q.Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}

	payments := make([]Payment, len(rows))
	for i, row := range rows {
		payments[i] = paymentFromRow(row)
	}
	return payments, nil
}

// WalletBalanceMsat sums settled payments plus pending outgoing ones, which
// stay reserved until they settle or are deleted.
func (s *Store) WalletBalanceMsat(walletID string) (int64, error) {
	var balance int64
	err := s.db.Model(&SQLitePayment{}).
		Select("COALESCE(SUM(amount_msat - fee_msat), 0)").
		Where("wallet_id = ? AND (pending = ? OR amount_msat < 0)", walletID, false).
		Scan(&balance).Error
	return balance, err
}

func paymentFromRow(row SQLitePayment) Payment {
	return Payment{
		PaymentHash: row.PaymentHash,
		WalletID:    row.WalletID,
		AmountMsat:  row.AmountMsat,
		FeeMsat:     row.FeeMsat,
		Memo:        row.Memo,
		Bolt11:      row.Bolt11,
		Preimage:    row.Preimage,
		Pending:     row.Pending,
		CreatedAt:   row.CreatedAt,
	}
}
