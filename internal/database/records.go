package bridgedb

import "fmt"

// CreatePaywall stores p under a fresh id and returns the stored record
func (s *Store) CreatePaywall(p Paywall) (*Paywall, error) {
	row := SQLitePaywall{
		PaywallID:   NewID(),
		WalletID:    p.Wallet,
		URL:         p.URL,
		Memo:        p.Memo,
		Description: p.Description,
		Amount:      p.Amount,
		Remembers:   p.Remembers,
	}
	if err := s.db.Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to create paywall: %v", err)
	}
	return paywallFromRow(row), nil
}

// GetPaywall returns nil, nil when absent.
func (s *Store) GetPaywall(id string) (*Paywall, error) {
	var row SQLitePaywall
	err := s.db.Where("paywall_id = ?", id).First(&row).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return paywallFromRow(row), nil
}

func (s *Store) ListPaywalls(walletIDs []string) ([]Paywall, error) {
	paywalls := []Paywall{}
	if len(walletIDs) == 0 {
		return paywalls, nil
	}

	var rows []SQLitePaywall
	if err := s.db.Where("wallet_id IN ?", walletIDs).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		paywalls = append(paywalls, *paywallFromRow(row))
	}
	return paywalls, nil
}

func (s *Store) DeletePaywall(id string) error {
	return s.db.Where("paywall_id = ?", id).Delete(&SQLitePaywall{}).Error
}

func paywallFromRow(row SQLitePaywall) *Paywall {
	return &Paywall{
		ID:          row.PaywallID,
		Wallet:      row.WalletID,
		URL:         row.URL,
		Memo:        row.Memo,
		Description: row.Description,
		Amount:      row.Amount,
		Remembers:   row.Remembers,
	}
}

// CreateWithdrawTarget stores t under a fresh id and returns the stored record
func (s *Store) CreateWithdrawTarget(t WithdrawTarget) (*WithdrawTarget, error) {
	row := SQLiteWithdrawTarget{
		TargetID: NewID(),
		WalletID: t.Wallet,
		LNURL:    t.LNURL,
		ATime:    t.ATime,
		Amount:   t.Amount,
	}
	if err := s.db.Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to create withdraw target: %v", err)
	}
	return targetFromRow(row), nil
}

// GetWithdrawTarget returns nil, nil when absent.
func (s *Store) GetWithdrawTarget(id string) (*WithdrawTarget, error) {
	var row SQLiteWithdrawTarget
	err := s.db.Where("target_id = ?", id).First(&row).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return targetFromRow(row), nil
}

func (s *Store) ListWithdrawTargets(walletIDs []string) ([]WithdrawTarget, error) {
	targets := []WithdrawTarget{}
	if len(walletIDs) == 0 {
		return targets, nil
	}

	var rows []SQLiteWithdrawTarget
	if err := s.db.Where("wallet_id IN ?", walletIDs).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		targets = append(targets, *targetFromRow(row))
	}
	return targets, nil
}

func (s *Store) DeleteWithdrawTarget(id string) error {
	return s.db.Where("target_id = ?", id).Delete(&SQLiteWithdrawTarget{}).Error
}

func targetFromRow(row SQLiteWithdrawTarget) *WithdrawTarget {
	return &WithdrawTarget{
		ID:     row.TargetID,
		Wallet: row.WalletID,
		LNURL:  row.LNURL,
		ATime:  row.ATime,
		Amount: row.Amount,
	}
}
