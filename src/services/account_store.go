package services

import (
	"database/sql"
	"fmt"

	"github.com/username/tradevault/backend/src/logger"
	"github.com/username/tradevault/backend/src/models"
)

type sqliteAccountStore struct {
	db *sql.DB
}

// NewAccountStore returns the SQLite-backed account store.
func NewAccountStore(db *sql.DB) AccountStore {
	return &sqliteAccountStore{db: db}
}

// FetchAccounts loads the user's full account collection, each account with
// its ordered trade list.
func (s *sqliteAccountStore) FetchAccounts(userID int64) ([]models.Account, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, name, broker, balance, created_at
		 FROM accounts WHERE user_id = ? ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying accounts for userID %d: %w", userID, err)
	}
	defer rows.Close()

	var accounts []models.Account
	index := make(map[string]int)
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.Broker, &a.Balance, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning account row for userID %d: %w", userID, err)
		}
		index[a.ID] = len(accounts)
		accounts = append(accounts, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over account rows for userID %d: %w", userID, err)
	}

	tradeRows, err := s.db.Query(
		`SELECT id, account_id, symbol, date, direction, market_type, entry, exit, size,
		        tp, sl, commission, tick_value, pip_value, pnl, notes, created_at
		 FROM trades WHERE user_id = ? ORDER BY account_id ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying trades for userID %d: %w", userID, err)
	}
	defer tradeRows.Close()

	for tradeRows.Next() {
		var t models.Trade
		var notes sql.NullString
		if err := tradeRows.Scan(&t.ID, &t.AccountID, &t.Symbol, &t.Date, &t.Direction, &t.MarketType,
			&t.Entry, &t.Exit, &t.Size, &t.TP, &t.SL, &t.Commission,
			&t.TickValue, &t.PipValue, &t.PNL, &notes, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning trade row for userID %d: %w", userID, err)
		}
		t.Notes = notes.String
		if i, ok := index[t.AccountID]; ok {
			accounts[i].Trades = append(accounts[i].Trades, t)
		}
	}
	if err = tradeRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over trade rows for userID %d: %w", userID, err)
	}

	return accounts, nil
}

// ReplaceAccounts overwrites the user's entire account collection in one
// database transaction: the commit is atomic for the whole batch or leaves
// the store untouched.
func (s *sqliteAccountStore) ReplaceAccounts(userID int64, accounts []models.Account) error {
	dbTx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.Exec(`DELETE FROM trades WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("error clearing trades for userID %d: %w", userID, err)
	}
	if _, err := dbTx.Exec(`DELETE FROM accounts WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("error clearing accounts for userID %d: %w", userID, err)
	}

	accStmt, err := dbTx.Prepare(
		`INSERT INTO accounts (id, user_id, name, broker, balance, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("error preparing account insert: %w", err)
	}
	defer accStmt.Close()

	tradeStmt, err := dbTx.Prepare(
		`INSERT INTO trades (id, account_id, user_id, symbol, date, direction, market_type,
		                     entry, exit, size, tp, sl, commission, tick_value, pip_value, pnl, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("error preparing trade insert: %w", err)
	}
	defer tradeStmt.Close()

	for _, a := range accounts {
		if _, err := accStmt.Exec(a.ID, userID, a.Name, a.Broker, a.Balance, a.CreatedAt); err != nil {
			return fmt.Errorf("error inserting account %s: %w", a.ID, err)
		}
		for _, t := range a.Trades {
			if _, err := tradeStmt.Exec(t.ID, a.ID, userID, t.Symbol, t.Date, t.Direction, t.MarketType,
				t.Entry, t.Exit, t.Size, t.TP, t.SL, t.Commission,
				t.TickValue, t.PipValue, t.PNL, t.Notes, t.CreatedAt); err != nil {
				return fmt.Errorf("error inserting trade %s for account %s: %w", t.ID, a.ID, err)
			}
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("error committing account replacement: %w", err)
	}

	logger.L.Debug("Account collection replaced", "userID", userID, "accounts", len(accounts))
	return nil
}

// CreateAccount inserts a single new account with no trades.
func (s *sqliteAccountStore) CreateAccount(account *models.Account) error {
	_, err := s.db.Exec(
		`INSERT INTO accounts (id, user_id, name, broker, balance, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		account.ID, account.UserID, account.Name, account.Broker, account.Balance, account.CreatedAt)
	if err != nil {
		return fmt.Errorf("error inserting account %s: %w", account.ID, err)
	}
	return nil
}
