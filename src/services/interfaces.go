package services

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/username/tradevault/backend/src/models"
)

// Sentinel errors surfaced by the import pipeline. Handlers map these to
// HTTP status codes with errors.Is.
var (
	ErrParsingFailed      = errors.New("csv parsing failed")
	ErrSessionNotFound    = errors.New("import session not found or expired")
	ErrInvalidStep        = errors.New("action not allowed in the current import step")
	ErrMappingIncomplete  = errors.New("required column mappings are missing")
	ErrNoValidTrades      = errors.New("no valid trades to import")
	ErrNoAccountsSelected = errors.New("no target accounts selected")
	ErrNoAccounts         = errors.New("no trading accounts available")
	ErrAccountNotFound    = errors.New("selected account not found")
	ErrStoreUnavailable   = errors.New("account store unavailable")
	ErrCommitFailed       = errors.New("failed to commit imported trades")
)

// ImportStep is a stage of the import session state machine.
type ImportStep string

const (
	StepUpload   ImportStep = "upload"
	StepMap      ImportStep = "map"
	StepValidate ImportStep = "validate"
	StepConfirm  ImportStep = "confirm"
)

// ImportSession carries one user-initiated import through the
// upload → map → validate → confirm progression. Transitions are strictly
// forward except for explicit Back calls; a session is discarded on
// successful commit or on cache expiry.
type ImportSession struct {
	mu sync.Mutex

	ID        string                `json:"id"`
	UserID    int64                 `json:"user_id"`
	Step      ImportStep            `json:"step"`
	Headers   []string              `json:"headers"`
	Rows      []models.RawRow       `json:"-"`
	RowCount  int                   `json:"row_count"`
	Mapping   models.ColumnMapping  `json:"mapping"`
	Defaults  models.ImportDefaults `json:"defaults"`
	Valid     []models.Trade        `json:"valid,omitempty"`
	Errors    []models.RowError     `json:"errors,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
}

// snapshotLocked returns a copy of the session that is safe to serialize
// while the live object keeps changing under its lock. The caller must hold
// mu. Rows are shared; they are immutable once parsed.
func (s *ImportSession) snapshotLocked() *ImportSession {
	cp := &ImportSession{
		ID:        s.ID,
		UserID:    s.UserID,
		Step:      s.Step,
		Headers:   append([]string(nil), s.Headers...),
		Rows:      s.Rows,
		RowCount:  s.RowCount,
		Mapping:   make(models.ColumnMapping, len(s.Mapping)),
		Defaults:  s.Defaults,
		Valid:     append([]models.Trade(nil), s.Valid...),
		Errors:    append([]models.RowError(nil), s.Errors...),
		CreatedAt: s.CreatedAt,
	}
	for field, column := range s.Mapping {
		cp.Mapping[field] = column
	}
	return cp
}

// CommitResult reports what a successful commit wrote.
type CommitResult struct {
	TradesImported int      `json:"trades_imported"`
	AccountNames   []string `json:"account_names"`
	TotalPNL       float64  `json:"total_pnl"`
	Message        string   `json:"message"`
}

// ImportService drives the CSV trade-import pipeline.
type ImportService interface {
	StartSession(fileReader io.Reader, userID int64) (*ImportSession, error)
	GetSession(userID int64, sessionID string) (*ImportSession, error)
	SetMapping(userID int64, sessionID string, mapping models.ColumnMapping, defaults *models.ImportDefaults) (*ImportSession, error)
	Process(userID int64, sessionID string) (*models.ImportSummary, error)
	Commit(userID int64, sessionID string, accountIDs []string) (*CommitResult, error)
	Back(userID int64, sessionID string) (*ImportSession, error)
}

// AccountStore is the capability the pipeline needs from the persistence
// layer: fetch the user's whole account collection, or overwrite it. No
// finer-grained append interface is assumed.
type AccountStore interface {
	FetchAccounts(userID int64) ([]models.Account, error)
	ReplaceAccounts(userID int64, accounts []models.Account) error
	CreateAccount(account *models.Account) error
}

// Notifier is the fire-and-forget notification surface. Implementations must
// not block and no acknowledgement is read back.
type Notifier interface {
	Notify(kind, message, description string)
}
