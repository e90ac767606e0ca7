package services

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/username/tradevault/backend/src/config"
	"github.com/username/tradevault/backend/src/id"
	"github.com/username/tradevault/backend/src/logger"
	"github.com/username/tradevault/backend/src/models"
	"github.com/username/tradevault/backend/src/parsers"
	"github.com/username/tradevault/backend/src/processors"
)

const ckImportSession = "import_session_%d_%s" // userID, sessionID

type importServiceImpl struct {
	csvParser    parsers.CSVParser
	transformer  processors.TradeTransformer
	validator    processors.TradeValidator
	accountStore AccountStore
	notifier     Notifier
	sessions     *cache.Cache
}

func NewImportService(
	csvParser parsers.CSVParser,
	transformer processors.TradeTransformer,
	validator processors.TradeValidator,
	accountStore AccountStore,
	notifier Notifier,
	sessions *cache.Cache,
) ImportService {
	return &importServiceImpl{
		csvParser:    csvParser,
		transformer:  transformer,
		validator:    validator,
		accountStore: accountStore,
		notifier:     notifier,
		sessions:     sessions,
	}
}

// StartSession tokenizes the uploaded content and opens a fresh session in
// the map step.
func (s *importServiceImpl) StartSession(fileReader io.Reader, userID int64) (*ImportSession, error) {
	headers, rows, err := s.csvParser.Parse(fileReader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: file contains no data rows", ErrParsingFailed)
	}

	sess := &ImportSession{
		ID:       uuid.NewString(),
		UserID:   userID,
		Step:     StepMap,
		Headers:  headers,
		Rows:     rows,
		RowCount: len(rows),
		Mapping:  models.ColumnMapping{},
		Defaults: models.ImportDefaults{
			TickValue:  config.Cfg.DefaultTickValue,
			PipValue:   config.Cfg.DefaultPipValue,
			Commission: config.Cfg.DefaultCommission,
		},
		CreatedAt: time.Now(),
	}
	s.sessions.Set(sessionKey(userID, sess.ID), sess, cache.DefaultExpiration)

	logger.L.Info("Import session started", "userID", userID, "sessionID", sess.ID, "rows", len(rows))
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.snapshotLocked(), nil
}

// GetSession returns a point-in-time copy of the session. Handlers serialize
// the copy without holding the session lock, so they must never see the live
// object another request may be mutating.
func (s *importServiceImpl) GetSession(userID int64, sessionID string) (*ImportSession, error) {
	sess, err := s.liveSession(userID, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.snapshotLocked(), nil
}

// liveSession returns the shared session object. Callers must take sess.mu
// before touching its fields.
func (s *importServiceImpl) liveSession(userID int64, sessionID string) (*ImportSession, error) {
	cached, found := s.sessions.Get(sessionKey(userID, sessionID))
	if !found {
		return nil, ErrSessionNotFound
	}
	return cached.(*ImportSession), nil
}

// SetMapping stores the user's column mapping and optional default values.
// An incomplete mapping is accepted here; Process refuses to run until the
// six required fields are mapped.
func (s *importServiceImpl) SetMapping(userID int64, sessionID string, mapping models.ColumnMapping, defaults *models.ImportDefaults) (*ImportSession, error) {
	sess, err := s.liveSession(userID, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.Step != StepMap {
		return nil, fmt.Errorf("%w: mapping may only change in the map step (current: %s)", ErrInvalidStep, sess.Step)
	}

	known := make(map[string]bool, len(sess.Headers))
	for _, h := range sess.Headers {
		known[h] = true
	}
	for field, column := range mapping {
		if column != "" && !known[column] {
			return nil, fmt.Errorf("%w: column %q mapped to %s does not exist in the file", ErrParsingFailed, column, field)
		}
	}

	sess.Mapping = mapping
	if defaults != nil {
		sess.Defaults = *defaults
	}
	return sess.snapshotLocked(), nil
}

// Process runs the transform and validation passes, partitioning the rows
// into valid trades and per-row error records, and advances the session to
// the validate step. The pass is deterministic and side-effect free.
func (s *importServiceImpl) Process(userID int64, sessionID string) (*models.ImportSummary, error) {
	sess, err := s.liveSession(userID, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.Step != StepMap {
		return nil, fmt.Errorf("%w: processing runs from the map step (current: %s)", ErrInvalidStep, sess.Step)
	}
	if missing := sess.Mapping.MissingRequired(); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, f := range missing {
			names[i] = string(f)
		}
		return nil, fmt.Errorf("%w: %s", ErrMappingIncomplete, strings.Join(names, ", "))
	}

	candidates := s.transformer.Transform(sess.Rows, sess.Mapping, sess.Defaults)
	valid, rowErrors := s.validator.Validate(candidates)

	sess.Valid = valid
	sess.Errors = rowErrors
	sess.Step = StepValidate

	summary := &models.ImportSummary{
		TotalRows:    len(sess.Rows),
		ValidCount:   len(valid),
		InvalidCount: len(rowErrors),
		Errors:       rowErrors,
	}
	for _, t := range valid {
		summary.TotalPNL += t.PNL
	}

	logger.L.Info("Import rows processed",
		"userID", userID, "sessionID", sessionID,
		"valid", summary.ValidCount, "invalid", summary.InvalidCount)
	return summary, nil
}

// Commit appends every valid trade to each selected account, each copy with
// a fresh identifier, raises every selected balance by the summed P&L, and
// writes the whole account collection back in a single store call. The fetch
// happens before any write; a fetch failure aborts the commit untouched. On
// success the session is discarded; on a write failure it stays in the
// confirm step so the user may retry.
func (s *importServiceImpl) Commit(userID int64, sessionID string, accountIDs []string) (*CommitResult, error) {
	sess, err := s.liveSession(userID, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.Step != StepValidate && sess.Step != StepConfirm {
		return nil, fmt.Errorf("%w: commit runs from the validate step (current: %s)", ErrInvalidStep, sess.Step)
	}
	if len(sess.Valid) == 0 {
		return nil, ErrNoValidTrades
	}
	if len(accountIDs) == 0 {
		return nil, ErrNoAccountsSelected
	}
	// A rejected request must not advance the session; the step moves to
	// confirm only once an actual commit attempt begins.
	sess.Step = StepConfirm

	accounts, err := s.accountStore.FetchAccounts(userID)
	if err != nil {
		s.notifier.Notify("error", "Import failed", "Could not load your accounts. Please try again.")
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(accounts) == 0 {
		s.notifier.Notify("error", "No accounts available", "Create a trading account before importing trades.")
		return nil, ErrNoAccounts
	}

	byID := make(map[string]bool, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = true
	}
	for _, accID := range accountIDs {
		if !byID[accID] {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accID)
		}
	}

	var totalPNL float64
	for _, t := range sess.Valid {
		totalPNL += t.PNL
	}

	selected := make(map[string]bool, len(accountIDs))
	for _, accID := range accountIDs {
		selected[accID] = true
	}

	now := time.Now()
	var accountNames []string
	for i := range accounts {
		if !selected[accounts[i].ID] {
			continue
		}
		// Each account receives its own copy of every trade with a fresh ID;
		// the same import applies to each selected account independently.
		for _, t := range sess.Valid {
			t.ID = id.New()
			t.AccountID = accounts[i].ID
			t.CreatedAt = now
			accounts[i].Trades = append(accounts[i].Trades, t)
		}
		accounts[i].Balance += totalPNL
		accountNames = append(accountNames, accounts[i].Name)
	}

	if err := s.accountStore.ReplaceAccounts(userID, accounts); err != nil {
		// Session stays at confirm; the user may retry manually.
		s.notifier.Notify("error", "Import failed", "Writing trades to your accounts failed. Please try again.")
		return nil, fmt.Errorf("%w: %v", ErrCommitFailed, err)
	}

	s.sessions.Delete(sessionKey(userID, sessionID))

	result := &CommitResult{
		TradesImported: len(sess.Valid),
		AccountNames:   accountNames,
		TotalPNL:       totalPNL,
		Message: fmt.Sprintf("Imported %d trades into %s",
			len(sess.Valid), strings.Join(accountNames, ", ")),
	}
	s.notifier.Notify("success", result.Message, "")

	logger.L.Info("Import committed",
		"userID", userID, "sessionID", sessionID,
		"trades", result.TradesImported, "accounts", len(accountNames), "totalPNL", totalPNL)
	return result, nil
}

// Back performs an explicit backward transition. The map step is the first
// reachable step; going further back means starting a new session.
func (s *importServiceImpl) Back(userID int64, sessionID string) (*ImportSession, error) {
	sess, err := s.liveSession(userID, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	switch sess.Step {
	case StepConfirm:
		sess.Step = StepValidate
	case StepValidate:
		sess.Step = StepMap
		sess.Valid = nil
		sess.Errors = nil
	default:
		return nil, fmt.Errorf("%w: cannot go back from the %s step", ErrInvalidStep, sess.Step)
	}
	return sess.snapshotLocked(), nil
}

func sessionKey(userID int64, sessionID string) string {
	return fmt.Sprintf(ckImportSession, userID, sessionID)
}
