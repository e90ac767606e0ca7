package services

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/tradevault/backend/src/config"
	"github.com/username/tradevault/backend/src/logger"
	"github.com/username/tradevault/backend/src/models"
	"github.com/username/tradevault/backend/src/parsers"
	"github.com/username/tradevault/backend/src/processors"
)

func TestMain(m *testing.M) {
	config.LoadConfig()
	logger.InitLogger("error")
	m.Run()
}

type fakeAccountStore struct {
	mu           sync.Mutex
	accounts     map[int64][]models.Account
	fetchErr     error
	replaceErr   error
	replaceCalls int
}

func newFakeAccountStore() *fakeAccountStore {
	return &fakeAccountStore{accounts: make(map[int64][]models.Account)}
}

func (s *fakeAccountStore) FetchAccounts(userID int64) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	out := make([]models.Account, len(s.accounts[userID]))
	copy(out, s.accounts[userID])
	return out, nil
}

func (s *fakeAccountStore) ReplaceAccounts(userID int64, accounts []models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceCalls++
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.accounts[userID] = accounts
	return nil
}

func (s *fakeAccountStore) CreateAccount(account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.UserID] = append(s.accounts[account.UserID], *account)
	return nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	kinds []string
}

func (n *recordingNotifier) Notify(kind, message, description string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, kind)
}

func (n *recordingNotifier) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.kinds) == 0 {
		return ""
	}
	return n.kinds[len(n.kinds)-1]
}

const sampleCSV = `Symbol,Date,Type,Entry,Exit,Size
AAPL,01/15/2024,long,100,110,10
MSFT,01/16/2024,short,200,195,4
,,long,0,0,0
`

var sampleMapping = models.ColumnMapping{
	models.FieldSymbol: "Symbol",
	models.FieldDate:   "Date",
	models.FieldType:   "Type",
	models.FieldEntry:  "Entry",
	models.FieldExit:   "Exit",
	models.FieldSize:   "Size",
}

func newTestService(store AccountStore, notifier Notifier) ImportService {
	return NewImportService(
		parsers.NewCSVParser(),
		processors.NewTradeTransformer(),
		processors.NewTradeValidator(),
		store,
		notifier,
		cache.New(time.Minute, time.Minute),
	)
}

// startProcessed uploads the sample file, applies the full mapping and runs
// the processing pass, leaving the session in the validate step.
func startProcessed(t *testing.T, svc ImportService, userID int64) *ImportSession {
	t.Helper()

	sess, err := svc.StartSession(strings.NewReader(sampleCSV), userID)
	require.NoError(t, err)
	_, err = svc.SetMapping(userID, sess.ID, sampleMapping, nil)
	require.NoError(t, err)
	_, err = svc.Process(userID, sess.ID)
	require.NoError(t, err)
	return sess
}

func TestStartSession(t *testing.T) {
	t.Parallel()
	svc := newTestService(newFakeAccountStore(), &recordingNotifier{})

	sess, err := svc.StartSession(strings.NewReader(sampleCSV), 1)
	require.NoError(t, err)

	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, StepMap, sess.Step)
	assert.Equal(t, []string{"Symbol", "Date", "Type", "Entry", "Exit", "Size"}, sess.Headers)
	assert.Equal(t, 3, sess.RowCount)
	assert.InDelta(t, config.Cfg.DefaultTickValue, sess.Defaults.TickValue, 1e-9)
	assert.InDelta(t, config.Cfg.DefaultPipValue, sess.Defaults.PipValue, 1e-9)

	fetched, err := svc.GetSession(1, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, fetched.ID)
}

func TestStartSessionRejectsBadInput(t *testing.T) {
	t.Parallel()
	svc := newTestService(newFakeAccountStore(), &recordingNotifier{})

	_, err := svc.StartSession(strings.NewReader(""), 1)
	assert.ErrorIs(t, err, ErrParsingFailed)

	_, err = svc.StartSession(strings.NewReader("Symbol,Date\n"), 1)
	assert.ErrorIs(t, err, ErrParsingFailed)
}

func TestGetSessionNotFound(t *testing.T) {
	t.Parallel()
	svc := newTestService(newFakeAccountStore(), &recordingNotifier{})

	_, err := svc.GetSession(1, "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

// Sessions are scoped per user; another user cannot read them.
func TestGetSessionWrongUser(t *testing.T) {
	t.Parallel()
	svc := newTestService(newFakeAccountStore(), &recordingNotifier{})

	sess, err := svc.StartSession(strings.NewReader(sampleCSV), 1)
	require.NoError(t, err)

	_, err = svc.GetSession(2, sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

// Sessions handed to callers are point-in-time copies; mutating one must not
// leak into the stored session.
func TestGetSessionReturnsIsolatedCopy(t *testing.T) {
	t.Parallel()
	svc := newTestService(newFakeAccountStore(), &recordingNotifier{})

	sess, err := svc.StartSession(strings.NewReader(sampleCSV), 1)
	require.NoError(t, err)

	got, err := svc.GetSession(1, sess.ID)
	require.NoError(t, err)
	got.Mapping[models.FieldSymbol] = "tampered"
	got.Step = StepConfirm
	got.Headers[0] = "tampered"

	again, err := svc.GetSession(1, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, again.Mapping[models.FieldSymbol])
	assert.Equal(t, StepMap, again.Step)
	assert.Equal(t, "Symbol", again.Headers[0])
}

// Polling a session while its mapping changes must never expose a session
// copy that is being written to, so serializing it is always safe.
func TestConcurrentPollingWhileMapping(t *testing.T) {
	t.Parallel()
	svc := newTestService(newFakeAccountStore(), &recordingNotifier{})

	sess, err := svc.StartSession(strings.NewReader(sampleCSV), 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				got, err := svc.GetSession(1, sess.ID)
				if err != nil {
					t.Error(err)
					return
				}
				if _, err := json.Marshal(got); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	for j := 0; j < 100; j++ {
		_, err := svc.SetMapping(1, sess.ID, sampleMapping, nil)
		require.NoError(t, err)
	}
	wg.Wait()
}

func TestSetMappingRejectsUnknownColumn(t *testing.T) {
	t.Parallel()
	svc := newTestService(newFakeAccountStore(), &recordingNotifier{})

	sess, err := svc.StartSession(strings.NewReader(sampleCSV), 1)
	require.NoError(t, err)

	bad := models.ColumnMapping{models.FieldSymbol: "NoSuchColumn"}
	_, err = svc.SetMapping(1, sess.ID, bad, nil)
	assert.Error(t, err)
}

func TestProcessRequiresCompleteMapping(t *testing.T) {
	t.Parallel()
	svc := newTestService(newFakeAccountStore(), &recordingNotifier{})

	sess, err := svc.StartSession(strings.NewReader(sampleCSV), 1)
	require.NoError(t, err)

	partial := models.ColumnMapping{models.FieldSymbol: "Symbol", models.FieldDate: "Date"}
	_, err = svc.SetMapping(1, sess.ID, partial, nil)
	require.NoError(t, err)

	_, err = svc.Process(1, sess.ID)
	assert.ErrorIs(t, err, ErrMappingIncomplete)
	assert.Contains(t, err.Error(), string(models.FieldEntry))

	// The session has not advanced.
	got, err := svc.GetSession(1, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StepMap, got.Step)
}

func TestProcessPartitionsRows(t *testing.T) {
	t.Parallel()
	svc := newTestService(newFakeAccountStore(), &recordingNotifier{})

	sess, err := svc.StartSession(strings.NewReader(sampleCSV), 1)
	require.NoError(t, err)
	_, err = svc.SetMapping(1, sess.ID, sampleMapping, nil)
	require.NoError(t, err)

	summary, err := svc.Process(1, sess.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalRows)
	assert.Equal(t, 2, summary.ValidCount)
	assert.Equal(t, 1, summary.InvalidCount)
	// AAPL: 10*5*10 = 500, MSFT short: 5*5*4 = 100.
	assert.InDelta(t, 600.0, summary.TotalPNL, 1e-9)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, 4, summary.Errors[0].Row)

	got, err := svc.GetSession(1, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StepValidate, got.Step)
	assert.Len(t, got.Valid, 2)
}

func TestProcessOnlyFromMapStep(t *testing.T) {
	t.Parallel()
	svc := newTestService(newFakeAccountStore(), &recordingNotifier{})

	sess := startProcessed(t, svc, 1)
	_, err := svc.Process(1, sess.ID)
	assert.ErrorIs(t, err, ErrInvalidStep)
}

func TestCommitAppendsToEverySelectedAccount(t *testing.T) {
	t.Parallel()
	store := newFakeAccountStore()
	notifier := &recordingNotifier{}
	svc := newTestService(store, notifier)

	require.NoError(t, store.CreateAccount(&models.Account{ID: "acc-1", UserID: 1, Name: "Main", Balance: 1000}))
	require.NoError(t, store.CreateAccount(&models.Account{ID: "acc-2", UserID: 1, Name: "Prop", Balance: 5000}))
	require.NoError(t, store.CreateAccount(&models.Account{ID: "acc-3", UserID: 1, Name: "Idle", Balance: 0}))

	sess := startProcessed(t, svc, 1)
	result, err := svc.Commit(1, sess.ID, []string{"acc-1", "acc-2"})
	require.NoError(t, err)

	assert.Equal(t, 2, result.TradesImported)
	assert.Equal(t, []string{"Main", "Prop"}, result.AccountNames)
	assert.InDelta(t, 600.0, result.TotalPNL, 1e-9)
	assert.Equal(t, "Imported 2 trades into Main, Prop", result.Message)
	assert.Equal(t, "success", notifier.last())

	accounts, err := store.FetchAccounts(1)
	require.NoError(t, err)
	require.Len(t, accounts, 3)

	seen := map[string]bool{}
	for _, a := range accounts {
		switch a.ID {
		case "acc-1":
			assert.InDelta(t, 1600.0, a.Balance, 1e-9)
			assert.Len(t, a.Trades, 2)
		case "acc-2":
			assert.InDelta(t, 5600.0, a.Balance, 1e-9)
			assert.Len(t, a.Trades, 2)
		case "acc-3":
			assert.InDelta(t, 0.0, a.Balance, 1e-9)
			assert.Empty(t, a.Trades)
		}
		for _, tr := range a.Trades {
			require.NotEmpty(t, tr.ID)
			assert.False(t, seen[tr.ID], "trade IDs must be unique across accounts")
			seen[tr.ID] = true
			assert.Equal(t, a.ID, tr.AccountID)
		}
	}

	// The session is gone after a successful commit.
	_, err = svc.GetSession(1, sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCommitInputChecks(t *testing.T) {
	t.Parallel()
	store := newFakeAccountStore()
	svc := newTestService(store, &recordingNotifier{})
	require.NoError(t, store.CreateAccount(&models.Account{ID: "acc-1", UserID: 1, Name: "Main"}))

	sess := startProcessed(t, svc, 1)

	_, err := svc.Commit(1, sess.ID, nil)
	assert.ErrorIs(t, err, ErrNoAccountsSelected)

	// A rejected request leaves the session in the validate step; the user
	// can go straight back to mapping without being stuck in confirm.
	got, err := svc.GetSession(1, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StepValidate, got.Step)

	_, err = svc.Commit(1, sess.ID, []string{"ghost"})
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestCommitNoValidTrades(t *testing.T) {
	t.Parallel()
	store := newFakeAccountStore()
	svc := newTestService(store, &recordingNotifier{})
	require.NoError(t, store.CreateAccount(&models.Account{ID: "acc-1", UserID: 1, Name: "Main"}))

	allInvalid := "Symbol,Date,Type,Entry,Exit,Size\n,,long,0,0,0\n"
	sess, err := svc.StartSession(strings.NewReader(allInvalid), 1)
	require.NoError(t, err)
	_, err = svc.SetMapping(1, sess.ID, sampleMapping, nil)
	require.NoError(t, err)
	summary, err := svc.Process(1, sess.ID)
	require.NoError(t, err)
	assert.Zero(t, summary.ValidCount)

	_, err = svc.Commit(1, sess.ID, []string{"acc-1"})
	assert.ErrorIs(t, err, ErrNoValidTrades)

	got, err := svc.GetSession(1, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StepValidate, got.Step)
}

func TestCommitWithoutAccounts(t *testing.T) {
	t.Parallel()
	notifier := &recordingNotifier{}
	svc := newTestService(newFakeAccountStore(), notifier)

	sess := startProcessed(t, svc, 1)
	_, err := svc.Commit(1, sess.ID, []string{"acc-1"})
	assert.ErrorIs(t, err, ErrNoAccounts)
	assert.Equal(t, "error", notifier.last())
}

// A fetch failure aborts the commit before anything is written.
func TestCommitFetchFailureWritesNothing(t *testing.T) {
	t.Parallel()
	store := newFakeAccountStore()
	svc := newTestService(store, &recordingNotifier{})
	require.NoError(t, store.CreateAccount(&models.Account{ID: "acc-1", UserID: 1, Name: "Main"}))

	sess := startProcessed(t, svc, 1)
	store.fetchErr = errors.New("db locked")

	_, err := svc.Commit(1, sess.ID, []string{"acc-1"})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Zero(t, store.replaceCalls)

	// The session survives for a retry.
	got, err := svc.GetSession(1, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StepConfirm, got.Step)
}

// A write failure keeps the session in the confirm step so the user can
// retry; the retry succeeds once the store recovers.
func TestCommitRetryAfterWriteFailure(t *testing.T) {
	t.Parallel()
	store := newFakeAccountStore()
	svc := newTestService(store, &recordingNotifier{})
	require.NoError(t, store.CreateAccount(&models.Account{ID: "acc-1", UserID: 1, Name: "Main"}))

	sess := startProcessed(t, svc, 1)
	store.replaceErr = errors.New("disk full")

	_, err := svc.Commit(1, sess.ID, []string{"acc-1"})
	assert.ErrorIs(t, err, ErrCommitFailed)

	got, err := svc.GetSession(1, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StepConfirm, got.Step)

	store.replaceErr = nil
	result, err := svc.Commit(1, sess.ID, []string{"acc-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.TradesImported)
}

func TestBackTransitions(t *testing.T) {
	t.Parallel()
	store := newFakeAccountStore()
	svc := newTestService(store, &recordingNotifier{})
	require.NoError(t, store.CreateAccount(&models.Account{ID: "acc-1", UserID: 1, Name: "Main"}))

	sess := startProcessed(t, svc, 1)

	// Push the session to confirm via a failing commit.
	store.replaceErr = errors.New("down")
	_, err := svc.Commit(1, sess.ID, []string{"acc-1"})
	require.ErrorIs(t, err, ErrCommitFailed)

	got, err := svc.Back(1, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StepValidate, got.Step)
	assert.NotEmpty(t, got.Valid)

	got, err = svc.Back(1, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StepMap, got.Step)
	assert.Empty(t, got.Valid)
	assert.Empty(t, got.Errors)

	_, err = svc.Back(1, sess.ID)
	assert.ErrorIs(t, err, ErrInvalidStep)
}
