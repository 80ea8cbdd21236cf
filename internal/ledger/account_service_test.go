package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAccount(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	a, err := s.accounts.CreateAccount(ctx, CreateAccountRequest{ClientName: " Maria Silva ", Document: "529.982.247-25"}, "clerk-7")
	require.NoError(t, err)
	assert.Equal(t, "Maria Silva", a.ClientName)
	assert.Equal(t, docA, a.Document)
	assert.Equal(t, "1000.00", a.Balance.StringFixed(2))
	assert.Equal(t, StatusActive, a.Status)

	stored, err := s.accounts.GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, stored.ID)
	assert.True(t, stored.Balance.Equal(OpeningCredit))
	assert.True(t, stored.OpeningDate.Equal(a.OpeningDate))

	logs, err := s.audit.List(ctx, AuditFilter{EntityType: EntityAccount, EntityID: a.ID.String()})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, ActionAccountCreated, logs[0].Action)
	assert.Equal(t, "clerk-7", logs[0].Actor)
}

func TestCreateAccountRejectsInvalidDocumentBeforeStorage(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	_, err := s.accounts.CreateAccount(ctx, CreateAccountRequest{ClientName: "Maria", Document: "123"}, "")
	assert.ErrorIs(t, err, ErrInvalidDocument)
	assert.Equal(t, KindValidation, KindOf(err))

	accounts, err := s.accounts.ListAccounts(ctx, AccountFilter{})
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestCreateAccountDuplicateDocument(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	s.open(t, "Maria Silva", docA)

	_, err := s.accounts.CreateAccount(ctx, CreateAccountRequest{ClientName: "Impostor", Document: "529.982.247-25"}, "")
	assert.ErrorIs(t, err, ErrDuplicateDocument)
	assert.Equal(t, KindConflict, KindOf(err))

	accounts, err := s.accounts.ListAccounts(ctx, AccountFilter{Document: docA})
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "Maria Silva", accounts[0].ClientName)
}

func TestCreateAccountConcurrentDuplicates(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.accounts.CreateAccount(ctx, CreateAccountRequest{ClientName: "Racer", Document: docA}, "")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrDuplicateDocument)
	}
	assert.Equal(t, 1, succeeded)

	accounts, err := s.accounts.ListAccounts(ctx, AccountFilter{})
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestGetAccountNotFound(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	_, err := s.accounts.GetAccountByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = s.accounts.GetAccountByDocument(ctx, docA)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = s.accounts.GetAccountByDocument(ctx, "not-a-document")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestGetAccountIsRepeatable(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	a := s.open(t, "Maria Silva", docA)

	first, err := s.accounts.GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	second, err := s.accounts.GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	byDoc, err := s.accounts.GetAccountByDocument(ctx, "529.982.247-25")
	require.NoError(t, err)
	assert.Equal(t, first, byDoc)
}

func TestListAccountsFilterPrecedence(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	s.open(t, "Carla Souza", docA)
	s.open(t, "Ana Lima", docB)
	s.open(t, "Bruno Ana", docC)
	_, err := s.accounts.DeactivateAccount(ctx, docC, "")
	require.NoError(t, err)

	names := func(accounts []*Account) []string {
		out := make([]string, len(accounts))
		for i, a := range accounts {
			out[i] = a.ClientName
		}
		return out
	}

	all, err := s.accounts.ListAccounts(ctx, AccountFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Carla Souza", "Ana Lima", "Bruno Ana"}, names(all))

	byName, err := s.accounts.ListAccounts(ctx, AccountFilter{Name: "ana"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ana Lima", "Bruno Ana"}, names(byName))

	inactive := StatusInactive
	nameWins, err := s.accounts.ListAccounts(ctx, AccountFilter{Name: "Carla", Document: docB, Status: &inactive})
	require.NoError(t, err)
	assert.Equal(t, []string{"Carla Souza"}, names(nameWins))

	byDoc, err := s.accounts.ListAccounts(ctx, AccountFilter{Document: "111.444", Status: &inactive})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ana Lima"}, names(byDoc))

	byStatus, err := s.accounts.ListAccounts(ctx, AccountFilter{Status: &inactive})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bruno Ana"}, names(byStatus))

	wildcard, err := s.accounts.ListAccounts(ctx, AccountFilter{Name: "%"})
	require.NoError(t, err)
	assert.Empty(t, wildcard)
}

func TestDeactivateAccount(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	a := s.open(t, "Maria Silva", docA)

	updated, err := s.accounts.DeactivateAccount(ctx, "529.982.247-25", "supervisor")
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, updated.Status)
	assert.Equal(t, a.ID, updated.ID)

	stored, err := s.accounts.GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, stored.Status)

	logs, err := s.audit.List(ctx, AuditFilter{EntityID: a.ID.String(), Actor: "supervisor"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, ActionAccountDeactivated, logs[0].Action)
}

func TestDeactivateAccountErrorsAreDistinct(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	s.open(t, "Maria Silva", docA)

	_, err := s.accounts.DeactivateAccount(ctx, docB, "")
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = s.accounts.DeactivateAccount(ctx, docA, "")
	require.NoError(t, err)

	_, err = s.accounts.DeactivateAccount(ctx, docA, "")
	assert.ErrorIs(t, err, ErrAlreadyInactive)
	assert.Equal(t, KindBusinessRule, KindOf(err))
	assert.NotErrorIs(t, err, ErrAccountNotFound)
}

func TestConditionalDeactivateLosesRace(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	a := s.open(t, "Maria Silva", docA)

	require.NoError(t, s.store.DeactivateAccount(ctx, a.ID))
	assert.ErrorIs(t, s.store.DeactivateAccount(ctx, a.ID), ErrAlreadyInactive)
}

func TestCreateAccountSurvivesAuditFailure(t *testing.T) {
	store := newTestStore(t)
	audit := NewAuditService(brokenAuditStore{store}, testLogger)
	accounts := NewAccountService(store, audit, testLogger)
	ctx := context.Background()

	a, err := accounts.CreateAccount(ctx, CreateAccountRequest{ClientName: "Maria", Document: docA}, "")
	require.NoError(t, err)

	_, err = accounts.GetAccountByID(ctx, a.ID)
	assert.NoError(t, err)
}
