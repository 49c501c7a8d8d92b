package repository

import (
	"context"
	"testing"
	"time"

	"nationbank/events"
	"nationbank/models"
	"nationbank/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitOfWork_CommitAndRollback(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	bus := events.NewBus()
	received := make(chan events.Event, 4)
	bus.SubscribeAll(func(ctx context.Context, event events.Event) {
		received <- event
	})

	factory := NewUnitOfWorkFactory(testDB.DB, bus)
	accounts := NewAccountRepository(testDB.DB)

	t.Run("rollback discards writes and events", func(t *testing.T) {
		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))

		_, err := uow.AccountRepository().Credit(ctx, "alice", "Alice", testutil.Amount("10.00"))
		require.NoError(t, err)
		uow.EventBus().Publish(events.EscrowReleasedEvent{UserID: "alice"})

		require.NoError(t, uow.Rollback())

		account, err := accounts.GetByUserID(ctx, "alice")
		require.NoError(t, err)
		assert.Nil(t, account)

		select {
		case <-received:
			t.Fatal("event delivered after rollback")
		case <-time.After(100 * time.Millisecond):
		}
	})

	t.Run("commit persists writes and flushes events", func(t *testing.T) {
		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))

		_, err := uow.AccountRepository().Credit(ctx, "alice", "Alice", testutil.Amount("10.00"))
		require.NoError(t, err)
		uow.EventBus().Publish(events.EscrowReleasedEvent{UserID: "alice"})

		require.NoError(t, uow.Commit())
		require.NoError(t, uow.Rollback(), "rollback after commit is a no-op")

		account, err := accounts.GetByUserID(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, account)
		assertAmount(t, "10.00", account.Balance)

		select {
		case event := <-received:
			assert.Equal(t, events.EventTypeEscrowReleased, event.Type())
		case <-time.After(2 * time.Second):
			t.Fatal("event not delivered after commit")
		}
	})

	t.Run("repositories require Begin", func(t *testing.T) {
		uow := factory.Create()
		assert.Panics(t, func() { uow.AccountRepository() })
		assert.Error(t, uow.Commit())
	})
}

func TestUnitOfWork_TransactionsOrderedByWriteTime(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	factory := NewUnitOfWorkFactory(testDB.DB, events.NewBus())
	txRepo := NewTransactionRepository(testDB.DB)

	early := factory.Create()
	require.NoError(t, early.Begin(ctx))
	defer early.Rollback()

	time.Sleep(20 * time.Millisecond)

	late := factory.Create()
	require.NoError(t, late.Begin(ctx))
	lateTx := testutil.CreateTestTransaction("alice", "bob", "1.00")
	require.NoError(t, late.TransactionRepository().Record(ctx, lateTx))
	require.NoError(t, late.Commit())

	time.Sleep(20 * time.Millisecond)

	earlyTx := testutil.CreateTestTransaction("bob", "alice", "2.00")
	require.NoError(t, early.TransactionRepository().Record(ctx, earlyTx))
	require.NoError(t, early.Commit())

	assert.False(t, earlyTx.CreatedAt.Before(lateTx.CreatedAt),
		"created_at is stamped when the row is written: %s vs %s", earlyTx.CreatedAt, lateTx.CreatedAt)

	recent, err := txRepo.GetRecent(ctx, 2, nil)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, earlyTx.ID, recent[0].ID)
	assert.Equal(t, lateTx.ID, recent[1].ID)
}

func TestUnitOfWork_AmountMatchSkipsHeldRows(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	factory := NewUnitOfWorkFactory(testDB.DB, events.NewBus())
	requests := NewDepositRequestRepository(testDB.DB)

	first := testutil.CreateTestDepositRequest("alice", "25.00")
	second := testutil.CreateTestDepositRequest("alice", "25.00")
	require.NoError(t, requests.Create(ctx, first))
	require.NoError(t, requests.Create(ctx, second))

	holder := factory.Create()
	require.NoError(t, holder.Begin(ctx))
	defer holder.Rollback()

	held, err := holder.DepositRequestRepository().FindPendingForUpdate(ctx, "alice", testutil.Amount("25.00"))
	require.NoError(t, err)
	require.NotNil(t, held)
	assert.Equal(t, first.ID, held.ID)

	other := factory.Create()
	require.NoError(t, other.Begin(ctx))
	next, err := other.DepositRequestRepository().FindPendingForUpdate(ctx, "alice", testutil.Amount("25.00"))
	require.NoError(t, err)
	require.NotNil(t, next, "a held match must not hide the next one")
	assert.Equal(t, second.ID, next.ID)

	// with every match held, the finder waits and sees what the holder leaves behind
	found := make(chan int64, 1)
	go func() {
		waiter := factory.Create()
		if err := waiter.Begin(ctx); err != nil {
			found <- -1
			return
		}
		defer waiter.Rollback()
		request, err := waiter.DepositRequestRepository().FindPendingForUpdate(ctx, "alice", testutil.Amount("25.00"))
		if err != nil || request == nil {
			found <- 0
			return
		}
		found <- request.ID
	}()

	select {
	case id := <-found:
		t.Fatalf("finder returned %d while every match was held", id)
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, other.DepositRequestRepository().UpdateStatus(ctx, second.ID, models.RequestStatusApproved, "admin-1"))
	require.NoError(t, other.Commit())
	require.NoError(t, holder.Rollback())

	select {
	case id := <-found:
		assert.Equal(t, first.ID, id, "the rolled back match is still pending")
	case <-time.After(10 * time.Second):
		t.Fatal("finder did not return after the holders finished")
	}
}
