package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"nationbank/events"
	"nationbank/models"

	"github.com/shopspring/decimal"
)

// memoryStore is an in-memory UnitOfWorkFactory. A unit of work holds the store
// lock from Begin until Commit or Rollback, so units of work are serializable.
type memoryStore struct {
	mu        sync.Mutex
	state     *memoryState
	failures  map[string]error
	eventsMu  sync.Mutex
	committed []events.Event
}

type memoryState struct {
	accounts     map[string]*models.Account
	transactions []*models.Transaction
	deposits     []*models.DepositRequest
	holds        []*models.Withdrawal
	adminLogs    []*models.AdminLog
	nextID       int64
	clock        time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		state: &memoryState{
			accounts: make(map[string]*models.Account),
			clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		failures: make(map[string]error),
	}
}

// failOn makes every later call of the named repository operation fail
func (s *memoryStore) failOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

func (s *memoryStore) Create() UnitOfWork {
	return &memoryUnitOfWork{store: s}
}

func (s *memoryStore) committedEvents() []events.Event {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()
	return append([]events.Event(nil), s.committed...)
}

// balance reads a committed balance outside any unit of work
func (s *memoryStore) balance(userID string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if account, ok := s.state.accounts[userID]; ok {
		return account.Balance
	}
	return decimal.Zero
}

func (s *memoryStore) transactions() []*models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.Transaction(nil), s.state.transactions...)
}

func (s *memoryStore) adminLogs() []*models.AdminLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.AdminLog(nil), s.state.adminLogs...)
}

// heldFor lists a user's held escrow rows, oldest first
func (s *memoryStore) heldFor(userID string) []*models.Withdrawal {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Withdrawal
	for _, h := range s.state.holds {
		if h.UserID == userID && h.IsHeld() {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out
}

func (st *memoryState) clone() *memoryState {
	c := &memoryState{
		accounts: make(map[string]*models.Account, len(st.accounts)),
		nextID:   st.nextID,
		clock:    st.clock,
	}
	for id, account := range st.accounts {
		cp := *account
		c.accounts[id] = &cp
	}
	c.transactions = append(c.transactions, st.transactions...)
	for _, d := range st.deposits {
		cp := *d
		c.deposits = append(c.deposits, &cp)
	}
	for _, h := range st.holds {
		cp := *h
		c.holds = append(c.holds, &cp)
	}
	c.adminLogs = append(c.adminLogs, st.adminLogs...)
	return c
}

func (st *memoryState) tick() time.Time {
	st.clock = st.clock.Add(time.Second)
	return st.clock
}

func (st *memoryState) newID() int64 {
	st.nextID++
	return st.nextID
}

type memoryUnitOfWork struct {
	store   *memoryStore
	work    *memoryState
	pending []events.Event
	active  bool
}

func (u *memoryUnitOfWork) Begin(ctx context.Context) error {
	if u.active {
		return fmt.Errorf("transaction already started")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	u.store.mu.Lock()
	if err := u.store.failures["Begin"]; err != nil {
		u.store.mu.Unlock()
		return err
	}
	u.work = u.store.state.clone()
	u.active = true
	return nil
}

func (u *memoryUnitOfWork) Commit() error {
	if !u.active {
		return fmt.Errorf("no transaction to commit")
	}
	if err := u.store.failures["Commit"]; err != nil {
		u.finish()
		return err
	}
	u.store.state = u.work
	pending := u.pending
	u.finish()

	u.store.eventsMu.Lock()
	u.store.committed = append(u.store.committed, pending...)
	u.store.eventsMu.Unlock()
	return nil
}

func (u *memoryUnitOfWork) Rollback() error {
	if !u.active {
		return nil
	}
	u.finish()
	return nil
}

func (u *memoryUnitOfWork) finish() {
	u.work = nil
	u.pending = nil
	u.active = false
	u.store.mu.Unlock()
}

func (u *memoryUnitOfWork) fail(op string) error {
	return u.store.failures[op]
}

func (u *memoryUnitOfWork) AccountRepository() AccountRepository { return memoryAccounts{u} }
func (u *memoryUnitOfWork) TransactionRepository() TransactionRepository {
	return memoryTransactions{u}
}
func (u *memoryUnitOfWork) DepositRequestRepository() DepositRequestRepository {
	return memoryDeposits{u}
}
func (u *memoryUnitOfWork) EscrowRepository() EscrowRepository     { return memoryEscrow{u} }
func (u *memoryUnitOfWork) AdminLogRepository() AdminLogRepository { return memoryAdminLogs{u} }
func (u *memoryUnitOfWork) ReconciliationRepository() ReconciliationRepository {
	return memoryReconciliation{u}
}
func (u *memoryUnitOfWork) EventBus() EventPublisher { return u }

func (u *memoryUnitOfWork) Publish(event events.Event) {
	u.pending = append(u.pending, event)
}

type memoryAccounts struct{ u *memoryUnitOfWork }

func (r memoryAccounts) get(userID string) *models.Account {
	if account, ok := r.u.work.accounts[userID]; ok {
		cp := *account
		return &cp
	}
	return nil
}

func (r memoryAccounts) upsert(userID, username string) *models.Account {
	account, ok := r.u.work.accounts[userID]
	if !ok {
		now := r.u.work.tick()
		account = &models.Account{UserID: userID, Username: username, CreatedAt: now, UpdatedAt: now}
		r.u.work.accounts[userID] = account
	} else if username != "" {
		account.Username = username
	}
	return account
}

func (r memoryAccounts) GetByUserID(ctx context.Context, userID string) (*models.Account, error) {
	if err := r.u.fail("GetByUserID"); err != nil {
		return nil, err
	}
	return r.get(userID), nil
}

func (r memoryAccounts) GetForUpdate(ctx context.Context, userID string) (*models.Account, error) {
	if err := r.u.fail("GetForUpdate"); err != nil {
		return nil, err
	}
	return r.get(userID), nil
}

func (r memoryAccounts) LockAccounts(ctx context.Context, userIDs []string) ([]*models.Account, error) {
	if err := r.u.fail("LockAccounts"); err != nil {
		return nil, err
	}
	sorted := append([]string(nil), userIDs...)
	sort.Strings(sorted)
	var accounts []*models.Account
	for _, id := range sorted {
		if account := r.get(id); account != nil {
			accounts = append(accounts, account)
		}
	}
	return accounts, nil
}

func (r memoryAccounts) EnsureAccount(ctx context.Context, userID, username string) error {
	if err := r.u.fail("EnsureAccount"); err != nil {
		return err
	}
	if _, ok := r.u.work.accounts[userID]; !ok {
		r.upsert(userID, username)
	}
	return nil
}

func (r memoryAccounts) Credit(ctx context.Context, userID, username string, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := r.u.fail("Credit"); err != nil {
		return decimal.Zero, err
	}
	account := r.upsert(userID, username)
	account.Balance = account.Balance.Add(amount)
	return account.Balance, nil
}

func (r memoryAccounts) Debit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := r.u.fail("Debit"); err != nil {
		return decimal.Zero, err
	}
	account, ok := r.u.work.accounts[userID]
	if !ok || account.Balance.LessThan(amount) {
		return decimal.Zero, fmt.Errorf("insufficient balance for account %s", userID)
	}
	account.Balance = account.Balance.Sub(amount)
	return account.Balance, nil
}

func (r memoryAccounts) SetBalance(ctx context.Context, userID, username string, amount decimal.Decimal) error {
	if err := r.u.fail("SetBalance"); err != nil {
		return err
	}
	r.upsert(userID, username).Balance = amount
	return nil
}

func (r memoryAccounts) UpdateProfile(ctx context.Context, userID string, profile models.UserProfile) error {
	if err := r.u.fail("UpdateProfile"); err != nil {
		return err
	}
	account := r.upsert(userID, "")
	if profile.PirateName != nil {
		account.Profile.PirateName = profile.PirateName
	}
	if profile.RealName != nil {
		account.Profile.RealName = profile.RealName
	}
	if profile.ShipName != nil {
		account.Profile.ShipName = profile.ShipName
	}
	if profile.Email != nil {
		account.Profile.Email = profile.Email
	}
	if profile.PhoneNumber != nil {
		account.Profile.PhoneNumber = profile.PhoneNumber
	}
	return nil
}

func (r memoryAccounts) SumBalances(ctx context.Context) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, account := range r.u.work.accounts {
		total = total.Add(account.Balance)
	}
	return total, nil
}

type memoryTransactions struct{ u *memoryUnitOfWork }

func (r memoryTransactions) Record(ctx context.Context, tx *models.Transaction) error {
	if err := r.u.fail("RecordTransaction"); err != nil {
		return err
	}
	tx.CreatedAt = r.u.work.tick()
	r.u.work.transactions = append(r.u.work.transactions, tx)
	return nil
}

func (r memoryTransactions) GetRecent(ctx context.Context, limit int, txType *models.TransactionType) ([]*models.Transaction, error) {
	if err := r.u.fail("GetRecent"); err != nil {
		return nil, err
	}
	return r.newest(limit, func(tx *models.Transaction) bool {
		return txType == nil || tx.Type == *txType
	}), nil
}

func (r memoryTransactions) GetByUser(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	return r.newest(limit, func(tx *models.Transaction) bool {
		return (tx.FromUserID != nil && *tx.FromUserID == userID) || (tx.ToUserID != nil && *tx.ToUserID == userID)
	}), nil
}

func (r memoryTransactions) newest(limit int, keep func(*models.Transaction) bool) []*models.Transaction {
	var out []*models.Transaction
	txs := r.u.work.transactions
	for i := len(txs) - 1; i >= 0 && len(out) < limit; i-- {
		if keep(txs[i]) {
			out = append(out, txs[i])
		}
	}
	return out
}

type memoryDeposits struct{ u *memoryUnitOfWork }

func (r memoryDeposits) Create(ctx context.Context, request *models.DepositRequest) error {
	if err := r.u.fail("CreateDeposit"); err != nil {
		return err
	}
	request.ID = r.u.work.newID()
	request.CreatedAt = r.u.work.tick()
	cp := *request
	r.u.work.deposits = append(r.u.work.deposits, &cp)
	return nil
}

func (r memoryDeposits) GetByIDForUpdate(ctx context.Context, id int64) (*models.DepositRequest, error) {
	for _, d := range r.u.work.deposits {
		if d.ID == id {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (r memoryDeposits) FindPendingForUpdate(ctx context.Context, userID string, amount decimal.Decimal) (*models.DepositRequest, error) {
	for _, d := range r.u.work.deposits {
		if d.UserID == userID && d.Amount.Equal(amount) && d.Status == models.RequestStatusPending {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (r memoryDeposits) UpdateStatus(ctx context.Context, id int64, status models.RequestStatus, decidedBy string) error {
	for _, d := range r.u.work.deposits {
		if d.ID == id && d.Status == models.RequestStatusPending {
			now := r.u.work.tick()
			d.Status = status
			d.DecidedAt = &now
			d.DecidedBy = &decidedBy
			return nil
		}
	}
	return fmt.Errorf("deposit request %d not found or already settled", id)
}

func (r memoryDeposits) GetPending(ctx context.Context) ([]*models.DepositRequest, error) {
	if err := r.u.fail("GetPendingDeposits"); err != nil {
		return nil, err
	}
	var out []*models.DepositRequest
	for i := len(r.u.work.deposits) - 1; i >= 0; i-- {
		if d := r.u.work.deposits[i]; d.Status == models.RequestStatusPending {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r memoryDeposits) GetLatestApproved(ctx context.Context, userID string) (*models.DepositRequest, error) {
	var latest *models.DepositRequest
	for _, d := range r.u.work.deposits {
		if d.UserID == userID && d.Status == models.RequestStatusApproved {
			if latest == nil || d.DecidedAt.After(*latest.DecidedAt) {
				latest = d
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (r memoryDeposits) SumApproved(ctx context.Context) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, d := range r.u.work.deposits {
		if d.Status == models.RequestStatusApproved {
			total = total.Add(d.Amount)
		}
	}
	return total, nil
}

type memoryEscrow struct{ u *memoryUnitOfWork }

func (r memoryEscrow) Create(ctx context.Context, hold *models.Withdrawal) error {
	hold.ID = r.u.work.newID()
	hold.CreatedAt = r.u.work.tick()
	cp := *hold
	r.u.work.holds = append(r.u.work.holds, &cp)
	return nil
}

func (r memoryEscrow) find(keep func(*models.Withdrawal) bool) *models.Withdrawal {
	for _, h := range r.u.work.holds {
		if keep(h) {
			cp := *h
			return &cp
		}
	}
	return nil
}

func (r memoryEscrow) GetByIDForUpdate(ctx context.Context, id int64) (*models.Withdrawal, error) {
	return r.find(func(h *models.Withdrawal) bool { return h.ID == id }), nil
}

func (r memoryEscrow) FindPendingForUpdate(ctx context.Context, userID string, amount decimal.Decimal) (*models.Withdrawal, error) {
	return r.find(func(h *models.Withdrawal) bool {
		return h.UserID == userID && h.Amount.Equal(amount) && h.Status == models.RequestStatusPending
	}), nil
}

func (r memoryEscrow) FindReleasableForUpdate(ctx context.Context, userID string, amount decimal.Decimal) (*models.Withdrawal, error) {
	match := func(status models.RequestStatus) func(*models.Withdrawal) bool {
		return func(h *models.Withdrawal) bool {
			return h.UserID == userID && h.Amount.Equal(amount) && h.IsHeld() && h.Status == status
		}
	}
	if hold := r.find(match(models.RequestStatusRejected)); hold != nil {
		return hold, nil
	}
	return r.find(match(models.RequestStatusPending)), nil
}

func (r memoryEscrow) UpdateStatus(ctx context.Context, id int64, status models.RequestStatus, decidedBy string) error {
	for _, h := range r.u.work.holds {
		if h.ID == id && h.Status == models.RequestStatusPending {
			now := r.u.work.tick()
			h.Status = status
			h.DecidedAt = &now
			h.DecidedBy = &decidedBy
			return nil
		}
	}
	return fmt.Errorf("escrow hold %d not found or already settled", id)
}

func (r memoryEscrow) MarkReleased(ctx context.Context, id int64, releasedBy string) error {
	for _, h := range r.u.work.holds {
		if h.ID == id && h.IsHeld() {
			now := r.u.work.tick()
			h.ReleasedAt = &now
			h.Status = models.RequestStatusRejected
			if h.DecidedBy == nil {
				h.DecidedAt = &now
				h.DecidedBy = &releasedBy
			}
			return nil
		}
	}
	return fmt.Errorf("escrow hold %d not found or already released", id)
}

func (r memoryEscrow) GetPending(ctx context.Context) ([]*models.Withdrawal, error) {
	var out []*models.Withdrawal
	for i := len(r.u.work.holds) - 1; i >= 0; i-- {
		if h := r.u.work.holds[i]; h.Status == models.RequestStatusPending {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r memoryEscrow) sum(keep func(*models.Withdrawal) bool) decimal.Decimal {
	total := decimal.Zero
	for _, h := range r.u.work.holds {
		if keep(h) {
			total = total.Add(h.Amount)
		}
	}
	return total
}

func (r memoryEscrow) SumApproved(ctx context.Context) (decimal.Decimal, error) {
	return r.sum(func(h *models.Withdrawal) bool { return h.Status == models.RequestStatusApproved }), nil
}

func (r memoryEscrow) SumHeld(ctx context.Context) (decimal.Decimal, error) {
	return r.sum(func(h *models.Withdrawal) bool { return h.IsHeld() }), nil
}

func (r memoryEscrow) SumHeldByUser(ctx context.Context, userID string) (decimal.Decimal, error) {
	return r.sum(func(h *models.Withdrawal) bool { return h.UserID == userID && h.IsHeld() }), nil
}

type memoryAdminLogs struct{ u *memoryUnitOfWork }

func (r memoryAdminLogs) Record(ctx context.Context, entry *models.AdminLog) error {
	if err := r.u.fail("RecordAdminLog"); err != nil {
		return err
	}
	entry.ID = r.u.work.newID()
	entry.CreatedAt = r.u.work.tick()
	r.u.work.adminLogs = append(r.u.work.adminLogs, entry)
	return nil
}

func (r memoryAdminLogs) GetRecent(ctx context.Context, limit int) ([]*models.AdminLog, error) {
	var out []*models.AdminLog
	logs := r.u.work.adminLogs
	for i := len(logs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, logs[i])
	}
	return out, nil
}

type memoryReconciliation struct{ u *memoryUnitOfWork }

func (r memoryReconciliation) Snapshot(ctx context.Context) (*models.LedgerTotals, error) {
	if err := r.u.fail("Snapshot"); err != nil {
		return nil, err
	}
	deposits, _ := memoryDeposits(r).SumApproved(ctx)
	withdrawals, _ := memoryEscrow(r).SumApproved(ctx)
	held, _ := memoryEscrow(r).SumHeld(ctx)
	balances, _ := memoryAccounts(r).SumBalances(ctx)
	return &models.LedgerTotals{
		ApprovedDeposits:    deposits,
		ApprovedWithdrawals: withdrawals,
		HeldEscrow:          held,
		TotalBalances:       balances,
	}, nil
}
