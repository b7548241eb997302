package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/accountops/account-deletion/internal/domain"
	"github.com/accountops/account-deletion/internal/jobs"
	"github.com/accountops/account-deletion/internal/notify"
	"github.com/accountops/account-deletion/internal/repository"
)

type fakeDeletions struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*domain.DeletionRequest
}

func newFakeDeletions() *fakeDeletions {
	return &fakeDeletions{rows: make(map[int64]*domain.DeletionRequest)}
}

func (f *fakeDeletions) pendingLocked(userID string) *domain.DeletionRequest {
	for _, r := range f.rows {
		if r.UserID == userID && r.Status == domain.DeletionStatusPending {
			return r
		}
	}
	return nil
}

func (f *fakeDeletions) GetOrCreatePending(_ context.Context, candidate *domain.DeletionRequest) (*domain.DeletionRequest, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r := f.pendingLocked(candidate.UserID); r != nil {
		cp := *r
		return &cp, false, nil
	}
	f.nextID++
	row := *candidate
	row.ID = f.nextID
	row.Status = domain.DeletionStatusPending
	f.rows[row.ID] = &row
	cp := row
	return &cp, true, nil
}

func (f *fakeDeletions) GetPendingByUserID(_ context.Context, userID string) (*domain.DeletionRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r := f.pendingLocked(userID); r != nil {
		cp := *r
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeDeletions) GetLatestByUserID(_ context.Context, userID string) (*domain.DeletionRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *domain.DeletionRequest
	for _, r := range f.rows {
		if r.UserID == userID && (latest == nil || r.ID > latest.ID) {
			latest = r
		}
	}
	if latest == nil {
		return nil, pgx.ErrNoRows
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeDeletions) ListByStatus(_ context.Context, status domain.DeletionStatus, _, _ int) ([]domain.DeletionRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.DeletionRequest
	for _, r := range f.rows {
		if r.Status == status {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeDeletions) Save(_ context.Context, req *domain.DeletionRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[req.ID]
	if !ok || r.Status != domain.DeletionStatusPending {
		return repository.ErrDeletionNotPending
	}
	r.Reason = req.Reason
	r.EndDate = req.EndDate
	return nil
}

func (f *fakeDeletions) transition(id int64, apply func(r *domain.DeletionRequest)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok || r.Status != domain.DeletionStatusPending {
		return repository.ErrDeletionNotPending
	}
	apply(r)
	return nil
}

func (f *fakeDeletions) MarkCancelled(_ context.Context, id int64) error {
	return f.transition(id, func(r *domain.DeletionRequest) { r.Status = domain.DeletionStatusCancelled })
}

func (f *fakeDeletions) MarkComplete(_ context.Context, id int64, at time.Time) error {
	return f.transition(id, func(r *domain.DeletionRequest) {
		r.Status = domain.DeletionStatusComplete
		r.CompletionDate = &at
	})
}

func (f *fakeDeletions) MarkReminderSent(_ context.Context, id int64) error {
	return f.transition(id, func(r *domain.DeletionRequest) { r.ReminderSent = true })
}

func (f *fakeDeletions) BeginExecution(_ context.Context, id int64, snapshot domain.ExecutionSnapshot) error {
	return f.transition(id, func(r *domain.DeletionRequest) {
		snap := snapshot
		r.Execution = &snap
	})
}

func (f *fakeDeletions) all() []domain.DeletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.DeletionRequest, 0, len(f.rows))
	for _, r := range f.rows {
		out = append(out, *r)
	}
	return out
}

type fakeUsers struct {
	mu      sync.Mutex
	users   map[string]*domain.User
	renames []repository.UserWriteOptions
	deletes []repository.UserWriteOptions
}

func newFakeUsers(users ...*domain.User) *fakeUsers {
	f := &fakeUsers{users: make(map[string]*domain.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == "" {
		user.ID = "generated"
	}
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUsers) Update(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.users[user.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	cp := *user
	cp.Username = existing.Username
	cp.SecondaryGroupIDs = append([]int(nil), user.SecondaryGroupIDs...)
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	cp.SecondaryGroupIDs = append([]int(nil), u.SecondaryGroupIDs...)
	return &cp, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email != "" && u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUsers) Rename(_ context.Context, id, username string, opts repository.UserWriteOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.Username = username
	f.renames = append(f.renames, opts)
	return nil
}

func (f *fakeUsers) ClearEmail(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.Email = ""
	return nil
}

func (f *fakeUsers) Delete(_ context.Context, id string, opts repository.UserWriteOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.users, id)
	f.deletes = append(f.deletes, opts)
	return nil
}

type fakeAccounts struct {
	mu       sync.Mutex
	accounts map[string][]domain.ConnectedAccount
	profile  map[string]map[string]bool
}

func newFakeAccounts(accounts ...domain.ConnectedAccount) *fakeAccounts {
	f := &fakeAccounts{
		accounts: make(map[string][]domain.ConnectedAccount),
		profile:  make(map[string]map[string]bool),
	}
	for _, a := range accounts {
		f.accounts[a.UserID] = append(f.accounts[a.UserID], a)
		if f.profile[a.UserID] == nil {
			f.profile[a.UserID] = make(map[string]bool)
		}
		f.profile[a.UserID][a.Provider] = true
	}
	return f
}

func (f *fakeAccounts) ListByUser(_ context.Context, userID string) ([]domain.ConnectedAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ConnectedAccount(nil), f.accounts[userID]...), nil
}

func (f *fakeAccounts) Delete(_ context.Context, userID, provider string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.accounts[userID][:0]
	for _, a := range f.accounts[userID] {
		if a.Provider != provider {
			kept = append(kept, a)
		}
	}
	f.accounts[userID] = kept
	return nil
}

func (f *fakeAccounts) RemoveFromProfile(_ context.Context, userID, provider string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.profile[userID], provider)
	return nil
}

type fakeBans struct {
	mu   sync.Mutex
	bans map[string]domain.BannedEmail
	// failures makes the next n BanEmail calls fail.
	failures int
}

func newFakeBans() *fakeBans {
	return &fakeBans{bans: make(map[string]domain.BannedEmail)}
}

func (f *fakeBans) failNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = n
}

func (f *fakeBans) banned(email string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.bans[email]
	return ok
}

func (f *fakeBans) IsEmailBanned(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.bans[email]
	return ok, nil
}

func (f *fakeBans) BanEmail(_ context.Context, ban *domain.BannedEmail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("db down")
	}
	if _, ok := f.bans[ban.Email]; !ok {
		f.bans[ban.Email] = *ban
	}
	return nil
}

type fakeScheduler struct {
	mu   sync.Mutex
	jobs map[string]jobs.Job
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{jobs: make(map[string]jobs.Job)}
}

func (f *fakeScheduler) EnqueueAt(_ context.Context, key string, at time.Time, jobType jobs.Type, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[key] = jobs.Job{Key: key, Type: jobType, Payload: raw, RunAt: at}
	return nil
}

func (f *fakeScheduler) Cancel(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.jobs, key)
	return nil
}

func (f *fakeScheduler) job(key string) (jobs.Job, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[key]
	return j, ok
}

type sentMail struct {
	Template notify.Template
	To       notify.Recipient
	Vars     map[string]any
}

type fakeNotifier struct {
	mu      sync.Mutex
	sent    []sentMail
	queued  map[string]sentMail
	queues  int
	sendErr error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{queued: make(map[string]sentMail)}
}

func (f *fakeNotifier) Send(_ context.Context, tmpl notify.Template, to notify.Recipient, vars map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMail{Template: tmpl, To: to, Vars: vars})
	return nil
}

func (f *fakeNotifier) Queue(_ context.Context, key string, tmpl notify.Template, to notify.Recipient, vars map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queues++
	f.queued[key] = sentMail{Template: tmpl, To: to, Vars: vars}
	return nil
}

func (f *fakeNotifier) sentWith(tmpl notify.Template) []sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMail
	for _, m := range f.sent {
		if m.Template == tmpl {
			out = append(out, m)
		}
	}
	return out
}

type fakeSessions struct {
	mu      sync.Mutex
	revoked map[string]int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{revoked: make(map[string]int)}
}

func (f *fakeSessions) InvalidateSessions(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[userID]++
	return nil
}

func (f *fakeSessions) count(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revoked[userID]
}

type fakeProvider struct {
	mu      sync.Mutex
	cleared []domain.ConnectedAccount
}

func (f *fakeProvider) ClearProviderData(_ context.Context, account domain.ConnectedAccount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, account)
	return nil
}

type mutablePolicy struct {
	mu     sync.Mutex
	policy domain.DeletionPolicy
}

func (p *mutablePolicy) DeletionPolicy() domain.DeletionPolicy {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.policy
}

func (p *mutablePolicy) set(fn func(*domain.DeletionPolicy)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.policy)
}
