package impl

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"backoffice/internal/domain/entity"
	"backoffice/internal/domain/repository"
	"backoffice/internal/domain/service"
	"backoffice/internal/infra/auth"
	"backoffice/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// memStore backs every fake repository. All writes take the lock and check their
// guard before mutating, mirroring the conditional updates of the SQL repositories.
type memStore struct {
	mu          sync.Mutex
	users       map[uuid.UUID]*entity.User
	roles       map[string]*entity.Role
	permissions map[string]*entity.Permission
	sessions    map[uuid.UUID]*entity.Session
	challenges  map[uuid.UUID]*entity.Challenge

	// onLockedRead runs after FindByIDForUpdate releases the store mutex. Tests use it to
	// interleave a competing writer; a real row lock would block that writer instead.
	onLockedRead func(id uuid.UUID)
}

func newMemStore() *memStore {
	return &memStore{
		users:       make(map[uuid.UUID]*entity.User),
		roles:       make(map[string]*entity.Role),
		permissions: make(map[string]*entity.Permission),
		sessions:    make(map[uuid.UUID]*entity.Session),
		challenges:  make(map[uuid.UUID]*entity.Challenge),
	}
}

func copyUser(u *entity.User) *entity.User {
	out := *u
	out.Roles = slices.Clone(u.Roles)

	return &out
}

func copySession(s *entity.Session) *entity.Session {
	out := *s

	return &out
}

func copyChallenge(c *entity.Challenge) *entity.Challenge {
	out := *c

	return &out
}

func (s *memStore) liveSessions(userID uuid.UUID, now time.Time) []*entity.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	var live []*entity.Session
	for _, session := range s.sessions {
		if session.UserID == userID && session.IsLive(now) {
			live = append(live, copySession(session))
		}
	}

	return live
}

func (s *memStore) challenge(id uuid.UUID) *entity.Challenge {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.challenges[id]; ok {
		return copyChallenge(c)
	}

	return nil
}

// --- Transaction manager ---

type fakeTxManager struct {
	factory repository.RepositoryFactory
}

func (tm *fakeTxManager) Execute(_ context.Context, fn func(txRepoFactory repository.RepositoryFactory) error) error {
	return fn(tm.factory)
}

type fakeRepoFactory struct {
	store *memStore
}

func (f *fakeRepoFactory) UserRepo() repository.UserRepository { return &fakeUserRepo{f.store} }

func (f *fakeRepoFactory) RoleRepo() repository.RoleRepository { return &fakeRoleRepo{f.store} }

func (f *fakeRepoFactory) SessionRepo() repository.SessionRepository {
	return &fakeSessionRepo{f.store}
}

func (f *fakeRepoFactory) ChallengeRepo() repository.ChallengeRepository {
	return &fakeChallengeRepo{f.store}
}

// --- Users ---

type fakeUserRepo struct{ s *memStore }

func (r *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}

	return r.withGraph(user), nil
}

func (r *fakeUserRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	user, err := r.FindByID(ctx, id)
	if err == nil && r.s.onLockedRead != nil {
		r.s.onLockedRead(id)
	}

	return user, err
}

func (r *fakeUserRepo) FindActiveByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	user, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, repository.ErrUserNotFound
	}

	return user, nil
}

func (r *fakeUserRepo) FindActiveByEmail(_ context.Context, email string) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, user := range r.s.users {
		if user.Email == email && user.IsActive {
			return r.withGraph(user), nil
		}
	}

	return nil, repository.ErrUserNotFound
}

// withGraph resolves role references against the current role table, like a Preload would.
func (r *fakeUserRepo) withGraph(user *entity.User) *entity.User {
	out := copyUser(user)
	for i, role := range out.Roles {
		if current, ok := r.s.roles[role.Name]; ok {
			out.Roles[i] = current
		}
	}

	return out
}

func (r *fakeUserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, user := range r.s.users {
		if user.Email == email {
			return true, nil
		}
	}

	return false, nil
}

func (r *fakeUserRepo) Create(_ context.Context, user *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.users {
		if existing.Email == user.Email {
			return repository.ErrUserEmailTaken
		}
	}
	r.s.users[user.ID] = copyUser(user)

	return nil
}

func (r *fakeUserRepo) UpdateNames(_ context.Context, user *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.users[user.ID]
	if !ok {
		return repository.ErrUserNotFound
	}
	stored.FirstName = user.FirstName
	stored.LastName = user.LastName

	return nil
}

func (r *fakeUserRepo) UpdatePasswordHash(_ context.Context, id uuid.UUID, passwordHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	stored.PasswordHash = passwordHash

	return nil
}

func (r *fakeUserRepo) ReplaceRoles(_ context.Context, userID uuid.UUID, roles []*entity.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	stored.Roles = slices.Clone(roles)

	return nil
}

func (r *fakeUserRepo) Deactivate(_ context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.users[id]
	if !ok || !stored.IsActive {
		return false, nil
	}
	stored.IsActive = false

	return true, nil
}

func (r *fakeUserRepo) Activate(_ context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.users[id]
	if !ok || stored.IsActive {
		return false, nil
	}
	stored.IsActive = true

	return true, nil
}

func (r *fakeUserRepo) TouchLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if stored, ok := r.s.users[id]; ok {
		stored.LastLogin = &at
	}

	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(r.s.users, id)

	return nil
}

// --- Roles ---

type fakeRoleRepo struct{ s *memStore }

func (r *fakeRoleRepo) FindByName(_ context.Context, name string) (*entity.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	role, ok := r.s.roles[name]
	if !ok {
		return nil, repository.ErrRoleNotFound
	}

	return role, nil
}

func (r *fakeRoleRepo) FindByNames(ctx context.Context, names []string) ([]*entity.Role, error) {
	unique := slices.Compact(slices.Sorted(slices.Values(names)))
	roles := make([]*entity.Role, 0, len(unique))
	for _, name := range unique {
		role, err := r.FindByName(ctx, name)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}

	return roles, nil
}

func (r *fakeRoleRepo) UpsertPermission(_ context.Context, permission *entity.Permission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if stored, ok := r.s.permissions[permission.Name]; ok {
		permission.ID = stored.ID
		stored.Description = permission.Description

		return nil
	}
	permission.ID = uuid.New()
	stored := *permission
	r.s.permissions[permission.Name] = &stored

	return nil
}

func (r *fakeRoleRepo) UpsertRole(_ context.Context, role *entity.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if stored, ok := r.s.roles[role.Name]; ok {
		role.ID = stored.ID
	} else {
		role.ID = uuid.New()
	}
	stored := *role
	stored.Permissions = slices.Clone(role.Permissions)
	r.s.roles[role.Name] = &stored

	return nil
}

// --- Sessions ---

type fakeSessionRepo struct{ s *memStore }

func (r *fakeSessionRepo) Create(_ context.Context, session *entity.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.sessions {
		if existing.UserID == session.UserID && existing.JTI == session.JTI {
			return repository.ErrSessionExists
		}
	}
	r.s.sessions[session.ID] = copySession(session)

	return nil
}

func (r *fakeSessionRepo) FindLive(_ context.Context, userID uuid.UUID, jti string, now time.Time) (*entity.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, session := range r.s.sessions {
		if session.UserID == userID && session.JTI == jti && session.IsLive(now) {
			return copySession(session), nil
		}
	}

	return nil, repository.ErrSessionNotFound
}

func (r *fakeSessionRepo) Revoke(_ context.Context, sessionID, userID uuid.UUID, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	session, ok := r.s.sessions[sessionID]
	if !ok || session.UserID != userID || !session.IsLive(now) {
		return repository.ErrSessionNotFound
	}
	session.RevokedAt = &now

	return nil
}

func (r *fakeSessionRepo) RevokeByJTI(_ context.Context, userID uuid.UUID, jti string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, session := range r.s.sessions {
		if session.UserID == userID && session.JTI == jti && session.IsLive(now) {
			session.RevokedAt = &now

			return nil
		}
	}

	return repository.ErrSessionNotFound
}

func (r *fakeSessionRepo) RevokeAllByUserID(_ context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var revoked int64
	for _, session := range r.s.sessions {
		if session.UserID == userID && session.IsLive(now) {
			session.RevokedAt = &now
			revoked++
		}
	}

	return revoked, nil
}

func (r *fakeSessionRepo) ListLive(_ context.Context, userID uuid.UUID, now time.Time, offset, limit int) ([]*entity.Session, int64, error) {
	live := r.s.liveSessions(userID, now)
	slices.SortFunc(live, func(a, b *entity.Session) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	total := int64(len(live))
	if offset >= len(live) {
		return []*entity.Session{}, total, nil
	}

	return live[offset:min(offset+limit, len(live))], total, nil
}

func (r *fakeSessionRepo) DeleteStale(_ context.Context, now, revokedBefore time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var deleted int64
	for id, session := range r.s.sessions {
		if !session.ExpiresAt.After(now) || (session.RevokedAt != nil && session.RevokedAt.Before(revokedBefore)) {
			delete(r.s.sessions, id)
			deleted++
		}
	}

	return deleted, nil
}

// --- Challenges ---

type fakeChallengeRepo struct{ s *memStore }

func (r *fakeChallengeRepo) Create(_ context.Context, challenge *entity.Challenge) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.challenges[challenge.ID] = copyChallenge(challenge)

	return nil
}

func (r *fakeChallengeRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Challenge, error) {
	if c := r.s.challenge(id); c != nil {
		return c, nil
	}

	return nil, repository.ErrChallengeNotFound
}

func (r *fakeChallengeRepo) InvalidatePending(_ context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var invalidated int64
	for _, c := range r.s.challenges {
		if c.UserID == userID && c.IsPending(now) {
			c.UsedAt = &now
			invalidated++
		}
	}

	return invalidated, nil
}

func (r *fakeChallengeRepo) RecordFailure(_ context.Context, id uuid.UUID, maxAttempts int, now time.Time) (*entity.Challenge, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.challenges[id]
	if !ok || !c.IsPending(now) {
		return nil, repository.ErrChallengeNotPending
	}
	c.Attempts++
	if c.Attempts >= maxAttempts {
		c.UsedAt = &now
	}

	return copyChallenge(c), nil
}

func (r *fakeChallengeRepo) Consume(_ context.Context, id uuid.UUID, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.challenges[id]
	if !ok || !c.IsPending(now) {
		return repository.ErrChallengeNotPending
	}
	c.UsedAt = &now

	return nil
}

func (r *fakeChallengeRepo) DeleteStale(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var deleted int64
	for id, c := range r.s.challenges {
		if c.ExpiresAt.Before(cutoff) || (c.UsedAt != nil && c.UsedAt.Before(cutoff)) {
			delete(r.s.challenges, id)
			deleted++
		}
	}

	return deleted, nil
}

// --- Collaborators ---

type fakeAudit struct {
	mu      sync.Mutex
	entries []*entity.AuditEntry
}

func (a *fakeAudit) Record(_ context.Context, entry *entity.AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries = append(a.entries, entry)
}

// statuses returns the recorded statuses of one action in recording order.
func (a *fakeAudit) statuses(action string) []entity.AuditStatus {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []entity.AuditStatus
	for _, entry := range a.entries {
		if entry.Action == action {
			out = append(out, entry.Status)
		}
	}

	return out
}

func (a *fakeAudit) last() *entity.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.entries) == 0 {
		return nil
	}

	return a.entries[len(a.entries)-1]
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Send(ctx context.Context, address, code string, ttl time.Duration) error {
	args := m.Called(ctx, address, code, ttl)

	return args.Error(0)
}

// codeInbox keeps the last code delivered per address.
type codeInbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (in *codeInbox) capture(args mock.Arguments) {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.codes[args.String(1)] = args.String(2)
}

func (in *codeInbox) code(address string) string {
	in.mu.Lock()
	defer in.mu.Unlock()

	return in.codes[address]
}

// --- Fixture ---

type authFixture struct {
	store      *memStore
	audit      *fakeAudit
	notifier   *mockNotifier
	inbox      *codeInbox
	tokens     service.TokenService
	auth       usecase.AuthUsecase
	access     usecase.AccessUsecase
	sessions   usecase.SessionUsecase
	users      usecase.UserUsecase
	challenges usecase.ChallengeUsecase
	seed       usecase.SeedUsecase
}

// newAuthFixture wires the real token issuer and bcrypt hashers over the in-memory store
// and seeds the system roles.
func newAuthFixture(t *testing.T, twoFactor bool) *authFixture {
	t.Helper()

	cfg := newTestConfig(twoFactor)
	logger := newDiscardLogger()
	store := newMemStore()
	factory := &fakeRepoFactory{store: store}
	txManager := &fakeTxManager{factory: factory}
	audit := &fakeAudit{}
	inbox := &codeInbox{codes: make(map[string]string)}

	notifier := &mockNotifier{}
	notifier.On("Send", mock.Anything, mock.Anything, mock.Anything, cfg.TwoFactor.CodeTTL).
		Run(inbox.capture).
		Return(nil).
		Maybe()

	tokens, err := auth.NewJWTService(cfg)
	require.NoError(t, err)
	hasher := auth.NewBcryptHasher(cfg)

	challenges := NewChallengeService(ChallengeServiceParams{
		TxManager:     txManager,
		ChallengeRepo: factory.ChallengeRepo(),
		CodeHasher:    auth.NewBcryptCodeHasher(cfg),
		Generator:     auth.NewCodeGenerator(cfg),
		Notifier:      notifier,
		Config:        cfg,
		Logger:        logger,
	})

	authUC, err := NewAuthService(AuthServiceParams{
		TxManager:    txManager,
		UserRepo:     factory.UserRepo(),
		SessionRepo:  factory.SessionRepo(),
		Hasher:       hasher,
		TokenService: tokens,
		Challenges:   challenges,
		Audit:        audit,
		Config:       cfg,
		Logger:       logger,
	})
	require.NoError(t, err)

	f := &authFixture{
		store:      store,
		audit:      audit,
		notifier:   notifier,
		inbox:      inbox,
		tokens:     tokens,
		challenges: challenges,
		auth:       authUC,
		access: NewAccessService(AccessServiceParams{
			UserRepo:     factory.UserRepo(),
			SessionRepo:  factory.SessionRepo(),
			TokenService: tokens,
			Config:       cfg,
			Logger:       logger,
		}),
		sessions: NewSessionService(SessionServiceParams{
			SessionRepo:   factory.SessionRepo(),
			ChallengeRepo: factory.ChallengeRepo(),
			Audit:         audit,
			Config:        cfg,
			Logger:        logger,
		}),
		users: NewUserService(UserServiceParams{
			TxManager: txManager,
			UserRepo:  factory.UserRepo(),
			Hasher:    hasher,
			Audit:     audit,
			Config:    cfg,
			Logger:    logger,
		}),
		seed: NewSeedService(SeedServiceParams{
			TxManager: txManager,
			Hasher:    hasher,
			Logger:    logger,
		}),
	}

	_, err = f.seed.Seed(context.Background(), usecase.SeedInput{})
	require.NoError(t, err)

	return f
}

var testClient = usecase.ClientInfo{IP: "203.0.113.7", UserAgent: "fixture/1.0"}

func (f *authFixture) register(t *testing.T, email, password string) *entity.User {
	t.Helper()

	user, err := f.auth.Register(context.Background(), usecase.RegisterInput{
		FirstName: "Test",
		LastName:  "User",
		Email:     email,
		Password:  password,
		Client:    testClient,
	})
	require.NoError(t, err)

	return user
}

func (f *authFixture) login(t *testing.T, email, password string) *usecase.LoginOutput {
	t.Helper()

	out, err := f.auth.Login(context.Background(), usecase.LoginInput{Email: email, Password: password, Client: testClient})
	require.NoError(t, err)

	return out
}

// grantRoles assigns roles directly in the store, bypassing the admin usecase.
func (f *authFixture) grantRoles(t *testing.T, userID uuid.UUID, names ...string) {
	t.Helper()

	roles, err := (&fakeRoleRepo{f.store}).FindByNames(context.Background(), names)
	require.NoError(t, err)
	require.NoError(t, (&fakeUserRepo{f.store}).ReplaceRoles(context.Background(), userID, roles))
}
