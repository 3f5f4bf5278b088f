package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/viralforge/identity-service/internal/adapters/memory"
	"github.com/viralforge/identity-service/internal/adapters/security"
	"github.com/viralforge/identity-service/internal/domain"
	"github.com/viralforge/identity-service/internal/ports"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (m *recordingMetrics) ObserveOutcome(operation, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = map[string]int{}
	}
	m.outcomes[operation+"/"+outcome]++
}

func (m *recordingMetrics) count(operation, outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcomes[operation+"/"+outcome]
}

type failingSessions struct {
	ports.RefreshSessionRepository
	err error
}

func (f failingSessions) Upsert(context.Context, domain.RefreshSession) error { return f.err }

type fixture struct {
	svc     *Service
	repos   memory.Repositories
	hasher  *security.BcryptHasher
	clock   *testClock
	metrics *recordingMetrics
}

func newFixture(t *testing.T, cfg Config, mutate ...func(*Dependencies)) *fixture {
	t.Helper()

	signer, err := security.NewJWTSigner("0123456789abcdef0123456789abcdef", "identity-test", "identity-clients")
	if err != nil {
		t.Fatalf("jwt signer: %v", err)
	}
	f := &fixture{
		repos:   memory.NewRepositories(),
		hasher:  security.NewBcryptHasher(bcrypt.MinCost),
		clock:   &testClock{now: time.Now().UTC().Truncate(time.Second)},
		metrics: &recordingMetrics{},
	}
	deps := Dependencies{
		Config:        cfg,
		Accounts:      f.repos.Accounts,
		Roles:         f.repos.Roles,
		AccountRoles:  f.repos.AccountRoles,
		Sessions:      f.repos.Sessions,
		UnitOfWork:    f.repos.UnitOfWork,
		Hasher:        f.hasher,
		TokenSigner:   signer,
		RefreshTokens: security.NewRefreshTokenGenerator(),
		Metrics:       f.metrics,
		Now:           f.clock.Now,
	}
	for _, fn := range mutate {
		fn(&deps)
	}
	f.svc = NewService(deps)
	return f
}

func (f *fixture) register(t *testing.T, name, email, password string) Result {
	t.Helper()
	return f.svc.Register(context.Background(), RegisterRequest{FullName: name, Email: email, Password: password})
}

func (f *fixture) roleOf(t *testing.T, email string) domain.Role {
	t.Helper()
	ctx := context.Background()
	account, err := f.repos.Accounts.FindByEmail(ctx, email)
	if err != nil {
		t.Fatalf("find %s: %v", email, err)
	}
	assignment, err := f.repos.AccountRoles.FindByAccountID(ctx, account.ID)
	if err != nil {
		t.Fatalf("role assignment of %s: %v", email, err)
	}
	role, err := f.repos.Roles.FindByID(ctx, assignment.RoleID)
	if err != nil {
		t.Fatalf("role of %s: %v", email, err)
	}
	return role
}

func TestRegistrationBootstrapsRoles(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})

	if res := f.register(t, "Ada", "ada@x.com", "secret1"); !res.OK || res.Message != MsgAccountCreated {
		t.Fatalf("register Ada: %+v", res)
	}
	if role := f.roleOf(t, "ada@x.com"); role.Name != domain.RoleAdmin {
		t.Fatalf("Ada should be Admin, got %q", role.Name)
	}

	if res := f.register(t, "Bob", "bob@x.com", "secret2"); !res.OK {
		t.Fatalf("register Bob: %+v", res)
	}
	bobRole := f.roleOf(t, "bob@x.com")
	if bobRole.Name != domain.RoleUser {
		t.Fatalf("Bob should be User, got %q", bobRole.Name)
	}

	res := f.register(t, "Cy", "ada@x.com", "secret3")
	if res.OK || res.Message != MsgAlreadyRegistered || res.Kind != domain.FailureConflict {
		t.Fatalf("register Cy: %+v", res)
	}
	if res.AccessToken != "" || res.RefreshToken != "" {
		t.Fatalf("failed result must not carry tokens: %+v", res)
	}

	if res := f.register(t, "Dee", "DEE@x.com", "secret4"); !res.OK {
		t.Fatalf("register Dee: %+v", res)
	}
	if deeRole := f.roleOf(t, "dee@x.com"); deeRole.ID != bobRole.ID {
		t.Fatalf("third registrant should reuse the User role %s, got %s", bobRole.ID, deeRole.ID)
	}

	ada, err := f.repos.Accounts.FindByEmail(context.Background(), "ada@x.com")
	if err != nil {
		t.Fatalf("find Ada: %v", err)
	}
	if ada.FullName != "Ada" {
		t.Fatalf("duplicate registration must not overwrite Ada: %+v", ada)
	}
	if ada.PasswordHash == "secret1" {
		t.Fatal("password must be stored hashed")
	}
	if f.metrics.count("register", "success") != 3 || f.metrics.count("register", string(domain.FailureConflict)) != 1 {
		t.Fatalf("unexpected metrics: %+v", f.metrics.outcomes)
	}
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		req  RegisterRequest
		msg  string
	}{
		{name: "empty", req: RegisterRequest{}, msg: MsgModelEmpty},
		{name: "missing name", req: RegisterRequest{Email: "a@x.com", Password: "pw"}, msg: MsgModelEmpty},
		{name: "missing password", req: RegisterRequest{FullName: "A", Email: "a@x.com"}, msg: MsgModelEmpty},
		{name: "bad email", req: RegisterRequest{FullName: "A", Email: "not-an-email", Password: "pw"}, msg: MsgInvalidEmail},
		{name: "display name email", req: RegisterRequest{FullName: "A", Email: "A <a@x.com>", Password: "pw"}, msg: MsgInvalidEmail},
		{name: "confirmation mismatch", req: RegisterRequest{FullName: "A", Email: "a@x.com", Password: "pw", ConfirmPassword: "other"}, msg: MsgPasswordMismatch},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, Config{})
			res := f.svc.Register(context.Background(), tc.req)
			if res.OK || res.Message != tc.msg || res.Kind != domain.FailureValidation {
				t.Fatalf("expected %q validation failure, got %+v", tc.msg, res)
			}
			if _, err := f.repos.Roles.FindByName(context.Background(), domain.RoleAdmin); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("rejected registration must not bootstrap roles, got %v", err)
			}
		})
	}
}

func TestRegisterEnqueuesAccountRegisteredEvent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	if res := f.register(t, "Ada", "ada@x.com", "secret1"); !res.OK {
		t.Fatalf("register: %+v", res)
	}

	records, err := f.repos.Outbox.ClaimUnpublished(context.Background(), 10, "test", time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(records) != 1 || records[0].EventType != domain.EventAccountRegistered {
		t.Fatalf("expected one registration event, got %+v", records)
	}
	var payload accountRegisteredEvent
	if err := json.Unmarshal(records[0].Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Email != "ada@x.com" || payload.Role != domain.RoleAdmin || payload.AccountID != records[0].PartitionKey {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestSignIn(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	if res := f.register(t, "Ada", "ada@x.com", "secret1"); !res.OK {
		t.Fatalf("register: %+v", res)
	}
	ctx := context.Background()

	res := f.svc.SignIn(ctx, SignInRequest{Email: " ADA@x.com", Password: "secret1"})
	if !res.OK || res.Message != MsgLoginSuccess || res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatalf("sign in: %+v", res)
	}

	res = f.svc.SignIn(ctx, SignInRequest{Email: "ada@x.com", Password: "wrong"})
	if res.OK || res.Message != MsgInvalidCredentials || res.Kind != domain.FailureAuthentication || res.AccessToken != "" {
		t.Fatalf("wrong password: %+v", res)
	}

	res = f.svc.SignIn(ctx, SignInRequest{Email: "nobody@x.com", Password: "secret1"})
	if res.OK || res.Message != MsgUserNotFound || res.Kind != domain.FailureNotFound || res.RefreshToken != "" {
		t.Fatalf("unknown email: %+v", res)
	}

	res = f.svc.SignIn(ctx, SignInRequest{Email: "", Password: "secret1"})
	if res.OK || res.Message != MsgModelEmpty {
		t.Fatalf("empty email: %+v", res)
	}
}

func TestSignInUnifiedCredentialFailures(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{UnifyCredentialFailures: true})
	if res := f.register(t, "Ada", "ada@x.com", "secret1"); !res.OK {
		t.Fatalf("register: %+v", res)
	}
	ctx := context.Background()

	unknown := f.svc.SignIn(ctx, SignInRequest{Email: "nobody@x.com", Password: "secret1"})
	wrong := f.svc.SignIn(ctx, SignInRequest{Email: "ada@x.com", Password: "nope"})
	if unknown.Message != MsgInvalidCredentials || wrong.Message != MsgInvalidCredentials {
		t.Fatalf("expected identical messages, got %q and %q", unknown.Message, wrong.Message)
	}
	if unknown.Kind != wrong.Kind {
		t.Fatalf("expected identical kinds, got %q and %q", unknown.Kind, wrong.Kind)
	}
}

func TestSignInReplacesPreviousRefreshSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	if res := f.register(t, "Ada", "ada@x.com", "secret1"); !res.OK {
		t.Fatalf("register: %+v", res)
	}
	ctx := context.Background()
	first := f.svc.SignIn(ctx, SignInRequest{Email: "ada@x.com", Password: "secret1"})
	second := f.svc.SignIn(ctx, SignInRequest{Email: "ada@x.com", Password: "secret1"})
	if !first.OK || !second.OK {
		t.Fatalf("sign in: %+v %+v", first, second)
	}
	if res := f.svc.RefreshSession(ctx, RefreshRequest{RefreshToken: first.RefreshToken}); res.OK {
		t.Fatalf("superseded refresh token must be rejected: %+v", res)
	}
	if res := f.svc.RefreshSession(ctx, RefreshRequest{RefreshToken: second.RefreshToken}); !res.OK {
		t.Fatalf("latest refresh token must be accepted: %+v", res)
	}
}

func TestRefreshRotationIsSingleUse(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	if res := f.register(t, "Ada", "ada@x.com", "secret1"); !res.OK {
		t.Fatalf("register: %+v", res)
	}
	ctx := context.Background()

	login := f.svc.SignIn(ctx, SignInRequest{Email: "ada@x.com", Password: "secret1"})
	if !login.OK {
		t.Fatalf("sign in: %+v", login)
	}

	refreshed := f.svc.RefreshSession(ctx, RefreshRequest{RefreshToken: login.RefreshToken})
	if !refreshed.OK || refreshed.Message != MsgTokenRefreshed {
		t.Fatalf("refresh: %+v", refreshed)
	}
	if refreshed.RefreshToken == login.RefreshToken || refreshed.AccessToken == login.AccessToken {
		t.Fatal("refresh must issue new tokens")
	}

	replay := f.svc.RefreshSession(ctx, RefreshRequest{RefreshToken: login.RefreshToken})
	if replay.OK || replay.Message != MsgInvalidRefreshToken || replay.AccessToken != "" {
		t.Fatalf("original token must be rejected: %+v", replay)
	}

	next := f.svc.RefreshSession(ctx, RefreshRequest{RefreshToken: refreshed.RefreshToken})
	if !next.OK {
		t.Fatalf("new token must be accepted once: %+v", next)
	}
	if again := f.svc.RefreshSession(ctx, RefreshRequest{RefreshToken: refreshed.RefreshToken}); again.OK {
		t.Fatalf("new token must be accepted only once: %+v", again)
	}

	if empty := f.svc.RefreshSession(ctx, RefreshRequest{RefreshToken: ""}); empty.Message != MsgModelEmpty {
		t.Fatalf("empty token: %+v", empty)
	}
}

func TestRefreshRequiresExactToken(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	if res := f.register(t, "Ada", "ada@x.com", "secret1"); !res.OK {
		t.Fatalf("register: %+v", res)
	}
	ctx := context.Background()

	login := f.svc.SignIn(ctx, SignInRequest{Email: "ada@x.com", Password: "secret1"})
	if !login.OK {
		t.Fatalf("sign in: %+v", login)
	}

	for _, presented := range []string{" " + login.RefreshToken + " ", login.RefreshToken + "\n", "  "} {
		res := f.svc.RefreshSession(ctx, RefreshRequest{RefreshToken: presented})
		if res.OK || res.Message != MsgInvalidRefreshToken || res.Kind != domain.FailureNotFound {
			t.Fatalf("padded token %q must not match: %+v", presented, res)
		}
		if revoked := f.svc.Revoke(ctx, RevokeRequest{RefreshToken: presented}); revoked.OK {
			t.Fatalf("padded token %q must not revoke: %+v", presented, revoked)
		}
	}

	if res := f.svc.RefreshSession(ctx, RefreshRequest{RefreshToken: login.RefreshToken}); !res.OK {
		t.Fatalf("exact token must still be accepted: %+v", res)
	}
}

func TestConcurrentRefreshHasSingleWinner(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	if res := f.register(t, "Ada", "ada@x.com", "secret1"); !res.OK {
		t.Fatalf("register: %+v", res)
	}
	login := f.svc.SignIn(context.Background(), SignInRequest{Email: "ada@x.com", Password: "secret1"})
	if !login.OK {
		t.Fatalf("sign in: %+v", login)
	}

	const callers = 8
	results := make([]Result, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = f.svc.RefreshSession(context.Background(), RefreshRequest{RefreshToken: login.RefreshToken})
		}()
	}
	wg.Wait()

	wins := 0
	for _, res := range results {
		if res.OK {
			wins++
			continue
		}
		if res.Message != MsgInvalidRefreshToken {
			t.Fatalf("losers must see an invalid token, got %+v", res)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one successful refresh, got %d", wins)
	}
}

func TestConcurrentFirstRegistrationsYieldOneAdmin(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if res := f.register(t, fmt.Sprintf("user-%d", i), fmt.Sprintf("user%d@x.com", i), "pw"); !res.OK {
				t.Errorf("register %d: %+v", i, res)
			}
		}()
	}
	wg.Wait()

	admins := 0
	for i := 0; i < callers; i++ {
		if f.roleOf(t, fmt.Sprintf("user%d@x.com", i)).Name == domain.RoleAdmin {
			admins++
		}
	}
	if admins != 1 {
		t.Fatalf("expected exactly one admin, got %d", admins)
	}
}

func TestAccessTokenClaimsRoundTrip(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	if res := f.register(t, "Ada", "ada@x.com", "secret1"); !res.OK {
		t.Fatalf("register: %+v", res)
	}
	ctx := context.Background()
	login := f.svc.SignIn(ctx, SignInRequest{Email: "ada@x.com", Password: "secret1"})
	if !login.OK {
		t.Fatalf("sign in: %+v", login)
	}

	claims, err := f.svc.ValidateAccessToken(ctx, login.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	ada, err := f.repos.Accounts.FindByEmail(ctx, "ada@x.com")
	if err != nil {
		t.Fatalf("find Ada: %v", err)
	}
	if claims.AccountID != ada.ID || claims.Name != "Ada" || claims.Email != "ada@x.com" || claims.Role != domain.RoleAdmin {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt); got != 24*time.Hour {
		t.Fatalf("expected 24h expiry, got %s", got)
	}
	if !claims.IssuedAt.Equal(f.clock.Now()) {
		t.Fatalf("issued at %s, expected %s", claims.IssuedAt, f.clock.Now())
	}

	if _, err := f.svc.ValidateAccessToken(ctx, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("empty token: expected invalid input, got %v", err)
	}
	if _, err := f.svc.ValidateAccessToken(ctx, login.AccessToken+"x"); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("tampered token: expected invalid token, got %v", err)
	}
}

func TestRevokeInvalidatesRefreshToken(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	if res := f.register(t, "Ada", "ada@x.com", "secret1"); !res.OK {
		t.Fatalf("register: %+v", res)
	}
	ctx := context.Background()
	login := f.svc.SignIn(ctx, SignInRequest{Email: "ada@x.com", Password: "secret1"})

	if res := f.svc.Revoke(ctx, RevokeRequest{RefreshToken: login.RefreshToken}); !res.OK || res.Message != MsgSignedOut {
		t.Fatalf("revoke: %+v", res)
	}
	if res := f.svc.RefreshSession(ctx, RefreshRequest{RefreshToken: login.RefreshToken}); res.OK || res.Message != MsgInvalidRefreshToken {
		t.Fatalf("revoked token must be rejected: %+v", res)
	}
	if res := f.svc.Revoke(ctx, RevokeRequest{RefreshToken: login.RefreshToken}); res.OK || res.Message != MsgInvalidRefreshToken {
		t.Fatalf("second revoke: %+v", res)
	}
}

func TestRefreshSessionExpiry(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{RefreshSessionTTL: time.Hour})
	if res := f.register(t, "Ada", "ada@x.com", "secret1"); !res.OK {
		t.Fatalf("register: %+v", res)
	}
	ctx := context.Background()
	login := f.svc.SignIn(ctx, SignInRequest{Email: "ada@x.com", Password: "secret1"})

	f.clock.Advance(2 * time.Hour)
	res := f.svc.RefreshSession(ctx, RefreshRequest{RefreshToken: login.RefreshToken})
	if res.OK || res.Message != MsgRefreshExpired || res.Kind != domain.FailureAuthentication {
		t.Fatalf("expected expired refresh, got %+v", res)
	}
}

func TestSignInWithoutRoleAssignmentIsIntegrityFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	ctx := context.Background()
	digest, err := f.hasher.Hash("secret1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if _, err := f.repos.Accounts.Insert(ctx, domain.Account{ID: uuid.New(), FullName: "Ada", Email: "ada@x.com", PasswordHash: digest}); err != nil {
		t.Fatalf("insert account: %v", err)
	}

	res := f.svc.SignIn(ctx, SignInRequest{Email: "ada@x.com", Password: "secret1"})
	if res.OK || res.Message != MsgRoleNotFound || res.Kind != domain.FailureIntegrity {
		t.Fatalf("expected integrity failure, got %+v", res)
	}
	if f.metrics.count("sign_in", string(domain.FailureIntegrity)) != 1 {
		t.Fatalf("integrity failure must be recorded: %+v", f.metrics.outcomes)
	}
}

func TestSignInWithMalformedDigestIsIntegrityFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	ctx := context.Background()
	if _, err := f.repos.Accounts.Insert(ctx, domain.Account{ID: uuid.New(), FullName: "Ada", Email: "ada@x.com", PasswordHash: "plaintext"}); err != nil {
		t.Fatalf("insert account: %v", err)
	}

	res := f.svc.SignIn(ctx, SignInRequest{Email: "ada@x.com", Password: "plaintext"})
	if res.OK || res.Kind != domain.FailureIntegrity || res.Message != MsgInternalFailure {
		t.Fatalf("expected integrity failure, got %+v", res)
	}
}

func TestRefreshForMissingAccountIsIntegrityFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	ctx := context.Background()
	now := f.clock.Now()
	if err := f.repos.Sessions.Upsert(ctx, domain.RefreshSession{
		AccountID: uuid.New(),
		TokenHash: hashToken("orphan-token"),
		IssuedAt:  now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	res := f.svc.RefreshSession(ctx, RefreshRequest{RefreshToken: "orphan-token"})
	if res.OK || res.Message != MsgUserNotFound || res.Kind != domain.FailureIntegrity {
		t.Fatalf("expected integrity failure, got %+v", res)
	}
}

func TestStoreFailureIsRecoveredIntoResult(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{}, func(deps *Dependencies) {
		deps.Sessions = failingSessions{RefreshSessionRepository: deps.Sessions, err: errors.New("connection reset")}
	})
	if res := f.register(t, "Ada", "ada@x.com", "secret1"); !res.OK {
		t.Fatalf("register: %+v", res)
	}

	res := f.svc.SignIn(context.Background(), SignInRequest{Email: "ada@x.com", Password: "secret1"})
	if res.OK || res.Message != MsgInternalFailure || res.Kind != domain.FailureInternal || res.AccessToken != "" {
		t.Fatalf("expected generic failure, got %+v", res)
	}
}
