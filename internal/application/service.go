package application

import (
	"time"

	"github.com/viralforge/identity-service/internal/ports"
)

const (
	serviceName    = "Identity-Service"
	accessTokenTTL = 24 * time.Hour
)

// Service is the authentication workflow. It owns every lifecycle transition of
// accounts, role assignments and refresh sessions; stores hold no business logic.
type Service struct {
	cfg           Config
	accounts      ports.AccountRepository
	roles         ports.RoleRepository
	accountRoles  ports.AccountRoleRepository
	sessions      ports.RefreshSessionRepository
	uow           ports.UnitOfWork
	hasher        ports.PasswordHasher
	tokenSigner   ports.TokenSigner
	refreshTokens ports.RefreshTokenGenerator
	metrics       ports.Metrics
	nowFn         func() time.Time
}

type Dependencies struct {
	Config        Config
	Accounts      ports.AccountRepository
	Roles         ports.RoleRepository
	AccountRoles  ports.AccountRoleRepository
	Sessions      ports.RefreshSessionRepository
	UnitOfWork    ports.UnitOfWork
	Hasher        ports.PasswordHasher
	TokenSigner   ports.TokenSigner
	RefreshTokens ports.RefreshTokenGenerator
	Metrics       ports.Metrics
	Now           func() time.Time
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	metrics := deps.Metrics
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	nowFn := deps.Now
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		cfg:           cfg,
		accounts:      deps.Accounts,
		roles:         deps.Roles,
		accountRoles:  deps.AccountRoles,
		sessions:      deps.Sessions,
		uow:           deps.UnitOfWork,
		hasher:        deps.Hasher,
		tokenSigner:   deps.TokenSigner,
		refreshTokens: deps.RefreshTokens,
		metrics:       metrics,
		nowFn:         nowFn,
	}
}
