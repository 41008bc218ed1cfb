package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"farmlink/platform/platform-backend/internal/apperr"
	"farmlink/platform/platform-backend/internal/middleware"
	"farmlink/platform/platform-backend/internal/users"
	"farmlink/platform/platform-backend/pkg/security"
)

// UserProvider is the slice of the users service auth needs
type UserProvider interface {
	FindOrCreateByAddress(ctx context.Context, address string) (*users.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*users.User, error)
}

// AdminChecker decides whether an address has admin rights
type AdminChecker interface {
	IsAdmin(address string) bool
}

type Challenge struct {
	Address   string    `json:"address"`
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *users.User `json:"user"`
	IsAdmin   bool        `json:"is_admin"`
}

type Service struct {
	nonces   NonceStore
	users    UserProvider
	admins   AdminChecker
	tokens   *middleware.TokenManager
	nonceTTL time.Duration
	logger   *zap.Logger
}

func NewService(nonces NonceStore, users UserProvider, admins AdminChecker, tokens *middleware.TokenManager, nonceTTL time.Duration, logger *zap.Logger) *Service {
	return &Service{
		nonces:   nonces,
		users:    users,
		admins:   admins,
		tokens:   tokens,
		nonceTTL: nonceTTL,
		logger:   logger,
	}
}

// Challenge issues a fresh nonce for address, replacing any outstanding one
func (s *Service) Challenge(ctx context.Context, address string) (*Challenge, error) {
	addr, err := security.NormalizeAddress(address)
	if err != nil {
		return nil, apperr.Validation("invalid wallet address")
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	nonce := hexutil.Encode(buf)

	if err := s.nonces.Put(ctx, addr, nonce, s.nonceTTL); err != nil {
		return nil, err
	}

	return &Challenge{
		Address:   addr,
		Nonce:     nonce,
		Message:   security.LoginMessage(addr, nonce),
		ExpiresAt: time.Now().Add(s.nonceTTL),
	}, nil
}

// Verify checks the signed challenge and opens a session
func (s *Service) Verify(ctx context.Context, address, signature string) (*Session, error) {
	addr, err := security.NormalizeAddress(address)
	if err != nil {
		return nil, apperr.Validation("invalid wallet address")
	}

	nonce, err := s.nonces.Get(ctx, addr)
	if errors.Is(err, ErrNonceNotFound) {
		return nil, apperr.New(apperr.ErrUnauthenticated, "%s", err.Error())
	}
	if err != nil {
		return nil, err
	}

	if err := security.VerifyPersonalSignature(addr, security.LoginMessage(addr, nonce), signature); err != nil {
		s.logger.Warn("Rejected login signature", zap.String("address", addr), zap.Error(err))
		return nil, apperr.New(apperr.ErrUnauthenticated, "signature does not match address")
	}

	consumed, err := s.nonces.Consume(ctx, addr, nonce)
	if err != nil {
		return nil, err
	}
	if !consumed {
		return nil, apperr.New(apperr.ErrUnauthenticated, "%s", ErrNonceNotFound.Error())
	}

	user, err := s.users.FindOrCreateByAddress(ctx, addr)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Wallet login", zap.String("address", addr), zap.String("user_id", user.ID.String()))
	return s.session(user)
}

// Refresh re-issues a token from the stored user so role and vetting changes take effect
func (s *Service) Refresh(ctx context.Context, userID uuid.UUID) (*Session, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.session(user)
}

// IssueFor returns only the token for u
func (s *Service) IssueFor(u *users.User) (string, error) {
	session, err := s.session(u)
	if err != nil {
		return "", err
	}
	return session.Token, nil
}

func (s *Service) session(u *users.User) (*Session, error) {
	admin := s.admins.IsAdmin(u.WalletAddress)
	token, expires, err := s.tokens.Issue(middleware.Principal{
		UserID:  u.ID,
		Address: u.WalletAddress,
		Role:    u.RoleString(),
		Vetted:  u.IsVetted,
		Admin:   admin,
	})
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expires, User: u, IsAdmin: admin}, nil
}
