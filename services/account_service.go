package services

import (
	"fmt"

	"support-relay/auth"
	"support-relay/domain"
	"support-relay/errors"
	"support-relay/repositories"
)

type IAccountService interface {
	Register(email, password string, role domain.Role) (Session, error)
	Login(email, password string) (Session, error)
}

// Session is what a successful authentication hands back to the client: the
// token to present on identify, plus the identity it encodes.
type Session struct {
	Token    string
	Identity domain.Identity
}

type AccountService struct {
	userRepository repositories.IUserRepository
	tokens         *auth.TokenManager
}

func NewAccountService(repo repositories.IUserRepository, tokens *auth.TokenManager) IAccountService {
	return &AccountService{userRepository: repo, tokens: tokens}
}

func (s *AccountService) Register(email, password string, role domain.Role) (Session, error) {
	valReq := auth.RegisterRequest{
		Email:    email,
		Password: password,
		Role:     string(role),
	}

	// Business rules first (email format, password complexity, known role):
	// checked before any expensive cryptographic operation.
	if err := auth.ValidateRegister(valReq); err != nil {
		return Session{}, fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	// Hashing happens in the service layer to keep the repository unaware of
	// plain passwords.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return Session{}, fmt.Errorf("hashing failed: %w", err)
	}

	userID, err := s.userRepository.CreateUser(email, hashedPassword, role)
	if err != nil {
		return Session{}, err // Propagates ErrUserAlreadyExists when the email is taken
	}

	identity := domain.Identity{UserID: userID, Role: role}
	token, err := s.tokens.Generate(identity)
	if err != nil {
		return Session{}, errors.ErrTokenGeneration
	}

	return Session{Token: token, Identity: identity}, nil
}

func (s *AccountService) Login(email, password string) (Session, error) {
	user, err := s.userRepository.GetUserByEmail(email)
	if err != nil {
		// Generic error to prevent user enumeration attacks
		return Session{}, errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return Session{}, errors.ErrInvalidCredentials
	}

	identity := domain.Identity{UserID: user.ID, Role: user.Role}
	token, err := s.tokens.Generate(identity)
	if err != nil {
		return Session{}, errors.ErrTokenGeneration
	}

	return Session{Token: token, Identity: identity}, nil
}
