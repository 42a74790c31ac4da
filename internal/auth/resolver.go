package auth

import (
	"context"
	"errors"
	"strings"

	"creatorhub/internal/repositories"
	"creatorhub/pkg/apperrors"

	"gorm.io/gorm"
)

// Identity is the resolved caller.
type Identity struct {
	UserID uint
	Name   string
}

// Resolver maps a credential to an identity.
type Resolver interface {
	Resolve(ctx context.Context, db *gorm.DB, credential string) (*Identity, error)
}

type jwtResolver struct {
	tokens   *TokenManager
	userRepo repositories.UserRepository
}

// NewJWTResolver resolves bearer tokens to users that exist in the store.
func NewJWTResolver(tokens *TokenManager, userRepo repositories.UserRepository) Resolver {
	return &jwtResolver{tokens: tokens, userRepo: userRepo}
}

func (r *jwtResolver) Resolve(ctx context.Context, db *gorm.DB, credential string) (*Identity, error) {
	credential = strings.TrimSpace(strings.TrimPrefix(credential, "Bearer "))
	if credential == "" {
		return nil, apperrors.ErrMissingToken
	}

	claims, err := r.tokens.ParseToken(credential)
	if err != nil {
		return nil, apperrors.ErrInvalidToken.WithError(err)
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, apperrors.ErrInvalidToken.WithError(err)
	}

	user, err := r.userRepo.FindByID(db.WithContext(ctx), userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidToken.WithError(err)
		}
		return nil, apperrors.InternalError(err)
	}
	return &Identity{UserID: user.ID, Name: user.Name}, nil
}
