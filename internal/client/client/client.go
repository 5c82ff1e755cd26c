package client

import (
	"context"

	"github.com/dmitrijs2005/eduportal/internal/client/models"
)

// Client is the contract of the remote auth service.
type Client interface {
	Register(ctx context.Context, r models.Registration) (*models.AuthResponse, error)
	Login(ctx context.Context, c models.Credentials) (*models.AuthResponse, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*models.User, error)
	UpdateProfile(ctx context.Context, p models.UserPatch) (*models.UserPatch, error)
	ChangePassword(ctx context.Context, p models.PasswordChange) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, resetToken string, password string) error
}
