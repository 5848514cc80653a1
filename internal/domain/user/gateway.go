package user

import "context"

// Gateway - порт учётных записей. Любой отказ бэкенда возвращается как
// shared.ErrNetworkOrServiceFailure.
type Gateway interface {
	SignUp(ctx context.Context, email, name, password string) (*User, error)
	SignIn(ctx context.Context, email, password string) (*User, error)
	UpdateProfile(ctx context.Context, u *User) (*User, error)
}
