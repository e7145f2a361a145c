package user

import (
	"context"
	"errors"
)

// ErrNoUser is returned when a context carries no user, e.g. a request without X-User-Id.
var ErrNoUser = errors.New("no user in context")

type currentUserKey struct{}

func WithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, currentUserKey{}, user)
}

// CurrentUser returns the user the request or processing pass runs for.
func CurrentUser(ctx context.Context) (User, error) {
	if user, ok := ctx.Value(currentUserKey{}).(User); ok {
		return user, nil
	}
	return User{}, ErrNoUser
}

func CurrentId(ctx context.Context) (int, error) {
	user, err := CurrentUser(ctx)
	if err != nil {
		return 0, err
	}
	return user.Id, nil
}
