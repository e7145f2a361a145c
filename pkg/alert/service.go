package alert

import (
	"context"
	"errors"
	"fmt"

	"github.com/klokku/pennywise/pkg/user"
)

var ErrInvalidStatus = errors.New("invalid budget status")

// Service exposes the current user's alert list.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) List(ctx context.Context) ([]BudgetAlert, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.store.List(ctx, userId)
}

func (s *Service) MarkRead(ctx context.Context, id string) error {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	found, err := s.store.MarkRead(ctx, userId, id)
	if err != nil {
		return err
	}
	if !found {
		return ErrAlertNotFound
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context) (int, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.store.MarkAllRead(ctx, userId)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	deleted, err := s.store.Delete(ctx, userId, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrAlertNotFound
	}
	return nil
}

func (s *Service) UnreadCount(ctx context.Context) (int, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.store.UnreadCount(ctx, userId)
}
