package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/klokku/pennywise/pkg/trigger"
	"github.com/klokku/pennywise/pkg/user"
	log "github.com/sirupsen/logrus"
)

// ProcessAllUsers fires a processing pass of the given kind for every user. A failing user
// does not stop the others.
func ProcessAllUsers(ctx context.Context, deps *Dependencies, kind trigger.Kind) error {
	users, err := deps.UserService.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("could not list users: %w", err)
	}

	var errs []error
	for _, u := range users {
		result, err := deps.Trigger.Fire(user.WithUser(ctx, u), kind)
		fields := log.Fields{
			"userId":    u.Id,
			"kind":      kind.String(),
			"created":   result.Report.Created,
			"processed": result.Report.Processed,
			"failed":    result.Report.Failed,
			"overdue":   result.MarkedOverdue,
		}
		if err != nil {
			log.WithFields(fields).Errorf("processing pass failed: %v", err)
			errs = append(errs, fmt.Errorf("user %d: %w", u.Id, err))
			continue
		}
		log.WithFields(fields).Info("processing pass finished")
	}
	return errors.Join(errs...)
}
