package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/bigkevmcd/capomastro/api/pkg/config"
	"github.com/bigkevmcd/capomastro/api/pkg/store"
	"github.com/bigkevmcd/capomastro/api/pkg/types"
)

type Event string

const (
	EventProjectBuildComplete Event = "project_build_complete"
)

// Notification describes one completed build to tell the requestor about.
type Notification struct {
	Event        Event
	ProjectName  string
	BuildKey     string
	ProjectBuild *types.ProjectBuild

	// Email and FirstName are filled in from the requesting user.
	Email     string
	FirstName string
}

type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
}

type NotificationsProvider struct {
	store store.Store

	email *Email
}

func New(cfg *config.Notifications, store store.Store) (Notifier, error) {
	email, err := NewEmail(cfg)
	if err != nil {
		return nil, err
	}

	return &NotificationsProvider{
		store: store,
		email: email,
	}, nil
}

// Notify emails the user that requested the project build. Builds with no
// requestor, and users with no email address, are skipped quietly.
func (n *NotificationsProvider) Notify(ctx context.Context, notification *Notification) error {
	if n.store == nil {
		return nil
	}

	if !n.email.Enabled() {
		log.Debug().Str("notification", string(notification.Event)).Msg("email not enabled")
		return nil
	}

	if notification.ProjectBuild == nil || notification.ProjectBuild.RequestedByID == nil {
		log.Debug().
			Str("build_key", notification.BuildKey).
			Msg("no requestor for project build, not notifying")
		return nil
	}

	user, err := n.store.GetUser(ctx, *notification.ProjectBuild.RequestedByID)
	if err != nil {
		return fmt.Errorf("failed to get user '%s' details: %w", *notification.ProjectBuild.RequestedByID, err)
	}
	if user.Email == "" {
		log.Debug().Str("username", user.Username).Msg("user has no email address, not notifying")
		return nil
	}

	notification.Email = user.Email
	notification.FirstName = strings.Split(user.FullName, " ")[0]

	log.Debug().
		Str("email", user.Email).
		Str("notification", string(notification.Event)).
		Msg("sending notification")
	return n.email.Notify(ctx, notification)
}
