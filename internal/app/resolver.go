package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/livescribe/livescribe/internal/core"
	"github.com/livescribe/livescribe/internal/domain"
)

// OwnershipResolver maps external operator identities to application users
// and decides who owns a meeting. Misses are not errors: the shared
// placeholder account owns anything that cannot be attributed yet.
type OwnershipResolver struct {
	users    core.UserDirectory
	meetings core.MeetingStore
}

func NewOwnershipResolver(users core.UserDirectory, meetings core.MeetingStore) *OwnershipResolver {
	return &OwnershipResolver{users: users, meetings: meetings}
}

// Resolve returns the owner for operatorID and whether it is a real user
// rather than the placeholder.
func (r *OwnershipResolver) Resolve(ctx context.Context, operatorID string) (*domain.User, bool, error) {
	if operatorID != "" {
		u, err := r.users.UserByOperatorID(ctx, operatorID)
		if err == nil {
			return u, true, nil
		}
		if !errors.Is(err, core.ErrNotFound) {
			return nil, false, err
		}
	}
	placeholder, err := r.users.PlaceholderUser(ctx)
	if err != nil {
		return nil, false, err
	}
	return placeholder, false, nil
}

// EnsureMeeting fetches the meeting for externalID or creates it with the
// resolved owner. The second return reports whether a real owner is in
// place, which gates directory enrichment.
func (r *OwnershipResolver) EnsureMeeting(ctx context.Context, externalID, topicHint, operatorID string) (*domain.Meeting, bool, error) {
	m, err := r.meetings.MeetingByExternalID(ctx, externalID)
	if err == nil {
		placeholder, perr := r.users.PlaceholderUser(ctx)
		if perr != nil {
			return nil, false, perr
		}
		return m, m.OwnerID != placeholder.ID, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, false, err
	}

	owner, real, err := r.Resolve(ctx, operatorID)
	if err != nil {
		return nil, false, err
	}
	title := topicHint
	if title == "" {
		title = "Untitled meeting"
	}
	m = domain.NewMeeting(externalID, title, owner.ID, time.Now())
	if err := r.meetings.CreateMeeting(ctx, m); err != nil {
		// Lost a creation race: the unique external id constraint fired.
		if existing, lerr := r.meetings.MeetingByExternalID(ctx, externalID); lerr == nil {
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("ensure meeting %s: %w", externalID, err)
	}
	log.Info().Str("module", "app.resolver").Str("session", externalID).Str("owner", string(owner.ID)).Bool("real_owner", real).Msg("meeting created")
	return m, real, nil
}

// MaybeReassign moves ownership from the placeholder to the user resolved
// from operatorID. The store-level guard makes it at-most-once: a meeting
// already owned by a real user is never reassigned.
func (r *OwnershipResolver) MaybeReassign(ctx context.Context, meetingID domain.MeetingID, operatorID string) (bool, error) {
	if operatorID == "" {
		return false, nil
	}
	user, err := r.users.UserByOperatorID(ctx, operatorID)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	placeholder, err := r.users.PlaceholderUser(ctx)
	if err != nil {
		return false, err
	}
	moved, err := r.meetings.ReassignOwner(ctx, meetingID, placeholder.ID, user.ID)
	if err != nil {
		return false, err
	}
	if moved {
		log.Info().Str("module", "app.resolver").Str("meeting", string(meetingID)).Str("owner", string(user.ID)).Msg("ownership reassigned")
	}
	return moved, nil
}
