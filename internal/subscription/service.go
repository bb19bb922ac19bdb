package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/beatwatch/beatwatch/internal/beatmap"
)

var (
	// ErrUnknownAttribute is returned when the attribute name is not in the
	// subscribable set. Rejected at add time so match time never sees it.
	ErrUnknownAttribute = errors.New("unknown attribute")
	// ErrIndexOutOfRange is returned by Remove for an index past the end of
	// the user's subscription list.
	ErrIndexOutOfRange = errors.New("subscription index out of range")
)

// Service encapsulates subscription business logic on top of a Repository.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(r Repository) *Service {
	return &Service{repo: r, now: time.Now}
}

// Add registers a subscription for the user. Attribute and value are
// normalized; the user, the shared (attr, value) record and the link are each
// found-or-created, so repeating an identical add changes nothing.
func (s *Service) Add(ctx context.Context, userID, attr, value string) (*Subscription, error) {
	attr = Normalize(attr)
	value = Normalize(value)
	if !beatmap.IsAttribute(attr) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAttribute, attr)
	}
	if err := s.repo.EnsureUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	sub, err := s.repo.EnsureSubscription(ctx, attr, value)
	if err != nil {
		return nil, fmt.Errorf("ensure subscription: %w", err)
	}
	if err := s.repo.EnsureLink(ctx, userID, sub.ID, s.now().UTC()); err != nil {
		return nil, fmt.Errorf("ensure link: %w", err)
	}
	return sub, nil
}

// List returns the user's subscriptions in the order they were added.
func (s *Service) List(ctx context.Context, userID string) ([]Subscription, error) {
	links, err := s.repo.LinksByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.Sub)
	}
	byID, err := s.repo.SubscriptionsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]Subscription, 0, len(links))
	for _, l := range links {
		if sub, ok := byID[l.Sub]; ok {
			out = append(out, sub)
		}
	}
	return out, nil
}

// Remove deletes the user's link at the zero-based index within the added-asc
// ordering and returns the unlinked subscription for confirmation messaging.
// The shared subscription record itself is kept: other users may reference it.
func (s *Service) Remove(ctx context.Context, userID string, index int) (*Subscription, error) {
	links, err := s.repo.LinksByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(links) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(links))
	}
	l := links[index]
	if err := s.repo.DeleteLink(ctx, l.ID); err != nil {
		return nil, err
	}
	byID, err := s.repo.SubscriptionsByIDs(ctx, []string{l.Sub})
	if err != nil {
		return nil, err
	}
	sub, ok := byID[l.Sub]
	if !ok {
		return nil, ErrLinkNotFound
	}
	return &sub, nil
}

// RemoveAll deletes all of the user's links and the user record. Subscriptions
// shared with other users survive.
func (s *Service) RemoveAll(ctx context.Context, userID string) error {
	if err := s.repo.DeleteUserLinks(ctx, userID); err != nil {
		return err
	}
	return s.repo.DeleteUser(ctx, userID)
}
