package checker

import (
	"context"

	"github.com/beatwatch/beatwatch/internal/beatmap"
	"github.com/beatwatch/beatwatch/internal/subscription"
)

// SubscriptionSource is the read-only view of the subscription store the
// matcher needs. The store's Repository implementations satisfy it.
type SubscriptionSource interface {
	DistinctAttributes(ctx context.Context) ([]string, error)
	FindSubscriptions(ctx context.Context, attr, value string) ([]subscription.Subscription, error)
	SubscriberIDs(ctx context.Context, subID string) ([]string, error)
}

// Intent is one queued notification: a user, the full beatmap group that
// triggered it, and the subscription that matched.
type Intent struct {
	UserID string
	Items  []beatmap.Beatmap
	Sub    subscription.Subscription
}

// Match compares a batch of fetched beatmaps against the stored subscriptions
// and returns at most one intent per user per beatmap set.
//
// Items are grouped by set id in first-appearance order, keeping the feed's
// relative order within each group. The distinct attribute names are
// enumerated once for the whole batch. Each group is matched through its
// first item: for every subscribed attribute present on it, the normalized
// value is looked up against the store, and every user linked to a matching
// subscription is queued unless already queued for this group.
func Match(ctx context.Context, src SubscriptionSource, items []beatmap.Beatmap) ([]Intent, error) {
	if len(items) == 0 {
		return nil, nil
	}
	var order []string
	groups := map[string][]beatmap.Beatmap{}
	for _, it := range items {
		if _, ok := groups[it.SetID]; !ok {
			order = append(order, it.SetID)
		}
		groups[it.SetID] = append(groups[it.SetID], it)
	}

	attrs, err := src.DistinctAttributes(ctx)
	if err != nil {
		return nil, err
	}
	if len(attrs) == 0 {
		return nil, nil
	}

	var intents []Intent
	for _, setID := range order {
		group := groups[setID]
		rep := group[0]
		notified := map[string]bool{}
		for _, attr := range attrs {
			raw, ok := rep.Attribute(attr)
			if !ok || raw == "" {
				continue
			}
			subs, err := src.FindSubscriptions(ctx, attr, subscription.Normalize(raw))
			if err != nil {
				return nil, err
			}
			for _, sub := range subs {
				users, err := src.SubscriberIDs(ctx, sub.ID)
				if err != nil {
					return nil, err
				}
				for _, user := range users {
					if notified[user] {
						continue
					}
					notified[user] = true
					intents = append(intents, Intent{UserID: user, Items: group, Sub: sub})
				}
			}
		}
	}
	return intents, nil
}
