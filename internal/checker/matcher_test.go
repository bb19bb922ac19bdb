package checker

import (
	"context"
	"testing"
	"time"

	"github.com/beatwatch/beatwatch/internal/beatmap"
	"github.com/beatwatch/beatwatch/internal/subscription"
)

func storeWith(t *testing.T, subs ...[3]string) *subscription.MemoryRepository {
	t.Helper()
	repo := subscription.NewMemoryRepository()
	svc := subscription.NewService(repo)
	ctx := context.Background()
	for _, s := range subs {
		if _, err := svc.Add(ctx, s[0], s[1], s[2]); err != nil {
			t.Fatalf("seed add(%v): %v", s, err)
		}
		time.Sleep(time.Millisecond) // keep added timestamps distinct
	}
	return repo
}

func TestMatchDeduplicatesPerUserPerGroup(t *testing.T) {
	// user1 holds two subscriptions that both match the same set; user2 one
	repo := storeWith(t,
		[3]string{"user1", "artist", "sky"},
		[3]string{"user2", "artist", "sky"},
		[3]string{"user1", "status", "ranked"},
	)
	items := []beatmap.Beatmap{
		{SetID: "100", Artist: "Sky", Status: "ranked", Version: "Easy", Stars: 1.5},
		{SetID: "100", Artist: "Sky", Status: "ranked", Version: "Hard", Stars: 4.2},
	}

	intents, err := Match(context.Background(), repo, items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(intents) != 2 {
		t.Fatalf("expected exactly 2 intents (user1 deduplicated), got %d: %+v", len(intents), intents)
	}
	seen := map[string]int{}
	for _, in := range intents {
		seen[in.UserID]++
		if len(in.Items) != 2 {
			t.Fatalf("intent must carry the whole group, got %d items", len(in.Items))
		}
	}
	if seen["user1"] != 1 || seen["user2"] != 1 {
		t.Fatalf("expected one intent per user, got %v", seen)
	}
}

func TestMatchNormalizationSymmetry(t *testing.T) {
	// stored as " Foo " -> "foo"; item carries "FOO" and must still match
	repo := storeWith(t, [3]string{"user1", "title", " Foo "})
	items := []beatmap.Beatmap{{SetID: "1", Title: "FOO"}}

	intents, err := Match(context.Background(), repo, items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(intents) != 1 || intents[0].UserID != "user1" {
		t.Fatalf("expected a match through normalization, got %+v", intents)
	}
}

func TestMatchEmptySubscriptions(t *testing.T) {
	repo := subscription.NewMemoryRepository()
	items := []beatmap.Beatmap{{SetID: "1", Artist: "Sky"}, {SetID: "2", Artist: "Rain"}}

	intents, err := Match(context.Background(), repo, items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(intents) != 0 {
		t.Fatalf("expected zero intents with no subscriptions, got %d", len(intents))
	}
}

func TestMatchNoItems(t *testing.T) {
	repo := storeWith(t, [3]string{"user1", "artist", "sky"})
	intents, err := Match(context.Background(), repo, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(intents) != 0 {
		t.Fatalf("expected zero intents for empty batch, got %d", len(intents))
	}
}

func TestMatchGroupDiscoveryOrder(t *testing.T) {
	repo := storeWith(t,
		[3]string{"user1", "artist", "sky"},
		[3]string{"user2", "artist", "rain"},
	)
	items := []beatmap.Beatmap{
		{SetID: "200", Artist: "Rain"},
		{SetID: "100", Artist: "Sky"},
		{SetID: "200", Artist: "Rain"}, // interleaved item of the first group
	}

	intents, err := Match(context.Background(), repo, items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(intents) != 2 {
		t.Fatalf("expected 2 intents, got %d", len(intents))
	}
	// set 200 appeared first in the feed, so its intent comes first
	if intents[0].UserID != "user2" || intents[1].UserID != "user1" {
		t.Fatalf("expected group-discovery order [user2 user1], got [%s %s]", intents[0].UserID, intents[1].UserID)
	}
	if len(intents[0].Items) != 2 {
		t.Fatalf("group 200 must keep both items, got %d", len(intents[0].Items))
	}
}

func TestMatchSkipsBlankAttribute(t *testing.T) {
	repo := storeWith(t,
		[3]string{"user1", "source", "touhou"},
		[3]string{"user2", "artist", "sky"},
	)
	// the representative has no source; the artist match must still fire
	items := []beatmap.Beatmap{{SetID: "1", Artist: "Sky", Source: ""}}

	intents, err := Match(context.Background(), repo, items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(intents) != 1 || intents[0].UserID != "user2" {
		t.Fatalf("expected only the artist match, got %+v", intents)
	}
}

func TestMatchOnlyFirstItemRepresentsGroup(t *testing.T) {
	repo := storeWith(t, [3]string{"user1", "version", "insane"})
	// the subscribed version appears on the second item only; groups match
	// through their first item, so nothing fires
	items := []beatmap.Beatmap{
		{SetID: "1", Version: "Easy"},
		{SetID: "1", Version: "Insane"},
	}

	intents, err := Match(context.Background(), repo, items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(intents) != 0 {
		t.Fatalf("expected no intents, got %+v", intents)
	}
}
