package engine

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/botnet-empire/server/internal/catalog"
	"github.com/botnet-empire/server/internal/events"
	"github.com/botnet-empire/server/internal/game"
	"github.com/botnet-empire/server/internal/platform/logger"
)

// A minimal deterministic catalog for engine tests: one bot generator,
// one money generator, one clickable tool, one flat upgrade.
const testCatalogYAML = `
skill_costs:
  tiers: 5.0e5
  prices: 1.0e6
  generation: 2.0e6
  automation: 5.0e6
tools:
  - { id: gen, name: Generator, cost: 100, type: bots, base: 10 }
  - { id: cash, name: Casher, cost: 100, type: money, base: 5 }
  - { id: clicky, name: Clicker, cost: 100, type: bots, base: 0, clickable: true, click_bonus: 50, click_cooldown: 60 }
  - { id: mobileLoader, name: Mobile Loader, cost: 200, unlocks: mobile }
upgrades:
  - { id: flat, name: Flat, cost: 50, effect: base_bots, value: 5 }
  - { id: boost, name: Boost, cost: 50, effect: click_multiplier, value: 1 }
events:
  - { type: raid, title: Raid, text: raid, effect: Bot generation reduced, duration_ms: 60000, bot_mult: 0.7, cash_mult: 1 }
  - { type: outage, title: Outage, text: outage, effect: Income reduced, duration_ms: 60000, bot_mult: 1, cash_mult: 0.5 }
achievements:
  - { id: clicks50, text: fifty clicks, reward: click, bonus: 0.05, conditions: [{ metric: clicks, min: 50 }] }
  - { id: sold1, text: first sale, reward: income, bonus: 0.01, conditions: [{ metric: sold, min: 1 }] }
  - { id: prestige1, text: first prestige, reward: prestige, bonus: 1, conditions: [{ metric: prestige, min: 1 }] }
`

const testEpochMs = 1_700_000_000_000

type testEnv struct {
	session *Session
	state   *game.State
	feed    *events.Feed
	nowMs   int64
}

func (e *testEnv) now() time.Time { return time.UnixMilli(e.nowMs) }

func (e *testEnv) advance(d time.Duration) { e.nowMs += d.Milliseconds() }

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(testCatalogYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cat, err := catalog.Load(path)
	if err != nil {
		t.Fatalf("test catalog failed to parse: %v", err)
	}

	env := &testEnv{nowMs: testEpochMs, feed: events.NewFeed(nil, 64)}
	rng := rand.New(rand.NewSource(1))
	st := game.NewState(time.UnixMilli(testEpochMs), rng)
	env.state = st
	env.session = NewSession(st, cat, env.feed, logger.NewLogger(), rng, env.now)
	return env
}
