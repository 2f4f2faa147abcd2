// Package catalog loads the static tool, upgrade, achievement and
// market-event definitions. The core reads these as data; balancing
// numbers are tunable without touching simulation code.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// EntryType discriminates passive-generation entries.
type EntryType string

const (
	TypeBots  EntryType = "bots"
	TypeMoney EntryType = "money"
)

// Tool is a purchasable generator, optionally clickable.
type Tool struct {
	ID            string    `yaml:"id"`
	Name          string    `yaml:"name"`
	Desc          string    `yaml:"desc"`
	Cost          float64   `yaml:"cost"`
	Type          EntryType `yaml:"type"`
	Base          float64   `yaml:"base"`
	Clickable     bool      `yaml:"clickable"`
	ClickBonus    float64   `yaml:"click_bonus"`
	ClickCooldown float64   `yaml:"click_cooldown"` // seconds
	Unlocks       string    `yaml:"unlocks"`
	Value         float64   `yaml:"value"`
}

// Upgrade is a one-time purchasable modifier.
type Upgrade struct {
	ID     string    `yaml:"id"`
	Name   string    `yaml:"name"`
	Desc   string    `yaml:"desc"`
	Cost   float64   `yaml:"cost"`
	Effect string    `yaml:"effect"` // "base_bots", "click_multiplier"
	Value  float64   `yaml:"value"`
	Type   EntryType `yaml:"type"`
	Base   float64   `yaml:"base"`
}

// Condition is one declarative clause of an achievement predicate.
// Min is inclusive (metric >= min); Below is exclusive (metric < below).
type Condition struct {
	Metric string   `yaml:"metric"` // clicks, sold, earned, bots_total, bps, prestige, tools_count, upgrades_count, upgrade_owned, tool_owned, mobile_unlocked
	Min    *float64 `yaml:"min"`
	Below  *float64 `yaml:"below"`
	ID     string   `yaml:"id"`  // for upgrade_owned / tool_owned
	IDs    []string `yaml:"ids"` // tool_owned: any of
}

// Achievement is a monotonic earned flag with a reward bonus.
type Achievement struct {
	ID         string      `yaml:"id"`
	Text       string      `yaml:"text"`
	Hidden     bool        `yaml:"hidden"`
	Reward     string      `yaml:"reward"` // generation, income, click, prestige, special
	Bonus      float64     `yaml:"bonus"`
	Conditions []Condition `yaml:"conditions"`
}

// MarketEvent is one entry of the random disruptive-event table.
type MarketEvent struct {
	Type     string  `yaml:"type"`
	Title    string  `yaml:"title"`
	Text     string  `yaml:"text"`
	Effect   string  `yaml:"effect"`
	Duration int64   `yaml:"duration_ms"`
	BotMult  float64 `yaml:"bot_mult"`
	CashMult float64 `yaml:"cash_mult"`
}

// SkillCost maps a skill id to its base upgrade cost.
type SkillCost struct {
	Tiers      float64 `yaml:"tiers"`
	Prices     float64 `yaml:"prices"`
	Generation float64 `yaml:"generation"`
	Automation float64 `yaml:"automation"`
}

// Catalog is the full static content set.
type Catalog struct {
	Tools        []Tool        `yaml:"tools"`
	Upgrades     []Upgrade     `yaml:"upgrades"`
	Achievements []Achievement `yaml:"achievements"`
	Events       []MarketEvent `yaml:"events"`
	SkillCosts   SkillCost     `yaml:"skill_costs"`

	toolsByID    map[string]*Tool
	upgradesByID map[string]*Upgrade
}

// Load reads a catalog document from path.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(raw)
}

// Default returns the embedded catalog. The embedded document is part
// of the build, so a parse failure is a programmer error.
func Default() *Catalog {
	c, err := parse(defaultsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog invalid: %v", err))
	}
	return c
}

func parse(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	c.toolsByID = make(map[string]*Tool, len(c.Tools))
	for i := range c.Tools {
		t := &c.Tools[i]
		if t.ID == "" {
			return nil, fmt.Errorf("catalog: tool %d missing id", i)
		}
		if _, dup := c.toolsByID[t.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate tool id %q", t.ID)
		}
		c.toolsByID[t.ID] = t
	}
	c.upgradesByID = make(map[string]*Upgrade, len(c.Upgrades))
	for i := range c.Upgrades {
		u := &c.Upgrades[i]
		if u.ID == "" {
			return nil, fmt.Errorf("catalog: upgrade %d missing id", i)
		}
		if _, dup := c.upgradesByID[u.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate upgrade id %q", u.ID)
		}
		c.upgradesByID[u.ID] = u
	}
	return &c, nil
}

// Tool returns the tool definition for id, or nil.
func (c *Catalog) Tool(id string) *Tool {
	return c.toolsByID[id]
}

// Upgrade returns the upgrade definition for id, or nil.
func (c *Catalog) Upgrade(id string) *Upgrade {
	return c.upgradesByID[id]
}

// SkillBaseCost returns the base cost for a skill id, or 0 when the id
// is unknown.
func (c *Catalog) SkillBaseCost(skill string) float64 {
	switch skill {
	case "tiers":
		return c.SkillCosts.Tiers
	case "prices":
		return c.SkillCosts.Prices
	case "generation":
		return c.SkillCosts.Generation
	case "automation":
		return c.SkillCosts.Automation
	}
	return 0
}
