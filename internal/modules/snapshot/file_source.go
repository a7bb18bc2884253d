package snapshot

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"velo/internal/modules/plan"
	"velo/internal/modules/promotion"
	"velo/internal/modules/rule"
	"velo/internal/types"
)

// FileSource reads pricing configuration from a YAML document. The file is
// re-read on every load so edits are picked up by the refresher.
type FileSource struct {
	Path string
}

type fileDoc struct {
	Plans      []planDoc      `yaml:"plans"`
	Rules      []ruleDoc      `yaml:"rules"`
	Promotions []promotionDoc `yaml:"promotions"`
}

type windowDoc struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

type planDoc struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Version      int      `yaml:"version"`
	Hourly       string   `yaml:"hourly_rate"`
	Daily        string   `yaml:"daily_rate"`
	Weekly       string   `yaml:"weekly_rate"`
	Monthly      string   `yaml:"monthly_rate"`
	MinimumHours int      `yaml:"minimum_hours"`
	Discount     string   `yaml:"discount"`
	Active       bool     `yaml:"active"`
	Conditions   []string `yaml:"conditions"`
	Override     *struct {
		Type    string                `yaml:"type"`
		Value   string                `yaml:"value"`
		Windows map[string]*windowDoc `yaml:"windows"`
	} `yaml:"override"`
}

type ruleDoc struct {
	ID         string     `yaml:"id"`
	Name       string     `yaml:"name"`
	DayOfWeek  *int       `yaml:"day_of_week"`
	Window     *windowDoc `yaml:"window"`
	Multiplier string     `yaml:"multiplier"`
	Active     bool       `yaml:"active"`
	Priority   int        `yaml:"priority"`
}

type promotionDoc struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	DiscountType  string   `yaml:"discount_type"`
	DiscountValue string   `yaml:"discount_value"`
	StartDate     string   `yaml:"start_date"`
	EndDate       string   `yaml:"end_date"`
	UsageLimit    *int64   `yaml:"usage_limit"`
	UsageCount    int64    `yaml:"usage_count"`
	Active        bool     `yaml:"active"`
	Plans         []string `yaml:"plans"`
}

func (s FileSource) read() (fileDoc, error) {
	var doc fileDoc
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return doc, fmt.Errorf("read %s: %w", s.Path, err)
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("parse %s: %w", s.Path, err)
	}
	return doc, nil
}

func (s FileSource) GetPlans(context.Context) ([]plan.Plan, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	plans := make([]plan.Plan, 0, len(doc.Plans))
	for _, d := range doc.Plans {
		p, err := d.toPlan()
		if err != nil {
			return nil, fmt.Errorf("plan %s: %w", d.ID, err)
		}
		plans = append(plans, p)
	}
	return plans, nil
}

func (s FileSource) GetActiveRules(context.Context) ([]rule.Rule, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	var rules []rule.Rule
	for _, d := range doc.Rules {
		if !d.Active {
			continue
		}
		r, err := d.toRule()
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", d.ID, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func (s FileSource) GetActivePromotions(context.Context) ([]promotion.Promotion, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	var promos []promotion.Promotion
	for _, d := range doc.Promotions {
		if !d.Active {
			continue
		}
		p, err := d.toPromotion()
		if err != nil {
			return nil, fmt.Errorf("promotion %s: %w", d.ID, err)
		}
		promos = append(promos, p)
	}
	return promos, nil
}

func (d planDoc) toPlan() (plan.Plan, error) {
	p := plan.Plan{
		ID:           types.ID(d.ID),
		Name:         d.Name,
		Version:      d.Version,
		MinimumHours: d.MinimumHours,
		IsActive:     d.Active,
		Conditions:   d.Conditions,
	}
	var err error
	if p.Rates.Hourly, err = parseAmount(d.Hourly); err != nil {
		return p, err
	}
	if p.Rates.Daily, err = parseAmount(d.Daily); err != nil {
		return p, err
	}
	if p.Rates.Weekly, err = parseAmount(d.Weekly); err != nil {
		return p, err
	}
	if p.Rates.Monthly, err = parseAmount(d.Monthly); err != nil {
		return p, err
	}
	if p.Discount, err = parseAmount(d.Discount); err != nil {
		return p, err
	}
	if d.Override == nil {
		return p, nil
	}

	value, err := parseAmount(d.Override.Value)
	if err != nil {
		return p, err
	}
	ot, err := plan.NewOvertimeRule(d.Override.Type, value)
	if err != nil {
		return p, err
	}
	o := &plan.Override{Rule: ot}
	for name, w := range d.Override.Windows {
		tier, err := plan.ParseTier(name)
		if err != nil {
			return p, err
		}
		if w != nil {
			o.Windows[tier] = types.SomeWindow(w.Start, w.End)
		}
	}
	p.Override = o
	return p, nil
}

func (d ruleDoc) toRule() (rule.Rule, error) {
	m, err := parseAmount(d.Multiplier)
	if err != nil {
		return rule.Rule{}, err
	}
	r := rule.Rule{
		ID:         types.ID(d.ID),
		Name:       d.Name,
		Multiplier: m,
		IsActive:   d.Active,
		Priority:   d.Priority,
	}
	if d.DayOfWeek != nil {
		wd := time.Weekday(*d.DayOfWeek)
		r.DayOfWeek = &wd
	}
	if d.Window != nil {
		r.Window = types.SomeWindow(d.Window.Start, d.Window.End)
	}
	return r, nil
}

func (d promotionDoc) toPromotion() (promotion.Promotion, error) {
	value, err := parseAmount(d.DiscountValue)
	if err != nil {
		return promotion.Promotion{}, err
	}
	disc, err := promotion.NewDiscount(d.DiscountType, value)
	if err != nil {
		return promotion.Promotion{}, err
	}
	start, err := time.Parse(time.RFC3339, d.StartDate)
	if err != nil {
		return promotion.Promotion{}, fmt.Errorf("start_date: %w", err)
	}
	end, err := time.Parse(time.RFC3339, d.EndDate)
	if err != nil {
		return promotion.Promotion{}, fmt.Errorf("end_date: %w", err)
	}
	p := promotion.Promotion{
		ID:         types.ID(d.ID),
		Name:       d.Name,
		Discount:   disc,
		StartDate:  start,
		EndDate:    end,
		UsageLimit: d.UsageLimit,
		UsageCount: d.UsageCount,
		IsActive:   d.Active,
		PlanIDs:    make(map[types.ID]struct{}, len(d.Plans)),
	}
	for _, id := range d.Plans {
		p.PlanIDs[types.ID(id)] = struct{}{}
	}
	return p, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
