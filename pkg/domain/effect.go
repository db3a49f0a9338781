package domain

import "reflect"

// EffectCategory names one of the three materialized effect families.
type EffectCategory string

const (
	EffectAura        EffectCategory = "aura"
	EffectInjury      EffectCategory = "injury"
	EffectEnvironment EffectCategory = "environment"
)

// EffectCategories lists the categories in apply order. Within one entity the
// engine always walks them in this order so effect identity stays stable.
var EffectCategories = []EffectCategory{EffectAura, EffectInjury, EffectEnvironment}

// EffectID is the handle the effect port assigns to a live effect instance.
// Handles can go stale; the engine recreates rather than fails.
type EffectID string

// EffectPayload is the content of one materialized effect. The engine treats
// it as a comparable value; what the port renders from it is the port's
// business.
type EffectPayload struct {
	Label string         `json:"label"`
	Icon  string         `json:"icon,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// Equal compares payloads structurally.
func (p *EffectPayload) Equal(o *EffectPayload) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.Label == o.Label && p.Icon == o.Icon && reflect.DeepEqual(p.Data, o.Data)
}

// Clone returns a detached copy, one map level deep. Payload data values are
// treated as immutable once projected.
func (p *EffectPayload) Clone() *EffectPayload {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Data != nil {
		cp.Data = make(map[string]any, len(p.Data))
		for k, v := range p.Data {
			cp.Data[k] = v
		}
	}
	return &cp
}

// Effect is a live, externally visible effect instance.
// At most one exists per (entity, category).
type Effect struct {
	ID       EffectID       `json:"id"`
	Entity   EntityRef      `json:"entity"`
	Category EffectCategory `json:"category"`
	Payload  EffectPayload  `json:"payload"`
}

// DesiredEffects is the projection result for one entity: one optional
// payload per category, nil meaning "this category should not exist".
type DesiredEffects struct {
	Aura        *EffectPayload
	Injury      *EffectPayload
	Environment *EffectPayload
}

// ByCategory returns the desired payload for one category.
func (d DesiredEffects) ByCategory(c EffectCategory) *EffectPayload {
	switch c {
	case EffectAura:
		return d.Aura
	case EffectInjury:
		return d.Injury
	case EffectEnvironment:
		return d.Environment
	}
	return nil
}

// Empty reports whether no category is desired.
func (d DesiredEffects) Empty() bool {
	return d.Aura == nil && d.Injury == nil && d.Environment == nil
}
