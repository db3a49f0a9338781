package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/evhart/bivouac/pkg/domain"
)

// Render produces a Markdown status report from one aggregate snapshot.
// The output is meant for terminal rendering (glamour) but degrades to
// readable plain text: sections for the watch rotation, marching order,
// injuries, the active hazard, reputation, supplies and sync mode.
func Render(g domain.GlobalContext) string {
	var sb strings.Builder
	sb.WriteString("# Party Status\n\n")

	writeWatch(&sb, g.Watch)
	writeMarch(&sb, g.March)
	writeInjuries(&sb, g.Injuries)
	writeHazard(&sb, g.Hazard)
	writeReputation(&sb, g.Reputation)
	writeSupplies(&sb, g.Supplies)

	sb.WriteString("## Sync\n\n")
	sb.WriteString(fmt.Sprintf("Mode: **%s**\n\n", g.Sync.Mode))

	writeTracked(&sb, g)

	return sb.String()
}

func writeWatch(sb *strings.Builder, w domain.WatchDoc) {
	sb.WriteString("## Watch Rotation")
	if w.Locked {
		sb.WriteString(" 🔒")
	}
	sb.WriteString("\n\n")

	if len(w.Slots) == 0 {
		sb.WriteString("_No watch slots._\n\n")
		return
	}

	ids := make([]string, 0, len(w.Slots))
	for id := range w.Slots {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	sb.WriteString("| Slot | Entity | Notes |\n")
	sb.WriteString("| --- | --- | --- |\n")
	for _, id := range ids {
		slot := w.Slots[id]
		entity := string(slot.Entity)
		if entity == "" {
			entity = "—"
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", id, entity, slot.Notes))
	}
	sb.WriteString("\n")
}

func writeMarch(sb *strings.Builder, m domain.MarchDoc) {
	sb.WriteString("## Marching Order\n\n")

	empty := true
	for i, rank := range m.Ranks {
		if len(rank.Entities) == 0 && rank.Note == "" {
			continue
		}
		empty = false
		line := fmt.Sprintf("%d. %s", i+1, joinEntities(rank.Entities))
		if rank.Note != "" {
			line += fmt.Sprintf(" _(%s)_", rank.Note)
		}
		sb.WriteString(line + "\n")
	}
	if empty {
		sb.WriteString("_No formation set._\n")
	}
	sb.WriteString("\n")
}

func writeInjuries(sb *strings.Builder, inj domain.InjuryDoc) {
	sb.WriteString("## Injuries\n\n")

	entities := make([]domain.EntityRef, 0, len(inj.Records))
	for e, records := range inj.Records {
		if len(records) > 0 {
			entities = append(entities, e)
		}
	}
	if len(entities) == 0 {
		sb.WriteString("_No injuries recorded._\n\n")
		return
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i] < entities[j] })

	for _, e := range entities {
		sb.WriteString(fmt.Sprintf("**%s**\n", e))
		for _, rec := range inj.Records[e] {
			line := fmt.Sprintf("- %s (severity %d", rec.Name, rec.Severity)
			if rec.Stabilized {
				line += ", stabilized"
			}
			line += ")"
			if rec.RecoveryDays > 0 {
				line += fmt.Sprintf(" — %d days to recover", rec.RecoveryDays)
			}
			sb.WriteString(line + "\n")
		}
		sb.WriteString("\n")
	}
}

func writeHazard(sb *strings.Builder, h domain.HazardDoc) {
	sb.WriteString("## Hazard\n\n")
	if !h.Active() {
		sb.WriteString("_No active hazard._\n\n")
		return
	}
	sb.WriteString(fmt.Sprintf("**%s** — DC %d, bonus %+d, scope `%s`\n", h.Preset, h.DC, h.Bonus, h.Scope))
	if len(h.Selected) > 0 {
		sb.WriteString(fmt.Sprintf("Selected: %s\n", joinEntities(h.Selected)))
	}
	sb.WriteString("\n")
}

func writeReputation(sb *strings.Builder, r domain.ReputationDoc) {
	sb.WriteString("## Reputation\n\n")
	sb.WriteString(fmt.Sprintf("Score **%d** (%s)\n\n", r.Score, r.Notoriety))
}

func writeSupplies(sb *strings.Builder, s domain.SupplyDoc) {
	sb.WriteString("## Supplies\n\n")

	if len(s.Levels) == 0 {
		sb.WriteString("_No supplies tracked._\n\n")
		return
	}

	resources := make([]string, 0, len(s.Levels))
	for r := range s.Levels {
		resources = append(resources, r)
	}
	sort.Strings(resources)

	// Invert the bindings so each resource lists its carriers.
	carriers := make(map[string][]string)
	for e, r := range s.Bindings {
		carriers[r] = append(carriers[r], string(e))
	}

	sb.WriteString("| Resource | Level | Carried by |\n")
	sb.WriteString("| --- | --- | --- |\n")
	for _, r := range resources {
		who := carriers[r]
		sort.Strings(who)
		held := strings.Join(who, ", ")
		if held == "" {
			held = "—"
		}
		sb.WriteString(fmt.Sprintf("| %s | %d | %s |\n", r, s.Levels[r], held))
	}
	sb.WriteString("\n")
}

func writeTracked(sb *strings.Builder, g domain.GlobalContext) {
	sb.WriteString("## Tracked Entities\n\n")
	tracked := g.Tracked()
	if len(tracked) == 0 {
		sb.WriteString("_No entities tracked._\n")
		return
	}
	sb.WriteString(joinEntities(tracked) + "\n")
}

func joinEntities(refs []domain.EntityRef) string {
	parts := make([]string, 0, len(refs))
	for _, e := range refs {
		if e != "" {
			parts = append(parts, string(e))
		}
	}
	if len(parts) == 0 {
		return "—"
	}
	return strings.Join(parts, ", ")
}
