package relay

import "github.com/evhart/bivouac/pkg/domain"

// Reducers are pure: (document, command) -> (document, changed). A false
// changed flag means the command was a no-op against current state (locked
// document, unknown slot, already in place) and suppresses persist, refresh
// and reconciliation alike.
//
// Every reducer is idempotent from current state ("assign me to this slot",
// never "increment"), which is what makes the bus's at-most-once delivery
// tolerable: clients can blindly re-issue after a timeout.

func reduceWatch(doc domain.WatchDoc, cmd domain.Command) (domain.WatchDoc, bool) {
	if doc.Locked {
		return doc, false
	}

	switch cmd.Kind {
	case domain.CmdAssignMe:
		slotID := cmd.PayloadString("slotId")
		slot, ok := doc.Slots[slotID]
		if !ok {
			return doc, false
		}
		if slot.Entity == cmd.Actor {
			return doc, false
		}
		out := cloneWatch(doc)
		// One watch per entity: leaving a previous slot is implied.
		for id, s := range out.Slots {
			if s.Entity == cmd.Actor {
				s.Entity = ""
				s.Notes = ""
				out.Slots[id] = s
			}
		}
		slot = out.Slots[slotID]
		slot.Entity = cmd.Actor
		out.Slots[slotID] = slot
		return out, true

	case domain.CmdClearEntry:
		slotID := cmd.PayloadString("slotId")
		slot, ok := doc.Slots[slotID]
		if !ok || slot.Entity != cmd.Actor {
			return doc, false
		}
		out := cloneWatch(doc)
		out.Slots[slotID] = domain.WatchSlot{}
		return out, true

	case domain.CmdSetEntryNotes:
		slotID := cmd.PayloadString("slotId")
		slot, ok := doc.Slots[slotID]
		if !ok || slot.Entity != cmd.Actor {
			return doc, false
		}
		notes := cmd.PayloadString("notes")
		if slot.Notes == notes {
			return doc, false
		}
		out := cloneWatch(doc)
		slot = out.Slots[slotID]
		slot.Notes = notes
		out.Slots[slotID] = slot
		return out, true
	}

	return doc, false
}

func reduceMarch(doc domain.MarchDoc, cmd domain.Command) (domain.MarchDoc, bool) {
	switch cmd.Kind {
	case domain.CmdJoinRank:
		rank, ok := cmd.PayloadInt("rank")
		if !ok || rank < 0 || rank >= len(doc.Ranks) {
			return doc, false
		}
		if inRank(doc.Ranks[rank], cmd.Actor) && countMemberships(doc, cmd.Actor) == 1 {
			return doc, false
		}
		out := cloneMarch(doc)
		for i := range out.Ranks {
			out.Ranks[i].Entities = without(out.Ranks[i].Entities, cmd.Actor)
		}
		out.Ranks[rank].Entities = append(out.Ranks[rank].Entities, cmd.Actor)
		return out, true

	case domain.CmdSetNote:
		rank, ok := cmd.PayloadInt("rank")
		if !ok || rank < 0 || rank >= len(doc.Ranks) {
			return doc, false
		}
		note := cmd.PayloadString("note")
		if doc.Ranks[rank].Note == note {
			return doc, false
		}
		out := cloneMarch(doc)
		out.Ranks[rank].Note = note
		return out, true
	}

	return doc, false
}

func cloneWatch(doc domain.WatchDoc) domain.WatchDoc {
	out := doc
	out.Slots = make(map[string]domain.WatchSlot, len(doc.Slots))
	for id, s := range doc.Slots {
		out.Slots[id] = s
	}
	return out
}

func cloneMarch(doc domain.MarchDoc) domain.MarchDoc {
	out := doc
	out.Ranks = make([]domain.MarchRank, len(doc.Ranks))
	for i, r := range doc.Ranks {
		cp := r
		cp.Entities = make([]domain.EntityRef, len(r.Entities))
		copy(cp.Entities, r.Entities)
		out.Ranks[i] = cp
	}
	return out
}

func inRank(rank domain.MarchRank, e domain.EntityRef) bool {
	for _, m := range rank.Entities {
		if m == e {
			return true
		}
	}
	return false
}

func countMemberships(doc domain.MarchDoc, e domain.EntityRef) int {
	n := 0
	for _, r := range doc.Ranks {
		if inRank(r, e) {
			n++
		}
	}
	return n
}

func without(list []domain.EntityRef, e domain.EntityRef) []domain.EntityRef {
	out := list[:0]
	for _, m := range list {
		if m != e {
			out = append(out, m)
		}
	}
	return out
}
