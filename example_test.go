package bivouac_test

import (
	"context"
	"fmt"
	"log"

	"github.com/evhart/bivouac"
	"github.com/evhart/bivouac/pkg/adapters/memory"
	"github.com/evhart/bivouac/pkg/domain"
)

// ExampleNew demonstrates using the host purely as a Go library with
// in-memory adapters: mutate a document through the host surface and read
// the merged result back.
func ExampleNew() {
	// 1. Wire the host with in-memory adapters.
	hub := memory.NewHub()
	defer hub.Close()

	roster := memory.NewRoster()
	roster.SetEntities("hero-1")

	host := bivouac.New("host",
		memory.NewStore(), hub.Client(), memory.NewEffects(), roster)

	// 2. Record an injury through the host-only mutation surface. The
	// write is synchronous; only effect materialization is debounced.
	ctx := context.Background()
	err := host.AddInjury(ctx, "hero-1", domain.InjuryRecord{
		Name:     "Sprained Wrist",
		Severity: 1,
	})
	if err != nil {
		log.Fatal(err)
	}

	// 3. Documents read back with defaults merged in: the injury registry
	// now carries the record, untouched documents stay at their defaults.
	status, err := host.Status(ctx)
	if err != nil {
		log.Fatal(err)
	}

	for _, rec := range status.Injuries.Records["hero-1"] {
		fmt.Printf("%s (severity %d)\n", rec.Name, rec.Severity)
	}
	fmt.Printf("sync mode: %s\n", status.Sync.Mode)

	// Output:
	// Sprained Wrist (severity 1)
	// sync mode: off
}
