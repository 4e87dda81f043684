// Package metrics holds the game's OpenTelemetry counters. They are
// created on the global meter provider, which telemetry.Setup replaces
// with an exporting one; instruments made before that forward to it.
package metrics

import (
	"context"
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type counters struct {
	attacks       metric.Int64Counter
	potions       metric.Int64Counter
	created       metric.Int64Counter
	storeFailures metric.Int64Counter
}

var (
	once sync.Once
	c    counters
)

func newCounter(m metric.Meter, name, desc string) metric.Int64Counter {
	ctr, err := m.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		log.Printf("[metrics] counter %s: %v", name, err)
	}
	return ctr
}

func get() *counters {
	once.Do(func() {
		m := otel.Meter("fantasyrpg/server")
		c = counters{
			attacks:       newCounter(m, "fantasy_attacks_total", "Resolved attacks by monster"),
			potions:       newCounter(m, "fantasy_potions_total", "Potion purchases by outcome"),
			created:       newCounter(m, "fantasy_characters_created_total", "Characters created by class"),
			storeFailures: newCounter(m, "fantasy_store_failures_total", "Asset store failures by operation"),
		}
	})
	return &c
}

func add(ctx context.Context, ctr metric.Int64Counter, attrs ...attribute.KeyValue) {
	if ctr == nil {
		return
	}
	ctr.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func Attack(ctx context.Context, monster string) {
	add(ctx, get().attacks, attribute.String("monster", monster))
}

func Potion(ctx context.Context, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "rejected"
	}
	add(ctx, get().potions, attribute.String("outcome", outcome))
}

func CharacterCreated(ctx context.Context, class string) {
	add(ctx, get().created, attribute.String("class", class))
}

// StoreFailure counts a failed asset store call, op is e.g. "save".
func StoreFailure(ctx context.Context, op string) {
	add(ctx, get().storeFailures, attribute.String("op", op))
}
