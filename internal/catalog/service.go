package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-kitchen-orders.git/internal/events"
	kafkax "github.com/ariefcatur/go-kitchen-orders.git/internal/kafka"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/redisx"
)

// Service: worker propagasi availability, dipasang sebagai handler
// consumer stock.changed.
type Service struct {
	Propagator  *Propagator
	Redis       *redis.Client
	Producer    *kafkax.Producer
	ServiceName string
}

// HandleStockChanged: decode envelope -> dedup -> recompute plate yg
// terdampak -> publish flip. Aman di-retry: recompute idempotent dan
// cuma menulis kalau nilainya berubah.
func (s *Service) HandleStockChanged(ctx context.Context, m kafkago.Message) error {
	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != events.EventStockChanged {
		return nil
	} // ignore

	// dedup via Redis (pakai event_id)
	dkey := ""
	if s.Redis != nil {
		dkey = fmt.Sprintf(redisx.KeyDedup, "propagator", env.EventID)
		exists, _ := redisx.Exists(ctx, s.Redis, dkey)
		if exists {
			return nil
		}
	}

	p, err := kafkax.UnwrapPayload[events.StockChangedPayload](env.Payload)
	if err != nil {
		return err
	}
	if len(p.IngredientIDs) > 0 {
		flips, err := s.Propagator.RecomputeForIngredients(ctx, p.IngredientIDs)
		if err != nil {
			return err
		}
		for _, f := range flips {
			log.Printf("plate %s availability -> %v (source=%s)", f.PlateID, f.Available, p.Source)
			s.publishFlip(f, env.TraceID)
		}
	} // product-only change tidak menyentuh resep plate

	// tandai SETELAH sukses; recompute yg gagal biar di-redeliver consumer
	if dkey != "" {
		_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	}
	return nil
}

func (s *Service) publishFlip(f Flip, trace string) {
	if s.Producer == nil {
		return
	}
	ev := events.Envelope{
		EventID:       uuid.NewString(),
		EventType:     events.EventPlateAvailability,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       trace,
		CorrelationID: f.PlateID,
		Payload:       kafkax.MustMarshal(events.PlateAvailabilityPayload{PlateID: f.PlateID, Available: f.Available}),
	}
	s.Producer.Publish(events.TopicPlateAvailability, events.PartitionKey(f.PlateID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(events.EventPlateAvailability)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
