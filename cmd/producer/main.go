package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/sanspareilsmyn/smafilter/internal/record"
)

var (
	kafkaBroker = flag.String("broker", "localhost:9092", "Kafka broker address")
	topic       = flag.String("topic", "collectd-values", "Topic the filter consumes from")
	interval    = flag.Duration("interval", time.Second, "Interval between value lists of one host")
	hosts       = flag.Int("hosts", 3, "Number of simulated hosts")
)

// Emits collectd-style value lists: a noisy load gauge triple, an interface derive pair,
// and a memory gauge that occasionally spikes.
func main() {
	flag.Parse()

	writer := &kafka.Writer{
		Addr:     kafka.TCP(*kafkaBroker),
		Topic:    *topic,
		Balancer: &kafka.Hash{},
	}
	defer func() {
		if err := writer.Close(); err != nil {
			log.Fatalf("Error closing kafka writer: %v", err)
		}
	}()
	log.Printf("Starting sample producer for topic: %s on broker: %s", *topic, *kafkaBroker)

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-signals
		log.Println("Shutdown signal received, stopping producer...")
		cancel()
	}()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	counters := make([]int64, *hosts)

	for step := 0; ; step++ {
		select {
		case now := <-ticker.C:
			for h := 0; h < *hosts; h++ {
				lists := generateValueLists(rng, hostName(h), now, step, &counters[h])
				if err := publish(ctx, writer, lists); err != nil {
					if ctx.Err() != nil {
						log.Println("Context cancelled, exiting message loop.")
						return
					}
					log.Printf("Error writing message: %v", err)
				}
			}

		case <-ctx.Done():
			log.Println("Producer loop stopped.")
			return
		}
	}
}

func hostName(i int) string {
	return fmt.Sprintf("host-%d", i)
}

func publish(ctx context.Context, writer *kafka.Writer, lists []*record.ValueList) error {
	msgs := make([]kafka.Message, 0, len(lists))
	for _, vl := range lists {
		payload, err := record.EncodeValueLists([]*record.ValueList{vl})
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{Key: []byte(vl.Identifier()), Value: payload})
	}
	return writer.WriteMessages(ctx, msgs...)
}

func generateValueLists(rng *rand.Rand, host string, now time.Time, step int, rxBytes *int64) []*record.ValueList {
	base := record.ValueList{Host: host, Time: now, Interval: *interval}

	load := base
	load.Plugin, load.Type = "load", "load"
	wave := 1.5 + math.Sin(float64(step)/20)
	load.Values = []record.Value{
		record.GaugeValue("shortterm", wave+rng.NormFloat64()*0.4),
		record.GaugeValue("midterm", wave+rng.NormFloat64()*0.2),
		record.GaugeValue("longterm", wave+rng.NormFloat64()*0.1),
	}

	*rxBytes += int64(1000 + rng.Intn(5000))
	iface := base
	iface.Plugin, iface.PluginInstance, iface.Type = "interface", "eth0", "if_octets"
	iface.Values = []record.Value{
		{Name: "rx", Kind: record.KindDerive, Derive: *rxBytes},
		{Name: "tx", Kind: record.KindDerive, Derive: *rxBytes / 3},
	}

	used := 4e9 + rng.NormFloat64()*1e8
	if rng.Float64() < 0.05 { // occasional spike
		used += 2e9
	}
	memory := base
	memory.Plugin, memory.Type, memory.TypeInstance = "memory", "memory", "used"
	memory.Values = []record.Value{record.GaugeValue("value", used)}

	return []*record.ValueList{&load, &iface, &memory}
}
