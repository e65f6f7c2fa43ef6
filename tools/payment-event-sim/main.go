package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/avik-sarkar/autoshop/libs/kafkax"
)

// Publishes a synthetic payment-recorded event so the appointment service's
// consumer can be exercised without the billing system running.
func main() {
	var (
		brokers = flag.String("brokers", getenv("KAFKA_BROKERS", "localhost:9092"), "comma-separated kafka brokers")
		topic   = flag.String("topic", getenv("KAFKA_PAYMENT_TOPIC", "billing.payment.recorded.v1"), "payment topic")
		appt    = flag.String("appointment-id", getenv("APPOINTMENT_ID", ""), "appointment id the payment applies to")
		amount  = flag.Float64("amount", 25.00, "payment amount")
	)
	flag.Parse()

	if strings.TrimSpace(*appt) == "" {
		fatal("APPOINTMENT_ID is required")
	}
	if *amount <= 0 {
		fatal("amount must be positive")
	}

	now := time.Now().UTC()
	eventID := uuid.NewString()

	payload, err := json.Marshal(map[string]any{
		"event_id":       eventID,
		"appointment_id": *appt,
		"amount":         *amount,
		"recorded_at":    now.Format(time.RFC3339),
	})
	if err != nil {
		fatal(err.Error())
	}

	writer := &kafka.Writer{
		Addr:     kafka.TCP(kafkax.SplitBrokers(*brokers)...),
		Topic:    *topic,
		Balancer: &kafka.Hash{},
	}
	defer writer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(*appt),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(eventID)},
			{Key: "event_type", Value: []byte(*topic)},
		},
	})
	if err != nil {
		fatal(err.Error())
	}

	fmt.Printf("published event_id=%s appointment_id=%s amount=%.2f\n", eventID, *appt, *amount)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
