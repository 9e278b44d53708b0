package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/hsiuhsiu/zenoh-go/pkg/zenoh"
)

type reading struct {
	Sensor string    `json:"sensor"`
	Seq    int       `json:"seq"`
	Value  float64   `json:"value"`
	At     time.Time `json:"at"`
}

var demoSensors = []string{"temperature", "humidity", "pressure"}

// publishDemo puts a JSON reading for every demo sensor each interval until
// ctx is done.
func publishDemo(ctx context.Context, lib *zenoh.Library, sess *zenoh.Session, interval time.Duration) error {
	pubs := make([]*zenoh.Publisher, 0, len(demoSensors))
	defer func() {
		for _, p := range pubs {
			_ = p.Close()
		}
	}()
	for _, name := range demoSensors {
		p, err := declareJSON(lib, sess, "demo/sensors/"+name)
		if err != nil {
			return err
		}
		pubs = append(pubs, p)
	}

	ticker := time.NewTicker(max(interval, 10*time.Millisecond))
	defer ticker.Stop()
	for seq := 0; ; seq++ {
		for i, p := range pubs {
			data, err := json.Marshal(reading{
				Sensor: demoSensors[i],
				Seq:    seq,
				Value:  20 + 5*math.Sin(float64(seq)/8+float64(i)),
				At:     time.Now().UTC(),
			})
			if err != nil {
				return err
			}
			if err := p.PutBytes(data); err != nil {
				return fmt.Errorf("demo put %s: %w", p.KeyExpr(), err)
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func declareJSON(lib *zenoh.Library, sess *zenoh.Session, key string) (*zenoh.Publisher, error) {
	ke, err := lib.KeyExpr(key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = ke.Close() }()
	enc, err := lib.Encoding(zenoh.EncodingApplicationJSON)
	if err != nil {
		return nil, err
	}
	defer func() { _ = enc.Close() }()
	return sess.DeclarePublisher(ke, &zenoh.PublisherOptions{Encoding: enc})
}
