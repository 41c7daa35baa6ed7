package core

import (
	"context"
	"strconv"
	"testing"
)

func benchmarkSnapshotBroadcast(b *testing.B, recipients int) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(NewRegistry())
	go hub.Run(ctx)

	sender := NewClient("sender")
	hub.RegisterClient(sender)

	clients := make([]*Client, 0, recipients)
	for i := 0; i < recipients; i++ {
		c := NewClient("c" + strconv.Itoa(i))
		hub.RegisterClient(c)
		clients = append(clients, c)
	}

	// Drain events for all but the first recipient to avoid channel backpressure.
	target := clients[0]
	for _, c := range append(clients[1:], sender) {
		go func(cl *Client) {
			for range cl.Events {
			}
		}(c)
	}

	venues := []string{"A", "B"}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		sender.Commands <- locationUpdate("sender", venues[i%2])
		<-target.Events
	}
}

func BenchmarkSnapshotBroadcast_10(b *testing.B)  { benchmarkSnapshotBroadcast(b, 10) }
func BenchmarkSnapshotBroadcast_100(b *testing.B) { benchmarkSnapshotBroadcast(b, 100) }
func BenchmarkSnapshotBroadcast_500(b *testing.B) { benchmarkSnapshotBroadcast(b, 500) }
