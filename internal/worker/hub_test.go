package worker_test

import (
	"context"
	"testing"
	"time"

	"neuroflow/internal/worker"
)

func TestHubAssignsSequencesInOrder(t *testing.T) {
	hub := worker.NewHub(16)
	for i := 0; i < 5; i++ {
		hub.Publish(worker.Event{Kind: worker.EventLog, Message: "m"})
	}
	events, next, err := hub.Fetch(context.Background(), 0, 0, false)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(events) != 5 || next != 5 {
		t.Fatalf("expected 5 events with cursor 5, got %d / %d", len(events), next)
	}
	for i, evt := range events {
		if evt.Sequence != uint64(i+1) {
			t.Fatalf("sequence gap at %d: %d", i, evt.Sequence)
		}
		if evt.Timestamp.IsZero() {
			t.Fatal("timestamp not stamped")
		}
	}
}

func TestHubFetchSinceCursor(t *testing.T) {
	hub := worker.NewHub(16)
	for i := 0; i < 6; i++ {
		hub.Publish(worker.Event{Kind: worker.EventLog})
	}
	events, _, err := hub.Fetch(context.Background(), 4, 0, false)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(events) != 2 || events[0].Sequence != 5 {
		t.Fatalf("cursor ignored: %+v", events)
	}
}

func TestHubBoundedBufferKeepsRecent(t *testing.T) {
	hub := worker.NewHub(4)
	for i := 0; i < 10; i++ {
		hub.Publish(worker.Event{Kind: worker.EventLog})
	}
	tail, next := hub.Tail(0)
	if len(tail) != 4 || next != 10 {
		t.Fatalf("expected last 4 of 10, got %d events, cursor %d", len(tail), next)
	}
	if tail[0].Sequence != 7 || hub.FirstSequence() != 7 {
		t.Fatalf("oldest retained sequence should be 7, got %d / %d", tail[0].Sequence, hub.FirstSequence())
	}
}

func TestHubFetchWaitWakesOnPublish(t *testing.T) {
	hub := worker.NewHub(16)
	done := make(chan []worker.Event, 1)
	go func() {
		events, _, _ := hub.Fetch(context.Background(), 0, 0, true)
		done <- events
	}()
	time.Sleep(10 * time.Millisecond)
	hub.Publish(worker.Event{Kind: worker.EventLog, Message: "wake"})
	select {
	case events := <-done:
		if len(events) != 1 || events[0].Message != "wake" {
			t.Fatalf("unexpected events: %+v", events)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch did not wake on publish")
	}
}

func TestHubFetchWaitHonorsContext(t *testing.T) {
	hub := worker.NewHub(16)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err := hub.Fetch(ctx, 0, 0, true)
	if err == nil {
		t.Fatal("expected context error from waiting Fetch")
	}
}

func TestHubEventsStreamsInOrder(t *testing.T) {
	hub := worker.NewHub(16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := hub.Events(ctx)
	go func() {
		for i := 0; i < 3; i++ {
			hub.Publish(worker.Event{Kind: worker.EventLog})
		}
	}()

	var got []uint64
	timeout := time.After(2 * time.Second)
	for len(got) < 3 {
		select {
		case evt := <-stream:
			got = append(got, evt.Sequence)
		case <-timeout:
			t.Fatalf("stream stalled after %v", got)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i] != got[i-1]+1 {
			t.Fatalf("out-of-order delivery: %v", got)
		}
	}
}
