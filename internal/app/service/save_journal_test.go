package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/shortng/internal/app/model"
)

type mockSaveEventRepository struct {
	createFn      func(ctx context.Context, event *model.SaveEvent) error
	deleteOlderFn func(ctx context.Context, before time.Time) (int64, error)
}

func (m *mockSaveEventRepository) Create(ctx context.Context, event *model.SaveEvent) error {
	if m.createFn != nil {
		return m.createFn(ctx, event)
	}
	return nil
}

func (m *mockSaveEventRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	if m.deleteOlderFn != nil {
		return m.deleteOlderFn(ctx, before)
	}
	return 0, nil
}

func TestSaveEventConsumer_Handle(t *testing.T) {
	var stored *model.SaveEvent
	repo := &mockSaveEventRepository{
		createFn: func(ctx context.Context, event *model.SaveEvent) error {
			stored = event
			return nil
		},
	}
	consumer := NewSaveEventConsumer(nil, nil, repo)

	data, err := json.Marshal(model.SaveEvent{
		ID:        "5b7d7f0c-1f0e-4a59-9d5e-0a6a0b7b2d11",
		Filename:  "review.json",
		Bucket:    "flyem-user-links",
		Source:    "web",
		Overwrite: true,
		Timestamp: fixedNow,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	if err := consumer.Handle(context.Background(), data); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if stored == nil || stored.Filename != "review.json" || !stored.Overwrite {
		t.Fatalf("unexpected stored event: %+v", stored)
	}
	if !stored.Timestamp.Equal(fixedNow) {
		t.Fatalf("expected timestamp %v, got %v", fixedNow, stored.Timestamp)
	}
}

func TestSaveEventConsumer_HandleErrors(t *testing.T) {
	boom := errors.New("db down")
	consumer := NewSaveEventConsumer(nil, nil, &mockSaveEventRepository{
		createFn: func(ctx context.Context, event *model.SaveEvent) error { return boom },
	})

	if err := consumer.Handle(context.Background(), []byte("{not json")); !errors.Is(err, errMalformedEvent) {
		t.Fatalf("expected malformed event error, got %v", err)
	}
	if err := consumer.Handle(context.Background(), []byte(`{"id":"a"}`)); !errors.Is(err, boom) {
		t.Fatalf("expected repository error, got %v", err)
	}
}

type recordingAck struct {
	acks, naks, terms int
}

func (r *recordingAck) Ack(...nats.AckOpt) error  { r.acks++; return nil }
func (r *recordingAck) Nak(...nats.AckOpt) error  { r.naks++; return nil }
func (r *recordingAck) Term(...nats.AckOpt) error { r.terms++; return nil }

func TestSaveEventConsumer_Settle(t *testing.T) {
	repoErr := errors.New("db down")
	var failRepo bool
	consumer := NewSaveEventConsumer(nil, nil, &mockSaveEventRepository{
		createFn: func(ctx context.Context, event *model.SaveEvent) error {
			if failRepo {
				return repoErr
			}
			return nil
		},
	})

	cases := []struct {
		name     string
		data     string
		failRepo bool
		want     recordingAck
	}{
		{"stored", `{"id":"a","filename":"a.json"}`, false, recordingAck{acks: 1}},
		{"malformed is terminated", "{not json", false, recordingAck{terms: 1}},
		{"wrong shape is terminated", `["a"]`, false, recordingAck{terms: 1}},
		{"repository failure is redelivered", `{"id":"b"}`, true, recordingAck{naks: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			failRepo = tc.failRepo
			var got recordingAck
			consumer.settle(context.Background(), []byte(tc.data), &got)
			if got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestSaveEventConsumer_BacksOffOnFetchError(t *testing.T) {
	consumer := NewSaveEventConsumer(nil, nil, &mockSaveEventRepository{})
	consumer.retryDelay = 40 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var calls atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		consumer.consume(ctx, func() ([]*nats.Msg, error) {
			calls.Add(1)
			return nil, nats.ErrConnectionClosed
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consume did not stop after context cancellation")
	}
	if n := calls.Load(); n < 1 || n > 4 {
		t.Fatalf("expected a handful of fetch attempts, got %d", n)
	}
}

func TestJournalPruner_Prune(t *testing.T) {
	var cutoff time.Time
	repo := &mockSaveEventRepository{
		deleteOlderFn: func(ctx context.Context, before time.Time) (int64, error) {
			cutoff = before
			return 3, nil
		},
	}

	pruner := NewJournalPruner(nil, repo, 90*24*time.Hour)
	pruner.now = func() time.Time { return fixedNow }

	if got := pruner.Prune(context.Background()); got != 3 {
		t.Fatalf("expected 3 pruned events, got %d", got)
	}
	if want := fixedNow.Add(-90 * 24 * time.Hour); !cutoff.Equal(want) {
		t.Fatalf("expected cutoff %v, got %v", want, cutoff)
	}

	repo.deleteOlderFn = func(ctx context.Context, before time.Time) (int64, error) {
		return 0, errors.New("db down")
	}
	if got := pruner.Prune(context.Background()); got != 0 {
		t.Fatalf("expected 0 on error, got %d", got)
	}
}
