package app_test

import (
	"context"
	"errors"
	"testing"

	"flashcard-progress/internal/app"
	"flashcard-progress/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStoreClientClassifiesLoads(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore()
	client := app.NewStoreClient(store)

	if _, res := client.Load(ctx, ""); res != app.LoadUnauthenticated {
		t.Fatalf("expected unauthenticated, got %s", res)
	}
	if agg, res := client.Load(ctx, "u1"); res != app.LoadNotFound || agg.UserID != "u1" {
		t.Fatalf("expected not found, got %s", res)
	}

	if !client.Merge(ctx, "u1", domain.MergeInput{Sessions: 1, Attempted: 1, Correct: 1, Difficulty: domain.DifficultyEasy}) {
		t.Fatalf("expected merge acknowledged")
	}
	if agg, res := client.Load(ctx, "u1"); res != app.LoadFound || agg.TotalQuestionsCorrect != 1 {
		t.Fatalf("expected found aggregate, got %s %+v", res, agg)
	}

	store.setDown(true)
	if _, res := client.Load(ctx, "u1"); res != app.LoadUnavailable {
		t.Fatalf("expected unavailable, got %s", res)
	}
	if client.Merge(ctx, "u1", domain.MergeInput{Attempted: 1}) {
		t.Fatalf("expected merge to report failure")
	}
	if _, err := client.Statistics(ctx, "u1"); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected statistics error, got %v", err)
	}
}

func TestStoreClientRecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))

	store := newFlakyStore()
	client := app.NewStoreClient(store)
	ctx := context.Background()

	client.Merge(ctx, "u1", domain.MergeInput{SessionID: "s1", Sessions: 1, Attempted: 2})
	store.setDown(true)
	client.Merge(ctx, "u1", domain.MergeInput{SessionID: "s1", Attempted: 1})

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name() != "progress.merge_incremental" || spans[0].Status().Code == codes.Error {
		t.Fatalf("unexpected first span %s %v", spans[0].Name(), spans[0].Status())
	}
	if spans[1].Status().Code != codes.Error {
		t.Fatalf("expected failed merge span to carry an error status")
	}
}
