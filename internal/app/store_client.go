package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"flashcard-progress/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// LoadResult classifies the outcome of an aggregate load.
type LoadResult int

const (
	LoadFound LoadResult = iota
	LoadNotFound
	LoadUnavailable
	LoadUnauthenticated
)

func (r LoadResult) String() string {
	switch r {
	case LoadFound:
		return "found"
	case LoadNotFound:
		return "not_found"
	case LoadUnavailable:
		return "unavailable"
	case LoadUnauthenticated:
		return "unauthenticated"
	}
	return fmt.Sprintf("LoadResult(%d)", int(r))
}

// StoreClient sits between the engine and an AggregateStore. Ambient
// operations absorb store errors into booleans and log them; explicit user
// operations (reset, history, statistics) return errors.
type StoreClient struct {
	store  AggregateStore
	tracer trace.Tracer
}

func NewStoreClient(store AggregateStore) *StoreClient {
	return &StoreClient{
		store:  store,
		tracer: otel.Tracer("flashcard-progress/app"),
	}
}

// Load reads the aggregate of userID.
func (c *StoreClient) Load(ctx context.Context, userID string) (domain.Aggregate, LoadResult) {
	if userID == "" {
		log.Printf("progress load skipped: %v", domain.ErrUnauthenticated)
		return domain.Aggregate{}, LoadUnauthenticated
	}
	ctx, span := c.start(ctx, "progress.load_aggregate", userID)
	defer span.End()

	agg, err := c.store.LoadAggregate(ctx, userID)
	switch {
	case err == nil:
		return agg, LoadFound
	case errors.Is(err, domain.ErrAggregateNotFound):
		span.SetAttributes(attribute.Bool("progress.not_found", true))
		return domain.Aggregate{UserID: userID}, LoadNotFound
	case errors.Is(err, domain.ErrUnauthenticated):
		log.Printf("progress load skipped for %s: %v", userID, err)
		return domain.Aggregate{}, LoadUnauthenticated
	default:
		recordError(span, err)
		log.Printf("progress load failed for %s: %v", userID, err)
		return domain.Aggregate{UserID: userID}, LoadUnavailable
	}
}

// Merge folds in into the aggregate and reports whether the store acknowledged it.
func (c *StoreClient) Merge(ctx context.Context, userID string, in domain.MergeInput) bool {
	if userID == "" {
		log.Printf("progress merge skipped: %v", domain.ErrUnauthenticated)
		return false
	}
	ctx, span := c.start(ctx, "progress.merge_incremental", userID)
	defer span.End()
	span.SetAttributes(
		attribute.String("progress.session_id", in.SessionID),
		attribute.Int("progress.attempted", in.Attempted),
		attribute.Int("progress.correct", in.Correct),
	)

	if err := c.store.MergeIncremental(ctx, userID, in); err != nil {
		recordError(span, err)
		log.Printf("progress merge failed for %s session %s: %v", userID, in.SessionID, err)
		return false
	}
	return true
}

// Append writes a session history record and reports whether it was stored.
func (c *StoreClient) Append(ctx context.Context, rec domain.SessionHistoryRecord) bool {
	if rec.UserID == "" {
		log.Printf("session history skipped: %v", domain.ErrUnauthenticated)
		return false
	}
	ctx, span := c.start(ctx, "progress.append_session_history", rec.UserID)
	defer span.End()

	if err := c.store.AppendSessionHistory(ctx, rec); err != nil {
		recordError(span, err)
		log.Printf("session history append failed for %s session %s: %v", rec.UserID, rec.SessionID, err)
		return false
	}
	return true
}

// Statistics derives the statistics view; a user without an aggregate gets zeroes.
func (c *StoreClient) Statistics(ctx context.Context, userID string) (domain.Statistics, error) {
	if userID == "" {
		return domain.Statistics{}, domain.ErrUnauthenticated
	}
	ctx, span := c.start(ctx, "progress.get_statistics", userID)
	defer span.End()

	agg, err := c.store.LoadAggregate(ctx, userID)
	if errors.Is(err, domain.ErrAggregateNotFound) {
		return domain.Aggregate{UserID: userID}.Statistics(), nil
	}
	if err != nil {
		recordError(span, err)
		return domain.Statistics{}, fmt.Errorf("load statistics: %w", err)
	}
	return agg.Statistics(), nil
}

// History lists the most recent completed sessions, newest first.
func (c *StoreClient) History(ctx context.Context, userID string, limit int) ([]domain.SessionHistoryRecord, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	ctx, span := c.start(ctx, "progress.list_session_history", userID)
	defer span.End()

	records, err := c.store.ListSessionHistory(ctx, userID, limit)
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("list session history: %w", err)
	}
	return records, nil
}

// Reset recreates the aggregate at zero. Failures are returned so the user can retry.
func (c *StoreClient) Reset(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.ErrUnauthenticated
	}
	ctx, span := c.start(ctx, "progress.reset_aggregate", userID)
	defer span.End()

	if err := c.store.ResetAggregate(ctx, userID); err != nil {
		recordError(span, err)
		return fmt.Errorf("reset statistics: %w", err)
	}
	return nil
}

func (c *StoreClient) start(ctx context.Context, name, userID string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("user.id", userID)))
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
