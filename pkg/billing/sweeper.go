package billing

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/payforge/payforge/pkg/observability"
)

// TokenSweeper periodically retries billing records whose pending card token
// survived a partial failure (remote attach succeeded, local save did not,
// or the original request died between the two). Without the sweep those
// tokens would sit unapplied until the payer's next billing action.
type TokenSweeper struct {
	engine  *Engine
	records RecordStore
	logger  *observability.Logger
	cron    *cron.Cron
	batch   int
	timeout time.Duration
}

// NewTokenSweeper creates a sweeper over the engine's record store.
func NewTokenSweeper(engine *Engine, records RecordStore, logger *observability.Logger) *TokenSweeper {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &TokenSweeper{
		engine:  engine,
		records: records,
		logger:  logger,
		cron:    cron.New(),
		batch:   100,
		timeout: 2 * time.Minute,
	}
}

// SetBatchSize overrides how many records a single sweep picks up.
func (s *TokenSweeper) SetBatchSize(n int) {
	if n > 0 {
		s.batch = n
	}
}

// Start schedules the sweep. spec is a cron expression, e.g. "@every 15m".
func (s *TokenSweeper) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *TokenSweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *TokenSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.Sweep(ctx); err != nil {
		s.logger.WithError(err).Warn("pending card token sweep failed")
	}
}

// Sweep runs one pass over records with unapplied card tokens. Resolving the
// customer applies the token; records without a remote customer yet are left
// for their first billing action.
func (s *TokenSweeper) Sweep(ctx context.Context) error {
	records, err := s.records.ListPendingCardTokens(ctx, s.batch)
	if err != nil {
		return err
	}

	for _, record := range records {
		if !record.HasProcessorID() {
			continue
		}
		if _, err := s.engine.ResolveCustomer(ctx, record.ID); err != nil {
			s.logger.WithError(err).WithField("record_id", record.ID).
				Warn("pending card token retry failed")
		}
	}
	return nil
}
