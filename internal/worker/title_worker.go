package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"legalchat/internal/ai"
	"legalchat/internal/app"
	"legalchat/internal/pii"
	"legalchat/internal/store"
)

// TitleWorker consumes title-generation jobs, asks the model for a short
// title, and installs it unless a newer title write already won.
type TitleWorker struct {
	conn      *amqp.Connection
	store     *store.ConversationStore
	llmClient *ai.Client
	llmConfig ai.ChatConfig
	queueName string
	logger    *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTitleWorker(
	conn *amqp.Connection,
	conversations *store.ConversationStore,
	llmClient *ai.Client,
	llmConfig ai.ChatConfig,
	queueName string,
	logger *zap.Logger,
) *TitleWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TitleWorker{
		conn:      conn,
		store:     conversations,
		llmClient: llmClient,
		llmConfig: llmConfig,
		queueName: queueName,
		logger:    logger,
	}
}

func (w *TitleWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				w.handle(workerCtx, d)
			}
		}
	}()

	return nil
}

func (w *TitleWorker) handle(ctx context.Context, d amqp.Delivery) {
	var job app.TitleJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		w.logger.Warn("decode title job failed", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Publishers scrub identifiers before enqueueing, but queued payloads
	// are not trusted; scrub again before the text leaves the process.
	title, err := w.llmClient.GenerateTitle(jobCtx, w.llmConfig, pii.Pseudonymize(job.FirstMessage))
	if err != nil {
		// The heuristic title stands; do not requeue endlessly.
		w.logger.Warn("generate title failed",
			zap.String("conversation_id", job.ConversationID),
			zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	applied, err := w.store.ApplyGeneratedTitle(job.ConversationID, title, job.Generation)
	if err != nil {
		w.logger.Warn("apply generated title failed",
			zap.String("conversation_id", job.ConversationID),
			zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	if !applied {
		w.logger.Debug("generated title was stale",
			zap.String("conversation_id", job.ConversationID),
			zap.Int("generation", job.Generation))
	}
	_ = d.Ack(false)
}

func (w *TitleWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
