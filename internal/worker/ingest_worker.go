// Package worker consumes deferred ingest jobs from RabbitMQ.
package worker

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"ragbase/internal/app"
	"ragbase/internal/platform/rabbitmq"
)

// IngestWorker executes import and sync jobs published by the HTTP layer.
// Directory validation already happened at publish time, so a failing job is
// logged and dropped rather than requeued.
type IngestWorker struct {
	conn      *amqp.Connection
	queueName string
	ingest    *app.IngestService
	logger    *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewIngestWorker(conn *amqp.Connection, queueName string, ingest *app.IngestService, logger *zap.Logger) *IngestWorker {
	return &IngestWorker{
		conn:      conn,
		queueName: queueName,
		ingest:    ingest,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start opens a channel, declares the durable job queue, and consumes until
// Close is called or the delivery stream ends.
func (w *IngestWorker) Start() error {
	ch, err := w.conn.Channel()
	if err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(w.queueName, true, false, false, false, nil); err != nil {
		ch.Close()
		return err
	}
	// One job at a time; ingestion is I/O and model bound.
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		return err
	}

	deliveries, err := ch.Consume(w.queueName, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	go func() {
		defer close(w.done)
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					w.logger.Warn("ingest job delivery stream closed")
					return
				}
				w.handle(ctx, d)
			}
		}
	}()

	w.logger.Info("ingest worker started", zap.String("queue", w.queueName))
	return nil
}

func (w *IngestWorker) handle(ctx context.Context, d amqp.Delivery) {
	var job rabbitmq.IngestJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		w.logger.Error("discarding malformed ingest job", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	logger := w.logger.With(
		zap.String("job_id", job.JobID),
		zap.String("kind", job.Kind),
		zap.String("directory", job.Directory),
	)
	logger.Info("ingest job started")

	switch job.Kind {
	case rabbitmq.JobKindImport:
		report, err := w.ingest.ProcessImport(ctx, job.Directory)
		if err != nil {
			logger.Error("import job failed", zap.Error(err))
			_ = d.Nack(false, false)
			return
		}
		logger.Info("import job finished",
			zap.Int("files_processed", report.FilesProcessed),
			zap.Int("files_skipped", report.FilesSkipped),
			zap.Int("files_failed", report.FilesFailed),
			zap.Int("chunks_stored", report.ChunksStored),
			zap.Int("chunks_failed", report.ChunksFailed))
	case rabbitmq.JobKindSync:
		report, err := w.ingest.ProcessSync(ctx, job.Directory)
		if err != nil {
			logger.Error("sync job failed", zap.Error(err))
			_ = d.Nack(false, false)
			return
		}
		logger.Info("sync job finished",
			zap.Int("new_files", len(report.NewFiles)),
			zap.Int("changed_files", len(report.ChangedFiles)),
			zap.Int("unchanged_files", report.UnchangedFiles),
			zap.Int64("deleted_chunks", report.DeletedChunks),
			zap.Int("chunks_stored", report.Import.ChunksStored))
	default:
		logger.Error("unknown ingest job kind")
		_ = d.Nack(false, false)
		return
	}

	_ = d.Ack(false)
}

// Close stops consumption and waits for the in-flight job to finish.
func (w *IngestWorker) Close() {
	if w.cancel != nil {
		w.cancel()
		<-w.done
	}
}
