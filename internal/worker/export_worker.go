package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jhonier182/lista-mercado/internal/amqp"
	"github.com/jhonier182/lista-mercado/internal/log"
	"github.com/jhonier182/lista-mercado/internal/sheets"
)

// ExportWorker copies recorded prices into the spreadsheet.
type ExportWorker struct {
	exporter sheets.PriceExporter
	logger   *log.Logger
}

// NewExportWorker builds a worker. With a nil logger records go to the
// context logger.
func NewExportWorker(exporter sheets.PriceExporter, logger *log.Logger) *ExportWorker {
	return &ExportWorker{exporter: exporter, logger: logger}
}

// HandlePriceRecorded appends one observation row. A returned error makes
// the consumer requeue the message.
func (w *ExportWorker) HandlePriceRecorded(ctx context.Context, msg *amqp.PriceRecordedMessage) error {
	logger := w.logger
	if logger == nil {
		logger = log.FromContext(ctx)
	}
	logger = logger.WithComponent(log.ComponentWorker)
	logger.DebugContext(ctx, "Processing price message",
		log.FieldEntryID, msg.EntryID,
		log.FieldProductID, msg.ProductID)

	obs := sheets.PriceObservation{
		EntryID:     msg.EntryID,
		OwnerID:     msg.OwnerID,
		ProductID:   msg.ProductID,
		ProductName: msg.ProductName,
		Price:       msg.Price,
		Store:       msg.Store,
		Date:        msg.Date.UTC().Format(time.DateOnly),
	}

	ref, err := w.exporter.AppendPriceObservation(ctx, obs)
	if err != nil {
		return fmt.Errorf("append price observation: %w", err)
	}

	log.NewStructuredLogger(logger).LogPriceExported(ctx, msg.OwnerID, msg.EntryID, msg.ProductID, ref)
	return nil
}
