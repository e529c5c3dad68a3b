package workflow

import (
	"context"
	"log"

	"qrcheckin/internal/annotate"
	"qrcheckin/internal/geo"
	"qrcheckin/internal/history"
	"qrcheckin/internal/queue"
)

// AnnotationWorker consumes annotation jobs, resolves venue names, and
// amends stored records. It runs in-process next to the controller or as
// a separate binary against the Redis queue.
type AnnotationWorker struct {
	store     *history.Store
	annotator annotate.Annotator
	queue     queue.Queue

	// OnUpdate, when set, lets the display layer refresh an amended
	// record. Left nil in the out-of-process worker.
	OnUpdate func(ctx context.Context, record history.Record)
}

// NewAnnotationWorker wires a worker over the given services.
func NewAnnotationWorker(store *history.Store, annotator annotate.Annotator, q queue.Queue) *AnnotationWorker {
	return &AnnotationWorker{store: store, annotator: annotator, queue: q}
}

// Run consumes jobs until ctx is cancelled.
func (w *AnnotationWorker) Run(ctx context.Context) error {
	jobs, err := w.queue.Consume(ctx)
	if err != nil {
		return err
	}
	for job := range jobs {
		w.Process(ctx, job)
	}
	return nil
}

// Process handles one job. Annotation is best-effort throughout: a
// sentinel answer or a missing record means no update, never an error
// surfaced to the user.
func (w *AnnotationWorker) Process(ctx context.Context, job queue.Job) {
	name := w.annotator.Annotate(ctx, geo.Point{Latitude: job.Latitude, Longitude: job.Longitude})
	if name == annotate.NotAvailable {
		annotationsTotal.WithLabelValues("unavailable").Inc()
		return
	}

	records, err := w.store.List(ctx)
	if err != nil {
		log.Printf("annotation list failed: %v", err)
		annotationsTotal.WithLabelValues("store_error").Inc()
		return
	}
	for _, record := range records {
		if record.Timestamp != job.Timestamp {
			continue
		}
		record.LocationName = name
		if _, err := w.store.Update(ctx, record); err != nil {
			log.Printf("annotation update failed: %v", err)
			annotationsTotal.WithLabelValues("store_error").Inc()
			return
		}
		annotationsTotal.WithLabelValues("applied").Inc()
		if w.OnUpdate != nil {
			w.OnUpdate(ctx, record)
		}
		return
	}
	// Record gone or never stored; a late arrival must not invent state.
	annotationsTotal.WithLabelValues("missed").Inc()
}
