// Package receipt downloads, archives and prints payment receipts.
package receipt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"time"

	"github.com/campusfin/client/internal/domain/finance"
	"github.com/campusfin/client/internal/domain/shared"
	"github.com/campusfin/client/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

// DefaultPrintDelay is the pause between the document loading and the print request
const DefaultPrintDelay = time.Second

// API is the part of the backend the workflow uses
type API interface {
	DownloadReceipt(ctx context.Context, receiptID int64) (io.ReadCloser, error)
	ListStudentReceipts(ctx context.Context, studentID int64) ([]int64, error)
}

// Sink persists a named document and returns its location
type Sink interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// Viewer opens documents for display
type Viewer interface {
	Open(ctx context.Context, name string, doc []byte) (Window, error)
}

// Window is one opened document. Close must always be called.
type Window interface {
	WaitLoaded(ctx context.Context) error
	Print(ctx context.Context) error
	Close() error
}

// Outcome is the result for a single receipt of a batch
type Outcome struct {
	ReceiptID int64
	Location  string
	Err       error
}

// Progress is reported after every item of a batch
type Progress struct {
	Done      int
	Total     int
	Succeeded int
	Last      Outcome
}

// BatchResult summarizes PrintAllReceipts
type BatchResult struct {
	Total       int
	Succeeded   int
	Saved       []string
	FailedIDs   []int64
	NothingToDo bool
}

// Workflow runs receipt operations against the backend
type Workflow struct {
	api        API
	sink       Sink
	viewer     Viewer
	printDelay time.Duration
	metrics    *metrics.Recorder
	logger     *zap.Logger
}

// Option configures a Workflow
type Option func(*Workflow)

// WithViewer enables ViewAndPrintReceipt
func WithViewer(v Viewer) Option {
	return func(w *Workflow) { w.viewer = v }
}

// WithPrintDelay overrides DefaultPrintDelay
func WithPrintDelay(d time.Duration) Option {
	return func(w *Workflow) {
		if d >= 0 {
			w.printDelay = d
		}
	}
}

// WithMetrics records per-item results and bytes saved
func WithMetrics(r *metrics.Recorder) Option {
	return func(w *Workflow) { w.metrics = r }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(w *Workflow) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWorkflow creates a Workflow saving documents to sink
func NewWorkflow(api API, sink Sink, opts ...Option) *Workflow {
	w := &Workflow{
		api:        api,
		sink:       sink,
		printDelay: DefaultPrintDelay,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// FileName is the name a receipt is saved under
func FileName(receiptID int64) string {
	return fmt.Sprintf("receipt-%d.pdf", receiptID)
}

// DownloadReceipt saves one receipt and returns where it was written
func (w *Workflow) DownloadReceipt(ctx context.Context, receiptID int64) (string, error) {
	loc, err := w.download(ctx, receiptID)
	w.metrics.ReceiptItem("download", err == nil)
	return loc, err
}

func (w *Workflow) download(ctx context.Context, receiptID int64) (string, error) {
	body, err := w.api.DownloadReceipt(ctx, receiptID)
	if err != nil {
		return "", err
	}
	defer body.Close()

	cr := &countingReader{r: body}
	loc, err := w.sink.Save(ctx, FileName(receiptID), cr)
	if cr.err != nil {
		return "", &shared.NetworkError{Op: "download receipt", Err: cr.err}
	}
	if err != nil {
		return "", fmt.Errorf("save receipt %d: %w", receiptID, err)
	}
	w.metrics.ReceiptBytes(cr.n)
	w.logger.Debug("receipt saved",
		zap.Int64("receipt_id", receiptID),
		zap.String("location", loc),
		zap.Int("bytes", cr.n))
	return loc, nil
}

// ViewAndPrintReceipt opens a receipt in the viewer, waits for it to load
// plus the print delay, then requests printing. A viewer that cannot be
// opened yields an error matching shared.ErrViewerBlocked.
func (w *Workflow) ViewAndPrintReceipt(ctx context.Context, receiptID int64) error {
	err := w.viewAndPrint(ctx, receiptID)
	w.metrics.ReceiptItem("print", err == nil)
	return err
}

func (w *Workflow) viewAndPrint(ctx context.Context, receiptID int64) error {
	if w.viewer == nil {
		return fmt.Errorf("%w: no viewer configured", shared.ErrViewerBlocked)
	}

	body, err := w.api.DownloadReceipt(ctx, receiptID)
	if err != nil {
		return err
	}
	doc, err := io.ReadAll(body)
	body.Close()
	if err != nil {
		return &shared.NetworkError{Op: "download receipt", Err: err}
	}

	win, err := w.viewer.Open(ctx, FileName(receiptID), doc)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrViewerBlocked, err)
	}
	defer func() {
		if cerr := win.Close(); cerr != nil {
			w.logger.Warn("failed to close receipt viewer", zap.Int64("receipt_id", receiptID), zap.Error(cerr))
		}
	}()

	if err := win.WaitLoaded(ctx); err != nil {
		return fmt.Errorf("waiting for receipt %d to load: %w", receiptID, err)
	}

	timer := time.NewTimer(w.printDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	if err := win.Print(ctx); err != nil {
		return fmt.Errorf("printing receipt %d: %w", receiptID, err)
	}
	w.logger.Info("receipt sent to printer", zap.Int64("receipt_id", receiptID))
	return nil
}

// PrintNewPayment prints the receipt that came back with a new payment
func (w *Workflow) PrintNewPayment(ctx context.Context, p *finance.Payment) error {
	if !p.HasReceipt() {
		return errors.New("payment has no receipt")
	}
	return w.ViewAndPrintReceipt(ctx, p.Receipt.ID)
}

// Receipts downloads and saves ids one at a time, in order, yielding each
// outcome before starting the next. Breaking out of the loop stops the batch.
func (w *Workflow) Receipts(ctx context.Context, ids []int64) iter.Seq[Outcome] {
	return func(yield func(Outcome) bool) {
		for _, id := range ids {
			out := Outcome{ReceiptID: id}
			if err := ctx.Err(); err != nil {
				out.Err = err
			} else {
				out.Location, out.Err = w.DownloadReceipt(ctx, id)
			}
			if !yield(out) {
				return
			}
		}
	}
}

// PrintAllReceipts saves every receipt of a student. Items that fail are
// logged and skipped. When some fail the error is a
// *shared.PartialBatchFailure and the result still lists what was saved.
func (w *Workflow) PrintAllReceipts(ctx context.Context, studentID int64, progress func(Progress)) (BatchResult, error) {
	ids, err := w.api.ListStudentReceipts(ctx, studentID)
	if err != nil {
		return BatchResult{}, err
	}
	if len(ids) == 0 {
		return BatchResult{NothingToDo: true}, nil
	}

	res := BatchResult{Total: len(ids)}
	done := 0
	for out := range w.Receipts(ctx, ids) {
		done++
		if out.Err != nil {
			res.FailedIDs = append(res.FailedIDs, out.ReceiptID)
			w.logger.Warn("failed to save receipt",
				zap.Int64("student_id", studentID),
				zap.Int64("receipt_id", out.ReceiptID),
				zap.Error(out.Err))
		} else {
			res.Succeeded++
			res.Saved = append(res.Saved, out.Location)
		}
		if progress != nil {
			progress(Progress{Done: done, Total: res.Total, Succeeded: res.Succeeded, Last: out})
		}
	}

	w.logger.Info("receipt batch finished",
		zap.Int64("student_id", studentID),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("total", res.Total))

	if len(res.FailedIDs) > 0 {
		return res, &shared.PartialBatchFailure{
			Total:     res.Total,
			Succeeded: res.Succeeded,
			FailedIDs: res.FailedIDs,
		}
	}
	return res, nil
}

// countingReader counts bytes and remembers the first read failure other
// than io.EOF, so a broken body is not reported as a sink error.
type countingReader struct {
	r   io.Reader
	n   int
	err error
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	if err != nil && !errors.Is(err, io.EOF) && c.err == nil {
		c.err = err
	}
	return n, err
}
