package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/campusfin/client/internal/domain/finance"
	"github.com/campusfin/client/internal/infrastructure/httpclient"
)

// ListSemesters returns all semesters
func (a *API) ListSemesters(ctx context.Context) ([]finance.Semester, error) {
	var out []finance.Semester
	if err := a.client.Get(ctx, "/finance/semesters", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListStudentFees returns student fees matching the filter
func (a *API) ListStudentFees(ctx context.Context, f finance.StudentFeeFilter) ([]finance.StudentFee, error) {
	var out []finance.StudentFee
	if err := a.client.Get(ctx, "/finance/student-fees", f.Query(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateStudentFee creates a student fee. The command must already be validated.
func (a *API) CreateStudentFee(ctx context.Context, cmd finance.CreateStudentFeeCommand) (*finance.StudentFee, error) {
	var out finance.StudentFee
	if err := a.client.Post(ctx, "/finance/student-fees", cmd.Body(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListStandardFees returns standard fees matching the filter
func (a *API) ListStandardFees(ctx context.Context, f finance.StandardFeeFilter) ([]finance.StandardFee, error) {
	var out []finance.StandardFee
	if err := a.client.Get(ctx, "/finance/standard-fees", f.Query(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateStandardFee creates a standard fee
func (a *API) CreateStandardFee(ctx context.Context, cmd finance.StandardFeeCommand) (*finance.StandardFee, error) {
	var out finance.StandardFee
	if err := a.client.Post(ctx, "/finance/standard-fees", cmd, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStandardFee replaces a standard fee
func (a *API) UpdateStandardFee(ctx context.Context, id int64, cmd finance.StandardFeeCommand) (*finance.StandardFee, error) {
	var out finance.StandardFee
	err := a.client.DoJSON(ctx, httpclient.Request{
		Method:   http.MethodPut,
		Path:     fmt.Sprintf("/finance/standard-fees/%d", id),
		Endpoint: "/finance/standard-fees/{id}",
		JSON:     cmd,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteStandardFee deletes a standard fee
func (a *API) DeleteStandardFee(ctx context.Context, id int64) error {
	return a.client.DoJSON(ctx, httpclient.Request{
		Method:   http.MethodDelete,
		Path:     fmt.Sprintf("/finance/standard-fees/%d", id),
		Endpoint: "/finance/standard-fees/{id}",
	}, nil)
}

// ListPayments returns payments matching the filter
func (a *API) ListPayments(ctx context.Context, f finance.PaymentFilter) ([]finance.Payment, error) {
	var out []finance.Payment
	if err := a.client.Get(ctx, "/finance/payments", f.Query(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreatePayment records a payment. The backend generates its receipt in the
// same transaction and returns it embedded in the payment.
func (a *API) CreatePayment(ctx context.Context, cmd finance.CreatePaymentCommand) (*finance.Payment, error) {
	var out finance.Payment
	if err := a.client.Post(ctx, "/finance/payments", cmd, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListStudentReceipts returns the receipt ids belonging to a student
func (a *API) ListStudentReceipts(ctx context.Context, studentID int64) ([]int64, error) {
	var out finance.StudentReceipts
	err := a.client.DoJSON(ctx, httpclient.Request{
		Method:   http.MethodGet,
		Path:     fmt.Sprintf("/finance/students/%d/receipts", studentID),
		Endpoint: "/finance/students/{id}/receipts",
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.ReceiptIDs, nil
}

// DownloadReceipt opens the PDF document of a receipt. The caller must close it.
func (a *API) DownloadReceipt(ctx context.Context, receiptID int64) (io.ReadCloser, error) {
	return a.client.Open(ctx, httpclient.Request{
		Method:   http.MethodGet,
		Path:     fmt.Sprintf("/finance/receipts/%d/download", receiptID),
		Endpoint: "/finance/receipts/{id}/download",
	})
}

// Summary returns aggregate finance figures for the filter
func (a *API) Summary(ctx context.Context, f finance.SummaryFilter) (*finance.Summary, error) {
	var out finance.Summary
	if err := a.client.Get(ctx, "/finance/summary", f.Query(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
