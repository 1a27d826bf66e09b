package finance

import (
	"github.com/campusfin/client/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Semester is immutable reference data
type Semester struct {
	ID        int64            `json:"id"`
	CourseID  *int64           `json:"course_id,omitempty"`
	Name      string           `json:"name"`
	StartDate shared.Timestamp `json:"start_date"`
	EndDate   shared.Timestamp `json:"end_date"`
}

// StandardFee is a fee template keyed by (course, semester)
type StandardFee struct {
	ID          int64           `json:"id"`
	CourseID    int64           `json:"course_id"`
	SemesterID  int64           `json:"semester_id"`
	Amount      decimal.Decimal `json:"amount"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
}

// StudentFee is a concrete obligation for one student in one semester.
// Once persisted Amount is always resolved, even when the creator asked the
// backend to take it from the matching StandardFee.
type StudentFee struct {
	ID          int64             `json:"id"`
	StudentID   int64             `json:"student_id"`
	CourseID    *int64            `json:"course_id,omitempty"`
	SemesterID  int64             `json:"semester_id"`
	Amount      decimal.Decimal   `json:"amount"`
	Description string            `json:"description"`
	CreatedAt   shared.Timestamp  `json:"created_at"`
	UpdatedAt   *shared.Timestamp `json:"updated_at,omitempty"`
	Semester    *Semester         `json:"semester,omitempty"`
}

// Receipt is generated server-side exactly once per payment and never mutated
type Receipt struct {
	ID            int64            `json:"id"`
	PaymentID     int64            `json:"payment_id"`
	ReceiptNumber string           `json:"receipt_number"`
	GeneratedAt   shared.Timestamp `json:"generated_at"`
	PDFPath       string           `json:"pdf_path"`
}

// Payment against a StudentFee
type Payment struct {
	ID            int64            `json:"id"`
	StudentID     int64            `json:"student_id"`
	StudentFeeID  int64            `json:"student_fee_id"`
	Amount        decimal.Decimal  `json:"amount"`
	PaymentDate   shared.Timestamp `json:"payment_date"`
	PaymentMethod string           `json:"payment_method"`
	TransactionID *string          `json:"transaction_id,omitempty"`
	Notes         *string          `json:"notes,omitempty"`
	Receipt       *Receipt         `json:"receipt,omitempty"`
}

// HasReceipt reports whether the payment carries its receipt
func (p *Payment) HasReceipt() bool {
	return p != nil && p.Receipt != nil && p.Receipt.ID != 0
}

// Summary is the aggregate returned by /finance/summary. It is recomputed by
// the backend for every query.
type Summary struct {
	TotalFees    decimal.Decimal `json:"total_fees"`
	TotalPaid    decimal.Decimal `json:"total_paid"`
	TotalPending decimal.Decimal `json:"total_pending"`
	StudentCount int             `json:"student_count"`
	PaymentCount int             `json:"payment_count"`
}

// StudentReceipts is the body of /finance/students/{id}/receipts
type StudentReceipts struct {
	ReceiptIDs []int64 `json:"receipt_ids"`
}
