package finance

import (
	"strings"

	"github.com/campusfin/client/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Payment methods offered by the payment form
const (
	MethodCreditCard   = "Credit Card"
	MethodDebitCard    = "Debit Card"
	MethodBankTransfer = "Bank Transfer"
	MethodCash         = "Cash"
)

// CreatePaymentCommand is the body of POST /finance/payments
type CreatePaymentCommand struct {
	StudentID     int64           `json:"student_id" validate:"gt=0"`
	StudentFeeID  int64           `json:"student_fee_id" validate:"gt=0"`
	Amount        decimal.Decimal `json:"amount" validate:"gt=0"`
	PaymentMethod string          `json:"payment_method" validate:"required,max=50"`
	TransactionID *string         `json:"transaction_id,omitempty" validate:"omitempty,max=100"`
	Notes         *string         `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// Validate checks the command before it is sent
func (c CreatePaymentCommand) Validate() error {
	return shared.ValidateStruct("invalid payment", c)
}

// CreateStudentFeeCommand creates a fee obligation. Exactly one of Amount and
// UseStandardFee must be given: with UseStandardFee the backend resolves the
// amount from the StandardFee matching (CourseID, SemesterID).
type CreateStudentFeeCommand struct {
	StudentID      int64            `json:"student_id" validate:"gt=0"`
	CourseID       int64            `json:"course_id" validate:"gt=0"`
	SemesterID     int64            `json:"semester_id" validate:"gt=0"`
	Amount         *decimal.Decimal `json:"amount,omitempty"`
	UseStandardFee bool             `json:"use_standard_fee,omitempty"`
	Description    *string          `json:"description,omitempty" validate:"omitempty,max=500"`
}

// Validate checks field constraints and the amount/standard-fee exclusivity
func (c CreateStudentFeeCommand) Validate() error {
	var fields []shared.FieldError
	switch {
	case c.Amount != nil && c.UseStandardFee:
		fields = append(fields, shared.FieldError{
			Field:   "amount",
			Message: "Cannot be combined with use_standard_fee",
		})
	case c.Amount == nil && !c.UseStandardFee:
		fields = append(fields, shared.FieldError{
			Field:   "amount",
			Message: "Provide an amount or use_standard_fee",
		})
	case c.Amount != nil && c.Amount.IsNegative():
		fields = append(fields, shared.FieldError{
			Field:   "amount",
			Message: "Must be at least 0",
		})
	}

	if err := shared.ValidateStruct("invalid student fee", c); err != nil {
		verr := err.(*shared.ValidationError)
		fields = append(fields, verr.Fields...)
	}
	if len(fields) > 0 {
		return shared.NewValidationError("invalid student fee", fields...)
	}
	return nil
}

// Body returns the outgoing request body. With the standard-fee intent the
// amount key is absent from the encoded JSON, not zero and not null.
func (c CreateStudentFeeCommand) Body() CreateStudentFeeCommand {
	if c.UseStandardFee {
		c.Amount = nil
	}
	return c
}

// StandardFeeCommand is the body of POST and PUT /finance/standard-fees
type StandardFeeCommand struct {
	CourseID    int64           `json:"course_id" validate:"gt=0"`
	SemesterID  int64           `json:"semester_id" validate:"gt=0"`
	Amount      decimal.Decimal `json:"amount" validate:"gte=0"`
	Name        string          `json:"name" validate:"required,max=100"`
	Description *string         `json:"description,omitempty" validate:"omitempty,max=500"`
}

// Validate checks the command before it is sent
func (c StandardFeeCommand) Validate() error {
	c.Name = strings.TrimSpace(c.Name)
	return shared.ValidateStruct("invalid standard fee", c)
}
