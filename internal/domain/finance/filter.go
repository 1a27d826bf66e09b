package finance

import (
	"strconv"
	"time"
)

// StudentFeeFilter narrows /finance/student-fees. Nil fields are not sent.
type StudentFeeFilter struct {
	StudentID  *int64
	SemesterID *int64
}

// Query returns the query parameters for the filter
func (f StudentFeeFilter) Query() map[string]string {
	q := make(map[string]string)
	setID(q, "student_id", f.StudentID)
	setID(q, "semester_id", f.SemesterID)
	return q
}

// PaymentFilter narrows /finance/payments
type PaymentFilter struct {
	StudentID    *int64
	StudentFeeID *int64
	StartDate    *time.Time
	EndDate      *time.Time
}

// Query returns the query parameters for the filter
func (f PaymentFilter) Query() map[string]string {
	q := make(map[string]string)
	setID(q, "student_id", f.StudentID)
	setID(q, "student_fee_id", f.StudentFeeID)
	setTime(q, "start_date", f.StartDate)
	setTime(q, "end_date", f.EndDate)
	return q
}

// SummaryFilter narrows /finance/summary. Omitted fields mean no restriction
// on that dimension.
type SummaryFilter struct {
	StudentID  *int64
	SemesterID *int64
	StartDate  *time.Time
	EndDate    *time.Time
}

// Query returns the query parameters for the filter
func (f SummaryFilter) Query() map[string]string {
	q := make(map[string]string)
	setID(q, "student_id", f.StudentID)
	setID(q, "semester_id", f.SemesterID)
	setTime(q, "start_date", f.StartDate)
	setTime(q, "end_date", f.EndDate)
	return q
}

// StandardFeeFilter narrows /finance/standard-fees
type StandardFeeFilter struct {
	CourseID   *int64
	SemesterID *int64
}

// Query returns the query parameters for the filter
func (f StandardFeeFilter) Query() map[string]string {
	q := make(map[string]string)
	setID(q, "course_id", f.CourseID)
	setID(q, "semester_id", f.SemesterID)
	return q
}

// ID is a helper to take the address of an id literal
func ID(v int64) *int64 {
	return &v
}

func setID(q map[string]string, key string, v *int64) {
	if v != nil {
		q[key] = strconv.FormatInt(*v, 10)
	}
}

func setTime(q map[string]string, key string, v *time.Time) {
	if v != nil && !v.IsZero() {
		q[key] = v.Format(time.RFC3339)
	}
}
