// Package academic holds the institute and course catalogue that fees are
// attached to.
package academic

import (
	"strconv"

	"github.com/campusfin/client/internal/domain/shared"
)

// Institute groups courses
type Institute struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Code        string            `json:"code"`
	Description *string           `json:"description,omitempty"`
	CreatedAt   shared.Timestamp  `json:"created_at"`
	UpdatedAt   *shared.Timestamp `json:"updated_at,omitempty"`
}

// Course is what student and standard fees refer to by course_id
type Course struct {
	ID            int64             `json:"id"`
	InstituteID   int64             `json:"institute_id"`
	Name          string            `json:"name"`
	Code          string            `json:"code"`
	DurationYears int               `json:"duration_years"`
	Description   *string           `json:"description,omitempty"`
	IsActive      bool              `json:"is_active"`
	CreatedAt     shared.Timestamp  `json:"created_at"`
	UpdatedAt     *shared.Timestamp `json:"updated_at,omitempty"`
	Institute     *Institute        `json:"institute,omitempty"`
}

// InstituteName returns the embedded institute's name, or "" when absent
func (c Course) InstituteName() string {
	if c.Institute == nil {
		return ""
	}
	return c.Institute.Name
}

// CourseFilter narrows GET /academic/courses
type CourseFilter struct {
	InstituteID *int64
}

// Query renders the filter as query parameters
func (f CourseFilter) Query() map[string]string {
	q := make(map[string]string)
	if f.InstituteID != nil {
		q["institute_id"] = strconv.FormatInt(*f.InstituteID, 10)
	}
	return q
}
