package backend

import (
	"context"

	"github.com/campusfin/client/internal/domain/academic"
)

// ListInstitutes returns all institutes
func (a *API) ListInstitutes(ctx context.Context) ([]academic.Institute, error) {
	var out []academic.Institute
	if err := a.client.Get(ctx, "/academic/institutes", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListCourses returns courses with their institute, optionally for one institute
func (a *API) ListCourses(ctx context.Context, f academic.CourseFilter) ([]academic.Course, error) {
	var out []academic.Course
	if err := a.client.Get(ctx, "/academic/courses", f.Query(), &out); err != nil {
		return nil, err
	}
	return out, nil
}
