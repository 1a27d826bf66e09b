package academic

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCourseFilterQuery(t *testing.T) {
	assert.Empty(t, CourseFilter{}.Query())

	id := int64(4)
	assert.Equal(t, map[string]string{"institute_id": "4"}, CourseFilter{InstituteID: &id}.Query())
}

func TestCourseDecodesEmbeddedInstitute(t *testing.T) {
	raw := `{"id":7,"institute_id":2,"name":"Computer Science","code":"CS","duration_years":4,
		"is_active":true,"created_at":"2024-09-01T10:00:00",
		"institute":{"id":2,"name":"School of Engineering","code":"ENG","created_at":"2024-01-01T00:00:00"}}`

	var c Course
	require.NoError(t, json.Unmarshal([]byte(raw), &c))
	assert.Equal(t, "School of Engineering", c.InstituteName())
	assert.Equal(t, 2024, c.CreatedAt.Year())

	assert.Empty(t, Course{}.InstituteName())
}
