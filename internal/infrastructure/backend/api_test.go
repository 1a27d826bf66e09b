package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/campusfin/client/internal/domain/academic"
	"github.com/campusfin/client/internal/domain/finance"
	"github.com/campusfin/client/internal/domain/identity"
	"github.com/campusfin/client/internal/domain/shared"
	"github.com/campusfin/client/internal/infrastructure/config"
	"github.com/campusfin/client/internal/infrastructure/httpclient"
	"github.com/campusfin/client/internal/testutil/fakebackend"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenHolder struct{ token string }

func (h *tokenHolder) Token() string { return h.token }

func newAPI(t *testing.T, fb *fakebackend.Server, token string) *API {
	t.Helper()
	c, err := httpclient.New(config.APIConfig{BaseURL: fb.URL(), Timeout: 5 * time.Second},
		httpclient.WithTokenSource(&tokenHolder{token: token}))
	require.NoError(t, err)
	return New(c)
}

func TestAPI_LoginAndMe(t *testing.T) {
	fb := fakebackend.New(t)
	admin := fb.AddUser("admin@example.edu", "adminpass", identity.RoleAdmin)

	api := newAPI(t, fb, "")
	tok, err := api.Login(context.Background(), identity.Credentials{Email: "admin@example.edu", Password: "adminpass"})
	require.NoError(t, err)
	assert.Equal(t, "bearer", tok.TokenType)
	require.NotEmpty(t, tok.AccessToken)

	me, err := newAPI(t, fb, tok.AccessToken).Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, admin.ID, me.ID)
	assert.Equal(t, []string{identity.RoleAdmin}, me.RoleNames())
}

func TestAPI_LoginRejected(t *testing.T) {
	fb := fakebackend.New(t)
	fb.AddUser("admin@example.edu", "adminpass", identity.RoleAdmin)

	_, err := newAPI(t, fb, "").Login(context.Background(), identity.Credentials{Email: "admin@example.edu", Password: "wrong"})

	var netErr *shared.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusUnauthorized, netErr.StatusCode)
	assert.Equal(t, "Incorrect email or password", netErr.Detail)
}

func TestAPI_StudentFeeWithStandardFee(t *testing.T) {
	fb := fakebackend.New(t)
	fb.AddUser("admin@example.edu", "adminpass", identity.RoleAdmin)
	sem := fb.SeedSemesters(1)[0]
	fb.AddStandardFee(1, sem.ID, decimal.RequireFromString("1200.00"))

	var body map[string]any
	fb.Hook("POST /finance/student-fees", func(c *gin.Context) {
		raw, _ := c.GetRawData()
		_ = json.Unmarshal(raw, &body)
		c.Request.Body = io.NopCloser(bytes.NewReader(raw))
	})

	api := newAPI(t, fb, fb.Token("admin@example.edu"))
	fee, err := api.CreateStudentFee(context.Background(), finance.CreateStudentFeeCommand{
		StudentID:      9,
		CourseID:       1,
		SemesterID:     sem.ID,
		UseStandardFee: true,
	})
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("1200").Equal(fee.Amount))
	assert.NotContains(t, body, "amount")
	assert.Equal(t, true, body["use_standard_fee"])
}

func TestAPI_StudentFeeWithoutStandardFee(t *testing.T) {
	fb := fakebackend.New(t)
	fb.AddUser("admin@example.edu", "adminpass", identity.RoleAdmin)

	_, err := newAPI(t, fb, fb.Token("admin@example.edu")).CreateStudentFee(context.Background(), finance.CreateStudentFeeCommand{
		StudentID: 9, CourseID: 1, SemesterID: 99, UseStandardFee: true,
	})

	var netErr *shared.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Contains(t, netErr.Detail, "no standard fee found")
}

func TestAPI_PaymentProducesReceipt(t *testing.T) {
	fb := fakebackend.New(t)
	fb.AddUser("admin@example.edu", "adminpass", identity.RoleAdmin)
	fee := fb.AddStudentFee(9, 1, decimal.NewFromInt(500))

	api := newAPI(t, fb, fb.Token("admin@example.edu"))
	p, err := api.CreatePayment(context.Background(), finance.CreatePaymentCommand{
		StudentID:     9,
		StudentFeeID:  fee.ID,
		Amount:        decimal.NewFromInt(200),
		PaymentMethod: finance.MethodBankTransfer,
	})
	require.NoError(t, err)
	require.True(t, p.HasReceipt())
	assert.Equal(t, p.ID, p.Receipt.PaymentID)

	ids, err := api.ListStudentReceipts(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, []int64{p.Receipt.ID}, ids)

	rc, err := api.DownloadReceipt(context.Background(), p.Receipt.ID)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, fakebackend.ReceiptPDF(p.Receipt.ReceiptNumber), data)

	sum, err := api.Summary(context.Background(), finance.SummaryFilter{StudentID: finance.ID(9)})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(300).Equal(sum.TotalPending))
	assert.Equal(t, 1, sum.PaymentCount)
}

func TestAPI_StandardFeeCRUD(t *testing.T) {
	fb := fakebackend.New(t)
	fb.AddUser("admin@example.edu", "adminpass", identity.RoleAdmin)
	api := newAPI(t, fb, fb.Token("admin@example.edu"))
	ctx := context.Background()

	created, err := api.CreateStandardFee(ctx, finance.StandardFeeCommand{
		CourseID: 1, SemesterID: 2, Amount: decimal.NewFromInt(900), Name: "Tuition",
	})
	require.NoError(t, err)

	updated, err := api.UpdateStandardFee(ctx, created.ID, finance.StandardFeeCommand{
		CourseID: 1, SemesterID: 2, Amount: decimal.NewFromInt(950), Name: "Tuition",
	})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(950).Equal(updated.Amount))

	list, err := api.ListStandardFees(ctx, finance.StandardFeeFilter{CourseID: finance.ID(1)})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, api.DeleteStandardFee(ctx, created.ID))
	err = api.DeleteStandardFee(ctx, created.ID)
	var netErr *shared.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusNotFound, netErr.StatusCode)
}

func TestAPI_Users(t *testing.T) {
	fb := fakebackend.New(t)
	fb.AddUser("admin@example.edu", "adminpass", identity.RoleAdmin)
	fb.AddUser("student@example.edu", "studentpass", identity.RoleStudent)
	ctx := context.Background()

	admin := newAPI(t, fb, fb.Token("admin@example.edu"))
	u, err := admin.CreateUser(ctx, identity.CreateUserCommand{
		Email: "prof@example.edu", FullName: "Prof X", Password: "longenough", Roles: []string{identity.RoleFaculty},
	})
	require.NoError(t, err)
	assert.Equal(t, "Prof X", u.FullName)

	users, err := admin.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 3)

	_, err = newAPI(t, fb, fb.Token("student@example.edu")).ListUsers(ctx)
	var netErr *shared.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusForbidden, netErr.StatusCode)
}

func TestAPI_AcademicCatalogue(t *testing.T) {
	fb := fakebackend.New(t)
	fb.AddUser("faculty@example.edu", "facultypass", identity.RoleFaculty)
	eng := fb.AddInstitute("ENG")
	arts := fb.AddInstitute("ART")
	cs := fb.AddCourse(eng.ID, "CS", "Computer Science")
	fb.AddCourse(arts.ID, "HIST", "History")
	ctx := context.Background()

	api := newAPI(t, fb, fb.Token("faculty@example.edu"))

	institutes, err := api.ListInstitutes(ctx)
	require.NoError(t, err)
	assert.Len(t, institutes, 2)

	all, err := api.ListCourses(ctx, academic.CourseFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	engOnly, err := api.ListCourses(ctx, academic.CourseFilter{InstituteID: &eng.ID})
	require.NoError(t, err)
	require.Len(t, engOnly, 1)
	assert.Equal(t, cs.ID, engOnly[0].ID)
	assert.Equal(t, eng.Name, engOnly[0].InstituteName())
	assert.Equal(t, 2, fb.Hits("GET /academic/courses"))

	_, err = newAPI(t, fb, "").ListCourses(ctx, academic.CourseFilter{})
	var netErr *shared.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusUnauthorized, netErr.StatusCode)
}
