// Package fakebackend is an in-memory stand-in for the finance REST backend,
// used by tests across the module.
package fakebackend

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/campusfin/client/internal/domain/academic"
	"github.com/campusfin/client/internal/domain/finance"
	"github.com/campusfin/client/internal/domain/identity"
	"github.com/campusfin/client/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
)

// APIPrefix is where the routes are mounted
const APIPrefix = "/api/v1"

var signingKey = []byte("fakebackend-signing-key-32-bytes")

type account struct {
	user     identity.User
	password string
}

// Server is a fake backend. All methods are safe for concurrent use.
type Server struct {
	mu sync.Mutex

	httpServer *httptest.Server
	faker      *gofakeit.Faker

	nextID       int64
	accounts     map[string]*account // by email
	revoked      map[string]bool
	institutes   []academic.Institute
	courses      []academic.Course
	semesters    []finance.Semester
	standardFees []finance.StandardFee
	studentFees  []finance.StudentFee
	payments     []finance.Payment
	receipts     map[int64]finance.Receipt
	receiptOwner map[int64]int64
	failReceipts map[int64]bool
	hooks        map[string]gin.HandlerFunc
	hits         map[string]int
}

// New starts a fake backend that is closed when the test ends
func New(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		faker:        gofakeit.New(0),
		accounts:     make(map[string]*account),
		revoked:      make(map[string]bool),
		receipts:     make(map[int64]finance.Receipt),
		receiptOwner: make(map[int64]int64),
		failReceipts: make(map[int64]bool),
		hooks:        make(map[string]gin.HandlerFunc),
		hits:         make(map[string]int),
	}
	s.httpServer = httptest.NewServer(s.routes())
	t.Cleanup(s.httpServer.Close)
	return s
}

// URL is the API base URL to configure clients with
func (s *Server) URL() string {
	return s.httpServer.URL + APIPrefix
}

// Hook installs fn in front of the handler for "METHOD /path" where path is
// the route pattern without the API prefix, e.g. "GET /finance/student-fees".
// A hook may block, or abort the request with its own response.
func (s *Server) Hook(route string, fn gin.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[route] = fn
}

// Hits returns how many requests reached route ("METHOD /pattern")
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// AddUser registers an account and returns its profile
func (s *Server) AddUser(email, password string, roles ...string) identity.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := identity.User{
		ID:       s.id(),
		Email:    email,
		FullName: s.faker.Name(),
		IsActive: true,
	}
	for i, r := range roles {
		u.Roles = append(u.Roles, identity.Role{ID: int64(i + 1), Name: r})
	}
	s.accounts[email] = &account{user: u, password: password}
	return u
}

// DeactivateUser makes logins for email fail with "Inactive user"
func (s *Server) DeactivateUser(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[email]; ok {
		a.user.IsActive = false
	}
}

// Token mints a valid token for email without going through /auth/login
func (s *Server) Token(email string) string {
	return s.mint(email, time.Hour)
}

// ExpiredToken mints a token whose exp claim is already in the past
func (s *Server) ExpiredToken(email string) string {
	return s.mint(email, -time.Hour)
}

// Revoke makes a previously valid token fail with 401
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = true
}

// SeedSemesters adds n semesters with generated names
func (s *Server) SeedSemesters(n int) []finance.Semester {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]finance.Semester, 0, n)
	start := time.Date(2024, time.September, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		sem := finance.Semester{
			ID:        s.id(),
			CourseID:  finance.ID(1),
			Name:      fmt.Sprintf("%s %d", s.faker.RandomString([]string{"Fall", "Spring", "Summer"}), 2024+i),
			StartDate: shared.Timestamp{Time: start.AddDate(0, 6*i, 0)},
			EndDate:   shared.Timestamp{Time: start.AddDate(0, 6*i+4, 0)},
		}
		s.semesters = append(s.semesters, sem)
		out = append(out, sem)
	}
	return out
}

// AddInstitute registers an institute with a generated name
func (s *Server) AddInstitute(code string) academic.Institute {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst := academic.Institute{
		ID:        s.id(),
		Name:      s.faker.Company() + " Institute",
		Code:      code,
		CreatedAt: shared.Timestamp{Time: time.Now().UTC()},
	}
	s.institutes = append(s.institutes, inst)
	return inst
}

// AddCourse registers an active course under instituteID
func (s *Server) AddCourse(instituteID int64, code, name string) academic.Course {
	s.mu.Lock()
	defer s.mu.Unlock()

	course := academic.Course{
		ID:            s.id(),
		InstituteID:   instituteID,
		Name:          name,
		Code:          code,
		DurationYears: s.faker.Number(1, 5),
		IsActive:      true,
		CreatedAt:     shared.Timestamp{Time: time.Now().UTC()},
	}
	s.courses = append(s.courses, course)
	return course
}

// AddStandardFee registers a standard fee for (course, semester)
func (s *Server) AddStandardFee(courseID, semesterID int64, amount decimal.Decimal) finance.StandardFee {
	s.mu.Lock()
	defer s.mu.Unlock()

	fee := finance.StandardFee{
		ID:         s.id(),
		CourseID:   courseID,
		SemesterID: semesterID,
		Amount:     amount,
		Name:       s.faker.Word() + " tuition",
	}
	s.standardFees = append(s.standardFees, fee)
	return fee
}

// AddStudentFee registers a fee with an explicit amount
func (s *Server) AddStudentFee(studentID, semesterID int64, amount decimal.Decimal) finance.StudentFee {
	s.mu.Lock()
	defer s.mu.Unlock()

	fee := finance.StudentFee{
		ID:          s.id(),
		StudentID:   studentID,
		CourseID:    finance.ID(1),
		SemesterID:  semesterID,
		Amount:      amount,
		Description: s.faker.Sentence(4),
		CreatedAt:   shared.Timestamp{Time: time.Now().UTC()},
	}
	s.studentFees = append(s.studentFees, fee)
	return fee
}

// AddReceipt records a paid fee for studentID and returns the receipt id
func (s *Server) AddReceipt(studentID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.recordPayment(studentID, 0, decimal.NewFromInt(int64(s.faker.Number(100, 5000))), finance.MethodCash)
	return p.Receipt.ID
}

// FailReceipt makes downloads of receiptID fail with 500
func (s *Server) FailReceipt(receiptID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failReceipts[receiptID] = true
}

// Payments returns the stored payments, newest last
func (s *Server) Payments() []finance.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]finance.Payment(nil), s.payments...)
}

// ReceiptPDF returns the document served for a receipt
func ReceiptPDF(receiptNumber string) []byte {
	return []byte("%PDF-1.4\n% receipt " + receiptNumber + "\n%%EOF\n")
}

func (s *Server) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Server) mint(email string, ttl time.Duration) string {
	s.mu.Lock()
	a, ok := s.accounts[email]
	s.mu.Unlock()
	if !ok {
		panic("fakebackend: unknown user " + email)
	}
	claims := jwt.RegisteredClaims{
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		ID:        fmt.Sprintf("%d-%d", a.user.ID, time.Now().UnixNano()),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		panic(err)
	}
	return token
}

// recordPayment stores a payment and its receipt. Caller holds mu.
func (s *Server) recordPayment(studentID, studentFeeID int64, amount decimal.Decimal, method string) finance.Payment {
	now := time.Now().UTC()
	p := finance.Payment{
		ID:            s.id(),
		StudentID:     studentID,
		StudentFeeID:  studentFeeID,
		Amount:        amount,
		PaymentDate:   shared.Timestamp{Time: now},
		PaymentMethod: method,
	}
	r := finance.Receipt{
		ID:            s.id(),
		PaymentID:     p.ID,
		ReceiptNumber: fmt.Sprintf("RCPT-%d-%s", p.ID, now.Format("20060102150405")),
		GeneratedAt:   shared.Timestamp{Time: now},
	}
	r.PDFPath = "receipts/" + r.ReceiptNumber + ".pdf"
	p.Receipt = &r
	s.payments = append(s.payments, p)
	s.receipts[r.ID] = r
	s.receiptOwner[r.ID] = studentID
	return p
}

func (s *Server) routes() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.hookMiddleware())

	api := r.Group(APIPrefix)
	api.POST("/auth/login", s.login)

	authed := api.Group("", s.requireAuth())
	authed.GET("/auth/me", s.me)
	authed.GET("/users", s.requireRole(identity.RoleAdmin), s.listUsers)
	authed.POST("/users", s.requireRole(identity.RoleAdmin), s.createUser)

	acad := authed.Group("/academic")
	acad.GET("/institutes", s.listInstitutes)
	acad.GET("/courses", s.listCourses)

	fin := authed.Group("/finance")
	fin.GET("/semesters", s.listSemesters)
	fin.GET("/standard-fees", s.requireRole(identity.RoleAdmin, identity.RoleFaculty), s.listStandardFees)
	fin.POST("/standard-fees", s.requireRole(identity.RoleAdmin), s.createStandardFee)
	fin.PUT("/standard-fees/:id", s.requireRole(identity.RoleAdmin), s.updateStandardFee)
	fin.DELETE("/standard-fees/:id", s.requireRole(identity.RoleAdmin), s.deleteStandardFee)
	fin.GET("/student-fees", s.listStudentFees)
	fin.POST("/student-fees", s.requireRole(identity.RoleAdmin, identity.RoleFaculty), s.createStudentFee)
	fin.GET("/payments", s.listPayments)
	fin.POST("/payments", s.createPayment)
	fin.GET("/receipts/:id/download", s.downloadReceipt)
	fin.GET("/students/:id/receipts", s.studentReceipts)
	fin.GET("/summary", s.summary)
	return r
}

func (s *Server) hookMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.Request.Method + " " + strings.TrimPrefix(c.FullPath(), APIPrefix)
		s.mu.Lock()
		s.hits[route]++
		hook := s.hooks[route]
		s.mu.Unlock()

		if hook != nil {
			hook(c)
			if c.IsAborted() {
				return
			}
		}
		c.Next()
	}
}

func detail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}
