package fakebackend

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/campusfin/client/internal/domain/academic"
	"github.com/campusfin/client/internal/domain/finance"
	"github.com/campusfin/client/internal/domain/identity"
	"github.com/campusfin/client/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
)

const ctxUser = "fakebackend.user"

func (s *Server) login(c *gin.Context) {
	email := c.PostForm("username")
	password := c.PostForm("password")

	s.mu.Lock()
	a, ok := s.accounts[email]
	s.mu.Unlock()

	if !ok || a.password != password {
		detail(c, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	if !a.user.IsActive {
		detail(c, http.StatusBadRequest, "Inactive user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": s.Token(email), "token_type": "bearer"})
}

func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || raw == "" {
			detail(c, http.StatusUnauthorized, "Not authenticated")
			return
		}

		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			return signingKey, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

		s.mu.Lock()
		a, known := s.accounts[claims.Subject]
		var user identity.User
		if known {
			user = a.user
		}
		revoked := s.revoked[raw]
		s.mu.Unlock()

		if err != nil || !known || revoked || !user.IsActive {
			detail(c, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		c.Set(ctxUser, user)
		c.Next()
	}
}

func (s *Server) requireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := currentUser(c)
		if !u.HasAnyRole(roles...) {
			detail(c, http.StatusForbidden, "Not enough permissions")
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) *identity.User {
	u := c.MustGet(ctxUser).(identity.User)
	return &u
}

func (s *Server) me(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

func (s *Server) listUsers(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]identity.User, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a.user)
	}
	slices.SortFunc(out, func(a, b identity.User) int { return int(a.ID - b.ID) })
	c.JSON(http.StatusOK, out)
}

func (s *Server) createUser(c *gin.Context) {
	var cmd identity.CreateUserCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.mu.Lock()
	_, exists := s.accounts[cmd.Email]
	s.mu.Unlock()
	if exists {
		detail(c, http.StatusBadRequest, "The user with this email already exists in the system")
		return
	}
	u := s.AddUser(cmd.Email, cmd.Password, cmd.Roles...)
	s.mu.Lock()
	s.accounts[cmd.Email].user.FullName = cmd.FullName
	u = s.accounts[cmd.Email].user
	s.mu.Unlock()
	c.JSON(http.StatusOK, u)
}

func (s *Server) listInstitutes(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, append([]academic.Institute{}, s.institutes...))
}

func (s *Server) listCourses(c *gin.Context) {
	instituteID, hasInstitute := queryID(c, "institute_id")

	s.mu.Lock()
	defer s.mu.Unlock()

	out := []academic.Course{}
	for _, course := range s.courses {
		if hasInstitute && course.InstituteID != instituteID {
			continue
		}
		if i := slices.IndexFunc(s.institutes, func(inst academic.Institute) bool { return inst.ID == course.InstituteID }); i >= 0 {
			inst := s.institutes[i]
			course.Institute = &inst
		}
		out = append(out, course)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) listSemesters(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, append([]finance.Semester{}, s.semesters...))
}

func (s *Server) listStandardFees(c *gin.Context) {
	courseID, hasCourse := queryID(c, "course_id")
	semesterID, hasSemester := queryID(c, "semester_id")

	s.mu.Lock()
	defer s.mu.Unlock()

	out := []finance.StandardFee{}
	for _, f := range s.standardFees {
		if hasCourse && f.CourseID != courseID {
			continue
		}
		if hasSemester && f.SemesterID != semesterID {
			continue
		}
		out = append(out, f)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) createStandardFee(c *gin.Context) {
	var cmd finance.StandardFeeCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.findStandardFee(cmd.CourseID, cmd.SemesterID); found {
		detail(c, http.StatusBadRequest, "A standard fee already exists for this course-semester combination")
		return
	}
	fee := finance.StandardFee{
		ID:          s.id(),
		CourseID:    cmd.CourseID,
		SemesterID:  cmd.SemesterID,
		Amount:      cmd.Amount,
		Name:        cmd.Name,
		Description: cmd.Description,
	}
	s.standardFees = append(s.standardFees, fee)
	c.JSON(http.StatusOK, fee)
}

func (s *Server) updateStandardFee(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		detail(c, http.StatusUnprocessableEntity, "invalid id")
		return
	}
	var cmd finance.StandardFeeCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.standardFees, func(f finance.StandardFee) bool { return f.ID == id })
	if idx < 0 {
		detail(c, http.StatusNotFound, "Standard fee not found")
		return
	}
	if other, found := s.findStandardFee(cmd.CourseID, cmd.SemesterID); found && other.ID != id {
		detail(c, http.StatusBadRequest, "A standard fee already exists for this course-semester combination")
		return
	}
	fee := &s.standardFees[idx]
	fee.CourseID = cmd.CourseID
	fee.SemesterID = cmd.SemesterID
	fee.Amount = cmd.Amount
	fee.Name = cmd.Name
	fee.Description = cmd.Description
	c.JSON(http.StatusOK, *fee)
}

func (s *Server) deleteStandardFee(c *gin.Context) {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.standardFees, func(f finance.StandardFee) bool { return f.ID == id })
	if idx < 0 {
		detail(c, http.StatusNotFound, "Standard fee not found")
		return
	}
	s.standardFees = slices.Delete(s.standardFees, idx, idx+1)
	c.Status(http.StatusNoContent)
}

func (s *Server) findStandardFee(courseID, semesterID int64) (finance.StandardFee, bool) {
	for _, f := range s.standardFees {
		if f.CourseID == courseID && f.SemesterID == semesterID {
			return f, true
		}
	}
	return finance.StandardFee{}, false
}

func (s *Server) listStudentFees(c *gin.Context) {
	studentID, hasStudent := queryID(c, "student_id")
	semesterID, hasSemester := queryID(c, "semester_id")
	u := currentUser(c)

	s.mu.Lock()
	defer s.mu.Unlock()

	out := []finance.StudentFee{}
	for _, f := range s.studentFees {
		if u.HasAnyRole(identity.RoleStudent) && !u.HasAnyRole(identity.RoleAdmin, identity.RoleFaculty) && f.StudentID != u.ID {
			continue
		}
		if hasStudent && f.StudentID != studentID {
			continue
		}
		if hasSemester && f.SemesterID != semesterID {
			continue
		}
		out = append(out, f)
	}
	c.JSON(http.StatusOK, out)
}

// studentFeeRequest mirrors the wire body; amount is optional
type studentFeeRequest struct {
	StudentID      int64            `json:"student_id"`
	CourseID       *int64           `json:"course_id"`
	SemesterID     int64            `json:"semester_id"`
	Amount         *decimal.Decimal `json:"amount"`
	UseStandardFee bool             `json:"use_standard_fee"`
	Description    *string          `json:"description"`
}

func (s *Server) createStudentFee(c *gin.Context) {
	var req studentFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if req.CourseID == nil {
		detail(c, http.StatusUnprocessableEntity, "course_id is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	amount := req.Amount
	if amount == nil {
		std, found := s.findStandardFee(*req.CourseID, req.SemesterID)
		if !found {
			detail(c, http.StatusBadRequest, "No amount provided and no standard fee found for this course-semester combination")
			return
		}
		amount = &std.Amount
	}

	fee := finance.StudentFee{
		ID:         s.id(),
		StudentID:  req.StudentID,
		CourseID:   req.CourseID,
		SemesterID: req.SemesterID,
		Amount:     *amount,
		CreatedAt:  shared.Timestamp{Time: time.Now().UTC()},
	}
	if req.Description != nil {
		fee.Description = *req.Description
	}
	for i := range s.semesters {
		if s.semesters[i].ID == req.SemesterID {
			sem := s.semesters[i]
			fee.Semester = &sem
		}
	}
	s.studentFees = append(s.studentFees, fee)
	c.JSON(http.StatusOK, fee)
}

func (s *Server) listPayments(c *gin.Context) {
	studentID, hasStudent := queryID(c, "student_id")
	feeID, hasFee := queryID(c, "student_fee_id")
	start, hasStart := queryTime(c, "start_date")
	end, hasEnd := queryTime(c, "end_date")

	s.mu.Lock()
	defer s.mu.Unlock()

	out := []finance.Payment{}
	for _, p := range s.payments {
		switch {
		case hasStudent && p.StudentID != studentID,
			hasFee && p.StudentFeeID != feeID,
			hasStart && p.PaymentDate.Before(start),
			hasEnd && p.PaymentDate.After(end):
			continue
		}
		out = append(out, p)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) createPayment(c *gin.Context) {
	var cmd finance.CreatePaymentCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !slices.ContainsFunc(s.studentFees, func(f finance.StudentFee) bool { return f.ID == cmd.StudentFeeID }) {
		detail(c, http.StatusNotFound, "The student fee with this id does not exist")
		return
	}
	p := s.recordPayment(cmd.StudentID, cmd.StudentFeeID, cmd.Amount, cmd.PaymentMethod)
	p.TransactionID = cmd.TransactionID
	p.Notes = cmd.Notes
	s.payments[len(s.payments)-1] = p
	c.JSON(http.StatusOK, p)
}

func (s *Server) downloadReceipt(c *gin.Context) {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	u := currentUser(c)

	s.mu.Lock()
	r, ok := s.receipts[id]
	owner := s.receiptOwner[id]
	fail := s.failReceipts[id]
	s.mu.Unlock()

	switch {
	case !ok:
		detail(c, http.StatusNotFound, "Receipt not found")
	case !u.HasAnyRole(identity.RoleAdmin, identity.RoleFaculty) && owner != u.ID:
		detail(c, http.StatusForbidden, "Not enough permissions to access this receipt")
	case fail:
		detail(c, http.StatusInternalServerError, "Error generating receipt: renderer unavailable")
	default:
		c.Header("Content-Disposition", `attachment; filename="receipt-`+c.Param("id")+`.pdf"`)
		c.Data(http.StatusOK, "application/pdf", ReceiptPDF(r.ReceiptNumber))
	}
}

func (s *Server) studentReceipts(c *gin.Context) {
	studentID, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	u := currentUser(c)
	if !u.HasAnyRole(identity.RoleAdmin, identity.RoleFaculty) && u.ID != studentID {
		detail(c, http.StatusForbidden, "Not enough permissions to access these receipts")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := []int64{}
	for _, p := range s.payments {
		if p.StudentID == studentID && p.Receipt != nil {
			ids = append(ids, p.Receipt.ID)
		}
	}
	c.JSON(http.StatusOK, finance.StudentReceipts{ReceiptIDs: ids})
}

func (s *Server) summary(c *gin.Context) {
	studentID, hasStudent := queryID(c, "student_id")
	semesterID, hasSemester := queryID(c, "semester_id")

	s.mu.Lock()
	defer s.mu.Unlock()

	var sum finance.Summary
	students := make(map[int64]struct{})
	feeIDs := make(map[int64]struct{})
	for _, f := range s.studentFees {
		if (hasStudent && f.StudentID != studentID) || (hasSemester && f.SemesterID != semesterID) {
			continue
		}
		sum.TotalFees = sum.TotalFees.Add(f.Amount)
		students[f.StudentID] = struct{}{}
		feeIDs[f.ID] = struct{}{}
	}
	for _, p := range s.payments {
		if hasStudent && p.StudentID != studentID {
			continue
		}
		if _, ok := feeIDs[p.StudentFeeID]; hasSemester && !ok {
			continue
		}
		sum.TotalPaid = sum.TotalPaid.Add(p.Amount)
		sum.PaymentCount++
	}
	sum.TotalPending = sum.TotalFees.Sub(sum.TotalPaid)
	if sum.TotalPending.IsNegative() {
		sum.TotalPending = decimal.Zero
	}
	sum.StudentCount = len(students)
	c.JSON(http.StatusOK, sum)
}

func queryID(c *gin.Context, key string) (int64, bool) {
	v, ok := c.GetQuery(key)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(v, 10, 64)
	return id, err == nil
}

func queryTime(c *gin.Context, key string) (time.Time, bool) {
	v, ok := c.GetQuery(key)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, v)
	return t, err == nil
}
