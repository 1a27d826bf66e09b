package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/campusfin/client/internal/domain/finance"
	"github.com/campusfin/client/internal/domain/identity"
	"go.uber.org/zap"
)

func init() {
	register(command{name: "semesters", route: "/", summary: "List semesters", run: runSemesters})
	register(command{name: "fees", route: "/fees", summary: "List student fees", run: runFees})
	register(command{name: "fee-create", route: "/fees", summary: "Assign a fee to a student", run: runFeeCreate})
	register(command{name: "standard-fees", route: "/standard-fees", summary: "List standard fees", run: runStandardFees})
	register(command{name: "standard-fee-create", route: "/standard-fees", summary: "Create a standard fee", run: runStandardFeeSave})
	register(command{name: "standard-fee-update", route: "/standard-fees", summary: "Update a standard fee", run: runStandardFeeSave})
	register(command{name: "standard-fee-delete", route: "/standard-fees", summary: "Delete a standard fee", run: runStandardFeeDelete})
	register(command{name: "payments", route: "/payments", summary: "List payments", run: runPayments})
	register(command{name: "pay", route: "/payments", summary: "Record a payment", run: runPay})
	register(command{name: "summary", route: "/reports", summary: "Show the finance summary", run: runSummary})
}

func runSemesters(ctx context.Context, e *env, args []string) error {
	if err := newFlags("semesters", e.stderr).Parse(args); err != nil {
		return err
	}
	semesters, err := e.app.finance.FetchSemesters(ctx)
	if err != nil {
		return err
	}
	return e.out.print(semesters, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "ID\tNAME\tSTART\tEND")
		for _, s := range semesters {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.ID, s.Name, date(s.StartDate.Time), date(s.EndDate.Time))
		}
	})
}

func runFees(ctx context.Context, e *env, args []string) error {
	fs := newFlags("fees", e.stderr)
	var student, semester idFlag
	fs.Var(&student, "student", "Only fees of this student")
	fs.Var(&semester, "semester", "Only fees of this semester")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fees, err := e.app.finance.FetchStudentFees(ctx, finance.StudentFeeFilter{StudentID: student.v, SemesterID: semester.v})
	if err != nil {
		return err
	}
	return e.out.print(fees, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "ID\tSTUDENT\tSEMESTER\tAMOUNT\tDESCRIPTION\tCREATED")
		for _, f := range fees {
			fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\n",
				f.ID, f.StudentID, semesterName(f), e.out.amount(f.Amount), f.Description, date(f.CreatedAt.Time))
		}
	})
}

func semesterName(f finance.StudentFee) string {
	if f.Semester != nil && f.Semester.Name != "" {
		return f.Semester.Name
	}
	return strconv.FormatInt(f.SemesterID, 10)
}

func runFeeCreate(ctx context.Context, e *env, args []string) error {
	fs := newFlags("fee-create", e.stderr)
	var student, course, semester idFlag
	var amount amountFlag
	fs.Var(&student, "student", "Student id")
	fs.Var(&course, "course", "Course id")
	fs.Var(&semester, "semester", "Semester id")
	fs.Var(&amount, "amount", "Fee amount")
	standard := fs.Bool("standard", false, "Use the standard fee for the course and semester")
	description := fs.String("description", "", "Description")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fee, err := e.app.finance.CreateStudentFee(ctx, finance.CreateStudentFeeCommand{
		StudentID:      student.value(),
		CourseID:       course.value(),
		SemesterID:     semester.value(),
		Amount:         amount.v,
		UseStandardFee: *standard,
		Description:    optionalString(*description),
	})
	if err != nil {
		return err
	}
	return e.out.print(fee, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "Created fee %d for student %d: %s\n", fee.ID, fee.StudentID, e.out.amount(fee.Amount))
	})
}

func runStandardFees(ctx context.Context, e *env, args []string) error {
	fs := newFlags("standard-fees", e.stderr)
	var course, semester idFlag
	fs.Var(&course, "course", "Only fees of this course")
	fs.Var(&semester, "semester", "Only fees of this semester")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fees, err := e.app.finance.FetchStandardFees(ctx, finance.StandardFeeFilter{CourseID: course.v, SemesterID: semester.v})
	if err != nil {
		return err
	}
	return e.out.print(fees, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "ID\tNAME\tCOURSE\tSEMESTER\tAMOUNT\tDESCRIPTION")
		for _, f := range fees {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\t%s\n",
				f.ID, f.Name, f.CourseID, f.SemesterID, e.out.amount(f.Amount), optional(f.Description))
		}
	})
}

// runStandardFeeSave serves both create and update; -id selects update
func runStandardFeeSave(ctx context.Context, e *env, args []string) error {
	fs := newFlags("standard-fee", e.stderr)
	var id, course, semester idFlag
	var amount amountFlag
	fs.Var(&id, "id", "Standard fee id (update only)")
	fs.Var(&course, "course", "Course id")
	fs.Var(&semester, "semester", "Semester id")
	fs.Var(&amount, "amount", "Amount")
	name := fs.String("name", "", "Name")
	description := fs.String("description", "", "Description")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd := finance.StandardFeeCommand{
		CourseID:    course.value(),
		SemesterID:  semester.value(),
		Amount:      amount.value(),
		Name:        *name,
		Description: optionalString(*description),
	}
	var (
		fee *finance.StandardFee
		err error
	)
	if id.v != nil {
		fee, err = e.app.finance.UpdateStandardFee(ctx, id.value(), cmd)
	} else {
		fee, err = e.app.finance.CreateStandardFee(ctx, cmd)
	}
	if err != nil {
		return err
	}
	return e.out.print(fee, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "Saved standard fee %d %q: %s\n", fee.ID, fee.Name, e.out.amount(fee.Amount))
	})
}

func runStandardFeeDelete(ctx context.Context, e *env, args []string) error {
	fs := newFlags("standard-fee-delete", e.stderr)
	var id idFlag
	fs.Var(&id, "id", "Standard fee id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if id.v == nil {
		return errors.New("-id is required")
	}
	if err := e.app.finance.DeleteStandardFee(ctx, id.value()); err != nil {
		return err
	}
	e.out.message("Deleted standard fee %d.", id.value())
	return nil
}

// ownStudentID scopes students to their own records
func ownStudentID(e *env, requested *int64) *int64 {
	u := e.app.session.Snapshot().User
	if u == nil || u.HasAnyRole(identity.RoleAdmin, identity.RoleFaculty) {
		return requested
	}
	return finance.ID(u.ID)
}

func runPayments(ctx context.Context, e *env, args []string) error {
	fs := newFlags("payments", e.stderr)
	var student, fee idFlag
	var from, to dateFlag
	fs.Var(&student, "student", "Only payments of this student (students always see their own)")
	fs.Var(&fee, "fee", "Only payments of this student fee")
	fs.Var(&from, "from", "Paid on or after this date")
	fs.Var(&to, "to", "Paid on or before this date")
	if err := fs.Parse(args); err != nil {
		return err
	}

	payments, err := e.app.finance.FetchPayments(ctx, finance.PaymentFilter{
		StudentID:    ownStudentID(e, student.v),
		StudentFeeID: fee.v,
		StartDate:    from.v,
		EndDate:      to.v,
	})
	if err != nil {
		return err
	}
	return e.out.print(payments, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "ID\tSTUDENT\tFEE\tAMOUNT\tMETHOD\tDATE\tRECEIPT")
		for _, p := range payments {
			receipt := "-"
			if p.HasReceipt() {
				receipt = fmt.Sprintf("%d (%s)", p.Receipt.ID, p.Receipt.ReceiptNumber)
			}
			fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\t%s\t%s\n",
				p.ID, p.StudentID, p.StudentFeeID, e.out.amount(p.Amount), p.PaymentMethod, date(p.PaymentDate.Time), receipt)
		}
	})
}

func runPay(ctx context.Context, e *env, args []string) error {
	fs := newFlags("pay", e.stderr)
	var student, fee idFlag
	var amount amountFlag
	fs.Var(&student, "student", "Student id")
	fs.Var(&fee, "fee", "Student fee id")
	fs.Var(&amount, "amount", "Amount paid")
	method := fs.String("method", finance.MethodCash, "Payment method")
	txn := fs.String("txn", "", "Transaction id")
	notes := fs.String("notes", "", "Notes")
	printReceipt := fs.Bool("print", false, "Open and print the receipt afterwards")
	if err := fs.Parse(args); err != nil {
		return err
	}

	payment, err := e.app.finance.CreatePayment(ctx, finance.CreatePaymentCommand{
		StudentID:     student.value(),
		StudentFeeID:  fee.value(),
		Amount:        amount.value(),
		PaymentMethod: *method,
		TransactionID: optionalString(*txn),
		Notes:         optionalString(*notes),
	})
	if err != nil {
		return err
	}
	if err := e.out.print(payment, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "Recorded payment %d of %s. Receipt %s.\n",
			payment.ID, e.out.amount(payment.Amount), payment.Receipt.ReceiptNumber)
	}); err != nil {
		return err
	}

	u := e.app.session.Snapshot().User
	if *printReceipt && u != nil && u.HasAnyRole(identity.RoleAdmin, identity.RoleFaculty) {
		// the payment is recorded either way
		if err := e.app.receipts.PrintNewPayment(ctx, payment); err != nil {
			e.app.logger.Warn("receipt print failed", zap.Int64("payment_id", payment.ID), zap.Error(err))
			fmt.Fprintf(e.stderr, "Warning: could not print receipt: %v\n", err)
		}
	}
	return nil
}

func runSummary(ctx context.Context, e *env, args []string) error {
	fs := newFlags("summary", e.stderr)
	var student, semester idFlag
	var from, to dateFlag
	fs.Var(&student, "student", "Only this student")
	fs.Var(&semester, "semester", "Only this semester")
	fs.Var(&from, "from", "From date")
	fs.Var(&to, "to", "To date")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := e.app.finance.FetchSummary(ctx, finance.SummaryFilter{
		StudentID:  student.v,
		SemesterID: semester.v,
		StartDate:  from.v,
		EndDate:    to.v,
	})
	if err != nil {
		return err
	}
	return e.out.print(s, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "Total fees:\t%s\n", e.out.amount(s.TotalFees))
		fmt.Fprintf(tw, "Total paid:\t%s\n", e.out.amount(s.TotalPaid))
		fmt.Fprintf(tw, "Pending:\t%s\n", e.out.amount(s.TotalPending))
		fmt.Fprintf(tw, "Students:\t%d\n", s.StudentCount)
		fmt.Fprintf(tw, "Payments:\t%d\n", s.PaymentCount)
	})
}
