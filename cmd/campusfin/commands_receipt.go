package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/campusfin/client/internal/application/receipt"
	"github.com/campusfin/client/internal/domain/shared"
)

func init() {
	register(command{name: "receipt download", route: "/payments", summary: "Save one receipt PDF", run: runReceiptDownload})
	register(command{name: "receipt print", route: "/payments", summary: "Open one receipt and print it", run: runReceiptPrint})
	register(command{name: "receipts print-all", route: "/payments", summary: "Save every receipt of a student", run: runReceiptsPrintAll})
}

func receiptID(e *env, name string, args []string) (int64, error) {
	fs := newFlags(name, e.stderr)
	var id idFlag
	fs.Var(&id, "id", "Receipt id")
	if err := fs.Parse(args); err != nil {
		return 0, err
	}
	if id.v == nil {
		return 0, errors.New("-id is required")
	}
	return id.value(), nil
}

func runReceiptDownload(ctx context.Context, e *env, args []string) error {
	id, err := receiptID(e, "receipt download", args)
	if err != nil {
		return err
	}
	location, err := e.app.receipts.DownloadReceipt(ctx, id)
	if err != nil {
		return err
	}
	saved := struct {
		ReceiptID int64  `json:"receipt_id"`
		Location  string `json:"location"`
	}{id, location}
	return e.out.print(saved, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "Saved receipt %d to %s\n", id, location)
	})
}

func runReceiptPrint(ctx context.Context, e *env, args []string) error {
	id, err := receiptID(e, "receipt print", args)
	if err != nil {
		return err
	}
	if err := e.app.receipts.ViewAndPrintReceipt(ctx, id); err != nil {
		return err
	}
	e.out.message("Sent receipt %d to the printer.", id)
	return nil
}

func runReceiptsPrintAll(ctx context.Context, e *env, args []string) error {
	fs := newFlags("receipts print-all", e.stderr)
	var student idFlag
	fs.Var(&student, "student", "Student id (students always use their own)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	studentID := ownStudentID(e, student.v)
	if studentID == nil {
		return errors.New("-student is required")
	}

	res, err := e.app.receipts.PrintAllReceipts(ctx, *studentID, func(p receipt.Progress) {
		status := "saved"
		if p.Last.Err != nil {
			status = "failed: " + p.Last.Err.Error()
		}
		fmt.Fprintf(e.stderr, "[%d/%d] receipt %d %s\n", p.Done, p.Total, p.Last.ReceiptID, status)
	})
	if err != nil && !errors.Is(err, shared.ErrPartialBatch) {
		return err
	}
	if res.NothingToDo {
		e.out.message("No receipts to print.")
		return nil
	}
	if perr := e.out.print(res, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "Saved %d of %d receipts for student %d\n", res.Succeeded, res.Total, *studentID)
		for _, loc := range res.Saved {
			fmt.Fprintf(tw, "  %s\n", loc)
		}
	}); perr != nil {
		return perr
	}
	return err
}
