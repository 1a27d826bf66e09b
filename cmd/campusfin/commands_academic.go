package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/campusfin/client/internal/domain/academic"
)

func init() {
	register(command{name: "institutes", route: "/courses", summary: "List institutes", run: runInstitutes})
	register(command{name: "courses", route: "/courses", summary: "List courses, for picking -course ids", run: runCourses})
}

func runInstitutes(ctx context.Context, e *env, args []string) error {
	if err := newFlags("institutes", e.stderr).Parse(args); err != nil {
		return err
	}
	institutes, err := e.app.api.ListInstitutes(ctx)
	if err != nil {
		return err
	}
	return e.out.print(institutes, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "ID\tCODE\tNAME")
		for _, i := range institutes {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", i.ID, i.Code, i.Name)
		}
	})
}

func runCourses(ctx context.Context, e *env, args []string) error {
	fs := newFlags("courses", e.stderr)
	var institute idFlag
	fs.Var(&institute, "institute", "Only courses of this institute")
	if err := fs.Parse(args); err != nil {
		return err
	}

	courses, err := e.app.api.ListCourses(ctx, academic.CourseFilter{InstituteID: institute.v})
	if err != nil {
		return err
	}
	return e.out.print(courses, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "ID\tCODE\tNAME\tINSTITUTE\tYEARS\tACTIVE")
		for _, c := range courses {
			inst := c.InstituteName()
			if inst == "" {
				inst = fmt.Sprint(c.InstituteID)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%t\n", c.ID, c.Code, c.Name, inst, c.DurationYears, c.IsActive)
		}
	})
}
