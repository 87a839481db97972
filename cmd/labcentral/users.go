package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/labcentral/labcentral/internal/accounts"
	"github.com/labcentral/labcentral/internal/model"
)

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage accounts (admin)",
	}

	bulk := &cobra.Command{
		Use:   "bulk-create [FILE.csv]",
		Short: "Create accounts from email,first_name,last_name rows",
		Long: "Create accounts in one request. Rows come from FILE.csv (or stdin when\n" +
			"FILE is -) and from repeated --user flags. Temporary passwords are\n" +
			"printed once.",
		Args: cobra.MaximumNArgs(1),
		RunE: run(func(a *app, cmd *cobra.Command, args []string) error {
			_, client, err := a.current()
			if err != nil {
				return err
			}
			var q accounts.Queue
			if len(args) == 1 {
				if err := queueCSV(&q, args[0]); err != nil {
					return err
				}
			}
			flagUsers, _ := cmd.Flags().GetStringArray("user")
			for _, entry := range flagUsers {
				if err := q.Add(parseUserSpec(strings.Split(entry, ","))); err != nil {
					return fmt.Errorf("user %q: %w", entry, err)
				}
			}

			created, err := q.Submit(a.ctx, client)
			if err != nil {
				return err
			}
			success(a.out, a.t("UsersCreated"))
			tw := newTable(a.out)
			fmt.Fprintln(tw, "EMAIL\tTEMP PASSWORD")
			for _, u := range created {
				fmt.Fprintf(tw, "%s\t%s\n", u.Email, color.CyanString(u.TempPassword))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, color.YellowString(a.t("CreatedUsersHint")))
			return nil
		}),
	}
	bulk.Flags().StringArray("user", nil, "email,first_name,last_name (repeatable)")

	cmd.AddCommand(bulk)
	return cmd
}

func parseUserSpec(fields []string) model.BulkUser {
	var u model.BulkUser
	if len(fields) > 0 {
		u.Email = fields[0]
	}
	if len(fields) > 1 {
		u.FirstName = fields[1]
	}
	if len(fields) > 2 {
		u.LastName = fields[2]
	}
	return u
}

// queueCSV adds every row of path to q. A header row starting with "email"
// is skipped.
func queueCSV(q *accounts.Queue, path string) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		line++
		if line == 1 && len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "email") {
			continue
		}
		if err := q.Add(parseUserSpec(rec)); err != nil {
			return fmt.Errorf("%s line %d: %w", path, line, err)
		}
	}
}
