package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/labcentral/labcentral/internal/exercises"
	"github.com/labcentral/labcentral/internal/lifecycle"
	"github.com/labcentral/labcentral/internal/model"
)

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid ID %q", s)
	}
	return id, nil
}

func (a *app) dashboard() (*exercises.Dashboard, *lifecycle.Controller, error) {
	sess, client, err := a.current()
	if err != nil {
		return nil, nil, err
	}
	var opener lifecycle.Opener
	if a.v.GetBool("open") {
		opener = lifecycle.OpenerFunc(openBrowser)
	}
	return exercises.NewDashboard(client, sess.User.IsAdmin), lifecycle.New(client, opener, a.lifecycleConfig()), nil
}

func exercisesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "exercises",
		Aliases: []string{"ex"},
		Short:   "List and manage exercises",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List exercises with their container status",
		Args:  cobra.NoArgs,
		RunE: run(func(a *app, _ *cobra.Command, _ []string) error {
			d, ctrl, err := a.dashboard()
			if err != nil {
				return err
			}
			if err := d.Load(a.ctx); err != nil {
				return err
			}
			if len(d.Exercises()) == 0 {
				fmt.Fprintln(a.out, a.t("NoExercises"))
				return nil
			}
			tw := newTable(a.out)
			fmt.Fprintln(tw, "ID\tTITLE\tSTATUS")
			for _, ex := range d.Exercises() {
				status, err := ctrl.Refresh(a.ctx, ex.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\n", ex.ID, ex.Title, statusLabel(a, status))
			}
			return tw.Flush()
		}),
	}

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Show one exercise",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(a *app, _ *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			d, ctrl, err := a.dashboard()
			if err != nil {
				return err
			}
			ex, err := d.Get(a.ctx, id)
			if err != nil {
				return err
			}
			status, err := ctrl.Refresh(a.ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %s\n", color.New(color.Bold).Sprintf("#%d %s", ex.ID, ex.Title), statusLabel(a, status))
			if ex.Description != "" {
				fmt.Fprintln(a.out, ex.Description)
			}
			return nil
		}),
	}

	create := &cobra.Command{
		Use:   "create ARCHIVE.zip",
		Short: "Upload a new exercise (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(a *app, cmd *cobra.Command, args []string) error {
			d, _, err := a.dashboard()
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open archive: %w", err)
			}
			defer f.Close()
			if info, err := f.Stat(); err == nil && info.Size() > exercises.MaxArchiveBytes {
				return fmt.Errorf("%w: %s, max %s", exercises.ErrArchiveTooLarge,
					humanize.Bytes(uint64(info.Size())), humanize.Bytes(exercises.MaxArchiveBytes))
			}
			title, _ := cmd.Flags().GetString("title")
			desc, _ := cmd.Flags().GetString("description")
			if err := d.Create(a.ctx, title, desc, filepath.Base(args[0]), f); err != nil {
				return err
			}
			success(a.out, a.t("ExerciseCreated"))
			return nil
		}),
	}
	create.Flags().String("title", "", "Exercise title")
	create.Flags().String("description", "", "Exercise description")
	_ = create.MarkFlagRequired("title")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an exercise (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(a *app, _ *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			d, _, err := a.dashboard()
			if err != nil {
				return err
			}
			if err := d.Delete(a.ctx, id); err != nil {
				return err
			}
			success(a.out, a.t("ExerciseDeleted"))
			return nil
		}),
	}

	cmd.AddCommand(list, show, create, del)
	return cmd
}

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start ID",
		Short: "Start the exercise container and wait until it is ready",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(a *app, _ *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			_, ctrl, err := a.dashboard()
			if err != nil {
				return err
			}
			// A container that is already up makes Start report ErrBusy.
			if _, err := ctrl.Refresh(a.ctx, id); err != nil {
				return err
			}
			fmt.Fprintln(a.out, statusLabel(a, model.StatusStarting))
			if err := ctrl.Start(a.ctx, id); err != nil {
				return err
			}
			fmt.Fprintln(a.out, statusLabel(a, ctrl.Status(id)))
			if u := ctrl.ProxyURL(id); u != "" {
				fmt.Fprintln(a.out, color.CyanString(u))
			}
			return nil
		}),
	}
	cmd.Flags().Bool("open", true, "Open the lab in the browser once it is ready")
	return cmd
}

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop ID",
		Short: "Stop the exercise container",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(a *app, _ *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			_, ctrl, err := a.dashboard()
			if err != nil {
				return err
			}
			if _, err := ctrl.Refresh(a.ctx, id); err != nil {
				return err
			}
			if err := ctrl.Stop(a.ctx, id); err != nil {
				return err
			}
			success(a.out, a.t("ExerciseStopped"))
			return nil
		}),
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status ID",
		Short: "Show the container status of an exercise",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(a *app, _ *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			_, ctrl, err := a.dashboard()
			if err != nil {
				return err
			}
			status, err := ctrl.Refresh(a.ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, statusLabel(a, status))
			return nil
		}),
	}
}
