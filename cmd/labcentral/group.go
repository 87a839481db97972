package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/labcentral/labcentral/internal/groups"
)

func (a *app) groupPanel(exerciseArg string) (*groups.Panel, error) {
	id, err := parseID(exerciseArg)
	if err != nil {
		return nil, err
	}
	sess, client, err := a.current()
	if err != nil {
		return nil, err
	}
	p := groups.NewPanel(client, id, sess.User.Email)
	if err := p.LoadMyGroup(a.ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func groupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Pair with a partner for an exercise",
	}

	show := &cobra.Command{
		Use:   "show EXERCISE",
		Short: "Show your group",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(a *app, _ *cobra.Command, args []string) error {
			p, err := a.groupPanel(args[0])
			if err != nil {
				return err
			}
			if !p.HasGroup() {
				fmt.Fprintln(a.out, a.t("NoGroupYet"))
				return nil
			}
			g := p.Group()
			fmt.Fprintf(a.out, "%s #%d\n", a.t("GroupTitle"), g.ID)
			fmt.Fprintf(a.out, "%s: %s <%s>\n", a.t("GroupLeader"), g.Leader.DisplayName(), g.Leader.Email)
			fmt.Fprintf(a.out, "%s: %s <%s>\n", a.t("GroupPartner"), g.Partner.DisplayName(), g.Partner.Email)
			return nil
		}),
	}

	users := &cobra.Command{
		Use:   "users EXERCISE",
		Short: "List users available as a partner",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(a *app, _ *cobra.Command, args []string) error {
			p, err := a.groupPanel(args[0])
			if err != nil {
				return err
			}
			list, err := p.AvailableUsers(a.ctx)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(a.out, a.t("NoAvailableUsers"))
				return nil
			}
			tw := newTable(a.out)
			fmt.Fprintln(tw, "EMAIL\tNAME")
			for _, u := range list {
				fmt.Fprintf(tw, "%s\t%s\n", u.Email, u.DisplayName())
			}
			return tw.Flush()
		}),
	}

	create := &cobra.Command{
		Use:   "create EXERCISE PARTNER_EMAIL",
		Short: "Form a group with a partner",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(a *app, _ *cobra.Command, args []string) error {
			p, err := a.groupPanel(args[0])
			if err != nil {
				return err
			}
			if err := p.CreateGroup(a.ctx, args[1]); err != nil {
				return err
			}
			partner, _ := p.Partner()
			success(a.out, fmt.Sprintf("%s %s", a.t("GroupCreated"), partner.DisplayName()))
			return nil
		}),
	}

	disband := &cobra.Command{
		Use:   "disband EXERCISE",
		Short: "Dissolve your group",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(a *app, _ *cobra.Command, args []string) error {
			p, err := a.groupPanel(args[0])
			if err != nil {
				return err
			}
			if err := p.DisbandGroup(a.ctx); err != nil {
				return err
			}
			success(a.out, a.t("GroupDisbanded"))
			return nil
		}),
	}

	cmd.AddCommand(show, users, create, disband)
	return cmd
}
