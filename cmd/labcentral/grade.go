package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/labcentral/labcentral/internal/api"
	"github.com/labcentral/labcentral/internal/grading"
	"github.com/labcentral/labcentral/internal/llm"
)

func (a *app) gradingPanel(exerciseArg string, assistant grading.Assistant) (*grading.Panel, error) {
	id, err := parseID(exerciseArg)
	if err != nil {
		return nil, err
	}
	_, client, err := a.current()
	if err != nil {
		return nil, err
	}
	p := grading.NewPanel(client, assistant, id)
	if err := p.Load(a.ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func parseMode(s string) (api.GradeMode, error) {
	switch m := api.GradeMode(s); m {
	case api.ModeIndividual, api.ModeGroup:
		return m, nil
	}
	return "", fmt.Errorf("invalid mode %q (individual, group)", s)
}

func scoreText(v *float64) string {
	if v == nil {
		return color.HiBlackString("-")
	}
	return formatScore(*v)
}

func gradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Grade the answers of an exercise (admin)",
	}

	list := &cobra.Command{
		Use:   "list EXERCISE",
		Short: "List individual and group answers",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(a *app, _ *cobra.Command, args []string) error {
			p, err := a.gradingPanel(args[0], nil)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, color.New(color.Bold).Sprint(a.t("IndividualAnswers")))
			tw := newTable(a.out)
			fmt.Fprintln(tw, "ANSWER\tSTUDENT\tQUESTION\tSCORE\tTEXT")
			for _, row := range p.Individual() {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", row.AnswerID, row.User.Email, row.QuestionText, scoreText(row.Score), row.AnswerText)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			fmt.Fprintln(a.out, "\n"+color.New(color.Bold).Sprint(a.t("GroupAnswers")))
			tw = newTable(a.out)
			fmt.Fprintln(tw, "ANSWER\tGROUP\tQUESTION\tSCORE\tTEXT")
			for _, row := range p.Group() {
				fmt.Fprintf(tw, "%d\t%s + %s\t%s\t%s\t%s\n", row.AnswerID, row.Leader.Email, row.Partner.Email, row.QuestionText, scoreText(row.Score), row.AnswerText)
			}
			return tw.Flush()
		}),
	}

	set := &cobra.Command{
		Use:   "set EXERCISE individual|group ANSWER SCORE",
		Short: "Save a score; an empty SCORE clears it",
		Args:  cobra.ExactArgs(4),
		RunE: run(func(a *app, cmd *cobra.Command, args []string) error {
			mode, err := parseMode(args[1])
			if err != nil {
				return err
			}
			answerID, err := parseID(args[2])
			if err != nil {
				return err
			}
			p, err := a.gradingPanel(args[0], nil)
			if err != nil {
				return err
			}
			if mode == api.ModeIndividual {
				feedback, _ := cmd.Flags().GetString("feedback")
				err = p.SaveIndividualScore(a.ctx, answerID, args[3], feedback)
			} else {
				err = p.SaveGroupScore(a.ctx, answerID, args[3])
			}
			if err != nil {
				return err
			}
			success(a.out, a.t("ScoreSaved"))
			return nil
		}),
	}
	set.Flags().String("feedback", "", "Feedback for an individual answer")

	export := &cobra.Command{
		Use:   "export EXERCISE",
		Short: "Export grades as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(a *app, cmd *cobra.Command, args []string) error {
			p, err := a.gradingPanel(args[0], nil)
			if err != nil {
				return err
			}
			out, err := p.Export(a.ctx)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal JSON: %w", err)
			}

			outPath, _ := cmd.Flags().GetString("output")
			var w io.Writer = a.out
			if outPath != "" && outPath != "-" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				defer f.Close()
				w = f
			}
			if _, err := w.Write(data); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			_, _ = fmt.Fprintln(w)
			return nil
		}),
	}
	export.Flags().StringP("output", "o", "-", "Output file path (- for stdout)")

	suggest := &cobra.Command{
		Use:   "suggest EXERCISE individual|group ANSWER",
		Short: "Ask the grading assistant for a score; nothing is saved",
		Args:  cobra.ExactArgs(3),
		RunE: run(func(a *app, _ *cobra.Command, args []string) error {
			mode, err := parseMode(args[1])
			if err != nil {
				return err
			}
			answerID, err := parseID(args[2])
			if err != nil {
				return err
			}
			var assistant grading.Assistant
			if url := a.v.GetString("llm-url"); url != "" {
				assistant = llm.New(url, a.v.GetString("llm-key"), a.v.GetString("llm-model"))
			}
			p, err := a.gradingPanel(args[0], assistant)
			if err != nil {
				return err
			}
			s, err := p.Suggest(a.ctx, mode, answerID)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s: %s\n", a.t("Score"), color.CyanString(formatScore(s.Score)))
			if s.Feedback != "" {
				fmt.Fprintf(a.out, "%s: %s\n", a.t("Feedback"), s.Feedback)
			}
			fmt.Fprintln(a.out, color.HiBlackString(a.t("SuggestionNotSaved")))
			return nil
		}),
	}
	f := suggest.Flags()
	f.String("llm-url", "", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")

	cmd.AddCommand(list, set, export, suggest)
	return cmd
}
