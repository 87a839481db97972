package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/labcentral/labcentral/internal/grading"
	"github.com/labcentral/labcentral/internal/model"
	"github.com/labcentral/labcentral/internal/questions"
)

func (a *app) questionPanel(exerciseArg string) (*questions.Panel, bool, error) {
	id, err := parseID(exerciseArg)
	if err != nil {
		return nil, false, err
	}
	sess, client, err := a.current()
	if err != nil {
		return nil, false, err
	}
	return questions.NewPanel(client, id, sess.User.IsAdmin), sess.User.IsAdmin, nil
}

func questionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "questions",
		Aliases: []string{"q"},
		Short:   "List and manage the questions of an exercise",
	}

	list := &cobra.Command{
		Use:   "list EXERCISE",
		Short: "List questions with your answers",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(a *app, _ *cobra.Command, args []string) error {
			p, isAdmin, err := a.questionPanel(args[0])
			if err != nil {
				return err
			}
			if isAdmin {
				err = p.LoadQuestions(a.ctx)
			} else {
				err = p.Load(a.ctx)
			}
			if err != nil {
				return err
			}
			printQuestions(a, p, isAdmin)
			return nil
		}),
	}

	create := &cobra.Command{
		Use:   "create EXERCISE",
		Short: "Add a question (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(a *app, cmd *cobra.Command, args []string) error {
			p, _, err := a.questionPanel(args[0])
			if err != nil {
				return err
			}
			d, err := draftFromFlags(cmd)
			if err != nil {
				return err
			}
			id, err := p.CreateQuestion(a.ctx, d)
			if err != nil {
				return err
			}
			success(a.out, fmt.Sprintf("%s (#%d)", a.t("QuestionCreated"), id))
			return nil
		}),
	}
	draftFlags(create)

	edit := &cobra.Command{
		Use:   "edit EXERCISE QUESTION",
		Short: "Replace a question (admin)",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(a *app, cmd *cobra.Command, args []string) error {
			p, _, err := a.questionPanel(args[0])
			if err != nil {
				return err
			}
			qid, err := parseID(args[1])
			if err != nil {
				return err
			}
			d, err := draftFromFlags(cmd)
			if err != nil {
				return err
			}
			if err := p.EditQuestion(a.ctx, qid, d); err != nil {
				return err
			}
			success(a.out, a.t("QuestionUpdated"))
			return nil
		}),
	}
	draftFlags(edit)

	del := &cobra.Command{
		Use:   "delete EXERCISE QUESTION",
		Short: "Delete a question (admin)",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(a *app, _ *cobra.Command, args []string) error {
			p, _, err := a.questionPanel(args[0])
			if err != nil {
				return err
			}
			qid, err := parseID(args[1])
			if err != nil {
				return err
			}
			if err := p.DeleteQuestion(a.ctx, qid); err != nil {
				return err
			}
			success(a.out, a.t("QuestionDeleted"))
			return nil
		}),
	}

	cmd.AddCommand(list, create, edit, del)
	return cmd
}

func draftFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("text", "", "Question text")
	f.String("type", string(model.QuestionOpen), "Question type (abierta, multiple_choice)")
	f.String("score", "0", "Maximum score")
	f.StringArray("choice", nil, "Choice text (repeatable, multiple_choice only)")
	f.IntSlice("correct", nil, "1-based numbers of the correct choices")
	_ = cmd.MarkFlagRequired("text")
}

func draftFromFlags(cmd *cobra.Command) (model.QuestionDraft, error) {
	f := cmd.Flags()
	text, _ := f.GetString("text")
	typ, _ := f.GetString("type")
	scoreInput, _ := f.GetString("score")
	choices, _ := f.GetStringArray("choice")
	correct, _ := f.GetIntSlice("correct")

	d := model.QuestionDraft{Text: text, Type: model.QuestionType(typ)}
	score, err := grading.ParseScore(scoreInput)
	if err != nil {
		return d, err
	}
	if score != nil {
		d.Score = *score
	}
	isCorrect := map[int]bool{}
	for _, n := range correct {
		isCorrect[n-1] = true
	}
	for i, c := range choices {
		d.Choices = append(d.Choices, model.Choice{Text: c, Correct: isCorrect[i]})
	}
	return d, nil
}

func printQuestions(a *app, p *questions.Panel, isAdmin bool) {
	if len(p.Questions()) == 0 {
		fmt.Fprintln(a.out, a.t("NoQuestions"))
		return
	}
	bold := color.New(color.Bold)
	for i, q := range p.Questions() {
		bold.Fprintf(a.out, "%d. [#%d] %s\n", i+1, q.ID, q.Text)
		fmt.Fprintf(a.out, "   %s · %s: %s\n", a.t("QuestionType_"+string(q.Type)), a.t("MaxScore"), formatScore(q.Score))
		if q.Type == model.QuestionMultipleChoice {
			opts, notice := questions.RenderChoices(q, isAdmin)
			if notice != "" {
				fmt.Fprintln(a.out, "   "+color.YellowString(a.t(notice)))
			}
			for j, o := range opts {
				fmt.Fprintf(a.out, "   %d) %s\n", j+1, o.Label)
			}
		}
		if isAdmin {
			continue
		}
		ans, ok := p.Answer(q.ID)
		if !ok {
			continue
		}
		label := a.t("YourAnswer")
		if _, own := p.OwnAnswer(q.ID); !own {
			label = a.t("AnsweredByGroup")
		}
		fmt.Fprintf(a.out, "   %s: %s\n", label, ans.AnswerText)
		if ans.Score != nil {
			fmt.Fprintf(a.out, "   %s: %s\n", a.t("Score"), color.GreenString(formatScore(*ans.Score)))
		} else {
			fmt.Fprintf(a.out, "   %s\n", color.HiBlackString(a.t("NotGradedYet")))
		}
		if ans.Feedback != "" {
			fmt.Fprintf(a.out, "   %s: %s\n", a.t("Feedback"), ans.Feedback)
		}
	}
	fmt.Fprintf(a.out, "\n%s: %s", a.t("TotalScore"), formatScore(p.TotalScore()))
	if !isAdmin {
		fmt.Fprintf(a.out, " · %s: %s", a.t("EarnedScore"), formatScore(p.EarnedScore()))
	}
	fmt.Fprintln(a.out)
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func answerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "answer EXERCISE QUESTION TEXT...",
		Short: "Answer a question; for multiple choice TEXT may be the choice number",
		Args:  cobra.MinimumNArgs(3),
		RunE: run(func(a *app, _ *cobra.Command, args []string) error {
			p, _, err := a.questionPanel(args[0])
			if err != nil {
				return err
			}
			qid, err := parseID(args[1])
			if err != nil {
				return err
			}
			if err := p.Load(a.ctx); err != nil {
				return err
			}
			text := strings.Join(args[2:], " ")
			if q, ok := p.Question(qid); ok && q.Type == model.QuestionMultipleChoice {
				opts, _ := questions.RenderChoices(q, false)
				if n, err := strconv.Atoi(text); err == nil && n >= 1 && n <= len(opts) {
					text = opts[n-1].Label
				}
			}
			if err := p.SubmitAnswer(a.ctx, qid, text); err != nil {
				return err
			}
			success(a.out, a.t("AnswerSubmitted"))
			return nil
		}),
	}
}
