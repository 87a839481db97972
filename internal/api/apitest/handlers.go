package apitest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/labcentral/labcentral/internal/model"
)

func contextWithAccount(r *http.Request, a *account) context.Context {
	return context.WithValue(r.Context(), ctxKey{}, a)
}

func accountFrom(r *http.Request) *account {
	a, _ := r.Context().Value(ctxKey{}).(*account)
	return a
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in model.Credentials
	if err := decode(r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid request"})
		return
	}
	b.mu.Lock()
	a := b.accounts[in.Email]
	if a == nil || a.Password != in.Password {
		b.mu.Unlock()
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Invalid credentials"})
		return
	}
	token := b.sign(a)
	force := a.ForceChange
	admin := a.IsAdmin
	b.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: "session_token", Value: token, Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]any{
		"message":               "Login successful",
		"token":                 token,
		"is_admin":              admin,
		"force_password_change": force,
	})
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	a := accountFrom(r)
	b.mu.Lock()
	for k := range b.containers {
		if k.Email == a.Email {
			delete(b.containers, k)
		}
	}
	b.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: "session_token", Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]any{"message": "Logged out"})
}

func (b *Backend) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email           string `json:"email"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if err := decode(r, &in); err != nil || in.Email == "" || in.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Email and password are required"})
		return
	}
	if in.Password != in.ConfirmPassword {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Passwords do not match"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.accounts[in.Email]; ok {
		writeJSON(w, http.StatusConflict, map[string]any{"error": "User already exists"})
		return
	}
	b.accounts[in.Email] = &account{User: model.User{ID: b.id(), Email: in.Email}, Password: in.Password}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "User created"})
}

func (b *Backend) handleUser(w http.ResponseWriter, r *http.Request) {
	a := accountFrom(r)
	out := userJSON(a)
	out["is_admin"] = a.IsAdmin
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleRequestReset(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	_ = decode(r, &in)
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.accounts[in.Email]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "User not found"})
		return
	}
	token := uuid.NewString()
	b.resetTokens[token] = in.Email
	writeJSON(w, http.StatusOK, map[string]any{"message": "Reset token generated", "reset_token": token})
}

func (b *Backend) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	_ = decode(r, &in)
	b.mu.Lock()
	defer b.mu.Unlock()
	email, ok := b.resetTokens[in.Token]
	if !ok || in.NewPassword == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid or expired token"})
		return
	}
	delete(b.resetTokens, in.Token)
	b.accounts[email].Password = in.NewPassword
	writeJSON(w, http.StatusOK, map[string]any{"message": "Password updated"})
}

func (b *Backend) handleForceChange(w http.ResponseWriter, r *http.Request) {
	var in struct {
		NewPassword string `json:"new_password"`
	}
	_ = decode(r, &in)
	if in.NewPassword == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "New password is required"})
		return
	}
	a := accountFrom(r)
	b.mu.Lock()
	a.Password = in.NewPassword
	a.ForceChange = false
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"message": "Password changed"})
}

func (b *Backend) handleBulkCreate(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Users []model.BulkUser `json:"users"`
	}
	if err := decode(r, &in); err != nil || len(in.Users) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "No users provided"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	created := []model.CreatedUser{}
	for _, u := range in.Users {
		if _, ok := b.accounts[u.Email]; ok {
			continue
		}
		pw := uuid.NewString()[:8]
		b.accounts[u.Email] = &account{
			User:        model.User{ID: b.id(), Email: u.Email, FirstName: u.FirstName, LastName: u.LastName},
			Password:    pw,
			ForceChange: true,
		}
		created = append(created, model.CreatedUser{Email: u.Email, TempPassword: pw})
	}
	writeJSON(w, http.StatusOK, map[string]any{"created": created})
}

func (b *Backend) handleListExercises(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	out := make([]model.Exercise, 0, len(b.exercises))
	for _, e := range b.exercises {
		out = append(out, *e)
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleGetExercise(w http.ResponseWriter, r *http.Request) {
	e, ok := b.Exercise(pathID(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Exercise not found"})
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (b *Backend) handleCreateExercise(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid form"})
		return
	}
	title := r.FormValue("title")
	file, _, err := r.FormFile("zipfile")
	if title == "" || err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Title and zip file are required"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid file"})
		return
	}
	b.mu.Lock()
	id := b.id()
	b.exercises[id] = &model.Exercise{ID: id, Title: title, Description: r.FormValue("description")}
	b.archives[id] = data
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Exercise created", "id": id})
}

func (b *Backend) handleDeleteExercise(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.exercises[id]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Exercise not found"})
		return
	}
	delete(b.exercises, id)
	delete(b.archives, id)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Exercise deleted"})
}

func (b *Backend) handleStart(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	a := accountFrom(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	if msg := b.FailStart[id]; msg != "" {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": msg})
		return
	}
	if _, ok := b.exercises[id]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Exercise not found"})
		return
	}
	b.containers[containerKey{a.Email, id}] = &container{PollsUntilReady: b.ReadyAfter}
	if b.NoProxyURL {
		writeJSON(w, http.StatusOK, map[string]any{"message": "Container started"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"proxy_url": proxyURL(id)})
}

func (b *Backend) handleStop(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	a := accountFrom(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	if msg := b.FailStop[id]; msg != "" {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": msg})
		return
	}
	delete(b.containers, containerKey{a.Email, id})
	writeJSON(w, http.StatusOK, map[string]any{"message": "Container stopped"})
}

func (b *Backend) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	a := accountFrom(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.containers[containerKey{a.Email, id}]
	switch {
	case !ok:
		writeJSON(w, http.StatusOK, map[string]any{"status": "not_found"})
	case b.NeverReady:
		writeJSON(w, http.StatusOK, map[string]any{"status": "stopped"})
	case c.PollsUntilReady > 0:
		c.PollsUntilReady--
		writeJSON(w, http.StatusOK, map[string]any{"status": "stopped"})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"status": "running"})
	}
}

func (b *Backend) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	b.mu.Lock()
	out := []model.Question{}
	for _, q := range b.questions {
		if q.ExerciseID == id {
			out = append(out, q.Question)
		}
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) decodeQuestion(w http.ResponseWriter, r *http.Request) (model.QuestionPayload, bool) {
	var in model.QuestionPayload
	if err := decode(r, &in); err != nil || strings.TrimSpace(in.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Question text is required"})
		return in, false
	}
	return in, true
}

func (b *Backend) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	in, ok := b.decodeQuestion(w, r)
	if !ok {
		return
	}
	id := b.AddQuestion(pathID(r, "id"), model.Question{Text: in.Text, Type: in.Type, Choices: in.Choices, Score: in.Score})
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Question created", "question_id": id})
}

func (b *Backend) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	in, ok := b.decodeQuestion(w, r)
	if !ok {
		return
	}
	qid := pathID(r, "qid")
	b.mu.Lock()
	defer b.mu.Unlock()
	q, found := b.questions[qid]
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Question not found"})
		return
	}
	q.Text, q.Type, q.Choices, q.Score = in.Text, in.Type, in.Choices, in.Score
	writeJSON(w, http.StatusOK, map[string]any{"message": "Question updated"})
}

func (b *Backend) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	qid := pathID(r, "qid")
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.questions[qid]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Question not found"})
		return
	}
	delete(b.questions, qid)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Question deleted"})
}

func (b *Backend) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var in struct {
		AnswerText string `json:"answer_text"`
	}
	if err := decode(r, &in); err != nil || strings.TrimSpace(in.AnswerText) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Answer text is required"})
		return
	}
	qid := pathID(r, "qid")
	a := accountFrom(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.questions[qid]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Question not found"})
		return
	}
	for _, ans := range b.answers {
		if ans.QuestionID == qid && ans.Email == a.Email {
			writeJSON(w, http.StatusConflict, map[string]any{"error": "Answer already submitted"})
			return
		}
	}
	b.answers = append(b.answers, &answerRec{ID: b.id(), QuestionID: qid, Email: a.Email, Text: in.AnswerText})
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Answer submitted"})
}

func (b *Backend) handleMyAnswers(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	a := accountFrom(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	out := map[string]any{}
	for _, ans := range b.answers {
		q := b.questions[ans.QuestionID]
		if ans.Email != a.Email || q == nil || q.ExerciseID != id {
			continue
		}
		key := fmt.Sprint(ans.QuestionID)
		if b.LegacyAnswers {
			out[key] = ans.Text
			continue
		}
		out[key] = map[string]any{"answer_text": ans.Text, "score": ans.Score, "feedback": ans.Feedback}
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) groupOf(exerciseID int64, email string) *groupRec {
	for _, g := range b.groups {
		if g.ExerciseID == exerciseID && (g.Leader == email || g.Partner == email) {
			return g
		}
	}
	return nil
}

func (b *Backend) handleMyGroupScores(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	a := accountFrom(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	out := map[string]any{}
	if g := b.groupOf(id, a.Email); g != nil {
		for _, ans := range b.groupAnswers {
			if ans.GroupID == g.ID {
				out[fmt.Sprint(ans.QuestionID)] = map[string]any{"answer_text": ans.Text, "score": ans.Score}
			}
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) groupJSON(g *groupRec, message string) map[string]any {
	out := map[string]any{
		"group_id": g.ID,
		"leader":   userJSON(b.accounts[g.Leader]),
		"partner":  userJSON(b.accounts[g.Partner]),
	}
	if message != "" {
		out["message"] = message
	}
	return out
}

func (b *Backend) handleMyGroup(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	a := accountFrom(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	g := b.groupOf(id, a.Email)
	if g == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "No group"})
		return
	}
	writeJSON(w, http.StatusOK, b.groupJSON(g, ""))
}

func (b *Backend) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PartnerEmail string `json:"partner_email"`
	}
	_ = decode(r, &in)
	id := pathID(r, "id")
	a := accountFrom(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.groupOf(id, a.Email) != nil {
		writeJSON(w, http.StatusConflict, map[string]any{"error": "You already have a group"})
		return
	}
	if _, ok := b.accounts[in.PartnerEmail]; !ok || in.PartnerEmail == a.Email {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Partner not found"})
		return
	}
	if b.groupOf(id, in.PartnerEmail) != nil {
		writeJSON(w, http.StatusConflict, map[string]any{"error": "Partner already has a group"})
		return
	}
	g := &groupRec{ID: b.id(), ExerciseID: id, Leader: a.Email, Partner: in.PartnerEmail}
	b.groups[g.ID] = g
	writeJSON(w, http.StatusCreated, b.groupJSON(g, "Group created"))
}

func (b *Backend) handleDisbandGroup(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	a := accountFrom(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	g := b.groupOf(id, a.Email)
	if g == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "No group"})
		return
	}
	delete(b.groups, g.ID)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Group disbanded"})
}

func (b *Backend) handleAvailableUsers(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	a := accountFrom(r)
	b.mu.Lock()
	out := []map[string]any{}
	for email, acc := range b.accounts {
		if email == a.Email || acc.IsAdmin || b.groupOf(id, email) != nil {
			continue
		}
		out = append(out, userJSON(acc))
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i]["email"].(string) < out[j]["email"].(string) })
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleAdminAnswers(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	b.mu.Lock()
	defer b.mu.Unlock()
	individual := []map[string]any{}
	for _, ans := range b.answers {
		q := b.questions[ans.QuestionID]
		if q == nil || q.ExerciseID != id {
			continue
		}
		individual = append(individual, map[string]any{
			"answer_id":     ans.ID,
			"question_id":   ans.QuestionID,
			"question_text": q.Text,
			"answer_text":   ans.Text,
			"score":         ans.Score,
			"feedback":      ans.Feedback,
			"user":          userJSON(b.accounts[ans.Email]),
		})
	}
	group := []map[string]any{}
	for _, ans := range b.groupAnswers {
		q := b.questions[ans.QuestionID]
		g := b.groups[ans.GroupID]
		if q == nil || g == nil || q.ExerciseID != id {
			continue
		}
		group = append(group, map[string]any{
			"answer_id":     ans.ID,
			"question_id":   ans.QuestionID,
			"question_text": q.Text,
			"answer_text":   ans.Text,
			"score":         ans.Score,
			"group_id":      g.ID,
			"leader":        userJSON(b.accounts[g.Leader]),
			"partner":       userJSON(b.accounts[g.Partner]),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"individual_answers": individual, "group_answers": group})
}

func (b *Backend) handlePatchAnswer(w http.ResponseWriter, r *http.Request) {
	var in map[string]json.RawMessage
	if err := decode(r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid request"})
		return
	}
	var score *float64
	if raw, ok := in["score"]; ok {
		if err := json.Unmarshal(raw, &score); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid score"})
			return
		}
	}
	var feedback *string
	if raw, ok := in["feedback"]; ok {
		if err := json.Unmarshal(raw, &feedback); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid feedback"})
			return
		}
	}

	aid := pathID(r, "aid")
	b.mu.Lock()
	defer b.mu.Unlock()
	switch chi.URLParam(r, "mode") {
	case "individual":
		for _, ans := range b.answers {
			if ans.ID == aid {
				ans.Score = score
				if feedback != nil {
					ans.Feedback = *feedback
				}
				writeJSON(w, http.StatusOK, map[string]any{"message": "Answer graded"})
				return
			}
		}
	case "group":
		for _, ans := range b.groupAnswers {
			if ans.ID == aid {
				ans.Score = score
				writeJSON(w, http.StatusOK, map[string]any{"message": "Answer graded"})
				return
			}
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"error": "Answer not found"})
}
