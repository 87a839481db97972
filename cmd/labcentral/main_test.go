package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labcentral/labcentral/internal/accounts"
	"github.com/labcentral/labcentral/internal/api"
	"github.com/labcentral/labcentral/internal/api/apitest"
	"github.com/labcentral/labcentral/internal/model"
	"github.com/labcentral/labcentral/internal/session"
	"github.com/labcentral/labcentral/internal/store"
)

// loggedIn returns a state file holding a local session for email.
func loggedIn(t *testing.T, srvURL, email string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")
	st, err := store.New(path)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer st.Close()
	m := session.NewManager(api.New(srvURL), st)
	if _, err := m.Login(context.Background(), store.LocalSessionID, model.Credentials{Email: email, Password: "secret"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LABCENTRAL_LANG", "en")
	root := rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestExercisesList(t *testing.T) {
	b, srv := apitest.Start(t)
	b.AddUser("ana@example.com", "secret", "Ana", "Diaz", false)
	b.AddExercise("Redes I", "")
	b.AddExercise("Linux", "")
	state := loggedIn(t, srv.URL, "ana@example.com")

	out, err := execute(t, "--api-url", srv.URL, "--state", state, "exercises", "list")
	if err != nil {
		t.Fatalf("exercises list: %v", err)
	}
	for _, want := range []string{"Redes I", "Linux", "Stopped"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStartAndStop(t *testing.T) {
	b, srv := apitest.Start(t)
	b.AddUser("ana@example.com", "secret", "Ana", "Diaz", false)
	id := b.AddExercise("Redes I", "")
	state := loggedIn(t, srv.URL, "ana@example.com")
	common := []string{"--api-url", srv.URL, "--state", state, "--boot-delay", "1ms", "--poll-interval", "5ms"}

	out, err := execute(t, append(common, "start", "--open=false", fmt.Sprint(id))...)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !strings.Contains(out, "Running") || !strings.Contains(out, "/proxy") {
		t.Errorf("start output:\n%s", out)
	}
	if !b.ContainerRunning("ana@example.com", id) {
		t.Error("container not running")
	}

	if _, err := execute(t, append(common, "stop", fmt.Sprint(id))...); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if b.ContainerRunning("ana@example.com", id) {
		t.Error("container still running")
	}
}

func TestStartOpensProxy(t *testing.T) {
	b, srv := apitest.Start(t)
	b.AddUser("ana@example.com", "secret", "Ana", "Diaz", false)
	id := b.AddExercise("Redes I", "")
	state := loggedIn(t, srv.URL, "ana@example.com")

	var opened []string
	orig := openURL
	openURL = func(url string) error {
		opened = append(opened, url)
		return nil
	}
	t.Cleanup(func() { openURL = orig })

	_, err := execute(t, "--api-url", srv.URL, "--state", state, "--boot-delay", "1ms", "--poll-interval", "5ms", "start", fmt.Sprint(id))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	want := fmt.Sprintf("%s/api/exercise/%d/proxy", srv.URL, id)
	if len(opened) != 1 || opened[0] != want {
		t.Errorf("opened = %v, want [%s]", opened, want)
	}
}

func TestNotLoggedIn(t *testing.T) {
	_, srv := apitest.Start(t)
	state := filepath.Join(t.TempDir(), "state.db")

	_, err := execute(t, "--api-url", srv.URL, "--state", state, "whoami")
	if err == nil {
		t.Fatal("expected an error")
	}
	if got := describe(err); !strings.Contains(got, "labcentral login") {
		t.Errorf("describe = %q", got)
	}
}

func TestDraftFromFlags(t *testing.T) {
	cmd := questionsCmd()
	create, _, err := cmd.Find([]string{"create"})
	if err != nil {
		t.Fatalf("find create: %v", err)
	}
	err = create.ParseFlags([]string{
		"--text", "¿TCP o UDP?", "--type", "multiple_choice", "--score", "2,5",
		"--choice", "TCP", "--choice", "UDP", "--correct", "1",
	})
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	d, err := draftFromFlags(create)
	if err != nil {
		t.Fatalf("draftFromFlags: %v", err)
	}
	if d.Score != 2.5 || d.Type != model.QuestionMultipleChoice {
		t.Errorf("draft = %+v", d)
	}
	if len(d.Choices) != 2 || !d.Choices[0].Correct || d.Choices[1].Correct {
		t.Errorf("choices = %+v", d.Choices)
	}
}

func TestQueueCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.csv")
	data := "email,first_name,last_name\nana@example.com, Ana, Diaz\nbeto@example.com,Beto,Ruiz\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	var q accounts.Queue
	if err := queueCSV(&q, path); err != nil {
		t.Fatalf("queueCSV: %v", err)
	}
	users := q.Users()
	if len(users) != 2 || users[0].FirstName != "Ana" || users[1].Email != "beto@example.com" {
		t.Errorf("users = %+v", users)
	}

	bad := filepath.Join(t.TempDir(), "bad.csv")
	if err := os.WriteFile(bad, []byte("not-an-email,A,B\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := queueCSV(&accounts.Queue{}, bad); err == nil {
		t.Error("invalid row accepted")
	}
}
