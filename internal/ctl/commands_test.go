package ctl

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
)

func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

type recorded struct {
	Method string
	Path   string
	Body   map[string]any
}

func fakeServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, func() []recorded) {
	t.Helper()
	var mu sync.Mutex
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		rec := recorded{Method: r.Method, Path: r.URL.RequestURI()}
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &rec.Body)
		}
		mu.Lock()
		calls = append(calls, rec)
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), calls...)
	}
}

func TestNewPrintsSessionID(t *testing.T) {
	srv, calls := fakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"session_id":"abc123","session":{}}`))
	})
	out, err := executeCommand(NewRootCmd(), "--server", srv.URL, "new")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if strings.TrimSpace(out) != "abc123" {
		t.Fatalf("output = %q", out)
	}
	if c := calls(); len(c) != 1 || c[0].Method != http.MethodPost || c[0].Path != "/sessions" {
		t.Fatalf("calls = %+v", c)
	}
}

func TestServerFromEnvironment(t *testing.T) {
	srv, calls := fakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"s1"}`))
	})
	t.Setenv("DEBATECTL_SERVER", srv.URL)
	if _, err := executeCommand(NewRootCmd(), "show", "s1"); err != nil {
		t.Fatalf("show: %v", err)
	}
	if c := calls(); len(c) != 1 || c[0].Path != "/sessions/s1" {
		t.Fatalf("calls = %+v", c)
	}
}

func TestActionCommandsSendBodies(t *testing.T) {
	srv, calls := fakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/fragments") {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte(`{"phase":"SETUP"}`))
	})
	steps := [][]string{
		{"motion", "s1", "This", "House", "would", "ban", "homework"},
		{"role", "s1", "LO"},
		{"prep", "s1", "pause"},
		{"prep", "s1", "finish", "--notes", "burden on gov"},
		{"speech", "s1", "start"},
		{"say", "s1", "hello", "judges"},
		{"poi", "s1", "reject"},
		{"ai", "s1", "PM", "--content", "opening case"},
	}
	for _, args := range steps {
		if _, err := executeCommand(NewRootCmd(), append([]string{"--server", srv.URL}, args...)...); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
	}
	c := calls()
	if len(c) != len(steps) {
		t.Fatalf("got %d calls, want %d", len(c), len(steps))
	}
	want := []struct {
		path string
		key  string
		val  any
	}{
		{"/sessions/s1/motion", "motion", "This House would ban homework"},
		{"/sessions/s1/role", "role", "LO"},
		{"/sessions/s1/prep/clock", "action", "pause"},
		{"/sessions/s1/prep/finish", "notes", "burden on gov"},
		{"/sessions/s1/speech/start", "", nil},
		{"/sessions/s1/speech/fragments", "text", "hello judges"},
		{"/sessions/s1/poi/reject", "", nil},
		{"/sessions/s1/speeches/ai", "content", "opening case"},
	}
	for i, w := range want {
		if c[i].Path != w.path || c[i].Method != http.MethodPost {
			t.Errorf("call %d = %s %s, want POST %s", i, c[i].Method, c[i].Path, w.path)
			continue
		}
		if w.key != "" && c[i].Body[w.key] != w.val {
			t.Errorf("call %d body[%s] = %v, want %v", i, w.key, c[i].Body[w.key], w.val)
		}
	}
	if c[5].Body["is_final"] != true {
		t.Errorf("say should send a final fragment: %v", c[5].Body)
	}
}

func TestInvalidArgumentsFailLocally(t *testing.T) {
	srv, calls := fakeServer(t, func(w http.ResponseWriter, r *http.Request) {})
	for _, args := range [][]string{
		{"poi", "s1", "maybe"},
		{"speech", "s1", "sing"},
		{"prep", "s1", "nap"},
		{"show"},
	} {
		if _, err := executeCommand(NewRootCmd(), append([]string{"--server", srv.URL}, args...)...); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
	if c := calls(); len(c) != 0 {
		t.Fatalf("no request should be sent, got %+v", c)
	}
}

func TestAPIErrorSurfaces(t *testing.T) {
	srv, _ := fakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"invalid transition: start_speech in phase SETUP"}`))
	})
	_, err := executeCommand(NewRootCmd(), "--server", srv.URL, "speech", "s1", "start")
	if err == nil || !strings.Contains(err.Error(), "409") || !strings.Contains(err.Error(), "start_speech") {
		t.Fatalf("err = %v", err)
	}
}

func TestReportWaitsUntilGraded(t *testing.T) {
	var mu sync.Mutex
	polls := 0
	srv, _ := fakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"status":"pending"}`))
			return
		}
		mu.Lock()
		polls++
		n := polls
		mu.Unlock()
		if n < 2 {
			_, _ = w.Write([]byte(`{"status":"pending"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ready","grade":"A","ranking_label":"1st Place"}`))
	})
	out, err := executeCommand(NewRootCmd(), "--server", srv.URL, "report", "s1", "--wait", "10s")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(out, `"grade": "A"`) || !strings.Contains(out, "1st Place") {
		t.Fatalf("output = %s", out)
	}
}

func TestMotionsListsBank(t *testing.T) {
	srv, calls := fakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"categories":["economics"],"motions":["THW tax wealth","THW ban ads"]}`))
	})
	out, err := executeCommand(NewRootCmd(), "--server", srv.URL, "motions", "--category", "economics")
	if err != nil {
		t.Fatalf("motions: %v", err)
	}
	if out != "THW tax wealth\nTHW ban ads\n" {
		t.Fatalf("output = %q", out)
	}
	if c := calls(); c[0].Path != "/motions?category=economics" {
		t.Fatalf("path = %s", c[0].Path)
	}
}

func TestHealthNotReady(t *testing.T) {
	srv, _ := fakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"healthy":false}`))
	})
	out, err := executeCommand(NewRootCmd(), "--server", srv.URL, "health")
	if err == nil || !strings.Contains(out, "healthy") {
		t.Fatalf("out=%q err=%v", out, err)
	}
}
