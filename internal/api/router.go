// Package api is the HTTP control surface for driving sessions.
package api

import (
	"net/http"
	"strings"

	"debatecoach/agent/internal/orchestrator"
)

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}

func NewRouter(h *Handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/motions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.HandleMotions(w, r)
	})

	mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			h.HandleCreateSession(w, r)
		case http.MethodGet:
			h.HandleListSessions(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	// POST actions on a session, keyed by the path after /sessions/{id}/.
	actions := map[string]func(http.ResponseWriter, *http.Request, *orchestrator.Session){
		"skill":       h.HandleSkill,
		"motion":      h.HandleMotion,
		"role":        h.HandleRole,
		"prep/clock":  h.HandlePrepClock,
		"prep/notes":  h.HandleStructureNotes,
		"prep/finish": h.HandleFinishPrep,
		"prep/start": func(w http.ResponseWriter, r *http.Request, s *orchestrator.Session) {
			h.snapshot(w, s, s.BeginPreparation)
		},
		"speech/start": func(w http.ResponseWriter, r *http.Request, s *orchestrator.Session) {
			h.snapshot(w, s, s.StartSpeech)
		},
		"speech/pause": func(w http.ResponseWriter, r *http.Request, s *orchestrator.Session) {
			h.snapshot(w, s, s.PauseSpeechClock)
		},
		"speech/resume": func(w http.ResponseWriter, r *http.Request, s *orchestrator.Session) {
			h.snapshot(w, s, s.ResumeSpeechClock)
		},
		"speech/stop": func(w http.ResponseWriter, r *http.Request, s *orchestrator.Session) {
			h.snapshot(w, s, s.StopSpeech)
		},
		"speech/fragments": h.HandleFragment,
		"speech/complete":  h.HandleCompleteSpeech,
		"poi/accept": func(w http.ResponseWriter, r *http.Request, s *orchestrator.Session) {
			h.HandlePOI(w, r, s, true)
		},
		"poi/reject": func(w http.ResponseWriter, r *http.Request, s *orchestrator.Session) {
			h.HandlePOI(w, r, s, false)
		},
		"speeches/ai": h.HandleAISpeech,
		"report":      h.HandleRequestReport,
		"reset":       h.HandleReset,
	}

	mux.HandleFunc("/sessions/", func(w http.ResponseWriter, r *http.Request) {
		// /sessions/{id}[/tail...]
		path := strings.TrimSuffix(r.URL.Path, "/")
		rest := strings.TrimPrefix(path, "/sessions/")
		parts := strings.Split(rest, "/")
		if len(parts) == 0 || parts[0] == "" {
			http.NotFound(w, r)
			return
		}
		id := parts[0]
		tail := strings.Join(parts[1:], "/")

		switch {
		case tail == "":
			switch r.Method {
			case http.MethodGet:
				h.HandleGetSession(w, r, id)
			case http.MethodDelete:
				h.HandleDeleteSession(w, r, id)
			default:
				methodNotAllowed(w)
			}
			return
		case tail == "events":
			if r.Method != http.MethodGet {
				methodNotAllowed(w)
				return
			}
			h.HandleListEvents(w, r, id)
			return
		case tail == "capture-token":
			if r.Method != http.MethodPost {
				methodNotAllowed(w)
				return
			}
			h.HandleMintCaptureToken(w, r, id)
			return
		case tail == "report" && r.Method == http.MethodGet:
			if sess := h.session(w, r, id); sess != nil {
				h.HandleGetReport(w, r, sess)
			}
			return
		case len(parts) == 4 && parts[1] == "speeches" && parts[3] == "audio":
			if r.Method != http.MethodGet {
				methodNotAllowed(w)
				return
			}
			if sess := h.session(w, r, id); sess != nil {
				h.HandleSpeechAudio(w, r, sess, parts[2])
			}
			return
		}

		action, ok := actions[tail]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		if sess := h.session(w, r, id); sess != nil {
			action(w, r, sess)
		}
	})

	return mux
}
