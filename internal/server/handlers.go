package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/michaelbrown/pairpad/internal/sandbox"
	"github.com/michaelbrown/pairpad/internal/session"
)

const maxBodyBytes = 256 << 10

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// codeRequest is the body of /run and /debug.
type codeRequest struct {
	Language string `json:"language" validate:"required,max=32"`
	Code     string `json:"code" validate:"max=65536"`
	Stdin    string `json:"stdin,omitempty" validate:"max=65536"`
}

func (s *Server) decodeCodeRequest(w http.ResponseWriter, r *http.Request) (*codeRequest, bool) {
	var req codeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return nil, false
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return nil, false
	}
	return &req, true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s exceeds %s bytes", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
		}
	}
	return strings.Join(msgs, "; ")
}

// --- Execution handlers ---

type runResponse struct {
	Output      string `json:"output"`
	Error       string `json:"error"`
	FailureKind string `json:"failure_kind,omitempty"`
	ExitCode    int    `json:"exit_code"`
	DurationMS  int64  `json:"duration_ms"`
	Truncated   bool   `json:"truncated"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCodeRequest(w, r)
	if !ok {
		return
	}

	res := s.sandbox.Execute(r.Context(), sandbox.Request{
		Language: req.Language,
		Source:   req.Code,
		Stdin:    req.Stdin,
	})

	if res.Failure == sandbox.FailureUnsupportedLanguage {
		writeJSON(w, http.StatusOK, map[string]string{
			"error":        res.Message,
			"failure_kind": string(res.Failure),
		})
		return
	}

	writeJSON(w, http.StatusOK, runResponse{
		Output:      res.Stdout,
		Error:       joinNonEmpty(res.Stderr, res.Message),
		FailureKind: string(res.Failure),
		ExitCode:    res.ExitCode,
		DurationMS:  res.Duration.Milliseconds(),
		Truncated:   res.Truncated,
	})
}

func joinNonEmpty(stderr, msg string) string {
	switch {
	case msg == "":
		return stderr
	case stderr == "":
		return msg
	case strings.HasSuffix(stderr, "\n"):
		return stderr + msg
	default:
		return stderr + "\n" + msg
	}
}

func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCodeRequest(w, r)
	if !ok {
		return
	}

	suggestion, err := s.suggester.Suggest(r.Context(), req.Language, req.Code)
	if err != nil {
		s.logger.Warn("suggestion failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "suggestion unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"suggestion": suggestion})
}

// --- Introspection handlers ---

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := s.registry.Rooms()
	if rooms == nil {
		rooms = []session.RoomInfo{}
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (s *Server) handleListLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sandbox.Languages())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
