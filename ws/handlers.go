package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/samber/lo"

	"support-relay/contract"
	"support-relay/domain"
	relayerrors "support-relay/errors"
	"support-relay/observability"
	"support-relay/repositories"
	"support-relay/services"
)

// API bundles the HTTP endpoints that live next to the websocket: account
// registration and login, transcript reads, and the stats feed the operator
// console polls.
type API struct {
	log      *slog.Logger
	accounts services.IAccountService
	relay    services.IRelayService
	verifier contract.IdentityVerifier
	monitor  *observability.Monitor
}

func NewAPI(log *slog.Logger, accounts services.IAccountService,
	relay services.IRelayService, verifier contract.IdentityVerifier,
	monitor *observability.Monitor) *API {
	return &API{
		log:      log,
		accounts: accounts,
		relay:    relay,
		verifier: verifier,
		monitor:  monitor,
	}
}

// NewMux wires the full HTTP surface of the relay process.
func NewMux(server *Server, api *API) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", server.HandleWS)
	mux.HandleFunc("POST /auth/register", api.HandleRegister)
	mux.HandleFunc("POST /auth/login", api.HandleLogin)
	mux.HandleFunc("GET /history", api.HandleTranscript)
	mux.HandleFunc("GET /debug/stats", api.HandleStats)
	mux.HandleFunc("GET /", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("Server is running."))
	})
	return mux
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type sessionResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	UserID  string `json:"userId,omitempty"`
	Role    string `json:"role,omitempty"`
	Message string `json:"message,omitempty"`
}

func (a *API) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, sessionResponse{Success: false, Message: "invalid request body"})
		return
	}

	session, err := a.accounts.Register(req.Email, req.Password, domain.Role(req.Role))
	if err != nil {
		a.log.Warn("Registration failed", "email", req.Email, "error", err)
		status := http.StatusBadRequest
		if errors.Is(err, relayerrors.ErrUserAlreadyExists) {
			status = http.StatusConflict
		}
		writeJSON(w, status, sessionResponse{Success: false, Message: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		Success: true,
		Token:   session.Token,
		UserID:  session.Identity.UserID,
		Role:    string(session.Identity.Role),
	})
}

func (a *API) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, sessionResponse{Success: false, Message: "invalid request body"})
		return
	}

	session, err := a.accounts.Login(req.Email, req.Password)
	if err != nil {
		// One generic message for unknown user and wrong password alike.
		writeJSON(w, http.StatusUnauthorized, sessionResponse{Success: false, Message: "invalid credentials"})
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		Success: true,
		Token:   session.Token,
		UserID:  session.Identity.UserID,
		Role:    string(session.Identity.Role),
	})
}

type transcriptResponse struct {
	Messages []repositories.StoredMessage `json:"messages"`
	Cursor   *string                      `json:"cursor,omitempty"`
}

// HandleTranscript serves a seeker's conversation history. Responders can
// read any conversation; a seeker only its own.
func (a *API) HandleTranscript(w http.ResponseWriter, r *http.Request) {
	identity, ok := a.bearerIdentity(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	seekerID := r.URL.Query().Get("seekerId")
	if identity.Role == domain.RoleSeeker {
		seekerID = identity.UserID
	}
	if seekerID == "" {
		http.Error(w, "seekerId is required", http.StatusBadRequest)
		return
	}

	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = lo.ToPtr(c)
	}

	messages, next, err := a.relay.Transcript(seekerID, cursor)
	if err != nil {
		a.log.Error("Transcript read failed", "seeker_id", seekerID, "error", err)
		http.Error(w, "transcript unavailable", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, transcriptResponse{Messages: messages, Cursor: next})
}

type statsResponse struct {
	Stats       observability.RelayStats `json:"stats"`
	Assignments map[string][]string      `json:"assignments"`
}

func (a *API) HandleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{
		Stats:       a.monitor.GetLatest(),
		Assignments: a.relay.AssignmentSnapshot(),
	})
}

func (a *API) bearerIdentity(r *http.Request) (domain.Identity, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return domain.Identity{}, false
	}
	token := strings.TrimPrefix(header, "Bearer ")
	identity, err := a.verifier.Verify(token)
	if err != nil {
		return domain.Identity{}, false
	}
	return identity, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
