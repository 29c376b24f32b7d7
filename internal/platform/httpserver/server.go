package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	exchangeservice "pollstack/contexts/commerce/exchange-service"
	exchangehttp "pollstack/contexts/commerce/exchange-service/transport/http"
	ledgerservice "pollstack/contexts/credit-ledger/ledger-service"
	ledgerhttp "pollstack/contexts/credit-ledger/ledger-service/transport/http"
	lotteryservice "pollstack/contexts/credit-ledger/lottery-service"
	lotteryentities "pollstack/contexts/credit-ledger/lottery-service/domain/entities"
	surveyservice "pollstack/contexts/survey-content/survey-service"
	surveyhttp "pollstack/contexts/survey-content/survey-service/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "pollstack/internal/platform/httpserver/docs"
)

// Modules groups the bounded contexts served over HTTP.
type Modules struct {
	Ledger   ledgerservice.Module
	Lottery  lotteryservice.Module
	Surveys  surveyservice.Module
	Exchange exchangeservice.Module
	// Ready reports whether every backing store is reachable. Nil means always ready.
	Ready func(ctx context.Context) error
}

type Server struct {
	mux     *http.ServeMux
	logger  *slog.Logger
	addr    string
	modules Modules
	metrics http.Handler
	http    *http.Server
}

// New builds the router. metrics may be nil when no registry is exposed.
func New(modules Modules, metrics http.Handler, logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:     http.NewServeMux(),
		logger:  logger,
		addr:    addr,
		modules: modules,
		metrics: metrics,
	}
	s.registerRoutes()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return s.http.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}

	s.mux.HandleFunc("POST /v1/subjects/{subject_id}", s.handleOpenSubject)
	s.mux.HandleFunc("GET /v1/subjects/{subject_id}/balance", s.handleBalance)
	s.mux.HandleFunc("GET /v1/subjects/{subject_id}/history", s.handleHistory)
	s.mux.HandleFunc("GET /v1/subjects/{subject_id}/audit", s.handleAudit)
	s.mux.HandleFunc("POST /v1/subjects/{subject_id}/adjustments", s.handleAdjust)

	s.mux.HandleFunc("POST /v1/entities/{kind}", s.handleUpload)
	s.mux.HandleFunc("GET /v1/entities/{kind}/{entity_id}", s.handleGetEntity)
	s.mux.HandleFunc("POST /v1/entities/{kind}/{entity_id}/participations", s.handleParticipate)
	s.mux.HandleFunc("POST /v1/entities/{kind}/{entity_id}/close", s.handleClose)
	s.mux.HandleFunc("GET /v1/entities/{kind}/{entity_id}/draw", s.handleGetDraw)
	s.mux.HandleFunc("PATCH /v1/entities/research/{entity_id}", s.handleEdit)
	s.mux.HandleFunc("DELETE /v1/entities/research/{entity_id}", s.handleDelete)
	s.mux.HandleFunc("POST /v1/entities/research/{entity_id}/pull-up", s.handlePullUp)
	s.mux.HandleFunc("POST /v1/entities/vote/{entity_id}/stat-tickets", s.handleInquireStat)

	s.mux.HandleFunc("POST /v1/exchange/orders", s.handleExchange)
	s.mux.HandleFunc("GET /v1/exchange/orders", s.handleListOrders)

	s.mux.HandleFunc("POST /v1/admin/sweep", s.handleSweep)
}

// handleHealth godoc
// @Summary Liveness probe
// @Tags ops
// @Success 200 {object} map[string]string
// @Router /healthz [get]
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary Readiness probe over every store
// @Tags ops
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /readyz [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.modules.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.modules.Ready(ctx); err != nil {
			s.logger.Warn("readiness check failed",
				"event", "http_not_ready",
				"module", "internal/platform/httpserver",
				"layer", "platform",
				"error", err.Error(),
			)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleOpenSubject(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	resp, err := s.modules.Ledger.Handler.OpenSubjectHandler(r.Context(), r.PathValue("subject_id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// handleBalance godoc
// @Summary Current credit balance of a subject
// @Tags ledger
// @Param subject_id path string true "Subject ID"
// @Success 200 {object} ledgerhttp.BalanceResponse
// @Failure 404 {object} ledgerhttp.ErrorResponse
// @Router /v1/subjects/{subject_id}/balance [get]
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	subjectID := r.PathValue("subject_id")
	if !canRead(r, actorID, subjectID) {
		writeError(w, http.StatusForbidden, "forbidden", "subjects may only read their own ledger")
		return
	}
	resp, err := s.modules.Ledger.Handler.BalanceHandler(r.Context(), subjectID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHistory godoc
// @Summary Page through a subject's ledger entries
// @Tags ledger
// @Param subject_id path string true "Subject ID"
// @Param cursor query string false "Entry ID to continue from"
// @Param limit query int false "Page size"
// @Param direction query string false "forward or backward"
// @Success 200 {object} ledgerhttp.HistoryResponse
// @Router /v1/subjects/{subject_id}/history [get]
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	subjectID := r.PathValue("subject_id")
	if !canRead(r, actorID, subjectID) {
		writeError(w, http.StatusForbidden, "forbidden", "subjects may only read their own ledger")
		return
	}
	query := r.URL.Query()
	req := ledgerhttp.HistoryRequest{
		Cursor:    query.Get("cursor"),
		Direction: query.Get("direction"),
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		req.Limit = limit
	}
	resp, err := s.modules.Ledger.Handler.HistoryHandler(r.Context(), subjectID, req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	resp, err := s.modules.Ledger.Handler.AuditHandler(r.Context(), r.PathValue("subject_id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAdjust godoc
// @Summary Administrative balance adjustment
// @Tags ledger
// @Param subject_id path string true "Subject ID"
// @Param request body ledgerhttp.AdjustRequest true "Adjustment"
// @Success 200 {object} ledgerhttp.EntryResponse
// @Router /v1/subjects/{subject_id}/adjustments [post]
func (s *Server) handleAdjust(w http.ResponseWriter, r *http.Request) {
	adminID, ok := requireAdmin(w, r)
	if !ok {
		return
	}
	var req ledgerhttp.AdjustRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.Ledger.Handler.AdjustHandler(r.Context(), adminID, r.PathValue("subject_id"), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleUpload godoc
// @Summary Publish a research or vote and pay its upload cost
// @Tags surveys
// @Param kind path string true "research or vote"
// @Param Idempotency-Key header string false "Makes a retried upload pay once"
// @Param request body surveyhttp.UploadRequest true "Entity"
// @Success 201 {object} surveyhttp.UploadResponse
// @Success 200 {object} surveyhttp.UploadResponse
// @Failure 402 {object} surveyhttp.ErrorResponse
// @Router /v1/entities/{kind} [post]
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req surveyhttp.UploadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	resp, err := s.modules.Surveys.Handler.UploadHandler(r.Context(), actorID, r.PathValue("kind"), idempotencyKey, req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	resp, err := s.modules.Surveys.Handler.GetEntityHandler(r.Context(), r.PathValue("kind"), r.PathValue("entity_id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleParticipate godoc
// @Summary Participate in a research or vote
// @Tags surveys
// @Param kind path string true "research or vote"
// @Param entity_id path string true "Entity ID"
// @Success 201 {object} surveyhttp.ParticipateResponse
// @Failure 409 {object} surveyhttp.ErrorResponse
// @Router /v1/entities/{kind}/{entity_id}/participations [post]
func (s *Server) handleParticipate(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	resp, err := s.modules.Surveys.Handler.ParticipateHandler(r.Context(), actorID, r.PathValue("kind"), r.PathValue("entity_id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// handleClose godoc
// @Summary Close an entity and pay its lottery winners
// @Tags surveys
// @Param kind path string true "research or vote"
// @Param entity_id path string true "Entity ID"
// @Success 200 {object} surveyhttp.CloseResponse
// @Failure 403 {object} surveyhttp.ErrorResponse
// @Router /v1/entities/{kind}/{entity_id}/close [post]
func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req surveyhttp.CloseRequest
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}
	skipAuthorCheck := req.SkipAuthorCheck && isAdmin(r)
	resp, err := s.modules.Surveys.Handler.CloseHandler(r.Context(), actorID, r.PathValue("kind"), r.PathValue("entity_id"), skipAuthorCheck)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type drawResponse struct {
	DrawID       string    `json:"draw_id"`
	EntityID     string    `json:"entity_id"`
	EntityKind   string    `json:"entity_kind"`
	RewardAmount int64     `json:"reward_amount"`
	Winners      []string  `json:"winners"`
	DrawnAt      time.Time `json:"drawn_at"`
}

func (s *Server) handleGetDraw(w http.ResponseWriter, r *http.Request) {
	draw, err := s.modules.Lottery.Draws.GetDraw(r.Context(), lotteryentities.EntityKind(r.PathValue("kind")), r.PathValue("entity_id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, drawResponse{
		DrawID:       draw.DrawID,
		EntityID:     draw.EntityID,
		EntityKind:   string(draw.EntityKind),
		RewardAmount: draw.RewardAmount,
		Winners:      draw.Winners,
		DrawnAt:      draw.DrawnAt,
	})
}

func (s *Server) handlePullUp(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req surveyhttp.PullUpRequest
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.Surveys.Handler.PullUpHandler(r.Context(), actorID, r.PathValue("entity_id"), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleEdit godoc
// @Summary Edit an open research; only a larger lottery pool is charged
// @Tags surveys
// @Param entity_id path string true "Entity ID"
// @Param request body surveyhttp.EditRequest true "Changes"
// @Success 200 {object} surveyhttp.ChargeResponse
// @Failure 402 {object} surveyhttp.ErrorResponse
// @Router /v1/entities/research/{entity_id} [patch]
func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req surveyhttp.EditRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.Surveys.Handler.EditHandler(r.Context(), actorID, r.PathValue("entity_id"), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDelete godoc
// @Summary Soft-delete a research
// @Tags surveys
// @Param entity_id path string true "Entity ID"
// @Success 200 {object} surveyhttp.DeleteResponse
// @Failure 403 {object} surveyhttp.ErrorResponse
// @Router /v1/entities/research/{entity_id} [delete]
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	resp, err := s.modules.Surveys.Handler.DeleteHandler(r.Context(), actorID, r.PathValue("entity_id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleInquireStat(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	resp, err := s.modules.Surveys.Handler.InquireStatHandler(r.Context(), actorID, r.PathValue("entity_id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleExchange godoc
// @Summary Exchange credit for a product
// @Tags exchange
// @Param Idempotency-Key header string true "Idempotency key"
// @Param request body exchangehttp.ExchangeRequest true "Product"
// @Success 201 {object} exchangehttp.ExchangeResponse
// @Success 200 {object} exchangehttp.ExchangeResponse
// @Failure 409 {object} exchangehttp.ErrorResponse
// @Router /v1/exchange/orders [post]
func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey == "" {
		writeError(w, http.StatusBadRequest, "idempotency_key_required", "Idempotency-Key header is required")
		return
	}
	var req exchangehttp.ExchangeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.Exchange.Handler.ExchangeHandler(r.Context(), actorID, idempotencyKey, req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		limit = parsed
	}
	resp, err := s.modules.Exchange.Handler.ListOrdersHandler(r.Context(), actorID, limit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSweep godoc
// @Summary Close overdue entities and distribute every pending lottery
// @Tags ops
// @Success 200 {object} surveyhttp.SweepResponse
// @Router /v1/admin/sweep [post]
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	resp, err := s.modules.Surveys.Handler.SweepHandler(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
