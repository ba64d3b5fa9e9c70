package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"proviant/internal/config"
	"proviant/internal/database"
	"proviant/internal/domain"
	"proviant/internal/expiry"
	"proviant/internal/metrics"
	"proviant/internal/models"
	"proviant/internal/scheduler"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// refreshRunner is the slice of the task runner the API needs for the
// manual refresh trigger.
type refreshRunner interface {
	RunNow(ctx context.Context, taskID string) (models.TaskResult, error)
}

// HTTPServer отдаёт инвентарь наружу: дашборды и скрипты ходят сюда
// вместо телеграма. Авторизация по API-ключам с правами на ключ.
type HTTPServer struct {
	cfg      config.APIConfig
	items    domain.ItemService
	groups   domain.GroupService
	users    domain.UserService
	sessions domain.SessionManager
	runner   refreshRunner
	logger   *zerolog.Logger
	server   *http.Server
	auth     *HTTPAuth
	now      func() time.Time
}

func NewHTTPServer(
	cfg config.APIConfig,
	items domain.ItemService,
	groups domain.GroupService,
	users domain.UserService,
	sessions domain.SessionManager,
	runner refreshRunner,
	logger *zerolog.Logger,
) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{
		cfg:      cfg,
		items:    items,
		groups:   groups,
		users:    users,
		sessions: sessions,
		runner:   runner,
		logger:   logger,
		now:      time.Now,
	}
	srv.auth = NewHTTPAuth(cfg)

	mux.HandleFunc("/api/v1/items", srv.handleItems)
	mux.HandleFunc("/api/v1/items/expiring", srv.handleItemsExpiring)
	mux.HandleFunc("/api/v1/items/bulk/group", srv.handleBulkGroup)
	mux.HandleFunc("/api/v1/items/bulk/delete", srv.handleBulkDelete)
	mux.HandleFunc("/api/v1/items/", srv.handleItemByID)
	mux.HandleFunc("/api/v1/groups", srv.handleGroups)
	mux.HandleFunc("/api/v1/refresh", srv.handleRefresh)
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/readyz", srv.handleReady)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// itemView дополняет позицию вычисленным запасом дней. null - без срока.
type itemView struct {
	models.Item
	DaysLeft *int `json:"days_left"`
}

func (s *HTTPServer) itemViews(items []models.Item) []itemView {
	ref := s.now()
	views := make([]itemView, 0, len(items))
	for i := range items {
		v := itemView{Item: items[i]}
		if days, ok := expiry.ItemDaysUntil(&items[i], ref); ok {
			d := days
			v.DaysLeft = &d
		}
		views = append(views, v)
	}
	return views
}

var (
	errBadUserID    = errors.New("invalid user_id")
	errNoActiveUser = errors.New("no active user")
)

// resolveUser находит владельца инвентаря: либо явный user_id из запроса,
// либо активный пользователь трекера.
func (s *HTTPServer) resolveUser(r *http.Request) (*models.User, error) {
	if raw := strings.TrimSpace(r.URL.Query().Get("user_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return nil, errBadUserID
		}
		return s.users.GetUserByID(r.Context(), id)
	}

	active, err := s.sessions.ActiveUser(r.Context())
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, errNoActiveUser
	}
	return s.users.GetUserByID(r.Context(), active.UserID)
}

func (s *HTTPServer) writeUserError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBadUserID):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errNoActiveUser), errors.Is(err, database.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrItemNotFound),
		errors.Is(err, database.ErrGroupNotFound),
		errors.Is(err, database.ErrInventoryNotFound),
		errors.Is(err, database.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrEmptyName),
		errors.Is(err, database.ErrInvalidQuantity),
		errors.Is(err, database.ErrInvalidCategory),
		errors.Is(err, database.ErrUnitNotAllowed):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrInventoryFull),
		errors.Is(err, database.ErrMergeNotAllowed),
		errors.Is(err, database.ErrConcurrentModification):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *HTTPServer) handleItems(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listItems(w, r)
	case http.MethodPost:
		s.createItem(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) listItems(w http.ResponseWriter, r *http.Request) {
	user, err := s.resolveUser(r)
	if err != nil {
		s.writeUserError(w, err)
		return
	}

	items, err := s.items.List(r.Context(), user.ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": s.itemViews(items)})
}

func (s *HTTPServer) createItem(w http.ResponseWriter, r *http.Request) {
	user, err := s.resolveUser(r)
	if err != nil {
		s.writeUserError(w, err)
		return
	}

	type createRequest struct {
		models.ItemInput
		Decision models.CreateDecision `json:"decision,omitempty"`
	}

	var body createRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	switch body.Decision {
	case models.DecisionNone, models.DecisionMerge, models.DecisionCreateAnyway, models.DecisionCancel:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown decision: %s", body.Decision))
		return
	}

	result, err := s.items.Create(r.Context(), user, body.ItemInput, body.Decision)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	// Найденный дубликат отдаём как конфликт: клиент повторяет запрос
	// с полем decision.
	status := http.StatusOK
	switch result.Outcome {
	case models.OutcomeCreated:
		status = http.StatusCreated
	case models.OutcomeDuplicate:
		status = http.StatusConflict
	}
	writeJSON(w, status, result)
}

func (s *HTTPServer) handleItemsExpiring(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	user, err := s.resolveUser(r)
	if err != nil {
		s.writeUserError(w, err)
		return
	}

	days := models.AlertHorizonDays
	if raw := strings.TrimSpace(r.URL.Query().Get("days")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid days")
			return
		}
		days = parsed
	}

	items, err := s.items.ListExpiring(r.Context(), user.ID, days)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"horizon_days": days,
		"items":        s.itemViews(items),
	})
}

func (s *HTTPServer) handleItemByID(w http.ResponseWriter, r *http.Request) {
	const prefix = "/api/v1/items/"
	rawID := strings.TrimPrefix(r.URL.Path, prefix)
	if rawID == "" || strings.Contains(rawID, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	user, err := s.resolveUser(r)
	if err != nil {
		s.writeUserError(w, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		item, err := s.items.Get(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		if item.UserID != user.ID {
			writeError(w, http.StatusNotFound, database.ErrItemNotFound.Error())
			return
		}
		views := s.itemViews([]models.Item{*item})
		writeJSON(w, http.StatusOK, views[0])
	case http.MethodDelete:
		if err := s.items.Delete(r.Context(), user.ID, id); err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleBulkGroup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	user, err := s.resolveUser(r)
	if err != nil {
		s.writeUserError(w, err)
		return
	}

	type request struct {
		ItemIDs []int64 `json:"item_ids"`
		GroupID int64   `json:"group_id"`
	}
	var body request
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(body.ItemIDs) == 0 {
		writeError(w, http.StatusBadRequest, "item_ids is required")
		return
	}
	if body.GroupID == 0 {
		writeError(w, http.StatusBadRequest, "group_id is required")
		return
	}

	result, err := s.items.BulkAddToGroup(r.Context(), user.ID, body.ItemIDs, body.GroupID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	user, err := s.resolveUser(r)
	if err != nil {
		s.writeUserError(w, err)
		return
	}

	type request struct {
		ItemIDs []int64 `json:"item_ids"`
	}
	var body request
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(body.ItemIDs) == 0 {
		writeError(w, http.StatusBadRequest, "item_ids is required")
		return
	}

	deleted, err := s.items.BulkDelete(r.Context(), user.ID, body.ItemIDs)
	if err != nil {
		// Часть позиций могла удалиться, счётчик отдаём вместе с ошибкой.
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"deleted": deleted,
			"error":   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

func (s *HTTPServer) handleGroups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	user, err := s.resolveUser(r)
	if err != nil {
		s.writeUserError(w, err)
		return
	}

	groups, err := s.groups.List(r.Context(), user.ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (s *HTTPServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	result, err := s.runner.RunNow(r.Context(), scheduler.TaskExpiryRefresh)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": string(result)})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady отвечает 200 только когда база доступна.
func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.users.GetAllUsers(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HTTPAuth provides API-key auth and per-key rate limiting for HTTP endpoints.
type HTTPAuth struct {
	cfg      config.APIConfig
	clients  map[string]config.APIClientKey
	limiters sync.Map // map[string]*rate.Limiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}
	return &HTTPAuth{cfg: cfg, clients: m}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.cfg.Enabled || !a.cfg.HTTP.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		// Пробы живости ходят без ключей.
		if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" {
			next.ServeHTTP(w, r)
			return
		}

		if a.cfg.Auth.Enabled {
			if err := a.checkAuth(r); err != nil {
				statusCode := http.StatusUnauthorized
				if err == errPermissionDenied {
					statusCode = http.StatusForbidden
				}
				writeError(w, statusCode, err.Error())
				return
			}
		}

		if err := a.checkRateLimit(r); err != nil {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

var errPermissionDenied = fmt.Errorf("permission denied")

func (a *HTTPAuth) checkAuth(r *http.Request) error {
	apiKeyHeader := strings.TrimSpace(strings.ToLower(a.cfg.Auth.HeaderAPIKey))
	if apiKeyHeader == "" {
		apiKeyHeader = "x-api-key"
	}
	extraHeader := strings.TrimSpace(strings.ToLower(a.cfg.Auth.HeaderExtra))
	if extraHeader == "" {
		extraHeader = "x-api-extra"
	}

	apiKey := strings.TrimSpace(r.Header.Get(apiKeyHeader))
	extra := strings.TrimSpace(r.Header.Get(extraHeader))
	if apiKey == "" || extra == "" {
		return fmt.Errorf("missing api key headers")
	}

	client, ok := a.clients[apiKey]
	if !ok {
		return fmt.Errorf("invalid api key")
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return fmt.Errorf("invalid extra header")
	}

	return a.checkPermissions(client, r)
}

func (a *HTTPAuth) checkPermissions(client config.APIClientKey, r *http.Request) error {
	required := requiredPermissionHTTP(r)
	if required == "" {
		return nil
	}
	// Ключ без списка прав может всё.
	if len(client.Permissions) == 0 {
		return nil
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return nil
		}
	}
	return errPermissionDenied
}

func requiredPermissionHTTP(r *http.Request) string {
	path := r.URL.Path
	switch {
	case path == "/api/v1/refresh":
		return "trigger:refresh"
	case path == "/api/v1/groups":
		return "read:groups"
	case strings.HasPrefix(path, "/api/v1/items"):
		if r.Method == http.MethodGet {
			return "read:items"
		}
		return "write:items"
	}
	return ""
}

func (a *HTTPAuth) checkRateLimit(r *http.Request) error {
	if a.cfg.RateLimit.RPS <= 0 {
		return nil
	}

	key := a.clientKey(r)
	lim := a.getLimiter(key)
	if !lim.Allow() {
		return fmt.Errorf("rate limit exceeded")
	}
	return nil
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	apiKeyHeader := strings.TrimSpace(strings.ToLower(a.cfg.Auth.HeaderAPIKey))
	if apiKeyHeader == "" {
		apiKeyHeader = "x-api-key"
	}

	if apiKey := strings.TrimSpace(r.Header.Get(apiKeyHeader)); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return "unknown"
}

func (a *HTTPAuth) getLimiter(key string) *rate.Limiter {
	if v, ok := a.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}

	burst := a.cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 5
	}

	lim := rate.NewLimiter(rate.Limit(a.cfg.RateLimit.RPS), burst)
	actual, loaded := a.limiters.LoadOrStore(key, lim)
	if loaded {
		return actual.(*rate.Limiter)
	}
	return lim
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		metrics.IncHTTP(normalizeEndpoint(r.URL.Path))
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// normalizeEndpoint схлопывает числовые id, чтобы метрика не разрасталась
// по лейблам.
func normalizeEndpoint(path string) string {
	const prefix = "/api/v1/items/"
	if strings.HasPrefix(path, prefix) {
		tail := strings.TrimPrefix(path, prefix)
		if _, err := strconv.ParseInt(tail, 10, 64); err == nil {
			return prefix + ":id"
		}
	}
	return path
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
