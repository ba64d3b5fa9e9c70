package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"proviant/internal/config"
	"proviant/internal/database"
	"proviant/internal/models"
	"proviant/internal/repository"
	"proviant/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type fakeRunner struct {
	result   models.TaskResult
	err      error
	calls    int
	lastTask string
}

func (f *fakeRunner) RunNow(ctx context.Context, taskID string) (models.TaskResult, error) {
	f.calls++
	f.lastTask = taskID
	return f.result, f.err
}

type testStack struct {
	server   *HTTPServer
	ts       *httptest.Server
	db       *database.DB
	items    *service.ItemService
	groups   *service.GroupService
	sessions *service.SessionService
	runner   *fakeRunner
	user     *models.User
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(":memory:", &logger)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	sessions := service.NewSessionService(repository.NewDiskSessionRepository(t.TempDir()), &logger)
	items := service.NewItemService(db, models.DefaultCatalog(), nil, nil, nil, &logger)
	groups := service.NewGroupService(db, models.DefaultCatalog(), &logger)
	users := service.NewUserService(db, &logger)
	runner := &fakeRunner{result: models.TaskResultNewData}

	cfg := config.APIConfig{
		Enabled: true,
		HTTP:    config.APIHTTPConfig{Enabled: true},
	}
	server := NewHTTPServer(cfg, items, groups, users, sessions, runner, &logger)
	ts := httptest.NewServer(server.server.Handler)
	t.Cleanup(ts.Close)

	ctx := context.Background()
	user := &models.User{TelegramID: 100, FirstName: "Аня"}
	if err := db.CreateOrUpdateUser(ctx, user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	active := &models.ActiveUser{UserID: user.ID, TelegramID: user.TelegramID, ChatID: 100, StartedAt: time.Now()}
	if err := sessions.SetActiveUser(ctx, active); err != nil {
		t.Fatalf("set active user: %v", err)
	}

	return &testStack{
		server:   server,
		ts:       ts,
		db:       db,
		items:    items,
		groups:   groups,
		sessions: sessions,
		runner:   runner,
		user:     user,
	}
}

// seedItem создаёт позицию через сервис, чтобы сработал инвентарь по
// умолчанию. expiresInDays < 0 означает позицию без срока годности.
func (st *testStack) seedItem(t *testing.T, name string, expiresInDays int) *models.Item {
	t.Helper()
	input := models.ItemInput{
		Name:     name,
		Category: "Молочное",
		Quantity: 1,
		Unit:     "л",
	}
	if expiresInDays >= 0 {
		exp := time.Now().AddDate(0, 0, expiresInDays)
		input.ExpiresAt = &exp
	}
	res, err := st.items.Create(context.Background(), st.user, input, models.DecisionCreateAnyway)
	if err != nil {
		t.Fatalf("seed item %q: %v", name, err)
	}
	if res.Item == nil {
		t.Fatalf("seed item %q: no item in result", name)
	}
	return res.Item
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode body: %v", err)
		}
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url, body string, out interface{}) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode body: %v", err)
		}
	}
	return resp.StatusCode
}

func TestListItems(t *testing.T) {
	st := newTestStack(t)
	st.seedItem(t, "Молоко", 2)
	st.seedItem(t, "Соль", -1)

	var body struct {
		Items []struct {
			Name     string `json:"name"`
			DaysLeft *int   `json:"days_left"`
		} `json:"items"`
	}
	status := getJSON(t, st.ts.URL+"/api/v1/items", &body)
	if status != http.StatusOK {
		t.Fatalf("unexpected status: %d", status)
	}
	if len(body.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(body.Items))
	}

	for _, it := range body.Items {
		switch it.Name {
		case "Молоко":
			if it.DaysLeft == nil || *it.DaysLeft != 2 {
				t.Fatalf("expected days_left=2 for Молоко, got %v", it.DaysLeft)
			}
		case "Соль":
			// Без срока годности запас дней не считается.
			if it.DaysLeft != nil {
				t.Fatalf("expected null days_left for Соль, got %d", *it.DaysLeft)
			}
		default:
			t.Fatalf("unexpected item %q", it.Name)
		}
	}
}

func TestListItemsNoActiveUser(t *testing.T) {
	st := newTestStack(t)
	if err := st.sessions.ClearActiveUser(context.Background()); err != nil {
		t.Fatalf("clear active user: %v", err)
	}

	status := getJSON(t, st.ts.URL+"/api/v1/items", nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}

func TestListItemsExplicitUser(t *testing.T) {
	st := newTestStack(t)
	st.seedItem(t, "Молоко", 2)

	other := &models.User{TelegramID: 200, FirstName: "Борис"}
	if err := st.db.CreateOrUpdateUser(context.Background(), other); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	var body struct {
		Items []json.RawMessage `json:"items"`
	}
	status := getJSON(t, fmt.Sprintf("%s/api/v1/items?user_id=%d", st.ts.URL, other.ID), &body)
	if status != http.StatusOK {
		t.Fatalf("unexpected status: %d", status)
	}
	if len(body.Items) != 0 {
		t.Fatalf("expected empty inventory for other user, got %d items", len(body.Items))
	}

	if status := getJSON(t, st.ts.URL+"/api/v1/items?user_id=abc", nil); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad user_id, got %d", status)
	}
	if status := getJSON(t, st.ts.URL+"/api/v1/items?user_id=9999", nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user_id, got %d", status)
	}
}

func TestCreateItem(t *testing.T) {
	st := newTestStack(t)

	var result struct {
		Outcome string       `json:"outcome"`
		Item    *models.Item `json:"item"`
	}
	status := postJSON(t, st.ts.URL+"/api/v1/items",
		`{"name":"Кефир","category":"Молочное","quantity":1,"unit":"л"}`, &result)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if result.Outcome != string(models.OutcomeCreated) {
		t.Fatalf("expected outcome created, got %q", result.Outcome)
	}
	if result.Item == nil || result.Item.ID == 0 {
		t.Fatalf("expected created item with id, got %+v", result.Item)
	}
}

func TestCreateItemDuplicateFlow(t *testing.T) {
	st := newTestStack(t)
	st.seedItem(t, "Молоко", 5)

	var first struct {
		Outcome   string `json:"outcome"`
		Duplicate *struct {
			CanMerge bool        `json:"can_merge"`
			Existing models.Item `json:"existing"`
		} `json:"duplicate"`
	}
	status := postJSON(t, st.ts.URL+"/api/v1/items",
		`{"name":"Молоко","category":"Молочное","quantity":1,"unit":"л"}`, &first)
	if status != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d", status)
	}
	if first.Outcome != string(models.OutcomeDuplicate) {
		t.Fatalf("expected outcome duplicate, got %q", first.Outcome)
	}
	if first.Duplicate == nil || !first.Duplicate.CanMerge {
		t.Fatalf("expected mergeable duplicate report, got %+v", first.Duplicate)
	}

	// Повтор запроса с решением завершает создание слиянием.
	var second struct {
		Outcome string       `json:"outcome"`
		Item    *models.Item `json:"item"`
	}
	status = postJSON(t, st.ts.URL+"/api/v1/items",
		`{"name":"Молоко","category":"Молочное","quantity":1,"unit":"л","decision":"merge"}`, &second)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for merge, got %d", status)
	}
	if second.Outcome != string(models.OutcomeMerged) {
		t.Fatalf("expected outcome merged, got %q", second.Outcome)
	}
	if second.Item == nil || second.Item.Quantity != 2 {
		t.Fatalf("expected merged quantity 2, got %+v", second.Item)
	}
}

func TestCreateItemValidation(t *testing.T) {
	st := newTestStack(t)

	cases := []struct {
		name string
		body string
	}{
		{"EmptyName", `{"name":"  ","category":"Молочное","quantity":1,"unit":"л"}`},
		{"UnknownCategory", `{"name":"Молоко","category":"Электроника","quantity":1,"unit":"шт"}`},
		{"BadDecision", `{"name":"Молоко","category":"Молочное","quantity":1,"unit":"л","decision":"maybe"}`},
		{"InvalidJSON", `{"name":`},
		{"UnknownField", `{"name":"Молоко","category":"Молочное","quantity":1,"unit":"л","extra":true}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if status := postJSON(t, st.ts.URL+"/api/v1/items", tc.body, nil); status != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", status)
			}
		})
	}
}

func TestDeleteItem(t *testing.T) {
	st := newTestStack(t)
	item := st.seedItem(t, "Молоко", 5)

	req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/v1/items/%d", st.ts.URL, item.ID), http.NoBody)
	resp, err := http.DefaultClient.Do(req)
	assert.NoError(t, err)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	// Повторное удаление той же позиции.
	resp2, err := http.DefaultClient.Do(req.Clone(context.Background()))
	assert.NoError(t, err)
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", resp2.StatusCode)
	}

	req3, _ := http.NewRequest(http.MethodDelete, st.ts.URL+"/api/v1/items/abc", http.NoBody)
	resp3, err := http.DefaultClient.Do(req3)
	assert.NoError(t, err)
	defer resp3.Body.Close()
	if resp3.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", resp3.StatusCode)
	}
}

func TestGetItemScoping(t *testing.T) {
	st := newTestStack(t)
	item := st.seedItem(t, "Молоко", 5)

	var view struct {
		ID       int64 `json:"id"`
		DaysLeft *int  `json:"days_left"`
	}
	status := getJSON(t, fmt.Sprintf("%s/api/v1/items/%d", st.ts.URL, item.ID), &view)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if view.ID != item.ID {
		t.Fatalf("expected item %d, got %d", item.ID, view.ID)
	}
	if view.DaysLeft == nil || *view.DaysLeft != 5 {
		t.Fatalf("expected days_left=5, got %v", view.DaysLeft)
	}

	other := &models.User{TelegramID: 200}
	if err := st.db.CreateOrUpdateUser(context.Background(), other); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	// Чужая позиция не раскрывается даже своим существованием.
	status = getJSON(t, fmt.Sprintf("%s/api/v1/items/%d?user_id=%d", st.ts.URL, item.ID, other.ID), nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign item, got %d", status)
	}
}

func TestExpiringWindow(t *testing.T) {
	st := newTestStack(t)
	st.seedItem(t, "Молоко", 1)
	st.seedItem(t, "Сыр", 10)
	st.seedItem(t, "Соль", -1)

	var body struct {
		HorizonDays int `json:"horizon_days"`
		Items       []struct {
			Name string `json:"name"`
		} `json:"items"`
	}
	status := getJSON(t, st.ts.URL+"/api/v1/items/expiring", &body)
	if status != http.StatusOK {
		t.Fatalf("unexpected status: %d", status)
	}
	if body.HorizonDays != models.AlertHorizonDays {
		t.Fatalf("expected default horizon %d, got %d", models.AlertHorizonDays, body.HorizonDays)
	}
	if len(body.Items) != 1 || body.Items[0].Name != "Молоко" {
		t.Fatalf("expected only Молоко in default window, got %+v", body.Items)
	}

	status = getJSON(t, st.ts.URL+"/api/v1/items/expiring?days=30", &body)
	if status != http.StatusOK {
		t.Fatalf("unexpected status: %d", status)
	}
	if len(body.Items) != 2 {
		t.Fatalf("expected 2 items in 30-day window, got %d", len(body.Items))
	}

	if status := getJSON(t, st.ts.URL+"/api/v1/items/expiring?days=abc", nil); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad days, got %d", status)
	}
	if status := getJSON(t, st.ts.URL+"/api/v1/items/expiring?days=-1", nil); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative days, got %d", status)
	}
}

func TestBulkDelete(t *testing.T) {
	st := newTestStack(t)
	a := st.seedItem(t, "Молоко", 5)
	b := st.seedItem(t, "Сыр", 5)

	var body struct {
		Deleted int `json:"deleted"`
	}
	payload := fmt.Sprintf(`{"item_ids":[%d,%d]}`, a.ID, b.ID)
	status := postJSON(t, st.ts.URL+"/api/v1/items/bulk/delete", payload, &body)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body.Deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", body.Deleted)
	}

	if status := postJSON(t, st.ts.URL+"/api/v1/items/bulk/delete", `{"item_ids":[]}`, nil); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty ids, got %d", status)
	}
}

func TestBulkAddToGroup(t *testing.T) {
	st := newTestStack(t)
	a := st.seedItem(t, "Молоко", 5)
	b := st.seedItem(t, "Сыр", 5)

	group := &models.Group{UserID: st.user.ID, Name: "Завтрак", Category: "Молочное"}
	if err := st.groups.Create(context.Background(), group); err != nil {
		t.Fatalf("seed group: %v", err)
	}

	var body struct {
		Outcome string `json:"outcome"`
		Added   int    `json:"added"`
	}
	payload := fmt.Sprintf(`{"item_ids":[%d,%d],"group_id":%d}`, a.ID, b.ID, group.ID)
	status := postJSON(t, st.ts.URL+"/api/v1/items/bulk/group", payload, &body)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body.Outcome != string(models.BulkAllAdded) || body.Added != 2 {
		t.Fatalf("expected all_added/2, got %s/%d", body.Outcome, body.Added)
	}

	// Повтор того же набора целиком попадает в already_present.
	status = postJSON(t, st.ts.URL+"/api/v1/items/bulk/group", payload, &body)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body.Outcome != string(models.BulkAllPresent) {
		t.Fatalf("expected all_already_present, got %s", body.Outcome)
	}

	missing := fmt.Sprintf(`{"item_ids":[%d],"group_id":9999}`, a.ID)
	if status := postJSON(t, st.ts.URL+"/api/v1/items/bulk/group", missing, nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown group, got %d", status)
	}
}

func TestGroups(t *testing.T) {
	st := newTestStack(t)
	group := &models.Group{UserID: st.user.ID, Name: "Завтрак", Category: "Молочное"}
	if err := st.groups.Create(context.Background(), group); err != nil {
		t.Fatalf("seed group: %v", err)
	}

	var body struct {
		Groups []models.Group `json:"groups"`
	}
	status := getJSON(t, st.ts.URL+"/api/v1/groups", &body)
	if status != http.StatusOK {
		t.Fatalf("unexpected status: %d", status)
	}
	if len(body.Groups) != 1 || body.Groups[0].Name != "Завтрак" {
		t.Fatalf("unexpected groups: %+v", body.Groups)
	}
}

func TestRefresh(t *testing.T) {
	st := newTestStack(t)

	var body struct {
		Result string `json:"result"`
	}
	status := postJSON(t, st.ts.URL+"/api/v1/refresh", "", &body)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body.Result != string(models.TaskResultNewData) {
		t.Fatalf("unexpected result %q", body.Result)
	}
	if st.runner.calls != 1 {
		t.Fatalf("expected 1 runner call, got %d", st.runner.calls)
	}

	if status := getJSON(t, st.ts.URL+"/api/v1/refresh", nil); status != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", status)
	}
}

func TestHealthz(t *testing.T) {
	st := newTestStack(t)
	if status := getJSON(t, st.ts.URL+"/healthz", nil); status != http.StatusOK {
		t.Fatalf("unexpected status: %d", status)
	}
}

func TestReadyz(t *testing.T) {
	st := newTestStack(t)
	if status := getJSON(t, st.ts.URL+"/readyz", nil); status != http.StatusOK {
		t.Fatalf("unexpected status: %d", status)
	}

	// После закрытия базы готовность пропадает.
	st.db.Close()
	if status := getJSON(t, st.ts.URL+"/readyz", nil); status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 after db close, got %d", status)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	st := newTestStack(t)

	req, _ := http.NewRequest(http.MethodPut, st.ts.URL+"/api/v1/items", http.NoBody)
	resp, err := http.DefaultClient.Do(req)
	assert.NoError(t, err)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}

	if status := postJSON(t, st.ts.URL+"/api/v1/groups", "{}", nil); status != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for POST groups, got %d", status)
	}
}

// newAuthStack поднимает тот же стек, но с включённой авторизацией.
func newAuthStack(t *testing.T, keys []config.APIClientKey, rps float64, burst int) *testStack {
	t.Helper()
	st := newTestStack(t)

	cfg := config.APIConfig{
		Enabled: true,
		HTTP:    config.APIHTTPConfig{Enabled: true},
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			HeaderExtra:  "x-api-extra",
			APIKeys:      keys,
		},
		RateLimit: config.APIRateLimitConfig{RPS: rps, Burst: burst},
	}
	logger := zerolog.New(io.Discard)
	users := service.NewUserService(st.db, &logger)
	server := NewHTTPServer(cfg, st.items, st.groups, users, st.sessions, st.runner, &logger)
	ts := httptest.NewServer(server.server.Handler)
	t.Cleanup(ts.Close)
	st.server = server
	st.ts = ts
	return st
}

func TestAuth(t *testing.T) {
	st := newAuthStack(t, []config.APIClientKey{
		{Key: "valid-key", Extra: "valid-extra", Permissions: []string{"read:items"}},
		{Key: "admin-key", Extra: "admin-extra"},
	}, 0, 0)

	do := func(t *testing.T, method, path, key, extra string) int {
		t.Helper()
		req, _ := http.NewRequest(method, st.ts.URL+path, http.NoBody)
		if key != "" {
			req.Header.Set("x-api-key", key)
		}
		if extra != "" {
			req.Header.Set("x-api-extra", extra)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		return resp.StatusCode
	}

	t.Run("MissingHeaders", func(t *testing.T) {
		if status := do(t, http.MethodGet, "/api/v1/items", "", ""); status != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", status)
		}
	})

	t.Run("InvalidKey", func(t *testing.T) {
		if status := do(t, http.MethodGet, "/api/v1/items", "wrong", "valid-extra"); status != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", status)
		}
	})

	t.Run("InvalidExtra", func(t *testing.T) {
		if status := do(t, http.MethodGet, "/api/v1/items", "valid-key", "wrong"); status != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", status)
		}
	})

	t.Run("ValidKey", func(t *testing.T) {
		if status := do(t, http.MethodGet, "/api/v1/items", "valid-key", "valid-extra"); status != http.StatusOK {
			t.Errorf("expected 200, got %d", status)
		}
	})

	t.Run("PermissionDenied", func(t *testing.T) {
		if status := do(t, http.MethodPost, "/api/v1/refresh", "valid-key", "valid-extra"); status != http.StatusForbidden {
			t.Errorf("expected 403, got %d", status)
		}
	})

	t.Run("EmptyPermissionsAllowAll", func(t *testing.T) {
		if status := do(t, http.MethodPost, "/api/v1/refresh", "admin-key", "admin-extra"); status != http.StatusOK {
			t.Errorf("expected 200, got %d", status)
		}
	})

	t.Run("HealthzBypassesAuth", func(t *testing.T) {
		if status := do(t, http.MethodGet, "/healthz", "", ""); status != http.StatusOK {
			t.Errorf("expected 200, got %d", status)
		}
	})
}

func TestRateLimit(t *testing.T) {
	st := newAuthStack(t, []config.APIClientKey{
		{Key: "valid-key", Extra: "valid-extra"},
	}, 1, 1)

	do := func() int {
		req, _ := http.NewRequest(http.MethodGet, st.ts.URL+"/api/v1/items", http.NoBody)
		req.Header.Set("x-api-key", "valid-key")
		req.Header.Set("x-api-extra", "valid-extra")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		return resp.StatusCode
	}

	if status := do(); status != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", status)
	}
	if status := do(); status != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on burst overflow, got %d", status)
	}
}

func TestRequiredPermissionHTTP(t *testing.T) {
	cases := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodGet, "/api/v1/items", "read:items"},
		{http.MethodGet, "/api/v1/items/expiring", "read:items"},
		{http.MethodGet, "/api/v1/items/42", "read:items"},
		{http.MethodPost, "/api/v1/items", "write:items"},
		{http.MethodDelete, "/api/v1/items/42", "write:items"},
		{http.MethodPost, "/api/v1/items/bulk/delete", "write:items"},
		{http.MethodGet, "/api/v1/groups", "read:groups"},
		{http.MethodPost, "/api/v1/refresh", "trigger:refresh"},
		{http.MethodGet, "/healthz", ""},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(tc.method, tc.path, http.NoBody)
		if got := requiredPermissionHTTP(r); got != tc.want {
			t.Errorf("%s %s: expected %q, got %q", tc.method, tc.path, tc.want, got)
		}
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	cases := map[string]string{
		"/api/v1/items":          "/api/v1/items",
		"/api/v1/items/42":       "/api/v1/items/:id",
		"/api/v1/items/expiring": "/api/v1/items/expiring",
		"/healthz":               "/healthz",
	}
	for in, want := range cases {
		if got := normalizeEndpoint(in); got != want {
			t.Errorf("normalizeEndpoint(%q) = %q, want %q", in, got, want)
		}
	}
}
