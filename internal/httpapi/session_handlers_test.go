package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DavidYu75/intreview/internal/analysis"
	"github.com/DavidYu75/intreview/internal/session"
)

const testSecret = "test-secret-key"

type apiClient struct {
	t     *testing.T
	base  string
	token string
}

func (c apiClient) do(method, path string, out any) int {
	c.t.Helper()
	req, err := http.NewRequest(method, c.base+path, nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if out != nil && resp.StatusCode < 300 {
		if err := json.Unmarshal(body, out); err != nil {
			c.t.Fatalf("decode %s %s: %v (body %s)", method, path, err, body)
		}
	}
	return resp.StatusCode
}

func startSession(t *testing.T, c apiClient) string {
	t.Helper()
	var resp struct {
		SessionID string `json:"session_id"`
	}
	if code := c.do(http.MethodPost, "/api/sessions/start", &resp); code != http.StatusOK {
		t.Fatalf("start status = %d, want %d", code, http.StatusOK)
	}
	if resp.SessionID == "" {
		t.Fatal("start returned an empty session_id")
	}
	return resp.SessionID
}

func TestSessionLifecycle(t *testing.T) {
	srv, reg := newTestServer(t, RouterConfig{JWTSecret: testSecret})
	c := apiClient{t: t, base: srv.URL, token: signToken(t, testSecret, "user-1")}

	id := startSession(t, c)

	var info session.Info
	if code := c.do(http.MethodGet, "/api/sessions/"+id, &info); code != http.StatusOK {
		t.Fatalf("get status = %d", code)
	}
	if info.Status != session.StatusActive || info.Owner != "user-1" {
		t.Errorf("info = %+v, want active session owned by user-1", info)
	}

	if code := c.do(http.MethodGet, "/api/sessions/"+id+"/report", nil); code != http.StatusConflict {
		t.Errorf("report while active = %d, want %d", code, http.StatusConflict)
	}

	ctx := context.Background()
	s, err := reg.Get(id, "user-1")
	if err != nil {
		t.Fatalf("registry lookup: %v", err)
	}
	s.IngestFrame(ctx, []byte("centered"))
	s.IngestFrame(ctx, []byte("away"))
	s.IngestAudio(ctx, []byte("so um I think"))

	var first, second analysis.ReportEnvelope
	if code := c.do(http.MethodPost, "/api/sessions/"+id+"/end", &first); code != http.StatusOK {
		t.Fatalf("end status = %d", code)
	}
	if code := c.do(http.MethodPost, "/api/sessions/"+id+"/end", &second); code != http.StatusOK {
		t.Fatalf("second end status = %d", code)
	}

	if first.Analysis.EyeContact != 50 {
		t.Errorf("eye contact = %v, want 50", first.Analysis.EyeContact)
	}
	if first.Analysis.FillerCount != 1 {
		t.Errorf("filler count = %d, want 1", first.Analysis.FillerCount)
	}
	if first.Analysis.WordCount != 4 || second.Analysis.WordCount != 4 {
		t.Errorf("word counts = %d, %d, want 4 both times", first.Analysis.WordCount, second.Analysis.WordCount)
	}
	if first.Message == "" {
		t.Error("report envelope should carry a message")
	}

	var report analysis.ReportEnvelope
	if code := c.do(http.MethodGet, "/api/sessions/"+id+"/report", &report); code != http.StatusOK {
		t.Fatalf("report status = %d", code)
	}
	if report.SessionID != id {
		t.Errorf("report session_id = %q, want %q", report.SessionID, id)
	}
}

func TestSessionOwnership(t *testing.T) {
	srv, _ := newTestServer(t, RouterConfig{JWTSecret: testSecret})
	alice := apiClient{t: t, base: srv.URL, token: signToken(t, testSecret, "alice")}
	bob := apiClient{t: t, base: srv.URL, token: signToken(t, testSecret, "bob")}

	id := startSession(t, alice)

	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodGet, "/api/sessions/" + id},
		{http.MethodPost, "/api/sessions/" + id + "/end"},
		{http.MethodGet, "/api/sessions/" + id + "/report"},
	} {
		if code := bob.do(tc.method, tc.path, nil); code != http.StatusNotFound {
			t.Errorf("%s %s as another user = %d, want %d", tc.method, tc.path, code, http.StatusNotFound)
		}
	}

	var list struct {
		Sessions []session.Info `json:"sessions"`
	}
	if code := bob.do(http.MethodGet, "/api/sessions", &list); code != http.StatusOK {
		t.Fatalf("list status = %d", code)
	}
	if len(list.Sessions) != 0 {
		t.Errorf("bob sees %d sessions, want 0", len(list.Sessions))
	}

	if code := alice.do(http.MethodGet, "/api/sessions", &list); code != http.StatusOK {
		t.Fatalf("list status = %d", code)
	}
	if len(list.Sessions) != 1 || list.Sessions[0].ID != id {
		t.Errorf("alice sessions = %+v, want [%s]", list.Sessions, id)
	}
}

func TestSessionHandlersErrors(t *testing.T) {
	srv, reg := newTestServer(t, RouterConfig{})
	c := apiClient{t: t, base: srv.URL}

	tests := []struct {
		name     string
		method   string
		path     string
		wantCode int
	}{
		{"get unknown session", http.MethodGet, "/api/sessions/missing", http.StatusNotFound},
		{"end unknown session", http.MethodPost, "/api/sessions/missing/end", http.StatusNotFound},
		{"report unknown session", http.MethodGet, "/api/sessions/missing/report", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := c.do(tt.method, tt.path, nil); code != tt.wantCode {
				t.Errorf("status = %d, want %d", code, tt.wantCode)
			}
		})
	}

	t.Run("start while draining", func(t *testing.T) {
		reg.StartDraining()
		if code := c.do(http.MethodPost, "/api/sessions/start", nil); code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want %d", code, http.StatusServiceUnavailable)
		}
	})
}

func TestStartSessionLimit(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	reg := session.NewRegistry(session.NewEngine(session.Config{Decoder: stubDecoder{}}, logger), 1, logger)
	srv := httptest.NewServer(NewRouter(RouterConfig{}, logger, nil, nil, reg))
	defer srv.Close()
	c := apiClient{t: t, base: srv.URL}

	id := startSession(t, c)
	if code := c.do(http.MethodPost, "/api/sessions/start", nil); code != http.StatusTooManyRequests {
		t.Errorf("second start = %d, want %d", code, http.StatusTooManyRequests)
	}

	// ending the first session frees the slot
	if code := c.do(http.MethodPost, "/api/sessions/"+id+"/end", nil); code != http.StatusOK {
		t.Fatalf("end status = %d", code)
	}
	startSession(t, c)
}
