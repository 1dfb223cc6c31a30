package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	healthuc "github.com/kailas-cloud/ragdex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/ragdex/internal/usecase/ingest"
	usageuc "github.com/kailas-cloud/ragdex/internal/usecase/usage"
)

type mockPipeline struct {
	rc  domain.RetrievalContext
	err error

	gotQuestion string
	gotTopK     *int
}

func (m *mockPipeline) Retrieve(_ context.Context, question string, topK *int) (domain.RetrievalContext, error) {
	m.gotQuestion = question
	m.gotTopK = topK
	return m.rc, m.err
}

type mockIngester struct {
	res    ingestuc.Result
	err    error
	gotDoc domain.Document
}

func (m *mockIngester) Ingest(_ context.Context, doc domain.Document) (ingestuc.Result, error) {
	m.gotDoc = doc
	if m.err != nil {
		return ingestuc.Result{}, m.err
	}
	res := m.res
	res.DocumentID = doc.ID
	return res, nil
}

type mockAdmin struct {
	stats      domain.Stats
	resetErr   error
	backupPath string
}

func (m *mockAdmin) Stats(_ context.Context) domain.Stats { return m.stats }
func (m *mockAdmin) Reset(_ context.Context) error        { return m.resetErr }
func (m *mockAdmin) Backup(_ context.Context, path string) error {
	m.backupPath = path
	return nil
}
func (m *mockAdmin) Restore(_ context.Context, path string) error { return nil }

type mockPinger struct{ err error }

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

func newTestServer(p *mockPipeline, ing *mockIngester, adm *mockAdmin) *Server {
	return NewServer(
		p, ing, adm,
		usageuc.New(nil),
		healthuc.New(&mockPinger{}, nil, nil),
		"/tmp/ragdex-backups",
		zap.NewNop(),
	)
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body == "" {
		rd = bytes.NewReader(nil)
	} else {
		rd = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, rd)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestIngestDocument(t *testing.T) {
	ing := &mockIngester{res: ingestuc.Result{ChunksCreated: 5, ChunksIndexed: 5}}
	s := newTestServer(&mockPipeline{}, ing, &mockAdmin{})
	h := s.Router(nil)

	rr := doRequest(t, h, http.MethodPost, "/api/documents",
		`{"source_name":"handbook.pdf","text":"some document text","format":"pdf"}`)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if ing.gotDoc.Format != domain.FormatPDF {
		t.Fatalf("format = %q", ing.gotDoc.Format)
	}
	if ing.gotDoc.ID == "" {
		t.Fatal("missing id must be generated")
	}

	var res ingestuc.Result
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.ChunksIndexed != 5 {
		t.Fatalf("chunks_indexed = %d", res.ChunksIndexed)
	}
}

func TestIngestDocumentValidation(t *testing.T) {
	s := newTestServer(&mockPipeline{}, &mockIngester{}, &mockAdmin{})
	h := s.Router(nil)

	cases := []struct {
		name string
		body string
	}{
		{"missing source", `{"text":"abc"}`},
		{"missing text", `{"source_name":"a.pdf"}`},
		{"bad format", `{"source_name":"a.pdf","text":"abc","format":"docx"}`},
		{"bad json", `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doRequest(t, h, http.MethodPost, "/api/documents", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rr.Code)
			}
		})
	}
}

func TestQuery(t *testing.T) {
	p := &mockPipeline{rc: domain.RetrievalContext{
		Context: "assembled",
		Sources: []string{"a.pdf"},
		TopK:    5,
	}}
	s := newTestServer(p, &mockIngester{}, &mockAdmin{})
	h := s.Router(nil)

	rr := doRequest(t, h, http.MethodPost, "/api/query", `{"question":"what is the policy?","top_k":7}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if p.gotQuestion != "what is the policy?" {
		t.Fatalf("question = %q", p.gotQuestion)
	}
	if p.gotTopK == nil || *p.gotTopK != 7 {
		t.Fatalf("topK = %v", p.gotTopK)
	}
}

func TestQueryErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrTimeout, http.StatusGatewayTimeout, codeTimeout},
		{domain.ErrEmbeddingUnavailable, http.StatusBadGateway, codeEmbeddingUnavailable},
		{domain.ErrIndexUnavailable, http.StatusServiceUnavailable, codeIndexUnavailable},
		{domain.ErrEmbeddingQuotaExceeded, http.StatusPaymentRequired, codeQuotaExceeded},
		{domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			s := newTestServer(&mockPipeline{err: tc.err}, &mockIngester{}, &mockAdmin{})
			h := s.Router(nil)

			rr := doRequest(t, h, http.MethodPost, "/api/query", `{"question":"q"}`)
			if rr.Code != tc.status {
				t.Fatalf("status = %d, want %d", rr.Code, tc.status)
			}

			var er errorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &er); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if er.Code != tc.code {
				t.Fatalf("code = %q, want %q", er.Code, tc.code)
			}
		})
	}
}

func TestQueryRequiresQuestion(t *testing.T) {
	s := newTestServer(&mockPipeline{}, &mockIngester{}, &mockAdmin{})
	h := s.Router(nil)

	rr := doRequest(t, h, http.MethodPost, "/api/query", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestGetStats(t *testing.T) {
	s := newTestServer(&mockPipeline{}, &mockIngester{},
		&mockAdmin{stats: domain.Stats{TotalEntries: 12, DistinctSources: 3}})
	h := s.Router(nil)

	rr := doRequest(t, h, http.MethodGet, "/api/stats", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var resp statsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TotalEntries != 12 || resp.DistinctSources != 3 {
		t.Fatalf("bad stats %+v", resp)
	}
}

func TestGetHealth(t *testing.T) {
	s := newTestServer(&mockPipeline{}, &mockIngester{}, &mockAdmin{})
	h := s.Router(nil)

	rr := doRequest(t, h, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Fatalf("body %s", rr.Body.String())
	}
}

func TestBackupRejectsPathTraversal(t *testing.T) {
	adm := &mockAdmin{}
	s := newTestServer(&mockPipeline{}, &mockIngester{}, adm)
	h := s.Router(nil)

	rr := doRequest(t, h, http.MethodPost, "/admin/backup", `{"name":"../../etc/passwd"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if adm.backupPath != "" {
		t.Fatal("backup must not run for traversal names")
	}
}

func TestBackupDefaultName(t *testing.T) {
	adm := &mockAdmin{}
	s := newTestServer(&mockPipeline{}, &mockIngester{}, adm)
	h := s.Router(nil)

	rr := doRequest(t, h, http.MethodPost, "/admin/backup", "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if !strings.HasPrefix(adm.backupPath, "/tmp/ragdex-backups/") {
		t.Fatalf("backup path %q", adm.backupPath)
	}
}

func TestResetIndex(t *testing.T) {
	s := newTestServer(&mockPipeline{}, &mockIngester{}, &mockAdmin{})
	h := s.Router(nil)

	rr := doRequest(t, h, http.MethodPost, "/admin/reset", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}
