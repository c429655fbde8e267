package http

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"kpiboard/internal/session"
)

func newTestServer(t *testing.T) (*httptest.Server, *http.Client) {
	t.Helper()
	srv := NewServer(":0", Options{
		Sessions:       session.NewStore(16, time.Hour),
		MaxUploadBytes: 1 << 20,
	})
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	t.Cleanup(srv.rateLimiter.stop)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return ts, &http.Client{Jar: jar}
}

func workbookBytes(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func uploadWorkbook(t *testing.T, client *http.Client, base string, content []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("workbook", "kpis.xlsx")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	resp, err := client.Post(base+"/upload", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("upload request: %v", err)
	}
	return resp
}

func sampleRows() [][]interface{} {
	return [][]interface{}{
		{"Date", "Assignee", "Quality", "Completed", "Hours", "Task"},
		{"2024-01-10", "Alice", 0.9, 2, 5.5, "T-1"},
		{"2024-01-20", "Bob", 0.7, 1, 3, "T-1"},
		{"2024-02-05", "Alice", 0.8, "", 4, "T-2"},
	}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func applyMapping(t *testing.T, client *http.Client, base string, form url.Values) *http.Response {
	t.Helper()
	resp, err := client.PostForm(base+"/mapping", form)
	if err != nil {
		t.Fatalf("mapping request: %v", err)
	}
	return resp
}

func sampleMappingForm() url.Values {
	return url.Values{
		"field_date":            {"Date"},
		"field_member":          {"Assignee"},
		"field_quality_score":   {"Quality"},
		"field_completed_tasks": {"Completed"},
		"field_man_hours":       {"Hours"},
		"field_task_id":         {"Task"},
	}
}

func TestIndexServesPage(t *testing.T) {
	ts, client := newTestServer(t)

	resp, err := client.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get index: %v", err)
	}
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(body, "KPI Board") {
		t.Errorf("index page missing title")
	}

	u, _ := url.Parse(ts.URL)
	var found bool
	for _, c := range client.Jar.Cookies(u) {
		if c.Name == sessionCookie {
			found = true
		}
	}
	if !found {
		t.Errorf("index did not set a session cookie")
	}
}

func TestUploadThenMappingThenDashboard(t *testing.T) {
	ts, client := newTestServer(t)

	resp := uploadWorkbook(t, client, ts.URL, workbookBytes(t, sampleRows()))
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status = %d, body = %s", resp.StatusCode, body)
	}
	if !strings.Contains(body, "kpis.xlsx") {
		t.Errorf("mapping form does not mention the uploaded file")
	}
	if !strings.Contains(body, "Quality") {
		t.Errorf("mapping form does not offer the Quality column")
	}

	resp = applyMapping(t, client, ts.URL, sampleMappingForm())
	if resp.Header.Get("HX-Trigger") != "report-updated" {
		t.Errorf("mapping response missing report-updated trigger")
	}
	body = readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("mapping status = %d, body = %s", resp.StatusCode, body)
	}
	if !strings.Contains(body, "3 of 3 rows usable") {
		t.Errorf("mapping notice missing row count, body = %s", body)
	}

	resp, err := client.Get(ts.URL + "/ui/dashboard")
	if err != nil {
		t.Fatalf("dashboard request: %v", err)
	}
	body = readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dashboard status = %d", resp.StatusCode)
	}
	for _, want := range []string{"Team monthly", "Alice", "Bob", "2024-01", "2024-02", "T-1"} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
	// Fractional quality scores are rescaled to a 0-100 range.
	if !strings.Contains(body, "90.0") {
		t.Errorf("dashboard missing Alice's rescaled quality score, body = %s", body)
	}
}

func TestMappingRequiresMemberColumn(t *testing.T) {
	ts, client := newTestServer(t)

	resp := uploadWorkbook(t, client, ts.URL, workbookBytes(t, sampleRows()))
	_ = readBody(t, resp)

	form := sampleMappingForm()
	form.Del("field_member")
	resp = applyMapping(t, client, ts.URL, form)
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	if !strings.Contains(body, "member column is required") {
		t.Errorf("missing member error, body = %s", body)
	}
}

func TestMappingBeforeUploadConflicts(t *testing.T) {
	ts, client := newTestServer(t)

	resp := applyMapping(t, client, ts.URL, sampleMappingForm())
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestUploadRejectsGarbage(t *testing.T) {
	ts, client := newTestServer(t)

	resp := uploadWorkbook(t, client, ts.URL, []byte("this is not a spreadsheet"))
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
}

func TestSeriesIncludesTeamAverage(t *testing.T) {
	ts, client := newTestServer(t)

	resp := uploadWorkbook(t, client, ts.URL, workbookBytes(t, sampleRows()))
	_ = readBody(t, resp)
	resp = applyMapping(t, client, ts.URL, sampleMappingForm())
	_ = readBody(t, resp)

	resp, err := client.Get(ts.URL + "/api/series?metric=quality_score")
	if err != nil {
		t.Fatalf("series request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("series status = %d", resp.StatusCode)
	}

	var got seriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode series: %v", err)
	}

	wantLabels := []string{"2024-01", "2024-02"}
	if len(got.Labels) != len(wantLabels) {
		t.Fatalf("labels = %v, want %v", got.Labels, wantLabels)
	}
	for i, l := range wantLabels {
		if got.Labels[i] != l {
			t.Errorf("labels[%d] = %q, want %q", i, got.Labels[i], l)
		}
	}

	if len(got.Datasets) != 3 {
		t.Fatalf("datasets = %d, want 3 (Alice, Bob, team)", len(got.Datasets))
	}
	last := got.Datasets[len(got.Datasets)-1]
	if last.Label != TeamSeriesLabel {
		t.Fatalf("last dataset = %q, want %q", last.Label, TeamSeriesLabel)
	}
	// January: Alice 90, Bob 70, team mean 80. February: only Alice, 80.
	if last.Data[0] == nil || *last.Data[0] != 80 {
		t.Errorf("team January = %v, want 80", last.Data[0])
	}

	var bob *seriesDataset
	for i := range got.Datasets {
		if got.Datasets[i].Label == "Bob" {
			bob = &got.Datasets[i]
		}
	}
	if bob == nil {
		t.Fatalf("no dataset for Bob")
	}
	if len(bob.Data) != 2 || bob.Data[1] != nil {
		t.Errorf("Bob's February should be null, got %v", bob.Data)
	}
}

func TestSeriesFilterByMember(t *testing.T) {
	ts, client := newTestServer(t)

	resp := uploadWorkbook(t, client, ts.URL, workbookBytes(t, sampleRows()))
	_ = readBody(t, resp)
	resp = applyMapping(t, client, ts.URL, sampleMappingForm())
	_ = readBody(t, resp)

	resp, err := client.Get(ts.URL + "/api/series?metric=quality_score&member=Alice")
	if err != nil {
		t.Fatalf("series request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var got seriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode series: %v", err)
	}
	if len(got.Datasets) != 2 {
		t.Fatalf("datasets = %d, want 2 (Alice, team)", len(got.Datasets))
	}
	if got.Datasets[0].Label != "Alice" {
		t.Errorf("dataset[0] = %q, want Alice", got.Datasets[0].Label)
	}
}

func TestSeriesUnknownMetric(t *testing.T) {
	ts, client := newTestServer(t)

	resp, err := client.Get(ts.URL + "/api/series?metric=velocity")
	if err != nil {
		t.Fatalf("series request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestDashboardWithoutDataset(t *testing.T) {
	ts, client := newTestServer(t)

	resp, err := client.Get(ts.URL + "/ui/dashboard")
	if err != nil {
		t.Fatalf("dashboard request: %v", err)
	}
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(body, "No dataset loaded") {
		t.Errorf("expected placeholder, body = %s", body)
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts, client := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := client.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	ts, client := newTestServer(t)

	resp, err := client.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get index: %v", err)
	}
	_ = resp.Body.Close()
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := resp.Header.Get("Content-Security-Policy"); got == "" {
		t.Errorf("missing Content-Security-Policy header")
	}
}
