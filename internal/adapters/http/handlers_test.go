package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/samirrijal/civicconnect/internal/adapters/exif"
	"github.com/samirrijal/civicconnect/internal/adapters/exif/exiftest"
	handler "github.com/samirrijal/civicconnect/internal/adapters/http"
	"github.com/samirrijal/civicconnect/internal/adapters/policy"
	"github.com/samirrijal/civicconnect/internal/core/domain"
	"github.com/samirrijal/civicconnect/internal/core/ports"
	"github.com/samirrijal/civicconnect/internal/core/usecases"
)

const testPassword = "secret123"

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

// ---- Test helpers ----

type testEnv struct {
	app    *fiber.App
	deps   *handler.Dependencies
	issues *mockIssueRepo
	users  *mockUserRepo
	photos *mockPhotoStore
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	authz, err := policy.New(context.Background())
	if err != nil {
		t.Fatalf("compile policy: %v", err)
	}
	e := &testEnv{
		issues: &mockIssueRepo{},
		users:  newMockUserRepo(),
		photos: &mockPhotoStore{},
	}
	verifier := usecases.NewPhotoVerifier(exif.NewExtractor(), 0, 0)
	e.deps = &handler.Dependencies{
		Issues: usecases.NewIssueService(e.issues, e.photos, verifier, nil, nil).
			WithClock(func() time.Time { return testNow }),
		Users:             usecases.NewUserService(e.users).WithHashCost(bcrypt.MinCost),
		Authz:             authz,
		Photos:            e.photos,
		HotspotResolution: 8,
	}
	return e
}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

// do sends req with the session cookie, building the app on first use.
func (e *testEnv) do(t *testing.T, req *http.Request, session string) *http.Response {
	t.Helper()
	if e.app == nil {
		e.app = setupApp(e.deps)
	}
	if session != "" {
		req.Header.Set("Cookie", handler.SessionCookie+"="+session)
	}
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func (e *testEnv) seedUser(t *testing.T, role domain.Role, department string, status domain.UserStatus) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	u := &domain.User{
		Name:         strings.ToUpper(string(role[:1])) + string(role[1:]),
		Email:        string(role) + "@example.com",
		PasswordHash: string(hash),
		Role:         role,
		Department:   department,
		Status:       status,
	}
	if err := e.users.Create(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	return u
}

// login seeds an active account and returns its session ID.
func (e *testEnv) login(t *testing.T, role domain.Role, department string) string {
	t.Helper()
	u := e.seedUser(t, role, department, domain.UserActive)
	resp := e.do(t, jsonRequest("POST", "/v1/auth/login", map[string]string{
		"email":    u.Email,
		"password": testPassword,
	}), "")
	if resp.StatusCode != 200 {
		t.Fatalf("login: expected 200, got %d", resp.StatusCode)
	}
	return sessionFrom(t, resp)
}

func sessionFrom(t *testing.T, resp *http.Response) string {
	t.Helper()
	for _, ck := range resp.Cookies() {
		if ck.Name == handler.SessionCookie && ck.Value != "" {
			return ck.Value
		}
	}
	t.Fatalf("no %s cookie in response", handler.SessionCookie)
	return ""
}

func jsonRequest(method, url string, body interface{}) *http.Request {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(method, url, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type formFile struct {
	field, name string
	data        []byte
}

func multipartRequest(t *testing.T, url string, fields map[string]string, files ...formFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range files {
		fw, err := w.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(f.data); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("POST", url, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decodeError(t *testing.T, body io.Reader) handler.APIError {
	t.Helper()
	var apiErr handler.APIError
	if err := json.NewDecoder(body).Decode(&apiErr); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return apiErr
}

func bangalorePhoto(ago time.Duration) []byte {
	return exiftest.JPEG(exiftest.Options{
		GPS:              exiftest.GPSAt(12.9716, 77.5946),
		DateTimeOriginal: testNow.Add(-ago).Format(domain.ExifTimeLayout),
	})
}

func reportFields() map[string]string {
	return map[string]string{
		"predicted_issue": "pothole",
		"confidence":      "0.9",
		"severity_score":  "0.9",
		"description":     "Deep pothole near the bus stop",
		"location":        "MG Road",
		"lat":             "12.9716",
		"lng":             "77.5946",
	}
}

// ---- Health ----

func TestHealth(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, httptest.NewRequest("GET", "/v1/health", nil), "")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestReady_NoDatabase(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, httptest.NewRequest("GET", "/v1/ready", nil), "")
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	var body struct {
		Checks map[string]string `json:"checks"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Checks["database"] != "not configured" {
		t.Errorf("expected database not configured, got %q", body.Checks["database"])
	}
}

func TestReady_DatabaseUp(t *testing.T) {
	e := newEnv(t)
	e.deps.DB = okPinger{}
	e.deps.Cache = okPinger{}
	resp := e.do(t, httptest.NewRequest("GET", "/v1/ready", nil), "")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	checks := readyChecks(t, resp)
	want := map[string]string{"database": "ok", "uploads": "ok", "sessions": "ok", "events": "issue events disabled"}
	for name, state := range want {
		if checks[name] != state {
			t.Errorf("%s = %q, want %q", name, checks[name], state)
		}
	}
}

func TestReady_DegradedButReady(t *testing.T) {
	e := newEnv(t)
	e.deps.DB = okPinger{}
	resp := e.do(t, httptest.NewRequest("GET", "/v1/ready", nil), "")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 without Valkey and NATS, got %d", resp.StatusCode)
	}
	if got := readyChecks(t, resp)["sessions"]; got != "in-memory sessions" {
		t.Errorf("sessions = %q", got)
	}
}

func TestReady_RequiredDependencyDown(t *testing.T) {
	tests := []struct {
		name  string
		check string
		setup func(d *handler.Dependencies)
	}{
		{"session store", "sessions", func(d *handler.Dependencies) {
			d.Cache = downPinger{err: errors.New("connection refused")}
		}},
		{"uploads", "uploads", func(d *handler.Dependencies) {
			d.Photos = pingingPhotoStore{&mockPhotoStore{}, downPinger{err: errors.New("read-only file system")}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.deps.DB = okPinger{}
			tt.setup(e.deps)

			resp := e.do(t, httptest.NewRequest("GET", "/v1/ready", nil), "")
			if resp.StatusCode != 503 {
				t.Fatalf("expected 503, got %d", resp.StatusCode)
			}
			if got := readyChecks(t, resp)[tt.check]; !strings.HasPrefix(got, "error: ") {
				t.Errorf("%s = %q, want an error", tt.check, got)
			}
		})
	}
}

func readyChecks(t *testing.T, resp *http.Response) map[string]string {
	t.Helper()
	var body struct {
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	return body.Checks
}

// ---- Citizen reports ----

func TestReport_RequiresLogin(t *testing.T) {
	e := newEnv(t)
	req := multipartRequest(t, "/v1/issues", reportFields(), formFile{"photo_1", "a.jpg", bangalorePhoto(time.Hour)})
	resp := e.do(t, req, "")
	if resp.StatusCode != 401 {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if apiErr := decodeError(t, resp.Body); apiErr.Code != "unauthorized" {
		t.Errorf("expected unauthorized, got %s", apiErr.Code)
	}
}

func TestReport_OfficerForbidden(t *testing.T) {
	e := newEnv(t)
	sess := e.login(t, domain.RoleOfficer, "Roads")
	req := multipartRequest(t, "/v1/issues", reportFields(), formFile{"photo_1", "a.jpg", bangalorePhoto(time.Hour)})
	resp := e.do(t, req, sess)
	if resp.StatusCode != 403 {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestReport_Verified(t *testing.T) {
	e := newEnv(t)
	var stored *domain.Issue
	e.issues.createFn = func(ctx context.Context, issue *domain.Issue) error {
		issue.ID = 7
		stored = issue
		return nil
	}
	sess := e.login(t, domain.RoleCitizen, "")

	req := multipartRequest(t, "/v1/issues", reportFields(),
		formFile{"photo_1", "road.JPG", bangalorePhoto(2 * time.Hour)},
		formFile{"photo_2", "wide.png", exiftest.PlainJPEG()},
	)
	resp := e.do(t, req, sess)
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}

	var body struct {
		ComplaintID   string `json:"complaint_id"`
		DetectedIssue string `json:"detected_issue"`
		AssignedTo    struct {
			Department string `json:"department"`
			Officer    string `json:"officer"`
			Priority   string `json:"priority"`
		} `json:"assigned_to"`
		Verification struct {
			Verified bool   `json:"verified"`
			Reason   string `json:"reason"`
		} `json:"verification"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.ComplaintID != "#CN-7" {
		t.Errorf("complaint_id = %q", body.ComplaintID)
	}
	if body.AssignedTo.Department != "Roads" || body.AssignedTo.Officer != "Municipal Officer" || body.AssignedTo.Priority != "High" {
		t.Errorf("unexpected assignment %+v", body.AssignedTo)
	}
	if !body.Verification.Verified || body.Verification.Reason != "Verified" {
		t.Errorf("expected verified, got %+v", body.Verification)
	}
	if stored == nil || !stored.ExifVerified || stored.CitizenEmail != "citizen@example.com" {
		t.Errorf("unexpected stored issue %+v", stored)
	}
	if stored.Image1Path != "stored-road.JPG" || stored.Image2Path != "stored-wide.png" {
		t.Errorf("unexpected image paths %q %q", stored.Image1Path, stored.Image2Path)
	}
}

func TestReport_UnverifiedPhotoStillStored(t *testing.T) {
	e := newEnv(t)
	var stored *domain.Issue
	e.issues.createFn = func(ctx context.Context, issue *domain.Issue) error {
		issue.ID = 8
		stored = issue
		return nil
	}
	sess := e.login(t, domain.RoleCitizen, "")

	req := multipartRequest(t, "/v1/issues", reportFields(), formFile{"photo_1", "a.jpeg", exiftest.PlainJPEG()})
	resp := e.do(t, req, sess)
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if stored == nil || stored.ExifVerified || stored.ExifReason != domain.ReasonInvalid {
		t.Errorf("expected unverified issue, got %+v", stored)
	}
}

func TestReport_WithoutPhotoAccepted(t *testing.T) {
	e := newEnv(t)
	var stored *domain.Issue
	e.issues.createFn = func(ctx context.Context, issue *domain.Issue) error {
		issue.ID = 12
		stored = issue
		return nil
	}
	sess := e.login(t, domain.RoleCitizen, "")

	resp := e.do(t, multipartRequest(t, "/v1/issues", reportFields()), sess)
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}

	var body struct {
		Verification struct {
			Verified bool   `json:"verified"`
			Reason   string `json:"reason"`
		} `json:"verification"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Verification.Verified || body.Verification.Reason != domain.ReasonInvalid {
		t.Errorf("expected unverified verdict, got %+v", body.Verification)
	}
	if stored == nil || stored.ExifVerified || stored.Image1Path != "" {
		t.Errorf("unexpected stored issue %+v", stored)
	}
	if len(e.photos.saved) != 0 {
		t.Errorf("expected nothing saved, got %v", e.photos.saved)
	}
}

func TestReport_StalePhotoUnverified(t *testing.T) {
	e := newEnv(t)
	var stored *domain.Issue
	e.issues.createFn = func(ctx context.Context, issue *domain.Issue) error {
		stored = issue
		return nil
	}
	sess := e.login(t, domain.RoleCitizen, "")

	req := multipartRequest(t, "/v1/issues", reportFields(), formFile{"photo_1", "a.jpg", bangalorePhoto(10 * 24 * time.Hour)})
	resp := e.do(t, req, sess)
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if stored == nil || stored.ExifVerified {
		t.Errorf("expected stale photo to be unverified")
	}
}

func TestReport_LocationMissing(t *testing.T) {
	e := newEnv(t)
	sess := e.login(t, domain.RoleCitizen, "")
	fields := reportFields()
	delete(fields, "lat")

	resp := e.do(t, multipartRequest(t, "/v1/issues", fields, formFile{"photo_1", "a.jpg", bangalorePhoto(time.Hour)}), sess)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if apiErr := decodeError(t, resp.Body); apiErr.Message != "Location missing" {
		t.Errorf("expected 'Location missing', got %q", apiErr.Message)
	}
}

func TestReport_InvalidImageType(t *testing.T) {
	e := newEnv(t)
	sess := e.login(t, domain.RoleCitizen, "")

	resp := e.do(t, multipartRequest(t, "/v1/issues", reportFields(), formFile{"photo_1", "a.gif", bangalorePhoto(time.Hour)}), sess)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if apiErr := decodeError(t, resp.Body); apiErr.Message != "Invalid image type" {
		t.Errorf("expected 'Invalid image type', got %q", apiErr.Message)
	}
	if len(e.photos.saved) != 0 {
		t.Errorf("expected nothing saved, got %v", e.photos.saved)
	}
}

func TestReport_OutOfRangeLocation(t *testing.T) {
	e := newEnv(t)
	sess := e.login(t, domain.RoleCitizen, "")
	fields := reportFields()
	fields["lat"] = "123.4"

	resp := e.do(t, multipartRequest(t, "/v1/issues", fields, formFile{"photo_1", "a.jpg", bangalorePhoto(time.Hour)}), sess)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestLegacyReportAlias(t *testing.T) {
	e := newEnv(t)
	sess := e.login(t, domain.RoleCitizen, "")

	resp := e.do(t, multipartRequest(t, "/report-issue", reportFields(), formFile{"photo_1", "a.jpg", bangalorePhoto(time.Hour)}), sess)
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Deprecation") != "true" {
		t.Error("expected Deprecation header")
	}
	if !strings.Contains(resp.Header.Get("Link"), "/v1/issues") {
		t.Errorf("expected successor link, got %q", resp.Header.Get("Link"))
	}
}

// ---- Citizen history ----

func TestMyIssues_Unauthenticated(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, httptest.NewRequest("GET", "/v1/me/issues", nil), "")
	if resp.StatusCode != 401 {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestMyIssues_ScopedToCaller(t *testing.T) {
	e := newEnv(t)
	var gotEmail string
	e.issues.listFn = func(ctx context.Context, f ports.IssueFilter) ([]domain.Issue, error) {
		gotEmail = f.CitizenEmail
		return []domain.Issue{{ID: 1}, {ID: 2}}, nil
	}
	sess := e.login(t, domain.RoleCitizen, "")

	resp := e.do(t, httptest.NewRequest("GET", "/v1/me/issues", nil), sess)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var issues []domain.Issue
	json.NewDecoder(resp.Body).Decode(&issues)
	if len(issues) != 2 || gotEmail != "citizen@example.com" {
		t.Errorf("got %d issues for %q", len(issues), gotEmail)
	}
}

func TestMyIssueCounts(t *testing.T) {
	e := newEnv(t)
	e.issues.countsByCitizenFn = func(ctx context.Context, email string) (domain.IssueCounts, error) {
		return domain.IssueCounts{Total: 4, Pending: 2, InProgress: 1, Resolved: 1}, nil
	}
	sess := e.login(t, domain.RoleCitizen, "")

	resp := e.do(t, httptest.NewRequest("GET", "/v1/me/issues/counts", nil), sess)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var counts domain.IssueCounts
	json.NewDecoder(resp.Body).Decode(&counts)
	if counts.Total != 4 || counts.Pending != 2 {
		t.Errorf("unexpected counts %+v", counts)
	}
}

func TestMyIssue_OtherCitizenNotFound(t *testing.T) {
	e := newEnv(t)
	e.issues.getByIDFn = func(ctx context.Context, id int64) (*domain.Issue, error) {
		return &domain.Issue{ID: id, CitizenEmail: "someone@else.org", Status: domain.StatusPending}, nil
	}
	sess := e.login(t, domain.RoleCitizen, "")

	resp := e.do(t, httptest.NewRequest("GET", "/v1/me/issues/3", nil), sess)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestWithdraw(t *testing.T) {
	tests := []struct {
		name   string
		status domain.IssueStatus
		want   int
	}{
		{"pending", domain.StatusPending, 204},
		{"in progress", domain.StatusInProgress, 400},
		{"resolved", domain.StatusResolved, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			deleted := false
			e.issues.getByIDFn = func(ctx context.Context, id int64) (*domain.Issue, error) {
				return &domain.Issue{ID: id, CitizenEmail: "citizen@example.com", Status: tt.status}, nil
			}
			e.issues.deleteOwnedFn = func(ctx context.Context, id int64, email string) error {
				deleted = true
				return nil
			}
			sess := e.login(t, domain.RoleCitizen, "")

			resp := e.do(t, httptest.NewRequest("DELETE", "/v1/me/issues/5", nil), sess)
			if resp.StatusCode != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, resp.StatusCode)
			}
			if deleted != (tt.want == 204) {
				t.Errorf("deleted = %v", deleted)
			}
		})
	}
}

// ---- Officers ----

func TestOfficerIssues_OwnDepartment(t *testing.T) {
	e := newEnv(t)
	var got ports.IssueFilter
	e.issues.listFn = func(ctx context.Context, f ports.IssueFilter) ([]domain.Issue, error) {
		got = f
		return nil, nil
	}
	sess := e.login(t, domain.RoleOfficer, "Sanitation")

	resp := e.do(t, httptest.NewRequest("GET", "/v1/officer/issues/priority?department=Roads", nil), sess)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got.Department != "Sanitation" || !got.BySeverity {
		t.Errorf("unexpected filter %+v", got)
	}
	if body := readBody(t, resp.Body); string(body) != "[]" {
		t.Errorf("expected empty list, got %s", body)
	}
}

func TestOfficerMonthly(t *testing.T) {
	e := newEnv(t)
	e.issues.listFn = func(ctx context.Context, f ports.IssueFilter) ([]domain.Issue, error) {
		return []domain.Issue{
			{ID: 1, CreatedAt: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)},
			{ID: 2, CreatedAt: time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)},
			{ID: 3, CreatedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
		}, nil
	}
	sess := e.login(t, domain.RoleOfficer, "Roads")

	resp := e.do(t, httptest.NewRequest("GET", "/v1/officer/issues/monthly", nil), sess)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Issues []struct {
			IssueID int64 `json:"issue_id"`
		} `json:"issues"`
		Months []domain.MonthlyCount `json:"months"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if len(body.Issues) != 3 || len(body.Months) != 2 {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.Months[0].Month != "2024-01" || body.Months[0].Count != 2 {
		t.Errorf("unexpected first month %+v", body.Months[0])
	}
}

func TestOfficerUpdateStatus(t *testing.T) {
	tests := []struct {
		name       string
		department string
		status     string
		want       int
	}{
		{"own department", "Roads", "In Progress", 200},
		{"other department", "Sanitation", "In Progress", 403},
		{"unknown status", "Roads", "Closed", 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			var updated domain.IssueStatus
			e.issues.getByIDFn = func(ctx context.Context, id int64) (*domain.Issue, error) {
				return &domain.Issue{ID: id, AssignedDepartment: "Roads", Status: domain.StatusPending}, nil
			}
			e.issues.updateStatusFn = func(ctx context.Context, id int64, status domain.IssueStatus) error {
				updated = status
				return nil
			}
			sess := e.login(t, domain.RoleOfficer, tt.department)

			resp := e.do(t, jsonRequest("POST", "/v1/officer/issues/9/status", map[string]string{"status": tt.status}), sess)
			if resp.StatusCode != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, resp.StatusCode)
			}
			if tt.want == 200 && updated != domain.StatusInProgress {
				t.Errorf("expected In Progress, got %q", updated)
			}
			if tt.want != 200 && updated != "" {
				t.Errorf("status should not change, got %q", updated)
			}
		})
	}
}

func TestOfficerRoutes_CitizenForbidden(t *testing.T) {
	e := newEnv(t)
	sess := e.login(t, domain.RoleCitizen, "")
	resp := e.do(t, httptest.NewRequest("GET", "/v1/officer/issues", nil), sess)
	if resp.StatusCode != 403 {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

// ---- Admin ----

func TestAdminOfficerActions(t *testing.T) {
	tests := []struct {
		action string
		want   int
		status domain.UserStatus
	}{
		{"approve", 200, domain.UserActive},
		{"reject", 200, domain.UserBlocked},
		{"block", 200, domain.UserBlocked},
		{"reactivate", 200, domain.UserActive},
		{"promote", 400, ""},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			e := newEnv(t)
			var gotID int64
			var gotRole domain.Role
			var gotStatus domain.UserStatus
			e.users.setStatusFn = func(ctx context.Context, id int64, role domain.Role, status domain.UserStatus) error {
				gotID, gotRole, gotStatus = id, role, status
				return nil
			}
			sess := e.login(t, domain.RoleAdmin, "")

			resp := e.do(t, httptest.NewRequest("POST", "/v1/admin/officers/5/"+tt.action, nil), sess)
			if resp.StatusCode != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, resp.StatusCode)
			}
			if tt.want == 200 && (gotID != 5 || gotRole != domain.RoleOfficer || gotStatus != tt.status) {
				t.Errorf("SetStatus(%d, %s, %s)", gotID, gotRole, gotStatus)
			}
		})
	}
}

func TestAdminCitizenNotFound(t *testing.T) {
	e := newEnv(t)
	e.users.setStatusFn = func(ctx context.Context, id int64, role domain.Role, status domain.UserStatus) error {
		return domain.ErrNotFound
	}
	sess := e.login(t, domain.RoleAdmin, "")

	resp := e.do(t, httptest.NewRequest("POST", "/v1/admin/citizens/99/block", nil), sess)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestAdminRoutes_OfficerForbidden(t *testing.T) {
	e := newEnv(t)
	sess := e.login(t, domain.RoleOfficer, "Roads")
	resp := e.do(t, httptest.NewRequest("GET", "/v1/admin/officers?status=pending", nil), sess)
	if resp.StatusCode != 403 {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestAdminOfficerSearch(t *testing.T) {
	e := newEnv(t)
	var got ports.UserFilter
	e.users.listFn = func(ctx context.Context, f ports.UserFilter) ([]domain.User, error) {
		got = f
		return []domain.User{{ID: 3, Name: "Ravi", Role: domain.RoleOfficer, Status: domain.UserPending}}, nil
	}
	sess := e.login(t, domain.RoleAdmin, "")

	resp := e.do(t, httptest.NewRequest("GET", "/v1/admin/officers?status=pending&q=ravi", nil), sess)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got.Role != domain.RoleOfficer || got.Status != domain.UserPending || got.Query != "ravi" {
		t.Errorf("unexpected filter %+v", got)
	}
}

func TestAdminIssues_Pagination(t *testing.T) {
	e := newEnv(t)
	var got ports.IssueFilter
	e.issues.listFn = func(ctx context.Context, f ports.IssueFilter) ([]domain.Issue, error) {
		got = f
		issues := make([]domain.Issue, 5)
		for i := range issues {
			issues[i] = domain.Issue{ID: int64(i + 1), DetectedIssue: "pothole"}
		}
		return issues, nil
	}
	sess := e.login(t, domain.RoleAdmin, "")

	resp := e.do(t, httptest.NewRequest("GET", "/v1/admin/issues?type=pothole&offset=2&limit=2", nil), sess)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got.DetectedIssue != "pothole" {
		t.Errorf("expected pothole filter, got %q", got.DetectedIssue)
	}

	var result struct {
		Data       []domain.Issue `json:"data"`
		Pagination struct {
			Offset int `json:"offset"`
			Total  int `json:"total"`
		} `json:"pagination"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Pagination.Total != 5 || len(result.Data) != 2 || result.Data[0].ID != 3 {
		t.Errorf("unexpected page %+v", result)
	}
	link := resp.Header.Get("Link")
	if !strings.Contains(link, `rel="next"`) || !strings.Contains(link, "type=pothole") {
		t.Errorf("unexpected Link header %q", link)
	}
}

func TestAdminIssueCounts(t *testing.T) {
	e := newEnv(t)
	e.issues.countByTypeFn = func(ctx context.Context, label string) (int, error) {
		if label == "" {
			return 10, nil
		}
		return len(label), nil
	}
	sess := e.login(t, domain.RoleAdmin, "")

	resp := e.do(t, httptest.NewRequest("GET", "/v1/admin/issues/counts", nil), sess)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var counts map[string]int
	json.NewDecoder(resp.Body).Decode(&counts)
	if counts["all"] != 10 || counts["water"] != 5 || counts["pothole"] != 7 {
		t.Errorf("unexpected counts %v", counts)
	}
}

func TestAdminHotspots(t *testing.T) {
	e := newEnv(t)
	e.issues.listFn = func(ctx context.Context, f ports.IssueFilter) ([]domain.Issue, error) {
		p := domain.GeoPoint{Lat: 12.9716, Lng: 77.5946}
		return []domain.Issue{
			{ID: 1, DetectedIssue: "pothole", Location: p},
			{ID: 2, DetectedIssue: "garbage", Location: p},
		}, nil
	}
	sess := e.login(t, domain.RoleAdmin, "")

	resp := e.do(t, httptest.NewRequest("GET", "/v1/admin/hotspots?res=7", nil), sess)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var spots []domain.Hotspot
	json.NewDecoder(resp.Body).Decode(&spots)
	if len(spots) != 1 || spots[0].Count != 2 || spots[0].Resolution != 7 {
		t.Errorf("unexpected hotspots %+v", spots)
	}

	resp = e.do(t, httptest.NewRequest("GET", "/v1/admin/hotspots?res=16", nil), sess)
	if resp.StatusCode != 400 {
		t.Errorf("expected 400 for res=16, got %d", resp.StatusCode)
	}
}

// ---- Public ----

func TestNearbyIssues_HidesReporter(t *testing.T) {
	e := newEnv(t)
	e.issues.withinBoundsFn = func(ctx context.Context, b domain.Bounds, limit int) ([]domain.Issue, error) {
		return []domain.Issue{{
			ID:           1,
			Location:     domain.GeoPoint{Lat: 12.9716, Lng: 77.5946},
			CitizenEmail: "citizen@example.com",
			CitizenPhone: "+91 98450 00000",
		}}, nil
	}

	resp := e.do(t, httptest.NewRequest("GET", "/v1/issues/nearby?lat=12.9716&lng=77.5946&radius=500", nil), "")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var issues []map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&issues)
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %d", len(issues))
	}
	if _, ok := issues[0]["citizen_email"]; ok {
		t.Error("citizen_email must not be public")
	}
	if _, ok := issues[0]["distance"]; !ok {
		t.Error("expected distance in nearby results")
	}
}

func TestNearbyIssues_LatestWithoutPoint(t *testing.T) {
	e := newEnv(t)
	var limit int
	e.issues.listFn = func(ctx context.Context, f ports.IssueFilter) ([]domain.Issue, error) {
		limit = f.Limit
		return []domain.Issue{{ID: 4}}, nil
	}
	resp := e.do(t, httptest.NewRequest("GET", "/v1/issues/nearby?limit=10", nil), "")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if limit != 10 {
		t.Errorf("expected limit 10, got %d", limit)
	}
}

func TestNearbyIssues_BadParams(t *testing.T) {
	e := newEnv(t)
	for _, url := range []string{
		"/v1/issues/nearby?lat=12.97&lng=77.59&radius=90000",
		"/v1/issues/nearby?lat=95&lng=77.59",
		"/v1/issues/nearby?lat=12.97",
	} {
		resp := e.do(t, httptest.NewRequest("GET", url, nil), "")
		if resp.StatusCode != 400 {
			t.Errorf("%s: expected 400, got %d", url, resp.StatusCode)
		}
	}
}

func TestGetIssue_NotFound(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, httptest.NewRequest("GET", "/v1/issues/42", nil), "")
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if apiErr := decodeError(t, resp.Body); apiErr.Code != "not_found" {
		t.Errorf("expected not_found, got %s", apiErr.Code)
	}
}

func TestUploads_RejectsUnknown(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, httptest.NewRequest("GET", "/uploads/missing.jpg", nil), "")
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestPredict(t *testing.T) {
	e := newEnv(t)
	e.deps.Classify = usecases.NewClassifyService(&mockClassifier{
		pred: &domain.Prediction{Label: "pothole", Confidence: 0.87},
	})
	sess := e.login(t, domain.RoleCitizen, "")

	resp := e.do(t, multipartRequest(t, "/v1/predict", nil, formFile{"image", "x.jpg", exiftest.PlainJPEG()}), sess)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var pred domain.Prediction
	json.NewDecoder(resp.Body).Decode(&pred)
	if pred.Label != "pothole" || pred.SeverityScore != 8.7 {
		t.Errorf("unexpected prediction %+v", pred)
	}
}

func TestPredict_DisabledLegacyAlias(t *testing.T) {
	e := newEnv(t)
	sess := e.login(t, domain.RoleCitizen, "")

	resp := e.do(t, multipartRequest(t, "/predict", nil, formFile{"image", "x.jpg", exiftest.PlainJPEG()}), sess)
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Deprecation") != "true" || resp.Header.Get("Sunset") == "" {
		t.Error("expected deprecation headers on legacy alias")
	}
}

// ---- GraphQL & WebSocket ----

func TestGraphQL_OfficerScopedToDepartment(t *testing.T) {
	e := newEnv(t)
	var got ports.IssueFilter
	e.issues.listFn = func(ctx context.Context, f ports.IssueFilter) ([]domain.Issue, error) {
		got = f
		return []domain.Issue{{ID: 1, Status: domain.StatusPending, AssignedDepartment: "Roads"}}, nil
	}
	sess := e.login(t, domain.RoleOfficer, "Roads")

	query := `{ issues(department: "Water Supply") { issue_id status assigned_department } }`
	resp := e.do(t, jsonRequest("POST", "/v1/graphql", map[string]string{"query": query}), sess)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got.Department != "Roads" {
		t.Errorf("officer query escaped department: %q", got.Department)
	}

	var result struct {
		Data struct {
			Issues []struct {
				IssueID int    `json:"issue_id"`
				Status  string `json:"status"`
			} `json:"issues"`
		} `json:"data"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if len(result.Data.Issues) != 1 || result.Data.Issues[0].Status != "Pending" {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestGraphQL_CitizenForbidden(t *testing.T) {
	e := newEnv(t)
	sess := e.login(t, domain.RoleCitizen, "")
	resp := e.do(t, jsonRequest("POST", "/v1/graphql", map[string]string{"query": "{ counts { type count } }"}), sess)
	if resp.StatusCode != 403 {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestWebSocket_RequiresUpgrade(t *testing.T) {
	e := newEnv(t)
	sess := e.login(t, domain.RoleOfficer, "Roads")
	resp := e.do(t, httptest.NewRequest("GET", "/v1/ws", nil), sess)
	if resp.StatusCode != 426 {
		t.Fatalf("expected 426, got %d", resp.StatusCode)
	}
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}
