package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/speakerbio/internal/biography"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type stubBiographyService struct {
	saveRequests   []biography.SaveRequest
	acceptRequests []biography.AcceptRequest
	appendEmails   []string
	appendEmail    string
	appendEventID  string
	keywordLimit   int

	profile    *biography.Profile
	invitation biography.Invitation
	saveResult *biography.SaveResult
	outcome    biography.AppendOutcome
	report     biography.AppendReport
	err        error
}

func (s *stubBiographyService) Save(_ context.Context, request biography.SaveRequest) (biography.SaveResult, error) {
	s.saveRequests = append(s.saveRequests, request)
	if s.saveResult != nil {
		return *s.saveResult, s.err
	}
	return biography.SaveResult{BiographyID: "bio-1", Created: true}, s.err
}

func (s *stubBiographyService) Accept(_ context.Context, request biography.AcceptRequest) (biography.AcceptResult, error) {
	s.acceptRequests = append(s.acceptRequests, request)
	return biography.AcceptResult{BiographyID: "bio-1"}, s.err
}

func (s *stubBiographyService) RetrieveByEmail(context.Context, string) (*biography.Profile, error) {
	return s.profile, s.err
}

func (s *stubBiographyService) RetrieveByID(context.Context, string) (*biography.Profile, error) {
	return s.profile, s.err
}

func (s *stubBiographyService) RetrieveByEvent(context.Context, string, string) ([]biography.Profile, error) {
	return nil, s.err
}

func (s *stubBiographyService) GenerateInvitation(context.Context, string) (biography.Invitation, error) {
	return s.invitation, s.err
}

func (s *stubBiographyService) ListEvents(context.Context) ([]biography.Event, error) {
	return nil, s.err
}

func (s *stubBiographyService) AppendToEvent(_ context.Context, eventID, email string) (biography.AppendOutcome, error) {
	s.appendEventID = eventID
	s.appendEmail = email
	return s.outcome, s.err
}

func (s *stubBiographyService) AppendManyToEvent(_ context.Context, eventID string, emails []string) (biography.AppendReport, error) {
	s.appendEventID = eventID
	s.appendEmails = emails
	return s.report, s.err
}

func (s *stubBiographyService) SearchKeywords(_ context.Context, _ string, limit int) ([]string, error) {
	s.keywordLimit = limit
	return []string{"Networking"}, s.err
}

func newTestRouter(testContext *testing.T, service BiographyService, metrics *Metrics) http.Handler {
	testContext.Helper()
	gin.SetMode(gin.TestMode)
	handler, err := NewHTTPHandler(Dependencies{
		BiographyService: service,
		Logger:           zap.NewNop(),
		Metrics:          metrics,
	})
	if err != nil {
		testContext.Fatalf("failed to build handler: %v", err)
	}
	return handler
}

type multipartFile struct {
	field    string
	filename string
	contents []byte
}

func newMultipartRequest(testContext *testing.T, target string, fields map[string]string, files ...multipartFile) *http.Request {
	testContext.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			testContext.Fatalf("failed to write field %s: %v", name, err)
		}
	}
	for _, file := range files {
		part, err := writer.CreateFormFile(file.field, file.filename)
		if err != nil {
			testContext.Fatalf("failed to create file part: %v", err)
		}
		if _, err := part.Write(file.contents); err != nil {
			testContext.Fatalf("failed to write file part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		testContext.Fatalf("failed to close multipart writer: %v", err)
	}
	request := httptest.NewRequest(http.MethodPost, target, body)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	return request
}

func decodeEnvelope(testContext *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	testContext.Helper()
	var payload map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		testContext.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
	return payload
}

func TestNewHTTPHandlerRequiresBiographyService(testContext *testing.T) {
	if _, err := NewHTTPHandler(Dependencies{}); !errors.Is(err, errMissingBiographyService) {
		testContext.Fatalf("expected missing service error, got %v", err)
	}
}

func TestHandleRetrieveByEmailReturnsEmptyData(testContext *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	context, _ := gin.CreateTestContext(recorder)
	context.Request = httptest.NewRequest(http.MethodGet, "/biography/retrieve_bio_by_email?user_email=ghost@x.com", http.NoBody)

	handler := &httpHandler{biographies: &stubBiographyService{}, logger: zap.NewNop()}
	handler.handleRetrieveByEmail(context)

	if recorder.Code != http.StatusOK {
		testContext.Fatalf("expected ok status, got %d", recorder.Code)
	}
	expected := `{"data":{},"error_msg":"","success_msg":"success"}`
	if recorder.Body.String() != expected {
		testContext.Fatalf("unexpected response body: %s", recorder.Body.String())
	}
}

func TestHandleRetrieveByEmailRequiresEmail(testContext *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	context, _ := gin.CreateTestContext(recorder)
	context.Request = httptest.NewRequest(http.MethodGet, "/biography/retrieve_bio_by_email", http.NoBody)

	handler := &httpHandler{biographies: &stubBiographyService{}, logger: zap.NewNop()}
	handler.handleRetrieveByEmail(context)

	if recorder.Code != http.StatusBadRequest {
		testContext.Fatalf("expected bad request status, got %d", recorder.Code)
	}
}

func TestGenerateInvitationAcceptsLegacyParameter(testContext *testing.T) {
	service := &stubBiographyService{invitation: biography.Invitation{
		EventID:   "evt-1",
		EventName: "ICC2025",
		Link:      "https://bio.example.org/invite/evt-1",
		Created:   false,
	}}
	router := newTestRouter(testContext, service, nil)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/biography/generate_invitation?even_name=ICC2025", http.NoBody))

	if recorder.Code != http.StatusOK {
		testContext.Fatalf("expected ok status, got %d", recorder.Code)
	}
	payload := decodeEnvelope(testContext, recorder)
	if payload["success_msg"] != "Event ICC2025 already exists" {
		testContext.Fatalf("unexpected success message %v", payload["success_msg"])
	}
	data, _ := payload["data"].(map[string]any)
	if data["link"] != "https://bio.example.org/invite/evt-1" || data["event_id"] != "evt-1" {
		testContext.Fatalf("unexpected data %v", data)
	}
}

func TestHandleSaveParsesMultipartForm(testContext *testing.T) {
	service := &stubBiographyService{}
	router := newTestRouter(testContext, service, nil)

	request := newMultipartRequest(testContext, "/biography/save_bio", map[string]string{
		fieldUserData:  `{"Email":"a@x.com","FirstName":"Ada","Keywords":["ai","networking"]}`,
		fieldEventID:   "evt-1",
		fieldPhotoFlag: " TRUE ",
	}, multipartFile{field: fieldPhotoFile, filename: "me.png", contents: []byte("png")})
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		testContext.Fatalf("expected ok status, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if len(service.saveRequests) != 1 {
		testContext.Fatalf("expected one save call, got %d", len(service.saveRequests))
	}
	saved := service.saveRequests[0]
	if saved.EventID != "evt-1" || !saved.DeletePhoto {
		testContext.Fatalf("unexpected save request %+v", saved)
	}
	if saved.Submission.Email != "a@x.com" || len(saved.Submission.Keywords) != 2 {
		testContext.Fatalf("unexpected submission %+v", saved.Submission)
	}
	if saved.Photo == nil || saved.Photo.Filename != "me.png" || string(saved.Photo.Contents) != "png" {
		testContext.Fatalf("unexpected photo %+v", saved.Photo)
	}
	if recorder.Header().Get(requestIDHeader) == "" {
		testContext.Fatalf("expected a request id header")
	}
}

func TestHandleSaveReportsInsertOrUpdate(testContext *testing.T) {
	testCases := []struct {
		name    string
		created bool
		message string
	}{
		{name: "first submission", created: true, message: "success; inserted"},
		{name: "resubmission", created: false, message: "success; updated"},
	}

	for _, testCase := range testCases {
		testContext.Run(testCase.name, func(t *testing.T) {
			service := &stubBiographyService{saveResult: &biography.SaveResult{BiographyID: "bio-7", Created: testCase.created}}
			router := newTestRouter(t, service, nil)

			request := newMultipartRequest(t, "/biography/save_bio", map[string]string{
				fieldUserData: `{"Email":"a@x.com"}`,
				fieldEventID:  "evt-1",
			})
			recorder := httptest.NewRecorder()
			router.ServeHTTP(recorder, request)

			if recorder.Code != http.StatusOK {
				t.Fatalf("expected ok status, got %d: %s", recorder.Code, recorder.Body.String())
			}
			payload := decodeEnvelope(t, recorder)
			if payload["success_msg"] != testCase.message {
				t.Fatalf("expected success message %q, got %v", testCase.message, payload["success_msg"])
			}
			data, _ := payload["data"].(map[string]any)
			if data["BiographyID"] != "bio-7" {
				t.Fatalf("unexpected data %v", data)
			}
		})
	}
}

func TestHandleSaveRejectsUnknownPhotoFlag(testContext *testing.T) {
	service := &stubBiographyService{}
	router := newTestRouter(testContext, service, nil)

	request := newMultipartRequest(testContext, "/biography/save_bio", map[string]string{
		fieldUserData:  `{"Email":"a@x.com"}`,
		fieldEventID:   "evt-1",
		fieldPhotoFlag: "__import__('os')",
	})
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		testContext.Fatalf("expected bad request status, got %d", recorder.Code)
	}
	if len(service.saveRequests) != 0 {
		testContext.Fatalf("expected the service not to be called")
	}
}

func TestHandleAcceptRejectsMalformedUserData(testContext *testing.T) {
	service := &stubBiographyService{}
	router := newTestRouter(testContext, service, nil)

	request := newMultipartRequest(testContext, "/biography/accept_bio", map[string]string{fieldUserData: "{not json"})
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		testContext.Fatalf("expected bad request status, got %d", recorder.Code)
	}
	if len(service.acceptRequests) != 0 {
		testContext.Fatalf("expected the service not to be called")
	}
}

func TestHandleAcceptKeepsPhotoWhenFlagAbsent(testContext *testing.T) {
	service := &stubBiographyService{}
	router := newTestRouter(testContext, service, nil)

	request := newMultipartRequest(testContext, "/biography/accept_bio", map[string]string{fieldUserData: `{"Email":"a@x.com"}`})
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		testContext.Fatalf("expected ok status, got %d", recorder.Code)
	}
	accepted := service.acceptRequests[0]
	if accepted.DeletePhoto || accepted.Photo != nil {
		testContext.Fatalf("expected keep disposition without photo, got %+v", accepted)
	}
}

func TestHandleAppendToEventReportsBatch(testContext *testing.T) {
	service := &stubBiographyService{report: biography.AppendReport{
		Linked:  []string{"valid@x.com"},
		Pending: []string{"pending@x.com"},
		Missing: []string{},
	}}
	router := newTestRouter(testContext, service, nil)

	form := url.Values{}
	form.Set(fieldEventID, "evt-1")
	form.Add(fieldBioEmail, "valid@x.com")
	form.Add(fieldBioEmail, "pending@x.com")
	request := httptest.NewRequest(http.MethodPost, "/biography/append_bio_to_event", strings.NewReader(form.Encode()))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		testContext.Fatalf("expected ok status, got %d", recorder.Code)
	}
	if service.appendEventID != "evt-1" || len(service.appendEmails) != 2 {
		testContext.Fatalf("unexpected append call %q %v", service.appendEventID, service.appendEmails)
	}
	payload := decodeEnvelope(testContext, recorder)
	data, _ := payload["data"].(map[string]any)
	for _, key := range []string{"linked_bios", "pending_validation", "missing_bio"} {
		if _, ok := data[key]; !ok {
			testContext.Fatalf("expected %s in report, got %v", key, data)
		}
	}
}

func TestHandleAppendToEventLinksSingleEmail(testContext *testing.T) {
	service := &stubBiographyService{outcome: biography.AppendOutcome{Email: "pending@x.com", Status: biography.AppendPending}}
	router := newTestRouter(testContext, service, nil)

	form := url.Values{}
	form.Set(fieldEventID, "evt-1")
	form.Set(fieldBioEmail, "Pending@x.com")
	request := httptest.NewRequest(http.MethodPost, "/biography/append_bio_to_event", strings.NewReader(form.Encode()))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		testContext.Fatalf("expected ok status, got %d", recorder.Code)
	}
	if service.appendEventID != "evt-1" || service.appendEmail != "Pending@x.com" {
		testContext.Fatalf("unexpected append call %q %q", service.appendEventID, service.appendEmail)
	}
	if service.appendEmails != nil {
		testContext.Fatalf("expected the batch path to stay unused, got %v", service.appendEmails)
	}
	payload := decodeEnvelope(testContext, recorder)
	data, _ := payload["data"].(map[string]any)
	pending, _ := data["pending_validation"].([]any)
	if len(pending) != 1 || pending[0] != "pending@x.com" {
		testContext.Fatalf("expected pending@x.com under pending_validation, got %v", data)
	}
	for _, key := range []string{"linked_bios", "missing_bio"} {
		entries, ok := data[key].([]any)
		if !ok || len(entries) != 0 {
			testContext.Fatalf("expected empty %s, got %v", key, data[key])
		}
	}
}

func TestHandleAppendToEventRequiresEmail(testContext *testing.T) {
	router := newTestRouter(testContext, &stubBiographyService{}, nil)

	request := httptest.NewRequest(http.MethodPost, "/biography/append_bio_to_event", strings.NewReader("event_id=evt-1"))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		testContext.Fatalf("expected bad request status, got %d", recorder.Code)
	}
}

func TestHandleKeywordsParsesLimit(testContext *testing.T) {
	service := &stubBiographyService{}
	router := newTestRouter(testContext, service, nil)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/biography/keywords?q=net&limit=3", http.NoBody))
	if recorder.Code != http.StatusOK || service.keywordLimit != 3 {
		testContext.Fatalf("unexpected status %d limit %d", recorder.Code, service.keywordLimit)
	}

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/biography/keywords?q=net&limit=many", http.NoBody))
	if recorder.Code != http.StatusBadRequest {
		testContext.Fatalf("expected bad request for invalid limit, got %d", recorder.Code)
	}
}

func TestServiceErrorsMapToStatus(testContext *testing.T) {
	testCases := []struct {
		err    error
		status int
	}{
		{err: fmt.Errorf("stage: %w", biography.ErrInvalidArgument), status: http.StatusBadRequest},
		{err: fmt.Errorf("event: %w", biography.ErrInvalidReference), status: http.StatusBadRequest},
		{err: fmt.Errorf("pending: %w", biography.ErrNotFound), status: http.StatusNotFound},
		{err: fmt.Errorf("photo: %w", biography.ErrUnsupportedMediaType), status: http.StatusUnsupportedMediaType},
		{err: fmt.Errorf("disk: %w", biography.ErrInternal), status: http.StatusInternalServerError},
		{err: errors.New("unclassified"), status: http.StatusInternalServerError},
	}

	for _, testCase := range testCases {
		router := newTestRouter(testContext, &stubBiographyService{err: testCase.err}, nil)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/biography/retrieve_bios_by_event?event_id=e&biography_status=pending", http.NoBody))

		if recorder.Code != testCase.status {
			testContext.Fatalf("error %v: expected status %d, got %d", testCase.err, testCase.status, recorder.Code)
		}
		payload := decodeEnvelope(testContext, recorder)
		if payload["error_msg"] != testCase.err.Error() {
			testContext.Fatalf("expected error message %q, got %v", testCase.err.Error(), payload["error_msg"])
		}
	}
}

func TestParsePhotoFlag(testContext *testing.T) {
	testCases := []struct {
		value    string
		present  bool
		expected bool
		wantErr  bool
	}{
		{present: false, expected: false},
		{value: "true", present: true, expected: true},
		{value: " False ", present: true, expected: false},
		{value: "1", present: true, wantErr: true},
		{value: "", present: true, wantErr: true},
	}
	for _, testCase := range testCases {
		got, err := parsePhotoFlag(testCase.value, testCase.present)
		if testCase.wantErr {
			if err == nil {
				testContext.Fatalf("expected error for %q", testCase.value)
			}
			continue
		}
		if err != nil || got != testCase.expected {
			testContext.Fatalf("parsePhotoFlag(%q) = %v, %v", testCase.value, got, err)
		}
	}
}

func TestRequestIDIsPropagated(testContext *testing.T) {
	router := newTestRouter(testContext, &stubBiographyService{}, nil)

	request := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	request.Header.Set(requestIDHeader, "trace-123")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if recorder.Header().Get(requestIDHeader) != "trace-123" {
		testContext.Fatalf("expected request id to be echoed, got %q", recorder.Header().Get(requestIDHeader))
	}
}

func TestMetricsEndpointCountsRequests(testContext *testing.T) {
	router := newTestRouter(testContext, &stubBiographyService{}, NewMetrics())

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
	if recorder.Code != http.StatusOK {
		testContext.Fatalf("expected ok health status, got %d", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	if recorder.Code != http.StatusOK {
		testContext.Fatalf("expected ok metrics status, got %d", recorder.Code)
	}
	expected := `biography_http_requests_total{method="GET",route="/healthz",status="200"} 1`
	if !strings.Contains(recorder.Body.String(), expected) {
		testContext.Fatalf("expected metrics to contain %q", expected)
	}
}
