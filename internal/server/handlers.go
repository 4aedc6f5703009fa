package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/speakerbio/internal/biography"
	"github.com/gin-gonic/gin"
)

const (
	fieldUserData        = "user_data"
	fieldPhotoFile       = "photo_file"
	fieldPhotoFlag       = "photo_flag"
	fieldEventID         = "event_id"
	fieldBioEmail        = "bio_email"
	queryEventName       = "event_name"
	queryEventNameLegacy = "even_name"

	saveInsertedMessage  = "success; inserted"
	saveUpdatedMessage   = "success; updated"
	appendSuccessMessage = "success; if you have items in the pending_validation it means these emails are not validated yet. " +
		"Missing bio means that we do not have the bio in the database. You have to request it."
)

var errInvalidPhotoFlag = errors.New(`photo_flag must be "true" or "false"`)

func (h *httpHandler) handleGenerateInvitation(c *gin.Context) {
	name := c.Query(queryEventName)
	if strings.TrimSpace(name) == "" {
		name = c.Query(queryEventNameLegacy)
	}
	if strings.TrimSpace(name) == "" {
		respondBadRequest(c, "event_name is required")
		return
	}

	invitation, err := h.biographies.GenerateInvitation(c.Request.Context(), name)
	if err != nil {
		h.respondError(c, err)
		return
	}

	message := fmt.Sprintf("Event %s has been created", invitation.EventName)
	if !invitation.Created {
		message = fmt.Sprintf("Event %s already exists", invitation.EventName)
	}
	respondSuccess(c, gin.H{"link": invitation.Link, "event_id": invitation.EventID}, message)
}

func (h *httpHandler) handleRetrieveByEmail(c *gin.Context) {
	email := c.Query("user_email")
	if strings.TrimSpace(email) == "" {
		respondBadRequest(c, "user_email is required")
		return
	}
	profile, err := h.biographies.RetrieveByEmail(c.Request.Context(), email)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondProfile(c, profile)
}

func (h *httpHandler) handleRetrieveByID(c *gin.Context) {
	biographyID := c.Query("bio_id")
	if strings.TrimSpace(biographyID) == "" {
		respondBadRequest(c, "bio_id is required")
		return
	}
	profile, err := h.biographies.RetrieveByID(c.Request.Context(), biographyID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondProfile(c, profile)
}

func respondProfile(c *gin.Context, profile *biography.Profile) {
	if profile == nil {
		respondSuccess(c, gin.H{}, successMessage)
		return
	}
	respondSuccess(c, profile, successMessage)
}

func (h *httpHandler) handleListEvents(c *gin.Context) {
	events, err := h.biographies.ListEvents(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	if events == nil {
		events = []biography.Event{}
	}
	respondSuccess(c, events, successMessage)
}

func (h *httpHandler) handleRetrieveByEvent(c *gin.Context) {
	profiles, err := h.biographies.RetrieveByEvent(c.Request.Context(), c.Query(fieldEventID), c.Query("biography_status"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if profiles == nil {
		profiles = []biography.Profile{}
	}
	respondSuccess(c, profiles, successMessage)
}

func (h *httpHandler) handleKeywords(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondBadRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	keywords, err := h.biographies.SearchKeywords(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondSuccess(c, keywords, successMessage)
}

func (h *httpHandler) handleSave(c *gin.Context) {
	form, ok := h.readBiographyForm(c)
	if !ok {
		return
	}
	result, err := h.biographies.Save(c.Request.Context(), biography.SaveRequest{
		Submission:  form.submission,
		Photo:       form.photo,
		EventID:     c.PostForm(fieldEventID),
		DeletePhoto: form.deletePhoto,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	message := saveUpdatedMessage
	if result.Created {
		message = saveInsertedMessage
	}
	respondSuccess(c, gin.H{"BiographyID": result.BiographyID}, message)
}

func (h *httpHandler) handleAccept(c *gin.Context) {
	form, ok := h.readBiographyForm(c)
	if !ok {
		return
	}
	result, err := h.biographies.Accept(c.Request.Context(), biography.AcceptRequest{
		Submission:  form.submission,
		Photo:       form.photo,
		DeletePhoto: form.deletePhoto,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondSuccess(c, gin.H{"BiographyID": result.BiographyID}, saveInsertedMessage)
}

func (h *httpHandler) handleAppendToEvent(c *gin.Context) {
	if !h.parseForm(c) {
		return
	}
	emails := c.PostFormArray(fieldBioEmail)
	if len(emails) == 0 {
		respondBadRequest(c, "bio_email is required")
		return
	}
	report, err := h.appendToEvent(c, c.PostForm(fieldEventID), emails)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondSuccess(c, gin.H{
		"linked_bios":        report.Linked,
		"pending_validation": report.Pending,
		"missing_bio":        report.Missing,
	}, appendSuccessMessage)
}

func (h *httpHandler) appendToEvent(c *gin.Context, eventID string, emails []string) (biography.AppendReport, error) {
	if len(emails) > 1 {
		return h.biographies.AppendManyToEvent(c.Request.Context(), eventID, emails)
	}
	outcome, err := h.biographies.AppendToEvent(c.Request.Context(), eventID, emails[0])
	if err != nil {
		return biography.AppendReport{}, err
	}
	report := biography.NewAppendReport()
	report.Add(outcome)
	return report, nil
}

type biographyForm struct {
	submission  biography.Submission
	photo       *biography.PhotoUpload
	deletePhoto bool
}

// readBiographyForm decodes the multipart fields shared by save and accept. It writes the
// error response itself and reports false when the request cannot proceed.
func (h *httpHandler) readBiographyForm(c *gin.Context) (biographyForm, bool) {
	var form biographyForm
	if !h.parseForm(c) {
		return form, false
	}

	userData, present := c.GetPostForm(fieldUserData)
	if !present || strings.TrimSpace(userData) == "" {
		respondBadRequest(c, "user_data is required")
		return form, false
	}
	if err := json.Unmarshal([]byte(userData), &form.submission); err != nil {
		respondBadRequest(c, "user_data must be a JSON biography object")
		return form, false
	}

	deletePhoto, err := parsePhotoFlag(c.GetPostForm(fieldPhotoFlag))
	if err != nil {
		respondBadRequest(c, err.Error())
		return form, false
	}
	form.deletePhoto = deletePhoto

	photo, err := readPhoto(c)
	if err != nil {
		_ = c.Error(err)
		respondBadRequest(c, "photo_file could not be read")
		return form, false
	}
	form.photo = photo
	return form, true
}

// parseForm reads a multipart or urlencoded body once, answering 413 when the body limit is hit.
func (h *httpHandler) parseForm(c *gin.Context) bool {
	err := c.Request.ParseMultipartForm(h.maxBodyBytes)
	if err == nil || errors.Is(err, http.ErrNotMultipart) {
		return true
	}
	_ = c.Error(err)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, envelope{Data: gin.H{}, ErrorMsg: "request body too large"})
		return false
	}
	respondBadRequest(c, "malformed form body")
	return false
}

// parsePhotoFlag accepts only "true" or "false". An absent flag keeps the stored photo.
func parsePhotoFlag(value string, present bool) (bool, error) {
	if !present {
		return false, nil
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, errInvalidPhotoFlag
	}
}

// readPhoto returns nil when no file, or a file without a name, was posted.
func readPhoto(c *gin.Context) (*biography.PhotoUpload, error) {
	header, err := c.FormFile(fieldPhotoFile)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read photo upload: %w", err)
	}
	if header.Filename == "" {
		return nil, nil
	}
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open photo upload: %w", err)
	}
	defer file.Close()
	contents, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read photo upload: %w", err)
	}
	return &biography.PhotoUpload{Filename: header.Filename, Contents: contents}, nil
}
