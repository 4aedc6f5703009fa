package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/speakerbio/internal/biography"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultMaxBodyBytes int64 = 10 << 20

var errMissingBiographyService = errors.New("biography service dependency required")

// BiographyService is the domain surface the HTTP boundary depends on.
type BiographyService interface {
	Save(ctx context.Context, request biography.SaveRequest) (biography.SaveResult, error)
	Accept(ctx context.Context, request biography.AcceptRequest) (biography.AcceptResult, error)
	RetrieveByEmail(ctx context.Context, email string) (*biography.Profile, error)
	RetrieveByID(ctx context.Context, biographyID string) (*biography.Profile, error)
	RetrieveByEvent(ctx context.Context, eventID, stage string) ([]biography.Profile, error)
	GenerateInvitation(ctx context.Context, name string) (biography.Invitation, error)
	ListEvents(ctx context.Context) ([]biography.Event, error)
	AppendToEvent(ctx context.Context, eventID, email string) (biography.AppendOutcome, error)
	AppendManyToEvent(ctx context.Context, eventID string, emails []string) (biography.AppendReport, error)
	SearchKeywords(ctx context.Context, query string, limit int) ([]string, error)
}

// PhotoMount serves locally stored photos under URLPath. A zero value disables it.
type PhotoMount struct {
	URLPath string
	Root    string
}

type Dependencies struct {
	BiographyService BiographyService
	Logger           *zap.Logger
	Metrics          *Metrics
	AllowedOrigins   []string
	Photos           PhotoMount
	MaxBodyBytes     int64
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.BiographyService == nil {
		return nil, errMissingBiographyService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxBodyBytes := deps.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}

	router := gin.New()
	router.MaxMultipartMemory = maxBodyBytes
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(requestLoggerMiddleware(logger))
	if deps.Metrics != nil {
		router.Use(deps.Metrics.middleware())
	}
	router.Use(corsMiddleware(deps.AllowedOrigins))
	router.Use(bodyLimitMiddleware(maxBodyBytes))

	handler := &httpHandler{
		biographies:  deps.BiographyService,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}

	router.GET("/healthz", handler.handleHealth)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	if mount := deps.Photos; mount.Root != "" && strings.HasPrefix(mount.URLPath, "/") && mount.URLPath != "/" {
		router.Static(strings.TrimRight(mount.URLPath, "/"), mount.Root)
	}

	routes := router.Group("/biography")
	routes.GET("/generate_invitation", handler.handleGenerateInvitation)
	routes.GET("/retrieve_bio_by_email", handler.handleRetrieveByEmail)
	routes.GET("/retrieve_bio_by_id", handler.handleRetrieveByID)
	routes.GET("/get_events", handler.handleListEvents)
	routes.GET("/retrieve_bios_by_event", handler.handleRetrieveByEvent)
	routes.GET("/keywords", handler.handleKeywords)
	routes.POST("/save_bio", handler.handleSave)
	routes.POST("/accept_bio", handler.handleAccept)
	routes.POST("/append_bio_to_event", handler.handleAppendToEvent)

	return router, nil
}

type httpHandler struct {
	biographies  BiographyService
	logger       *zap.Logger
	maxBodyBytes int64
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
