package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/cukee-curation/internal/http/response"
	"github.com/yungbote/cukee-curation/internal/modules/curation"
	"github.com/yungbote/cukee-curation/internal/modules/curation/persona"
	"github.com/yungbote/cukee-curation/internal/platform/ctxutil"
	"github.com/yungbote/cukee-curation/internal/platform/logger"
	"github.com/yungbote/cukee-curation/internal/platform/personacache"
)

// CurationService is implemented by curation.Usecases.
type CurationService interface {
	Curate(ctx context.Context, in curation.CurateInput) (curation.CurateOutput, error)
	MovieDetail(ctx context.Context, in curation.DetailInput) (curation.DetailOutput, error)
	ClearSession(ctx context.Context, sessionID string) (int, error)
	SessionEntries(ctx context.Context, sessionID string) ([]personacache.Entry, error)
	RandomByTicket(ctx context.Context, in curation.RandomInput) (curation.RandomOutput, error)
	Themes() []persona.Theme
}

type CurationHandler struct {
	log *logger.Logger
	svc CurationService
}

func NewCurationHandler(log *logger.Logger, svc CurationService) *CurationHandler {
	return &CurationHandler{
		log: log.With("handler", "CurationHandler"),
		svc: svc,
	}
}

type generateRequest struct {
	Prompt              string          `json:"prompt"`
	Theme               string          `json:"theme"`
	TicketID            int64           `json:"ticketId"`
	PinnedIDs           []int64         `json:"pinnedIds"`
	AdultContentAllowed bool            `json:"adultContentAllowed"`
	Temperature         *float64        `json:"temperature"`
	TopP                *float64        `json:"topP"`
	TopK                *int            `json:"topK"`
	MaxNewTokens        *int            `json:"maxNewTokens"`
	Design              json.RawMessage `json:"design"`
}

func (r generateRequest) validateSampling() error {
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return fmt.Errorf("temperature must be within [0, 2]")
	}
	if r.TopP != nil && (*r.TopP <= 0 || *r.TopP > 1) {
		return fmt.Errorf("topP must be within (0, 1]")
	}
	if r.TopK != nil && *r.TopK < 0 {
		return fmt.Errorf("topK must not be negative")
	}
	if r.MaxNewTokens != nil && (*r.MaxNewTokens < 1 || *r.MaxNewTokens > 4096) {
		return fmt.Errorf("maxNewTokens must be within [1, 4096]")
	}
	return nil
}

// Generate runs the curation pipeline. A guardrail block is a normal 200.
func (h *CurationHandler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.validateSampling(); err != nil {
		badRequest(c, err)
		return
	}
	design := req.Design
	if strings.TrimSpace(string(design)) == "null" {
		design = nil
	}

	out, err := h.svc.Curate(c.Request.Context(), curation.CurateInput{
		Prompt:              req.Prompt,
		Theme:               req.Theme,
		TicketID:            req.TicketID,
		PinnedIDs:           req.PinnedIDs,
		AdultContentAllowed: req.AdultContentAllowed,
		Sampling: &curation.SamplingOverride{
			Temperature:  req.Temperature,
			TopP:         req.TopP,
			TopK:         req.TopK,
			MaxNewTokens: req.MaxNewTokens,
		},
		Design: design,
	})
	if err != nil {
		respondCurationError(c, h.log, "Generate", err)
		return
	}
	response.RespondOK(c, out)
}

type movieDetailRequest struct {
	MovieID   int64  `json:"movieId"`
	Theme     string `json:"theme"`
	TicketID  int64  `json:"ticketId"`
	SessionID string `json:"sessionId"`
}

func (h *CurationHandler) MovieDetail(c *gin.Context) {
	var req movieDetailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	session := strings.TrimSpace(req.SessionID)
	if session == "" {
		session = ctxutil.SessionID(c.Request.Context())
	}
	out, err := h.svc.MovieDetail(c.Request.Context(), curation.DetailInput{
		MovieID:   req.MovieID,
		Theme:     req.Theme,
		TicketID:  req.TicketID,
		SessionID: session,
	})
	if err != nil {
		respondCurationError(c, h.log, "MovieDetail", err)
		return
	}
	response.RespondOK(c, out)
}

type curateMoviesRequest struct {
	TicketID     int64 `json:"ticketId"`
	Limit        int   `json:"limit"`
	AdultExclude bool  `json:"adultExclude"`
}

// CurateMovies samples movies of a ticket without generation.
func (h *CurationHandler) CurateMovies(c *gin.Context) {
	var req curateMoviesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	out, err := h.svc.RandomByTicket(c.Request.Context(), curation.RandomInput{
		TicketID:     req.TicketID,
		Limit:        req.Limit,
		AdultExclude: req.AdultExclude,
	})
	if err != nil {
		respondCurationError(c, h.log, "CurateMovies", err)
		return
	}
	response.RespondOK(c, out)
}

func (h *CurationHandler) ClearSessionCache(c *gin.Context) {
	sessionID := c.Param("sessionId")
	n, err := h.svc.ClearSession(c.Request.Context(), sessionID)
	if err != nil {
		respondCurationError(c, h.log, "ClearSessionCache", err)
		return
	}
	response.RespondOK(c, gin.H{"sessionId": sessionID, "deleted": n})
}

type sessionEntryDTO struct {
	MovieID  int64  `json:"movieId"`
	TicketID int64  `json:"ticketId"`
	Title    string `json:"title"`
	Detail   string `json:"detail"`
}

func (h *CurationHandler) ListSessionCache(c *gin.Context) {
	sessionID := c.Param("sessionId")
	entries, err := h.svc.SessionEntries(c.Request.Context(), sessionID)
	if err != nil {
		respondCurationError(c, h.log, "ListSessionCache", err)
		return
	}
	out := make([]sessionEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, sessionEntryDTO{MovieID: e.MovieID, TicketID: e.TicketID, Title: e.Title, Detail: e.Detail})
	}
	response.RespondOK(c, gin.H{"sessionId": sessionID, "entries": out})
}

func (h *CurationHandler) Themes(c *gin.Context) {
	themes := h.svc.Themes()
	response.RespondOK(c, gin.H{"themes": themes, "total": len(themes)})
}
