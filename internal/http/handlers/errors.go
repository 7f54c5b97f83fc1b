package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/cukee-curation/internal/http/response"
	"github.com/yungbote/cukee-curation/internal/inference/engine"
	"github.com/yungbote/cukee-curation/internal/modules/curation"
	"github.com/yungbote/cukee-curation/internal/modules/curation/persona"
	"github.com/yungbote/cukee-curation/internal/platform/apierr"
	"github.com/yungbote/cukee-curation/internal/platform/logger"
)

func isRetrievalTimeout(err error) bool {
	var se *curation.StageError
	return errors.As(err, &se) && se.Stage == curation.StageRetrieving && errors.Is(err, engine.ErrTimeout)
}

// Order matters: the first matching rule wins.
var curationErrorRules = []apierr.Rule{
	{Match: persona.IsUnknownTheme, Status: http.StatusBadRequest, Code: "unknown_theme"},
	apierr.Is(curation.ErrInvalidRequest, http.StatusBadRequest, "invalid_request"),
	apierr.Is(curation.ErrNoCandidates, http.StatusNotFound, "no_candidates"),
	apierr.Is(curation.ErrMovieNotFound, http.StatusNotFound, "movie_not_found"),
	{Match: isRetrievalTimeout, Status: http.StatusGatewayTimeout, Code: "retrieval_timeout"},
	apierr.Is(engine.ErrTimeout, http.StatusGatewayTimeout, "generator_timeout"),
	apierr.Is(engine.ErrUnavailable, http.StatusServiceUnavailable, "generator_unavailable"),
	apierr.Is(curation.ErrEmptyGeneration, http.StatusBadGateway, "empty_generation"),
}

func respondCurationError(c *gin.Context, log *logger.Logger, op string, err error) {
	ae := apierr.Classify(err, curationErrorRules...)
	if ae.Status >= http.StatusInternalServerError {
		log.Error(op+" failed", "code", ae.Code, "outcome", curation.Outcome(err), "error", err)
	}
	response.RespondAPIError(c, ae)
}

func badRequest(c *gin.Context, err error) {
	response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
}
