package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qslv/transaction-engine/internal/core/domain"
)

const requestContextKey = contextKey("requestContext")

// TraceHeadersMiddleware extracts the mandatory trace headers into a typed
// domain.RequestContext. A missing header or an unrecognized Accept-Version is
// a bad request; nothing downstream runs without a complete context.
func TraceHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		rc := domain.RequestContext{
			AITID:              c.GetHeader(domain.HeaderAITID),
			BusinessTaxonomyID: c.GetHeader(domain.HeaderBusinessTaxonomyID),
			CorrelationID:      c.GetHeader(domain.HeaderCorrelationID),
			AcceptVersion:      c.GetHeader(domain.HeaderAcceptVersion),
		}

		switch {
		case rc.AITID == "":
			abortBadHeader(c, "Missing AIT-ID header")
			return
		case rc.BusinessTaxonomyID == "":
			abortBadHeader(c, "Missing Business-Taxonomy-ID header")
			return
		case rc.CorrelationID == "":
			abortBadHeader(c, "Missing Correlation-ID header")
			return
		case rc.AcceptVersion == "":
			abortBadHeader(c, "Missing Accept-Version header")
			return
		case rc.AcceptVersion != domain.Version1_0:
			abortBadHeader(c, "Unrecognized Accept-Version: "+rc.AcceptVersion)
			return
		}

		// Fold the correlation id into the request logger for traceability
		logger := GetLoggerFromCtx(c.Request.Context()).With(
			slog.String("correlation_id", rc.CorrelationID))
		ctx := ContextWithLogger(c.Request.Context(), logger)
		c.Request = c.Request.WithContext(ctx)

		c.Set(string(requestContextKey), rc)
		c.Next()
	}
}

func abortBadHeader(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

// GetRequestContext retrieves the trace context placed by
// TraceHeadersMiddleware. The bool is false when the middleware did not run.
func GetRequestContext(c *gin.Context) (domain.RequestContext, bool) {
	val, exists := c.Get(string(requestContextKey))
	if !exists {
		return domain.RequestContext{}, false
	}
	rc, ok := val.(domain.RequestContext)
	return rc, ok
}
