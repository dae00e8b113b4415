package domain

import "time"

// Trace header names, matched case-insensitively on the REST surface.
const (
	HeaderAITID              = "ait-id"
	HeaderBusinessTaxonomyID = "business-taxonomy-id"
	HeaderCorrelationID      = "correlation-id"
	HeaderAcceptVersion      = "accept-version"
)

// Version1_0 is the only Accept-Version this service speaks.
const Version1_0 = "v1_0"

// RequestContext is the typed envelope of trace metadata accompanying every
// synchronous operation. It travels by value; there is no ambient state.
type RequestContext struct {
	AITID              string `json:"aitId"`
	BusinessTaxonomyID string `json:"businessTaxonomyId"`
	CorrelationID      string `json:"correlationId"`
	AcceptVersion      string `json:"acceptVersion"`
}

// TraceableMessage wraps an asynchronous payload with the same trace metadata.
// All four metadata fields are mandatory; their absence is a structural
// validation failure, not a business error.
type TraceableMessage[T any] struct {
	ProducerAIT           string     `json:"producerAit"`
	BusinessTaxonomyID    string     `json:"businessTaxonomyId"`
	CorrelationID         string     `json:"correlationId"`
	MessageCreationTime   time.Time  `json:"messageCreationTime"`
	MessageCompletionTime *time.Time `json:"messageCompletionTime,omitempty"`
	Payload               *T         `json:"payload"`
}

// Complete stamps the completion time, typically just before a reply is
// published.
func (m *TraceableMessage[T]) Complete(now time.Time) {
	m.MessageCompletionTime = &now
}

// ResponseStatus is the outcome of an asynchronous request/reply exchange.
type ResponseStatus string

const (
	ResponseSuccess       ResponseStatus = "SUCCESS"
	ResponseMalformed     ResponseStatus = "MALFORMED_MESSAGE"
	ResponseInternalError ResponseStatus = "INTERNAL_ERROR"
)

// ResponseMessage pairs the originating request with its response on reply
// topics. ErrorMessage is populated only on non-success outcomes.
type ResponseMessage[Req any, Resp any] struct {
	Status       ResponseStatus `json:"status"`
	Request      *Req           `json:"request,omitempty"`
	Response     *Resp          `json:"response,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
}
