package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/qslv/transaction-engine/internal/core/domain"
	"github.com/qslv/transaction-engine/internal/core/ports"
	"github.com/qslv/transaction-engine/internal/dto"
	"github.com/qslv/transaction-engine/internal/metrics"
	"github.com/qslv/transaction-engine/internal/middleware"
	"github.com/qslv/transaction-engine/internal/platform/config"
)

// FulfillmentService consumes the asynchronous fulfillment topics. The
// transfer request topic is fire-and-forget: malformed or unprocessable
// messages go to the dead-letter topic with a diagnostic string. The commit,
// cancel, and transaction topics are request/reply: every consumed message
// produces exactly one reply envelope, whatever the outcome, and the pipeline
// never stops on a bad message.
type FulfillmentService struct {
	BaseService
	ledger       ports.LedgerSvc
	reserveFunds ports.ReserveFundsSvc
	publisher    ports.Publisher
	topics       config.Topics
	producerAIT  string
	logger       *slog.Logger
}

// NewFulfillmentService creates the fulfillment consumer set. logger becomes
// the base of each message-scoped logger, the async counterpart of the HTTP
// logging middleware.
func NewFulfillmentService(ledger ports.LedgerSvc, reserveFunds ports.ReserveFundsSvc, publisher ports.Publisher, topics config.Topics, producerAIT string, logger *slog.Logger) *FulfillmentService {
	return &FulfillmentService{
		ledger:       ledger,
		reserveFunds: reserveFunds,
		publisher:    publisher,
		topics:       topics,
		producerAIT:  producerAIT,
		logger:       logger,
	}
}

// Register attaches every consumer to its topic.
func (s *FulfillmentService) Register(sub ports.Subscriber, workers int) {
	sub.Subscribe(s.topics.TransferRequest, workers, s.HandleTransferRequest)
	sub.Subscribe(s.topics.CommitRequest, workers, s.HandleCommitRequest)
	sub.Subscribe(s.topics.CancelRequest, workers, s.HandleCancelRequest)
	sub.Subscribe(s.topics.TransactionRequest, workers, s.HandleTransactionRequest)
}

func (s *FulfillmentService) messageContext(ctx context.Context, msg ports.Message, correlationID string) context.Context {
	logger := s.logger.With(
		slog.String("topic", msg.Topic),
		slog.String("key", msg.Key),
	)
	if correlationID != "" {
		logger = logger.With(slog.String("correlation_id", correlationID))
	}
	return middleware.ContextWithLogger(ctx, logger)
}

// validateEnvelope checks the trace envelope in fixed order and returns the
// first failure text, or empty when the envelope is sound.
func validateEnvelope[T any](env domain.TraceableMessage[T]) string {
	switch {
	case env.Payload == nil:
		return "Missing Fulfillment Message"
	case env.ProducerAIT == "":
		return "Missing Producer AIT Id"
	case env.CorrelationID == "":
		return "Missing Correlation Id"
	case env.BusinessTaxonomyID == "":
		return "Missing Business Taxonomy Id"
	case env.MessageCreationTime.IsZero():
		return "Missing Message Creation Time"
	}
	return ""
}

// envelopeContext lifts the envelope's trace metadata into the request context
// the services expect.
func envelopeContext[T any](env domain.TraceableMessage[T]) domain.RequestContext {
	return domain.RequestContext{
		AITID:              env.ProducerAIT,
		BusinessTaxonomyID: env.BusinessTaxonomyID,
		CorrelationID:      env.CorrelationID,
		AcceptVersion:      domain.Version1_0,
	}
}

func validateTransferPayload(msg dto.TransferFulfillmentMessage) string {
	switch {
	case msg.RequestUUID == "":
		return "Missing From Request UUID"
	case msg.ReservationUUID == "":
		return "Missing From Reservation UUID"
	case msg.FromAccountNumber == "":
		return "Missing From Account Number"
	case msg.ToAccountNumber == "":
		return "Missing To Account Number"
	case msg.TransactionMetadataJSON == "":
		return "Missing Meta Data"
	case msg.Version == "":
		return "Missing Version"
	case msg.Version != dto.TransferFulfillmentVersion:
		return "Invalid Version"
	case msg.TransactionAmount <= 0:
		return "Transaction Amount must be greater than zero"
	}
	return ""
}

func validateCommitPayload(req dto.CommitReservationRequest) string {
	switch {
	case req.RequestUUID == "":
		return "Missing From Request UUID"
	case req.ReservationUUID == "":
		return "Missing From Reservation UUID"
	case req.TransactionMetadataJSON == "":
		return "Missing Meta Data"
	case req.Version == "":
		return "Missing Version"
	case req.Version != domain.Version1_0:
		return "Invalid Version"
	}
	return ""
}

func validateCancelPayload(req dto.CancelReservationRequest) string {
	switch {
	case req.RequestUUID == "":
		return "Missing From Request UUID"
	case req.ReservationUUID == "":
		return "Missing From Reservation UUID"
	case req.TransactionMetadataJSON == "":
		return "Missing Meta Data"
	case req.Version == "":
		return "Missing Version"
	case req.Version != domain.Version1_0:
		return "Invalid Version"
	}
	return ""
}

func validateTransactionPayload(req dto.TransactionRequest) string {
	switch {
	case req.RequestUUID == "":
		return "Missing From Request UUID"
	case req.AccountNumber == "" && req.DebitCardNumber == "":
		return "Missing From Account Number"
	case req.TransactionMetadataJSON == "":
		return "Missing Meta Data"
	case req.Version == "":
		return "Missing Version"
	case req.Version != domain.Version1_0:
		return "Invalid Version"
	case req.TransactionAmount == 0:
		return "Transaction Amount must not be zero"
	}
	return ""
}

// deadLetter publishes a diagnostic string to the dead-letter topic.
func (s *FulfillmentService) deadLetter(ctx context.Context, msg ports.Message, text string) {
	metrics.DeadLettersTotal.Inc()
	s.LogInfo(ctx, "Dead-lettering fulfillment message", slog.String("reason", text))
	if err := s.publisher.Publish(ctx, s.topics.DeadLetter, msg.Key, []byte(text)); err != nil {
		s.LogError(ctx, err, "Failed to publish dead letter")
	}
}

// publishReply builds and publishes a reply envelope pairing the originating
// request with its outcome, stamping the completion time.
func publishReply[Req, Resp any](ctx context.Context, s *FulfillmentService, replyTopic string, msg ports.Message, env domain.TraceableMessage[Req], status domain.ResponseStatus, response *Resp, errText string) {
	metrics.FulfillmentsTotal.WithLabelValues(msg.Topic, string(status)).Inc()
	reply := domain.TraceableMessage[domain.ResponseMessage[Req, Resp]]{
		ProducerAIT:         s.producerAIT,
		BusinessTaxonomyID:  env.BusinessTaxonomyID,
		CorrelationID:       env.CorrelationID,
		MessageCreationTime: time.Now(),
		Payload: &domain.ResponseMessage[Req, Resp]{
			Status:       status,
			Request:      env.Payload,
			Response:     response,
			ErrorMessage: errText,
		},
	}
	reply.Complete(time.Now())

	raw, err := json.Marshal(reply)
	if err != nil {
		s.LogError(ctx, err, "Failed to marshal fulfillment reply")
		return
	}
	if err := s.publisher.Publish(ctx, replyTopic, msg.Key, raw); err != nil {
		s.LogError(ctx, err, "Failed to publish fulfillment reply",
			slog.String("reply_topic", replyTopic))
	}
}

// HandleTransferRequest completes the second leg of a transfer: credit the
// destination account, then commit the source reservation at its reserved
// amount. Both rows are keyed by the message's request UUID, so redelivery
// replays to the same rows. There is no reply topic; every failure goes to the
// dead-letter topic.
func (s *FulfillmentService) HandleTransferRequest(ctx context.Context, msg ports.Message) {
	ctx = s.messageContext(ctx, msg, "")

	var env domain.TraceableMessage[dto.TransferFulfillmentMessage]
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		metrics.FulfillmentsTotal.WithLabelValues(msg.Topic, string(domain.ResponseMalformed)).Inc()
		s.deadLetter(ctx, msg, fmt.Sprintf("Unreadable Fulfillment Message: %v", err))
		return
	}
	ctx = s.messageContext(ctx, msg, env.CorrelationID)

	text := validateEnvelope(env)
	if text == "" {
		text = validateTransferPayload(*env.Payload)
	}
	if text != "" {
		metrics.FulfillmentsTotal.WithLabelValues(msg.Topic, string(domain.ResponseMalformed)).Inc()
		s.deadLetter(ctx, msg, text)
		return
	}

	payload := *env.Payload
	rc := envelopeContext(env)

	if _, err := s.ledger.Transact(ctx, rc, dto.TransactionRequest{
		RequestUUID:             payload.RequestUUID,
		AccountNumber:           payload.ToAccountNumber,
		TransactionAmount:       payload.TransactionAmount,
		TransactionMetadataJSON: payload.TransactionMetadataJSON,
	}); err != nil {
		metrics.FulfillmentsTotal.WithLabelValues(msg.Topic, string(domain.ResponseInternalError)).Inc()
		s.deadLetter(ctx, msg, fmt.Sprintf("transfer fulfillment failed crediting account %s: %v", payload.ToAccountNumber, err))
		return
	}

	if _, err := s.ledger.Commit(ctx, rc, dto.CommitReservationRequest{
		RequestUUID:             payload.RequestUUID,
		ReservationUUID:         payload.ReservationUUID,
		TransactionAmount:       -payload.TransactionAmount,
		TransactionMetadataJSON: payload.TransactionMetadataJSON,
	}); err != nil {
		metrics.FulfillmentsTotal.WithLabelValues(msg.Topic, string(domain.ResponseInternalError)).Inc()
		s.deadLetter(ctx, msg, fmt.Sprintf("transfer fulfillment failed committing reservation %s: %v", payload.ReservationUUID, err))
		return
	}

	metrics.FulfillmentsTotal.WithLabelValues(msg.Topic, string(domain.ResponseSuccess)).Inc()
	s.LogInfo(ctx, "Transfer fulfillment completed",
		slog.String("reservation_uuid", payload.ReservationUUID),
		slog.String("to_account", payload.ToAccountNumber))
}

// HandleCommitRequest is the request/reply consumer for reservation commits.
func (s *FulfillmentService) HandleCommitRequest(ctx context.Context, msg ports.Message) {
	ctx = s.messageContext(ctx, msg, "")

	var env domain.TraceableMessage[dto.CommitReservationRequest]
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		publishReply[dto.CommitReservationRequest, domain.TransactionResource](
			ctx, s, s.topics.CommitReply, msg, env, domain.ResponseMalformed, nil,
			fmt.Sprintf("Unreadable Fulfillment Message: %v", err))
		return
	}
	ctx = s.messageContext(ctx, msg, env.CorrelationID)

	text := validateEnvelope(env)
	if text == "" {
		text = validateCommitPayload(*env.Payload)
	}
	if text != "" {
		publishReply[dto.CommitReservationRequest, domain.TransactionResource](
			ctx, s, s.topics.CommitReply, msg, env, domain.ResponseMalformed, nil, text)
		return
	}

	resp, err := s.ledger.Commit(ctx, envelopeContext(env), *env.Payload)
	if err != nil {
		publishReply[dto.CommitReservationRequest, domain.TransactionResource](
			ctx, s, s.topics.CommitReply, msg, env, domain.ResponseInternalError, nil, err.Error())
		return
	}
	publishReply(ctx, s, s.topics.CommitReply, msg, env, domain.ResponseSuccess, resp.Resource, "")
}

// HandleCancelRequest is the request/reply consumer for reservation cancels.
func (s *FulfillmentService) HandleCancelRequest(ctx context.Context, msg ports.Message) {
	ctx = s.messageContext(ctx, msg, "")

	var env domain.TraceableMessage[dto.CancelReservationRequest]
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		publishReply[dto.CancelReservationRequest, domain.TransactionResource](
			ctx, s, s.topics.CancelReply, msg, env, domain.ResponseMalformed, nil,
			fmt.Sprintf("Unreadable Fulfillment Message: %v", err))
		return
	}
	ctx = s.messageContext(ctx, msg, env.CorrelationID)

	text := validateEnvelope(env)
	if text == "" {
		text = validateCancelPayload(*env.Payload)
	}
	if text != "" {
		publishReply[dto.CancelReservationRequest, domain.TransactionResource](
			ctx, s, s.topics.CancelReply, msg, env, domain.ResponseMalformed, nil, text)
		return
	}

	resp, err := s.ledger.Cancel(ctx, envelopeContext(env), *env.Payload)
	if err != nil {
		publishReply[dto.CancelReservationRequest, domain.TransactionResource](
			ctx, s, s.topics.CancelReply, msg, env, domain.ResponseInternalError, nil, err.Error())
		return
	}
	publishReply(ctx, s, s.topics.CancelReply, msg, env, domain.ResponseSuccess, resp.Resource, "")
}

// HandleTransactionRequest is the request/reply consumer for direct
// transactions. It honors overdraft protection, so a reply can carry the full
// multi-row overdraft settlement.
func (s *FulfillmentService) HandleTransactionRequest(ctx context.Context, msg ports.Message) {
	ctx = s.messageContext(ctx, msg, "")

	var env domain.TraceableMessage[dto.TransactionRequest]
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		publishReply[dto.TransactionRequest, dto.TransactionResponse](
			ctx, s, s.topics.TransactionReply, msg, env, domain.ResponseMalformed, nil,
			fmt.Sprintf("Unreadable Fulfillment Message: %v", err))
		return
	}
	ctx = s.messageContext(ctx, msg, env.CorrelationID)

	text := validateEnvelope(env)
	if text == "" {
		text = validateTransactionPayload(*env.Payload)
	}
	if text != "" {
		publishReply[dto.TransactionRequest, dto.TransactionResponse](
			ctx, s, s.topics.TransactionReply, msg, env, domain.ResponseMalformed, nil, text)
		return
	}

	resp, err := s.reserveFunds.TransactWithOverdraft(ctx, envelopeContext(env), *env.Payload)
	if err != nil {
		publishReply[dto.TransactionRequest, dto.TransactionResponse](
			ctx, s, s.topics.TransactionReply, msg, env, domain.ResponseInternalError, nil, err.Error())
		return
	}
	publishReply(ctx, s, s.topics.TransactionReply, msg, env, domain.ResponseSuccess, resp, "")
}
