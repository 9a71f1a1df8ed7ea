package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/kirillkom/plainlaw/internal/core/domain"
	"github.com/kirillkom/plainlaw/internal/core/ports"
	"github.com/kirillkom/plainlaw/internal/infrastructure/resilience"
)

// Queue carries process requests over NATS request-reply. On the client side
// it is a ports.DocumentProcessor; workers answer through Serve.
type Queue struct {
	conn           *nats.Conn
	subject        string
	queueGroup     string
	requestTimeout time.Duration
	executor       *resilience.Executor
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	QueueGroup           string
	// RequestTimeout bounds Process when ctx has no deadline.
	RequestTimeout     time.Duration
	ResilienceExecutor *resilience.Executor
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	queueGroup := options.QueueGroup
	if queueGroup == "" {
		queueGroup = "plainlaw-workers"
	}
	requestTimeout := options.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 330 * time.Second
	}

	conn, err := nats.Connect(
		url,
		nats.Name("plainlaw"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:           conn,
		subject:        subject,
		queueGroup:     queueGroup,
		requestTimeout: requestTimeout,
		executor:       options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// Process sends input to a worker and waits for its reply.
func (q *Queue) Process(ctx context.Context, input domain.RawInput) (*domain.ProcessDocumentResult, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.requestTimeout)
		defer cancel()
	}

	requestID := uuid.NewString()
	deadline, _ := ctx.Deadline()
	payload, err := json.Marshal(requestFromInput(requestID, input, time.Now(), deadline))
	if err != nil {
		return nil, fmt.Errorf("marshal process request: %w", err)
	}
	msg := nats.NewMsg(q.subject)
	msg.Header.Set(requestIDHeader, requestID)
	msg.Data = payload

	response, err := resilience.Call(ctx, q.executor, "nats.request", func(callCtx context.Context) (*nats.Msg, error) {
		resp, err := q.conn.RequestMsgWithContext(callCtx, msg)
		if err != nil {
			return nil, fmt.Errorf("nats request: %w", err)
		}
		return resp, nil
	}, classifyNATSError)
	if err != nil {
		return nil, wrapRequestError(err)
	}

	var reply ProcessReply
	if err := json.Unmarshal(response.Data, &reply); err != nil {
		return nil, fmt.Errorf("decode process reply: %w", err)
	}
	return reply.outcome()
}

// ServeHooks observe each handled request. Both are optional.
type ServeHooks struct {
	OnStart  func(req ProcessRequest)
	OnFinish func(req ProcessRequest, duration time.Duration, err error)
}

// Serve answers process requests until ctx is done, running at most
// concurrency requests at a time, then drains the subscription.
func (q *Queue) Serve(ctx context.Context, processor ports.DocumentProcessor, concurrency int, hooks ServeHooks) error {
	if concurrency <= 0 {
		concurrency = 1
	}
	slots := make(chan struct{}, concurrency)
	var inFlight sync.WaitGroup

	sub, err := q.conn.QueueSubscribe(q.subject, q.queueGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			return
		}
		inFlight.Add(1)
		go func() {
			defer inFlight.Done()
			defer func() { <-slots }()
			q.handle(ctx, processor, msg, hooks)
		}()
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	slog.Info("nats_serving", "subject", q.subject, "queue_group", q.queueGroup, "concurrency", concurrency)

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	inFlight.Wait()
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (q *Queue) handle(ctx context.Context, processor ports.DocumentProcessor, msg *nats.Msg, hooks ServeHooks) {
	start := time.Now()
	req, input, err := decodeRequest(msg.Data)
	if req.RequestID == "" && msg.Header != nil {
		req.RequestID = msg.Header.Get(requestIDHeader)
	}
	if hooks.OnStart != nil {
		hooks.OnStart(req)
	}

	if !req.Deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, req.Deadline)
		defer cancel()
	}

	var result *domain.ProcessDocumentResult
	if err == nil {
		result, err = processor.Process(ctx, input)
	}
	if hooks.OnFinish != nil {
		hooks.OnFinish(req, time.Since(start), err)
	}
	if err != nil {
		slog.Warn("queue_request_failed",
			"request_id", req.RequestID,
			"error_kind", domain.ErrorKindName(err),
			"error", err,
		)
	}

	if msg.Reply == "" {
		return
	}
	if respondErr := msg.Respond(encodeReply(result, err)); respondErr != nil {
		slog.Error("nats_respond_failed", "request_id", req.RequestID, "error", respondErr)
	}
}

func decodeRequest(data []byte) (ProcessRequest, domain.RawInput, error) {
	var req ProcessRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return req, domain.RawInput{}, domain.WrapError(domain.ErrInvalidInput, "decode request", err)
	}
	input, err := req.rawInput()
	return req, input, err
}

func encodeReply(result *domain.ProcessDocumentResult, err error) []byte {
	out, marshalErr := json.Marshal(replyFromOutcome(result, err))
	if marshalErr != nil {
		slog.Error("encode_reply_failed", "error", marshalErr)
		return []byte(`{"errorKind":"InternalError","message":"Something went wrong while processing the document."}`)
	}
	return out
}
