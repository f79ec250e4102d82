package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"rollcall/internal/metrics"
	"rollcall/internal/types"
)

// DeliveryAck carries the provider's acknowledgement of an accepted message.
type DeliveryAck struct {
	MessageID string
}

// GatewayClientConfig holds the configuration for creating a GatewayClient.
type GatewayClientConfig struct {
	APIKey  string
	BaseURL string
	Logger  *slog.Logger
}

// GatewayClient sends SMS messages through the provider's HTTP API via
// BaseClient, which supplies the circuit breaker, retry, and error mapping.
// Any non-explicit-success response, including transport errors and
// timeouts, is surfaced as a delivery error.
type GatewayClient struct {
	base    *BaseClient
	apiKey  string
	baseURL string
	logger  *slog.Logger
}

// NewGatewayClient creates a new GatewayClient. The httpClient timeout bounds
// each attempt so a stuck gateway call cannot stall a sweep indefinitely.
func NewGatewayClient(httpClient *http.Client, cfg GatewayClientConfig) *GatewayClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"sms-gateway",
		DefaultRetryPolicy(),
		"RollCall/1.0",
	)

	return &GatewayClient{
		base:    base,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

// NewGatewayClientWithBase creates a GatewayClient with a pre-configured
// BaseClient. Useful for tests that need to control retry behavior.
func NewGatewayClientWithBase(base *BaseClient, cfg GatewayClientConfig) *GatewayClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &GatewayClient{
		base:    base,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

// gatewaySendRequest is the provider's message submission payload.
type gatewaySendRequest struct {
	Sender  string `json:"sender"`
	To      string `json:"to"`
	Content string `json:"content"`
}

// gatewaySendResponse is the provider's submission response.
type gatewaySendResponse struct {
	Status    string `json:"status"`
	MessageID string `json:"message_id"`
	Message   string `json:"message"` // human-readable detail on rejection
}

// gatewayStatusSuccess is the only response status treated as delivered.
const gatewayStatusSuccess = "success"

// Send submits one message to the gateway and normalizes the outcome.
// senderID must fit the gateway's alphanumeric sender limit and content the
// single-segment length; both are validated here as a last line of defense.
func (g *GatewayClient) Send(ctx context.Context, senderID, phone, content string) (DeliveryAck, error) {
	if len(senderID) > types.SenderNameMaxLen {
		return DeliveryAck{}, types.NewAppError(
			types.ErrCodeValidationSenderTooLong,
			fmt.Sprintf("sender id %q exceeds %d characters", senderID, types.SenderNameMaxLen),
			nil,
		)
	}
	if utf8.RuneCountInString(content) > types.MaxMessageLen {
		return DeliveryAck{}, types.NewAppError(
			types.ErrCodeFormatTooLong,
			"message content exceeds single-segment SMS limit",
			nil,
		)
	}

	body, err := json.Marshal(gatewaySendRequest{
		Sender:  senderID,
		To:      phone,
		Content: content,
	})
	if err != nil {
		return DeliveryAck{}, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to marshal gateway send payload",
			err,
		)
	}

	reqURL := g.baseURL + "/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return DeliveryAck{}, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to build gateway request",
			err,
		)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	start := time.Now()
	resp, err := g.base.Do(req)
	metrics.ObserveGatewayRequestDuration(time.Since(start).Seconds())
	if err != nil {
		// BaseClient exhausted retries or the breaker is open.
		return DeliveryAck{}, types.NewAppError(
			types.ErrCodeUpstreamGateway,
			"gateway send failed",
			err,
		)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return DeliveryAck{}, types.NewAppError(
			types.ErrCodeUpstreamGateway,
			"failed to read gateway response",
			err,
		)
	}

	if resp.StatusCode != http.StatusOK {
		return DeliveryAck{}, types.NewAppError(
			types.ErrCodeDeliveryFailed,
			fmt.Sprintf("gateway rejected message: status %d", resp.StatusCode),
			fmt.Errorf("%s", strings.TrimSpace(string(respBody))),
		)
	}

	var parsed gatewaySendResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return DeliveryAck{}, types.NewAppError(
			types.ErrCodeUpstreamGateway,
			"failed to decode gateway response",
			err,
		)
	}

	if parsed.Status != gatewayStatusSuccess {
		return DeliveryAck{}, types.NewAppError(
			types.ErrCodeDeliveryFailed,
			fmt.Sprintf("gateway returned status %q: %s", parsed.Status, parsed.Message),
			nil,
		)
	}

	g.logger.InfoContext(ctx, "gateway accepted message",
		"provider_message_id", parsed.MessageID,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return DeliveryAck{MessageID: parsed.MessageID}, nil
}
