package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"voicedesk/internal/config"
	"voicedesk/pkg/utils"

	"github.com/go-resty/resty/v2"
)

// CartesiaProvider talks to the Cartesia agents API.
//
// Cartesia splits its surface across two hosts: outbound dialing and audio
// download live on the agents host, call-detail lookups on the api host.
// Both clients carry the same bearer key and Cartesia-Version header.
type CartesiaProvider struct {
	cfg    config.CartesiaConfig
	api    *resty.Client
	agents *resty.Client
	log    *slog.Logger
}

func NewCartesiaProvider(cfg config.CartesiaConfig, log *slog.Logger) *CartesiaProvider {
	if log == nil {
		log = slog.Default()
	}
	mk := func(base string) *resty.Client {
		return resty.New().
			SetBaseURL(base).
			SetAuthToken(cfg.APIKey).
			SetHeader("Cartesia-Version", cfg.Version)
	}
	return &CartesiaProvider{
		cfg:    cfg,
		api:    mk(cfg.APIBaseURL),
		agents: mk(cfg.AgentsBaseURL),
		log:    log,
	}
}

func (p *CartesiaProvider) Name() string { return "cartesia" }

func (p *CartesiaProvider) HealthCheck(ctx context.Context) error {
	if p.cfg.APIKey == "" || p.cfg.AgentID == "" {
		return fmt.Errorf("voice: cartesia credentials not configured")
	}
	return nil
}

// outboundCallResponse is the dial response. The call list carries one entry
// per target number; we only ever dial one.
type outboundCallResponse struct {
	Calls []struct {
		AgentCallID string `json:"agent_call_id"`
		CallSid     string `json:"call_sid"`
	} `json:"calls"`
}

func (p *CartesiaProvider) PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error) {
	if req.To == "" {
		return PlaceCallResult{}, fmt.Errorf("voice: destination number is required")
	}

	body := map[string]any{
		"target_numbers": []string{req.To},
		"agent_id":       p.cfg.AgentID,
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}

	resp, err := p.agents.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post("/twilio/call/outbound")
	if err != nil {
		utils.VendorRequestsTotal.WithLabelValues("place_call", "transport_error").Inc()
		return PlaceCallResult{}, fmt.Errorf("voice: place call: %w", err)
	}
	if resp.IsError() {
		utils.VendorRequestsTotal.WithLabelValues("place_call", "vendor_error").Inc()
		p.log.Error("cartesia outbound call failed", "status", resp.StatusCode(), "body", string(resp.Body()))
		return PlaceCallResult{}, &APIError{Operation: "place call", StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}
	utils.VendorRequestsTotal.WithLabelValues("place_call", "ok").Inc()

	raw := append([]byte(nil), resp.Body()...)
	var out outboundCallResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		// Call was placed; a malformed body only loses the correlation id.
		p.log.Warn("cartesia outbound response unparseable", "err", err)
		return PlaceCallResult{Raw: raw}, nil
	}

	res := PlaceCallResult{Raw: raw}
	if len(out.Calls) > 0 {
		res.AgentCallID = out.Calls[0].AgentCallID
		res.TelephonyCallID = out.Calls[0].CallSid
	}
	return res, nil
}

func (p *CartesiaProvider) GetCall(ctx context.Context, agentCallID string) (CallDetail, error) {
	if agentCallID == "" {
		return CallDetail{}, fmt.Errorf("voice: agent call id is required")
	}

	resp, err := p.api.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		Get("/agents/calls/" + agentCallID)
	if err != nil {
		utils.VendorRequestsTotal.WithLabelValues("get_call", "transport_error").Inc()
		return CallDetail{}, fmt.Errorf("voice: get call: %w", err)
	}
	if resp.IsError() {
		utils.VendorRequestsTotal.WithLabelValues("get_call", "vendor_error").Inc()
		p.log.Error("cartesia call lookup failed", "agent_call_id", agentCallID, "status", resp.StatusCode(), "body", string(resp.Body()))
		return CallDetail{}, &APIError{Operation: "get call", StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}
	utils.VendorRequestsTotal.WithLabelValues("get_call", "ok").Inc()

	raw := append([]byte(nil), resp.Body()...)
	var detail CallDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		return CallDetail{}, fmt.Errorf("voice: decode call detail: %w", err)
	}
	if detail.AgentCallID == "" {
		detail.AgentCallID = agentCallID
	}
	detail.Raw = raw
	return detail, nil
}

func (p *CartesiaProvider) GetCallAudio(ctx context.Context, agentCallID string) (Audio, error) {
	if agentCallID == "" {
		return Audio{}, fmt.Errorf("voice: agent call id is required")
	}

	resp, err := p.agents.R().
		SetContext(ctx).
		Get("/agents/calls/" + agentCallID + "/audio")
	if err != nil {
		utils.VendorRequestsTotal.WithLabelValues("get_audio", "transport_error").Inc()
		return Audio{}, fmt.Errorf("voice: get audio: %w", err)
	}
	if resp.IsError() {
		utils.VendorRequestsTotal.WithLabelValues("get_audio", "vendor_error").Inc()
		p.log.Error("cartesia audio download failed", "agent_call_id", agentCallID, "status", resp.StatusCode(), "body", string(resp.Body()))
		return Audio{}, &APIError{Operation: "get audio", StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}
	utils.VendorRequestsTotal.WithLabelValues("get_audio", "ok").Inc()

	ct := resp.Header().Get("Content-Type")
	if ct == "" {
		ct = "audio/wav"
	}
	return Audio{Bytes: append([]byte(nil), resp.Body()...), ContentType: ct}, nil
}

var _ Provider = (*CartesiaProvider)(nil)
