// Package mailer sends template-based transactional email through an
// external provider.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

var ErrSendFailed = errors.New("email send failed")

// Params are the template parameters every action email carries.
type Params struct {
	ToName  string `json:"to_name"`
	ToEmail string `json:"to_email"`
	Link    string `json:"link"`
}

// Result reports the provider's answer.
type Result struct {
	Success    bool
	StatusCode int
}

// Sender delivers one templated email.
type Sender interface {
	Send(ctx context.Context, templateID, to string, params Params) (Result, error)
}

type Config struct {
	Endpoint   string
	ServiceID  string
	PublicKey  string
	PrivateKey string
	Timeout    time.Duration
}

// DefaultEndpoint is the hosted EmailJS send API.
const DefaultEndpoint = "https://api.emailjs.com/api/v1.0/email/send"

// New returns an HTTP sender when an endpoint is configured and a log-only
// sender otherwise.
func New(cfg Config, logger *zap.SugaredLogger) Sender {
	if cfg.Endpoint == "" {
		return NewLogSender(logger)
	}
	return NewEmailJSSender(cfg, nil)
}

// EmailJSSender posts to an EmailJS-compatible REST endpoint.
type EmailJSSender struct {
	cfg    Config
	client *http.Client
}

func NewEmailJSSender(cfg Config, client *http.Client) *EmailJSSender {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &EmailJSSender{cfg: cfg, client: client}
}

type sendRequest struct {
	ServiceID      string `json:"service_id"`
	TemplateID     string `json:"template_id"`
	UserID         string `json:"user_id"`
	AccessToken    string `json:"accessToken,omitempty"`
	TemplateParams struct {
		Params
		Email string `json:"email"`
	} `json:"template_params"`
}

func (s *EmailJSSender) Send(ctx context.Context, templateID, to string, params Params) (Result, error) {
	body := sendRequest{
		ServiceID:   s.cfg.ServiceID,
		TemplateID:  templateID,
		UserID:      s.cfg.PublicKey,
		AccessToken: s.cfg.PrivateKey,
	}
	params.ToEmail = to
	body.TemplateParams.Params = params
	body.TemplateParams.Email = to
	raw, err := json.Marshal(body)
	if err != nil {
		return Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(raw))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	res := Result{StatusCode: resp.StatusCode, Success: resp.StatusCode >= 200 && resp.StatusCode < 300}
	if !res.Success {
		return res, fmt.Errorf("%w: status %d", ErrSendFailed, resp.StatusCode)
	}
	return res, nil
}

// LogSender only logs the email; used when no provider is configured.
type LogSender struct {
	logger *zap.SugaredLogger
}

func NewLogSender(logger *zap.SugaredLogger) *LogSender {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, templateID, to string, params Params) (Result, error) {
	s.logger.Infow("email not sent, no provider configured",
		"template", templateID, "to", to, "name", params.ToName, "link", params.Link)
	return Result{Success: true, StatusCode: http.StatusOK}, nil
}
