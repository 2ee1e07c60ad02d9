// Package provisioning calls the /internal endpoints of tenant instances on
// behalf of the control plane.
package provisioning

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/tendant/hr-tenancy/internal/config"
	"github.com/tendant/hr-tenancy/internal/metrics"
	"github.com/tendant/hr-tenancy/pkg/domain"
)

const (
	// APIKeyHeader carries the shared secret on every internal call.
	APIKeyHeader = "x-api-key"

	onboardAdminPath  = "/internal/onboard-admin"
	updateModulesPath = "/internal/update-modules"

	retryWait    = 200 * time.Millisecond
	retryMaxWait = time.Second
)

// Target identifies one tenant instance.
type Target struct {
	Domain string
	APIKey string
}

// OnboardAdminRequest is the body of POST /internal/onboard-admin.
type OnboardAdminRequest struct {
	AdminID      uuid.UUID `json:"adminId"`
	AdminEmail   string    `json:"adminEmail"`
	TempPassword string    `json:"tempPassword"`
	Modules      []string  `json:"modules"`
	AdminName    string    `json:"adminName,omitempty"`
}

// OnboardAdminResult is the tenant's answer to onboard-admin.
type OnboardAdminResult struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId"`
	Created bool   `json:"created"`
}

type updateModulesRequest struct {
	Modules []string `json:"modules"`
}

type updateModulesResult struct {
	Success        bool     `json:"success"`
	EnabledModules []string `json:"enabledModules"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Bridge is the HTTP client for tenant instances. Calls are bounded by the
// configured timeout and retried only on transport errors.
type Bridge struct {
	client  *resty.Client
	scheme  string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewBridge creates a bridge from the provisioning config.
func NewBridge(cfg config.ProvisioningConfig, logger *slog.Logger, m *metrics.Metrics) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "https"
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(retryWait).
		SetRetryMaxWaitTime(retryMaxWait).
		SetLogger(restyLogger{logger: logger}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Bridge{
		client:  client,
		scheme:  scheme,
		logger:  logger,
		metrics: m,
	}
}

// OnboardAdmin asks the tenant to create its first admin and store the module list.
// The tenant side is idempotent by admin email.
func (b *Bridge) OnboardAdmin(ctx context.Context, target Target, req OnboardAdminRequest) (*OnboardAdminResult, error) {
	req.Modules = domain.NormalizeModules(req.Modules)

	var result OnboardAdminResult
	if err := b.post(ctx, "onboard_admin", target, onboardAdminPath, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateModules pushes the tenant's enabled module list.
func (b *Bridge) UpdateModules(ctx context.Context, target Target, modules []string) error {
	var result updateModulesResult
	return b.post(ctx, "update_modules", target, updateModulesPath, updateModulesRequest{
		Modules: domain.NormalizeModules(modules),
	}, &result)
}

func (b *Bridge) post(ctx context.Context, operation string, target Target, path string, body, result any) error {
	url := fmt.Sprintf("%s://%s%s", b.scheme, target.Domain, path)
	start := time.Now()

	var apiErr errorBody
	resp, err := b.client.R().
		SetContext(ctx).
		SetHeader(APIKeyHeader, target.APIKey).
		SetBody(body).
		SetResult(result).
		SetError(&apiErr).
		Post(url)

	err = classify(path, resp, err, apiErr)
	b.metrics.ObserveProvisioning(operation, err, time.Since(start))

	if err != nil {
		b.logger.Warn("tenant call failed",
			"operation", operation,
			"domain", target.Domain,
			"error", err,
		)
		return err
	}

	b.logger.Info("tenant call succeeded",
		"operation", operation,
		"domain", target.Domain,
		"status", resp.StatusCode(),
	)
	return nil
}

func classify(path string, resp *resty.Response, err error, apiErr errorBody) error {
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTenantUnreachable, err)
	}
	switch {
	case resp.StatusCode() == http.StatusUnauthorized:
		return fmt.Errorf("%w: %w", domain.ErrTenantUnreachable, domain.ErrInvalidAPIKey)
	case resp.IsError():
		if apiErr.Error != "" {
			return fmt.Errorf("%w: %s returned %d: %s", domain.ErrTenantUnreachable, path, resp.StatusCode(), apiErr.Error)
		}
		return fmt.Errorf("%w: %s returned %d", domain.ErrTenantUnreachable, path, resp.StatusCode())
	case resp.StatusCode() >= http.StatusMultipleChoices:
		return fmt.Errorf("%w: %s returned unexpected status %d", domain.ErrTenantUnreachable, path, resp.StatusCode())
	}
	return nil
}
