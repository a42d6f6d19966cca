// Package camunda connects the alert server to a Zeebe gateway and opens
// job workers on it.
package camunda

import (
	"context"
	"fmt"
	"time"

	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/config"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

const defaultRequestTimeout = 10 * time.Second

type Client struct {
	zeebe   zbc.Client
	address string
	timeout time.Duration
}

// Connect dials the gateway and verifies it with a topology request.
func Connect(ctx context.Context, cfg config.CamundaConfig) (*Client, error) {
	timeout := config.GetDuration(cfg.RequestTimeout)
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	zc, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         cfg.BrokerAddress,
		UsePlaintextConnection: !cfg.TLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create zeebe client: %w", err)
	}

	c := &Client{zeebe: zc, address: cfg.BrokerAddress, timeout: timeout}
	if err := c.Ping(ctx); err != nil {
		_ = zc.Close()
		return nil, err
	}
	return c, nil
}

// Ping performs a topology request. It doubles as the /ready check.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.zeebe.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe gateway %s unreachable: %w", c.address, err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.zeebe.Close()
}

// StartWorker opens a job worker for taskType. It returns nil when the
// worker is disabled in configuration.
func (c *Client) StartWorker(taskType string, wcfg config.WorkerConfig, handler worker.JobHandler, log logger.Logger) worker.JobWorker {
	return startWorker(c.zeebe, taskType, wcfg, handler, log)
}

func startWorker(zc zbc.Client, taskType string, wcfg config.WorkerConfig, handler worker.JobHandler, log logger.Logger) worker.JobWorker {
	if !wcfg.Enabled {
		log.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return nil
	}

	jw := zc.NewJobWorker().
		JobType(taskType).
		Handler(handler).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	log.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeoutMs":     wcfg.Timeout,
	})
	return jw
}
