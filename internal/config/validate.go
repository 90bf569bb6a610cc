package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	if _, _, err := net.SplitHostPort(c.Server.Bind); err != nil {
		return fmt.Errorf("server.bind %q is not host:port: %w", c.Server.Bind, err)
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case StorageBackendS3:
		if c.Storage.InputBucket == "" {
			return errors.New("storage.input_bucket must be set when storage.backend is \"s3\" (or set INPUT_BUCKET)")
		}
		if c.Storage.OutputBucket == "" {
			return errors.New("storage.output_bucket must be set when storage.backend is \"s3\" (or set OUTPUT_BUCKET)")
		}
	case StorageBackendLocal:
		if strings.TrimSpace(c.Storage.LocalRoot) == "" {
			return errors.New("storage.local_root must be set when storage.backend is \"local\"")
		}
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", StorageBackendS3, StorageBackendLocal, c.Storage.Backend)
	}
	if c.Storage.PresignTTLSeconds <= 0 {
		return errors.New("storage.presign_ttl_seconds must be positive")
	}
	return nil
}

func (c *Config) validateQueue() error {
	switch c.Queue.Backend {
	case QueueBackendNone:
		return nil
	case QueueBackendAMQP, QueueBackendRedis:
		if c.Queue.URL == "" {
			return fmt.Errorf("queue.url must be set when queue.backend is %q", c.Queue.Backend)
		}
		if c.Queue.Name == "" {
			return errors.New("queue.name must be set")
		}
		return nil
	default:
		return fmt.Errorf("queue.backend must be %q, %q, or %q, got %q",
			QueueBackendAMQP, QueueBackendRedis, QueueBackendNone, c.Queue.Backend)
	}
}

func (c *Config) validateFetch() error {
	if c.Fetch.TimeoutSeconds <= 0 {
		return errors.New("fetch.timeout_seconds must be positive")
	}
	return nil
}
