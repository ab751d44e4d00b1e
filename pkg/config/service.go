package config

import "fmt"

// Service validates a Config. Kept separate from Manager so callers can
// validate an ad hoc Config (e.g. in tests) without going through the
// provider-loading path.
type Service struct{}

func NewService() *Service { return &Service{} }

// Validate checks the structural constraints the rest of the engine
// depends on holding.
func (s *Service) Validate(cfg *Config) error {
	var problems []string

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range 1-65535", cfg.Server.Port))
	}
	switch cfg.Runtime.Environment {
	case "development", "staging", "production":
	default:
		problems = append(problems, fmt.Sprintf("runtime.environment %q must be one of development|staging|production", cfg.Runtime.Environment))
	}
	if cfg.Executor.ActionTimeout <= 0 {
		problems = append(problems, "executor.action_timeout must be positive")
	}
	if cfg.Polling.BatchConcurrency <= 0 {
		problems = append(problems, "polling.batch_concurrency must be positive")
	}
	if cfg.Scheduler.BatchSize <= 0 {
		problems = append(problems, "scheduler.batch_size must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config validation failed: %v", problems)
	}
	return nil
}
