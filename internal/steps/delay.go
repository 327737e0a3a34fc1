package steps

import (
	"context"
	"fmt"
	"time"
)

const (
	// StepTypeDelay — тип шага задержки.
	StepTypeDelay = "delay"

	// Ключи конфигурации delay.
	configDurationSec = "duration_sec"
	configDurationMs  = "duration_ms"
	configDuration    = "duration"
)

// DelayStep — шаг задержки.
//
// Приостанавливает выполнение на указанное время.
// Поддерживает graceful shutdown через context cancellation.
//
// Конфигурация (одно из):
//
//	duration_sec: 10      # секунды
//	duration_ms: 5000     # миллисекунды
//	duration: 1m30s       # строка time.ParseDuration
type DelayStep struct{}

// NewDelayStep создаёт новый DelayStep.
func NewDelayStep() *DelayStep {
	return &DelayStep{}
}

// Type возвращает тип шага.
func (s *DelayStep) Type() string {
	return StepTypeDelay
}

// ValidateConfig проверяет, что длительность задана.
func (s *DelayStep) ValidateConfig(config map[string]any) error {
	for _, key := range []string{configDurationSec, configDurationMs, configDuration} {
		if isTemplate(config[key]) {
			return nil
		}
	}
	_, err := s.parseDuration(config)
	return err
}

// Execute выполняет задержку.
func (s *DelayStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	duration, err := s.parseDuration(req.Config)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrStepCancelled, ctx.Err())
	case <-timer.C:
		return NewResponse(map[string]any{
			"duration_ms": duration.Milliseconds(),
		}), nil
	}
}

// parseDuration извлекает длительность из конфигурации.
func (s *DelayStep) parseDuration(config map[string]any) (time.Duration, error) {
	if sec := GetConfigInt(config, configDurationSec); sec > 0 {
		return time.Duration(sec) * time.Second, nil
	}

	if ms := GetConfigInt(config, configDurationMs); ms > 0 {
		return time.Duration(ms) * time.Millisecond, nil
	}

	if raw := GetConfigString(config, configDuration); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return 0, fmt.Errorf("%w: %s: invalid duration %q", ErrInvalidConfig, StepTypeDelay, raw)
		}
		return d, nil
	}

	return 0, fmt.Errorf("%w: %s: duration_sec, duration_ms or duration required",
		ErrInvalidConfig, StepTypeDelay)
}
