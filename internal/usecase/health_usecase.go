package usecase

import (
	"context"
	"time"
)

// Pinger is implemented by dependencies that can report liveness
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

type HealthUsecase interface {
	Check(ctx context.Context) map[string]string
}

type healthUsecase struct {
	mailConfigured bool
	redis          Pinger
}

// NewHealthUsecase reports the mail transport configuration and, when given, Redis reachability
func NewHealthUsecase(mailConfigured bool, redis Pinger) HealthUsecase {
	return &healthUsecase{mailConfigured: mailConfigured, redis: redis}
}

func (u *healthUsecase) Check(ctx context.Context) map[string]string {
	status := map[string]string{
		"status": "ok",
		"mail":   "configured",
		"redis":  "disabled",
	}
	if !u.mailConfigured {
		status["mail"] = "unconfigured"
		status["status"] = "degraded"
	}

	if u.redis != nil {
		ctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := u.redis.HealthCheck(ctx); err != nil {
			// Rate limiting falls back to memory, so Redis being down is not fatal
			status["redis"] = "unavailable"
		} else {
			status["redis"] = "ok"
		}
	}
	return status
}
