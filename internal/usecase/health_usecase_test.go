package usecase_test

import (
	"context"
	"errors"
	"testing"

	"truelens-inquiry-api/internal/usecase"

	"github.com/stretchr/testify/assert"
)

type stubPinger struct{ err error }

func (p stubPinger) HealthCheck(context.Context) error { return p.err }

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		configured bool
		redis      usecase.Pinger
		want       map[string]string
	}{
		{"no redis", true, nil, map[string]string{"status": "ok", "mail": "configured", "redis": "disabled"}},
		{"redis up", true, stubPinger{}, map[string]string{"status": "ok", "mail": "configured", "redis": "ok"}},
		{"redis down stays ok", true, stubPinger{err: errors.New("refused")}, map[string]string{"status": "ok", "mail": "configured", "redis": "unavailable"}},
		{"mail unconfigured", false, nil, map[string]string{"status": "degraded", "mail": "unconfigured", "redis": "disabled"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := usecase.NewHealthUsecase(tt.configured, tt.redis).Check(context.Background())
			assert.Equal(t, tt.want, got)
		})
	}
}
