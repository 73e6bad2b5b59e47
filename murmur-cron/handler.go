// Package murmurcron provides the scaffold for scheduled workers.
package murmurcron

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"

	murmurcli "github.com/murmurchat/murmur-backend/murmur-cli"
)

type RunCallback func(ctx context.Context) error

type Handler struct {
	service murmurcli.Service
	logger  zerolog.Logger

	runOnce RunCallback
}

func NewHandler(
	service murmurcli.Service,
	runOnce RunCallback,
) *Handler {
	return &Handler{
		service: service,
		logger:  murmurcli.Logger(service),
		runOnce: runOnce,
	}
}

func (h *Handler) RunOnce(ctx context.Context, _ json.RawMessage) error {
	h.logger.Info().Msg("running scheduled task")
	return h.runOnce(ctx)
}

func (h *Handler) Start() error {
	switch {
	case murmurcli.CommonOpts.Console:
		return h.runOnce(context.Background())

	default:
		lambda.Start(h.RunOnce)
	}
	return nil
}
