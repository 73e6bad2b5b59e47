package murmurws

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"

	murmuridentity "github.com/murmurchat/murmur-backend/murmur-identity"
	"github.com/murmurchat/murmur-backend/murmur-ws/connectiondao"
)

// Handler routes API Gateway WebSocket events for the chat channel.
// Connects are handled upstream by the authorizer; everything routed
// here already carries an authorized principal.
type Handler struct {
	Connections *connectiondao.DAO
	Router      *Router
	Logger      zerolog.Logger
}

// HandleEvent dispatches one WebSocket event by route key.
func (h *Handler) HandleEvent(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	logger := h.Logger.With().
		Str("connectionId", req.RequestContext.ConnectionID).
		Str("route", req.RequestContext.RouteKey).
		Logger()

	switch req.RequestContext.RouteKey {
	case "$disconnect":
		return h.handleDisconnect(ctx, logger, req)
	default:
		return h.handleSend(ctx, logger, req)
	}
}

func (h *Handler) handleDisconnect(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	user, err := murmuridentity.FromWebsocketRequest(req)
	if err != nil {
		logger.Warn().Err(err).Msg("disconnect without a usable principal")
		return events.APIGatewayProxyResponse{StatusCode: 200}, nil
	}

	// Best effort. The sweeper reaps anything this misses.
	if err := h.Connections.Unregister(ctx, user.Sub); err != nil {
		logger.Error().Err(err).Str("sub", user.Sub).Msg("failed to unregister connection")
	}

	logger.Info().Str("sub", user.Sub).Msg("connection closed")
	return events.APIGatewayProxyResponse{StatusCode: 200}, nil
}

func (h *Handler) handleSend(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connectionID := req.RequestContext.ConnectionID
	if connectionID == "" {
		return events.APIGatewayProxyResponse{StatusCode: 200}, nil
	}

	user, err := murmuridentity.FromWebsocketRequest(req)
	if err != nil {
		logger.Warn().Err(err).Msg("send without a usable principal")
		if pushErr := h.Router.Push.Send(ctx, connectionID, ErrorStatus(murmuridentity.ErrBadToken.Error())); pushErr != nil {
			logger.Error().Err(pushErr).Msg("failed to report token error")
		}
		return events.APIGatewayProxyResponse{StatusCode: 200}, nil
	}

	if err := h.Router.HandleSend(ctx, user, connectionID, req.Body); err != nil {
		logger.Error().Err(err).Str("sub", user.Sub).Msg("failed to ack sender")
	}
	return events.APIGatewayProxyResponse{StatusCode: 200}, nil
}
