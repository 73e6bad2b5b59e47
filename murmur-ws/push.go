package murmurws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi/apigatewaymanagementapiiface"
)

// Transport pushes frames to connected clients.
type Transport interface {
	Send(ctx context.Context, connectionID string, data []byte) error
}

// Pusher sends frames through the API Gateway management endpoint.
type Pusher struct {
	api apigatewaymanagementapiiface.ApiGatewayManagementApiAPI
}

// NewPusher creates a push transport bound to the given management
// endpoint.
func NewPusher(s *session.Session, endpoint string) *Pusher {
	return &Pusher{
		api: apigatewaymanagementapi.New(s, aws.NewConfig().WithEndpoint(endpoint)),
	}
}

// Send posts data to the given connection.
func (p *Pusher) Send(ctx context.Context, connectionID string, data []byte) error {
	_, err := p.api.PostToConnectionWithContext(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connectionID),
		Data:         data,
	})
	if err != nil {
		return fmt.Errorf("failed to post to connection %v: %w", connectionID, err)
	}
	return nil
}

// Probe reports whether the connection still exists on the gateway.
func (p *Pusher) Probe(ctx context.Context, connectionID string) (bool, error) {
	_, err := p.api.GetConnectionWithContext(ctx, &apigatewaymanagementapi.GetConnectionInput{
		ConnectionId: aws.String(connectionID),
	})
	if err != nil {
		if IsGone(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to probe connection %v: %w", connectionID, err)
	}
	return true, nil
}

// IsGone reports whether err means the connection no longer exists on
// the gateway side.
func IsGone(err error) bool {
	var ae awserr.Error
	return errors.As(err, &ae) && ae.Code() == apigatewaymanagementapi.ErrCodeGoneException
}
