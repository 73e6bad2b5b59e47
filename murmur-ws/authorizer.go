package murmurws

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"

	murmuridentity "github.com/murmurchat/murmur-backend/murmur-identity"
	"github.com/murmurchat/murmur-backend/murmur-ws/connectiondao"
)

// ErrUnauthorized is returned to the gateway to produce a 401 on the
// connect handshake.
var ErrUnauthorized = fmt.Errorf("Unauthorized")

// AuthorizerRequest is the connect-time authorizer event. The websocket
// flavor carries the connection id in the request context, which the
// canned REQUEST-authorizer event type does not.
type AuthorizerRequest struct {
	MethodArn             string            `json:"methodArn"`
	QueryStringParameters map[string]string `json:"queryStringParameters"`
	RequestContext        struct {
		ConnectionID string `json:"connectionId"`
	} `json:"requestContext"`
}

// Authorizer gates the connect handshake: it verifies the id token from
// the query string, registers the connection under the caller's sub,
// and returns an allow policy whose principal is the token itself so
// routed frames can recover the caller without another provider call.
type Authorizer struct {
	Verifier    murmuridentity.Verifier
	Connections *connectiondao.DAO
	Logger      zerolog.Logger
}

// HandleAuth authorizes one connect attempt.
func (a *Authorizer) HandleAuth(ctx context.Context, req AuthorizerRequest) (events.APIGatewayCustomAuthorizerResponse, error) {
	idToken := req.QueryStringParameters["idToken"]
	connectionID := req.RequestContext.ConnectionID

	user, err := a.Verifier.Verify(ctx, idToken)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("rejected connect attempt")
		return events.APIGatewayCustomAuthorizerResponse{}, ErrUnauthorized
	}
	if connectionID == "" || req.MethodArn == "" {
		return events.APIGatewayCustomAuthorizerResponse{}, ErrUnauthorized
	}

	if err := a.Connections.Register(ctx, user.Sub, connectionID); err != nil {
		a.Logger.Error().Err(err).Str("sub", user.Sub).Msg("failed to register connection")
		return events.APIGatewayCustomAuthorizerResponse{}, err
	}

	a.Logger.Info().Str("sub", user.Sub).Str("connectionId", connectionID).Msg("connection established")

	return events.APIGatewayCustomAuthorizerResponse{
		PrincipalID: idToken,
		PolicyDocument: events.APIGatewayCustomAuthorizerPolicy{
			Version: "2012-10-17",
			Statement: []events.IAMPolicyStatement{
				{
					Action:   []string{"execute-api:Invoke"},
					Effect:   "Allow",
					Resource: []string{req.MethodArn},
				},
			},
		},
	}, nil
}
