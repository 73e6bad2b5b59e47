package murmuridentity

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/golang-jwt/jwt/v5"

	murmurtable "github.com/murmurchat/murmur-backend/murmur-table"
)

// Token errors surface verbatim in client-facing responses.
var (
	ErrMissingToken = fmt.Errorf("Missing authentication token")
	ErrInvalidToken = fmt.Errorf("Invalid user token")
	ErrBadToken     = fmt.Errorf("Invalid token received")
)

// DecodePayload extracts the user profile from an id token without
// checking its signature. Only safe on tokens that already passed the
// gateway authorizer.
func DecodePayload(idToken string) (murmurtable.User, error) {
	if idToken == "" {
		return murmurtable.User{}, ErrMissingToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return murmurtable.User{}, ErrInvalidToken
	}

	user := murmurtable.User{
		Sub:   stringClaim(claims, "sub"),
		Name:  stringClaim(claims, "name"),
		Email: stringClaim(claims, "email"),
	}
	if user.Sub == "" {
		return murmurtable.User{}, ErrInvalidToken
	}
	return user, nil
}

func stringClaim(claims jwt.MapClaims, name string) string {
	if v, ok := claims[name].(string); ok {
		return v
	}
	return ""
}

// Verifier checks an id token and returns the profile it belongs to.
type Verifier interface {
	Verify(ctx context.Context, idToken string) (murmurtable.User, error)
}

// PoolVerifier accepts an id token when its subject exists in the user
// pool. The token reached us over TLS on the connect handshake, so the
// check is against the pool rather than the token signature.
type PoolVerifier struct {
	Resolver Resolver
}

// Verify decodes the id token and confirms its subject against the
// pool. The profile comes from the pool, so a stale token still yields
// the user's current display name.
func (v *PoolVerifier) Verify(ctx context.Context, idToken string) (murmurtable.User, error) {
	decoded, err := DecodePayload(idToken)
	if err != nil {
		return murmurtable.User{}, err
	}

	user, err := v.Resolver.UserBySub(ctx, decoded.Sub)
	if err != nil {
		return murmurtable.User{}, ErrBadToken
	}
	return user, nil
}

// FromWebsocketRequest recovers the authenticated user from a routed
// WebSocket request. The connect authorizer stores the caller's id token
// as the principal id, so routed frames decode it without another trip
// to the provider.
func FromWebsocketRequest(req events.APIGatewayWebsocketProxyRequest) (murmurtable.User, error) {
	authorizer, ok := req.RequestContext.Authorizer.(map[string]interface{})
	if !ok {
		return murmurtable.User{}, ErrMissingToken
	}
	principalID, ok := authorizer["principalId"].(string)
	if !ok || principalID == "" {
		return murmurtable.User{}, ErrMissingToken
	}
	return DecodePayload(principalID)
}
