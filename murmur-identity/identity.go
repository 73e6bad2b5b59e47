// Package murmuridentity resolves chat principals against the Cognito
// user pool and decodes the tokens clients present.
package murmuridentity

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go/service/cognitoidentityprovider/cognitoidentityprovideriface"

	murmurtable "github.com/murmurchat/murmur-backend/murmur-table"
)

// ErrUserNotFound is returned when no user in the pool matches the
// requested sub or email.
var ErrUserNotFound = fmt.Errorf("user not found")

// Resolver looks up user profiles by their stable identifiers.
type Resolver interface {
	UserBySub(ctx context.Context, sub string) (murmurtable.User, error)
	UserByEmail(ctx context.Context, email string) (murmurtable.User, error)
}

// CognitoResolver resolves users against a Cognito user pool.
type CognitoResolver struct {
	api        cognitoidentityprovideriface.CognitoIdentityProviderAPI
	userPoolID string
}

// NewCognitoResolver creates a resolver bound to the given user pool.
func NewCognitoResolver(api cognitoidentityprovideriface.CognitoIdentityProviderAPI, userPoolID string) *CognitoResolver {
	return &CognitoResolver{
		api:        api,
		userPoolID: userPoolID,
	}
}

// UserBySub returns the profile of the user with the given sub.
func (r *CognitoResolver) UserBySub(ctx context.Context, sub string) (murmurtable.User, error) {
	return r.findOne(ctx, fmt.Sprintf("sub = %q", sub))
}

// UserByEmail returns the profile of the user with the given email.
func (r *CognitoResolver) UserByEmail(ctx context.Context, email string) (murmurtable.User, error) {
	return r.findOne(ctx, fmt.Sprintf("email = %q", email))
}

func (r *CognitoResolver) findOne(ctx context.Context, filter string) (murmurtable.User, error) {
	output, err := r.api.ListUsersWithContext(ctx, &cognitoidentityprovider.ListUsersInput{
		UserPoolId: aws.String(r.userPoolID),
		Filter:     aws.String(filter),
		Limit:      aws.Int64(1),
	})
	if err != nil {
		return murmurtable.User{}, fmt.Errorf("failed to list users matching %v: %w", filter, err)
	}
	if len(output.Users) == 0 {
		return murmurtable.User{}, ErrUserNotFound
	}
	return userFromAttributes(output.Users[0].Attributes), nil
}

func userFromAttributes(attrs []*cognitoidentityprovider.AttributeType) murmurtable.User {
	var user murmurtable.User
	for _, attr := range attrs {
		if attr.Name == nil || attr.Value == nil {
			continue
		}
		switch *attr.Name {
		case "sub":
			user.Sub = *attr.Value
		case "name":
			user.Name = *attr.Value
		case "email":
			user.Email = *attr.Value
		}
	}
	return user
}
