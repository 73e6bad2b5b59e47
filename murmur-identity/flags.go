package murmuridentity

import (
	murmurcli "github.com/murmurchat/murmur-backend/murmur-cli"
	"github.com/urfave/cli/v2"
)

var IdentityOpts struct {
	UserPoolID string
}

var UserPoolFlag = murmurcli.StringFlag("user-pool-id", "The Cognito user pool holding chat users", &IdentityOpts.UserPoolID)

var IdentityFlags = []cli.Flag{
	UserPoolFlag,
}
