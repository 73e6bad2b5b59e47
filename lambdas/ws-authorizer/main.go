package main

import (
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cognitoidentityprovider"
	"github.com/urfave/cli/v2"

	murmurcli "github.com/murmurchat/murmur-backend/murmur-cli"
	murmurddb "github.com/murmurchat/murmur-backend/murmur-ddb"
	murmuridentity "github.com/murmurchat/murmur-backend/murmur-identity"
	murmurws "github.com/murmurchat/murmur-backend/murmur-ws"
	"github.com/murmurchat/murmur-backend/murmur-ws/connectiondao"
)

var service = murmurcli.NewService("ws-authorizer")

func main() {
	app := murmurcli.App(
		service,
		action,
		append(
			murmurcli.CommonFlags,
			append(
				murmurddb.DDBFlags,
				murmuridentity.IdentityFlags...,
			)...,
		)...,
	)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	sess := session.Must(session.NewSession(aws.NewConfig()))
	api, err := murmurddb.DynamoDBAPI(sess)
	if err != nil {
		return err
	}

	resolver := murmuridentity.NewCognitoResolver(cognitoidentityprovider.New(sess), murmuridentity.IdentityOpts.UserPoolID)

	authorizer := &murmurws.Authorizer{
		Verifier:    &murmuridentity.PoolVerifier{Resolver: resolver},
		Connections: connectiondao.Build(api, murmurcli.CommonOpts.Env),
		Logger:      murmurcli.Logger(service),
	}

	lambda.Start(authorizer.HandleAuth)
	return nil
}
