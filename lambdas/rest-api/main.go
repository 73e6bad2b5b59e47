package main

import (
	"log"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/aws/aws-sdk-go/service/cognitoidentityprovider"
	"github.com/go-chi/chi/v5"
	"github.com/urfave/cli/v2"

	murmurcli "github.com/murmurchat/murmur-backend/murmur-cli"
	murmurddb "github.com/murmurchat/murmur-backend/murmur-ddb"
	murmuridentity "github.com/murmurchat/murmur-backend/murmur-identity"
	murmurrest "github.com/murmurchat/murmur-backend/murmur-rest"
	"github.com/murmurchat/murmur-backend/murmur-stream/chatdao"
	"github.com/murmurchat/murmur-backend/murmur-ws/messagedao"
)

var service = murmurcli.NewService("rest-api")

func main() {
	app := murmurcli.App(
		service,
		action,
		append(
			murmurcli.CommonFlags,
			append(
				append(murmurddb.DDBFlags, murmuridentity.IdentityFlags...),
				murmurcli.PortFlag(5000),
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

	env := murmurcli.CommonOpts.Env
	handlers := &murmurrest.Handlers{
		Chats:    chatdao.Build(api, env),
		Messages: messagedao.Build(api, env),
		Resolver: murmuridentity.NewCognitoResolver(cognitoidentityprovider.New(sess), murmuridentity.IdentityOpts.UserPoolID),
		Metrics:  murmurcli.NewMetrics(service, cloudwatch.New(sess)),
	}

	router := chi.NewRouter()
	murmurrest.Middlewares(service, router)
	handlers.Routes(router)

	return murmurrest.Webserver(service, router)
}
