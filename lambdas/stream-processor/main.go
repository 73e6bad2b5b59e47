package main

import (
	"log"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/aws/aws-sdk-go/service/cognitoidentityprovider"
	"github.com/urfave/cli/v2"

	murmurcli "github.com/murmurchat/murmur-backend/murmur-cli"
	murmurddb "github.com/murmurchat/murmur-backend/murmur-ddb"
	murmuridentity "github.com/murmurchat/murmur-backend/murmur-identity"
	murmurstream "github.com/murmurchat/murmur-backend/murmur-stream"
	"github.com/murmurchat/murmur-backend/murmur-stream/chatdao"
)

var service = murmurcli.NewService("stream-processor")

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

	processor := &murmurstream.Processor{
		Resolver: murmuridentity.NewCognitoResolver(cognitoidentityprovider.New(sess), murmuridentity.IdentityOpts.UserPoolID),
		Chats:    chatdao.Build(api, murmurcli.CommonOpts.Env),
		Logger:   murmurcli.Logger(service),
		Metrics:  murmurcli.NewMetrics(service, cloudwatch.New(sess)),
	}

	handler := murmurddb.NewHandler(service, processor.HandleRecord)
	return handler.Start()
}
