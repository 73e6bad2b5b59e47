package main

import (
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/urfave/cli/v2"

	murmurcli "github.com/murmurchat/murmur-backend/murmur-cli"
	murmurddb "github.com/murmurchat/murmur-backend/murmur-ddb"
	murmurws "github.com/murmurchat/murmur-backend/murmur-ws"
	"github.com/murmurchat/murmur-backend/murmur-ws/connectiondao"
	"github.com/murmurchat/murmur-backend/murmur-ws/messagedao"
)

var service = murmurcli.NewService("ws-handler")

var opts struct {
	MgmtEndpoint string
}

func main() {
	app := murmurcli.App(
		service,
		action,
		append(
			murmurcli.CommonFlags,
			append(
				murmurddb.DDBFlags,
				murmurcli.StringFlag("websocket-mgmt-api", "The API Gateway management endpoint for pushing frames", &opts.MgmtEndpoint),
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

	var (
		env         = murmurcli.CommonOpts.Env
		logger      = murmurcli.Logger(service)
		connections = connectiondao.Build(api, env)
		pusher      = murmurws.NewPusher(sess, opts.MgmtEndpoint)
	)

	handler := &murmurws.Handler{
		Connections: connections,
		Router: &murmurws.Router{
			Connections: connections,
			Messages:    messagedao.Build(api, env),
			Push:        pusher,
			Logger:      logger,
			Metrics:     murmurcli.NewMetrics(service, cloudwatch.New(sess)),
		},
		Logger: logger,
	}

	lambda.Start(handler.HandleEvent)
	return nil
}
