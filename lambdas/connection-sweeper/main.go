package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/urfave/cli/v2"

	murmurcli "github.com/murmurchat/murmur-backend/murmur-cli"
	murmurcron "github.com/murmurchat/murmur-backend/murmur-cron"
	murmurddb "github.com/murmurchat/murmur-backend/murmur-ddb"
	murmurws "github.com/murmurchat/murmur-backend/murmur-ws"
	"github.com/murmurchat/murmur-backend/murmur-ws/connectiondao"
)

var service = murmurcli.NewService("connection-sweeper")

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
				murmurcli.StringFlag("websocket-mgmt-api", "The API Gateway management endpoint for probing connections", &opts.MgmtEndpoint),
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

	sweeper := &murmurws.Sweeper{
		Connections: connectiondao.Build(api, murmurcli.CommonOpts.Env),
		Probe:       murmurws.NewPusher(sess, opts.MgmtEndpoint),
		Logger:      murmurcli.Logger(service),
	}

	handler := murmurcron.NewHandler(service, func(ctx context.Context) error {
		_, err := sweeper.Sweep(ctx)
		return err
	})
	return handler.Start()
}
