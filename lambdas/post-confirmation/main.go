package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/urfave/cli/v2"

	murmuravatar "github.com/murmurchat/murmur-backend/murmur-avatar"
	murmurcli "github.com/murmurchat/murmur-backend/murmur-cli"
)

var service = murmurcli.NewService("post-confirmation")

var opts struct {
	AvatarBucket string
}

func main() {
	app := murmurcli.App(
		service,
		action,
		append(
			murmurcli.CommonFlags,
			murmurcli.StringFlag("avatar-bucket", "The bucket holding user avatars", &opts.AvatarBucket),
		)...,
	)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	sess := session.Must(session.NewSession(aws.NewConfig()))

	var (
		logger    = murmurcli.Logger(service)
		generator = murmuravatar.New(s3.New(sess), opts.AvatarBucket)
	)

	// A failed avatar upload must not block the sign-up, so the event
	// is always returned unchanged.
	lambda.Start(func(ctx context.Context, event events.CognitoEventUserPoolsPostConfirmation) (events.CognitoEventUserPoolsPostConfirmation, error) {
		sub := event.Request.UserAttributes["sub"]
		if sub == "" {
			logger.Warn().Str("userName", event.UserName).Msg("confirmation event without a sub")
			return event, nil
		}

		key, err := generator.Upload(ctx, sub)
		if err != nil {
			logger.Error().Err(err).Str("sub", sub).Msg("failed to upload default avatar")
			return event, nil
		}

		logger.Info().Str("sub", sub).Str("key", key).Msg("stored default avatar")
		return event, nil
	})
	return nil
}
