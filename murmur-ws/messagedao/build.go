package messagedao

import (
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

	murmurtable "github.com/murmurchat/murmur-backend/murmur-table"
)

// Build creates a messages DAO against the chat table for the given
// environment.
func Build(api dynamodbiface.DynamoDBAPI, env string) *DAO {
	return New(api, murmurtable.TableName(env))
}
