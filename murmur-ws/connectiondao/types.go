package connectiondao

// Connection binds a user to their currently-live WebSocket channel.
// Each user owns at most one; registering again overwrites it. GSI1
// inverts the key so all live connections can be enumerated.
type Connection struct {
	PartitionKey string `dynamodbav:"partitionKey" ddb:"hash"`
	SortKey      string `dynamodbav:"sortKey" ddb:"range"`
	EntityType   string `dynamodbav:"entityType"`
	GSI1PK       string `dynamodbav:"gsi1PK" ddb:"gsi_hash:GSI1"`
	GSI1SK       string `dynamodbav:"gsi1SK" ddb:"gsi_range:GSI1"`
	ConnectionID string `dynamodbav:"connectionId"`
}
