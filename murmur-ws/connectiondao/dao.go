package connectiondao

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/savaki/ddb"

	murmurtable "github.com/murmurchat/murmur-backend/murmur-table"
)

// DAO provides access to the per-user connection records in the chat
// table.
type DAO struct {
	table     *ddb.Table
	api       dynamodbiface.DynamoDBAPI
	tableName string
}

// New creates a new connections DAO.
func New(api dynamodbiface.DynamoDBAPI, tableName string) *DAO {
	return &DAO{
		table:     ddb.New(api).MustTable(tableName, Connection{}),
		api:       api,
		tableName: tableName,
	}
}

// Register binds sub to the given channel. The write is an unconditional
// upsert: last connect wins, re-registering is idempotent.
func (d *DAO) Register(ctx context.Context, sub, connectionID string) error {
	pk := murmurtable.UserPK(sub)
	conn := Connection{
		PartitionKey: pk,
		SortKey:      murmurtable.SortKeyConnection,
		EntityType:   murmurtable.EntityConnection,
		GSI1PK:       murmurtable.EntityConnection,
		GSI1SK:       pk,
		ConnectionID: connectionID,
	}
	if err := d.table.Put(conn).RunWithContext(ctx); err != nil {
		return fmt.Errorf("failed to register connection for %v: %w", sub, err)
	}
	return nil
}

// Unregister removes sub's connection record. A missing record is the
// expected steady state after a clean disconnect and is not an error.
func (d *DAO) Unregister(ctx context.Context, sub string) error {
	err := d.table.Delete(murmurtable.UserPK(sub)).
		Range(murmurtable.SortKeyConnection).
		RunWithContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to unregister connection for %v: %w", sub, err)
	}
	return nil
}

// Lookup returns the channel id currently bound to sub. ok is false when
// the user is offline, which is the common case and not an error.
func (d *DAO) Lookup(ctx context.Context, sub string) (connectionID string, ok bool, err error) {
	var conn Connection
	err = d.table.Get(murmurtable.UserPK(sub)).
		Range(murmurtable.SortKeyConnection).
		ScanWithContext(ctx, &conn)
	if err != nil {
		if ddb.IsItemNotFoundError(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to look up connection for %v: %w", sub, err)
	}
	if conn.ConnectionID == "" {
		return "", false, nil
	}
	return conn.ConnectionID, true, nil
}

// List returns every live connection record, via GSI1.
func (d *DAO) List(ctx context.Context) ([]Connection, error) {
	var conns []Connection
	err := d.table.Query("#GSI1PK = ?", murmurtable.EntityConnection).
		IndexName(murmurtable.GSI1).
		FindAllWithContext(ctx, &conns)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	return conns, nil
}
