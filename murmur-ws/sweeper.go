package murmurws

import (
	"context"

	"github.com/rs/zerolog"

	murmurtable "github.com/murmurchat/murmur-backend/murmur-table"
	"github.com/murmurchat/murmur-backend/murmur-ws/connectiondao"
)

// Prober checks whether a connection is still live on the gateway.
type Prober interface {
	Probe(ctx context.Context, connectionID string) (bool, error)
}

// ConnectionSet is the subset of the connections DAO the sweeper needs.
type ConnectionSet interface {
	List(ctx context.Context) ([]connectiondao.Connection, error)
	Unregister(ctx context.Context, sub string) error
}

// Sweeper reaps connection records whose channel is gone on the gateway
// side. Disconnect handling is best-effort, so records leak whenever a
// client drops without a clean $disconnect.
type Sweeper struct {
	Connections ConnectionSet
	Probe       Prober
	Logger      zerolog.Logger
}

// Sweep probes every registered connection and unregisters the dead
// ones. A probe failure skips that record rather than aborting the
// sweep.
func (s *Sweeper) Sweep(ctx context.Context) (removed int, err error) {
	conns, err := s.Connections.List(ctx)
	if err != nil {
		return 0, err
	}

	for _, conn := range conns {
		sub, err := murmurtable.SubFromUserPK(conn.PartitionKey)
		if err != nil {
			s.Logger.Warn().Err(err).Str("partitionKey", conn.PartitionKey).Msg("skipping malformed connection record")
			continue
		}

		live, err := s.Probe.Probe(ctx, conn.ConnectionID)
		if err != nil {
			s.Logger.Warn().Err(err).Str("sub", sub).Msg("unable to probe connection")
			continue
		}
		if live {
			continue
		}

		if err := s.Connections.Unregister(ctx, sub); err != nil {
			s.Logger.Error().Err(err).Str("sub", sub).Msg("failed to remove stale connection")
			continue
		}
		removed++
	}

	s.Logger.Info().Int("checked", len(conns)).Int("removed", removed).Msg("swept stale connections")
	return removed, nil
}
