// Package graph owns the Neo4j sink: connection, uniqueness constraints,
// existence queries, and the idempotent per-entity upsert.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/stockelper/stockgraph/internal/config"
	"github.com/stockelper/stockgraph/internal/domain"
	"github.com/stockelper/stockgraph/internal/platform/logger"
)

type Client struct {
	driver   neo4j.DriverWithContext
	database string
	log      *logger.Logger
}

func NewClient(ctx context.Context, cfg config.Neo4jConfig, log *logger.Logger) (*Client, error) {
	auth := neo4j.BasicAuth(cfg.User, cfg.Password, "")
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = cfg.MaxPoolSize
		c.SocketConnectTimeout = cfg.Timeout
	})
	if err != nil {
		return nil, fmt.Errorf("graph: init driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("graph: verify connectivity: %w", err)
	}

	log.Info("connected to graph store", "uri", cfg.URI)
	return &Client{driver: driver, database: cfg.Database, log: log.With("client", "Neo4j")}, nil
}

func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.driver == nil {
		return nil
	}
	err := c.driver.Close(ctx)
	c.driver = nil
	return err
}

func (c *Client) readSession(ctx context.Context) neo4j.SessionWithContext {
	return c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: c.database,
	})
}

func (c *Client) writeSession(ctx context.Context) neo4j.SessionWithContext {
	return c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: c.database,
	})
}

// EnsureConstraints creates the uniqueness constraints the ingest relies on.
func (c *Client) EnsureConstraints(ctx context.Context) error {
	session := c.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, stmt := range constraintStatements {
			res, err := tx.Run(ctx, stmt, nil)
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("graph: ensure constraints: %w", err)
	}
	return nil
}

// ExistingEntities returns every stock code already persisted.
func (c *Client) ExistingEntities(ctx context.Context) (map[domain.EntityKey]struct{}, error) {
	session := c.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, queryExistingEntities, nil)
		if err != nil {
			return nil, err
		}
		existing := make(map[domain.EntityKey]struct{})
		for res.Next(ctx) {
			if code, ok := res.Record().Values[0].(string); ok {
				existing[code] = struct{}{}
			}
		}
		return existing, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("graph: existing entities: %w", err)
	}
	return result.(map[domain.EntityKey]struct{}), nil
}

// EntityExists reports whether one stock code is already persisted.
func (c *Client) EntityExists(ctx context.Context, key domain.EntityKey) (bool, error) {
	session := c.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, queryEntityExists, map[string]any{"stock_code": key})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		exists, _ := record.Values[0].(bool)
		return exists, nil
	})
	if err != nil {
		return false, fmt.Errorf("graph: entity exists %s: %w", key, err)
	}
	return result.(bool), nil
}

// ProcessedDates returns the days already recorded for one stock code.
func (c *Client) ProcessedDates(ctx context.Context, key domain.EntityKey) (map[string]struct{}, error) {
	session := c.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, queryProcessedDates, map[string]any{"stock_code": key})
		if err != nil {
			return nil, err
		}
		days := make(map[string]struct{})
		for res.Next(ctx) {
			if day, ok := res.Record().Values[0].(string); ok {
				days[day] = struct{}{}
			}
		}
		return days, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("graph: processed dates %s: %w", key, err)
	}
	return result.(map[string]struct{}), nil
}

// NodeCount returns the total node count, logged at end of run.
func (c *Client) NodeCount(ctx context.Context) (int64, error) {
	session := c.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, queryNodeCount, nil)
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		count, _ := record.Values[0].(int64)
		return count, nil
	})
	if err != nil {
		return 0, fmt.Errorf("graph: node count: %w", err)
	}
	return result.(int64), nil
}

// UpsertStock writes one entity's full subgraph in a single managed write
// transaction: either the whole subgraph lands or none of it does. A sink
// failure is transient for the upsert step, so the caller's retry policy
// applies.
func (c *Client) UpsertStock(ctx context.Context, rec *domain.StockRecord) error {
	params := upsertParams(rec)

	session := c.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, stmt := range upsertStatements(rec) {
			res, err := tx.Run(ctx, stmt, params)
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return domain.Transient("neo4j", fmt.Errorf("upsert %s: %w", rec.Listing.Code, err))
	}
	return nil
}
