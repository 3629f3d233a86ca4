// Package idgen issues monotonic, node-scoped 64-bit IDs for the EventID
// field of outbound feed events, so downstream consumers can
// deduplicate and order them without relying on wall-clock timestamps.
package idgen

import "github.com/bwmarrin/snowflake"

// Generator wraps a single Snowflake node. Unlike a process-wide singleton,
// callers construct one per process (or per shard, if ever sharded) and
// thread it explicitly — no package-level state.
type Generator struct {
	node *snowflake.Node
}

// NewGenerator creates a generator bound to nodeID (0-1023).
func NewGenerator(nodeID int64) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}
	return &Generator{node: node}, nil
}

// Next returns the next monotonic ID from this generator.
func (g *Generator) Next() int64 {
	return g.node.Generate().Int64()
}
