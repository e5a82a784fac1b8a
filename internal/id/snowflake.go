// Package id generates snowflake identifiers for persisted rows.
package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	once sync.Once
	node *snowflake.Node
)

// Init configures the process-wide snowflake node. Safe to call more than once.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New returns a new snowflake id as a string. Init must have been called.
func New() string {
	return node.Generate().String()
}
