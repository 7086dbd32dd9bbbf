package id

import (
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init initializes the Snowflake node with the given node ID.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New generates a new time-ordered unique int64 ID.
func New() int64 {
	return node.Generate().Int64()
}

// NewString is New formatted in base 10, used to correlate webhook deliveries
// that arrive without an X-GitHub-Delivery header.
func NewString() string {
	return strconv.FormatInt(New(), 10)
}
