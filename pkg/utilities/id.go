package utilities

import (
	"os"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

// NewKSUID generates a new globally unique KSUID string. Used for request
// ids where sortable-but-opaque is good enough.
func NewKSUID() string {
	return ksuid.New().String()
}

var (
	nodeOnce sync.Once
	node     *snowflake.Node
)

func snowflakeNode() *snowflake.Node {
	nodeOnce.Do(func() {
		id := int64(1)
		if v := os.Getenv("SNOWFLAKE_NODE"); v != "" {
			if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
				id = parsed
			}
		}
		n, err := snowflake.NewNode(id)
		if err != nil {
			// out-of-range node id from env; node 1 always succeeds
			n, _ = snowflake.NewNode(1)
		}
		node = n
	})
	return node
}

// NewSnowflakeInt64 generates a time-sortable int64 id. Account rows use
// these so primary-account ordering stays deterministic.
func NewSnowflakeInt64() int64 {
	return snowflakeNode().Generate().Int64()
}
