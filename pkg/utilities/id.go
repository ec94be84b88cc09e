package utilities

import (
	"os"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

var (
	nodeOnce sync.Once
	node     *snowflake.Node
)

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// NewDocumentID returns a random UUID string used as a document primary key.
func NewDocumentID() string {
	return uuid.NewString()
}

// NewSequence returns a time-ordered snowflake number. The node is set up once
// from SNOWFLAKE_NODE (default 1) so that numbers issued by this process are
// strictly increasing.
func NewSequence() int64 {
	nodeOnce.Do(func() {
		node = newNode(nodeIDFromEnv())
	})
	if node == nil {
		// node setup failed; fall back to a fresh default node
		return newNode(1).Generate().Int64()
	}
	return node.Generate().Int64()
}

func nodeIDFromEnv() int64 {
	nodeEnv := os.Getenv("SNOWFLAKE_NODE")
	if nodeEnv == "" {
		return 1
	}
	nodeID, err := strconv.ParseInt(nodeEnv, 10, 64)
	if err != nil {
		return 1
	}
	return nodeID
}

func newNode(nodeID int64) *snowflake.Node {
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		n, _ = snowflake.NewNode(1)
	}
	return n
}
