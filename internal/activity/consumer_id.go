package activity

import (
	"os"
	"strings"

	"github.com/oklog/ulid/v2"
)

// NewConsumerID names this process within the consumer group. The ULID
// suffix keeps restarted pods from inheriting a predecessor's pending list.
func NewConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "api"
	}
	return strings.ToLower(host) + "-" + strings.ToLower(ulid.Make().String())
}
