package redis

import (
	"fmt"
	"time"
)

// Key prefix for all chat-related data
const keyPrefix = "parley"

// Key generation functions for each entity type

// accountKey returns the Redis key for an Account
func accountKey(name string) string {
	return fmt.Sprintf("%s:account:%s", keyPrefix, name)
}

// messagesKey returns the Redis key for the list of messages routed on a
// given calendar day
func messagesKey(day time.Time) string {
	return fmt.Sprintf("%s:messages:%s", keyPrefix, day.Format("2006-01-02"))
}
