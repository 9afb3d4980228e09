package kafka

import "fmt"

// TopicPrefix is the prefix for every topic the storefront publishes to.
const TopicPrefix = "bikehub"

// Topic constructs a fully-qualified topic name.
func Topic(domain, action string) string {
	return fmt.Sprintf("%s.%s.%s", TopicPrefix, domain, action)
}
