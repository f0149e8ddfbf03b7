// Package bridge relays broadcast payloads between hub instances over Redis
// Pub/Sub. Each instance tags its publishes with an instance id and skips its
// own messages on the subscribe side. The bridge is optional and best-effort;
// local fan-out never depends on it.
package bridge
