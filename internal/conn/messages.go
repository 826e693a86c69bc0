package conn

import (
	"encoding/json"
)

// Message is one inbound plugin message held while its plugin is not
// actively rendered. The transport layer delivers these; the store
// slice only needs their presence for export decisions.
type Message struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// MessageQueue holds pending messages keyed by QueueKey. Queues follow
// the same discipline as snapshot fields: replaced on change, never
// mutated in place, so selector memoization can compare identity.
type MessageQueue map[string][]Message

// QueueKey builds the queue key for a client/plugin pair.
func QueueKey(clientID, pluginID string) string {
	return clientID + "#" + pluginID
}

// Enqueue returns a queue with msg appended under key. When maxPerKey
// is positive, the oldest messages beyond it are dropped.
func Enqueue(q MessageQueue, key string, msg Message, maxPerKey int) MessageQueue {
	next := make(MessageQueue, len(q)+1)
	for k, v := range q {
		next[k] = v
	}
	msgs := make([]Message, 0, len(q[key])+1)
	msgs = append(msgs, q[key]...)
	msgs = append(msgs, msg)
	if maxPerKey > 0 && len(msgs) > maxPerKey {
		msgs = msgs[len(msgs)-maxPerKey:]
	}
	next[key] = msgs
	return next
}

// ClearQueue returns a queue without any messages under key. Clearing
// an absent key returns the queue unchanged.
func ClearQueue(q MessageQueue, key string) MessageQueue {
	if _, ok := q[key]; !ok {
		return q
	}
	next := make(MessageQueue, len(q))
	for k, v := range q {
		if k != key {
			next[k] = v
		}
	}
	return next
}
