package storage

import (
	"sort"
)

// MessageWriter delivers one published message to a subscriber's
// connection. Implementations encode the ["message", channel, payload]
// array on the wire.
type MessageWriter interface {
	SendMessage(channel, payload string) error
}

// PubSub routes published messages to subscribed clients. Subscribers are
// identified by an opaque connection id so cleanup can reason about
// identity independently from I/O. Delivery is fire-and-forget: no
// buffering, no retry.
type PubSub struct {
	// channel name -> subscriber id -> writer
	channels map[string]map[int64]MessageWriter

	// subscriber id -> set of channels
	clientChannels map[int64]map[string]struct{}

	totalPublished int64
}

func NewPubSub() *PubSub {
	return &PubSub{
		channels:       make(map[string]map[int64]MessageWriter),
		clientChannels: make(map[int64]map[string]struct{}),
	}
}

// Subscribe adds the client to each channel it is not already in and
// returns, per requested channel, the client's total subscription count
// after handling that channel.
func (ps *PubSub) Subscribe(clientID int64, w MessageWriter, channels ...string) []SubscribeResult {
	if ps.clientChannels[clientID] == nil {
		ps.clientChannels[clientID] = make(map[string]struct{})
	}

	results := make([]SubscribeResult, 0, len(channels))
	for _, channel := range channels {
		if _, already := ps.clientChannels[clientID][channel]; !already {
			if ps.channels[channel] == nil {
				ps.channels[channel] = make(map[int64]MessageWriter)
			}
			ps.channels[channel][clientID] = w
			ps.clientChannels[clientID][channel] = struct{}{}
		}
		results = append(results, SubscribeResult{
			Channel: channel,
			Count:   len(ps.clientChannels[clientID]),
		})
	}
	return results
}

// SubscribeResult pairs a channel with the client's subscription count
// after the operation.
type SubscribeResult struct {
	Channel string
	Count   int
}

// Unsubscribe removes the client from the given channels, or from all of
// them when none are named. Empty channel entries are dropped.
func (ps *PubSub) Unsubscribe(clientID int64, channels ...string) []SubscribeResult {
	if len(channels) == 0 {
		for channel := range ps.clientChannels[clientID] {
			channels = append(channels, channel)
		}
		sort.Strings(channels)
	}

	results := make([]SubscribeResult, 0, len(channels))
	for _, channel := range channels {
		if subs, exists := ps.channels[channel]; exists {
			delete(subs, clientID)
			if len(subs) == 0 {
				delete(ps.channels, channel)
			}
		}
		if chans := ps.clientChannels[clientID]; chans != nil {
			delete(chans, channel)
		}
		results = append(results, SubscribeResult{
			Channel: channel,
			Count:   len(ps.clientChannels[clientID]),
		})
	}

	if len(ps.clientChannels[clientID]) == 0 {
		delete(ps.clientChannels, clientID)
	}
	return results
}

// Publish fans a message out to the channel's current subscribers and
// returns the number of successful deliveries. A failed send drops that
// client from all pub/sub state.
func (ps *PubSub) Publish(channel, payload string) int {
	subs, exists := ps.channels[channel]
	if !exists {
		return 0
	}

	// Snapshot the subscriber set; failed sends mutate the maps.
	ids := make([]int64, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}

	delivered := 0
	for _, id := range ids {
		w, still := subs[id]
		if !still {
			continue
		}
		if err := w.SendMessage(channel, payload); err != nil {
			ps.RemoveClient(id)
			continue
		}
		delivered++
	}

	ps.totalPublished++
	return delivered
}

// Channels returns the sorted active channel names, optionally filtered by
// a glob pattern.
func (ps *PubSub) Channels(pattern string) []string {
	channels := make([]string, 0, len(ps.channels))
	for channel := range ps.channels {
		if pattern == "" || MatchGlob(pattern, channel) {
			channels = append(channels, channel)
		}
	}
	sort.Strings(channels)
	return channels
}

// NumSub returns the subscriber count of one channel.
func (ps *PubSub) NumSub(channel string) int {
	return len(ps.channels[channel])
}

// SubscriptionCount returns how many channels a client is subscribed to.
func (ps *PubSub) SubscriptionCount(clientID int64) int {
	return len(ps.clientChannels[clientID])
}

// IsSubscriber reports whether the client holds any subscription.
func (ps *PubSub) IsSubscriber(clientID int64) bool {
	return len(ps.clientChannels[clientID]) > 0
}

// RemoveClient drops a disconnected client from both sides of the mapping.
func (ps *PubSub) RemoveClient(clientID int64) {
	for channel := range ps.clientChannels[clientID] {
		if subs, exists := ps.channels[channel]; exists {
			delete(subs, clientID)
			if len(subs) == 0 {
				delete(ps.channels, channel)
			}
		}
	}
	delete(ps.clientChannels, clientID)
}

// TotalPublished returns the lifetime publish count, for INFO.
func (ps *PubSub) TotalPublished() int64 {
	return ps.totalPublished
}

// ActiveChannels returns the number of channels with subscribers.
func (ps *PubSub) ActiveChannels() int {
	return len(ps.channels)
}
