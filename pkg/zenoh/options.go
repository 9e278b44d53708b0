package zenoh

import (
	"sync"

	"github.com/hsiuhsiu/zenoh-go/internal/bindings"
)

// Priority selects the publication priority. The zero value keeps the engine
// default.
type Priority = bindings.Priority

const (
	PriorityDefault         = bindings.PriorityDefault
	PriorityRealTime        = bindings.PriorityRealTime
	PriorityInteractiveHigh = bindings.PriorityInteractiveHigh
	PriorityInteractiveLow  = bindings.PriorityInteractiveLow
	PriorityDataHigh        = bindings.PriorityDataHigh
	PriorityData            = bindings.PriorityData
	PriorityDataLow         = bindings.PriorityDataLow
	PriorityBackground      = bindings.PriorityBackground
)

// CongestionControl selects what a publisher does when a receiver queue is
// full: drop the sample or block the put.
type CongestionControl = bindings.CongestionControl

const (
	CongestionDefault = bindings.CongestionDefault
	CongestionDrop    = bindings.CongestionDrop
	CongestionBlock   = bindings.CongestionBlock
)

// Reliability selects the delivery guarantee.
type Reliability = bindings.Reliability

const (
	ReliabilityDefault    = bindings.ReliabilityDefault
	ReliabilityBestEffort = bindings.ReliabilityBestEffort
	ReliabilityReliable   = bindings.ReliabilityReliable
)

// PublisherOptions tune DeclarePublisher. A nil *PublisherOptions means
// engine defaults throughout.
type PublisherOptions struct {
	// Encoding is the default encoding of every put. DeclarePublisher moves
	// it whatever its outcome.
	Encoding          *Encoding
	Priority          Priority
	CongestionControl CongestionControl
	Reliability       Reliability
	// Express sends samples without batching.
	Express bool
}

// PutOptions carry per-put values that the put consumes. They are single
// use: Put empties them. Close releases values a Put never consumed.
type PutOptions struct {
	mu         sync.Mutex
	encoding   moved[encodingKind]
	attachment moved[bytesKind]
}

// SetEncoding moves enc into the options, replacing any encoding set
// earlier. enc is empty afterwards.
func (o *PutOptions) SetEncoding(enc *Encoding) error {
	if enc == nil {
		return protocolErr("put options set encoding", ErrNilResource)
	}
	m, err := enc.h.move("put options set encoding")
	if err != nil {
		return err
	}
	o.mu.Lock()
	prev := o.encoding
	o.encoding = m
	o.mu.Unlock()
	prev.discard()
	return nil
}

// SetAttachment moves b into the options as the sample attachment.
func (o *PutOptions) SetAttachment(b *Bytes) error {
	if b == nil {
		return protocolErr("put options set attachment", ErrNilResource)
	}
	m, err := b.h.move("put options set attachment")
	if err != nil {
		return err
	}
	o.mu.Lock()
	prev := o.attachment
	o.attachment = m
	o.mu.Unlock()
	prev.discard()
	return nil
}

// take empties the options and returns what they held.
func (o *PutOptions) take() (moved[encodingKind], moved[bytesKind]) {
	if o == nil {
		return moved[encodingKind]{}, moved[bytesKind]{}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	enc, att := o.encoding, o.attachment
	o.encoding, o.attachment = moved[encodingKind]{}, moved[bytesKind]{}
	return enc, att
}

// Close releases values that no Put consumed.
func (o *PutOptions) Close() error {
	enc, att := o.take()
	enc.discard()
	att.discard()
	return nil
}

// Locality restricts which publications a subscriber accepts by origin.
type Locality = bindings.Locality

const (
	LocalityDefault      = bindings.LocalityDefault
	LocalityAny          = bindings.LocalityAny
	LocalitySessionLocal = bindings.LocalitySessionLocal
	LocalityRemote       = bindings.LocalityRemote
)

// SubscriberOptions tune DeclareSubscriber. A nil *SubscriberOptions means
// engine defaults.
type SubscriberOptions struct {
	Reliability Reliability
	// AllowedOrigin limits delivery to publications from the same session
	// (LocalitySessionLocal) or from other sessions (LocalityRemote). zenoh-c
	// honours it only when built with its unstable API.
	AllowedOrigin Locality
}
