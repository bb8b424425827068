// SPDX-License-Identifier: GPL-3.0-or-later

// Package packet contains [*Packet] and the related definitions.
//
// A [*Packet] is the unit of causal simulation state: it wraps a
// [*dataunit.DataUnit] chain and records where it sits in the causality
// tree rooted at the packet created by an application action. Packets
// are created uncommitted and become part of the shared trace only
// through [*Packet.Commit]. [*Packet.Flatten] produces the total order
// consumed by trace renderers.
package packet

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/N1tramPH/network-simulator/netsim/dataunit"
)

// MaxDescendants is the number of committed descendants a root packet
// may have before [*Packet.Commit] fails with [*ExceedError].
const MaxDescendants = 1200

// DefaultReportDuration is the duration of a report without an
// explicit duration, in seconds.
const DefaultReportDuration = 0.7

// Endpoint is a topology node a packet travels between.
type Endpoint interface {
	// EndpointName returns the name of the node.
	EndpointName() string
}

// ErrInvalidEndpoint is returned when setting a nil [Endpoint].
var ErrInvalidEndpoint = errors.New("a packet's endpoint must be a device")

// ErrExceeded is the error wrapped by every [*ExceedError].
var ErrExceeded = errors.New("too many descendants")

// ExceedError is returned by [*Packet.Commit] once a root has more
// than [MaxDescendants] committed descendants. This usually means the
// topology contains a switching loop.
type ExceedError[M any] struct {
	// Root is the root packet whose tree grew too large.
	Root *Packet[M]
}

// Error implements error.
func (e *ExceedError[M]) Error() string {
	return fmt.Sprintf("packet %s exceeded %d descendants: likely due to a cyclic network topology",
		e.Root.ID, MaxDescendants)
}

// Unwrap returns [ErrExceeded].
func (e *ExceedError[M]) Unwrap() error {
	return ErrExceeded
}

// EventKind distinguishes the entries of a packet event log.
type EventKind int

const (
	// EventReport is a textual annotation.
	EventReport EventKind = iota

	// EventStateChange records a socket state transition.
	EventStateChange
)

// Event is an entry of a packet event log.
type Event struct {
	// Kind is the event kind.
	Kind EventKind

	// Msg is the reported message.
	Msg string

	// Duration is how long the message is displayed, in seconds.
	Duration float64

	// StateBefore is the state before an [EventStateChange].
	StateBefore string

	// StateAfter is the state after an [EventStateChange].
	StateAfter string
}

// String returns the message or the state transition.
func (ev Event) String() string {
	if ev.Kind == EventStateChange {
		return fmt.Sprintf("%s: %s -> %s", ev.Msg, ev.StateBefore, ev.StateAfter)
	}
	return ev.Msg
}

// ids generates packet identifiers.
var ids atomic.Int64

// Packet is a simulation-time envelope around a [*dataunit.DataUnit].
//
// The M type parameter is the cross-layer metadata the simulator
// attaches to packets (sockets, routes, interfaces).
//
// Construct using [New]; derive related packets using the methods.
type Packet[M any] struct {
	// ID uniquely identifies the packet.
	ID string

	// Title is a short description, e.g. "SYN+ACK".
	Title string

	// Subtitle is a secondary description, e.g. sequence numbers.
	Subtitle string

	// Type is the protocol of the packet, e.g. "ARP" or "TCP".
	Type string

	// Data is the outermost unit of the encapsulation chain.
	Data *dataunit.DataUnit

	// Meta contains simulator specific metadata.
	Meta M

	// Success is set by the initiating action when it succeeded.
	Success bool

	// Msg is the outcome message of the initiating action.
	Msg string

	// Transmitted is set once the packet crossed a physical link.
	Transmitted bool

	// EventsBefore contains events occurring before transmission.
	EventsBefore []Event

	// EventsAfter contains events occurring after transmission.
	EventsAfter []Event

	// EndEvents contains events displayed once the whole trace ends.
	EndEvents []Event

	root       *Packet[M]
	parent     *Packet[M]
	children   []*Packet[M]
	preceding  []*Packet[M]
	order      int
	committed  bool
	childCount int
	start      Endpoint
	end        Endpoint
}

// New creates a new uncommitted root [*Packet].
func New[M any](data *dataunit.DataUnit, title, subtitle string) *Packet[M] {
	return &Packet[M]{
		ID:       fmt.Sprintf("p-%d", ids.Add(1)),
		Title:    title,
		Subtitle: subtitle,
		Data:     data,
	}
}

// Root returns the root of the causality tree, or p itself.
func (p *Packet[M]) Root() *Packet[M] {
	if p.root == nil {
		return p
	}
	return p.root
}

// IsRoot reports whether p starts a causality tree.
func (p *Packet[M]) IsRoot() bool {
	return p.root == nil
}

// Parent returns the packet that caused p, or nil.
func (p *Packet[M]) Parent() *Packet[M] {
	return p.parent
}

// Children returns the committed children.
func (p *Packet[M]) Children() []*Packet[M] {
	return p.children
}

// Preceding returns the packets that must occur before p.
func (p *Packet[M]) Preceding() []*Packet[M] {
	return p.preceding
}

// Order returns the sequencing number used by [*Packet.Label].
func (p *Packet[M]) Order() int {
	return p.order
}

// Committed reports whether p is part of the trace.
func (p *Packet[M]) Committed() bool {
	return p.committed
}

// Descendants returns the number of committed descendants of a root.
func (p *Packet[M]) Descendants() int {
	return p.childCount
}

// Label returns "{rootID}-{order}".
func (p *Packet[M]) Label() string {
	return fmt.Sprintf("%s-%d", p.Root().ID, p.order)
}

// StartPoint returns the node the packet leaves from.
func (p *Packet[M]) StartPoint() Endpoint {
	return p.start
}

// EndPoint returns the node the packet arrives at.
func (p *Packet[M]) EndPoint() Endpoint {
	return p.end
}

// SetStartPoint sets the node the packet leaves from.
func (p *Packet[M]) SetStartPoint(ep Endpoint) error {
	if ep == nil {
		return ErrInvalidEndpoint
	}
	p.start = ep
	return nil
}

// SetEndPoint sets the node the packet arrives at.
func (p *Packet[M]) SetEndPoint(ep Endpoint) error {
	if ep == nil {
		return ErrInvalidEndpoint
	}
	p.end = ep
	return nil
}

// derive returns an uncommitted packet in the same tree.
func (p *Packet[M]) derive(data *dataunit.DataUnit, title, subtitle string) *Packet[M] {
	next := New[M](data, title, subtitle)
	next.root = p.Root()
	return next
}

// CreateChild returns an uncommitted packet caused by p.
func (p *Packet[M]) CreateChild(data *dataunit.DataUnit, title, subtitle string) *Packet[M] {
	child := p.derive(data, title, subtitle)
	child.parent = p
	child.order = p.order + 1
	return child
}

// Response is an alias for [*Packet.CreateChild].
func (p *Packet[M]) Response(data *dataunit.DataUnit, title, subtitle string) *Packet[M] {
	return p.CreateChild(data, title, subtitle)
}

// Copy returns an uncommitted child sharing the data, the titles, and
// the metadata of p.
func (p *Packet[M]) Copy() *Packet[M] {
	cp := p.CreateChild(p.Data, p.Title, p.Subtitle)
	cp.Type = p.Type
	cp.Meta = p.Meta
	return cp
}

// CreatePreceding returns an uncommitted packet at the same order as
// p and without parent. Record it with [*Packet.SetPreceding].
func (p *Packet[M]) CreatePreceding(data *dataunit.DataUnit, title, subtitle string) *Packet[M] {
	pred := p.derive(data, title, subtitle)
	pred.order = p.order
	return pred
}

// SetPreceding records pred as occurring before p and moves p right
// after the deepest packet caused by pred.
func (p *Packet[M]) SetPreceding(pred *Packet[M]) {
	p.order = pred.Depth() + 1
	p.preceding = append(p.preceding, pred)
}

// Commit links p into its parent's children and counts it in the
// root's descendants. Committing twice is a no-op.
func (p *Packet[M]) Commit() error {
	if p.committed {
		return nil
	}
	if p.parent != nil {
		p.parent.children = append(p.parent.children, p)
	}
	p.committed = true
	if p.root != nil {
		p.root.childCount++
		if p.root.childCount > MaxDescendants {
			return &ExceedError[M]{Root: p.root}
		}
	}
	return nil
}

// Depth returns the largest order of the packets in [*Packet.Flatten].
func (p *Packet[M]) Depth() int {
	depth := 0
	for _, pkt := range p.Flatten(true) {
		depth = max(depth, pkt.order)
	}
	return depth
}

// Flatten returns the total order over the tree rooted at p.
//
// Breadth-first processes a FIFO queue: for each dequeued packet it
// first emits the breadth-first flattening of every preceding packet,
// then enqueues the children, then emits the packet itself.
// Depth-first emits the preceding packets, the packet, and then its
// children, recursively.
func (p *Packet[M]) Flatten(breadth bool) []*Packet[M] {
	if breadth {
		return flattenBreadth(p)
	}
	var out []*Packet[M]
	flattenDepth(p, &out)
	return out
}

func flattenDepth[M any](p *Packet[M], out *[]*Packet[M]) {
	for _, pred := range p.preceding {
		flattenDepth(pred, out)
	}
	*out = append(*out, p)
	for _, child := range p.children {
		flattenDepth(child, out)
	}
}

func flattenBreadth[M any](p *Packet[M]) []*Packet[M] {
	var out []*Packet[M]
	queue := []*Packet[M]{p}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, pred := range cur.preceding {
			out = append(out, flattenBreadth(pred)...)
		}
		queue = append(queue, cur.children...)
		out = append(out, cur)
	}
	return out
}

// GetUnit returns the first unit of the data chain matching any of
// the given kinds, or nil.
func (p *Packet[M]) GetUnit(kinds ...dataunit.Kind) *dataunit.DataUnit {
	if p.Data == nil {
		return nil
	}
	return p.Data.Find(kinds...)
}

// AddEvent appends ev to the end events when end is true, otherwise to
// the events before or after transmission.
func (p *Packet[M]) AddEvent(ev Event, end bool) {
	switch {
	case end:
		p.EndEvents = append(p.EndEvents, ev)
	case p.Transmitted:
		p.EventsAfter = append(p.EventsAfter, ev)
	default:
		p.EventsBefore = append(p.EventsBefore, ev)
	}
}

// Report adds a message lasting [DefaultReportDuration].
func (p *Packet[M]) Report(msg string) {
	p.ReportFor(msg, DefaultReportDuration)
}

// ReportFor adds a message lasting duration seconds.
func (p *Packet[M]) ReportFor(msg string, duration float64) {
	p.AddEvent(Event{Kind: EventReport, Msg: msg, Duration: duration}, false)
}

// ReportEnd adds a message to the end events.
func (p *Packet[M]) ReportEnd(msg string, duration float64) {
	p.AddEvent(Event{Kind: EventReport, Msg: msg, Duration: duration}, true)
}

// ReportStateChange records a transition between two states.
func (p *Packet[M]) ReportStateChange(subject, before, after string) {
	p.AddEvent(Event{
		Kind:        EventStateChange,
		Msg:         subject,
		Duration:    DefaultReportDuration,
		StateBefore: before,
		StateAfter:  after,
	}, false)
}

// Events returns every event in display order.
func (p *Packet[M]) Events() []Event {
	out := make([]Event, 0, len(p.EventsBefore)+len(p.EventsAfter)+len(p.EndEvents))
	out = append(out, p.EventsBefore...)
	out = append(out, p.EventsAfter...)
	return append(out, p.EndEvents...)
}

// String returns the label and the titles of the packet.
func (p *Packet[M]) String() string {
	if p.Subtitle == "" {
		return fmt.Sprintf("[%s] %s", p.Label(), p.Title)
	}
	return fmt.Sprintf("[%s] %s (%s)", p.Label(), p.Title, p.Subtitle)
}
