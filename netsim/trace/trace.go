// SPDX-License-Identifier: GPL-3.0-or-later

// Package trace renders the causality tree of a simulated action as
// text, one line per packet followed by its events.
package trace

import (
	"fmt"
	"io"
	"strings"

	"github.com/N1tramPH/network-simulator/netsim"
	"github.com/N1tramPH/network-simulator/netsim/packet"
	"github.com/charmbracelet/lipgloss"
)

// Options controls the rendering.
type Options struct {
	// Breadth flattens the tree breadth-first instead of depth-first.
	Breadth bool `mapstructure:"breadth"`

	// Color enables styled output when w is a terminal.
	Color bool `mapstructure:"color"`

	// HideLabels omits the packet labels, which depend on the order
	// in which packets are created by the process.
	HideLabels bool `mapstructure:"-"`
}

var (
	colorPrimary = lipgloss.Color("#7D56F4")
	colorSubtext = lipgloss.Color("#777777")
	colorSuccess = lipgloss.Color("#43BF6D")
	colorError   = lipgloss.Color("#FF5F5F")
)

// styles maps the parts of a line to their rendering functions.
type styles struct {
	title   func(...string) string
	subtext func(...string) string
	success func(...string) string
	failure func(...string) string
}

func plain(strs ...string) string {
	return strings.Join(strs, " ")
}

func newStyles(w io.Writer, color bool) styles {
	if !color {
		return styles{title: plain, subtext: plain, success: plain, failure: plain}
	}
	r := lipgloss.NewRenderer(w)
	return styles{
		title:   r.NewStyle().Foreground(colorPrimary).Bold(true).Render,
		subtext: r.NewStyle().Foreground(colorSubtext).Render,
		success: r.NewStyle().Foreground(colorSuccess).Render,
		failure: r.NewStyle().Foreground(colorError).Render,
	}
}

// Render writes the trace rooted at root to w.
func Render(w io.Writer, root *netsim.Packet, opts Options) error {
	st := newStyles(w, opts.Color)
	var sb strings.Builder
	for _, pkt := range root.Flatten(opts.Breadth) {
		sb.WriteString(line(pkt, st, opts))
		sb.WriteByte('\n')
		for _, ev := range pkt.Events() {
			sb.WriteString("    - ")
			sb.WriteString(st.subtext(event(ev)))
			sb.WriteByte('\n')
		}
	}
	if root.Msg != "" {
		if root.Success {
			sb.WriteString(st.success("=> " + root.Msg))
		} else {
			sb.WriteString(st.failure("=> " + root.Msg))
		}
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// line describes a single packet.
func line(pkt *netsim.Packet, st styles, opts Options) string {
	var parts []string
	if !opts.HideLabels {
		parts = append(parts, "["+pkt.Label()+"]")
	}
	title := pkt.Title
	if pkt.Subtitle != "" {
		title += " (" + pkt.Subtitle + ")"
	}
	parts = append(parts, st.title(title))
	if route := hops(pkt); route != "" {
		parts = append(parts, route)
	}
	if !pkt.Transmitted {
		parts = append(parts, st.subtext("(not transmitted)"))
	}
	return strings.Join(parts, " ")
}

// hops returns "start -> end", or the known endpoint only.
func hops(pkt *netsim.Packet) string {
	start, end := name(pkt.StartPoint()), name(pkt.EndPoint())
	switch {
	case start != "" && end != "":
		return start + " -> " + end
	case start != "":
		return start
	default:
		return end
	}
}

func name(ep packet.Endpoint) string {
	if ep == nil {
		return ""
	}
	return ep.EndpointName()
}

// event returns a single line description of ev.
func event(ev packet.Event) string {
	msg := strings.Join(strings.Fields(ev.Msg), " ")
	if ev.Kind == packet.EventStateChange {
		return fmt.Sprintf("%s: %s -> %s", msg, ev.StateBefore, ev.StateAfter)
	}
	return msg
}
