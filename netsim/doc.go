// SPDX-License-Identifier: GPL-3.0-or-later

/*
Package netsim provides a deterministic, layered network simulator
that developers can use to study protocols and write integration tests.

# Usage and Features

The [NewScenario] function creates a new, empty [*Scenario]. You add
devices to the scenario using [*Scenario.AddDevice], [*Scenario.NewDevice],
or builders such as [*Scenario.MustNewComputer] and [*Scenario.MustNewRouter],
and you connect their adapters using [*Scenario.Connect].

Each [*Device] has a [Kind] that determines which layers it runs:

- a [Hub] floods frames out of every port;

- a [Switch] learns MAC addresses into a CAM table and switches frames;

- a [Router] resolves addresses with ARP and forwards IPv4 packets;

- a [Computer] runs the whole stack including TCP and UDP sockets.

You then invoke actions on the devices, such as:

- [*Device.Ping]

- [*Device.Listen] and [*Device.Dial]

- [*Socket.Send], [*Socket.SendTo], and [*Socket.Close]

Every action runs synchronously and returns the root [*Packet] of the
causality tree of everything the action caused: ARP exchanges, frames
flooded by hubs, ICMP errors, TCP acknowledgements, and so on. Each
packet carries the events reported by the layers it traversed. Use
[*Packet.Flatten] to obtain the packets in display order.

The simulation is deterministic: a scenario seeds its random stream
using its name, so the same scenario and actions yield the same trace.
The virtual clock only runs deferred housekeeping, such as removing
sockets lingering in TIME-WAIT, when you call [*Scenario.Advance].

Forwarding devices accept a chain of [Filter] that may drop or rewrite
transit traffic and inject spoofed packets. The [netsim/censor] package contains filters
modeling common censorship techniques.

The errors returned by socket operations are the same [syscall.Errno]
the kernel would generate in similar cases (we use the [x/sys] repository
to pull system-dependent error values). Protocol-level failures, instead,
such as an unreachable destination, never cause an error: they are
reported as events on the packets.

Subpackages of this package contain the building blocks (for example,
[netsim/dataunit] defines the protocol headers) and extensions (for
example, [netsim/dns] runs a DNS server and resolver on top of
simulated UDP sockets).

This package contains comprehensive examples showing how to use it.

[x/sys]: https://pkg.go.dev/golang.org/x/sys
*/
package netsim
