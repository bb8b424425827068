// SPDX-License-Identifier: GPL-3.0-or-later

/*
Package censor contains forwarding filters modeling network interference.

Every filter implements [netsim.Filter] and is installed on a router using
[*netsim.Device.AddFilter]. The router runs its filters on each transit
IP packet before routing it, so the effects of a filter show up in the
trace of the action that caused the traffic.

# DNS poisoning

[*DNSPoisoner] lets DNS queries through and injects a forged answer taken
from its own database. The forged answer reaches the client first, so a
client reading the first datagram resolves the poisoned address.

# TCP reset injection

[*TCPResetter] waits for a segment whose payload contains a pattern and
injects a RST towards both ends of the connection. The handshake is not
affected, since it carries no payload.

# Blackholing

[*Blackholer] drops the packets of a connection, matched by destination
and optionally by payload, for a number of seconds of virtual time. Once
[*netsim.Scenario.Advance] moves past the deadline, packets flow again.

# Destination NAT

[*DNatter] rewrites the destination of the packets sent by a source to a
target, and the source of the replies, so that the client keeps talking
to the address it dialed.
*/
package censor
