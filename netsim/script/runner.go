// SPDX-License-Identifier: GPL-3.0-or-later

package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/N1tramPH/network-simulator/errclass"
	"github.com/N1tramPH/network-simulator/netsim"
	"github.com/N1tramPH/network-simulator/netsim/addr"
	"github.com/N1tramPH/network-simulator/netsim/dns"
)

// Outcome classifies the result of an action.
type Outcome string

// Outcomes.
const (
	OutcomeSuccess = Outcome(ExpectSuccess)
	OutcomeFailure = Outcome(ExpectFailure)
	OutcomeError   = Outcome(ExpectError)
)

// Result is the result of running an [Action].
type Result struct {
	// Index is the position of the action in the file.
	Index int

	// Action is the action that ran.
	Action Action

	// Packet is the root of the trace, if any.
	Packet *netsim.Packet

	// Outcome classifies the result.
	Outcome Outcome

	// Detail describes the result, e.g. the resolved addresses.
	Detail string

	// Err is the error returned by the simulator, if any.
	Err error
}

// ErrUnexpectedOutcome indicates an outcome not matching the expectation.
var ErrUnexpectedOutcome = errors.New("unexpected outcome")

// Runner runs the actions of a [*File] against a scenario.
//
// Construct using [NewRunner].
type Runner struct {
	// Logger is the optional logger. A nil value disables logging.
	Logger *slog.Logger

	scenario *netsim.Scenario
	sockets  map[string]*netsim.Socket
}

// NewRunner creates a new [*Runner] for s.
func NewRunner(s *netsim.Scenario) *Runner {
	return &Runner{scenario: s, sockets: make(map[string]*netsim.Socket)}
}

// Socket returns the socket created by an action with the given name.
func (r *Runner) Socket(name string) *netsim.Socket {
	return r.sockets[name]
}

// Run runs the actions in order. It stops at the first action whose
// outcome does not match its expectation, returning the results
// collected so far along with an error. Actions without expectation
// never stop the run.
func (r *Runner) Run(ctx context.Context, actions []Action) ([]Result, error) {
	results := make([]Result, 0, len(actions))
	for idx, act := range actions {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := r.run(ctx, idx, act)
		results = append(results, res)
		if act.Expect != "" && Outcome(act.Expect) != res.Outcome {
			return results, fmt.Errorf("action #%d (%s): %w: want %s, got %s (%s)",
				idx, act.Do, ErrUnexpectedOutcome, act.Expect, res.Outcome, res.Detail)
		}
	}
	return results, nil
}

func (r *Runner) run(ctx context.Context, idx int, act Action) Result {
	if r.Logger != nil {
		r.Logger.InfoContext(ctx, "actionStart",
			slog.Int("index", idx),
			slog.String("action", act.Do),
			slog.String("device", act.Device),
			slog.String("target", act.Target),
		)
	}

	res := Result{Index: idx, Action: act}
	res.Packet, res.Detail, res.Err = r.dispatch(act)
	switch {
	case errors.Is(res.Err, errNothingReceived):
		res.Outcome, res.Detail, res.Err = OutcomeFailure, res.Err.Error(), nil
	case res.Err != nil:
		res.Outcome = OutcomeError
		if res.Detail == "" {
			res.Detail = res.Err.Error()
		}
	case res.Packet != nil && act.Do != ActionSend && act.Do != ActionSendTo && act.Do != ActionClose:
		res.Outcome = OutcomeFailure
		if res.Packet.Success {
			res.Outcome = OutcomeSuccess
		}
	default:
		res.Outcome = OutcomeSuccess
	}

	if r.Logger != nil {
		var packetID string
		if res.Packet != nil {
			packetID = res.Packet.ID
		}
		r.Logger.InfoContext(ctx, "actionDone",
			slog.Int("index", idx),
			slog.String("action", act.Do),
			slog.String("detail", res.Detail),
			slog.Any("err", res.Err),
			slog.String("errClass", errclass.New(res.Err)),
			slog.String("outcome", string(res.Outcome)),
			slog.String("packetID", packetID),
			slog.Float64("now", r.scenario.Now()),
		)
	}
	return res
}

// dispatch performs the action.
func (r *Runner) dispatch(act Action) (*netsim.Packet, string, error) {
	switch act.Do {
	case ActionAdvance:
		r.scenario.Advance(act.Seconds)
		return nil, fmt.Sprintf("now %g", r.scenario.Now()), nil
	case ActionSend, ActionClose, ActionReceive:
		return r.useSocket(act)
	}

	dev := r.scenario.Device(act.Device)
	if dev == nil {
		return nil, "", fmt.Errorf("%w: %s", netsim.ErrNoSuchDevice, act.Device)
	}
	switch act.Do {
	case ActionPowerOff:
		dev.TurnOff()
		return nil, "off", nil
	case ActionPowerOn:
		dev.TurnOn()
		return nil, "on", nil
	case ActionPing:
		return r.ping(dev, act)
	case ActionListen:
		return r.listen(dev, act)
	case ActionConnect:
		return r.connect(dev, act)
	case ActionSendTo:
		return r.sendTo(dev, act)
	case ActionLookup:
		return r.lookup(dev, act)
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownAction, act.Do)
	}
}

func (r *Runner) ping(dev *netsim.Device, act Action) (*netsim.Packet, string, error) {
	dst, err := addr.ParseIP(act.Target)
	if err != nil {
		return nil, "", err
	}
	pkt, err := dev.Ping(dst)
	if pkt != nil {
		return pkt, pkt.Msg, err
	}
	return nil, "", err
}

func (r *Runner) listen(dev *netsim.Device, act Action) (*netsim.Packet, string, error) {
	proto := netsim.Protocol(strings.ToUpper(act.Protocol))
	if act.Protocol == "" {
		proto = netsim.TCP
	}
	sock, err := dev.Listen(proto, act.Port)
	if err != nil {
		return nil, "", err
	}
	if act.Echo && proto == netsim.UDP {
		sock.Handler = func(_ *netsim.Packet, _ addr.SocketAddr, payload []byte) []byte {
			return payload
		}
	}
	r.remember(act, sock)
	return nil, fmt.Sprintf("listening on %s", sock.LocalAddr()), nil
}

func (r *Runner) connect(dev *netsim.Device, act Action) (*netsim.Packet, string, error) {
	remote, err := addr.ParseSocketAddr(act.Target)
	if err != nil {
		return nil, "", err
	}
	sock, pkt, err := dev.Dial(remote)
	if sock != nil {
		r.remember(act, sock)
	}
	if pkt != nil {
		return pkt, pkt.Msg, err
	}
	return nil, "", err
}

func (r *Runner) sendTo(dev *netsim.Device, act Action) (*netsim.Packet, string, error) {
	remote, err := addr.ParseSocketAddr(act.Target)
	if err != nil {
		return nil, "", err
	}
	sock := r.sockets[act.Socket]
	if sock == nil {
		if sock, err = dev.InitSocket(netsim.SocketClient, netsim.UDP); err != nil {
			return nil, "", err
		}
		r.remember(act, sock)
	}
	var pkt *netsim.Packet
	if act.Data != "" {
		pkt, err = sock.SendTo([]byte(act.Data), remote)
	} else {
		pkt, err = sock.SendSizeTo(act.Size, remote)
	}
	return pkt, fmt.Sprintf("sent to %s", remote), err
}

func (r *Runner) lookup(dev *netsim.Device, act Action) (*netsim.Packet, string, error) {
	server, err := addr.ParseIP(act.Server)
	if err != nil {
		return nil, "", err
	}
	result, err := dns.Lookup(dev, server, act.Target)
	var pkt *netsim.Packet
	if result != nil {
		pkt = result.Packet
	}
	switch {
	case errors.Is(err, dns.ErrNoName), errors.Is(err, dns.ErrNoResponse):
		if pkt != nil {
			pkt.Success = false
		}
		return pkt, err.Error(), nil
	case err != nil:
		return pkt, "", err
	}
	pkt.Success = true
	addrs := make([]string, 0, len(result.Addrs))
	for _, a := range result.Addrs {
		addrs = append(addrs, a.String())
	}
	return pkt, strings.Join(addrs, " "), nil
}

func (r *Runner) useSocket(act Action) (*netsim.Packet, string, error) {
	sock := r.sockets[act.Socket]
	if sock == nil {
		return nil, "", fmt.Errorf("%w: %q", ErrNoSuchSocket, act.Socket)
	}
	switch act.Do {
	case ActionSend:
		if act.Data != "" {
			pkt, err := sock.SendBytes([]byte(act.Data))
			return pkt, fmt.Sprintf("sent %d bytes", len(act.Data)), err
		}
		pkt, err := sock.Send(act.Size)
		return pkt, fmt.Sprintf("sent %d bytes", act.Size), err

	case ActionClose:
		pkt, err := sock.Close()
		return pkt, sock.State().String(), err

	default:
		detail, err := r.receive(sock)
		return nil, detail, err
	}
}

// receive drains the socket. A socket without data is a failure.
func (r *Runner) receive(sock *netsim.Socket) (string, error) {
	if sock.Protocol() == netsim.UDP {
		dgram, found, err := sock.ReceiveFrom()
		switch {
		case err != nil:
			return "", err
		case !found:
			return "", errNothingReceived
		case dgram.Payload != nil:
			return fmt.Sprintf("%q from %s", dgram.Payload, dgram.From), nil
		default:
			return fmt.Sprintf("%d bytes from %s", dgram.Size, dgram.From), nil
		}
	}
	n, err := sock.Receive()
	switch {
	case err != nil:
		return "", err
	case n == 0:
		return "", errNothingReceived
	default:
		return fmt.Sprintf("%d bytes", n), nil
	}
}

// errNothingReceived marks a receive on an empty socket.
var errNothingReceived = errors.New("nothing received")

func (r *Runner) remember(act Action, sock *netsim.Socket) {
	if act.Socket != "" {
		r.sockets[act.Socket] = sock
	}
}
