package ntp

import (
	"context"
	"net"
	"strconv"
	"time"
)

// DefaultLocalPort is the UDP source port requests are sent from
const DefaultLocalPort = 12300

// DefaultTimeout bounds the wait for a single server's reply
const DefaultTimeout = time.Second

// Result holds the four timestamps of one request/response exchange
type Result struct {
	T1 time.Time // local clock when the request was sent
	T2 time.Time // server clock when the request arrived
	T3 time.Time // server clock when the reply was sent
	T4 time.Time // local clock when the reply arrived

	// Header of the reply, recorded for logging only
	Header Header
}

// Delay is the round-trip network delay: (t4 - t1) - (t3 - t2).
// Asymmetric paths can make it zero or negative; it is not clamped.
func (r Result) Delay() time.Duration {
	return r.T4.Sub(r.T1) - r.T3.Sub(r.T2)
}

// Offset is the correction to add to the local clock, positive when the
// local clock is behind the server: ((t2 - t1) + (t3 - t4)) / 2
func (r Result) Offset() time.Duration {
	return (r.T2.Sub(r.T1) + r.T3.Sub(r.T4)) / 2
}

// DelayMillis returns Delay in milliseconds
func (r Result) DelayMillis() float64 {
	return Millis(r.Delay())
}

// OffsetMillis returns Offset in milliseconds
func (r Result) OffsetMillis() float64 {
	return Millis(r.Offset())
}

// Millis converts a duration to fractional milliseconds
func Millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Estimator performs single exchanges against NTP servers
type Estimator struct {
	// LocalPort is the UDP source port. 0 lets the OS pick one.
	LocalPort int

	// Now reads the local clock. Defaults to time.Now.
	Now func() time.Time
}

// NewEstimator returns an estimator bound to the given local port
func NewEstimator(localPort int) *Estimator {
	return &Estimator{LocalPort: localPort, Now: time.Now}
}

func (e *Estimator) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// Exchange sends one client request to host:port and waits up to timeout
// for the reply. Transport failures are returned as *NetworkError; a reply
// too short to hold both timestamps is returned as *ParseError.
func (e *Estimator) Exchange(ctx context.Context, host string, port int, timeout time.Duration) (Result, error) {
	server := net.JoinHostPort(host, strconv.Itoa(port))

	dialer := net.Dialer{
		LocalAddr: &net.UDPAddr{Port: e.LocalPort},
		Timeout:   timeout,
	}
	conn, err := dialer.DialContext(ctx, "udp", server)
	if err != nil {
		return Result{}, &NetworkError{Server: server, Op: "dial", Err: err}
	}
	defer conn.Close()

	request := NewRequest()
	var response Message

	t1 := e.now()
	if _, err := conn.Write(request[:]); err != nil {
		return Result{}, &NetworkError{Server: server, Op: "send", Err: err}
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return Result{}, &NetworkError{Server: server, Op: "deadline", Err: err}
	}

	n, err := conn.Read(response[:])
	if err != nil {
		return Result{}, &NetworkError{Server: server, Op: "receive", Err: err}
	}
	t4 := e.now()

	rx, err := ReceiveTimestamp(response[:n])
	if err != nil {
		return Result{}, err
	}
	tx, err := TransmitTimestamp(response[:n])
	if err != nil {
		return Result{}, err
	}

	return Result{
		T1:     t1,
		T2:     rx.Time(),
		T3:     tx.Time(),
		T4:     t4,
		Header: DecodeHeader(response[0]),
	}, nil
}
