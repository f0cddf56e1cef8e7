package ntp

import (
	"encoding/binary"
	"net"
	"testing"
	"time"
)

// mockServer answers client requests on loopback with a skewed clock
type mockServer struct {
	Skew       time.Duration // Added to the local clock for t2/t3
	Latency    time.Duration // Simulated one-way delay in each direction
	Hold       time.Duration // Time between t2 and t3
	Silent     bool          // Read requests but never reply
	ReplyBytes int           // Truncate replies to this length when non-zero
}

// start listens on an ephemeral loopback port and returns it
func (s mockServer) start(t *testing.T) int {
	t.Helper()

	conn, err := s.listen(t, "127.0.0.1", 0)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return conn.LocalAddr().(*net.UDPAddr).Port
}

// startOn listens on a specific loopback address and port
func (s mockServer) startOn(t *testing.T, host string, port int) error {
	t.Helper()

	_, err := s.listen(t, host, port)
	return err
}

func (s mockServer) listen(t *testing.T, host string, port int) (*net.UDPConn, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP(host), Port: port})
	if err != nil {
		return nil, err
	}
	t.Cleanup(func() { conn.Close() })

	go s.serve(conn)
	return conn, nil
}

func (s mockServer) serve(conn *net.UDPConn) {
	buf := make([]byte, 512)
	for {
		_, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		if s.Silent {
			continue
		}

		time.Sleep(s.Latency)
		rx := time.Now().Add(s.Skew)
		time.Sleep(s.Hold)
		tx := rx.Add(s.Hold)
		time.Sleep(s.Latency)

		var reply Message
		reply[0] = Header{Version: 4, Mode: ModeServer}.Encode()
		putTimestamp(reply[:], 32, TimestampFromTime(rx))
		putTimestamp(reply[:], 40, TimestampFromTime(tx))

		n := MessageLength
		if s.ReplyBytes > 0 {
			n = s.ReplyBytes
		}
		conn.WriteToUDP(reply[:n], addr)
	}
}

func putTimestamp(buf []byte, offset int, ts Timestamp) {
	binary.BigEndian.PutUint32(buf[offset:], ts.Seconds)
	binary.BigEndian.PutUint32(buf[offset+4:], ts.Fraction)
}

// closedPort returns a loopback UDP port with nothing listening on it
func closedPort(t *testing.T) int {
	t.Helper()

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := conn.LocalAddr().(*net.UDPAddr).Port
	conn.Close()
	return port
}

func within(got, want, tolerance time.Duration) bool {
	d := got - want
	if d < 0 {
		d = -d
	}
	return d <= tolerance
}
