// Package ntp implements a minimal SNTP client: the 48-byte request/response
// message, a single four-timestamp exchange, and a weighted consensus over
// several servers.
package ntp

import (
	"bytes"
	"encoding/binary"
)

// MessageLength is the size of an NTP packet without extension fields
const MessageLength = 48

// Field offsets within a message
const (
	receiveTimestampOffset  = 32
	transmitTimestampOffset = 40
	timestampLength         = 8
)

// Port is the well-known NTP service port
const Port = 123

// Version sent in requests
const Version byte = 3

// Mode is the association mode in the low three bits of byte 0
type Mode byte

const (
	ModeReserved Mode = iota
	ModeSymmetricActive
	ModeSymmetricPassive
	ModeClient
	ModeServer
	ModeBroadcast
	ModeControl
	ModePrivate
)

// Message is a raw NTP packet
type Message [MessageLength]byte

// Header holds the packed fields of byte 0
type Header struct {
	Leap    byte
	Version byte
	Mode    Mode
}

// Encode packs the header MSB first: LI(2) VN(3) Mode(3)
func (h Header) Encode() byte {
	return (h.Leap&0b11)<<6 | (h.Version&0b111)<<3 | byte(h.Mode)&0b111
}

// DecodeHeader unpacks byte 0 of a message
func DecodeHeader(b byte) Header {
	return Header{
		Leap:    b >> 6,
		Version: (b >> 3) & 0b111,
		Mode:    Mode(b & 0b111),
	}
}

// NewRequest returns a client-mode request: leap 0, version 3, mode 3,
// every other byte zero
func NewRequest() Message {
	var m Message
	m[0] = Header{Leap: 0, Version: Version, Mode: ModeClient}.Encode()
	return m
}

// ParseTimestamp reads a big-endian seconds/fraction pair starting at offset
func ParseTimestamp(buf []byte, offset int) (Timestamp, error) {
	if offset < 0 {
		return Timestamp{}, &ParseError{Offset: offset, Length: len(buf), Kind: ErrMalformed}
	}
	if offset > len(buf) || len(buf)-offset < timestampLength {
		return Timestamp{}, &ParseError{Offset: offset, Length: len(buf), Kind: ErrTruncated}
	}

	var ts Timestamp
	reader := bytes.NewReader(buf[offset : offset+timestampLength])
	if err := binary.Read(reader, binary.BigEndian, &ts); err != nil {
		return Timestamp{}, &ParseError{Offset: offset, Length: len(buf), Kind: ErrMalformed, Err: err}
	}
	return ts, nil
}

// ReceiveTimestamp is the server's record of when the request arrived (t2)
func ReceiveTimestamp(response []byte) (Timestamp, error) {
	return ParseTimestamp(response, receiveTimestampOffset)
}

// TransmitTimestamp is the server's record of when the reply left (t3)
func TransmitTimestamp(response []byte) (Timestamp, error) {
	return ParseTimestamp(response, transmitTimestampOffset)
}
