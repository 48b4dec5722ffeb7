package sphero

import "fmt"

// Start-of-packet markers.
const (
	SOP1      = 0xFF
	SOP2Reply = 0xFF
	SOP2Async = 0xFE
)

// MaxPayloadSize is the largest payload a command can carry, so that the
// length byte (payload plus checksum) still fits in one byte.
const MaxPayloadSize = 254

// MinFrameSize is the size of an inbound frame without payload.
const MinFrameSize = 6

// commandHeaderSize covers SOP1, SOP2, DID, CID, SEQ and DLEN.
const commandHeaderSize = 6

// Kind discriminates inbound frames.
type Kind int

// The inbound frame kinds.
const (
	KindReply Kind = iota
	KindNotification
)

func (k Kind) String() string {
	switch k {
	case KindReply:
		return "reply"
	case KindNotification:
		return "notification"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Command is a validated request for the device. Create one with NewCommand.
type Command struct {
	device  DeviceID
	command CommandID
	data    []byte
	valid   bool
}

// NewCommand returns a command for the given device and command id. The
// payload is copied.
func NewCommand(device DeviceID, command CommandID, data ...byte) (Command, error) {
	if len(data) > MaxPayloadSize {
		return Command{}, ErrPayloadTooLarge
	}

	return Command{
		device:  device,
		command: command,
		data:    append([]byte(nil), data...),
		valid:   true,
	}, nil
}

// Device returns the device id of the command.
func (c Command) Device() DeviceID {
	return c.device
}

// ID returns the command id.
func (c Command) ID() CommandID {
	return c.command
}

// Data returns the payload of the command.
func (c Command) Data() []byte {
	return c.data
}

func (c Command) String() string {
	return CommandName(c.device, c.command)
}

// Encode returns the wire representation of the command for the given
// sequence number.
func (c Command) Encode(seq uint8) []byte {
	length := byte(len(c.data) + 1)

	b := make([]byte, 0, commandHeaderSize+len(c.data)+1)
	b = append(b, SOP1, SOP2Reply, byte(c.device), byte(c.command), seq, length)
	b = append(b, c.data...)

	return append(b, Checksum(b[2:]))
}

// ParseCommand parses one complete command frame, as produced by Encode.
func ParseCommand(b []byte) (Command, uint8, error) {
	if len(b) < commandHeaderSize+1 {
		return Command{}, 0, fmt.Errorf("%w: command frame of %d bytes", ErrMalformedFrame, len(b))
	}

	if b[0] != SOP1 || b[1] != SOP2Reply {
		return Command{}, 0, fmt.Errorf("%w: bad start of packet % x", ErrMalformedFrame, b[:2])
	}

	length := int(b[5])

	if length == 0 || len(b) != commandHeaderSize+length {
		return Command{}, 0, fmt.Errorf("%w: length byte %d for %d bytes", ErrMalformedFrame, length, len(b))
	}

	if chk := Checksum(b[2 : len(b)-1]); chk != b[len(b)-1] {
		return Command{}, 0, fmt.Errorf("%w: checksum 0x%02x, expected 0x%02x", ErrMalformedFrame, b[len(b)-1], chk)
	}

	cmd, err := NewCommand(DeviceID(b[2]), CommandID(b[3]), b[commandHeaderSize:len(b)-1]...)

	if err != nil {
		return Command{}, 0, err
	}

	return cmd, b[4], nil
}

// Checksum returns the one's complement of the modulo 256 sum of b.
func Checksum(b []byte) byte {
	var sum byte

	for _, v := range b {
		sum += v
	}

	return ^sum
}

// Frame is a complete, checksum-verified frame received from the device.
type Frame struct {
	Kind Kind

	// Code holds the status of a reply, or the id of a notification.
	Code byte

	// Seq is only meaningful for replies.
	Seq uint8

	// Length is the length field as sent, including the checksum byte.
	Length uint16

	Data     []byte
	Checksum byte
}

// Response is the reply to a command.
type Response struct {
	Status Status
	Seq    uint8
	Data   []byte
}

// Notification is an unsolicited frame.
type Notification struct {
	ID   AsyncID
	Data []byte
}

// EncodeResponse returns the wire representation of a reply frame.
func EncodeResponse(status Status, seq uint8, data []byte) []byte {
	b := make([]byte, 0, MinFrameSize+len(data))
	b = append(b, SOP1, SOP2Reply, byte(status), seq, byte(len(data)+1))
	b = append(b, data...)

	return append(b, Checksum(b[2:]))
}

// EncodeNotification returns the wire representation of an asynchronous
// notification frame.
func EncodeNotification(id AsyncID, data []byte) []byte {
	length := len(data) + 1

	b := make([]byte, 0, MinFrameSize+len(data))
	b = append(b, SOP1, SOP2Async, byte(id), byte(length>>8), byte(length))
	b = append(b, data...)

	return append(b, Checksum(b[2:]))
}
