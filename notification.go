package sphero

import (
	"encoding/binary"
	"fmt"
)

// NotificationHandler receives unsolicited frames of one kind.
type NotificationHandler func(notification Notification)

// collisionSize is the payload size of a collision notification.
const collisionSize = 16

// CollisionEvent is reported when the device detects an impact.
type CollisionEvent struct {
	// Impact components on each axis.
	X, Y, Z int16

	// Axis flags the dominant axis: bit 0 for X, bit 1 for Y.
	Axis uint8

	XMagnitude int16
	YMagnitude int16

	Speed uint8

	// Timestamp is the device's clock in milliseconds.
	Timestamp uint32
}

// DecodeCollision decodes the payload of a collision notification.
func DecodeCollision(data []byte) (CollisionEvent, error) {
	if len(data) < collisionSize {
		return CollisionEvent{}, fmt.Errorf("%w: collision has %d of %d bytes", ErrShortNotification, len(data), collisionSize)
	}

	return CollisionEvent{
		X:          int16(binary.BigEndian.Uint16(data[0:])),
		Y:          int16(binary.BigEndian.Uint16(data[2:])),
		Z:          int16(binary.BigEndian.Uint16(data[4:])),
		Axis:       data[6],
		XMagnitude: int16(binary.BigEndian.Uint16(data[7:])),
		YMagnitude: int16(binary.BigEndian.Uint16(data[9:])),
		Speed:      data[11],
		Timestamp:  binary.BigEndian.Uint32(data[12:]),
	}, nil
}

// MarshalBinary returns the notification payload of the event.
func (e CollisionEvent) MarshalBinary() ([]byte, error) {
	b := make([]byte, collisionSize)

	binary.BigEndian.PutUint16(b[0:], uint16(e.X))
	binary.BigEndian.PutUint16(b[2:], uint16(e.Y))
	binary.BigEndian.PutUint16(b[4:], uint16(e.Z))
	b[6] = e.Axis
	binary.BigEndian.PutUint16(b[7:], uint16(e.XMagnitude))
	binary.BigEndian.PutUint16(b[9:], uint16(e.YMagnitude))
	b[11] = e.Speed
	binary.BigEndian.PutUint32(b[12:], e.Timestamp)

	return b, nil
}

// PowerState is the battery state reported by power notifications.
type PowerState uint8

// The power states.
const (
	PowerCharging PowerState = 0x01
	PowerOK       PowerState = 0x02
	PowerLow      PowerState = 0x03
	PowerCritical PowerState = 0x04
)

var powerStateNames = map[PowerState]string{
	PowerCharging: "charging",
	PowerOK:       "ok",
	PowerLow:      "low",
	PowerCritical: "critical",
}

func (p PowerState) String() string {
	if name, ok := powerStateNames[p]; ok {
		return name
	}

	return fmt.Sprintf("power(0x%02x)", uint8(p))
}

// DecodePowerState decodes the payload of a power notification.
func DecodePowerState(data []byte) (PowerState, error) {
	if len(data) < 1 {
		return 0, fmt.Errorf("%w: power state is empty", ErrShortNotification)
	}

	return PowerState(data[0]), nil
}
