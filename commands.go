package sphero

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
)

// BluetoothInfo is the answer to CmdGetBluetoothInfo.
type BluetoothInfo struct {
	Name string
	ID   string
}

// Roll states.
const (
	RollStop uint8 = 0x00
	RollGo   uint8 = 0x01
)

// CollisionConfig configures the collision detection of the device.
type CollisionConfig struct {
	// Method 0x00 disables detection, 0x01 enables it.
	Method uint8

	XThreshold uint8
	XSpeed     uint8
	YThreshold uint8
	YSpeed     uint8

	// DeadTime is the post-collision dead time in 10ms increments.
	DeadTime uint8
}

func (l *Link) do(ctx context.Context, device DeviceID, command CommandID, data ...byte) (Response, error) {
	cmd, err := NewCommand(device, command, data...)

	if err != nil {
		return Response{}, err
	}

	return l.Request(ctx, cmd)
}

// Ping the device.
func (l *Link) Ping(ctx context.Context) error {
	_, err := l.do(ctx, DeviceCore, CmdPing)

	return err
}

// GetVersioning returns the raw version record of the device.
func (l *Link) GetVersioning(ctx context.Context) ([]byte, error) {
	r, err := l.do(ctx, DeviceCore, CmdVersioning)

	return r.Data, err
}

// GetBluetoothInfo returns the name and id the device advertises.
func (l *Link) GetBluetoothInfo(ctx context.Context) (BluetoothInfo, error) {
	r, err := l.do(ctx, DeviceCore, CmdGetBluetoothInfo)

	if err != nil {
		return BluetoothInfo{}, err
	}

	return parseBluetoothInfo(r.Data)
}

// parseBluetoothInfo reads a name of up to 15 bytes, a separator byte and
// the id.
func parseBluetoothInfo(data []byte) (BluetoothInfo, error) {
	const (
		nameSize = 15
		idOffset = nameSize + 1
	)

	if len(data) < idOffset {
		return BluetoothInfo{}, fmt.Errorf("bluetooth info of %d bytes", len(data))
	}

	return BluetoothInfo{
		Name: string(bytes.TrimRight(data[:nameSize], "\x00")),
		ID:   string(bytes.TrimRight(data[idOffset:], "\x00")),
	}, nil
}

// SetAutoReconnect enables or disables reconnecting after the given number
// of seconds.
func (l *Link) SetAutoReconnect(ctx context.Context, enable bool, seconds uint8) error {
	_, err := l.do(ctx, DeviceCore, CmdSetAutoReconnect, boolByte(enable), seconds)

	return err
}

// GetAutoReconnect returns the raw auto reconnect setting.
func (l *Link) GetAutoReconnect(ctx context.Context) ([]byte, error) {
	r, err := l.do(ctx, DeviceCore, CmdGetAutoReconnect)

	return r.Data, err
}

// SetInactivityTimeout sets the number of seconds before the device sleeps.
func (l *Link) SetInactivityTimeout(ctx context.Context, seconds uint16) error {
	_, err := l.do(ctx, DeviceCore, CmdSetInactivityTimeout, uint16Bytes(seconds)...)

	return err
}

// SetHeading makes the current orientation the given heading in degrees.
func (l *Link) SetHeading(ctx context.Context, heading uint16) error {
	_, err := l.do(ctx, DeviceSphero, CmdSetHeading, uint16Bytes(heading)...)

	return err
}

// SetStabilization turns the internal stabilization on or off.
func (l *Link) SetStabilization(ctx context.Context, enable bool) error {
	_, err := l.do(ctx, DeviceSphero, CmdSetStabilization, boolByte(enable))

	return err
}

// ConfigureCollisionDetection sets up collision notifications.
func (l *Link) ConfigureCollisionDetection(ctx context.Context, c CollisionConfig) error {
	_, err := l.do(ctx, DeviceSphero, CmdConfigureCollisionDetection,
		c.Method, c.XThreshold, c.XSpeed, c.YThreshold, c.YSpeed, c.DeadTime)

	return err
}

// SetRGBLED sets the main LED color. With persist, the color survives a
// power cycle.
func (l *Link) SetRGBLED(ctx context.Context, red, green, blue uint8, persist bool) error {
	_, err := l.do(ctx, DeviceSphero, CmdSetRGBLED, red, green, blue, boolByte(persist))

	return err
}

// SetBackLED sets the brightness of the back LED.
func (l *Link) SetBackLED(ctx context.Context, brightness uint8) error {
	_, err := l.do(ctx, DeviceSphero, CmdSetBackLED, brightness)

	return err
}

// Roll drives at the given speed and heading in degrees.
func (l *Link) Roll(ctx context.Context, speed uint8, heading uint16, state uint8) error {
	data := append([]byte{speed}, uint16Bytes(heading)...)

	_, err := l.do(ctx, DeviceSphero, CmdRoll, append(data, state)...)

	return err
}

func boolByte(b bool) byte {
	if b {
		return 0x01
	}

	return 0x00
}

func uint16Bytes(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)

	return b
}
