// Package simulator emulates a device on the other end of a link.
package simulator

import (
	"bufio"
	"io"
	"sync"

	"github.com/acomagu/bufpipe"
	sphero "github.com/basilfx/go-sphero"
	log "github.com/sirupsen/logrus"
)

// BluetoothName and BluetoothID are reported by the default
// CmdGetBluetoothInfo handler.
const (
	BluetoothName = "Sphero-RGB"
	BluetoothID   = "6886e7001122"
)

// Versioning is the record returned by the default CmdVersioning handler.
var Versioning = []byte{0x02, 0x03, 0x01, 0x36, 0x03, 0x33, 0x01, 0x00}

// Reply is the answer of a handler.
type Reply struct {
	Status sphero.Status
	Data   []byte
}

// Handler answers a command. A nil reply leaves the command unanswered.
type Handler func(cmd sphero.Command) *Reply

type key struct {
	device  sphero.DeviceID
	command sphero.CommandID
}

// Device implements io.ReadWriteCloser. Bytes written to it are parsed as
// commands; replies and notifications can be read from it.
type Device struct {
	out1 io.ReadCloser
	in1  io.WriteCloser

	out2 io.ReadCloser
	in2  io.WriteCloser

	handlers map[key]Handler
	commands []sphero.Command
	lock     sync.Mutex

	writeLock sync.Mutex
}

// New returns a running device that answers ping, versioning and bluetooth
// info, acknowledges all other known commands and rejects unknown ones.
func New() *Device {
	d := &Device{
		handlers: map[key]Handler{},
	}

	d.out1, d.in1 = bufpipe.New(nil)
	d.out2, d.in2 = bufpipe.New(nil)

	d.Handle(sphero.DeviceCore, sphero.CmdVersioning, Respond(sphero.StatusOK, Versioning))
	d.Handle(sphero.DeviceCore, sphero.CmdGetBluetoothInfo, Respond(sphero.StatusOK, bluetoothInfo()))

	// Start emulation.
	go d.emulate()

	return d
}

// Respond returns a handler that always gives the same reply.
func Respond(status sphero.Status, data []byte) Handler {
	return func(sphero.Command) *Reply {
		return &Reply{Status: status, Data: data}
	}
}

// Silent is a handler that never replies.
func Silent(sphero.Command) *Reply {
	return nil
}

// Handle replaces the handler for a command.
func (d *Device) Handle(device sphero.DeviceID, command sphero.CommandID, handler Handler) {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.handlers[key{device, command}] = handler
}

// Commands returns the commands received so far.
func (d *Device) Commands() []sphero.Command {
	d.lock.Lock()
	defer d.lock.Unlock()

	return append([]sphero.Command(nil), d.commands...)
}

// Notify sends an asynchronous notification to the host.
func (d *Device) Notify(id sphero.AsyncID, data []byte) error {
	return d.send(sphero.EncodeNotification(id, data))
}

// Collide sends a collision notification to the host.
func (d *Device) Collide(event sphero.CollisionEvent) error {
	data, err := event.MarshalBinary()

	if err != nil {
		return err
	}

	return d.Notify(sphero.AsyncCollision, data)
}

// Inject writes raw bytes to the host, for example a corrupt frame.
func (d *Device) Inject(b []byte) error {
	return d.send(b)
}

func (d *Device) send(b []byte) error {
	d.writeLock.Lock()
	defer d.writeLock.Unlock()

	_, err := d.in1.Write(b)

	return err
}

func (d *Device) emulate() {
	reader := bufio.NewReader(d.out2)

	for {
		header := make([]byte, 6)

		if _, err := io.ReadFull(reader, header); err != nil {
			return
		}

		rest := make([]byte, header[5])

		if _, err := io.ReadFull(reader, rest); err != nil {
			return
		}

		cmd, seq, err := sphero.ParseCommand(append(header, rest...))

		if err != nil {
			log.Errorf("Simulator received bad frame: %v", err)
			continue
		}

		reply := d.handle(cmd)

		if reply == nil {
			continue
		}

		if err := d.send(sphero.EncodeResponse(reply.Status, seq, reply.Data)); err != nil {
			return
		}
	}
}

func (d *Device) handle(cmd sphero.Command) *Reply {
	d.lock.Lock()
	d.commands = append(d.commands, cmd)
	handler, ok := d.handlers[key{cmd.Device(), cmd.ID()}]
	d.lock.Unlock()

	if ok {
		return handler(cmd)
	}

	if sphero.KnownCommand(cmd.Device(), cmd.ID()) {
		return &Reply{Status: sphero.StatusOK}
	}

	return &Reply{Status: sphero.StatusBadCommand}
}

// Read implements the read method.
func (d *Device) Read(p []byte) (n int, err error) {
	return d.out1.Read(p)
}

// Write implements the write method.
func (d *Device) Write(p []byte) (n int, err error) {
	return d.in2.Write(p)
}

// Close will close the device. Blocked reads on either side return io.EOF.
func (d *Device) Close() error {
	d.writeLock.Lock()
	closePipe(d.out1, d.in1)
	d.writeLock.Unlock()

	closePipe(d.out2, d.in2)

	return nil
}

// closePipe closes both ends of a pipe. The empty write after closing the
// writer wakes a reader waiting for data, which then sees io.EOF.
func closePipe(r io.ReadCloser, w io.WriteCloser) {
	w.Close()
	w.Write(nil)
	r.Close()
}

// bluetoothInfo is the name padded to 15 bytes, a separator and the id.
func bluetoothInfo() []byte {
	b := make([]byte, 16, 16+len(BluetoothID)+1)
	copy(b[:15], BluetoothName)

	return append(append(b, BluetoothID...), 0x00)
}
