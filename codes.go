package sphero

import "fmt"

// DeviceID addresses a virtual device inside the robot.
type DeviceID byte

// CommandID identifies a command within a virtual device.
type CommandID byte

// Status is the message response code of a reply frame.
type Status byte

// AsyncID identifies the kind of an asynchronous notification.
type AsyncID byte

// The virtual devices.
const (
	DeviceCore       DeviceID = 0x00
	DeviceBootloader DeviceID = 0x01
	DeviceSphero     DeviceID = 0x02
)

// Core device commands.
const (
	CmdPing                 CommandID = 0x01
	CmdVersioning           CommandID = 0x02
	CmdSetDeviceName        CommandID = 0x10
	CmdGetBluetoothInfo     CommandID = 0x11
	CmdSetAutoReconnect     CommandID = 0x12
	CmdGetAutoReconnect     CommandID = 0x13
	CmdGetPowerState        CommandID = 0x20
	CmdSetPowerNotification CommandID = 0x21
	CmdSleep                CommandID = 0x22
	CmdSetInactivityTimeout CommandID = 0x25
)

// Sphero device commands.
const (
	CmdSetHeading                  CommandID = 0x01
	CmdSetStabilization            CommandID = 0x02
	CmdSetRotationRate             CommandID = 0x03
	CmdConfigureCollisionDetection CommandID = 0x12
	CmdSetRGBLED                   CommandID = 0x20
	CmdSetBackLED                  CommandID = 0x21
	CmdRoll                        CommandID = 0x30
)

// Message response codes.
const (
	StatusOK            Status = 0x00
	StatusGeneric       Status = 0x01
	StatusChecksum      Status = 0x02
	StatusFragmentation Status = 0x03
	StatusBadCommand    Status = 0x04
	StatusUnsupported   Status = 0x05
	StatusBadMessage    Status = 0x06
	StatusBadParameter  Status = 0x07
	StatusExecution     Status = 0x08
	StatusBadDevice     Status = 0x09
	StatusPowerNoGood   Status = 0x31
	StatusPageIllegal   Status = 0x32
	StatusFlashFail     Status = 0x33
	StatusMACorrupt     Status = 0x34
	StatusMsgTimeout    Status = 0x35
)

// Asynchronous notification identifiers.
const (
	AsyncPowerNotification AsyncID = 0x01
	AsyncDiagnostic        AsyncID = 0x02
	AsyncSensorData        AsyncID = 0x03
	AsyncConfigBlock       AsyncID = 0x04
	AsyncPreSleepWarning   AsyncID = 0x05
	AsyncMacroMarker       AsyncID = 0x06
	AsyncCollision         AsyncID = 0x07
)

var deviceNames = map[DeviceID]string{
	DeviceCore:       "core",
	DeviceBootloader: "bootloader",
	DeviceSphero:     "sphero",
}

type commandKey struct {
	device  DeviceID
	command CommandID
}

var commandNames = map[commandKey]string{
	{DeviceCore, CmdPing}:                          "ping",
	{DeviceCore, CmdVersioning}:                    "versioning",
	{DeviceCore, CmdSetDeviceName}:                 "set-device-name",
	{DeviceCore, CmdGetBluetoothInfo}:              "get-bluetooth-info",
	{DeviceCore, CmdSetAutoReconnect}:              "set-auto-reconnect",
	{DeviceCore, CmdGetAutoReconnect}:              "get-auto-reconnect",
	{DeviceCore, CmdGetPowerState}:                 "get-power-state",
	{DeviceCore, CmdSetPowerNotification}:          "set-power-notification",
	{DeviceCore, CmdSleep}:                         "sleep",
	{DeviceCore, CmdSetInactivityTimeout}:          "set-inactivity-timeout",
	{DeviceSphero, CmdSetHeading}:                  "set-heading",
	{DeviceSphero, CmdSetStabilization}:            "set-stabilization",
	{DeviceSphero, CmdSetRotationRate}:             "set-rotation-rate",
	{DeviceSphero, CmdConfigureCollisionDetection}: "configure-collision-detection",
	{DeviceSphero, CmdSetRGBLED}:                   "set-rgb-led",
	{DeviceSphero, CmdSetBackLED}:                  "set-back-led",
	{DeviceSphero, CmdRoll}:                        "roll",
}

// statusInfo couples a response code to its name and error kind. An OK
// status has no error.
type statusInfo struct {
	name string
	err  error
}

var statuses = map[Status]statusInfo{
	StatusOK:            {"OK", nil},
	StatusGeneric:       {"EGEN", ErrGeneric},
	StatusChecksum:      {"ECHKSUM", ErrChecksum},
	StatusFragmentation: {"EFRAG", ErrFragmentation},
	StatusBadCommand:    {"EBAD_CMD", ErrBadCommand},
	StatusUnsupported:   {"EUNSUPP", ErrUnsupported},
	StatusBadMessage:    {"EBAD_MSG", ErrBadMessage},
	StatusBadParameter:  {"EPARAM", ErrBadParameter},
	StatusExecution:     {"EEXEC", ErrExecution},
	StatusBadDevice:     {"EBAD_DID", ErrBadDevice},
	StatusPowerNoGood:   {"POWER_NOGOOD", ErrPowerNoGood},
	StatusPageIllegal:   {"PAGE_ILLEGAL", ErrPageIllegal},
	StatusFlashFail:     {"FLASH_FAIL", ErrFlashFail},
	StatusMACorrupt:     {"MA_CORRUPT", ErrMACorrupt},
	StatusMsgTimeout:    {"MSG_TIMEOUT", ErrMsgTimeout},
}

var asyncNames = map[AsyncID]string{
	AsyncPowerNotification: "power",
	AsyncDiagnostic:        "diagnostic",
	AsyncSensorData:        "sensor-data",
	AsyncConfigBlock:       "config-block",
	AsyncPreSleepWarning:   "pre-sleep",
	AsyncMacroMarker:       "macro-marker",
	AsyncCollision:         "collision",
}

func (d DeviceID) String() string {
	if name, ok := deviceNames[d]; ok {
		return name
	}

	return fmt.Sprintf("device(0x%02x)", byte(d))
}

// CommandName returns a readable name for a command of a device.
func CommandName(device DeviceID, command CommandID) string {
	if name, ok := commandNames[commandKey{device, command}]; ok {
		return name
	}

	return fmt.Sprintf("%s/0x%02x", device, byte(command))
}

// KnownCommand reports whether the command is in the command table.
func KnownCommand(device DeviceID, command CommandID) bool {
	_, ok := commandNames[commandKey{device, command}]

	return ok
}

func (s Status) String() string {
	if info, ok := statuses[s]; ok {
		return info.name
	}

	return fmt.Sprintf("status(0x%02x)", byte(s))
}

// Err returns the error kind of a status, or nil if the status is OK.
func (s Status) Err() error {
	info, ok := statuses[s]

	if !ok {
		return ErrUnknownStatus
	}

	return info.err
}

func (a AsyncID) String() string {
	if name, ok := asyncNames[a]; ok {
		return name
	}

	return fmt.Sprintf("async(0x%02x)", byte(a))
}
