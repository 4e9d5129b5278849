// Package protocol implements the kiosk line protocol and its host transport.
//
// Every message is one newline-terminated line of comma-separated KEY:VALUE
// pairs whose CMD pair names the command, e.g. "CMD:REPORT,ID:A1,QT:3".
// Values are not escaped: a value containing ',' or ':' corrupts the frame.
package protocol

// Protocol constants
const (
	FieldCommand   = "CMD"
	FieldSeparator = ','
	PairSeparator  = ':'
	LineTerminator = '\n'

	// MaxLineLength bounds a buffered inbound line; longer input is dropped
	MaxLineLength = 1024
)

// Command names, host to device
const (
	CmdScan      = "SCAN"
	CmdSyncStart = "SYNC_START"
	CmdSyncData  = "SYNC_DATA"
	CmdSyncEnd   = "SYNC_END"
)

// Command names, device to host
const (
	CmdReport  = "REPORT"
	CmdAlarm   = "ALARM"
	CmdReqSync = "REQ_SYNC"
)

// Field keys
const (
	KeyID       = "ID"
	KeyQuantity = "QT"
	KeyMessage  = "MSG"
	KeyTotal    = "TOTAL"
	KeyPrice    = "PR"
	KeyName     = "NM"
	KeySum      = "SUM"
)
