package protocol

import (
	"fmt"
	"strconv"
)

// Defaults applied to absent device fields
const (
	DefaultQuantity     = 1
	DefaultAlarmMessage = "unknown"
)

// Report is a sale reported by the device
type Report struct {
	Barcode  string
	Quantity int

	// Extra holds fields the host does not interpret
	Extra []Field
}

// Alarm is a device-side fault or tamper message
type Alarm struct {
	Message string
	Extra   []Field
}

// ParseReport extracts a REPORT command.
// QT defaults to DefaultQuantity; a missing ID or a non-positive or
// non-numeric QT is a FieldError.
func ParseReport(c Command) (Report, error) {
	if c.Name != CmdReport {
		return Report{}, fmt.Errorf("%w: expected %s, got %s", ErrNotACommand, CmdReport, c.Name)
	}

	barcode, ok := c.Get(KeyID)
	if !ok || barcode == "" {
		return Report{}, &FieldError{Command: c.Name, Field: KeyID, Err: ErrMissingField}
	}

	qty := DefaultQuantity
	if raw, ok := c.Get(KeyQuantity); ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Report{}, &FieldError{Command: c.Name, Field: KeyQuantity, Value: raw,
				Err: fmt.Errorf("%w: %v", ErrInvalidField, err)}
		}
		if n <= 0 {
			return Report{}, &FieldError{Command: c.Name, Field: KeyQuantity, Value: raw,
				Err: fmt.Errorf("%w: quantity must be positive", ErrInvalidField)}
		}
		qty = n
	}

	return Report{
		Barcode:  barcode,
		Quantity: qty,
		Extra:    extraFields(c, KeyID, KeyQuantity),
	}, nil
}

// ParseAlarm extracts an ALARM command; MSG defaults to DefaultAlarmMessage
func ParseAlarm(c Command) Alarm {
	return Alarm{
		Message: c.GetOr(KeyMessage, DefaultAlarmMessage),
		Extra:   extraFields(c, KeyMessage),
	}
}

// Scan asks the device to behave as if barcode had been scanned
func Scan(barcode string) Command {
	return NewCommand(CmdScan, F(KeyID, barcode))
}

// SyncStart announces a catalog of total rows; the device erases storage
// and answers with REQ_SYNC.
func SyncStart(total int) Command {
	return NewCommand(CmdSyncStart, F(KeyTotal, strconv.Itoa(total)))
}

// SyncData carries one catalog row
func SyncData(id, price, name string) Command {
	return NewCommand(CmdSyncData, F(KeyID, id), F(KeyPrice, price), F(KeyName, name))
}

// SyncEnd closes a sync of sum rows
func SyncEnd(sum int) Command {
	return NewCommand(CmdSyncEnd, F(KeySum, strconv.Itoa(sum)))
}

func extraFields(c Command, known ...string) []Field {
	var extra []Field
next:
	for _, f := range c.Fields {
		for _, k := range known {
			if f.Key == k {
				continue next
			}
		}
		extra = append(extra, f)
	}
	return extra
}
