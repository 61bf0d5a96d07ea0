// internal/rtu/frame.go
package rtu

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sigurn/crc16"
)

// ReadHoldingRegisters is the only function code this master speaks.
const ReadHoldingRegisters = 0x03

// addressBase converts conventional holding register numbering (40001-based)
// to the zero-based wire address.
const addressBase = 40001

var crcTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// Frame error kinds. Each names the first check a response failed.
var (
	ErrEmpty          = errors.New("rtu: empty response")
	ErrCRCMismatch    = errors.New("rtu: crc mismatch")
	ErrHeaderMismatch = errors.New("rtu: header mismatch")
	ErrLengthMismatch = errors.New("rtu: length mismatch")
)

// CRC16 computes the Modbus CRC (poly 0xA001, init 0xFFFF).
func CRC16(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}

// BuildReadRequest builds a read-holding-registers request frame.
// startAddr uses 40001-based numbering; the CRC trailer is little-endian.
func BuildReadRequest(slaveID byte, startAddr, quantity uint16) []byte {
	addr := startAddr - addressBase

	frame := make([]byte, 6, 8)
	frame[0] = slaveID
	frame[1] = ReadHoldingRegisters
	binary.BigEndian.PutUint16(frame[2:4], addr)
	binary.BigEndian.PutUint16(frame[4:6], quantity)

	crc := CRC16(frame)
	return append(frame, byte(crc), byte(crc>>8))
}

// ExpectedResponseLength is the exact byte count of a well-formed response:
// slave(1) + func(1) + bytecount(1) + quantity*2 + crc(2).
func ExpectedResponseLength(quantity uint16) int {
	return 3 + 2*int(quantity) + 2
}

// ParseResponse validates a response frame and returns its register payload.
// Checks run in order: empty, CRC, header, declared byte count.
func ParseResponse(resp []byte, slaveID byte, quantity uint16) ([]byte, error) {
	if len(resp) == 0 {
		return nil, ErrEmpty
	}
	if len(resp) < 5 {
		return nil, fmt.Errorf("%w: frame truncated at %d bytes", ErrLengthMismatch, len(resp))
	}

	got := binary.LittleEndian.Uint16(resp[len(resp)-2:])
	if want := CRC16(resp[:len(resp)-2]); got != want {
		return nil, fmt.Errorf("%w: got %04X want %04X", ErrCRCMismatch, got, want)
	}

	if resp[0] != slaveID || resp[1] != ReadHoldingRegisters {
		return nil, fmt.Errorf("%w: slave=%02X func=%02X", ErrHeaderMismatch, resp[0], resp[1])
	}

	if int(resp[2]) != 2*int(quantity) {
		return nil, fmt.Errorf("%w: byte count %d, want %d", ErrLengthMismatch, resp[2], 2*quantity)
	}
	if len(resp) != ExpectedResponseLength(quantity) {
		return nil, fmt.Errorf("%w: frame is %d bytes, want %d", ErrLengthMismatch, len(resp), ExpectedResponseLength(quantity))
	}

	return resp[3 : 3+2*int(quantity)], nil
}
