package ax26

import (
	"strconv"

	"github.com/snksoft/crc"
)

// crc16Params is the chunk checksum: CRC-16 with polynomial
// x^16 + x^15 + x^2 + 1 (0x18005), initial value 0xFFFF, no reflection and
// no final XOR.
var crc16Params = &crc.Parameters{
	Width:      16,
	Polynomial: 0x8005,
	Init:       0xFFFF,
	ReflectIn:  false,
	ReflectOut: false,
	FinalXor:   0x0000,
}

var crc16Table = crc.NewTable(crc16Params)

// Checksum computes the chunk CRC-16 over data.
func Checksum(data []byte) uint16 {
	return uint16(crc16Table.CalculateCRC(data))
}

// checksumText renders the checksum the way it travels on the wire:
// decimal ASCII without padding.
func checksumText(data []byte) []byte {
	return strconv.AppendUint(nil, uint64(Checksum(data)), 10)
}
