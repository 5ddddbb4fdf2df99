package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// AddressClass is the first byte of a NASA address.
type AddressClass uint8

const (
	ClassOutdoor           AddressClass = 0x10
	ClassHTU               AddressClass = 0x11
	ClassIndoor            AddressClass = 0x20
	ClassERV               AddressClass = 0x30
	ClassDiffuser          AddressClass = 0x35
	ClassMCU               AddressClass = 0x38
	ClassRMC               AddressClass = 0x40
	ClassWiredRemote       AddressClass = 0x50
	ClassPIM               AddressClass = 0x58
	ClassSIM               AddressClass = 0x59
	ClassPeak              AddressClass = 0x5A
	ClassPowerDivider      AddressClass = 0x5B
	ClassOnOffController   AddressClass = 0x60
	ClassWiFiKit           AddressClass = 0x62
	ClassCentralController AddressClass = 0x65
	ClassDMS               AddressClass = 0x6A
	ClassJIGTester         AddressClass = 0x80
	ClassBroadcastSelf     AddressClass = 0xB0
	ClassBroadcastControl  AddressClass = 0xB1
	ClassBroadcastSet      AddressClass = 0xB2
	ClassBroadcastModule   AddressClass = 0xB4
	ClassBroadcastLocal    AddressClass = 0xB8
	ClassUndefined         AddressClass = 0xFF
)

// Address is a NASA bus address rendered as "cc.hh.aa".
type Address struct {
	Class   AddressClass
	Channel uint8
	Address uint8
}

// BridgeAddress is the source address used for outbound NASA packets.
var BridgeAddress = Address{Class: ClassJIGTester, Channel: 0xFF, Address: 0x00}

// ParseAddress parses a NASA address of the form "20.00.00".
func ParseAddress(s string) (Address, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 3 {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	var b [3]uint8
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}
		b[i] = uint8(v)
	}
	return Address{Class: AddressClass(b[0]), Channel: b[1], Address: b[2]}, nil
}

func (a Address) String() string {
	return fmt.Sprintf("%02x.%02x.%02x", uint8(a.Class), a.Channel, a.Address)
}

func (a Address) bytes() []byte {
	return []byte{byte(a.Class), a.Channel, a.Address}
}

// IsNASA reports whether addr uses the dotted NASA form. Non-NASA units are
// addressed by a single hex byte such as "00" or "c8".
func IsNASA(addr string) bool {
	return strings.Count(addr, ".") == 2
}

// ValidateAddress accepts a dotted NASA address or a single hex byte
// non-NASA address.
func ValidateAddress(addr string) error {
	if IsNASA(addr) {
		_, err := ParseAddress(addr)
		return err
	}
	_, err := parseNonNasaAddress(addr)
	return err
}

// AddressKind classifies a bus address.
type AddressKind string

const (
	KindIndoor  AddressKind = "indoor"
	KindOutdoor AddressKind = "outdoor"
	KindOther   AddressKind = "other"
)

// Classify returns whether addr belongs to an indoor unit, an outdoor unit
// or something else on the bus (remotes, wifi kits, the bridge itself).
func Classify(addr string) AddressKind {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if addr == "00" || strings.HasPrefix(addr, "10.") {
		return KindOutdoor
	}
	if strings.HasPrefix(addr, "20.") {
		return KindIndoor
	}
	if !IsNASA(addr) && len(addr) == 2 {
		return KindIndoor
	}
	return KindOther
}
