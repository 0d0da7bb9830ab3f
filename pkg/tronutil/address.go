package tronutil

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
)

const (
	// AddressVersion is the base58check version byte of mainnet addresses.
	AddressVersion byte = 0x41
	// addressPayloadLength is the length of the decoded address payload.
	addressPayloadLength = 20
)

var (
	// ErrInvalidAddress ...
	ErrInvalidAddress = errors.New("invalid tron address")
)

// ValidateAddress returns an error if the given string is not a well-formed
// base58check mainnet address.
func ValidateAddress(addr string) error {
	_, err := decodeAddress(addr)
	return err
}

// AddressToHex converts a base58check address to its 21-byte hex form with
// the leading version byte, as expected by the node HTTP API.
func AddressToHex(addr string) (string, error) {
	payload, err := decodeAddress(addr)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(append([]byte{AddressVersion}, payload...)), nil
}

// AddressFromHex converts a 21-byte hex address with the leading version
// byte back to its base58check form.
func AddressFromHex(h string) (string, error) {
	buf, err := hex.DecodeString(strings.TrimPrefix(h, "0x"))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidAddress, err)
	}
	if len(buf) != addressPayloadLength+1 || buf[0] != AddressVersion {
		return "", ErrInvalidAddress
	}
	return base58.CheckEncode(buf[1:], AddressVersion), nil
}

func decodeAddress(addr string) ([]byte, error) {
	payload, version, err := base58.CheckDecode(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, err)
	}
	if version != AddressVersion || len(payload) != addressPayloadLength {
		return nil, ErrInvalidAddress
	}
	return payload, nil
}
