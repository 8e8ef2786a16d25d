package bitcoin

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// NetworkParams maps a network name to its chain parameters
func NetworkParams(name string) (*chaincfg.Params, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "mainnet", "main", "bitcoin":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, name)
	}
}

// NormalizeAddress decodes an address for the given network and returns its
// canonical encoding. Bech32 addresses come back lower-case.
func NormalizeAddress(address string, params *chaincfg.Params) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidAddress)
	}

	decoded, err := btcutil.DecodeAddress(address, params)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidAddress, address, err)
	}
	if !decoded.IsForNet(params) {
		return "", fmt.Errorf("%w: %s is not a %s address", ErrInvalidAddress, address, params.Name)
	}

	return decoded.EncodeAddress(), nil
}

// AddressSet is an allowlist of canonical addresses
type AddressSet struct {
	params    *chaincfg.Params
	addresses map[string]struct{}
}

// NewAddressSet validates and canonicalises every address in the list
func NewAddressSet(addresses []string, params *chaincfg.Params) (*AddressSet, error) {
	set := &AddressSet{
		params:    params,
		addresses: make(map[string]struct{}, len(addresses)),
	}

	for _, addr := range addresses {
		canonical, err := NormalizeAddress(addr, params)
		if err != nil {
			return nil, err
		}
		set.addresses[canonical] = struct{}{}
	}

	return set, nil
}

// Len returns the number of addresses in the set
func (s *AddressSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.addresses)
}

// Contains reports whether the address is in the set. Addresses that do not
// decode for the network are compared case-insensitively as a fallback, since
// the inbound payload shape is not guaranteed.
func (s *AddressSet) Contains(address string) bool {
	if s.Len() == 0 {
		return false
	}

	if canonical, err := NormalizeAddress(address, s.params); err == nil {
		_, ok := s.addresses[canonical]
		return ok
	}

	needle := strings.TrimSpace(address)
	for addr := range s.addresses {
		if strings.EqualFold(addr, needle) {
			return true
		}
	}
	return false
}

// TruncateAddress shortens an address for log output
func TruncateAddress(address string) string {
	if len(address) <= 16 {
		return address
	}
	return address[:8] + "..." + address[len(address)-6:]
}
