package reserved

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Credential maps a bearer token to an on-engine identity and its roles.
type Credential struct {
	Token   string   `yaml:"token"`
	Address string   `yaml:"address"`
	Roles   []string `yaml:"roles"`
}

type credentialsFile struct {
	Credentials []Credential `yaml:"credentials"`
}

// Principal is an authenticated caller.
type Principal struct {
	Address [20]byte
	Roles   map[string]struct{}
}

// HasRole reports whether the principal carries the given role.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	_, ok := p.Roles[role]
	return ok
}

// Credentials resolves bearer tokens to principals and doubles as the
// engine's role oracle.
type Credentials struct {
	byToken   map[string]*Principal
	byAddress map[[20]byte]map[string]struct{}
}

// LoadCredentials reads the YAML credentials file.
func LoadCredentials(path string) (*Credentials, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var file credentialsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return NewCredentials(file.Credentials)
}

// NewCredentials validates and indexes the supplied credential list.
func NewCredentials(entries []Credential) (*Credentials, error) {
	creds := &Credentials{
		byToken:   make(map[string]*Principal, len(entries)),
		byAddress: make(map[[20]byte]map[string]struct{}, len(entries)),
	}
	for i, entry := range entries {
		token := strings.TrimSpace(entry.Token)
		if token == "" {
			return nil, fmt.Errorf("credential %d: token required", i)
		}
		if _, exists := creds.byToken[token]; exists {
			return nil, fmt.Errorf("credential %d: duplicate token", i)
		}
		addr, err := ParseAddress(entry.Address)
		if err != nil {
			return nil, fmt.Errorf("credential %d: %w", i, err)
		}
		if len(entry.Roles) == 0 {
			return nil, fmt.Errorf("credential %d: at least one role required", i)
		}
		roles := make(map[string]struct{}, len(entry.Roles))
		for _, role := range entry.Roles {
			role = strings.TrimSpace(role)
			if role == "" {
				return nil, fmt.Errorf("credential %d: empty role", i)
			}
			roles[role] = struct{}{}
		}
		creds.byToken[token] = &Principal{Address: addr, Roles: roles}
		if creds.byAddress[addr] == nil {
			creds.byAddress[addr] = make(map[string]struct{})
		}
		for role := range roles {
			creds.byAddress[addr][role] = struct{}{}
		}
	}
	return creds, nil
}

// Lookup resolves a bearer token.
func (c *Credentials) Lookup(token string) (*Principal, bool) {
	if c == nil {
		return nil, false
	}
	principal, ok := c.byToken[strings.TrimSpace(token)]
	return principal, ok
}

// HasRole implements the engine's Authorizer interface.
func (c *Credentials) HasRole(role string, addr []byte) bool {
	if c == nil || len(addr) != 20 {
		return false
	}
	var key [20]byte
	copy(key[:], addr)
	_, ok := c.byAddress[key][role]
	return ok
}

// ParseAddress decodes a 0x-prefixed 20-byte hex address.
func ParseAddress(raw string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "0x")
	if len(trimmed) != 40 {
		return addr, fmt.Errorf("address must be 20 hex bytes")
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("decode address: %w", err)
	}
	copy(addr[:], decoded)
	return addr, nil
}

// FormatAddress renders an address in 0x-prefixed hex.
func FormatAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}
