package invitations

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/linesmerrill/esg-identity-api/models"
)

// codeAlphabet leaves out 0/O and 1/I so codes survive being read aloud. Its length
// is 32, so a random byte masked to 5 bits picks a symbol without bias.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 8

const tokenBytes = 32

var codePrefixes = map[models.Role]string{
	models.RoleInvestor:          "IND",
	models.RoleNGO:               "NGO",
	models.RoleCorporate:         "CORP",
	models.RoleMarketParticipant: "CMP",
	models.RoleAdmin:             "ADM",
}

// CodeGenerator returns a human-shareable code for role
type CodeGenerator func(role models.Role) (string, error)

// TokenGenerator returns an opaque acceptance token
type TokenGenerator func() (string, error)

// GenerateCode builds a role-prefixed code such as NGO-7KQ2MZ4P
func GenerateCode(role models.Role) (string, error) {
	prefix, ok := codePrefixes[role]
	if !ok {
		return "", fmt.Errorf("no code prefix for role %q", role)
	}
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[b&31]
	}
	return prefix + "-" + string(buf), nil
}

// GenerateToken returns 32 random bytes encoded as unpadded URL-safe base64.
// It shares no input with GenerateCode.
func GenerateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
