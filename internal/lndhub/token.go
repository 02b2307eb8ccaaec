package lndhub

import (
	"encoding/base64"
	"strings"

	bridgedb "github.com/Maphikza/ln-settlement-bridge/internal/database"
	"github.com/pkg/errors"
)

var ErrBadToken = errors.New("malformed lndhub token")

// ParseToken reads the "<admin|invoice>:<key>" pair inside a bearer token.
// Tokens issued by Auth are base64url; clients also send standard base64.
func ParseToken(authorization string) (bridgedb.KeyType, string, error) {
	token := strings.TrimSpace(authorization)
	if i := strings.Index(token, "Bearer "); i >= 0 {
		token = token[i+len("Bearer "):]
	}
	if token == "" {
		return "", "", ErrBadToken
	}

	var raw []byte
	var err error
	for _, enc := range []*base64.Encoding{base64.URLEncoding, base64.StdEncoding, base64.RawURLEncoding, base64.RawStdEncoding} {
		if raw, err = enc.DecodeString(token); err == nil {
			break
		}
	}
	if err != nil {
		return "", "", errors.Wrap(ErrBadToken, err.Error())
	}

	keyType, key, ok := strings.Cut(string(raw), ":")
	if !ok || key == "" {
		return "", "", ErrBadToken
	}

	switch bridgedb.KeyType(keyType) {
	case bridgedb.KeyTypeAdmin, bridgedb.KeyTypeInvoice:
		return bridgedb.KeyType(keyType), key, nil
	default:
		return "", "", errors.Wrapf(ErrBadToken, "unknown key type %q", keyType)
	}
}

// Token builds the bearer token a client gets for a wallet key.
func Token(keyType bridgedb.KeyType, key string) string {
	return base64.URLEncoding.EncodeToString([]byte(string(keyType) + ":" + key))
}
