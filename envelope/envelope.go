package envelope

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	Algorithm = "AES-256-GCM"

	V1 = 1
	V2 = 2
)

var (
	ErrMalformedEnvelope  = errors.New("malformed envelope")
	ErrMissingWrappedKey  = errors.New("version 2 envelope requires a wrapped key")
	ErrUnsupportedVersion = errors.New("unsupported envelope version")
)

// Sealed is the output of the symmetric cipher, all fields raw bytes.
type Sealed struct {
	IV   []byte
	Tag  []byte
	Data []byte
	AAD  []byte
}

// Envelope is the stored JSON form. All byte fields are standard base64.
type Envelope struct {
	Version int    `json:"version,omitempty"`
	Algo    string `json:"algo"`
	IV      string `json:"iv"`
	Tag     string `json:"tag"`
	Data    string `json:"data"`
	EncKey  string `json:"encKey,omitempty"`
	AAD     string `json:"aad,omitempty"`
}

type Decoded struct {
	Version int
	Sealed
	EncKey []byte
}

var b64 = base64.StdEncoding

// Encode builds the wire form of sealed. For V2 the wrapped key is embedded;
// for V1 it is left out and the caller stores it on its own.
func Encode(version int, sealed Sealed, wrappedKey []byte) (Envelope, error) {
	env := Envelope{
		Algo: Algorithm,
		IV:   b64.EncodeToString(sealed.IV),
		Tag:  b64.EncodeToString(sealed.Tag),
		Data: b64.EncodeToString(sealed.Data),
	}
	if len(sealed.AAD) > 0 {
		env.AAD = b64.EncodeToString(sealed.AAD)
	}

	switch version {
	case V1:
	case V2:
		if len(wrappedKey) == 0 {
			return Envelope{}, ErrMissingWrappedKey
		}
		env.Version = V2
		env.EncKey = b64.EncodeToString(wrappedKey)
	default:
		return Envelope{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	return env, nil
}

// Decode validates env and returns its raw parts. The version is taken from
// the presence of encKey.
func Decode(env Envelope) (Decoded, error) {
	if env.Algo != Algorithm {
		return Decoded{}, fmt.Errorf("%w: algo %q", ErrMalformedEnvelope, env.Algo)
	}

	var d Decoded
	var err error
	if d.IV, err = decodeField("iv", env.IV, true); err != nil {
		return Decoded{}, err
	}
	if d.Tag, err = decodeField("tag", env.Tag, true); err != nil {
		return Decoded{}, err
	}
	if d.Data, err = decodeField("data", env.Data, true); err != nil {
		return Decoded{}, err
	}
	if d.AAD, err = decodeField("aad", env.AAD, false); err != nil {
		return Decoded{}, err
	}
	if d.EncKey, err = decodeField("encKey", env.EncKey, false); err != nil {
		return Decoded{}, err
	}

	switch {
	case d.EncKey != nil:
		if env.Version != 0 && env.Version != V2 {
			return Decoded{}, fmt.Errorf("%w: version %d with encKey", ErrMalformedEnvelope, env.Version)
		}
		d.Version = V2
	case env.Version == V2:
		return Decoded{}, fmt.Errorf("%w: version 2 without encKey", ErrMalformedEnvelope)
	default:
		d.Version = V1
	}

	return d, nil
}

func decodeField(name, value string, required bool) ([]byte, error) {
	if value == "" {
		if required {
			return nil, fmt.Errorf("%w: missing %s", ErrMalformedEnvelope, name)
		}
		return nil, nil
	}
	raw, err := b64.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not valid base64", ErrMalformedEnvelope, name)
	}
	return raw, nil
}

func Marshal(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// Unmarshal parses a stored envelope. Unknown fields are tolerated; a body
// that is not a JSON object is malformed.
func Unmarshal(data []byte) (Envelope, error) {
	var env Envelope
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return env, nil
}
