package registry

import (
	"encoding/base64"
	"fmt"
	"strings"

	fluxerr "github.com/fluxcd/seedy/pkg/errors"
)

// Credentials for a (Docker) registry. These are short-lived; get
// them just before they are needed, and don't keep them around.
type Credentials struct {
	Username, Password string
	// The registry host the credentials are good for, if known
	Registry string
}

func (c Credentials) String() string {
	if (Credentials{}) == c {
		return "<zero creds>"
	}
	return fmt.Sprintf("<registry creds for %s@%s>", c.Username, c.Registry)
}

// NoCredentials is for registries that don't need any.
func NoCredentials() Credentials {
	return Credentials{}
}

// MalformedCredentialError is returned when an authorization token
// doesn't decode to `username:password`. It deliberately does not
// include the token.
type MalformedCredentialError struct {
	Reason string
}

func (e *MalformedCredentialError) Error() string {
	return "malformed registry credential: " + e.Reason
}

func malformed(reason string) error {
	return &fluxerr.Error{
		Type: fluxerr.Credential,
		Err:  &MalformedCredentialError{Reason: reason},
	}
}

// ParseAuthToken decodes a base64-encoded `username:password`, as
// handed out by ECR (and found in the `auth` field of a Docker
// config.json). The password may contain colons.
func ParseAuthToken(token string) (Credentials, error) {
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return Credentials{}, malformed("not valid base64")
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return Credentials{}, malformed(fmt.Sprintf("decoded credential has wrong number of fields (expected 2, got %d)", len(parts)))
	}
	return Credentials{
		Username: parts[0],
		Password: parts[1],
	}, nil
}
