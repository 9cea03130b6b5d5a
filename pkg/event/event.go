package event

import (
	"bytes"
	"encoding/json"

	digest "github.com/opencontainers/go-digest"

	fluxerr "github.com/fluxcd/seedy/pkg/errors"
	"github.com/fluxcd/seedy/pkg/image"
)

// The combination of detail fields that means an image was pushed. ECR
// sends "ECR Image Action" events for deletions and failed pushes too,
// and those are of no interest.
const (
	ActionPush    = "PUSH"
	ResultSuccess = "SUCCESS"
)

// PushEvent is what we need to know about an image that has been
// pushed to ECR.
type PushEvent struct {
	AccountID      string
	Region         string
	RepositoryName string
	ImageDigest    digest.Digest
	ImageTag       string
}

// CanonicalRef is the tagged reference to the pushed image, without
// the digest. This is what services are matched against.
func (e PushEvent) CanonicalRef() string {
	return image.ECRRef(e.AccountID, e.Region, e.RepositoryName, e.ImageTag)
}

// PinnedRef is the canonical reference pinned to the pushed digest.
func (e PushEvent) PinnedRef() string {
	return image.WithDigest(e.CanonicalRef(), e.ImageDigest)
}

// The EventBridge envelope. Only the fields we look at are here; each
// is kept raw so that we can tell a missing field from one of the
// wrong type.
type notification struct {
	Account json.RawMessage `json:"account"`
	Region  json.RawMessage `json:"region"`
	Detail  *detail         `json:"detail"`
}

type detail struct {
	ActionType     json.RawMessage `json:"action-type"`
	Result         json.RawMessage `json:"result"`
	RepositoryName json.RawMessage `json:"repository-name"`
	ImageDigest    json.RawMessage `json:"image-digest"`
	ImageTag       json.RawMessage `json:"image-tag"`
}

// Decode interprets a message body as an ECR image action event. It
// returns a nil event and a nil error for events that are not
// successful pushes; and a validation error if the body is not an
// event at all, or lacks a field we need.
func Decode(body []byte) (*PushEvent, error) {
	var n notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fluxerr.Wrap(fluxerr.Validation, err, "event is not a JSON object")
	}
	if n.Detail == nil {
		return nil, fluxerr.New(fluxerr.Validation, "event has no detail object")
	}

	// These must be there, but anything other than the exact strings
	// is simply not a push.
	for _, f := range []struct {
		name string
		raw  json.RawMessage
		want string
	}{
		{"detail.action-type", n.Detail.ActionType, ActionPush},
		{"detail.result", n.Detail.Result, ResultSuccess},
	} {
		if !present(f.raw) {
			return nil, fluxerr.New(fluxerr.Validation, "event is missing field %q", f.name)
		}
		var s string
		if err := json.Unmarshal(f.raw, &s); err != nil || s != f.want {
			return nil, nil
		}
	}

	var (
		ev   PushEvent
		dgst string
		err  error
	)
	for _, f := range []struct {
		name string
		raw  json.RawMessage
		into *string
	}{
		{"account", n.Account, &ev.AccountID},
		{"region", n.Region, &ev.Region},
		{"detail.repository-name", n.Detail.RepositoryName, &ev.RepositoryName},
		{"detail.image-digest", n.Detail.ImageDigest, &dgst},
		{"detail.image-tag", n.Detail.ImageTag, &ev.ImageTag},
	} {
		if *f.into, err = stringField(f.name, f.raw); err != nil {
			return nil, err
		}
	}
	ev.ImageDigest = digest.Digest(dgst)
	return &ev, nil
}

var jsonNull = []byte("null")

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(raw, jsonNull)
}

func stringField(name string, raw json.RawMessage) (string, error) {
	if !present(raw) {
		return "", fluxerr.New(fluxerr.Validation, "event is missing field %q", name)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fluxerr.New(fluxerr.Validation, "event field %q is not a string", name)
	}
	return s, nil
}
