package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fluxerr "github.com/fluxcd/seedy/pkg/errors"
)

func pushNotification() map[string]interface{} {
	return map[string]interface{}{
		"version":     "0",
		"id":          "9baf3833-b73f-1107-0234-3206ab430914",
		"detail-type": "ECR Image Action",
		"source":      "aws.ecr",
		"account":     "123456789012",
		"time":        "2020-03-30T09:56:58Z",
		"region":      "rp-north-1",
		"resources":   []string{},
		"detail": map[string]interface{}{
			"action-type":     "PUSH",
			"result":          "SUCCESS",
			"repository-name": "bittrance/ze-image",
			"image-digest":    "sha256:1234",
			"image-tag":       "latest",
		},
	}
}

func encode(t *testing.T, n map[string]interface{}) []byte {
	bs, err := json.Marshal(n)
	require.NoError(t, err)
	return bs
}

func detailOf(n map[string]interface{}) map[string]interface{} {
	return n["detail"].(map[string]interface{})
}

func TestDecodePush(t *testing.T) {
	ev, err := Decode(encode(t, pushNotification()))
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, "123456789012", ev.AccountID)
	assert.Equal(t, "rp-north-1", ev.Region)
	assert.Equal(t, "bittrance/ze-image", ev.RepositoryName)
	assert.Equal(t, "sha256:1234", string(ev.ImageDigest))
	assert.Equal(t, "latest", ev.ImageTag)
}

func TestCanonicalRef(t *testing.T) {
	ev, err := Decode(encode(t, pushNotification()))
	require.NoError(t, err)
	assert.Equal(t,
		"123456789012.dkr.ecr.rp-north-1.amazonaws.com/bittrance/ze-image:latest",
		ev.CanonicalRef())
	assert.Equal(t,
		"123456789012.dkr.ecr.rp-north-1.amazonaws.com/bittrance/ze-image:latest@sha256:1234",
		ev.PinnedRef())
}

func TestDecodeNonTrigger(t *testing.T) {
	for _, c := range []struct {
		actionType, result string
	}{
		{"DELETE", "SUCCESS"},
		{"PUSH", "FAILURE"},
		{"PULL", "SUCCESS"},
		{"push", "success"},
		{"", ""},
	} {
		n := pushNotification()
		detailOf(n)["action-type"] = c.actionType
		detailOf(n)["result"] = c.result
		ev, err := Decode(encode(t, n))
		assert.NoError(t, err, "%s/%s", c.actionType, c.result)
		assert.Nil(t, ev, "%s/%s", c.actionType, c.result)
	}
}

func TestDecodeNonTriggerIgnoresOtherFields(t *testing.T) {
	n := pushNotification()
	detailOf(n)["action-type"] = "DELETE"
	delete(detailOf(n), "image-tag")
	delete(detailOf(n), "image-digest")
	n["account"] = 1234
	delete(n, "region")

	ev, err := Decode(encode(t, n))
	assert.NoError(t, err)
	assert.Nil(t, ev)
}

func TestDecodeWrongTypeTriggerField(t *testing.T) {
	for name, body := range map[string][]byte{
		"number action": []byte(`{"detail": {"action-type": 1, "result": "SUCCESS"}}`),
		"list action":   []byte(`{"detail": {"action-type": ["PUSH"], "result": "SUCCESS"}}`),
		"object result": []byte(`{"detail": {"action-type": "PUSH", "result": {"status": "SUCCESS"}}}`),
		"bool result":   []byte(`{"detail": {"action-type": "PUSH", "result": true}}`),
	} {
		t.Run(name, func(t *testing.T) {
			ev, err := Decode(body)
			assert.NoError(t, err)
			assert.Nil(t, ev)
		})
	}
}

func TestDecodeInvalid(t *testing.T) {
	for name, body := range map[string][]byte{
		"not JSON":      []byte("this is not an event"),
		"JSON array":    []byte(`["PUSH"]`),
		"JSON null":     []byte(`null`),
		"no detail":     []byte(`{"account": "123456789012", "region": "rp-north-1"}`),
		"detail string": []byte(`{"detail": "PUSH"}`),
		"no action":     []byte(`{"detail": {"result": "SUCCESS"}}`),
		"null result":   []byte(`{"detail": {"action-type": "PUSH", "result": null}}`),
	} {
		t.Run(name, func(t *testing.T) {
			ev, err := Decode(body)
			assert.Nil(t, ev)
			assert.True(t, fluxerr.IsType(err, fluxerr.Validation), "expected validation error, got %v", err)
		})
	}
}

func TestDecodeMissingPushField(t *testing.T) {
	for _, field := range []string{"account", "region"} {
		n := pushNotification()
		delete(n, field)
		ev, err := Decode(encode(t, n))
		assert.Nil(t, ev)
		assert.True(t, fluxerr.IsType(err, fluxerr.Validation), "missing %s: %v", field, err)
		assert.Contains(t, err.Error(), field)
	}
	for _, field := range []string{"repository-name", "image-digest", "image-tag"} {
		n := pushNotification()
		delete(detailOf(n), field)
		ev, err := Decode(encode(t, n))
		assert.Nil(t, ev)
		assert.True(t, fluxerr.IsType(err, fluxerr.Validation), "missing %s: %v", field, err)
		assert.Contains(t, err.Error(), "detail."+field)
	}
}

func TestDecodeWrongTypePushField(t *testing.T) {
	n := pushNotification()
	detailOf(n)["image-tag"] = []string{"latest"}
	ev, err := Decode(encode(t, n))
	assert.Nil(t, ev)
	assert.True(t, fluxerr.IsType(err, fluxerr.Validation))
}
