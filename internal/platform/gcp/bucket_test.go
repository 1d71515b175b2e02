package gcp

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	objects map[string]string
	opened  []string
}

func (m *memStore) Open(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	m.opened = append(m.opened, bucket+"/"+key)
	body, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (m *memStore) Write(_ context.Context, bucket, key string, r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[bucket+"/"+key] = string(b)
	return nil
}

func (m *memStore) Close() error { return nil }

func TestParseURI(t *testing.T) {
	b, k, ok := ParseURI("gs://models/prod/scaler.json")
	require.True(t, ok)
	assert.Equal(t, "models", b)
	assert.Equal(t, "prod/scaler.json", k)

	for _, bad := range []string{"models/scaler.json", "gs://", "gs://bucket", "gs://bucket/", "s3://a/b"} {
		_, _, ok := ParseURI(bad)
		assert.False(t, ok, bad)
	}
}

func TestOpenerLocalAndGCS(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"local":true}`), 0o600))

	store := &memStore{objects: map[string]string{"art/b.json": `{"remote":true}`}}
	o := Opener{Store: store}

	got, err := o.ReadAll(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, `{"local":true}`, string(got))

	got, err = o.ReadAll(context.Background(), "gs://art/b.json")
	require.NoError(t, err)
	assert.Equal(t, `{"remote":true}`, string(got))
	assert.Equal(t, []string{"art/b.json"}, store.opened)
}

func TestOpenerWithoutStore(t *testing.T) {
	_, err := Opener{}.Open(context.Background(), "gs://art/b.json")
	assert.ErrorIs(t, err, ErrNoObjectStore)

	_, err = Opener{}.Open(context.Background(), "gs://art")
	assert.Error(t, err)
}

func TestContentTypeForKey(t *testing.T) {
	assert.Equal(t, "text/csv", contentTypeForKey("datasets/x.CSV"))
	assert.Equal(t, "application/json", contentTypeForKey("m.json"))
	assert.Equal(t, "", contentTypeForKey("blob"))
}
