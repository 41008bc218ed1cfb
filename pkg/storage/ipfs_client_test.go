package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCID = "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi"

func TestValidateCID(t *testing.T) {
	c, err := ValidateCID(" QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG ")
	require.NoError(t, err)
	assert.Equal(t, "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG", c)

	_, err = ValidateCID(sampleCID)
	assert.NoError(t, err)

	_, err = ValidateCID("QmMockCID123456789")
	assert.True(t, errors.Is(err, ErrInvalidCID))
}

func TestPinFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v0/add", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("pin"))

		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		body, _ := io.ReadAll(file)
		assert.Equal(t, "manifest.json", header.Filename)
		assert.Equal(t, `{"files":[]}`, string(body))

		w.Write([]byte(`{"Name":"manifest.json","Hash":"` + sampleCID + `","Size":"20"}`))
	}))
	defer srv.Close()

	client := NewIPFSClient(srv.URL, time.Second)
	got, err := client.PinFile(context.Background(), "manifest.json", strings.NewReader(`{"files":[]}`))
	require.NoError(t, err)
	assert.Equal(t, sampleCID, got)
}

func TestPinFileServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "repo locked", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewIPFSClient(srv.URL, time.Second)
	_, err := client.PinFile(context.Background(), "a.txt", strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repo locked")
}

func TestUnpinFile(t *testing.T) {
	var gotArg string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v0/pin/rm", r.URL.Path)
		gotArg = r.URL.Query().Get("arg")
		w.Write([]byte(`{"Pins":["` + gotArg + `"]}`))
	}))
	defer srv.Close()

	client := NewIPFSClient(srv.URL, time.Second)
	require.NoError(t, client.UnpinFile(context.Background(), sampleCID))
	assert.Equal(t, sampleCID, gotArg)

	assert.Error(t, client.UnpinFile(context.Background(), "nope"))
}
