package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
)

// ErrInvalidCID is returned for strings that are not IPFS content identifiers
var ErrInvalidCID = errors.New("invalid CID")

// IPFSClient pins content and returns its content identifier
type IPFSClient interface {
	PinFile(ctx context.Context, name string, body io.Reader) (string, error)
	UnpinFile(ctx context.Context, cid string) error
}

// ValidateCID parses a v0 or v1 CID and returns its canonical string form
func ValidateCID(s string) (string, error) {
	c, err := cid.Decode(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCID, err)
	}
	return c.String(), nil
}

// kuboClient talks to the Kubo (go-ipfs) RPC API
type kuboClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewIPFSClient creates a client for the RPC API at baseURL, e.g. http://127.0.0.1:5001
func NewIPFSClient(baseURL string, timeout time.Duration) IPFSClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &kuboClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type addResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

func (c *kuboClient) PinFile(ctx context.Context, name string, body io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := io.Copy(part, body); err != nil {
		return "", fmt.Errorf("failed to read content: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("pin", "true")
	q.Set("cid-version", "1")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v0/add?"+q.Encode(), &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ipfs add failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("ipfs add returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out addResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode ipfs response: %w", err)
	}
	return ValidateCID(out.Hash)
}

func (c *kuboClient) UnpinFile(ctx context.Context, contentID string) error {
	if _, err := ValidateCID(contentID); err != nil {
		return err
	}

	q := url.Values{}
	q.Set("arg", contentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v0/pin/rm?"+q.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ipfs unpin failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("ipfs unpin returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
