package internal

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// StatusError is returned by DoRequest when the response status is
// neither 200 nor 204.
type StatusError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *StatusError) Error() string {
	if len(e.Body) > 0 {
		return fmt.Sprintf("%s: %s", e.Status, string(e.Body))
	}
	return e.Status
}

// Temporary reports whether the request may succeed if retried.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError ||
		e.StatusCode == http.StatusTooManyRequests
}

func GenerateId() string {
	return uuid.Must(uuid.NewRandom()).String()
}

// ErrResponseTooLarge is returned by DoRequestLimit when a response body
// exceeds its limit.
var ErrResponseTooLarge = errors.New("response body too large")

// DoRequest executes a request, encoding input as json (or as query
// parameters when it's url.Values) and decoding a 200 response into v[0].
func DoRequest(ctx context.Context, client *http.Client, uri, method string, input any, v ...any) ([]byte, error) {
	return DoRequestLimit(ctx, client, 0, uri, method, input, v...)
}

// DoRequestLimit is DoRequest reading at most limit bytes of the response
// body; a limit of zero or less reads the whole body.
func DoRequestLimit(ctx context.Context, client *http.Client, limit int64, uri, method string, input any, v ...any) ([]byte, error) {
	var body io.Reader

	switch input := input.(type) {
	case nil:
	case url.Values:
		uri += "?" + input.Encode()
	default:
		byts, err := json.Marshal(input)
		if err != nil {
			return nil, err
		}
		body = bytes.NewBuffer(byts)
	}
	request, err := http.NewRequestWithContext(ctx, method, uri, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if correlationId := CorrelationIdFromCtx(ctx); correlationId != "" {
		request.Header.Set(HeaderCorrelationId, correlationId)
	}
	response, err := client.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()
	readBody := func() ([]byte, error) {
		if limit <= 0 {
			return io.ReadAll(response.Body)
		}
		byts, err := io.ReadAll(io.LimitReader(response.Body, limit+1))
		if err != nil {
			return nil, err
		}
		if int64(len(byts)) > limit {
			return byts[:limit], errors.Wrapf(ErrResponseTooLarge, "more than %d bytes", limit)
		}
		return byts, nil
	}
	switch response.StatusCode {
	default:
		byts, _ := readBody()
		return nil, &StatusError{
			StatusCode: response.StatusCode,
			Status:     response.Status,
			Body:       byts,
		}
	case http.StatusNoContent:
		return []byte{}, nil
	case http.StatusOK:
		byts, err := readBody()
		if err != nil {
			return nil, err
		}
		if len(v) > 0 && v[0] != nil {
			if err := json.Unmarshal(byts, v[0]); err != nil {
				return byts, errors.Wrap(err, "unable to decode response")
			}
		}
		return byts, nil
	}
}

func GetCertificates(certFile, keyFile string) ([]tls.Certificate, error) {
	if certFile == "" || keyFile == "" {
		return []tls.Certificate{}, nil
	}
	bytesCert, err := os.ReadFile(certFile)
	if err != nil {
		return nil, err
	}
	bytesKey, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, err
	}
	certificate, err := tls.X509KeyPair(bytesCert, bytesKey)
	if err != nil {
		return nil, err
	}
	return []tls.Certificate{certificate}, nil
}

func GetCaCert(caCertFile string) (*x509.CertPool, error) {
	caCertPool := x509.NewCertPool()
	if caCertFile == "" {
		return caCertPool, nil
	}
	bytes, err := os.ReadFile(caCertFile)
	if err != nil {
		return nil, err
	}
	caCertPool.AppendCertsFromPEM(bytes)
	return caCertPool, nil
}

// GetTransport returns a plain transport unless all three files are
// provided, in which case the transport uses mutual tls.
func GetTransport(caCertFile, certFile, keyFile string) (*http.Transport, error) {
	if caCertFile == "" || certFile == "" || keyFile == "" {
		return &http.Transport{}, nil
	}
	caCertPool, err := GetCaCert(caCertFile)
	if err != nil {
		return nil, err
	}
	certificates, err := GetCertificates(certFile, keyFile)
	if err != nil {
		return nil, err
	}
	return &http.Transport{
		TLSClientConfig: &tls.Config{
			// TLS versions below 1.2 are considered insecure
			// see https://www.rfc-editor.org/rfc/rfc7525.txt for details
			MinVersion:   tls.VersionTLS12,
			RootCAs:      caCertPool,
			Certificates: certificates,
		},
	}, nil
}
