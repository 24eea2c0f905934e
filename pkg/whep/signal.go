package whep

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/pkg/errors"

	"github.com/livekit/whep-client/pkg/telemetry/prometheus"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "

	contentTypeSDP     = "application/sdp"
	contentTypeSDPFrag = "application/trickle-ice-sdpfrag"

	maxBodySize = 1 << 20
)

// SignalClient speaks the HTTP side of WHEP with a single endpoint.
type SignalClient struct {
	url    *url.URL
	token  string
	client *http.Client
}

func NewSignalClient(endpoint string, token string, timeout time.Duration) (*SignalClient, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}
	return &SignalClient{
		url:   u,
		token: token,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func (s *SignalClient) URL() string {
	return s.url.String()
}

// Options fetches the ICE servers advertised by the endpoint.
func (s *SignalClient) Options(ctx context.Context) ([]webrtc.ICEServer, error) {
	resp, err := s.do(ctx, http.MethodOptions, s.url.String(), nil, nil)
	if err != nil {
		return nil, err
	}
	drain(resp)

	return ParseLinkHeader(resp.Header.Values("Link"))
}

// PostOffer sends the local offer and returns the created session with the remote answer.
func (s *SignalClient) PostOffer(ctx context.Context, offer string) (*Session, string, error) {
	resp, err := s.do(ctx, http.MethodPost, s.url.String(), map[string]string{
		"Content-Type": contentTypeSDP,
	}, strings.NewReader(offer))
	if err != nil {
		return nil, "", err
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusCreated:
	case http.StatusNotFound:
		return nil, "", ErrStreamNotFound
	case http.StatusBadRequest:
		var body struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&body); err != nil {
			return nil, "", errors.Wrapf(ErrBadStatusCode, "status %d, %v", resp.StatusCode, err)
		}
		return nil, "", &SignalError{Status: resp.StatusCode, Message: body.Error}
	default:
		return nil, "", errors.Wrapf(ErrBadStatusCode, "status %d", resp.StatusCode)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return nil, "", ErrMissingLocation
	}
	sessionURL, err := s.url.Parse(location)
	if err != nil {
		return nil, "", errors.Wrap(err, "invalid location header")
	}

	answer, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, "", err
	}

	return newSession(sessionURL.String(), resp.Header.Get("ETag")), string(answer), nil
}

// PatchCandidates trickles a fragment of local candidates into the session.
func (s *SignalClient) PatchCandidates(ctx context.Context, session Session, fragment string) error {
	resp, err := s.do(ctx, http.MethodPatch, session.URL, map[string]string{
		"Content-Type": contentTypeSDPFrag,
		"If-Match":     session.MatchToken,
	}, strings.NewReader(fragment))
	if err != nil {
		return err
	}
	drain(resp)

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrStreamNotFound
	default:
		return errors.Wrapf(ErrBadStatusCode, "status %d", resp.StatusCode)
	}
}

// Delete releases the session. The response status is not checked.
func (s *SignalClient) Delete(ctx context.Context, session Session) error {
	resp, err := s.do(ctx, http.MethodDelete, session.URL, nil, nil)
	if err != nil {
		return err
	}
	drain(resp)
	return nil
}

func (s *SignalClient) do(ctx context.Context, method string, target string, headers map[string]string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if s.token != "" {
		req.Header.Set(authorizationHeader, bearerPrefix+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		prometheus.RecordSignalRequest(method, "error")
		return nil, err
	}
	prometheus.RecordSignalRequest(method, strconv.Itoa(resp.StatusCode))
	return resp, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
	_ = resp.Body.Close()
}
