package whep

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/pion/webrtc/v3"
	"github.com/pkg/errors"
)

const linkSeparator = ", "

var linkRegex = regexp.MustCompile(`(?i)^<(.+?)>; rel="ice-server"(; username="(.*?)"; credential="(.*?)"; credential-type="password")?`)

// ParseLinkHeader converts the Link header values of an OPTIONS response into ICE servers.
// One malformed entry rejects the whole header.
func ParseLinkHeader(values []string) ([]webrtc.ICEServer, error) {
	var servers []webrtc.ICEServer
	for _, value := range values {
		if value == "" {
			continue
		}
		for _, link := range strings.Split(value, linkSeparator) {
			server, err := parseLink(link)
			if err != nil {
				return nil, err
			}
			servers = append(servers, server)
		}
	}
	return servers, nil
}

func parseLink(link string) (webrtc.ICEServer, error) {
	m := linkRegex.FindStringSubmatch(link)
	if m == nil {
		return webrtc.ICEServer{}, errors.Wrapf(ErrInvalidLinkHeader, "%q", link)
	}

	server := webrtc.ICEServer{
		URLs: []string{m[1]},
	}
	if m[2] != "" {
		username, err := unquote(m[3])
		if err != nil {
			return webrtc.ICEServer{}, errors.Wrapf(ErrInvalidLinkHeader, "username: %v", err)
		}
		credential, err := unquote(m[4])
		if err != nil {
			return webrtc.ICEServer{}, errors.Wrapf(ErrInvalidLinkHeader, "credential: %v", err)
		}
		server.Username = username
		server.Credential = credential
		server.CredentialType = webrtc.ICECredentialTypePassword
	}
	return server, nil
}

// values are JSON string escaped
func unquote(s string) (string, error) {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return "", err
	}
	return out, nil
}
