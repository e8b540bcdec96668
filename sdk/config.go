package sdk

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	// Version is reported to the decision service on every call.
	Version = "decisionsdk-go/1.4.0"

	// hostTemplate derives the engine host from a network id when no explicit
	// host is configured.
	hostTemplate = "e-%d.adzerk.net"

	defaultTimeout = 10 * time.Second
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config holds the defaults one Client applies to every call that does not
// override them. A zero NetworkID or SiteID means "unset".
type Config struct {
	// NetworkID is the default network for placements and profile calls.
	NetworkID int `validate:"gte=0"`
	// SiteID is the default site for placements.
	SiteID int `validate:"gte=0"`
	// Host overrides the derived engine host. It may be a bare host
	// ("engine.example.com") or include a scheme ("http://127.0.0.1:8080").
	Host string `validate:"omitempty,url|hostname|hostname_port"`
	// Timeout bounds each HTTP call made by the default transport.
	Timeout time.Duration `validate:"gte=0"`
	// UserAgent, when set, is sent as the User-Agent header.
	UserAgent string `validate:"omitempty,printascii"`
}

// Validate checks field formats. It does not require NetworkID or SiteID:
// those are only needed by the calls that consume them.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return configError("config", fmt.Errorf("%w: %v", ErrInvalidConfig, err))
	}
	return nil
}

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return defaultTimeout
}

func (c Config) networkID(override int) (int, error) {
	if override > 0 {
		return override, nil
	}
	if c.NetworkID > 0 {
		return c.NetworkID, nil
	}
	return 0, ErrMissingNetworkID
}

func (c Config) siteID(override int) (int, error) {
	if override > 0 {
		return override, nil
	}
	if c.SiteID > 0 {
		return c.SiteID, nil
	}
	return 0, ErrMissingSiteID
}

// BaseURL resolves the scheme and host every endpoint is built from.
func (c Config) BaseURL() (string, error) {
	host := c.Host
	if host == "" {
		if c.NetworkID <= 0 {
			return "", ErrHostUnresolved
		}
		host = fmt.Sprintf(hostTemplate, c.NetworkID)
	}
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return strings.TrimRight(host, "/"), nil
}
