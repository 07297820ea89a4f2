package commands

import (
	"github.com/appetiteclub/canteen/pkg/relayclient"
	"github.com/spf13/pflag"
)

const defaultPageURL = "http://localhost"

// ConfigReader is the part of *apt.Config the commands read.
type ConfigReader interface {
	GetStringOrDef(key, def string) string
}

// RelayConnection holds the flags that locate the relay socket.
type RelayConnection struct {
	URL  string
	Page string
}

func (c *RelayConnection) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.URL, "url", "", "relay socket URL (overrides relay.url)")
	flagSet.StringVar(&c.Page, "page", "", "page URL the relay is discovered from (overrides page.url)")
}

// Resolve applies flag, then config, then discovery from the page URL.
func (c *RelayConnection) Resolve(config ConfigReader) (string, error) {
	override := c.URL
	if override == "" {
		override = config.GetStringOrDef("relay.url", "")
	}
	page := c.Page
	if page == "" {
		page = config.GetStringOrDef("page.url", defaultPageURL)
	}
	return relayclient.ResolveURL(override, page)
}
