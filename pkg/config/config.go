package config

import (
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	prefix      = "mailroute"
	tableFormat = `Mailroute is configured via the environment. The following environment
variables can be used:

KEY	DEFAULT	REQUIRED	DESCRIPTION
{{range .}}{{usage_key .}}	{{usage_default .}}	{{usage_required .}}	{{usage_description .}}
{{end}}`
)

var (
	// Version of this build, set by main
	Version = ""

	// BuildDate for this build, set by main
	BuildDate = ""
)

// Root wraps all other configurations.
type Root struct {
	LogLevel string `required:"true" default:"info" desc:"debug, info, warn, or error"`
	Routing
	Store Store
	Relay Relay
	Web   Web
	Lua   Lua
}

// Routing holds the environment layer of the routing policy.  Every field is a pointer so that
// an unset variable (nil) can be told apart from one set to the empty string.  Built-in defaults
// are applied by the resolve package, not here.
type Routing struct {
	Users                             *string `desc:"Allowed users, comma separated, or *"`
	Subaddresses                      *string `desc:"Allowed subaddresses, *, or +-prefixed to require one"`
	Destination                       *string `desc:"Destination groups, e.g. a@x.com:b@x.com,c@y.com"`
	RejectTreatment                   *string `split_words:"true" desc:"Reject reason or reject-forward destinations"`
	FormatAddressSeparator            *string `split_words:"true" desc:"Separator between destination groups"`
	FormatDestinationSeparator        *string `split_words:"true" desc:"Separator between redundant destinations"`
	FormatLocalPartSeparator          *string `split_words:"true" desc:"Separator between user and subaddress"`
	FormatRejectSeparator             *string `split_words:"true" desc:"Separator between stored destination and reject treatment"`
	FormatValidEmailAddressRegexp     *string `split_words:"true" desc:"Pattern a destination address must match"`
	CustomHeader                      *string `split_words:"true" desc:"Header stamped on forwarded mail"`
	CustomHeaderPass                  *string `split_words:"true" desc:"Header value for accepted mail"`
	CustomHeaderFail                  *string `split_words:"true" desc:"Header value for reject-forwarded mail"`
	CustomHeaderValidRegexp           *string `split_words:"true" desc:"Pattern the custom header name must match"`
	UnverifiedDestinationErrorMessage *string `split_words:"true" desc:"Delivery error message for unverified destinations"`
	RecoverableErrorRegexp            *string `split_words:"true" desc:"Pattern for delivery errors worth retrying"`
	ForwardRetries                    *string `split_words:"true" desc:"Extra forwarding rounds for retryable groups"`
	ForwardRetryDelay                 *string `split_words:"true" desc:"Pause between forwarding rounds"`
	UseStoredAddressConfiguration     *string `split_words:"true" desc:"Load @USERS, @DESTINATION, etc. from the store"`
	UseStoredFormatConfiguration      *string `split_words:"true" desc:"Load @FORMAT_* values from the store"`
	UseStoredHeaderConfiguration      *string `split_words:"true" desc:"Load @CUSTOM_HEADER* values from the store"`
	UseStoredUserConfiguration        *string `split_words:"true" desc:"Load per-user overrides from the store"`
}

// Store contains the override store configuration.
type Store struct {
	Backend   string        `required:"true" default:"memory" desc:"memory, file, redis, or memcache"`
	Path      string        `default:"overrides.toml" desc:"Override table for the file backend"`
	Addr      string        `default:"localhost:6379" desc:"Server host:port for redis or memcache"`
	Password  string        `desc:"Redis password"`
	DB        int           `default:"0" desc:"Redis database number"`
	KeyPrefix string        `split_words:"true" desc:"Prefix prepended to every stored key"`
	Timeout   time.Duration `default:"5s" desc:"Store request timeout"`
}

// Relay contains the smarthost delivery configuration.
type Relay struct {
	Addr     string        `required:"true" default:"localhost:25" desc:"Smarthost host:port"`
	HeloName string        `split_words:"true" default:"mailroute" desc:"HELO name"`
	Sender   string        `desc:"Envelope sender for forwarded mail, empty to keep original"`
	Verified []string      `desc:"Verified destination addresses, empty to trust all"`
	Timeout  time.Duration `default:"60s" desc:"SMTP command timeout"`
}

// Web contains the HTTP server configuration.
type Web struct {
	Addr            string `required:"true" default:"0.0.0.0:9025" desc:"Web server host:port"`
	MaxMessageBytes int64  `split_words:"true" default:"26214400" desc:"Maximum accepted message size"`
	MonitorHistory  int    `split_words:"true" default:"30" desc:"Decisions kept for the monitor"`
}

// Lua contains the Lua extension host configuration.
type Lua struct {
	Path string `default:"mailroute.lua" desc:"Lua script path"`
}

// Process loads and parses configuration from the environment.
func Process() (*Root, error) {
	c := &Root{}
	err := envconfig.Process(prefix, c)
	return c, err
}

// Usage prints out the envconfig usage to Stderr.
func Usage() {
	tabs := tabwriter.NewWriter(os.Stderr, 1, 0, 4, ' ', 0)
	if err := envconfig.Usagef(prefix, &Root{}, tabs, tableFormat); err != nil {
		log.Fatalf("Unable to parse env config: %v", err)
	}
	tabs.Flush()
}

// String returns a pointer to s, for building Routing values in code.
func String(s string) *string {
	return &s
}
