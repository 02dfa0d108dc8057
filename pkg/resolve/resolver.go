package resolve

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/inbucket/mailroute/pkg/config"
	"github.com/inbucket/mailroute/pkg/kvstore"
	"github.com/inbucket/mailroute/pkg/stringutil"
)

// Resolver builds effective policies.  The environment and store are only read.
type Resolver struct {
	Env   *config.Routing
	Store kvstore.Store
}

// NewResolver returns a Resolver over env and store; either may be nil.
func NewResolver(env *config.Routing, store kvstore.Store) *Resolver {
	if env == nil {
		env = &config.Routing{}
	}
	return &Resolver{Env: env, Store: store}
}

// field resolves one value: store (when enabled), then environment, then default.
func (r *Resolver) field(
	ctx context.Context,
	stored bool,
	key string,
	env, def *string,
	normalize func(string) string,
) (string, error) {
	sources := make([]source, 0, 3)
	if key != "" {
		sources = append(sources, fromStore(r.Store, stored, key))
	}
	sources = append(sources, fromEnv(env), fromDefault(*def))
	return first(ctx, normalize, sources...)
}

// Policy resolves the global policy.  Lookups run in order: store toggles, format, header,
// delivery errors, then addresses.
func (r *Resolver) Policy(ctx context.Context) (*Policy, error) {
	env, def := r.Env, &Defaults
	p := &Policy{}
	var err error

	// Toggles come from the environment only; they gate the store.
	p.UseStoredAddress = stringutil.ParseBool(envOrDefault(env.UseStoredAddressConfiguration,
		def.UseStoredAddressConfiguration))
	p.UseStoredFormat = stringutil.ParseBool(envOrDefault(env.UseStoredFormatConfiguration,
		def.UseStoredFormatConfiguration))
	p.UseStoredHeader = stringutil.ParseBool(envOrDefault(env.UseStoredHeaderConfiguration,
		def.UseStoredHeaderConfiguration))
	p.UseStoredUser = stringutil.ParseBool(envOrDefault(env.UseStoredUserConfiguration,
		def.UseStoredUserConfiguration))

	// Format.
	seps := []struct {
		name   string
		key    string
		env    *string
		def    *string
		target *string
	}{
		{"address separator", KeyAddressSeparator, env.FormatAddressSeparator,
			def.FormatAddressSeparator, &p.AddressSeparator},
		{"destination separator", KeyDestinationSeparator, env.FormatDestinationSeparator,
			def.FormatDestinationSeparator, &p.DestinationSeparator},
		{"local part separator", KeyLocalPartSeparator, env.FormatLocalPartSeparator,
			def.FormatLocalPartSeparator, &p.LocalPartSeparator},
		{"reject separator", KeyRejectSeparator, env.FormatRejectSeparator,
			def.FormatRejectSeparator, &p.RejectSeparator},
	}
	for _, s := range seps {
		if *s.target, err = r.field(ctx, p.UseStoredFormat, s.key, s.env, s.def, verbatim); err != nil {
			return nil, err
		}
		if *s.target == "" {
			return nil, &ConfigError{Field: s.name, Err: errors.New("must not be empty")}
		}
	}
	pattern, err := r.field(ctx, p.UseStoredFormat, KeyValidEmailAddress,
		env.FormatValidEmailAddressRegexp, def.FormatValidEmailAddressRegexp, strings.TrimSpace)
	if err != nil {
		return nil, err
	}
	if p.ValidEmailAddress, err = compile("valid email address pattern", pattern); err != nil {
		return nil, err
	}

	// Header.
	if pattern, err = r.field(ctx, false, "", env.CustomHeaderValidRegexp,
		def.CustomHeaderValidRegexp, strings.TrimSpace); err != nil {
		return nil, err
	}
	if p.ValidCustomHeader, err = compile("valid custom header pattern", pattern); err != nil {
		return nil, err
	}
	if p.CustomHeader, err = r.field(ctx, p.UseStoredHeader, KeyCustomHeader, env.CustomHeader,
		def.CustomHeader, stringutil.RemoveWhitespace); err != nil {
		return nil, err
	}
	if !p.ValidCustomHeader.MatchString(p.CustomHeader) {
		return nil, &ConfigError{
			Field: "custom header",
			Value: p.CustomHeader,
			Err:   fmt.Errorf("does not match %q", p.ValidCustomHeader),
		}
	}
	if p.CustomHeaderPass, err = r.field(ctx, p.UseStoredHeader, KeyCustomHeaderPass,
		env.CustomHeaderPass, def.CustomHeaderPass, strings.TrimSpace); err != nil {
		return nil, err
	}
	if p.CustomHeaderFail, err = r.field(ctx, p.UseStoredHeader, KeyCustomHeaderFail,
		env.CustomHeaderFail, def.CustomHeaderFail, strings.TrimSpace); err != nil {
		return nil, err
	}

	// Delivery errors and retry.
	p.UnverifiedDestinationErrorMessage = envOrDefault(env.UnverifiedDestinationErrorMessage,
		def.UnverifiedDestinationErrorMessage)
	pattern = strings.TrimSpace(envOrDefault(env.RecoverableErrorRegexp, def.RecoverableErrorRegexp))
	if p.RecoverableError, err = compile("recoverable error pattern", pattern); err != nil {
		return nil, err
	}
	retries := strings.TrimSpace(envOrDefault(env.ForwardRetries, def.ForwardRetries))
	if p.ForwardRetries, err = strconv.Atoi(retries); err != nil || p.ForwardRetries < 0 {
		if err == nil {
			err = errors.New("must not be negative")
		}
		return nil, &ConfigError{Field: "forward retries", Value: retries, Err: err}
	}
	delay := strings.TrimSpace(envOrDefault(env.ForwardRetryDelay, def.ForwardRetryDelay))
	if p.ForwardRetryDelay, err = time.ParseDuration(delay); err != nil {
		return nil, &ConfigError{Field: "forward retry delay", Value: delay, Err: err}
	}

	// Addresses.
	if p.Users, err = r.field(ctx, p.UseStoredAddress, KeyUsers, env.Users, def.Users,
		stringutil.RemoveWhitespace); err != nil {
		return nil, err
	}
	if p.Subaddresses, err = r.field(ctx, p.UseStoredAddress, KeySubaddresses, env.Subaddresses,
		def.Subaddresses, stringutil.RemoveWhitespace); err != nil {
		return nil, err
	}
	if p.Destination, err = r.field(ctx, p.UseStoredAddress, KeyDestination, env.Destination,
		def.Destination, stringutil.RemoveWhitespace); err != nil {
		return nil, err
	}
	if p.RejectTreatment, err = r.field(ctx, p.UseStoredAddress, KeyRejectTreatment,
		env.RejectTreatment, def.RejectTreatment, strings.TrimSpace); err != nil {
		return nil, err
	}
	if env.RejectTreatment != nil {
		p.EnvironmentRejectTreatment = strings.TrimSpace(*env.RejectTreatment)
	}

	return p, nil
}

func envOrDefault(env, def *string) string {
	if env != nil {
		return *env
	}
	return *def
}

func compile(field, pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &ConfigError{Field: field, Value: pattern, Err: err}
	}
	return re, nil
}

// UnverifiedMessage returns the delivery error text for unverified destinations.  It is an
// environment-only setting, so the delivery backend can use it without consulting the store.
func (r *Resolver) UnverifiedMessage() string {
	return envOrDefault(r.Env.UnverifiedDestinationErrorMessage,
		Defaults.UnverifiedDestinationErrorMessage)
}
