package resolve

import (
	"context"

	"github.com/inbucket/mailroute/pkg/kvstore"
)

// source yields a value for one field; ok is false when the layer has no opinion.
type source func(ctx context.Context) (value string, ok bool, err error)

// fromStore consults the store when enabled.  A missing key is no opinion, a stored empty
// string is a value.
func fromStore(store kvstore.Store, enabled bool, key string) source {
	return func(ctx context.Context) (string, bool, error) {
		if !enabled || store == nil {
			return "", false, nil
		}
		v, ok, err := store.Get(ctx, key)
		if err != nil {
			return "", false, &StoreError{Key: key, Err: err}
		}
		return v, ok, nil
	}
}

// fromEnv yields the environment value when the variable was set.
func fromEnv(v *string) source {
	return func(context.Context) (string, bool, error) {
		if v == nil {
			return "", false, nil
		}
		return *v, true, nil
	}
}

// fromDefault always yields v.
func fromDefault(v string) source {
	return func(context.Context) (string, bool, error) {
		return v, true, nil
	}
}

// first returns the value of the first source that has one, passed through normalize.
func first(ctx context.Context, normalize func(string) string, sources ...source) (string, error) {
	for _, src := range sources {
		v, ok, err := src(ctx)
		if err != nil {
			return "", err
		}
		if ok {
			return normalize(v), nil
		}
	}
	return "", nil
}

func verbatim(s string) string { return s }
