package propmap

import "fmt"

func errInvalidKey(key string) error {
	return fmt.Errorf("propmap: invalid key %q, must match [A-Za-z_][A-Za-z0-9_]*", key)
}

func errTypeMismatch(key string, have, want Kind) error {
	return fmt.Errorf("propmap: key %q holds %s, cannot append %s", key, have, want)
}
